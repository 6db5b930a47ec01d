// Package store is the local warm cache for sidebar data. It mirrors the
// last-known positions, model chat, and completed trades so a restart
// before the next push still has something to show. It is strictly
// best-effort: every failure degrades to "no cached data" and nothing in
// the core depends on it being present or valid.
package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"arena-terminal/internal/stream"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	positionsBucket = "positions"
	modelchatBucket = "modelchat"
	tradesBucket    = "trades"

	latestKey = "latest"
)

// snapshot is the stored envelope: the section rows plus the push timestamp
// they arrived with. Shape is validated on every read.
type snapshot struct {
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Store wraps the BoltDB cache file.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the cache database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "arena-cache.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{positionsBucket, modelchatBucket, tradesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// PutPositions mirrors the latest positions section.
func (s *Store) PutPositions(rows []stream.Position, timestamp string) error {
	return putSnapshot(s.db, positionsBucket, rows, timestamp)
}

// Positions returns the cached positions, or ok=false when nothing valid
// is cached.
func (s *Store) Positions() ([]stream.Position, string, bool) {
	return getSnapshot[stream.Position](s.db, positionsBucket)
}

// PutChats mirrors the latest model-chat section.
func (s *Store) PutChats(rows []stream.ChatMessage, timestamp string) error {
	return putSnapshot(s.db, modelchatBucket, rows, timestamp)
}

// Chats returns the cached model chat, or ok=false when nothing valid is
// cached.
func (s *Store) Chats() ([]stream.ChatMessage, string, bool) {
	return getSnapshot[stream.ChatMessage](s.db, modelchatBucket)
}

// PutTrades mirrors the latest completed-trades section.
func (s *Store) PutTrades(rows []stream.TradeFill, timestamp string) error {
	return putSnapshot(s.db, tradesBucket, rows, timestamp)
}

// Trades returns the cached completed trades, or ok=false when nothing
// valid is cached.
func (s *Store) Trades() ([]stream.TradeFill, string, bool) {
	return getSnapshot[stream.TradeFill](s.db, tradesBucket)
}

func putSnapshot[T any](db *bbolt.DB, bucket string, rows []T, timestamp string) error {
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal %s rows: %w", bucket, err)
	}
	snap, err := json.Marshal(snapshot{Timestamp: timestamp, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", bucket, err)
	}
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(latestKey), snap)
	})
}

// getSnapshot reads and validates one cached section. Any shape problem
// discards the snapshot: a stale cache renders as empty, never as garbage.
func getSnapshot[T any](db *bbolt.DB, bucket string) ([]T, string, bool) {
	var raw []byte
	err := db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket([]byte(bucket)).Get([]byte(latestKey)); v != nil {
			raw = append(raw, v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, "", false
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Warn().Err(err).Str("bucket", bucket).Msg("discarding unreadable cache snapshot")
		return nil, "", false
	}
	if snap.Timestamp == "" || len(snap.Data) == 0 {
		return nil, "", false
	}
	var rows []T
	if err := json.Unmarshal(snap.Data, &rows); err != nil {
		log.Warn().Err(err).Str("bucket", bucket).Msg("discarding malformed cache snapshot")
		return nil, "", false
	}
	if rows == nil {
		return nil, "", false
	}
	return rows, snap.Timestamp, true
}
