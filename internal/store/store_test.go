package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"arena-terminal/internal/stream"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_EmptyReads(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	_, _, ok := s.Positions()
	assert.False(t, ok)
	_, _, ok = s.Chats()
	assert.False(t, ok)
	_, _, ok = s.Trades()
	assert.False(t, ok)
}

func TestStore_PositionsRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	pnl := 42.5
	in := []stream.Position{
		{ID: 1, Asset: "BTC", DisplayName: "Alpha", ModelID: 7, Percentage: 40, Value: 10500, PnL: &pnl},
		{ID: 2, Asset: "ETH", DisplayName: "Beta", ModelID: 8, Percentage: 10, Value: 2450},
	}
	require.NoError(t, s.PutPositions(in, "2025-11-02T10:15:00Z"))

	out, ts, ok := s.Positions()
	require.True(t, ok)
	assert.Equal(t, "2025-11-02T10:15:00Z", ts)
	require.Len(t, out, 2)
	assert.Equal(t, in[0].Asset, out[0].Asset)
	require.NotNil(t, out[0].PnL)
	assert.Equal(t, 42.5, *out[0].PnL)
	assert.Nil(t, out[1].PnL)
}

func TestStore_ChatsPreserveRawPrompts(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	in := []stream.ChatMessage{
		{ID: 1, DisplayName: "Alpha", OutputPrompt: json.RawMessage(`{"thought":"holding"}`)},
		{ID: 2, DisplayName: "Beta", OutputPrompt: json.RawMessage(`"plain string"`)},
	}
	require.NoError(t, s.PutChats(in, "t1"))

	out, _, ok := s.Chats()
	require.True(t, ok)
	require.Len(t, out, 2)
	assert.JSONEq(t, `{"thought":"holding"}`, string(out[0].OutputPrompt))
	assert.JSONEq(t, `"plain string"`, string(out[1].OutputPrompt))
}

func TestStore_LatestWriteWins(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.PutTrades([]stream.TradeFill{{ID: 1}}, "t1"))
	require.NoError(t, s.PutTrades([]stream.TradeFill{{ID: 2}, {ID: 3}}, "t2"))

	out, ts, ok := s.Trades()
	require.True(t, ok)
	assert.Equal(t, "t2", ts)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].ID)
}

func TestStore_EmptyTimestampFilledIn(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.PutPositions([]stream.Position{{ID: 1}}, ""))

	_, ts, ok := s.Positions()
	require.True(t, ok)
	assert.NotEmpty(t, ts)
}

func TestStore_CorruptSnapshotDiscarded(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.PutPositions([]stream.Position{{ID: 1}}, "t1"))

	write := func(v []byte) {
		err := s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket([]byte(positionsBucket)).Put([]byte(latestKey), v)
		})
		require.NoError(t, err)
	}

	// Not JSON at all.
	write([]byte("not json"))
	_, _, ok := s.Positions()
	assert.False(t, ok)

	// Valid envelope, data not an array.
	write([]byte(`{"timestamp":"t1","data":{"rows":1}}`))
	_, _, ok = s.Positions()
	assert.False(t, ok)

	// Missing timestamp.
	write([]byte(`{"data":[{"id":1}]}`))
	_, _, ok = s.Positions()
	assert.False(t, ok)

	// Null data rows.
	write([]byte(`{"timestamp":"t1","data":null}`))
	_, _, ok = s.Positions()
	assert.False(t, ok)
}

func TestStore_SectionsIndependent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.PutChats([]stream.ChatMessage{{ID: 1}}, "t1"))

	_, _, ok := s.Positions()
	assert.False(t, ok)
	out, _, ok := s.Chats()
	require.True(t, ok)
	assert.Len(t, out, 1)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.PutTrades([]stream.TradeFill{{ID: 9, Asset: "BTC"}}, "t1"))
	require.NoError(t, s.Close())

	s2, err := New(dir)
	require.NoError(t, err)
	defer s2.Close()

	out, ts, ok := s2.Trades()
	require.True(t, ok)
	assert.Equal(t, "t1", ts)
	require.Len(t, out, 1)
	assert.Equal(t, "BTC", out[0].Asset)
}
