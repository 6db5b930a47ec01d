package view

import (
	"sync"

	"arena-terminal/internal/stream"

	"github.com/rs/zerolog/log"
)

// SidebarCache is the warm-cache surface the sidebar needs. Implemented by
// store.Store; nil disables persistence entirely.
type SidebarCache interface {
	PutPositions(rows []stream.Position, timestamp string) error
	Positions() ([]stream.Position, string, bool)
	PutChats(rows []stream.ChatMessage, timestamp string) error
	Chats() ([]stream.ChatMessage, string, bool)
	PutTrades(rows []stream.TradeFill, timestamp string) error
	Trades() ([]stream.TradeFill, string, bool)
}

// SidebarFeed consumes canonical model-channel events and exposes the
// positions, model-chat, and completed-trades panes. Each accepted section
// is mirrored into the warm cache so a restart before the next push still
// renders; cache failures are logged and otherwise ignored.
type SidebarFeed struct {
	cache SidebarCache

	mu        sync.RWMutex
	positions []stream.Position
	chats     []stream.ChatMessage
	trades    []stream.TradeFill
}

// NewSidebarFeed creates the feed and pre-populates it from the warm cache
// when one is supplied.
func NewSidebarFeed(cache SidebarCache) *SidebarFeed {
	f := &SidebarFeed{cache: cache}
	if cache == nil {
		return f
	}
	if rows, _, ok := cache.Positions(); ok {
		f.positions = rows
	}
	if rows, _, ok := cache.Chats(); ok {
		f.chats = rows
	}
	if rows, _, ok := cache.Trades(); ok {
		f.trades = rows
	}
	return f
}

// Apply folds one model event into the panes. Positions and chat replace
// whenever their section is present; trades only replace on a non-empty
// list, since the upstream occasionally pushes empty trade sections that
// would otherwise blank the pane.
func (f *SidebarFeed) Apply(ev stream.ModelEvent) {
	f.mu.Lock()
	if ev.Positions != nil {
		f.positions = ev.Positions
		f.persist(func() error { return f.cache.PutPositions(ev.Positions, ev.Timestamp) })
	}
	if ev.Chats != nil {
		f.chats = ev.Chats
		f.persist(func() error { return f.cache.PutChats(ev.Chats, ev.Timestamp) })
	}
	if len(ev.Trades) > 0 {
		f.trades = ev.Trades
		f.persist(func() error { return f.cache.PutTrades(ev.Trades, ev.Timestamp) })
	}
	f.mu.Unlock()
}

func (f *SidebarFeed) persist(put func() error) {
	if f.cache == nil {
		return
	}
	if err := put(); err != nil {
		log.Warn().Err(err).Msg("sidebar cache write failed")
	}
}

// Positions returns a copy of the open-positions pane.
func (f *SidebarFeed) Positions() []stream.Position {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]stream.Position, len(f.positions))
	copy(out, f.positions)
	return out
}

// Chats returns a copy of the model-chat pane.
func (f *SidebarFeed) Chats() []stream.ChatMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]stream.ChatMessage, len(f.chats))
	copy(out, f.chats)
	return out
}

// Trades returns a copy of the completed-trades pane.
func (f *SidebarFeed) Trades() []stream.TradeFill {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]stream.TradeFill, len(f.trades))
	copy(out, f.trades)
	return out
}
