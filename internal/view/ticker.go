package view

import (
	"sort"
	"sync"

	"arena-terminal/internal/stream"
)

// TickerFeed holds the latest price snapshot from the price channel.
// Each payload is a full replacement keyed by symbol.
type TickerFeed struct {
	mu        sync.RWMutex
	ticks     map[string]stream.PriceTick
	timestamp string
}

func NewTickerFeed() *TickerFeed {
	return &TickerFeed{ticks: make(map[string]stream.PriceTick)}
}

func (f *TickerFeed) Apply(p stream.PricePayload) {
	f.mu.Lock()
	f.ticks = p.Data
	f.timestamp = p.Timestamp
	f.mu.Unlock()
}

// Price returns the latest tick for symbol, if present.
func (f *TickerFeed) Price(symbol string) (stream.PriceTick, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.ticks[symbol]
	return t, ok
}

// Symbols returns all known symbols in sorted order.
func (f *TickerFeed) Symbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.ticks))
	for s := range f.ticks {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// LastUpdate returns the payload timestamp of the held snapshot.
func (f *TickerFeed) LastUpdate() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.timestamp
}
