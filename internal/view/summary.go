package view

import (
	"sort"
	"sync"

	"arena-terminal/internal/stream"
)

// SummaryFeed keeps the latest-value projection of the modeldata channel
// for the summary cards: one most-recent data point per model.
type SummaryFeed struct {
	mu        sync.RWMutex
	latest    map[string]stream.LatestValue
	timestamp string
}

func NewSummaryFeed() *SummaryFeed {
	return &SummaryFeed{latest: make(map[string]stream.LatestValue)}
}

func (f *SummaryFeed) Apply(p stream.ModelDataPayload) {
	latest := stream.BuildLatestValues(p)
	f.mu.Lock()
	f.latest = latest
	f.timestamp = p.Timestamp
	f.mu.Unlock()
}

// Latest returns a copy of the projection keyed by entity id.
func (f *SummaryFeed) Latest() map[string]stream.LatestValue {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]stream.LatestValue, len(f.latest))
	for id, v := range f.latest {
		out[id] = v
	}
	return out
}

// LastUpdate returns the payload timestamp of the held projection.
func (f *SummaryFeed) LastUpdate() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.timestamp
}

// TopPerformers returns up to limit entities ordered by account value
// descending. Entities without an account value rank last.
func (f *SummaryFeed) TopPerformers(limit int) []stream.LatestValue {
	f.mu.RLock()
	rows := make([]stream.LatestValue, 0, len(f.latest))
	for _, v := range f.latest {
		rows = append(rows, v)
	}
	f.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		return accountValue(rows[i]) > accountValue(rows[j])
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func accountValue(v stream.LatestValue) float64 {
	if v.AccountValue == nil {
		return 0
	}
	return *v.AccountValue
}
