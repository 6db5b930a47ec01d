// Package view holds the thin consumers that sit between the stream
// channels and whatever renders them. Each feed owns its derived state
// exclusively and rebuilds it on every payload it is fed; readers get
// copies, never live references.
package view

import (
	"sync"

	"arena-terminal/internal/stream"
)

// ChartFeed maintains the merged account-value series for the portfolio
// chart. Full-replacement payloads swap the series wholesale; everything
// else merges incrementally under the configured point bound.
type ChartFeed struct {
	mu         sync.RWMutex
	points     []stream.SeriesPoint
	names      []string
	lastUpdate string
	maxPoints  int
}

func NewChartFeed(maxPoints int) *ChartFeed {
	if maxPoints <= 0 {
		maxPoints = stream.DefaultMaxSeriesPoints
	}
	return &ChartFeed{maxPoints: maxPoints}
}

// Apply folds one modeldata payload into the held series.
func (f *ChartFeed) Apply(p stream.ModelDataPayload) {
	merged := stream.BuildMergedSeries(p)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = stream.MergeSeriesIncremental(f.points, p, f.maxPoints)
	if len(merged.EntityNames) > 0 {
		f.names = merged.EntityNames
	}
	if merged.LastUpdate != "" {
		f.lastUpdate = merged.LastUpdate
	}
}

// ChartSnapshot is a copy of the chart state at one instant.
type ChartSnapshot struct {
	Points      []stream.SeriesPoint
	EntityNames []string
	LastUpdate  string
}

// Snapshot returns the current series; an empty snapshot means no data yet,
// not an error.
func (f *ChartFeed) Snapshot() ChartSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap := ChartSnapshot{
		Points:      make([]stream.SeriesPoint, len(f.points)),
		EntityNames: make([]string, len(f.names)),
		LastUpdate:  f.lastUpdate,
	}
	copy(snap.Points, f.points)
	copy(snap.EntityNames, f.names)
	return snap
}
