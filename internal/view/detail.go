package view

import (
	"sync"

	"arena-terminal/internal/stream"
)

// DetailFeed tracks one model's full history and latest point for the
// model-details page.
type DetailFeed struct {
	entityID string

	mu      sync.RWMutex
	history []stream.DataPoint
	latest  stream.LatestValue
	hasData bool
}

func NewDetailFeed(entityID string) *DetailFeed {
	return &DetailFeed{entityID: entityID}
}

func (f *DetailFeed) EntityID() string { return f.entityID }

// Apply extracts this entity's slice of a modeldata payload. Payloads that
// do not mention the entity leave the held state untouched.
func (f *DetailFeed) Apply(p stream.ModelDataPayload) {
	history := stream.EntityHistory(p, f.entityID)
	if history == nil {
		return
	}
	latest, ok := stream.BuildLatestValues(p)[f.entityID]

	f.mu.Lock()
	f.history = history
	if ok {
		f.latest = latest
		f.hasData = true
	}
	f.mu.Unlock()
}

// History returns a copy of the entity's time-ordered data points.
func (f *DetailFeed) History() []stream.DataPoint {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]stream.DataPoint, len(f.history))
	copy(out, f.history)
	return out
}

// Latest returns the entity's most recent point, if one has arrived.
func (f *DetailFeed) Latest() (stream.LatestValue, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latest, f.hasData
}
