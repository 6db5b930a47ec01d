package stream

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultMaxSeriesPoints bounds the merged chart series when merging
// incrementally; older points beyond it are discarded.
const DefaultMaxSeriesPoints = 1000

// PointValue holds one entity's metrics at one series timestamp.
type PointValue struct {
	AccountValue *float64
	ReturnValue  *float64
	TotalPnL     *float64
	Fees         *float64
	Trades       *int
}

// SeriesPoint is one x-axis entry of the merged chart series. Values is
// sparse, keyed by entity display name: absence means the entity has no
// sample at this timestamp and renders as a gap, not zero.
type SeriesPoint struct {
	Timestamp string
	Time      time.Time
	Values    map[string]PointValue
}

// MergedSeries is the chart-ready projection of one modeldata payload.
type MergedSeries struct {
	Points      []SeriesPoint
	EntityNames []string
	LastUpdate  string
}

// LatestValue is one entity's most recent data point plus identity.
type LatestValue struct {
	DisplayName  string
	AccountValue *float64
	ReturnValue  *float64
	TotalPnL     *float64
	Fees         *float64
	Trades       *int
	Timestamp    string
}

// BuildMergedSeries merges every entity's data points onto one strictly
// time-ordered x-axis. Each entity's points are sorted by created_at first;
// the axis is the union of all distinct timestamps; each point carries the
// entities' values at exactly that timestamp. Points sharing a timestamp
// within one entity collapse later-wins. An empty or missing data set
// yields an empty series, which callers treat as "no data yet".
func BuildMergedSeries(p ModelDataPayload) MergedSeries {
	out := MergedSeries{LastUpdate: p.Timestamp}
	if len(p.Data) == 0 {
		return out
	}

	ids := sortedEntityIDs(p.Data)

	type entityIndex struct {
		name   string
		byTime map[string]DataPoint
	}
	indexes := make([]entityIndex, 0, len(ids))
	seenTS := make(map[string]struct{})
	var axis []string

	for _, id := range ids {
		entity := p.Data[id]
		points, ok := validPoints(id, entity)
		if !ok {
			continue
		}
		idx := entityIndex{name: entity.DisplayName, byTime: make(map[string]DataPoint, len(points))}
		for _, dp := range points {
			if _, dup := seenTS[dp.CreatedAt]; !dup {
				seenTS[dp.CreatedAt] = struct{}{}
				axis = append(axis, dp.CreatedAt)
			}
			idx.byTime[dp.CreatedAt] = dp
		}
		indexes = append(indexes, idx)
		out.EntityNames = append(out.EntityNames, entity.DisplayName)
	}

	sort.SliceStable(axis, func(i, j int) bool { return timestampLess(axis[i], axis[j]) })

	out.Points = make([]SeriesPoint, 0, len(axis))
	for _, ts := range axis {
		sp := SeriesPoint{
			Timestamp: ts,
			Values:    make(map[string]PointValue, len(indexes)),
		}
		sp.Time, _ = parseTimestamp(ts)
		for _, idx := range indexes {
			dp, here := idx.byTime[ts]
			if !here {
				continue
			}
			sp.Values[idx.name] = PointValue{
				AccountValue: dp.AccountValue,
				ReturnValue:  dp.ReturnValue,
				TotalPnL:     dp.TotalPnL,
				Fees:         dp.Fees,
				Trades:       dp.Trades,
			}
		}
		out.Points = append(out.Points, sp)
	}
	return out
}

// BuildLatestValues picks each entity's maximum-created_at data point, ties
// broken by last-seen-in-input order. Entities with no points are omitted
// rather than mapped to nulls.
func BuildLatestValues(p ModelDataPayload) map[string]LatestValue {
	latest := make(map[string]LatestValue)
	for _, id := range sortedEntityIDs(p.Data) {
		entity := p.Data[id]
		if entity.DisplayName == "" || entity.DataPoints == nil {
			log.Warn().Str("entity", id).Msg("skipping malformed entity in latest-value projection")
			continue
		}
		if len(entity.DataPoints) == 0 {
			continue
		}
		best := entity.DataPoints[0]
		for _, dp := range entity.DataPoints[1:] {
			if !timestampLess(dp.CreatedAt, best.CreatedAt) {
				best = dp
			}
		}
		latest[id] = LatestValue{
			DisplayName:  entity.DisplayName,
			AccountValue: best.AccountValue,
			ReturnValue:  best.ReturnValue,
			TotalPnL:     best.TotalPnL,
			Fees:         best.Fees,
			Trades:       best.Trades,
			Timestamp:    best.CreatedAt,
		}
	}
	return latest
}

// MergeSeriesIncremental folds a new payload into an existing merged
// series. Full-replacement payloads discard the held series outright, since
// the sender pushes a complete window each time. Append-style payloads are
// deduplicated by timestamp, concatenated, re-sorted, and truncated to the
// newest maxPoints, so repeated delivery of the same payload is a no-op.
func MergeSeriesIncremental(existing []SeriesPoint, p ModelDataPayload, maxPoints int) []SeriesPoint {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxSeriesPoints
	}
	next := BuildMergedSeries(p).Points

	if p.IsFullReplacement() || len(existing) == 0 {
		if len(next) > maxPoints {
			next = next[len(next)-maxPoints:]
		}
		return next
	}

	held := make(map[string]struct{}, len(existing))
	for _, sp := range existing {
		held[sp.Timestamp] = struct{}{}
	}

	combined := make([]SeriesPoint, 0, len(existing)+len(next))
	combined = append(combined, existing...)
	for _, sp := range next {
		if _, dup := held[sp.Timestamp]; dup {
			continue
		}
		combined = append(combined, sp)
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return timestampLess(combined[i].Timestamp, combined[j].Timestamp)
	})
	if len(combined) > maxPoints {
		combined = combined[len(combined)-maxPoints:]
	}
	return combined
}

// EntityHistory returns one entity's data points sorted ascending by
// created_at with same-timestamp points collapsed later-wins. Used by the
// per-model detail view. Returns nil when the entity is absent or malformed.
func EntityHistory(p ModelDataPayload, entityID string) []DataPoint {
	entity, ok := p.Data[entityID]
	if !ok {
		return nil
	}
	points, ok := validPoints(entityID, entity)
	if !ok {
		return nil
	}
	deduped := make([]DataPoint, 0, len(points))
	last := make(map[string]int, len(points))
	for _, dp := range points {
		if i, dup := last[dp.CreatedAt]; dup {
			deduped[i] = dp
			continue
		}
		last[dp.CreatedAt] = len(deduped)
		deduped = append(deduped, dp)
	}
	return deduped
}

// validPoints screens one entity entry and returns its points sorted
// ascending by created_at. Malformed entries are skipped with a warning so
// siblings in the same payload still process.
func validPoints(id string, entity EntitySeries) ([]DataPoint, bool) {
	if entity.DisplayName == "" || entity.DataPoints == nil {
		log.Warn().Str("entity", id).Msg("skipping malformed entity in merged series")
		return nil, false
	}
	points := make([]DataPoint, len(entity.DataPoints))
	copy(points, entity.DataPoints)
	sort.SliceStable(points, func(i, j int) bool {
		return timestampLess(points[i].CreatedAt, points[j].CreatedAt)
	})
	return points, true
}

func sortedEntityIDs(data map[string]EntitySeries) []string {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// timestampLess orders by parsed time when both sides parse, falling back
// to lexical order, which is correct for same-layout ISO timestamps.
func timestampLess(a, b string) bool {
	ta, okA := parseTimestamp(a)
	tb, okB := parseTimestamp(b)
	if okA && okB {
		if ta.Equal(tb) {
			return a < b
		}
		return ta.Before(tb)
	}
	return a < b
}
