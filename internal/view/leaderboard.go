package view

import (
	"sort"
	"strconv"
	"sync"

	"arena-terminal/internal/api"
	"arena-terminal/internal/stream"
)

// LeaderboardRow is one ranked model, static metadata joined with the
// freshest stream values.
type LeaderboardRow struct {
	Rank         int
	ModelID      int
	DisplayName  string
	CodeName     string
	Provider     string
	Color        string
	Icon         string
	AccountValue float64
	ReturnPct    float64
	TotalPnL     float64
	Fees         float64
	Trades       int
}

// LeaderboardFeed joins the REST model list with the modeldata channel's
// latest-value projection. Models without any trading data are filtered
// out, the rest are ranked by account value descending.
type LeaderboardFeed struct {
	mu     sync.RWMutex
	models []api.Model
	latest map[string]stream.LatestValue
}

func NewLeaderboardFeed() *LeaderboardFeed {
	return &LeaderboardFeed{latest: make(map[string]stream.LatestValue)}
}

// SetModels installs the static metadata fetched over REST.
func (f *LeaderboardFeed) SetModels(models []api.Model) {
	f.mu.Lock()
	f.models = models
	f.mu.Unlock()
}

// Apply refreshes the live values from a modeldata payload.
func (f *LeaderboardFeed) Apply(p stream.ModelDataPayload) {
	latest := stream.BuildLatestValues(p)
	f.mu.Lock()
	f.latest = latest
	f.mu.Unlock()
}

// Rows builds the ranked leaderboard. Stream values take precedence over
// the REST snapshot when both exist for a model.
func (f *LeaderboardFeed) Rows() []LeaderboardRow {
	f.mu.RLock()
	defer f.mu.RUnlock()

	rows := make([]LeaderboardRow, 0, len(f.models))
	for _, m := range f.models {
		row := LeaderboardRow{
			ModelID:     m.ID,
			DisplayName: m.DisplayName,
			CodeName:    m.CodeName,
			Provider:    m.Provider,
			Color:       m.Color,
			Icon:        m.Icon,
		}
		hasData := false
		if m.AccountValue != nil {
			row.AccountValue = *m.AccountValue
			hasData = true
		}
		if m.ReturnPct != nil {
			row.ReturnPct = *m.ReturnPct
		}
		if m.PnL != nil {
			row.TotalPnL = *m.PnL
		}
		if m.TradingCost != nil {
			row.Fees = *m.TradingCost
		}
		if m.Trades != nil {
			row.Trades = *m.Trades
		}

		if live, ok := f.latest[strconv.Itoa(m.ID)]; ok {
			hasData = true
			if live.AccountValue != nil {
				row.AccountValue = *live.AccountValue
			}
			if live.ReturnValue != nil {
				row.ReturnPct = *live.ReturnValue
			}
			if live.TotalPnL != nil {
				row.TotalPnL = *live.TotalPnL
			}
			if live.Fees != nil {
				row.Fees = *live.Fees
			}
			if live.Trades != nil {
				row.Trades = *live.Trades
			}
		}

		// Models with no trading data yet never appear on the board.
		if !hasData {
			continue
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].AccountValue > rows[j].AccountValue
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
