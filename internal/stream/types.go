// Package stream defines the wire payloads pushed by the arena backend and
// the pure reconciliation functions that turn them into time-ordered,
// deduplicated view models. Nothing in this package holds mutable state.
package stream

import "encoding/json"

// Message type tags observed on the three channels. The modeldata tags
// distinguish the initial snapshot from the recurring full-window pushes.
const (
	TypePriceUpdate = "price_update"

	TypeCombinedUpdate  = "combined_update"
	TypePositionUpdates = "position_updates"
	TypeChatUpdates     = "modelchat_updates"
	TypeTradeUpdates    = "trade_updates"

	TypeInitialModelData       = "initial_modeldata"
	TypeInitialModelDataUpdate = "initial_modeldata_update"
	TypeModelDataUpdate        = "modeldata_update"
)

// PriceTick is one symbol's live quote on the price channel.
type PriceTick struct {
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	ChangePercent     float64 `json:"change_percent"`
	ChangeDirection   string  `json:"change_direction"`
	LastTradeTime     string  `json:"last_trade_time,omitempty"`
	ExchangeTimestamp string  `json:"exchange_timestamp,omitempty"`
}

// PricePayload is a full price snapshot keyed by symbol.
type PricePayload struct {
	Type      string               `json:"type"`
	Timestamp string               `json:"timestamp"`
	Data      map[string]PriceTick `json:"data"`
}

// DataPoint is one timestamped snapshot of a model's metrics. Numeric
// fields are nullable upstream, hence the pointers.
type DataPoint struct {
	CreatedAt    string   `json:"created_at"`
	AccountValue *float64 `json:"account_value"`
	ReturnValue  *float64 `json:"return_value"`
	TotalPnL     *float64 `json:"total_pnl"`
	Fees         *float64 `json:"fees"`
	Trades       *int     `json:"trades"`
}

// EntitySeries is one model's data-point history as pushed on the modeldata
// channel. Points are not guaranteed sorted or deduplicated by the sender.
type EntitySeries struct {
	ModelID     int         `json:"ai_model_id"`
	CodeName    string      `json:"code_name"`
	DisplayName string      `json:"display_name"`
	DataPoints  []DataPoint `json:"data_points"`
}

// ModelDataPayload maps entity id to its series. Type carries the
// full-replacement semantics consumed by the chart feed.
type ModelDataPayload struct {
	Type      string
	Timestamp string
	Data      map[string]EntitySeries
}

// IsFullReplacement reports whether this payload represents the complete
// current dataset rather than a delta to merge.
func (p ModelDataPayload) IsFullReplacement() bool {
	return p.Type == TypeModelDataUpdate
}

// Position is one open position row on the model channel.
type Position struct {
	ID          int      `json:"id"`
	Asset       string   `json:"asset"`
	DisplayName string   `json:"display_name"`
	CodeName    string   `json:"code_name"`
	ModelID     int      `json:"ai_model_id"`
	Percentage  float64  `json:"percentage"`
	Value       float64  `json:"value"`
	PnL         *float64 `json:"pnl"`
	Quantity    *float64 `json:"quantity"`
	LastPrice   *float64 `json:"last_price"`
	LastUpdated string   `json:"last_updated"`
}

// TradeFill is one completed trade row on the model channel.
type TradeFill struct {
	ID             int     `json:"id"`
	DisplayName    string  `json:"display_name"`
	CodeName       string  `json:"code_name"`
	ModelID        int     `json:"ai_model_id"`
	Asset          string  `json:"asset"`
	Side           string  `json:"side"`
	Quantity       float64 `json:"quantity"`
	Price          float64 `json:"price"`
	NotionalValue  float64 `json:"notional_value"`
	LastUpdateTime string  `json:"last_update_time"`
}

// ChatMessage is one model-reasoning entry. Prompts may be JSON documents
// or plain strings, so they stay raw until rendered.
type ChatMessage struct {
	ID             int             `json:"id"`
	DisplayName    string          `json:"display_name"`
	CodeName       string          `json:"code_name"`
	ModelID        int             `json:"ai_model_id"`
	InputPrompt    json.RawMessage `json:"model_input_prompt"`
	OutputPrompt   json.RawMessage `json:"model_output_prompt"`
	LastUpdateTime string          `json:"last_update_time"`
}

// ModelEvent is the canonical internal representation of everything the
// model channel pushes. Every historical wire shape (the combined envelope
// and the legacy standalone types) normalizes into it at the channel
// boundary; a nil section means the originating message did not carry it.
type ModelEvent struct {
	Positions []Position
	Chats     []ChatMessage
	Trades    []TradeFill
	Timestamp string
}
