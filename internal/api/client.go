// Package api is the REST collaborator: snapshot reads of the model list
// and the sidebar tables. A failing call surfaces as an error for the UI's
// error state and never blocks the stream channels.
package api

import (
	"fmt"
	"time"

	"arena-terminal/internal/stream"

	"github.com/go-resty/resty/v2"
)

// Model is one tracked AI model's static metadata plus its live summary
// fields. Summary fields are null until the model has trading data.
type Model struct {
	ID          int    `json:"id"`
	CodeName    string `json:"code_name"`
	DisplayName string `json:"display_name"`
	Provider    string `json:"provider"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`

	AccountValue *float64 `json:"account_value"`
	ReturnPct    *float64 `json:"return_pct"`
	PnL          *float64 `json:"pnl"`
	TradingCost  *float64 `json:"trading_cost"`
	Winrate      *float64 `json:"winrate"`
	BiggestWin   *float64 `json:"biggest_win"`
	BiggestLoss  *float64 `json:"biggest_loss"`
	Sharpe       *float64 `json:"sharpe"`
	Trades       *int     `json:"trades"`
	Rank         *int     `json:"rank"`
}

type Client struct {
	base string
	rest *resty.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	return &Client{base: base, rest: r}
}

// Models fetches the full model list with static metadata.
func (c *Client) Models() ([]Model, error) {
	var models []Model
	if err := c.get("/models/get_all", &models); err != nil {
		return nil, err
	}
	return models, nil
}

// Positions fetches the current open-positions snapshot.
func (c *Client) Positions() ([]stream.Position, error) {
	var rows []stream.Position
	if err := c.get("/models/get_all_positions", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ModelChat fetches the recent model-reasoning entries.
func (c *Client) ModelChat() ([]stream.ChatMessage, error) {
	var rows []stream.ChatMessage
	if err := c.get("/models/get_all_model_chat", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Trades fetches the recent completed trades.
func (c *Client) Trades() ([]stream.TradeFill, error) {
	var rows []stream.TradeFill
	if err := c.get("/models/get_all_trades", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) get(path string, result any) error {
	resp, err := c.rest.R().
		SetHeader("Accept", "application/json").
		SetResult(result).
		Get(c.base + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
