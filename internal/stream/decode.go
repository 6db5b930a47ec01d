package stream

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// DecodePrice decodes one price-channel message. Only price_update messages
// carrying data are acted on; anything else is recognized but skipped.
func DecodePrice(raw []byte) (PricePayload, bool, error) {
	var p PricePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return PricePayload{}, false, fmt.Errorf("price message: %w", err)
	}
	if p.Type != TypePriceUpdate || p.Data == nil {
		return PricePayload{}, false, nil
	}
	return p, true, nil
}

// modelEnvelope covers every shape the model channel has ever pushed: the
// combined envelope with three sub-objects, and the older standalone
// messages carrying the same sections flattened under data.
type modelEnvelope struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`

	PositionUpdates *modelSection `json:"position_updates"`
	ChatUpdates     *modelSection `json:"modelchat_updates"`
	TradeUpdates    *modelSection `json:"trade_updates"`
}

type modelSection struct {
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// DecodeModelEvent folds all historical model-channel shapes into one
// canonical ModelEvent. Unknown type tags (echo replies and the like) are
// skipped without error. A section that fails to decode is dropped with a
// warning; its siblings in the same message still go through.
func DecodeModelEvent(raw []byte) (ModelEvent, bool, error) {
	var env modelEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ModelEvent{}, false, fmt.Errorf("model message: %w", err)
	}

	ev := ModelEvent{Timestamp: env.Timestamp}
	switch env.Type {
	case TypeCombinedUpdate:
		if env.PositionUpdates != nil {
			decodeSection(env.PositionUpdates.Data, "positions", &ev.Positions)
		}
		if env.ChatUpdates != nil {
			decodeSection(env.ChatUpdates.Data, "modelchat", &ev.Chats)
		}
		if env.TradeUpdates != nil {
			decodeSection(env.TradeUpdates.Data, "trades", &ev.Trades)
		}
	case TypePositionUpdates:
		decodeSection(env.Data, "positions", &ev.Positions)
	case TypeChatUpdates:
		decodeSection(env.Data, "modelchat", &ev.Chats)
	case TypeTradeUpdates, "trades_updates", "completed_trades":
		decodeSection(env.Data, "trades", &ev.Trades)
	default:
		return ModelEvent{}, false, nil
	}

	if ev.Positions == nil && ev.Chats == nil && ev.Trades == nil {
		return ModelEvent{}, false, nil
	}
	return ev, true, nil
}

func decodeSection[T any](raw json.RawMessage, name string, out *[]T) {
	if len(raw) == 0 {
		return
	}
	var rows []T
	if err := json.Unmarshal(raw, &rows); err != nil {
		log.Warn().Err(err).Str("section", name).Msg("skipping undecodable update section")
		return
	}
	*out = rows
}

// DecodeModelData decodes one modeldata-channel message. Entities that fail
// to decode are skipped individually so one malformed entry never poisons
// the rest of the snapshot.
func DecodeModelData(raw []byte) (ModelDataPayload, bool, error) {
	var env struct {
		Type      string                     `json:"type"`
		Timestamp string                     `json:"timestamp"`
		Data      map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ModelDataPayload{}, false, fmt.Errorf("modeldata message: %w", err)
	}

	switch env.Type {
	case TypeInitialModelData, TypeInitialModelDataUpdate, TypeModelDataUpdate:
	default:
		return ModelDataPayload{}, false, nil
	}

	p := ModelDataPayload{
		Type:      env.Type,
		Timestamp: env.Timestamp,
		Data:      make(map[string]EntitySeries, len(env.Data)),
	}
	for id, rawEntity := range env.Data {
		var entity EntitySeries
		if err := json.Unmarshal(rawEntity, &entity); err != nil {
			log.Warn().Err(err).Str("entity", id).Msg("skipping undecodable entity")
			continue
		}
		p.Data[id] = entity
	}
	return p, true, nil
}
