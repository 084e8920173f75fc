package hub

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"forexstream/internal/model"
)

// Client control message types.
const (
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypeSubscribeAll = "subscribe_all"
	TypePing         = "ping"
	TypeGetPrice     = "get_price"
)

// ClientMessage is the decoded control message sent by a subscriber.
// It is validated at the boundary so the hub logic never touches raw
// JSON maps.
type ClientMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
	Symbol  string   `json:"symbol,omitempty"`
}

// ParseClientMessage decodes and validates a raw control message.
func ParseClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("invalid message: %w", err)
	}

	switch msg.Type {
	case TypeSubscribe, TypeUnsubscribe:
		if len(msg.Symbols) == 0 {
			return ClientMessage{}, fmt.Errorf("%s requires symbols", msg.Type)
		}
	case TypeSubscribeAll, TypePing:
	case TypeGetPrice:
		if msg.Symbol == "" {
			return ClientMessage{}, fmt.Errorf("get_price requires a symbol")
		}
	default:
		return ClientMessage{}, fmt.Errorf("unknown message type %q", msg.Type)
	}

	return msg, nil
}

// PriceData is the wire form of a tick in server-to-client messages.
type PriceData struct {
	Symbol     string  `json:"symbol"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Mid        float64 `json:"mid"`
	SpreadPips float64 `json:"spread_pips"`
	Timestamp  string  `json:"timestamp"`
}

func newPriceData(tick model.Tick) PriceData {
	return PriceData{
		Symbol:     strings.ToUpper(tick.Symbol),
		Bid:        tick.Bid,
		Ask:        tick.Ask,
		Mid:        tick.Mid,
		SpreadPips: tick.SpreadPips(),
		Timestamp:  tick.Timestamp.Format(time.RFC3339Nano),
	}
}

// AlertData is the wire form of a triggered alert.
type AlertData struct {
	AlertID        int64   `json:"alert_id"`
	GuildID        int64   `json:"guild_id"`
	UserID         int64   `json:"user_id"`
	ChannelID      int64   `json:"channel_id"`
	Symbol         string  `json:"symbol"`
	Condition      string  `json:"condition"`
	TargetPrice    float64 `json:"target_price"`
	TriggeredPrice float64 `json:"triggered_price"`
	TriggeredAt    string  `json:"triggered_at"`
}

func newAlertData(t model.TriggeredAlert) AlertData {
	return AlertData{
		AlertID:        t.Alert.ID,
		GuildID:        t.Alert.GuildID,
		UserID:         t.Alert.UserID,
		ChannelID:      t.Alert.ChannelID,
		Symbol:         strings.ToUpper(t.Alert.Symbol),
		Condition:      string(t.Alert.Condition),
		TargetPrice:    t.Alert.TargetPrice,
		TriggeredPrice: t.TriggeredPrice,
		TriggeredAt:    t.TriggeredAt.Format(time.RFC3339Nano),
	}
}

type snapshotMessage struct {
	Type string               `json:"type"`
	Data map[string]PriceData `json:"data"`
}

type priceMessage struct {
	Type string    `json:"type"`
	Data PriceData `json:"data"`
}

type subscribedMessage struct {
	Type    string `json:"type"`
	Symbols any    `json:"symbols"`
}

type pongMessage struct {
	Type string `json:"type"`
}

type alertMessage struct {
	Type string    `json:"type"`
	Data AlertData `json:"data"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
