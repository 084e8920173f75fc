package model

import (
	"strings"
	"time"
)

// Timeframe identifies a candle bucket width.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
)

// Timeframes lists every supported timeframe in ascending bucket width.
var Timeframes = []Timeframe{Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h}

// Duration returns the bucket width of the timeframe, or 0 for an
// unknown timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool {
	return tf.Duration() > 0
}

// Tick is a single bid/ask quote update for a symbol. Ticks are
// ephemeral: they feed aggregation and alerting but are never persisted.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Mid       float64   `json:"mid"`
	Timestamp time.Time `json:"timestamp"`
}

// Spread returns the raw ask-bid spread.
func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// SpreadPips converts the spread into pips. The pip factor depends on
// the quote currency: JPY pairs use 100, gold uses 10, everything else
// uses 10000.
func (t Tick) SpreadPips() float64 {
	upper := strings.ToUpper(t.Symbol)
	multiplier := 10000.0
	if strings.Contains(upper, "JPY") {
		multiplier = 100.0
	} else if strings.Contains(upper, "XAU") {
		multiplier = 10.0
	}
	return t.Spread() * multiplier
}

// Candle is an OHLC summary of mid-price movement within one time
// bucket. Closed candles are immutable.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume,omitempty"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// BodySize returns the absolute open-to-close distance.
func (c Candle) BodySize() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// WickUpper returns the distance from the body top to the high.
func (c Candle) WickUpper() float64 {
	if c.Open > c.Close {
		return c.High - c.Open
	}
	return c.High - c.Close
}

// WickLower returns the distance from the body bottom to the low.
func (c Candle) WickLower() float64 {
	if c.Open < c.Close {
		return c.Open - c.Low
	}
	return c.Close - c.Low
}

// AlertCondition is the rule type of a price alert.
type AlertCondition string

const (
	AlertAbove     AlertCondition = "above"
	AlertBelow     AlertCondition = "below"
	AlertCrossUp   AlertCondition = "cross_up"
	AlertCrossDown AlertCondition = "cross_down"
)

// Valid reports whether c is a known alert condition.
func (c AlertCondition) Valid() bool {
	switch c {
	case AlertAbove, AlertBelow, AlertCrossUp, AlertCrossDown:
		return true
	}
	return false
}

// Alert is a user-defined price alert. The owner identifiers are opaque
// to the engine; they are carried through to the triggered event.
type Alert struct {
	ID          int64          `json:"id"`
	GuildID     int64          `json:"guild_id"`
	UserID      int64          `json:"user_id"`
	ChannelID   int64          `json:"channel_id"`
	Symbol      string         `json:"symbol"`
	Condition   AlertCondition `json:"condition"`
	TargetPrice float64        `json:"target_price"`
	CreatedAt   time.Time      `json:"created_at"`
	TriggeredAt *time.Time     `json:"triggered_at,omitempty"`
	Active      bool           `json:"is_active"`
}

// TriggeredAlert is emitted exactly once when an alert fires.
type TriggeredAlert struct {
	Alert          Alert     `json:"alert"`
	TriggeredPrice float64   `json:"triggered_price"`
	TriggeredAt    time.Time `json:"triggered_at"`
}

// Indicators is a technical-analysis snapshot for one symbol, computed
// fresh on every query. Nil fields mean the candle series was too short
// for that indicator.
type Indicators struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`

	SMA20  *float64 `json:"sma_20,omitempty"`
	SMA50  *float64 `json:"sma_50,omitempty"`
	SMA200 *float64 `json:"sma_200,omitempty"`
	EMA12  *float64 `json:"ema_12,omitempty"`
	EMA26  *float64 `json:"ema_26,omitempty"`

	RSI14         *float64 `json:"rsi_14,omitempty"`
	MACD          *float64 `json:"macd,omitempty"`
	MACDSignal    *float64 `json:"macd_signal,omitempty"`
	MACDHistogram *float64 `json:"macd_histogram,omitempty"`

	ATR14           *float64 `json:"atr_14,omitempty"`
	BollingerUpper  *float64 `json:"bollinger_upper,omitempty"`
	BollingerMiddle *float64 `json:"bollinger_middle,omitempty"`
	BollingerLower  *float64 `json:"bollinger_lower,omitempty"`

	ADX *float64 `json:"adx,omitempty"`
}

// TrendDirection classifies the SMA20/SMA50 relationship. Neutral also
// covers the case where either average is undefined.
func (i Indicators) TrendDirection() string {
	if i.SMA20 != nil && i.SMA50 != nil {
		if *i.SMA20 > *i.SMA50 {
			return "bullish"
		}
		if *i.SMA20 < *i.SMA50 {
			return "bearish"
		}
	}
	return "neutral"
}

// RSISignal classifies RSI against the 70/30 overbought/oversold
// thresholds.
func (i Indicators) RSISignal() string {
	if i.RSI14 != nil {
		if *i.RSI14 >= 70 {
			return "overbought"
		}
		if *i.RSI14 <= 30 {
			return "oversold"
		}
	}
	return "neutral"
}
