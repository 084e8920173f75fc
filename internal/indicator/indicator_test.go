package indicator

import (
	"math"
	"testing"
	"time"

	"forexstream/internal/model"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func ascendingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func candlesFromCloses(closes []float64) []model.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			Symbol:    "eurusd",
			Timeframe: model.Timeframe1m,
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		period int
		want   float64
		wantOK bool
	}{
		{"too short", ascendingCloses(19), 20, 0, false},
		{"exact length", []float64{1, 2, 3}, 3, 2, true},
		{"uses trailing window", ascendingCloses(25), 20, 114.5, true},
		{"zero period", []float64{1, 2, 3}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SMA(tt.closes, tt.period)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !almostEqual(got, tt.want) {
				t.Errorf("SMA = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEMA(t *testing.T) {
	// Seeded with the first close, k = 2/(period+1) = 0.5:
	// 1 -> 1.5 -> 2.25.
	got, ok := EMA([]float64{1, 2, 3}, 3)
	if !ok {
		t.Fatal("expected EMA to be defined")
	}
	if !almostEqual(got, 2.25) {
		t.Errorf("EMA = %v, want 2.25", got)
	}

	if _, ok := EMA([]float64{1, 2}, 3); ok {
		t.Error("EMA should be undefined for a short series")
	}
}

func TestEMAWeighsRecentCloses(t *testing.T) {
	flat := append(ascendingCloses(30), 200)

	ema, _ := EMA(flat, 12)
	sma, _ := SMA(flat, 12)
	if ema <= sma {
		t.Errorf("EMA %v should react faster than SMA %v to the spike", ema, sma)
	}
}

func TestRSI(t *testing.T) {
	t.Run("all gains saturates at 100", func(t *testing.T) {
		got, ok := RSI(ascendingCloses(20), 14)
		if !ok {
			t.Fatal("expected RSI to be defined")
		}
		if got != 100 {
			t.Errorf("RSI = %v, want 100", got)
		}
	})

	t.Run("all losses is 0", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 200 - float64(i)
		}
		got, ok := RSI(closes, 14)
		if !ok {
			t.Fatal("expected RSI to be defined")
		}
		if !almostEqual(got, 0) {
			t.Errorf("RSI = %v, want 0", got)
		}
	})

	t.Run("needs period+1 closes", func(t *testing.T) {
		if _, ok := RSI(ascendingCloses(14), 14); ok {
			t.Error("RSI should be undefined with only period closes")
		}
		if _, ok := RSI(ascendingCloses(15), 14); !ok {
			t.Error("RSI should be defined with period+1 closes")
		}
	})

	t.Run("stays in range", func(t *testing.T) {
		closes := []float64{1.10, 1.12, 1.11, 1.13, 1.12, 1.14, 1.13, 1.15, 1.14, 1.16, 1.15, 1.17, 1.16, 1.18, 1.17, 1.19}
		got, ok := RSI(closes, 14)
		if !ok {
			t.Fatal("expected RSI to be defined")
		}
		if got < 0 || got > 100 {
			t.Errorf("RSI = %v, out of [0, 100]", got)
		}
	})
}

func TestMACD(t *testing.T) {
	if _, _, _, ok := MACD(ascendingCloses(34), 12, 26, 9); ok {
		t.Error("MACD should be undefined below slow+signal closes")
	}

	macd, sig, hist, ok := MACD(ascendingCloses(40), 12, 26, 9)
	if !ok {
		t.Fatal("expected MACD to be defined")
	}
	if macd <= 0 {
		t.Errorf("MACD line = %v, want positive in a steady uptrend", macd)
	}
	if !almostEqual(hist, macd-sig) {
		t.Errorf("histogram = %v, want macd-signal = %v", hist, macd-sig)
	}
}

func TestBollinger(t *testing.T) {
	t.Run("constant series collapses bands", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 1.1
		}
		upper, middle, lower, ok := Bollinger(closes, 20, 2)
		if !ok {
			t.Fatal("expected bands to be defined")
		}
		if !almostEqual(upper, 1.1) || !almostEqual(middle, 1.1) || !almostEqual(lower, 1.1) {
			t.Errorf("bands = (%v, %v, %v), want all 1.1", upper, middle, lower)
		}
	})

	t.Run("band ordering", func(t *testing.T) {
		upper, middle, lower, ok := Bollinger(ascendingCloses(25), 20, 2)
		if !ok {
			t.Fatal("expected bands to be defined")
		}
		if !(lower < middle && middle < upper) {
			t.Errorf("bands out of order: (%v, %v, %v)", upper, middle, lower)
		}
		if !almostEqual(middle, 114.5) {
			t.Errorf("middle band = %v, want SMA20 = 114.5", middle)
		}
		if !almostEqual(upper-middle, middle-lower) {
			t.Error("bands should be symmetric around the middle")
		}
	})

	t.Run("too short", func(t *testing.T) {
		if _, _, _, ok := Bollinger(ascendingCloses(19), 20, 2); ok {
			t.Error("bands should be undefined below the period")
		}
	})
}

func TestATR(t *testing.T) {
	// Every candle has range 2 and closes 1 above the previous close,
	// so each true range is max(2, 2, 0) = 2.
	candles := candlesFromCloses(ascendingCloses(20))

	got, ok := ATR(candles, 14)
	if !ok {
		t.Fatal("expected ATR to be defined")
	}
	if !almostEqual(got, 2) {
		t.Errorf("ATR = %v, want 2", got)
	}

	if _, ok := ATR(candles[:14], 14); ok {
		t.Error("ATR should be undefined with only period candles")
	}
}

func TestADX(t *testing.T) {
	candles := candlesFromCloses(ascendingCloses(40))

	got, ok := ADX(candles, 14)
	if !ok {
		t.Fatal("expected ADX to be defined")
	}
	if got < 0 || got > 100 {
		t.Errorf("ADX = %v, out of [0, 100]", got)
	}
	// A monotone uptrend is strongly directional.
	if got < 50 {
		t.Errorf("ADX = %v, want high value for a monotone trend", got)
	}

	if _, ok := ADX(candles[:27], 14); ok {
		t.Error("ADX should be undefined below 2x period candles")
	}
}

func TestADXFlatSeriesUndefined(t *testing.T) {
	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 1.1
	}
	candles := candlesFromCloses(flat)
	for i := range candles {
		candles[i].High = 1.1
		candles[i].Low = 1.1
		candles[i].Open = 1.1
	}

	if _, ok := ADX(candles, 14); ok {
		t.Error("ADX should be undefined when the smoothed true range is zero")
	}
}

func TestTrueRangeUsesGaps(t *testing.T) {
	c := model.Candle{High: 1.12, Low: 1.11}

	if got := trueRange(c, 1.115); !almostEqual(got, 0.01) {
		t.Errorf("in-range close: TR = %v, want 0.01", got)
	}
	if got := trueRange(c, 1.10); !almostEqual(got, 0.02) {
		t.Errorf("gap up: TR = %v, want 0.02", got)
	}
	if got := trueRange(c, 1.14); !almostEqual(got, 0.03) {
		t.Errorf("gap down: TR = %v, want 0.03", got)
	}
}

func TestAnalyze(t *testing.T) {
	t.Run("short series leaves fields nil", func(t *testing.T) {
		snap := Analyze(candlesFromCloses(ascendingCloses(25)), "eurusd")

		if snap.SMA20 == nil {
			t.Error("SMA20 should be defined with 25 candles")
		}
		if !almostEqual(*snap.SMA20, 114.5) {
			t.Errorf("SMA20 = %v, want 114.5", *snap.SMA20)
		}
		if snap.SMA50 != nil {
			t.Error("SMA50 should be nil with 25 candles")
		}
		if snap.SMA200 != nil {
			t.Error("SMA200 should be nil with 25 candles")
		}
		if snap.MACD != nil {
			t.Error("MACD should be nil below slow+signal candles")
		}
	})

	t.Run("long series fills everything but SMA200", func(t *testing.T) {
		snap := Analyze(candlesFromCloses(ascendingCloses(60)), "eurusd")

		for name, v := range map[string]*float64{
			"SMA20":           snap.SMA20,
			"SMA50":           snap.SMA50,
			"EMA12":           snap.EMA12,
			"EMA26":           snap.EMA26,
			"RSI14":           snap.RSI14,
			"MACD":            snap.MACD,
			"MACDSignal":      snap.MACDSignal,
			"MACDHistogram":   snap.MACDHistogram,
			"BollingerUpper":  snap.BollingerUpper,
			"BollingerMiddle": snap.BollingerMiddle,
			"BollingerLower":  snap.BollingerLower,
			"ATR14":           snap.ATR14,
			"ADX":             snap.ADX,
		} {
			if v == nil {
				t.Errorf("%s should be defined with 60 candles", name)
			}
		}
		if snap.SMA200 != nil {
			t.Error("SMA200 should be nil with 60 candles")
		}
		if snap.Symbol != "eurusd" {
			t.Errorf("symbol = %q, want eurusd", snap.Symbol)
		}
	})
}
