// Package indicator computes technical-analysis values over closed
// candle series. Every function is pure and stateless: it either
// returns a value or reports that the series is too short.
package indicator

import (
	"math"
	"time"

	"forexstream/internal/model"
)

// Default periods used by Analyze.
const (
	RSIPeriod        = 14
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
	BollingerPeriod  = 20
	BollingerStdDev  = 2.0
	ATRPeriod        = 14
	ADXPeriod        = 14
)

// SMA returns the simple moving average of the last period closes.
func SMA(closes []float64, period int) (float64, bool) {
	if len(closes) < period || period <= 0 {
		return 0, false
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), true
}

// EMA returns the exponential moving average over the whole series,
// seeded with the first close and using multiplier 2/(period+1).
func EMA(closes []float64, period int) (float64, bool) {
	if len(closes) < period || period <= 0 {
		return 0, false
	}
	multiplier := 2.0 / float64(period+1)
	ema := closes[0]
	for _, c := range closes[1:] {
		ema = c*multiplier + ema*(1-multiplier)
	}
	return ema, true
}

// emaSeries returns the running EMA at every index of the series.
func emaSeries(data []float64, period int) []float64 {
	out := make([]float64, 0, len(data))
	out = append(out, data[0])
	multiplier := 2.0 / float64(period+1)
	for _, v := range data[1:] {
		out = append(out, v*multiplier+out[len(out)-1]*(1-multiplier))
	}
	return out
}

// RSI returns the relative strength index over the last period deltas.
// When the average loss is zero the result saturates at 100.
func RSI(closes []float64, period int) (float64, bool) {
	if len(closes) < period+1 || period <= 0 {
		return 0, false
	}

	changes := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes = append(changes, closes[i]-closes[i-1])
	}

	var avgGain, avgLoss float64
	for _, c := range changes[len(changes)-period:] {
		if c > 0 {
			avgGain += c
		} else {
			avgLoss -= c
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100, true
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// MACD returns the MACD line, signal line and histogram. The MACD line
// is EMA(fast)-EMA(slow) with the fast series aligned from index
// slow-fast; the signal is the EMA of the MACD line.
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist float64, ok bool) {
	if len(closes) < slow+signal {
		return 0, 0, 0, false
	}

	emaFast := emaSeries(closes, fast)
	emaSlow := emaSeries(closes, slow)

	macdLine := make([]float64, 0, len(emaSlow))
	for i, s := range emaSlow {
		macdLine = append(macdLine, emaFast[slow-fast+i]-s)
	}

	if len(macdLine) < signal {
		return 0, 0, 0, false
	}

	signalLine := emaSeries(macdLine, signal)

	macd = macdLine[len(macdLine)-1]
	sig = signalLine[len(signalLine)-1]
	return macd, sig, macd - sig, true
}

// Bollinger returns the upper, middle and lower bands: an SMA middle
// with bands at stdDev population standard deviations.
func Bollinger(closes []float64, period int, stdDev float64) (upper, middle, lower float64, ok bool) {
	if len(closes) < period || period <= 0 {
		return 0, 0, 0, false
	}

	recent := closes[len(closes)-period:]
	middle, _ = SMA(closes, period)

	variance := 0.0
	for _, c := range recent {
		d := c - middle
		variance += d * d
	}
	variance /= float64(period)
	std := math.Sqrt(variance)

	return middle + stdDev*std, middle, middle - stdDev*std, true
}

// ATR returns the mean true range of the last period candles.
func ATR(candles []model.Candle, period int) (float64, bool) {
	if len(candles) < period+1 || period <= 0 {
		return 0, false
	}

	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trs = append(trs, trueRange(candles[i], candles[i-1].Close))
	}

	sum := 0.0
	for _, tr := range trs[len(trs)-period:] {
		sum += tr
	}
	return sum / float64(period), true
}

// ADX returns the average directional index using Wilder smoothing of
// +DM, -DM and TR. Undefined when fewer than 2×period candles exist or
// the smoothed true range is zero.
func ADX(candles []model.Candle, period int) (float64, bool) {
	if len(candles) < period*2 || period <= 0 {
		return 0, false
	}

	var plusDM, minusDM, trs []float64
	for i := 1; i < len(candles); i++ {
		cur, prev := candles[i], candles[i-1]

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low

		if upMove > downMove && upMove > 0 {
			plusDM = append(plusDM, upMove)
		} else {
			plusDM = append(plusDM, 0)
		}
		if downMove > upMove && downMove > 0 {
			minusDM = append(minusDM, downMove)
		} else {
			minusDM = append(minusDM, 0)
		}

		trs = append(trs, trueRange(cur, prev.Close))
	}

	if len(trs) < period {
		return 0, false
	}

	var atr, plusDI, minusDI float64
	for i := 0; i < period; i++ {
		atr += trs[i]
		plusDI += plusDM[i]
		minusDI += minusDM[i]
	}

	for i := period; i < len(trs); i++ {
		atr = atr - atr/float64(period) + trs[i]
		plusDI = plusDI - plusDI/float64(period) + plusDM[i]
		minusDI = minusDI - minusDI/float64(period) + minusDM[i]
	}

	if atr == 0 {
		return 0, false
	}

	plusRatio := plusDI / atr * 100
	minusRatio := minusDI / atr * 100

	diSum := plusRatio + minusRatio
	if diSum == 0 {
		return 0, false
	}

	return math.Abs(plusRatio-minusRatio) / diSum * 100, true
}

func trueRange(c model.Candle, prevClose float64) float64 {
	tr := c.High - c.Low
	if hc := math.Abs(c.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(c.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

// Analyze computes the full indicator snapshot for one candle slice.
func Analyze(candles []model.Candle, symbol string) model.Indicators {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	snap := model.Indicators{
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
	}

	snap.SMA20 = optional(SMA(closes, 20))
	snap.SMA50 = optional(SMA(closes, 50))
	snap.SMA200 = optional(SMA(closes, 200))
	snap.EMA12 = optional(EMA(closes, 12))
	snap.EMA26 = optional(EMA(closes, 26))
	snap.RSI14 = optional(RSI(closes, RSIPeriod))

	if macd, sig, hist, ok := MACD(closes, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod); ok {
		snap.MACD = &macd
		snap.MACDSignal = &sig
		snap.MACDHistogram = &hist
	}

	if upper, middle, lower, ok := Bollinger(closes, BollingerPeriod, BollingerStdDev); ok {
		snap.BollingerUpper = &upper
		snap.BollingerMiddle = &middle
		snap.BollingerLower = &lower
	}

	snap.ATR14 = optional(ATR(candles, ATRPeriod))
	snap.ADX = optional(ADX(candles, ADXPeriod))

	return snap
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
