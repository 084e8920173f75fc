package candle

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"forexstream/internal/model"
)

// Aggregator owns every candle series. It folds each incoming tick into
// one in-progress candle per (symbol, timeframe) and appends closed
// candles to a capped FIFO series. Apply is only ever called from the
// tick-processing pipeline (single writer); queries take a read lock.
type Aggregator struct {
	seriesCap int
	logger    *slog.Logger

	mu      sync.RWMutex
	current map[string]map[model.Timeframe]*model.Candle
	closed  map[string]map[model.Timeframe][]model.Candle
}

// New creates an aggregator whose closed series are capped at seriesCap
// candles per symbol and timeframe.
func New(seriesCap int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		seriesCap: seriesCap,
		logger:    logger,
		current:   make(map[string]map[model.Timeframe]*model.Candle),
		closed:    make(map[string]map[model.Timeframe][]model.Candle),
	}
}

// Apply folds a tick into the in-progress candle of every timeframe.
// A tick whose bucket start is strictly later than the in-progress
// candle's closes that candle and opens a new one. A late tick (earlier
// bucket) is folded into the in-progress candle as a best-effort; the
// upstream feed is near-monotonic so no backfill is attempted.
func (a *Aggregator) Apply(tick model.Tick) {
	symbol := strings.ToLower(tick.Symbol)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current[symbol] == nil {
		a.current[symbol] = make(map[model.Timeframe]*model.Candle)
		a.closed[symbol] = make(map[model.Timeframe][]model.Candle)
	}

	for _, tf := range model.Timeframes {
		bucketStart := tick.Timestamp.Truncate(tf.Duration())

		cur := a.current[symbol][tf]
		if cur == nil {
			a.current[symbol][tf] = a.openCandle(symbol, tf, bucketStart, tick.Mid)
			continue
		}

		if bucketStart.After(cur.Timestamp) {
			a.appendClosed(symbol, tf, *cur)
			a.current[symbol][tf] = a.openCandle(symbol, tf, bucketStart, tick.Mid)
			continue
		}

		if tick.Mid > cur.High {
			cur.High = tick.Mid
		}
		if tick.Mid < cur.Low {
			cur.Low = tick.Mid
		}
		cur.Close = tick.Mid
	}
}

func (a *Aggregator) openCandle(symbol string, tf model.Timeframe, bucketStart time.Time, mid float64) *model.Candle {
	return &model.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		Timestamp: bucketStart,
		Open:      mid,
		High:      mid,
		Low:       mid,
		Close:     mid,
	}
}

// Candles returns up to limit most recent closed candles for the symbol
// and timeframe, oldest first. The in-progress candle is never included.
// limit <= 0 returns the whole series.
func (a *Aggregator) Candles(symbol string, tf model.Timeframe, limit int) []model.Candle {
	symbol = strings.ToLower(symbol)

	a.mu.RLock()
	defer a.mu.RUnlock()

	series := a.closed[symbol][tf]
	if len(series) == 0 {
		return []model.Candle{}
	}

	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}

	// Copy so callers can't mutate the owned series.
	out := make([]model.Candle, len(series))
	copy(out, series)
	return out
}

// Current returns a copy of the in-progress candle, if any.
func (a *Aggregator) Current(symbol string, tf model.Timeframe) (model.Candle, bool) {
	symbol = strings.ToLower(symbol)

	a.mu.RLock()
	defer a.mu.RUnlock()

	cur := a.current[symbol][tf]
	if cur == nil {
		return model.Candle{}, false
	}
	return *cur, true
}

func (a *Aggregator) appendClosed(symbol string, tf model.Timeframe, c model.Candle) {
	series := append(a.closed[symbol][tf], c)
	if len(series) > a.seriesCap {
		evicted := len(series) - a.seriesCap
		series = series[evicted:]
		a.logger.Debug("evicted closed candles",
			"symbol", symbol, "timeframe", tf, "evicted", evicted, "cap", a.seriesCap)
	}
	a.closed[symbol][tf] = series
}
