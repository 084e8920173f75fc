// Package service composes the quote source, candle aggregator, alert
// engine and event buses behind one facade. The facade is constructed
// explicitly and injected into the transport layer; there is no global
// instance.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"forexstream/internal/alert"
	"forexstream/internal/bus"
	"forexstream/internal/candle"
	"forexstream/internal/indicator"
	"forexstream/internal/ingest"
	"forexstream/internal/model"
)

// Query errors returned to callers; none of them ever crashes the
// pipeline.
var (
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	ErrInvalidCondition = errors.New("invalid alert condition")
	ErrInsufficientData = errors.New("insufficient candle data")
)

// indicatorLookback is how many candles Analyze receives; SMA200 needs
// the most history of all indicators.
const indicatorLookback = 250

// minIndicatorCandles is the floor below which no snapshot is computed.
const minIndicatorCandles = 20

// QuoteSource is the upstream feed contract shared by the live client
// and the simulator.
type QuoteSource interface {
	Start(ctx context.Context)
	Ticks() <-chan model.Tick
	Book() *ingest.Book
	State() ingest.State
}

// Service is the forex streaming facade.
type Service struct {
	source     QuoteSource
	aggregator *candle.Aggregator
	alerts     *alert.Engine
	logger     *slog.Logger

	tickBus  *bus.Bus[model.Tick]
	alertBus *bus.Bus[model.TriggeredAlert]
}

// New wires the facade together. The buses are owned by the service and
// closed when the pipeline stops.
func New(source QuoteSource, aggregator *candle.Aggregator, alerts *alert.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:     source,
		aggregator: aggregator,
		alerts:     alerts,
		logger:     logger,
		tickBus:    bus.New[model.Tick](256, logger),
		alertBus:   bus.New[model.TriggeredAlert](64, logger),
	}
}

// Start launches the quote source and the tick pipeline. It returns
// immediately; both stop when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.source.Start(ctx)
	go s.run(ctx)
}

// run is the single-writer tick pipeline: aggregate, evaluate alerts,
// then fan out. Ticks for one symbol are always processed in arrival
// order because this loop is the only consumer of the source channel.
func (s *Service) run(ctx context.Context) {
	defer s.tickBus.Close()
	defer s.alertBus.Close()

	s.logger.Info("tick pipeline started")
	defer s.logger.Info("tick pipeline stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-s.source.Ticks():
			if !ok {
				return
			}

			s.aggregator.Apply(tick)

			for _, triggered := range s.alerts.Evaluate(tick) {
				s.alertBus.Publish(triggered)
			}

			s.tickBus.Publish(tick)
		}
	}
}

// SubscribeTicks returns a bounded channel of processed ticks plus an
// unsubscribe function.
func (s *Service) SubscribeTicks() (<-chan model.Tick, func()) {
	return s.tickBus.Subscribe()
}

// SubscribeAlerts returns a bounded channel of triggered alerts plus an
// unsubscribe function.
func (s *Service) SubscribeAlerts() (<-chan model.TriggeredAlert, func()) {
	return s.alertBus.Subscribe()
}

// Book exposes the price book for the subscription hub's snapshot and
// get_price requests.
func (s *Service) Book() *ingest.Book {
	return s.source.Book()
}

// SourceState reports the upstream connection state.
func (s *Service) SourceState() string {
	return s.source.State().String()
}

// GetPrice returns the last known price for a symbol.
func (s *Service) GetPrice(symbol string) (model.Tick, error) {
	tick, ok := s.source.Book().Price(symbol)
	if !ok {
		return model.Tick{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return tick, nil
}

// GetAllPrices returns the last known price for every tracked symbol.
func (s *Service) GetAllPrices() map[string]model.Tick {
	return s.source.Book().AllPrices()
}

// GetOHLC returns up to limit closed candles, oldest first.
func (s *Service) GetOHLC(symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error) {
	if !timeframe.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeframe, timeframe)
	}
	return s.aggregator.Candles(symbol, timeframe, limit), nil
}

// GetPriceHistory returns the ticks recorded within the last minutes.
func (s *Service) GetPriceHistory(symbol string, minutes int) []model.Tick {
	return s.source.Book().History(symbol, minutes)
}

// GetTechnicalIndicators computes a fresh indicator snapshot from the
// closed candles of the requested timeframe. It returns
// ErrInsufficientData until enough candles have closed.
func (s *Service) GetTechnicalIndicators(symbol string, timeframe model.Timeframe) (model.Indicators, error) {
	if !timeframe.Valid() {
		return model.Indicators{}, fmt.Errorf("%w: %s", ErrInvalidTimeframe, timeframe)
	}

	candles := s.aggregator.Candles(symbol, timeframe, indicatorLookback)
	if len(candles) < minIndicatorCandles {
		return model.Indicators{}, fmt.Errorf("%w: %s %s has %d closed candles, need %d",
			ErrInsufficientData, symbol, timeframe, len(candles), minIndicatorCandles)
	}

	return indicator.Analyze(candles, symbol), nil
}

// ChartData is the extraction consumed by the external chart renderer:
// the candle window plus the moving-average overlays aligned to it.
// Overlay entries are nil until the corresponding average is defined.
type ChartData struct {
	Symbol    string          `json:"symbol"`
	Timeframe model.Timeframe `json:"timeframe"`
	Candles   []model.Candle  `json:"candles"`
	SMA20     []*float64      `json:"sma_20,omitempty"`
	SMA50     []*float64      `json:"sma_50,omitempty"`
}

// GetChartData assembles chart data for a symbol. includeMA adds the
// SMA20/SMA50 overlay series.
func (s *Service) GetChartData(symbol string, timeframe model.Timeframe, limit int, includeMA bool) (ChartData, error) {
	candles, err := s.GetOHLC(symbol, timeframe, limit)
	if err != nil {
		return ChartData{}, err
	}
	if len(candles) == 0 {
		return ChartData{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	data := ChartData{Symbol: symbol, Timeframe: timeframe, Candles: candles}
	if !includeMA {
		return data, nil
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	data.SMA20 = rollingSMA(closes, 20)
	data.SMA50 = rollingSMA(closes, 50)
	return data, nil
}

// rollingSMA returns the SMA at every index, nil where undefined.
func rollingSMA(closes []float64, period int) []*float64 {
	out := make([]*float64, len(closes))
	for i := range closes {
		if v, ok := indicator.SMA(closes[:i+1], period); ok {
			sma := v
			out[i] = &sma
		}
	}
	return out
}

// AddAlert validates and registers a new price alert. The symbol must
// have at least one known price.
func (s *Service) AddAlert(guildID, userID, channelID int64, symbol string, condition model.AlertCondition, targetPrice float64) (model.Alert, error) {
	if !condition.Valid() {
		return model.Alert{}, fmt.Errorf("%w: %s", ErrInvalidCondition, condition)
	}
	if _, ok := s.source.Book().Price(symbol); !ok {
		return model.Alert{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return s.alerts.Add(guildID, userID, channelID, symbol, condition, targetPrice), nil
}

// RemoveAlert deletes an alert and reports whether it existed.
func (s *Service) RemoveAlert(id int64) bool {
	return s.alerts.Remove(id)
}

// GetUserAlerts returns the active alerts owned by a user.
func (s *Service) GetUserAlerts(userID int64) []model.Alert {
	return s.alerts.UserAlerts(userID)
}

// GetActiveAlerts returns every active alert.
func (s *Service) GetActiveAlerts() []model.Alert {
	return s.alerts.ActiveAlerts()
}
