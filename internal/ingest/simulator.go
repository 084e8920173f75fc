package ingest

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"forexstream/internal/model"
)

// SimulatorConfig holds configuration for the synthetic quote source.
type SimulatorConfig struct {
	Symbols    []string
	BasePrices map[string]float64
	Interval   time.Duration
	Volatility float64
	HistoryCap int
}

// DefaultSimulatorConfig returns a sensible default configuration.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Symbols: []string{"eurusd", "gbpusd", "usdjpy"},
		BasePrices: map[string]float64{
			"eurusd": 1.1000,
			"gbpusd": 1.2700,
			"usdjpy": 148.50,
		},
		Interval:   500 * time.Millisecond,
		Volatility: 0.0005,
	}
}

// Simulator generates a synthetic quote stream with the same contract
// as Client: it fills the price book and emits ticks on a channel.
// Used for local runs without an upstream API key.
type Simulator struct {
	config SimulatorConfig
	logger *slog.Logger
	book   *Book
	ticks  chan model.Tick
	prices map[string]float64
	rng    *rand.Rand
}

// NewSimulator creates a simulator with the given config.
func NewSimulator(config SimulatorConfig, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}

	// Fill unset fields from the defaults without clobbering the rest
	// of the caller's config.
	defaults := DefaultSimulatorConfig()
	if len(config.Symbols) == 0 {
		config.Symbols = defaults.Symbols
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Volatility <= 0 {
		config.Volatility = defaults.Volatility
	}

	prices := make(map[string]float64, len(config.Symbols))
	for _, symbol := range config.Symbols {
		price, ok := config.BasePrices[symbol]
		if !ok {
			if price, ok = defaults.BasePrices[symbol]; !ok {
				price = 1.0
			}
		}
		prices[symbol] = price
	}

	return &Simulator{
		config: config,
		logger: logger,
		book:   NewBook(config.HistoryCap),
		ticks:  make(chan model.Tick, 1024),
		prices: prices,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Book returns the price book owned by the simulator.
func (s *Simulator) Book() *Book {
	return s.book
}

// Ticks returns the channel of generated ticks.
func (s *Simulator) Ticks() <-chan model.Tick {
	return s.ticks
}

// State always reports streaming; the simulator has no transport.
func (s *Simulator) State() State {
	return StateStreaming
}

// Start emits random-walk quotes until ctx is cancelled.
func (s *Simulator) Start(ctx context.Context) {
	defer close(s.ticks)

	s.logger.Info("simulated quote feed started", "symbols", s.config.Symbols)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulated quote feed stopped")
			return
		case <-ticker.C:
			for _, symbol := range s.config.Symbols {
				tick := s.nextTick(symbol)
				s.book.Update(tick)
				select {
				case s.ticks <- tick:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (s *Simulator) nextTick(symbol string) model.Tick {
	price := s.prices[symbol]

	// Random walk around the base price.
	price += price * s.config.Volatility * (s.rng.Float64()*2 - 1)
	s.prices[symbol] = price

	// Spread of roughly a pip.
	halfSpread := price * 0.00005
	bid := price - halfSpread
	ask := price + halfSpread

	return model.Tick{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Mid:       (bid + ask) / 2,
		Timestamp: time.Now().UTC(),
	}
}
