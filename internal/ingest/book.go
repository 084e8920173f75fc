package ingest

import (
	"strings"
	"sync"
	"time"

	"forexstream/internal/model"
)

// Book holds the last known price and a bounded tick history per
// symbol. It is written by the quote source and read by the facade.
type Book struct {
	historyCap int

	mu      sync.RWMutex
	prices  map[string]model.Tick
	history map[string][]model.Tick
}

// NewBook creates a price book whose per-symbol history keeps at most
// historyCap ticks.
func NewBook(historyCap int) *Book {
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &Book{
		historyCap: historyCap,
		prices:     make(map[string]model.Tick),
		history:    make(map[string][]model.Tick),
	}
}

// Update stores the tick as the symbol's last known price and appends
// it to the history ring, evicting the oldest entries beyond the cap.
func (b *Book) Update(tick model.Tick) {
	symbol := strings.ToLower(tick.Symbol)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.prices[symbol] = tick

	history := append(b.history[symbol], tick)
	if len(history) > b.historyCap {
		history = history[len(history)-b.historyCap:]
	}
	b.history[symbol] = history
}

// Price returns the last known price for a symbol.
func (b *Book) Price(symbol string) (model.Tick, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tick, ok := b.prices[strings.ToLower(symbol)]
	return tick, ok
}

// AllPrices returns a copy of the last known price for every symbol.
func (b *Book) AllPrices() map[string]model.Tick {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]model.Tick, len(b.prices))
	for symbol, tick := range b.prices {
		out[symbol] = tick
	}
	return out
}

// History returns the ticks recorded for a symbol within the last
// given number of minutes, oldest first.
func (b *Book) History(symbol string, minutes int) []model.Tick {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)

	out := []model.Tick{}
	for _, tick := range b.history[strings.ToLower(symbol)] {
		if tick.Timestamp.After(cutoff) {
			out = append(out, tick)
		}
	}
	return out
}
