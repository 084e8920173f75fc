package alert

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"forexstream/internal/model"
)

// Engine owns the alert table. Alerts move through a single transition,
// Active -> Triggered, fired from inside tick processing. Cross
// detection keeps the previous mid price per symbol; Evaluate is only
// called from the tick pipeline (single writer per symbol), CRUD comes
// from the facade under the same mutex.
type Engine struct {
	logger *slog.Logger

	mu           sync.Mutex
	alerts       map[int64]*model.Alert
	nextID       int64
	previousMids map[string]float64
}

// NewEngine creates an empty alert engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:       logger,
		alerts:       make(map[int64]*model.Alert),
		nextID:       1,
		previousMids: make(map[string]float64),
	}
}

// Add creates a new active alert and returns a copy of it. IDs are
// monotonic and never reused.
func (e *Engine) Add(guildID, userID, channelID int64, symbol string, condition model.AlertCondition, targetPrice float64) model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := &model.Alert{
		ID:          e.nextID,
		GuildID:     guildID,
		UserID:      userID,
		ChannelID:   channelID,
		Symbol:      strings.ToLower(symbol),
		Condition:   condition,
		TargetPrice: targetPrice,
		CreatedAt:   time.Now().UTC(),
		Active:      true,
	}
	e.alerts[a.ID] = a
	e.nextID++

	e.logger.Info("alert created",
		"alert_id", a.ID, "symbol", a.Symbol, "condition", a.Condition, "target", a.TargetPrice)

	return *a
}

// Remove deletes an alert by id and reports whether it existed.
func (e *Engine) Remove(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.alerts[id]; !ok {
		return false
	}
	delete(e.alerts, id)
	return true
}

// UserAlerts returns all active alerts owned by a user.
func (e *Engine) UserAlerts(userID int64) []model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := []model.Alert{}
	for _, a := range e.alerts {
		if a.UserID == userID && a.Active {
			out = append(out, *a)
		}
	}
	return out
}

// ActiveAlerts returns every alert still in the Active state.
func (e *Engine) ActiveAlerts() []model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := []model.Alert{}
	for _, a := range e.alerts {
		if a.Active {
			out = append(out, *a)
		}
	}
	return out
}

// Evaluate checks every active alert for the tick's symbol and fires the
// matching ones. A fired alert is atomically marked inactive with its
// trigger timestamp set; it is never evaluated again. The previous mid
// for the symbol is updated after evaluation, so CROSS conditions see
// the pre-tick value and never fire on a symbol's first tick.
func (e *Engine) Evaluate(tick model.Tick) []model.TriggeredAlert {
	symbol := strings.ToLower(tick.Symbol)

	e.mu.Lock()
	defer e.mu.Unlock()

	prev, hasPrev := e.previousMids[symbol]

	var fired []model.TriggeredAlert
	for _, a := range e.alerts {
		if !a.Active || a.Symbol != symbol {
			continue
		}

		if !shouldTrigger(a, tick.Mid, prev, hasPrev) {
			continue
		}

		now := time.Now().UTC()
		a.Active = false
		a.TriggeredAt = &now

		fired = append(fired, model.TriggeredAlert{
			Alert:          *a,
			TriggeredPrice: tick.Mid,
			TriggeredAt:    now,
		})

		e.logger.Info("alert triggered",
			"alert_id", a.ID, "symbol", a.Symbol, "condition", a.Condition,
			"target", a.TargetPrice, "price", tick.Mid)
	}

	e.previousMids[symbol] = tick.Mid

	return fired
}

func shouldTrigger(a *model.Alert, mid, prev float64, hasPrev bool) bool {
	switch a.Condition {
	case model.AlertAbove:
		return mid >= a.TargetPrice
	case model.AlertBelow:
		return mid <= a.TargetPrice
	case model.AlertCrossUp:
		return hasPrev && prev < a.TargetPrice && a.TargetPrice <= mid
	case model.AlertCrossDown:
		return hasPrev && prev > a.TargetPrice && a.TargetPrice >= mid
	}
	return false
}
