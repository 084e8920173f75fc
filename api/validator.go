package api

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"forexstream/internal/model"
)

// Validator handles request validation separate from HTTP concerns.
type Validator struct {
	symbolRegex *regexp.Regexp
}

var (
	validatorInstance *Validator
	validatorOnce     sync.Once
)

// GetValidator returns the singleton validator instance.
func GetValidator() *Validator {
	validatorOnce.Do(func() {
		validatorInstance = &Validator{
			// Currency pairs are two concatenated 3-4 letter codes,
			// e.g. eurusd, usdjpy, xauusd.
			symbolRegex: regexp.MustCompile(`^[a-zA-Z]{6,8}$`),
		}
	})
	return validatorInstance
}

// ValidateSymbol sanitizes and validates a currency-pair symbol,
// returning its canonical lowercase form.
func (v *Validator) ValidateSymbol(symbol string) (string, error) {
	symbol = v.sanitizeInput(symbol)
	if symbol == "" {
		return "", errors.New("symbol parameter is required")
	}
	if !v.symbolRegex.MatchString(symbol) {
		return "", errors.New("symbol must be a 6-8 letter currency pair, e.g. eurusd")
	}
	return strings.ToLower(symbol), nil
}

// ValidateTimeframe validates a candle timeframe.
func (v *Validator) ValidateTimeframe(raw string) (model.Timeframe, error) {
	raw = v.sanitizeInput(raw)
	if raw == "" {
		raw = DefaultTimeframe
	}

	tf := model.Timeframe(strings.ToLower(raw))
	if !tf.Valid() {
		return "", fmt.Errorf("invalid timeframe '%s'. Supported values: 1m, 5m, 15m, 1h, 4h", raw)
	}
	return tf, nil
}

// ValidateLimit validates the candle window size. An empty value falls
// back to the given default.
func (v *Validator) ValidateLimit(raw string, fallback int) (int, error) {
	raw = v.sanitizeInput(raw)
	if raw == "" {
		return fallback, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be a valid number")
	}
	if limit < 1 || limit > 500 {
		return 0, errors.New("limit must be between 1 and 500")
	}
	return limit, nil
}

// ValidateMinutes validates a history window in minutes.
func (v *Validator) ValidateMinutes(raw string, fallback int) (int, error) {
	raw = v.sanitizeInput(raw)
	if raw == "" {
		return fallback, nil
	}

	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("minutes must be a valid number")
	}
	if minutes < 1 || minutes > 1440 {
		return 0, errors.New("minutes must be between 1 and 1440")
	}
	return minutes, nil
}

// ValidateCondition validates an alert condition.
func (v *Validator) ValidateCondition(raw string) (model.AlertCondition, error) {
	condition := model.AlertCondition(strings.ToLower(v.sanitizeInput(raw)))
	if !condition.Valid() {
		return "", fmt.Errorf("invalid condition '%s'. Supported values: above, below, cross_up, cross_down", raw)
	}
	return condition, nil
}

// sanitizeInput removes control characters and trims whitespace.
func (v *Validator) sanitizeInput(input string) string {
	input = strings.TrimSpace(input)

	input = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, input)

	// Limit length to prevent abuse.
	if len(input) > 100 {
		input = input[:100]
	}

	return input
}
