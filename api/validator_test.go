package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"forexstream/internal/model"
)

func TestValidateSymbol(t *testing.T) {
	v := GetValidator()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"lowercase pair", "eurusd", "eurusd", false},
		{"uppercase normalized", "EURUSD", "eurusd", false},
		{"mixed case", "EurUsd", "eurusd", false},
		{"whitespace trimmed", "  eurusd  ", "eurusd", false},
		{"eight letters", "xauusdst", "xauusdst", false},
		{"empty", "", "", true},
		{"too short", "eur", "", true},
		{"too long", "eurusdeurusd", "", true},
		{"digits rejected", "eur2usd", "", true},
		{"injection rejected", "eur;drop", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateSymbol(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTimeframe(t *testing.T) {
	v := GetValidator()

	got, err := v.ValidateTimeframe("")
	assert.NoError(t, err)
	assert.Equal(t, model.Timeframe(DefaultTimeframe), got)

	got, err = v.ValidateTimeframe("5M")
	assert.NoError(t, err)
	assert.Equal(t, model.Timeframe5m, got)

	_, err = v.ValidateTimeframe("2m")
	assert.Error(t, err)
}

func TestValidateLimit(t *testing.T) {
	v := GetValidator()

	got, err := v.ValidateLimit("", 100)
	assert.NoError(t, err)
	assert.Equal(t, 100, got)

	got, err = v.ValidateLimit("250", 100)
	assert.NoError(t, err)
	assert.Equal(t, 250, got)

	_, err = v.ValidateLimit("0", 100)
	assert.Error(t, err)

	_, err = v.ValidateLimit("501", 100)
	assert.Error(t, err)

	_, err = v.ValidateLimit("ten", 100)
	assert.Error(t, err)
}

func TestValidateMinutes(t *testing.T) {
	v := GetValidator()

	got, err := v.ValidateMinutes("", 60)
	assert.NoError(t, err)
	assert.Equal(t, 60, got)

	got, err = v.ValidateMinutes("1440", 60)
	assert.NoError(t, err)
	assert.Equal(t, 1440, got)

	_, err = v.ValidateMinutes("1441", 60)
	assert.Error(t, err)

	_, err = v.ValidateMinutes("-5", 60)
	assert.Error(t, err)
}

func TestValidateCondition(t *testing.T) {
	v := GetValidator()

	for _, raw := range []string{"above", "BELOW", "cross_up", "Cross_Down"} {
		got, err := v.ValidateCondition(raw)
		assert.NoError(t, err, raw)
		assert.True(t, got.Valid())
	}

	_, err := v.ValidateCondition("jumps")
	assert.Error(t, err)
}
