package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultReconnectDelay   = 5 * time.Second
	DefaultMaxSpreadPercent = 1.0
	DefaultThresholdLevel   = 5
	DefaultCandleSeriesCap  = 500
	DefaultPriceHistoryCap  = 1000
	DefaultPort             = 8080
)

// ErrMissingAPIKey is returned when no upstream API key is configured
// and the simulated feed is not enabled. Fatal at startup only.
var ErrMissingAPIKey = errors.New("TIINGO_API_KEY is not set")

// Config holds all externally supplied settings for the service.
type Config struct {
	// TiingoAPIKey authenticates the upstream quote subscription.
	TiingoAPIKey string

	// ThresholdLevel is the upstream noise filter passed in the
	// subscription handshake.
	ThresholdLevel int

	// ReconnectDelay is the fixed wait between upstream reconnect
	// attempts.
	ReconnectDelay time.Duration

	// MaxSpreadPercent drops ticks whose |ask-bid|/bid exceeds this
	// percentage.
	MaxSpreadPercent float64

	// CandleSeriesCap bounds the closed-candle ring per symbol and
	// timeframe.
	CandleSeriesCap int

	// PriceHistoryCap bounds the per-symbol tick history ring.
	PriceHistoryCap int

	// Port is the HTTP listen port.
	Port int

	// SimulateFeed replaces the upstream connection with the synthetic
	// quote generator. Useful for local runs without an API key.
	SimulateFeed bool
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	// Missing .env is not an error; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		TiingoAPIKey:     os.Getenv("TIINGO_API_KEY"),
		ThresholdLevel:   intEnv("THRESHOLD_LEVEL", DefaultThresholdLevel),
		ReconnectDelay:   durationEnv("RECONNECT_DELAY_SECONDS", DefaultReconnectDelay),
		MaxSpreadPercent: floatEnv("MAX_SPREAD_PERCENT", DefaultMaxSpreadPercent),
		CandleSeriesCap:  intEnv("CANDLE_SERIES_CAP", DefaultCandleSeriesCap),
		PriceHistoryCap:  intEnv("PRICE_HISTORY_CAP", DefaultPriceHistoryCap),
		Port:             intEnv("PORT", DefaultPort),
		SimulateFeed:     boolEnv("SIMULATE_FEED", false),
	}

	if cfg.TiingoAPIKey == "" && !cfg.SimulateFeed {
		return nil, ErrMissingAPIKey
	}

	return cfg, nil
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func floatEnv(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func boolEnv(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
