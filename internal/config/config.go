// Package config loads and validates the bot's runtime knobs from the
// environment, via a family of getEnv* helpers and godotenv for optional
// .env loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/perpgrid/gridbot/internal/errs"
)

// Config holds every knob the grid controller, risk gate, and exchange
// adapter need, plus the ambient ops knobs (port, back-off).
type Config struct {
	APIURL      string // api_url
	IdentityKey string // identity_key, base58
	Symbol      string // symbol
	MarketID    uint32 // market_id

	TotalOrders   int     // N
	WindowPercent float64 // W
	GridSpacing   float64 // g
	SafeGap       float64 // δ
	OrderSize     float64 // o
	MaxMultiplier float64 // k_max

	RSIMin            float64
	RSIMax            float64
	ADXTrendThreshold float64
	ADXStrongTrend    float64
	CooldownMinutes   int

	CycleIntervalSeconds int
	IndicatorSymbol      string
	IndicatorTimeframe   string

	// SessionTTLSeconds is the configurable session lifetime; the venue
	// doesn't document a fixed value so this defaults to one hour.
	SessionTTLSeconds int

	// Ops knobs.
	Port           int
	BackoffSeconds int
	FlattenOnExit  bool
}

// Load reads .env (if present, via godotenv) then populates Config from the
// process environment, applying defaults where a key is absent.
func Load() (Config, error) {
	_ = godotenv.Load() // missing .env is not an error; env vars may be set directly

	cfg := Config{
		APIURL:      getEnv("API_URL", ""),
		IdentityKey: getEnv("IDENTITY_KEY", ""),
		Symbol:      getEnv("SYMBOL", ""),
		MarketID:    uint32(getEnvInt("MARKET_ID", 0)),

		TotalOrders:   getEnvInt("TOTAL_ORDERS", 18),
		WindowPercent: getEnvFloat("WINDOW_PERCENT", 0.12),
		GridSpacing:   getEnvFloat("GRID_SPACING", 10),
		SafeGap:       getEnvFloat("SAFE_GAP", 5),
		OrderSize:     getEnvFloat("ORDER_SIZE", 0.001),
		MaxMultiplier: getEnvFloat("MAX_MULTIPLIER", 15),

		RSIMin:            getEnvFloat("RSI_MIN", 30),
		RSIMax:            getEnvFloat("RSI_MAX", 70),
		ADXTrendThreshold: getEnvFloat("ADX_TREND_THRESHOLD", 25),
		ADXStrongTrend:    getEnvFloat("ADX_STRONG_TREND", 30),
		CooldownMinutes:   getEnvInt("COOLDOWN_MINUTES", 15),

		CycleIntervalSeconds: getEnvInt("CYCLE_INTERVAL_SECONDS", 5),
		IndicatorSymbol:      getEnv("INDICATOR_SYMBOL", ""),
		IndicatorTimeframe:   getEnv("INDICATOR_TIMEFRAME", "1m"),

		SessionTTLSeconds: getEnvInt("SESSION_TTL_SECONDS", 3600),

		Port:           getEnvInt("PORT", 9090),
		BackoffSeconds: getEnvInt("BACKOFF_SECONDS", 60),
		FlattenOnExit:  getEnvBool("FLATTEN_ON_EXIT", false),
	}

	if cfg.IndicatorSymbol == "" {
		cfg.IndicatorSymbol = cfg.Symbol
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if c.APIURL == "" {
		missing = append(missing, "API_URL")
	}
	if c.IdentityKey == "" {
		missing = append(missing, "IDENTITY_KEY")
	}
	if c.Symbol == "" {
		missing = append(missing, "SYMBOL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required keys %s: %w", strings.Join(missing, ", "), errs.ErrConfigurationInvalid)
	}
	if c.TotalOrders <= 0 {
		return fmt.Errorf("config: TOTAL_ORDERS must be positive: %w", errs.ErrConfigurationInvalid)
	}
	if c.WindowPercent <= 0 || c.WindowPercent >= 1 {
		return fmt.Errorf("config: WINDOW_PERCENT must be in (0,1): %w", errs.ErrConfigurationInvalid)
	}
	if c.OrderSize <= 0 {
		return fmt.Errorf("config: ORDER_SIZE must be positive: %w", errs.ErrConfigurationInvalid)
	}
	if c.MaxMultiplier <= 0 {
		return fmt.Errorf("config: MAX_MULTIPLIER must be positive: %w", errs.ErrConfigurationInvalid)
	}
	if c.RSIMin >= c.RSIMax {
		return fmt.Errorf("config: RSI_MIN must be less than RSI_MAX: %w", errs.ErrConfigurationInvalid)
	}
	if c.ADXTrendThreshold >= c.ADXStrongTrend {
		return fmt.Errorf("config: ADX_TREND_THRESHOLD must be less than ADX_STRONG_TREND: %w", errs.ErrConfigurationInvalid)
	}
	if c.CycleIntervalSeconds <= 0 {
		return fmt.Errorf("config: CYCLE_INTERVAL_SECONDS must be positive: %w", errs.ErrConfigurationInvalid)
	}
	return nil
}

// SessionTTL is SessionTTLSeconds as a time.Duration.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// CycleInterval is CycleIntervalSeconds as a time.Duration.
func (c Config) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalSeconds) * time.Second
}

// Backoff is BackoffSeconds as a time.Duration.
func (c Config) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds) * time.Second
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getEnvAs reads key, trims it, and hands it to parse; an absent key or a
// parse failure both fall back to def.
func getEnvAs[T any](key string, def T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := parse(v)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvFloat(key string, def float64) float64 {
	return getEnvAs(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getEnvInt(key string, def int) int {
	return getEnvAs(key, def, strconv.Atoi)
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}
