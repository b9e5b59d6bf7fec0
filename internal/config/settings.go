// Package config implements the two-shape configuration system from
// spec.md §4.1: an immutable boot Settings loaded from the environment, and
// a mutable RuntimeConfig subset with per-parameter validation, atomic
// persistence, and change callbacks. Grounded on the teacher's
// internal/config/config.go load order (".env then environment; settings
// store takes precedence for live-mutable values") and its validate-once-
// at-boot discipline.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings is the immutable boot configuration (spec.md §4.1, §6).
type Settings struct {
	TradingMode      string // "paper" or "live"
	DataDir          string
	APIKey           string
	APISecret        string
	PaperStartBalance float64
	MaxTradeUSD       float64
	DailyMaxLossUSD   float64
	WatchCoins        []string
	PaperResetState   bool

	// Position sizing bounds (validated: min <= base <= max).
	PositionMinPct float64
	PositionBasePct float64
	PositionMaxPct  float64

	PortfolioMaxExposurePct float64
	MinRRRatio              float64
	MinPositionUSD          float64
	DustThresholdUSD        float64

	EntryScoreMin float64
	ScoutScoreMin float64
	StrongScoreMin float64
	WhaleScoreMin  float64
	WhaleConfluenceMin int

	ConfluenceBoost float64
	SpreadMaxBps    float64

	OrderCooldownSeconds      int
	OrderCooldownMinSeconds   int
	StackingEnabled           bool
	StackingMinProfitPct      float64
	StackingMaxAdds           int
	StackingGreenCandles      int

	TruthStalenessSeconds int

	LogLevel string
	Port     int
}

// Load reads configuration from environment variables (after loading a
// .env file if present) and validates it once. A ConfigError (returned as a
// plain error here; callers treat any non-nil error from Load as fatal per
// spec.md §7) aborts startup with a clear message.
func Load() (*Settings, error) {
	_ = godotenv.Load() // optional; missing .env is not an error

	s := &Settings{
		TradingMode:       getEnv("TRADING_MODE", "paper"),
		DataDir:           getEnv("DATA_DIR", "data"),
		APIKey:            os.Getenv("COINBASE_API_KEY"),
		APISecret:         os.Getenv("COINBASE_API_SECRET"),
		PaperStartBalance: getEnvFloat("PAPER_START_BALANCE", 1000.0),
		MaxTradeUSD:       getEnvFloat("MAX_TRADE_USD", 50.0),
		DailyMaxLossUSD:   getEnvFloat("DAILY_MAX_LOSS_USD", 30.0),
		WatchCoins:        splitCSV(getEnv("WATCH_COINS", "")),
		PaperResetState:   parseBool(getEnv("PAPER_RESET_STATE", "")),

		PositionMinPct: getEnvFloat("POSITION_MIN_PCT", 0.005),
		PositionBasePct: getEnvFloat("POSITION_BASE_PCT", 0.015),
		PositionMaxPct:  getEnvFloat("POSITION_MAX_PCT", 0.05),

		PortfolioMaxExposurePct: getEnvFloat("PORTFOLIO_MAX_EXPOSURE_PCT", 0.85),
		MinRRRatio:              getEnvFloat("MIN_RR_RATIO", 1.5),
		MinPositionUSD:          getEnvFloat("MIN_POSITION_USD", 5.0),
		DustThresholdUSD:        getEnvFloat("DUST_THRESHOLD_USD", 1.0),

		EntryScoreMin:      getEnvFloat("ENTRY_SCORE_MIN", 60.0),
		ScoutScoreMin:      getEnvFloat("SCOUT_SCORE_MIN", 50.0),
		StrongScoreMin:     getEnvFloat("STRONG_SCORE_MIN", 75.0),
		WhaleScoreMin:      getEnvFloat("WHALE_SCORE_MIN", 88.0),
		WhaleConfluenceMin: getEnvInt("WHALE_CONFLUENCE_MIN", 3),

		ConfluenceBoost: getEnvFloat("CONFLUENCE_BOOST", 15.0),
		SpreadMaxBps:    getEnvFloat("SPREAD_MAX_BPS", 25.0),

		OrderCooldownSeconds:    getEnvInt("ORDER_COOLDOWN_SECONDS", 120),
		OrderCooldownMinSeconds: getEnvInt("ORDER_COOLDOWN_MIN_SECONDS", 300),
		StackingEnabled:         parseBool(getEnv("STACKING_ENABLED", "false")),
		StackingMinProfitPct:    getEnvFloat("STACKING_MIN_PROFIT_PCT", 0.02),
		StackingMaxAdds:         getEnvInt("STACKING_MAX_ADDS", 2),
		StackingGreenCandles:    getEnvInt("STACKING_GREEN_CANDLES", 3),

		TruthStalenessSeconds: getEnvInt("TRUTH_STALENESS_SECONDS", 15),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvInt("PORT", 8080),
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

// Validate enforces the boot-time invariants from spec.md §4.1: percentages
// in [0,1], USD amounts > 0, R:R >= 1, and the min<=base<=max sizing chain.
func (s *Settings) Validate() error {
	if s.TradingMode != "paper" && s.TradingMode != "live" {
		return fmt.Errorf("TRADING_MODE must be 'paper' or 'live', got %q", s.TradingMode)
	}
	if s.TradingMode == "live" && (s.APIKey == "" || s.APISecret == "") {
		return fmt.Errorf("COINBASE_API_KEY and COINBASE_API_SECRET are required in live mode")
	}
	for _, pct := range []struct {
		name string
		val  float64
	}{
		{"POSITION_MIN_PCT", s.PositionMinPct},
		{"POSITION_BASE_PCT", s.PositionBasePct},
		{"POSITION_MAX_PCT", s.PositionMaxPct},
		{"PORTFOLIO_MAX_EXPOSURE_PCT", s.PortfolioMaxExposurePct},
	} {
		if pct.val < 0 || pct.val > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", pct.name, pct.val)
		}
	}
	if !(s.PositionMinPct <= s.PositionBasePct && s.PositionBasePct <= s.PositionMaxPct) {
		return fmt.Errorf("position sizing chain must hold: min(%v) <= base(%v) <= max(%v)",
			s.PositionMinPct, s.PositionBasePct, s.PositionMaxPct)
	}
	if s.PaperStartBalance <= 0 {
		return fmt.Errorf("PAPER_START_BALANCE must be > 0")
	}
	if s.MaxTradeUSD <= 0 {
		return fmt.Errorf("MAX_TRADE_USD must be > 0")
	}
	if s.DailyMaxLossUSD <= 0 {
		return fmt.Errorf("DAILY_MAX_LOSS_USD must be > 0")
	}
	if s.MinRRRatio < 1 {
		return fmt.Errorf("MIN_RR_RATIO must be >= 1, got %v", s.MinRRRatio)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
