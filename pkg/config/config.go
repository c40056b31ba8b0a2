package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the pipeline.
type Config struct {
	Port string

	// Bybit
	BybitAPIKey     string
	BybitAPISecret  string
	BybitDemo       bool
	BybitRecvWindow int

	// Telegram
	TelegramToken        string
	TelegramSourceChatID int64 // channel the signals come from
	TelegramTargetChatID int64 // channel notifications go to

	// Database
	DBPath string

	// Auth
	JWTSecret string

	// Trading parameter file (YAML); defaults apply when missing.
	TradingParamsPath string

	SettleCoin string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		BybitAPIKey:          os.Getenv("BYBIT_API_KEY"),
		BybitAPISecret:       os.Getenv("BYBIT_API_SECRET"),
		BybitDemo:            getEnv("BYBIT_DEMO", "true") == "true",
		BybitRecvWindow:      getEnvInt("BYBIT_RECV_WINDOW", 5000),
		TelegramToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramSourceChatID: getEnvInt64("TELEGRAM_SOURCE_CHAT_ID", 0),
		TelegramTargetChatID: getEnvInt64("TELEGRAM_TARGET_CHAT_ID", 0),
		DBPath:               getEnv("DB_PATH", "./data/journal.db"),
		JWTSecret:            getEnv("JWT_SECRET", "dev-secret"),
		TradingParamsPath:    getEnv("TRADING_PARAMS_PATH", ""),
		SettleCoin:           getEnv("SETTLE_COIN", "USDT"),
	}
	if cfg.BybitAPIKey == "" || cfg.BybitAPISecret == "" {
		return nil, fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET are required")
	}
	return cfg, nil
}

// TradingParams tunes sizing and the stop cascade.
type TradingParams struct {
	MaxLossUSDT         float64 `yaml:"maxLossUsdt"`
	FixedMarginUSDT     float64 `yaml:"fixedMarginUsdt"`
	MaxLeverage         float64 `yaml:"maxLeverage"`
	DwellMinutes        int     `yaml:"dwellMinutes"`
	FeeBufferPct        float64 `yaml:"feeBufferPct"`        // 0.11 means 0.11%
	TriggerTolerancePct float64 `yaml:"triggerTolerancePct"` // 0.01 means 0.01%
}

// DefaultTradingParams returns the documented defaults.
func DefaultTradingParams() TradingParams {
	return TradingParams{
		MaxLossUSDT:         30,
		FixedMarginUSDT:     300,
		MaxLeverage:         15,
		DwellMinutes:        30,
		FeeBufferPct:        0.11,
		TriggerTolerancePct: 0.01,
	}
}

// LoadTradingParams reads the YAML parameter file, falling back to defaults
// for an empty path. Unset fields keep their default values.
func LoadTradingParams(path string) (TradingParams, error) {
	params := DefaultTradingParams()
	if path == "" {
		return params, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return TradingParams{}, fmt.Errorf("read trading params: %w", err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return TradingParams{}, fmt.Errorf("parse trading params: %w", err)
	}
	if params.MaxLossUSDT <= 0 || params.FixedMarginUSDT <= 0 || params.MaxLeverage <= 0 {
		return TradingParams{}, fmt.Errorf("trading params: budgets and leverage must be positive")
	}
	return params, nil
}

// Dwell returns the dwell window as a duration.
func (p TradingParams) Dwell() time.Duration {
	return time.Duration(p.DwellMinutes) * time.Minute
}

// FeeBuffer returns the fee buffer as a fraction.
func (p TradingParams) FeeBuffer() float64 { return p.FeeBufferPct / 100 }

// TriggerTolerance returns the trigger-match tolerance as a fraction.
func (p TradingParams) TriggerTolerance() float64 { return p.TriggerTolerancePct / 100 }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}
