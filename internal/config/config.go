// Package config loads gateway configuration from the environment, with an
// optional .env file for development.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config carries every tunable the gateway reads at startup. The clock-skew
// tolerance and reservation timeout are deliberately configuration, not
// constants: different automation clients tolerate different windows.
type Config struct {
	Env          string
	Port         string
	LogLevel     string
	DatabasePath string

	// Seed signing credential, registered at startup if absent.
	APIPublicKey string
	APISecretKey string

	// Admin surface.
	JWTSecret      string
	AdminAPIKey    string
	AdminAPISecret string

	// Authentication.
	AuthTolerance time.Duration
	MinNonceLen   int

	// Throttling.
	RateLimitPerMin int

	// Idempotency ledger.
	LedgerRetention    time.Duration
	ReservationTimeout time.Duration
	ReaperInterval     time.Duration

	// Execution.
	ExecutionTimeout time.Duration
	StopLevelPips    float64

	// Lot bounds used when the terminal does not report its own.
	MinLotSize float64
	MaxLotSize float64
	LotStep    float64
}

// Load reads configuration from the environment. Defaults mirror a
// conservative production setup; every value can be overridden.
func Load() Config {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_PATH", "gateway.db")

	v.SetDefault("API_PUBLIC_KEY", "dev_pub_key")
	v.SetDefault("API_SECRET_KEY", "dev_sec_key")

	v.SetDefault("JWT_SECRET", "dev-jwt-secret")
	v.SetDefault("ADMIN_API_KEY", "admin-api-key")
	v.SetDefault("ADMIN_API_SECRET", "admin-api-secret")

	v.SetDefault("AUTH_TOLERANCE_SECONDS", 300)
	v.SetDefault("MIN_NONCE_LENGTH", 16)
	v.SetDefault("RATE_LIMIT_PER_MIN", 60)

	v.SetDefault("LEDGER_RETENTION_HOURS", 48)
	v.SetDefault("RESERVATION_TIMEOUT_SECONDS", 60)
	v.SetDefault("REAPER_INTERVAL_SECONDS", 30)

	v.SetDefault("EXECUTION_TIMEOUT_SECONDS", 15)
	v.SetDefault("STOP_LEVEL_PIPS", 5.0)

	v.SetDefault("MIN_LOT_SIZE", 0.01)
	v.SetDefault("MAX_LOT_SIZE", 100.0)
	v.SetDefault("LOT_STEP", 0.01)

	return Config{
		Env:          v.GetString("ENV"),
		Port:         v.GetString("PORT"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		DatabasePath: v.GetString("DATABASE_PATH"),

		APIPublicKey: v.GetString("API_PUBLIC_KEY"),
		APISecretKey: v.GetString("API_SECRET_KEY"),

		JWTSecret:      v.GetString("JWT_SECRET"),
		AdminAPIKey:    v.GetString("ADMIN_API_KEY"),
		AdminAPISecret: v.GetString("ADMIN_API_SECRET"),

		AuthTolerance: time.Duration(v.GetInt("AUTH_TOLERANCE_SECONDS")) * time.Second,
		MinNonceLen:   v.GetInt("MIN_NONCE_LENGTH"),

		RateLimitPerMin: v.GetInt("RATE_LIMIT_PER_MIN"),

		LedgerRetention:    time.Duration(v.GetInt("LEDGER_RETENTION_HOURS")) * time.Hour,
		ReservationTimeout: time.Duration(v.GetInt("RESERVATION_TIMEOUT_SECONDS")) * time.Second,
		ReaperInterval:     time.Duration(v.GetInt("REAPER_INTERVAL_SECONDS")) * time.Second,

		ExecutionTimeout: time.Duration(v.GetInt("EXECUTION_TIMEOUT_SECONDS")) * time.Second,
		StopLevelPips:    v.GetFloat64("STOP_LEVEL_PIPS"),

		MinLotSize: v.GetFloat64("MIN_LOT_SIZE"),
		MaxLotSize: v.GetFloat64("MAX_LOT_SIZE"),
		LotStep:    v.GetFloat64("LOT_STEP"),
	}
}
