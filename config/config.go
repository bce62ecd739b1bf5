package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Gateway    GatewayConfig
	Commission CommissionConfig
	Withdrawal WithdrawalConfig
	Refund     RefundConfig
	Orders     OrderConfig
	Redis      RedisConfig
	Log        LogConfig
	Jobs       JobsConfig
	Platform   PlatformConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// GatewayConfig holds the payment processor credentials.
type GatewayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
	// Stub swaps the HTTP client for the in-process stub (development only).
	Stub bool
}

// CommissionConfig holds the default per-level percentages; the admin
// settings endpoint can override them at runtime.
type CommissionConfig struct {
	Levels map[int]float64
}

// WithdrawalConfig amounts are in minor units.
type WithdrawalConfig struct {
	MinCents      int64
	MaxCents      int64
	FeePct        float64
	MinFeeCents   int64
	MaxContention int
}

type RefundConfig struct {
	WindowDays int
}

type OrderConfig struct {
	TTL      time.Duration
	Currency string
}

type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	WebhookDedupTTL time.Duration
}

type LogConfig struct {
	Level string
}

type JobsConfig struct {
	SweepInterval     time.Duration
	ReconcileInterval time.Duration
}

// PlatformConfig identifies the house account that receives platform earnings.
type PlatformConfig struct {
	UserEmail string
}

// DefaultCommissionLevels are the level percentages used when nothing else is configured.
func DefaultCommissionLevels() map[int]float64 {
	return map[int]float64{1: 10, 2: 5, 3: 2}
}

// Load reads .env (when present) and the process environment on top of defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8099"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_DSN", "skillmint:skillmint@tcp(localhost:3306)/skillmint?charset=utf8mb4&parseTime=True&loc=UTC"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			Issuer:       getEnv("JWT_ISSUER", "skillmint"),
		},
		Gateway: GatewayConfig{
			KeyID:         getEnv("GATEWAY_KEY_ID", ""),
			KeySecret:     getEnv("GATEWAY_KEY_SECRET", ""),
			WebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("GATEWAY_BASE_URL", "https://api.razorpay.com"),
			Timeout:       getDuration("GATEWAY_TIMEOUT", 10*time.Second),
			Stub:          getBool("GATEWAY_STUB", false),
		},
		Commission: CommissionConfig{Levels: DefaultCommissionLevels()},
		Withdrawal: WithdrawalConfig{
			MinCents:      int64(getInt("WITHDRAWAL_MIN", 100)) * 100,
			MaxCents:      int64(getInt("WITHDRAWAL_MAX", 50000)) * 100,
			FeePct:        getFloat("WITHDRAWAL_FEE_PCT", 2),
			MinFeeCents:   int64(getInt("WITHDRAWAL_FEE_MIN", 10)) * 100,
			MaxContention: 5,
		},
		Refund: RefundConfig{WindowDays: getInt("REFUND_WINDOW_DAYS", 30)},
		Orders: OrderConfig{
			TTL:      getDuration("ORDER_TTL", 24*time.Hour),
			Currency: getEnv("CURRENCY", "INR"),
		},
		Redis: RedisConfig{
			Addr:            getEnv("REDIS_ADDR", ""),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getInt("REDIS_DB", 0),
			WebhookDedupTTL: getDuration("WEBHOOK_DEDUP_TTL", 72*time.Hour),
		},
		Log: LogConfig{Level: getEnv("LOG_LEVEL", "info")},
		Jobs: JobsConfig{
			SweepInterval:     getDuration("SWEEP_INTERVAL", 15*time.Minute),
			ReconcileInterval: getDuration("RECONCILE_INTERVAL", 5*time.Minute),
		},
		Platform: PlatformConfig{UserEmail: getEnv("PLATFORM_USER_EMAIL", "platform@skillmint.local")},
	}

	if raw := os.Getenv("COMMISSION_LEVELS"); raw != "" {
		levels, err := ParseCommissionLevels(raw)
		if err != nil {
			return nil, err
		}
		cfg.Commission.Levels = levels
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseCommissionLevels decodes a JSON object such as {"1":10,"2":5,"3":2}.
func ParseCommissionLevels(raw string) (map[int]float64, error) {
	var byKey map[string]float64
	if err := json.Unmarshal([]byte(raw), &byKey); err != nil {
		return nil, fmt.Errorf("commission levels: %w", err)
	}
	levels := make(map[int]float64, len(byKey))
	for k, v := range byKey {
		level, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("commission levels: bad level %q", k)
		}
		levels[level] = v
	}
	if err := ValidateCommissionLevels(levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// ValidateCommissionLevels requires levels 1..3 only and every percentage in [0,50].
func ValidateCommissionLevels(levels map[int]float64) error {
	for level, pct := range levels {
		if level < 1 || level > 3 {
			return fmt.Errorf("commission levels: level %d out of range 1-3", level)
		}
		if pct < 0 || pct > 50 {
			return fmt.Errorf("commission levels: level %d percentage %.2f out of range 0-50", level, pct)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if err := ValidateCommissionLevels(c.Commission.Levels); err != nil {
		return err
	}
	if c.Withdrawal.MinCents <= 0 || c.Withdrawal.MaxCents < c.Withdrawal.MinCents {
		return fmt.Errorf("withdrawal limits: min %d max %d", c.Withdrawal.MinCents, c.Withdrawal.MaxCents)
	}
	if c.Withdrawal.FeePct < 0 || c.Withdrawal.FeePct >= 100 {
		return fmt.Errorf("withdrawal fee pct %.2f out of range", c.Withdrawal.FeePct)
	}
	if c.Refund.WindowDays < 0 {
		return fmt.Errorf("refund window %d days is negative", c.Refund.WindowDays)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
