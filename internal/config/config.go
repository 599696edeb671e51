package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	ApiPort    string
	ApiEnabled string

	// Loyalty program knobs.
	PointsPerUnit     int
	WelcomeBonus      int
	ReferralBonus     int
	RedemptionTTLDays int
	HistoryLimit      int

	// Expiry sweep worker.
	SweepEnabled  string
	SweepInterval time.Duration
}

// New loads and validates configuration from environment variables.
// The HTTP server is optional: if VOYALTY_API_ENABLED != "true", ApiAddr()
// returns an error and the server simply won't start. The same applies to
// the expiry sweep worker.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:  os.Getenv("VOYALTY_POSTGRES_USER"),
		DBPass:  os.Getenv("VOYALTY_POSTGRES_PASSWORD"),
		DBHost:  os.Getenv("VOYALTY_POSTGRES_HOST"),
		DBPort:  os.Getenv("VOYALTY_POSTGRES_PORT"),
		DBName:  os.Getenv("VOYALTY_POSTGRES_DB"),
		SSLMode: os.Getenv("VOYALTY_POSTGRES_SSLMODE"),

		RedisHost: os.Getenv("VOYALTY_REDIS_HOST"),
		RedisPort: os.Getenv("VOYALTY_REDIS_PORT"),

		NatsHost: os.Getenv("VOYALTY_NATS_HOST"),
		NatsPort: os.Getenv("VOYALTY_NATS_PORT"),

		ApiPort:    os.Getenv("VOYALTY_API_PORT"),
		ApiEnabled: os.Getenv("VOYALTY_API_ENABLED"),

		PointsPerUnit:     getEnvInt("VOYALTY_POINTS_PER_UNIT", 1),
		WelcomeBonus:      getEnvInt("VOYALTY_WELCOME_BONUS", 100),
		ReferralBonus:     getEnvInt("VOYALTY_REFERRAL_BONUS", 250),
		RedemptionTTLDays: getEnvInt("VOYALTY_REDEMPTION_TTL_DAYS", 30),
		HistoryLimit:      getEnvInt("VOYALTY_HISTORY_LIMIT", 20),

		SweepEnabled:  os.Getenv("VOYALTY_SWEEP_ENABLED"),
		SweepInterval: time.Duration(getEnvInt("VOYALTY_SWEEP_INTERVAL_SECONDS", 300)) * time.Second,
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: VOYALTY_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: VOYALTY_REDIS_HOST/PORT")
	}

	// Required: nats (both consumed facts and published events ride on it)
	if cfg.NatsHost == "" || cfg.NatsPort == "" {
		return nil, fmt.Errorf("missing required env for nats: VOYALTY_NATS_HOST/PORT")
	}

	if cfg.PointsPerUnit < 0 || cfg.WelcomeBonus < 0 || cfg.ReferralBonus < 0 {
		return nil, fmt.Errorf("loyalty program amounts must not be negative")
	}
	if cfg.RedemptionTTLDays <= 0 {
		return nil, fmt.Errorf("VOYALTY_REDEMPTION_TTL_DAYS must be positive")
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

// ApiAddr returns the HTTP listen address if the API is enabled.
// Returns an error if VOYALTY_API_ENABLED != "true" — callers should skip
// starting the HTTP server.
func (c *Config) ApiAddr() (string, error) {
	if c.ApiEnabled == "true" {
		if c.ApiPort == "" {
			return "", fmt.Errorf("VOYALTY_API_PORT is required when VOYALTY_API_ENABLED=true")
		}
		return ":" + c.ApiPort, nil
	}
	return "", fmt.Errorf("HTTP API is disabled (VOYALTY_API_ENABLED != true)")
}

// RedemptionTTL returns the configured redemption lifetime.
func (c *Config) RedemptionTTL() time.Duration {
	return time.Duration(c.RedemptionTTLDays) * 24 * time.Hour
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var intVal int
	if _, err := fmt.Sscanf(val, "%d", &intVal); err != nil {
		return defaultVal
	}
	return intVal
}
