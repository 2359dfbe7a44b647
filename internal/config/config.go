package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Risk     RiskConfig
	Alert    AlertConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

// RiskConfig tunes the blocking policy and housekeeping around the risk
// engine. The scoring weights and level boundaries themselves are fixed
// constants in internal/risk.
type RiskConfig struct {
	// BlockDuration is how long an address stays blocked after an Attack
	// verdict.
	BlockDuration time.Duration

	// ContinuousWindow is the trailing window for the attempt-volume feature.
	ContinuousWindow time.Duration

	// FailWindow is the trailing window for the failed-attempt feature.
	FailWindow time.Duration

	// RecentUsernameLimit is how many prior usernames feed the enumeration
	// feature (the current attempt's username is added on top).
	RecentUsernameLimit int

	// RecordBlocked, when true, appends the triggering attempt to the log
	// even when the verdict is Attack. Off by default to match the original
	// policy of skipping the log write on a block.
	RecordBlocked bool

	// SerializeByAddress, when true, wraps feature extraction and the
	// block-or-record decision in a per-address critical section, closing
	// the race where two concurrent requests from a freshly-over-threshold
	// address both slip through before either writes a block.
	SerializeByAddress bool

	// AttemptRetention bounds how long attempt rows are kept before the
	// background sweeper purges them.
	AttemptRetention time.Duration

	// CleanupInterval is how often the sweeper runs.
	CleanupInterval time.Duration
}

// AlertConfig controls the operator email sent when an address gets blocked.
type AlertConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	ToAddress   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "sentinel"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Risk: RiskConfig{
			BlockDuration:       getEnvAsDuration("RISK_BLOCK_DURATION", 10*time.Minute),
			ContinuousWindow:    getEnvAsDuration("RISK_CONTINUOUS_WINDOW", 2*time.Minute),
			FailWindow:          getEnvAsDuration("RISK_FAIL_WINDOW", 5*time.Minute),
			RecentUsernameLimit: getEnvAsInt("RISK_RECENT_USERNAME_LIMIT", 5),
			RecordBlocked:       getEnvAsBool("RISK_RECORD_BLOCKED", false),
			SerializeByAddress:  getEnvAsBool("RISK_SERIALIZE_BY_ADDRESS", false),
			AttemptRetention:    getEnvAsDuration("RISK_ATTEMPT_RETENTION", 30*24*time.Hour),
			CleanupInterval:     getEnvAsDuration("RISK_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Alert: AlertConfig{
			Enabled:     getEnvAsBool("ALERT_ENABLED", false),
			AWSRegion:   getEnv("ALERT_AWS_REGION", "us-east-1"),
			FromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
			ToAddress:   getEnv("ALERT_TO_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Risk.BlockDuration <= 0 {
		return nil, fmt.Errorf("RISK_BLOCK_DURATION must be positive")
	}
	if cfg.Risk.ContinuousWindow <= 0 || cfg.Risk.FailWindow <= 0 {
		return nil, fmt.Errorf("risk windows must be positive")
	}
	if cfg.Risk.RecentUsernameLimit <= 0 {
		return nil, fmt.Errorf("RISK_RECENT_USERNAME_LIMIT must be positive")
	}

	if cfg.Alert.Enabled && (cfg.Alert.FromAddress == "" || cfg.Alert.ToAddress == "") {
		return nil, fmt.Errorf("ALERT_FROM_ADDRESS and ALERT_TO_ADDRESS are required when alerts are enabled")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
