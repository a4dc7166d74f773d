// Package config provides configuration management for the optimizer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Logging      LoggingConfig
	Observer     ObserverConfig
	Polling      PollingConfig
	Sequencer    SequencerConfig
	Optimization OptimizationConfig
	Alerts       AlertsConfig
	Webhook      WebhookConfig
	Sources      SourceCredentials
	Auth         AuthConfig
}

// ServerConfig holds server-related configuration for the control plane API.
type ServerConfig struct {
	Port               int
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORS               bool
	CORSAllowedOrigins []string
	APIKeys            []string
}

// DatabaseConfig holds the Store connection settings (spec §6: database.{host,port,name,user,password}).
type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxConnections  int
	MinConnections  int
	MaxIdleTime     time.Duration
	MaxConnLifetime time.Duration
}

// URL renders the bun/pgdriver DSN from the discrete fields.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig holds Redis-related configuration for ephemeral scheduler/breaker state.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// ObserverConfig holds observer fan-out configuration.
type ObserverConfig struct {
	EnableDatabase bool
	EnableLogger   bool

	EnableWebSocket     bool
	WebSocketBufferSize int

	BufferSize int
}

// PollingConfig governs the Gmail/Meta ingestion pollers (spec §4.4.1, §6).
type PollingConfig struct {
	Enabled         bool
	IntervalMinutes int
}

// SequencerConfig governs the Sequence Scheduler's due-sequence poller
// (spec §4.6, SPEC_FULL §4.6 Open Question resolution: one poller, not one
// cron entry per sequence).
type SequencerConfig struct {
	TickIntervalSeconds int
	BatchSize           int
	WarmPositiveSentimentThreshold float64
}

// OptimizationConfig governs the Optimization Loop cycle (spec §4.7, §6).
type OptimizationConfig struct {
	CycleHours          int
	MinImprovementPct   float64
	TestingDaysDefault  int
}

// AlertsConfig governs the Error Monitor's threshold alerts (spec §4.8, §6).
type AlertsConfig struct {
	ErrorRateThreshold float64
	CriticalPerHour    int
	CBTripsPerHour     int
	CooldownMinutes    int
	SlackWebhookURL    string
	WebhookURL         string
	SMTPHost           string
	SMTPPort           int
	SMTPFrom           string
	SMTPTo             []string
}

// WebhookConfig governs the ingestion webhook boundary (spec §4.4.2, §6).
type WebhookConfig struct {
	Port   int
	Secret string
}

// SourceCredentials are opaque strings the core never interprets (spec §6).
type SourceCredentials struct {
	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string
	MetaAppSecret     string
	MetaVerifyToken   string
	MetaPageToken     string
}

// AuthConfig holds the optional operator-override auth token settings (spec §4.9, §9).
type AuthConfig struct {
	JWTSecret          string
	JWTExpirationHours int
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	godotenv.Load()
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnvAsInt("OPTIMIZER_PORT", 8585),
			Host:               getEnv("OPTIMIZER_HOST", "0.0.0.0"),
			ReadTimeout:        getEnvAsDuration("OPTIMIZER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvAsDuration("OPTIMIZER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout:    getEnvAsDuration("OPTIMIZER_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORS:               getEnvAsBool("OPTIMIZER_CORS_ENABLED", true),
			CORSAllowedOrigins: getEnvAsSlice("OPTIMIZER_CORS_ALLOWED_ORIGINS", []string{}),
			APIKeys:            getEnvAsSlice("OPTIMIZER_API_KEYS", []string{}),
		},
		Database: DatabaseConfig{
			Host:            getEnv("OPTIMIZER_DATABASE_HOST", "localhost"),
			Port:            getEnvAsInt("OPTIMIZER_DATABASE_PORT", 5432),
			Name:            getEnv("OPTIMIZER_DATABASE_NAME", "optimizer"),
			User:            getEnv("OPTIMIZER_DATABASE_USER", "optimizer"),
			Password:        getEnv("OPTIMIZER_DATABASE_PASSWORD", "optimizer"),
			SSLMode:         getEnv("OPTIMIZER_DATABASE_SSLMODE", "disable"),
			MaxConnections:  getEnvAsInt("OPTIMIZER_DB_MAX_CONNECTIONS", 20),
			MinConnections:  getEnvAsInt("OPTIMIZER_DB_MIN_CONNECTIONS", 5),
			MaxIdleTime:     getEnvAsDuration("OPTIMIZER_DB_MAX_IDLE_TIME", 30*time.Minute),
			MaxConnLifetime: getEnvAsDuration("OPTIMIZER_DB_MAX_CONN_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			URL:      getEnv("OPTIMIZER_REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("OPTIMIZER_REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("OPTIMIZER_REDIS_DB", 0),
			PoolSize: getEnvAsInt("OPTIMIZER_REDIS_POOL_SIZE", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("OPTIMIZER_LOG_LEVEL", "info"),
			Format: getEnv("OPTIMIZER_LOG_FORMAT", "json"),
		},
		Observer: ObserverConfig{
			EnableDatabase:      getEnvAsBool("OPTIMIZER_OBSERVER_DB_ENABLED", true),
			EnableLogger:        getEnvAsBool("OPTIMIZER_OBSERVER_LOGGER_ENABLED", true),
			EnableWebSocket:     getEnvAsBool("OPTIMIZER_OBSERVER_WEBSOCKET_ENABLED", true),
			WebSocketBufferSize: getEnvAsInt("OPTIMIZER_OBSERVER_WEBSOCKET_BUFFER_SIZE", 256),
			BufferSize:          getEnvAsInt("OPTIMIZER_OBSERVER_BUFFER_SIZE", 100),
		},
		Polling: PollingConfig{
			Enabled:         getEnvAsBool("OPTIMIZER_POLLING_ENABLED", true),
			IntervalMinutes: getEnvAsInt("OPTIMIZER_POLLING_INTERVAL_MINUTES", 5),
		},
		Sequencer: SequencerConfig{
			TickIntervalSeconds:            getEnvAsInt("OPTIMIZER_SEQUENCER_TICK_INTERVAL_SECONDS", 60),
			BatchSize:                      getEnvAsInt("OPTIMIZER_SEQUENCER_BATCH_SIZE", 50),
			WarmPositiveSentimentThreshold: getEnvAsFloat("OPTIMIZER_SEQUENCER_WARM_SENTIMENT_THRESHOLD", 0.6),
		},
		Optimization: OptimizationConfig{
			CycleHours:         getEnvAsInt("OPTIMIZER_OPTIMIZATION_CYCLE_HOURS", 6),
			MinImprovementPct:  getEnvAsFloat("OPTIMIZER_OPTIMIZATION_MIN_IMPROVEMENT_PCT", 5),
			TestingDaysDefault: getEnvAsInt("OPTIMIZER_OPTIMIZATION_TESTING_DAYS_DEFAULT", 7),
		},
		Alerts: AlertsConfig{
			ErrorRateThreshold: getEnvAsFloat("OPTIMIZER_ALERTS_ERROR_RATE_THRESHOLD", 10),
			CriticalPerHour:    getEnvAsInt("OPTIMIZER_ALERTS_CRITICAL_PER_HOUR", 5),
			CBTripsPerHour:     getEnvAsInt("OPTIMIZER_ALERTS_CB_TRIPS_PER_HOUR", 3),
			CooldownMinutes:    getEnvAsInt("OPTIMIZER_ALERTS_COOLDOWN_MINUTES", 15),
			SlackWebhookURL:    getEnv("OPTIMIZER_ALERTS_SLACK_WEBHOOK_URL", ""),
			WebhookURL:         getEnv("OPTIMIZER_ALERTS_WEBHOOK_URL", ""),
			SMTPHost:           getEnv("OPTIMIZER_ALERTS_SMTP_HOST", ""),
			SMTPPort:           getEnvAsInt("OPTIMIZER_ALERTS_SMTP_PORT", 587),
			SMTPFrom:           getEnv("OPTIMIZER_ALERTS_SMTP_FROM", ""),
			SMTPTo:             getEnvAsSlice("OPTIMIZER_ALERTS_SMTP_TO", []string{}),
		},
		Webhook: WebhookConfig{
			Port:   getEnvAsInt("OPTIMIZER_WEBHOOK_PORT", 8586),
			Secret: getEnv("OPTIMIZER_WEBHOOK_SECRET", ""),
		},
		Sources: SourceCredentials{
			GmailClientID:     getEnv("OPTIMIZER_GMAIL_CLIENT_ID", ""),
			GmailClientSecret: getEnv("OPTIMIZER_GMAIL_CLIENT_SECRET", ""),
			GmailRefreshToken: getEnv("OPTIMIZER_GMAIL_REFRESH_TOKEN", ""),
			MetaAppSecret:     getEnv("OPTIMIZER_META_APP_SECRET", ""),
			MetaVerifyToken:   getEnv("OPTIMIZER_META_VERIFY_TOKEN", ""),
			MetaPageToken:     getEnv("OPTIMIZER_META_PAGE_TOKEN", ""),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("OPTIMIZER_JWT_SECRET", ""),
			JWTExpirationHours: getEnvAsInt("OPTIMIZER_JWT_EXPIRATION_HOURS", 24),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration. A non-nil error maps to exit code 1
// (spec §6: "1 fatal init failure (config invalid, store unreachable)").
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
		return fmt.Errorf("database host, name, and user are required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Polling.IntervalMinutes < 1 {
		return fmt.Errorf("polling interval must be at least 1 minute")
	}

	if c.Sequencer.TickIntervalSeconds < 1 {
		return fmt.Errorf("sequencer tick interval must be at least 1 second")
	}

	if c.Optimization.CycleHours < 1 {
		return fmt.Errorf("optimization cycle hours must be at least 1")
	}

	if c.Webhook.Port < 1 || c.Webhook.Port > 65535 {
		return fmt.Errorf("invalid webhook port: %d", c.Webhook.Port)
	}

	if c.Webhook.Secret == "" {
		return fmt.Errorf("OPTIMIZER_WEBHOOK_SECRET is required")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("OPTIMIZER_JWT_SECRET must be at least 32 characters when set")
	}

	return nil
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	current := ""
	for _, ch := range valueStr {
		if ch == ',' {
			if current != "" {
				result = append(result, current)
				current = ""
			}
		} else {
			current += string(ch)
		}
	}

	if current != "" {
		result = append(result, current)
	}

	return result
}
