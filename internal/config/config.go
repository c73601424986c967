package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the easymeetings application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	// Timezone is the IANA zone meetings are scheduled in. "Now" for target
	// month selection is also evaluated here.
	Timezone    string `json:"timezone"`
	TriggerCron string `json:"trigger_cron"`
	SeedOnStart bool   `json:"seed_on_start"`

	SeriesFile       string `json:"series_file,omitempty"`
	CustomSeriesRule string `json:"custom_series_rule"`
	CustomSeriesTime string `json:"custom_series_time"`

	ProviderBaseURL       string        `json:"provider_base_url"`
	ProviderUserID        string        `json:"provider_user_id"`
	ProviderAPIKey        string        `json:"provider_api_key"`
	ProviderAPISecret     string        `json:"provider_api_secret"`
	ProviderAutoRecording string        `json:"provider_auto_recording"`
	ProviderTimeout       time.Duration `json:"-"`
	ProviderTimeoutStr    string        `json:"provider_timeout"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`
	MigrateOnStart       bool          `json:"migrate_on_start"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	// MetricsPort: empty serves metrics on HTTP_ADDR next to the API.
	MetricsPort string `json:"metrics_port,omitempty"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	// RunLock: "postgres" (advisory lock), "redis" (SET NX) or "none".
	// All instances sharing a store must use the same backend and key.
	RunLock       string        `json:"run_lock"`
	RunLockKey    string        `json:"run_lock_key"`
	RunLockTTL    time.Duration `json:"-"`
	RunLockTTLStr string        `json:"run_lock_ttl"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

const (
	RunLockPostgres = "postgres"
	RunLockRedis    = "redis"
	RunLockNone     = "none"
)

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		HTTPAddr:                  os.Getenv("HTTP_ADDR"),
		Timezone:                  os.Getenv("TIMEZONE"),
		TriggerCron:               os.Getenv("TRIGGER_CRON"),
		SeedOnStart:               os.Getenv("SEED_ON_START") == "true",
		SeriesFile:                os.Getenv("SERIES_FILE"),
		CustomSeriesRule:          os.Getenv("CUSTOM_SERIES_RULE"),
		CustomSeriesTime:          os.Getenv("CUSTOM_SERIES_TIME"),
		ProviderBaseURL:           os.Getenv("PROVIDER_BASE_URL"),
		ProviderUserID:            os.Getenv("PROVIDER_USER_ID"),
		ProviderAPIKey:            os.Getenv("PROVIDER_API_KEY"),
		ProviderAPISecret:         os.Getenv("PROVIDER_API_SECRET"),
		ProviderAutoRecording:     os.Getenv("PROVIDER_AUTO_RECORDING"),
		ProviderTimeoutStr:        os.Getenv("PROVIDER_TIMEOUT"),
		DBOpTimeoutStr:            os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:      os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:      os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		MigrateOnStart:            os.Getenv("MIGRATE_ON_START") != "false",
		HTTPShutdownTimeoutStr:    os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:            os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:               os.Getenv("METRICS_PATH"),
		MetricsPort:               os.Getenv("METRICS_PORT"),
		CircuitBreakerCooldownStr: os.Getenv("CIRCUIT_BREAKER_COOLDOWN"),
		RunLock:                   os.Getenv("RUN_LOCK"),
		RunLockKey:                os.Getenv("RUN_LOCK_KEY"),
		RunLockTTLStr:             os.Getenv("RUN_LOCK_TTL"),
		LogLevel:                  os.Getenv("LOG_LEVEL"),
		LogFormat:                 os.Getenv("LOG_FORMAT"),
	}

	if s := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", s)
			cfg.CircuitBreakerThreshold = 5
		}
	} else {
		cfg.CircuitBreakerThreshold = 5
	}

	cfg.DBMaxOpenConns = positiveInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = positiveInt("DB_MAX_IDLE_CONNS", 2)

	// Support the platform PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "America/New_York"
	}
	if cfg.TriggerCron == "" {
		cfg.TriggerCron = "0 6 * * *"
	}
	if cfg.CustomSeriesRule == "" {
		cfg.CustomSeriesRule = "fourth monday"
	}
	if cfg.CustomSeriesTime == "" {
		cfg.CustomSeriesTime = "19:00"
	}
	if cfg.ProviderBaseURL == "" {
		cfg.ProviderBaseURL = "https://api.zoom.us/v2"
	}
	if cfg.ProviderUserID == "" {
		cfg.ProviderUserID = "me"
	}
	if cfg.ProviderAutoRecording == "" {
		cfg.ProviderAutoRecording = "cloud"
	}
	if cfg.ProviderTimeoutStr == "" {
		cfg.ProviderTimeoutStr = "10s"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}
	if cfg.RunLock == "" {
		cfg.RunLock = RunLockPostgres
	}
	if cfg.RunLockKey == "" {
		cfg.RunLockKey = "easymeetings:generate"
	}
	if cfg.RunLockTTLStr == "" {
		cfg.RunLockTTLStr = "10m"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.ProviderTimeoutStr); err == nil {
		cfg.ProviderTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}
	if d, err := time.ParseDuration(cfg.RunLockTTLStr); err == nil {
		cfg.RunLockTTL = d
	}

	return cfg
}

func positiveInt(name string, def int) int {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s %q (must be a positive integer), using default %d", name, s, def)
		return def
	}
	return n
}

// Location resolves Timezone. Validate reports unknown zones.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.DatabaseURL = maskSecret(c.DatabaseURL)
	masked.ProviderAPIKey = maskSecret(c.ProviderAPIKey)
	masked.ProviderAPISecret = maskSecret(c.ProviderAPISecret)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
