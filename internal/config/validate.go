package config

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/djlord-it/easy-meetings/internal/cron"
	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/recurrence"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	errs = append(errs, validateSchedule(cfg)...)

	errs = checkDuration(errs, "PROVIDER_TIMEOUT", cfg.ProviderTimeoutStr)
	errs = checkDuration(errs, "DB_OP_TIMEOUT", cfg.DBOpTimeoutStr)
	errs = checkDuration(errs, "HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr)
	errs = checkDuration(errs, "CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr)

	switch cfg.RunLock {
	case "", RunLockPostgres, RunLockNone:
	case RunLockRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, ValidationError{
				Field:   "REDIS_ADDR",
				Message: "required when RUN_LOCK=redis",
			})
		}
		errs = checkDuration(errs, "RUN_LOCK_TTL", cfg.RunLockTTLStr)
	default:
		errs = append(errs, ValidationError{
			Field:   "RUN_LOCK",
			Message: fmt.Sprintf("must be 'postgres', 'redis' or 'none', got %q", cfg.RunLock),
		})
	}

	switch cfg.ProviderAutoRecording {
	case "", "none", "local", "cloud":
	default:
		errs = append(errs, ValidationError{
			Field:   "PROVIDER_AUTO_RECORDING",
			Message: fmt.Sprintf("must be 'none', 'local' or 'cloud', got %q", cfg.ProviderAutoRecording),
		})
	}

	if cfg.LogLevel != "" {
		if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
			errs = append(errs, ValidationError{Field: "LOG_LEVEL", Message: err.Error()})
		}
	}
	if cfg.LogFormat != "" && cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, ValidationError{
			Field:   "LOG_FORMAT",
			Message: fmt.Sprintf("must be 'json' or 'console', got %q", cfg.LogFormat),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateSchedule checks only the settings the offline subcommands
// (plan, holidays) depend on. It does not require a database.
func ValidateSchedule(cfg Config) error {
	if errs := validateSchedule(cfg); len(errs) > 0 {
		return errs
	}
	return nil
}

func validateSchedule(cfg Config) ValidationErrors {
	var errs ValidationErrors

	var loc *time.Location
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "TIMEZONE",
				Message: fmt.Sprintf("unknown timezone: %v", err),
			})
		}
		loc = l
	}

	if cfg.TriggerCron != "" && loc != nil {
		if _, err := cron.NewParser().ParseInLocation(cfg.TriggerCron, loc); err != nil {
			errs = append(errs, ValidationError{Field: "TRIGGER_CRON", Message: err.Error()})
		}
	}

	if cfg.CustomSeriesRule != "" {
		if _, err := recurrence.ParseRule(cfg.CustomSeriesRule); err != nil {
			errs = append(errs, ValidationError{Field: "CUSTOM_SERIES_RULE", Message: err.Error()})
		}
	}
	if cfg.CustomSeriesTime != "" {
		if _, err := domain.ParseTimeOfDay(cfg.CustomSeriesTime); err != nil {
			errs = append(errs, ValidationError{Field: "CUSTOM_SERIES_TIME", Message: err.Error()})
		}
	}
	return errs
}

func checkDuration(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}
	if d <= 0 {
		return append(errs, ValidationError{
			Field:   field,
			Message: "must be positive",
		})
	}
	return errs
}
