package main

import (
	"go.uber.org/zap"

	"github.com/djlord-it/easy-meetings/internal/config"
)

// logConfigWarnings reports configurations that start but behave in ways an
// operator probably did not intend.
func logConfigWarnings(cfg config.Config, logger *zap.Logger) {
	if cfg.ProviderAPIKey == "" || cfg.ProviderAPISecret == "" {
		logger.Warn("provider credentials missing; every meeting creation will be rejected",
			zap.Bool("api_key_set", cfg.ProviderAPIKey != ""),
			zap.Bool("api_secret_set", cfg.ProviderAPISecret != ""),
		)
	}

	if cfg.RunLock == config.RunLockNone {
		logger.Warn("RUN_LOCK=none; concurrent instances may create duplicate meetings")
	}

	if cfg.CircuitBreakerThreshold == 0 {
		logger.Info("provider circuit breaker disabled")
	}

	if !cfg.MetricsEnabled {
		logger.Info("metrics disabled")
	}
}
