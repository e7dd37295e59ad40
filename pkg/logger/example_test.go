package logger_test

import (
	"errors"

	"github.com/wonny/prefilter/backend/pkg/config"
	"github.com/wonny/prefilter/backend/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Pre-filter started")
	log.Infof("Loaded %d observations", 1200)
}

// Example_withFields demonstrates structured logging around a filter run
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	runLog := log.WithFields(map[string]interface{}{
		"dataset_id": "icu_48h",
		"threshold":  0.01,
	})
	runLog.Info("Run started")

	runLog.WithError(errors.New("inconsistent numerical values found")).
		Error("Run failed")
}
