package main

import (
	"fmt"

	"github.com/lychee-technology/dataeditor"
	"go.uber.org/zap"
)

// newLogger builds the process logger from the logging section.
func newLogger(cfg dataeditor.LoggingConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zapConfig.Level = level
	}
	if cfg.Format != "" {
		zapConfig.Encoding = cfg.Format
	}
	return zapConfig.Build()
}
