// ABOUTME: Builds the process-wide zap logger from configuration
// ABOUTME: Redirects the standard library logger so every log line goes through zap
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Resonate-Protocol/livelink-go/internal/config"
)

var (
	mu      sync.Mutex
	sugar   = zap.NewNop().Sugar()
	restore = func() {}
)

// New builds a logger for the given settings without installing it
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{cfg.Output}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Init builds the global sugared logger and redirects the standard library
// logger into it. Calling Init again replaces the previous logger.
func Init(cfg config.LoggingConfig) (*zap.SugaredLogger, error) {
	logger, err := New(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	restore()
	restore = zap.RedirectStdLog(logger)
	sugar = logger.Sugar()
	return sugar, nil
}

// Sugar returns the global sugared logger, a no-op logger before Init
func Sugar() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return sugar
}

// Sync flushes the global logger
func Sync() {
	_ = Sugar().Sync()
}
