// Package logger provides logging utilities for the application.
package logger

import (
	"log"
	"log/slog"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// logger is the root logger. Named loggers are derived from it.
var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// Environment represents the application environment type.
type Environment string

const (
	// EnvironmentDevelopment represents the development environment.
	EnvironmentDevelopment Environment = "development"
	// EnvironmentProduction represents the production environment.
	EnvironmentProduction Environment = "production"
)

// LogLevel represents the logging level type.
type LogLevel string

const (
	// LogLevelDebug represents the debug logging level.
	LogLevelDebug LogLevel = "debug"
	// Info represents the info logging level.
	Info LogLevel = "info"
	// Warn represents the warn logging level.
	Warn LogLevel = "warn"
	// Error represents the error logging level.
	Error LogLevel = "error"
)

// InitLogger initializes the root logger with the specified environment, default
// log level and per-module level overrides (keys like "core.admission").
func InitLogger(environment Environment, logLevel LogLevel, levels map[string]string) {
	var cfg zap.Config

	if environment == EnvironmentDevelopment {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	// The root core accepts everything; filtering happens per named logger.
	cfg.Level.SetLevel(zapcore.DebugLevel)

	l, err := cfg.Build()
	if err != nil {
		log.Printf("Failed to initialize zap logger: %v", err)
		os.Exit(1)
	}

	defaultLevel := getZapLevel(string(logLevel))
	InitLevelConfig(levels, defaultLevel)

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()

	root := Named("")

	// Redirect standard log to zap
	zap.RedirectStdLog(root)

	// Redirect slog to zap so libraries logging through slog end up in the same sink
	slog.SetDefault(slog.New(zapslog.NewHandler(root.Core())))
}

// Named returns a logger named after a dotted module path. Its level is resolved
// from the hierarchical level configuration (see GetLevelForName).
func Named(name string) *zap.Logger {
	loggerMu.RLock()
	base := logger
	loggerMu.RUnlock()

	if base == nil {
		return zap.NewNop()
	}

	level := GetLevelForName(name)
	l := base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &levelFilterCore{Core: core, level: level}
	}))
	if name == "" {
		return l
	}
	return l.Named(name)
}

// Sync flushes any buffered log entries of the root logger.
func Sync() {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger != nil {
		_ = logger.Sync()
	}
}

func getZapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
