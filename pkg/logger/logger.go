// Package logger provides structured logging for the source metadata layer
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	mu           sync.Mutex
)

// contextKey is the type for context keys
type contextKey string

const (
	// ConnectorKey is the context key for the connector type
	ConnectorKey contextKey = "connector"
	// ServerNameKey is the context key for the logical server name
	ServerNameKey contextKey = "server_name"
)

// Config represents logger configuration
type Config struct {
	Level       string   `mapstructure:"level" yaml:"level"`
	Development bool     `mapstructure:"development" yaml:"development"`
	Encoding    string   `mapstructure:"encoding" yaml:"encoding"` // json or console
	OutputPaths []string `mapstructure:"output_paths" yaml:"output_paths,omitempty"`
}

// DefaultConfig returns the production logging defaults
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Encoding: "json",
	}
}

// Init builds the global logger, replacing any previous one
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

// New creates a zap logger from cfg
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "json"
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return logger, nil
}

// Get returns the global logger
func Get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger == nil {
		l, err := New(DefaultConfig())
		if err != nil {
			// Fallback to basic logger
			l, _ = zap.NewProduction()
		}
		globalLogger = l
	}
	return globalLogger
}

// NewContext returns a copy of ctx carrying the labels read by WithContext
func NewContext(ctx context.Context, connector, serverName string) context.Context {
	ctx = context.WithValue(ctx, ConnectorKey, connector)
	return context.WithValue(ctx, ServerNameKey, serverName)
}

// ForConnector returns a child logger labelled with connector and server name
func ForConnector(connector, serverName string) *zap.Logger {
	return WithContext(NewContext(context.Background(), connector, serverName))
}

// WithContext returns a logger with context values
func WithContext(ctx context.Context) *zap.Logger {
	logger := Get()

	if connector, ok := ctx.Value(ConnectorKey).(string); ok {
		logger = logger.With(zap.String("connector", connector))
	}

	if serverName, ok := ctx.Value(ServerNameKey).(string); ok {
		logger = logger.With(zap.String("server_name", serverName))
	}

	return logger
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
