package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapConfig selects level, encoding and destination of the zap backend
type ZapConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "console"
	Output string `yaml:"output"` // "stdout", "stderr"
	Caller bool   `yaml:"caller"`
}

// ZapBackend adapts a sugared zap logger to LogFuncs
type ZapBackend struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

func NewZapBackend(config ZapConfig) (*ZapBackend, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	var encoder zapcore.Encoder
	switch config.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var sink zapcore.WriteSyncer
	switch config.Output {
	case "stderr":
		sink = zapcore.Lock(zapcore.AddSync(os.Stderr))
	default:
		sink = zapcore.Lock(zapcore.AddSync(os.Stdout))
	}

	var opts []zap.Option
	if config.Caller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	return NewZapBackendFromCore(zapcore.NewCore(encoder, sink, level), opts...), nil
}

// NewZapBackendFromCore wraps an existing core, used by tests with zaptest/observer
func NewZapBackendFromCore(core zapcore.Core, opts ...zap.Option) *ZapBackend {
	logger := zap.New(core, opts...)
	return &ZapBackend{
		logger: logger,
		sugar:  logger.Sugar(),
	}
}

func (z *ZapBackend) LogFuncs() LogFuncs {
	return LogFuncs{
		Debugf: z.sugar.Debugf,
		Infof:  z.sugar.Infof,
		Warnf:  z.sugar.Warnf,
		Errorf: z.sugar.Errorf,
	}
}

func (z *ZapBackend) Sync() error {
	return z.logger.Sync()
}
