package logging

import (
	"github.com/canopy-network/transferx/pkg/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func New() (*zap.Logger, error) {
	level := utils.Env("LOG_LEVEL", "debug")
	encoding := utils.Env("LOG_ENCODING", "json")
	cfg := zap.NewProductionConfig()
	cfg.Encoding = encoding
	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	if file := utils.Env("LOG_FILE", ""); file != "" {
		l = l.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore(cfg, file))
		}))
	}
	return l, nil
}

// fileCore writes JSON lines to a rotating file next to the stdout output.
func fileCore(cfg zap.Config, file string) zapcore.Core {
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    utils.EnvInt("LOG_FILE_MAX_SIZE_MB", 100),
		MaxBackups: utils.EnvInt("LOG_FILE_MAX_BACKUPS", 3),
		MaxAge:     utils.EnvInt("LOG_FILE_MAX_AGE_DAYS", 28),
		Compress:   true,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), zapcore.AddSync(rotator), cfg.Level)
}
