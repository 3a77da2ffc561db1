package env

import (
	"fmt"

	zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MakeLogger builds the process logger. format is either "json" or "console".
func MakeLogger(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(lvl)
	logConfig.Encoding = format

	if format == "console" {
		logConfig.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		logConfig.Sampling = nil
	}

	return logConfig.Build()
}
