// Package logging configures the zap logger behind chainlink-common's
// logger.NewWith.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DevelopmentConfig writes human readable console lines with ISO8601 times,
// capital levels and caller locations. Stack traces start at WARN.
func DevelopmentConfig(level zapcore.Level) func(*zap.Config) {
	return func(config *zap.Config) {
		config.Level = zap.NewAtomicLevelAt(level)
		config.Development = true
		config.DisableCaller = false
		config.DisableStacktrace = false
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	}
}

// ProductionConfig writes one JSON object per line for log shippers. Stack
// traces are kept for errors only.
func ProductionConfig(level zapcore.Level) func(*zap.Config) {
	return func(config *zap.Config) {
		config.Level = zap.NewAtomicLevelAt(level)
		config.Development = false
		config.DisableCaller = false
		config.DisableStacktrace = true
		config.Encoding = "json"
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		config.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	}
}

// For picks the configuration of the requested format.
func For(level zapcore.Level, json bool) func(*zap.Config) {
	if json {
		return ProductionConfig(level)
	}
	return DevelopmentConfig(level)
}
