package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestFor(t *testing.T) {
	tests := []struct {
		name     string
		json     bool
		encoding string
		dev      bool
	}{
		{name: "console", encoding: "console", dev: true},
		{name: "json", json: true, encoding: "json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := zap.NewProductionConfig()
			For(zapcore.WarnLevel, tc.json)(&cfg)
			assert.Equal(t, tc.encoding, cfg.Encoding)
			assert.Equal(t, tc.dev, cfg.Development)
			assert.Equal(t, zapcore.WarnLevel, cfg.Level.Level())
		})
	}
}
