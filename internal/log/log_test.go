package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestBuild_Levels(t *testing.T) {
	tests := []struct {
		level  string
		expect zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			l := build(tc.level, "json")
			require.NotNil(t, l)
			assert.True(t, l.Core().Enabled(tc.expect))
			if tc.expect > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tc.expect-1))
			}
		})
	}
}

func TestL_LazyInit(t *testing.T) {
	require.NotNil(t, L())
	require.NotNil(t, Named("bridge"))

	// Helpers must not panic once initialized
	Debug("debug message", "k", 1)
	Info("info message")
	Warn("warn message", "err", "x")
	Error("error message")
}
