package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewFallsBackToInfoOnUnknownLevel(t *testing.T) {
	l, err := New("chatty", "json")
	require.NoError(t, err)
	require.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	require.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNewHonoursDebugLevel(t *testing.T) {
	l, err := New("DEBUG", "console")
	require.NoError(t, err)
	require.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNamedOnNilLogger(t *testing.T) {
	var l *Logger
	require.NotNil(t, l.Named("chat"))
}
