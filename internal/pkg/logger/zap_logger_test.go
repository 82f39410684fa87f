package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("Hub", "Client registered", map[string]interface{}{"user_id": int64(7)})
	l.Error("Hub", "Failed to persist message", map[string]interface{}{"error": errors.New("db down")})
	l.Warn("Hub", "nil details", nil)

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "Client registered", entries[0].Message)
	assert.Equal(t, "Hub", entries[0].ContextMap()["module"])

	_, hasRef := entries[1].ContextMap()["error_ref"]
	assert.True(t, hasRef)

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
}

func TestIsolatedLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	l := NewIsolatedLogger(path)

	l.Info("Gateway", "WebSocket session started", map[string]interface{}{"user_id": 1})
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"WebSocket session started"`)
	assert.Contains(t, string(data), `"module":"Gateway"`)
}
