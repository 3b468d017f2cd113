package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogRoutesByLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	Log(WarnLevel, "retrying", "numRetries", 2)
	Log(DebugLevel, "succeeded")
	Log(Level("bogus"), "fallback")

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, int64(2), entries[0].ContextMap()["numRetries"])
		assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
		assert.Equal(t, zapcore.InfoLevel, entries[2].Level)
	}
}

func TestConfigureUnknownLevelDefaultsToInfo(t *testing.T) {
	assert.NoError(t, Configure("nope", true))
	assert.False(t, Logger().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, Logger().Core().Enabled(zapcore.InfoLevel))
	SetLogger(zap.NewNop())
}
