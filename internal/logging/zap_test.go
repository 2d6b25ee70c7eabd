package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wwsupercheese/tictactoe/types"
)

func TestZapLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var logger types.Logger = NewZap(zap.New(core).Sugar())

	logger.Debug("lease created", "lease", "l-1")
	logger.Info("became leader", "tier", "tictactoe-orm")
	logger.Warn("renew failed", "attempt", 2)
	logger.Error("replication pass failed", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 4)

	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, "lease created", entries[0].Message)
	require.Equal(t, "l-1", entries[0].ContextMap()["lease"])

	require.Equal(t, zapcore.InfoLevel, entries[1].Level)
	require.Equal(t, "tictactoe-orm", entries[1].ContextMap()["tier"])

	require.Equal(t, zapcore.WarnLevel, entries[2].Level)
	require.EqualValues(t, 2, entries[2].ContextMap()["attempt"])

	require.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := NewZap(zap.New(core).Sugar())

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "shown", logs.All()[0].Message)
}

func TestNewZapProduction(t *testing.T) {
	logger, err := NewZapProduction("debug", true)
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewZapProduction("loud", false)
	require.Error(t, err)
}
