package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSlogText(t *testing.T) {
	t.Run("filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewSlogText(&buf, "warn")
		require.NoError(t, err)

		logger.Debug("polling leader key")
		logger.Info("connected", "leader", "http://game1:5001")
		logger.Warn("leader unreachable", "leader", "http://game1:5001")
		logger.Error("retries exhausted", "attempts", 3)

		out := buf.String()
		require.NotContains(t, out, "polling leader key")
		require.NotContains(t, out, "connected")
		require.Contains(t, out, `level=WARN msg="leader unreachable" leader=http://game1:5001`)
		require.Contains(t, out, `level=ERROR msg="retries exhausted" attempts=3`)
	})

	t.Run("debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewSlogText(&buf, "DEBUG")
		require.NoError(t, err)

		logger.Debug("move rejected", "room", "1234", "tier", "tictactoe-service")
		require.Contains(t, buf.String(), "room=1234 tier=tictactoe-service")
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := NewSlogText(&bytes.Buffer{}, "loud")
		require.ErrorContains(t, err, `invalid log level "loud"`)
	})
}
