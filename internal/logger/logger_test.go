package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.LogLevel
	}{
		{"debug", logger.DebugLevel},
		{"INFO", logger.InfoLevel},
		{"", logger.InfoLevel},
		{"warning", logger.WarnLevel},
		{"warn", logger.WarnLevel},
		{"error", logger.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := logger.ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := logger.ParseLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, true)
	logger.SetLogLevel(logger.DebugLevel)

	log := logger.New("bridge").With("init")
	log.Info().Int("attempt", 1).Msg("connecting")

	out := buf.String()
	assert.Contains(t, out, "connecting")
	assert.Contains(t, out, "bridge.init")
	assert.Contains(t, out, "attempt=1")
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, true)
	logger.SetLogLevel(logger.WarnLevel)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	logger.Debug().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
