package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

// TestNewWithWriter verifies records are JSON and respect the level threshold.
func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Infof("dropped %d", 1)
	assert.Zero(t, buf.Len(), "info should be filtered at warn level")

	log.Warnf("evicted %d regions", 3)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "evicted 3 regions", rec["msg"])
}

func TestSlogLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", &buf).(*SlogLogger).With("channel", "ch1")

	log.Debugf("hello")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ch1", rec["channel"])
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Debugf("x")
	log.Infof("x")
	log.Warnf("x")
	log.Errorf("x")
}
