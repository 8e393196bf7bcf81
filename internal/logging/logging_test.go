package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLevel(tc.in))
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json")
	logger.Info().Int("move", 4).Msg("chosen")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "chosen", entry["message"])
	assert.Equal(t, float64(4), entry["move"])
	assert.Contains(t, entry, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "console")
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}
