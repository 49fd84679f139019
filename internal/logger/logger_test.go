package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	cl := Component(l, "collector")
	cl.Info().Str("instrument", "EUR/USD").Msg("fetched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "collector", entry["component"])
	assert.Equal(t, "EUR/USD", entry["instrument"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(Config{Level: "loud"}, nil)
	assert.Error(t, err)
	_, err = New(Config{Format: "xml"}, nil)
	assert.Error(t, err)
}
