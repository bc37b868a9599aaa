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
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	for input, expected := range cases {
		level, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, level, input)
	}
}

func TestParseLevel_Invalid(t *testing.T) {
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelInfo, FormatJSON).With("name", "test").Info("hello", "chain_id", 43113)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "test", line["name"])
	assert.EqualValues(t, 43113, line["chain_id"])
}

func TestNew_TextFormatRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn, FormatText)

	log.Info("dropped")
	assert.Empty(t, buf.String())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestNew_RedactsRegisteredSecrets(t *testing.T) {
	RegisterSecret("/v2/alchemy-key-1234")

	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo, FormatJSON)
	log.With("err", `Post "https://polygon-mumbai.g.alchemy.com/v2/alchemy-key-1234": dial tcp: refused`).Error("rpc failed")

	assert.NotContains(t, buf.String(), "alchemy-key-1234")
	assert.Contains(t, buf.String(), "polygon-mumbai.g.alchemy.com"+redactedMarker)
}

func TestRegisterSecret_IgnoresShortValues(t *testing.T) {
	RegisterSecret("/")

	var buf bytes.Buffer
	New(&buf, slog.LevelInfo, FormatText).Info("path", "value", "/")

	assert.NotContains(t, buf.String(), redactedMarker)
}
