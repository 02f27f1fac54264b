package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComponentTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{Format: "json"}) })

	log := Component("registry")
	log.Debug().Str("theme_id", "dark").Msg("theme registered")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "registry", line["component"])
	require.Equal(t, "dark", line["theme_id"])
	require.Equal(t, "debug", line["level"])
}

func TestInitFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "bogus", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{Format: "json"}) })

	log := Component("test")
	log.Debug().Msg("hidden")
	require.Zero(t, buf.Len())

	log.Info().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestUseConsole(t *testing.T) {
	var buf bytes.Buffer
	require.True(t, useConsole("console", &buf))
	require.False(t, useConsole("json", &buf))
	require.False(t, useConsole("auto", &buf))
}
