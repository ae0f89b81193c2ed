package model_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/docsmith-io/docsmith/internal/model"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
service:
  listen: localhost:8044
  verbose: true
  retention: 5m
worker:
  path: /usr/local/bin/docsmith-worker
  args:
    - --provider
    - openai
  env:
    OPENAI_API_KEY: $OPENAI_API_KEY
sweep:
  enabled: true
  schedule: "@hourly"
  max_age: 1d
history:
  path: /var/lib/docsmith/history.db
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, "localhost:8044", cfg.Service.Listen)
	require.True(t, cfg.Service.Verbose)
	require.Equal(t, "/usr/local/bin/docsmith-worker", cfg.Worker.Path)
	require.Equal(t, []string{"--provider", "openai"}, cfg.Worker.Args)
	require.NotNil(t, cfg.Sweep)
	require.NotNil(t, cfg.Sweep.Enabled)
	require.True(t, *cfg.Sweep.Enabled)
	require.Equal(t, "@hourly", cfg.Sweep.Schedule)
	require.Equal(t, "1d", cfg.Sweep.MaxAge)
	require.NotNil(t, cfg.History)
	require.Equal(t, "/var/lib/docsmith/history.db", cfg.History.Path)
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Run("missing worker path", func(t *testing.T) {
		yml := `
version: 0
service: {}
worker: {}
`
		_, err := model.LoadConfig(strings.NewReader(yml))
		require.Error(t, err)
		details := model.CueErrDetails(err)
		require.NotEmpty(t, details)
	})

	t.Run("unknown field", func(t *testing.T) {
		yml := `
version: 0
service:
  listne: localhost:8044
worker:
  path: docsmith-worker
`
		_, err := model.LoadConfig(strings.NewReader(yml))
		require.Error(t, err)
	})

	t.Run("wrong version", func(t *testing.T) {
		yml := `
version: 42
service: {}
worker:
  path: docsmith-worker
`
		_, err := model.LoadConfig(strings.NewReader(yml))
		require.Error(t, err)
	})
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := model.DefaultConfig(t.Context())
	require.Equal(t, 0, cfg.Version)
	require.NotEmpty(t, cfg.Worker.Path)
	require.NotEmpty(t, cfg.Service.Listen)

	// The config written on first run must load back cleanly.
	var buf bytes.Buffer
	require.NoError(t, yaml.NewEncoder(&buf).Encode(cfg))
	loaded, err := model.LoadConfig(&buf)
	require.NoError(t, err)
	require.Equal(t, cfg.Worker.Path, loaded.Worker.Path)
}
