package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docsmith-io/docsmith/internal/model"
	"github.com/docsmith-io/docsmith/internal/service"
)

func TestFromModel_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := service.FromModel(model.Config{
		Worker: model.Worker{Path: "docsmith-worker"},
	})
	require.NoError(t, err)
	require.Equal(t, "docsmith-worker", cfg.Worker.Path)
	require.Equal(t, 10*time.Minute, cfg.Retention)
	require.False(t, cfg.Sweep.Enabled)
}

func TestFromModel_Full(t *testing.T) {
	t.Setenv("DOCSMITH_TEST_KEY", "secret")
	cfg, err := service.FromModel(model.Config{
		Service: model.Service{Retention: "1h30m"},
		Worker: model.Worker{
			Path:          "/opt/worker/run.sh",
			Args:          []string{"--model", "large"},
			Env:           map[string]string{"api_key": "$DOCSMITH_TEST_KEY"},
			WorkspaceRoot: "/var/lib/docsmith",
		},
		Sweep: &model.Sweep{Schedule: "0 3 * * *", MaxAge: "1d"},
	})
	require.NoError(t, err)
	require.Equal(t, 90*time.Minute, cfg.Retention)
	require.Equal(t, "/var/lib/docsmith", cfg.WorkspaceRoot)
	require.Contains(t, cfg.Worker.Env, "API_KEY=secret")
	require.True(t, cfg.Sweep.Enabled)
	require.Equal(t, 24*time.Hour, cfg.Sweep.MaxAge)
}

func TestFromModel_SweepDisabled(t *testing.T) {
	t.Parallel()
	off := false
	cfg, err := service.FromModel(model.Config{
		Worker: model.Worker{Path: "w"},
		Sweep:  &model.Sweep{Enabled: &off, Schedule: "@daily", MaxAge: "1d"},
	})
	require.NoError(t, err)
	require.False(t, cfg.Sweep.Enabled)
}

func TestFromModel_Invalid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		cfg  model.Config
	}{
		{"bad retention", model.Config{
			Service: model.Service{Retention: "soon"},
			Worker:  model.Worker{Path: "w"},
		}},
		{"sweep missing max_age", model.Config{
			Worker: model.Worker{Path: "w"},
			Sweep:  &model.Sweep{Schedule: "@daily"},
		}},
		{"sweep bad schedule", model.Config{
			Worker: model.Worker{Path: "w"},
			Sweep:  &model.Sweep{Schedule: "every tuesday", MaxAge: "1d"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.FromModel(tc.cfg)
			require.Error(t, err)
		})
	}
}
