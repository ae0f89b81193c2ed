package service_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/docsmith-io/docsmith/internal/job"
	"github.com/docsmith-io/docsmith/internal/service"
)

func staleDir(t *testing.T, root, name string) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.Mkdir(path, 0o700))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func TestSupervisor_SweepRemovesStaleWorkspaces(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, job.Worker{Path: "true"})
	cfg.Sweep = service.SweepConfig{Enabled: true, Schedule: "@hourly", MaxAge: time.Hour}

	sup, err := service.NewSupervisor(t.Context(), cfg)
	require.NoError(t, err)
	defer sup.Close(t.Context())

	stale := staleDir(t, cfg.WorkspaceRoot, job.WorkspacePrefix+uuid.NewString())
	fresh := filepath.Join(cfg.WorkspaceRoot, job.WorkspacePrefix+uuid.NewString())
	require.NoError(t, os.Mkdir(fresh, 0o700))
	foreign := staleDir(t, cfg.WorkspaceRoot, "cache")

	sup.Sweep(t.Context())

	require.NoDirExists(t, stale)
	require.DirExists(t, fresh)
	require.DirExists(t, foreign)
}

func TestSupervisor_SweepSparesLiveJobs(t *testing.T) {
	t.Parallel()
	worker := fakeWorker(t, `
printf '%s' "ok" > "$out"
`)
	cfg := testConfig(t, worker)
	cfg.Sweep = service.SweepConfig{Enabled: true, Schedule: "@hourly", MaxAge: time.Hour}

	sup, err := service.NewSupervisor(t.Context(), cfg)
	require.NoError(t, err)
	defer sup.Close(t.Context())

	snapshot, err := sup.Submit(t.Context(), job.Request{
		Template: []byte("# S\n"),
		Section:  "S",
	})
	require.NoError(t, err)

	ch, cancel, err := sup.Subscribe(snapshot.ID)
	require.NoError(t, err)
	defer cancel()
	drainTerminal(t, ch)

	// The workspace itself is gone after the run, but a stale directory
	// named after a registered job must survive the sweep.
	live := staleDir(t, cfg.WorkspaceRoot, job.WorkspacePrefix+snapshot.ID.String())
	sup.Sweep(t.Context())
	require.DirExists(t, live)
}
