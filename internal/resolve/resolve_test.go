package resolve_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docsmith-io/docsmith/internal/model"
	"github.com/docsmith-io/docsmith/internal/resolve"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) (resolve.Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	return resolve.Resolver{
		ResultPath: filepath.Join(dir, "result.json"),
		OutputPath: filepath.Join(dir, "output.md"),
	}, dir
}

func TestResolve_StructuredArtifactWins(t *testing.T) {
	t.Parallel()
	r, dir := newResolver(t)

	artifact := `{"content": "# Stability\n\nall good", "verification": {"score": 0.93}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "result.json"), []byte(artifact), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.md"), []byte("# plain artifact"), 0o600))

	res := r.Resolve(0, []byte("stdout noise"), nil, nil)
	require.Equal(t, model.StatusCompleted, res.Status)
	require.Equal(t, "# Stability\n\nall good", res.Content)
	require.JSONEq(t, `{"score": 0.93}`, string(res.Verification))
}

func TestResolve_PlainArtifactFallback(t *testing.T) {
	t.Parallel()
	r, dir := newResolver(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.md"), []byte("# Overview\n\ncontent\n"), 0o600))

	res := r.Resolve(0, nil, nil, nil)
	require.Equal(t, model.StatusCompleted, res.Status)
	require.Equal(t, "# Overview\n\ncontent", res.Content)
	require.Nil(t, res.Verification)
}

func TestResolve_MalformedArtifactFallsThrough(t *testing.T) {
	t.Parallel()
	r, dir := newResolver(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "result.json"), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.md"), []byte("fallback content"), 0o600))

	res := r.Resolve(0, nil, nil, nil)
	require.Equal(t, model.StatusCompleted, res.Status)
	require.Equal(t, "fallback content", res.Content)
}

func TestResolve_StdoutLastTier(t *testing.T) {
	t.Parallel()
	r, _ := newResolver(t)

	res := r.Resolve(0, []byte("generated straight to stdout\n"), nil, nil)
	require.Equal(t, model.StatusCompleted, res.Status)
	require.Equal(t, "generated straight to stdout", res.Content)
}

func TestResolve_NonzeroExit(t *testing.T) {
	t.Parallel()

	t.Run("empty output", func(t *testing.T) {
		t.Parallel()
		r, _ := newResolver(t)
		res := r.Resolve(2, nil, nil, nil)
		require.Equal(t, model.StatusFailed, res.Status)
		require.Empty(t, res.Content)
		require.Contains(t, res.Diagnostic, "exited with code 2")
	})

	t.Run("stderr preferred for diagnostics", func(t *testing.T) {
		t.Parallel()
		r, _ := newResolver(t)
		res := r.Resolve(1, []byte("some stdout"), []byte("traceback: boom"), nil)
		require.Equal(t, model.StatusFailed, res.Status)
		require.Contains(t, res.Diagnostic, "traceback: boom")
	})

	t.Run("stdout fallback for diagnostics", func(t *testing.T) {
		t.Parallel()
		r, _ := newResolver(t)
		res := r.Resolve(1, []byte("only stdout detail"), nil, nil)
		require.Contains(t, res.Diagnostic, "only stdout detail")
	})

	t.Run("content still attached", func(t *testing.T) {
		t.Parallel()
		r, dir := newResolver(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "output.md"), []byte("partial draft"), 0o600))
		res := r.Resolve(3, nil, nil, nil)
		require.Equal(t, model.StatusFailed, res.Status)
		require.Equal(t, "partial draft", res.Content)
	})
}

func TestResolve_SentinelOverridesSuccess(t *testing.T) {
	t.Parallel()
	r, dir := newResolver(t)

	sentinel := model.FailureSentinel + " collection is empty"
	artifact := `{"content": "` + model.FailureSentinel + ` collection is empty"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "result.json"), []byte(artifact), 0o600))

	res := r.Resolve(0, nil, nil, nil)
	require.Equal(t, model.StatusFailed, res.Status)
	require.Equal(t, sentinel, res.Content)
	require.Equal(t, "collection is empty", res.Diagnostic)
}

func TestResolve_EmptyEverything(t *testing.T) {
	t.Parallel()
	r, _ := newResolver(t)
	res := r.Resolve(0, nil, nil, nil)
	require.Equal(t, model.StatusFailed, res.Status)
	require.Empty(t, res.Content)
	require.Equal(t, "no content produced", res.Diagnostic)
}

func TestResolve_TailsBounded(t *testing.T) {
	t.Parallel()
	r, _ := newResolver(t)

	big := []byte(strings.Repeat("x", 64*1024))
	res := r.Resolve(1, big, big, nil)
	require.LessOrEqual(t, len(res.RawStdout), 8*1024)
	require.LessOrEqual(t, len(res.RawStderr), 8*1024)
}

func TestResolve_EventsCarried(t *testing.T) {
	t.Parallel()
	r, _ := newResolver(t)

	events := []model.LogEvent{
		{Kind: model.EventProgress, Message: "retrieving documents", Origin: model.OriginStdout},
		{Kind: model.EventError, Message: "timeout", Origin: model.OriginStderr},
	}
	res := r.Resolve(0, []byte("content"), nil, events)
	require.Equal(t, events, res.Events)
}
