package job_test

import (
	"io"
	"os/exec"
	"testing"

	"github.com/docsmith-io/docsmith/internal/job"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLauncher(t *testing.T) {
	t.Parallel()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}

	var launcher job.Launcher
	handle, err := launcher.Start(t.Context(), job.Command{
		Path: sh,
		Args: []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})
	require.NoError(t, err)

	stdout, err := io.ReadAll(handle.Stdout)
	require.NoError(t, err)
	stderr, err := io.ReadAll(handle.Stderr)
	require.NoError(t, err)

	status := <-handle.Wait()
	require.NoError(t, status.Err)
	require.Equal(t, 3, status.Code)
	require.Equal(t, "out\n", string(stdout))
	require.Equal(t, "err\n", string(stderr))

	// the channel yields once and is closed afterwards
	_, open := <-handle.Wait()
	require.False(t, open)
}

func TestLauncher_SpawnError(t *testing.T) {
	t.Parallel()

	var launcher job.Launcher
	_, err := launcher.Start(t.Context(), job.Command{
		Path: "/does/not/exist/docsmith-worker",
	})
	require.Error(t, err)
	require.ErrorContains(t, err, "starting worker")
}

// Output produced after a long pause must still be read in full: the
// read ends stay open until the readers hit EOF, reaping cannot close
// them early.
func TestLauncher_SlowOutputNotTruncated(t *testing.T) {
	t.Parallel()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}

	var launcher job.Launcher
	handle, err := launcher.Start(t.Context(), job.Command{
		Path: sh,
		Args: []string{"-c", "printf begin; sleep 0.2; printf end"},
	})
	require.NoError(t, err)

	stdout, err := io.ReadAll(handle.Stdout)
	require.NoError(t, err)
	_, _ = io.ReadAll(handle.Stderr)

	status := <-handle.Wait()
	require.Equal(t, 0, status.Code)
	require.Equal(t, "beginend", string(stdout))
}
