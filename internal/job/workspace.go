package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Well-known file names inside a workspace. The worker receives the
// absolute paths on its command line and writes the artifacts itself.
const (
	TemplateFile     = "template.md"
	InstructionsFile = "instructions.txt"
	ResultFile       = "result.json"
	OutputFile       = "output.md"
)

// WorkspacePrefix names job workspace directories under the root, so
// the sweeper can tell them apart from anything else living there.
const WorkspacePrefix = "job-"

// Workspace is the isolated directory owned by exactly one job. All
// staged inputs and worker artifacts live under it and are destroyed
// with it at job end regardless of outcome.
type Workspace struct {
	dir     string
	cleanup sync.Once
}

// NewWorkspace allocates the directory for one job under root.
func NewWorkspace(root string, id uuid.UUID) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, WorkspacePrefix+id.String())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Stage materializes one opaque input blob into the workspace and
// returns its absolute path. name is flattened to its base, nothing can
// be staged outside the workspace.
func (w *Workspace) Stage(name string, blob []byte) (string, error) {
	path := filepath.Join(w.dir, filepath.Base(name))
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return "", fmt.Errorf("staging %s: %w", name, err)
	}
	return path, nil
}

func (w *Workspace) ResultPath() string {
	return filepath.Join(w.dir, ResultFile)
}

func (w *Workspace) OutputPath() string {
	return filepath.Join(w.dir, OutputFile)
}

// Cleanup deletes the workspace and everything in it. It runs at most
// once, deletion errors are logged and swallowed, never surfaced.
func (w *Workspace) Cleanup(ctx context.Context) {
	w.cleanup.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			slog.DebugContext(ctx, "workspace cleanup failed", "dir", w.dir, "error", err)
		}
	})
}
