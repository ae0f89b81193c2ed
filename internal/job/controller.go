package job

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docsmith-io/docsmith/internal/broadcast"
	"github.com/docsmith-io/docsmith/internal/log"
	"github.com/docsmith-io/docsmith/internal/model"
	"github.com/docsmith-io/docsmith/internal/resolve"
	"github.com/docsmith-io/docsmith/internal/stream"
)

// Worker is the configured command template all jobs are launched from.
type Worker struct {
	Path string
	Args []string // base arguments, before the per-job ones
	Env  []string
}

// Request carries one caller's inputs, treated as opaque blobs and
// identifiers: staged into the workspace or passed on the worker's
// command line, never interpreted.
type Request struct {
	Template     []byte // the template artifact
	Section      string // target section identifier
	Collection   string // document collection identifier
	Instructions string // optional free-text prompt override
	TopK         int
	Style        string
}

// Controller owns one job's whole lifecycle: workspace setup, worker
// launch, the two stream pipelines, result resolution and cleanup. A
// Controller, its reassemblers and its broadcaster belong to exactly
// one job, nothing is shared across jobs.
type Controller struct {
	worker   Worker
	root     string
	req      Request
	launcher Launcher
	bc       *broadcast.Broadcaster

	mu       sync.RWMutex
	job      model.Job
	result   *model.CompletionResult
	terminal *model.Message

	evMu   sync.Mutex
	events []model.LogEvent
}

func NewController(worker Worker, root string, req Request) *Controller {
	return &Controller{
		worker: worker,
		root:   root,
		req:    req,
		bc:     broadcast.New(),
		job: model.Job{
			ID:         uuid.New(),
			Section:    req.Section,
			Collection: req.Collection,
			Command:    worker.Path,
			Status:     model.StatusPending,
			CreatedAt:  time.Now().UTC(),
		},
	}
}

func (c *Controller) ID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.job.ID
}

// Snapshot returns the job's current state for status queries.
func (c *Controller) Snapshot() model.Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.job
}

// Result returns the completion summary once the job is terminal.
func (c *Controller) Result() *model.CompletionResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}

// Subscribe attaches a live subscriber to the job's channel. A
// subscriber arriving after the job finished receives the terminal
// message and nothing else.
func (c *Controller) Subscribe() (<-chan model.Message, func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.terminal != nil {
		ch := make(chan model.Message, 1)
		ch <- *c.terminal
		close(ch)
		return ch, func() {}
	}
	return c.bc.Subscribe()
}

// Run executes the job to completion. It publishes exactly one terminal
// message and cleans the workspace exactly once, on every exit path.
func (c *Controller) Run(ctx context.Context) {
	ctx = log.JobContext(ctx, c.job.ID)

	ws, err := NewWorkspace(c.root, c.job.ID)
	if err != nil {
		c.terminalError(ctx, err)
		return
	}
	defer ws.Cleanup(ctx)

	cmd, err := c.stage(ws)
	if err != nil {
		c.terminalError(ctx, err)
		return
	}

	handle, err := c.launcher.Start(ctx, cmd)
	if err != nil {
		// spawn failure: Pending -> Failed, the Running phase is never entered
		c.terminalError(ctx, err)
		return
	}
	c.markRunning(ws.Dir(), cmd)
	slog.InfoContext(ctx, "worker started", "path", cmd.Path, "section", c.req.Section)

	// One reader loop per physical stream, each with its own
	// reassembler. Interleaving between the two origins is
	// non-deterministic, order within each one is preserved.
	var stdoutRaw, stderrRaw bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		c.consume(ctx, handle.Stdout, model.OriginStdout, &stdoutRaw)
		return nil
	})
	g.Go(func() error {
		c.consume(ctx, handle.Stderr, model.OriginStderr, &stderrRaw)
		return nil
	})
	_ = g.Wait() // reader loops do not return errors

	status := <-handle.Wait()
	if status.Err != nil {
		slog.WarnContext(ctx, "waiting on worker", "error", status.Err)
	}

	resolver := resolve.Resolver{
		ResultPath: ws.ResultPath(),
		OutputPath: ws.OutputPath(),
	}
	result := resolver.Resolve(status.Code, stdoutRaw.Bytes(), stderrRaw.Bytes(), c.snapshotEvents())
	c.complete(ctx, result)
}

// stage materializes the request's blobs into the workspace and builds
// the worker command line.
func (c *Controller) stage(ws *Workspace) (Command, error) {
	templatePath, err := ws.Stage(TemplateFile, c.req.Template)
	if err != nil {
		return Command{}, err
	}

	args := append([]string(nil), c.worker.Args...)
	args = append(args,
		"--template", templatePath,
		"--section", c.req.Section,
		"--output", ws.OutputPath(),
		"--result-json", ws.ResultPath(),
	)
	if c.req.Collection != "" {
		args = append(args, "--collection", c.req.Collection)
	}
	if c.req.TopK > 0 {
		args = append(args, "--top-k", strconv.Itoa(c.req.TopK))
	}
	if c.req.Style != "" {
		args = append(args, "--style", c.req.Style)
	}
	if c.req.Instructions != "" {
		promptPath, err := ws.Stage(InstructionsFile, []byte(c.req.Instructions))
		if err != nil {
			return Command{}, err
		}
		args = append(args, "--prompt-file", promptPath)
	}

	return Command{
		Path: c.worker.Path,
		Args: args,
		Dir:  ws.Dir(),
		Env:  c.worker.Env,
	}, nil
}

// consume drains one physical stream, reassembling chunks into lines
// and emitting every line that classifies.
func (c *Controller) consume(ctx context.Context, rc io.ReadCloser, origin model.StreamOrigin, raw *bytes.Buffer) {
	defer func() {
		_ = rc.Close()
	}()

	re := stream.NewReassembler()
	buf := make([]byte, 4096)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			raw.Write(buf[:n])
			for _, line := range re.Feed(buf[:n]) {
				c.emit(line, origin)
			}
		}
		if err != nil {
			if line, ok := re.Flush(); ok {
				c.emit(line, origin)
			}
			if !errors.Is(err, io.EOF) {
				slog.DebugContext(ctx, "reading worker stream", "origin", origin, "error", err)
			}
			return
		}
	}
}

// emit appends a classified event to the job's owned event list and
// forwards it live. The mutex serializes the two reader loops so every
// published frame stays whole, order within one origin is untouched.
func (c *Controller) emit(line string, origin model.StreamOrigin) {
	ev, ok := stream.Classify(line, origin)
	if !ok {
		return
	}
	c.evMu.Lock()
	c.events = append(c.events, ev)
	c.bc.Publish(model.Message{Type: model.MessageLog, Event: &ev})
	c.evMu.Unlock()
}

func (c *Controller) snapshotEvents() []model.LogEvent {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	return append([]model.LogEvent(nil), c.events...)
}

func (c *Controller) markRunning(dir string, cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job.Status.Terminal() {
		return
	}
	c.job.Status = model.StatusRunning
	c.job.Workspace = dir
	c.job.Args = cmd.Args
}

// complete records the terminal state and publishes the one complete
// frame, then shuts the channel down.
func (c *Controller) complete(ctx context.Context, res model.CompletionResult) {
	msg := model.Message{Type: model.MessageComplete, Result: &res}
	c.mu.Lock()
	c.job.Status = res.Status
	c.result = &res
	c.terminal = &msg
	c.bc.Publish(msg)
	c.bc.Close()
	c.mu.Unlock()
	slog.InfoContext(ctx, "job finished", "status", res.Status, "exit_code", res.ExitCode)
}

// terminalError publishes the channel-level error frame used when the
// job could not produce a completion summary at all.
func (c *Controller) terminalError(ctx context.Context, err error) {
	msg := model.Message{Type: model.MessageError, Error: err.Error()}
	c.mu.Lock()
	c.job.Status = model.StatusFailed
	c.terminal = &msg
	c.bc.Publish(msg)
	c.bc.Close()
	c.mu.Unlock()
	slog.ErrorContext(ctx, "job failed to run", "error", err)
}
