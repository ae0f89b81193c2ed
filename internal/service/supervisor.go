package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gocron "github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/docsmith-io/docsmith/internal/history"
	"github.com/docsmith-io/docsmith/internal/job"
	"github.com/docsmith-io/docsmith/internal/model"
)

var ErrShuttingDown = errors.New("supervisor is shutting down")

// Supervisor owns the registry of job controllers, the optional
// workspace sweeper and the optional persistent history. It never
// restarts or retries a job.
type Supervisor struct {
	cfg       Config
	scheduler gocron.Scheduler
	history   *history.Store

	mu     sync.Mutex
	jobs   map[uuid.UUID]*job.Controller
	timers map[uuid.UUID]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

func NewSupervisor(ctx context.Context, cfg Config) (*Supervisor, error) {
	s := &Supervisor{
		cfg:    cfg,
		jobs:   make(map[uuid.UUID]*job.Controller),
		timers: make(map[uuid.UUID]*time.Timer),
	}

	if cfg.HistoryPath != "" {
		store, err := history.Open(ctx, cfg.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("opening job history: %w", err)
		}
		s.history = store
	}

	if cfg.Sweep.Enabled {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
		}
		_, err = scheduler.NewJob(
			gocron.CronJob(cfg.Sweep.Schedule, false),
			gocron.NewTask(func() { s.sweep(ctx) }),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing sweep job: %w", err)
		}
		s.scheduler = scheduler
	}

	return s, nil
}

// Start launches the background sweeper, when configured.
func (s *Supervisor) Start() {
	if s.scheduler != nil {
		s.scheduler.Start()
	}
}

// Submit registers and starts one job, returning its initial snapshot.
// The job runs detached from the caller's cancellation: a disconnected
// client never kills a started worker.
func (s *Supervisor) Submit(ctx context.Context, req job.Request) (model.Job, error) {
	if req.Section == "" {
		return model.Job{}, fmt.Errorf("section is required")
	}
	if len(req.Template) == 0 {
		return model.Job{}, fmt.Errorf("template is required")
	}

	ctl := job.NewController(s.cfg.Worker, s.cfg.WorkspaceRoot, req)
	snapshot := ctl.Snapshot()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Job{}, ErrShuttingDown
	}

	// The insert must land before the job runs: a fast job's Finish
	// would otherwise race it and find no row.
	if s.history != nil {
		if err := s.history.Record(ctx, snapshot); err != nil {
			slog.ErrorContext(ctx, "recording job has failed", "job_id", ctl.ID(), "error", err)
		}
	}

	s.jobs[ctl.ID()] = ctl
	s.wg.Go(func() {
		runCtx := context.WithoutCancel(ctx)
		ctl.Run(runCtx)
		s.record(runCtx, ctl)
		s.retire(ctl.ID())
	})
	s.mu.Unlock()

	slog.InfoContext(ctx, "job submitted", "job_id", ctl.ID(), "section", req.Section)
	return snapshot, nil
}

// Job returns the current snapshot of a registered job.
func (s *Supervisor) Job(id uuid.UUID) (model.Job, error) {
	ctl, err := s.controller(id)
	if err != nil {
		return model.Job{}, err
	}
	return ctl.Snapshot(), nil
}

// Result returns the completion summary of a terminal job, nil while
// the job still runs.
func (s *Supervisor) Result(id uuid.UUID) (*model.CompletionResult, error) {
	ctl, err := s.controller(id)
	if err != nil {
		return nil, err
	}
	return ctl.Result(), nil
}

// Subscribe attaches a live subscriber to a job's channel.
func (s *Supervisor) Subscribe(id uuid.UUID) (<-chan model.Message, func(), error) {
	ctl, err := s.controller(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := ctl.Subscribe()
	return ch, cancel, nil
}

func (s *Supervisor) controller(id uuid.UUID) (*job.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctl, ok := s.jobs[id]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	return ctl, nil
}

// record writes the terminal outcome into the history.
func (s *Supervisor) record(ctx context.Context, ctl *job.Controller) {
	if s.history == nil {
		return
	}
	snapshot := ctl.Snapshot()
	var diagnostic string
	if res := ctl.Result(); res != nil {
		diagnostic = res.Diagnostic
	}
	if err := s.history.Finish(ctx, ctl.ID(), snapshot.Status, diagnostic); err != nil {
		slog.ErrorContext(ctx, "recording job outcome has failed", "job_id", ctl.ID(), "error", err)
	}
}

// History lists recently recorded jobs, newest first. It returns nil
// when no history is configured.
func (s *Supervisor) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

// retire keeps a terminal job queryable for the retention window, then
// drops it from the registry.
func (s *Supervisor) retire(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.timers[id] = time.AfterFunc(s.cfg.Retention, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.jobs, id)
		delete(s.timers, id)
	})
}

// Close stops the sweeper and retention timers and waits for running
// jobs to finish. Jobs in flight run to completion.
func (s *Supervisor) Close(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
		}
	}
	s.wg.Wait()

	if s.history != nil {
		if err := s.history.Close(); err != nil {
			slog.ErrorContext(ctx, "closing job history has failed", "error", err)
		}
	}
}

// sweep removes leftover workspace directories older than the
// configured age. Workspaces of registered jobs are never touched,
// deletion errors are logged and swallowed.
func (s *Supervisor) sweep(ctx context.Context) {
	root := s.cfg.WorkspaceRoot
	if root == "" {
		root = os.TempDir()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		slog.WarnContext(ctx, "sweep cannot read workspace root", "root", root, "error", err)
		return
	}

	cutoff := time.Now().Add(-s.cfg.Sweep.MaxAge)

	if s.history != nil {
		if pruned, err := s.history.Prune(ctx, cutoff); err != nil {
			slog.WarnContext(ctx, "pruning job history has failed", "error", err)
		} else if pruned > 0 {
			slog.InfoContext(ctx, "pruned job history", "rows", pruned)
		}
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), job.WorkspacePrefix) {
			continue
		}
		if id, err := uuid.Parse(strings.TrimPrefix(entry.Name(), job.WorkspacePrefix)); err == nil {
			if _, live := s.lookup(id); live {
				continue
			}
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.DebugContext(ctx, "sweep failed to remove workspace", "path", path, "error", err)
			continue
		}
		slog.InfoContext(ctx, "swept stale workspace", "path", path)
	}
}

func (s *Supervisor) lookup(id uuid.UUID) (*job.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctl, ok := s.jobs[id]
	return ctl, ok
}
