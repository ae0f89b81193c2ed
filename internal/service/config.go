package service

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/docsmith-io/docsmith/internal/job"
	"github.com/docsmith-io/docsmith/internal/model"
)

// Config carries everything the Supervisor needs to run jobs.
type Config struct {
	Worker        job.Worker
	WorkspaceRoot string
	Retention     time.Duration // how long finished jobs stay queryable
	Sweep         SweepConfig
	HistoryPath   string // sqlite job history, empty disables it
}

// SweepConfig drives the stale workspace sweeper.
type SweepConfig struct {
	Enabled  bool
	Schedule string // cron expression or @every macro
	MaxAge   time.Duration
}

const defaultRetention = 10 * time.Minute

// FromModel converts the validated configuration file into the
// supervisor's view, parsing the duration strings.
func FromModel(cfg model.Config) (Config, error) {
	out := Config{
		Worker: job.Worker{
			Path: cfg.Worker.Path,
			Args: cfg.Worker.Args,
			Env:  expandEnv(cfg.Worker.Env),
		},
		WorkspaceRoot: cfg.Worker.WorkspaceRoot,
		Retention:     defaultRetention,
	}

	if cfg.Service.Retention != "" {
		d, err := model.ParseAge(cfg.Service.Retention)
		if err != nil {
			return Config{}, fmt.Errorf("parsing service.retention: %w", err)
		}
		out.Retention = d
	}

	if cfg.History != nil {
		out.HistoryPath = cfg.History.Path
	}

	if s := cfg.Sweep; s != nil && (s.Enabled == nil || *s.Enabled) {
		if s.Schedule == "" || s.MaxAge == "" {
			return Config{}, fmt.Errorf("sweep requires both schedule and max_age")
		}
		if err := model.ParseCron(s.Schedule); err != nil {
			return Config{}, fmt.Errorf("parsing sweep.schedule: %w", err)
		}
		maxAge, err := model.ParseAge(s.MaxAge)
		if err != nil {
			return Config{}, fmt.Errorf("parsing sweep.max_age: %w", err)
		}
		out.Sweep = SweepConfig{
			Enabled:  true,
			Schedule: s.Schedule,
			MaxAge:   maxAge,
		}
	}

	return out, nil
}

// fileConfig mirrors the worker subtree of the configuration file for
// viper-based decoding.
type fileConfig struct {
	Path          string            `mapstructure:"path"`
	Args          []string          `mapstructure:"args"`
	Env           map[string]string `mapstructure:"env"`
	WorkspaceRoot string            `mapstructure:"workspace_root"`
}

// ParseWorker decodes the worker command template from viper under key,
// so environment overrides bound into viper take effect.
func ParseWorker(key string) (job.Worker, error) {
	var cfg fileConfig
	if err := viper.UnmarshalKey(key, &cfg); err != nil {
		return job.Worker{}, err
	}
	return job.Worker{
		Path: cfg.Path,
		Args: cfg.Args,
		Env:  expandEnv(cfg.Env),
	}, nil
}

// expandEnv flattens the env map into KEY=value pairs. Values starting
// with $ are expanded from the current environment, keys uppercased.
func expandEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		if strings.HasPrefix(v, "$") {
			v = os.ExpandEnv(v)
		}
		out = append(out, strings.ToUpper(k)+"="+v)
	}
	return out
}
