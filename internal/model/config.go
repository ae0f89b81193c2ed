package model

import (
	"context"
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}
	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int      `json:"version" yaml:"version"` // fixed 0 for now
	Service Service  `json:"service" yaml:"service"`
	Worker  Worker   `json:"worker" yaml:"worker"`
	Sweep   *Sweep   `json:"sweep,omitempty" yaml:"sweep,omitempty"`
	History *History `json:"history,omitempty" yaml:"history,omitempty"`
}

// Service holds the HTTP surface settings.
type Service struct {
	Listen    string `json:"listen,omitempty" yaml:"listen,omitempty"`
	Verbose   bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Retention string `json:"retention,omitempty" yaml:"retention,omitempty"` // how long finished jobs stay queryable
}

// Worker describes the external generation process. Everything here is
// opaque pass-through, docsmith never interprets it.
type Worker struct {
	Path          string            `json:"path" yaml:"path"`
	Args          []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env           map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	WorkspaceRoot string            `json:"workspace_root,omitempty" yaml:"workspace_root,omitempty"`
}

// History configures the persistent job record.
type History struct {
	Path string `json:"path" yaml:"path"`
}

// Sweep configures the stale workspace sweeper.
type Sweep struct {
	Enabled  *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"` // cron expression or @every macro
	MaxAge   string `json:"max_age,omitempty" yaml:"max_age,omitempty"`  // e.g. "1d", "12h30m"
}

// LoadConfig validates YAML from r against the CUE schema and decodes
// it into Config.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DefaultConfig is written on first run when no configuration exists.
func DefaultConfig(_ context.Context) Config {
	return Config{
		Version: 0,
		Service: Service{
			Listen:    "localhost:8044",
			Retention: "10m",
		},
		Worker: Worker{
			Path: "docsmith-worker",
		},
	}
}
