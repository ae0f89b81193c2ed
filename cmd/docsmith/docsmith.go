package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/docsmith-io/docsmith/internal/log"
	"github.com/docsmith-io/docsmith/internal/server"
	"github.com/docsmith-io/docsmith/internal/service"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	flagTemplate     string
	flagSections     []string
	flagCollection   string
	flagInstructions string
	flagTopK         int
	flagStyle        string
	flagOutput       string
	flagParallel     int
)

func doServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	attrs := slog.Group("docsmith",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	cfg, err := serviceConfig()
	if err != nil {
		return err
	}

	supervisor, err := service.NewSupervisor(ctx, cfg)
	if err != nil {
		return err
	}
	supervisor.Start()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(config.Service.Listen, supervisor).Run(ctx)
	})
	err = g.Wait()

	supervisor.Close(ctx)
	return err
}

func doGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("docsmith",
		slog.String("cmd", "generate"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	cfg, err := serviceConfig()
	if err != nil {
		return err
	}

	var instructions string
	if flagInstructions != "" {
		blob, err := os.ReadFile(flagInstructions)
		if err != nil {
			return err
		}
		instructions = string(blob)
	}

	if len(flagSections) > 1 {
		if flagOutput == "" {
			return fmt.Errorf("--output directory is required with several sections")
		}
		return service.GenerateBatch(ctx, cfg, service.BatchRequest{
			TemplatePath: flagTemplate,
			Sections:     flagSections,
			Collection:   flagCollection,
			Instructions: instructions,
			TopK:         flagTopK,
			Style:        flagStyle,
			OutputDir:    flagOutput,
			Parallelism:  flagParallel,
		})
	}

	return service.Generate(ctx, cfg, service.GenerateRequest{
		TemplatePath: flagTemplate,
		Section:      flagSections[0],
		Collection:   flagCollection,
		Instructions: instructions,
		TopK:         flagTopK,
		Style:        flagStyle,
		OutputPath:   flagOutput,
	})
}

// serviceConfig converts the loaded file into the supervisor view and
// applies DOCSMITH_* worker overrides bound through viper.
func serviceConfig() (service.Config, error) {
	cfg, err := service.FromModel(*config)
	if err != nil {
		return service.Config{}, err
	}
	worker, err := service.ParseWorker("worker")
	if err != nil {
		return service.Config{}, err
	}
	if worker.Path != "" {
		cfg.Worker.Path = worker.Path
	}
	if len(worker.Args) > 0 {
		cfg.Worker.Args = worker.Args
	}
	if len(worker.Env) > 0 {
		cfg.Worker.Env = append(cfg.Worker.Env, worker.Env...)
	}
	return cfg, nil
}
