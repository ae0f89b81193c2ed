package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docsmith-io/docsmith/internal/job"
	"github.com/docsmith-io/docsmith/internal/model"
	"github.com/docsmith-io/docsmith/internal/parallel"
)

// GenerateRequest describes one foreground generation run.
type GenerateRequest struct {
	TemplatePath string
	Section      string
	Collection   string
	Instructions string
	TopK         int
	Style        string

	// OutputPath receives the generated document. Empty means stdout.
	OutputPath string
}

// Generate runs a single job in the foreground, prints its log events
// to stderr and writes the generated content to the requested output.
// The process's exit decision belongs to the caller: a Failed job is
// reported through the returned error.
func Generate(ctx context.Context, cfg Config, req GenerateRequest) error {
	template, err := os.ReadFile(req.TemplatePath)
	if err != nil {
		return fmt.Errorf("reading template: %w", err)
	}

	content, err := runOnce(ctx, cfg, template, req)
	if err != nil {
		return err
	}
	return writeContent(req.OutputPath, content)
}

// BatchRequest generates several sections of one template, each in its
// own job.
type BatchRequest struct {
	TemplatePath string
	Sections     []string
	Collection   string
	Instructions string
	TopK         int
	Style        string

	// OutputDir receives one <section>.md file per section.
	OutputDir string
	// Parallelism caps concurrently running workers, minimum 1.
	Parallelism int
}

// GenerateBatch runs one job per section with bounded parallelism. All
// sections are attempted, the joined error reports every failed one.
func GenerateBatch(ctx context.Context, cfg Config, req BatchRequest) error {
	template, err := os.ReadFile(req.TemplatePath)
	if err != nil {
		return fmt.Errorf("reading template: %w", err)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	results := parallel.Map(ctx, req.Parallelism, req.Sections,
		func(ctx context.Context, section string) (string, error) {
			return runOnce(ctx, cfg, template, GenerateRequest{
				Section:      section,
				Collection:   req.Collection,
				Instructions: req.Instructions,
				TopK:         req.TopK,
				Style:        req.Style,
			})
		})

	var errs []error
	for i, res := range results {
		section := req.Sections[i]
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("section %q: %w", section, res.Err))
			continue
		}
		path := filepath.Join(req.OutputDir, sectionFileName(section))
		if err := os.WriteFile(path, []byte(res.Value), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("section %q: writing output: %w", section, err))
			continue
		}
		slog.InfoContext(ctx, "section generated", "section", section, "path", path)
	}
	return errors.Join(errs...)
}

// runOnce drives one controller to completion and returns the
// generated content.
func runOnce(ctx context.Context, cfg Config, template []byte, req GenerateRequest) (string, error) {
	ctl := job.NewController(cfg.Worker, cfg.WorkspaceRoot, job.Request{
		Template:     template,
		Section:      req.Section,
		Collection:   req.Collection,
		Instructions: req.Instructions,
		TopK:         req.TopK,
		Style:        req.Style,
	})

	msgs, cancel := ctl.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctl.Run(ctx)
	}()

	var result *model.CompletionResult
	var failure string
	for msg := range msgs {
		switch msg.Type {
		case model.MessageLog:
			if msg.Event != nil {
				logEvent(ctx, *msg.Event)
			}
		case model.MessageComplete:
			result = msg.Result
		case model.MessageError:
			failure = msg.Error
		}
	}
	<-done

	if failure != "" {
		return "", fmt.Errorf("generation failed: %s", failure)
	}
	if result == nil {
		// The controller is terminal once Run returns, so the summary
		// is authoritative even if the channel delivery was missed.
		result = ctl.Result()
	}
	if result == nil {
		return "", fmt.Errorf("job produced no completion")
	}
	if result.Status == model.StatusFailed {
		if result.Diagnostic != "" {
			return "", fmt.Errorf("generation failed: %s", result.Diagnostic)
		}
		return "", fmt.Errorf("generation failed")
	}
	return result.Content, nil
}

func writeContent(path, content string) error {
	if path == "" {
		_, err := io.WriteString(os.Stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// sectionFileName flattens a section name into a safe markdown file
// name, "Getting Started" becomes getting-started.md.
func sectionFileName(section string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(section) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "section"
	}
	return name + ".md"
}

func logEvent(ctx context.Context, ev model.LogEvent) {
	switch ev.Kind {
	case model.EventError:
		slog.ErrorContext(ctx, ev.Message, "origin", ev.Origin)
	case model.EventWarning:
		slog.WarnContext(ctx, ev.Message, "origin", ev.Origin)
	default:
		slog.InfoContext(ctx, ev.Message, "origin", ev.Origin)
	}
}
