// Package resolve determines a finished job's final content and status
// through an ordered fallback: the worker's structured result artifact,
// then its plain content artifact, then the raw captured stdout.
package resolve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/docsmith-io/docsmith/internal/model"
)

// tailLimit bounds the raw stream tails kept in the completion summary.
const tailLimit = 8 * 1024

// resultArtifact is the structured artifact an honest worker writes on
// success: the final content plus opaque verification metadata.
type resultArtifact struct {
	Content      string          `json:"content"`
	Verification json.RawMessage `json:"verification"`
}

// Resolver resolves one job from its known artifact locations. The
// strategies are tried strictly in order, first match wins, so a later
// failure can never be masked by an earlier unrelated success.
type Resolver struct {
	ResultPath string // structured artifact (content + verification)
	OutputPath string // plain content artifact
}

// Resolve inspects the artifacts and captured streams and builds the
// terminal CompletionResult. Content found by the fallback chain is
// attached even when the job fails, for diagnostic display.
func (r Resolver) Resolve(exitCode int, stdout, stderr []byte, events []model.LogEvent) model.CompletionResult {
	res := model.CompletionResult{
		Events:    events,
		ExitCode:  exitCode,
		RawStdout: tail(stdout),
		RawStderr: tail(stderr),
	}
	res.Content, res.Verification = r.content(stdout)

	switch {
	case strings.HasPrefix(res.Content, model.FailureSentinel):
		// a worker may exit 0 yet still signal a logical failure
		res.Status = model.StatusFailed
		res.Diagnostic = strings.TrimSpace(strings.TrimPrefix(res.Content, model.FailureSentinel))

	case exitCode != 0:
		res.Status = model.StatusFailed
		res.Diagnostic = runtimeDiagnostic(exitCode, stdout, stderr)

	case res.Content == "":
		res.Status = model.StatusFailed
		res.Diagnostic = model.ErrNoContent.Error()

	default:
		res.Status = model.StatusCompleted
	}
	return res
}

// content walks the fallback tiers. A malformed or empty structured
// artifact falls through to the next tier rather than failing the job.
func (r Resolver) content(stdout []byte) (string, json.RawMessage) {
	if raw, err := os.ReadFile(r.ResultPath); err == nil {
		var artifact resultArtifact
		if err := json.Unmarshal(raw, &artifact); err == nil && artifact.Content != "" {
			return artifact.Content, artifact.Verification
		}
	}

	if raw, err := os.ReadFile(r.OutputPath); err == nil {
		if content := strings.TrimSpace(string(raw)); content != "" {
			return content, nil
		}
	}

	return strings.TrimSpace(string(stdout)), nil
}

func runtimeDiagnostic(exitCode int, stdout, stderr []byte) string {
	detail := tail(stderr)
	if detail == "" {
		detail = tail(stdout)
	}
	if detail == "" {
		return fmt.Sprintf("worker exited with code %d", exitCode)
	}
	return fmt.Sprintf("worker exited with code %d: %s", exitCode, strings.TrimSpace(detail))
}

func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > tailLimit {
		b = b[len(b)-tailLimit:]
	}
	return string(b)
}
