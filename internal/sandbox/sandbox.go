// Package sandbox runs model-written code away from the conversation
// process and captures what it prints.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itsuki0/term-assistant/internal/config"
)

// DefaultTimeout bounds a run when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Result is the outcome of one run. Output interleaves stdout and stderr
// in the order they were written.
type Result struct {
	Output   string
	ExitCode int
	TimedOut bool
}

// Failed reports whether the run should be surfaced as a tool error.
func (r Result) Failed() bool {
	return r.TimedOut || r.ExitCode != 0
}

// Runner executes a program. A non-nil error means the program could not
// be started at all; program failures are reported in Result.
type Runner interface {
	Name() string
	Run(ctx context.Context, code string) (Result, error)
}

// New creates the runner selected by cfg.Sandbox.Runner.
func New(cfg config.SandboxConfig) (Runner, error) {
	switch cfg.Runner {
	case config.RunnerPython, "":
		return NewPython(cfg.Python, cfg.Timeout), nil
	case config.RunnerStarlark:
		return NewStarlark(cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown sandbox runner: %s (valid: python, starlark)", cfg.Runner)
	}
}

// Describe renders a result as tool output text.
func Describe(r Result) string {
	var sb strings.Builder
	if r.TimedOut {
		sb.WriteString("[Execution timed out]\n\n")
	}
	if r.Output != "" {
		sb.WriteString(r.Output)
		if !strings.HasSuffix(r.Output, "\n") {
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("(no output)\n")
	}
	fmt.Fprintf(&sb, "\nexit_code: %d", r.ExitCode)
	return sb.String()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
