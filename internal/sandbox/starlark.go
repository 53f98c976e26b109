package sandbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const defaultMaxSteps = 50_000_000

// Starlark runs Python-like code in-process with no filesystem or network
// access.
type Starlark struct {
	timeout  time.Duration
	maxSteps uint64
}

func NewStarlark(timeout time.Duration) *Starlark {
	return &Starlark{timeout: timeout, maxSteps: defaultMaxSteps}
}

func (s *Starlark) Name() string {
	return "starlark"
}

func (s *Starlark) Run(ctx context.Context, code string) (Result, error) {
	execCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var out strings.Builder
	thread := &starlark.Thread{
		Name: "run_code",
		Print: func(_ *starlark.Thread, msg string) {
			out.WriteString(msg)
			out.WriteByte('\n')
		},
	}
	thread.SetMaxExecutionSteps(s.maxSteps)
	stop := context.AfterFunc(execCtx, func() {
		thread.Cancel(execCtx.Err().Error())
	})
	defer stop()

	predeclared := starlark.StringDict{
		"json": json.Module,
		"math": math.Module,
	}
	opts := &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
	_, err := starlark.ExecFileOptions(opts, thread, "main.star", code, predeclared)

	result := Result{}
	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			result.TimedOut = true
			result.ExitCode = -1
		} else {
			result.ExitCode = 1
		}
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			out.WriteString(evalErr.Backtrace())
		} else {
			out.WriteString(err.Error())
		}
		out.WriteByte('\n')
	}
	result.Output = out.String()
	return result, nil
}
