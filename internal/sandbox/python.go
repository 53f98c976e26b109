package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Python runs code with a host interpreter inside a scratch directory.
type Python struct {
	interpreter string
	timeout     time.Duration
}

func NewPython(interpreter string, timeout time.Duration) *Python {
	if interpreter == "" {
		interpreter = "python3.11"
	}
	return &Python{interpreter: interpreter, timeout: timeout}
}

func (p *Python) Name() string {
	return "python"
}

func (p *Python) Run(ctx context.Context, code string) (Result, error) {
	dir, err := os.MkdirTemp("", "term-assistant-run-")
	if err != nil {
		return Result{}, fmt.Errorf("cannot create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	script := filepath.Join(dir, "main.py")
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		return Result{}, fmt.Errorf("cannot write script: %w", err)
	}

	execCtx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	// -I: isolated mode, ignores PYTHON* env vars and the user site dir
	cmd := exec.CommandContext(execCtx, p.interpreter, "-I", script)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err = cmd.Run()
	result := Result{Output: out.String()}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("cannot run %s: %w", p.interpreter, err)
	}
	return result, nil
}
