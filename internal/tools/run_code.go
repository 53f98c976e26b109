package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/itsuki0/term-assistant/internal/llm"
	"github.com/itsuki0/term-assistant/internal/sandbox"
)

// maxOutputBytes caps the captured output returned to the model.
const maxOutputBytes = 50 * 1024

// RunCodeTool implements RUN_CODE.
type RunCodeTool struct {
	runner sandbox.Runner
}

// NewRunCodeTool creates a new RunCodeTool.
func NewRunCodeTool(runner sandbox.Runner) *RunCodeTool {
	return &RunCodeTool{runner: runner}
}

// RunCodeArgs are the arguments for RUN_CODE.
type RunCodeArgs struct {
	Code string `json:"code" jsonschema_description:"The program to run. It cannot read local files; pass data in the code itself. Print the results you need."`
}

func (t *RunCodeTool) ID() ID { return RunCode }

func (t *RunCodeTool) Spec() (llm.ToolSpec, error) {
	lang := "Python"
	if t.runner != nil && t.runner.Name() == "starlark" {
		lang = "Starlark (a Python dialect)"
	}
	return toolSpec[RunCodeArgs](RunCode,
		fmt.Sprintf("Run %s code in a sandbox for data analysis or math and return what it prints to stdout and stderr.", lang))
}

func (t *RunCodeTool) Preview(input llm.Value) string {
	var a RunCodeArgs
	if err := decodeArgs(input, &a); err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(a.Code), "\n")
	return truncatePreview(line, 50)
}

func (t *RunCodeTool) Execute(ctx context.Context, id string, input llm.Value) llm.ToolResult {
	var a RunCodeArgs
	if err := decodeArgs(input, &a); err != nil {
		return errorResult(id, err)
	}
	if strings.TrimSpace(a.Code) == "" {
		return errorResult(id, NewToolError(ErrInvalidParams, "code is required"))
	}
	if t.runner == nil {
		return errorResult(id, NewToolError(ErrExecutionFailed, "no sandbox configured"))
	}

	res, err := t.runner.Run(ctx, a.Code)
	if err != nil {
		return errorResult(id, NewToolErrorf(ErrExecutionFailed, "%v", err))
	}

	truncated := false
	if len(res.Output) > maxOutputBytes {
		res.Output = truncateBytes(res.Output, maxOutputBytes)
		truncated = true
	}
	text := sandbox.Describe(res)
	if truncated {
		text += "\n\n[Output truncated due to size limit]"
	}

	switch {
	case res.TimedOut:
		return errorResult(id, NewToolError(ErrTimeout, text))
	case res.ExitCode != 0:
		return errorResult(id, NewToolError(ErrExecutionFailed, text))
	default:
		return llm.TextResult(id, llm.ToolSuccess, text)
	}
}
