package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/itsuki0/term-assistant/internal/image"
	"github.com/itsuki0/term-assistant/internal/llm"
	"github.com/itsuki0/term-assistant/internal/sandbox"
)

// Deps are the collaborators the tools run against.
type Deps struct {
	Files        FileSystem
	Images       image.Generator
	PromptSuffix string
	Preview      func(path string) error
	Runner       sandbox.Runner
	Logger       zerolog.Logger
}

// Toolbox holds the local tools and dispatches calls by name.
type Toolbox struct {
	tools  map[ID]Executor
	schema map[ID]llm.ToolSchema
	specs  []llm.ToolSpec
	logger zerolog.Logger
}

// NewToolbox builds every tool in AllIDs order.
func NewToolbox(deps Deps) (*Toolbox, error) {
	tb := &Toolbox{
		tools:  make(map[ID]Executor),
		schema: make(map[ID]llm.ToolSchema),
		logger: deps.Logger,
	}
	for _, id := range AllIDs() {
		tool := newTool(id, deps)
		spec, err := tool.Spec()
		if err != nil {
			return nil, err
		}
		tb.tools[id] = tool
		tb.schema[id] = spec.InputSchema
		tb.specs = append(tb.specs, spec)
	}
	return tb, nil
}

func newTool(id ID, deps Deps) Executor {
	switch id {
	case ReadFile:
		return NewReadFileTool(deps.Files)
	case GenerateImage:
		return NewImageGenerateTool(deps.Images, deps.PromptSuffix, deps.Preview)
	case RunCode:
		return NewRunCodeTool(deps.Runner)
	default:
		panic(fmt.Sprintf("tools: unhandled tool id %d", id))
	}
}

// Specs returns tool specs in registration order.
func (tb *Toolbox) Specs() []llm.ToolSpec {
	return append([]llm.ToolSpec(nil), tb.specs...)
}

// Get returns a tool by name.
func (tb *Toolbox) Get(name string) (Executor, bool) {
	id, ok := ParseID(name)
	if !ok {
		return nil, false
	}
	tool, ok := tb.tools[id]
	return tool, ok
}

// Preview describes a call for display.
func (tb *Toolbox) Preview(use llm.ToolUse) string {
	tool, ok := tb.Get(use.Name)
	if !ok {
		return ""
	}
	return tool.Preview(use.Input)
}

// Execute runs one tool call. The only error is llm.ErrUnknownTool; tool
// failures come back as error-status results.
func (tb *Toolbox) Execute(ctx context.Context, use llm.ToolUse) (llm.ToolResult, error) {
	tool, ok := tb.Get(use.Name)
	if !ok {
		return llm.ToolResult{}, fmt.Errorf("%w: the requested tool with name %s does not exist", llm.ErrUnknownTool, use.Name)
	}

	warning := WarnUnknownParams(use.Input, tb.schema[tool.ID()])

	res := tool.Execute(ctx, use.ID, use.Input)
	res.ToolUseID = use.ID
	tb.logger.Debug().
		Str("tool", use.Name).
		Str("tool_use_id", use.ID).
		Str("status", string(res.Status)).
		Msg("tool executed")
	return withWarning(res, warning), nil
}
