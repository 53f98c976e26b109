// Package tools implements the local tools the model can call:
// READ_FILE, GENERATE_IMAGE and RUN_CODE.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itsuki0/term-assistant/internal/llm"
)

// ToolErrorType provides structured errors the model can act on.
type ToolErrorType string

const (
	ErrFileNotFound    ToolErrorType = "FILE_NOT_FOUND"
	ErrInvalidParams   ToolErrorType = "INVALID_PARAMS"
	ErrExecutionFailed ToolErrorType = "EXECUTION_FAILED"
	ErrDecodeFailed    ToolErrorType = "DECODE_FAILED"
	ErrImageGenFailed  ToolErrorType = "IMAGE_GEN_FAILED"
	ErrTimeout         ToolErrorType = "TIMEOUT"
)

// ToolError provides structured error information.
type ToolError struct {
	Type    ToolErrorType `json:"type"`
	Message string        `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewToolError creates a new ToolError.
func NewToolError(errType ToolErrorType, message string) *ToolError {
	return &ToolError{Type: errType, Message: message}
}

// NewToolErrorf creates a new ToolError with formatted message.
func NewToolErrorf(errType ToolErrorType, format string, args ...interface{}) *ToolError {
	return &ToolError{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// formatToolError formats a ToolError for the LLM.
func formatToolError(err *ToolError) string {
	return fmt.Sprintf("Error [%s]: %s", err.Type, err.Message)
}

// errorResult renders err as an error tool result.
func errorResult(id string, err *ToolError) llm.ToolResult {
	return llm.TextResult(id, llm.ToolError, formatToolError(err))
}

// Executor is one local tool. Execute never returns a Go error: every
// failure is an error-status result.
type Executor interface {
	ID() ID
	Spec() (llm.ToolSpec, error)
	// Preview is a short description of a call for display
	Preview(input llm.Value) string
	Execute(ctx context.Context, toolUseID string, input llm.Value) llm.ToolResult
}

// decodeArgs converts tool input into an argument struct.
func decodeArgs(input llm.Value, dst any) *ToolError {
	if input.Kind() != llm.KindObject {
		return NewToolErrorf(ErrInvalidParams, "input must be an object, got %s", input.Kind())
	}
	data, err := json.Marshal(input)
	if err != nil {
		return NewToolErrorf(ErrInvalidParams, "cannot encode input: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewToolErrorf(ErrInvalidParams, "invalid input: %v", err)
	}
	return nil
}
