package llm

import (
	"errors"
	"fmt"
)

// ErrUnknownTool is returned when the model requests a tool that is not
// registered. It aborts the current request.
var ErrUnknownTool = errors.New("unknown tool")

// ConfigError reports an invalid tool registry. It is fatal at startup.
type ConfigError struct {
	Tool   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Tool == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: tool %s: %s", e.Tool, e.Reason)
}

// TransportError wraps a failure talking to the model service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a response whose shape the engine cannot accept.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.Reason
}

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// DecodeError reports malformed input such as invalid JSON or non-UTF-8 text.
type DecodeError struct {
	Input string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func unknownTool(name string) error {
	return fmt.Errorf("%w: the requested tool with name %s does not exist", ErrUnknownTool, name)
}
