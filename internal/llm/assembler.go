package llm

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// AssemblyState is the position of an Assembler within one streamed message.
type AssemblyState int

const (
	AssemblyIdle AssemblyState = iota
	AssemblyStreaming
	AssemblyToolPending
	AssemblyComplete
)

func (s AssemblyState) String() string {
	switch s {
	case AssemblyIdle:
		return "idle"
	case AssemblyStreaming:
		return "streaming"
	case AssemblyToolPending:
		return "tool_pending"
	case AssemblyComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Signal tells the engine what to do with an assembled turn.
type Signal int

const (
	SignalTurnComplete Signal = iota
	SignalToolCallReady
)

// Assembled is the result of a MessageStop event.
type Assembled struct {
	Turn       Turn
	Signal     Signal
	StopReason StopReason
}

type pendingTool struct {
	id      string
	name    string
	partial strings.Builder
}

// Assembler turns the typed events of one streamed message into a Turn.
// It is not safe for concurrent use.
type Assembler struct {
	state AssemblyState
	text  strings.Builder
	tools map[int]*pendingTool
	usage *Usage
}

func NewAssembler() *Assembler {
	return &Assembler{tools: make(map[int]*pendingTool)}
}

func (a *Assembler) State() AssemblyState { return a.state }

// Usage returns the token usage reported by a metadata event, if any.
func (a *Assembler) Usage() *Usage { return a.usage }

// PartialText is the text accumulated so far.
func (a *Assembler) PartialText() string { return a.text.String() }

func (a *Assembler) reset() {
	a.text.Reset()
	a.tools = make(map[int]*pendingTool)
}

// Apply consumes one event. A non-nil Assembled is returned only for
// MessageStop.
func (a *Assembler) Apply(ev StreamEvent) (*Assembled, error) {
	switch ev.Type {
	case EventMessageStart:
		if a.state == AssemblyStreaming {
			return nil, protocolErrorf("message start while a message is streaming")
		}
		a.reset()
		a.state = AssemblyStreaming
		return nil, nil
	case EventContentBlockStop:
		return nil, nil
	case EventMetadata:
		if ev.Usage != nil {
			u := *ev.Usage
			a.usage = &u
		}
		return nil, nil
	case EventContentBlockStart, EventContentBlockDelta, EventMessageStop:
		if a.state != AssemblyStreaming {
			return nil, protocolErrorf("%s event before message start", ev.Type)
		}
	default:
		return nil, nil
	}

	switch ev.Type {
	case EventContentBlockStart:
		if ev.ToolStart == nil {
			return nil, nil
		}
		id := ev.ToolStart.ID
		if id == "" {
			id = "tooluse_" + uuid.NewString()
		}
		a.tools[ev.Index] = &pendingTool{id: id, name: ev.ToolStart.Name}
		return nil, nil
	case EventContentBlockDelta:
		switch ev.Delta {
		case DeltaText:
			a.text.WriteString(ev.Text)
		case DeltaToolInput:
			tool, ok := a.tools[ev.Index]
			if !ok {
				return nil, protocolErrorf("tool input for block %d without a tool header", ev.Index)
			}
			tool.partial.WriteString(ev.Text)
		}
		return nil, nil
	}

	// MessageStop
	if ev.StopReason != StopToolUse {
		a.state = AssemblyComplete
		return &Assembled{
			Turn:       AssistantText(a.text.String()),
			Signal:     SignalTurnComplete,
			StopReason: ev.StopReason,
		}, nil
	}
	if len(a.tools) == 0 {
		return nil, protocolErrorf("tool_use stop without a tool block")
	}

	var blocks []ContentBlock
	if a.text.Len() > 0 {
		blocks = append(blocks, TextBlock(a.text.String()))
	}
	indexes := make([]int, 0, len(a.tools))
	for idx := range a.tools {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		tool := a.tools[idx]
		blocks = append(blocks, ToolUseBlock(tool.id, tool.name, parseToolInput(tool.partial.String())))
	}
	a.state = AssemblyToolPending
	return &Assembled{
		Turn:       Turn{Role: RoleAssistant, Content: blocks},
		Signal:     SignalToolCallReady,
		StopReason: ev.StopReason,
	}, nil
}

// parseToolInput decodes accumulated tool input. Input that is not valid JSON,
// including empty input, is kept verbatim as a string value.
func parseToolInput(raw string) Value {
	v, err := ParseValue([]byte(raw))
	if err != nil {
		return String(raw)
	}
	return v
}
