package llm

import (
	"context"
	"fmt"
	"strings"
)

// Role identifies a turn role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType identifies a content block variant.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Turn is one message in the conversation.
type Turn struct {
	Role    Role           `yaml:"role"`
	Content []ContentBlock `yaml:"content"`
}

// ContentBlock is a tagged variant: exactly one of Text, ToolUse or
// ToolResult is meaningful, selected by Type.
type ContentBlock struct {
	Type       BlockType   `yaml:"type"`
	Text       string      `yaml:"text,omitempty"`
	ToolUse    *ToolUse    `yaml:"tool_use,omitempty"`
	ToolResult *ToolResult `yaml:"tool_result,omitempty"`
}

// ToolUse is a model-requested tool invocation.
type ToolUse struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Input Value  `yaml:"input"`
}

// ToolStatus is the outcome of a tool execution.
type ToolStatus string

const (
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
)

// ToolResult answers the ToolUse with the same id.
type ToolResult struct {
	ToolUseID string              `yaml:"tool_use_id"`
	Status    ToolStatus          `yaml:"status"`
	Content   []ToolResultContent `yaml:"content"`
}

// ToolResultContent is a text or document payload inside a ToolResult.
type ToolResultContent struct {
	Text     string    `yaml:"text,omitempty"`
	Document *Document `yaml:"document,omitempty"`
}

// DocumentFormat tags raw document bytes for the model service.
type DocumentFormat string

const (
	DocumentPDF  DocumentFormat = "pdf"
	DocumentCSV  DocumentFormat = "csv"
	DocumentDOC  DocumentFormat = "doc"
	DocumentDOCX DocumentFormat = "docx"
	DocumentHTML DocumentFormat = "html"
	DocumentMD   DocumentFormat = "md"
	DocumentTXT  DocumentFormat = "txt"
	DocumentXLS  DocumentFormat = "xls"
	DocumentXLSX DocumentFormat = "xlsx"
)

// Document is a file attached to a tool result.
type Document struct {
	Name   string         `yaml:"name"`
	Format DocumentFormat `yaml:"format"`
	Bytes  []byte         `yaml:"-"`
}

// StopReason explains why the model stopped producing output.
type StopReason string

const (
	StopEndTurn       StopReason = "end_turn"
	StopToolUse       StopReason = "tool_use"
	StopMaxTokens     StopReason = "max_tokens"
	StopSequence      StopReason = "stop_sequence"
	StopContentFilter StopReason = "content_filtered"
)

// Usage captures token usage if available.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Request represents a single model turn.
type Request struct {
	Model     string
	System    string
	Messages  []Turn
	Tools     *ToolConfiguration
	MaxTokens int
}

// Response is a completed, non-streamed model turn. Message is nil when the
// service returned something other than a message.
type Response struct {
	Message    *Turn
	StopReason StopReason
	Usage      *Usage
}

// Client is the transport to the model service.
type Client interface {
	Name() string
	Converse(ctx context.Context, req Request) (*Response, error)
	ConverseStream(ctx context.Context, req Request) (Stream, error)
}

// Stream yields events until io.EOF.
type Stream interface {
	Recv() (StreamEvent, error)
	Close() error
}

// EventType describes streaming events.
type EventType string

const (
	EventMessageStart      EventType = "message_start"
	EventContentBlockStart EventType = "content_block_start"
	EventContentBlockDelta EventType = "content_block_delta"
	EventContentBlockStop  EventType = "content_block_stop"
	EventMessageStop       EventType = "message_stop"
	EventMetadata          EventType = "metadata"
)

// DeltaType distinguishes content block deltas.
type DeltaType string

const (
	DeltaText      DeltaType = "text"
	DeltaToolInput DeltaType = "tool_input"
)

// StreamEvent is one typed event of a streamed model turn.
type StreamEvent struct {
	Type       EventType
	Index      int
	ToolStart  *ToolUseStart // EventContentBlockStart with a tool-use header
	Delta      DeltaType     // EventContentBlockDelta
	Text       string        // text fragment or JSON fragment of tool input
	StopReason StopReason    // EventMessageStop
	Usage      *Usage        // EventMetadata
}

// ToolUseStart is the header of a streamed tool-use block.
type ToolUseStart struct {
	ID   string
	Name string
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlock(id, name string, input Value) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUse: &ToolUse{ID: id, Name: name, Input: input}}
}

func ToolResultBlock(result ToolResult) ContentBlock {
	r := result
	return ContentBlock{Type: BlockToolResult, ToolResult: &r}
}

// NewTurn builds a turn, rejecting empty content.
func NewTurn(role Role, blocks ...ContentBlock) (Turn, error) {
	t := Turn{Role: role, Content: blocks}
	if err := t.Validate(); err != nil {
		return Turn{}, err
	}
	return t, nil
}

func UserText(text string) Turn {
	return Turn{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

func AssistantText(text string) Turn {
	return Turn{Role: RoleAssistant, Content: []ContentBlock{TextBlock(text)}}
}

// Validate checks the per-turn invariants: non-empty content, tool uses only
// from the assistant, tool results only in user turns made entirely of tool
// results.
func (t Turn) Validate() error {
	if len(t.Content) == 0 {
		return protocolErrorf("%s turn has no content", t.Role)
	}
	results := 0
	for _, block := range t.Content {
		switch block.Type {
		case BlockText:
		case BlockToolUse:
			if t.Role != RoleAssistant {
				return protocolErrorf("tool use in %s turn", t.Role)
			}
			if block.ToolUse == nil {
				return protocolErrorf("tool use block without payload")
			}
		case BlockToolResult:
			if t.Role != RoleUser {
				return protocolErrorf("tool result in %s turn", t.Role)
			}
			if block.ToolResult == nil {
				return protocolErrorf("tool result block without payload")
			}
			results++
		default:
			return protocolErrorf("unknown content block type %q", block.Type)
		}
	}
	if results > 0 && results != len(t.Content) {
		return protocolErrorf("tool results mixed with other content")
	}
	return nil
}

// ToolUses returns the tool-use blocks of the turn in order.
func (t Turn) ToolUses() []ToolUse {
	var uses []ToolUse
	for _, block := range t.Content {
		if block.Type == BlockToolUse && block.ToolUse != nil {
			uses = append(uses, *block.ToolUse)
		}
	}
	return uses
}

// Text concatenates the text blocks of the turn.
func (t Turn) Text() string {
	var sb strings.Builder
	for _, block := range t.Content {
		if block.Type == BlockText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// Clone returns a deep copy so callers cannot mutate engine state.
func (t Turn) Clone() Turn {
	out := Turn{Role: t.Role, Content: make([]ContentBlock, len(t.Content))}
	for i, block := range t.Content {
		cp := block
		if block.ToolUse != nil {
			use := *block.ToolUse
			cp.ToolUse = &use
		}
		if block.ToolResult != nil {
			res := *block.ToolResult
			res.Content = append([]ToolResultContent(nil), block.ToolResult.Content...)
			cp.ToolResult = &res
		}
		out.Content[i] = cp
	}
	return out
}

// TextResult builds a single-text tool result.
func TextResult(id string, status ToolStatus, text string) ToolResult {
	return ToolResult{
		ToolUseID: id,
		Status:    status,
		Content:   []ToolResultContent{{Text: text}},
	}
}

// Summary is a one-line rendering used for logs.
func (r ToolResult) Summary() string {
	var parts []string
	for _, c := range r.Content {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
		if c.Document != nil {
			parts = append(parts, fmt.Sprintf("[%s document, %d bytes]", c.Document.Format, len(c.Document.Bytes)))
		}
	}
	return strings.Join(parts, " ")
}
