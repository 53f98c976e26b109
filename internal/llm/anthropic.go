package llm

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a client. An empty apiKey falls back to the
// SDK's ANTHROPIC_API_KEY lookup.
func NewAnthropicClient(apiKey, model string, opts ...option.RequestOption) *AnthropicClient {
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{client: &client, model: model}
}

func (c *AnthropicClient) Name() string {
	return "anthropic"
}

func (c *AnthropicClient) params(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(chooseModel(req.Model, c.model)),
		MaxTokens: maxTokens(req.MaxTokens, defaultMaxTokens),
		Messages:  buildAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if tools := buildAnthropicTools(req.Tools.Specs()); len(tools) > 0 {
		params.Tools = tools
	}
	return params
}

func (c *AnthropicClient) Converse(ctx context.Context, req Request) (*Response, error) {
	msg, err := c.client.Messages.New(ctx, c.params(req))
	if err != nil {
		return nil, &TransportError{Op: "anthropic messages", Err: err}
	}
	turn := Turn{Role: RoleAssistant}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Content = append(turn.Content, TextBlock(b.Text))
		case anthropic.ToolUseBlock:
			turn.Content = append(turn.Content, ToolUseBlock(b.ID, b.Name, parseToolInput(string(b.Input))))
		}
	}
	return &Response{
		Message:    &turn,
		StopReason: anthropicStopReason(msg.StopReason),
		Usage: &Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func (c *AnthropicClient) ConverseStream(ctx context.Context, req Request) (Stream, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(req))
	return &anthropicStream{stream: stream}, nil
}

type anthropicStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	pending []StreamEvent
}

func (s *anthropicStream) Recv() (StreamEvent, error) {
	for len(s.pending) == 0 {
		if !s.stream.Next() {
			if err := s.stream.Err(); err != nil {
				return StreamEvent{}, &TransportError{Op: "anthropic stream", Err: err}
			}
			return StreamEvent{}, io.EOF
		}
		s.pending = anthropicEvents(s.stream.Current())
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, nil
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}

// anthropicEvents maps one SSE event to zero or more stream events.
// message_delta carries both the stop reason and the final usage.
func anthropicEvents(event anthropic.MessageStreamEventUnion) []StreamEvent {
	switch variant := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return []StreamEvent{{Type: EventMessageStart}}
	case anthropic.ContentBlockStartEvent:
		ev := StreamEvent{Type: EventContentBlockStart, Index: int(variant.Index)}
		if block, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
			ev.ToolStart = &ToolUseStart{ID: block.ID, Name: block.Name}
		}
		return []StreamEvent{ev}
	case anthropic.ContentBlockDeltaEvent:
		switch delta := variant.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			return []StreamEvent{{Type: EventContentBlockDelta, Index: int(variant.Index), Delta: DeltaText, Text: delta.Text}}
		case anthropic.InputJSONDelta:
			return []StreamEvent{{Type: EventContentBlockDelta, Index: int(variant.Index), Delta: DeltaToolInput, Text: delta.PartialJSON}}
		}
	case anthropic.ContentBlockStopEvent:
		return []StreamEvent{{Type: EventContentBlockStop, Index: int(variant.Index)}}
	case anthropic.MessageDeltaEvent:
		return []StreamEvent{
			{Type: EventMessageStop, StopReason: anthropicStopReason(variant.Delta.StopReason)},
			{Type: EventMetadata, Usage: &Usage{
				InputTokens:  int(variant.Usage.InputTokens),
				OutputTokens: int(variant.Usage.OutputTokens),
			}},
		}
	}
	return nil
}

func anthropicStopReason(r anthropic.StopReason) StopReason {
	switch r {
	case anthropic.StopReasonToolUse:
		return StopToolUse
	case anthropic.StopReasonMaxTokens:
		return StopMaxTokens
	case anthropic.StopReasonStopSequence:
		return StopSequence
	default:
		return StopEndTurn
	}
}

func buildAnthropicMessages(turns []Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(turn.Content))
		for _, block := range turn.Content {
			switch block.Type {
			case BlockText:
				if block.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(block.Text))
				}
			case BlockToolUse:
				blocks = append(blocks, anthropic.NewToolUseBlock(block.ToolUse.ID, toolInputNative(block.ToolUse.Input), block.ToolUse.Name))
			case BlockToolResult:
				blocks = append(blocks, anthropicToolResult(*block.ToolResult))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if turn.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

// anthropicToolResult inlines documents as text. Binary formats are
// summarised since tool results here only carry text and images.
func anthropicToolResult(res ToolResult) anthropic.ContentBlockParamUnion {
	content := make([]anthropic.ToolResultBlockParamContentUnion, 0, len(res.Content))
	for _, c := range res.Content {
		text := c.Text
		if c.Document != nil {
			text = documentText(*c.Document)
		}
		if text == "" {
			continue
		}
		content = append(content, anthropic.ToolResultBlockParamContentUnion{
			OfText: &anthropic.TextBlockParam{Text: text},
		})
	}
	block := anthropic.ToolResultBlockParam{
		ToolUseID: res.ToolUseID,
		IsError:   anthropic.Bool(res.Status == ToolError),
		Content:   content,
	}
	return anthropic.ContentBlockParamUnion{OfToolResult: &block}
}

func documentText(doc Document) string {
	switch doc.Format {
	case DocumentCSV, DocumentHTML, DocumentMD, DocumentTXT:
		if utf8.Valid(doc.Bytes) {
			return fmt.Sprintf("Document %s (%s):\n%s", doc.Name, doc.Format, doc.Bytes)
		}
	}
	return fmt.Sprintf("Document %s (%s, %d bytes) cannot be displayed as text.", doc.Name, doc.Format, len(doc.Bytes))
}

func buildAnthropicTools(specs []ToolSpec) []anthropic.ToolUnionParam {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		wire := spec.InputSchema.Wire()
		props, _ := wire.Field("properties")
		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: props.Native(),
			Required:   spec.InputSchema.Required,
		}
		tool := anthropic.ToolUnionParamOfTool(inputSchema, spec.Name)
		if spec.Description != "" {
			tool.OfTool.Description = anthropic.String(spec.Description)
		}
		tools = append(tools, tool)
	}
	return tools
}

func maxTokens(requested, fallback int) int64 {
	if requested > 0 {
		return int64(requested)
	}
	return int64(fallback)
}

