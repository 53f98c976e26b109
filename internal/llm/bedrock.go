package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockAPI is the subset of the Bedrock runtime client used here.
type BedrockAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// BedrockClient implements Client with the Bedrock Converse API.
type BedrockClient struct {
	api   BedrockAPI
	model string
}

func NewBedrockClient(api BedrockAPI, model string) *BedrockClient {
	return &BedrockClient{api: api, model: model}
}

func (c *BedrockClient) Name() string {
	return "bedrock"
}

func (c *BedrockClient) Converse(ctx context.Context, req Request) (*Response, error) {
	messages, err := bedrockMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(chooseModel(req.Model, c.model)),
		Messages:        messages,
		System:          bedrockSystem(req.System),
		ToolConfig:      bedrockToolConfig(req.Tools),
		InferenceConfig: bedrockInference(req.MaxTokens),
	})
	if err != nil {
		return nil, &TransportError{Op: "bedrock converse", Err: err}
	}
	resp := &Response{
		StopReason: bedrockStopReason(out.StopReason),
		Usage:      bedrockUsage(out.Usage),
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}
	turn, err := turnFromBedrock(msg.Value)
	if err != nil {
		return nil, err
	}
	resp.Message = &turn
	return resp, nil
}

func (c *BedrockClient) ConverseStream(ctx context.Context, req Request) (Stream, error) {
	messages, err := bedrockMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	out, err := c.api.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(chooseModel(req.Model, c.model)),
		Messages:        messages,
		System:          bedrockSystem(req.System),
		ToolConfig:      bedrockToolConfig(req.Tools),
		InferenceConfig: bedrockInference(req.MaxTokens),
	})
	if err != nil {
		return nil, &TransportError{Op: "bedrock converse stream", Err: err}
	}
	es := out.GetStream()
	return newBedrockStream(es.Events(), es.Err, es.Close), nil
}

func chooseModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}

func bedrockSystem(system string) []types.SystemContentBlock {
	if system == "" {
		return nil
	}
	return []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
}

func bedrockInference(maxTokens int) *types.InferenceConfiguration {
	if maxTokens <= 0 {
		return nil
	}
	return &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(maxTokens))}
}

func bedrockToolConfig(cfg *ToolConfiguration) *types.ToolConfiguration {
	specs := cfg.Specs()
	if len(specs) == 0 {
		return nil
	}
	tools := make([]types.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(spec.Name),
			Description: aws.String(spec.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{
				Value: document.NewLazyDocument(spec.InputSchema.Wire().Native()),
			},
		}})
	}
	return &types.ToolConfiguration{Tools: tools}
}

func bedrockMessages(turns []Turn) ([]types.Message, error) {
	out := make([]types.Message, 0, len(turns))
	for _, turn := range turns {
		role := types.ConversationRoleUser
		if turn.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		blocks := make([]types.ContentBlock, 0, len(turn.Content))
		for _, block := range turn.Content {
			switch block.Type {
			case BlockText:
				blocks = append(blocks, &types.ContentBlockMemberText{Value: block.Text})
			case BlockToolUse:
				blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(block.ToolUse.ID),
					Name:      aws.String(block.ToolUse.Name),
					Input:     document.NewLazyDocument(toolInputNative(block.ToolUse.Input)),
				}})
			case BlockToolResult:
				blocks = append(blocks, &types.ContentBlockMemberToolResult{Value: bedrockToolResult(*block.ToolResult)})
			default:
				return nil, protocolErrorf("unknown content block type %q", block.Type)
			}
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}
	return out, nil
}

// toolInputNative returns a value the service accepts as tool input.
func toolInputNative(v Value) any {
	if v.IsNull() {
		return map[string]any{}
	}
	return v.Native()
}

func bedrockToolResult(res ToolResult) types.ToolResultBlock {
	content := make([]types.ToolResultContentBlock, 0, len(res.Content))
	for _, c := range res.Content {
		if c.Document != nil {
			content = append(content, &types.ToolResultContentBlockMemberDocument{Value: types.DocumentBlock{
				Name:   aws.String(c.Document.Name),
				Format: types.DocumentFormat(c.Document.Format),
				Source: &types.DocumentSourceMemberBytes{Value: c.Document.Bytes},
			}})
			continue
		}
		content = append(content, &types.ToolResultContentBlockMemberText{Value: c.Text})
	}
	status := types.ToolResultStatusSuccess
	if res.Status == ToolError {
		status = types.ToolResultStatusError
	}
	return types.ToolResultBlock{
		ToolUseId: aws.String(res.ToolUseID),
		Content:   content,
		Status:    status,
	}
}

func turnFromBedrock(msg types.Message) (Turn, error) {
	turn := Turn{Role: RoleAssistant}
	if msg.Role == types.ConversationRoleUser {
		turn.Role = RoleUser
	}
	for _, block := range msg.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			turn.Content = append(turn.Content, TextBlock(b.Value))
		case *types.ContentBlockMemberToolUse:
			input, err := documentValue(b.Value.Input)
			if err != nil {
				return Turn{}, err
			}
			turn.Content = append(turn.Content, ToolUseBlock(aws.ToString(b.Value.ToolUseId), aws.ToString(b.Value.Name), input))
		}
	}
	return turn, nil
}

func documentValue(doc document.Interface) (Value, error) {
	if doc == nil {
		return Object(nil), nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil {
		return Value{}, &DecodeError{Err: fmt.Errorf("tool input document: %w", err)}
	}
	return ParseValue(data)
}

func bedrockStopReason(r types.StopReason) StopReason {
	switch r {
	case types.StopReasonToolUse:
		return StopToolUse
	case types.StopReasonMaxTokens:
		return StopMaxTokens
	case types.StopReasonStopSequence:
		return StopSequence
	case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
		return StopContentFilter
	default:
		return StopEndTurn
	}
}

func bedrockUsage(u *types.TokenUsage) *Usage {
	if u == nil {
		return nil
	}
	return &Usage{
		InputTokens:  int(aws.ToInt32(u.InputTokens)),
		OutputTokens: int(aws.ToInt32(u.OutputTokens)),
	}
}

// bedrockEvent maps one stream event. ok is false for events with no
// counterpart.
func bedrockEvent(ev types.ConverseStreamOutput) (StreamEvent, bool) {
	switch v := ev.(type) {
	case *types.ConverseStreamOutputMemberMessageStart:
		return StreamEvent{Type: EventMessageStart}, true
	case *types.ConverseStreamOutputMemberContentBlockStart:
		out := StreamEvent{Type: EventContentBlockStart, Index: int(aws.ToInt32(v.Value.ContentBlockIndex))}
		if start, ok := v.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
			out.ToolStart = &ToolUseStart{
				ID:   aws.ToString(start.Value.ToolUseId),
				Name: aws.ToString(start.Value.Name),
			}
		}
		return out, true
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		index := int(aws.ToInt32(v.Value.ContentBlockIndex))
		switch d := v.Value.Delta.(type) {
		case *types.ContentBlockDeltaMemberText:
			return StreamEvent{Type: EventContentBlockDelta, Index: index, Delta: DeltaText, Text: d.Value}, true
		case *types.ContentBlockDeltaMemberToolUse:
			return StreamEvent{Type: EventContentBlockDelta, Index: index, Delta: DeltaToolInput, Text: aws.ToString(d.Value.Input)}, true
		}
		return StreamEvent{}, false
	case *types.ConverseStreamOutputMemberContentBlockStop:
		return StreamEvent{Type: EventContentBlockStop, Index: int(aws.ToInt32(v.Value.ContentBlockIndex))}, true
	case *types.ConverseStreamOutputMemberMessageStop:
		return StreamEvent{Type: EventMessageStop, StopReason: bedrockStopReason(v.Value.StopReason)}, true
	case *types.ConverseStreamOutputMemberMetadata:
		return StreamEvent{Type: EventMetadata, Usage: bedrockUsage(v.Value.Usage)}, true
	default:
		return StreamEvent{}, false
	}
}

type bedrockStream struct {
	events  <-chan types.ConverseStreamOutput
	errFn   func() error
	closeFn func() error
}

func newBedrockStream(events <-chan types.ConverseStreamOutput, errFn func() error, closeFn func() error) *bedrockStream {
	return &bedrockStream{events: events, errFn: errFn, closeFn: closeFn}
}

func (s *bedrockStream) Recv() (StreamEvent, error) {
	for raw := range s.events {
		if ev, ok := bedrockEvent(raw); ok {
			return ev, nil
		}
	}
	if err := s.errFn(); err != nil {
		return StreamEvent{}, &TransportError{Op: "bedrock converse stream", Err: err}
	}
	return StreamEvent{}, io.EOF
}

func (s *bedrockStream) Close() error {
	return s.closeFn()
}
