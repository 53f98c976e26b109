package llm

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBedrock struct {
	converseIn *bedrockruntime.ConverseInput
	converse   *bedrockruntime.ConverseOutput
	err        error
}

func (f *fakeBedrock) Converse(ctx context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.converseIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.converse, nil
}

func (f *fakeBedrock) ConverseStream(ctx context.Context, in *bedrockruntime.ConverseStreamInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, f.err
}

func TestBedrockConverse(t *testing.T) {
	api := &fakeBedrock{converse: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role: types.ConversationRoleAssistant,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: "Checking."},
				&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String("tooluse_1"),
					Name:      aws.String("READ_FILE"),
					Input:     document.NewLazyDocument(map[string]any{"path": "a.txt"}),
				}},
			},
		}},
		StopReason: types.StopReasonToolUse,
		Usage:      &types.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(3)},
	}}
	tools, err := RegisterTools([]ToolSpec{readFileSpec()})
	require.NoError(t, err)

	client := NewBedrockClient(api, "default-model")
	resp, err := client.Converse(context.Background(), Request{
		System:    "be brief",
		Messages:  []Turn{UserText("read a.txt")},
		Tools:     tools,
		MaxTokens: 256,
	})
	require.NoError(t, err)

	in := api.converseIn
	assert.Equal(t, "default-model", aws.ToString(in.ModelId))
	require.Len(t, in.System, 1)
	assert.Equal(t, int32(256), aws.ToInt32(in.InferenceConfig.MaxTokens))
	require.Len(t, in.Messages, 1)
	assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)
	require.NotNil(t, in.ToolConfig)
	require.Len(t, in.ToolConfig.Tools, 1)

	assert.Equal(t, StopToolUse, resp.StopReason)
	assert.Equal(t, &Usage{InputTokens: 12, OutputTokens: 3}, resp.Usage)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "Checking.", resp.Message.Text())
	uses := resp.Message.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "tooluse_1", uses[0].ID)
	assert.True(t, readInput("a.txt").Equal(uses[0].Input))
}

func TestBedrockConverseNonMessage(t *testing.T) {
	api := &fakeBedrock{converse: &bedrockruntime.ConverseOutput{StopReason: types.StopReasonEndTurn}}
	resp, err := NewBedrockClient(api, "m").Converse(context.Background(), Request{Messages: []Turn{UserText("hi")}})
	require.NoError(t, err)
	assert.Nil(t, resp.Message)
}

func TestBedrockTransportErrors(t *testing.T) {
	api := &fakeBedrock{err: errors.New("ThrottlingException")}
	client := NewBedrockClient(api, "m")

	_, err := client.Converse(context.Background(), Request{Messages: []Turn{UserText("hi")}})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "bedrock converse", transportErr.Op)

	_, err = client.ConverseStream(context.Background(), Request{Messages: []Turn{UserText("hi")}})
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "bedrock converse stream", transportErr.Op)
}

func TestBedrockMessages(t *testing.T) {
	turns := []Turn{
		UserText("summarise report.pdf"),
		{Role: RoleAssistant, Content: []ContentBlock{
			ToolUseBlock("t1", "READ_FILE", readInput("report.pdf")),
		}},
		{Role: RoleUser, Content: []ContentBlock{ToolResultBlock(ToolResult{
			ToolUseID: "t1",
			Status:    ToolError,
			Content: []ToolResultContent{
				{Text: "File read."},
				{Document: &Document{Name: "file_read", Format: DocumentPDF, Bytes: []byte("%PDF-1.4")}},
			},
		})}},
	}
	msgs, err := bedrockMessages(turns)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, types.ConversationRoleAssistant, msgs[1].Role)

	use, ok := msgs[1].Content[0].(*types.ContentBlockMemberToolUse)
	require.True(t, ok)
	data, err := use.Value.Input.MarshalSmithyDocument()
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"report.pdf"}`, string(data))

	res, ok := msgs[2].Content[0].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	assert.Equal(t, "t1", aws.ToString(res.Value.ToolUseId))
	assert.Equal(t, types.ToolResultStatusError, res.Value.Status)
	require.Len(t, res.Value.Content, 2)
	doc, ok := res.Value.Content[1].(*types.ToolResultContentBlockMemberDocument)
	require.True(t, ok)
	assert.Equal(t, types.DocumentFormatPdf, doc.Value.Format)
	assert.Equal(t, "file_read", aws.ToString(doc.Value.Name))

	_, err = bedrockMessages([]Turn{{Role: RoleUser, Content: []ContentBlock{{Type: "image"}}}})
	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestBedrockToolConfigSchema(t *testing.T) {
	tools, err := RegisterTools([]ToolSpec{readFileSpec()})
	require.NoError(t, err)
	cfg := bedrockToolConfig(tools)
	require.Len(t, cfg.Tools, 1)
	spec, ok := cfg.Tools[0].(*types.ToolMemberToolSpec)
	require.True(t, ok)
	assert.Equal(t, "READ_FILE", aws.ToString(spec.Value.Name))
	schema, ok := spec.Value.InputSchema.(*types.ToolInputSchemaMemberJson)
	require.True(t, ok)
	data, err := schema.Value.MarshalSmithyDocument()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "object",
		"properties": {"path": {"type": "string", "description": "The path of the file to read."}},
		"required": ["path"]
	}`, string(data))

	assert.Nil(t, bedrockToolConfig(nil))
}

func TestBedrockEventMapping(t *testing.T) {
	tests := []struct {
		name string
		in   types.ConverseStreamOutput
		want StreamEvent
	}{
		{"message start", &types.ConverseStreamOutputMemberMessageStart{}, StreamEvent{Type: EventMessageStart}},
		{"tool start", &types.ConverseStreamOutputMemberContentBlockStart{Value: types.ContentBlockStartEvent{
			ContentBlockIndex: aws.Int32(1),
			Start: &types.ContentBlockStartMemberToolUse{Value: types.ToolUseBlockStart{
				ToolUseId: aws.String("t1"),
				Name:      aws.String("RUN_CODE"),
			}},
		}}, StreamEvent{Type: EventContentBlockStart, Index: 1, ToolStart: &ToolUseStart{ID: "t1", Name: "RUN_CODE"}}},
		{"text delta", &types.ConverseStreamOutputMemberContentBlockDelta{Value: types.ContentBlockDeltaEvent{
			ContentBlockIndex: aws.Int32(0),
			Delta:             &types.ContentBlockDeltaMemberText{Value: "Hel"},
		}}, StreamEvent{Type: EventContentBlockDelta, Delta: DeltaText, Text: "Hel"}},
		{"tool delta", &types.ConverseStreamOutputMemberContentBlockDelta{Value: types.ContentBlockDeltaEvent{
			ContentBlockIndex: aws.Int32(1),
			Delta:             &types.ContentBlockDeltaMemberToolUse{Value: types.ToolUseBlockDelta{Input: aws.String(`{"co`)}},
		}}, StreamEvent{Type: EventContentBlockDelta, Index: 1, Delta: DeltaToolInput, Text: `{"co`}},
		{"block stop", &types.ConverseStreamOutputMemberContentBlockStop{Value: types.ContentBlockStopEvent{
			ContentBlockIndex: aws.Int32(1),
		}}, StreamEvent{Type: EventContentBlockStop, Index: 1}},
		{"message stop", &types.ConverseStreamOutputMemberMessageStop{Value: types.MessageStopEvent{
			StopReason: types.StopReasonMaxTokens,
		}}, StreamEvent{Type: EventMessageStop, StopReason: StopMaxTokens}},
		{"metadata", &types.ConverseStreamOutputMemberMetadata{Value: types.ConverseStreamMetadataEvent{
			Usage: &types.TokenUsage{InputTokens: aws.Int32(5), OutputTokens: aws.Int32(7)},
		}}, StreamEvent{Type: EventMetadata, Usage: &Usage{InputTokens: 5, OutputTokens: 7}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bedrockEvent(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := bedrockEvent(nil)
	assert.False(t, ok)
}

func TestBedrockStopReasons(t *testing.T) {
	assert.Equal(t, StopEndTurn, bedrockStopReason(types.StopReasonEndTurn))
	assert.Equal(t, StopToolUse, bedrockStopReason(types.StopReasonToolUse))
	assert.Equal(t, StopSequence, bedrockStopReason(types.StopReasonStopSequence))
	assert.Equal(t, StopContentFilter, bedrockStopReason(types.StopReasonGuardrailIntervened))
}

func TestBedrockStream(t *testing.T) {
	events := make(chan types.ConverseStreamOutput, 4)
	events <- &types.ConverseStreamOutputMemberMessageStart{}
	events <- &types.ConverseStreamOutputMemberContentBlockDelta{Value: types.ContentBlockDeltaEvent{
		ContentBlockIndex: aws.Int32(0),
		Delta:             &types.ContentBlockDeltaMemberText{Value: "hi"},
	}}
	events <- &types.ConverseStreamOutputMemberMessageStop{Value: types.MessageStopEvent{StopReason: types.StopReasonEndTurn}}
	close(events)

	closed := false
	stream := newBedrockStream(events, func() error { return nil }, func() error { closed = true; return nil })

	asm := NewAssembler()
	var done *Assembled
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out, err := asm.Apply(ev)
		require.NoError(t, err)
		if out != nil {
			done = out
		}
	}
	require.NoError(t, stream.Close())
	assert.True(t, closed)
	require.NotNil(t, done)
	assert.Equal(t, AssistantText("hi"), done.Turn)
}

func TestBedrockStreamError(t *testing.T) {
	events := make(chan types.ConverseStreamOutput)
	close(events)
	stream := newBedrockStream(events, func() error { return errors.New("stream reset") }, func() error { return nil })

	_, err := stream.Recv()
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "stream reset")
}
