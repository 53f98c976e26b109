package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTurnRejectsEmptyContent(t *testing.T) {
	_, err := NewTurn(RoleUser)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)

	turn, err := NewTurn(RoleUser, TextBlock("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", turn.Text())
}

func TestTurnValidate(t *testing.T) {
	use := ToolUseBlock("t1", "READ_FILE", Object(nil))
	result := ToolResultBlock(TextResult("t1", ToolSuccess, "ok"))

	tests := []struct {
		name    string
		turn    Turn
		wantErr bool
	}{
		{"assistant text", AssistantText("hello"), false},
		{"assistant tool use", Turn{Role: RoleAssistant, Content: []ContentBlock{TextBlock("let me look"), use}}, false},
		{"user tool results", Turn{Role: RoleUser, Content: []ContentBlock{result, result}}, false},
		{"tool use from user", Turn{Role: RoleUser, Content: []ContentBlock{use}}, true},
		{"tool result from assistant", Turn{Role: RoleAssistant, Content: []ContentBlock{result}}, true},
		{"results mixed with text", Turn{Role: RoleUser, Content: []ContentBlock{result, TextBlock("and")}}, true},
		{"missing payload", Turn{Role: RoleAssistant, Content: []ContentBlock{{Type: BlockToolUse}}}, true},
		{"unknown block", Turn{Role: RoleUser, Content: []ContentBlock{{Type: "image"}}}, true},
		{"empty", Turn{Role: RoleAssistant}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.turn.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTurnToolUsesKeepOrder(t *testing.T) {
	turn := Turn{Role: RoleAssistant, Content: []ContentBlock{
		TextBlock("two tools"),
		ToolUseBlock("a", "READ_FILE", Object(nil)),
		ToolUseBlock("b", "RUN_CODE", Object(nil)),
	}}
	uses := turn.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, "a", uses[0].ID)
	assert.Equal(t, "b", uses[1].ID)
}

func TestTurnCloneIsDeep(t *testing.T) {
	orig := Turn{Role: RoleUser, Content: []ContentBlock{
		ToolResultBlock(TextResult("t1", ToolSuccess, "ok")),
	}}
	cp := orig.Clone()
	cp.Content[0].ToolResult.Content[0].Text = "changed"
	cp.Content[0].ToolResult.Status = ToolError
	assert.Equal(t, "ok", orig.Content[0].ToolResult.Content[0].Text)
	assert.Equal(t, ToolSuccess, orig.Content[0].ToolResult.Status)
}

func TestToolResultSummary(t *testing.T) {
	res := ToolResult{
		ToolUseID: "t1",
		Status:    ToolSuccess,
		Content: []ToolResultContent{
			{Text: "File read."},
			{Document: &Document{Name: "file_read", Format: DocumentPDF, Bytes: []byte("%PDF")}},
		},
	}
	assert.Equal(t, "File read. [pdf document, 4 bytes]", res.Summary())
}
