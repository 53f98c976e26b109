package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itsuki0/term-assistant/internal/config"
	"github.com/itsuki0/term-assistant/internal/llm"
)

func newTestPrinter(opts ...PrinterOption) (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	opts = append([]PrinterOption{WithWidth(60)}, opts...)
	return NewPrinter(&buf, DefaultTheme(), opts...), &buf
}

func TestPrinterStreamedReply(t *testing.T) {
	p, buf := newTestPrinter()
	p.Delta("Hello, ")
	p.Delta("world")
	p.Reply("Hello, world", true)
	assert.Equal(t, "Hello, world\n\n", buf.String())
}

func TestPrinterPlainReply(t *testing.T) {
	p, buf := newTestPrinter(WithPlain(true))
	p.Reply("**bold** text", false)
	assert.Equal(t, "**bold** text\n\n", buf.String())

	buf.Reset()
	p.Reply("   ", false)
	assert.Empty(t, buf.String())
}

func TestPrinterMarkdownReply(t *testing.T) {
	p, buf := newTestPrinter()
	p.Reply("# Title\n\nsome *text*", false)
	out := buf.String()
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "text")
	assert.NotContains(t, out, "*text*")
}

func TestPrinterToolLines(t *testing.T) {
	preview := func(use llm.ToolUse) string { return "notes.txt" }
	p, buf := newTestPrinter(WithPreview(preview))
	use := llm.ToolUse{ID: "t1", Name: "READ_FILE"}

	p.Delta("Let me check")
	p.ToolStart(use)
	p.ToolDone(use, llm.TextResult("t1", llm.ToolSuccess, "File read with Content: x"))
	p.ToolDone(use, llm.TextResult("t1", llm.ToolError, "Error [FILE_NOT_FOUND]:\nopen notes.txt"))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"Let me check",
		"⚙ READ_FILE: notes.txt",
		"✓ READ_FILE",
		"✗ READ_FILE: Error [FILE_NOT_FOUND]: open notes.txt",
	}, lines)
}

func TestPrinterErrorIsOneLine(t *testing.T) {
	p, buf := newTestPrinter()
	p.Error(errors.New("bedrock converse:\noperation error\n  ThrottlingException"))
	assert.Equal(t, "Error: bedrock converse: operation error ThrottlingException\n", buf.String())
}

func TestPrinterWriteEndsStreamedLine(t *testing.T) {
	p, buf := newTestPrinter()
	p.Delta("partial")
	_, err := p.Write([]byte("IMAGE\n"))
	assert.NoError(t, err)
	assert.Equal(t, "partial\nIMAGE\n", buf.String())
}

func TestPrinterBanner(t *testing.T) {
	p, buf := newTestPrinter()
	p.Banner("bedrock", "claude", []string{"READ_FILE", "RUN_CODE"})
	assert.Contains(t, buf.String(), "bedrock · claude")
	assert.Contains(t, buf.String(), "tools: READ_FILE, RUN_CODE")
}

func TestThemeFromConfig(t *testing.T) {
	theme := ThemeFromConfig(config.ThemeConfig{Primary: "#ff0000", Muted: "240"})
	assert.Equal(t, "#ff0000", string(theme.Primary))
	assert.Equal(t, "240", string(theme.Muted))
	assert.Equal(t, DefaultTheme().Error, theme.Error)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd...", Truncate("abcdefghij", 7))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "日本...", Truncate("日本語のテキスト", 5))
}
