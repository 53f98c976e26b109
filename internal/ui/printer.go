// Package ui renders the conversation to the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/itsuki0/term-assistant/internal/llm"
)

const defaultWidth = 80

// PreviewFunc describes a tool call in a few words.
type PreviewFunc func(use llm.ToolUse) string

// Printer is the terminal llm.Sink. Streamed text is written as it arrives;
// complete replies are rendered as markdown unless plain is set.
type Printer struct {
	out     io.Writer
	styles  *Styles
	preview PreviewFunc
	plain   bool
	width   int

	mu sync.Mutex
	// midLine is set while the cursor sits after streamed text.
	midLine bool
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithPlain disables markdown rendering.
func WithPlain(plain bool) PrinterOption {
	return func(p *Printer) { p.plain = plain }
}

// WithPreview sets how tool calls are described.
func WithPreview(fn PreviewFunc) PrinterOption {
	return func(p *Printer) { p.preview = fn }
}

// WithWidth fixes the wrap width instead of querying the terminal.
func WithWidth(width int) PrinterOption {
	return func(p *Printer) { p.width = width }
}

func NewPrinter(out io.Writer, theme *Theme, opts ...PrinterOption) *Printer {
	p := &Printer{
		out:    out,
		styles: NewStyles(out, theme),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.width <= 0 {
		p.width = terminalWidth(out)
	}
	return p
}

// terminalWidth returns the width of out when it is a terminal.
func terminalWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

// Styles returns the printer's styles.
func (p *Printer) Styles() *Styles {
	return p.styles
}

// endLine terminates streamed text before other output. Caller holds mu.
func (p *Printer) endLine() {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}

func (p *Printer) Delta(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if text == "" {
		return
	}
	fmt.Fprint(p.out, text)
	p.midLine = !strings.HasSuffix(text, "\n")
}

func (p *Printer) Reply(text string, streamed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if streamed {
		p.endLine()
		fmt.Fprintln(p.out)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	if p.plain {
		fmt.Fprintln(p.out, text)
	} else {
		fmt.Fprintln(p.out, RenderMarkdown(text, p.styles.Theme(), p.width))
	}
	fmt.Fprintln(p.out)
}

func (p *Printer) ToolStart(use llm.ToolUse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	line := ToolIcon + " " + use.Name
	if p.preview != nil {
		if desc := p.preview(use); desc != "" {
			line += ": " + Truncate(desc, max(p.width-len(use.Name)-4, 20))
		}
	}
	fmt.Fprintln(p.out, p.styles.Muted.Render(line))
}

func (p *Printer) ToolDone(use llm.ToolUse, result llm.ToolResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	if result.Status == llm.ToolSuccess {
		fmt.Fprintln(p.out, p.styles.FormatResult(true, p.styles.Muted.Render(use.Name)))
		return
	}
	summary := strings.Join(strings.Fields(result.Summary()), " ")
	fmt.Fprintln(p.out, p.styles.FormatResult(false, use.Name+": "+Truncate(summary, 200)))
}

// Error prints err on one line.
func (p *Printer) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	msg := strings.Join(strings.Fields(err.Error()), " ")
	fmt.Fprintln(p.out, p.styles.Error.Render("Error: "+msg))
}

// Info prints a muted status line.
func (p *Printer) Info(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	fmt.Fprintln(p.out, p.styles.Muted.Render(fmt.Sprintf(format, args...)))
}

// Banner prints the session header.
func (p *Printer) Banner(client, model string, tools []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, p.styles.Title.Render("term-assistant")+" "+p.styles.Muted.Render(client+" · "+model))
	if len(tools) > 0 {
		fmt.Fprintln(p.out, p.styles.Muted.Render("tools: "+strings.Join(tools, ", ")))
	}
	fmt.Fprintln(p.out, p.styles.Muted.Render("/clear resets the conversation, /transcript shows it, /exit or Esc quits"))
	fmt.Fprintln(p.out)
}

// Write lets the printer serve as the output for inline image previews.
func (p *Printer) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	return p.out.Write(b)
}
