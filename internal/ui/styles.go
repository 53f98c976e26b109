package ui

import (
	"io"

	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/lipgloss"

	"github.com/itsuki0/term-assistant/internal/config"
)

// Theme defines the color palette for the UI
type Theme struct {
	Primary   lipgloss.Color // prompt, highlights
	Secondary lipgloss.Color // headers, links
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Muted     lipgloss.Color // tool activity, hints
	Text      lipgloss.Color
}

// DefaultTheme returns the default color theme (gruvbox)
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#b8bb26"), // gruvbox green
		Secondary: lipgloss.Color("#83a598"), // gruvbox aqua
		Success:   lipgloss.Color("#b8bb26"),
		Error:     lipgloss.Color("#fb4934"), // gruvbox red
		Warning:   lipgloss.Color("#fabd2f"), // gruvbox yellow
		Muted:     lipgloss.Color("#928374"), // gruvbox gray
		Text:      lipgloss.Color("#ebdbb2"), // gruvbox foreground
	}
}

// ThemeFromConfig creates a theme with config overrides applied.
// Colors can be ANSI color numbers (0-255) or hex codes (#RRGGBB).
func ThemeFromConfig(cfg config.ThemeConfig) *Theme {
	theme := DefaultTheme()
	if cfg.Primary != "" {
		theme.Primary = lipgloss.Color(cfg.Primary)
	}
	if cfg.Secondary != "" {
		theme.Secondary = lipgloss.Color(cfg.Secondary)
	}
	if cfg.Success != "" {
		theme.Success = lipgloss.Color(cfg.Success)
	}
	if cfg.Error != "" {
		theme.Error = lipgloss.Color(cfg.Error)
	}
	if cfg.Muted != "" {
		theme.Muted = lipgloss.Color(cfg.Muted)
	}
	return theme
}

// Status indicators
const (
	ToolIcon    = "⚙"
	SuccessIcon = "✓"
	FailIcon    = "✗"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	theme *Theme

	Title       lipgloss.Style
	Prompt      lipgloss.Style
	Success     lipgloss.Style
	Error       lipgloss.Style
	Muted       lipgloss.Style
	Highlighted lipgloss.Style
}

// NewStyles creates styles for output. Color is dropped automatically when
// output is not a terminal.
func NewStyles(output io.Writer, theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	r := lipgloss.NewRenderer(output)
	return &Styles{
		theme: theme,
		Title: r.NewStyle().
			Bold(true).
			Foreground(theme.Text),
		Prompt: r.NewStyle().
			Bold(true).
			Foreground(theme.Primary),
		Success: r.NewStyle().
			Foreground(theme.Success),
		Error: r.NewStyle().
			Foreground(theme.Error),
		Muted: r.NewStyle().
			Foreground(theme.Muted),
		Highlighted: r.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),
	}
}

// Theme returns the theme used by these styles
func (s *Styles) Theme() *Theme {
	return s.theme
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}

// Truncate shortens a string to maxLen runes with ellipsis
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// GlamourStyleFromTheme creates a glamour StyleConfig from the given theme
func GlamourStyleFromTheme(theme *Theme) ansi.StyleConfig {
	primary := string(theme.Primary)
	secondary := string(theme.Secondary)
	warning := string(theme.Warning)
	muted := string(theme.Muted)
	text := string(theme.Text)

	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: &text},
			Margin:         uintPtr(0),
		},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color:  &warning,
				Italic: boolPtr(true),
			},
			Indent: uintPtr(2),
		},
		List: ansi.StyleList{
			LevelIndent: 2,
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{Color: &text},
			},
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				BlockPrefix: "\n",
				Color:       &secondary,
				Bold:        boolPtr(true),
			},
		},
		H1: ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Prefix: "# "}},
		H2: ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Prefix: "## "}},
		H3: ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Prefix: "### "}},
		Strikethrough: ansi.StylePrimitive{
			CrossedOut: boolPtr(true),
		},
		Emph: ansi.StylePrimitive{
			Color:  &warning,
			Italic: boolPtr(true),
		},
		Strong: ansi.StylePrimitive{
			Bold:  boolPtr(true),
			Color: &primary,
		},
		HorizontalRule: ansi.StylePrimitive{
			Color:  &muted,
			Format: "\n--------\n",
		},
		Item: ansi.StylePrimitive{
			BlockPrefix: "• ",
		},
		Enumeration: ansi.StylePrimitive{
			BlockPrefix: ". ",
			Color:       &secondary,
		},
		Link: ansi.StylePrimitive{
			Color:     &secondary,
			Underline: boolPtr(true),
		},
		LinkText: ansi.StylePrimitive{
			Color: &primary,
		},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: &primary},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{Color: &text},
				Margin:         uintPtr(2),
			},
		},
		Table: ansi.StyleTable{
			CenterSeparator: stringPtr("┼"),
			ColumnSeparator: stringPtr("│"),
			RowSeparator:    stringPtr("─"),
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func uintPtr(u uint) *uint {
	return &u
}

func stringPtr(s string) *string {
	return &s
}
