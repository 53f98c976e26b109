package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

type rendererKey struct {
	theme *Theme
	width int
}

// rendererCache provides width-keyed caching of glamour renderers.
// Creating a renderer is expensive; caching by width avoids recreation.
var rendererCache sync.Map // map[rendererKey]*glamour.TermRenderer

func getRenderer(theme *Theme, width int) (*glamour.TermRenderer, error) {
	key := rendererKey{theme: theme, width: width}
	if cached, ok := rendererCache.Load(key); ok {
		return cached.(*glamour.TermRenderer), nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(GlamourStyleFromTheme(theme)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	rendererCache.Store(key, renderer)
	return renderer, nil
}

// RenderMarkdown renders markdown content with the theme. On error the
// original content is returned unchanged.
func RenderMarkdown(content string, theme *Theme, width int) string {
	if content == "" {
		return ""
	}
	renderer, err := getRenderer(theme, width)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}
