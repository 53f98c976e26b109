package input

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(m promptModel, text string) promptModel {
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(promptModel)
	}
	return m
}

func press(m promptModel, key tea.KeyType) (promptModel, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: key})
	return next.(promptModel), cmd
}

func TestPromptModelSubmit(t *testing.T) {
	m := typeText(newPromptModel("> ", "", nil), "hello")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.done)
	assert.False(t, m.cancelled)
	assert.Equal(t, "hello", m.input.Value())
	assert.Equal(t, "> hello\n", m.View())
}

func TestPromptModelCancel(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		m := typeText(newPromptModel("> ", "", nil), "half typed")
		m, cmd := press(m, key)
		require.NotNil(t, cmd)
		assert.True(t, m.cancelled)
		assert.Empty(t, m.View())
	}
}

func TestPromptModelCtrlDOnlyWhenEmpty(t *testing.T) {
	m := typeText(newPromptModel("> ", "", nil), "x")
	m, _ = press(m, tea.KeyCtrlD)
	assert.False(t, m.cancelled)

	m, _ = press(newPromptModel("> ", "", nil), tea.KeyCtrlD)
	assert.True(t, m.cancelled)
}

func TestPromptModelHistory(t *testing.T) {
	m := newPromptModel("> ", "", []string{"first", "second"})
	m, _ = press(m, tea.KeyUp)
	assert.Equal(t, "second", m.input.Value())
	m, _ = press(m, tea.KeyUp)
	assert.Equal(t, "first", m.input.Value())
	m, _ = press(m, tea.KeyUp)
	assert.Equal(t, "first", m.input.Value())
	m, _ = press(m, tea.KeyDown)
	assert.Equal(t, "second", m.input.Value())
	m, _ = press(m, tea.KeyDown)
	assert.Empty(t, m.input.Value())
}

func TestComposePrompt(t *testing.T) {
	assert.Equal(t, "explain this", ComposePrompt([]string{"explain", "this"}, ""))
	assert.Equal(t, "piped text", ComposePrompt(nil, "piped text\n"))
	assert.Equal(t, "summarise\n\nline one\nline two", ComposePrompt([]string{"summarise"}, "line one\nline two\n"))
	assert.Empty(t, ComposePrompt(nil, "  "))
}

func TestReadAll(t *testing.T) {
	got, err := readAll(strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "data", got)
}
