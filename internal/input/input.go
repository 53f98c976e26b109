// Package input reads user lines for the chat REPL.
package input

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrExit is returned when the user asks to leave (Esc, Ctrl+C or EOF).
var ErrExit = errors.New("exit requested")

// Reader reads one line of user input.
type Reader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// Options selects and configures a Reader.
type Options struct {
	// Plain forces the line editor even on a terminal.
	Plain bool
	// HistoryFile persists line editor history; empty disables it.
	HistoryFile string
	// PromptColor styles the interactive prompt.
	PromptColor string
}

// New returns the bubbletea prompt on a terminal, and the liner line editor
// for --plain or piped input.
func New(opts Options) Reader {
	if !opts.Plain && IsInteractive() {
		return newTeaReader(os.Stdin, os.Stdout, opts.PromptColor)
	}
	return newLinerReader(opts.HistoryFile)
}

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// HasStdin returns true if stdin has data available (not a TTY)
func HasStdin() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode()&os.ModeCharDevice) == 0 || fi.Size() > 0
}

// ReadStdin reads all piped content from stdin.
// Returns empty string if stdin is a TTY or has no data
func ReadStdin() (string, error) {
	if !HasStdin() || term.IsTerminal(int(os.Stdin.Fd())) {
		return "", nil
	}
	return readAll(os.Stdin)
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

// ComposePrompt joins command-line words and piped content into one
// message.
func ComposePrompt(args []string, stdin string) string {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	stdin = strings.TrimSpace(stdin)
	switch {
	case stdin == "":
		return prompt
	case prompt == "":
		return stdin
	default:
		return prompt + "\n\n" + stdin
	}
}
