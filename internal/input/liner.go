package input

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

// linerReader provides readline-style editing and history. On a non-terminal
// stdin liner reads plain lines.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader(historyFile string) *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	r := &linerReader{line: line, historyFile: historyFile}
	r.loadHistory()
	return r
}

func (r *linerReader) loadHistory() {
	if r.historyFile == "" {
		return
	}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	text, err := r.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return "", ErrExit
		}
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		r.line.AppendHistory(text)
	}
	return text, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (r *linerReader) Close() error {
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o755); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = r.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return r.line.Close()
}
