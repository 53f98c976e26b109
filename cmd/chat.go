package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/itsuki0/term-assistant/internal/config"
	"github.com/itsuki0/term-assistant/internal/input"
	"github.com/itsuki0/term-assistant/internal/llm"
	"github.com/itsuki0/term-assistant/internal/signal"
	"github.com/itsuki0/term-assistant/internal/ui"
)

const promptText = "> "

// reportedError marks an error the printer has already shown.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// conversation is the part of llm.Engine the chat loop drives.
type conversation interface {
	Submit(ctx context.Context, text string) error
	SubmitStream(ctx context.Context, text string) error
	Reset()
	Transcript() []llm.Turn
}

// notifier prints status lines between turns.
type notifier interface {
	Info(format string, args ...any)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext()
	defer stop()

	stdin, err := input.ReadStdin()
	if err != nil {
		return err
	}
	prompt := input.ComposePrompt(args, stdin)

	a, err := newApp(ctx, cfg, cmd.OutOrStdout(), flags.plain)
	if err != nil {
		return err
	}
	defer a.Close()

	s := &session{
		conv:      a.engine,
		status:    a.printer,
		out:       cmd.OutOrStdout(),
		stream:    !cfg.NonStream,
		interrupt: signal.Interruptible,
	}

	if prompt != "" {
		return s.submit(ctx, prompt)
	}
	if input.HasStdin() {
		return errors.New("no input provided")
	}

	a.printer.Banner(a.client.Name(), cfg.ChatModel(), a.toolNames())
	reader := input.New(input.Options{
		Plain:       flags.plain,
		HistoryFile: historyPath(),
		PromptColor: string(ui.ThemeFromConfig(cfg.Theme).Primary),
	})
	defer reader.Close()
	return s.loop(ctx, reader)
}

// historyPath is the line editor history file in the config directory.
func historyPath() string {
	dir, err := config.GetConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

// session runs user requests against a conversation.
type session struct {
	conv      conversation
	status    notifier
	out       io.Writer
	stream    bool
	interrupt func(context.Context) (context.Context, context.CancelFunc)
}

// submit runs one request. Ctrl+C cancels the request, not the program.
func (s *session) submit(ctx context.Context, text string) error {
	reqCtx, cancel := s.interrupt(ctx)
	defer cancel()

	var err error
	if s.stream {
		err = s.conv.SubmitStream(reqCtx, text)
	} else {
		err = s.conv.Submit(reqCtx, text)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && reqCtx.Err() != nil {
		s.status.Info("Request cancelled")
	}
	return reportedError{err}
}

// loop reads lines until the user exits or ctx ends. Request errors are
// shown and the loop continues with the transcript as it stands.
func (s *session) loop(ctx context.Context, reader input.Reader) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := reader.ReadLine(promptText)
		if errors.Is(err, input.ErrExit) {
			return nil
		}
		if err != nil {
			return err
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		switch text {
		case "/exit", "/quit":
			return nil
		case "/clear":
			s.conv.Reset()
			s.status.Info("Conversation cleared")
			continue
		case "/transcript":
			if err := s.writeTranscript(); err != nil {
				return err
			}
			continue
		}

		// the printer has shown request errors already
		_ = s.submit(ctx, text)
	}
}

// writeTranscript dumps the conversation as YAML.
func (s *session) writeTranscript() error {
	turns := s.conv.Transcript()
	if len(turns) == 0 {
		s.status.Info("Conversation is empty")
		return nil
	}
	enc := yaml.NewEncoder(s.out)
	enc.SetIndent(2)
	if err := enc.Encode(turns); err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	return enc.Close()
}
