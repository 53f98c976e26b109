package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/itsuki0/term-assistant/internal/config"
	"github.com/itsuki0/term-assistant/internal/image"
	"github.com/itsuki0/term-assistant/internal/llm"
	"github.com/itsuki0/term-assistant/internal/logging"
	"github.com/itsuki0/term-assistant/internal/sandbox"
	"github.com/itsuki0/term-assistant/internal/telemetry"
	"github.com/itsuki0/term-assistant/internal/tools"
	"github.com/itsuki0/term-assistant/internal/ui"
)

// app holds everything a chat session needs.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	client  llm.Client
	toolbox *tools.Toolbox
	engine  *llm.Engine
	printer *ui.Printer

	closers []func(context.Context) error
}

// newApp wires the configured client, tools and terminal output together.
func newApp(ctx context.Context, cfg *config.Config, out io.Writer, plain bool) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	logger, logCloser, err := logging.New(cfg.Log.File, cfg.Log.Debug)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	a.closers = append(a.closers, func(context.Context) error { return logCloser.Close() })

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: "term-assistant",
		Version:     Version,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, tp.Shutdown)

	// One runtime client serves both chat and Titan images.
	var (
		chatAPI  llm.BedrockAPI
		imageAPI image.InvokeModelAPI
	)
	if cfg.Provider == config.ProviderBedrock || cfg.Image.Provider == config.ImageTitan {
		runtime, err := llm.NewBedrockRuntime(ctx, cfg.Bedrock.Region)
		if err != nil {
			return nil, err
		}
		chatAPI, imageAPI = runtime, runtime
	}

	a.client, err = llm.NewClient(cfg, chatAPI, logger)
	if err != nil {
		return nil, err
	}

	generator, err := image.NewGenerator(ctx, cfg, imageAPI)
	if err != nil {
		// Chat still works; the tool reports the missing backend per call.
		logger.Warn().Err(err).Str("provider", cfg.Image.Provider).Msg("image generation unavailable")
		generator = nil
	}

	runner, err := sandbox.New(cfg.Sandbox)
	if err != nil {
		return nil, err
	}

	theme := ui.ThemeFromConfig(cfg.Theme)
	a.printer = ui.NewPrinter(out, theme,
		ui.WithPlain(plain),
		ui.WithPreview(func(use llm.ToolUse) string { return a.toolbox.Preview(use) }),
	)

	var preview func(path string) error
	if cfg.Image.Preview && image.DetectCapability() != image.CapNone {
		preview = func(path string) error { return image.Preview(a.printer, path) }
	}

	a.toolbox, err = tools.NewToolbox(tools.Deps{
		Files:        tools.OSFileSystem{},
		Images:       generator,
		PromptSuffix: cfg.Image.PromptSuffix,
		Preview:      preview,
		Runner:       runner,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	system := cfg.SystemPrompt
	if system == "" {
		system = systemPrompt(runner.Name())
	}
	a.engine, err = llm.NewEngine(a.client, a.toolbox,
		llm.WithModel(cfg.ChatModel()),
		llm.WithSystemPrompt(system),
		llm.WithLogger(logger),
		llm.WithSink(a.printer),
		llm.WithParallelTools(cfg.ParallelTools),
		llm.WithTracer(tp.Tracer()),
		llm.WithMaxTokens(cfg.MaxTokens),
	)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.ChatModel()).
		Str("image_provider", cfg.Image.Provider).
		Str("runner", runner.Name()).
		Msg("session started")
	ok = true
	return a, nil
}

// toolNames lists the registered tools for the banner.
func (a *app) toolNames() []string {
	specs := a.toolbox.Specs()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// Close flushes traces and closes the log, in reverse setup order.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
}
