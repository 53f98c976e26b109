package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/itsuki0/term-assistant/internal/config"
	"github.com/itsuki0/term-assistant/internal/llm"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// rootFlags are the flags of the chat command.
type rootFlags struct {
	configFile    string
	provider      string
	model         string
	region        string
	nonStream     bool
	plain         bool
	parallelTools bool
	logFile       string
	debug         bool
	trace         bool
}

var flags rootFlags

var rootCmd = &cobra.Command{
	Use:   "term-assistant [message]",
	Short: "Chat with a model that can read files, draw images and run code",
	Long: `term-assistant is a terminal chat client for AWS Bedrock (or the Anthropic
API). The model can call three local tools: READ_FILE, GENERATE_IMAGE and
RUN_CODE.

With a message argument, or piped input, it answers once and exits.

Examples:
  term-assistant                                  # interactive chat
  term-assistant "what is in ./notes.md?"         # one question
  cat error.log | term-assistant "explain this"   # piped context
  term-assistant --provider anthropic:claude-3-5-haiku-latest
  term-assistant --non-stream --plain

  term-assistant config                           # view configuration`,
	Version:           Version,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	SilenceErrors:     true,
	RunE:              runChat,
}

func init() {
	f := rootCmd.Flags()
	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "Read configuration from this file instead of the config directory")
	f.StringVarP(&flags.provider, "provider", "p", "", "Override provider, optionally with model (e.g., anthropic:claude-3-5-haiku-latest)")
	f.StringVarP(&flags.model, "model", "m", "", "Override the chat model id")
	f.StringVar(&flags.region, "region", "", "Override the Bedrock region")
	f.BoolVar(&flags.nonStream, "non-stream", false, "Wait for complete replies instead of streaming")
	f.BoolVar(&flags.plain, "plain", false, "Plain line input and no markdown rendering")
	f.BoolVar(&flags.parallelTools, "parallel-tools", false, "Run the tool calls of one turn concurrently")
	f.StringVar(&flags.logFile, "log-file", "", "Write structured logs to this file")
	f.BoolVarP(&flags.debug, "debug", "d", false, "Log at debug level")
	f.BoolVar(&flags.trace, "trace", false, "Export OpenTelemetry traces over OTLP/HTTP")

	if err := rootCmd.RegisterFlagCompletionFunc("provider", providerCompletion); err != nil {
		panic("failed to register provider completion: " + err.Error())
	}
}

func providerCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return llm.ProviderNames, cobra.ShellCompDirectiveNoFileComp
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the command-line
// overrides.
func loadConfig(f rootFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configFile != "" {
		cfg, err = config.LoadFile(f.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	provider, model := "", f.model
	if f.provider != "" {
		p, m, err := llm.ParseProviderModel(f.provider)
		if err != nil {
			return nil, err
		}
		provider = p
		if model == "" {
			model = m
		}
	}
	cfg.ApplyOverrides(provider, model)
	if f.region != "" {
		cfg.Bedrock.Region = f.region
	}
	if f.nonStream {
		cfg.NonStream = true
	}
	if f.parallelTools {
		cfg.ParallelTools = true
	}
	if f.logFile != "" {
		cfg.Log.File = f.logFile
	}
	if f.debug {
		cfg.Log.Debug = true
	}
	if f.trace {
		cfg.Telemetry.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
