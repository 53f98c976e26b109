package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/itsuki0/term-assistant/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage term-assistant configuration",
	Long: `View or edit your term-assistant configuration.

Examples:
  term-assistant config                     # show current config
  term-assistant config edit                # edit in $EDITOR
  term-assistant config path                # print the config file path
  term-assistant config completion zsh      # generate shell completions`,
	Args: cobra.NoArgs,
	RunE: configShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file in $EDITOR",
	Args:  cobra.NoArgs,
	RunE:  configEdit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print configuration file path",
	Args:  cobra.NoArgs,
	RunE:  configPath,
}

var configCompletionCmd = &cobra.Command{
	Use:       "completion [bash|zsh|fish|powershell]",
	Short:     "Generate shell completion script",
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      configCompletion,
}

func init() {
	configCmd.AddCommand(configEditCmd, configPathCmd, configCompletionCmd)
	rootCmd.AddCommand(configCmd)
}

// resolvedConfigPath is --config when given, otherwise the default path.
func resolvedConfigPath() (string, error) {
	if flags.configFile != "" {
		return flags.configFile, nil
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get config path: %w", err)
	}
	return path, nil
}

func configShow(cmd *cobra.Command, args []string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}
	var cfg *config.Config
	if flags.configFile != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	return writeConfig(cmd.OutOrStdout(), path, cfg)
}

// writeConfig prints cfg as YAML with keys masked, under a header naming
// the file it came from.
func writeConfig(w io.Writer, path string, cfg *config.Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(w, "# No config file (using defaults and environment)\n")
		fmt.Fprintf(w, "# Create one at: %s\n\n", path)
	} else {
		fmt.Fprintf(w, "# %s\n\n", path)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func configEdit(cmd *cobra.Command, args []string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(defaultConfigContent), 0o600); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		editor = "vi"
	}
	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	return editorCmd.Run()
}

func configPath(cmd *cobra.Command, args []string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func configCompletion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	switch args[0] {
	case "bash":
		return rootCmd.GenBashCompletion(out)
	case "zsh":
		return rootCmd.GenZshCompletion(out)
	case "fish":
		return rootCmd.GenFishCompletion(out, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(out)
	}
	return nil
}

const defaultConfigContent = `# term-assistant configuration
# Run 'term-assistant config edit' to modify

provider: bedrock          # bedrock or anthropic
non_stream: false
max_tokens: 4096
retries: 3
parallel_tools: false

bedrock:
  region: us-east-1
  chat_model: anthropic.claude-3-haiku-20240307-v1:0
  image_model: amazon.titan-image-generator-v1

anthropic:
  # api_key: ${ANTHROPIC_API_KEY}
  model: claude-3-5-haiku-latest

image:
  provider: titan          # titan, gemini, openai or debug
  preview: true
  gemini:
    # api_key: ${GEMINI_API_KEY}
    model: imagen-3.0-generate-002
  openai:
    # api_key: ${OPENAI_API_KEY}
    model: gpt-image-1

sandbox:
  runner: python           # python or starlark
  python: python3.11
  timeout: 30s

log:
  # file: /tmp/term-assistant.log
  debug: false

telemetry:
  enabled: false
  endpoint: localhost:4318
  insecure: true
`
