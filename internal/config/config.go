package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Provider      string          `mapstructure:"provider" yaml:"provider"`
	NonStream     bool            `mapstructure:"non_stream" yaml:"non_stream"`
	MaxTokens     int             `mapstructure:"max_tokens" yaml:"max_tokens"`
	Retries       int             `mapstructure:"retries" yaml:"retries"`
	ParallelTools bool            `mapstructure:"parallel_tools" yaml:"parallel_tools"`
	SystemPrompt  string          `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
	Bedrock       BedrockConfig   `mapstructure:"bedrock" yaml:"bedrock"`
	Anthropic     AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
	Image         ImageConfig     `mapstructure:"image" yaml:"image"`
	Sandbox       SandboxConfig   `mapstructure:"sandbox" yaml:"sandbox"`
	Log           LogConfig       `mapstructure:"log" yaml:"log"`
	Telemetry     TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Theme         ThemeConfig     `mapstructure:"theme" yaml:"theme"`
}

// BedrockConfig holds the Bedrock region and model ids. They default from
// BEDROCK_REGION, BEDROCK_CHAT_MODEL_ID and BEDROCK_IMAGE_MODEL_ID.
type BedrockConfig struct {
	Region     string `mapstructure:"region" yaml:"region"`
	ChatModel  string `mapstructure:"chat_model" yaml:"chat_model"`
	ImageModel string `mapstructure:"image_model" yaml:"image_model"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// ImageConfig configures the GENERATE_IMAGE tool.
type ImageConfig struct {
	Provider     string            `mapstructure:"provider" yaml:"provider"` // titan, gemini, openai, debug
	PromptSuffix string            `mapstructure:"prompt_suffix" yaml:"prompt_suffix,omitempty"`
	Preview      bool              `mapstructure:"preview" yaml:"preview"`
	Gemini       ImageGeminiConfig `mapstructure:"gemini" yaml:"gemini"`
	OpenAI       ImageOpenAIConfig `mapstructure:"openai" yaml:"openai"`
}

type ImageGeminiConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model  string `mapstructure:"model" yaml:"model"`
}

type ImageOpenAIConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// SandboxConfig configures the RUN_CODE tool.
type SandboxConfig struct {
	Runner  string        `mapstructure:"runner" yaml:"runner"` // python or starlark
	Python  string        `mapstructure:"python" yaml:"python"` // BEDROCK_ASSISTANT_PYTHON
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file,omitempty"`
	Debug bool   `mapstructure:"debug" yaml:"debug"`
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"` // host:port of an OTLP/HTTP collector
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
}

// ThemeConfig allows customization of UI colors
// Colors can be ANSI color numbers (0-255) or hex codes (#RRGGBB)
type ThemeConfig struct {
	Primary   string `mapstructure:"primary" yaml:"primary,omitempty"`
	Secondary string `mapstructure:"secondary" yaml:"secondary,omitempty"`
	Success   string `mapstructure:"success" yaml:"success,omitempty"`
	Error     string `mapstructure:"error" yaml:"error,omitempty"`
	Muted     string `mapstructure:"muted" yaml:"muted,omitempty"`
}

const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"

	ImageTitan  = "titan"
	ImageGemini = "gemini"
	ImageOpenAI = "openai"
	ImageDebug  = "debug"

	RunnerPython   = "python"
	RunnerStarlark = "starlark"
)

// Load reads config.yaml from the config directory (optional) and the
// environment.
func Load() (*Config, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	return load(v)
}

// LoadFile reads configuration from an explicit file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	// Read config file (optional - won't error if missing)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Image.Gemini.APIKey = expandEnv(cfg.Image.Gemini.APIKey)
	cfg.Image.OpenAI.APIKey = expandEnv(cfg.Image.OpenAI.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderBedrock)
	v.SetDefault("non_stream", false)
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("retries", 3)
	v.SetDefault("parallel_tools", false)
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.chat_model", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.image_model", "amazon.titan-image-generator-v1")
	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("image.provider", ImageTitan)
	v.SetDefault("image.prompt_suffix", "")
	v.SetDefault("image.preview", true)
	v.SetDefault("image.gemini.model", "imagen-3.0-generate-002")
	v.SetDefault("image.openai.model", "gpt-image-1")
	v.SetDefault("sandbox.runner", RunnerPython)
	v.SetDefault("sandbox.python", "python3.11")
	v.SetDefault("sandbox.timeout", 30*time.Second)
	v.SetDefault("log.debug", false)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.insecure", true)
}

// bindEnv maps the environment variables read at startup. The misspelt
// BEDROCK_IAMGE_MODEL_ID is still honoured after the correct name.
func bindEnv(v *viper.Viper) error {
	bindings := [][]string{
		{"bedrock.region", "BEDROCK_REGION"},
		{"bedrock.chat_model", "BEDROCK_CHAT_MODEL_ID"},
		{"bedrock.image_model", "BEDROCK_IMAGE_MODEL_ID", "BEDROCK_IAMGE_MODEL_ID"},
		{"sandbox.python", "BEDROCK_ASSISTANT_PYTHON"},
		{"anthropic.api_key", "ANTHROPIC_API_KEY"},
		{"image.gemini.api_key", "GEMINI_API_KEY"},
		{"image.openai.api_key", "OPENAI_API_KEY"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b...); err != nil {
			return fmt.Errorf("bind env %s: %w", b[0], err)
		}
	}
	return nil
}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderBedrock, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q (valid: bedrock, anthropic)", c.Provider)
	}
	switch c.Image.Provider {
	case ImageTitan, ImageGemini, ImageOpenAI, ImageDebug:
	default:
		return fmt.Errorf("unknown image provider %q (valid: titan, gemini, openai, debug)", c.Image.Provider)
	}
	switch c.Sandbox.Runner {
	case RunnerPython, RunnerStarlark:
	default:
		return fmt.Errorf("unknown sandbox runner %q (valid: python, starlark)", c.Sandbox.Runner)
	}
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	}
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("sandbox timeout must be positive, got %s", c.Sandbox.Timeout)
	}
	return nil
}

// ApplyOverrides applies provider and model overrides to the config.
// If provider is non-empty, it overrides the global provider.
// If model is non-empty, it overrides the model for the active provider.
func (c *Config) ApplyOverrides(provider, model string) {
	if provider != "" {
		c.Provider = provider
	}
	if model != "" {
		switch c.Provider {
		case ProviderBedrock:
			c.Bedrock.ChatModel = model
		case ProviderAnthropic:
			c.Anthropic.Model = model
		}
	}
}

// ChatModel returns the model id of the active provider.
func (c *Config) ChatModel() string {
	if c.Provider == ProviderAnthropic {
		return c.Anthropic.Model
	}
	return c.Bedrock.ChatModel
}

// Redacted returns a copy with API keys masked, for display.
func (c Config) Redacted() Config {
	c.Anthropic.APIKey = mask(c.Anthropic.APIKey)
	c.Image.Gemini.APIKey = mask(c.Image.Gemini.APIKey)
	c.Image.OpenAI.APIKey = mask(c.Image.OpenAI.APIKey)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "…" + s[len(s)-4:]
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for term-assistant.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "term-assistant"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "term-assistant"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
