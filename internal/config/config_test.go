package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"BEDROCK_REGION", "BEDROCK_CHAT_MODEL_ID", "BEDROCK_IMAGE_MODEL_ID",
		"BEDROCK_IAMGE_MODEL_ID", "BEDROCK_ASSISTANT_PYTHON", "ANTHROPIC_API_KEY",
		"GEMINI_API_KEY", "OPENAI_API_KEY",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderBedrock, cfg.Provider)
	assert.Equal(t, "us-east-1", cfg.Bedrock.Region)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", cfg.Bedrock.ChatModel)
	assert.Equal(t, "amazon.titan-image-generator-v1", cfg.Bedrock.ImageModel)
	assert.Equal(t, "python3.11", cfg.Sandbox.Python)
	assert.Equal(t, RunnerPython, cfg.Sandbox.Runner)
	assert.Equal(t, 30*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, ImageTitan, cfg.Image.Provider)
	assert.Empty(t, cfg.Image.PromptSuffix)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.False(t, cfg.NonStream)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("BEDROCK_REGION", "eu-west-1")
	t.Setenv("BEDROCK_CHAT_MODEL_ID", "anthropic.claude-3-sonnet")
	t.Setenv("BEDROCK_ASSISTANT_PYTHON", "/usr/bin/python3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Bedrock.Region)
	assert.Equal(t, "anthropic.claude-3-sonnet", cfg.Bedrock.ChatModel)
	assert.Equal(t, "/usr/bin/python3", cfg.Sandbox.Python)
}

func TestLoadMisspeltImageModelVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("BEDROCK_IAMGE_MODEL_ID", "amazon.titan-image-generator-v2:0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "amazon.titan-image-generator-v2:0", cfg.Bedrock.ImageModel)

	t.Setenv("BEDROCK_IMAGE_MODEL_ID", "stability.sd3")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "stability.sd3", cfg.Bedrock.ImageModel, "correct spelling wins")
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_GEMINI_KEY", "secret-gemini-key")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`provider: anthropic
anthropic:
  model: claude-3-opus
image:
  provider: gemini
  prompt_suffix: ", watercolor"
  gemini:
    api_key: ${TEST_GEMINI_KEY}
sandbox:
  runner: starlark
  timeout: 5s
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "claude-3-opus", cfg.ChatModel())
	assert.Equal(t, ImageGemini, cfg.Image.Provider)
	assert.Equal(t, ", watercolor", cfg.Image.PromptSuffix)
	assert.Equal(t, "secret-gemini-key", cfg.Image.Gemini.APIKey)
	assert.Equal(t, RunnerStarlark, cfg.Sandbox.Runner)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout)
}

func TestLoadFileRejectsUnknownProvider(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: nope\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestApplyOverrides(t *testing.T) {
	cfg := &Config{
		Provider:  ProviderBedrock,
		Bedrock:   BedrockConfig{ChatModel: "anthropic.claude-3-haiku"},
		Anthropic: AnthropicConfig{Model: "claude-3-5-haiku-latest"},
	}

	cfg.ApplyOverrides("anthropic", "claude-3-opus")
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "claude-3-opus", cfg.Anthropic.Model)
	assert.Equal(t, "anthropic.claude-3-haiku", cfg.Bedrock.ChatModel, "bedrock model changed unexpectedly")

	cfg.ApplyOverrides("", "claude-3-sonnet")
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "claude-3-sonnet", cfg.ChatModel())
}

func TestRedacted(t *testing.T) {
	cfg := Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-1234567890"}}
	red := cfg.Redacted()
	assert.NotContains(t, red.Anthropic.APIKey, "567")
	assert.Equal(t, "sk-ant-1234567890", cfg.Anthropic.APIKey, "original untouched")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_EXPAND", "value")
	assert.Equal(t, "value", expandEnv("${TEST_EXPAND}"))
	assert.Equal(t, "value", expandEnv("$TEST_EXPAND"))
	assert.Equal(t, "plain", expandEnv("plain"))
}
