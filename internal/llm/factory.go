package llm

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog"

	"github.com/itsuki0/term-assistant/internal/config"
)

// ProviderNames lists the chat providers NewClient can build.
var ProviderNames = []string{config.ProviderBedrock, config.ProviderAnthropic}

// ParseProviderModel parses "provider:model" or just "provider" from a flag value.
// Model will be empty if not specified.
func ParseProviderModel(s string) (string, string, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return "", "", fmt.Errorf("invalid provider format: %q", s)
	}
	provider := strings.TrimSpace(parts[0])
	model := ""
	if len(parts) == 2 {
		model = strings.TrimSpace(parts[1])
	}
	for _, name := range ProviderNames {
		if provider == name {
			return provider, model, nil
		}
	}
	return "", "", fmt.Errorf("unknown provider: %s (valid: %s)", provider, strings.Join(ProviderNames, ", "))
}

// NewBedrockRuntime loads the default AWS credential chain for region.
// The returned client serves both chat (BedrockAPI) and Titan image
// generation.
func NewBedrockRuntime(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

// NewClient creates the chat client selected by cfg.Provider. The Bedrock
// runtime is only required for the bedrock provider.
// Clients are wrapped with automatic retry for rate limits (429) and transient errors.
func NewClient(cfg *config.Config, runtime BedrockAPI, logger zerolog.Logger) (Client, error) {
	var c Client
	switch cfg.Provider {
	case config.ProviderBedrock:
		if runtime == nil {
			return nil, fmt.Errorf("bedrock provider requires a Bedrock runtime client")
		}
		c = NewBedrockClient(runtime, cfg.Bedrock.ChatModel)
	case config.ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not configured. Set environment variable or add api_key to anthropic config")
		}
		c = NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	retry := DefaultRetryConfig()
	if cfg.Retries > 0 {
		retry.MaxAttempts = cfg.Retries
	}
	return WrapWithRetry(c, retry, logger), nil
}
