package image

import (
	"context"
	"fmt"

	"github.com/itsuki0/term-assistant/internal/config"
)

const (
	QualityStandard = "standard"
	QualityPremium  = "premium"

	DefaultHeight = 512
	DefaultWidth  = 512
)

// Request is a text-to-image request. Zero fields take the defaults from
// WithDefaults.
type Request struct {
	Prompt         string
	NumberOfImages int
	Quality        string
	Height         int
	Width          int
}

// WithDefaults fills unset fields: one image, standard quality, 512x512.
func (r Request) WithDefaults() Request {
	if r.NumberOfImages <= 0 {
		r.NumberOfImages = 1
	}
	if r.Quality == "" {
		r.Quality = QualityStandard
	}
	if r.Height <= 0 {
		r.Height = DefaultHeight
	}
	if r.Width <= 0 {
		r.Width = DefaultWidth
	}
	return r
}

// Generator produces images for a prompt. Images are returned base64
// encoded, in whatever format the backend emits.
type Generator interface {
	// Name returns the backend name for logging
	Name() string

	Generate(ctx context.Context, req Request) ([]string, error)
}

// NewGenerator creates the generator selected by cfg.Image.Provider.
// invoker is only used by the Titan backend and may be nil otherwise.
func NewGenerator(ctx context.Context, cfg *config.Config, invoker InvokeModelAPI) (Generator, error) {
	switch cfg.Image.Provider {
	case config.ImageTitan:
		if invoker == nil {
			return nil, fmt.Errorf("titan image generation requires a bedrock runtime client")
		}
		return NewTitanGenerator(invoker, cfg.Bedrock.ImageModel), nil

	case config.ImageGemini:
		apiKey := cfg.Image.Gemini.APIKey
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not configured. Set environment variable or add to image.gemini.api_key in config")
		}
		return NewGeminiGenerator(ctx, apiKey, cfg.Image.Gemini.Model)

	case config.ImageOpenAI:
		apiKey := cfg.Image.OpenAI.APIKey
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not configured. Set environment variable or add to image.openai.api_key in config")
		}
		return NewOpenAIGenerator(apiKey, cfg.Image.OpenAI.Model), nil

	case config.ImageDebug:
		return NewDebugGenerator(0), nil

	default:
		return nil, fmt.Errorf("unknown image provider: %s (valid: titan, gemini, openai, debug)", cfg.Image.Provider)
	}
}
