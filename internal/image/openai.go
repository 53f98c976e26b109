package image

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const openaiTimeout = 10 * time.Minute

// OpenAIGenerator generates images with the OpenAI images API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (g *OpenAIGenerator) Name() string {
	return "OpenAI"
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, openaiTimeout)
	defer cancel()

	resp, err := g.client.Images.Generate(ctx, openaiParams(g.model, req))
	if err != nil {
		return nil, fmt.Errorf("OpenAI image API error: %w", err)
	}

	var images []string
	for _, img := range resp.Data {
		if img.B64JSON != "" {
			images = append(images, img.B64JSON)
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images in response")
	}
	return images, nil
}

func openaiParams(model string, req Request) openai.ImageGenerateParams {
	req = req.WithDefaults()
	params := openai.ImageGenerateParams{
		Prompt:  req.Prompt,
		Model:   openai.ImageModel(model),
		N:       param.NewOpt(int64(req.NumberOfImages)),
		Size:    openai.ImageGenerateParamsSize(openaiSize(req.Width, req.Height)),
		Quality: openai.ImageGenerateParamsQuality(openaiQuality(model, req.Quality)),
	}
	// gpt-image models always return base64 and reject response_format.
	if !strings.HasPrefix(model, "gpt-image") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}
	return params
}

// openaiSize maps the requested dimensions onto the sizes the API accepts.
func openaiSize(width, height int) string {
	switch {
	case width > height:
		return "1536x1024"
	case height > width:
		return "1024x1536"
	default:
		return "1024x1024"
	}
}

func openaiQuality(model, quality string) string {
	premium := quality == QualityPremium
	if strings.HasPrefix(model, "gpt-image") {
		if premium {
			return "high"
		}
		return "medium"
	}
	if premium {
		return "hd"
	}
	return "standard"
}
