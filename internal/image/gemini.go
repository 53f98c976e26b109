package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"google.golang.org/genai"
)

// GeminiGenerator generates images with Imagen through the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Name() string {
	return "Gemini"
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) ([]string, error) {
	req = req.WithDefaults()
	resp, err := g.client.Models.GenerateImages(ctx, g.model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(req.NumberOfImages),
		AspectRatio:    aspectRatio(req.Width, req.Height),
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate images: %w", err)
	}

	var images []string
	for _, img := range resp.GeneratedImages {
		if img == nil || img.Image == nil || len(img.Image.ImageBytes) == 0 {
			continue
		}
		images = append(images, base64.StdEncoding.EncodeToString(img.Image.ImageBytes))
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images in response")
	}
	return images, nil
}

// aspectRatio picks the supported Imagen ratio closest to width:height.
func aspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}
	ratios := []struct {
		name  string
		value float64
	}{
		{"1:1", 1},
		{"3:4", 3.0 / 4},
		{"4:3", 4.0 / 3},
		{"9:16", 9.0 / 16},
		{"16:9", 16.0 / 9},
	}
	want := float64(width) / float64(height)
	best := ratios[0]
	for _, r := range ratios[1:] {
		if math.Abs(r.value-want) < math.Abs(best.value-want) {
			best = r
		}
	}
	return best.name
}
