package image

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// InvokeModelAPI is the subset of the Bedrock runtime client the Titan
// backend needs.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// TitanRequest is the Titan image generator request body.
type TitanRequest struct {
	TaskType              string                 `json:"taskType"`
	TextToImageParams     TitanTextToImageParams `json:"textToImageParams"`
	ImageGenerationConfig *TitanGenerationConfig `json:"imageGenerationConfig,omitempty"`
}

type TitanTextToImageParams struct {
	Text string `json:"text"`
}

type TitanGenerationConfig struct {
	NumberOfImages int    `json:"numberOfImages,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Height         int    `json:"height,omitempty"`
	Width          int    `json:"width,omitempty"`
}

type titanResponse struct {
	Images []string `json:"images"`
	Error  *string  `json:"error,omitempty"`
}

// NewTitanRequest builds a TEXT_IMAGE request.
func NewTitanRequest(req Request) TitanRequest {
	req = req.WithDefaults()
	return TitanRequest{
		TaskType:          "TEXT_IMAGE",
		TextToImageParams: TitanTextToImageParams{Text: req.Prompt},
		ImageGenerationConfig: &TitanGenerationConfig{
			NumberOfImages: req.NumberOfImages,
			Quality:        req.Quality,
			Height:         req.Height,
			Width:          req.Width,
		},
	}
}

// TitanGenerator generates images with an Amazon Titan model on Bedrock.
type TitanGenerator struct {
	api   InvokeModelAPI
	model string
}

func NewTitanGenerator(api InvokeModelAPI, model string) *TitanGenerator {
	return &TitanGenerator{api: api, model: model}
}

func (g *TitanGenerator) Name() string {
	return "Titan"
}

func (g *TitanGenerator) Generate(ctx context.Context, req Request) ([]string, error) {
	body, err := json.Marshal(NewTitanRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	out, err := g.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", g.model, err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != nil && *resp.Error != "" {
		return nil, fmt.Errorf("titan error: %s", *resp.Error)
	}
	if len(resp.Images) == 0 {
		return nil, fmt.Errorf("no images in response")
	}
	return resp.Images, nil
}
