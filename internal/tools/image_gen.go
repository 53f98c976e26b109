package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/itsuki0/term-assistant/internal/image"
	"github.com/itsuki0/term-assistant/internal/llm"
)

// ImageGenerateTool implements GENERATE_IMAGE.
type ImageGenerateTool struct {
	generator    image.Generator
	promptSuffix string
	preview      func(path string) error
}

// NewImageGenerateTool creates a new ImageGenerateTool. promptSuffix is
// appended to every prompt; preview, if set, is called for each saved file.
func NewImageGenerateTool(generator image.Generator, promptSuffix string, preview func(path string) error) *ImageGenerateTool {
	return &ImageGenerateTool{
		generator:    generator,
		promptSuffix: promptSuffix,
		preview:      preview,
	}
}

// ImageGenerateArgs are the arguments for GENERATE_IMAGE.
type ImageGenerateArgs struct {
	Prompt         string `json:"prompt" jsonschema_description:"Description for the image to generate."`
	Path           string `json:"path" jsonschema_description:"The folder where the generated image should be saved. Use the current working directory if the user gives none."`
	NumberOfImages int    `json:"numberOfImages,omitempty" jsonschema_description:"The number of images to generate. The default value is 1."`
	Quality        string `json:"quality,omitempty" jsonschema:"enum=standard,enum=premium" jsonschema_description:"The quality of the image to generate. The default value is standard."`
	Height         int    `json:"height,omitempty" jsonschema_description:"The height of the image in pixels. The default value is 512."`
	Width          int    `json:"width,omitempty" jsonschema_description:"The width of the image in pixels. The default value is 512."`
}

func (t *ImageGenerateTool) ID() ID { return GenerateImage }

func (t *ImageGenerateTool) Spec() (llm.ToolSpec, error) {
	return toolSpec[ImageGenerateArgs](GenerateImage, "Generate an image based on user's prompt.")
}

func (t *ImageGenerateTool) Preview(input llm.Value) string {
	var a ImageGenerateArgs
	if err := decodeArgs(input, &a); err != nil {
		return "Generating image..."
	}
	return fmt.Sprintf("Generating image: %s", truncatePreview(a.Prompt, 50))
}

func (t *ImageGenerateTool) Execute(ctx context.Context, id string, input llm.Value) llm.ToolResult {
	var a ImageGenerateArgs
	if err := decodeArgs(input, &a); err != nil {
		return errorResult(id, err)
	}
	if a.Prompt == "" {
		return errorResult(id, NewToolError(ErrInvalidParams, "prompt is required"))
	}
	if a.Quality != "" && a.Quality != image.QualityStandard && a.Quality != image.QualityPremium {
		return errorResult(id, NewToolErrorf(ErrInvalidParams, "quality must be standard or premium, got %q", a.Quality))
	}
	if a.NumberOfImages < 0 || a.Height < 0 || a.Width < 0 {
		return errorResult(id, NewToolError(ErrInvalidParams, "numberOfImages, height and width must not be negative"))
	}
	if t.generator == nil {
		return errorResult(id, NewToolError(ErrImageGenFailed, "image provider not configured"))
	}

	images, err := t.generator.Generate(ctx, image.Request{
		Prompt:         a.Prompt + t.promptSuffix,
		NumberOfImages: a.NumberOfImages,
		Quality:        a.Quality,
		Height:         a.Height,
		Width:          a.Width,
	})
	if err != nil {
		return errorResult(id, NewToolErrorf(ErrImageGenFailed, "image generation failed: %v", err))
	}

	paths, err := image.SaveImages(image.OutputDir(a.Path), id, images)
	if err != nil {
		return errorResult(id, NewToolErrorf(ErrExecutionFailed, "failed to save image: %v", err))
	}

	if t.preview != nil {
		for _, p := range paths {
			// display is best effort
			_ = t.preview(p)
		}
	}

	var sb strings.Builder
	sb.WriteString("Image generated and saved.")
	for _, p := range paths {
		sb.WriteString("\n")
		sb.WriteString(p)
	}
	return llm.TextResult(id, llm.ToolSuccess, sb.String())
}
