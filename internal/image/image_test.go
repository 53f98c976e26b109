package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	goimage "image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsuki0/term-assistant/internal/config"
)

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  []byte
	err   error
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func encodePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRequestWithDefaults(t *testing.T) {
	req := Request{Prompt: "a cat"}.WithDefaults()
	assert.Equal(t, 1, req.NumberOfImages)
	assert.Equal(t, QualityStandard, req.Quality)
	assert.Equal(t, 512, req.Height)
	assert.Equal(t, 512, req.Width)

	req = Request{Prompt: "a cat", NumberOfImages: 3, Quality: QualityPremium, Height: 1024, Width: 768}.WithDefaults()
	assert.Equal(t, 3, req.NumberOfImages)
	assert.Equal(t, QualityPremium, req.Quality)
	assert.Equal(t, 1024, req.Height)
	assert.Equal(t, 768, req.Width)
}

func TestTitanRequestBody(t *testing.T) {
	data, err := json.Marshal(NewTitanRequest(Request{Prompt: "a lighthouse", NumberOfImages: 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"taskType": "TEXT_IMAGE",
		"textToImageParams": {"text": "a lighthouse"},
		"imageGenerationConfig": {"numberOfImages": 2, "quality": "standard", "height": 512, "width": 512}
	}`, string(data))
}

func TestTitanGenerate(t *testing.T) {
	img := encodePNG(t, 4, 4)
	invoker := &fakeInvoker{body: []byte(`{"images":["` + img + `"]}`)}
	gen := NewTitanGenerator(invoker, "amazon.titan-image-generator-v1")

	images, err := gen.Generate(context.Background(), Request{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, []string{img}, images)
	assert.Equal(t, "amazon.titan-image-generator-v1", aws.ToString(invoker.input.ModelId))
	assert.Equal(t, "application/json", aws.ToString(invoker.input.ContentType))

	var sent TitanRequest
	require.NoError(t, json.Unmarshal(invoker.input.Body, &sent))
	assert.Equal(t, "a cat", sent.TextToImageParams.Text)
}

func TestTitanGenerateErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewTitanGenerator(&fakeInvoker{err: errors.New("throttled")}, "m").Generate(ctx, Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")

	_, err = NewTitanGenerator(&fakeInvoker{body: []byte(`{"images":[],"error":"blocked by filter"}`)}, "m").Generate(ctx, Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked by filter")

	_, err = NewTitanGenerator(&fakeInvoker{body: []byte(`{"images":[]}`)}, "m").Generate(ctx, Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no images")

	_, err = NewTitanGenerator(&fakeInvoker{body: []byte(`not json`)}, "m").Generate(ctx, Request{Prompt: "x"})
	require.Error(t, err)
}

func TestOutputDir(t *testing.T) {
	assert.Equal(t, "out", OutputDir("out"))
	assert.Equal(t, "out", OutputDir("out/cat.png"))
	assert.Equal(t, ".", OutputDir("cat.png"))
	assert.Equal(t, "/tmp/images", OutputDir("/tmp/images"))
}

func TestSaveImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, goimage.NewRGBA(goimage.Rect(0, 0, 8, 8)), nil))
	images := []string{encodePNG(t, 4, 4), base64.StdEncoding.EncodeToString(jpg.Bytes())}

	paths, err := SaveImages(dir, "tooluse_abc", images)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "tooluse_abc-0.png"),
		filepath.Join(dir, "tooluse_abc-1.png"),
	}, paths)

	for _, p := range paths {
		f, err := os.Open(p)
		require.NoError(t, err)
		_, format, err := goimage.DecodeConfig(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, "png", format, "saved images are re-encoded as png")
	}
}

func TestSaveImagesRejectsBadData(t *testing.T) {
	dir := t.TempDir()

	_, err := SaveImages(dir, "id", []string{"%%%not base64"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base64")

	paths, err := SaveImages(dir, "id", []string{encodePNG(t, 2, 2), base64.StdEncoding.EncodeToString([]byte("plain text"))})
	require.Error(t, err)
	assert.Len(t, paths, 1)
}

func TestDebugGenerator(t *testing.T) {
	images, err := NewDebugGenerator(0).Generate(context.Background(), Request{Prompt: "x", NumberOfImages: 2, Width: 32, Height: 16})
	require.NoError(t, err)
	require.Len(t, images, 2)

	data, err := base64.StdEncoding.DecodeString(images[0])
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 16, cfg.Height)
}

func TestDebugGeneratorHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDebugGenerator(5).Generate(ctx, Request{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAspectRatio(t *testing.T) {
	assert.Equal(t, "1:1", aspectRatio(512, 512))
	assert.Equal(t, "16:9", aspectRatio(1920, 1080))
	assert.Equal(t, "9:16", aspectRatio(1080, 1920))
	assert.Equal(t, "4:3", aspectRatio(800, 600))
	assert.Equal(t, "1:1", aspectRatio(0, 0))
}

func TestOpenAIParams(t *testing.T) {
	params := openaiParams("gpt-image-1", Request{Prompt: "a cat", Quality: QualityPremium, Width: 1024, Height: 512})
	assert.Equal(t, "a cat", params.Prompt)
	assert.Equal(t, "high", string(params.Quality))
	assert.Equal(t, "1536x1024", string(params.Size))
	assert.Empty(t, string(params.ResponseFormat))

	params = openaiParams("dall-e-3", Request{Prompt: "a cat"})
	assert.Equal(t, "standard", string(params.Quality))
	assert.Equal(t, "1024x1024", string(params.Size))
	assert.Equal(t, "b64_json", string(params.ResponseFormat))
}

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	gen, err := NewGenerator(ctx, &config.Config{Image: config.ImageConfig{Provider: config.ImageDebug}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Debug", gen.Name())

	gen, err = NewGenerator(ctx, &config.Config{Image: config.ImageConfig{Provider: config.ImageTitan}}, &fakeInvoker{})
	require.NoError(t, err)
	assert.Equal(t, "Titan", gen.Name())

	_, err = NewGenerator(ctx, &config.Config{Image: config.ImageConfig{Provider: config.ImageTitan}}, nil)
	assert.Error(t, err)

	_, err = NewGenerator(ctx, &config.Config{Image: config.ImageConfig{Provider: config.ImageGemini}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	_, err = NewGenerator(ctx, &config.Config{Image: config.ImageConfig{Provider: config.ImageOpenAI}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	_, err = NewGenerator(ctx, &config.Config{Image: config.ImageConfig{Provider: "midjourney"}}, nil)
	assert.Error(t, err)
}

func TestDetectCapability(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	assert.Equal(t, CapKitty, detectCapability(env(map[string]string{"KITTY_WINDOW_ID": "1"})))
	assert.Equal(t, CapKitty, detectCapability(env(map[string]string{"TERM_PROGRAM": "ghostty"})))
	assert.Equal(t, CapITerm, detectCapability(env(map[string]string{"TERM_PROGRAM": "iTerm.app"})))
	assert.Equal(t, CapITerm, detectCapability(env(map[string]string{"LC_TERMINAL": "iTerm2"})))
	assert.Equal(t, CapSixel, detectCapability(env(map[string]string{"TERM": "xterm-sixel"})))
	assert.Equal(t, CapNone, detectCapability(env(map[string]string{"TERM": "xterm-256color"})))
}

func TestRenderImage(t *testing.T) {
	dir := t.TempDir()
	paths, err := SaveImages(dir, "id", []string{encodePNG(t, 4, 4)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderImage(&buf, paths[0], CapNone))
	assert.Zero(t, buf.Len())

	require.NoError(t, renderImage(&buf, paths[0], CapITerm))
	assert.Contains(t, buf.String(), "1337;File=")

	assert.Error(t, renderImage(&buf, filepath.Join(dir, "missing.png"), CapKitty))
}

func TestScaleImageIfNeeded(t *testing.T) {
	img := goimage.NewRGBA(goimage.Rect(0, 0, 1600, 400))
	scaled := scaleImageIfNeeded(img, 800)
	assert.Equal(t, 800, scaled.Bounds().Dx())
	assert.Equal(t, 200, scaled.Bounds().Dy())

	small := goimage.NewRGBA(goimage.Rect(0, 0, 10, 10))
	assert.Same(t, small, scaleImageIfNeeded(small, 800))
}
