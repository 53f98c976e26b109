package image

import (
	"bytes"
	"context"
	"encoding/base64"
	goimage "image"
	"image/color"
	"image/png"
	"math/rand"
	"time"
)

// DebugGenerator draws random rectangles locally, for development without
// API costs.
type DebugGenerator struct {
	delay time.Duration
}

// NewDebugGenerator creates a debug generator with an optional delay (in seconds)
func NewDebugGenerator(delaySeconds float64) *DebugGenerator {
	return &DebugGenerator{
		delay: time.Duration(delaySeconds * float64(time.Second)),
	}
}

func (g *DebugGenerator) Name() string {
	return "Debug"
}

func (g *DebugGenerator) Generate(ctx context.Context, req Request) ([]string, error) {
	req = req.WithDefaults()
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	images := make([]string, 0, req.NumberOfImages)
	for i := 0; i < req.NumberOfImages; i++ {
		var buf bytes.Buffer
		if err := png.Encode(&buf, randomImage(rng, req.Width, req.Height)); err != nil {
			return nil, err
		}
		images = append(images, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return images, nil
}

func randomColor(rng *rand.Rand) color.RGBA {
	return color.RGBA{
		R: uint8(rng.Intn(256)),
		G: uint8(rng.Intn(256)),
		B: uint8(rng.Intn(256)),
		A: 255,
	}
}

func randomImage(rng *rand.Rand, width, height int) *goimage.RGBA {
	img := goimage.NewRGBA(goimage.Rect(0, 0, width, height))
	fill(img, img.Bounds(), randomColor(rng))

	// 5-15 rectangles
	numRects := 5 + rng.Intn(11)
	for i := 0; i < numRects; i++ {
		x1 := rng.Intn(width)
		y1 := rng.Intn(height)
		x2 := min(x1+20+rng.Intn(200), width)
		y2 := min(y1+20+rng.Intn(200), height)
		fill(img, goimage.Rect(x1, y1, x2, y2), randomColor(rng))
	}
	return img
}

func fill(img *goimage.RGBA, r goimage.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}
