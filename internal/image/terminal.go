package image

import (
	"fmt"
	goimage "image"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/BourgeoisBear/rasterm"
	"golang.org/x/image/draw"
)

// TerminalImageCapability represents the terminal's image rendering capability
type TerminalImageCapability int

const (
	CapNone  TerminalImageCapability = iota // No image support
	CapKitty                                // Kitty graphics protocol
	CapITerm                                // iTerm2 inline images
	CapSixel                                // Sixel graphics
)

// String returns the capability name
func (c TerminalImageCapability) String() string {
	switch c {
	case CapKitty:
		return "kitty"
	case CapITerm:
		return "iterm"
	case CapSixel:
		return "sixel"
	default:
		return "none"
	}
}

// DetectCapability detects the terminal's image rendering capability from
// the environment. Detection order: Kitty -> iTerm -> Sixel -> None
func DetectCapability() TerminalImageCapability {
	return detectCapability(os.Getenv)
}

func detectCapability(getenv func(string) string) TerminalImageCapability {
	term := getenv("TERM")
	termProgram := getenv("TERM_PROGRAM")

	if getenv("KITTY_WINDOW_ID") != "" || strings.Contains(term, "kitty") || termProgram == "ghostty" {
		return CapKitty
	}
	// WezTerm speaks the iTerm protocol
	if termProgram == "iTerm.app" || termProgram == "WezTerm" || getenv("LC_TERMINAL") == "iTerm2" {
		return CapITerm
	}
	if strings.Contains(term, "sixel") || strings.Contains(term, "mlterm") {
		return CapSixel
	}
	return CapNone
}

// Preview renders the image at path inline. It is a no-op on terminals
// without image support.
func Preview(w io.Writer, path string) error {
	return renderImage(w, path, DetectCapability())
}

func renderImage(w io.Writer, path string, cap TerminalImageCapability) error {
	if cap == CapNone {
		return nil
	}

	img, err := loadImage(path)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	// Scale image if too large (max 800px width for reasonable terminal display)
	img = scaleImageIfNeeded(img, 800)

	switch cap {
	case CapKitty:
		err = rasterm.KittyWriteImage(w, img, rasterm.KittyImgOpts{})
	case CapITerm:
		err = rasterm.ItermWriteImage(w, img)
	case CapSixel:
		// Sixel requires a paletted image
		err = rasterm.SixelWriteImage(w, convertToPaletted(img))
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// loadImage loads an image from a file path
func loadImage(path string) (goimage.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := goimage.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// scaleImageIfNeeded scales the image if it exceeds maxWidth
func scaleImageIfNeeded(img goimage.Image, maxWidth int) goimage.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxWidth {
		return img
	}

	newWidth := maxWidth
	newHeight := (height * maxWidth) / width

	dst := goimage.NewRGBA(goimage.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// convertToPaletted converts an image to a paletted image for Sixel output,
// using a 6x6x6 colour cube plus 40 grays.
func convertToPaletted(img goimage.Image) *goimage.Paletted {
	bounds := img.Bounds()
	palette := make(color.Palette, 0, 256)
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				palette = append(palette, color.RGBA{R: uint8(r * 51), G: uint8(g * 51), B: uint8(b * 51), A: 255})
			}
		}
	}
	for i := 0; i < 40; i++ {
		gray := uint8(i * 255 / 39)
		palette = append(palette, color.RGBA{R: gray, G: gray, B: gray, A: 255})
	}

	paletted := goimage.NewPaletted(bounds, palette)
	draw.FloydSteinberg.Draw(paletted, bounds, img, bounds.Min)
	return paletted
}
