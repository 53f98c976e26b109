package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	goimage "image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// OutputDir resolves where generated images go. A path with a file
// extension names a file, so its parent directory is used.
func OutputDir(path string) string {
	path = expandPath(path)
	if filepath.Ext(path) != "" {
		return filepath.Dir(path)
	}
	return path
}

// SaveImages decodes base64 images, re-encodes them as PNG and writes them
// to dir as {id}-{index}.png. The directory is created if absent. It
// returns the written paths; on error the paths written so far are kept.
func SaveImages(dir, id string, images []string) ([]string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	paths := make([]string, 0, len(images))
	for i, encoded := range images {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return paths, fmt.Errorf("image %d: invalid base64: %w", i, err)
		}
		img, _, err := goimage.Decode(bytes.NewReader(data))
		if err != nil {
			return paths, fmt.Errorf("image %d: %w", i, err)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s-%d.png", id, i))
		if err := writePNG(path, img); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writePNG(path string, img goimage.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return f.Close()
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
