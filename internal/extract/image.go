package extract

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
)

// imageText runs OCR on an image file. Animated GIFs are recognized frame by
// frame; all other images are handed to the engine as-is.
func (e *Extractor) imageText(ctx context.Context, path string) (string, error) {
	if err := e.ocr.Available(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}

	if normalizeExt(filepath.Ext(path)) == "gif" {
		return e.gifText(ctx, path)
	}

	return e.ocr.Recognize(ctx, path)
}

// gifText recognizes every frame of a GIF independently, drops empty and
// exact-duplicate results, and joins the unique texts with blank lines so
// near-identical repeated frames do not inflate the extracted text.
func (e *Extractor) gifText(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening gif: %w", err)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return "", fmt.Errorf("decoding gif %s: %w", path, err)
	}

	if len(g.Image) <= 1 {
		return e.ocr.Recognize(ctx, path)
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() && len(g.Image) > 0 {
		bounds = g.Image[0].Bounds()
	}

	// Frames can be partial updates, so each one is composited onto a running
	// RGBA canvas before recognition.
	canvas := image.NewRGBA(bounds)

	seen := make(map[string]struct{})
	var texts []string

	for i, frame := range g.Image {
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		snapshot := image.NewRGBA(bounds)
		draw.Draw(snapshot, bounds, canvas, bounds.Min, draw.Src)

		text, err := e.ocr.RecognizeImage(ctx, snapshot)
		if err != nil {
			return "", fmt.Errorf("frame %d: %w", i, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		texts = append(texts, text)
	}

	return strings.Join(texts, "\n\n"), nil
}
