package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"
)

// OCREngine recognizes text in images. The production engine shells out to
// the tesseract binary; tests inject a fake.
type OCREngine interface {
	// Available reports whether the engine can run at all.
	Available() error
	// Recognize runs OCR on the image file at path.
	Recognize(ctx context.Context, path string) (string, error)
	// RecognizeImage runs OCR on an already decoded image.
	RecognizeImage(ctx context.Context, img image.Image) (string, error)
}

// TesseractEngine runs the tesseract command line tool.
type TesseractEngine struct {
	// Binary is the tesseract executable name or path.
	Binary string
}

// NewTesseractEngine returns an engine using the tesseract binary from PATH.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{Binary: "tesseract"}
}

func (t *TesseractEngine) Available() error {
	if _, err := exec.LookPath(t.Binary); err != nil {
		return fmt.Errorf("looking up %q: %w", t.Binary, err)
	}
	return nil
}

func (t *TesseractEngine) Recognize(ctx context.Context, path string) (string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, t.Binary, path, "stdout")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
		}
		return "", fmt.Errorf("tesseract %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// RecognizeImage encodes the image to a temporary PNG and recognizes it.
// Tesseract consumes files, not pixels, so decoded frames go through disk.
func (t *TesseractEngine) RecognizeImage(ctx context.Context, img image.Image) (string, error) {
	tmp, err := os.CreateTemp("", "job-matcher-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("creating temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encoding frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp image: %w", err)
	}

	return t.Recognize(ctx, tmp.Name())
}
