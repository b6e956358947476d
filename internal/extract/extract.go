// Package extract converts résumé source files into plain text.
// The supported formats mirror what the résumé datasets actually contain:
// raster images (OCR), DOCX documents and INI files.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when the source file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrUnsupportedFormat is returned for extensions no extractor handles.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrDependencyUnavailable is returned when the OCR toolchain is missing
	// or unreachable, so callers can surface an actionable setup message.
	ErrDependencyUnavailable = errors.New("ocr dependency unavailable")
)

// Format identifies how a file's text is extracted.
type Format int

const (
	FormatUnsupported Format = iota
	FormatImage
	FormatDocx
	FormatINI
)

// FormatFor maps a file extension to its extraction format. The extension is
// matched case-insensitively, with or without the leading dot.
func FormatFor(ext string) Format {
	switch normalizeExt(ext) {
	case "jpg", "jpeg", "png", "webp", "gif":
		return FormatImage
	case "docx":
		return FormatDocx
	case "ini":
		return FormatINI
	default:
		return FormatUnsupported
	}
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}

// Extractor converts files to plain text, dispatching on the file extension.
type Extractor struct {
	ocr OCREngine
}

// New creates an Extractor backed by the given OCR engine.
func New(ocr OCREngine) *Extractor {
	return &Extractor{ocr: ocr}
}

// Extract returns the plain text of the file at path. Unknown extensions fail
// with ErrUnsupportedFormat; deciding to skip such files belongs to the
// ingestion layer, not here.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	ext := normalizeExt(filepath.Ext(path))

	format := FormatFor(ext)
	if format == FormatUnsupported {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	switch format {
	case FormatImage:
		return e.imageText(ctx, path)
	case FormatDocx:
		return docxText(path)
	case FormatINI:
		return iniText(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
