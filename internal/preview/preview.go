// Package preview renders short terminal previews of matched résumé
// files so a recruiter can eyeball a candidate without opening anything.
package preview

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// Register the decoders for the image formats résumés come in.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	"github.com/michelelt/job-matcher/internal/extract"
	"github.com/michelelt/job-matcher/internal/logger"
)

// Kind describes how a file can be previewed.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindText
)

// DefaultMaxTextLen bounds how much extracted text a preview shows.
const DefaultMaxTextLen = 1000

// Classify reports the preview kind for a path based on its extension.
func Classify(path string) Kind {
	switch extract.FormatFor(filepath.Ext(path)) {
	case extract.FormatImage:
		return KindImage
	case extract.FormatDocx, extract.FormatINI:
		return KindText
	default:
		return KindUnsupported
	}
}

// Renderer turns résumé files into printable previews.
type Renderer struct {
	extractor  *extract.Extractor
	maxTextLen int
	logger     *zap.Logger
}

// New creates a Renderer. maxTextLen <= 0 falls back to DefaultMaxTextLen.
func New(extractor *extract.Extractor, maxTextLen int, logger *zap.Logger) *Renderer {
	if maxTextLen <= 0 {
		maxTextLen = DefaultMaxTextLen
	}

	return &Renderer{
		extractor:  extractor,
		maxTextLen: maxTextLen,
		logger:     logger,
	}
}

// Render returns a printable preview for the file at path. Images are
// summarized by their dimensions, text formats show their (truncated)
// contents, anything else gets a short notice.
func (r *Renderer) Render(ctx context.Context, path string) (string, error) {
	switch Classify(path) {
	case KindImage:
		return r.renderImage(path)
	case KindText:
		return r.renderText(ctx, path)
	default:
		return fmt.Sprintf("no preview available for %s", filepath.Base(path)), nil
	}
}

func (r *Renderer) renderImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("decoding image %s: %w", filepath.Base(path), err)
	}

	return fmt.Sprintf("[%s image, %dx%d px] %s", format, cfg.Width, cfg.Height, filepath.Base(path)), nil
}

func (r *Renderer) renderText(ctx context.Context, path string) (string, error) {
	var (
		text string
		err  error
	)

	// INI files are already readable, show them verbatim. DOCX goes
	// through the extractor to strip the XML.
	if extract.FormatFor(filepath.Ext(path)) == extract.FormatINI {
		var raw []byte
		raw, err = os.ReadFile(path)
		text = string(raw)
	} else {
		text, err = r.extractor.Extract(ctx, path)
	}

	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Sprintf("%s is empty", filepath.Base(path)), nil
	}

	return logger.TruncateForLog(text, r.maxTextLen), nil
}
