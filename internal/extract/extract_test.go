package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
)

type fakeOCR struct {
	availableErr error
	texts        []string
	calls        int
}

func (f *fakeOCR) Available() error { return f.availableErr }

func (f *fakeOCR) Recognize(context.Context, string) (string, error) {
	return f.next(), nil
}

func (f *fakeOCR) RecognizeImage(context.Context, image.Image) (string, error) {
	return f.next(), nil
}

func (f *fakeOCR) next() string {
	if len(f.texts) == 0 {
		return ""
	}
	text := f.texts[f.calls%len(f.texts)]
	f.calls++
	return text
}

func TestFormatFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext    string
		expect Format
	}{
		{"jpg", FormatImage},
		{"JPEG", FormatImage},
		{".png", FormatImage},
		{"webp", FormatImage},
		{".GIF", FormatImage},
		{"docx", FormatDocx},
		{"ini", FormatINI},
		{"xyz", FormatUnsupported},
		{"", FormatUnsupported},
	}

	for _, tt := range tests {
		if got := FormatFor(tt.ext); got != tt.expect {
			t.Fatalf("FormatFor(%q) = %v, expected %v", tt.ext, got, tt.expect)
		}
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	t.Parallel()

	e := New(&fakeOCR{})
	_, err := e.Extract(context.Background(), "resume.xyz")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractMissingFile(t *testing.T) {
	t.Parallel()

	e := New(&fakeOCR{})
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExtractOCRUnavailable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scan.png")
	if err := os.WriteFile(path, []byte("not really a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := New(&fakeOCR{availableErr: errors.New("tesseract not in PATH")})
	_, err := e.Extract(context.Background(), path)
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestExtractImage(t *testing.T) {
	t.Parallel()

	// Still frames all go through the OCR engine regardless of codec.
	for _, name := range []string{"scan.jpg", "scan.png", "scan.webp"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), name)
			if err := os.WriteFile(path, []byte("raster payload"), 0o644); err != nil {
				t.Fatal(err)
			}

			e := New(&fakeOCR{texts: []string{"senior gopher"}})
			text, err := e.Extract(context.Background(), path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if text != "senior gopher" {
				t.Fatalf("expected OCR text, got %q", text)
			}
		})
	}
}

func writeGIF(t *testing.T, path string, frames int) {
	t.Helper()

	palette := color.Palette{color.White, color.Black}
	g := &gif.GIF{}
	for i := 0; i < frames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, 8, 8), palette)
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, 10)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("encoding gif: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractGIFDeduplicatesIdenticalFrames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "anim.gif")
	writeGIF(t, path, 4)

	// Every frame recognizes to the same text, so the result must equal the
	// single-frame output instead of repeating it four times.
	e := New(&fakeOCR{texts: []string{"objective: write go"}})
	text, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "objective: write go" {
		t.Fatalf("expected deduplicated frame text, got %q", text)
	}
}

func TestExtractGIFJoinsDistinctFrames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "anim.gif")
	writeGIF(t, path, 3)

	e := New(&fakeOCR{texts: []string{"page one", "", "page two"}})
	text, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "page one\n\npage two" {
		t.Fatalf("expected frames joined with blank line, got %q", text)
	}
}

func writeDocx(t *testing.T, path string, paragraphs []string) {
	t.Helper()

	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(fmt.Sprintf(`<w:p><w:r><w:t>%s</w:t></w:r></w:p>`, p))
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(body.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractDocx(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "resume.docx")
	writeDocx(t, path, []string{"Jane Doe", "", "10 years of Go"})

	e := New(&fakeOCR{})
	text, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Jane Doe\n10 years of Go" {
		t.Fatalf("expected non-empty paragraphs joined by newline, got %q", text)
	}
}

func TestExtractINI(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "resume.ini")
	content := "[profile]\nname = Jane\nrole = backend\n\n[skills]\nlang = go\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	e := New(&fakeOCR{})
	text, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expect := "[profile]\nname = Jane\nrole = backend\n\n[skills]\nlang = go"
	if text != expect {
		t.Fatalf("expected %q, got %q", expect, text)
	}
}
