package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/michelelt/job-matcher/internal/extract"
	"go.uber.org/zap"
)

// ResumesOptions configures one résumé ingestion run.
type ResumesOptions struct {
	// RootDir is walked recursively; every regular file is a candidate.
	RootDir string
	// Collection is the target collection name.
	Collection string
	// Overwrite rebuilds the collection from scratch instead of appending.
	Overwrite bool
}

// ResumeID derives the stable record id for a résumé file: the md5 of its
// full path. The id is content-independent, so a file moved to a new path is
// a new record, and re-running ingestion over an unchanged tree is idempotent.
func ResumeID(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// IngestResumes walks the résumé tree, extracts and embeds each file and
// upserts the records in batches. The file path is the retrievable payload,
// stored under the "source" metadata key; the document text is left empty.
// Extraction and embedding failures are logged per file and never abort the
// run.
func (p *Pipeline) IngestResumes(ctx context.Context, opts ResumesOptions) (*Summary, error) {
	existing, err := p.prepareCollection(ctx, opts.Collection, opts.Overwrite)
	if err != nil {
		return nil, err
	}

	files, census, err := collectFiles(opts.RootDir)
	if err != nil {
		return nil, fmt.Errorf("walking résumé tree: %w", err)
	}

	p.logger.Info("résumé tree scanned",
		zap.String("root", opts.RootDir),
		zap.Int("files", len(files)),
		zap.Any("extensions", census),
	)

	summary := &Summary{}
	b := p.newBatcher(opts.Collection, summary)

	for _, path := range files {
		id := ResumeID(path)
		if _, ok := existing[id]; ok {
			summary.Skipped++
			continue
		}

		text, err := p.extractor.Extract(ctx, path)
		if err != nil {
			fields := []zap.Field{zap.String("path", path), zap.Error(err)}
			if errors.Is(err, extract.ErrDependencyUnavailable) {
				fields = append(fields, zap.String("hint", "install tesseract to OCR image résumés"))
			}
			p.logger.Warn("skipping résumé", fields...)
			summary.Failed++
			continue
		}

		vector, err := p.embedder.Embed(ctx, text)
		if err != nil {
			p.logger.Warn("failed to embed résumé",
				zap.String("path", path),
				zap.Error(err),
			)
			summary.Failed++
			continue
		}

		b.add(ctx, id, vector, map[string]any{"source": path}, "")
		existing[id] = struct{}{}
	}

	b.flush(ctx)
	p.logSummary("resumes", opts.Collection, summary)

	return summary, nil
}

// collectFiles lists every regular file under root and counts files per
// extension, the census the run logs before processing starts.
func collectFiles(root string) ([]string, map[string]int, error) {
	var files []string
	census := make(map[string]int)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		files = append(files, path)
		if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
			census[ext]++
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return files, census, nil
}
