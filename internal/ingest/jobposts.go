package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// JobPostsOptions configures one job-postings ingestion run.
type JobPostsOptions struct {
	// CSVPath is the tabular dataset to read.
	CSVPath string
	// Collection is the target collection name.
	Collection string
	// IDColumn is the dataset's unique-id column, after header normalization.
	IDColumn string
	// TextColumn is the free-text description column, after normalization.
	TextColumn string
	// Overwrite rebuilds the collection from scratch instead of appending.
	Overwrite bool
}

// Default CSV columns, matching the public job-postings dataset layout.
const (
	DefaultIDColumn   = "uniq_id"
	DefaultTextColumn = "job_description"
)

// IngestJobPosts reads the postings CSV, cleans and embeds each description
// and upserts the records in batches. The id column provides the record id;
// every other column becomes metadata. Rows already in the collection are
// skipped, malformed rows are logged and counted, and neither aborts the run.
func (p *Pipeline) IngestJobPosts(ctx context.Context, opts JobPostsOptions) (*Summary, error) {
	if opts.IDColumn == "" {
		opts.IDColumn = DefaultIDColumn
	}
	if opts.TextColumn == "" {
		opts.TextColumn = DefaultTextColumn
	}

	existing, err := p.prepareCollection(ctx, opts.Collection, opts.Overwrite)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(opts.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("opening postings csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	columns := make([]string, len(header))
	idIdx, textIdx := -1, -1
	for i, name := range header {
		columns[i] = normalizeHeader(name)
		switch columns[i] {
		case opts.IDColumn:
			idIdx = i
		case opts.TextColumn:
			textIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("csv has no %q column", opts.IDColumn)
	}
	if textIdx < 0 {
		return nil, fmt.Errorf("csv has no %q column", opts.TextColumn)
	}

	summary := &Summary{}
	b := p.newBatcher(opts.Collection, summary)

	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.logger.Warn("skipping malformed csv row",
				zap.Int("row", row),
				zap.Error(err),
			)
			summary.Failed++
			continue
		}

		id := record[idIdx]
		if id == "" {
			p.logger.Warn("skipping csv row without an id", zap.Int("row", row))
			summary.Failed++
			continue
		}

		if _, ok := existing[id]; ok {
			summary.Skipped++
			continue
		}

		text := CleanDescription(record[textIdx])

		vector, err := p.embedder.Embed(ctx, text)
		if err != nil {
			p.logger.Warn("failed to embed job description",
				zap.Int("row", row),
				zap.String("id", id),
				zap.Error(err),
			)
			summary.Failed++
			continue
		}

		metadata := make(map[string]any, len(columns)-2)
		for i, cell := range record {
			if i == idIdx || i == textIdx || i >= len(columns) {
				continue
			}
			metadata[columns[i]] = metaValue(cell)
		}

		b.add(ctx, id, vector, metadata, text)
		existing[id] = struct{}{}
	}

	b.flush(ctx)
	p.logSummary("job_posts", opts.Collection, summary)

	return summary, nil
}
