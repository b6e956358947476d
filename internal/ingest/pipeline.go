// Package ingest populates the vector collections from raw data sources:
// job postings out of a CSV export and résumés out of a directory tree.
//
// Both corpora share one shape: walk the source, skip records whose ids are
// already present, embed the extracted text and flush accumulated records in
// batches. A single bad record never aborts a run; it is logged, counted and
// left behind.
package ingest

import (
	"context"

	"github.com/michelelt/job-matcher/internal/embedding"
	"github.com/michelelt/job-matcher/internal/extract"
	"github.com/michelelt/job-matcher/internal/store"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of pending records held in memory before a
// flush. It is the only backpressure knob the pipeline has.
const DefaultBatchSize = 1000

// Pipeline ingests records into vector collections. Construct it once with
// the shared store, embedder and extractor handles.
type Pipeline struct {
	store     *store.Store
	embedder  embedding.Embedder
	extractor *extract.Extractor
	batchSize int
	logger    *zap.Logger
}

// New creates an ingestion pipeline. A non-positive batchSize falls back to
// DefaultBatchSize.
func New(s *store.Store, e embedding.Embedder, x *extract.Extractor, batchSize int, logger *zap.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Pipeline{
		store:     s,
		embedder:  e,
		extractor: x,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Summary aggregates the per-record outcomes of one ingestion run.
type Summary struct {
	Inserted       int
	Skipped        int
	Failed         int
	FlushedBatches int
	FailedBatches  int
}

// prepareCollection applies the overwrite semantics and returns the ids
// already present, so repeated runs over an unchanged source are idempotent.
func (p *Pipeline) prepareCollection(ctx context.Context, name string, overwrite bool) (map[string]struct{}, error) {
	if overwrite {
		if err := p.store.DeleteCollection(ctx, name); err != nil {
			return nil, err
		}
	}

	if err := p.store.GetOrCreateCollection(ctx, name); err != nil {
		return nil, err
	}

	return p.store.ExistingIDs(ctx, name)
}

// batcher accumulates records and flushes them through the store gateway.
type batcher struct {
	store      *store.Store
	collection string
	size       int
	summary    *Summary
	logger     *zap.Logger

	ids        []string
	embeddings [][]float32
	metadatas  []map[string]any
	documents  []string
}

func (p *Pipeline) newBatcher(collection string, summary *Summary) *batcher {
	return &batcher{
		store:      p.store,
		collection: collection,
		size:       p.batchSize,
		summary:    summary,
		logger:     p.logger,
	}
}

func (b *batcher) add(ctx context.Context, id string, embedding []float32, metadata map[string]any, document string) {
	b.ids = append(b.ids, id)
	b.embeddings = append(b.embeddings, embedding)
	b.metadatas = append(b.metadatas, metadata)
	b.documents = append(b.documents, document)

	if len(b.ids) >= b.size {
		b.flush(ctx)
	}
}

// flush writes the pending batch. A failed flush is logged and counted, the
// pending records are dropped and the run continues: delivery is at most
// once per batch, with no automatic retry.
func (b *batcher) flush(ctx context.Context) {
	if len(b.ids) == 0 {
		return
	}

	err := b.store.UpsertBatch(ctx, b.collection, b.ids, b.embeddings, b.metadatas, b.documents)
	if err != nil {
		b.logger.Error("batch flush failed",
			zap.String("collection", b.collection),
			zap.Int("records", len(b.ids)),
			zap.String("first_id", b.ids[0]),
			zap.Error(err),
		)
		b.summary.FailedBatches++
		b.summary.Failed += len(b.ids)
	} else {
		b.summary.FlushedBatches++
		b.summary.Inserted += len(b.ids)
	}

	b.ids = b.ids[:0]
	b.embeddings = b.embeddings[:0]
	b.metadatas = b.metadatas[:0]
	b.documents = b.documents[:0]
}

func (p *Pipeline) logSummary(corpus, collection string, s *Summary) {
	p.logger.Info("ingestion finished",
		zap.String("corpus", corpus),
		zap.String("collection", collection),
		zap.Int("inserted", s.Inserted),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
		zap.Int("flushed_batches", s.FlushedBatches),
		zap.Int("failed_batches", s.FailedBatches),
	)
}
