package ingest

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, rows [][]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "postings.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestJobPostsCleansAndStores(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(t, 10)
	ctx := context.Background()

	csvPath := writeCSV(t, [][]string{
		{"Uniq Id", "Job Title", "Job Description", "Category"},
		{"job1", "Backend Engineer", "<p>Build APIs</p>", "engineering"},
	})

	summary, err := p.IngestJobPosts(ctx, JobPostsOptions{
		CSVPath:    csvPath,
		Collection: "job_posts",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Inserted != 1 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	queryVector, err := (&fakeEmbedder{}).Embed(ctx, "build apis")
	if err != nil {
		t.Fatal(err)
	}
	results, err := s.Query(ctx, "job_posts", queryVector, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.ID != "job1" {
		t.Fatalf("unexpected id: %q", r.ID)
	}
	if r.Document != "build apis" {
		t.Fatalf("expected cleaned text to be stored, got %q", r.Document)
	}
	if r.Metadata["job_title"] != "Backend Engineer" {
		t.Fatalf("expected raw title in metadata, got %v", r.Metadata["job_title"])
	}
	if r.Metadata["category"] != "engineering" {
		t.Fatalf("expected remaining columns in metadata, got %v", r.Metadata)
	}
	if _, ok := r.Metadata["uniq_id"]; ok {
		t.Fatal("id column must not leak into metadata")
	}
	if _, ok := r.Metadata["job_description"]; ok {
		t.Fatal("text column must not leak into metadata")
	}
}

func TestIngestJobPostsIsIdempotent(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(t, 10)
	ctx := context.Background()

	csvPath := writeCSV(t, [][]string{
		{"uniq_id", "job_title", "job_description"},
		{"job1", "Backend Engineer", "Build APIs"},
		{"job2", "SRE", "Keep it running"},
	})

	opts := JobPostsOptions{CSVPath: csvPath, Collection: "job_posts"}

	if _, err := p.IngestJobPosts(ctx, opts); err != nil {
		t.Fatal(err)
	}
	first, err := s.Count(ctx, "job_posts")
	if err != nil {
		t.Fatal(err)
	}

	second, err := p.IngestJobPosts(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if second.Inserted != 0 || second.Skipped != 2 {
		t.Fatalf("expected second run to skip everything, got %+v", second)
	}

	count, err := s.Count(ctx, "job_posts")
	if err != nil {
		t.Fatal(err)
	}
	if count != first {
		t.Fatalf("collection grew on second run: %d != %d", count, first)
	}
}

func TestIngestJobPostsSkipsPrePopulatedID(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(t, 10)
	ctx := context.Background()

	if err := s.CreateCollection(ctx, "job_posts"); err != nil {
		t.Fatal(err)
	}
	err := s.UpsertBatch(ctx, "job_posts",
		[]string{"42"}, [][]float32{{1, 2, 3, 4}}, nil, []string{"already here"})
	if err != nil {
		t.Fatal(err)
	}

	csvPath := writeCSV(t, [][]string{
		{"uniq_id", "job_title", "job_description"},
		{"42", "Imposter", "should not replace"},
	})

	summary, err := p.IngestJobPosts(ctx, JobPostsOptions{CSVPath: csvPath, Collection: "job_posts"})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Inserted != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	count, err := s.Count(ctx, "job_posts")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("record count changed: %d", count)
	}
}

func TestIngestJobPostsOverwriteRebuilds(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(t, 10)
	ctx := context.Background()

	if err := s.CreateCollection(ctx, "job_posts"); err != nil {
		t.Fatal(err)
	}
	err := s.UpsertBatch(ctx, "job_posts",
		[]string{"stale"}, [][]float32{{9, 9, 9, 9}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	csvPath := writeCSV(t, [][]string{
		{"uniq_id", "job_title", "job_description"},
		{"job1", "Backend Engineer", "Build APIs"},
	})

	if _, err := p.IngestJobPosts(ctx, JobPostsOptions{
		CSVPath:    csvPath,
		Collection: "job_posts",
		Overwrite:  true,
	}); err != nil {
		t.Fatal(err)
	}

	ids, err := s.ExistingIDs(ctx, "job_posts")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ids["stale"]; ok {
		t.Fatal("overwrite must drop pre-existing records")
	}
	if _, ok := ids["job1"]; !ok {
		t.Fatal("overwrite must re-ingest the source")
	}
}

func TestIngestJobPostsToleratesBadRows(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(t, 10)
	ctx := context.Background()

	csvPath := writeCSV(t, [][]string{
		{"uniq_id", "job_title", "job_description"},
		{"", "No ID", "row without an id"},
		{"job2", "Good", "a fine row"},
	})

	summary, err := p.IngestJobPosts(ctx, JobPostsOptions{CSVPath: csvPath, Collection: "job_posts"})
	if err != nil {
		t.Fatalf("bad rows must not abort the run: %v", err)
	}
	if summary.Failed != 1 || summary.Inserted != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	count, err := s.Count(ctx, "job_posts")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}
}

func TestIngestJobPostsMissingColumn(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(t, 10)
	ctx := context.Background()

	csvPath := writeCSV(t, [][]string{
		{"some_column", "job_description"},
		{"x", "y"},
	})

	if _, err := p.IngestJobPosts(ctx, JobPostsOptions{CSVPath: csvPath, Collection: "job_posts"}); err == nil {
		t.Fatal("expected an error for a csv without the id column")
	}
}

func TestIngestJobPostsBatchFlushing(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(t, 2)
	ctx := context.Background()

	csvPath := writeCSV(t, [][]string{
		{"uniq_id", "job_title", "job_description"},
		{"a", "t", "one"},
		{"b", "t", "two"},
		{"c", "t", "three"},
	})

	summary, err := p.IngestJobPosts(ctx, JobPostsOptions{CSVPath: csvPath, Collection: "job_posts"})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Inserted != 3 {
		t.Fatalf("expected 3 inserts, got %d", summary.Inserted)
	}
	// Two full batches of 2 and 1, flushed at the size limit and at the end.
	if summary.FlushedBatches != 2 {
		t.Fatalf("expected 2 flushed batches, got %d", summary.FlushedBatches)
	}

	count, err := s.Count(ctx, "job_posts")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected 3 records, got %d", count)
	}
}
