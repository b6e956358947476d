// Package store is a thin gateway over a persistent vector database: named
// collections of (id, embedding, metadata, document) records with batch
// upsert and nearest-neighbor query by vector distance.
//
// Persistence is a single SQLite file under the configured directory;
// embeddings are stored as JSON blobs and queries are a brute-force scan
// ordered by squared euclidean distance. Collections here stay small enough
// that an ANN index would be overkill.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"go.uber.org/zap"
)

var (
	// ErrAlreadyExists is returned by CreateCollection for a name in use.
	ErrAlreadyExists = errors.New("collection already exists")
	// ErrCollectionNotFound is returned when an operation targets a
	// collection that was never created.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDimensionMismatch is returned when a vector's length does not match
	// the collection's recorded dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

const dbFileName = "vectors.db"

// Store is a persistent vector store rooted at a filesystem path.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *zap.Logger
}

// Result is a single query hit. Distance is the squared euclidean distance
// to the query vector; results are ordered ascending, nearest first.
type Result struct {
	ID        string
	Document  string
	Metadata  map[string]any
	Embedding []float32
	Distance  float64
}

// Open creates the store directory if needed and opens the database. A
// failure here means the vector store is unusable and is fatal for callers.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		path = "./chroma_db"
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(path, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing store schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dims INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		document TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateCollection registers a new empty collection.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collections (name) VALUES (?)", name)
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}

	s.logger.Info("collection created", zap.String("collection", name))
	return nil
}

// DeleteCollection removes a collection and all its records. Deleting a
// collection that does not exist is reported, not fatal.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deleting collection %q: %w", name, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting collection %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE collection = ?", name); err != nil {
		return fmt.Errorf("deleting records of %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("deleting collection %q: %w", name, err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		s.logger.Warn("delete requested for a collection that does not exist",
			zap.String("collection", name))
		return nil
	}

	s.logger.Info("collection deleted", zap.String("collection", name))
	return nil
}

// GetOrCreateCollection makes sure the collection exists.
func (s *Store) GetOrCreateCollection(ctx context.Context, name string) error {
	err := s.CreateCollection(ctx, name)
	if errors.Is(err, ErrAlreadyExists) {
		return nil
	}
	return err
}

func (s *Store) collectionDims(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, name string,
) (int, error) {
	var dims int
	err := q.QueryRowContext(ctx, "SELECT dims FROM collections WHERE name = ?", name).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection %q: %w", name, err)
	}
	return dims, nil
}

// ExistingIDs returns the set of record ids already present in a collection.
func (s *Store) ExistingIDs(ctx context.Context, collection string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.collectionDims(ctx, s.db, collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM records WHERE collection = ?", collection)
	if err != nil {
		return nil, fmt.Errorf("listing ids of %q: %w", collection, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids[id] = struct{}{}
	}

	return ids, rows.Err()
}

// Count returns the number of records in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.collectionDims(ctx, s.db, collection); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records of %q: %w", collection, err)
	}
	return count, nil
}

// UpsertBatch writes a batch of records in a single transaction. All slices
// must have equal length; nil metadatas and documents default to empty
// placeholders per record. The batch either applies fully or not at all, so
// callers never have to reason about partial application.
func (s *Store) UpsertBatch(ctx context.Context, collection string, ids []string, embeddings [][]float32, metadatas []map[string]any, documents []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(embeddings) != len(ids) {
		return fmt.Errorf("ids and embeddings length mismatch: %d != %d", len(ids), len(embeddings))
	}
	if metadatas != nil && len(metadatas) != len(ids) {
		return fmt.Errorf("ids and metadatas length mismatch: %d != %d", len(ids), len(metadatas))
	}
	if documents != nil && len(documents) != len(ids) {
		return fmt.Errorf("ids and documents length mismatch: %d != %d", len(ids), len(documents))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting upsert transaction: %w", err)
	}
	defer tx.Rollback()

	dims, err := s.collectionDims(ctx, tx, collection)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO records (collection, id, embedding, metadata, document)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if dims == 0 {
			dims = len(embeddings[i])
		}
		if len(embeddings[i]) != dims {
			return fmt.Errorf("%w: record %q has %d dimensions, collection %q expects %d",
				ErrDimensionMismatch, id, len(embeddings[i]), collection, dims)
		}

		embeddingJSON, err := json.Marshal(embeddings[i])
		if err != nil {
			return fmt.Errorf("encoding embedding of %q: %w", id, err)
		}

		metadataJSON := []byte("{}")
		if metadatas != nil && metadatas[i] != nil {
			if metadataJSON, err = json.Marshal(metadatas[i]); err != nil {
				return fmt.Errorf("encoding metadata of %q: %w", id, err)
			}
		}

		document := ""
		if documents != nil {
			document = documents[i]
		}

		if _, err := stmt.ExecContext(ctx, collection, id, embeddingJSON, string(metadataJSON), document); err != nil {
			return fmt.Errorf("upserting record %q: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE collections SET dims = ? WHERE name = ?", dims, collection); err != nil {
		return fmt.Errorf("recording dimensionality of %q: %w", collection, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert batch: %w", err)
	}

	s.logger.Debug("batch upserted",
		zap.String("collection", collection),
		zap.Int("records", len(ids)),
	)
	return nil
}

// Query returns up to k records nearest to vector, ascending by distance.
// Asking for more records than the collection holds returns all of them; an
// empty collection yields an empty result, never an error.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dims, err := s.collectionDims(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	if dims != 0 && len(vector) != dims {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection %q expects %d",
			ErrDimensionMismatch, len(vector), collection, dims)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, embedding, metadata, document FROM records WHERE collection = ?", collection)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", collection, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r             Result
			embeddingJSON []byte
			metadataJSON  string
		)
		if err := rows.Scan(&r.ID, &embeddingJSON, &metadataJSON, &r.Document); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		if err := json.Unmarshal(embeddingJSON, &r.Embedding); err != nil {
			s.logger.Warn("skipping record with corrupted embedding",
				zap.String("collection", collection),
				zap.String("id", r.ID),
			)
			continue
		}
		if err := json.Unmarshal([]byte(metadataJSON), &r.Metadata); err != nil {
			r.Metadata = map[string]any{}
		}

		r.Distance = squaredL2(vector, r.Embedding)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading records of %q: %w", collection, err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// squaredL2 computes the squared euclidean distance between two vectors.
// Mismatched lengths only happen for collections written before the
// dimensionality check existed; they sort last.
func squaredL2(a, b []float32) float64 {
	if len(a) != len(b) {
		return maxDistance
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

const maxDistance = 1e18
