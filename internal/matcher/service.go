// Package matcher implements two-stage retrieval: a free-form job
// description is matched to the single nearest stored posting, and the
// posting's own embedding is then used to rank candidate résumés.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/michelelt/job-matcher/internal/embedding"
	"github.com/michelelt/job-matcher/internal/store"
)

// ErrEmptyDescription is returned when the query text is empty or
// whitespace only. Callers usually treat it as a no-op.
var ErrEmptyDescription = errors.New("description is empty")

const (
	// DefaultTopResumes is how many résumés a match returns unless
	// configured otherwise.
	DefaultTopResumes = 5

	unknownTitle     = "Unknown title"
	unknownCandidate = "Unknown candidate"
)

// Posting is the nearest stored job posting for a query.
type Posting struct {
	ID          string
	Title       string
	Description string
	Distance    float64
}

// RankedResume is one résumé in the ranked result list.
type RankedResume struct {
	Rank     int
	Source   string
	Name     string
	Distance float64
}

// Match is the outcome of a single query. Posting is nil when the
// postings collection holds no records.
type Match struct {
	Posting *Posting
	Resumes []RankedResume
}

// postingMeta is the subset of posting metadata the matcher cares
// about. Remaining CSV columns stay in the store untouched.
type postingMeta struct {
	JobTitle string `mapstructure:"job_title"`
	Name     string `mapstructure:"name"`
	Source   string `mapstructure:"source"`
}

// Service runs matches against a pair of collections. It keeps no
// per-query state and is safe for concurrent use.
type Service struct {
	embedder          embedding.Embedder
	store             *store.Store
	postsCollection   string
	resumesCollection string
	topResumes        int
	logger            *zap.Logger
}

// New returns a Service. topResumes <= 0 falls back to
// DefaultTopResumes.
func New(embedder embedding.Embedder, st *store.Store, postsCollection, resumesCollection string, topResumes int, logger *zap.Logger) *Service {
	if topResumes <= 0 {
		topResumes = DefaultTopResumes
	}

	return &Service{
		embedder:          embedder,
		store:             st,
		postsCollection:   postsCollection,
		resumesCollection: resumesCollection,
		topResumes:        topResumes,
		logger:            logger,
	}
}

// Match embeds the description, finds the nearest posting and ranks
// résumés by proximity to that posting's stored embedding.
func (s *Service) Match(ctx context.Context, description string) (*Match, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}

	vector, err := s.embedder.Embed(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("embedding description: %w", err)
	}

	postings, err := s.store.Query(ctx, s.postsCollection, vector, 1)
	if err != nil && !errors.Is(err, store.ErrCollectionNotFound) {
		return nil, fmt.Errorf("querying postings: %w", err)
	}

	if len(postings) == 0 {
		s.logger.Warn("no job postings stored, nothing to match against",
			zap.String("collection", s.postsCollection),
		)

		return &Match{}, nil
	}

	nearest := postings[0]

	var meta postingMeta
	if err := mapstructure.Decode(nearest.Metadata, &meta); err != nil {
		s.logger.Warn("can not decode posting metadata",
			zap.String("id", nearest.ID),
			zap.Error(err),
		)
	}

	title := meta.JobTitle
	if title == "" {
		title = unknownTitle
	}

	match := &Match{
		Posting: &Posting{
			ID:          nearest.ID,
			Title:       title,
			Description: nearest.Document,
			Distance:    nearest.Distance,
		},
	}

	s.logger.Info("nearest posting found",
		zap.String("id", nearest.ID),
		zap.String("title", title),
		zap.Float64("distance", nearest.Distance),
	)

	// Rank résumés against the posting's stored embedding rather than
	// the raw query vector, so results stay stable for a given posting.
	resumes, err := s.store.Query(ctx, s.resumesCollection, nearest.Embedding, s.topResumes)
	if err != nil && !errors.Is(err, store.ErrCollectionNotFound) {
		return nil, fmt.Errorf("querying resumes: %w", err)
	}

	for i, r := range resumes {
		match.Resumes = append(match.Resumes, rankResume(i+1, r))
	}

	return match, nil
}

func rankResume(rank int, r store.Result) RankedResume {
	var meta postingMeta
	if err := mapstructure.Decode(r.Metadata, &meta); err != nil {
		meta = postingMeta{}
	}

	// Résumé records carry no name metadata today, but honor it if an
	// ingester starts writing one.
	name := meta.Name
	if name == "" {
		name = unknownCandidate
	}

	source := meta.Source
	if source == "" {
		source = r.Document
	}

	return RankedResume{
		Rank:     rank,
		Source:   source,
		Name:     name,
		Distance: r.Distance,
	}
}
