package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/Gobusters/ectologger"
	gocache "github.com/patrickmn/go-cache"

	"github.com/listinglab/clover/pkg/metrics"
	"github.com/listinglab/clover/pkg/models"
	"github.com/listinglab/clover/pkg/tracing"
)

// VectorStore persists a computed embedding on the listing row so that it is
// only ever computed once per record while the text stays unchanged.
type VectorStore interface {
	UpdateEmbedding(ctx context.Context, recordID string, embedding models.Vector, fingerprint string) error
}

// Vectors carries the embeddings derived for one record in one scan cycle.
type Vectors struct {
	Combined models.Vector
	Title    models.Vector
}

// Service resolves listing embeddings with two cache layers: the combined
// vector is persisted on the record keyed by a text fingerprint, the title
// vector lives in process memory for the duration of a scan cycle. Inference
// failures degrade to empty vectors; they never abort a comparison.
type Service struct {
	embedder Embedder
	store    VectorStore
	titles   *gocache.Cache
	logger   ectologger.Logger
}

// NewService creates an embedding service
func NewService(embedder Embedder, store VectorStore, logger ectologger.Logger) *Service {
	return &Service{
		embedder: embedder,
		store:    store,
		titles:   gocache.New(15*time.Minute, 30*time.Minute),
		logger:   logger,
	}
}

// Fingerprint returns the cache key for a listing's embedded text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// VectorsFor resolves the embeddings for a listing, reusing cached vectors
// when the underlying text has not changed. Never returns an error: a failed
// lookup yields empty vectors, which score 0 downstream.
func (s *Service) VectorsFor(ctx context.Context, l *models.Listing) Vectors {
	ctx, span := tracing.StartSpan(ctx, "embedding.Service.VectorsFor")
	defer span.End()

	return Vectors{
		Combined: s.combinedVector(ctx, l),
		Title:    s.titleVector(ctx, l),
	}
}

// Score compares two records' embeddings. When title vectors are available
// alongside the combined ones, the higher of the two similarities wins.
func (s *Service) Score(a, b Vectors) float64 {
	score := Cosine(a.Combined, b.Combined)
	if title := Cosine(a.Title, b.Title); title > score {
		score = title
	}
	return score
}

func (s *Service) combinedVector(ctx context.Context, l *models.Listing) models.Vector {
	text := l.CombinedText()
	if text == "" {
		return nil
	}

	fp := Fingerprint(text)
	if !l.Embedding.IsZero() && l.TextFingerprint != nil && *l.TextFingerprint == fp {
		return l.Embedding
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("failure").Inc()
		metrics.SignalFailures.WithLabelValues("semantic").Inc()
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"record_id": l.ID,
		}).Warn("Embedding inference failed, semantic signal degraded")
		return nil
	}
	metrics.EmbeddingRequests.WithLabelValues("success").Inc()

	// Write-back is best effort. A conflicting concurrent update just means
	// the next scan recomputes the vector.
	if err := s.store.UpdateEmbedding(ctx, l.ID, vec, fp); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"record_id": l.ID,
		}).Warn("Failed to persist embedding")
	}

	l.Embedding = vec
	l.TextFingerprint = &fp
	return vec
}

func (s *Service) titleVector(ctx context.Context, l *models.Listing) models.Vector {
	if l.Title == "" {
		return nil
	}

	if cached, ok := s.titles.Get(l.ID); ok {
		return cached.(models.Vector)
	}

	vec, err := s.embedder.Embed(ctx, l.Title)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("failure").Inc()
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"record_id": l.ID,
		}).Warn("Title embedding failed")
		return nil
	}
	metrics.EmbeddingRequests.WithLabelValues("success").Inc()

	s.titles.SetDefault(l.ID, vec)
	return vec
}
