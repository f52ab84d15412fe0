package imagehash

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	gocache "github.com/patrickmn/go-cache"

	"github.com/listinglab/clover/pkg/httpclient"
	"github.com/listinglab/clover/pkg/metrics"
	"github.com/listinglab/clover/pkg/models"
	"github.com/listinglab/clover/pkg/tracing"
)

// Fetcher retrieves image bytes. *httpclient.Client satisfies this.
type Fetcher interface {
	Get(ctx context.Context, url string) (*httpclient.Response, error)
}

// HashStore persists computed hashes keyed by (record id, url) so repeated
// scans never re-fetch an image that was hashed before. Get returns nil when
// no hash is cached for the key.
type HashStore interface {
	Get(ctx context.Context, recordID, url string) (*models.ImageHash, error)
	Upsert(ctx context.Context, hash models.ImageHash) error
}

// Service computes and caches perceptual hashes for listing images. A TTL
// memory cache fronts the persistent store to keep full scans off the
// database for hot records.
type Service struct {
	fetcher Fetcher
	decoder Decoder
	store   HashStore
	memory  *gocache.Cache
	logger  ectologger.Logger
}

// NewService creates an image hashing service
func NewService(fetcher Fetcher, decoder Decoder, store HashStore, cacheTTL time.Duration, logger ectologger.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &Service{
		fetcher: fetcher,
		decoder: decoder,
		store:   store,
		memory:  gocache.New(cacheTTL, 2*cacheTTL),
		logger:  logger,
	}
}

// HashesFor returns the perceptual hashes of a record's images. Unreachable
// urls, non-image responses and undecodable payloads are skipped with a
// warning; the record's remaining images still contribute. A record with no
// usable images yields an empty slice, which scores 0 downstream.
func (s *Service) HashesFor(ctx context.Context, l *models.Listing) []uint64 {
	ctx, span := tracing.StartSpan(ctx, "imagehash.Service.HashesFor")
	defer span.End()

	hashes := make([]uint64, 0, len(l.ImageURLs))
	for _, url := range l.ImageURLs {
		hash, ok := s.hashFor(ctx, l.ID, url)
		if ok {
			hashes = append(hashes, hash)
		}
	}
	return hashes
}

// Score maximizes pairwise hash similarity over both records' images.
func (s *Service) Score(a, b []uint64) float64 {
	return BestPairSimilarity(a, b)
}

func (s *Service) hashFor(ctx context.Context, recordID, url string) (uint64, bool) {
	key := recordID + "|" + url

	if cached, ok := s.memory.Get(key); ok {
		metrics.ImageFetches.WithLabelValues("cached").Inc()
		return cached.(uint64), true
	}

	stored, err := s.store.Get(ctx, recordID, url)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"record_id": recordID,
			"url":       url,
		}).Warn("Image hash lookup failed")
	} else if stored != nil {
		s.memory.SetDefault(key, stored.Hash)
		metrics.ImageFetches.WithLabelValues("cached").Inc()
		return stored.Hash, true
	}

	hash, ok := s.computeHash(ctx, recordID, url)
	if !ok {
		return 0, false
	}

	s.memory.SetDefault(key, hash)
	return hash, true
}

func (s *Service) computeHash(ctx context.Context, recordID, url string) (uint64, bool) {
	fields := map[string]any{"record_id": recordID, "url": url}

	resp, err := s.fetcher.Get(ctx, url)
	if err != nil {
		metrics.ImageFetches.WithLabelValues("failed").Inc()
		s.logger.WithContext(ctx).WithError(err).WithFields(fields).Warn("Image fetch failed, skipping")
		return 0, false
	}
	if resp.StatusCode != 200 {
		metrics.ImageFetches.WithLabelValues("failed").Inc()
		s.logger.WithContext(ctx).WithFields(fields).Warnf("Image fetch returned status %d, skipping", resp.StatusCode)
		return 0, false
	}
	if resp.ContentType != "" && !strings.HasPrefix(resp.ContentType, "image/") {
		metrics.ImageFetches.WithLabelValues("failed").Inc()
		s.logger.WithContext(ctx).WithFields(fields).Warnf("Unexpected content type %q, skipping", resp.ContentType)
		return 0, false
	}

	grid, err := s.decoder.Decode(resp.Body)
	if err != nil {
		metrics.ImageFetches.WithLabelValues("failed").Inc()
		s.logger.WithContext(ctx).WithError(err).WithFields(fields).Warn("Image decode failed, skipping")
		return 0, false
	}
	metrics.ImageFetches.WithLabelValues("ok").Inc()

	hash := DifferenceHash(grid)

	// Best effort: a failed write just means the image is re-fetched on the
	// next scan.
	if err := s.store.Upsert(ctx, models.ImageHash{RecordID: recordID, URL: url, Hash: hash}); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(fields).Warn("Failed to persist image hash")
	}

	return hash, true
}
