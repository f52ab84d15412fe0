// Package repositories defines the persistence interfaces consumed by the
// detection engine and HTTP handlers. Implementations live in subpackages;
// tests substitute in-memory fakes.
package repositories

import (
	"context"

	"github.com/listinglab/clover/pkg/models"
)

// ListingRepository provides read access to listings and maintains the
// embedding cache columns this service owns.
type ListingRepository interface {
	Get(ctx context.Context, id string) (*models.Listing, error)
	// ListAll returns every listing ordered by most recently updated first.
	ListAll(ctx context.Context) ([]models.Listing, error)
	// Candidates returns listings from other owners ordered by most recently
	// updated first, capped at limit.
	Candidates(ctx context.Context, excludeOwnerID string, limit int) ([]models.Listing, error)
	UpdateEmbedding(ctx context.Context, recordID string, embedding models.Vector, fingerprint string) error
}

// ImageHashRepository caches perceptual hashes by (record id, url).
type ImageHashRepository interface {
	Get(ctx context.Context, recordID, url string) (*models.ImageHash, error)
	Upsert(ctx context.Context, hash models.ImageHash) error
}

// DuplicateGroupRepository persists duplicate groups and their members.
type DuplicateGroupRepository interface {
	Create(ctx context.Context, group *models.DuplicateGroup, members []models.DuplicateGroupMember) error
	Get(ctx context.Context, id string) (*models.DuplicateGroupWithMembers, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.DuplicateGroupWithMembers, error)
	// HasPendingWithMembers reports whether a pending group already contains
	// all of the given records; used for idempotent group creation.
	HasPendingWithMembers(ctx context.Context, recordIDs []string) (bool, error)
	UpdateStatus(ctx context.Context, id, status string, notes *string, resolvedBy string) error
}

// FalsePositiveRepository persists reviewed-distinct pairs.
type FalsePositiveRepository interface {
	Create(ctx context.Context, pair models.FalsePositivePair) error
	// ListForRecord returns all pairs involving the given record.
	ListForRecord(ctx context.Context, recordID string) ([]models.FalsePositivePair, error)
	ListAll(ctx context.Context) ([]models.FalsePositivePair, error)
}

// DetectionLogRepository records one entry per detection run.
type DetectionLogRepository interface {
	Create(ctx context.Context, entry *models.DetectionLogEntry) error
	List(ctx context.Context, limit, offset int) ([]models.DetectionLogEntry, error)
}

// ActorRoleRepository resolves the roles granted to an actor.
type ActorRoleRepository interface {
	HasRole(ctx context.Context, actorID, role string) (bool, error)
}
