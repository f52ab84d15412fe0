package listing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/listinglab/clover/pkg/database"
	"github.com/listinglab/clover/pkg/models"
	"github.com/listinglab/clover/pkg/tracing"
)

var listingColumns = []string{
	"id", "owner_id", "title", "description", "street", "house_number", "city",
	"zip_code", "rent", "size", "bedrooms", "bathrooms", "image_urls",
	"embedding", "text_fingerprint", "created_at", "updated_at",
}

// Repository handles listing persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new listing repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a listing by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns...)
	sb.From("listings")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("listing %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get listing")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get listing")
	}

	return &listing, nil
}

// ListAll retrieves every listing, most recently updated first
func (r *Repository) ListAll(ctx context.Context) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns...)
	sb.From("listings")
	sb.OrderBy("updated_at DESC")

	query, args := sb.Build()
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list listings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list listings")
	}

	return listings, nil
}

// Candidates retrieves listings owned by anyone but excludeOwnerID, most
// recently updated first, capped at limit.
func (r *Repository) Candidates(ctx context.Context, excludeOwnerID string, limit int) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Candidates")
	defer span.End()

	if limit < 1 {
		limit = 500
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns...)
	sb.From("listings")
	sb.Where(sb.NotEqual("owner_id", excludeOwnerID))
	sb.OrderBy("updated_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list candidate listings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list candidate listings")
	}

	return listings, nil
}

// UpdateEmbedding stores the computed embedding and its text fingerprint
func (r *Repository) UpdateEmbedding(ctx context.Context, recordID string, embedding models.Vector, fingerprint string) error {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.UpdateEmbedding")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("listings")
	// updated_at is deliberately left alone: the embedding is a cache column
	// and must not make the listing look recently edited.
	ub.Set(
		ub.Assign("embedding", embedding),
		ub.Assign("text_fingerprint", fingerprint),
	)
	ub.Where(ub.Equal("id", recordID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"record_id": recordID}).Error("Failed to update listing embedding")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update listing embedding")
	}

	return nil
}
