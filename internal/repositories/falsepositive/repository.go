package falsepositive

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/listinglab/clover/pkg/database"
	"github.com/listinglab/clover/pkg/models"
	"github.com/listinglab/clover/pkg/tracing"
)

// Repository handles false positive pair persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new false positive repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create stores a reviewed-distinct pair. Inserting the same pair twice is a
// no-op.
func (r *Repository) Create(ctx context.Context, pair models.FalsePositivePair) error {
	ctx, span := tracing.StartSpan(ctx, "falsepositive.Repository.Create")
	defer span.End()

	// normalize pair order regardless of how the caller built it
	pair = models.NewFalsePositivePair(pair.RecordAID, pair.RecordBID, pair.CreatedBy)
	pair.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("false_positives")
	sb.Cols("record_a_id", "record_b_id", "created_by", "created_at")
	sb.Values(pair.RecordAID, pair.RecordBID, pair.CreatedBy, pair.CreatedAt)

	query, args := sb.Build()
	query += " ON CONFLICT (record_a_id, record_b_id) DO NOTHING"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create false positive pair")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create false positive pair")
	}

	return nil
}

// ListForRecord retrieves all pairs involving the given record
func (r *Repository) ListForRecord(ctx context.Context, recordID string) ([]models.FalsePositivePair, error) {
	ctx, span := tracing.StartSpan(ctx, "falsepositive.Repository.ListForRecord")
	defer span.End()

	query := `
		SELECT record_a_id, record_b_id, created_by, created_at
		FROM false_positives
		WHERE record_a_id = $1 OR record_b_id = $1
	`

	var pairs []models.FalsePositivePair
	if err := r.db.SelectContext(ctx, &pairs, query, recordID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list false positive pairs for record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list false positive pairs")
	}

	return pairs, nil
}

// ListAll retrieves every false positive pair
func (r *Repository) ListAll(ctx context.Context) ([]models.FalsePositivePair, error) {
	ctx, span := tracing.StartSpan(ctx, "falsepositive.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("record_a_id", "record_b_id", "created_by", "created_at")
	sb.From("false_positives")

	query, args := sb.Build()
	var pairs []models.FalsePositivePair
	if err := r.db.SelectContext(ctx, &pairs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list false positive pairs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list false positive pairs")
	}

	return pairs, nil
}
