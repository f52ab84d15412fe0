package detectionlog

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/listinglab/clover/pkg/database"
	"github.com/listinglab/clover/pkg/models"
	"github.com/listinglab/clover/pkg/tracing"
)

// Repository handles detection log persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new detection log repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create writes one log entry for a detection run
func (r *Repository) Create(ctx context.Context, entry *models.DetectionLogEntry) error {
	ctx, span := tracing.StartSpan(ctx, "detectionlog.Repository.Create")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("detection_log")
	sb.Cols("id", "action_type", "actor_id", "affected_record_ids", "details", "created_at")
	sb.Values(entry.ID, entry.ActionType, entry.ActorID, entry.AffectedRecordIDs, entry.Details, entry.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create detection log entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create detection log entry")
	}

	return nil
}

// List retrieves log entries, newest first
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.DetectionLogEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "detectionlog.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "action_type", "actor_id", "affected_record_ids", "details", "created_at")
	sb.From("detection_log")
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var entries []models.DetectionLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list detection log entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list detection log entries")
	}

	return entries, nil
}
