package duplicategroup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/listinglab/clover/pkg/database"
	"github.com/listinglab/clover/pkg/models"
	"github.com/listinglab/clover/pkg/tracing"
)

var groupColumns = []string{
	"id", "confidence_score", "status", "notes", "created_at", "updated_at",
	"resolved_at", "resolved_by",
}

// Repository handles duplicate group persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new duplicate group repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create persists a group and its members
func (r *Repository) Create(ctx context.Context, group *models.DuplicateGroup, members []models.DuplicateGroupMember) error {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.Create")
	defer span.End()

	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.Status == "" {
		group.Status = models.DuplicateGroupStatusPending
	}
	group.CreatedAt = time.Now().UTC()
	group.UpdatedAt = group.CreatedAt

	tx, err := database.BeginTx(ctx, r.db, r.logger)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create duplicate group")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("duplicate_groups")
	sb.Cols("id", "confidence_score", "status", "notes", "created_at", "updated_at")
	sb.Values(group.ID, group.ConfidenceScore, group.Status, group.Notes, group.CreatedAt, group.UpdatedAt)

	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"group_id": group.ID}).Error("Failed to create duplicate group")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create duplicate group")
	}

	mb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	mb.InsertInto("duplicate_group_members")
	mb.Cols("group_id", "record_id", "similarity_reasons", "created_at")
	for _, m := range members {
		mb.Values(group.ID, m.RecordID, m.SimilarityReasons, group.CreatedAt)
	}

	query, args = mb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"group_id": group.ID}).Error("Failed to create duplicate group members")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create duplicate group members")
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create duplicate group")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"group_id":     group.ID,
		"member_count": len(members),
	}).Debug("Created duplicate group")
	return nil
}

// Get retrieves a group with its members
func (r *Repository) Get(ctx context.Context, id string) (*models.DuplicateGroupWithMembers, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(groupColumns...)
	sb.From("duplicate_groups")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var group models.DuplicateGroup
	if err := r.db.GetContext(ctx, &group, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("duplicate group %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get duplicate group")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get duplicate group")
	}

	members, err := r.membersFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}

	return &models.DuplicateGroupWithMembers{
		DuplicateGroup: group,
		Members:        members[id],
	}, nil
}

// ListByStatus retrieves groups in a given status, newest first
func (r *Repository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.DuplicateGroupWithMembers, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.ListByStatus")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(groupColumns...)
	sb.From("duplicate_groups")
	sb.Where(sb.Equal("status", status))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var groups []models.DuplicateGroup
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list duplicate groups")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list duplicate groups")
	}

	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	members, err := r.membersFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]models.DuplicateGroupWithMembers, 0, len(groups))
	for _, g := range groups {
		result = append(result, models.DuplicateGroupWithMembers{
			DuplicateGroup: g,
			Members:        members[g.ID],
		})
	}
	return result, nil
}

// HasPendingWithMembers reports whether a pending group already holds all of
// the given records. Used to keep group creation idempotent across scans.
func (r *Repository) HasPendingWithMembers(ctx context.Context, recordIDs []string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.HasPendingWithMembers")
	defer span.End()

	if len(recordIDs) == 0 {
		return false, nil
	}

	query := `
		SELECT COUNT(*)
		FROM duplicate_groups g
		WHERE g.status = $1
		AND NOT EXISTS (
			SELECT 1 FROM unnest($2::text[]) AS want(record_id)
			WHERE want.record_id NOT IN (
				SELECT m.record_id FROM duplicate_group_members m WHERE m.group_id = g.id
			)
		)
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, models.DuplicateGroupStatusPending, pq.Array(recordIDs)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check for existing pending group")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check for existing pending group")
	}

	return count > 0, nil
}

// UpdateStatus resolves a group (confirmed or dismissed)
func (r *Repository) UpdateStatus(ctx context.Context, id, status string, notes *string, resolvedBy string) error {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.UpdateStatus")
	defer span.End()

	now := time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("duplicate_groups")
	assignments := []string{
		ub.Assign("status", status),
		ub.Assign("updated_at", now),
		ub.Assign("resolved_at", now),
		ub.Assign("resolved_by", resolvedBy),
	}
	if notes != nil {
		assignments = append(assignments, ub.Assign("notes", *notes))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"group_id": id}).Error("Failed to update duplicate group status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update duplicate group")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("duplicate group %s not found", id))
	}

	return nil
}

func (r *Repository) membersFor(ctx context.Context, groupIDs []string) (map[string][]models.DuplicateGroupMember, error) {
	result := make(map[string][]models.DuplicateGroupMember, len(groupIDs))
	if len(groupIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT group_id, record_id, similarity_reasons, created_at
		FROM duplicate_group_members
		WHERE group_id = ANY($1)
		ORDER BY record_id
	`

	var members []models.DuplicateGroupMember
	if err := r.db.SelectContext(ctx, &members, query, pq.Array(groupIDs)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list duplicate group members")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list duplicate group members")
	}

	for _, m := range members {
		result[m.GroupID] = append(result[m.GroupID], m)
	}
	return result, nil
}
