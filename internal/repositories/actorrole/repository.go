package actorrole

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/listinglab/clover/pkg/database"
	"github.com/listinglab/clover/pkg/tracing"
)

// Repository resolves actor role grants
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new actor role repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// HasRole reports whether the actor has been granted the role
func (r *Repository) HasRole(ctx context.Context, actorID, role string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "actorrole.Repository.HasRole")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("actor_roles")
	sb.Where(
		sb.Equal("actor_id", actorID),
		sb.Equal("role", role),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check actor role")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check actor role")
	}

	return count > 0, nil
}
