package imagehash

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

// Repository handles image hash persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new image hash repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// hashRow maps the bigint column; the hash is reinterpreted as uint64 at the
// boundary since Postgres has no unsigned 64-bit type.
type hashRow struct {
	RecordID  string    `db:"record_id"`
	URL       string    `db:"url"`
	Hash      int64     `db:"hash"`
	CreatedAt time.Time `db:"created_at"`
}

// Get retrieves the cached hash for a (record, url) pair, nil when absent
func (r *Repository) Get(ctx context.Context, recordID, url string) (*models.ImageHash, error) {
	ctx, span := tracing.StartSpan(ctx, "imagehash.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("record_id", "url", "hash", "created_at")
	sb.From("image_hashes")
	sb.Where(
		sb.Equal("record_id", recordID),
		sb.Equal("url", url),
	)

	query, args := sb.Build()
	var row hashRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get image hash")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get image hash")
	}

	return &models.ImageHash{
		RecordID:  row.RecordID,
		URL:       row.URL,
		Hash:      uint64(row.Hash),
		CreatedAt: row.CreatedAt,
	}, nil
}

// Upsert stores a computed hash, replacing any previous hash for the key
func (r *Repository) Upsert(ctx context.Context, hash models.ImageHash) error {
	ctx, span := tracing.StartSpan(ctx, "imagehash.Repository.Upsert")
	defer span.End()

	hash.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("image_hashes")
	sb.Cols("record_id", "url", "hash", "created_at")
	sb.Values(hash.RecordID, hash.URL, int64(hash.Hash), hash.CreatedAt)

	query, args := sb.Build()
	query += " ON CONFLICT (record_id, url) DO UPDATE SET hash = EXCLUDED.hash, created_at = EXCLUDED.created_at"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"record_id": hash.RecordID,
			"url":       hash.URL,
		}).Error("Failed to upsert image hash")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert image hash")
	}

	return nil
}
