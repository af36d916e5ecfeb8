package sqlite

import (
	"context"
	"database/sql"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// TagRepository stores schema version tags.
type TagRepository struct {
	db *sql.DB
}

// NewTagRepository creates a new tag repository.
func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) Create(ctx context.Context, tag *models.SchemaVersionTag) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO schema_version_tags (schema_version_id, tag_name, memo, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		tag.SchemaVersionID, tag.TagName, tag.Memo, tag.CreatedBy, tag.CreatedAt)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to create tag")
	}
	return res.LastInsertId()
}

func (r *TagRepository) Delete(ctx context.Context, versionID, tagID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM schema_version_tags WHERE id = ? AND schema_version_id = ?`, tagID, versionID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to delete tag")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrTagNotFound
	}
	return nil
}

func (r *TagRepository) ListForVersion(ctx context.Context, versionID int64) ([]*models.SchemaVersionTag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schema_version_id, tag_name, memo, created_by, created_at
		FROM schema_version_tags WHERE schema_version_id = ?
		ORDER BY created_at, id`, versionID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to list tags")
	}
	defer rows.Close()

	var tags []*models.SchemaVersionTag
	for rows.Next() {
		var t models.SchemaVersionTag
		if err := rows.Scan(&t.ID, &t.SchemaVersionID, &t.TagName, &t.Memo, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

var _ repositories.TagRepository = (*TagRepository)(nil)
