package sqlite

import (
	"context"
	"database/sql"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// SchemaVersionRepository stores schema versions scoped by (connection, table).
type SchemaVersionRepository struct {
	db *sql.DB
}

// NewSchemaVersionRepository creates a new schema version repository.
func NewSchemaVersionRepository(db *sql.DB) *SchemaVersionRepository {
	return &SchemaVersionRepository{db: db}
}

const versionColumns = `id, connection_id, table_name, version, definition, checksum,
	created_at, executed_by, change_summary, ddl_type, execution_id`

func (r *SchemaVersionRepository) Create(ctx context.Context, v *models.SchemaVersion) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO schema_versions (
			connection_id, table_name, version, definition, checksum,
			created_at, executed_by, change_summary, ddl_type, execution_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ConnectionID, v.TableName, v.Version, v.Definition, v.Checksum,
		v.CreatedAt, v.ExecutedBy, v.ChangeSummary, v.DDLType, v.ExecutionID)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to create schema version")
	}
	return res.LastInsertId()
}

func (r *SchemaVersionRepository) ByID(ctx context.Context, id int64) (*models.SchemaVersion, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM schema_versions WHERE id = ?`, id)
	return r.scanOne(row)
}

func (r *SchemaVersionRepository) Latest(ctx context.Context, connectionID int64, table string) (*models.SchemaVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+` FROM schema_versions
		WHERE connection_id = ? AND table_name = ?
		ORDER BY version DESC LIMIT 1`, connectionID, table)
	return r.scanOne(row)
}

func (r *SchemaVersionRepository) ByNumber(ctx context.Context, connectionID int64, table string, version int) (*models.SchemaVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+` FROM schema_versions
		WHERE connection_id = ? AND table_name = ? AND version = ?`,
		connectionID, table, version)
	return r.scanOne(row)
}

func (r *SchemaVersionRepository) Previous(ctx context.Context, connectionID int64, table string, version int) (*models.SchemaVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+` FROM schema_versions
		WHERE connection_id = ? AND table_name = ? AND version < ?
		ORDER BY version DESC LIMIT 1`, connectionID, table, version)
	return r.scanOne(row)
}

func (r *SchemaVersionRepository) List(ctx context.Context, connectionID int64, table string) ([]*models.SchemaVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM schema_versions WHERE connection_id = ?`
	args := []interface{}{connectionID}
	if table != "" {
		query += ` AND table_name = ?`
		args = append(args, table)
	}
	query += ` ORDER BY table_name, version DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to list schema versions")
	}
	defer rows.Close()

	var versions []*models.SchemaVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to scan schema version")
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *SchemaVersionRepository) Tables(ctx context.Context, connectionID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT table_name FROM schema_versions
		WHERE connection_id = ? ORDER BY table_name`, connectionID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to list versioned tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (r *SchemaVersionRepository) scanOne(row *sql.Row) (*models.SchemaVersion, error) {
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrVersionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to load schema version")
	}
	return v, nil
}

func scanVersion(row rowScanner) (*models.SchemaVersion, error) {
	var v models.SchemaVersion
	err := row.Scan(&v.ID, &v.ConnectionID, &v.TableName, &v.Version,
		&v.Definition, &v.Checksum, &v.CreatedAt, &v.ExecutedBy,
		&v.ChangeSummary, &v.DDLType, &v.ExecutionID)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

var _ repositories.SchemaVersionRepository = (*SchemaVersionRepository)(nil)
