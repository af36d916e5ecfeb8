package sqlite

import (
	"context"
	"database/sql"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// ConnectionRepository stores connection targets in the metastore.
type ConnectionRepository struct {
	db *sql.DB
}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

func (r *ConnectionRepository) Create(ctx context.Context, target *models.ConnectionTarget) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO connections (name, host, port, db_name, username, password, hosts, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		target.Name, target.Host, target.Port, target.Database,
		target.Username, target.Password, target.Hosts, target.IsActive,
		target.CreatedAt, target.UpdatedAt)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to create connection")
	}
	return res.LastInsertId()
}

func (r *ConnectionRepository) Get(ctx context.Context, id int64) (*models.ConnectionTarget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, host, port, db_name, username, password, hosts, is_active, created_at, updated_at
		FROM connections WHERE id = ?`, id)

	target, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrConnectionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to load connection")
	}
	return target, nil
}

func (r *ConnectionRepository) List(ctx context.Context) ([]*models.ConnectionTarget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, host, port, db_name, username, password, hosts, is_active, created_at, updated_at
		FROM connections ORDER BY name, id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to list connections")
	}
	defer rows.Close()

	var targets []*models.ConnectionTarget
	for rows.Next() {
		target, err := scanConnection(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to scan connection")
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// Delete removes the target; executions and versions cascade via foreign keys.
func (r *ConnectionRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to delete connection")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrConnectionNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnection(row rowScanner) (*models.ConnectionTarget, error) {
	var t models.ConnectionTarget
	err := row.Scan(&t.ID, &t.Name, &t.Host, &t.Port, &t.Database,
		&t.Username, &t.Password, &t.Hosts, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var _ repositories.ConnectionRepository = (*ConnectionRepository)(nil)
