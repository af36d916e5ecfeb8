package sqlite

import (
	"context"
	"database/sql"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// ProgressRepository stores batch progress keyed by batch id.
type ProgressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) Create(ctx context.Context, p *models.BatchProgress) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO batch_progress (
			batch_id, connection_id, total, done, failed,
			current_statement, stop_requested, finished, started_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.BatchID, p.ConnectionID, p.Total, p.Done, p.Failed,
		p.CurrentStatement, p.StopRequested, p.Finished, p.StartedAt, p.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to create batch progress")
	}
	return nil
}

func (r *ProgressRepository) Update(ctx context.Context, p *models.BatchProgress) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE batch_progress
		SET done = ?, failed = ?, current_statement = ?, stop_requested = ?, finished = ?, updated_at = ?
		WHERE batch_id = ?`,
		p.Done, p.Failed, p.CurrentStatement, p.StopRequested, p.Finished, p.UpdatedAt, p.BatchID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to update batch progress")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrBatchNotFound
	}
	return nil
}

func (r *ProgressRepository) Get(ctx context.Context, batchID string) (*models.BatchProgress, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT batch_id, connection_id, total, done, failed,
			current_statement, stop_requested, finished, started_at, updated_at
		FROM batch_progress WHERE batch_id = ?`, batchID)

	var p models.BatchProgress
	err := row.Scan(&p.BatchID, &p.ConnectionID, &p.Total, &p.Done, &p.Failed,
		&p.CurrentStatement, &p.StopRequested, &p.Finished, &p.StartedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrBatchNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to load batch progress")
	}
	return &p, nil
}

func (r *ProgressRepository) Delete(ctx context.Context, batchID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM batch_progress WHERE batch_id = ?`, batchID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to delete batch progress")
	}
	return nil
}

var _ repositories.ProgressRepository = (*ProgressRepository)(nil)
