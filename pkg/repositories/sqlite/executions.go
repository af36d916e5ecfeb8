package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// ExecutionRepository stores execution records. Result snapshots are stored as
// JSON blobs; durations as microseconds.
type ExecutionRepository struct {
	db *sql.DB
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

const executionColumns = `id, connection_id, host, statement_text, kind, executed_by, executed_at,
	status, committed, affected_rows, duration_us, error_message,
	schema_before, schema_after, result_columns, result_rows,
	batch_id, batch_index, schema_version_id`

func (r *ExecutionRepository) Create(ctx context.Context, rec *models.ExecutionRecord) (int64, error) {
	columnsJSON, err := marshalOrEmpty(rec.ResultColumns)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to encode result columns")
	}
	rowsJSON, err := marshalOrEmpty(rec.ResultRows)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to encode result rows")
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO query_executions (
			connection_id, host, statement_text, kind, executed_by, executed_at,
			status, committed, affected_rows, duration_us, error_message,
			schema_before, schema_after, result_columns, result_rows,
			batch_id, batch_index, schema_version_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ConnectionID, rec.Host, rec.StatementText, rec.Kind.String(),
		rec.ExecutedBy, rec.ExecutedAt, string(rec.Status), rec.Committed,
		rec.AffectedRows, rec.Duration.Microseconds(), rec.ErrorMessage,
		rec.SchemaBefore, rec.SchemaAfter, columnsJSON, rowsJSON,
		rec.BatchID, rec.BatchIndex, rec.SchemaVersionID)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to create execution record")
	}
	return res.LastInsertId()
}

func (r *ExecutionRepository) Get(ctx context.Context, id int64) (*models.ExecutionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM query_executions WHERE id = ?`, id)

	rec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrExecutionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to load execution record")
	}
	return rec, nil
}

func (r *ExecutionRepository) List(ctx context.Context, filter models.HistoryFilter) ([]*models.ExecutionRecord, error) {
	var where []string
	var args []interface{}

	if filter.ConnectionID != nil {
		where = append(where, "connection_id = ?")
		args = append(args, *filter.ConnectionID)
	}
	if filter.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind.String())
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Actor != "" {
		where = append(where, "executed_by LIKE ?")
		args = append(args, "%"+filter.Actor+"%")
	}
	if filter.Search != "" {
		where = append(where, "statement_text LIKE ?")
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.From != nil {
		where = append(where, "executed_at >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, "executed_at <= ?")
		args = append(args, *filter.To)
	}

	query := `SELECT ` + executionColumns + ` FROM query_executions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY executed_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to list execution records")
	}
	defer rows.Close()

	var records []*models.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to scan execution record")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *ExecutionRepository) LinkSchemaVersion(ctx context.Context, executionID, versionID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE query_executions SET schema_version_id = ? WHERE id = ?`, versionID, executionID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to link schema version")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrExecutionNotFound
	}
	return nil
}

func scanExecution(row rowScanner) (*models.ExecutionRecord, error) {
	var rec models.ExecutionRecord
	var kind, status, columnsJSON, rowsJSON string
	var durationUS int64

	err := row.Scan(&rec.ID, &rec.ConnectionID, &rec.Host, &rec.StatementText,
		&kind, &rec.ExecutedBy, &rec.ExecutedAt, &status, &rec.Committed,
		&rec.AffectedRows, &durationUS, &rec.ErrorMessage,
		&rec.SchemaBefore, &rec.SchemaAfter, &columnsJSON, &rowsJSON,
		&rec.BatchID, &rec.BatchIndex, &rec.SchemaVersionID)
	if err != nil {
		return nil, err
	}

	rec.Kind = models.QueryKindFromString(kind)
	rec.Status = models.ExecutionStatus(status)
	rec.Duration = time.Duration(durationUS) * time.Microsecond

	if columnsJSON != "" {
		if err := json.Unmarshal([]byte(columnsJSON), &rec.ResultColumns); err != nil {
			return nil, err
		}
	}
	if rowsJSON != "" {
		if err := json.Unmarshal([]byte(rowsJSON), &rec.ResultRows); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func marshalOrEmpty(v interface{}) (string, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return "", nil
		}
	case [][]interface{}:
		if len(t) == 0 {
			return "", nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var _ repositories.ExecutionRepository = (*ExecutionRepository)(nil)
