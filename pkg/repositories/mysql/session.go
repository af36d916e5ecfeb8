package mysql

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/querypilot/querypilot/pkg/errors"
)

// session is one live connection to a MySQL server. It holds at most one
// transaction; Exec and Query route through it while it is open.
type session struct {
	db   *sql.DB
	tx   *sql.Tx
	addr string
}

func (s *session) Query(ctx context.Context, query string, maxRows int) ([]string, [][]interface{}, error) {
	var rows *sql.Rows
	var err error
	if s.tx != nil {
		rows, err = s.tx.QueryContext(ctx, query)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var result [][]interface{}
	raw := make([]sql.RawBytes, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if maxRows > 0 && len(result) >= maxRows {
			break
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		row := make([]interface{}, len(columns))
		for i, cell := range raw {
			if cell == nil {
				row[i] = nil
			} else {
				row[i] = string(cell)
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, result, nil
}

func (s *session) Exec(ctx context.Context, query string) (int64, error) {
	var res sql.Result
	var err error
	if s.tx != nil {
		res, err = s.tx.ExecContext(ctx, query)
	} else {
		res, err = s.db.ExecContext(ctx, query)
	}
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// DDL statements report no row count
		return 0, nil
	}
	return affected, nil
}

func (s *session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return errors.New(errors.CodeTransactionFailed, "transaction already open on session")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *session) Commit() error {
	if s.tx == nil {
		return errors.New(errors.CodeTransactionFailed, "no open transaction")
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

// Rollback is safe to call with no open transaction; the batch loop calls it
// on every failure path.
func (s *session) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if stderrors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (s *session) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}

func (s *session) ShowCreateTable(ctx context.Context, table string) (string, error) {
	var row *sql.Row
	query := "SHOW CREATE TABLE " + quoteIdent(table)
	if s.tx != nil {
		row = s.tx.QueryRowContext(ctx, query)
	} else {
		row = s.db.QueryRowContext(ctx, query)
	}
	var name, definition string
	if err := row.Scan(&name, &definition); err != nil {
		return "", err
	}
	return definition, nil
}

func (s *session) PrepareCheck(ctx context.Context, query string) error {
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	return stmt.Close()
}

func (s *session) Explain(ctx context.Context, query string) error {
	rows, err := s.db.QueryContext(ctx, "EXPLAIN "+query)
	if err != nil {
		return err
	}
	return rows.Close()
}

func (s *session) TableExists(ctx context.Context, table string) (bool, error) {
	schemaExpr := "DATABASE()"
	args := []interface{}{table}
	if i := strings.IndexByte(table, '.'); i >= 0 {
		schemaExpr = "?"
		args = []interface{}{table[:i], table[i+1:]}
	}
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = %s AND table_name = ?",
		schemaExpr)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *session) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := s.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func (s *session) Databases(ctx context.Context) ([]string, error) {
	return s.stringColumn(ctx, "SHOW DATABASES")
}

func (s *session) Tables(ctx context.Context) ([]string, error) {
	return s.stringColumn(ctx, "SHOW TABLES")
}

func (s *session) stringColumn(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// quoteIdent backtick-quotes an identifier, keeping schema qualifiers intact.
func quoteIdent(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}
