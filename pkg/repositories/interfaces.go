// Package repositories defines interfaces for data access operations: the
// target database collaborator and the metadata store.
package repositories

import (
	"context"

	"github.com/querypilot/querypilot/pkg/models"
)

// Session is one live connection to a target database server. A session is
// opened per request and must be closed on every exit path. A session holds at
// most one transaction at a time.
type Session interface {
	// Query executes a row-returning statement, fetching at most maxRows rows.
	Query(ctx context.Context, sql string, maxRows int) (columns []string, rows [][]interface{}, err error)
	// Exec executes a non-row-returning statement and reports affected rows.
	Exec(ctx context.Context, sql string) (affected int64, err error)
	// Begin opens a transaction on the session. Exec and Query route through
	// the transaction until Commit or Rollback.
	Begin(ctx context.Context) error
	// Commit commits the open transaction.
	Commit() error
	// Rollback rolls back the open transaction.
	Rollback() error
	// Close releases the session.
	Close() error

	// ShowCreateTable returns the table's definition text.
	ShowCreateTable(ctx context.Context, table string) (string, error)
	// PrepareCheck runs a prepare/deallocate round trip without executing.
	PrepareCheck(ctx context.Context, sql string) error
	// Explain requests a query plan without materializing rows.
	Explain(ctx context.Context, sql string) error
	// TableExists reports whether the table exists in the current database.
	TableExists(ctx context.Context, table string) (bool, error)
	// ServerVersion returns the server version string.
	ServerVersion(ctx context.Context) (string, error)
	// Databases lists databases visible to the session.
	Databases(ctx context.Context) ([]string, error)
	// Tables lists tables in the current database.
	Tables(ctx context.Context) ([]string, error)
}

// TargetConnector opens sessions against target database servers. host selects
// one entry of the target's host list; database overrides the target's default
// database when non-empty.
type TargetConnector interface {
	Connect(ctx context.Context, target *models.ConnectionTarget, host, database string) (Session, error)
}

// ConnectionRepository stores connection targets.
type ConnectionRepository interface {
	Create(ctx context.Context, target *models.ConnectionTarget) (int64, error)
	Get(ctx context.Context, id int64) (*models.ConnectionTarget, error)
	List(ctx context.Context) ([]*models.ConnectionTarget, error)
	// Delete removes the target and cascades to its executions and versions.
	Delete(ctx context.Context, id int64) error
}

// ExecutionRepository stores execution records. Records are append-only; the
// only post-create mutation is linking the schema version produced by the
// execution.
type ExecutionRepository interface {
	Create(ctx context.Context, rec *models.ExecutionRecord) (int64, error)
	Get(ctx context.Context, id int64) (*models.ExecutionRecord, error)
	List(ctx context.Context, filter models.HistoryFilter) ([]*models.ExecutionRecord, error)
	LinkSchemaVersion(ctx context.Context, executionID, versionID int64) error
}

// SchemaVersionRepository stores schema versions scoped by (connection, table).
type SchemaVersionRepository interface {
	Create(ctx context.Context, v *models.SchemaVersion) (int64, error)
	ByID(ctx context.Context, id int64) (*models.SchemaVersion, error)
	// Latest returns the highest-numbered version, or a not-found error.
	Latest(ctx context.Context, connectionID int64, table string) (*models.SchemaVersion, error)
	// ByNumber returns the version with the given number.
	ByNumber(ctx context.Context, connectionID int64, table string, version int) (*models.SchemaVersion, error)
	// Previous returns the highest version strictly below the given number.
	Previous(ctx context.Context, connectionID int64, table string, version int) (*models.SchemaVersion, error)
	// List returns versions for a connection, optionally filtered by table,
	// ordered by table then descending version.
	List(ctx context.Context, connectionID int64, table string) ([]*models.SchemaVersion, error)
	// Tables returns the distinct table names with recorded versions.
	Tables(ctx context.Context, connectionID int64) ([]string, error)
}

// TagRepository stores schema version tags.
type TagRepository interface {
	Create(ctx context.Context, tag *models.SchemaVersionTag) (int64, error)
	Delete(ctx context.Context, versionID, tagID int64) error
	ListForVersion(ctx context.Context, versionID int64) ([]*models.SchemaVersionTag, error)
}

// ProgressRepository stores batch progress keyed by batch id.
type ProgressRepository interface {
	Create(ctx context.Context, p *models.BatchProgress) error
	Update(ctx context.Context, p *models.BatchProgress) error
	Get(ctx context.Context, batchID string) (*models.BatchProgress, error)
	Delete(ctx context.Context, batchID string) error
}
