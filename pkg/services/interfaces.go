// Package services contains business logic implementations.
package services

import (
	"context"
	"time"

	"github.com/querypilot/querypilot/pkg/models"
)

// ExecutionService executes statements against target databases.
type ExecutionService interface {
	// ExecuteSingle runs one statement and persists exactly one record.
	ExecuteSingle(ctx context.Context, req *models.ExecuteRequest) (*models.ExecutionRecord, error)
	// ExecuteBatch runs an ordered list of statements in one transaction with
	// all-or-nothing semantics per host.
	ExecuteBatch(ctx context.Context, req *models.BatchRequest) (*models.BatchOutcome, error)
	// TestConnection verifies reachability and returns server info.
	TestConnection(ctx context.Context, connectionID int64) (*models.ServerInfo, error)
	// ListDatabases lists databases on the target.
	ListDatabases(ctx context.Context, connectionID int64) ([]string, error)
	// ListTables lists tables in the target's current database.
	ListTables(ctx context.Context, connectionID int64) ([]string, error)
	// TableSchema returns the live definition of a table.
	TableSchema(ctx context.Context, connectionID int64, table string) (string, error)
	// History returns filtered execution records.
	History(ctx context.Context, filter models.HistoryFilter) ([]*models.ExecutionRecord, error)
}

// SchemaService maintains per-table schema version history.
type SchemaService interface {
	// Capture fetches the live definition of a table over an open session.
	// It returns an empty string on failure; capture errors are never raised.
	Capture(ctx context.Context, sess SessionSchemaReader, table string) string
	// RecordVersion appends a new version unless the definition's checksum
	// matches the current latest. Returns the created version, or nil when
	// the capture was deduplicated.
	RecordVersion(ctx context.Context, meta models.VersionMeta) (*models.SchemaVersion, error)
	// Diff resolves two versions of a table. v2 defaults to the latest
	// version and v1 to the version immediately preceding v2.
	Diff(ctx context.Context, connectionID int64, table string, v1, v2 *int) (*models.SchemaDiff, error)
	// Compare produces a unified diff plus structural column/index deltas.
	Compare(ctx context.Context, versionAID, versionBID int64) (*models.SchemaComparison, error)
	// RollbackDDL synthesizes best-effort DDL reverting from one version
	// toward another. The result is generated only, never executed.
	RollbackDDL(ctx context.Context, fromVersionID, toVersionID int64) (*models.RollbackPlan, error)
	// ListVersions lists recorded versions, optionally filtered by table.
	ListVersions(ctx context.Context, connectionID int64, table string) ([]*models.SchemaVersion, error)
	// ListVersionedTables lists tables with at least one recorded version.
	ListVersionedTables(ctx context.Context, connectionID int64) ([]string, error)
	// TagVersion attaches a label to a version.
	TagVersion(ctx context.Context, tag *models.SchemaVersionTag) (*models.SchemaVersionTag, error)
	// Untag removes a tag from a version.
	Untag(ctx context.Context, versionID, tagID int64) error
	// TagsForVersion lists tags attached to a version.
	TagsForVersion(ctx context.Context, versionID int64) ([]*models.SchemaVersionTag, error)
}

// SessionSchemaReader is the subset of a target session the schema service
// needs to capture definitions. Captures run on the same session as the
// surrounding execution to avoid racing the mutation.
type SessionSchemaReader interface {
	ShowCreateTable(ctx context.Context, table string) (string, error)
}

// ValidationService pre-flights statements without committing side effects.
type ValidationService interface {
	// Validate checks each statement in the text against the live server.
	Validate(ctx context.Context, connectionID int64, text string) ([]*models.ValidationResult, error)
}

// AdvisorService analyzes ALTER statements for online-DDL strategies.
type AdvisorService interface {
	Analyze(statement string) *models.AlterAnalysis
}

// ProgressService tracks long-running batches in the metadata store.
type ProgressService interface {
	Start(ctx context.Context, batchID string, connectionID int64, total int) error
	Advance(ctx context.Context, batchID string, done, failed int, current string) error
	Finish(ctx context.Context, batchID string) error
	Get(ctx context.Context, batchID string) (*models.BatchProgress, error)
	// RequestStop flags the batch for cooperative stop; the batch loop reads
	// the flag between statements.
	RequestStop(ctx context.Context, batchID string) error
	// StopRequested reports whether a stop has been flagged.
	StopRequested(ctx context.Context, batchID string) bool
}

// Logger defines logging interface.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsCollector defines metrics collection interface.
type MetricsCollector interface {
	IncrementCounter(name string, labels ...string)
	RecordHistogram(name string, value float64, labels ...string)
	RecordGauge(name string, value float64, labels ...string)
	StartTimer(name string) Timer
}

// Timer represents a timing measurement.
type Timer interface {
	Stop() time.Duration
}
