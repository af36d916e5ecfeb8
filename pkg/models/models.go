// Package models defines the core domain types shared across services,
// repositories, and handlers.
package models

import (
	"fmt"
	"strings"
	"time"
)

// QueryKind classifies a SQL statement by its leading verb.
type QueryKind int

const (
	KindSelect QueryKind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindDDL // CREATE, ALTER, DROP, TRUNCATE, RENAME
	KindOther
)

// String returns the string representation of the query kind.
func (k QueryKind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindDDL:
		return "DDL"
	case KindOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// QueryKindFromString parses a persisted kind string back into a QueryKind.
func QueryKindFromString(s string) QueryKind {
	switch strings.ToUpper(s) {
	case "SELECT":
		return KindSelect
	case "INSERT":
		return KindInsert
	case "UPDATE":
		return KindUpdate
	case "DELETE":
		return KindDelete
	case "DDL":
		return KindDDL
	default:
		return KindOther
	}
}

// Statement is one SQL command extracted from a larger text blob.
// Statements are ephemeral; they are produced per request and never persisted
// as their own entity.
type Statement struct {
	Text  string
	Index int
	Kind  QueryKind
	Table string
}

// ConnectionTarget holds the coordinates of one target database server.
type ConnectionTarget struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Database  string    `json:"database,omitempty"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Hosts     string    `json:"hosts,omitempty"` // newline-separated host list for multi-server targets
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns a human-readable identifier for the target.
func (c *ConnectionTarget) DisplayName() string {
	if c.Database != "" {
		return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.Database)
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HostList returns all hosts for this target. The multi-line Hosts field wins
// over the single Host field when present.
func (c *ConnectionTarget) HostList() []string {
	if strings.TrimSpace(c.Hosts) != "" {
		var hosts []string
		for _, h := range strings.Split(c.Hosts, "\n") {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
		return hosts
	}
	if c.Host != "" {
		return []string{c.Host}
	}
	return nil
}

// IsMultiHost reports whether the target fans out to more than one server.
func (c *ConnectionTarget) IsMultiHost() bool {
	return len(c.HostList()) > 1
}

// ExecutionStatus is the outcome of one statement execution.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "SUCCESS"
	StatusFailed  ExecutionStatus = "FAILED"
)

// ExecutionRecord is the immutable audit record of one executed statement.
// Exactly one record is persisted per execution attempt, success or failure.
//
// Committed is distinct from Status: a batch member can be recorded SUCCESS
// for the audit trail even though the enclosing transaction was later rolled
// back, in which case Committed stays false.
type ExecutionRecord struct {
	ID            int64           `json:"id"`
	ConnectionID  int64           `json:"connection_id"`
	Host          string          `json:"host,omitempty"`
	StatementText string          `json:"statement_text"`
	Kind          QueryKind       `json:"kind"`
	ExecutedBy    string          `json:"executed_by"`
	ExecutedAt    time.Time       `json:"executed_at"`
	Status        ExecutionStatus `json:"status"`
	Committed     bool            `json:"committed"`
	AffectedRows  int64           `json:"affected_rows"`
	Duration      time.Duration   `json:"duration"`
	ErrorMessage  string          `json:"error_message,omitempty"`

	// Schema pre/post images, populated for DDL statements only.
	SchemaBefore string `json:"schema_before,omitempty"`
	SchemaAfter  string `json:"schema_after,omitempty"`

	// Result snapshot, populated for SELECT statements only, capped.
	ResultColumns []string        `json:"result_columns,omitempty"`
	ResultRows    [][]interface{} `json:"result_rows,omitempty"`

	// Batch membership. BatchID is empty for single executions.
	BatchID    string `json:"batch_id,omitempty"`
	BatchIndex int    `json:"batch_index"`

	// Backward reference to the schema version this execution produced, if any.
	SchemaVersionID *int64 `json:"schema_version_id,omitempty"`
}

// SchemaVersion is one immutable, numbered snapshot of a table's definition.
// Versions are scoped by (connection, table) and form a gap-free ascending
// sequence starting at 1.
type SchemaVersion struct {
	ID            int64     `json:"id"`
	ConnectionID  int64     `json:"connection_id"`
	TableName     string    `json:"table_name"`
	Version       int       `json:"version"`
	Definition    string    `json:"definition"`
	Checksum      string    `json:"checksum"`
	CreatedAt     time.Time `json:"created_at"`
	ExecutedBy    string    `json:"executed_by,omitempty"`
	ChangeSummary string    `json:"change_summary,omitempty"`
	DDLType       string    `json:"ddl_type,omitempty"`
	ExecutionID   *int64    `json:"execution_id,omitempty"`
}

// SchemaVersionTag is a user-supplied label attached to one schema version.
type SchemaVersionTag struct {
	ID              int64     `json:"id"`
	SchemaVersionID int64     `json:"schema_version_id"`
	TagName         string    `json:"tag_name"`
	Memo            string    `json:"memo,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// BatchOutcome aggregates the result of one batch execution. It is ephemeral;
// its constituent ExecutionRecords are persisted individually.
type BatchOutcome struct {
	BatchID   string             `json:"batch_id"`
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Committed bool               `json:"committed"`
	Records   []*ExecutionRecord `json:"records"`
	Error     string             `json:"error,omitempty"`
}

// BatchProgress tracks a long-running batch in the metadata store so that it
// survives process restarts and is visible across workers. StopRequested is
// read cooperatively between statements; it is not preemptive cancellation.
type BatchProgress struct {
	BatchID          string    `json:"batch_id"`
	ConnectionID     int64     `json:"connection_id"`
	Total            int       `json:"total"`
	Done             int       `json:"done"`
	Failed           int       `json:"failed"`
	CurrentStatement string    `json:"current_statement,omitempty"`
	StopRequested    bool      `json:"stop_requested"`
	Finished         bool      `json:"finished"`
	StartedAt        time.Time `json:"started_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ValidationResult is the outcome of pre-flight validation of one statement.
type ValidationResult struct {
	Statement    string    `json:"statement"`
	Kind         QueryKind `json:"kind"`
	Table        string    `json:"table,omitempty"`
	Valid        bool      `json:"valid"`
	Error        string    `json:"error,omitempty"`
	Dangerous    bool      `json:"dangerous"`
	DangerReason string    `json:"danger_reason,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// HistoryFilter selects execution records for history queries.
type HistoryFilter struct {
	ConnectionID *int64
	Kind         *QueryKind
	Status       *ExecutionStatus
	Actor        string // substring match on executed_by
	Search       string // substring match on statement text
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// ServerInfo describes a target server reachable by a connection test.
type ServerInfo struct {
	Version   string   `json:"version"`
	Databases []string `json:"databases"`
}
