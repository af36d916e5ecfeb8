package models

// ExecuteRequest asks for one statement to run against a connection target.
type ExecuteRequest struct {
	ConnectionID int64  `json:"connection_id"`
	Statement    string `json:"statement"`
	Actor        string `json:"actor"`
	// Database overrides the target's default database when non-empty.
	Database string `json:"database,omitempty"`
}

// BatchRequest asks for an ordered group of statements to run in one
// transaction. Text is split into statements when Statements is empty.
type BatchRequest struct {
	ConnectionID int64    `json:"connection_id"`
	Statements   []string `json:"statements,omitempty"`
	Text         string   `json:"text,omitempty"`
	Actor        string   `json:"actor"`
	Database     string   `json:"database,omitempty"`
}

// VersionMeta carries everything needed to record one schema version.
type VersionMeta struct {
	ConnectionID    int64
	Table           string
	Definition      string
	PriorDefinition string
	Actor           string
	DDLType         string
	ExecutionID     *int64
}
