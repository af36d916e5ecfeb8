package models

import "time"

// VersionInfo is the slice of a SchemaVersion exposed by diff results.
type VersionInfo struct {
	Version    int       `json:"version"`
	Definition string    `json:"definition"`
	CreatedAt  time.Time `json:"created_at"`
	ExecutedBy string    `json:"executed_by,omitempty"`
}

// SchemaDiff resolves two versions of a table for comparison. Version1 may be
// nil when the table has only one recorded version.
type SchemaDiff struct {
	TableName string       `json:"table_name"`
	Version1  *VersionInfo `json:"version1,omitempty"`
	Version2  *VersionInfo `json:"version2"`
}

// Column is a column name/type pair extracted from a table definition.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SchemaComparison is the structural comparison of two table definitions.
type SchemaComparison struct {
	UnifiedDiff    string   `json:"unified_diff"`
	AddedColumns   []Column `json:"added_columns,omitempty"`
	RemovedColumns []Column `json:"removed_columns,omitempty"`
	AddedIndexes   []string `json:"added_indexes,omitempty"`
	RemovedIndexes []string `json:"removed_indexes,omitempty"`
}

// RollbackPlan is a synthesized, human-reviewed DDL statement intended to
// revert a table from one recorded version toward another. It is generated
// only and never executed by the engine.
type RollbackPlan struct {
	TableName   string   `json:"table_name"`
	FromVersion int      `json:"from_version"`
	ToVersion   int      `json:"to_version"`
	Statement   string   `json:"statement"`
	Warnings    []string `json:"warnings"`
}
