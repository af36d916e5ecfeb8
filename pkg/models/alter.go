package models

// AlterOperation classifies the kind of change an ALTER TABLE statement makes.
type AlterOperation int

const (
	AlterAddColumn AlterOperation = iota
	AlterDropColumn
	AlterModifyColumn
	AlterAddIndex
	AlterDropIndex
	AlterOther
)

// String returns the string representation of the ALTER operation.
func (op AlterOperation) String() string {
	switch op {
	case AlterAddColumn:
		return "ADD COLUMN"
	case AlterDropColumn:
		return "DROP COLUMN"
	case AlterModifyColumn:
		return "MODIFY COLUMN"
	case AlterAddIndex:
		return "ADD INDEX"
	case AlterDropIndex:
		return "DROP INDEX"
	default:
		return "OTHER"
	}
}

// ImpactLevel is a qualitative estimate of how disruptive an online-DDL
// strategy is expected to be.
type ImpactLevel int

const (
	ImpactVeryLow ImpactLevel = iota
	ImpactLow
	ImpactMedium
	ImpactHigh
	ImpactUnknown
)

// String returns the string representation of the impact level.
func (il ImpactLevel) String() string {
	switch il {
	case ImpactVeryLow:
		return "very_low"
	case ImpactLow:
		return "low"
	case ImpactMedium:
		return "medium"
	case ImpactHigh:
		return "high"
	default:
		return "unknown"
	}
}

// AlterSuggestion is one ranked execution-strategy option for an ALTER
// statement. Rewritten is a copy-paste-ready variant of the original statement
// with the suggested ALGORITHM/LOCK clause pair appended.
type AlterSuggestion struct {
	Algorithm   string      `json:"algorithm"`
	Lock        string      `json:"lock"`
	Description string      `json:"description"`
	Impact      ImpactLevel `json:"impact"`
	Rewritten   string      `json:"rewritten"`
}

// AlterAnalysis is the full advisory result for one ALTER statement.
// IsAlter is false for non-ALTER input, and all other fields are zero.
type AlterAnalysis struct {
	IsAlter         bool              `json:"is_alter"`
	Table           string            `json:"table,omitempty"`
	Operation       AlterOperation    `json:"operation"`
	Suggestions     []AlterSuggestion `json:"suggestions,omitempty"`
	EstimatedImpact string            `json:"estimated_impact,omitempty"`
}
