package services

import (
	"regexp"
	"strings"

	"github.com/querypilot/querypilot/pkg/models"
)

// alterClausePattern strips existing ALGORITHM=/LOCK= clauses (with optional
// leading comma) so a suggestion's clause pair can be appended cleanly.
var alterClausePattern = regexp.MustCompile(`(?i),?\s*(ALGORITHM|LOCK)\s*=\s*\w+`)

// AlterAdvisor classifies ALTER TABLE statements and recommends online-DDL
// execution strategies. Suggestion tables are static per operation kind.
type AlterAdvisor struct {
	classifier *StatementClassifier
	logger     Logger
}

// NewAlterAdvisor creates a new advisor.
func NewAlterAdvisor(classifier *StatementClassifier, logger Logger) *AlterAdvisor {
	return &AlterAdvisor{classifier: classifier, logger: logger}
}

// Analyze inspects one ALTER statement and returns ranked strategy
// suggestions with copy-paste-ready rewritten variants. Non-ALTER input
// returns a result with IsAlter=false.
func (a *AlterAdvisor) Analyze(statement string) *models.AlterAnalysis {
	result := &models.AlterAnalysis{}

	upper := strings.ToUpper(strings.TrimSpace(statement))
	if !strings.HasPrefix(upper, "ALTER") {
		return result
	}

	result.IsAlter = true
	result.Table = a.classifier.ExtractTable(statement)
	result.Operation = detectAlterOperation(upper)

	suggestions, impact := suggestionsFor(result.Operation)
	result.EstimatedImpact = impact

	base := alterClausePattern.ReplaceAllString(strings.TrimRight(strings.TrimSpace(statement), ";"), "")
	base = strings.TrimRight(strings.TrimSpace(base), ",")
	for _, s := range suggestions {
		s.Rewritten = base + ", ALGORITHM=" + s.Algorithm + ", LOCK=" + s.Lock + ";"
		result.Suggestions = append(result.Suggestions, s)
	}

	a.logger.Debug("Analyzed ALTER statement",
		"table", result.Table,
		"operation", result.Operation.String(),
		"suggestions", len(result.Suggestions))

	return result
}

// detectAlterOperation applies ordered substring checks on the uppercased
// text. ADD COLUMN detection excludes ADD INDEX/KEY phrasing so that a bare
// "ADD" is not mistaken for a column addition.
func detectAlterOperation(upper string) models.AlterOperation {
	switch {
	case strings.Contains(upper, "DROP COLUMN"):
		return models.AlterDropColumn
	case strings.Contains(upper, "MODIFY COLUMN"), strings.Contains(upper, "CHANGE COLUMN"):
		return models.AlterModifyColumn
	case strings.Contains(upper, "ADD INDEX"), strings.Contains(upper, "ADD KEY"),
		strings.Contains(upper, "ADD UNIQUE"), strings.Contains(upper, "ADD FULLTEXT"):
		return models.AlterAddIndex
	case strings.Contains(upper, "DROP INDEX"), strings.Contains(upper, "DROP KEY"):
		return models.AlterDropIndex
	case strings.Contains(upper, "ADD COLUMN"), strings.Contains(upper, "ADD "):
		return models.AlterAddColumn
	default:
		return models.AlterOther
	}
}

// suggestionsFor returns the static, ranked suggestion table for an operation
// along with an overall impact sentence.
func suggestionsFor(op models.AlterOperation) ([]models.AlterSuggestion, string) {
	switch op {
	case models.AlterAddColumn:
		return []models.AlterSuggestion{
			{
				Algorithm:   "INSTANT",
				Lock:        "NONE",
				Description: "metadata-only change on MySQL 8.0+, completes immediately",
				Impact:      models.ImpactVeryLow,
			},
			{
				Algorithm:   "INPLACE",
				Lock:        "NONE",
				Description: "rebuilds indexes without copying the table",
				Impact:      models.ImpactLow,
			},
		}, "usually fast; completes instantly where INSTANT is supported"

	case models.AlterDropColumn:
		return []models.AlterSuggestion{
			{
				Algorithm:   "INPLACE",
				Lock:        "NONE",
				Description: "performed without a table copy",
				Impact:      models.ImpactLow,
			},
		}, "relatively quick even on mid-sized tables"

	case models.AlterModifyColumn:
		return []models.AlterSuggestion{
			{
				Algorithm:   "INPLACE",
				Lock:        "SHARED",
				Description: "performed in place when the type change allows it",
				Impact:      models.ImpactMedium,
			},
			{
				Algorithm:   "COPY",
				Lock:        "EXCLUSIVE",
				Description: "full table copy, required for incompatible type changes",
				Impact:      models.ImpactHigh,
			},
		}, "depends on the column type; take care with large tables"

	case models.AlterAddIndex:
		return []models.AlterSuggestion{
			{
				Algorithm:   "INPLACE",
				Lock:        "NONE",
				Description: "online index build, concurrent DML allowed",
				Impact:      models.ImpactMedium,
			},
		}, "proportional to table size; large tables take time"

	case models.AlterDropIndex:
		return []models.AlterSuggestion{
			{
				Algorithm:   "INPLACE",
				Lock:        "NONE",
				Description: "index dropped immediately",
				Impact:      models.ImpactVeryLow,
			},
		}, "completes almost immediately"

	default:
		return []models.AlterSuggestion{
			{
				Algorithm:   "INPLACE",
				Lock:        "NONE",
				Description: "run online where the operation allows it",
				Impact:      models.ImpactUnknown,
			},
		}, "varies with the operation"
	}
}
