package services

import (
	"regexp"
	"strings"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
)

var (
	errUnbalancedParens = errors.New(errors.CodeInvalidRequest, "statement has unbalanced parentheses")
	errUnbalancedQuotes = errors.New(errors.CodeInvalidRequest, "statement has unbalanced quotes")
)

// identifier matches an optionally backtick/quote-delimited table name with an
// optional schema qualifier.
const identPattern = "(?:[`\"]?(\\w+)[`\"]?\\.)?[`\"]?(\\w+)[`\"]?"

// StatementClassifier detects statement kinds, extracts affected tables, and
// flags dangerous patterns. It is a best-effort pattern matcher, not a SQL
// grammar: deeply nested or vendor-specific DDL syntax is out of scope.
type StatementClassifier struct {
	ddlTablePatterns []*regexp.Regexp
	dmlTablePatterns []*regexp.Regexp
}

// NewStatementClassifier creates a classifier with compiled patterns.
func NewStatementClassifier() *StatementClassifier {
	ddl := []string{
		`(?i)ALTER\s+TABLE\s+` + identPattern,
		`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + identPattern,
		`(?i)DROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?` + identPattern,
		`(?i)TRUNCATE\s+(?:TABLE\s+)?` + identPattern,
		`(?i)RENAME\s+TABLE\s+` + identPattern,
	}
	dml := []string{
		`(?i)DELETE\s+FROM\s+` + identPattern,
		`(?i)INSERT\s+(?:IGNORE\s+)?INTO\s+` + identPattern,
		`(?i)UPDATE\s+` + identPattern,
		`(?i)FROM\s+` + identPattern,
	}

	sc := &StatementClassifier{}
	for _, p := range ddl {
		sc.ddlTablePatterns = append(sc.ddlTablePatterns, regexp.MustCompile(p))
	}
	for _, p := range dml {
		sc.dmlTablePatterns = append(sc.dmlTablePatterns, regexp.MustCompile(p))
	}
	return sc
}

var ddlVerbs = []string{"CREATE", "ALTER", "DROP", "TRUNCATE", "RENAME"}

// DetectKind classifies a statement by its leading verb. Matching is
// case-insensitive and ignores leading whitespace.
func (sc *StatementClassifier) DetectKind(text string) models.QueryKind {
	upper := strings.ToUpper(strings.TrimSpace(text))

	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return models.KindSelect
	case strings.HasPrefix(upper, "INSERT"):
		return models.KindInsert
	case strings.HasPrefix(upper, "UPDATE"):
		return models.KindUpdate
	case strings.HasPrefix(upper, "DELETE"):
		return models.KindDelete
	}
	for _, verb := range ddlVerbs {
		if strings.HasPrefix(upper, verb) {
			return models.KindDDL
		}
	}
	return models.KindOther
}

// ExtractTable returns the primary affected table of a statement, as
// "schema.table" when a qualifier is present, else the bare table name.
// It returns the empty string when no pattern matches.
func (sc *StatementClassifier) ExtractTable(text string) string {
	patterns := sc.ddlTablePatterns
	if sc.DetectKind(text) != models.KindDDL {
		patterns = sc.dmlTablePatterns
	}

	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if m[1] != "" {
			return m[1] + "." + m[2]
		}
		return m[2]
	}
	return ""
}

// FlagDangerous reports whether a statement matches a destructive pattern and
// why. Checks are case-insensitive substring matches.
func (sc *StatementClassifier) FlagDangerous(text string) (bool, string) {
	upper := strings.ToUpper(text)

	switch {
	case strings.Contains(upper, "DROP TABLE"):
		return true, "DROP TABLE permanently removes the table and all of its data"
	case strings.Contains(upper, "TRUNCATE"):
		return true, "TRUNCATE removes every row from the table and cannot be rolled back on some engines"
	case sc.DetectKind(text) == models.KindDelete && !strings.Contains(upper, "WHERE"):
		return true, "DELETE without a WHERE clause affects every row in the table"
	case sc.DetectKind(text) == models.KindUpdate && !strings.Contains(upper, "WHERE"):
		return true, "UPDATE without a WHERE clause affects every row in the table"
	}
	return false, ""
}

// CheckBalance verifies that parentheses and quotes are balanced, tracking
// string literals so that parentheses inside them are ignored. Used as a cheap
// pre-network lint before server-side validation.
func (sc *StatementClassifier) CheckBalance(text string) error {
	depth := 0
	inString := false
	var quote rune

	for _, ch := range text {
		if inString {
			if ch == quote {
				inString = false
			}
			continue
		}
		switch ch {
		case '\'', '"':
			inString = true
			quote = ch
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return errUnbalancedParens
			}
		}
	}

	if depth != 0 {
		return errUnbalancedParens
	}
	if inString {
		return errUnbalancedQuotes
	}
	return nil
}
