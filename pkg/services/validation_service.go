package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// serverErrorMaxLen caps the raw server message carried into a validation
// result when no friendly description is known.
const serverErrorMaxLen = 200

// mysqlErrorDescriptions maps common MySQL error numbers to descriptions a
// reviewer can act on without looking the number up.
var mysqlErrorDescriptions = map[uint16]string{
	1045: "access denied: check the stored username and password",
	1049: "unknown database: the selected database does not exist on this server",
	1050: "table already exists",
	1051: "unknown table",
	1054: "unknown column referenced in the statement",
	1062: "duplicate entry violates a unique key",
	1064: "syntax error in the statement",
	1146: "table does not exist",
	1205: "lock wait timeout exceeded",
	1213: "deadlock detected",
}

var createTablePattern = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+`)

// validationService implements ValidationService. Statements are checked
// against the live server without committing side effects: DDL through a
// prepare/deallocate round trip and row statements through EXPLAIN.
type validationService struct {
	connections repositories.ConnectionRepository
	connector   repositories.TargetConnector
	classifier  *StatementClassifier
	logger      Logger
	metrics     MetricsCollector
}

// NewValidationService creates a new validation service.
func NewValidationService(
	connections repositories.ConnectionRepository,
	connector repositories.TargetConnector,
	classifier *StatementClassifier,
	logger Logger,
	metrics MetricsCollector,
) ValidationService {
	return &validationService{
		connections: connections,
		connector:   connector,
		classifier:  classifier,
		logger:      logger,
		metrics:     metrics,
	}
}

// Validate splits the text and checks each statement. A server that cannot be
// reached degrades validation rather than failing it: structural checks still
// run and each result carries a warning that server-side verification was
// skipped.
func (s *validationService) Validate(ctx context.Context, connectionID int64, text string) ([]*models.ValidationResult, error) {
	statements := SplitStatements(text)
	if len(statements) == 0 {
		return nil, errors.ErrEmptyStatement
	}

	target, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	var sess repositories.Session
	var connectWarning string
	sess, err = s.connector.Connect(ctx, target, primaryHost(target), "")
	if err != nil {
		connectWarning = "server-side validation skipped: " + errors.GetMessage(err)
		s.logger.Warn("Validation falling back to offline checks",
			"connection_id", connectionID, "error", err)
	} else {
		defer sess.Close()
	}

	timer := s.metrics.StartTimer("validation")
	defer timer.Stop()

	results := make([]*models.ValidationResult, 0, len(statements))
	for _, statement := range statements {
		result := s.validateOne(ctx, sess, statement)
		if connectWarning != "" {
			result.Warnings = append(result.Warnings, connectWarning)
		}
		results = append(results, result)
	}

	s.metrics.IncrementCounter("validations")
	return results, nil
}

// validateOne checks one statement. sess may be nil when the target is
// unreachable; only offline checks run in that case.
func (s *validationService) validateOne(ctx context.Context, sess repositories.Session, statement string) *models.ValidationResult {
	result := &models.ValidationResult{
		Statement: statement,
		Kind:      s.classifier.DetectKind(statement),
		Table:     s.classifier.ExtractTable(statement),
		Valid:     true,
	}
	result.Dangerous, result.DangerReason = s.classifier.FlagDangerous(statement)

	if err := s.classifier.CheckBalance(statement); err != nil {
		result.Valid = false
		result.Error = errors.GetMessage(err)
		return result
	}

	if sess == nil {
		return result
	}

	switch result.Kind {
	case models.KindDDL:
		s.validateDDL(ctx, sess, statement, result)
	case models.KindSelect, models.KindInsert, models.KindUpdate, models.KindDelete:
		if err := sess.Explain(ctx, statement); err != nil {
			s.applyServerError(result, err)
		}
	default:
		// OTHER statements (SET, SHOW, ...) get a prepare round trip
		if err := sess.PrepareCheck(ctx, statement); err != nil {
			s.applyServerError(result, err)
		}
	}

	if result.Valid && result.Table != "" && result.Kind != models.KindDDL {
		s.warnMissingTable(ctx, sess, result)
	}

	return result
}

// validateDDL runs a prepare round trip on a DDL statement. CREATE TABLE is
// probed with IF NOT EXISTS injected so that validating a migration twice does
// not report the first run's table as an error; DROP TABLE without IF EXISTS
// is checked against the live table list instead, since dropping a missing
// table would fail at execution time.
func (s *validationService) validateDDL(ctx context.Context, sess repositories.Session, statement string, result *models.ValidationResult) {
	upper := strings.ToUpper(statement)

	if strings.Contains(upper, "DROP TABLE") && !strings.Contains(upper, "IF EXISTS") {
		exists, err := sess.TableExists(ctx, result.Table)
		if err != nil {
			s.applyServerError(result, err)
			return
		}
		if !exists {
			result.Valid = false
			result.Error = fmt.Sprintf("table %q does not exist", result.Table)
		}
		return
	}

	probe := statement
	if createTablePattern.MatchString(statement) && !strings.Contains(upper, "IF NOT EXISTS") {
		probe = createTablePattern.ReplaceAllString(statement, "CREATE TABLE IF NOT EXISTS ")
	}

	if err := sess.PrepareCheck(ctx, probe); err != nil {
		s.applyServerError(result, err)
	}
}

// warnMissingTable adds a warning when a referenced table is absent. EXPLAIN
// already fails hard on missing tables for most statements; this covers the
// remaining shapes and keeps the message friendly.
func (s *validationService) warnMissingTable(ctx context.Context, sess repositories.Session, result *models.ValidationResult) {
	exists, err := sess.TableExists(ctx, result.Table)
	if err != nil || exists {
		return
	}
	result.Warnings = append(result.Warnings,
		fmt.Sprintf("table %q does not exist in the current database", result.Table))
}

// applyServerError translates a server error into the validation result.
// Connectivity failures mid-validation become warnings, not errors: they say
// nothing about the statement itself.
func (s *validationService) applyServerError(result *models.ValidationResult, err error) {
	if msg, ok := describeMySQLError(err); ok {
		result.Valid = false
		result.Error = msg
		return
	}
	result.Warnings = append(result.Warnings,
		"server-side validation skipped: "+truncate(err.Error(), serverErrorMaxLen))
}

// describeMySQLError returns a description for a MySQL server error. The
// second return is false for non-server errors such as dropped connections.
func describeMySQLError(err error) (string, bool) {
	var myErr *mysql.MySQLError
	if !stderrors.As(err, &myErr) {
		return "", false
	}
	if desc, ok := mysqlErrorDescriptions[myErr.Number]; ok {
		return fmt.Sprintf("%s (error %d)", desc, myErr.Number), true
	}
	return truncate(fmt.Sprintf("server error %d: %s", myErr.Number, myErr.Message), serverErrorMaxLen), true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
