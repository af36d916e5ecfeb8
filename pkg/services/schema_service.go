package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// Column and index extraction over CREATE TABLE text. Best-effort pattern
// matching, same contract as the statement classifier.
var (
	columnLinePattern = regexp.MustCompile("(?m)^\\s*`(\\w+)`\\s+([^\\s,]+)")
	indexLinePattern  = regexp.MustCompile("(?m)^\\s*(?:UNIQUE\\s+|FULLTEXT\\s+)?(?:KEY|INDEX)\\s+`(\\w+)`")
	primaryKeyLine    = regexp.MustCompile(`(?m)^\s*PRIMARY\s+KEY`)
)

// schemaService implements SchemaService.
type schemaService struct {
	versions repositories.SchemaVersionRepository
	tags     repositories.TagRepository
	logger   Logger
	metrics  MetricsCollector
}

// NewSchemaService creates a new schema service.
func NewSchemaService(
	versions repositories.SchemaVersionRepository,
	tags repositories.TagRepository,
	logger Logger,
	metrics MetricsCollector,
) SchemaService {
	return &schemaService{
		versions: versions,
		tags:     tags,
		logger:   logger,
		metrics:  metrics,
	}
}

// Capture fetches the live table definition over the given session. Failures
// are logged as warnings and yield an empty string, never an error: a missing
// pre-image must not block the execution it instruments.
func (s *schemaService) Capture(ctx context.Context, sess SessionSchemaReader, table string) string {
	if table == "" {
		return ""
	}
	def, err := sess.ShowCreateTable(ctx, table)
	if err != nil {
		s.logger.Warn("Failed to capture table definition", "table", table, "error", err)
		s.metrics.IncrementCounter("schema_capture_failures")
		return ""
	}
	return def
}

// RecordVersion appends a new version for (connection, table) unless the
// definition's checksum equals the latest recorded one.
func (s *schemaService) RecordVersion(ctx context.Context, meta models.VersionMeta) (*models.SchemaVersion, error) {
	checksum := Checksum(meta.Definition)

	next := 1
	latest, err := s.versions.Latest(ctx, meta.ConnectionID, meta.Table)
	switch {
	case err == nil:
		if latest.Checksum == checksum {
			s.logger.Debug("Schema unchanged, skipping version",
				"table", meta.Table, "version", latest.Version)
			s.metrics.IncrementCounter("schema_versions_deduped")
			return nil, nil
		}
		next = latest.Version + 1
	case errors.IsNotFound(err):
		// first version for this table
	default:
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to load latest schema version")
	}

	prior := meta.PriorDefinition
	if prior == "" && latest != nil {
		prior = latest.Definition
	}

	version := &models.SchemaVersion{
		ConnectionID:  meta.ConnectionID,
		TableName:     meta.Table,
		Version:       next,
		Definition:    meta.Definition,
		Checksum:      checksum,
		CreatedAt:     time.Now(),
		ExecutedBy:    meta.Actor,
		ChangeSummary: summarizeChange(prior, meta.Definition),
		DDLType:       meta.DDLType,
		ExecutionID:   meta.ExecutionID,
	}

	id, err := s.versions.Create(ctx, version)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to record schema version")
	}
	version.ID = id

	s.metrics.IncrementCounter("schema_versions_recorded")
	s.logger.Info("Recorded schema version",
		"table", meta.Table, "version", next, "checksum", checksum)

	return version, nil
}

// Diff resolves two versions of a table. v2 defaults to the latest version
// and v1 to the version immediately preceding v2. A table with no versions
// yields ErrNoVersions rather than a panic or nil result.
func (s *schemaService) Diff(ctx context.Context, connectionID int64, table string, v1, v2 *int) (*models.SchemaDiff, error) {
	var verB *models.SchemaVersion
	var err error

	if v2 == nil {
		verB, err = s.versions.Latest(ctx, connectionID, table)
	} else {
		verB, err = s.versions.ByNumber(ctx, connectionID, table, *v2)
	}
	if err != nil {
		if errors.IsNotFound(err) {
			noVersions := *errors.ErrNoVersions
			return nil, noVersions.WithDetail("table", table)
		}
		return nil, err
	}

	var verA *models.SchemaVersion
	if v1 == nil {
		verA, err = s.versions.Previous(ctx, connectionID, table, verB.Version)
	} else {
		verA, err = s.versions.ByNumber(ctx, connectionID, table, *v1)
	}
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}

	diff := &models.SchemaDiff{
		TableName: table,
		Version2:  versionInfo(verB),
	}
	if verA != nil {
		diff.Version1 = versionInfo(verA)
	}
	return diff, nil
}

// Compare produces a line-oriented unified diff plus structural column and
// index deltas between two versions.
func (s *schemaService) Compare(ctx context.Context, versionAID, versionBID int64) (*models.SchemaComparison, error) {
	verA, err := s.versions.ByID(ctx, versionAID)
	if err != nil {
		return nil, err
	}
	verB, err := s.versions.ByID(ctx, versionBID)
	if err != nil {
		return nil, err
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(verA.Definition),
		B:        difflib.SplitLines(verB.Definition),
		FromFile: fmt.Sprintf("%s@v%d", verA.TableName, verA.Version),
		ToFile:   fmt.Sprintf("%s@v%d", verB.TableName, verB.Version),
		Context:  3,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to compute diff")
	}

	colsA := extractColumns(verA.Definition)
	colsB := extractColumns(verB.Definition)
	idxA := extractIndexes(verA.Definition)
	idxB := extractIndexes(verB.Definition)

	return &models.SchemaComparison{
		UnifiedDiff:    unified,
		AddedColumns:   columnsOnlyIn(colsB, colsA),
		RemovedColumns: columnsOnlyIn(colsA, colsB),
		AddedIndexes:   namesOnlyIn(idxB, idxA),
		RemovedIndexes: namesOnlyIn(idxA, idxB),
	}, nil
}

// RollbackDDL synthesizes a single ALTER TABLE statement reverting a table
// from one recorded version toward another. Best effort: it drops columns and
// non-primary indexes present only in the source version and re-adds columns
// present only in the destination, using the destination's recorded types.
// The statement is generated only; the engine never executes it.
func (s *schemaService) RollbackDDL(ctx context.Context, fromVersionID, toVersionID int64) (*models.RollbackPlan, error) {
	from, err := s.versions.ByID(ctx, fromVersionID)
	if err != nil {
		return nil, err
	}
	to, err := s.versions.ByID(ctx, toVersionID)
	if err != nil {
		return nil, err
	}

	fromCols := extractColumns(from.Definition)
	toCols := extractColumns(to.Definition)
	fromIdx := extractIndexes(from.Definition)
	toIdx := extractIndexes(to.Definition)

	var clauses []string
	for _, col := range columnsOnlyIn(fromCols, toCols) {
		clauses = append(clauses, fmt.Sprintf("DROP COLUMN `%s`", col.Name))
	}
	for _, col := range columnsOnlyIn(toCols, fromCols) {
		clauses = append(clauses, fmt.Sprintf("ADD COLUMN `%s` %s", col.Name, col.Type))
	}
	for _, idx := range namesOnlyIn(fromIdx, toIdx) {
		if strings.EqualFold(idx, "PRIMARY") {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("DROP INDEX `%s`", idx))
	}

	statement := fmt.Sprintf("-- no structural changes detected between v%d and v%d", from.Version, to.Version)
	if len(clauses) > 0 {
		statement = fmt.Sprintf("ALTER TABLE `%s`\n  %s;", to.TableName, strings.Join(clauses, ",\n  "))
	}

	s.metrics.IncrementCounter("rollback_ddl_generated")

	return &models.RollbackPlan{
		TableName:   to.TableName,
		FromVersion: from.Version,
		ToVersion:   to.Version,
		Statement:   statement,
		Warnings: []string{
			"review the generated DDL carefully before running it",
			"rolling back schema changes may cause data loss",
		},
	}, nil
}

// ListVersions lists recorded versions, optionally filtered by table.
func (s *schemaService) ListVersions(ctx context.Context, connectionID int64, table string) ([]*models.SchemaVersion, error) {
	return s.versions.List(ctx, connectionID, table)
}

// ListVersionedTables lists tables with at least one recorded version.
func (s *schemaService) ListVersionedTables(ctx context.Context, connectionID int64) ([]string, error) {
	return s.versions.Tables(ctx, connectionID)
}

// TagVersion attaches a label to a version.
func (s *schemaService) TagVersion(ctx context.Context, tag *models.SchemaVersionTag) (*models.SchemaVersionTag, error) {
	if strings.TrimSpace(tag.TagName) == "" {
		return nil, errors.New(errors.CodeInvalidRequest, "tag name cannot be empty")
	}
	if _, err := s.versions.ByID(ctx, tag.SchemaVersionID); err != nil {
		return nil, err
	}

	tag.CreatedAt = time.Now()
	id, err := s.tags.Create(ctx, tag)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create tag")
	}
	tag.ID = id
	return tag, nil
}

// Untag removes a tag from a version.
func (s *schemaService) Untag(ctx context.Context, versionID, tagID int64) error {
	return s.tags.Delete(ctx, versionID, tagID)
}

// TagsForVersion lists tags attached to a version.
func (s *schemaService) TagsForVersion(ctx context.Context, versionID int64) ([]*models.SchemaVersionTag, error) {
	return s.tags.ListForVersion(ctx, versionID)
}

// Checksum returns the content hash used to deduplicate version entries.
func Checksum(definition string) string {
	sum := md5.Sum([]byte(definition))
	return hex.EncodeToString(sum[:])
}

// summarizeChange produces a human-readable one-per-line change summary
// between two definitions.
func summarizeChange(prior, current string) string {
	if prior == "" {
		return "table created"
	}
	if current == "" {
		return "table dropped"
	}

	priorCols := extractColumns(prior)
	currentCols := extractColumns(current)
	priorIdx := extractIndexes(prior)
	currentIdx := extractIndexes(current)

	var lines []string
	for _, col := range columnsOnlyIn(currentCols, priorCols) {
		lines = append(lines, fmt.Sprintf("added column `%s` %s", col.Name, col.Type))
	}
	for _, col := range columnsOnlyIn(priorCols, currentCols) {
		lines = append(lines, fmt.Sprintf("removed column `%s`", col.Name))
	}
	for _, idx := range namesOnlyIn(currentIdx, priorIdx) {
		lines = append(lines, fmt.Sprintf("added index `%s`", idx))
	}
	for _, idx := range namesOnlyIn(priorIdx, currentIdx) {
		lines = append(lines, fmt.Sprintf("removed index `%s`", idx))
	}

	if len(lines) == 0 {
		return "schema changed"
	}
	return strings.Join(lines, "\n")
}

// extractColumns pulls column name/type pairs out of a CREATE TABLE text.
func extractColumns(definition string) []models.Column {
	var cols []models.Column
	for _, m := range columnLinePattern.FindAllStringSubmatch(definition, -1) {
		cols = append(cols, models.Column{Name: m[1], Type: m[2]})
	}
	return cols
}

// extractIndexes pulls index/key names out of a CREATE TABLE text. The
// primary key is reported under the reserved name PRIMARY.
func extractIndexes(definition string) []string {
	var names []string
	if primaryKeyLine.MatchString(definition) {
		names = append(names, "PRIMARY")
	}
	for _, m := range indexLinePattern.FindAllStringSubmatch(definition, -1) {
		names = append(names, m[1])
	}
	return names
}

// columnsOnlyIn returns columns of a whose names do not appear in b.
func columnsOnlyIn(a, b []models.Column) []models.Column {
	inB := make(map[string]bool, len(b))
	for _, col := range b {
		inB[col.Name] = true
	}
	var out []models.Column
	for _, col := range a {
		if !inB[col.Name] {
			out = append(out, col)
		}
	}
	return out
}

// namesOnlyIn returns names of a that do not appear in b.
func namesOnlyIn(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, n := range b {
		inB[n] = true
	}
	var out []string
	for _, n := range a {
		if !inB[n] {
			out = append(out, n)
		}
	}
	return out
}

// versionInfo converts a SchemaVersion into its diff-facing shape.
func versionInfo(v *models.SchemaVersion) *models.VersionInfo {
	return &models.VersionInfo{
		Version:    v.Version,
		Definition: v.Definition,
		CreatedAt:  v.CreatedAt,
		ExecutedBy: v.ExecutedBy,
	}
}
