package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// ExecutionConfig bounds result materialization. MaxResultRows caps what a
// SELECT fetches from the target; StoredRowCap caps what the audit record
// persists.
type ExecutionConfig struct {
	MaxResultRows int
	StoredRowCap  int
}

// DefaultExecutionConfig mirrors the server defaults.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{MaxResultRows: 1000, StoredRowCap: 100}
}

// executionService implements ExecutionService.
type executionService struct {
	connections repositories.ConnectionRepository
	executions  repositories.ExecutionRepository
	connector   repositories.TargetConnector
	schema      SchemaService
	progress    ProgressService
	classifier  *StatementClassifier
	logger      Logger
	metrics     MetricsCollector
	cfg         ExecutionConfig
}

// NewExecutionService creates a new execution service.
func NewExecutionService(
	connections repositories.ConnectionRepository,
	executions repositories.ExecutionRepository,
	connector repositories.TargetConnector,
	schema SchemaService,
	progress ProgressService,
	classifier *StatementClassifier,
	logger Logger,
	metrics MetricsCollector,
	cfg ExecutionConfig,
) ExecutionService {
	if cfg.MaxResultRows <= 0 {
		cfg.MaxResultRows = 1000
	}
	if cfg.StoredRowCap <= 0 {
		cfg.StoredRowCap = 100
	}
	return &executionService{
		connections: connections,
		executions:  executions,
		connector:   connector,
		schema:      schema,
		progress:    progress,
		classifier:  classifier,
		logger:      logger,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// ExecuteSingle runs one statement on the target's primary host in autocommit
// mode and persists exactly one record. A statement-level failure is reported
// through the record's Status, not through the error return; errors are
// reserved for request validation, lookup, and connectivity failures.
func (s *executionService) ExecuteSingle(ctx context.Context, req *models.ExecuteRequest) (*models.ExecutionRecord, error) {
	statement := strings.TrimSpace(req.Statement)
	if statement == "" {
		return nil, errors.ErrEmptyStatement
	}
	if strings.TrimSpace(req.Actor) == "" {
		return nil, errors.ErrMissingActor
	}

	target, err := s.connections.Get(ctx, req.ConnectionID)
	if err != nil {
		return nil, err
	}

	host := primaryHost(target)
	sess, err := s.connector.Connect(ctx, target, host, req.Database)
	if err != nil {
		s.metrics.IncrementCounter("target_connect_failures")
		return nil, err
	}
	defer sess.Close()

	rec := s.runStatement(ctx, sess, target.ID, host, statement, req.Actor, "", 0)
	if rec.Status == models.StatusSuccess {
		// autocommit: a successful standalone statement is durable on return
		rec.Committed = true
	}

	if err := s.persistRecord(ctx, rec); err != nil {
		return nil, err
	}

	// Only a non-empty post-image is versioned; a DROP leaves none behind.
	if rec.Kind == models.KindDDL && rec.Status == models.StatusSuccess && rec.SchemaAfter != "" {
		s.recordVersionFor(ctx, rec, req.Actor)
	}

	return rec, nil
}

// ExecuteBatch runs an ordered list of statements inside one transaction per
// host, fanning out to every host of a multi-server target concurrently. Each
// host is all-or-nothing: the first failing statement rolls back that host's
// transaction and later statements are not attempted there. Audit records are
// persisted for every attempted statement, rolled back or not; the Committed
// flag tells the two apart. Schema versions are recorded only after a
// successful commit. When every host refuses the connection the batch fails
// as a whole and the connectivity error is returned.
func (s *executionService) ExecuteBatch(ctx context.Context, req *models.BatchRequest) (*models.BatchOutcome, error) {
	statements := req.Statements
	if len(statements) == 0 {
		statements = SplitStatements(req.Text)
	}
	if len(statements) == 0 {
		return nil, errors.ErrEmptyStatement
	}
	if strings.TrimSpace(req.Actor) == "" {
		return nil, errors.ErrMissingActor
	}

	target, err := s.connections.Get(ctx, req.ConnectionID)
	if err != nil {
		return nil, err
	}

	hosts := target.HostList()
	if len(hosts) == 0 {
		return nil, errors.New(errors.CodeInvalidRequest, "connection target has no hosts")
	}

	batchID := uuid.NewString()
	total := len(statements) * len(hosts)
	if err := s.progress.Start(ctx, batchID, target.ID, total); err != nil {
		return nil, err
	}

	s.logger.Info("Starting batch execution",
		"batch_id", batchID,
		"connection_id", target.ID,
		"statements", len(statements),
		"hosts", len(hosts))

	tracker := &batchTracker{}
	results := make([]*hostBatchResult, len(hosts))

	var g errgroup.Group
	for i, host := range hosts {
		i, host := i, host
		g.Go(func() error {
			results[i] = s.runBatchOnHost(ctx, target, host, req.Database, batchID, statements, req.Actor, tracker)
			return nil
		})
	}
	// goroutines always return nil; failures live in the per-host results
	_ = g.Wait()

	if err := s.progress.Finish(ctx, batchID); err != nil {
		s.logger.Warn("Failed to finalize batch progress", "batch_id", batchID, "error", err)
	}

	// When no host was reachable at all, nothing ran; surface the connectivity
	// failure as a request-level error instead of an empty outcome.
	unreachable := 0
	for _, res := range results {
		if len(res.records) == 0 && errors.IsConnectionFailed(res.err) {
			unreachable++
		}
	}
	if unreachable == len(results) {
		return nil, results[0].err
	}

	outcome := &models.BatchOutcome{
		BatchID:   batchID,
		Total:     total,
		Committed: true,
	}
	for _, res := range results {
		outcome.Records = append(outcome.Records, res.records...)
		outcome.Succeeded += res.succeeded
		outcome.Failed += res.failed
		if !res.committed {
			outcome.Committed = false
		}
		if res.err != nil && outcome.Error == "" {
			outcome.Error = res.err.Error()
		}
	}

	if outcome.Committed {
		s.metrics.IncrementCounter("batches_committed")
	} else {
		s.metrics.IncrementCounter("batches_rolled_back")
	}
	s.logger.Info("Batch execution finished",
		"batch_id", batchID,
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
		"committed", outcome.Committed)

	return outcome, nil
}

type hostBatchResult struct {
	records   []*models.ExecutionRecord
	succeeded int
	failed    int
	committed bool
	err       error
}

// batchTracker aggregates progress counters across concurrent host runs.
type batchTracker struct {
	mu     sync.Mutex
	done   int
	failed int
}

func (t *batchTracker) advance(failed bool) (done, failedTotal int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	if failed {
		t.failed++
	}
	return t.done, t.failed
}

// runBatchOnHost executes the full statement list transactionally on one host.
func (s *executionService) runBatchOnHost(
	ctx context.Context,
	target *models.ConnectionTarget,
	host, database, batchID string,
	statements []string,
	actor string,
	tracker *batchTracker,
) *hostBatchResult {
	res := &hostBatchResult{}

	sess, err := s.connector.Connect(ctx, target, host, database)
	if err != nil {
		s.metrics.IncrementCounter("target_connect_failures")
		res.err = err
		res.failed = len(statements)
		return res
	}
	defer sess.Close()

	if err := sess.Begin(ctx); err != nil {
		res.err = errors.Wrap(err, errors.CodeTransactionFailed, "failed to begin transaction")
		res.failed = len(statements)
		return res
	}

	type pendingVersion struct {
		rec  *models.ExecutionRecord
		meta models.VersionMeta
	}
	var pending []pendingVersion
	rolledBack := false

	for idx, raw := range statements {
		statement := strings.TrimSpace(raw)
		if statement == "" {
			continue
		}

		if s.progress.StopRequested(ctx, batchID) {
			s.logger.Warn("Batch stop requested, rolling back",
				"batch_id", batchID, "host", host, "at_index", idx)
			_ = sess.Rollback()
			rolledBack = true
			res.err = errors.New(errors.CodeTransactionFailed, "batch stopped by request")
			break
		}

		rec := s.runStatement(ctx, sess, target.ID, host, statement, actor, batchID, idx)

		done, failedTotal := tracker.advance(rec.Status == models.StatusFailed)
		if err := s.progress.Advance(ctx, batchID, done, failedTotal, statement); err != nil {
			s.logger.Warn("Failed to update batch progress", "batch_id", batchID, "error", err)
		}

		res.records = append(res.records, rec)

		if rec.Status == models.StatusFailed {
			res.failed++
			_ = sess.Rollback()
			rolledBack = true
			res.err = errors.New(errors.CodeStatementFailed, rec.ErrorMessage).
				WithDetail("statement_index", idx).
				WithDetail("host", host)
			break
		}

		res.succeeded++
		// DDL with an empty post-image (a DROP, typically) records no version.
		if table := s.classifier.ExtractTable(statement); rec.Kind == models.KindDDL && table != "" && rec.SchemaAfter != "" {
			pending = append(pending, pendingVersion{
				rec: rec,
				meta: models.VersionMeta{
					ConnectionID:    target.ID,
					Table:           table,
					Definition:      rec.SchemaAfter,
					PriorDefinition: rec.SchemaBefore,
					Actor:           actor,
					DDLType:         leadingVerb(statement),
				},
			})
		}
	}

	if !rolledBack {
		if err := sess.Commit(); err != nil {
			_ = sess.Rollback()
			res.err = errors.Wrap(err, errors.CodeTransactionFailed, "failed to commit batch")
		} else {
			res.committed = true
			for _, rec := range res.records {
				rec.Committed = true
			}
		}
	}

	// Audit records are persisted whether or not the transaction survived.
	for _, rec := range res.records {
		if err := s.persistRecord(ctx, rec); err != nil {
			s.logger.Error("Failed to persist execution record",
				"batch_id", batchID, "host", host, "error", err)
		}
	}

	// Versions describe durable schema state, so they are recorded only after
	// a successful commit.
	if res.committed {
		for _, pv := range pending {
			pv.meta.ExecutionID = idPtr(pv.rec.ID)
			version, err := s.schema.RecordVersion(ctx, pv.meta)
			if err != nil {
				s.logger.Error("Failed to record schema version",
					"batch_id", batchID, "table", pv.meta.Table, "error", err)
				continue
			}
			if version != nil {
				s.linkVersion(ctx, pv.rec, version)
			}
		}
	}

	return res
}

// runStatement executes one statement on an open session and builds its audit
// record. It never returns an error; failures are captured in the record.
func (s *executionService) runStatement(
	ctx context.Context,
	sess repositories.Session,
	connectionID int64,
	host, statement, actor, batchID string,
	batchIndex int,
) *models.ExecutionRecord {
	kind := s.classifier.DetectKind(statement)
	rec := &models.ExecutionRecord{
		ConnectionID:  connectionID,
		Host:          host,
		StatementText: statement,
		Kind:          kind,
		ExecutedBy:    actor,
		ExecutedAt:    time.Now(),
		BatchID:       batchID,
		BatchIndex:    batchIndex,
	}

	if kind == models.KindDDL {
		if table := s.classifier.ExtractTable(statement); table != "" {
			rec.SchemaBefore = s.schema.Capture(ctx, sess, table)
		}
	}

	timer := s.metrics.StartTimer("statement_execution")
	var execErr error
	if kind == models.KindSelect {
		columns, rows, err := sess.Query(ctx, statement, s.cfg.MaxResultRows)
		execErr = err
		if err == nil {
			rec.ResultColumns = columns
			rec.ResultRows = rows
			rec.AffectedRows = int64(len(rows))
		}
	} else {
		rec.AffectedRows, execErr = sess.Exec(ctx, statement)
	}
	rec.Duration = timer.Stop()

	if execErr != nil {
		rec.Status = models.StatusFailed
		rec.ErrorMessage = execErr.Error()
		s.metrics.IncrementCounter("statements_failed", "kind", kind.String())
		s.logger.Warn("Statement failed",
			"kind", kind.String(), "host", host, "error", execErr)
		return rec
	}

	rec.Status = models.StatusSuccess
	s.metrics.IncrementCounter("statements_executed", "kind", kind.String())
	s.metrics.RecordHistogram("statement_duration_seconds", rec.Duration.Seconds(), "kind", kind.String())

	if kind == models.KindDDL {
		if table := s.classifier.ExtractTable(statement); table != "" {
			rec.SchemaAfter = s.schema.Capture(ctx, sess, table)
		}
	}

	return rec
}

// persistRecord writes the audit record, capping the stored result snapshot.
// The in-memory record keeps the full fetched rows for the response.
func (s *executionService) persistRecord(ctx context.Context, rec *models.ExecutionRecord) error {
	stored := *rec
	if len(stored.ResultRows) > s.cfg.StoredRowCap {
		stored.ResultRows = stored.ResultRows[:s.cfg.StoredRowCap]
	}
	id, err := s.executions.Create(ctx, &stored)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to persist execution record")
	}
	rec.ID = id
	return nil
}

// recordVersionFor captures a schema version for a committed DDL execution and
// links it back to the record. Version recording failures are logged, never
// raised: the execution already succeeded.
func (s *executionService) recordVersionFor(ctx context.Context, rec *models.ExecutionRecord, actor string) {
	table := s.classifier.ExtractTable(rec.StatementText)
	if table == "" {
		return
	}
	version, err := s.schema.RecordVersion(ctx, models.VersionMeta{
		ConnectionID:    rec.ConnectionID,
		Table:           table,
		Definition:      rec.SchemaAfter,
		PriorDefinition: rec.SchemaBefore,
		Actor:           actor,
		DDLType:         leadingVerb(rec.StatementText),
		ExecutionID:     idPtr(rec.ID),
	})
	if err != nil {
		s.logger.Error("Failed to record schema version", "table", table, "error", err)
		return
	}
	if version != nil {
		s.linkVersion(ctx, rec, version)
	}
}

func (s *executionService) linkVersion(ctx context.Context, rec *models.ExecutionRecord, version *models.SchemaVersion) {
	if err := s.executions.LinkSchemaVersion(ctx, rec.ID, version.ID); err != nil {
		s.logger.Warn("Failed to link schema version to execution",
			"execution_id", rec.ID, "version_id", version.ID, "error", err)
		return
	}
	rec.SchemaVersionID = idPtr(version.ID)
}

// TestConnection opens a session on the primary host and reads server info.
func (s *executionService) TestConnection(ctx context.Context, connectionID int64) (*models.ServerInfo, error) {
	target, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	sess, err := s.connector.Connect(ctx, target, primaryHost(target), "")
	if err != nil {
		s.metrics.IncrementCounter("target_connect_failures")
		return nil, err
	}
	defer sess.Close()

	version, err := sess.ServerVersion(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to read server version")
	}
	databases, err := sess.Databases(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to list databases")
	}

	return &models.ServerInfo{Version: version, Databases: databases}, nil
}

// ListDatabases lists databases on the target.
func (s *executionService) ListDatabases(ctx context.Context, connectionID int64) ([]string, error) {
	target, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	sess, err := s.connector.Connect(ctx, target, primaryHost(target), "")
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return sess.Databases(ctx)
}

// ListTables lists tables in the target's current database.
func (s *executionService) ListTables(ctx context.Context, connectionID int64) ([]string, error) {
	target, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	sess, err := s.connector.Connect(ctx, target, primaryHost(target), "")
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return sess.Tables(ctx)
}

// TableSchema returns the live definition of a table.
func (s *executionService) TableSchema(ctx context.Context, connectionID int64, table string) (string, error) {
	target, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return "", err
	}
	sess, err := s.connector.Connect(ctx, target, primaryHost(target), "")
	if err != nil {
		return "", err
	}
	defer sess.Close()

	def, err := sess.ShowCreateTable(ctx, table)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeStatementFailed, "failed to read schema of %s", table)
	}
	return def, nil
}

// History returns filtered execution records.
func (s *executionService) History(ctx context.Context, filter models.HistoryFilter) ([]*models.ExecutionRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return s.executions.List(ctx, filter)
}

// primaryHost picks the first host of the target's list.
func primaryHost(target *models.ConnectionTarget) string {
	hosts := target.HostList()
	if len(hosts) > 0 {
		return hosts[0]
	}
	return target.Host
}

// leadingVerb returns the uppercased first word of a statement.
func leadingVerb(statement string) string {
	fields := strings.Fields(strings.TrimSpace(statement))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func idPtr(id int64) *int64 {
	return &id
}
