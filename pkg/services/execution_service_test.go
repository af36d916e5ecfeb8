package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

type execFixture struct {
	svc      ExecutionService
	sess     *mockSession
	execRepo *mockExecutionRepo
	verRepo  *mockVersionRepo
	progress *mockProgressRepo
	target   *models.ConnectionTarget
}

func newExecFixture(sess *mockSession) *execFixture {
	f := &execFixture{
		sess:     sess,
		execRepo: &mockExecutionRepo{},
		verRepo: &mockVersionRepo{
			latestFunc: func(ctx context.Context, connectionID int64, table string) (*models.SchemaVersion, error) {
				return nil, errors.ErrVersionNotFound
			},
		},
		progress: newMockProgressRepo(),
		target:   &models.ConnectionTarget{ID: 1, Host: "db1", Port: 3306, Database: "app"},
	}

	logger := &mockLogger{}
	schema := NewSchemaService(f.verRepo, &mockTagRepo{}, logger, &mockMetrics{})
	connector := &mockConnector{
		connectFunc: func(ctx context.Context, target *models.ConnectionTarget, host, database string) (repositories.Session, error) {
			return f.sess, nil
		},
	}
	connections := &mockConnectionRepo{
		getFunc: func(ctx context.Context, id int64) (*models.ConnectionTarget, error) {
			if id != f.target.ID {
				return nil, errors.ErrConnectionNotFound
			}
			return f.target, nil
		},
	}

	f.svc = NewExecutionService(
		connections,
		f.execRepo,
		connector,
		schema,
		NewProgressService(f.progress, logger),
		NewStatementClassifier(),
		logger,
		&mockMetrics{},
		DefaultExecutionConfig(),
	)
	return f
}

func makeRows(n int) [][]interface{} {
	rows := make([][]interface{}, n)
	for i := range rows {
		rows[i] = []interface{}{int64(i)}
	}
	return rows
}

func TestExecuteSingleRejectsEmptyStatement(t *testing.T) {
	f := newExecFixture(&mockSession{})

	_, err := f.svc.ExecuteSingle(context.Background(), &models.ExecuteRequest{
		ConnectionID: 1, Statement: "   ", Actor: "alice",
	})
	assert.ErrorIs(t, err, errors.ErrEmptyStatement)
}

func TestExecuteSingleRequiresActor(t *testing.T) {
	f := newExecFixture(&mockSession{})

	_, err := f.svc.ExecuteSingle(context.Background(), &models.ExecuteRequest{
		ConnectionID: 1, Statement: "SELECT 1",
	})
	assert.ErrorIs(t, err, errors.ErrMissingActor)
}

func TestExecuteSingleSelectCapsStoredRows(t *testing.T) {
	sess := &mockSession{
		queryFunc: func(ctx context.Context, sql string, maxRows int) ([]string, [][]interface{}, error) {
			assert.Equal(t, 1000, maxRows)
			return []string{"id"}, makeRows(150), nil
		},
	}
	f := newExecFixture(sess)

	rec, err := f.svc.ExecuteSingle(context.Background(), &models.ExecuteRequest{
		ConnectionID: 1, Statement: "SELECT id FROM t", Actor: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, rec.Status)
	assert.True(t, rec.Committed)
	assert.Len(t, rec.ResultRows, 150, "caller sees everything fetched")
	assert.Equal(t, int64(150), rec.AffectedRows)

	require.Len(t, f.execRepo.created, 1)
	assert.Len(t, f.execRepo.created[0].ResultRows, 100, "stored snapshot is capped")
	assert.True(t, sess.closed)
}

func TestExecuteSingleFailureGoesIntoRecord(t *testing.T) {
	sess := &mockSession{
		execFunc: func(ctx context.Context, sql string) (int64, error) {
			return 0, errors.New(errors.CodeStatementFailed, "Duplicate entry '1' for key 'PRIMARY'")
		},
	}
	f := newExecFixture(sess)

	rec, err := f.svc.ExecuteSingle(context.Background(), &models.ExecuteRequest{
		ConnectionID: 1, Statement: "INSERT INTO t VALUES (1)", Actor: "alice",
	})
	require.NoError(t, err, "statement failures are reported via the record")

	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.False(t, rec.Committed)
	assert.Contains(t, rec.ErrorMessage, "Duplicate entry")
	assert.Len(t, f.execRepo.created, 1, "failed attempts are audited too")
	assert.True(t, sess.closed)
}

func TestExecuteSingleDDLRecordsVersion(t *testing.T) {
	sess := &mockSession{
		showCreateTableFunc: func(ctx context.Context, table string) (string, error) {
			return defV1, nil
		},
	}
	f := newExecFixture(sess)

	rec, err := f.svc.ExecuteSingle(context.Background(), &models.ExecuteRequest{
		ConnectionID: 1, Statement: "CREATE TABLE t (id INT)", Actor: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, models.KindDDL, rec.Kind)
	assert.Equal(t, defV1, rec.SchemaAfter)

	require.Len(t, f.verRepo.created, 1)
	assert.Equal(t, 1, f.verRepo.created[0].Version)
	assert.Equal(t, "t", f.verRepo.created[0].TableName)
	assert.Equal(t, "CREATE", f.verRepo.created[0].DDLType)
	require.NotNil(t, rec.SchemaVersionID)
	assert.Contains(t, f.execRepo.links, rec.ID)
}

func TestExecuteSingleDropTableSkipsVersion(t *testing.T) {
	var captures int
	sess := &mockSession{
		showCreateTableFunc: func(ctx context.Context, table string) (string, error) {
			captures++
			if captures == 1 {
				return defV1, nil
			}
			return "", errors.New(errors.CodeStatementFailed, "Table 'app.t' doesn't exist")
		},
	}
	f := newExecFixture(sess)

	rec, err := f.svc.ExecuteSingle(context.Background(), &models.ExecuteRequest{
		ConnectionID: 1, Statement: "DROP TABLE t", Actor: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, rec.Status)
	assert.Equal(t, defV1, rec.SchemaBefore)
	assert.Empty(t, rec.SchemaAfter, "the table is gone, so there is no post-image")
	assert.Empty(t, f.verRepo.created, "an empty definition must not become a version")
	assert.Nil(t, rec.SchemaVersionID)
}

func TestExecuteBatchDropTableSkipsVersion(t *testing.T) {
	var captures int
	sess := &mockSession{
		showCreateTableFunc: func(ctx context.Context, table string) (string, error) {
			captures++
			if captures == 1 {
				return defV1, nil
			}
			return "", errors.New(errors.CodeStatementFailed, "Table 'app.t' doesn't exist")
		},
	}
	f := newExecFixture(sess)

	outcome, err := f.svc.ExecuteBatch(context.Background(), &models.BatchRequest{
		ConnectionID: 1,
		Statements:   []string{"DROP TABLE t"},
		Actor:        "alice",
	})
	require.NoError(t, err)

	assert.True(t, outcome.Committed)
	assert.Equal(t, 1, outcome.Succeeded)
	assert.Empty(t, f.verRepo.created, "an empty definition must not become a version")
}

func TestExecuteBatchRollsBackOnFirstFailure(t *testing.T) {
	sess := &mockSession{
		execFunc: func(ctx context.Context, sql string) (int64, error) {
			if strings.Contains(sql, "boom") {
				return 0, errors.New(errors.CodeStatementFailed, "Unknown column 'boom'")
			}
			return 1, nil
		},
		showCreateTableFunc: func(ctx context.Context, table string) (string, error) {
			return defV1, nil
		},
	}
	f := newExecFixture(sess)

	outcome, err := f.svc.ExecuteBatch(context.Background(), &models.BatchRequest{
		ConnectionID: 1,
		Statements: []string{
			"ALTER TABLE t ADD COLUMN c INT",
			"UPDATE t SET c = boom WHERE id = 1",
			"INSERT INTO t (id) VALUES (3)",
		},
		Actor: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Failed)
	assert.False(t, outcome.Committed)
	assert.Contains(t, outcome.Error, "Unknown column")

	// statement 3 is never attempted
	assert.Len(t, sess.statements, 2)
	assert.Equal(t, 1, sess.rollbacks)
	assert.Equal(t, 0, sess.commits)

	// both attempts are audited, neither is marked committed
	require.Len(t, f.execRepo.created, 2)
	for _, rec := range f.execRepo.created {
		assert.False(t, rec.Committed)
	}

	// the rolled-back ALTER must not produce a schema version
	assert.Empty(t, f.verRepo.created)

	p, perr := f.progress.Get(context.Background(), outcome.BatchID)
	require.NoError(t, perr)
	assert.True(t, p.Finished)
	assert.Equal(t, 2, p.Done)
	assert.Equal(t, 1, p.Failed)
}

func TestExecuteBatchCommitsAndRecordsVersions(t *testing.T) {
	sess := &mockSession{
		showCreateTableFunc: func(ctx context.Context, table string) (string, error) {
			return defV2, nil
		},
	}
	f := newExecFixture(sess)

	outcome, err := f.svc.ExecuteBatch(context.Background(), &models.BatchRequest{
		ConnectionID: 1,
		Statements: []string{
			"INSERT INTO t (id) VALUES (1)",
			"ALTER TABLE t ADD COLUMN x VARCHAR(32)",
			"UPDATE t SET x = 'a' WHERE id = 1",
		},
		Actor: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.Succeeded)
	assert.Equal(t, 0, outcome.Failed)
	assert.True(t, outcome.Committed)
	assert.Equal(t, 1, sess.commits)
	assert.Equal(t, 0, sess.rollbacks)

	require.Len(t, outcome.Records, 3)
	for i, rec := range outcome.Records {
		assert.Equal(t, outcome.BatchID, rec.BatchID)
		assert.Equal(t, i, rec.BatchIndex)
		assert.True(t, rec.Committed)
	}
	require.Len(t, f.execRepo.created, 3)
	for _, rec := range f.execRepo.created {
		assert.True(t, rec.Committed)
	}

	// the committed ALTER produces exactly one version, linked to its record
	require.Len(t, f.verRepo.created, 1)
	assert.Equal(t, "t", f.verRepo.created[0].TableName)
	assert.Equal(t, "ALTER", f.verRepo.created[0].DDLType)
	assert.Len(t, f.execRepo.links, 1)
}

func TestExecuteBatchFansOutToAllHosts(t *testing.T) {
	sessions := map[string]*mockSession{
		"db1": {},
		"db2": {
			execFunc: func(ctx context.Context, sql string) (int64, error) {
				return 0, errors.New(errors.CodeStatementFailed, "Lock wait timeout exceeded")
			},
		},
	}
	f := newExecFixture(&mockSession{})
	f.target.Hosts = "db1\ndb2"

	connector := &mockConnector{
		connectFunc: func(ctx context.Context, target *models.ConnectionTarget, host, database string) (repositories.Session, error) {
			return sessions[host], nil
		},
	}
	logger := &mockLogger{}
	f.svc = NewExecutionService(
		&mockConnectionRepo{getFunc: func(ctx context.Context, id int64) (*models.ConnectionTarget, error) {
			return f.target, nil
		}},
		f.execRepo,
		connector,
		NewSchemaService(f.verRepo, &mockTagRepo{}, logger, &mockMetrics{}),
		NewProgressService(f.progress, logger),
		NewStatementClassifier(),
		logger,
		&mockMetrics{},
		DefaultExecutionConfig(),
	)

	outcome, err := f.svc.ExecuteBatch(context.Background(), &models.BatchRequest{
		ConnectionID: 1,
		Statements:   []string{"INSERT INTO t (id) VALUES (1)", "INSERT INTO t (id) VALUES (2)"},
		Actor:        "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, outcome.Total, "total counts statements per host")
	assert.Equal(t, 2, outcome.Succeeded, "db1 ran both statements")
	assert.Equal(t, 1, outcome.Failed, "db2 stopped at its first failure")
	assert.False(t, outcome.Committed, "one failing host makes the batch uncommitted")

	// hosts are independent: db1 commits even though db2 rolled back
	assert.Equal(t, 1, sessions["db1"].commits)
	assert.Equal(t, 1, sessions["db2"].rollbacks)
	assert.Equal(t, 0, sessions["db2"].commits)
	assert.True(t, sessions["db1"].closed)
	assert.True(t, sessions["db2"].closed)
}

func TestExecuteBatchAllHostsUnreachable(t *testing.T) {
	f := newExecFixture(&mockSession{})
	f.target.Hosts = "db1\ndb2"

	logger := &mockLogger{}
	f.svc = NewExecutionService(
		&mockConnectionRepo{getFunc: func(ctx context.Context, id int64) (*models.ConnectionTarget, error) {
			return f.target, nil
		}},
		f.execRepo,
		&mockConnector{connectFunc: func(ctx context.Context, target *models.ConnectionTarget, host, database string) (repositories.Session, error) {
			return nil, errors.ErrTargetUnreachable
		}},
		NewSchemaService(f.verRepo, &mockTagRepo{}, logger, &mockMetrics{}),
		NewProgressService(f.progress, logger),
		NewStatementClassifier(),
		logger,
		&mockMetrics{},
		DefaultExecutionConfig(),
	)

	_, err := f.svc.ExecuteBatch(context.Background(), &models.BatchRequest{
		ConnectionID: 1,
		Statements:   []string{"INSERT INTO t (id) VALUES (1)"},
		Actor:        "alice",
	})
	require.Error(t, err, "nothing ran anywhere, so the request itself failed")
	assert.True(t, errors.IsConnectionFailed(err))
	assert.Empty(t, f.execRepo.created)
}

func TestExecuteBatchPartialUnreachableReportsOutcome(t *testing.T) {
	sess := &mockSession{}
	f := newExecFixture(sess)
	f.target.Hosts = "db1\ndb2"

	logger := &mockLogger{}
	f.svc = NewExecutionService(
		&mockConnectionRepo{getFunc: func(ctx context.Context, id int64) (*models.ConnectionTarget, error) {
			return f.target, nil
		}},
		f.execRepo,
		&mockConnector{connectFunc: func(ctx context.Context, target *models.ConnectionTarget, host, database string) (repositories.Session, error) {
			if host == "db2" {
				return nil, errors.ErrTargetUnreachable
			}
			return sess, nil
		}},
		NewSchemaService(f.verRepo, &mockTagRepo{}, logger, &mockMetrics{}),
		NewProgressService(f.progress, logger),
		NewStatementClassifier(),
		logger,
		&mockMetrics{},
		DefaultExecutionConfig(),
	)

	outcome, err := f.svc.ExecuteBatch(context.Background(), &models.BatchRequest{
		ConnectionID: 1,
		Statements:   []string{"INSERT INTO t (id) VALUES (1)"},
		Actor:        "alice",
	})
	require.NoError(t, err, "one reachable host is enough for a per-host outcome")

	assert.Equal(t, 1, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Failed, "the unreachable host counts its statements as failed")
	assert.False(t, outcome.Committed)
	assert.Contains(t, outcome.Error, "unreachable")
	assert.Equal(t, 1, sess.commits)
}

// stoppedProgress reports a stop request on every check.
type stoppedProgress struct {
	ProgressService
}

func (s *stoppedProgress) StopRequested(ctx context.Context, batchID string) bool { return true }

func TestExecuteBatchHonorsStopRequest(t *testing.T) {
	sess := &mockSession{}
	f := newExecFixture(sess)
	logger := &mockLogger{}
	f.svc = NewExecutionService(
		&mockConnectionRepo{getFunc: func(ctx context.Context, id int64) (*models.ConnectionTarget, error) {
			return f.target, nil
		}},
		f.execRepo,
		&mockConnector{connectFunc: func(ctx context.Context, target *models.ConnectionTarget, host, database string) (repositories.Session, error) {
			return sess, nil
		}},
		NewSchemaService(f.verRepo, &mockTagRepo{}, logger, &mockMetrics{}),
		&stoppedProgress{NewProgressService(f.progress, logger)},
		NewStatementClassifier(),
		logger,
		&mockMetrics{},
		DefaultExecutionConfig(),
	)

	outcome, err := f.svc.ExecuteBatch(context.Background(), &models.BatchRequest{
		ConnectionID: 1,
		Statements:   []string{"INSERT INTO t (id) VALUES (1)"},
		Actor:        "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.Succeeded)
	assert.False(t, outcome.Committed)
	assert.Contains(t, outcome.Error, "stopped")
	assert.Empty(t, sess.statements, "no statement runs after a stop request")
	assert.Equal(t, 1, sess.rollbacks)
}

func TestExecuteBatchSplitsText(t *testing.T) {
	f := newExecFixture(&mockSession{})

	outcome, err := f.svc.ExecuteBatch(context.Background(), &models.BatchRequest{
		ConnectionID: 1,
		Text:         "INSERT INTO t VALUES ('a;b'); INSERT INTO t VALUES (2);",
		Actor:        "alice",
	})
	require.NoError(t, err)
	assert.Len(t, outcome.Records, 2)
	assert.Equal(t, "INSERT INTO t VALUES ('a;b')", outcome.Records[0].StatementText)
}

func TestExecuteBatchRejectsEmptyInput(t *testing.T) {
	f := newExecFixture(&mockSession{})

	_, err := f.svc.ExecuteBatch(context.Background(), &models.BatchRequest{
		ConnectionID: 1, Text: "  ;; ", Actor: "alice",
	})
	assert.ErrorIs(t, err, errors.ErrEmptyStatement)
}

func TestTestConnection(t *testing.T) {
	sess := &mockSession{}
	f := newExecFixture(sess)

	info, err := f.svc.TestConnection(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "8.0.36", info.Version)
	assert.Equal(t, []string{"app"}, info.Databases)
	assert.True(t, sess.closed)
}

func TestHistoryClampsLimit(t *testing.T) {
	var captured models.HistoryFilter
	f := newExecFixture(&mockSession{})
	f.execRepo.listFunc = func(ctx context.Context, filter models.HistoryFilter) ([]*models.ExecutionRecord, error) {
		captured = filter
		return nil, nil
	}

	_, err := f.svc.History(context.Background(), models.HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 100, captured.Limit)

	_, err = f.svc.History(context.Background(), models.HistoryFilter{Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, 1000, captured.Limit)
}
