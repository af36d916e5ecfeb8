package services

import (
	"context"
	"sync"
	"time"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// mockLogger implements Logger
type mockLogger struct {
	debugFunc func(msg string, keysAndValues ...interface{})
	infoFunc  func(msg string, keysAndValues ...interface{})
	warnFunc  func(msg string, keysAndValues ...interface{})
	errorFunc func(msg string, keysAndValues ...interface{})
}

func (m *mockLogger) Debug(msg string, keysAndValues ...interface{}) {
	if m.debugFunc != nil {
		m.debugFunc(msg, keysAndValues...)
	}
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	if m.infoFunc != nil {
		m.infoFunc(msg, keysAndValues...)
	}
}

func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	if m.warnFunc != nil {
		m.warnFunc(msg, keysAndValues...)
	}
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	if m.errorFunc != nil {
		m.errorFunc(msg, keysAndValues...)
	}
}

// mockMetrics implements MetricsCollector
type mockMetrics struct {
	counters []string
}

func (m *mockMetrics) IncrementCounter(name string, labels ...string) {
	m.counters = append(m.counters, name)
}

func (m *mockMetrics) RecordHistogram(name string, value float64, labels ...string) {}

func (m *mockMetrics) RecordGauge(name string, value float64, labels ...string) {}

func (m *mockMetrics) StartTimer(name string) Timer {
	return &mockTimer{start: time.Now()}
}

type mockTimer struct {
	start time.Time
}

func (t *mockTimer) Stop() time.Duration {
	return time.Since(t.start)
}

// mockSession implements repositories.Session
type mockSession struct {
	queryFunc           func(ctx context.Context, sql string, maxRows int) ([]string, [][]interface{}, error)
	execFunc            func(ctx context.Context, sql string) (int64, error)
	beginFunc           func(ctx context.Context) error
	commitFunc          func() error
	rollbackFunc        func() error
	closeFunc           func() error
	showCreateTableFunc func(ctx context.Context, table string) (string, error)
	prepareCheckFunc    func(ctx context.Context, sql string) error
	explainFunc         func(ctx context.Context, sql string) error
	tableExistsFunc     func(ctx context.Context, table string) (bool, error)
	serverVersionFunc   func(ctx context.Context) (string, error)
	databasesFunc       func(ctx context.Context) ([]string, error)
	tablesFunc          func(ctx context.Context) ([]string, error)

	closed     bool
	began      int
	commits    int
	rollbacks  int
	statements []string
}

func (m *mockSession) Query(ctx context.Context, sql string, maxRows int) ([]string, [][]interface{}, error) {
	m.statements = append(m.statements, sql)
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, maxRows)
	}
	return nil, nil, nil
}

func (m *mockSession) Exec(ctx context.Context, sql string) (int64, error) {
	m.statements = append(m.statements, sql)
	if m.execFunc != nil {
		return m.execFunc(ctx, sql)
	}
	return 0, nil
}

func (m *mockSession) Begin(ctx context.Context) error {
	m.began++
	if m.beginFunc != nil {
		return m.beginFunc(ctx)
	}
	return nil
}

func (m *mockSession) Commit() error {
	m.commits++
	if m.commitFunc != nil {
		return m.commitFunc()
	}
	return nil
}

func (m *mockSession) Rollback() error {
	m.rollbacks++
	if m.rollbackFunc != nil {
		return m.rollbackFunc()
	}
	return nil
}

func (m *mockSession) Close() error {
	m.closed = true
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockSession) ShowCreateTable(ctx context.Context, table string) (string, error) {
	if m.showCreateTableFunc != nil {
		return m.showCreateTableFunc(ctx, table)
	}
	return "", nil
}

func (m *mockSession) PrepareCheck(ctx context.Context, sql string) error {
	if m.prepareCheckFunc != nil {
		return m.prepareCheckFunc(ctx, sql)
	}
	return nil
}

func (m *mockSession) Explain(ctx context.Context, sql string) error {
	if m.explainFunc != nil {
		return m.explainFunc(ctx, sql)
	}
	return nil
}

func (m *mockSession) TableExists(ctx context.Context, table string) (bool, error) {
	if m.tableExistsFunc != nil {
		return m.tableExistsFunc(ctx, table)
	}
	return true, nil
}

func (m *mockSession) ServerVersion(ctx context.Context) (string, error) {
	if m.serverVersionFunc != nil {
		return m.serverVersionFunc(ctx)
	}
	return "8.0.36", nil
}

func (m *mockSession) Databases(ctx context.Context) ([]string, error) {
	if m.databasesFunc != nil {
		return m.databasesFunc(ctx)
	}
	return []string{"app"}, nil
}

func (m *mockSession) Tables(ctx context.Context) ([]string, error) {
	if m.tablesFunc != nil {
		return m.tablesFunc(ctx)
	}
	return nil, nil
}

// mockConnector implements repositories.TargetConnector
type mockConnector struct {
	connectFunc func(ctx context.Context, target *models.ConnectionTarget, host, database string) (repositories.Session, error)
}

func (m *mockConnector) Connect(ctx context.Context, target *models.ConnectionTarget, host, database string) (repositories.Session, error) {
	return m.connectFunc(ctx, target, host, database)
}

// mockConnectionRepo implements repositories.ConnectionRepository
type mockConnectionRepo struct {
	getFunc func(ctx context.Context, id int64) (*models.ConnectionTarget, error)
}

func (m *mockConnectionRepo) Create(ctx context.Context, target *models.ConnectionTarget) (int64, error) {
	return 0, nil
}

func (m *mockConnectionRepo) Get(ctx context.Context, id int64) (*models.ConnectionTarget, error) {
	return m.getFunc(ctx, id)
}

func (m *mockConnectionRepo) List(ctx context.Context) ([]*models.ConnectionTarget, error) {
	return nil, nil
}

func (m *mockConnectionRepo) Delete(ctx context.Context, id int64) error {
	return nil
}

// mockExecutionRepo implements repositories.ExecutionRepository. Mutex-guarded
// because batch execution persists from one goroutine per host.
type mockExecutionRepo struct {
	mu       sync.Mutex
	created  []*models.ExecutionRecord
	links    map[int64]int64
	listFunc func(ctx context.Context, filter models.HistoryFilter) ([]*models.ExecutionRecord, error)
}

func (m *mockExecutionRepo) Create(ctx context.Context, rec *models.ExecutionRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *rec
	m.created = append(m.created, &copied)
	return int64(len(m.created)), nil
}

func (m *mockExecutionRepo) Get(ctx context.Context, id int64) (*models.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created[id-1], nil
}

func (m *mockExecutionRepo) List(ctx context.Context, filter models.HistoryFilter) ([]*models.ExecutionRecord, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockExecutionRepo) LinkSchemaVersion(ctx context.Context, executionID, versionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = make(map[int64]int64)
	}
	m.links[executionID] = versionID
	return nil
}

// mockVersionRepo implements repositories.SchemaVersionRepository
type mockVersionRepo struct {
	createFunc   func(ctx context.Context, v *models.SchemaVersion) (int64, error)
	byIDFunc     func(ctx context.Context, id int64) (*models.SchemaVersion, error)
	latestFunc   func(ctx context.Context, connectionID int64, table string) (*models.SchemaVersion, error)
	byNumberFunc func(ctx context.Context, connectionID int64, table string, version int) (*models.SchemaVersion, error)
	previousFunc func(ctx context.Context, connectionID int64, table string, version int) (*models.SchemaVersion, error)
	listFunc     func(ctx context.Context, connectionID int64, table string) ([]*models.SchemaVersion, error)
	tablesFunc   func(ctx context.Context, connectionID int64) ([]string, error)

	mu      sync.Mutex
	created []*models.SchemaVersion
}

func (m *mockVersionRepo) Create(ctx context.Context, v *models.SchemaVersion) (int64, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, v)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *v
	m.created = append(m.created, &copied)
	return int64(len(m.created)), nil
}

func (m *mockVersionRepo) ByID(ctx context.Context, id int64) (*models.SchemaVersion, error) {
	return m.byIDFunc(ctx, id)
}

func (m *mockVersionRepo) Latest(ctx context.Context, connectionID int64, table string) (*models.SchemaVersion, error) {
	return m.latestFunc(ctx, connectionID, table)
}

func (m *mockVersionRepo) ByNumber(ctx context.Context, connectionID int64, table string, version int) (*models.SchemaVersion, error) {
	return m.byNumberFunc(ctx, connectionID, table, version)
}

func (m *mockVersionRepo) Previous(ctx context.Context, connectionID int64, table string, version int) (*models.SchemaVersion, error) {
	return m.previousFunc(ctx, connectionID, table, version)
}

func (m *mockVersionRepo) List(ctx context.Context, connectionID int64, table string) ([]*models.SchemaVersion, error) {
	return m.listFunc(ctx, connectionID, table)
}

func (m *mockVersionRepo) Tables(ctx context.Context, connectionID int64) ([]string, error) {
	return m.tablesFunc(ctx, connectionID)
}

// mockTagRepo implements repositories.TagRepository
type mockTagRepo struct {
	created []*models.SchemaVersionTag
	deleted [][2]int64
}

func (m *mockTagRepo) Create(ctx context.Context, tag *models.SchemaVersionTag) (int64, error) {
	copied := *tag
	m.created = append(m.created, &copied)
	return int64(len(m.created)), nil
}

func (m *mockTagRepo) Delete(ctx context.Context, versionID, tagID int64) error {
	m.deleted = append(m.deleted, [2]int64{versionID, tagID})
	return nil
}

func (m *mockTagRepo) ListForVersion(ctx context.Context, versionID int64) ([]*models.SchemaVersionTag, error) {
	return m.created, nil
}

// mockProgressRepo implements repositories.ProgressRepository backed by a map.
// Mutex-guarded for concurrent batch hosts.
type mockProgressRepo struct {
	mu      sync.Mutex
	entries map[string]*models.BatchProgress
}

func newMockProgressRepo() *mockProgressRepo {
	return &mockProgressRepo{entries: make(map[string]*models.BatchProgress)}
}

func (m *mockProgressRepo) Create(ctx context.Context, p *models.BatchProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *p
	m.entries[p.BatchID] = &copied
	return nil
}

func (m *mockProgressRepo) Update(ctx context.Context, p *models.BatchProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *p
	m.entries[p.BatchID] = &copied
	return nil
}

func (m *mockProgressRepo) Get(ctx context.Context, batchID string) (*models.BatchProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[batchID]
	if !ok {
		return nil, errors.ErrBatchNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockProgressRepo) Delete(ctx context.Context, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, batchID)
	return nil
}
