package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querypilot/querypilot/pkg/errors"
)

func TestProgressLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMockProgressRepo()
	svc := NewProgressService(repo, &mockLogger{})

	require.NoError(t, svc.Start(ctx, "b1", 1, 3))

	p, err := svc.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 0, p.Done)
	assert.False(t, p.Finished)

	require.NoError(t, svc.Advance(ctx, "b1", 2, 1, "UPDATE t SET a = 1"))
	p, err = svc.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Done)
	assert.Equal(t, 1, p.Failed)
	assert.Equal(t, "UPDATE t SET a = 1", p.CurrentStatement)

	require.NoError(t, svc.Finish(ctx, "b1"))
	p, err = svc.Get(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, p.Finished)
	assert.Empty(t, p.CurrentStatement)
}

func TestProgressAdvanceTruncatesStatement(t *testing.T) {
	ctx := context.Background()
	repo := newMockProgressRepo()
	svc := NewProgressService(repo, &mockLogger{})

	require.NoError(t, svc.Start(ctx, "b1", 1, 1))
	require.NoError(t, svc.Advance(ctx, "b1", 1, 0, strings.Repeat("a", 2000)))

	p, err := svc.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, p.CurrentStatement, currentStatementMaxLen)
}

func TestRequestStop(t *testing.T) {
	ctx := context.Background()
	repo := newMockProgressRepo()
	svc := NewProgressService(repo, &mockLogger{})

	require.NoError(t, svc.Start(ctx, "b1", 1, 2))
	assert.False(t, svc.StopRequested(ctx, "b1"))

	require.NoError(t, svc.RequestStop(ctx, "b1"))
	assert.True(t, svc.StopRequested(ctx, "b1"))
}

func TestRequestStopAfterFinish(t *testing.T) {
	ctx := context.Background()
	repo := newMockProgressRepo()
	svc := NewProgressService(repo, &mockLogger{})

	require.NoError(t, svc.Start(ctx, "b1", 1, 1))
	require.NoError(t, svc.Finish(ctx, "b1"))

	err := svc.RequestStop(ctx, "b1")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
}

func TestStopRequestedUnknownBatch(t *testing.T) {
	svc := NewProgressService(newMockProgressRepo(), &mockLogger{})
	assert.False(t, svc.StopRequested(context.Background(), "missing"))
}
