package services

import (
	"context"
	"time"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// currentStatementMaxLen caps the statement preview stored with progress rows.
const currentStatementMaxLen = 500

// progressService implements ProgressService on top of the metadata store so
// that progress survives restarts and is visible to every worker.
type progressService struct {
	repo   repositories.ProgressRepository
	logger Logger
}

// NewProgressService creates a new progress service.
func NewProgressService(repo repositories.ProgressRepository, logger Logger) ProgressService {
	return &progressService{repo: repo, logger: logger}
}

func (s *progressService) Start(ctx context.Context, batchID string, connectionID int64, total int) error {
	now := time.Now()
	err := s.repo.Create(ctx, &models.BatchProgress{
		BatchID:      batchID,
		ConnectionID: connectionID,
		Total:        total,
		StartedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to start batch progress")
	}
	return nil
}

func (s *progressService) Advance(ctx context.Context, batchID string, done, failed int, current string) error {
	p, err := s.repo.Get(ctx, batchID)
	if err != nil {
		return err
	}
	p.Done = done
	p.Failed = failed
	p.CurrentStatement = truncate(current, currentStatementMaxLen)
	p.UpdatedAt = time.Now()
	return s.repo.Update(ctx, p)
}

func (s *progressService) Finish(ctx context.Context, batchID string) error {
	p, err := s.repo.Get(ctx, batchID)
	if err != nil {
		return err
	}
	p.Finished = true
	p.CurrentStatement = ""
	p.UpdatedAt = time.Now()
	return s.repo.Update(ctx, p)
}

func (s *progressService) Get(ctx context.Context, batchID string) (*models.BatchProgress, error) {
	return s.repo.Get(ctx, batchID)
}

func (s *progressService) RequestStop(ctx context.Context, batchID string) error {
	p, err := s.repo.Get(ctx, batchID)
	if err != nil {
		return err
	}
	if p.Finished {
		return errors.New(errors.CodeInvalidRequest, "batch already finished")
	}
	p.StopRequested = true
	p.UpdatedAt = time.Now()
	return s.repo.Update(ctx, p)
}

// StopRequested is called between statements in the batch loop. Lookup
// failures report false: a broken metadata store must not stop a running
// batch mid-transaction.
func (s *progressService) StopRequested(ctx context.Context, batchID string) bool {
	p, err := s.repo.Get(ctx, batchID)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Warn("Failed to read batch progress", "batch_id", batchID, "error", err)
		}
		return false
	}
	return p.StopRequested
}
