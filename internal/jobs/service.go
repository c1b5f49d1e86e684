package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/clipsmith/clipsmith/internal/edit"
	"github.com/clipsmith/clipsmith/internal/pipeline"
)

// Canceller stops a running edit. Satisfied by *Runner; wired after the
// runner is constructed.
type Canceller interface {
	Cancel(id string) bool
}

type EditService interface {
	SubmitEdit(ctx context.Context, inputPath string, spec edit.Spec) (*EditJob, error)
	GetEdit(ctx context.Context, id string) (*EditJob, error)
	ListEdits(ctx context.Context, limit int) ([]*EditJob, error)
	CancelEdit(ctx context.Context, id string) (*EditJob, error)
}

type Service struct {
	repo      Repository
	canceller Canceller
	logger    *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SetCanceller attaches the runner so running edits can be stopped.
func (s *Service) SetCanceller(c Canceller) {
	s.canceller = c
}

// SubmitEdit validates the request and queues it. Bad specs and missing
// inputs are rejected here rather than burning a pipeline slot.
func (s *Service) SubmitEdit(ctx context.Context, inputPath string, spec edit.Spec) (*EditJob, error) {
	absPath, err := filepath.Abs(inputPath)
	if err != nil {
		return nil, &edit.ValidationError{Field: "inputPath", Reason: err.Error()}
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, &edit.ValidationError{Field: "inputPath", Reason: "file not found"}
	}
	if info.IsDir() {
		return nil, &edit.ValidationError{Field: "inputPath", Reason: "path is a directory"}
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	job := &EditJob{
		ID:        NewID(),
		InputPath: absPath,
		Spec:      spec,
		Status:    StatusPending,
		Stage:     pipeline.StageIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateEdit(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("edit queued", "job_id", job.ID, "input", absPath)
	return job, nil
}

func (s *Service) GetEdit(ctx context.Context, id string) (*EditJob, error) {
	return s.repo.GetEdit(ctx, id)
}

func (s *Service) ListEdits(ctx context.Context, limit int) ([]*EditJob, error) {
	return s.repo.ListEdits(ctx, limit)
}

// CancelEdit stops a pending or running edit. Terminal jobs are left
// untouched and reported back as-is via the error.
func (s *Service) CancelEdit(ctx context.Context, id string) (*EditJob, error) {
	job, err := s.repo.GetEdit(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	if job.IsTerminal() {
		return job, fmt.Errorf("edit %s already %s", id, job.Status)
	}

	switch job.Status {
	case StatusPending:
		if err := s.repo.UpdateEditStatus(ctx, id, StatusCancelled, "cancelled before start", string(pipeline.ErrKindCancelled)); err != nil {
			return nil, err
		}
	case StatusRunning:
		if s.canceller == nil || !s.canceller.Cancel(id) {
			// Raced with completion; report current state.
			return s.repo.GetEdit(ctx, id)
		}
		// The runner records the cancelled status when the pipeline unwinds.
	}

	s.logger.Info("edit cancel requested", "job_id", id, "was", job.Status)
	return s.repo.GetEdit(ctx, id)
}
