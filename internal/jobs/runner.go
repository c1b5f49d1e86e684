package jobs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/clipsmith/clipsmith/internal/pipeline"
)

// Processor executes one edit pipeline. Satisfied by *pipeline.Orchestrator.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) *pipeline.Result
}

// Runner polls the queue for pending edits and executes them, holding at
// most maxConcurrent pipelines in flight.
type Runner struct {
	repo          Repository
	processor     Processor
	logger        *slog.Logger
	pollInterval  time.Duration
	maxConcurrent int64
	sem           *semaphore.Weighted
	running       atomic.Bool
	paused        atomic.Bool

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	wg sync.WaitGroup
}

func NewRunner(repo Repository, processor Processor, maxConcurrent int, logger *slog.Logger) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runner{
		repo:          repo,
		processor:     processor,
		logger:        logger,
		pollInterval:  2 * time.Second,
		maxConcurrent: int64(maxConcurrent),
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		cancels:       make(map[string]context.CancelFunc),
	}
}

// Start polls until ctx is cancelled, then waits for in-flight edits to
// unwind. In-flight pipelines observe the cancellation through their own
// job contexts, which are derived from ctx.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("edit runner started", "max_concurrent", r.maxConcurrent)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("edit runner stopping")
			r.wg.Wait()
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.dispatchPending(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("edit runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("edit runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// ActiveCount reports how many pipelines are currently in flight.
func (r *Runner) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// Cancel stops the running edit with the given id. Returns false when no
// such edit is in flight.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[id]
	if ok {
		cancel()
	}
	return ok
}

func (r *Runner) dispatchPending(ctx context.Context) {
	pending, err := r.repo.ListPendingEdits(ctx)
	if err != nil {
		r.logger.Error("failed to list pending edits", "error", err)
		return
	}

	for _, job := range pending {
		if !r.sem.TryAcquire(1) {
			return
		}

		jobCtx, cancel := context.WithCancel(ctx)
		r.mu.Lock()
		r.cancels[job.ID] = cancel
		r.mu.Unlock()

		// The claim is conditional on the job still being pending; a cancel
		// landing after the poll wins and the job is left alone.
		claimed, err := r.repo.MarkEditRunning(ctx, job.ID)
		if err != nil {
			r.logger.Error("failed to mark edit running", "job_id", job.ID, "error", err)
			r.release(job.ID, cancel)
			continue
		}
		if !claimed {
			r.logger.Info("edit no longer pending, skipping dispatch", "job_id", job.ID)
			r.release(job.ID, cancel)
			continue
		}

		r.wg.Add(1)
		go func(job *EditJob, jobCtx context.Context, cancel context.CancelFunc) {
			defer r.wg.Done()
			defer r.release(job.ID, cancel)
			r.runEdit(jobCtx, job)
		}(job, jobCtx, cancel)
	}
}

func (r *Runner) release(id string, cancel context.CancelFunc) {
	cancel()
	r.mu.Lock()
	delete(r.cancels, id)
	r.mu.Unlock()
	r.sem.Release(1)
}

func (r *Runner) runEdit(ctx context.Context, job *EditJob) {
	logger := r.logger.With("job_id", job.ID)
	logger.Info("processing edit", "input", job.InputPath)

	result := r.processor.Process(ctx, pipeline.Request{
		InputPath: job.InputPath,
		Spec:      job.Spec,
		OnStage: func(s pipeline.Stage) {
			// Stage writes use the background context so the final failed
			// stage still lands after cancellation.
			if err := r.repo.UpdateEditStage(context.Background(), job.ID, s); err != nil {
				logger.Warn("failed to record stage", "stage", string(s), "error", err)
			}
		},
	})

	// The job context is cancelled by now if Cancel was called; record
	// final state with a fresh context.
	bg := context.Background()

	if result.Success {
		if err := r.repo.CompleteEdit(bg, job.ID, result); err != nil {
			logger.Error("failed to record completed edit", "error", err)
			return
		}
		logger.Info("edit completed", "output", result.OutputPath)
		return
	}

	status := StatusFailed
	if result.ErrorKind == pipeline.ErrKindCancelled {
		status = StatusCancelled
	}
	if err := r.repo.UpdateEditStatus(bg, job.ID, status, result.Error, string(result.ErrorKind)); err != nil {
		logger.Error("failed to record failed edit", "error", err)
		return
	}
	logger.Warn("edit did not complete", "status", status, "kind", string(result.ErrorKind), "error", result.Error)
}
