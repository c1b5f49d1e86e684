// Package jobs tracks edit requests through the sqlite-backed queue and
// runs them against the pipeline with bounded concurrency.
package jobs

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/clipsmith/clipsmith/internal/edit"
	"github.com/clipsmith/clipsmith/internal/pipeline"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// EditJob is one queued edit request and its lifecycle state. Result is
// populated only for completed jobs.
type EditJob struct {
	ID         string           `json:"id"`
	InputPath  string           `json:"input_path"`
	Spec       edit.Spec        `json:"spec"`
	Status     string           `json:"status"`
	Stage      pipeline.Stage   `json:"stage"`
	OutputPath string           `json:"output_path,omitempty"`
	Result     *pipeline.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  string           `json:"error_kind,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// IsTerminal reports whether the job can no longer change state.
func (j *EditJob) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
