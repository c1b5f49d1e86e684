package api

import (
	"time"

	"github.com/clipsmith/clipsmith/internal/edit"
	"github.com/clipsmith/clipsmith/internal/ffmpeg"
	"github.com/clipsmith/clipsmith/internal/jobs"
	"github.com/clipsmith/clipsmith/internal/pipeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State        string        `json:"state"`
	EditsRunning int           `json:"edits_running"`
	EditsPending int           `json:"edits_pending"`
	LastError    string        `json:"last_error,omitempty"`
	ActiveEdit   *EditResponse `json:"active_edit,omitempty"`
}

// SubmitEditRequest queues an edit. Operations uses the wire spec names:
// trimStart, trimEnd, cuts, filters.
type SubmitEditRequest struct {
	InputPath  string    `json:"inputPath"`
	Operations edit.Spec `json:"operations"`
}

type EditResponse struct {
	ID         string           `json:"id"`
	InputPath  string           `json:"input_path"`
	Status     string           `json:"status"`
	Stage      string           `json:"stage"`
	OutputPath string           `json:"output_path,omitempty"`
	Result     *pipeline.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  string           `json:"error_kind,omitempty"`
	CreatedAt  string           `json:"created_at"`
	UpdatedAt  string           `json:"updated_at"`
}

type EditsResponse struct {
	Edits []EditResponse `json:"edits"`
}

type ProbeRequest struct {
	Path string `json:"path"`
}

type ProbeResponse struct {
	Path string            `json:"path"`
	Info *ffmpeg.MediaInfo `json:"info"`
}

type ThumbnailRequest struct {
	Path      string  `json:"path"`
	Timestamp float64 `json:"timestamp"`
}

type ThumbnailResponse struct {
	OutputPath string `json:"output_path"`
}

type AudioRequest struct {
	Path string `json:"path"`
}

type AudioResponse struct {
	OutputPath string `json:"output_path"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func EditToResponse(j *jobs.EditJob) EditResponse {
	return EditResponse{
		ID:         j.ID,
		InputPath:  j.InputPath,
		Status:     j.Status,
		Stage:      string(j.Stage),
		OutputPath: j.OutputPath,
		Result:     j.Result,
		Error:      j.Error,
		ErrorKind:  j.ErrorKind,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}
