package pipeline

import (
	"github.com/clipsmith/clipsmith/internal/edit"
	"github.com/clipsmith/clipsmith/internal/ffmpeg"
)

// Stage names one step of the edit pipeline state machine.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageTrimming        Stage = "trimming"
	StageCuttingSegments Stage = "cutting_segments"
	StageApplyingFilters Stage = "applying_filters"
	StageFinalizing      Stage = "finalizing"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

// TrimWindow echoes the requested trim back to the caller.
type TrimWindow struct {
	Start float64  `json:"start"`
	End   *float64 `json:"end"`
}

// AppliedOperations records what the pipeline was asked to do, echoed in
// the result for the caller's records.
type AppliedOperations struct {
	Trim    TrimWindow      `json:"trim"`
	Cuts    []edit.Interval `json:"cuts"`
	Filters edit.FilterList `json:"filters"`
}

// Result is the terminal outcome of one pipeline run. Exactly one of
// (Success with OutputPath/VideoInfo) or (Error/ErrorKind) is populated.
type Result struct {
	Success    bool               `json:"success"`
	OutputPath string             `json:"output_path,omitempty"`
	VideoInfo  *ffmpeg.MediaInfo  `json:"video_info,omitempty"`
	Applied    *AppliedOperations `json:"applied_operations,omitempty"`
	Segments   []edit.Segment     `json:"segments,omitempty"`
	ErrorKind  ErrorKind          `json:"error_kind,omitempty"`
	Error      string             `json:"error,omitempty"`
}
