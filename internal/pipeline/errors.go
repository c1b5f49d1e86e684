package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipsmith/clipsmith/internal/edit"
	"github.com/clipsmith/clipsmith/internal/ffmpeg"
)

// ErrEmptyResult means the merged cuts cover the entire trim window and
// there is nothing left to output.
var ErrEmptyResult = errors.New("cuts remove the entire selection, nothing to output")

// ResourceError reports a filesystem failure while managing pipeline
// artifacts (temp files, output paths).
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("cannot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// ErrorKind distinguishes the failure classes a pipeline run can surface,
// so callers can tell bad input from tool failure from environment failure.
type ErrorKind string

const (
	ErrKindValidation  ErrorKind = "validation"
	ErrKindTool        ErrorKind = "tool"
	ErrKindResource    ErrorKind = "resource"
	ErrKindEmptyResult ErrorKind = "empty_result"
	ErrKindCancelled   ErrorKind = "cancelled"
)

// Classify maps an error from any pipeline stage onto its kind.
func Classify(err error) ErrorKind {
	var verr *edit.ValidationError
	if errors.As(err, &verr) {
		return ErrKindValidation
	}
	if errors.Is(err, ErrEmptyResult) {
		return ErrKindEmptyResult
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrKindCancelled
	}
	var terr *ffmpeg.ToolError
	if errors.As(err, &terr) {
		return ErrKindTool
	}
	var rerr *ResourceError
	if errors.As(err, &rerr) {
		return ErrKindResource
	}
	// Unclassified filesystem or wiring failures count as environment.
	return ErrKindResource
}
