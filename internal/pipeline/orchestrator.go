// Package pipeline sequences the stages of one video edit: trim, cut
// removal, filter application, finalization. Each stage drives the external
// tool through the injected invoker; intermediate artifacts are owned by the
// run and removed on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/clipsmith/clipsmith/internal/edit"
	"github.com/clipsmith/clipsmith/internal/ffmpeg"
)

// Prober inspects a media file. Satisfied by *ffmpeg.Prober.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// Orchestrator executes edit pipelines. It holds no per-request state;
// concurrent Process calls are independent.
type Orchestrator struct {
	invoker      ffmpeg.Invoker
	prober       Prober
	tempDir      string
	outputDir    string
	stageTimeout time.Duration // per tool invocation; 0 disables
	logger       *slog.Logger
}

func New(invoker ffmpeg.Invoker, prober Prober, tempDir, outputDir string, stageTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		invoker:      invoker,
		prober:       prober,
		tempDir:      tempDir,
		outputDir:    outputDir,
		stageTimeout: stageTimeout,
		logger:       logger,
	}
}

// Request describes one edit to execute.
type Request struct {
	InputPath  string
	Spec       edit.Spec
	OutputPath string      // generated under the output dir when empty
	OnStage    func(Stage) // optional stage observer
}

// Process runs the full pipeline for one request. The returned Result is
// always non-nil; failures are reported in it rather than panicking, and
// no intermediate artifact or partial output survives a failed run.
func (o *Orchestrator) Process(ctx context.Context, req Request) *Result {
	r := &run{
		orch: o,
		req:  req,
		applied: &AppliedOperations{
			Trim:    TrimWindow{Start: req.Spec.TrimStart, End: req.Spec.TrimEnd},
			Cuts:    req.Spec.Cuts,
			Filters: req.Spec.Filters,
		},
	}
	defer r.cleanup()

	result := r.execute(ctx)

	if result.Success {
		o.logger.Info("edit pipeline completed",
			"input", req.InputPath,
			"output", result.OutputPath,
			"segments", len(result.Segments),
		)
	}
	return result
}

// run carries the state of one pipeline execution.
type run struct {
	orch      *Orchestrator
	req       Request
	applied   *AppliedOperations
	artifacts []string
	stage     Stage
	destMade  string // output path created by this run, removed on failure
}

func (r *run) execute(ctx context.Context) *Result {
	spec := r.req.Spec
	r.setStage(StageIdle)

	if err := spec.Validate(); err != nil {
		return r.fail(err)
	}

	if _, err := os.Stat(r.req.InputPath); err != nil {
		return r.fail(&ResourceError{Op: "open input", Path: r.req.InputPath, Err: err})
	}
	if err := os.MkdirAll(r.orch.tempDir, 0755); err != nil {
		return r.fail(&ResourceError{Op: "create temp dir", Path: r.orch.tempDir, Err: err})
	}

	srcInfo, err := r.orch.prober.Probe(ctx, r.req.InputPath)
	if err != nil {
		return r.fail(err)
	}

	segments, err := edit.ComputeKeepSegments(spec.TrimStart, spec.TrimEnd, spec.Cuts, srcInfo.DurationSeconds)
	if err != nil {
		return r.fail(err)
	}
	if len(segments) == 0 {
		return r.fail(ErrEmptyResult)
	}

	windowEnd := srcInfo.DurationSeconds
	if spec.TrimEnd != nil && *spec.TrimEnd < windowEnd {
		windowEnd = *spec.TrimEnd
	}

	current := r.req.InputPath

	// A default trim window passes the input straight through.
	skipTrim := spec.TrimStart == 0 && spec.TrimEnd == nil
	if !skipTrim {
		r.setStage(StageTrimming)
		out := r.newArtifact("trimmed")
		if err := r.runTool(ctx, ffmpeg.TrimArgs(current, spec.TrimStart, spec.TrimEnd, out)); err != nil {
			return r.fail(err)
		}
		current = out
	}

	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	if !edit.CoversWindow(segments, spec.TrimStart, windowEnd) {
		r.setStage(StageCuttingSegments)

		// Segments are computed on the original timeline; after a trim the
		// artifact's clock starts at zero, so shift them back by trimStart.
		local := segments
		if !skipTrim {
			local = rebaseSegments(segments, spec.TrimStart)
		}

		out := r.newArtifact("cut")
		hasAudio := srcInfo.Audio.Codec != ""
		if err := r.runTool(ctx, ffmpeg.ConcatArgs(current, local, hasAudio, out)); err != nil {
			return r.fail(err)
		}
		current = out
	}

	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	if chain := edit.BuildFilterChain(spec.Filters); !chain.Empty() {
		r.setStage(StageApplyingFilters)
		out := r.newArtifact("filtered")
		if err := r.runTool(ctx, ffmpeg.FilterArgs(current, chain, out)); err != nil {
			return r.fail(err)
		}
		current = out
	}

	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	r.setStage(StageFinalizing)

	outputPath := r.req.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(r.orch.outputDir,
			fmt.Sprintf("edited_%s%s", uuid.NewString()[:8], artifactExt(r.req.InputPath)))
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return r.fail(&ResourceError{Op: "create output dir", Path: filepath.Dir(outputPath), Err: err})
	}

	if current == r.req.InputPath {
		// Every stage was skipped; the source must never be moved.
		if err := copyFile(current, outputPath); err != nil {
			return r.fail(err)
		}
	} else if err := moveFile(current, outputPath); err != nil {
		return r.fail(err)
	}
	r.destMade = outputPath

	info, err := r.orch.prober.Probe(ctx, outputPath)
	if err != nil {
		return r.fail(err)
	}

	r.setStage(StageDone)
	return &Result{
		Success:    true,
		OutputPath: outputPath,
		VideoInfo:  info,
		Applied:    r.applied,
		Segments:   segments,
	}
}

func (r *run) setStage(s Stage) {
	r.stage = s
	if r.req.OnStage != nil {
		r.req.OnStage(s)
	}
}

// runTool executes one tool invocation under the stage timeout, attributing
// failures caused by cancellation to the context rather than the tool.
func (r *run) runTool(ctx context.Context, args []string) error {
	toolCtx := ctx
	if r.orch.stageTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, r.orch.stageTimeout)
		defer cancel()
	}

	_, err := r.orch.invoker.Run(toolCtx, args)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if toolCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("stage timed out after %s: %w", r.orch.stageTimeout, err)
		}
		return err
	}
	return nil
}

// newArtifact reserves a request-unique path under the temp dir for one
// stage's output and records it for cleanup.
func (r *run) newArtifact(stage string) string {
	path := filepath.Join(r.orch.tempDir,
		fmt.Sprintf("%s_%s%s", stage, uuid.NewString(), artifactExt(r.req.InputPath)))
	r.artifacts = append(r.artifacts, path)
	return path
}

func (r *run) fail(err error) *Result {
	r.setStage(StageFailed)
	kind := Classify(err)

	r.orch.logger.Warn("edit pipeline failed",
		"input", r.req.InputPath,
		"stage", string(r.stage),
		"kind", string(kind),
		"error", err,
	)

	// Never leave a partial file at the destination.
	if r.destMade != "" {
		if rmErr := os.Remove(r.destMade); rmErr != nil && !os.IsNotExist(rmErr) {
			r.orch.logger.Warn("cannot remove partial output", "path", r.destMade, "error", rmErr)
		}
		r.destMade = ""
	}

	return &Result{
		Success:   false,
		Applied:   r.applied,
		ErrorKind: kind,
		Error:     err.Error(),
	}
}

// cleanup removes every intermediate artifact the run created. Runs on
// both success and failure; the finalized output has already been moved
// out of the temp dir by then.
func (r *run) cleanup() {
	for _, path := range r.artifacts {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.orch.logger.Warn("cannot remove intermediate artifact", "path", path, "error", err)
		}
	}
	r.artifacts = nil
}

func rebaseSegments(segments []edit.Segment, offset float64) []edit.Segment {
	out := make([]edit.Segment, len(segments))
	for i, s := range segments {
		out[i] = edit.Segment{Start: s.Start - offset, End: s.End - offset}
	}
	return out
}

func artifactExt(inputPath string) string {
	if ext := filepath.Ext(inputPath); ext != "" {
		return ext
	}
	return ".mp4"
}

// moveFile renames src to dst, falling back to copy+remove when the rename
// crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return &ResourceError{Op: "remove", Path: src, Err: err}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return &ResourceError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return &ResourceError{Op: "create", Path: dst, Err: err}
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return &ResourceError{Op: "write", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return &ResourceError{Op: "close", Path: dst, Err: err}
	}
	return nil
}
