package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/clipsmith/clipsmith/internal/ffmpeg"
)

// Thumbnail grabs a single frame at the given offset and writes it as a
// JPEG under the output dir. Returns the generated path.
func (o *Orchestrator) Thumbnail(ctx context.Context, inputPath string, atSeconds float64) (string, error) {
	if atSeconds < 0 {
		atSeconds = 0
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", &ResourceError{Op: "open input", Path: inputPath, Err: err}
	}
	if err := os.MkdirAll(o.outputDir, 0755); err != nil {
		return "", &ResourceError{Op: "create output dir", Path: o.outputDir, Err: err}
	}

	out := filepath.Join(o.outputDir, fmt.Sprintf("thumb_%s.jpg", uuid.NewString()[:8]))
	if _, err := o.invoker.Run(ctx, ffmpeg.ThumbnailArgs(inputPath, atSeconds, out)); err != nil {
		os.Remove(out)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return out, nil
}

// ExtractAudio writes the input's audio track as an MP3 under the output
// dir. Returns the generated path.
func (o *Orchestrator) ExtractAudio(ctx context.Context, inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", &ResourceError{Op: "open input", Path: inputPath, Err: err}
	}
	if err := os.MkdirAll(o.outputDir, 0755); err != nil {
		return "", &ResourceError{Op: "create output dir", Path: o.outputDir, Err: err}
	}

	out := filepath.Join(o.outputDir, fmt.Sprintf("audio_%s.mp3", uuid.NewString()[:8]))
	if _, err := o.invoker.Run(ctx, ffmpeg.AudioExtractArgs(inputPath, out)); err != nil {
		os.Remove(out)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return out, nil
}
