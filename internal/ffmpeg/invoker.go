// Package ffmpeg wraps invocation of the external FFmpeg and FFprobe
// binaries behind injectable interfaces, with structured result parsing.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// RunResult is the structured outcome of one tool invocation.
type RunResult struct {
	ExitCode   int
	Stdout     string
	StderrTail string // last maxStderrBytes of stderr
	Duration   time.Duration
}

// IsSuccess returns true when the process exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// ToolError reports a tool invocation that exited non-zero or failed to
// start. The captured stderr tail is carried verbatim so the caller can
// tell a bad input from a broken environment.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited %d: %s", e.Tool, e.ExitCode, e.Stderr)
}

// Invoker executes one external tool process per call. Tests substitute a
// fake returning scripted results; no retries happen at this layer.
type Invoker interface {
	Run(ctx context.Context, args []string) (RunResult, error)
}

// CommandInvoker is the production Invoker backed by a resolved binary.
type CommandInvoker struct {
	binary string
	name   string // short name used in logs and errors
	logger *slog.Logger
}

// NewInvoker resolves the tool binary and returns an invoker for it.
// An empty preferred path falls back to looking up name on PATH.
func NewInvoker(name, preferred string, logger *slog.Logger) (*CommandInvoker, error) {
	binary, err := resolveBinary(name, preferred)
	if err != nil {
		return nil, err
	}

	logger.Info("external tool resolved", "tool", name, "binary", binary)
	return &CommandInvoker{binary: binary, name: name, logger: logger}, nil
}

// Run executes the tool with the given arguments and waits for completion.
// A non-zero exit returns both the populated RunResult and a *ToolError.
func (c *CommandInvoker) Run(ctx context.Context, args []string) (RunResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, c.binary, args...)

	var stdoutBuf bytes.Buffer
	var stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	c.logger.Debug("executing tool command", "tool", c.name, "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	result := RunResult{
		ExitCode:   exitCode,
		Stdout:     stdoutBuf.String(),
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}

	if exitCode != 0 {
		c.logger.Warn("tool command failed",
			"tool", c.name,
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(result.StderrTail, 512),
		)
		return result, &ToolError{Tool: c.name, ExitCode: exitCode, Stderr: result.StderrTail}
	}

	c.logger.Debug("tool command succeeded",
		"tool", c.name,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

// resolveBinary finds a usable tool binary.
func resolveBinary(name, preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no %s binary found on PATH", name)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
