// Package config provides configuration management for clipsmith.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8698
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipsmith"

	// Environment variable names
	EnvPort     = "CLIPSMITH_PORT"
	EnvLogLevel = "CLIPSMITH_LOG_LEVEL"
	EnvDataDir  = "CLIPSMITH_DATA_DIR"

	// FFmpeg environment variable names
	EnvFFmpegPath  = "CLIPSMITH_FFMPEG"
	EnvFFprobePath = "CLIPSMITH_FFPROBE"

	// Edit execution environment variable names
	EnvMaxConcurrentEdits = "CLIPSMITH_MAX_CONCURRENT_EDITS"
	EnvStageTimeout       = "CLIPSMITH_STAGE_TIMEOUT_S"

	// Database filename
	DBFilename = "clipsmith.db"

	// Edit execution defaults
	DefaultMaxConcurrentEdits = 2
	DefaultStageTimeout       = 1800 // seconds per pipeline stage
	DefaultProbeTimeout       = 30   // seconds
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	TempDir() string
	OutputDir() string
	FFmpegPath() string
	FFprobePath() string
	MaxConcurrentEdits() int
	StageTimeout() time.Duration
	ProbeTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port               int
	logLevel           string
	dataDir            string
	maxConcurrentEdits int
	stageTimeout       time.Duration

	ffmpegPath  string
	ffprobePath string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:               DefaultPort,
		logLevel:           DefaultLogLevel,
		dataDir:            defaultDataDir(),
		maxConcurrentEdits: DefaultMaxConcurrentEdits,
		stageTimeout:       DefaultStageTimeout * time.Second,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)

	if mc := os.Getenv(EnvMaxConcurrentEdits); mc != "" {
		n, err := strconv.Atoi(mc)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxConcurrentEdits, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("invalid %s: must be at least 1", EnvMaxConcurrentEdits)
		}
		cfg.maxConcurrentEdits = n
	}

	if st := os.Getenv(EnvStageTimeout); st != "" {
		secs, err := strconv.Atoi(st)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvStageTimeout, err)
		}
		if secs < 1 {
			return nil, fmt.Errorf("invalid %s: must be at least 1 second", EnvStageTimeout)
		}
		cfg.stageTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// TempDir returns the directory for intermediate pipeline artifacts
func (c *EnvConfig) TempDir() string {
	return filepath.Join(c.dataDir, "tmp")
}

// OutputDir returns the directory for finished edit outputs
func (c *EnvConfig) OutputDir() string {
	return filepath.Join(c.dataDir, "processed")
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// MaxConcurrentEdits returns the cap on edit pipelines running at once
func (c *EnvConfig) MaxConcurrentEdits() int {
	return c.maxConcurrentEdits
}

// StageTimeout returns the per-stage timeout for external tool invocations
func (c *EnvConfig) StageTimeout() time.Duration {
	return c.stageTimeout
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return DefaultProbeTimeout * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
