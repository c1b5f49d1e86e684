package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipsmith/clipsmith/internal/api"
	"github.com/clipsmith/clipsmith/internal/config"
	"github.com/clipsmith/clipsmith/internal/db"
	"github.com/clipsmith/clipsmith/internal/download"
	"github.com/clipsmith/clipsmith/internal/ffmpeg"
	"github.com/clipsmith/clipsmith/internal/jobs"
	"github.com/clipsmith/clipsmith/internal/logging"
	"github.com/clipsmith/clipsmith/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.TempDir(), 0755); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir(), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipsmith", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := jobs.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                    CLIPSMITH v%-8s                    ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	// Intermediate artifacts from interrupted runs are useless on restart.
	pipeline.SweepTemp(cfg.TempDir(), logger)

	ffmpegInvoker, err := ffmpeg.NewInvoker("ffmpeg", cfg.FFmpegPath(), logger)
	if err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	ffprobeInvoker, err := ffmpeg.NewInvoker("ffprobe", cfg.FFprobePath(), logger)
	if err != nil {
		return fmt.Errorf("ffprobe not available: %w", err)
	}
	prober := ffmpeg.NewProber(ffprobeInvoker, cfg.ProbeTimeout(), logger)

	orchestrator := pipeline.New(ffmpegInvoker, prober, cfg.TempDir(), cfg.OutputDir(), cfg.StageTimeout(), logger)

	editSvc := jobs.NewService(repo, logger)
	runner := jobs.NewRunner(repo, orchestrator, cfg.MaxConcurrentEdits(), logger)
	editSvc.SetCanceller(runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		EditService:  editSvc,
		Repository:   repo,
		Runner:       runner,
		Orchestrator: orchestrator,
		Prober:       prober,
		Download:     download.NewServer(cfg.OutputDir(), logger),
		Logger:       logger,
		StartTime:    startTime,
		Version:      config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo jobs.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
