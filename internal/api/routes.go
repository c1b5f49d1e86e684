package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipsmith/clipsmith/internal/edit"
	"github.com/clipsmith/clipsmith/internal/export"
	"github.com/clipsmith/clipsmith/internal/ffmpeg"
	"github.com/clipsmith/clipsmith/internal/jobs"
	"github.com/clipsmith/clipsmith/internal/pipeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/edits", submitEditHandler(cfg))
		r.Get("/edits", listEditsHandler(cfg))
		r.Get("/edits/{id}", getEditHandler(cfg))
		r.Post("/edits/{id}/cancel", cancelEditHandler(cfg))
		r.Get("/edits/{id}/download", downloadEditHandler(cfg))
		r.Get("/edits/{id}/edl", edlHandler(cfg))
		r.Post("/probe", probeHandler(cfg))
		r.Post("/thumbnails", thumbnailHandler(cfg))
		r.Post("/audio", audioHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		recent, _ := cfg.Repository.ListEdits(ctx, 10)
		pendingCount, _ := cfg.Repository.CountEditsByStatus(ctx, jobs.StatusPending)

		state := "idle"
		editsRunning := 0
		lastError := ""
		var activeEdit *EditResponse

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range recent {
			if j.Status == jobs.StatusRunning {
				state = "processing"
				resp := EditToResponse(j)
				activeEdit = &resp
				editsRunning++
			}
			if j.Status == jobs.StatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:        state,
			EditsRunning: editsRunning,
			EditsPending: pendingCount,
			LastError:    lastError,
			ActiveEdit:   activeEdit,
		})
	}
}

func submitEditHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitEditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var vErr *edit.ValidationError
			if errors.As(err, &vErr) {
				WriteError(w, http.StatusBadRequest, vErr.Error(), "VALIDATION")
				return
			}
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.InputPath == "" {
			WriteError(w, http.StatusBadRequest, "inputPath is required", "BAD_REQUEST")
			return
		}

		job, err := cfg.EditService.SubmitEdit(r.Context(), req.InputPath, req.Operations)
		if err != nil {
			var vErr *edit.ValidationError
			if errors.As(err, &vErr) {
				WriteError(w, http.StatusBadRequest, vErr.Error(), "VALIDATION")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, EditToResponse(job))
	}
}

func listEditsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		edits, err := cfg.EditService.ListEdits(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list edits", "INTERNAL_ERROR")
			return
		}

		resp := EditsResponse{Edits: make([]EditResponse, len(edits))}
		for i, j := range edits {
			resp.Edits[i] = EditToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getEditHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := cfg.EditService.GetEdit(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "edit not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, EditToResponse(job))
	}
}

func cancelEditHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := cfg.EditService.CancelEdit(r.Context(), id)
		if job == nil && err == nil {
			WriteError(w, http.StatusNotFound, "edit not found", "NOT_FOUND")
			return
		}
		if err != nil {
			// Terminal edits cannot be cancelled.
			WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
			return
		}

		WriteJSON(w, http.StatusOK, EditToResponse(job))
	}
}

func downloadEditHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := cfg.EditService.GetEdit(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "edit not found", "NOT_FOUND")
			return
		}
		if job.Status != jobs.StatusCompleted || job.OutputPath == "" {
			WriteError(w, http.StatusConflict, "edit has no output yet", "NOT_READY")
			return
		}

		if err := cfg.Download.ServeFile(w, r, job.OutputPath); err != nil {
			cfg.Logger.Error("download error", "error", err, "edit_id", id)
		}
	}
}

func edlHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := cfg.EditService.GetEdit(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "edit not found", "NOT_FOUND")
			return
		}
		if job.Status != jobs.StatusCompleted || job.Result == nil || len(job.Result.Segments) == 0 {
			WriteError(w, http.StatusConflict, "edit has no cut list yet", "NOT_READY")
			return
		}

		fps := 30.0
		if job.Result.VideoInfo != nil && job.Result.VideoInfo.Video.FPS > 0 {
			fps = job.Result.VideoInfo.Video.FPS
		}

		title := export.SanitizeName(filepath.Base(job.InputPath), 60)
		clips := export.FromSegments(job.InputPath, job.Result.Segments)
		edl := export.GenerateEDL(clips, title, fps)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", title+".edl"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(edl))
	}
}

func probeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProbeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		if _, err := os.Stat(req.Path); err != nil {
			WriteError(w, http.StatusNotFound, "file not found", "NOT_FOUND")
			return
		}

		info, err := cfg.Prober.Probe(r.Context(), req.Path)
		if err != nil {
			writeToolError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, ProbeResponse{Path: req.Path, Info: info})
	}
}

func thumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ThumbnailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		out, err := cfg.Orchestrator.Thumbnail(r.Context(), req.Path, req.Timestamp)
		if err != nil {
			writeToolError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, ThumbnailResponse{OutputPath: out})
	}
}

func audioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AudioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		out, err := cfg.Orchestrator.ExtractAudio(r.Context(), req.Path)
		if err != nil {
			writeToolError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, AudioResponse{OutputPath: out})
	}
}

// writeToolError maps one-shot tool failures to HTTP statuses: missing
// files are the client's fault, tool exits are the tool's.
func writeToolError(w http.ResponseWriter, err error) {
	var rErr *pipeline.ResourceError
	if errors.As(err, &rErr) && errors.Is(rErr.Err, fs.ErrNotExist) {
		WriteError(w, http.StatusNotFound, "file not found", "NOT_FOUND")
		return
	}

	var tErr *ffmpeg.ToolError
	if errors.As(err, &tErr) {
		WriteError(w, http.StatusBadGateway, tErr.Error(), "TOOL_ERROR")
		return
	}

	WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
}
