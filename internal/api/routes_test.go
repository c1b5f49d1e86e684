package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clipsmith/clipsmith/internal/db"
	"github.com/clipsmith/clipsmith/internal/download"
	"github.com/clipsmith/clipsmith/internal/edit"
	"github.com/clipsmith/clipsmith/internal/ffmpeg"
	"github.com/clipsmith/clipsmith/internal/jobs"
	"github.com/clipsmith/clipsmith/internal/pipeline"
)

const testToken = "test-token"

// scriptedInvoker succeeds every call and creates the output file named in
// the args, standing in for ffmpeg.
type scriptedInvoker struct{}

func (scriptedInvoker) Run(ctx context.Context, args []string) (ffmpeg.RunResult, error) {
	out := args[len(args)-2]
	if err := os.WriteFile(out, []byte("artifact"), 0644); err != nil {
		return ffmpeg.RunResult{}, err
	}
	return ffmpeg.RunResult{ExitCode: 0}, nil
}

type scriptedProber struct {
	info *ffmpeg.MediaInfo
}

func (p scriptedProber) Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error) {
	return p.info, nil
}

type testEnv struct {
	router    http.Handler
	repo      jobs.Repository
	outputDir string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := jobs.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), "auth_token", testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	svc := jobs.NewService(repo, logger)

	tempDir := filepath.Join(t.TempDir(), "tmp")
	outputDir := filepath.Join(t.TempDir(), "processed")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		t.Fatal(err)
	}

	prober := scriptedProber{info: &ffmpeg.MediaInfo{
		DurationSeconds: 60,
		Video:           ffmpeg.VideoInfo{Codec: "h264", Width: 1920, Height: 1080, FPS: 30},
	}}
	orch := pipeline.New(scriptedInvoker{}, prober, tempDir, outputDir, 0, logger)

	cfg := ServerConfig{
		Port:         0,
		EditService:  svc,
		Repository:   repo,
		Orchestrator: orch,
		Prober:       prober,
		Download:     download.NewServer(outputDir, logger),
		Logger:       logger,
		StartTime:    time.Now(),
		Version:      "test",
	}

	return &testEnv{router: NewRouter(cfg), repo: repo, outputDir: outputDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodGet, "/health", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rr.Code)
	}

	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v", body["version"])
	}
}

func TestAuth_Required(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodGet, "/status", nil, false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status code = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status code with bad token = %d, want 401", rr.Code)
	}
}

func TestStatus_Idle(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodGet, "/status", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rr.Code)
	}

	body := decodeJSONBody(t, rr)
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
}

func TestSubmitEdit_Accepted(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodPost, "/edits", map[string]any{
		"inputPath": writeVideo(t),
		"operations": map[string]any{
			"trimStart": 5,
			"trimEnd":   50,
			"cuts":      []map[string]float64{{"start": 10, "end": 20}},
			"filters":   []map[string]any{{"type": "grayscale"}},
		},
	}, true)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status code = %d, want 202; body %s", rr.Code, rr.Body.String())
	}

	body := decodeJSONBody(t, rr)
	if body["status"] != jobs.StatusPending {
		t.Errorf("job status = %v, want pending", body["status"])
	}

	id, _ := body["id"].(string)
	stored, err := env.repo.GetEdit(context.Background(), id)
	if err != nil || stored == nil {
		t.Fatalf("submitted edit %q not persisted: %v", id, err)
	}
	if stored.Spec.TrimStart != 5 {
		t.Errorf("stored trimStart = %v", stored.Spec.TrimStart)
	}
}

func TestSubmitEdit_UnknownFilterRejected(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodPost, "/edits", map[string]any{
		"inputPath": writeVideo(t),
		"operations": map[string]any{
			"filters": []map[string]any{{"type": "vignette"}},
		},
	}, true)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "VALIDATION" {
		t.Errorf("code = %v, want VALIDATION", body["code"])
	}
	if !strings.Contains(body["error"].(string), "vignette") {
		t.Errorf("error = %v, should name the bad filter", body["error"])
	}
}

func TestSubmitEdit_MissingInputPath(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodPost, "/edits", map[string]any{
		"operations": map[string]any{},
	}, true)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", rr.Code)
	}
}

func TestGetEdit_NotFound(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodGet, "/edits/no-such-id", nil, true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status code = %d, want 404", rr.Code)
	}
}

func TestListEdits(t *testing.T) {
	env := setupTestServer(t)

	env.do(t, http.MethodPost, "/edits", map[string]any{
		"inputPath":  writeVideo(t),
		"operations": map[string]any{"trimStart": 1},
	}, true)

	rr := env.do(t, http.MethodGet, "/edits", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rr.Code)
	}

	body := decodeJSONBody(t, rr)
	edits, ok := body["edits"].([]interface{})
	if !ok || len(edits) != 1 {
		t.Errorf("edits = %v, want 1 entry", body["edits"])
	}
}

func TestCancelEdit_Pending(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodPost, "/edits", map[string]any{
		"inputPath":  writeVideo(t),
		"operations": map[string]any{"trimStart": 1},
	}, true)
	body := decodeJSONBody(t, rr)
	id := body["id"].(string)

	rr = env.do(t, http.MethodPost, "/edits/"+id+"/cancel", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200; body %s", rr.Code, rr.Body.String())
	}

	body = decodeJSONBody(t, rr)
	if body["status"] != jobs.StatusCancelled {
		t.Errorf("status = %v, want cancelled", body["status"])
	}

	// Cancelling again conflicts.
	rr = env.do(t, http.MethodPost, "/edits/"+id+"/cancel", nil, true)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second cancel status code = %d, want 409", rr.Code)
	}
}

func completeEdit(t *testing.T, env *testEnv, withOutput bool) string {
	t.Helper()
	ctx := context.Background()

	input := writeVideo(t)
	now := time.Now()
	job := &jobs.EditJob{
		ID:        jobs.NewID(),
		InputPath: input,
		Spec:      edit.Spec{TrimStart: 5},
		Status:    jobs.StatusPending,
		Stage:     pipeline.StageIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := env.repo.CreateEdit(ctx, job); err != nil {
		t.Fatalf("CreateEdit() error = %v", err)
	}
	if !withOutput {
		return job.ID
	}

	outPath := filepath.Join(env.outputDir, "edited_test.mp4")
	if err := os.WriteFile(outPath, []byte("final video"), 0644); err != nil {
		t.Fatal(err)
	}

	result := &pipeline.Result{
		Success:    true,
		OutputPath: outPath,
		VideoInfo: &ffmpeg.MediaInfo{
			DurationSeconds: 45,
			Video:           ffmpeg.VideoInfo{Codec: "h264", FPS: 30},
		},
		Segments: []edit.Segment{{Start: 5, End: 20}, {Start: 30, End: 60}},
	}
	if err := env.repo.CompleteEdit(ctx, job.ID, result); err != nil {
		t.Fatalf("CompleteEdit() error = %v", err)
	}
	return job.ID
}

func TestDownload_NotReady(t *testing.T) {
	env := setupTestServer(t)
	id := completeEdit(t, env, false)

	rr := env.do(t, http.MethodGet, "/edits/"+id+"/download", nil, true)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status code = %d, want 409", rr.Code)
	}
}

func TestDownload_Completed(t *testing.T) {
	env := setupTestServer(t)
	id := completeEdit(t, env, true)

	rr := env.do(t, http.MethodGet, "/edits/"+id+"/download", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200; body %s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "final video" {
		t.Errorf("body = %q", got)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestEDL_Completed(t *testing.T) {
	env := setupTestServer(t)
	id := completeEdit(t, env, true)

	rr := env.do(t, http.MethodGet, "/edits/"+id+"/edl", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200; body %s", rr.Code, rr.Body.String())
	}

	edl := rr.Body.String()
	if !strings.Contains(edl, "TITLE: clip.mp4") {
		t.Errorf("EDL missing title: %q", edl)
	}
	if !strings.Contains(edl, "002  ") {
		t.Errorf("EDL missing second event: %q", edl)
	}
}

func TestProbe(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodPost, "/probe", map[string]any{"path": writeVideo(t)}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200; body %s", rr.Code, rr.Body.String())
	}

	body := decodeJSONBody(t, rr)
	info, ok := body["info"].(map[string]interface{})
	if !ok {
		t.Fatal("info missing from response")
	}
	if info["duration"] != 60.0 {
		t.Errorf("duration = %v, want 60", info["duration"])
	}
}

func TestProbe_MissingFile(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodPost, "/probe", map[string]any{
		"path": filepath.Join(t.TempDir(), "gone.mp4"),
	}, true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status code = %d, want 404", rr.Code)
	}
}

func TestThumbnail(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodPost, "/thumbnails", map[string]any{
		"path":      writeVideo(t),
		"timestamp": 12.5,
	}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200; body %s", rr.Code, rr.Body.String())
	}

	body := decodeJSONBody(t, rr)
	out, _ := body["output_path"].(string)
	if out == "" {
		t.Fatal("output_path missing")
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("thumbnail file missing: %v", err)
	}
}

func TestExtractAudio(t *testing.T) {
	env := setupTestServer(t)

	rr := env.do(t, http.MethodPost, "/audio", map[string]any{"path": writeVideo(t)}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200; body %s", rr.Code, rr.Body.String())
	}

	body := decodeJSONBody(t, rr)
	if out, _ := body["output_path"].(string); !strings.HasSuffix(out, ".mp3") {
		t.Errorf("output_path = %v, want .mp3", body["output_path"])
	}
}
