package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clipsmith/clipsmith/internal/pipeline"
)

type Repository interface {
	CreateEdit(ctx context.Context, job *EditJob) error
	GetEdit(ctx context.Context, id string) (*EditJob, error)
	ListEdits(ctx context.Context, limit int) ([]*EditJob, error)
	ListPendingEdits(ctx context.Context) ([]*EditJob, error)
	MarkEditRunning(ctx context.Context, id string) (bool, error)
	UpdateEditStatus(ctx context.Context, id, status, errorMsg, errorKind string) error
	UpdateEditStage(ctx context.Context, id string, stage pipeline.Stage) error
	CompleteEdit(ctx context.Context, id string, result *pipeline.Result) error
	CountEditsByStatus(ctx context.Context, status string) (int, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const editColumns = "id, input_path, spec, status, stage, output_path, result, error, error_kind, created_at, updated_at"

func (r *SQLiteRepository) CreateEdit(ctx context.Context, j *EditJob) error {
	specJSON, err := json.Marshal(j.Spec)
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO edits (id, input_path, spec, status, stage, output_path, error, error_kind, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.InputPath, string(specJSON), j.Status, string(j.Stage),
		nullString(j.OutputPath), nullString(j.Error), nullString(j.ErrorKind),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetEdit(ctx context.Context, id string) (*EditJob, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+editColumns+" FROM edits WHERE id = ?", id)
	return r.scanEdit(row)
}

func (r *SQLiteRepository) scanEdit(row *sql.Row) (*EditJob, error) {
	var j EditJob
	var specJSON, stage string
	var outputPath, resultJSON, errMsg, errKind sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.InputPath, &specJSON, &j.Status, &stage,
		&outputPath, &resultJSON, &errMsg, &errKind, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return r.fillEdit(&j, specJSON, stage, outputPath, resultJSON, errMsg, errKind, createdAt, updatedAt)
}

func (r *SQLiteRepository) fillEdit(j *EditJob, specJSON, stage string,
	outputPath, resultJSON, errMsg, errKind sql.NullString, createdAt, updatedAt string) (*EditJob, error) {

	if err := json.Unmarshal([]byte(specJSON), &j.Spec); err != nil {
		return nil, fmt.Errorf("decode spec for edit %s: %w", j.ID, err)
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var res pipeline.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &res); err != nil {
			return nil, fmt.Errorf("decode result for edit %s: %w", j.ID, err)
		}
		j.Result = &res
	}

	j.Stage = pipeline.Stage(stage)
	j.OutputPath = outputPath.String
	j.Error = errMsg.String
	j.ErrorKind = errKind.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return j, nil
}

func (r *SQLiteRepository) ListEdits(ctx context.Context, limit int) ([]*EditJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+editColumns+" FROM edits ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanEdits(rows)
}

func (r *SQLiteRepository) ListPendingEdits(ctx context.Context) ([]*EditJob, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+editColumns+" FROM edits WHERE status = 'pending' ORDER BY created_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanEdits(rows)
}

func (r *SQLiteRepository) scanEdits(rows *sql.Rows) ([]*EditJob, error) {
	var edits []*EditJob
	for rows.Next() {
		var j EditJob
		var specJSON, stage string
		var outputPath, resultJSON, errMsg, errKind sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&j.ID, &j.InputPath, &specJSON, &j.Status, &stage,
			&outputPath, &resultJSON, &errMsg, &errKind, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		filled, err := r.fillEdit(&j, specJSON, stage, outputPath, resultJSON, errMsg, errKind, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		edits = append(edits, filled)
	}
	return edits, rows.Err()
}

// MarkEditRunning claims a pending edit for execution. It returns false
// when the edit is no longer pending, which happens when a cancel lands
// between the dispatch poll and the claim.
func (r *SQLiteRepository) MarkEditRunning(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE edits SET status = ?, updated_at = datetime('now') WHERE id = ? AND status = ?
	`, StatusRunning, id, StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SQLiteRepository) UpdateEditStatus(ctx context.Context, id, status, errorMsg, errorKind string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE edits SET status = ?, error = ?, error_kind = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), nullString(errorKind), id)
	return err
}

func (r *SQLiteRepository) UpdateEditStage(ctx context.Context, id string, stage pipeline.Stage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE edits SET stage = ?, updated_at = datetime('now') WHERE id = ?
	`, string(stage), id)
	return err
}

func (r *SQLiteRepository) CompleteEdit(ctx context.Context, id string, result *pipeline.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE edits SET status = ?, stage = ?, output_path = ?, result = ?, updated_at = datetime('now') WHERE id = ?
	`, StatusCompleted, string(pipeline.StageDone), result.OutputPath, string(resultJSON), id)
	return err
}

func (r *SQLiteRepository) CountEditsByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edits WHERE status = ?", status).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
