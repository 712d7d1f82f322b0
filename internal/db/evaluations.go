package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const evaluationColumns = `id, created_at, updated_at, status, rubric_name, submitter, audio_ref,
	transcript, upload_token_hash, visual_analysis, report_ref, pass_status, percentage, error`

type Evaluations struct{ db *sqlx.DB }

func NewEvaluations(db *sqlx.DB) *Evaluations { return &Evaluations{db: db} }

func (r *Evaluations) Insert(ctx context.Context, e *Evaluation) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = StatusQueued
	}
	if e.Submitter == nil {
		e.Submitter = []byte("{}")
	}
	q := r.db.Rebind(`INSERT INTO evaluations (` + evaluationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.CreatedAt, e.UpdatedAt, e.Status, e.RubricName, e.Submitter, e.AudioRef,
		e.Transcript, e.UploadTokenHash, e.Visual, e.ReportRef, e.PassStatus, e.Percentage, e.Error)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (r *Evaluations) Get(ctx context.Context, id string) (*Evaluation, error) {
	var e Evaluation
	q := r.db.Rebind(`SELECT ` + evaluationColumns + ` FROM evaluations WHERE id = ?`)
	if err := r.db.GetContext(ctx, &e, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get evaluation %s: %w", id, err)
	}
	return &e, nil
}

// List returns the most recent evaluations first.
func (r *Evaluations) List(ctx context.Context, limit int) ([]Evaluation, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Evaluation
	q := r.db.Rebind(`SELECT ` + evaluationColumns + ` FROM evaluations ORDER BY created_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return out, nil
}

// AttachAudio records an upload against an evaluation still waiting for one
// and queues it. The token hash must match the one issued at creation.
func (r *Evaluations) AttachAudio(ctx context.Context, id, tokenHash, audioRef string) error {
	q := r.db.Rebind(`UPDATE evaluations SET audio_ref = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND upload_token_hash = ?`)
	res, err := r.db.ExecContext(ctx, q, audioRef, StatusQueued, time.Now().UTC(), id, StatusAwaitingUpload, tokenHash)
	if err != nil {
		return fmt.Errorf("attach audio %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Evaluations) MarkRunning(ctx context.Context, id string) error {
	return r.update(ctx, id, `status = ?`, StatusRunning)
}

// SetTranscript records the transcript produced from uploaded audio.
func (r *Evaluations) SetTranscript(ctx context.Context, id, transcript string) error {
	return r.update(ctx, id, `transcript = ?`, transcript)
}

func (r *Evaluations) Complete(ctx context.Context, id, reportRef, passStatus string, percentage float64) error {
	return r.update(ctx, id, `status = ?, report_ref = ?, pass_status = ?, percentage = ?, error = NULL`,
		StatusCompleted, reportRef, passStatus, percentage)
}

func (r *Evaluations) Fail(ctx context.Context, id, msg string) error {
	return r.update(ctx, id, `status = ?, error = ?`, StatusFailed, msg)
}

func (r *Evaluations) update(ctx context.Context, id, set string, args ...any) error {
	args = append(args, time.Now().UTC(), id)
	q := r.db.Rebind(`UPDATE evaluations SET ` + set + `, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update evaluation %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
