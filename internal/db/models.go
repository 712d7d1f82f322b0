package db

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusAwaitingUpload Status = "awaiting_upload"
	StatusQueued         Status = "queued"
	StatusRunning        Status = "running"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// Evaluation is one submission moving through the worker. Either Transcript
// or AudioRef carries the input; audio submissions wait in
// StatusAwaitingUpload until the upload token is presented.
type Evaluation struct {
	ID              string          `db:"id"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
	Status          Status          `db:"status"`
	RubricName      string          `db:"rubric_name"`
	Submitter       []byte          `db:"submitter"`
	AudioRef        string          `db:"audio_ref"`
	Transcript      string          `db:"transcript"`
	UploadTokenHash string          `db:"upload_token_hash"`
	Visual          string          `db:"visual_analysis"`
	ReportRef       sql.NullString  `db:"report_ref"`
	PassStatus      sql.NullString  `db:"pass_status"`
	Percentage      sql.NullFloat64 `db:"percentage"`
	Error           sql.NullString  `db:"error"`
}
