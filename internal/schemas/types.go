// Package schemas holds the JSON bodies of the HTTP API.
package schemas

import (
	"encoding/json"
	"time"

	"github.com/dsmilne3/ai-video-analyzer/internal/pipeline"
)

type CreateEvaluationRequest struct {
	Rubric         string             `json:"rubric,omitempty"`
	Transcript     string             `json:"transcript,omitempty"`
	VisualAnalysis string             `json:"visual_analysis,omitempty"`
	Submitter      pipeline.Submitter `json:"submitter"`
}

type CreateEvaluationResponse struct {
	EvaluationID string `json:"evaluation_id"`
	Status       string `json:"status"`
	// UploadToken is returned once, for submissions without a transcript.
	UploadToken string `json:"upload_token,omitempty"`
}

type EvaluationOut struct {
	EvaluationID string             `json:"evaluation_id"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Status       string             `json:"status"`
	Rubric       string             `json:"rubric"`
	Submitter    pipeline.Submitter `json:"submitter"`
	PassStatus   string             `json:"pass_status,omitempty"`
	Percentage   *float64           `json:"percentage,omitempty"`
	ReportRef    string             `json:"report_ref,omitempty"`
	Error        string             `json:"error,omitempty"`
	Report       json.RawMessage    `json:"report,omitempty"`
}

type ValidateRubricResponse struct {
	Valid       bool    `json:"valid"`
	Error       string  `json:"error,omitempty"`
	Format      string  `json:"format,omitempty"`
	Criteria    int     `json:"criteria,omitempty"`
	TotalPoints float64 `json:"total_points,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
