// Package http exposes evaluation submission, status and rubric endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dsmilne3/ai-video-analyzer/internal/auth"
	"github.com/dsmilne3/ai-video-analyzer/internal/db"
	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/schemas"
	"github.com/dsmilne3/ai-video-analyzer/internal/storage"
	"github.com/dsmilne3/ai-video-analyzer/internal/worker"
)

// Enqueuer is the part of asynq.Client the API uses.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Pinger reports database health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	MaxUploadMB    int64
}

type Server struct {
	DB      Pinger
	Repo    *db.Evaluations
	Blobs   storage.BlobStore
	Rubrics *rubric.Store
	Queue   Enqueuer
	Auth    *auth.Authenticator
	Log     zerolog.Logger

	maxUpload int64
}

func (s *Server) Handler(opts Options) http.Handler {
	s.maxUpload = opts.MaxUploadMB << 20
	if s.maxUpload <= 0 {
		s.maxUpload = 200 << 20
	}

	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, RequestLogger(s.Log), m.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// API token or JWT
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(s.Auth))
		r.Post("/evaluations", s.createEvaluation)
		r.Get("/evaluations", s.listEvaluations)
		r.Get("/evaluations/{id}", s.getEvaluation)
		r.Get("/rubrics", s.listRubrics)
		r.Post("/rubrics/validate", s.validateRubric)
	})

	// Upload token (Authorization: Bearer <upload>)
	r.Post("/evaluations/{id}/audio", s.uploadAudio)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "db error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func (s *Server) NewServer(opts Options) *http.Server {
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) createEvaluation(w http.ResponseWriter, r *http.Request) {
	var req schemas.CreateEvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, schemas.ErrorResponse{Error: err.Error()})
		return
	}
	sub := req.Submitter
	if strings.TrimSpace(sub.FirstName) == "" || strings.TrimSpace(sub.LastName) == "" || strings.TrimSpace(sub.PartnerName) == "" {
		writeJSON(w, http.StatusBadRequest, schemas.ErrorResponse{Error: "submitter first_name, last_name and partner_name are required"})
		return
	}
	if req.Rubric == "" {
		req.Rubric = rubric.DefaultName
	}
	// reject invalid rubrics now rather than in the worker
	if _, err := s.Rubrics.LoadOrDefault(r.Context(), req.Rubric); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, schemas.ErrorResponse{Error: err.Error()})
		return
	}

	subJSON, _ := json.Marshal(sub)
	e := &db.Evaluation{
		ID:         uuid.NewString(),
		RubricName: req.Rubric,
		Submitter:  subJSON,
		Transcript: strings.TrimSpace(req.Transcript),
		Visual:     req.VisualAnalysis,
		Status:     db.StatusQueued,
	}
	var upload string
	if e.Transcript == "" {
		upload, e.UploadTokenHash = auth.NewUploadToken()
		e.Status = db.StatusAwaitingUpload
	}
	if err := s.Repo.Insert(r.Context(), e); err != nil {
		writeJSON(w, http.StatusInternalServerError, schemas.ErrorResponse{Error: err.Error()})
		return
	}
	if e.Status == db.StatusQueued {
		if err := s.enqueue(e.ID); err != nil {
			writeJSON(w, http.StatusInternalServerError, schemas.ErrorResponse{Error: err.Error()})
			return
		}
	}
	s.Log.Info().Str("evaluation_id", e.ID).Str("status", string(e.Status)).Msg("evaluation created")
	writeJSON(w, http.StatusAccepted, schemas.CreateEvaluationResponse{
		EvaluationID: e.ID,
		Status:       string(e.Status),
		UploadToken:  upload,
	})
}

func (s *Server) uploadAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	upload, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || upload == "" {
		writeJSON(w, http.StatusUnauthorized, schemas.ErrorResponse{Error: "missing bearer"})
		return
	}

	body, name, err := s.audioBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, schemas.ErrorResponse{Error: err.Error()})
		return
	}
	defer body.Close()

	row, err := s.Repo.Get(r.Context(), id)
	if err != nil || row.Status != db.StatusAwaitingUpload || row.UploadTokenHash != auth.HashToken(upload) {
		writeJSON(w, http.StatusNotFound, schemas.ErrorResponse{Error: "evaluation not found or not awaiting upload"})
		return
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".wav"
	}
	ref, err := s.Blobs.Put(r.Context(), storage.NewKey("uploads", ext), body, mime.TypeByExtension(ext))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, schemas.ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.Repo.AttachAudio(r.Context(), id, auth.HashToken(upload), ref); err != nil {
		writeJSON(w, http.StatusConflict, schemas.ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.enqueue(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, schemas.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, schemas.CreateEvaluationResponse{EvaluationID: id, Status: string(db.StatusQueued)})
}

// audioBody accepts a multipart "file" field or a raw body named by the
// filename query parameter.
func (s *Server) audioBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("file: %w", err)
		}
		return f, hdr.Filename, nil
	}
	return r.Body, r.URL.Query().Get("filename"), nil
}

func (s *Server) enqueue(id string) error {
	task, err := worker.NewEvaluateTask(id)
	if err != nil {
		return err
	}
	if _, err := s.Queue.Enqueue(task, asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

func (s *Server) getEvaluation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, err := s.Repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, schemas.ErrorResponse{Error: "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, schemas.ErrorResponse{Error: err.Error()})
		return
	}
	out := toOut(e)
	if e.ReportRef.Valid {
		var raw json.RawMessage
		if err := storage.GetJSON(r.Context(), s.Blobs, e.ReportRef.String, &raw); err != nil {
			s.Log.Warn().Err(err).Str("evaluation_id", id).Msg("load report")
		} else {
			out.Report = raw
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listEvaluations(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Repo.List(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, schemas.ErrorResponse{Error: err.Error()})
		return
	}
	out := make([]schemas.EvaluationOut, 0, len(rows))
	for i := range rows {
		out = append(out, toOut(&rows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func toOut(e *db.Evaluation) schemas.EvaluationOut {
	out := schemas.EvaluationOut{
		EvaluationID: e.ID,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		Status:       string(e.Status),
		Rubric:       e.RubricName,
		PassStatus:   e.PassStatus.String,
		ReportRef:    e.ReportRef.String,
		Error:        e.Error.String,
	}
	_ = json.Unmarshal(e.Submitter, &out.Submitter)
	if e.Percentage.Valid {
		p := e.Percentage.Float64
		out.Percentage = &p
	}
	return out
}

func (s *Server) listRubrics(w http.ResponseWriter, r *http.Request) {
	list, err := s.Rubrics.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, schemas.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) validateRubric(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, schemas.ErrorResponse{Error: err.Error()})
		return
	}
	rb, err := rubric.Parse(data)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, schemas.ValidateRubricResponse{Valid: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemas.ValidateRubricResponse{
		Valid:       true,
		Format:      string(rb.Format()),
		Criteria:    rb.CriterionCount(),
		TotalPoints: rb.TotalPoints(),
	})
}
