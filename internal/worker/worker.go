// Package worker consumes evaluation tasks from the asynq queue, one at a
// time, and records each outcome on its evaluation row.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dsmilne3/ai-video-analyzer/internal/db"
	"github.com/dsmilne3/ai-video-analyzer/internal/pipeline"
	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/storage"
	"github.com/dsmilne3/ai-video-analyzer/internal/transcript"
)

const TypeEvaluate = "evaluate_submission"

type EvaluatePayload struct {
	EvaluationID string `json:"evaluation_id"`
}

func NewEvaluateTask(id string) (*asynq.Task, error) {
	b, err := json.Marshal(EvaluatePayload{EvaluationID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEvaluate, b), nil
}

type Server struct {
	Repo        *db.Evaluations
	Blobs       storage.BlobStore
	Rubrics     *rubric.Store
	Pipeline    *pipeline.Pipeline
	Transcriber transcript.Transcriber
	// ResultsPrefix is where reports are written. The JSON report is always
	// saved; TextReports adds the human-readable copy.
	ResultsPrefix string
	TextReports   bool
	Log           zerolog.Logger
}

func (s *Server) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEvaluate, s.HandleEvaluate)
	return mux
}

// HandleEvaluate runs one submission. Failures are written to the row and
// the task is acknowledged so asynq does not retry it.
func (s *Server) HandleEvaluate(ctx context.Context, t *asynq.Task) error {
	var p EvaluatePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.EvaluationID == "" {
		return fmt.Errorf("bad payload %q: %w", t.Payload(), asynq.SkipRetry)
	}
	log := s.Log.With().Str("evaluation_id", p.EvaluationID).Logger()

	row, err := s.Repo.Get(ctx, p.EvaluationID)
	if err != nil {
		log.Error().Err(err).Msg("load evaluation")
		return nil
	}
	if err := s.Repo.MarkRunning(ctx, row.ID); err != nil {
		return s.fail(ctx, log, row.ID, err)
	}
	log.Info().Str("rubric", row.RubricName).Msg("starting evaluation")

	r, err := s.Rubrics.LoadOrDefault(ctx, row.RubricName)
	if err != nil {
		return s.fail(ctx, log, row.ID, fmt.Errorf("load rubric: %w", err))
	}

	tr, err := s.transcript(ctx, row)
	if err != nil {
		return s.fail(ctx, log, row.ID, err)
	}

	var sub pipeline.Submitter
	if len(row.Submitter) > 0 {
		if err := json.Unmarshal(row.Submitter, &sub); err != nil {
			log.Warn().Err(err).Msg("unreadable submitter")
		}
	}

	rep, err := s.Pipeline.Process(ctx, r, pipeline.Input{
		Transcript: tr,
		Visual:     row.Visual,
		Submitter:  sub,
		Source:     row.AudioRef,
	})
	if err != nil {
		return s.fail(ctx, log, row.ID, err)
	}

	ref, err := pipeline.Save(ctx, s.Blobs, s.ResultsPrefix, rep, pipeline.FormatJSON)
	if err != nil {
		return s.fail(ctx, log, row.ID, fmt.Errorf("save report: %w", err))
	}
	if s.TextReports {
		if _, err := pipeline.Save(ctx, s.Blobs, s.ResultsPrefix, rep, pipeline.FormatText); err != nil {
			log.Warn().Err(err).Msg("save text report")
		}
	}

	o := rep.Evaluation.Overall
	if err := s.Repo.Complete(ctx, row.ID, ref, string(o.PassStatus), o.Percentage); err != nil {
		return s.fail(ctx, log, row.ID, err)
	}
	log.Info().Str("report", ref).Str("status", string(o.PassStatus)).Msg("evaluation stored")
	return nil
}

// transcript returns the submitted text, or transcribes the uploaded audio
// and records the result on the row.
func (s *Server) transcript(ctx context.Context, row *db.Evaluation) (*transcript.Transcript, error) {
	if row.Transcript != "" {
		return &transcript.Transcript{Text: row.Transcript}, nil
	}
	if row.AudioRef == "" {
		return nil, fmt.Errorf("evaluation has neither transcript nor audio")
	}
	if s.Transcriber == nil {
		return nil, fmt.Errorf("no transcriber configured for audio %s", row.AudioRef)
	}

	local, err := s.download(ctx, row.AudioRef)
	if err != nil {
		return nil, err
	}
	defer os.Remove(local)

	tr, err := s.Transcriber.Transcribe(ctx, local)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if err := s.Repo.SetTranscript(ctx, row.ID, tr.Text); err != nil {
		return nil, err
	}
	return tr, nil
}

func (s *Server) download(ctx context.Context, ref string) (string, error) {
	rc, err := s.Blobs.Get(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	defer rc.Close()

	f, err := os.CreateTemp("", "demoeval-*"+path.Ext(ref))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, rc); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	return f.Name(), nil
}

func (s *Server) fail(ctx context.Context, log zerolog.Logger, id string, err error) error {
	log.Error().Err(err).Msg("evaluation failed")
	if uerr := s.Repo.Fail(ctx, id, err.Error()); uerr != nil {
		log.Error().Err(uerr).Msg("record failure")
	}
	return nil // acknowledged, no retry
}

// Run processes tasks sequentially until the server is shut down.
func Run(redis asynq.RedisClientOpt, s *Server) error {
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency: 1,
		Logger:      asynqLogger{s.Log.With().Str("component", "asynq").Logger()},
	})
	return srv.Run(s.Mux())
}

// asynqLogger adapts zerolog to asynq.Logger.
type asynqLogger struct{ l zerolog.Logger }

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
