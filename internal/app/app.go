// Package app builds the long-lived components shared by the binaries from a
// loaded configuration.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/dsmilne3/ai-video-analyzer/internal/config"
	"github.com/dsmilne3/ai-video-analyzer/internal/db"
	"github.com/dsmilne3/ai-video-analyzer/internal/evaluation"
	"github.com/dsmilne3/ai-video-analyzer/internal/migrations"
	"github.com/dsmilne3/ai-video-analyzer/internal/pipeline"
	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/scoring"
	"github.com/dsmilne3/ai-video-analyzer/internal/storage"
	"github.com/dsmilne3/ai-video-analyzer/internal/transcribe"
	"github.com/dsmilne3/ai-video-analyzer/internal/transcript"
)

func Blobs(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "s3", "minio":
		s, err := storage.NewS3Store(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "fs", "":
		s, err := storage.NewFSStore(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// Database opens the configured database and applies pending migrations.
func Database(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if db.NormalizeDriver(cfg.Database.Driver) == db.DriverSQLite && !strings.HasPrefix(cfg.Database.DSN, "file:") &&
		!strings.HasPrefix(cfg.Database.DSN, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	conn, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func Rubrics(blobs storage.BlobStore, cfg *config.Config, logger zerolog.Logger) *rubric.Store {
	return rubric.NewStore(blobs, cfg.Rubrics.Prefix, rubric.Default(), logger)
}

// Scorer builds the configured provider. Without an API key every call
// falls back.
func Scorer(cfg *config.Config, logger zerolog.Logger) (scoring.Scorer, error) {
	s, err := scoring.New(scoring.Settings{
		Provider: scoring.Provider(strings.ToLower(cfg.Scoring.Provider)),
		Model:    cfg.Scoring.Model,
		APIKey:   cfg.Scoring.APIKey,
		BaseURL:  cfg.Scoring.BaseURL,
		Timeout:  cfg.Scoring.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if _, ok := s.(scoring.Unavailable); ok {
		logger.Warn().Str("provider", cfg.Scoring.Provider).Msg("no API key configured, scores will be conservative fallbacks")
	}
	return s, nil
}

func Pipeline(cfg *config.Config, s scoring.Scorer, logger zerolog.Logger, opts ...evaluation.Option) *pipeline.Pipeline {
	opts = append([]evaluation.Option{evaluation.WithLimits(cfg.Evaluation)}, opts...)
	return pipeline.New(scoring.NewClient(s, logger), logger, opts...)
}

func Transcriber(cfg *config.Config, logger zerolog.Logger) (transcript.Transcriber, error) {
	t := cfg.Transcription
	switch strings.ToLower(t.Method) {
	case "docker":
		return transcribe.NewDocker(t.Docker, logger), nil
	case "http", "":
		return transcribe.NewHTTP(t.URL, t.Docker.Timeout, logger), nil
	}
	return nil, fmt.Errorf("unknown transcription method %q", t.Method)
}

func Redis(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
}

// ReportFormat maps the results format setting, defaulting to JSON.
func ReportFormat(cfg *config.Config) pipeline.Format {
	if strings.EqualFold(cfg.Results.Format, string(pipeline.FormatText)) {
		return pipeline.FormatText
	}
	return pipeline.FormatJSON
}
