package main

import (
	"context"
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/dsmilne3/ai-video-analyzer/internal/app"
	"github.com/dsmilne3/ai-video-analyzer/internal/config"
	"github.com/dsmilne3/ai-video-analyzer/internal/db"
	"github.com/dsmilne3/ai-video-analyzer/internal/logging"
	"github.com/dsmilne3/ai-video-analyzer/internal/pipeline"
	"github.com/dsmilne3/ai-video-analyzer/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default: ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)
	logger := logging.WithComponent("worker")
	ctx := context.Background()

	conn, err := app.Database(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	blobs, err := app.Blobs(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}
	scorer, err := app.Scorer(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build scorer")
	}
	tr, err := app.Transcriber(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build transcriber")
	}

	s := &worker.Server{
		Repo:          db.NewEvaluations(conn),
		Blobs:         blobs,
		Rubrics:       app.Rubrics(blobs, cfg, logger),
		Pipeline:      app.Pipeline(cfg, scorer, logger),
		Transcriber:   tr,
		ResultsPrefix: cfg.Results.Prefix,
		TextReports:   app.ReportFormat(cfg) == pipeline.FormatText,
		Log:           logger,
	}
	logger.Info().
		Str("provider", string(scorer.Provider())).
		Str("model", scorer.Model()).
		Str("redis", cfg.Redis.Addr).
		Msg("worker starting")
	if err := worker.Run(app.Redis(cfg), s); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}
