package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/dsmilne3/ai-video-analyzer/internal/app"
	"github.com/dsmilne3/ai-video-analyzer/internal/auth"
	"github.com/dsmilne3/ai-video-analyzer/internal/config"
	"github.com/dsmilne3/ai-video-analyzer/internal/db"
	httpSrv "github.com/dsmilne3/ai-video-analyzer/internal/http"
	"github.com/dsmilne3/ai-video-analyzer/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default: ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)
	logger := logging.WithComponent("api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run embedded migrations (idempotent)
	conn, err := app.Database(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	blobs, err := app.Blobs(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}

	authn := auth.NewAuthenticator(cfg.HTTP.APIToken, cfg.HTTP.JWTSecret)
	if !authn.Enabled() {
		logger.Warn().Msg("no API_TOKEN or JWT_SECRET configured, every authenticated route will be rejected")
	}

	asq := asynq.NewClient(app.Redis(cfg))
	defer asq.Close()

	s := &httpSrv.Server{
		DB:      conn,
		Repo:    db.NewEvaluations(conn),
		Blobs:   blobs,
		Rubrics: app.Rubrics(blobs, cfg, logger),
		Queue:   asq,
		Auth:    authn,
		Log:     logger,
	}
	srv := s.NewServer(httpSrv.Options{
		Addr:           cfg.HTTP.Addr,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxUploadMB:    cfg.HTTP.MaxUploadMB,
	})

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("serve")
	}
}
