package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/pdfbinder/internal/config"
	"github.com/local/pdfbinder/internal/limiter"
	logpkg "github.com/local/pdfbinder/internal/logger"
	"github.com/local/pdfbinder/internal/metrics"
	"github.com/local/pdfbinder/internal/orchestrator"
	"github.com/local/pdfbinder/internal/statuscheck"
	"github.com/local/pdfbinder/internal/storage"
	"github.com/local/pdfbinder/internal/store"
	web "github.com/local/pdfbinder/internal/web"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	// Status store
	rs, err := store.NewRedisStatus(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis status store")
	}
	defer rs.Close()

	// Result archive (optional)
	var archive orchestrator.Archive
	if cfg.Results.S3Bucket != "" {
		a, err := storage.NewS3Archive(context.Background(), cfg.Results.S3Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init s3 archive")
		}
		archive = a
	}

	orch := orchestrator.New(orchestrator.Dependencies{
		Status:  rs,
		Archive: archive,
		Limiter: limiter.New(cfg.Limits.ConcurrentMerges),
		Cfg:     cfg,
	})
	mux := http.NewServeMux()
	orch.RegisterRoutes(mux)

	// Dashboard
	web := web.New()
	web.RegisterRoutes(mux)

	// Subsystem health + metrics
	checker := statuscheck.New(statuscheck.Options{
		Redis:     rs,
		S3Bucket:  cfg.Results.S3Bucket,
		ResultDir: cfg.Results.Dir,
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(checker.Summary(r.Context()))
	})
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}
