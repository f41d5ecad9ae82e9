package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/invoice-ledger/internal/api"
	"github.com/dvloznov/invoice-ledger/internal/api/handlers"
	"github.com/dvloznov/invoice-ledger/internal/app"
	"github.com/dvloznov/invoice-ledger/internal/config"
	"github.com/dvloznov/invoice-ledger/internal/jobs"
	"github.com/dvloznov/invoice-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/invoice-ledger/internal/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log = logger.NewWithLevel(cfg.Log.Level)

	ctx := logger.WithContext(context.Background(), log)

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to release resources")
		}
	}()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Queue.Size, cfg.Queue.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.ProcessAttachmentJob) error {
		out := application.Processor.ProcessAttachment(ctx, job.Attachment())
		job.Outcome = &out
		return nil
	}

	log.Info().Int("workers", cfg.Queue.Workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	// A typed nil would make the runs endpoint look configured.
	var runs handlers.RunLister
	if application.Runs != nil {
		runs = application.Runs
	}

	router := api.NewRouter(
		handlers.NewAttachmentsHandler(jobQueue, jobStore, application.Processor, cfg.Server.MaxUploadBytes, log),
		handlers.NewJobsHandler(jobStore, log),
		handlers.NewRunsHandler(runs, log),
		cfg.Server.Timeout,
		log,
	)

	port := strconv.Itoa(cfg.Server.Port)
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop accepting jobs, then let in-flight attachments finish.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
