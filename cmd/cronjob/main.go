package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"collective-backend/internal/config"
	"collective-backend/internal/jobs"
	"collective-backend/internal/logger"
	"collective-backend/internal/repository/postgres"
	"collective-backend/internal/scheduler"
	"collective-backend/internal/service"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'registrar-sync', 'retry-failed')")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting sync worker...", "log_level", cfg.Log.Level)

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)

	registrarSvc, err := service.NewRegistrarService(cfg.Registrar)
	if err != nil {
		logger.Error("Failed to initialize registrar client", "error", err)
		log.Fatalf("Failed to initialize registrar client: %v", err)
	}
	emailSvc := service.NewEmailService(cfg.SendGrid)

	jobRunner := jobs.NewJobRunner(
		store.MemberRepository,
		store.CohortRepository,
		store.SyncJobRepository,
		registrarSvc,
		emailSvc,
		cfg,
	)

	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()
	logger.Info("Sync worker scheduler is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down sync worker...")
	cronScheduler.Stop()
	logger.Info("Sync worker stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "registrar-sync":
		jobRunner.RunRegistrarSync()
	case "retry-failed":
		if _, err := jobRunner.RetryAllFailed(context.Background()); err != nil {
			logger.Error("retry-failed job failed", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - registrar-sync\n")
		fmt.Printf("  - retry-failed\n")
		os.Exit(1)
	}
}
