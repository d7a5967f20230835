package main

import (
	"database/sql"
	"flag"
	"log"
	"net/http"

	httpapi "collective-backend/internal/api/http"
	"collective-backend/internal/config"
	"collective-backend/internal/jobs"
	"collective-backend/internal/logger"
	"collective-backend/internal/repository/postgres"
	"collective-backend/internal/security"
	"collective-backend/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting collective backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("Registrar configuration", "configured", cfg.Registrar.Configured(), "base_url", cfg.Registrar.BaseURL)

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

	tokenManager := security.NewTokenManager(cfg.JWT.Secret)

	registrarSvc, err := service.NewRegistrarService(cfg.Registrar)
	if err != nil {
		logger.Error("Failed to initialize registrar client", "error", err)
		log.Fatalf("Failed to initialize registrar client: %v", err)
	}
	if !registrarSvc.Configured() {
		logger.Warn("External registrar not configured; sync jobs will accumulate until it is")
	}

	emailSvc := service.NewEmailService(cfg.SendGrid)
	allocator := service.NewCohortAllocator(store.CohortRepository, store.MemberRepository, cfg.Cohort.Capacity)
	onboardingSvc := service.NewOnboardingService(allocator, store.SyncJobRepository)

	jobRunner := jobs.NewJobRunner(
		store.MemberRepository,
		store.CohortRepository,
		store.SyncJobRepository,
		registrarSvc,
		emailSvc,
		cfg,
	)

	memberHandler := httpapi.NewMemberHandler(store.MemberRepository, store.CohortRepository, onboardingSvc)
	syncJobHandler := httpapi.NewSyncJobHandler(store.SyncJobRepository, jobRunner)
	router := httpapi.NewRouter(memberHandler, syncJobHandler, tokenManager)

	logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
	if err := http.ListenAndServe(cfg.GetServerAddress(), router); err != nil {
		logger.Error("HTTP server error", "error", err)
		log.Fatalf("Failed to serve: %v", err)
	}
}
