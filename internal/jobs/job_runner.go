package jobs

import (
	"collective-backend/internal/config"
	"collective-backend/internal/logger"
	"collective-backend/internal/repository"
	"collective-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	members   repository.MemberRepository
	cohorts   repository.CohortRepository
	jobs      repository.SyncJobRepository
	registrar service.RegistrarService
	email     service.EmailService
	config    *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(
	members repository.MemberRepository,
	cohorts repository.CohortRepository,
	jobRepo repository.SyncJobRepository,
	registrar service.RegistrarService,
	email service.EmailService,
	cfg *config.Config,
) *JobRunner {
	return &JobRunner{
		members:   members,
		cohorts:   cohorts,
		jobs:      jobRepo,
		registrar: registrar,
		email:     email,
		config:    cfg,
	}
}

// Config exposes the configuration for scheduler registration
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}
