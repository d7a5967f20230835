package jobs

import (
	"context"
	"fmt"

	"collective-backend/internal/domain"
	"collective-backend/internal/logger"
	"collective-backend/internal/security"
)

// RunRegistrarSync is the scheduled sweep: select every retryable job and
// drive it through the registrar, one at a time.
func (jr *JobRunner) RunRegistrarSync() {
	jr.runWithRecovery("RegistrarSync", func() {
		jr.SyncSweep(context.Background())
	})
}

// SyncSweep performs one sweep over all retryable jobs. Jobs are processed
// sequentially so per-job state transitions stay serialized without extra
// locking; one job's failure never stalls the rest.
func (jr *JobRunner) SyncSweep(ctx context.Context) {
	if !jr.registrar.Configured() {
		logger.Warn("External registrar not configured, skipping sync sweep")
		return
	}

	retryable, err := jr.jobs.ListRetryable(ctx, jr.config.Sync.MaxAttempts)
	if err != nil {
		logger.Error("Failed to list retryable sync jobs", "error", err)
		return
	}
	if len(retryable) == 0 {
		logger.Debug("No retryable sync jobs")
		return
	}
	logger.Info("Sync sweep starting", "jobs", len(retryable))

	synced, failed := 0, 0
	for i := range retryable {
		if err := jr.processJob(ctx, &retryable[i]); err != nil {
			failed++
		} else {
			synced++
		}
	}
	logger.Info("Sync sweep completed", "synced", synced, "failed", failed)
}

// ProcessJobByID drives a single job immediately, for the operator's
// on-demand retry. The attempt bound still applies.
func (jr *JobRunner) ProcessJobByID(ctx context.Context, jobID int32) error {
	if !jr.registrar.Configured() {
		return fmt.Errorf("external registrar not configured")
	}
	job, err := jr.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load sync job %d: %w", jobID, err)
	}
	if job.Status == domain.SyncJobStatusSynced {
		return fmt.Errorf("sync job %d is already synced", jobID)
	}
	if job.Exhausted(jr.config.Sync.MaxAttempts) {
		return fmt.Errorf("sync job %d has exhausted its retry budget; reset it first", jobID)
	}
	return jr.processJob(ctx, job)
}

// RetryAllFailed requeues every failed job still under the attempt bound
// and runs a sweep right away. Returns the number of requeued jobs.
func (jr *JobRunner) RetryAllFailed(ctx context.Context) (int64, error) {
	requeued, err := jr.jobs.RequeueFailed(ctx, jr.config.Sync.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue failed jobs: %w", err)
	}
	logger.Info("Requeued failed sync jobs", "count", requeued)
	jr.SyncSweep(ctx)
	return requeued, nil
}

// processJob runs one job through the registrar and records the outcome.
// A panic inside a single job is contained here.
func (jr *JobRunner) processJob(ctx context.Context, job *domain.SyncJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing sync job %d: %v", job.ID, r)
			logger.Error("Sync job panicked", "job_id", job.ID, "panic", r)
		}
	}()

	if err := jr.jobs.MarkSyncing(ctx, job.ID); err != nil {
		logger.Error("Failed to mark sync job syncing", "job_id", job.ID, "error", err)
		return err
	}
	attempts := job.Attempts + 1

	member, cohort, err := jr.loadSubject(ctx, job)
	if err != nil {
		jr.recordFailure(ctx, job, attempts, member, err)
		return err
	}

	// First registrations carry a fresh credential; the plaintext goes
	// out in the signed body and only the hash stays local. On retries
	// with a known external id no credential is minted.
	var credential string
	if job.ExternalID == nil || *job.ExternalID == "" {
		credential = security.GenerateCredential()
		hash, hashErr := security.HashCredential(credential)
		if hashErr != nil {
			jr.recordFailure(ctx, job, attempts, member, hashErr)
			return hashErr
		}
		if err := jr.members.SetCredentialHash(ctx, member.ID, hash); err != nil {
			jr.recordFailure(ctx, job, attempts, member, err)
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, jr.config.Registrar.Timeout())
	defer cancel()
	externalID, err := jr.registrar.Register(callCtx, member, cohort, job, credential)
	if err != nil {
		jr.recordFailure(ctx, job, attempts, member, err)
		return err
	}

	if err := jr.jobs.MarkSynced(ctx, job.ID, externalID); err != nil {
		logger.Error("Registered externally but failed to mark job synced",
			"job_id", job.ID, "external_id", externalID, "error", err)
		return err
	}
	if err := jr.members.MarkMigrated(ctx, member.ID); err != nil {
		logger.Error("Failed to stamp member migration", "member_id", member.ID, "error", err)
	}

	logger.Info("Sync job completed", "job_id", job.ID, "member_id", member.ID, "external_id", externalID, "attempts", attempts)
	if emailErr := jr.email.SendMigrationWelcome(ctx, member.Email, member.Pseudonym, cohort.Label); emailErr != nil {
		logger.Warn("Failed to send migration welcome email", "member_id", member.ID, "error", emailErr)
	}
	return nil
}

func (jr *JobRunner) loadSubject(ctx context.Context, job *domain.SyncJob) (*domain.Member, *domain.Cohort, error) {
	member, err := jr.members.GetByID(ctx, job.MemberID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load member %d: %w", job.MemberID, err)
	}
	if member.CohortID == nil {
		return member, nil, fmt.Errorf("member %d has no cohort assignment", member.ID)
	}
	cohort, err := jr.cohorts.GetByID(ctx, *member.CohortID)
	if err != nil {
		return member, nil, fmt.Errorf("failed to load cohort %d: %w", *member.CohortID, err)
	}
	return member, cohort, nil
}

func (jr *JobRunner) recordFailure(ctx context.Context, job *domain.SyncJob, attempts int32, member *domain.Member, cause error) {
	if err := jr.jobs.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		logger.Error("Failed to record sync job failure", "job_id", job.ID, "error", err)
		return
	}
	logger.Warn("Sync job attempt failed",
		"job_id", job.ID, "member_id", job.MemberID, "attempts", attempts, "error", cause)

	if attempts >= jr.config.Sync.MaxAttempts {
		logger.Error("Sync job exhausted retry budget, manual intervention required",
			"job_id", job.ID, "member_id", job.MemberID, "attempts", attempts)
		pseudonym := ""
		if member != nil {
			pseudonym = member.Pseudonym
		}
		if emailErr := jr.email.SendSyncExhaustedAlert(ctx, job.MemberID, pseudonym, cause.Error()); emailErr != nil {
			logger.Warn("Failed to send sync exhausted alert", "job_id", job.ID, "error", emailErr)
		}
	}
}
