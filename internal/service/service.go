package service

import (
	"context"

	"collective-backend/internal/domain"
)

type AllocationService interface {
	// Assign places an accepted member into the oldest open cohort,
	// opening a new one when none has room. Safe under arbitrary
	// concurrent invocation; contention is retried internally and never
	// surfaces to the caller.
	Assign(ctx context.Context, memberID int32) (*domain.Cohort, error)
}

type OnboardingService interface {
	// OnAcceptance runs the acceptance workflow: cohort assignment first,
	// then sync job creation. The job is only created once the allocation
	// has durably committed.
	OnAcceptance(ctx context.Context, memberID int32) (*domain.Cohort, *domain.SyncJob, error)
}

type RegistrarService interface {
	// Register mirrors a member into the external registrar. With an
	// external id already on the job it is an idempotent profile update;
	// otherwise it is a first registration carrying the freshly generated
	// credential. Returns the external identifier. No persistence; the
	// caller owns recording the outcome.
	Register(ctx context.Context, member *domain.Member, cohort *domain.Cohort, job *domain.SyncJob, credential string) (string, error)

	// Configured reports whether outbound calls are enabled for this
	// deployment.
	Configured() bool
}

type EmailService interface {
	SendMigrationWelcome(ctx context.Context, email, pseudonym, cohortLabel string) error
	SendSyncExhaustedAlert(ctx context.Context, memberID int32, pseudonym, lastError string) error
}
