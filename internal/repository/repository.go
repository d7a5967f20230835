package repository

import (
	"context"
	"errors"

	"collective-backend/internal/domain"
)

// ErrCohortContended is returned by a single allocation attempt when the
// locked cohort was filled by a concurrent competitor between the lock and
// the conditional increment. The caller retries the whole attempt.
var ErrCohortContended = errors.New("cohort filled by concurrent allocation")

type CohortRepository interface {
	// AssignMember runs one allocation attempt in a single transaction:
	// lock the oldest open cohort, create a fresh one if none has room,
	// conditionally increment its count, close it when the increment fills
	// it, and stamp the member row (cohort_id, internal_code, approved_on)
	// before committing. Returns ErrCohortContended when the conditional
	// increment loses a race.
	AssignMember(ctx context.Context, member *domain.Member, capacity int32) (*domain.Cohort, error)

	GetByID(ctx context.Context, id int32) (*domain.Cohort, error)
	List(ctx context.Context) ([]domain.Cohort, error)
}

type MemberRepository interface {
	Create(ctx context.Context, m *domain.Member) error
	GetByID(ctx context.Context, id int32) (*domain.Member, error)
	List(ctx context.Context) ([]domain.Member, error)
	SetCredentialHash(ctx context.Context, id int32, hash string) error
	MarkMigrated(ctx context.Context, id int32) error
}

type SyncJobRepository interface {
	// Create is idempotent per member: an existing non-synced job is reset
	// to PENDING instead of duplicated; a SYNCED job is left untouched.
	Create(ctx context.Context, memberID int32) (*domain.SyncJob, error)

	GetByID(ctx context.Context, id int32) (*domain.SyncJob, error)
	GetByMemberID(ctx context.Context, memberID int32) (*domain.SyncJob, error)
	List(ctx context.Context) ([]domain.SyncJob, error)

	// ListRetryable returns jobs in PENDING, plus FAILED jobs whose attempt
	// count is still below maxAttempts, in insertion order.
	ListRetryable(ctx context.Context, maxAttempts int32) ([]domain.SyncJob, error)

	MarkSyncing(ctx context.Context, id int32) error
	MarkSynced(ctx context.Context, id int32, externalID string) error
	MarkFailed(ctx context.Context, id int32, errMsg string) error

	// RequeueFailed puts FAILED jobs under the attempt bound back into
	// PENDING without touching their counters.
	RequeueFailed(ctx context.Context, maxAttempts int32) (int64, error)
	// ResetAttempts zeroes the counter and requeues one job; explicit
	// operator override of the retry budget.
	ResetAttempts(ctx context.Context, id int32) error
}
