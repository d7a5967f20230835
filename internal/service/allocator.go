package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collective-backend/internal/domain"
	"collective-backend/internal/logger"
	"collective-backend/internal/repository"

	"github.com/lib/pq"
)

var ErrAlreadyAssigned = errors.New("member already has a cohort assignment")

// allocationAttempts bounds the retry loop; ordinary single-row contention
// settles in one or two rounds, so hitting the bound means the store is in
// real trouble.
const allocationAttempts = 25

type cohortAllocator struct {
	cohortRepo repository.CohortRepository
	memberRepo repository.MemberRepository
	capacity   int32
}

func NewCohortAllocator(cohortRepo repository.CohortRepository, memberRepo repository.MemberRepository, capacity int32) AllocationService {
	return &cohortAllocator{
		cohortRepo: cohortRepo,
		memberRepo: memberRepo,
		capacity:   capacity,
	}
}

func (s *cohortAllocator) Assign(ctx context.Context, memberID int32) (*domain.Cohort, error) {
	member, err := s.memberRepo.GetByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %d: %w", memberID, err)
	}
	if member.CohortID != nil {
		return nil, ErrAlreadyAssigned
	}

	approvedOn := time.Now()
	member.ApprovedOn = &approvedOn
	member.InternalCode = domain.InternalCode(member.Name, member.Minor, approvedOn)

	for attempt := 1; attempt <= allocationAttempts; attempt++ {
		cohort, err := s.cohortRepo.AssignMember(ctx, member, s.capacity)
		if err == nil {
			logger.Info("Member assigned to cohort",
				"member_id", member.ID,
				"cohort_id", cohort.ID,
				"cohort_label", cohort.Label,
				"cohort_count", cohort.CurrentCount)
			return cohort, nil
		}
		if errors.Is(err, repository.ErrCohortContended) || isRetryableTxError(err) {
			logger.Debug("Allocation attempt lost a race, retrying",
				"member_id", member.ID, "attempt", attempt, "error", err)
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("allocation for member %d did not settle after %d attempts", memberID, allocationAttempts)
}

// isRetryableTxError matches Postgres serialization failures, deadlocks
// and unique violations (a competitor opened the cohort first), all of
// which mean the whole attempt should be re-run, not surfaced.
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01" || pqErr.Code == "23505"
	}
	return false
}
