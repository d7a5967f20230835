package service

import (
	"context"
	"fmt"

	"collective-backend/internal/domain"
	"collective-backend/internal/repository"
)

type onboardingService struct {
	allocator AllocationService
	jobRepo   repository.SyncJobRepository
}

func NewOnboardingService(allocator AllocationService, jobRepo repository.SyncJobRepository) OnboardingService {
	return &onboardingService{
		allocator: allocator,
		jobRepo:   jobRepo,
	}
}

// OnAcceptance assigns the member, then creates the sync job. Assignment
// commits before any job exists, so a crash between the two leaves the
// member cohort-assigned with no job; recoverable by re-running the
// acceptance, since job creation is an idempotent upsert.
func (s *onboardingService) OnAcceptance(ctx context.Context, memberID int32) (*domain.Cohort, *domain.SyncJob, error) {
	cohort, err := s.allocator.Assign(ctx, memberID)
	if err != nil {
		return nil, nil, fmt.Errorf("cohort assignment failed for member %d: %w", memberID, err)
	}

	job, err := s.jobRepo.Create(ctx, memberID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sync job for member %d: %w", memberID, err)
	}
	return cohort, job, nil
}
