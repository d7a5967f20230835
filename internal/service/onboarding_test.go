package service_test

import (
	"context"
	"errors"
	"testing"

	"collective-backend/internal/domain"
	"collective-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockAllocationService
type MockAllocationService struct {
	mock.Mock
}

func (m *MockAllocationService) Assign(ctx context.Context, memberID int32) (*domain.Cohort, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cohort), args.Error(1)
}

// MockSyncJobRepo
type MockSyncJobRepo struct {
	mock.Mock
}

func (m *MockSyncJobRepo) Create(ctx context.Context, memberID int32) (*domain.SyncJob, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncJob), args.Error(1)
}
func (m *MockSyncJobRepo) GetByID(ctx context.Context, id int32) (*domain.SyncJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncJob), args.Error(1)
}
func (m *MockSyncJobRepo) GetByMemberID(ctx context.Context, memberID int32) (*domain.SyncJob, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncJob), args.Error(1)
}
func (m *MockSyncJobRepo) List(ctx context.Context) ([]domain.SyncJob, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.SyncJob), args.Error(1)
}
func (m *MockSyncJobRepo) ListRetryable(ctx context.Context, maxAttempts int32) ([]domain.SyncJob, error) {
	args := m.Called(ctx, maxAttempts)
	return args.Get(0).([]domain.SyncJob), args.Error(1)
}
func (m *MockSyncJobRepo) MarkSyncing(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockSyncJobRepo) MarkSynced(ctx context.Context, id int32, externalID string) error {
	args := m.Called(ctx, id, externalID)
	return args.Error(0)
}
func (m *MockSyncJobRepo) MarkFailed(ctx context.Context, id int32, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}
func (m *MockSyncJobRepo) RequeueFailed(ctx context.Context, maxAttempts int32) (int64, error) {
	args := m.Called(ctx, maxAttempts)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockSyncJobRepo) ResetAttempts(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestOnboardingService_OnAcceptance(t *testing.T) {
	ctx := context.Background()
	memberID := int32(5)

	t.Run("AssignsThenCreatesJob", func(t *testing.T) {
		allocator := new(MockAllocationService)
		jobRepo := new(MockSyncJobRepo)
		svc := service.NewOnboardingService(allocator, jobRepo)

		cohort := &domain.Cohort{ID: 2, Label: "Cohort 2", Capacity: 10, CurrentCount: 4, Status: domain.CohortStatusOpen}
		job := &domain.SyncJob{ID: 9, MemberID: memberID, Status: domain.SyncJobStatusPending}

		allocator.On("Assign", ctx, memberID).Return(cohort, nil)
		jobRepo.On("Create", ctx, memberID).Return(job, nil)

		gotCohort, gotJob, err := svc.OnAcceptance(ctx, memberID)
		assert.NoError(t, err)
		assert.Equal(t, cohort, gotCohort)
		assert.Equal(t, job, gotJob)
		allocator.AssertExpectations(t)
		jobRepo.AssertExpectations(t)
	})

	t.Run("NoJobWhenAllocationFails", func(t *testing.T) {
		allocator := new(MockAllocationService)
		jobRepo := new(MockSyncJobRepo)
		svc := service.NewOnboardingService(allocator, jobRepo)

		allocator.On("Assign", ctx, memberID).Return(nil, service.ErrAlreadyAssigned)

		_, _, err := svc.OnAcceptance(ctx, memberID)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, service.ErrAlreadyAssigned))
		jobRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("JobFailureSurfaces", func(t *testing.T) {
		allocator := new(MockAllocationService)
		jobRepo := new(MockSyncJobRepo)
		svc := service.NewOnboardingService(allocator, jobRepo)

		cohort := &domain.Cohort{ID: 2, Label: "Cohort 2", Capacity: 10, CurrentCount: 4, Status: domain.CohortStatusOpen}
		allocator.On("Assign", ctx, memberID).Return(cohort, nil)
		jobRepo.On("Create", ctx, memberID).Return(nil, errors.New("db down"))

		_, _, err := svc.OnAcceptance(ctx, memberID)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "sync job")
	})
}
