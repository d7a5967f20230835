package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"collective-backend/internal/domain"
	"collective-backend/internal/repository/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var syncJobCols = []string{
	"id", "member_id", "status", "attempts", "last_attempt_at",
	"last_synced_at", "external_id", "last_error", "created_on", "updated_on",
}

func jobRow(id, memberID int32, status domain.SyncJobStatus, attempts int32) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(syncJobCols).
		AddRow(id, memberID, status, attempts, nil, nil, nil, nil, now, now)
}

func TestSyncJobRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSyncJobRepository(db)
	ctx := context.Background()

	t.Run("InsertsPendingJob", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO sync_jobs").
			WithArgs(int32(7), domain.SyncJobStatusPending, sqlmock.AnyArg(), domain.SyncJobStatusSynced).
			WillReturnRows(jobRow(1, 7, domain.SyncJobStatusPending, 0))

		job, err := repo.Create(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int32(1), job.ID)
		assert.Equal(t, domain.SyncJobStatusPending, job.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SyncedJobIsNotReset", func(t *testing.T) {
		// The guarded conflict update returns no rows for a SYNCED job;
		// Create falls back to returning the existing record untouched.
		mock.ExpectQuery("INSERT INTO sync_jobs").
			WithArgs(int32(7), domain.SyncJobStatusPending, sqlmock.AnyArg(), domain.SyncJobStatusSynced).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT (.+) FROM sync_jobs WHERE member_id").
			WithArgs(int32(7)).
			WillReturnRows(jobRow(1, 7, domain.SyncJobStatusSynced, 2))

		job, err := repo.Create(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, domain.SyncJobStatusSynced, job.Status)
		assert.Equal(t, int32(2), job.Attempts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSyncJobRepository_ListRetryable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSyncJobRepository(db)

	rows := sqlmock.NewRows(syncJobCols)
	now := time.Now()
	rows.AddRow(1, 10, domain.SyncJobStatusPending, 0, nil, nil, nil, nil, now, now)
	rows.AddRow(2, 11, domain.SyncJobStatusFailed, 3, now, nil, nil, "timeout", now, now)

	mock.ExpectQuery("SELECT (.+) FROM sync_jobs").
		WithArgs(domain.SyncJobStatusPending, domain.SyncJobStatusFailed, int32(5)).
		WillReturnRows(rows)

	jobs, err := repo.ListRetryable(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, int32(1), jobs[0].ID)
	assert.Equal(t, int32(3), jobs[1].Attempts)
	require.NotNil(t, jobs[1].LastError)
	assert.Equal(t, "timeout", *jobs[1].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncJobRepository_Transitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSyncJobRepository(db)
	ctx := context.Background()

	t.Run("MarkSyncingIncrementsAttempts", func(t *testing.T) {
		mock.ExpectExec("UPDATE sync_jobs").
			WithArgs(domain.SyncJobStatusSyncing, sqlmock.AnyArg(), int32(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkSyncing(ctx, 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MarkSyncedKeepsFirstExternalID", func(t *testing.T) {
		// COALESCE on external_id is in the statement itself; assert the
		// new id is only offered, not forced.
		mock.ExpectExec("UPDATE sync_jobs").
			WithArgs(domain.SyncJobStatusSynced, "ext-91", sqlmock.AnyArg(), int32(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkSynced(ctx, 3, "ext-91"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MarkFailedRecordsError", func(t *testing.T) {
		mock.ExpectExec("UPDATE sync_jobs").
			WithArgs(domain.SyncJobStatusFailed, "registrar returned status 502", sqlmock.AnyArg(), int32(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkFailed(ctx, 3, "registrar returned status 502"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingJobSurfacesNoRows", func(t *testing.T) {
		mock.ExpectExec("UPDATE sync_jobs").
			WithArgs(domain.SyncJobStatusSyncing, sqlmock.AnyArg(), int32(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.MarkSyncing(ctx, 99), sql.ErrNoRows)
	})
}

func TestSyncJobRepository_OperatorActions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewSyncJobRepository(db)
	ctx := context.Background()

	t.Run("RequeueFailedHonorsBound", func(t *testing.T) {
		mock.ExpectExec("UPDATE sync_jobs").
			WithArgs(domain.SyncJobStatusPending, sqlmock.AnyArg(), domain.SyncJobStatusFailed, int32(5)).
			WillReturnResult(sqlmock.NewResult(0, 4))

		n, err := repo.RequeueFailed(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("ResetAttempts", func(t *testing.T) {
		mock.ExpectExec("UPDATE sync_jobs").
			WithArgs(domain.SyncJobStatusPending, sqlmock.AnyArg(), int32(8), domain.SyncJobStatusSynced).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.ResetAttempts(ctx, 8))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ResetRefusesSyncedJob", func(t *testing.T) {
		// The status guard in the statement touches zero rows for a
		// SYNCED job.
		mock.ExpectExec("UPDATE sync_jobs").
			WithArgs(domain.SyncJobStatusPending, sqlmock.AnyArg(), int32(9), domain.SyncJobStatusSynced).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.ResetAttempts(ctx, 9), sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
