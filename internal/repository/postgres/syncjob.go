package postgres

import (
	"context"
	"database/sql"
	"time"

	"collective-backend/internal/domain"
	"collective-backend/internal/repository"
)

type syncJobRepository struct {
	db *sql.DB
}

func NewSyncJobRepository(db *sql.DB) repository.SyncJobRepository {
	return &syncJobRepository{db: db}
}

const syncJobColumns = `id, member_id, status, attempts, last_attempt_at, last_synced_at, external_id, last_error, created_on, updated_on`

// Create upserts on member_id: an existing job is re-queued to PENDING
// unless it already reached SYNCED, which is absorbing.
func (r *syncJobRepository) Create(ctx context.Context, memberID int32) (*domain.SyncJob, error) {
	query := `INSERT INTO sync_jobs (member_id, status, attempts, created_on, updated_on)
	          VALUES ($1, $2, 0, $3, $3)
	          ON CONFLICT (member_id) DO UPDATE
	            SET status = EXCLUDED.status, updated_on = EXCLUDED.updated_on
	            WHERE sync_jobs.status <> $4
	          RETURNING ` + syncJobColumns
	now := time.Now()
	job, err := scanSyncJob(r.db.QueryRowContext(ctx, query,
		memberID, domain.SyncJobStatusPending, now, domain.SyncJobStatusSynced))
	if err == sql.ErrNoRows {
		// Conflict update skipped because the job is SYNCED; return it as-is.
		return r.GetByMemberID(ctx, memberID)
	}
	return job, err
}

func (r *syncJobRepository) GetByID(ctx context.Context, id int32) (*domain.SyncJob, error) {
	query := `SELECT ` + syncJobColumns + ` FROM sync_jobs WHERE id = $1`
	return scanSyncJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *syncJobRepository) GetByMemberID(ctx context.Context, memberID int32) (*domain.SyncJob, error) {
	query := `SELECT ` + syncJobColumns + ` FROM sync_jobs WHERE member_id = $1`
	return scanSyncJob(r.db.QueryRowContext(ctx, query, memberID))
}

func (r *syncJobRepository) List(ctx context.Context) ([]domain.SyncJob, error) {
	query := `SELECT ` + syncJobColumns + ` FROM sync_jobs ORDER BY id ASC`
	return r.queryJobs(ctx, query)
}

func (r *syncJobRepository) ListRetryable(ctx context.Context, maxAttempts int32) ([]domain.SyncJob, error) {
	query := `SELECT ` + syncJobColumns + ` FROM sync_jobs
	          WHERE status = $1 OR (status = $2 AND attempts < $3)
	          ORDER BY id ASC`
	return r.queryJobs(ctx, query, domain.SyncJobStatusPending, domain.SyncJobStatusFailed, maxAttempts)
}

func (r *syncJobRepository) MarkSyncing(ctx context.Context, id int32) error {
	query := `UPDATE sync_jobs
	          SET status = $1, attempts = attempts + 1, last_attempt_at = $2, updated_on = $2
	          WHERE id = $3`
	return r.exec(ctx, query, domain.SyncJobStatusSyncing, time.Now(), id)
}

// MarkSynced leaves an already-set external_id untouched; the first value
// ever recorded for a member wins for good.
func (r *syncJobRepository) MarkSynced(ctx context.Context, id int32, externalID string) error {
	query := `UPDATE sync_jobs
	          SET status = $1, external_id = COALESCE(external_id, $2), last_synced_at = $3,
	              last_error = NULL, updated_on = $3
	          WHERE id = $4`
	return r.exec(ctx, query, domain.SyncJobStatusSynced, externalID, time.Now(), id)
}

func (r *syncJobRepository) MarkFailed(ctx context.Context, id int32, errMsg string) error {
	query := `UPDATE sync_jobs SET status = $1, last_error = $2, updated_on = $3 WHERE id = $4`
	return r.exec(ctx, query, domain.SyncJobStatusFailed, errMsg, time.Now(), id)
}

func (r *syncJobRepository) RequeueFailed(ctx context.Context, maxAttempts int32) (int64, error) {
	query := `UPDATE sync_jobs SET status = $1, updated_on = $2 WHERE status = $3 AND attempts < $4`
	res, err := r.db.ExecContext(ctx, query, domain.SyncJobStatusPending, time.Now(), domain.SyncJobStatusFailed, maxAttempts)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetAttempts refuses SYNCED jobs the same way Create does; a mirrored
// member never goes back into the queue.
func (r *syncJobRepository) ResetAttempts(ctx context.Context, id int32) error {
	query := `UPDATE sync_jobs SET status = $1, attempts = 0, last_error = NULL, updated_on = $2
	          WHERE id = $3 AND status <> $4`
	return r.exec(ctx, query, domain.SyncJobStatusPending, time.Now(), id, domain.SyncJobStatusSynced)
}

func (r *syncJobRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *syncJobRepository) queryJobs(ctx context.Context, query string, args ...any) ([]domain.SyncJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.SyncJob
	for rows.Next() {
		j, err := scanSyncJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func scanSyncJob(row rowScanner) (*domain.SyncJob, error) {
	j := &domain.SyncJob{}
	err := row.Scan(&j.ID, &j.MemberID, &j.Status, &j.Attempts, &j.LastAttemptAt,
		&j.LastSyncedAt, &j.ExternalID, &j.LastError, &j.CreatedOn, &j.UpdatedOn)
	if err != nil {
		return nil, err
	}
	return j, nil
}
