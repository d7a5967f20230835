package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"collective-backend/internal/domain"
	"collective-backend/internal/repository"
)

type cohortRepository struct {
	db *sql.DB
}

func NewCohortRepository(db *sql.DB) repository.CohortRepository {
	return &cohortRepository{db: db}
}

const cohortColumns = `id, label, capacity, current_count, status, created_on`

// cohortCreateLockID keys the transaction-scoped advisory lock that
// serializes cohort creation.
const cohortCreateLockID = 874551001

// AssignMember performs one allocation attempt. The whole read-modify-write
// runs inside a single transaction with the oldest open cohort row locked,
// so concurrent attempts serialize on that row. The conditional increment
// still guards the capacity bound in case the locked snapshot went stale.
func (r *cohortRepository) AssignMember(ctx context.Context, m *domain.Member, capacity int32) (*domain.Cohort, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin allocation transaction: %w", err)
	}
	defer tx.Rollback()

	cohort, err := lockOldestOpenCohort(ctx, tx)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to lock open cohort: %w", err)
	}

	if cohort != nil && cohort.IsFull() {
		// Stale open row left behind by a crash between increment and
		// close; repair it and fall through to creating a fresh cohort.
		if err := closeCohort(ctx, tx, cohort.ID); err != nil {
			return nil, fmt.Errorf("failed to close full cohort %d: %w", cohort.ID, err)
		}
		cohort = nil
	}

	if cohort == nil {
		cohort, err = createCohort(ctx, tx, capacity)
		if err != nil {
			return nil, fmt.Errorf("failed to create cohort: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE cohorts SET current_count = current_count + 1 WHERE id = $1 AND current_count < capacity`,
		cohort.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to increment cohort count: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Lost the race: a competitor filled the cohort after our lock
		// attempt resolved. Close it so the next attempt starts fresh.
		if err := closeCohort(ctx, tx, cohort.ID); err != nil {
			return nil, fmt.Errorf("failed to close contended cohort %d: %w", cohort.ID, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit cohort close: %w", err)
		}
		return nil, repository.ErrCohortContended
	}
	cohort.CurrentCount++

	if cohort.IsFull() {
		if err := closeCohort(ctx, tx, cohort.ID); err != nil {
			return nil, fmt.Errorf("failed to close filled cohort %d: %w", cohort.ID, err)
		}
		cohort.Status = domain.CohortStatusClosed
	}

	// Member stamping commits atomically with the cohort mutation; either
	// both land or neither does.
	_, err = tx.ExecContext(ctx,
		`UPDATE members SET cohort_id = $1, internal_code = $2, approved_on = $3, updated_on = $4 WHERE id = $5`,
		cohort.ID, m.InternalCode, m.ApprovedOn, time.Now(), m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to stamp member %d: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit allocation: %w", err)
	}

	m.CohortID = &cohort.ID
	return cohort, nil
}

func lockOldestOpenCohort(ctx context.Context, tx *sql.Tx) (*domain.Cohort, error) {
	c := &domain.Cohort{}
	query := `SELECT ` + cohortColumns + ` FROM cohorts WHERE status = $1 ORDER BY id ASC LIMIT 1 FOR UPDATE`
	err := tx.QueryRowContext(ctx, query, domain.CohortStatusOpen).
		Scan(&c.ID, &c.Label, &c.Capacity, &c.CurrentCount, &c.Status, &c.CreatedOn)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// createCohort opens a fresh cohort. With no open row to lock, concurrent
// transactions have nothing to serialize on, so creation queues on an
// advisory lock held to commit. After the lock lands the open check is
// re-run: the competitor we waited behind may have committed a new cohort,
// which is then adopted instead of duplicated.
func createCohort(ctx context.Context, tx *sql.Tx, capacity int32) (*domain.Cohort, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, cohortCreateLockID); err != nil {
		return nil, fmt.Errorf("failed to take cohort creation lock: %w", err)
	}

	existing, err := lockOldestOpenCohort(ctx, tx)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if existing != nil {
		if !existing.IsFull() {
			return existing, nil
		}
		if err := closeCohort(ctx, tx, existing.ID); err != nil {
			return nil, err
		}
	}

	c := &domain.Cohort{
		Capacity:     capacity,
		CurrentCount: 0,
		Status:       domain.CohortStatusOpen,
		CreatedOn:    time.Now(),
	}
	var n int32
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM cohorts`).Scan(&n); err != nil {
		return nil, err
	}
	c.Label = fmt.Sprintf("Cohort %d", n+1)

	err = tx.QueryRowContext(ctx,
		`INSERT INTO cohorts (label, capacity, current_count, status, created_on) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		c.Label, c.Capacity, c.CurrentCount, c.Status, c.CreatedOn).Scan(&c.ID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func closeCohort(ctx context.Context, tx *sql.Tx, id int32) error {
	_, err := tx.ExecContext(ctx, `UPDATE cohorts SET status = $1 WHERE id = $2`, domain.CohortStatusClosed, id)
	return err
}

func (r *cohortRepository) GetByID(ctx context.Context, id int32) (*domain.Cohort, error) {
	c := &domain.Cohort{}
	query := `SELECT ` + cohortColumns + ` FROM cohorts WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.Label, &c.Capacity, &c.CurrentCount, &c.Status, &c.CreatedOn)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *cohortRepository) List(ctx context.Context) ([]domain.Cohort, error) {
	query := `SELECT ` + cohortColumns + ` FROM cohorts ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cohorts []domain.Cohort
	for rows.Next() {
		var c domain.Cohort
		if err := rows.Scan(&c.ID, &c.Label, &c.Capacity, &c.CurrentCount, &c.Status, &c.CreatedOn); err != nil {
			return nil, err
		}
		cohorts = append(cohorts, c)
	}
	return cohorts, rows.Err()
}
