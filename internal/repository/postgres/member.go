package postgres

import (
	"context"
	"database/sql"
	"time"

	"collective-backend/internal/domain"
	"collective-backend/internal/repository"

	"github.com/lib/pq"
)

type memberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

const memberColumns = `id, name, pseudonym, email, minor, expression_types, internal_code, cohort_id, approved_on, migrated_on, credential_hash, created_on, updated_on`

func (r *memberRepository) Create(ctx context.Context, m *domain.Member) error {
	query := `INSERT INTO members (name, pseudonym, email, minor, expression_types, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	now := time.Now()
	return r.db.QueryRowContext(ctx, query,
		m.Name, m.Pseudonym, m.Email, m.Minor, pq.Array(m.ExpressionTypes), now, now).Scan(&m.ID)
}

func (r *memberRepository) GetByID(ctx context.Context, id int32) (*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	return scanMember(r.db.QueryRowContext(ctx, query, id))
}

func (r *memberRepository) List(ctx context.Context) ([]domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (r *memberRepository) SetCredentialHash(ctx context.Context, id int32, hash string) error {
	query := `UPDATE members SET credential_hash = $1, updated_on = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, hash, time.Now(), id)
	return err
}

func (r *memberRepository) MarkMigrated(ctx context.Context, id int32) error {
	query := `UPDATE members SET migrated_on = $1, updated_on = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*domain.Member, error) {
	m := &domain.Member{}
	var internalCode, credentialHash sql.NullString
	err := row.Scan(&m.ID, &m.Name, &m.Pseudonym, &m.Email, &m.Minor,
		pq.Array(&m.ExpressionTypes), &internalCode, &m.CohortID,
		&m.ApprovedOn, &m.MigratedOn, &credentialHash, &m.CreatedOn, &m.UpdatedOn)
	if err != nil {
		return nil, err
	}
	m.InternalCode = internalCode.String
	m.CredentialHash = credentialHash.String
	return m, nil
}
