package postgres

import (
	"database/sql"

	"collective-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.CohortRepository
	repository.MemberRepository
	repository.SyncJobRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                db,
		CohortRepository:  NewCohortRepository(db),
		MemberRepository:  NewMemberRepository(db),
		SyncJobRepository: NewSyncJobRepository(db),
	}
}
