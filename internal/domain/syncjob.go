package domain

import "time"

type SyncJobStatus string

const (
	SyncJobStatusPending SyncJobStatus = "PENDING"
	SyncJobStatusSyncing SyncJobStatus = "SYNCING"
	SyncJobStatusSynced  SyncJobStatus = "SYNCED"
	SyncJobStatusFailed  SyncJobStatus = "FAILED"
)

// SyncJob tracks the progress of mirroring one member into the external
// registrar. At most one job exists per member. ExternalID, once set, is
// never cleared or replaced; it is the idempotency anchor for every
// subsequent registrar call about that member.
type SyncJob struct {
	ID            int32         `json:"id"`
	MemberID      int32         `json:"member_id"`
	Status        SyncJobStatus `json:"status"`
	Attempts      int32         `json:"attempts"`
	LastAttemptAt *time.Time    `json:"last_attempt_at"`
	LastSyncedAt  *time.Time    `json:"last_synced_at"`
	ExternalID    *string       `json:"external_id"`
	LastError     *string       `json:"last_error"`
	CreatedOn     time.Time     `json:"created_on"`
	UpdatedOn     time.Time     `json:"updated_on"`
}

// Exhausted reports whether the job has burned its retry budget.
func (j *SyncJob) Exhausted(maxAttempts int32) bool {
	return j.Status == SyncJobStatusFailed && j.Attempts >= maxAttempts
}
