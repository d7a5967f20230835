package http

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"collective-backend/internal/domain"
	"collective-backend/internal/jobs"
	"collective-backend/internal/logger"
	"collective-backend/internal/repository"

	"github.com/gorilla/mux"
)

// SyncJobHandler exposes the operator view of the sync pipeline: job
// status inspection and manual retries outside the cron schedule.
type SyncJobHandler struct {
	jobRepo repository.SyncJobRepository
	runner  *jobs.JobRunner
}

func NewSyncJobHandler(jobRepo repository.SyncJobRepository, runner *jobs.JobRunner) *SyncJobHandler {
	return &SyncJobHandler{
		jobRepo: jobRepo,
		runner:  runner,
	}
}

func (h *SyncJobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := h.jobRepo.List(r.Context())
	if err != nil {
		logger.Error("Failed to list sync jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sync jobs")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *SyncJobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "sync job not found")
			return
		}
		logger.Error("Failed to load sync job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load sync job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// RetryJob drives one job immediately; the attempt bound still applies.
func (h *SyncJobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	logger.Info("Operator retry requested", "job_id", id, "operator", OperatorFromContext(r.Context()))
	if err := h.runner.ProcessJobByID(r.Context(), id); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "retry ran but job reload failed")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// RetryAllFailed requeues every failed job under the bound and sweeps.
func (h *SyncJobHandler) RetryAllFailed(w http.ResponseWriter, r *http.Request) {
	logger.Info("Operator retry-all requested", "operator", OperatorFromContext(r.Context()))
	requeued, err := h.runner.RetryAllFailed(r.Context())
	if err != nil {
		logger.Error("Retry-all failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retry failed jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"requeued": requeued})
}

// ResetJob zeroes the attempt counter, the explicit operator override of
// the retry budget. SYNCED is absorbing: a mirrored member is never
// re-queued.
func (h *SyncJobHandler) ResetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	logger.Info("Operator reset requested", "job_id", id, "operator", OperatorFromContext(r.Context()))
	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "sync job not found")
			return
		}
		logger.Error("Failed to load sync job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load sync job")
		return
	}
	if job.Status == domain.SyncJobStatusSynced {
		writeError(w, http.StatusUnprocessableEntity, "sync job is already synced")
		return
	}
	if err := h.jobRepo.ResetAttempts(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "sync job not found")
			return
		}
		logger.Error("Failed to reset sync job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset sync job")
		return
	}
	job, err = h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reset ran but job reload failed")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// RunSweep triggers an immediate sweep, bypassing the schedule.
func (h *SyncJobHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	logger.Info("Operator sweep requested", "operator", OperatorFromContext(r.Context()))
	h.runner.SyncSweep(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sweep completed"})
}

func jobID(w http.ResponseWriter, r *http.Request) (int32, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return int32(id), true
}
