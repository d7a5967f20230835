package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"collective-backend/internal/domain"
	"collective-backend/internal/logger"
	"collective-backend/internal/repository"
	"collective-backend/internal/service"
)

// MemberHandler covers member intake and the acceptance trigger.
type MemberHandler struct {
	members    repository.MemberRepository
	cohorts    repository.CohortRepository
	onboarding service.OnboardingService
}

func NewMemberHandler(members repository.MemberRepository, cohorts repository.CohortRepository, onboarding service.OnboardingService) *MemberHandler {
	return &MemberHandler{
		members:    members,
		cohorts:    cohorts,
		onboarding: onboarding,
	}
}

type createMemberRequest struct {
	Name            string   `json:"name"`
	Pseudonym       string   `json:"pseudonym"`
	Email           string   `json:"email"`
	Minor           bool     `json:"minor"`
	ExpressionTypes []string `json:"expression_types"`
}

func (h *MemberHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}
	if req.Pseudonym == "" {
		req.Pseudonym = req.Name
	}

	member := &domain.Member{
		Name:            req.Name,
		Pseudonym:       req.Pseudonym,
		Email:           req.Email,
		Minor:           req.Minor,
		ExpressionTypes: req.ExpressionTypes,
	}
	if err := h.members.Create(r.Context(), member); err != nil {
		logger.Error("Failed to create member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create member")
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *MemberHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List(r.Context())
	if err != nil {
		logger.Error("Failed to list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) ListCohorts(w http.ResponseWriter, r *http.Request) {
	cohorts, err := h.cohorts.List(r.Context())
	if err != nil {
		logger.Error("Failed to list cohorts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list cohorts")
		return
	}
	writeJSON(w, http.StatusOK, cohorts)
}

type acceptanceRequest struct {
	MemberID int32 `json:"member_id"`
}

// HandleAcceptance is the upstream trigger: assign a cohort, then create
// the sync job. Either the member ends up definitely assigned or the call
// fails outright.
func (h *MemberHandler) HandleAcceptance(w http.ResponseWriter, r *http.Request) {
	var req acceptanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MemberID == 0 {
		writeError(w, http.StatusBadRequest, "member_id is required")
		return
	}

	cohort, job, err := h.onboarding.OnAcceptance(r.Context(), req.MemberID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyAssigned) {
			writeError(w, http.StatusConflict, "member already has a cohort assignment")
			return
		}
		logger.Error("Acceptance failed", "member_id", req.MemberID, "error", err)
		writeError(w, http.StatusInternalServerError, "acceptance failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cohort":   cohort,
		"sync_job": job,
	})
}
