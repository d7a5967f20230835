package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"collective-backend/internal/config"
	"collective-backend/internal/domain"
	"collective-backend/internal/logger"
	"collective-backend/internal/security"

	"github.com/google/uuid"
)

// ErrRegistrarNotConfigured means the deployment runs without an external
// registrar; callers log and skip instead of failing the process.
var ErrRegistrarNotConfigured = errors.New("external registrar is not configured")

// RegistrarError is a retryable failure from the external registrar: any
// non-2xx status, carried with the response body for the job's audit trail.
type RegistrarError struct {
	StatusCode int
	Body       string
}

func (e *RegistrarError) Error() string {
	return fmt.Sprintf("registrar returned status %d: %s", e.StatusCode, e.Body)
}

type registrarService struct {
	cfg    config.RegistrarConfig
	signer *security.Signer
	client *http.Client
}

// NewRegistrarService builds the registrar client. With no base URL the
// service is a recognized no-op; with a base URL but no signing secret the
// constructor fails so the process cannot start half-configured.
func NewRegistrarService(cfg config.RegistrarConfig) (RegistrarService, error) {
	if !cfg.Configured() {
		return &registrarService{cfg: cfg}, nil
	}
	signer, err := security.NewSigner(cfg.SigningSecret)
	if err != nil {
		return nil, err
	}
	return &registrarService{
		cfg:    cfg,
		signer: signer,
		client: &http.Client{Timeout: cfg.Timeout()},
	}, nil
}

func (s *registrarService) Configured() bool {
	return s.cfg.Configured()
}

type registrationRequest struct {
	Source              string   `json:"source"`
	CollectiveID        string   `json:"collectiveId"`
	InternalCode        string   `json:"internalCode"`
	Pseudonym           string   `json:"pseudonym"`
	CohortID            int32    `json:"cohortId"`
	CohortLabel         string   `json:"cohortLabel"`
	MinorAdultFlag      string   `json:"minorAdultFlag"`
	ExpressionTypes     []string `json:"expressionTypes"`
	Email               string   `json:"email"`
	GeneratedCredential string   `json:"generatedCredential,omitempty"`
	Status              string   `json:"status"`
}

type profileUpdateRequest struct {
	Source       string `json:"source"`
	InternalCode string `json:"internalCode"`
	Pseudonym    string `json:"pseudonym"`
	CohortLabel  string `json:"cohortLabel"`
	Status       string `json:"status"`
}

func (s *registrarService) Register(ctx context.Context, member *domain.Member, cohort *domain.Cohort, job *domain.SyncJob, credential string) (string, error) {
	if !s.Configured() {
		return "", ErrRegistrarNotConfigured
	}

	// An external id on the job turns this call into a pure update; the
	// registrar never sees a second account for the same member.
	if job.ExternalID != nil && *job.ExternalID != "" {
		return s.update(ctx, member, cohort, *job.ExternalID)
	}
	return s.register(ctx, member, cohort, credential)
}

func (s *registrarService) register(ctx context.Context, member *domain.Member, cohort *domain.Cohort, credential string) (string, error) {
	payload := registrationRequest{
		Source:              s.cfg.Source,
		CollectiveID:        s.cfg.CollectiveID,
		InternalCode:        member.InternalCode,
		Pseudonym:           member.Pseudonym,
		CohortID:            cohort.ID,
		CohortLabel:         cohort.Label,
		MinorAdultFlag:      member.MinorAdultFlag(),
		ExpressionTypes:     member.ExpressionTypes,
		Email:               member.Email,
		GeneratedCredential: credential,
		Status:              "approved",
	}
	body, err := s.send(ctx, s.cfg.BaseURL+"/authors", payload, "register")
	if err != nil {
		return "", err
	}
	externalID, err := extractExternalID(body)
	if err != nil {
		return "", fmt.Errorf("registration succeeded but response had no usable id: %w", err)
	}
	return externalID, nil
}

func (s *registrarService) update(ctx context.Context, member *domain.Member, cohort *domain.Cohort, externalID string) (string, error) {
	payload := profileUpdateRequest{
		Source:       s.cfg.Source,
		InternalCode: member.InternalCode,
		Pseudonym:    member.Pseudonym,
		CohortLabel:  cohort.Label,
		Status:       "approved",
	}
	if _, err := s.send(ctx, s.cfg.BaseURL+"/authors/"+externalID, payload, "update"); err != nil {
		return "", err
	}
	return externalID, nil
}

// send marshals, signs and posts one payload. Timestamp and signature are
// regenerated for every call; the receiver rejects stale or reused ones.
func (s *registrarService) send(ctx context.Context, url string, payload any, operation string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", operation, err)
	}

	ts := time.Now().UnixMilli()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.cfg.APIKey)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", s.signer.Sign(ts, body))
	req.Header.Set("X-Request-Id", uuid.NewString())

	logger.ExternalCall(operation, "url", url)
	resp, err := s.client.Do(req)
	if err != nil {
		// Timeouts and connection failures are retried the same way as
		// HTTP errors.
		logger.ExternalResult(operation, err)
		return nil, fmt.Errorf("registrar %s call failed: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read registrar %s response: %w", operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		regErr := &RegistrarError{StatusCode: resp.StatusCode, Body: string(respBody)}
		logger.ExternalResult(operation, regErr, "status", resp.StatusCode)
		return nil, regErr
	}
	logger.ExternalResult(operation, nil, "status", resp.StatusCode)
	return respBody, nil
}

// extractExternalID digs the external identifier out of the response,
// checking the shapes the registrar has been seen to produce: a nested
// user object, a top-level id, or a top-level authorId. Ids arrive as
// numbers or strings depending on the endpoint.
func extractExternalID(body []byte) (string, error) {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("response is not a JSON object: %w", err)
	}
	if user, ok := parsed["user"].(map[string]any); ok {
		if id := stringifyID(user["id"]); id != "" {
			return id, nil
		}
	}
	if id := stringifyID(parsed["id"]); id != "" {
		return id, nil
	}
	if id := stringifyID(parsed["authorId"]); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no id in response: %s", string(body))
}

func stringifyID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}
