package http

import (
	"net/http"

	"collective-backend/internal/security"

	"github.com/gorilla/mux"
)

// NewRouter wires all API routes. Everything under /api/v1 requires an
// operator bearer token.
func NewRouter(members *MemberHandler, syncJobs *SyncJobHandler, tokens security.TokenManager) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(AuthMiddleware(tokens))

	api.HandleFunc("/members", members.CreateMember).Methods("POST")
	api.HandleFunc("/members", members.ListMembers).Methods("GET")
	api.HandleFunc("/cohorts", members.ListCohorts).Methods("GET")
	api.HandleFunc("/acceptances", members.HandleAcceptance).Methods("POST")

	api.HandleFunc("/sync-jobs", syncJobs.ListJobs).Methods("GET")
	api.HandleFunc("/sync-jobs/run", syncJobs.RunSweep).Methods("POST")
	api.HandleFunc("/sync-jobs/retry-failed", syncJobs.RetryAllFailed).Methods("POST")
	api.HandleFunc("/sync-jobs/{id}", syncJobs.GetJob).Methods("GET")
	api.HandleFunc("/sync-jobs/{id}/retry", syncJobs.RetryJob).Methods("POST")
	api.HandleFunc("/sync-jobs/{id}/reset", syncJobs.ResetJob).Methods("POST")

	return router
}
