package api

import (
	"context"
	"net/http"
)

// SystemHandler answers the open status endpoints. It reports which contacts
// backend the panel talks to and whether an admin session is held.
type SystemHandler struct {
	backend       string
	authenticated func(ctx context.Context) bool
}

func NewSystemHandler(backend string, authenticated func(ctx context.Context) bool) *SystemHandler {
	if authenticated == nil {
		authenticated = func(context.Context) bool { return false }
	}
	return &SystemHandler{backend: backend, authenticated: authenticated}
}

type healthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	Backend       string `json:"backend"`
	Authenticated bool   `json:"authenticated"`
}

func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Service:       "contactdesk",
		Backend:       h.backend,
		Authenticated: h.authenticated(r.Context()),
	})
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version, "buildTime": buildTime})
	}
}
