package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/garnizeh/contactdesk/internal/config"
	"github.com/garnizeh/contactdesk/pkg/auth"
	"github.com/garnizeh/contactdesk/pkg/contacts"
	"github.com/garnizeh/contactdesk/pkg/models"
	"github.com/garnizeh/contactdesk/pkg/remote"
)

// AdminHandler serves the admin panel over one contacts controller and one
// auth service.
type AdminHandler struct {
	ctrl *contacts.Controller
	auth *auth.Service
	gate config.GateConfig
}

func NewAdminHandler(ctrl *contacts.Controller, authSvc *auth.Service, gate config.GateConfig) *AdminHandler {
	if gate.CookieName == "" {
		gate.CookieName = "admin-token"
	}
	return &AdminHandler{ctrl: ctrl, auth: authSvc, gate: gate}
}

type listResponse struct {
	Success  bool             `json:"success"`
	Data     []models.Contact `json:"data"`
	Services []string         `json:"services"`
	Query    models.Query     `json:"query"`
	Error    string           `json:"error,omitempty"`
}

type resultResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("api: encode response", slog.Any("err", err))
	}
}

// LoginPage tells the client a login is required and where to go back to.
func (h *AdminHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"login_required": true,
		"from":           r.URL.Query().Get("from"),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "Invalid request"})
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrMissingCredentials) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, resultResponse{Error: loginMessage(err)})
		return
	}

	cookie := &http.Cookie{
		Name:     h.gate.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	}
	if exp, ok := tokenExpiry(token); ok {
		cookie.Expires = exp
	}
	http.SetCookie(w, cookie)

	redirect := r.URL.Query().Get("from")
	if !safeRedirect(redirect) {
		redirect = "/admin/contacts"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user, "redirect": redirect})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		logger.Error("api: logout", slog.Any("err", err))
	}
	h.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "redirect": h.gate.LoginPath})
}

func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.CheckAuth(r.Context())
	if err != nil {
		if h.sessionGone(r) {
			h.authRequired(w, r)
			return
		}
		writeJSON(w, http.StatusBadGateway, resultResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *AdminHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q := models.Query{Search: v.Get("search"), Service: v.Get("service"), SortBy: models.SortOrder(v.Get("sort"))}

	snap, ok := h.ctrl.LoadView(r.Context(), q)
	if !ok {
		if h.sessionGone(r) {
			h.authRequiredMsg(w, r, snap.Err)
			return
		}
		writeJSON(w, http.StatusBadGateway, listResponse{Data: snap.View, Services: []string{}, Query: snap.Query, Error: snap.Err})
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Success:  true,
		Data:     snap.View,
		Services: contacts.Services(snap.Records),
		Query:    snap.Query,
	})
}

func (h *AdminHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	rec, ok := h.ctrl.Detail(r.Context(), id)
	if !ok {
		h.failed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rec})
}

func (h *AdminHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	if !h.ctrl.DeleteOne(r.Context(), id) {
		h.failed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true})
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *AdminHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "Invalid request"})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "No contacts selected"})
		return
	}
	if !h.ctrl.DeleteMany(r.Context(), req.IDs) {
		h.failed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true})
}

func (h *AdminHandler) MarkRead(w http.ResponseWriter, r *http.Request)   { h.setRead(w, r, true) }
func (h *AdminHandler) MarkUnread(w http.ResponseWriter, r *http.Request) { h.setRead(w, r, false) }

func (h *AdminHandler) setRead(w http.ResponseWriter, r *http.Request, read bool) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	if !h.ctrl.SetReadStatus(r.Context(), id, read) {
		h.failed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true})
}

func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: fmt.Sprintf("Unsupported export format %q", format)})
		return
	}

	text, ok := h.ctrl.Export(r.Context(), format)
	if !ok {
		h.failed(w, r)
		return
	}

	name := fmt.Sprintf("contacts-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		logger.Error("api: write export", slog.Any("err", err))
	}
}

// Stats reloads the collection with the current query and summarizes what
// that load returned.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ctrl.LoadView(r.Context(), h.ctrl.Query())
	if !ok {
		if h.sessionGone(r) {
			h.authRequiredMsg(w, r, snap.Err)
			return
		}
		writeJSON(w, http.StatusBadGateway, resultResponse{Error: snap.Err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": contacts.Summarize(snap.Records, time.Now())})
}

// failed answers with the controller's last error, or with a login redirect
// when the failure cleared the session.
func (h *AdminHandler) failed(w http.ResponseWriter, r *http.Request) {
	if h.sessionGone(r) {
		h.authRequired(w, r)
		return
	}
	writeJSON(w, http.StatusBadGateway, resultResponse{Error: h.ctrl.Err()})
}

func (h *AdminHandler) sessionGone(r *http.Request) bool {
	_, ok := h.auth.Current(r.Context())
	return !ok
}

func (h *AdminHandler) authRequired(w http.ResponseWriter, r *http.Request) {
	h.authRequiredMsg(w, r, h.ctrl.Err())
}

func (h *AdminHandler) authRequiredMsg(w http.ResponseWriter, r *http.Request, msg string) {
	h.clearCookie(w)
	if msg == "" {
		msg = "Authentication required"
	}
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error":    msg,
		"redirect": h.gate.LoginPath + "?" + url.Values{"from": {r.URL.Path}}.Encode(),
	})
}

func (h *AdminHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.gate.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func contactID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "Invalid contact id"})
		return 0, false
	}
	return id, true
}

func loginMessage(err error) string {
	var httpErr *remote.HTTPError
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return "Email and password are required"
	case errors.As(err, &httpErr) && httpErr.Message != "":
		return httpErr.Message
	case errors.Is(err, auth.ErrLoginRejected):
		return strings.TrimPrefix(err.Error(), auth.ErrLoginRejected.Error()+": ")
	default:
		return "Login failed"
	}
}

// safeRedirect accepts only local absolute paths.
func safeRedirect(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}
