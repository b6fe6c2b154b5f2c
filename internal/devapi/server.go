// Package devapi is a local stand-in for the contacts backend. It serves the
// admin endpoints the panel consumes over sqlite so the panel can be run and
// tested end to end without the production API.
package devapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/garnizeh/contactdesk/pkg/repository"
)

// Envelope names the wrapper used for list responses.
type Envelope string

const (
	EnvelopePaginated Envelope = "paginated"
	EnvelopeFlat      Envelope = "flat"
	EnvelopeBare      Envelope = "bare"
)

// package-level logger used by handlers; can be set via SetLogger from caller
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger installs a logger for the devapi package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

type Options struct {
	JWTSecret     string
	TokenDuration time.Duration
	Envelope      Envelope
	// Now overrides the clock used to issue and check tokens.
	Now func() time.Time
}

type Server struct {
	contacts repository.ContactRepo
	admins   repository.AdminRepo
	tokens   repository.TokenRepo
	opts     Options
}

func New(contacts repository.ContactRepo, admins repository.AdminRepo, tokens repository.TokenRepo, opts Options) (*Server, error) {
	if contacts == nil || admins == nil || tokens == nil {
		return nil, fmt.Errorf("devapi: repositories are required")
	}
	if opts.JWTSecret == "" {
		return nil, fmt.Errorf("devapi: jwt secret is required")
	}
	if opts.TokenDuration <= 0 {
		opts.TokenDuration = 2 * time.Hour
	}
	switch opts.Envelope {
	case "":
		opts.Envelope = EnvelopePaginated
	case EnvelopePaginated, EnvelopeFlat, EnvelopeBare:
	default:
		return nil, fmt.Errorf("devapi: unknown envelope %q", opts.Envelope)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{contacts: contacts, admins: admins, tokens: tokens, opts: opts}, nil
}

// Routes mounts the admin endpoints under prefix (for example "/api").
func (s *Server) Routes(prefix string) *mux.Router {
	r := mux.NewRouter()
	base := r.PathPrefix(prefix).Subrouter()

	base.HandleFunc("/admin/login", s.Login).Methods(http.MethodPost)

	protected := base.PathPrefix("/admin").Subrouter()
	protected.Use(s.TokenMiddleware)

	protected.HandleFunc("/logout", s.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/check-auth", s.CheckAuth).Methods(http.MethodGet)

	protected.HandleFunc("/contacts", s.ListContacts).Methods(http.MethodGet)
	protected.HandleFunc("/contacts/export", s.ExportContacts).Methods(http.MethodGet)
	protected.HandleFunc("/contacts/bulk-delete", s.BulkDelete).Methods(http.MethodPost)
	protected.HandleFunc("/contacts/{id:[0-9]+}", s.GetContact).Methods(http.MethodGet)
	protected.HandleFunc("/contacts/{id:[0-9]+}", s.DeleteContact).Methods(http.MethodDelete)
	protected.HandleFunc("/contacts/{id:[0-9]+}/read", s.MarkRead).Methods(http.MethodPut)
	protected.HandleFunc("/contacts/{id:[0-9]+}/unread", s.MarkUnread).Methods(http.MethodPut)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Not found"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("devapi: encode response", slog.Any("err", err))
	}
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
