package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/contactdesk/internal/config"
	"github.com/garnizeh/contactdesk/pkg/auth"
	"github.com/garnizeh/contactdesk/pkg/contacts"
	"github.com/garnizeh/contactdesk/pkg/remote"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, ctrl *contacts.Controller, authSvc *auth.Service, notifier *remote.AuthNotifier) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(SessionGateMiddleware(cfg.Gate))

	if notifier != nil {
		notifier.Subscribe(func(ev remote.AuthRequired) {
			logger.Warn("admin session cleared by backend",
				slog.Int("status", ev.Status),
				slog.String("path", ev.Path),
				slog.Time("at", ev.At),
			)
		})
	}

	// Create handlers
	systemHandler := NewSystemHandler(cfg.Remote.BaseURL, func(ctx context.Context) bool {
		_, ok := authSvc.Current(ctx)
		return ok
	})
	adminHandler := NewAdminHandler(ctrl, authSvc, cfg.Gate)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc(cfg.Gate.LoginPath, adminHandler.LoginPage).Methods(http.MethodGet)
	r.HandleFunc(cfg.Gate.LoginPath, adminHandler.Login).Methods(http.MethodPost)

	// Gated admin routes
	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/logout", adminHandler.Logout).Methods(http.MethodPost)
	admin.HandleFunc("/me", adminHandler.Me).Methods(http.MethodGet)
	admin.HandleFunc("/stats", adminHandler.Stats).Methods(http.MethodGet)

	admin.HandleFunc("/contacts", adminHandler.ListContacts).Methods(http.MethodGet)
	admin.HandleFunc("/contacts/export", adminHandler.Export).Methods(http.MethodGet)
	admin.HandleFunc("/contacts/bulk-delete", adminHandler.BulkDelete).Methods(http.MethodPost)
	admin.HandleFunc("/contacts/{id:[0-9]+}", adminHandler.GetContact).Methods(http.MethodGet)
	admin.HandleFunc("/contacts/{id:[0-9]+}", adminHandler.DeleteContact).Methods(http.MethodDelete)
	admin.HandleFunc("/contacts/{id:[0-9]+}/read", adminHandler.MarkRead).Methods(http.MethodPut)
	admin.HandleFunc("/contacts/{id:[0-9]+}/unread", adminHandler.MarkUnread).Methods(http.MethodPut)

	return r
}
