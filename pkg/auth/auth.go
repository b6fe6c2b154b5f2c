// Package auth manages the admin session lifecycle against the contacts
// backend: login stores the token and profile, logout and rejected tokens
// clear them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garnizeh/contactdesk/pkg/models"
	"github.com/garnizeh/contactdesk/pkg/remote"
	"github.com/garnizeh/contactdesk/pkg/session"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrLoginRejected      = errors.New("login rejected")
)

// Backend is the part of the remote client the auth service needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (*remote.LoginResponse, error)
	Logout(ctx context.Context) error
	CheckAuth(ctx context.Context) (*remote.CheckAuthResponse, error)
}

var _ Backend = (*remote.Client)(nil)

type Service struct {
	backend Backend
	session *session.Session
	logger  *slog.Logger
}

func NewService(backend Backend, sess *session.Session, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, session: sess, logger: logger}
}

// Login authenticates and persists token, flag and profile together.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if email == "" || password == "" {
		return nil, "", ErrMissingCredentials
	}

	resp, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("auth: login failed", "email", email, "err", err)
		return nil, "", err
	}
	if !resp.Success || resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "invalid credentials"
		}
		return nil, "", fmt.Errorf("%w: %s", ErrLoginRejected, msg)
	}

	if err := s.session.Save(ctx, resp.Token, resp.User); err != nil {
		return nil, "", fmt.Errorf("store session: %w", err)
	}
	s.logger.Info("auth: logged in", "user_id", resp.User.ID)

	user := resp.User
	return &user, resp.Token, nil
}

// Logout tells the backend and clears the session even if that call fails.
func (s *Service) Logout(ctx context.Context) error {
	callErr := s.backend.Logout(ctx)
	if callErr != nil && !errors.Is(callErr, remote.ErrNoToken) {
		s.logger.Warn("auth: remote logout failed", "err", callErr)
	}

	if err := s.session.Purge(ctx); err != nil {
		return fmt.Errorf("purge session: %w", err)
	}
	return nil
}

// CheckAuth asks the backend whether the stored token is still good and
// refreshes the cached profile when it is. A rejected token is purged by the
// remote client before this returns.
func (s *Service) CheckAuth(ctx context.Context) (*models.User, error) {
	resp, err := s.backend.CheckAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		msg := resp.Message
		if msg == "" {
			msg = "session is not valid"
		}
		return nil, fmt.Errorf("%w: %s", ErrLoginRejected, msg)
	}

	if err := s.session.SetUser(ctx, *resp.User); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	return resp.User, nil
}

// Current returns the cached profile and whether a session is stored. It
// makes no network call.
func (s *Service) Current(ctx context.Context) (*models.User, bool) {
	if !s.session.Authenticated(ctx) {
		return nil, false
	}
	u, err := s.session.User(ctx)
	if err != nil {
		s.logger.Warn("auth: cached user unreadable", "err", err)
		return nil, true
	}
	return u, true
}
