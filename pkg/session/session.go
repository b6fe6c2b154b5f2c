package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garnizeh/contactdesk/pkg/models"
)

// Keys written together on login and cleared together on logout or when the
// remote rejects the token.
const (
	KeyToken         = "admin-token"
	KeyAuthenticated = "admin-authenticated"
	KeyUser          = "admin-user"
)

var ErrEmptyToken = errors.New("session: empty token")

// Store is a persistent key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// BatchStore is a Store that can write several keys atomically.
type BatchStore interface {
	Store
	SetAll(ctx context.Context, kv map[string]string) error
}

// Session is the admin credential held in a Store. It is passed explicitly to
// whatever needs the token instead of being read from process globals.
type Session struct {
	store Store
}

func New(store Store) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{store: store}
}

// Save writes token, authenticated flag and cached profile. Either all three
// keys are stored or none are: a BatchStore writes them in one step, any
// other Store is purged again when a write fails half way.
func (s *Session) Save(ctx context.Context, token string, user models.User) error {
	if token == "" {
		return ErrEmptyToken
	}

	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	if bs, ok := s.store.(BatchStore); ok {
		if err := bs.SetAll(ctx, map[string]string{
			KeyToken:         token,
			KeyAuthenticated: "true",
			KeyUser:          string(b),
		}); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	}

	for _, kv := range [...]struct{ key, value, what string }{
		{KeyToken, token, "token"},
		{KeyAuthenticated, "true", "auth flag"},
		{KeyUser, string(b), "user"},
	} {
		if err := s.store.Set(ctx, kv.key, kv.value); err != nil {
			if perr := s.Purge(ctx); perr != nil {
				return errors.Join(fmt.Errorf("save %s: %w", kv.what, err), fmt.Errorf("purge partial session: %w", perr))
			}
			return fmt.Errorf("save %s: %w", kv.what, err)
		}
	}
	return nil
}

// SetUser refreshes the cached profile without touching the token.
func (s *Session) SetUser(ctx context.Context, user models.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.store.Set(ctx, KeyUser, string(b))
}

// Token returns the stored bearer token or "" when there is none.
func (s *Session) Token(ctx context.Context) (string, error) {
	v, ok, err := s.store.Get(ctx, KeyToken)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// User returns the cached profile, or nil when none is stored.
func (s *Session) User(ctx context.Context) (*models.User, error) {
	v, ok, err := s.store.Get(ctx, KeyUser)
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}
	if !ok || v == "" {
		return nil, nil
	}

	var u models.User
	if err := json.Unmarshal([]byte(v), &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func (s *Session) Authenticated(ctx context.Context) bool {
	flag, ok, err := s.store.Get(ctx, KeyAuthenticated)
	if err != nil || !ok || flag != "true" {
		return false
	}
	tok, err := s.Token(ctx)
	return err == nil && tok != ""
}

// Purge removes all three session keys.
func (s *Session) Purge(ctx context.Context) error {
	return s.store.Delete(ctx, KeyToken, KeyAuthenticated, KeyUser)
}
