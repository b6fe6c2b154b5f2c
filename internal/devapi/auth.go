package devapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/contactdesk/pkg/models"
)

// StatusSessionExpired is the non-standard status the backend uses for an
// expired token.
const StatusSessionExpired = 419

type ctxKey string

const ctxClaims ctxKey = "claims"

// Claims carried by issued tokens. Subject holds the admin id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeFailure(w, http.StatusUnprocessableEntity, "Email and password are required")
		return
	}

	admin, err := s.admins.GetAdminByEmail(r.Context(), req.Email)
	if err != nil {
		logger.Error("devapi: load admin", slog.Any("err", err))
		writeFailure(w, http.StatusInternalServerError, "Login failed")
		return
	}
	// Rejected credentials answer 422 so clients do not mistake them for an
	// expired session.
	if admin == nil || bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		writeFailure(w, http.StatusUnprocessableEntity, "Invalid credentials")
		return
	}

	token, err := s.IssueToken(*admin)
	if err != nil {
		logger.Error("devapi: sign token", slog.Any("err", err))
		writeFailure(w, http.StatusInternalServerError, "Error signing token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    admin.User(),
	})
}

// IssueToken signs a token for admin valid for the configured duration.
func (s *Server) IssueToken(admin models.Admin) (string, error) {
	now := s.opts.Now()
	claims := Claims{
		Email: admin.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(admin.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenDuration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.JWTSecret))
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if claims != nil && claims.ID != "" {
		expires := s.opts.Now().Add(s.opts.TokenDuration)
		if claims.ExpiresAt != nil {
			expires = claims.ExpiresAt.Time
		}
		if err := s.tokens.RevokeToken(r.Context(), claims.ID, expires.UnixMilli()); err != nil {
			logger.Error("devapi: revoke token", slog.Any("err", err))
			writeFailure(w, http.StatusInternalServerError, "Logout failed")
			return
		}
	}
	if _, err := s.tokens.PurgeExpired(r.Context(), s.opts.Now().UnixMilli()); err != nil {
		logger.Warn("devapi: purge revoked tokens", slog.Any("err", err))
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}

func (s *Server) CheckAuth(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	admin, err := s.admins.GetAdminByID(r.Context(), id)
	if err != nil {
		logger.Error("devapi: load admin", slog.Any("err", err))
		writeFailure(w, http.StatusInternalServerError, "Check failed")
		return
	}
	if admin == nil {
		writeFailure(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": admin.User()})
}

// TokenMiddleware admits requests carrying a valid bearer token. Missing,
// malformed or revoked tokens get 401; expired tokens get 419.
func (s *Server) TokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}

		claims, err := s.ParseToken(tokenString)
		if errors.Is(err, jwt.ErrTokenExpired) {
			writeJSON(w, StatusSessionExpired, map[string]any{"message": "Session expired."})
			return
		}
		if err != nil {
			logger.Debug("devapi: rejected token", slog.Any("err", err))
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}

		revoked, err := s.tokens.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			logger.Error("devapi: revocation lookup", slog.Any("err", err))
			writeFailure(w, http.StatusInternalServerError, "Token check failed")
			return
		}
		if revoked {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxClaims, claims)))
	})
}

// ParseToken verifies signature and expiry against the server clock.
func (s *Server) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithTimeFunc(s.opts.Now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func claimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(ctxClaims).(*Claims)
	if c == nil {
		return &Claims{}
	}
	return c
}

// EnsureAdmin creates the admin account when no account with email exists.
func EnsureAdmin(ctx context.Context, s *Server, name, email, password string) (int64, error) {
	existing, err := s.admins.GetAdminByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.admins.CreateAdmin(ctx, &models.Admin{Name: name, Email: email, PasswordHash: string(hash), IsAdmin: true})
	if err != nil {
		return 0, err
	}
	logger.Info("devapi: admin created", slog.String("email", email), slog.Int64("id", id))
	return id, nil
}
