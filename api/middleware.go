package api

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/garnizeh/contactdesk/internal/config"
	"github.com/garnizeh/contactdesk/pkg/session"
)

// package-level logger used by middleware and helpers; can be set via SetLogger from caller
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger installs a logger for the api package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic", slog.Any("err", err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// SessionGateMiddleware redirects requests under a gated prefix to the login
// page unless they carry a session cookie. A cookie holding a JWT whose exp
// has passed counts as missing. The signature is not checked here; the
// backend does that on every call.
func SessionGateMiddleware(cfg config.GateConfig) mux.MiddlewareFunc {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = session.KeyToken
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !gated(cfg, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if c, err := r.Cookie(cookieName); err == nil && c.Value != "" && !tokenExpired(c.Value, time.Now()) {
				next.ServeHTTP(w, r)
				return
			}

			from := r.URL.Path
			if r.URL.RawQuery != "" {
				from += "?" + r.URL.RawQuery
			}
			logger.Debug("gate: redirecting to login", slog.String("from", from))
			http.Redirect(w, r, cfg.LoginPath+"?"+url.Values{"from": {from}}.Encode(), http.StatusFound)
		})
	}
}

func gated(cfg config.GateConfig, path string) bool {
	if path == cfg.LoginPath {
		return false
	}
	for _, p := range cfg.Prefixes {
		p = strings.TrimSuffix(p, "/")
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// tokenExpiry reads the exp claim without verifying the signature. ok is
// false when token is not a JWT or carries no exp.
func tokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	d, err := claims.GetExpirationTime()
	if err != nil || d == nil {
		return time.Time{}, false
	}
	return d.Time, true
}

func tokenExpired(token string, now time.Time) bool {
	exp, ok := tokenExpiry(token)
	return ok && !now.Before(exp)
}
