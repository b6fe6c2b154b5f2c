package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/garnizeh/contactdesk/internal/config"
	"github.com/garnizeh/contactdesk/pkg/session"
)

// Client is the authenticated request wrapper for the contacts backend. It
// attaches the session's bearer token, purges the session and notifies
// subscribers when the token is rejected, and decodes bodies defensively.
// Nothing is retried.
type Client struct {
	baseURL  string
	cfg      config.RemoteConfig
	client   *http.Client
	session  *session.Session
	notifier *AuthNotifier

	closed int32
}

// Request describes one call. Protected calls fail with ErrNoToken when the
// session holds no token.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Protected bool
}

// NewClient creates a client for cfg.BaseURL. A nil notifier gets a private
// one nobody listens to.
func NewClient(cfg config.RemoteConfig, httpClient *http.Client, sess *session.Session, notifier *AuthNotifier) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if sess == nil {
		return nil, fmt.Errorf("remote: session is required")
	}
	if notifier == nil {
		notifier = NewAuthNotifier()
	}
	if cfg.ExcerptLimit <= 0 {
		cfg.ExcerptLimit = config.DefaultExcerptLimit
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing host", cfg.BaseURL)
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		cfg:      cfg,
		client:   httpClient,
		session:  sess,
		notifier: notifier,
	}
	logger.Info("remote: NewClient created", slog.String("base_url", c.baseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

// NewDefaultClient uses a pooled transport with dial and TLS timeouts but no
// overall request timeout.
func NewDefaultClient(cfg config.RemoteConfig, sess *session.Session, notifier *AuthNotifier) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient, sess, notifier)
}

// Notifier returns the notifier auth failures are broadcast on.
func (c *Client) Notifier() *AuthNotifier { return c.notifier }

// Session returns the session the client reads its token from.
func (c *Client) Session() *session.Session { return c.session }

// Close releases idle connections. It is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.client.CloseIdleConnections()
	return nil
}

// package-level logger for pkg/remote; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/remote. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Do performs r and returns the JSON body. An empty body is returned as {}.
func (c *Client) Do(ctx context.Context, r Request) (json.RawMessage, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" && r.Protected {
		return nil, ErrNoToken
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	requestURL := c.baseURL + r.Path
	if len(r.Query) > 0 {
		requestURL += "?" + r.Query.Encode()
	}

	var bodyReader io.Reader
	if r.Body != nil {
		encoded, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	logger.Debug("remote: response",
		slog.String("method", r.Method),
		slog.String("path", r.Path),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
		slog.Duration("latency", time.Since(start)),
	)

	if IsAuthStatus(resp.StatusCode) {
		c.authFailed(ctx, resp.StatusCode, r.Path)
		return nil, &AuthError{Status: resp.StatusCode, Message: messageOf(raw)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Status:  resp.StatusCode,
			Method:  r.Method,
			Path:    r.Path,
			Message: messageOf(raw),
			Excerpt: excerpt(raw, c.cfg.ExcerptLimit),
		}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage("{}"), nil
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return nil, &ParseError{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Excerpt:     excerpt(trimmed, c.cfg.ExcerptLimit),
			Err:         err,
		}
	}

	return json.RawMessage(trimmed), nil
}

func (c *Client) authFailed(ctx context.Context, status int, path string) {
	if err := c.session.Purge(ctx); err != nil {
		logger.Error("remote: purge session", slog.Any("err", err))
	}
	logger.Warn("remote: token rejected, session purged", slog.Int("status", status), slog.String("path", path))
	c.notifier.Notify(AuthRequired{Status: status, Path: path, At: time.Now()})
}

// messageOf pulls the "message" field out of a JSON error body, if any.
func messageOf(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
