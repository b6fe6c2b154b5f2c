package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garnizeh/contactdesk/api"
	"github.com/garnizeh/contactdesk/internal/config"
	"github.com/garnizeh/contactdesk/internal/devapi"
	"github.com/garnizeh/contactdesk/pkg/auth"
	"github.com/garnizeh/contactdesk/pkg/contacts"
	"github.com/garnizeh/contactdesk/pkg/models"
	"github.com/garnizeh/contactdesk/pkg/remote"
	"github.com/garnizeh/contactdesk/pkg/repository/mock"
	"github.com/garnizeh/contactdesk/pkg/session"
)

type panel struct {
	router   http.Handler
	clock    *time.Time
	notified *int

	mu   sync.Mutex
	hold func(r *http.Request)
}

// holdBackend runs fn on every backend request before the stub answers it.
func (p *panel) holdBackend(fn func(r *http.Request)) {
	p.mu.Lock()
	p.hold = fn
	p.mu.Unlock()
}

func newPanel(t *testing.T) *panel {
	t.Helper()
	ctx := context.Background()

	clock := time.Now()
	m := mock.NewMocks()
	stub, err := devapi.New(m.Contacts, m.Admins, m.Tokens, devapi.Options{
		JWTSecret:     "stub-secret",
		TokenDuration: time.Hour,
		Envelope:      devapi.EnvelopePaginated,
		Now:           func() time.Time { return clock },
	})
	if err != nil {
		t.Fatalf("devapi.New: %v", err)
	}
	if _, err := devapi.EnsureAdmin(ctx, stub, "Admin", "admin@example.com", "secret"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	day := func(d int) models.Timestamp {
		return models.Timestamp{Time: time.Date(2024, 5, d, 9, 0, 0, 0, time.UTC)}
	}
	for _, c := range []models.Contact{
		{Name: "Ana", Email: "ana@example.com", Service: "roof", Message: "a", CreatedAt: day(1)},
		{Name: "Ben", Email: "ben@example.com", Service: "basement", Message: "b", CreatedAt: day(3)},
		{Name: "Cy", Email: "cy@example.com", Service: "roof", Message: "c", CreatedAt: day(2)},
	} {
		c := c
		if _, err := m.Contacts.CreateContact(ctx, &c); err != nil {
			t.Fatalf("CreateContact: %v", err)
		}
	}

	p := &panel{}
	routes := stub.Routes("/api")
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		hold := p.hold
		p.mu.Unlock()
		if hold != nil {
			hold(r)
		}
		routes.ServeHTTP(w, r)
	}))
	t.Cleanup(backend.Close)

	cfg := &config.Config{
		Gate:   config.GateConfig{Prefixes: []string{"/admin"}, LoginPath: "/login", CookieName: "admin-token"},
		Remote: config.RemoteConfig{BaseURL: backend.URL + "/api"},
	}

	sess := session.New(nil)
	notifier := remote.NewAuthNotifier()
	notified := 0
	notifier.Subscribe(func(remote.AuthRequired) { notified++ })

	client, err := remote.NewClient(cfg.Remote, backend.Client(), sess, notifier)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ctrl := contacts.NewController(client, nil)
	authSvc := auth.NewService(client, sess, nil)

	p.router = api.SetupRoutes(cfg, "test", "now", ctrl, authSvc, notifier)
	p.clock = &clock
	p.notified = &notified
	return p
}

func (p *panel) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	p.router.ServeHTTP(rr, req)
	return rr
}

func (p *panel) login(t *testing.T) *http.Cookie {
	t.Helper()
	rr := p.do(t, http.MethodPost, "/login?from=/admin/stats", `{"email":"admin@example.com","password":"secret"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Success  bool        `json:"success"`
		User     models.User `json:"user"`
		Redirect string      `json:"redirect"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.User.Email != "admin@example.com" || body.Redirect != "/admin/stats" {
		t.Fatalf("unexpected login body: %+v", body)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == "admin-token" && c.Value != "" {
			if !c.HttpOnly || c.Expires.IsZero() {
				t.Fatalf("expected httponly cookie with expiry: %+v", c)
			}
			return c
		}
	}
	t.Fatalf("login did not set the session cookie")
	return nil
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) (names []string, services []string, errMsg string) {
	t.Helper()
	var body struct {
		Success  bool             `json:"success"`
		Data     []models.Contact `json:"data"`
		Services []string         `json:"services"`
		Error    string           `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode list: %v (%s)", err, rr.Body.String())
	}
	for _, c := range body.Data {
		names = append(names, c.Name)
	}
	return names, body.Services, body.Error
}

func TestPanel_GateRedirectsWithoutCookie(t *testing.T) {
	p := newPanel(t)
	rr := p.do(t, http.MethodGet, "/admin/contacts", "", nil)
	if rr.Code != http.StatusFound {
		t.Fatalf("want 302 got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login?from=%2Fadmin%2Fcontacts" {
		t.Fatalf("unexpected location %q", loc)
	}

	rr = p.do(t, http.MethodGet, "/login?from=%2Fadmin%2Fcontacts", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"from":"/admin/contacts"`) {
		t.Fatalf("login page: %d %s", rr.Code, rr.Body.String())
	}
}

func TestPanel_LoginRejected(t *testing.T) {
	p := newPanel(t)

	rr := p.do(t, http.MethodPost, "/login", `{"email":"admin@example.com","password":"wrong"}`, nil)
	if rr.Code != http.StatusUnauthorized || !strings.Contains(rr.Body.String(), "Invalid credentials") {
		t.Fatalf("want 401 Invalid credentials, got %d %s", rr.Code, rr.Body.String())
	}
	rr = p.do(t, http.MethodPost, "/login", `{"email":""}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for missing credentials, got %d", rr.Code)
	}
	if *p.notified != 0 {
		t.Fatalf("rejected logins must not notify")
	}
}

func TestPanel_ContactsFlow(t *testing.T) {
	p := newPanel(t)
	cookie := p.login(t)

	rr := p.do(t, http.MethodGet, "/admin/contacts", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}
	names, services, _ := decodeList(t, rr)
	if strings.Join(names, ",") != "Ben,Cy,Ana" {
		t.Fatalf("unexpected order %v", names)
	}
	if strings.Join(services, ",") != "basement,roof" {
		t.Fatalf("unexpected services %v", services)
	}

	rr = p.do(t, http.MethodGet, "/admin/contacts?service=roof&sort=oldest", "", cookie)
	names, _, _ = decodeList(t, rr)
	if strings.Join(names, ",") != "Ana,Cy" {
		t.Fatalf("unexpected filtered view %v", names)
	}

	rr = p.do(t, http.MethodGet, "/admin/contacts/2", "", cookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"name":"Ben"`) {
		t.Fatalf("detail: %d %s", rr.Code, rr.Body.String())
	}
	rr = p.do(t, http.MethodGet, "/admin/contacts/99", "", cookie)
	if rr.Code != http.StatusBadGateway || !strings.Contains(rr.Body.String(), "Contact not found") {
		t.Fatalf("missing detail: %d %s", rr.Code, rr.Body.String())
	}

	if rr := p.do(t, http.MethodPut, "/admin/contacts/2/read", "", cookie); rr.Code != http.StatusOK {
		t.Fatalf("read: %d %s", rr.Code, rr.Body.String())
	}
	if rr := p.do(t, http.MethodPut, "/admin/contacts/2/unread", "", cookie); rr.Code != http.StatusOK {
		t.Fatalf("unread: %d %s", rr.Code, rr.Body.String())
	}

	if rr := p.do(t, http.MethodDelete, "/admin/contacts/1", "", cookie); rr.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rr.Code, rr.Body.String())
	}
	if rr := p.do(t, http.MethodPost, "/admin/contacts/bulk-delete", `{"ids":[]}`, cookie); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty bulk delete: %d", rr.Code)
	}

	rr = p.do(t, http.MethodGet, "/admin/contacts/export?format=csv", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("export content-type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Fatalf("export disposition %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "ID,Name,Email") || strings.Contains(rr.Body.String(), "Ana") {
		t.Fatalf("unexpected export body %q", rr.Body.String())
	}
	if rr := p.do(t, http.MethodGet, "/admin/contacts/export?format=pdf", "", cookie); rr.Code != http.StatusBadRequest {
		t.Fatalf("unsupported export format: %d", rr.Code)
	}

	if rr := p.do(t, http.MethodPost, "/admin/contacts/bulk-delete", `{"ids":[2,3]}`, cookie); rr.Code != http.StatusOK {
		t.Fatalf("bulk delete: %d %s", rr.Code, rr.Body.String())
	}

	rr = p.do(t, http.MethodGet, "/admin/stats", "", cookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"total":0`) {
		t.Fatalf("stats: %d %s", rr.Code, rr.Body.String())
	}

	rr = p.do(t, http.MethodGet, "/admin/me", "", cookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "admin@example.com") {
		t.Fatalf("me: %d %s", rr.Code, rr.Body.String())
	}

	rr = p.do(t, http.MethodPost, "/admin/logout", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: %d", rr.Code)
	}
	if !clearsCookie(rr) {
		t.Fatalf("logout did not clear the cookie")
	}
}

// Two list requests in flight on the shared controller each get their own
// query and records, even when the older one finishes last.
func TestPanel_ConcurrentListsKeepTheirOwnQuery(t *testing.T) {
	p := newPanel(t)
	cookie := p.login(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	p.holdBackend(func(r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Query().Get("search") == "ana" {
			once.Do(func() { close(started) })
			<-release
		}
	})

	first := make(chan *httptest.ResponseRecorder)
	go func() { first <- p.do(t, http.MethodGet, "/admin/contacts?search=ana", "", cookie) }()
	<-started

	rr := p.do(t, http.MethodGet, "/admin/contacts?search=zzz", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("newer list: %d %s", rr.Code, rr.Body.String())
	}
	if names, _, _ := decodeList(t, rr); len(names) != 0 {
		t.Fatalf("newer list should be empty, got %v", names)
	}
	if got := listQuery(t, rr).Search; got != "zzz" {
		t.Fatalf("newer list answered for search %q", got)
	}

	close(release)
	rr = <-first
	if rr.Code != http.StatusOK {
		t.Fatalf("older list: %d %s", rr.Code, rr.Body.String())
	}
	names, services, errMsg := decodeList(t, rr)
	if strings.Join(names, ",") != "Ana" || errMsg != "" {
		t.Fatalf("older list got %v (%q)", names, errMsg)
	}
	if len(services) == 0 {
		t.Fatalf("older list lost its services")
	}
	if got := listQuery(t, rr).Search; got != "ana" {
		t.Fatalf("older list answered for search %q", got)
	}
}

func listQuery(t *testing.T, rr *httptest.ResponseRecorder) models.Query {
	t.Helper()
	var body struct {
		Query models.Query `json:"query"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode list query: %v", err)
	}
	return body.Query
}

func TestPanel_ExpiredBackendSession(t *testing.T) {
	p := newPanel(t)
	cookie := p.login(t)

	// only the backend clock moves, so the gate still admits the cookie
	*p.clock = p.clock.Add(2 * time.Hour)

	rr := p.do(t, http.MethodGet, "/admin/contacts", "", cookie)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 got %d %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Error    string `json:"error"`
		Redirect string `json:"redirect"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Your session has expired. Please log in again." || body.Redirect != "/login?from=%2Fadmin%2Fcontacts" {
		t.Fatalf("unexpected body %+v", body)
	}
	if !clearsCookie(rr) {
		t.Fatalf("expected cookie cleared")
	}
	if *p.notified != 1 {
		t.Fatalf("expected exactly one auth notification, got %d", *p.notified)
	}

	// the session is gone, so the next call fails fast without a backend hit
	rr = p.do(t, http.MethodGet, "/admin/stats", "", cookie)
	if rr.Code != http.StatusUnauthorized || !strings.Contains(rr.Body.String(), "You are not logged in.") {
		t.Fatalf("want 401 not logged in, got %d %s", rr.Code, rr.Body.String())
	}
	if *p.notified != 1 {
		t.Fatalf("fail-fast call must not notify again")
	}
}

func clearsCookie(rr *httptest.ResponseRecorder) bool {
	for _, c := range rr.Result().Cookies() {
		if c.Name == "admin-token" && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func TestPanel_HealthTracksLogin(t *testing.T) {
	p := newPanel(t)

	rr := p.do(t, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"authenticated":false`) {
		t.Fatalf("health before login: %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `/api"`) {
		t.Fatalf("health should name the backend: %s", rr.Body.String())
	}

	p.login(t)
	rr = p.do(t, http.MethodGet, "/health", "", nil)
	if !strings.Contains(rr.Body.String(), `"authenticated":true`) {
		t.Fatalf("health after login: %s", rr.Body.String())
	}
}
