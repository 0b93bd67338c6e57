package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"submita/internal/apiclient"
	"submita/internal/audit"
	"submita/internal/authz"
	"submita/internal/config"
	"submita/internal/metrics"
	"submita/internal/middleware"
	"submita/internal/notify"
	"submita/internal/pages"
	"submita/internal/security"
	"submita/internal/security/securitytest"
	"submita/internal/session"
	"submita/internal/storage"
	"submita/internal/views"
)

// fakeBackend serves the REST API under /api and records request bodies.
type fakeBackend struct {
	engine *gin.Engine
	srv    *httptest.Server

	mu     sync.Mutex
	bodies map[string][]byte
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{engine: gin.New(), bodies: map[string][]byte{}}
	b.srv = httptest.NewServer(b.engine)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) json(method, path string, status int, payload any) {
	b.engine.Handle(method, "/api"+path, func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		b.mu.Lock()
		b.bodies[method+" "+path] = body
		b.mu.Unlock()
		c.JSON(status, payload)
	})
}

func (b *fakeBackend) body(method, path string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[method+" "+path]
}

type portal struct {
	engine  *gin.Engine
	backend *fakeBackend
	rdb     *redis.Client
}

func newPortal(t *testing.T) portal {
	t.Helper()
	return newPortalWithStore(t, nil)
}

func newPortalWithStore(t *testing.T, store *storage.ObjectStore) portal {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := newFakeBackend(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.AppConfig{
		App: config.AppInfo{Name: "Submita"},
		API: config.APIConfig{BaseURL: backend.srv.URL + "/api", Timeout: 5 * time.Second, Envelope: "detect"},
		Upload: config.UploadConfig{
			MaxSize:    1 << 20,
			ImageTypes: []string{"image/png"},
			PDFTypes:   []string{"application/pdf"},
		},
		Audit: config.AuditConfig{Stream: "submita:audit"},
	}

	log := zerolog.Nop()
	registry := metrics.New()
	client, err := apiclient.New(apiclient.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, backend.srv.Client(), log)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	verifier, err := security.NewVerifier(securitytest.Secret, "", "")
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	cookies := session.Cookies{}
	auditor := audit.NewPublisher(rdb, cfg.Audit.Stream, log, registry)
	pipeline := &pages.Pipeline{
		AppName:  cfg.App.Name,
		Client:   client,
		Cookies:  cookies,
		Profiles: session.NewProvider(rdb, time.Minute, log),
		Notify:   notify.NewStore(rdb, time.Minute, false, log),
		Audit:    auditor,
		Metrics:  registry,
		Log:      log,
	}

	tmpl, err := views.Load()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)
	engine.Use(middleware.RequestID(), middleware.Gate(authz.Routes, verifier, cookies, auditor, registry, log))
	NewHandlerSet(log, cfg, pipeline, rdb, store).Register(engine)

	return portal{engine: engine, backend: backend, rdb: rdb}
}

func (p portal) do(method, path, token string, form url.Values) *httptest.ResponseRecorder {
	return p.doWith(method, path, token, form)
}

// doWith sends the session cookie plus any extra cookies, such as the
// first-login mirror written by a previous response.
func (p portal) doWith(method, path, token string, form url.Values, extra ...*http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.TokenCookie, Value: token})
	}
	for _, c := range extra {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	p.engine.ServeHTTP(w, req)
	return w
}

func cookiesByName(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func profile(id, role string) gin.H {
	return gin.H{"data": gin.H{"id": id, "name": "User " + id, "email": id + "@example.com", "role": role, "isActive": true}}
}

func TestLoginFirstLoginGoesToReset(t *testing.T) {
	p := newPortal(t)
	token := securitytest.Token(t, securitytest.Options{UserID: "s1", Role: "STUDENT", FirstLogin: true})
	p.backend.json(http.MethodPost, "/auth/login", http.StatusOK, gin.H{"data": gin.H{
		"token": token,
		"user":  gin.H{"id": "s1", "name": "Ana", "role": "STUDENT", "isFirstLogin": true},
	}})

	w := p.do(http.MethodPost, "/login", "", url.Values{"email": {"ana@example.com"}, "password": {"provisoria"}, "next": {"/eventos"}})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != authz.ResetPasswordPath {
		t.Fatalf("unexpected login response %d %q", w.Code, w.Header().Get("Location"))
	}
	cookies := cookiesByName(w)
	if cookies[session.TokenCookie] == nil || cookies[session.TokenCookie].Value != token {
		t.Fatalf("token cookie not written")
	}
	if cookies[session.FirstLoginCookie] == nil || cookies[session.FirstLoginCookie].Value != "true" {
		t.Fatalf("first login mirror not written")
	}

	var sent map[string]string
	if err := json.Unmarshal(p.backend.body(http.MethodPost, "/auth/login"), &sent); err != nil {
		t.Fatalf("login body: %v", err)
	}
	if sent["email"] != "ana@example.com" || sent["password"] != "provisoria" {
		t.Fatalf("unexpected login body %v", sent)
	}

	w = p.do(http.MethodGet, "/dashboard", token, nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != authz.ResetPasswordPath {
		t.Fatalf("dashboard should redirect to reset, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestLoginFailureRendersInlineError(t *testing.T) {
	p := newPortal(t)
	p.backend.json(http.MethodPost, "/auth/login", http.StatusUnauthorized, gin.H{"message": "Credenciais inválidas"})

	w := p.do(http.MethodPost, "/login", "", url.Values{"email": {"ana@example.com"}, "password": {"errada"}})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Credenciais inválidas") {
		t.Fatalf("backend message not shown inline")
	}
	if strings.Contains(w.Body.String(), "errada") {
		t.Fatalf("password echoed back into the form")
	}
	if n, _ := p.rdb.XLen(context.Background(), "submita:audit").Result(); n != 1 {
		t.Fatalf("expected one audit event, got %d", n)
	}
}

func TestCoordinatorUsersAndEvaluatorOnlyPage(t *testing.T) {
	p := newPortal(t)
	token := securitytest.Token(t, securitytest.Options{UserID: "c1", Role: "COORDINATOR"})
	p.backend.json(http.MethodGet, "/auth/profile", http.StatusOK, profile("c1", "COORDINATOR"))
	p.backend.json(http.MethodGet, "/users", http.StatusOK, gin.H{"data": []gin.H{
		{"id": "c1", "name": "Carla", "role": "COORDINATOR", "isActive": true},
		{"id": "s2", "name": "Bruno", "role": "STUDENT", "isActive": false},
	}})

	w := p.do(http.MethodGet, "/usuarios", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if !strings.Contains(w.Body.String(), "Bruno") || !strings.Contains(w.Body.String(), "/usuarios/s2/status") {
		t.Fatalf("users list not rendered")
	}

	w = p.do(http.MethodGet, "/avaliar/123", token, nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != authz.DashboardPath {
		t.Fatalf("expected dashboard redirect, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestBackendUnauthorizedForcesSingleLogout(t *testing.T) {
	p := newPortal(t)
	token := securitytest.Token(t, securitytest.Options{UserID: "c1", Role: "COORDINATOR"})
	p.backend.json(http.MethodGet, "/auth/profile", http.StatusOK, profile("c1", "COORDINATOR"))
	p.backend.json(http.MethodGet, "/articles", http.StatusUnauthorized, gin.H{"message": "token revoked"})

	w := p.do(http.MethodGet, "/artigos", token, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	if got := w.Header().Values("Location"); len(got) != 1 || got[0] != authz.LoginPath {
		t.Fatalf("expected a single login redirect, got %v", got)
	}
	cookies := cookiesByName(w)
	if c := cookies[session.TokenCookie]; c == nil || c.MaxAge >= 0 {
		t.Fatalf("token cookie not cleared")
	}
	if c := cookies[session.FirstLoginCookie]; c == nil || c.MaxAge >= 0 {
		t.Fatalf("first login cookie not cleared")
	}
}

func TestEvaluateSavesDraft(t *testing.T) {
	p := newPortal(t)
	token := securitytest.Token(t, securitytest.Options{UserID: "e1", Role: "EVALUATOR"})
	p.backend.json(http.MethodGet, "/auth/profile", http.StatusOK, profile("e1", "EVALUATOR"))
	p.backend.json(http.MethodGet, "/articles/a1", http.StatusOK, gin.H{"data": gin.H{"id": "a1", "title": "Redes", "eventId": "ev1"}})
	p.backend.json(http.MethodGet, "/events/ev1", http.StatusOK, gin.H{"data": gin.H{
		"id":   "ev1",
		"name": "Semana Acadêmica",
		"checklist": gin.H{"id": "cl1", "name": "Critérios", "questions": []gin.H{
			{"id": "q1", "text": "Objetivo claro?", "order": 1},
			{"id": "q2", "text": "Referências?", "order": 2},
		}},
	}})
	p.backend.json(http.MethodGet, "/evaluations", http.StatusOK, gin.H{"data": []gin.H{}})
	p.backend.json(http.MethodGet, "/evaluations/draft/:article", http.StatusNotFound, gin.H{"message": "no draft"})
	p.backend.json(http.MethodPost, "/evaluations/draft", http.StatusOK, gin.H{"data": gin.H{"id": "d1", "articleId": "a1", "isDraft": true}})

	w := p.do(http.MethodGet, "/avaliar/a1", token, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `name="answer[q2]"`) {
		t.Fatalf("evaluation form not rendered: %d", w.Code)
	}

	form := url.Values{
		"action":      {"draft"},
		"grade":       {"8.5"},
		"comments":    {"Bom"},
		"question":    {"q1", "q2"},
		"answer[q1]":  {"true"},
		"comment[q2]": {"faltam fontes"},
	}
	w = p.do(http.MethodPost, "/avaliar/a1", token, form)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/avaliar/a1" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Header().Get("Location"))
	}

	var sent struct {
		ArticleID string  `json:"articleId"`
		Grade     float64 `json:"grade"`
		Answers   []struct {
			QuestionID string `json:"questionId"`
			Value      bool   `json:"value"`
			Comment    string `json:"comment"`
		} `json:"answers"`
	}
	if err := json.Unmarshal(p.backend.body(http.MethodPost, "/evaluations/draft"), &sent); err != nil {
		t.Fatalf("draft body: %v", err)
	}
	if sent.ArticleID != "a1" || sent.Grade != 8.5 || len(sent.Answers) != 2 {
		t.Fatalf("unexpected draft %+v", sent)
	}
	if !sent.Answers[0].Value || sent.Answers[1].Value || sent.Answers[1].Comment != "faltam fontes" {
		t.Fatalf("answers not mapped: %+v", sent.Answers)
	}
}

func TestEvaluateSubmitRequiresComments(t *testing.T) {
	p := newPortal(t)
	token := securitytest.Token(t, securitytest.Options{UserID: "e1", Role: "EVALUATOR"})
	p.backend.json(http.MethodGet, "/auth/profile", http.StatusOK, profile("e1", "EVALUATOR"))
	p.backend.json(http.MethodGet, "/articles/a1", http.StatusOK, gin.H{"data": gin.H{"id": "a1", "title": "Redes"}})
	p.backend.json(http.MethodGet, "/evaluations", http.StatusOK, gin.H{"data": []gin.H{}})
	p.backend.json(http.MethodGet, "/evaluations/draft/:article", http.StatusNotFound, gin.H{"message": "no draft"})

	w := p.do(http.MethodPost, "/avaliar/a1", token, url.Values{"action": {"submit"}, "grade": {"7"}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if p.backend.body(http.MethodPost, "/evaluations") != nil {
		t.Fatalf("evaluation should not be sent")
	}
}

func TestLoginIgnoresUnsafeNext(t *testing.T) {
	p := newPortal(t)
	token := securitytest.Token(t, securitytest.Options{UserID: "s1", Role: "STUDENT"})
	p.backend.json(http.MethodPost, "/auth/login", http.StatusOK, gin.H{"data": gin.H{
		"token": token,
		"user":  gin.H{"id": "s1", "name": "Ana", "role": "STUDENT"},
	}})

	for _, next := range []string{"/\t/evil.example", "/\n/evil.example", "//evil.example", "https://evil.example"} {
		w := p.do(http.MethodPost, "/login", "", url.Values{"email": {"ana@example.com"}, "password": {"segredo"}, "next": {next}})
		if w.Code != http.StatusSeeOther || w.Header().Get("Location") != authz.DashboardPath {
			t.Fatalf("next %q: unexpected response %d %q", next, w.Code, w.Header().Get("Location"))
		}
	}
}

func TestFileLinkRequiresBackendPermission(t *testing.T) {
	store, err := storage.NewObjectStore(config.StorageConfig{
		Endpoint:   "https://files.example.org",
		AccessKey:  "access",
		SecretKey:  "secret",
		Region:     "us-east-1",
		PresignTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	p := newPortalWithStore(t, store)
	token := securitytest.Token(t, securitytest.Options{UserID: "s1", Role: "STUDENT"})
	p.backend.json(http.MethodGet, "/auth/profile", http.StatusOK, profile("s1", "STUDENT"))
	p.backend.json(http.MethodHead, "/files/pdf/mine.pdf", http.StatusOK, gin.H{})
	p.backend.json(http.MethodHead, "/files/pdf/other.pdf", http.StatusForbidden, gin.H{"message": "forbidden"})

	w := p.do(http.MethodGet, "/arquivos/pdf/mine.pdf", token, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("expected presigned redirect, got %d", w.Code)
	}
	u, err := url.Parse(w.Header().Get("Location"))
	if err != nil || u.Host != "files.example.org" || u.Query().Get("X-Amz-Signature") == "" {
		t.Fatalf("unexpected presigned link %q", w.Header().Get("Location"))
	}

	w = p.do(http.MethodGet, "/arquivos/pdf/other.pdf", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a file the backend denies, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "" {
		t.Fatalf("no link should be issued, got %q", loc)
	}
}

func TestResetPasswordLiftsFirstLoginLock(t *testing.T) {
	p := newPortal(t)
	// the backend keeps issuing the first-login claim until the next login
	token := securitytest.Token(t, securitytest.Options{UserID: "s1", Role: "STUDENT", FirstLogin: true})
	p.backend.json(http.MethodGet, "/auth/profile", http.StatusOK, profile("s1", "STUDENT"))
	p.backend.json(http.MethodPatch, "/auth/change-password", http.StatusOK, gin.H{"message": "ok"})
	p.backend.json(http.MethodGet, "/articles/mine", http.StatusOK, gin.H{"data": []gin.H{}})
	p.backend.json(http.MethodGet, "/events", http.StatusOK, gin.H{"data": []gin.H{}})

	w := p.do(http.MethodPost, authz.ResetPasswordPath, token, url.Values{
		"current": {"provisoria"}, "new": {"nova-senha-forte"}, "confirm": {"nova-senha-forte"},
	})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != authz.DashboardPath {
		t.Fatalf("unexpected reset response %d %q", w.Code, w.Header().Get("Location"))
	}
	mirror := cookiesByName(w)[session.FirstLoginCookie]
	if mirror == nil || mirror.Value != "false" {
		t.Fatalf("first login mirror not rewritten: %+v", mirror)
	}
	if n, _ := p.rdb.Exists(context.Background(), "submita:profile:s1").Result(); n != 0 {
		t.Fatalf("cached profile not invalidated")
	}

	var sent map[string]string
	if err := json.Unmarshal(p.backend.body(http.MethodPatch, "/auth/change-password"), &sent); err != nil {
		t.Fatalf("change password body: %v", err)
	}
	if sent["currentPassword"] != "provisoria" || sent["newPassword"] != "nova-senha-forte" {
		t.Fatalf("unexpected change password body %v", sent)
	}

	w = p.doWith(http.MethodGet, authz.DashboardPath, token, nil, mirror)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard should render after reset, got %d %q", w.Code, w.Header().Get("Location"))
	}
	w = p.doWith(http.MethodGet, authz.ResetPasswordPath, token, nil, mirror)
	if w.Code != http.StatusFound || w.Header().Get("Location") != authz.DashboardPath {
		t.Fatalf("reset page should bounce to dashboard, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestResetPasswordRejectedSessionLogsOut(t *testing.T) {
	p := newPortal(t)
	token := securitytest.Token(t, securitytest.Options{UserID: "s1", Role: "STUDENT", FirstLogin: true})
	p.backend.json(http.MethodGet, "/auth/profile", http.StatusOK, profile("s1", "STUDENT"))
	p.backend.json(http.MethodPatch, "/auth/change-password", http.StatusUnauthorized, gin.H{"message": "token revoked"})

	w := p.do(http.MethodPost, authz.ResetPasswordPath, token, url.Values{
		"current": {"provisoria"}, "new": {"nova-senha-forte"}, "confirm": {"nova-senha-forte"},
	})
	if got := w.Header().Values("Location"); w.Code != http.StatusFound || len(got) != 1 || got[0] != authz.LoginPath {
		t.Fatalf("expected a single login redirect, got %d %v", w.Code, got)
	}
	cookies := cookiesByName(w)
	if c := cookies[session.TokenCookie]; c == nil || c.MaxAge >= 0 {
		t.Fatalf("token cookie not cleared")
	}
	if c := cookies[session.FirstLoginCookie]; c == nil || c.MaxAge >= 0 {
		t.Fatalf("first login mirror should be cleared, not rewritten: %+v", c)
	}
}

func TestPortalDoesNotExposeMetrics(t *testing.T) {
	p := newPortal(t)
	if w := p.do(http.MethodGet, "/metrics", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on the portal listener, got %d", w.Code)
	}
}
