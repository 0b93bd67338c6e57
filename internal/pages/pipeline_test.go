package pages

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"submita/internal/apiclient"
	"submita/internal/authz"
	"submita/internal/middleware"
	"submita/internal/security"
	"submita/internal/security/securitytest"
	"submita/internal/session"
	"submita/internal/views"
)

func newPipeline(t *testing.T, backend http.Handler) *Pipeline {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, srv.Client(), zerolog.Nop())
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return &Pipeline{
		AppName:  "Submita",
		Client:   client,
		Profiles: session.NewProvider(nil, time.Minute, zerolog.Nop()),
		Log:      zerolog.Nop(),
	}
}

func serve(t *testing.T, p *Pipeline, path, token string, h func(r *Request)) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tmpl, err := views.Load()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	verifier, err := security.NewVerifier(securitytest.Secret, "", "")
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)
	engine.Use(middleware.Gate(authz.Routes, verifier, p.Cookies, nil, nil, zerolog.Nop()))
	engine.GET(path, func(c *gin.Context) { h(p.Begin(c)) })

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.TokenCookie, Value: token})
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func profileHandler(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","name":"Ana","role":"` + role + `","isActive":true}`))
	}
}

func TestLoadFailingLoaderRendersErrorPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/auth/profile", profileHandler("STUDENT"))
	p := newPipeline(t, mux)
	token := securitytest.Token(t, securitytest.Options{UserID: "u1", Role: "STUDENT"})

	w := serve(t, p, "/dashboard", token, func(r *Request) {
		if !r.Load(func(ctx context.Context) error { return errors.New("boom") }) {
			t.Errorf("failed load should be handled")
		}
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Algo deu errado") {
		t.Fatalf("error page not rendered")
	}
}

func TestLoadAppliesProfileBeforeRender(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/auth/profile", profileHandler("COORDINATOR"))
	p := newPipeline(t, mux)
	token := securitytest.Token(t, securitytest.Options{UserID: "u1", Role: "COORDINATOR"})

	var ran atomic.Int32
	w := serve(t, p, "/usuarios", token, func(r *Request) {
		loader := func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}
		if r.Load(loader, loader) {
			t.Errorf("nothing should have been written")
			return
		}
		if r.User() == nil || r.User().Name != "Ana" {
			t.Errorf("profile not loaded")
		}
		r.Render(http.StatusOK, views.PageError, views.Page{Title: "x", Data: 404})
	})
	if ran.Load() != 2 {
		t.Fatalf("expected both loaders to run, got %d", ran.Load())
	}
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `href="/usuarios" aria-current="page"`) {
		t.Fatalf("navigation not rendered for the loaded profile")
	}
}

func TestUnauthorizedLoaderForcesLogoutOnce(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.Handle("/auth/profile", profileHandler("STUDENT"))
	mux.HandleFunc("/articles/mine", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	p := newPipeline(t, mux)
	token := securitytest.Token(t, securitytest.Options{UserID: "u1", Role: "STUDENT"})

	w := serve(t, p, "/meus-artigos", token, func(r *Request) {
		mine := func(ctx context.Context) error {
			_, err := r.Backend.Articles.Mine(ctx)
			if !apiclient.IsUnauthorized(err) {
				t.Errorf("expected unauthorized, got %v", err)
			}
			return nil
		}
		if !r.Load(mine, mine) {
			t.Errorf("forced logout should be handled")
		}
		if !r.Finish() {
			t.Errorf("finish after logout should report handled")
		}
	})
	if calls.Load() != 2 {
		t.Fatalf("expected two backend calls, got %d", calls.Load())
	}
	if got := w.Header().Values("Location"); len(got) != 1 || got[0] != authz.LoginPath {
		t.Fatalf("expected one login redirect, got %v", got)
	}
}
