package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"submita/internal/api"
	"submita/internal/apiclient"
	"submita/internal/upload"
)

func backend(t *testing.T, h http.HandlerFunc) *api.Backend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := apiclient.New(apiclient.Config{BaseURL: srv.URL, Timeout: time.Second}, srv.Client(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return api.New(c)
}

func TestLogin(t *testing.T) {
	b := backend(t, func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" || req.Email != "ana@uni.br" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"data":{"token":"tok","user":{"id":"u1","name":"Ana","role":"STUDENT","isFirstLogin":true}}}`)
	})

	res, err := b.Auth.Login(context.Background(), api.LoginRequest{Email: "ana@uni.br", Password: "x"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "tok" || res.User.Role != "STUDENT" || !res.User.IsFirstLogin {
		t.Fatalf("unexpected response %+v", res)
	}
}

func TestGetDraftMissingIsNotAnError(t *testing.T) {
	b := backend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, ok, err := b.Evaluations.GetDraft(context.Background(), "a1")
	if err != nil || ok {
		t.Fatalf("expected no draft, got ok=%v err=%v", ok, err)
	}
}

func TestUsersListFiltersByRole(t *testing.T) {
	b := backend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("role") != "EVALUATOR" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, `[{"id":"e1","role":"EVALUATOR","isActive":true}]`)
	})
	users, err := b.Users.List(context.Background(), "EVALUATOR")
	if err != nil || len(users) != 1 || users[0].ID != "e1" {
		t.Fatalf("unexpected result %+v %v", users, err)
	}
}

func TestPathSegmentsAreEscaped(t *testing.T) {
	b := backend(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": r.URL.EscapedPath()})
	})
	ev, err := b.Events.Get(context.Background(), "a/b")
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID != "/events/a%2Fb" {
		t.Fatalf("unexpected path %q", ev.ID)
	}
}

func TestUploadPDF(t *testing.T) {
	b := backend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/upload/pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"bucket":"pdf","filename":"f1.pdf"}`)
	})
	ref, err := b.Files.UploadPDF(context.Background(), upload.File{Name: "a.pdf", MIME: "application/pdf", Data: []byte("%PDF-1.4")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ref.Path() != "/arquivos/pdf/f1.pdf" {
		t.Fatalf("unexpected path %q", ref.Path())
	}
}

func TestTimeAcceptsDatesAndTimestamps(t *testing.T) {
	var ev api.Event
	err := json.Unmarshal([]byte(`{"startDate":"2026-05-01","endDate":"2026-05-03T18:00:00Z","submissionDeadline":null}`), &ev)
	if err != nil {
		t.Fatal(err)
	}
	if ev.StartDate.Day() != 1 || ev.EndDate.Hour() != 18 || !ev.SubmissionDeadline.IsZero() {
		t.Fatalf("unexpected dates %+v", ev)
	}
	if !ev.SubmissionOpen(time.Now()) {
		t.Fatalf("event without deadline or status should accept submissions")
	}
}
