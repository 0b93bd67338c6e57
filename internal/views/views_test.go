package views

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"submita/internal/api"
	"submita/internal/authz"
	"submita/internal/fetch"
	"submita/internal/forms"
	"submita/internal/notify"
)

func render(t *testing.T, name string, p Page) string {
	t.Helper()
	tmpl, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, p); err != nil {
		t.Fatalf("execute %s: %v", name, err)
	}
	return buf.String()
}

func TestLoadDefinesEveryPage(t *testing.T) {
	tmpl, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, name := range []string{
		PageLogin, PageRegister, PageResetPassword, PageDashboard, PageProfile,
		PageEvents, PageEvent, PageEventForm, PageSubmit, PageMyArticles,
		PageArticles, PageArticle, PageAssign, PageAssigned, PageEvaluate,
		PageUsers, PageChecklists, PageChecklist, PageError,
	} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %q is not defined", name)
		}
	}
}

func TestLoginShowsFormErrorAndToasts(t *testing.T) {
	errs := forms.Errors{}
	errs.Add("_form", "E-mail ou senha inválidos.")
	out := render(t, PageLogin, Page{
		AppName: "Submita",
		Title:   "Entrar",
		Path:    "/login",
		Toasts:  []notify.Toast{{ID: "t1", Level: notify.Info, Message: "Sessão encerrada."}},
		Errors:  errs,
		Form:    struct{ Email, Next string }{Email: "ana@example.com"},
	})
	for _, want := range []string{"E-mail ou senha inválidos.", "toast-info", "Sessão encerrada.", "ana@example.com"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output", want)
		}
	}
}

func TestNavigationMarksCurrentPage(t *testing.T) {
	out := render(t, PageError, Page{
		AppName: "Submita",
		Title:   "Não encontrado",
		Path:    "/usuarios",
		User:    &api.User{ID: "u1", Name: "Carla", Role: string(authz.RoleCoordinator)},
		Nav:     []authz.Page{{Pattern: "/dashboard", Label: "Painel"}, {Pattern: "/usuarios", Label: "Usuários"}},
		Data:    404,
	})
	if !strings.Contains(out, `href="/usuarios" aria-current="page"`) {
		t.Fatalf("current page not marked:\n%s", out)
	}
}

func TestEvaluateRendersChecklistAnswers(t *testing.T) {
	type evalContext struct {
		Article   api.Article
		Checklist *api.Checklist
		Current   *api.Evaluation
		Submitted bool
	}
	checklist := &api.Checklist{ID: "c1", Name: "Critérios", Questions: []api.Question{
		{ID: "q1", Text: "Objetivo claro?", Order: 1},
		{ID: "q2", Text: "Metodologia adequada?", Order: 2},
	}}
	out := render(t, PageEvaluate, Page{
		AppName: "Submita",
		Title:   "Avaliar artigo",
		User:    &api.User{ID: "e1", Role: string(authz.RoleEvaluator)},
		Form:    struct {
			Grade    float64
			Comments string
		}{Grade: 7.5, Comments: "Bom trabalho"},
		Data: struct {
			Context fetch.State[evalContext]
			Answers map[string]api.Answer
		}{
			Context: fetch.State[evalContext]{HasData: true, Data: evalContext{
				Article:   api.Article{ID: "a1", Title: "Redes neurais"},
				Checklist: checklist,
				Current:   &api.Evaluation{ID: "ev1", IsDraft: true},
			}},
			Answers: map[string]api.Answer{"q1": {QuestionID: "q1", Value: true, Comment: "ok"}},
		},
	})
	for _, want := range []string{
		`name="answer[q1]" value="true" checked`,
		`name="answer[q2]" value="true">`,
		`name="comment[q1]" value="ok"`,
		`value="7.5"`,
		`value="discard"`,
		`value="draft"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestUsersHidesOwnToggle(t *testing.T) {
	out := render(t, PageUsers, Page{
		AppName: "Submita",
		User:    &api.User{ID: "me", Role: string(authz.RoleCoordinator)},
		Form: struct {
			Name, Email, Role string
			Institution       bool
		}{Role: "STUDENT"},
		Data: struct {
			Role  string
			Roles []authz.Role
			Users fetch.State[[]api.User]
			Self  string
		}{
			Roles: authz.KnownRoles,
			Users: fetch.State[[]api.User]{HasData: true, Data: []api.User{
				{ID: "me", Name: "Carla", Role: "COORDINATOR", IsActive: true},
				{ID: "u2", Name: "Bruno", Role: "STUDENT", IsActive: true},
			}},
			Self: "me",
		},
	})
	if strings.Contains(out, "/usuarios/me/status") {
		t.Fatalf("self toggle should not render")
	}
	if !strings.Contains(out, "/usuarios/u2/status") {
		t.Fatalf("toggle for other users missing")
	}
}

func TestFuncs(t *testing.T) {
	f := Funcs()
	date := f["date"].(func(api.Time) string)
	if got := date(api.Time{}); got != "-" {
		t.Fatalf("zero date rendered as %q", got)
	}
	when := api.Time{Time: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)}
	if got := date(when); got != "09/03/2026" {
		t.Fatalf("date = %q", got)
	}
	if got := f["statusLabel"].(func(string) string)("UNKNOWN"); got != "UNKNOWN" {
		t.Fatalf("unknown status should pass through, got %q", got)
	}
	g := 8.25
	if got := f["grade"].(func(*float64) string)(&g); got != "8.2" && got != "8.3" {
		t.Fatalf("grade = %q", got)
	}
}
