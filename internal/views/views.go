// Package views holds the embedded HTML templates of the portal.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"submita/internal/api"
	"submita/internal/authz"
	"submita/internal/forms"
	"submita/internal/notify"
)

//go:embed templates/*.html
var files embed.FS

// Page is the data every template receives.
type Page struct {
	AppName string
	Title   string
	Path    string
	User    *api.User
	Nav     []authz.Page
	Toasts  []notify.Toast
	Form    any
	Errors  forms.Errors
	Data    any
}

func (p Page) Role() string {
	if p.User == nil {
		return ""
	}
	return p.User.Role
}

func (p Page) Is(role authz.Role) bool { return p.Role() == string(role) }

// FieldError is a template shortcut for inline field messages.
func (p Page) FieldError(field string) string { return p.Errors.Get(field) }

// Load parses every embedded template.
func Load() (*template.Template, error) {
	t, err := template.New("submita").Funcs(Funcs()).ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

var statusLabels = map[string]string{
	api.EventStatusOpen:        "Inscrições abertas",
	api.EventStatusEvaluation:  "Em avaliação",
	api.EventStatusClosed:      "Encerrado",
	api.ArticleSubmitted:       "Submetido",
	api.ArticleUnderEvaluation: "Em avaliação",
	api.ArticleApproved:        "Aprovado",
	api.ArticleRejected:        "Reprovado",
}

var roleLabels = map[string]string{
	string(authz.RoleStudent):     "Aluno",
	string(authz.RoleEvaluator):   "Avaliador",
	string(authz.RoleCoordinator): "Coordenador",
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"date": func(t api.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format("02/01/2006")
		},
		"inputDate": func(t api.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"formDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"datetime":    func(t time.Time) string { return t.Format("02/01/2006 15:04") },
		"year":        func() int { return time.Now().Year() },
		"statusLabel": label(statusLabels),
		"roleLabel":   label(roleLabels),
		"join":        strings.Join,
		"list":        func(v ...string) []string { return v },
		"mb":          func(n int64) float64 { return float64(n) / (1 << 20) },
		"lower":       strings.ToLower,
		"grade": func(g *float64) string {
			if g == nil {
				return "-"
			}
			return fmt.Sprintf("%.1f", *g)
		},
		"contains": func(list []string, v string) bool {
			for _, s := range list {
				if s == v {
					return true
				}
			}
			return false
		},
	}
}

func label(m map[string]string) func(string) string {
	return func(k string) string {
		if v, ok := m[k]; ok {
			return v
		}
		return k
	}
}
