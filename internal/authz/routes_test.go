package authz_test

import (
	"reflect"
	"testing"

	"submita/internal/authz"
)

func TestRoutesMatch(t *testing.T) {
	cases := map[string]string{
		"/eventos":               "/eventos",
		"/eventos/":              "/eventos",
		"/eventos/novo":          "/eventos/novo",
		"/eventos/7":             "/eventos/:id",
		"/eventos/7/editar":      "/eventos/:id/editar",
		"/eventos/7/submeter":    "/eventos/:id/submeter",
		"/artigos/3/avaliadores": "/artigos/:id/avaliadores",
		"/arquivos/pdf/a1b2.pdf": "/arquivos/:bucket/:filename",
		"/avaliar/123":           "/avaliar/:id",
	}
	for path, want := range cases {
		p, ok := authz.Routes.Match(path)
		if !ok || p.Pattern != want {
			t.Fatalf("Match(%q) = %q, %v; want %q", path, p.Pattern, ok, want)
		}
	}

	if _, ok := authz.Routes.Match("/nao-existe"); ok {
		t.Fatalf("unexpected match for unknown path")
	}
}

func TestAllowList(t *testing.T) {
	got := authz.Routes.AllowList(authz.RoleEvaluator)
	want := []string{
		"/arquivos/:bucket/:filename",
		"/artigos/:id",
		"/avaliacoes",
		"/avaliar/:id",
		"/dashboard",
		"/eventos",
		"/eventos/:id",
		"/perfil",
		"/redefinir-senha",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("evaluator allow-list = %v", got)
	}

	for _, p := range authz.Routes.AllowList(authz.RoleStudent) {
		if p == "/usuarios" || p == "/avaliacoes" {
			t.Fatalf("student allow-list leaks %s", p)
		}
	}
}

func TestNavigation(t *testing.T) {
	var labels []string
	for _, p := range authz.Routes.Navigation(string(authz.RoleCoordinator)) {
		labels = append(labels, p.Label)
	}
	want := []string{"Início", "Perfil", "Eventos", "Usuários", "Artigos", "Checklists"}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("coordinator navigation = %v", labels)
	}
}
