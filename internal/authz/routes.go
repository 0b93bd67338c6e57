package authz

import (
	"sort"
	"strings"
)

type Role string

const (
	RoleStudent     Role = "STUDENT"
	RoleEvaluator   Role = "EVALUATOR"
	RoleCoordinator Role = "COORDINATOR"
)

var KnownRoles = []Role{RoleStudent, RoleEvaluator, RoleCoordinator}

func (r Role) Known() bool {
	for _, k := range KnownRoles {
		if r == k {
			return true
		}
	}
	return false
}

const (
	LoginPath         = "/login"
	RegisterPath      = "/cadastro"
	DashboardPath     = "/dashboard"
	ResetPasswordPath = "/redefinir-senha"
)

// Page declares the access requirements of one route. An empty Roles slice
// means any authenticated role.
type Page struct {
	Pattern   string
	Public    bool
	GuestOnly bool
	Roles     []Role
	// Label is set for pages that appear in the navigation menu.
	Label string
}

func (p Page) Restricted() bool { return len(p.Roles) > 0 }

// Allows reports whether role may see the page. Unknown roles never match a
// restricted page.
func (p Page) Allows(role string) bool {
	if !p.Restricted() {
		return true
	}
	for _, r := range p.Roles {
		if string(r) == role {
			return true
		}
	}
	return false
}

// Registry is the fixed route surface of the portal.
type Registry struct {
	pages []Page
}

func NewRegistry(pages ...Page) *Registry {
	return &Registry{pages: pages}
}

// Routes is the portal route table.
var Routes = NewRegistry(
	Page{Pattern: LoginPath, Public: true, GuestOnly: true},
	Page{Pattern: RegisterPath, Public: true, GuestOnly: true},

	Page{Pattern: DashboardPath, Label: "Início"},
	Page{Pattern: "/perfil", Label: "Perfil"},
	Page{Pattern: ResetPasswordPath},
	Page{Pattern: "/eventos", Label: "Eventos"},
	Page{Pattern: "/eventos/:id"},
	Page{Pattern: "/artigos/:id"},
	Page{Pattern: "/arquivos/:bucket/:filename"},

	Page{Pattern: "/meus-artigos", Roles: []Role{RoleStudent}, Label: "Meus artigos"},
	Page{Pattern: "/eventos/:id/submeter", Roles: []Role{RoleStudent}},
	Page{Pattern: "/artigos/:id/excluir", Roles: []Role{RoleStudent, RoleCoordinator}},

	Page{Pattern: "/avaliacoes", Roles: []Role{RoleEvaluator}, Label: "Avaliações"},
	Page{Pattern: "/avaliar/:id", Roles: []Role{RoleEvaluator}},

	Page{Pattern: "/usuarios", Roles: []Role{RoleCoordinator}, Label: "Usuários"},
	Page{Pattern: "/eventos/novo", Roles: []Role{RoleCoordinator}},
	Page{Pattern: "/eventos/:id/editar", Roles: []Role{RoleCoordinator}},
	Page{Pattern: "/artigos", Roles: []Role{RoleCoordinator}, Label: "Artigos"},
	Page{Pattern: "/artigos/:id/avaliadores", Roles: []Role{RoleCoordinator}},
	Page{Pattern: "/checklists", Roles: []Role{RoleCoordinator}, Label: "Checklists"},
	Page{Pattern: "/checklists/:id", Roles: []Role{RoleCoordinator}},

	// form targets
	Page{Pattern: "/usuarios/:id/status", Roles: []Role{RoleCoordinator}},
	Page{Pattern: "/eventos/:id/excluir", Roles: []Role{RoleCoordinator}},
	Page{Pattern: "/checklists/:id/excluir", Roles: []Role{RoleCoordinator}},
	Page{Pattern: "/checklists/:id/perguntas", Roles: []Role{RoleCoordinator}},
	Page{Pattern: "/checklists/:id/perguntas/:qid", Roles: []Role{RoleCoordinator}},
	Page{Pattern: "/checklists/:id/perguntas/:qid/excluir", Roles: []Role{RoleCoordinator}},
)

// Match resolves a request path to its page. Static segments win over
// dynamic ones, so /eventos/novo never resolves to /eventos/:id.
func (r *Registry) Match(path string) (Page, bool) {
	segs := splitPath(path)

	best, bestScore := Page{}, -1
	for _, p := range r.pages {
		score, ok := matchSegments(splitPath(p.Pattern), segs)
		if ok && score > bestScore {
			best, bestScore = p, score
		}
	}
	return best, bestScore >= 0
}

// Lookup returns the page registered under pattern.
func (r *Registry) Lookup(pattern string) (Page, bool) {
	for _, p := range r.pages {
		if p.Pattern == pattern {
			return p, true
		}
	}
	return Page{}, false
}

// AllowList returns the non-public patterns a role may open, sorted.
func (r *Registry) AllowList(role Role) []string {
	var out []string
	for _, p := range r.pages {
		if p.Public {
			continue
		}
		if p.Allows(string(role)) {
			out = append(out, p.Pattern)
		}
	}
	sort.Strings(out)
	return out
}

// Navigation returns the labelled pages visible to role, in registry order.
func (r *Registry) Navigation(role string) []Page {
	var out []Page
	for _, p := range r.pages {
		if p.Label != "" && !p.Public && p.Allows(role) {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) Pages() []Page {
	out := make([]Page, len(r.pages))
	copy(out, r.pages)
	return out
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, path []string) (int, bool) {
	if len(pattern) != len(path) {
		return 0, false
	}
	score := 0
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			if path[i] == "" {
				return 0, false
			}
			continue
		}
		if seg != path[i] {
			return 0, false
		}
		score++
	}
	return score, true
}
