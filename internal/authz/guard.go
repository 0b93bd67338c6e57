package authz

import (
	"sync"
	"time"

	"submita/internal/session"
)

// Guard re-evaluates Decide as session state settles and lets each session
// state fire at most one redirect. The marker resets only when the subject
// changes (login, logout, forced logout).
type Guard struct {
	mu         sync.Mutex
	subject    string
	redirected bool
	last       Decision
}

func NewGuard() *Guard {
	return &Guard{}
}

// Evaluate returns the current decision and whether the caller should act on
// it as a redirect now.
func (g *Guard) Evaluate(s session.State, page Page, path string, now time.Time) (Decision, bool) {
	d := Decide(s, page, path, now)
	subject := s.Subject()
	if !s.Authenticated(now) {
		subject = ""
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if subject != g.subject {
		g.subject = subject
		g.redirected = false
	}
	g.last = d

	if !d.Redirect() || g.redirected {
		return d, false
	}
	g.redirected = true
	return d, true
}

// Redirected reports whether a redirect already fired for the current subject.
func (g *Guard) Redirected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.redirected
}

func (g *Guard) Last() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
