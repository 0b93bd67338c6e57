package authz_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"submita/internal/authz"
	"submita/internal/security/securitytest"
	"submita/internal/session"
)

func TestGuard_FiresOncePerSubject(t *testing.T) {
	g := authz.NewGuard()
	s := stateFor(t, "STUDENT", true, now.Add(time.Hour))
	p := page(t, "/dashboard")

	_, fire := g.Evaluate(s, p, "/dashboard", now)
	if !fire {
		t.Fatalf("first evaluation should fire")
	}
	for i := 0; i < 5; i++ {
		d, fire := g.Evaluate(s, p, "/dashboard", now)
		if fire {
			t.Fatalf("re-evaluation %d fired again", i)
		}
		if d.Action != authz.RedirectResetPassword {
			t.Fatalf("decision changed: %+v", d)
		}
	}
	if !g.Redirected() {
		t.Fatalf("guard should remember the redirect")
	}
}

func TestGuard_SubjectChangeResetsMarker(t *testing.T) {
	g := authz.NewGuard()
	p := page(t, "/dashboard")

	first := stateFor(t, "STUDENT", true, now.Add(time.Hour))
	if _, fire := g.Evaluate(first, p, "/dashboard", now); !fire {
		t.Fatalf("expected redirect")
	}

	// forced logout: the subject disappears
	if d, fire := g.Evaluate(session.State{}, p, "/dashboard", now); !fire || d.Action != authz.RedirectLogin {
		t.Fatalf("expected login redirect after subject change, got %+v fire=%v", d, fire)
	}

	other := session.Inspect(securitytest.Token(t, securitytest.Options{UserID: "u-2", Role: "STUDENT", FirstLogin: true, ExpiresAt: now.Add(time.Hour)}), nil)
	if _, fire := g.Evaluate(other, p, "/dashboard", now); !fire {
		t.Fatalf("new subject should be able to redirect")
	}
}

func TestGuard_RenderNeverFires(t *testing.T) {
	g := authz.NewGuard()
	s := stateFor(t, "COORDINATOR", false, now.Add(time.Hour))
	d, fire := g.Evaluate(s, page(t, "/usuarios"), "/usuarios", now)
	if fire || d.Action != authz.Render {
		t.Fatalf("got %+v fire=%v", d, fire)
	}
	if g.Last().Action != authz.Render {
		t.Fatalf("last decision not recorded")
	}
}

func TestGuard_ConcurrentEvaluationsFireOnce(t *testing.T) {
	g := authz.NewGuard()
	s := stateFor(t, "EVALUATOR", false, now.Add(time.Hour))
	p := page(t, "/usuarios")

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, fire := g.Evaluate(s, p, "/usuarios", now); fire {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()

	if fired.Load() != 1 {
		t.Fatalf("expected exactly one redirect, got %d", fired.Load())
	}
}
