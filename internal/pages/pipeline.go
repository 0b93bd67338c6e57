// Package pages runs the per-request page lifecycle: a session-bound backend
// client, concurrent data loaders, the page guard and a single outcome
// (render, redirect or forced logout).
package pages

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"submita/internal/api"
	"submita/internal/apiclient"
	"submita/internal/audit"
	"submita/internal/authz"
	"submita/internal/fetch"
	"submita/internal/metrics"
	"submita/internal/middleware"
	"submita/internal/notify"
	"submita/internal/session"
	"submita/internal/views"
)

const maxConcurrentLoaders = 4

// Loader fetches one piece of page data. Failures belong in the fetch hook
// state; a returned error aborts the page with a 500.
type Loader func(ctx context.Context) error

// Mount adapts a fetch hook into a Loader that runs it once.
func Mount[P, T any](h *fetch.Hook[P, T], p P) Loader {
	return func(ctx context.Context) error {
		h.Mount(ctx, true, p)
		return nil
	}
}

type Pipeline struct {
	AppName  string
	Client   *apiclient.Client
	Cookies  session.Cookies
	Profiles *session.Provider
	Notify   *notify.Store
	Audit    *audit.Publisher
	Metrics  *metrics.Registry
	Log      zerolog.Logger
	Now      func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Request is one page request bound to its own session holder.
type Request struct {
	C       *gin.Context
	Page    authz.Page
	Backend *api.Backend

	p      *Pipeline
	holder *session.Holder
	guard  *authz.Guard
	state  session.State

	forced      atomic.Bool
	profileOnce sync.Once
	mu          sync.Mutex
	user        *api.User
	pending     *authz.Decision
	finished    bool
}

// Begin binds a request to the state the route gate verified.
func (p *Pipeline) Begin(c *gin.Context) *Request {
	state := middleware.StateFrom(c)
	page, _ := middleware.PageFrom(c)

	r := &Request{
		C:      c,
		Page:   page,
		p:      p,
		holder: session.NewHolder(state.Token),
		guard:  authz.NewGuard(),
		state:  state,
	}
	r.Backend = api.New(p.Client.WithSession(r.holder, func() { r.forced.Store(true) }))
	return r
}

func (r *Request) Context() context.Context { return r.C.Request.Context() }

// State is the current session state with the loaded profile applied.
func (r *Request) State() session.State {
	if r.holder.Cleared() {
		return session.State{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user != nil {
		return r.state.WithProfile(*r.user)
	}
	return r.state
}

// User returns the loaded profile, or nil before Load or for guests.
func (r *Request) User() *api.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user
}

// Load runs the profile loader and the given loaders concurrently. The guard
// is re-evaluated after each one settles. It reports whether the request was
// already answered with a redirect, in which case the handler must stop.
func (r *Request) Load(loaders ...Loader) bool {
	ctx := r.Context()

	var g errgroup.Group
	g.SetLimit(maxConcurrentLoaders)

	r.profileOnce.Do(func() {
		if !r.state.Authenticated(r.p.now()) {
			return
		}
		g.Go(func() error {
			r.loadProfile(ctx)
			r.settle()
			return nil
		})
	})
	for _, load := range loaders {
		load := load
		g.Go(func() error {
			err := load(ctx)
			r.settle()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		r.p.Log.Error().Err(err).Str("path", r.C.Request.URL.Path).Msg("page loader failed")
		r.Fail(http.StatusInternalServerError)
		return true
	}
	r.settle()
	return r.Finish()
}

func (r *Request) loadProfile(ctx context.Context) {
	subject := r.state.Subject()
	u, err := r.p.Profiles.Current(ctx, subject, r.Backend.Auth.Profile)
	if err != nil {
		if !apiclient.IsUnauthorized(err) {
			r.p.Log.Warn().Err(err).Str("subject", subject).Msg("profile not loaded")
		}
		return
	}
	r.mu.Lock()
	r.user = &u
	r.mu.Unlock()
}

// settle re-runs the guard. Only the first redirect is kept.
func (r *Request) settle() {
	path := r.C.Request.URL.Path
	d, fire := r.guard.Evaluate(r.State(), r.Page, path, r.p.now())
	if !fire {
		return
	}
	r.p.Metrics.ObserveDecision("page", string(d.Action))
	r.mu.Lock()
	if r.pending == nil {
		r.pending = &d
	}
	r.mu.Unlock()
}

// Finish writes the outcome decided so far: a forced logout after a backend
// 401, or the guard's redirect. It reports whether a response was written.
func (r *Request) Finish() bool {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return true
	}
	pending := r.pending
	r.mu.Unlock()

	c := r.C
	switch {
	case r.forced.Load():
		r.forceLogout()
	case pending != nil:
		if pending.DiscardToken {
			r.p.Cookies.Clear(c.Writer)
		}
		r.p.Log.Debug().
			Str("path", c.Request.URL.Path).
			Str("classification", string(pending.Classification)).
			Msg("page guard redirect")
		c.Redirect(http.StatusFound, pending.Location)
		c.Abort()
	default:
		return false
	}

	r.mu.Lock()
	r.finished = true
	r.mu.Unlock()
	return true
}

func (r *Request) forceLogout() {
	c := r.C
	subject := r.state.Subject()
	r.p.Cookies.Clear(c.Writer)
	if subject != "" {
		_ = r.p.Profiles.Invalidate(r.Context(), subject)
	}
	r.p.Audit.Record(r.Context(), middleware.AuditEvent(c, audit.ForcedLogout, r.state))
	r.p.Log.Info().Str("subject", subject).Msg("session rejected by backend, forcing logout")
	c.Redirect(http.StatusFound, authz.LoginPath)
	c.Abort()
}

// Handled is Finish for handlers that call the backend directly: it turns
// a 401 into the forced logout and reports whether the handler must stop.
func (r *Request) Handled(err error) bool {
	if apiclient.IsUnauthorized(err) && r.forced.Load() {
		return r.Finish()
	}
	return false
}

// Render writes the template with the common page fields filled in.
func (r *Request) Render(status int, name string, v views.Page) {
	c := r.C
	v.AppName = r.p.AppName
	v.Path = c.Request.URL.Path
	v.User = r.User()
	if v.User != nil {
		v.Nav = authz.Routes.Navigation(r.State().Role())
	}
	v.Toasts = r.p.Notify.Take(c)
	c.HTML(status, name, v)
}

// Redirect answers a form post with a flash toast and a 303.
func (r *Request) Redirect(location string, level notify.Level, message string) {
	if message != "" {
		r.p.Notify.Flash(r.C, level, message)
	}
	r.C.Redirect(http.StatusSeeOther, location)
}

// Failure reports a failed backend action as a toast. Returns true when
// the error was a session rejection already answered with a redirect.
func (r *Request) Failure(action string, err error) bool {
	if r.Handled(err) {
		return true
	}
	r.p.Notify.Failure(r.C, action, err)
	return false
}

func (r *Request) Fail(status int) {
	r.mu.Lock()
	r.finished = true
	r.mu.Unlock()
	r.Render(status, views.PageError, views.Page{Title: "Erro", Data: status})
}

// Audit records a security event for the current session.
func (r *Request) Audit(kind audit.Kind, detail string) {
	e := middleware.AuditEvent(r.C, kind, r.State())
	e.Detail = detail
	r.p.Audit.Record(r.Context(), e)
}
