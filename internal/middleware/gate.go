package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"submita/internal/audit"
	"submita/internal/authz"
	"submita/internal/metrics"
	"submita/internal/security"
	"submita/internal/session"
)

const (
	stateKey = "session_state"
	pageKey  = "route_page"
)

// Gate is the authoritative run of the authorization decision. It verifies
// the cookie token signature, redirects when the decision says so and
// otherwise stores the verified state for the page handler. Paths outside
// the route table pass through untouched.
func Gate(routes *authz.Registry, verifier *security.Verifier, cookies session.Cookies, auditor *audit.Publisher, m *metrics.Registry, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		page, ok := routes.Match(path)
		if !ok {
			c.Next()
			return
		}

		token, mirror := cookies.Read(c.Request)
		var state session.State
		if token != "" {
			claims, err := verifier.Verify(token)
			state = session.FromToken(token, claims, err, mirror)
		}

		d := authz.Decide(state, page, path, time.Now())
		m.ObserveDecision("middleware", string(d.Action))

		if d.DiscardToken {
			cookies.Clear(c.Writer)
			state = session.State{}
		}
		if d.Classification == authz.RoleDenied {
			auditor.Record(c.Request.Context(), AuditEvent(c, audit.AccessDenied, state))
		}

		if d.Redirect() {
			log.Debug().
				Str("path", path).
				Str("classification", string(d.Classification)).
				Str("location", d.Location).
				Msg("gate redirect")
			c.Redirect(http.StatusFound, d.Location)
			c.Abort()
			return
		}

		c.Set(stateKey, state)
		c.Set(pageKey, page)
		c.Next()
	}
}

// StateFrom returns the session state the gate verified for this request.
func StateFrom(c *gin.Context) session.State {
	if v, ok := c.Get(stateKey); ok {
		if s, ok := v.(session.State); ok {
			return s
		}
	}
	return session.State{}
}

// PageFrom returns the route table entry the gate matched.
func PageFrom(c *gin.Context) (authz.Page, bool) {
	if v, ok := c.Get(pageKey); ok {
		p, ok := v.(authz.Page)
		return p, ok
	}
	return authz.Page{}, false
}

// AuditEvent fills the request-derived fields of an audit event.
func AuditEvent(c *gin.Context, kind audit.Kind, s session.State) audit.Event {
	return audit.Event{
		Kind:       kind,
		Subject:    s.Subject(),
		Role:       s.Role(),
		Path:       c.Request.URL.Path,
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		RequestID:  RequestIDFrom(c),
		OccurredAt: time.Now().UTC(),
	}
}
