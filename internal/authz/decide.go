package authz

import (
	"net/url"
	"time"

	"submita/internal/session"
)

type Classification string

const (
	Public            Classification = "PUBLIC"
	Unauthenticated   Classification = "UNAUTHENTICATED"
	MustResetPassword Classification = "AUTHENTICATED_MUST_RESET_PASSWORD"
	RoleDenied        Classification = "AUTHENTICATED_ROLE_DENIED"
	AuthenticatedOK   Classification = "AUTHENTICATED_OK"
)

type Action string

const (
	Render                Action = "render"
	RedirectLogin         Action = "redirect_login"
	RedirectResetPassword Action = "redirect_reset_password"
	RedirectDashboard     Action = "redirect_dashboard"
)

type Decision struct {
	Classification Classification
	Action         Action
	// Location is the redirect target; empty when Action is Render.
	Location string
	// DiscardToken is set when a token was present but expired or undecodable.
	DiscardToken bool
}

func (d Decision) Redirect() bool { return d.Action != Render }

// Decide is the single rule set shared by the route middleware and the page
// guard. It is pure: the same inputs always give the same decision.
func Decide(s session.State, page Page, path string, now time.Time) Decision {
	authenticated := s.Authenticated(now)
	discard := s.HasToken() && !authenticated

	if page.Public {
		if !authenticated {
			return Decision{Classification: Public, Action: Render, DiscardToken: discard}
		}
		if s.FirstLogin {
			return redirectReset()
		}
		if page.GuestOnly {
			return redirectDashboard(AuthenticatedOK)
		}
		return Decision{Classification: AuthenticatedOK, Action: Render}
	}

	// 1. missing, expired or undecodable token
	if !authenticated {
		return Decision{
			Classification: Unauthenticated,
			Action:         RedirectLogin,
			Location:       LoginLocation(path),
			DiscardToken:   discard,
		}
	}

	// 2. pending password change
	if s.FirstLogin && path != ResetPasswordPath {
		return redirectReset()
	}

	// 3. reset page after the password was changed
	if !s.FirstLogin && path == ResetPasswordPath {
		return redirectDashboard(AuthenticatedOK)
	}

	// 4. role restriction
	if !page.Allows(s.Role()) {
		return redirectDashboard(RoleDenied)
	}

	return Decision{Classification: AuthenticatedOK, Action: Render}
}

// LoginLocation builds the login URL carrying the originally requested path.
func LoginLocation(next string) string {
	if next == "" || next == LoginPath || next == "/" {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// SafeNext accepts only local absolute paths as post-login targets.
// Browsers drop tabs and newlines from URLs, so control bytes are rejected
// before the "//" check.
func SafeNext(next string) string {
	if next == "" || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return DashboardPath
	}
	for i := 0; i < len(next); i++ {
		if next[i] < 0x20 || next[i] == 0x7f {
			return DashboardPath
		}
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return DashboardPath
	}
	return next
}

func redirectReset() Decision {
	return Decision{Classification: MustResetPassword, Action: RedirectResetPassword, Location: ResetPasswordPath}
}

func redirectDashboard(c Classification) Decision {
	return Decision{Classification: c, Action: RedirectDashboard, Location: DashboardPath}
}
