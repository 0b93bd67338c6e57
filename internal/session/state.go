package session

import (
	"time"

	"submita/internal/security"
)

// State is what the portal knows about the browser session at a given moment.
type State struct {
	Token     string
	Claims    security.Claims
	Decodable bool
	// FirstLogin is the effective flag: the cookie mirror when present,
	// otherwise the token claim.
	FirstLogin bool
}

// FromToken builds a State from a raw token and the result of decoding it.
// A nil mirror means the first-login cookie was absent.
func FromToken(token string, claims security.Claims, decodeErr error, mirror *bool) State {
	if token == "" {
		return State{}
	}
	s := State{Token: token}
	if decodeErr != nil {
		return s
	}
	s.Claims = claims
	s.Decodable = true
	s.FirstLogin = claims.FirstLogin
	if mirror != nil {
		s.FirstLogin = *mirror
	}
	return s
}

// Inspect decodes the token locally, without signature verification.
func Inspect(token string, mirror *bool) State {
	claims, err := security.Inspect(token)
	return FromToken(token, claims, err, mirror)
}

func (s State) HasToken() bool { return s.Token != "" }

// Authenticated is false without a token, with an undecodable token, or when
// the token expiry is at or before now.
func (s State) Authenticated(now time.Time) bool {
	if s.Token == "" || !s.Decodable {
		return false
	}
	return s.Claims.Expiry().After(now)
}

func (s State) Subject() string {
	if !s.Decodable {
		return ""
	}
	return s.Claims.SubjectID()
}

func (s State) Role() string {
	if !s.Decodable {
		return ""
	}
	return s.Claims.Role
}

// WithProfile overlays a freshly fetched profile. Role and first-login
// status follow the profile; expiry and subject stay with the token.
func (s State) WithProfile(u User) State {
	if !s.Decodable || u.ID == "" {
		return s
	}
	if u.Role != "" {
		s.Claims.Role = u.Role
	}
	s.FirstLogin = u.IsFirstLogin
	return s
}
