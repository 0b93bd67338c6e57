package session

import (
	"net/http"
	"strconv"
	"time"
)

const (
	TokenCookie      = "submita_token"
	FirstLoginCookie = "submita_first_login"
	CookieLifetime   = 7 * 24 * time.Hour
)

// Cookies reads and writes the two session cookies. They are always set and
// cleared together.
type Cookies struct {
	Secure bool
	Domain string
}

// Read returns the token and the first-login mirror (nil when absent or unparsable).
func (c Cookies) Read(r *http.Request) (string, *bool) {
	var token string
	if ck, err := r.Cookie(TokenCookie); err == nil {
		token = ck.Value
	}

	var mirror *bool
	if ck, err := r.Cookie(FirstLoginCookie); err == nil {
		if v, err := strconv.ParseBool(ck.Value); err == nil {
			mirror = &v
		}
	}
	return token, mirror
}

func (c Cookies) Write(w http.ResponseWriter, token string, firstLogin bool) {
	expires := time.Now().Add(CookieLifetime)
	http.SetCookie(w, c.cookie(TokenCookie, token, expires, int(CookieLifetime.Seconds())))
	http.SetCookie(w, c.cookie(FirstLoginCookie, strconv.FormatBool(firstLogin), expires, int(CookieLifetime.Seconds())))
}

// SetFirstLogin rewrites only the mirror, keeping the 7-day lifetime.
func (c Cookies) SetFirstLogin(w http.ResponseWriter, firstLogin bool) {
	expires := time.Now().Add(CookieLifetime)
	http.SetCookie(w, c.cookie(FirstLoginCookie, strconv.FormatBool(firstLogin), expires, int(CookieLifetime.Seconds())))
}

func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(TokenCookie, "", time.Unix(0, 0), -1))
	http.SetCookie(w, c.cookie(FirstLoginCookie, "", time.Unix(0, 0), -1))
}

func (c Cookies) cookie(name, value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
