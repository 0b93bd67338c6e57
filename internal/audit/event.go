// Package audit records security-relevant portal events. The portal publishes
// them to a Redis stream; the worker persists them in Postgres.
package audit

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	Login           Kind = "login"
	LoginFailed     Kind = "login_failed"
	Logout          Kind = "logout"
	ForcedLogout    Kind = "forced_logout"
	AccessDenied    Kind = "access_denied"
	PasswordChanged Kind = "password_changed"
)

func (k Kind) Valid() bool {
	switch k {
	case Login, LoginFailed, Logout, ForcedLogout, AccessDenied, PasswordChanged:
		return true
	}
	return false
}

type Event struct {
	ID         string
	Kind       Kind
	Subject    string
	Role       string
	Path       string
	IP         string
	UserAgent  string
	RequestID  string
	Detail     string
	OccurredAt time.Time
}

var ErrInvalidEvent = errors.New("invalid audit event")

// Values encodes the event as stream fields.
func (e Event) Values() map[string]any {
	return map[string]any{
		"id":          e.ID,
		"kind":        string(e.Kind),
		"subject":     e.Subject,
		"role":        e.Role,
		"path":        e.Path,
		"ip":          e.IP,
		"user_agent":  e.UserAgent,
		"request_id":  e.RequestID,
		"detail":      e.Detail,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

// FromValues decodes stream fields written by Values.
func FromValues(values map[string]any) (Event, error) {
	str := func(k string) string {
		if v, ok := values[k].(string); ok {
			return v
		}
		return ""
	}

	e := Event{
		ID:        str("id"),
		Kind:      Kind(str("kind")),
		Subject:   str("subject"),
		Role:      str("role"),
		Path:      str("path"),
		IP:        str("ip"),
		UserAgent: str("user_agent"),
		RequestID: str("request_id"),
		Detail:    str("detail"),
	}
	if e.ID == "" || !e.Kind.Valid() {
		return Event{}, fmt.Errorf("%w: id=%q kind=%q", ErrInvalidEvent, e.ID, e.Kind)
	}
	ts, err := time.Parse(time.RFC3339Nano, str("occurred_at"))
	if err != nil {
		return Event{}, fmt.Errorf("%w: occurred_at: %v", ErrInvalidEvent, err)
	}
	e.OccurredAt = ts
	return e, nil
}
