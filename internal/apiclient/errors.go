package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	fallbackMessage     = "Ocorreu um erro inesperado. Tente novamente."
	timeoutMessage      = "O servidor demorou demais para responder. Tente novamente."
	unreachableMessage  = "Não foi possível conectar ao servidor."
	unauthorizedMessage = "Sua sessão expirou. Faça login novamente."
)

// Error is the single shape every failed backend call is normalized into.
type Error struct {
	Status    int
	Message   string
	Errors    map[string]string
	Timestamp time.Time
	Timeout   bool

	err error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("backend: %s", e.Message)
	}
	return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

func (e *Error) NotFound() bool { return e.Status == http.StatusNotFound }

// FieldError returns the backend validation message for one field.
func (e *Error) FieldError(field string) string {
	if e.Errors == nil {
		return ""
	}
	return e.Errors[field]
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a backend 401.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Unauthorized()
}

// Message returns the user-facing text for any error returned by the client.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallbackMessage
}

type errorBody struct {
	Status    int             `json:"status"`
	Message   string          `json:"message"`
	Error     string          `json:"error"`
	Errors    json.RawMessage `json:"errors"`
	Timestamp string          `json:"timestamp"`
}

func newStatusError(status int, body []byte, now time.Time) *Error {
	apiErr := &Error{Status: status, Timestamp: now}

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(unwrapErrorEnvelope(body), &parsed) == nil {
		apiErr.Message = strings.TrimSpace(parsed.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(parsed.Error)
		}
		apiErr.Errors = parseFieldErrors(parsed.Errors)
		if ts, ok := parseTimestamp(parsed.Timestamp); ok {
			apiErr.Timestamp = ts
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = statusFallback(status)
	}
	return apiErr
}

func unwrapErrorEnvelope(body []byte) []byte {
	var probe map[string]json.RawMessage
	if json.Unmarshal(body, &probe) != nil {
		return body
	}
	if _, ok := probe["message"]; ok {
		return body
	}
	if inner, ok := probe["data"]; ok && len(inner) > 0 && inner[0] == '{' {
		return inner
	}
	return body
}

// parseFieldErrors accepts {"field": "msg"}, {"field": ["msg", ...]} and
// [{"field": "f", "message": "msg"}].
func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var flat map[string]string
	if json.Unmarshal(raw, &flat) == nil && len(flat) > 0 {
		return flat
	}

	var lists map[string][]string
	if json.Unmarshal(raw, &lists) == nil && len(lists) > 0 {
		out := make(map[string]string, len(lists))
		for field, msgs := range lists {
			if len(msgs) > 0 {
				out[field] = msgs[0]
			}
		}
		return out
	}

	var items []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &items) == nil && len(items) > 0 {
		out := make(map[string]string, len(items))
		for _, it := range items {
			if it.Field != "" {
				out[it.Field] = it.Message
			}
		}
		return out
	}
	return nil
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func statusFallback(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return unauthorizedMessage
	case http.StatusForbidden:
		return "Você não tem permissão para realizar esta ação."
	case http.StatusNotFound:
		return "Recurso não encontrado."
	case http.StatusConflict:
		return "O registro já existe ou está em conflito."
	case http.StatusRequestEntityTooLarge:
		return "O arquivo enviado é grande demais."
	}
	return fallbackMessage
}
