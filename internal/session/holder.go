package session

import "sync"

// Holder carries the bearer token of one browsing session. The HTTP client
// reads it on every request; login, logout and a backend 401 mutate it.
type Holder struct {
	mu      sync.RWMutex
	token   string
	cleared bool
}

func NewHolder(token string) *Holder {
	return &Holder{token: token}
}

func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *Holder) Set(token string) {
	h.mu.Lock()
	h.token = token
	h.cleared = false
	h.mu.Unlock()
}

func (h *Holder) Clear() {
	h.mu.Lock()
	h.token = ""
	h.cleared = true
	h.mu.Unlock()
}

// Cleared reports whether the token was dropped since the last Set.
func (h *Holder) Cleared() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cleared
}
