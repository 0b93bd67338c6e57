// Package fetch adapts a fetch function into renderable data/loading/error
// state with manual re-invocation and a latched run-on-mount.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"submita/internal/apiclient"
)

const (
	timeoutMessage  = "O servidor demorou demais para responder. Tente novamente."
	fallbackMessage = "Ocorreu um erro inesperado. Tente novamente."
)

type Func[P, T any] func(ctx context.Context, p P) (T, error)

type State[T any] struct {
	Data    T
	HasData bool
	Loading bool
	// Err is the normalized, user-facing message of the last failure.
	Err string
}

// Hook owns the state of one fetch call site. Overlapping Execute calls run
// concurrently and the last one to resolve wins, unless LatestOnly is set.
type Hook[P, T any] struct {
	mu sync.Mutex

	fn         Func[P, T]
	onSuccess  func(T)
	onError    func(error)
	latestOnly bool

	state     State[T]
	gen       uint64
	immediate bool
	latched   bool
}

func New[P, T any](fn Func[P, T]) *Hook[P, T] {
	return &Hook[P, T]{fn: fn}
}

func (h *Hook[P, T]) OnSuccess(fn func(T)) *Hook[P, T] {
	h.mu.Lock()
	h.onSuccess = fn
	h.mu.Unlock()
	return h
}

func (h *Hook[P, T]) OnError(fn func(error)) *Hook[P, T] {
	h.mu.Lock()
	h.onError = fn
	h.mu.Unlock()
	return h
}

// LatestOnly discards results of calls superseded by a newer Execute or Reset.
func (h *Hook[P, T]) LatestOnly() *Hook[P, T] {
	h.mu.Lock()
	h.latestOnly = true
	h.mu.Unlock()
	return h
}

// Rebind swaps the wrapped function. It never triggers a fetch; only later
// Execute calls observe the new function.
func (h *Hook[P, T]) Rebind(fn Func[P, T]) *Hook[P, T] {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
	return h
}

// Execute marks the hook loading and clears the previous error before calling
// the function, then stores the outcome. The result is returned as well so
// callers can chain on it.
func (h *Hook[P, T]) Execute(ctx context.Context, p P) (T, error) {
	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.state.Loading = true
	h.state.Err = ""
	fn, onSuccess, onError := h.fn, h.onSuccess, h.onError
	h.mu.Unlock()

	data, err := call(ctx, fn, p)

	h.mu.Lock()
	if h.latestOnly && gen != h.gen {
		h.mu.Unlock()
		return data, err
	}
	if err != nil {
		h.state.Err = Message(err)
	} else {
		h.state.Data = data
		h.state.HasData = true
	}
	h.state.Loading = false
	h.mu.Unlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return data, err
	}
	if onSuccess != nil {
		onSuccess(data)
	}
	return data, nil
}

// Mount runs Execute once while immediate stays true. The latch resets only
// when immediate goes from false to true. It reports whether a fetch ran.
func (h *Hook[P, T]) Mount(ctx context.Context, immediate bool, p P) bool {
	h.mu.Lock()
	if immediate && !h.immediate {
		h.latched = false
	}
	h.immediate = immediate
	if !immediate || h.latched {
		h.mu.Unlock()
		return false
	}
	h.latched = true
	h.mu.Unlock()

	_, _ = h.Execute(ctx, p)
	return true
}

// Reset restores the initial state without calling the function.
func (h *Hook[P, T]) Reset() {
	h.mu.Lock()
	h.gen++
	h.state = State[T]{}
	h.mu.Unlock()
}

func (h *Hook[P, T]) Snapshot() State[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Message normalizes any fetch error into the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := apiclient.AsError(err); ok {
		return apiclient.Message(apiErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutMessage
	}
	return fallbackMessage
}

func call[P, T any](ctx context.Context, fn Func[P, T], p P) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	if fn == nil {
		return data, errors.New("fetch function not set")
	}
	return fn(ctx, p)
}
