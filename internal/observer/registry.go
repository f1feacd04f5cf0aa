// Package observer provides token-keyed subscriber sets with isolated delivery.
package observer

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// Token identifies one registration.
type Token string

type entry[T any] struct {
	token Token
	fn    func(T)
}

// Registry is a set of callbacks receiving values of type T. Callbacks run
// synchronously in registration order. A panicking callback is recovered and
// logged and does not stop delivery to the others.
type Registry[T any] struct {
	name string
	log  *slog.Logger

	mu      sync.RWMutex
	entries []entry[T]
}

// NewRegistry returns an empty registry. name appears in recovery logs.
func NewRegistry[T any](name string, log *slog.Logger) *Registry[T] {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry[T]{name: name, log: log}
}

// Add registers fn and returns the token that removes it.
func (r *Registry[T]) Add(fn func(T)) Token {
	token := Token(uuid.New().String())

	r.mu.Lock()
	r.entries = append(r.entries, entry[T]{token: token, fn: fn})
	r.mu.Unlock()

	return token
}

// Remove unregisters token. It reports whether the token was registered;
// removing an unknown or already removed token is a no-op.
func (r *Registry[T]) Remove(token Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.token == token {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered callbacks.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Emit delivers v to every callback registered at the time of the call.
func (r *Registry[T]) Emit(v T) {
	r.mu.RLock()
	snapshot := make([]entry[T], len(r.entries))
	copy(snapshot, r.entries)
	r.mu.RUnlock()

	for _, e := range snapshot {
		r.deliver(e, v)
	}
}

func (r *Registry[T]) deliver(e entry[T], v T) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("subscriber panicked",
				"registry", r.name,
				"token", string(e.token),
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()
	e.fn(v)
}
