package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"mercata.dev/internal/obs"
)

// Registry creates Permission rows for guarded actions. Each route
// declares its action once at wiring time; registration is idempotent and
// best-effort, so a storage hiccup during boot never takes the process
// down. The upsert simply runs again on the next boot.
type Registry struct {
	store Store

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewRegistry constructs a Registry over the store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, seen: make(map[string]struct{})}
}

// EnsureAction upserts the permission row for the action. Safe to call
// concurrently and repeatedly; duplicate upserts rely on the uniqueness
// constraint on the action column.
func (r *Registry) EnsureAction(ctx context.Context, action string) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return nil
	}
	r.mu.Lock()
	if _, ok := r.seen[action]; ok {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err := r.store.UpsertPermission(ctx, action); err != nil {
		return err
	}

	r.mu.Lock()
	r.seen[action] = struct{}{}
	r.mu.Unlock()
	return nil
}

// Register fires EnsureAction in the background, logging failure instead
// of propagating it. Meant for route declarations, which must not block
// on the store. Already-registered actions spawn nothing.
func (r *Registry) Register(action string) {
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}
	r.mu.Lock()
	_, ok := r.seen[action]
	r.mu.Unlock()
	if ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.EnsureAction(ctx, action); err != nil {
			obs.LogEvent("warn", "permission registration failed", map[string]any{
				"action": action,
				"error":  err.Error(),
			})
		}
	}()
}
