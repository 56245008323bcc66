// Package events publishes domain events: every published event is appended
// to the durable event log, then dispatched to registered handlers and to the
// live update stream.
package events

import (
	"context"
	"sync"

	"legalcase/internal/model"
)

// Handler reacts to a published domain event. Handler errors are logged and
// never fail the publish; persistence is the only step that can.
type Handler func(ctx context.Context, ev model.DomainEvent) error

// Notifier receives every successfully persisted event, typically to push
// live updates to connected clients.
type Notifier interface {
	CaseUpdated(ctx context.Context, caseID string, ev model.DomainEvent)
}

// Registry maps event types to their handlers. Sync handlers run inline
// during Publish; async handlers run on the dispatch worker.
type Registry struct {
	mu    sync.RWMutex
	sync  map[string][]Handler
	async map[string][]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		sync:  make(map[string][]Handler),
		async: make(map[string][]Handler),
	}
}

// Subscribe registers a handler that runs inline with Publish.
func (r *Registry) Subscribe(eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sync[eventType] = append(r.sync[eventType], h)
}

// SubscribeAsync registers a handler that runs on the dispatch worker, after
// Publish returns.
func (r *Registry) SubscribeAsync(eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.async[eventType] = append(r.async[eventType], h)
}

func (r *Registry) syncHandlers(eventType string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sync[eventType]
}

func (r *Registry) asyncHandlers(eventType string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.async[eventType]
}

type actorKey struct{}

// WithActor records the acting user on the context so published events carry
// an author in the log.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// Actor returns the acting user from the context, or "system" when none was
// recorded.
func Actor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return "system"
}
