// Package realtime fans case updates out to connected stream subscribers.
// Each subscriber holds a buffered channel per case; slow consumers are
// dropped rather than allowed to block the publishers.
package realtime

import (
	"context"
	"log"
	"sync"

	"legalcase/internal/model"
)

// Message is one server-sent event: a name and a JSON-serializable payload.
type Message struct {
	Name string
	Data any
}

// Snapshot produces the current case view sent on connect and after each
// event. It is bound late, after the case service exists.
type Snapshot func(ctx context.Context, caseID string) (any, error)

// Hub is the per-case subscriber registry. The zero value is not usable; use
// NewHub.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string][]chan Message
	bufferSize int
	snapshot   Snapshot
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Hub{
		subs:       make(map[string][]chan Message),
		bufferSize: bufferSize,
	}
}

// BindSnapshot installs the case view producer. Must be called before the
// first event is published.
func (h *Hub) BindSnapshot(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = s
}

// Subscribe registers a new stream for the case. The returned cancel func
// must be called when the consumer disconnects.
func (h *Hub) Subscribe(caseID string) (<-chan Message, func()) {
	ch := make(chan Message, h.bufferSize)

	h.mu.Lock()
	h.subs[caseID] = append(h.subs[caseID], ch)
	h.mu.Unlock()

	return ch, func() { h.remove(caseID, ch) }
}

func (h *Hub) remove(caseID string, ch chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.subs[caseID]
	for i, c := range list {
		if c == ch {
			h.subs[caseID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.subs[caseID]) == 0 {
		delete(h.subs, caseID)
	}
}

// SubscriberCount returns the number of live streams for the case.
func (h *Hub) SubscriberCount(caseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[caseID])
}

// Broadcast delivers the message to every subscriber of the case.
// Subscribers whose buffer is full are pruned and closed in place. The whole
// loop runs under the write lock: sends are non-blocking, and serializing
// concurrent broadcasts guarantees each channel is closed exactly once.
func (h *Hub) Broadcast(caseID string, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var live []chan Message
	for _, ch := range h.subs[caseID] {
		select {
		case ch <- msg:
			live = append(live, ch)
		default:
			log.Printf("dropping slow stream subscriber for case %s", caseID)
			close(ch)
		}
	}
	if len(live) == 0 {
		delete(h.subs, caseID)
		return
	}
	h.subs[caseID] = live
}

// CaseUpdated recomputes the case view and broadcasts it as a "caseUpdate"
// message. Cases nobody is watching are skipped. Implements the event
// publisher's notifier contract.
func (h *Hub) CaseUpdated(ctx context.Context, caseID string, ev model.DomainEvent) {
	if h.SubscriberCount(caseID) == 0 {
		return
	}

	h.mu.RLock()
	snapshotFn := h.snapshot
	h.mu.RUnlock()
	if snapshotFn == nil {
		return
	}

	view, err := snapshotFn(ctx, caseID)
	if err != nil {
		log.Printf("case view for stream update failed for case %s: %v", caseID, err)
		return
	}
	h.Broadcast(caseID, Message{Name: "caseUpdate", Data: view})
}
