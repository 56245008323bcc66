package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"legalcase/internal/model"
	"legalcase/internal/repository"
)

// ErrEventPersistence marks a failed append to the event log. Unlike handler
// errors it always surfaces to the caller: a lost event breaks audit and
// replay.
var ErrEventPersistence = errors.New("event persistence failed")

// dispatch is one event queued for the async worker.
type dispatch struct {
	event model.DomainEvent
	actor string
}

// asyncEnqueueTimeout bounds how long Publish waits for worker inbox space.
// A skipped async handler can leave a case mid-transition (an analysis run
// that never settles), so waiting briefly beats dropping outright.
var asyncEnqueueTimeout = 5 * time.Second

// Publisher persists domain events and fans them out to handlers and the
// live update stream.
type Publisher struct {
	cases    repository.CaseRepository
	eventLog repository.EventLogRepository
	registry *Registry
	notifier Notifier
	inbox    chan dispatch
}

// NewPublisher creates a publisher. notifier may be nil. bufferSize bounds
// the async dispatch queue; when the queue stays full past a bounded wait the
// async handlers for the overflowing event are skipped with an error log
// rather than blocking the request path indefinitely.
func NewPublisher(cases repository.CaseRepository, eventLog repository.EventLogRepository, registry *Registry, notifier Notifier, bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Publisher{
		cases:    cases,
		eventLog: eventLog,
		registry: registry,
		notifier: notifier,
		inbox:    make(chan dispatch, bufferSize),
	}
}

// Publish persists the event and dispatches it. Events referencing a case
// that no longer exists are logged and dropped; everything else that fails
// before the append surfaces as ErrEventPersistence.
func (p *Publisher) Publish(ctx context.Context, ev model.DomainEvent) error {
	exists, err := p.cases.ExistsByID(ctx, ev.CaseID())
	if err != nil {
		return fmt.Errorf("%w: check case %s: %v", ErrEventPersistence, ev.CaseID(), err)
	}
	if !exists {
		log.Printf("dropping event %s for unknown case %s", ev.EventType(), ev.CaseID())
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrEventPersistence, ev.EventType(), err)
	}

	entry := &repository.EventLogEntry{
		ID:         uuid.NewString(),
		CaseID:     ev.CaseID(),
		EventID:    ev.EventID(),
		EventType:  ev.EventType(),
		OccurredAt: ev.OccurredAt(),
		EventData:  string(payload),
		CreatedBy:  Actor(ctx),
	}
	if err := p.eventLog.Append(ctx, entry); err != nil {
		return fmt.Errorf("%w: append %s for case %s: %v", ErrEventPersistence, ev.EventType(), ev.CaseID(), err)
	}

	for _, h := range p.registry.syncHandlers(ev.EventType()) {
		if err := h(ctx, ev); err != nil {
			log.Printf("handler for %s failed: %v", ev.EventType(), err)
		}
	}

	if len(p.registry.asyncHandlers(ev.EventType())) > 0 {
		timer := time.NewTimer(asyncEnqueueTimeout)
		select {
		case p.inbox <- dispatch{event: ev, actor: Actor(ctx)}:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			log.Printf("ERROR: context cancelled before dispatch of %s for case %s, async handlers skipped", ev.EventType(), ev.CaseID())
		case <-timer.C:
			log.Printf("ERROR: dispatch queue full, async handlers for %s on case %s skipped after %s, case may need manual follow-up", ev.EventType(), ev.CaseID(), asyncEnqueueTimeout)
		}
	}

	if p.notifier != nil {
		p.notifier.CaseUpdated(ctx, ev.CaseID(), ev)
	}
	return nil
}

// PublishAll drains the aggregate's buffered events and publishes them in
// registration order, stopping at the first persistence failure.
func (p *Publisher) PublishAll(ctx context.Context, c *model.Case) error {
	for _, ev := range c.DrainEvents() {
		if err := p.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Worker consumes queued dispatches and runs the async handlers. Run blocks
// until the context is cancelled.
type Worker struct {
	registry *Registry
	inbox    <-chan dispatch
}

func (p *Publisher) NewWorker() *Worker {
	return &Worker{registry: p.registry, inbox: p.inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-w.inbox:
			hctx := WithActor(ctx, d.actor)
			for _, h := range w.registry.asyncHandlers(d.event.EventType()) {
				if err := h(hctx, d.event); err != nil {
					log.Printf("async handler for %s failed: %v", d.event.EventType(), err)
				}
			}
		}
	}
}
