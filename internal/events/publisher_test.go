package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"legalcase/internal/model"
	"legalcase/internal/repository"
	"legalcase/internal/repository/mocks"
)

func someEvent(caseID string) model.DomainEvent {
	return model.CaseSubmitted{
		EventMeta:   model.EventMeta{ID: "ev-1", Case: caseID, At: time.Now().UTC()},
		SubmittedBy: "user-1",
	}
}

func TestPublisher_Publish_AppendsEntry(t *testing.T) {
	caseRepo := new(mocks.MockCaseRepository)
	logRepo := new(mocks.MockEventLogRepository)
	caseRepo.On("ExistsByID", mock.Anything, "case-1").Return(true, nil)

	var captured *repository.EventLogEntry
	logRepo.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(*repository.EventLogEntry)
	}).Return(nil)

	p := NewPublisher(caseRepo, logRepo, NewRegistry(), nil, 8)
	ctx := WithActor(context.Background(), "reviewer-9")

	err := p.Publish(ctx, someEvent("case-1"))

	assert.NoError(t, err)
	assert.Equal(t, "case-1", captured.CaseID)
	assert.Equal(t, "ev-1", captured.EventID)
	assert.Equal(t, model.EventCaseSubmitted, captured.EventType)
	assert.Equal(t, "reviewer-9", captured.CreatedBy)

	var body map[string]any
	assert.NoError(t, json.Unmarshal([]byte(captured.EventData), &body))
	assert.Equal(t, "user-1", body["submitted_by"])
	assert.Equal(t, "case-1", body["case_id"])
}

func TestPublisher_Publish_UnknownCaseDropped(t *testing.T) {
	caseRepo := new(mocks.MockCaseRepository)
	logRepo := new(mocks.MockEventLogRepository)
	caseRepo.On("ExistsByID", mock.Anything, "gone").Return(false, nil)

	p := NewPublisher(caseRepo, logRepo, NewRegistry(), nil, 8)

	err := p.Publish(context.Background(), someEvent("gone"))

	assert.NoError(t, err)
	logRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestPublisher_Publish_AppendFailurePropagates(t *testing.T) {
	caseRepo := new(mocks.MockCaseRepository)
	logRepo := new(mocks.MockEventLogRepository)
	caseRepo.On("ExistsByID", mock.Anything, "case-1").Return(true, nil)
	logRepo.On("Append", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	registry := NewRegistry()
	called := false
	registry.Subscribe(model.EventCaseSubmitted, func(ctx context.Context, ev model.DomainEvent) error {
		called = true
		return nil
	})

	p := NewPublisher(caseRepo, logRepo, registry, nil, 8)

	err := p.Publish(context.Background(), someEvent("case-1"))

	assert.ErrorIs(t, err, ErrEventPersistence)
	assert.False(t, called, "handlers must not run when the append fails")
}

func TestPublisher_Publish_SyncHandlerRunsInline(t *testing.T) {
	caseRepo := new(mocks.MockCaseRepository)
	logRepo := new(mocks.MockEventLogRepository)
	caseRepo.On("ExistsByID", mock.Anything, "case-1").Return(true, nil)
	logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	registry := NewRegistry()
	var got model.DomainEvent
	registry.Subscribe(model.EventCaseSubmitted, func(ctx context.Context, ev model.DomainEvent) error {
		got = ev
		return nil
	})

	p := NewPublisher(caseRepo, logRepo, registry, nil, 8)

	assert.NoError(t, p.Publish(context.Background(), someEvent("case-1")))
	assert.NotNil(t, got)
	assert.Equal(t, "case-1", got.CaseID())
}

func TestPublisher_Publish_HandlerErrorDoesNotFailPublish(t *testing.T) {
	caseRepo := new(mocks.MockCaseRepository)
	logRepo := new(mocks.MockEventLogRepository)
	caseRepo.On("ExistsByID", mock.Anything, "case-1").Return(true, nil)
	logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	registry := NewRegistry()
	registry.Subscribe(model.EventCaseSubmitted, func(ctx context.Context, ev model.DomainEvent) error {
		return errors.New("downstream unavailable")
	})

	p := NewPublisher(caseRepo, logRepo, registry, nil, 8)

	assert.NoError(t, p.Publish(context.Background(), someEvent("case-1")))
}

func TestPublisher_AsyncHandlerRunsOnWorker(t *testing.T) {
	caseRepo := new(mocks.MockCaseRepository)
	logRepo := new(mocks.MockEventLogRepository)
	caseRepo.On("ExistsByID", mock.Anything, "case-1").Return(true, nil)
	logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	registry := NewRegistry()
	done := make(chan string, 1)
	registry.SubscribeAsync(model.EventCaseSubmitted, func(ctx context.Context, ev model.DomainEvent) error {
		done <- Actor(ctx)
		return nil
	})

	p := NewPublisher(caseRepo, logRepo, registry, nil, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.NewWorker().Run(ctx)

	err := p.Publish(WithActor(context.Background(), "clerk-2"), someEvent("case-1"))
	assert.NoError(t, err)

	select {
	case actor := <-done:
		assert.Equal(t, "clerk-2", actor)
	case <-time.After(2 * time.Second):
		t.Fatal("async handler was not invoked")
	}
}

func TestPublisher_FullInboxWaitsBeforeSkipping(t *testing.T) {
	old := asyncEnqueueTimeout
	asyncEnqueueTimeout = 20 * time.Millisecond
	defer func() { asyncEnqueueTimeout = old }()

	caseRepo := new(mocks.MockCaseRepository)
	logRepo := new(mocks.MockEventLogRepository)
	caseRepo.On("ExistsByID", mock.Anything, "case-1").Return(true, nil)
	logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	registry := NewRegistry()
	registry.SubscribeAsync(model.EventCaseSubmitted, func(ctx context.Context, ev model.DomainEvent) error {
		return nil
	})

	// No worker running and a one-slot inbox: the second publish finds the
	// queue full and must wait out the timeout instead of failing.
	p := NewPublisher(caseRepo, logRepo, registry, nil, 1)

	assert.NoError(t, p.Publish(context.Background(), someEvent("case-1")))

	start := time.Now()
	assert.NoError(t, p.Publish(context.Background(), someEvent("case-1")))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

type recordingNotifier struct {
	mu     sync.Mutex
	caseID string
	event  model.DomainEvent
}

func (n *recordingNotifier) CaseUpdated(ctx context.Context, caseID string, ev model.DomainEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.caseID = caseID
	n.event = ev
}

func TestPublisher_NotifiesStream(t *testing.T) {
	caseRepo := new(mocks.MockCaseRepository)
	logRepo := new(mocks.MockEventLogRepository)
	caseRepo.On("ExistsByID", mock.Anything, "case-1").Return(true, nil)
	logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	n := &recordingNotifier{}
	p := NewPublisher(caseRepo, logRepo, NewRegistry(), n, 8)

	assert.NoError(t, p.Publish(context.Background(), someEvent("case-1")))
	assert.Equal(t, "case-1", n.caseID)
	assert.Equal(t, model.EventCaseSubmitted, n.event.EventType())
}

func TestPublisher_PublishAll_DrainsAggregate(t *testing.T) {
	caseRepo := new(mocks.MockCaseRepository)
	logRepo := new(mocks.MockEventLogRepository)
	caseRepo.On("ExistsByID", mock.Anything, mock.Anything).Return(true, nil)

	var types []string
	logRepo.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		types = append(types, args.Get(1).(*repository.EventLogEntry).EventType)
	}).Return(nil)

	c := model.NewCase("client-1", "profile-1", "Visa application", "British citizenship application")
	p := NewPublisher(caseRepo, logRepo, NewRegistry(), nil, 8)

	assert.NoError(t, p.PublishAll(context.Background(), c))
	assert.Equal(t, []string{model.EventCaseCreated}, types)
	assert.Empty(t, c.PendingEvents())
}
