package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"legalcase/internal/model"
)

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	h := NewHub(4)

	ch1, cancel1 := h.Subscribe("case-1")
	ch2, cancel2 := h.Subscribe("case-1")
	defer cancel1()
	defer cancel2()

	chOther, cancelOther := h.Subscribe("case-2")
	defer cancelOther()

	h.Broadcast("case-1", Message{Name: "caseUpdate", Data: "payload"})

	for _, ch := range []<-chan Message{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "caseUpdate", msg.Name)
			assert.Equal(t, "payload", msg.Data)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive broadcast")
		}
	}

	select {
	case <-chOther:
		t.Fatal("subscriber of another case received the broadcast")
	default:
	}
}

func TestHub_CancelRemovesSubscriber(t *testing.T) {
	h := NewHub(4)

	_, cancel := h.Subscribe("case-1")
	assert.Equal(t, 1, h.SubscriberCount("case-1"))

	cancel()
	assert.Equal(t, 0, h.SubscriberCount("case-1"))
}

func TestHub_SlowSubscriberPruned(t *testing.T) {
	h := NewHub(1)

	slow, _ := h.Subscribe("case-1")
	fast, cancelFast := h.Subscribe("case-1")
	defer cancelFast()

	// Fill the slow subscriber's buffer, draining the fast one in between so
	// only the slow subscriber falls behind.
	h.Broadcast("case-1", Message{Name: "caseUpdate", Data: 1})
	<-fast
	h.Broadcast("case-1", Message{Name: "caseUpdate", Data: 2})

	assert.Equal(t, 1, h.SubscriberCount("case-1"))

	// The pruned channel is closed after draining its buffered message.
	<-slow
	_, open := <-slow
	assert.False(t, open)

	select {
	case msg := <-fast:
		assert.Equal(t, 2, msg.Data)
	case <-time.After(time.Second):
		t.Fatal("fast subscriber missed the second broadcast")
	}
}

func TestHub_ConcurrentBroadcastsPruneOnce(t *testing.T) {
	h := NewHub(1)

	// Subscribers that are never drained: every broadcast past the first sees
	// their buffers full and prunes them.
	for i := 0; i < 50; i++ {
		h.Subscribe("case-1")
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				h.Broadcast("case-1", Message{Name: "caseUpdate", Data: j})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, h.SubscriberCount("case-1"))
}

func TestHub_CaseUpdated_SendsFreshView(t *testing.T) {
	h := NewHub(4)
	h.BindSnapshot(func(ctx context.Context, caseID string) (any, error) {
		return map[string]string{"id": caseID, "status": "ANALYZING"}, nil
	})

	ch, cancel := h.Subscribe("case-1")
	defer cancel()

	c := model.NewCase("client-1", "profile-1", "title", "desc")
	h.CaseUpdated(context.Background(), "case-1", c.PendingEvents()[0])

	select {
	case msg := <-ch:
		assert.Equal(t, "caseUpdate", msg.Name)
		view := msg.Data.(map[string]string)
		assert.Equal(t, "case-1", view["id"])
	case <-time.After(time.Second):
		t.Fatal("no stream update received")
	}
}

func TestHub_CaseUpdated_NoSubscribersSkipsSnapshot(t *testing.T) {
	h := NewHub(4)
	called := false
	h.BindSnapshot(func(ctx context.Context, caseID string) (any, error) {
		called = true
		return nil, nil
	})

	c := model.NewCase("client-1", "profile-1", "title", "desc")
	h.CaseUpdated(context.Background(), "nobody-watching", c.PendingEvents()[0])

	assert.False(t, called)
}

func TestHub_CaseUpdated_SnapshotErrorDropsUpdate(t *testing.T) {
	h := NewHub(4)
	h.BindSnapshot(func(ctx context.Context, caseID string) (any, error) {
		return nil, errors.New("case vanished")
	})

	ch, cancel := h.Subscribe("case-1")
	defer cancel()

	c := model.NewCase("client-1", "profile-1", "title", "desc")
	h.CaseUpdated(context.Background(), "case-1", c.PendingEvents()[0])

	select {
	case <-ch:
		t.Fatal("update should not be delivered when the view cannot be built")
	default:
	}
}
