package bus

import (
	"testing"
	"time"
)

func TestPublishReachesPrefixSubscriber(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversation.", 4)
	defer unsub()

	b.Notify(ConversationChanged, "c1")

	select {
	case evt := <-ch:
		if evt.Kind != ConversationChanged {
			t.Errorf("kind = %q, want %q", evt.Kind, ConversationChanged)
		}
		if evt.Payload != "c1" {
			t.Errorf("payload = %v, want c1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPublishSkipsNonMatchingPrefix(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("outbox.", 4)
	defer unsub()

	b.Notify(ConversationChanged, nil)

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %q on outbox subscription", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyPrefixMatchesEverything(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 8)
	defer unsub()

	b.Notify(OutboxQueued, nil)
	b.Notify(UserUpdated, nil)

	for i := 0; i < 2; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("got %d events, want 2", i)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversation.", 4)
	unsub()

	b.Notify(ConversationChanged, nil)

	select {
	case <-ch:
		t.Fatal("received event after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFullSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("conversation.", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Notify(ConversationChanged, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}
