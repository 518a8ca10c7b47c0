package core

import (
	"context"
	"testing"
)

func TestObservers_PublishInSubscriptionOrder(t *testing.T) {
	var observers Observers[string]
	var got []string
	observers.Subscribe(func(_ context.Context, event string) { got = append(got, "a:"+event) })
	observers.Subscribe(func(_ context.Context, event string) { got = append(got, "b:"+event) })

	observers.Publish(context.Background(), "sent")
	if len(got) != 2 || got[0] != "a:sent" || got[1] != "b:sent" {
		t.Fatalf("unexpected delivery order: %v", got)
	}
}

func TestObservers_DisposerIsIdempotent(t *testing.T) {
	var observers Observers[int]
	calls := 0
	dispose := observers.Subscribe(func(context.Context, int) { calls++ })
	other := observers.Subscribe(func(context.Context, int) {})

	dispose()
	dispose()
	if observers.Len() != 1 {
		t.Fatalf("expected one subscriber left, got %d", observers.Len())
	}
	observers.Publish(context.Background(), 1)
	if calls != 0 {
		t.Fatalf("expected disposed handler not to run, got %d calls", calls)
	}
	other()
	if observers.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", observers.Len())
	}
}

func TestObservers_ClearDropsEverySubscriber(t *testing.T) {
	var observers Observers[int]
	dispose := observers.Subscribe(func(context.Context, int) {})
	observers.Subscribe(func(context.Context, int) {})
	observers.Clear()
	if observers.Len() != 0 {
		t.Fatalf("expected clear to drop subscribers, got %d", observers.Len())
	}
	dispose()
	observers.Publish(context.Background(), 1)
}

func TestObservers_HandlerMayUnsubscribeDuringPublish(t *testing.T) {
	var observers Observers[int]
	var dispose func()
	calls := 0
	dispose = observers.Subscribe(func(context.Context, int) {
		calls++
		dispose()
	})
	observers.Publish(context.Background(), 1)
	observers.Publish(context.Background(), 2)
	if calls != 1 {
		t.Fatalf("expected one delivery before self-unsubscribe, got %d", calls)
	}
}

func TestVerificationStatus_Terminal(t *testing.T) {
	terminal := map[VerificationStatus]bool{
		VerificationStatusPending:     false,
		VerificationStatusSent:        false,
		VerificationStatusUnderReview: false,
		VerificationStatusReceived:    true,
		VerificationStatusFailed:      true,
		VerificationStatusRejected:    true,
	}
	for status, expected := range terminal {
		if status.IsTerminal() != expected {
			t.Fatalf("status %s: expected terminal=%v", status, expected)
		}
	}
	if status, ok := ParseVerificationStatus("Under-Review"); !ok || status != VerificationStatusUnderReview {
		t.Fatalf("expected under_review, got %q ok=%v", status, ok)
	}
	if _, ok := ParseVerificationStatus("approved"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
}
