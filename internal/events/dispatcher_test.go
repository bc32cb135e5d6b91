package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishInvokesSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []string
	d.Subscribe(EventAccountSuspended, func(_ context.Context, e Event) error {
		got = append(got, e.AccountID)
		return nil
	})
	d.Subscribe(EventSuspensionLifted, func(_ context.Context, e Event) error {
		t.Error("handler for a different type must not run")
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventAccountSuspended, AccountID: "acc-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 || got[0] != "acc-1" {
		t.Fatalf("handled = %v, want [acc-1]", got)
	}
}

func TestPublishContinuesPastFailingHandler(t *testing.T) {
	d := NewInMemoryDispatcher()

	ran := false
	d.Subscribe(EventAppealFiled, func(context.Context, Event) error {
		return errors.New("mailer down")
	})
	d.Subscribe(EventAppealFiled, func(context.Context, Event) error {
		ran = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventAppealFiled}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !ran {
		t.Fatal("a failing handler must not block the remaining handlers")
	}
}

func TestPublishWithNoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), Event{Type: EventRoleChanged}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}
