package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []Event
	d.Subscribe(EventOrderCreated, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	event := Event{ID: "e1", Type: EventOrderCreated, OrderID: "o1"}
	if err := d.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 || got[0].OrderID != "o1" {
		t.Fatalf("handler not invoked correctly: %+v", got)
	}
}

func TestDispatcherIgnoresOtherEventTypes(t *testing.T) {
	d := NewInMemoryDispatcher()

	called := false
	d.Subscribe(EventOrderAssigned, func(context.Context, Event) error {
		called = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventOrderUpdated}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if called {
		t.Fatal("handler for another event type must not fire")
	}
}

func TestDispatcherHandlerErrorsDoNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()

	secondCalled := false
	d.Subscribe(EventOrderStatusChanged, func(context.Context, Event) error {
		return errors.New("boom")
	})
	d.Subscribe(EventOrderStatusChanged, func(context.Context, Event) error {
		secondCalled = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventOrderStatusChanged}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !secondCalled {
		t.Fatal("a failing handler must not block the rest")
	}
}
