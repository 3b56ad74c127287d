package events

import (
	"testing"
	"time"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventVerifyStart, "test"))

	select {
	case event := <-ch:
		if event.Type != EventVerifyStart {
			t.Errorf("expected EventVerifyStart, got %s", event.Type)
		}
		if event.Data != "test" {
			t.Errorf("expected data 'test', got %v", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemoryBusFilter(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe(EventVerifyEnd)
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventVerifyStart, "should-be-filtered"))
	bus.Publish(NewEvent(EventVerifyEnd, "should-arrive"))

	select {
	case event := <-ch:
		if event.Type != EventVerifyEnd {
			t.Errorf("expected EventVerifyEnd, got %s", event.Type)
		}
		if event.Data != "should-arrive" {
			t.Errorf("expected data 'should-arrive', got %v", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}

	// Ensure the filtered event didn't arrive.
	select {
	case event := <-ch:
		t.Errorf("unexpected event: %v", event)
	case <-time.After(50 * time.Millisecond):
		// Good — no event arrived.
	}
}

func TestMemoryBusMultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus(0)
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	defer bus.Unsubscribe(ch1)
	defer bus.Unsubscribe(ch2)

	bus.Publish(NewEvent(EventRequirementResult, "battery_sufficient"))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			if event.Type != EventRequirementResult {
				t.Errorf("expected EventRequirementResult, got %s", event.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestMemoryBusHistory(t *testing.T) {
	bus := NewMemoryBus(0)

	t1 := time.Now()
	bus.Publish(NewEvent(EventVerifyStart, "first"))
	time.Sleep(10 * time.Millisecond)
	t2 := time.Now()
	bus.Publish(NewEvent(EventVerifyEnd, "second"))

	all := bus.History(t1)
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}

	since := bus.History(t2)
	if len(since) != 1 {
		t.Fatalf("expected 1 event since t2, got %d", len(since))
	}
	if since[0].Data != "second" {
		t.Errorf("expected 'second', got %v", since[0].Data)
	}
}

func TestMemoryBusHistoryEmpty(t *testing.T) {
	bus := NewMemoryBus(0)
	events := bus.History(time.Time{})
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	// Channel should be closed after unsubscribe.
	_, ok := <-ch
	if ok {
		t.Error("expected channel to be closed")
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventVerifyStart, map[string]string{"design": "battery.design.toml"})

	if event.Type != EventVerifyStart {
		t.Errorf("expected EventVerifyStart, got %s", event.Type)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestRequirementEvent(t *testing.T) {
	event := RequirementEvent(EventRequirementStart, "cells_present", nil)
	if event.Requirement != "cells_present" || event.Type != EventRequirementStart {
		t.Errorf("got %+v", event)
	}
}

func TestMemoryBusHistoryLimit(t *testing.T) {
	bus := NewMemoryBus(3)
	for i := 0; i < 5; i++ {
		bus.Publish(NewEvent(EventRequirementResult, i))
	}

	history := bus.History(time.Time{})
	if len(history) != 3 {
		t.Fatalf("expected 3 events, got %d", len(history))
	}
	if history[0].Data != 2 || history[2].Data != 4 {
		t.Errorf("expected the newest events to be kept, got %v .. %v", history[0].Data, history[2].Data)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var p Publisher = &r
	p.Publish(NewEvent(EventVerifyStart, nil))
	p.Publish(NewEvent(EventVerifyEnd, nil))
	Discard.Publish(NewEvent(EventVerifyStart, nil))

	types := r.Types()
	if len(types) != 2 || types[0] != EventVerifyStart || types[1] != EventVerifyEnd {
		t.Errorf("types = %v", types)
	}
	if len(r.Events()) != 2 {
		t.Errorf("events = %d", len(r.Events()))
	}
}

func TestTee(t *testing.T) {
	var a, b Recorder
	pub := Tee(&a, Discard, &b)
	pub.Publish(NewEvent(EventVerifyStart, nil))
	pub.Publish(NewEvent(EventVerifyEnd, nil))

	for _, r := range []*Recorder{&a, &b} {
		types := r.Types()
		if len(types) != 2 || types[0] != EventVerifyStart || types[1] != EventVerifyEnd {
			t.Errorf("recorded %v", types)
		}
	}
}
