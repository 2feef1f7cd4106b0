package events

import (
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
		return nil
	}
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventBranchSelected)

	bus.PublishBranchSelected("s1", "c1", "norte", "Sucursal Norte", "f-norte")

	ev, ok := receive(t, ch).(*BranchSelectedEvent)
	if !ok {
		t.Fatal("Expected BranchSelectedEvent")
	}
	if ev.BranchID != "norte" || ev.FolderID != "f-norte" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Timestamp().IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestEventBus_TypeFiltering(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	failures := bus.Subscribe(EventFetchFailed)
	all := bus.SubscribeAll()

	bus.PublishBrowserState("s1", "loaded", "f1", 0, 3, 1)
	bus.PublishFetchFailed("s1", "open_folder", "fetch", "boom")

	if ev := receive(t, failures); ev.Type() != EventFetchFailed {
		t.Errorf("expected fetch_failed, got %s", ev.Type())
	}
	select {
	case ev := <-failures:
		t.Errorf("unexpected extra event %s", ev.Type())
	default:
	}

	if ev := receive(t, all); ev.Type() != EventBrowserState {
		t.Errorf("expected browser_state first, got %s", ev.Type())
	}
	if ev := receive(t, all); ev.Type() != EventFetchFailed {
		t.Errorf("expected fetch_failed second, got %s", ev.Type())
	}
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	_ = bus.Subscribe(EventBrowserState)
	for i := 0; i < 3; i++ {
		bus.PublishBrowserState("s1", "loading", "", 0, 0, uint64(i))
	}

	if got := bus.GetDroppedEventCount(); got != 2 {
		t.Errorf("expected 2 dropped events, got %d", got)
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventDownload)
	bus.Unsubscribe(EventDownload, ch)

	if _, open := <-ch; open {
		t.Error("expected channel to be closed after unsubscribe")
	}

	// publishing after unsubscribe must not panic or count drops
	bus.PublishDownload("x1", "a.pdf", "/tmp/a.pdf", 10, nil)
	if got := bus.GetDroppedEventCount(); got != 0 {
		t.Errorf("expected no dropped events, got %d", got)
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.SubscribeAll()

	bus.Close()
	bus.Close()

	if _, open := <-ch; open {
		t.Error("expected channel closed")
	}
	if _, open := <-bus.Subscribe(EventDownload); open {
		t.Error("expected closed channel from closed bus")
	}
	bus.PublishDownload("x1", "a.pdf", "", 0, nil)
}
