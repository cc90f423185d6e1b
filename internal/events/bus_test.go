package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New()

	got := make(chan ProcLineEvent, 1)
	unsub := bus.Subscribe(func(e ProcLineEvent) {
		got <- e
	})
	defer unsub()

	bus.Publish(ProcLineEvent{Name: "worker", Source: "stdout", Text: "hi"})

	select {
	case e := <-got:
		if e.Name != "worker" || e.Text != "hi" {
			t.Errorf("received %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestSubscribeTypeSelectivity(t *testing.T) {
	bus := New()

	lines := make(chan ProcLineEvent, 4)
	exits := make(chan ProcExitedEvent, 4)
	defer bus.Subscribe(func(e ProcLineEvent) { lines <- e })()
	defer bus.Subscribe(func(e ProcExitedEvent) { exits <- e })()

	bus.Publish(ProcExitedEvent{Name: "worker", ExitCode: 2})

	select {
	case e := <-exits:
		if e.ExitCode != 2 {
			t.Errorf("exit code = %d, want 2", e.ExitCode)
		}
	case <-time.After(time.Second):
		t.Fatal("exit event never delivered")
	}

	select {
	case e := <-lines:
		t.Errorf("line subscriber received %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := New()

	got := make(chan ProcStartedEvent, 1)
	unsub := bus.Subscribe(func(e ProcStartedEvent) { got <- e })
	unsub()

	bus.Publish(ProcStartedEvent{Name: "worker"})

	select {
	case e := <-got:
		t.Errorf("unsubscribed handler received %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeUnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(s string) {})
	unsub() // no-op, must not panic
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()

	ch := make(chan any, 1)
	unsub := SubscribeToChannel[ProcLineEvent](bus, ch)
	defer unsub()

	bus.Publish(ProcLineEvent{Name: "worker", Text: "line"})

	select {
	case v := <-ch:
		if e, ok := v.(ProcLineEvent); !ok || e.Text != "line" {
			t.Errorf("channel received %#v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("channel never received the event")
	}
}
