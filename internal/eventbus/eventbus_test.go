package eventbus

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Publish("hello")
	select {
	case e := <-ch:
		if e != "hello" {
			t.Fatalf("unexpected event: %v", e)
		}
	default:
		t.Fatal("event not delivered")
	}
	bus.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestBusNonBlockingPublish(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	for i := 0; i < subBuffer+5; i++ {
		bus.Publish(i)
	}
	if len(ch) != subBuffer {
		t.Fatalf("expected full buffer (%d), got %d", subBuffer, len(ch))
	}
}

func TestBusClose(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	// publishing after close must not panic
	bus.Publish("late")
	bus.Close()
}
