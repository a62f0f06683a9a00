package util

import (
	"context"
	"testing"
	"time"
)

func TestEmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var em Emitter

	l := em.Listen(ctx)
	em.Emit("test")

	select {
	case msg := <-l:
		if msg != "test" {
			t.Errorf("Event malformed: %v", msg)
		}
	case <-time.After(time.Millisecond * 100):
		t.Error("Event was not emitted")
	}
}

func TestMultipleListeners(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var em Emitter

	a := em.Listen(ctx)
	b := em.Listen(ctx)
	em.Emit(42)

	for _, l := range []<-chan interface{}{a, b} {
		select {
		case msg := <-l:
			if msg != 42 {
				t.Errorf("Event malformed: %v", msg)
			}
		case <-time.After(time.Millisecond * 100):
			t.Error("Event was not emitted")
		}
	}
}

func TestUnlistenOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var em Emitter

	l := em.Listen(ctx)
	cancel()

	deadline := time.After(time.Millisecond * 100)
	for {
		select {
		case _, ok := <-l:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Listener channel was not closed")
		}
	}
}
