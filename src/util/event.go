package util

import (
	"context"
	"sync"
)

// The number of events a listener may lag behind before events are dropped
// for it.
const listenerBuffer = 16

// An Emitter broadcasts events to an arbitrary number of listeners.
//
// The zero value is ready for use.
type Emitter struct {
	lock      sync.Mutex
	listeners map[chan interface{}]struct{}
}

// Emit sends the event to all current listeners.
//
// A listener that is not keeping up has the event dropped rather than
// blocking the emitting goroutine.
func (emitter *Emitter) Emit(event interface{}) {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()
	for listener := range emitter.listeners {
		select {
		case listener <- event:
		default:
		}
	}
}

// Listen registers a new listener channel. The listener is removed and its
// channel closed when the context is canceled.
func (emitter *Emitter) Listen(ctx context.Context) <-chan interface{} {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()
	if emitter.listeners == nil {
		emitter.listeners = map[chan interface{}]struct{}{}
	}

	ch := make(chan interface{}, listenerBuffer)
	emitter.listeners[ch] = struct{}{}
	go func() {
		<-ctx.Done()
		emitter.lock.Lock()
		defer emitter.lock.Unlock()
		delete(emitter.listeners, ch)
		close(ch)
	}()
	return ch
}
