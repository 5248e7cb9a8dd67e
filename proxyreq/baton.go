package proxyreq

import (
	"context"
	"sync"
)

// Baton is a one-shot synchronization primitive, signalled exactly once.
// It plays the role folly::fibers::Baton plays for create_recording_notify:
// a caller can block until every traversal enqueued against a recording
// context has finished, without polling a reference count itself.
type Baton struct {
	once sync.Once
	done chan struct{}
}

// NewBaton returns a Baton in its unsignalled state.
func NewBaton() *Baton {
	return &Baton{done: make(chan struct{})}
}

// Signal wakes any waiter. Safe to call more than once; only the first
// call has an effect.
func (b *Baton) Signal() {
	b.once.Do(func() { close(b.done) })
}

// Wait blocks until Signal has been called.
func (b *Baton) Wait() {
	<-b.done
}

// WaitContext blocks until Signal has been called or ctx is done,
// whichever happens first.
func (b *Baton) WaitContext(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
