package overlay

import (
	"sync"
	"sync/atomic"
)

// AsyncPresenter delivers frames to a wrapped presenter on its own
// goroutine. Present never blocks on the wrapped presenter: a frame still
// pending when the next arrives is replaced and counted as dropped.
type AsyncPresenter struct {
	next Presenter

	mu      sync.Mutex
	cond    *sync.Cond
	pending *Frame
	closed  bool

	dropped   atomic.Uint64
	delivered atomic.Uint64
	done      chan struct{}
}

// NewAsyncPresenter starts the delivery goroutine. Call Close to stop it.
func NewAsyncPresenter(next Presenter) *AsyncPresenter {
	a := &AsyncPresenter{next: next, done: make(chan struct{})}
	a.cond = sync.NewCond(&a.mu)
	go a.loop()
	return a
}

// Present queues f, replacing any frame not yet delivered.
func (a *AsyncPresenter) Present(f Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.pending != nil {
		a.dropped.Add(1)
	}
	a.pending = &f
	a.cond.Signal()
}

func (a *AsyncPresenter) loop() {
	defer close(a.done)
	for {
		a.mu.Lock()
		for a.pending == nil && !a.closed {
			a.cond.Wait()
		}
		if a.pending == nil {
			a.mu.Unlock()
			return
		}
		f := *a.pending
		a.pending = nil
		a.mu.Unlock()

		a.next.Present(f)
		a.delivered.Add(1)
	}
}

// Close delivers any pending frame and stops the goroutine.
func (a *AsyncPresenter) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		a.cond.Broadcast()
	}
	a.mu.Unlock()
	<-a.done
}

// Dropped returns how many frames were replaced before delivery.
func (a *AsyncPresenter) Dropped() uint64 { return a.dropped.Load() }

// Delivered returns how many frames reached the wrapped presenter.
func (a *AsyncPresenter) Delivered() uint64 { return a.delivered.Load() }
