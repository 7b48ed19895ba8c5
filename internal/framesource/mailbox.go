package framesource

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// Mailbox is a single-slot frame source. Publish overwrites an unread frame
// and releases it; Next blocks until a frame is present.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *pixbuf.Buffer
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewMailbox returns an empty, open mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish hands a frame to the mailbox, which takes ownership of it.
// Publishing to a closed mailbox releases the frame immediately.
func (m *Mailbox) Publish(frame *pixbuf.Buffer) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		frame.Release()
		return
	}
	old := m.frame
	m.frame = frame
	m.published.Add(1)
	m.cond.Signal()
	m.mu.Unlock()

	if old != nil {
		m.dropped.Add(1)
		framesDropped.Inc()
		old.Release()
	}
}

// Next waits for a frame. It returns ctx.Err() when ctx ends and ErrClosed
// once the mailbox is closed and drained.
func (m *Mailbox) Next(ctx context.Context) (*pixbuf.Buffer, error) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for m.frame == nil && !m.closed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.cond.Wait()
	}
	if m.frame == nil {
		return nil, ErrClosed
	}
	f := m.frame
	m.frame = nil
	return f, nil
}

// Close wakes all waiters. A frame still in the slot can be read once more.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
}

// Published returns how many frames were handed to the mailbox.
func (m *Mailbox) Published() uint64 { return m.published.Load() }

// Dropped returns how many frames were overwritten before being read.
func (m *Mailbox) Dropped() uint64 { return m.dropped.Load() }
