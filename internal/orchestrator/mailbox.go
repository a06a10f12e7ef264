package orchestrator

import (
	"context"
	"sync"
)

// mailbox is an unbounded FIFO shared by the feeder and the watcher. Pushes
// never block. It stops accepting events after a terminal event or close.
type mailbox struct {
	mu     sync.Mutex
	queue  []Event
	sealed bool
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// push enqueues e and reports whether it was accepted.
func (m *mailbox) push(e Event) bool {
	m.mu.Lock()
	if m.sealed || m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, e)
	if Terminal(e) {
		m.sealed = true
	}
	m.mu.Unlock()
	m.notify()
	return true
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.notify()
}

func (m *mailbox) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() ([]Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := m.queue
	m.queue = nil
	return batch, m.closed
}

// pump delivers queued events to out in order and closes out once the
// mailbox is closed and drained. When ctx is done, undelivered events are
// dropped and out is closed right away.
func (m *mailbox) pump(ctx context.Context, out chan<- Event) {
	defer close(out)
	for {
		batch, closed := m.take()
		for _, e := range batch {
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
		if closed {
			return
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-m.signal:
		case <-ctx.Done():
			return
		}
	}
}
