package notify

import "sync"

// Mailbox is an unbounded FIFO of notifications for one user.
//
// Any goroutine may Push. Consumers pair TryPop with Wait, which signals
// (coalesced, buffer of one) that something may be available.
type Mailbox struct {
	mu     sync.Mutex
	items  []Notification
	closed bool
	signal chan struct{}
}

func newMailbox() *Mailbox {
	return &Mailbox{
		items:  make([]Notification, 0, 8),
		signal: make(chan struct{}, 1),
	}
}

// Push appends n. It returns false once the mailbox is closed.
func (m *Mailbox) Push(n Notification) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	m.items = append(m.items, n)

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes and returns the oldest notification without blocking.
func (m *Mailbox) TryPop() (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) == 0 {
		return Notification{}, false
	}

	n := m.items[0]
	// Drop the reference so Data can be collected.
	m.items[0] = Notification{}
	if len(m.items) == 1 {
		m.items = m.items[:0]
	} else {
		m.items = m.items[1:]
	}
	return n, true
}

// Wait returns a channel that receives when items may be available and is
// closed when the mailbox is closed.
func (m *Mailbox) Wait() <-chan struct{} {
	return m.signal
}

// Len returns the number of pending notifications.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close rejects further pushes and wakes waiters. Pending items stay
// poppable.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.signal)
}
