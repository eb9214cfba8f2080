// Package live maintains push-updated local views of remote state: the
// session observer, the per-user assigned-task list, and the alliance
// aggregate. Views expose a channel of immutable snapshots; each delivery
// replaces all prior state. Deliveries are coalesced, so a slow consumer
// always sees the latest snapshot rather than a backlog.
package live

import "sync"

// mailbox is a single-value coalescing buffer bridged to a channel. put
// never blocks; the bridge goroutine delivers the most recent value to
// consumers of Updates.
type mailbox[T any] struct {
	mu     sync.Mutex
	val    T
	set    bool
	notify chan struct{}
	out    chan T
	done   chan struct{}
	once   sync.Once
}

func newMailbox[T any]() *mailbox[T] {
	m := &mailbox[T]{
		notify: make(chan struct{}, 1),
		out:    make(chan T),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// put stores v as the latest value and wakes the bridge. Later puts
// before the consumer reads overwrite earlier ones.
func (m *mailbox[T]) put(v T) {
	m.mu.Lock()
	m.val = v
	m.set = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) run() {
	defer close(m.out)
	for {
		select {
		case <-m.done:
			return
		case <-m.notify:
		}

		m.mu.Lock()
		v := m.val
		ok := m.set
		m.set = false
		m.mu.Unlock()
		if !ok {
			continue
		}

		select {
		case m.out <- v:
		case <-m.done:
			return
		}
	}
}

// close stops delivery and closes the Updates channel.
func (m *mailbox[T]) close() {
	m.once.Do(func() { close(m.done) })
}
