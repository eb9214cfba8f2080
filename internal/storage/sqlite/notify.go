package sqlite

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hmallik/taskally/internal/storage"
)

// Collections published on the change hub.
const (
	colUsers     = "users"
	colAlliances = "alliances"
	colTasks     = "tasks"
)

// change identifies a committed write to one document.
type change struct {
	collection string
	id         string
}

// subscriber is one watch's registration with the hub. dirty has capacity
// one: any number of changes between re-reads collapse into a single
// wakeup, so watchers always load the latest state and never queue a
// backlog.
type subscriber struct {
	interested func(change) bool
	dirty      chan struct{}
}

// hub fans committed writes out to subscribed watches. Publishing never
// blocks.
type hub struct {
	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	shutdown chan struct{}
	closed   bool
}

func newHub() *hub {
	return &hub{
		subs:     make(map[*subscriber]struct{}),
		shutdown: make(chan struct{}),
	}
}

func (h *hub) subscribe(interested func(change) bool) *subscriber {
	sub := &subscriber{
		interested: interested,
		dirty:      make(chan struct{}, 1),
	}
	h.mu.Lock()
	if !h.closed {
		h.subs[sub] = struct{}{}
	}
	h.mu.Unlock()
	return sub
}

func (h *hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// publish wakes every subscriber interested in at least one of the
// changes. Called after the transaction that produced them commits.
func (h *hub) publish(changes ...change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		for _, c := range changes {
			if sub.interested(c) {
				select {
				case sub.dirty <- struct{}{}:
				default:
				}
				break
			}
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.subs = make(map[*subscriber]struct{})
	close(h.shutdown)
}

// watch wires a load function to the hub: it delivers the current state
// immediately, then re-loads and delivers after every interesting change.
// Errors on the initial load fail the watch; errors on later loads are
// logged and the previous state stands until the next change.
func watch[T any](ctx context.Context, s *Store, interested func(change) bool, load func(context.Context) (T, error)) (<-chan T, storage.CancelFunc, error) {
	first, err := load(ctx)
	if err != nil {
		return nil, nil, err
	}

	sub := s.hub.subscribe(interested)
	out := make(chan T, 1)
	done := make(chan struct{})

	go func() {
		defer close(out)
		// Covers exits driven by ctx or store shutdown, where the caller
		// may never invoke the CancelFunc. Deleting twice is harmless.
		defer s.hub.unsubscribe(sub)

		select {
		case out <- first:
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-s.hub.shutdown:
			return
		}

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-s.hub.shutdown:
				return
			case <-sub.dirty:
				v, err := load(ctx)
				if err != nil {
					slog.Warn("watch reload failed", "error", err)
					continue
				}
				select {
				case out <- v:
				case <-done:
					return
				case <-ctx.Done():
					return
				case <-s.hub.shutdown:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.hub.unsubscribe(sub)
			close(done)
		})
	}
	return out, cancel, nil
}

// docInterest matches changes to one document in one collection.
func docInterest(collection, id string) func(change) bool {
	return func(c change) bool {
		return c.collection == collection && c.id == id
	}
}

// collectionInterest matches any change in a collection. Used by the set
// watches (assigned tasks, alliance tasks), where membership in the result
// set can change on any write.
func collectionInterest(collection string) func(change) bool {
	return func(c change) bool {
		return c.collection == collection
	}
}
