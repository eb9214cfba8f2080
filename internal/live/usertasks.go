package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
)

// UserTaskView maintains the live list of tasks assigned to one user. The
// watched user can change over the view's lifetime; each change cancels
// the previous subscription before establishing the next, and clearing the
// user empties the list rather than leaving stale tasks.
type UserTaskView struct {
	store storage.Store
	box   *mailbox[[]models.Task]

	mu     sync.Mutex
	gen    int
	closed bool
	cancel storage.CancelFunc
}

// NewUserTaskView creates a view with no user; it emits an empty list
// until SetUser is called.
func NewUserTaskView(store storage.Store) *UserTaskView {
	v := &UserTaskView{
		store: store,
		box:   newMailbox[[]models.Task](),
	}
	v.box.put([]models.Task{})
	return v
}

// Updates delivers task-list snapshots. The channel closes after Close.
func (v *UserTaskView) Updates() <-chan []models.Task {
	return v.box.out
}

// SetUser re-targets the view at a different user. An empty id clears the
// list to empty.
func (v *UserTaskView) SetUser(userID string) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()

	if userID == "" {
		v.box.put([]models.Task{})
		return
	}

	ch, cancel, err := v.store.WatchAssignedTasks(context.Background(), userID)
	if err != nil {
		slog.Error("assigned-task watch failed", "user_id", userID, "error", err)
		v.box.put([]models.Task{})
		return
	}

	v.mu.Lock()
	if v.closed || v.gen != gen {
		v.mu.Unlock()
		cancel()
		return
	}
	v.cancel = cancel
	v.mu.Unlock()

	go func() {
		for tasks := range ch {
			v.mu.Lock()
			stale := v.closed || v.gen != gen
			v.mu.Unlock()
			if stale {
				return
			}
			v.box.put(tasks)
		}
	}()
}

// Close cancels the active subscription and closes Updates.
func (v *UserTaskView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.gen++
	cancel := v.cancel
	v.cancel = nil
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	v.box.close()
}
