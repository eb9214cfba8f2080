package live

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hmallik/taskally/internal/auth"
	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
	"github.com/hmallik/taskally/internal/storage/sqlite"
	"github.com/hmallik/taskally/internal/tasks"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// waitFor reads snapshots until one satisfies the predicate. Deliveries
// are coalesced, so intermediate states may legitimately be skipped.
func waitFor[T any](t *testing.T, ch <-chan T, want func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	var last T
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed waiting for state, last seen: %+v", last)
			}
			last = v
			if want(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state, last seen: %+v", last)
		}
	}
}

func TestSessionViewSignedOut(t *testing.T) {
	store := newTestStore(t)
	provider := auth.NewPasswordProvider(store)

	view := NewSessionView(provider, store)
	defer view.Close()

	waitFor(t, view.Updates(), func(s SessionSnapshot) bool {
		return s.State == SessionSignedOut
	})
}

func TestSessionViewMergesProfile(t *testing.T) {
	store := newTestStore(t)
	provider := auth.NewPasswordProvider(store)
	ctx := context.Background()

	view := NewSessionView(provider, store)
	defer view.Close()

	user, err := auth.RegisterWithProfile(ctx, provider, store, "Hana", "hana@example.com", "password123")
	if err != nil {
		t.Fatalf("RegisterWithProfile failed: %v", err)
	}

	got := waitFor(t, view.Updates(), func(s SessionSnapshot) bool {
		return s.State == SessionSignedIn && s.User != nil && s.User.Name == "Hana"
	})
	if got.User.ID != user.ID {
		t.Errorf("user id = %q, want %q", got.User.ID, user.ID)
	}
	if got.User.Email != "hana@example.com" {
		t.Errorf("email = %q, want hana@example.com", got.User.Email)
	}
}

func TestSessionViewSignedInWithoutProfile(t *testing.T) {
	store := newTestStore(t)
	provider := auth.NewPasswordProvider(store)
	ctx := context.Background()

	view := NewSessionView(provider, store)
	defer view.Close()

	// Sign up without writing a profile document: the session is real, so
	// the view must report SignedIn carrying identity fields only.
	session, err := provider.SignUp(ctx, "ghost@example.com", "password123", "Ghost")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	got := waitFor(t, view.Updates(), func(s SessionSnapshot) bool {
		return s.State == SessionSignedIn && s.User != nil
	})
	if got.User.ID != session.UserID {
		t.Errorf("user id = %q, want %q", got.User.ID, session.UserID)
	}
	if got.User.Email != "ghost@example.com" || got.User.Name != "Ghost" {
		t.Errorf("identity fields = %q/%q, want ghost@example.com/Ghost", got.User.Email, got.User.Name)
	}
	if !got.User.CreatedAt.IsZero() || got.User.AllianceIDs != nil {
		t.Errorf("expected no profile fields, got %+v", got.User)
	}
}

func TestSessionViewFollowsProfileUpdates(t *testing.T) {
	store := newTestStore(t)
	provider := auth.NewPasswordProvider(store)
	ctx := context.Background()

	view := NewSessionView(provider, store)
	defer view.Close()

	user, err := auth.RegisterWithProfile(ctx, provider, store, "Before", "p@example.com", "password123")
	if err != nil {
		t.Fatalf("RegisterWithProfile failed: %v", err)
	}
	waitFor(t, view.Updates(), func(s SessionSnapshot) bool {
		return s.State == SessionSignedIn && s.User != nil && s.User.Name == "Before"
	})

	renamed := *user
	renamed.Name = "After"
	if err := store.UpdateUser(ctx, &renamed); err != nil {
		t.Fatalf("failed to update profile: %v", err)
	}

	// The rename must arrive as another SignedIn emission; a view that
	// drops back to Loading on profile changes is broken.
	waitFor(t, view.Updates(), func(s SessionSnapshot) bool {
		if s.State != SessionSignedIn {
			t.Fatalf("state = %q after profile update, want SignedIn", s.State)
		}
		return s.User != nil && s.User.Name == "After"
	})
}

func TestSessionViewSignOut(t *testing.T) {
	store := newTestStore(t)
	provider := auth.NewPasswordProvider(store)
	ctx := context.Background()

	view := NewSessionView(provider, store)
	defer view.Close()

	if _, err := auth.RegisterWithProfile(ctx, provider, store, "X", "x@example.com", "password123"); err != nil {
		t.Fatalf("RegisterWithProfile failed: %v", err)
	}
	waitFor(t, view.Updates(), func(s SessionSnapshot) bool {
		return s.State == SessionSignedIn
	})

	if err := provider.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	got := waitFor(t, view.Updates(), func(s SessionSnapshot) bool {
		return s.State == SessionSignedOut
	})
	if got.User != nil {
		t.Errorf("user = %+v after sign-out, want nil", got.User)
	}
}

func TestSessionViewCloseStopsUpdates(t *testing.T) {
	store := newTestStore(t)
	provider := auth.NewPasswordProvider(store)

	view := NewSessionView(provider, store)
	view.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-view.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("updates channel not closed after Close")
		}
	}
}

func TestUserTaskViewFollowsUser(t *testing.T) {
	store := newTestStore(t)
	gateway := tasks.NewGateway(store, slog.Default())
	ctx := context.Background()

	if _, err := gateway.CreateUserTask(ctx, "u1", tasks.CreateTaskInput{Name: "for u1"}); err != nil {
		t.Fatalf("CreateUserTask failed: %v", err)
	}
	if _, err := gateway.CreateUserTask(ctx, "u2", tasks.CreateTaskInput{Name: "for u2"}); err != nil {
		t.Fatalf("CreateUserTask failed: %v", err)
	}

	view := NewUserTaskView(store)
	defer view.Close()

	view.SetUser("u1")
	waitFor(t, view.Updates(), func(list []models.Task) bool {
		return len(list) == 1 && list[0].Name == "for u1"
	})

	view.SetUser("u2")
	waitFor(t, view.Updates(), func(list []models.Task) bool {
		return len(list) == 1 && list[0].Name == "for u2"
	})

	view.SetUser("")
	waitFor(t, view.Updates(), func(list []models.Task) bool {
		return len(list) == 0
	})
}

func TestUserTaskViewSeesNewAssignments(t *testing.T) {
	store := newTestStore(t)
	gateway := tasks.NewGateway(store, slog.Default())
	ctx := context.Background()

	view := NewUserTaskView(store)
	defer view.Close()
	view.SetUser("u1")

	waitFor(t, view.Updates(), func(list []models.Task) bool { return len(list) == 0 })

	if _, err := gateway.CreateUserTask(ctx, "u1", tasks.CreateTaskInput{Name: "fresh"}); err != nil {
		t.Fatalf("CreateUserTask failed: %v", err)
	}
	waitFor(t, view.Updates(), func(list []models.Task) bool {
		return len(list) == 1 && list[0].Name == "fresh"
	})
}

// countingStore records how many batched profile watches were opened.
type countingStore struct {
	storage.Store
	batches atomic.Int32
}

func (c *countingStore) WatchUsersByIDs(ctx context.Context, ids []string) (<-chan []models.User, storage.CancelFunc, error) {
	c.batches.Add(1)
	return c.Store.WatchUsersByIDs(ctx, ids)
}

func TestAllianceViewBatchesMemberResolution(t *testing.T) {
	store := newTestStore(t)
	counting := &countingStore{Store: store}
	gateway := tasks.NewGateway(store, slog.Default())
	ctx := context.Background()

	memberIDs := make([]string, 15)
	for i := range memberIDs {
		id := fmt.Sprintf("u%02d", i)
		memberIDs[i] = id
		user := &models.User{ID: id, Name: "member " + id, Email: id + "@example.com"}
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	alliance := &models.Alliance{Name: "big crew", UserIDs: memberIDs}
	if err := store.CreateAlliance(ctx, alliance); err != nil {
		t.Fatalf("CreateAlliance failed: %v", err)
	}

	view := NewAllianceView(counting, gateway)
	defer view.Close()
	view.SetAlliance(alliance.ID)

	got := waitFor(t, view.Updates(), func(s AllianceState) bool {
		return len(s.Members) == 15
	})

	// 15 ids must split into a batch of 10 and a batch of 5.
	if n := counting.batches.Load(); n != 2 {
		t.Errorf("opened %d batched watches, want 2", n)
	}
	seen := make(map[string]bool, len(got.Members))
	for _, m := range got.Members {
		if seen[m.ID] {
			t.Errorf("member %q appears more than once", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestAllianceViewIsMember(t *testing.T) {
	store := newTestStore(t)
	gateway := tasks.NewGateway(store, slog.Default())
	ctx := context.Background()

	if err := store.CreateUser(ctx, &models.User{ID: "u1", Name: "n1", Email: "n1@example.com"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	alliance := &models.Alliance{Name: "duo", UserIDs: []string{"u1"}}
	if err := store.CreateAlliance(ctx, alliance); err != nil {
		t.Fatalf("CreateAlliance failed: %v", err)
	}

	view := NewAllianceView(store, gateway)
	defer view.Close()
	view.SetCurrentUser("u1")
	view.SetAlliance(alliance.ID)

	waitFor(t, view.Updates(), func(s AllianceState) bool {
		return s.Alliance != nil && s.IsMember
	})

	view.SetCurrentUser("outsider")
	waitFor(t, view.Updates(), func(s AllianceState) bool {
		return s.Alliance != nil && !s.IsMember
	})
}

func TestAllianceViewMembershipChanges(t *testing.T) {
	store := newTestStore(t)
	gateway := tasks.NewGateway(store, slog.Default())
	ctx := context.Background()

	for _, id := range []string{"u1", "u2"} {
		if err := store.CreateUser(ctx, &models.User{ID: id, Name: id, Email: id + "@example.com"}); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	alliance := &models.Alliance{Name: "growing", UserIDs: []string{"u1"}}
	if err := store.CreateAlliance(ctx, alliance); err != nil {
		t.Fatalf("CreateAlliance failed: %v", err)
	}

	view := NewAllianceView(store, gateway)
	defer view.Close()
	view.SetAlliance(alliance.ID)

	waitFor(t, view.Updates(), func(s AllianceState) bool {
		return len(s.Members) == 1
	})

	if err := store.JoinAlliance(ctx, alliance.ID, "u2"); err != nil {
		t.Fatalf("JoinAlliance failed: %v", err)
	}
	waitFor(t, view.Updates(), func(s AllianceState) bool {
		return len(s.Members) == 2
	})
}

func TestAllianceViewLeave(t *testing.T) {
	store := newTestStore(t)
	gateway := tasks.NewGateway(store, slog.Default())
	ctx := context.Background()

	if err := store.CreateUser(ctx, &models.User{ID: "u1", Name: "n1", Email: "n1@example.com"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	alliance := &models.Alliance{Name: "brief", UserIDs: []string{"u1"}}
	if err := store.CreateAlliance(ctx, alliance); err != nil {
		t.Fatalf("CreateAlliance failed: %v", err)
	}

	view := NewAllianceView(store, gateway)
	defer view.Close()
	view.SetCurrentUser("u1")
	view.SetAlliance(alliance.ID)

	waitFor(t, view.Updates(), func(s AllianceState) bool { return s.IsMember })

	if err := view.LeaveAlliance(ctx); err != nil {
		t.Fatalf("LeaveAlliance failed: %v", err)
	}
	waitFor(t, view.Updates(), func(s AllianceState) bool {
		return s.Alliance != nil && !s.IsMember && len(s.Members) == 0
	})
}

func TestAllianceViewTasksAndClear(t *testing.T) {
	store := newTestStore(t)
	gateway := tasks.NewGateway(store, slog.Default())
	ctx := context.Background()

	if err := store.CreateUser(ctx, &models.User{ID: "u1", Name: "n1", Email: "n1@example.com"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	alliance := &models.Alliance{Name: "ops", UserIDs: []string{"u1"}}
	if err := store.CreateAlliance(ctx, alliance); err != nil {
		t.Fatalf("CreateAlliance failed: %v", err)
	}

	view := NewAllianceView(store, gateway)
	defer view.Close()
	view.SetAlliance(alliance.ID)

	if _, err := view.CreateTask(ctx, tasks.CreateTaskInput{Name: "shared chore"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	waitFor(t, view.Updates(), func(s AllianceState) bool {
		return len(s.Tasks) == 1 && s.Tasks[0].Name == "shared chore"
	})

	view.SetAlliance("")
	waitFor(t, view.Updates(), func(s AllianceState) bool {
		return s.Alliance == nil && len(s.Tasks) == 0 && len(s.Members) == 0
	})
}

func TestAllianceViewNoTargetErrors(t *testing.T) {
	store := newTestStore(t)
	gateway := tasks.NewGateway(store, slog.Default())

	view := NewAllianceView(store, gateway)
	defer view.Close()

	if _, err := view.CreateTask(context.Background(), tasks.CreateTaskInput{Name: "x"}); err != ErrNoAlliance {
		t.Errorf("CreateTask error = %v, want ErrNoAlliance", err)
	}
	if err := view.LeaveAlliance(context.Background()); err != ErrNoAlliance {
		t.Errorf("LeaveAlliance error = %v, want ErrNoAlliance", err)
	}
}
