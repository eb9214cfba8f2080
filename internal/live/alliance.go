package live

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
	"github.com/hmallik/taskally/internal/tasks"
)

// ErrNoAlliance is returned by alliance mutations when the view has no
// target alliance or no current user to act as.
var ErrNoAlliance = errors.New("no alliance selected")

// AllianceState is one emission of the alliance aggregate. The three data
// views (record, tasks, members) update independently; every change
// produces a whole new snapshot that replaces prior state atomically.
type AllianceState struct {
	// Alliance is the alliance record, nil while absent or deleted.
	Alliance *models.Alliance

	// Tasks is the set of tasks scoped to the alliance.
	Tasks []models.Task

	// Members is the resolved member profiles, deduplicated by ID and
	// accumulated incrementally as each ID batch delivers.
	Members []models.User

	// IsMember reports whether the current user is in the member list.
	// Recomputed on every alliance update and every current-user change.
	IsMember bool
}

// AllianceView maintains the live aggregate for one alliance: the record
// itself, its task set, and its member profiles. Member profiles are
// resolved by fanning the member ID list out over batched watches of at
// most storage.MaxIDBatch ids each and merging the deliveries.
type AllianceView struct {
	store   storage.Store
	gateway *tasks.Gateway
	box     *mailbox[AllianceState]

	mu            sync.Mutex
	gen           int
	memberGen     int
	closed        bool
	allianceID    string
	currentUserID string
	memberIDs     []string
	state         AllianceState
	cancels       []storage.CancelFunc
	memberCancels []storage.CancelFunc
}

// NewAllianceView creates a view with no target alliance; it emits an
// empty state until SetAlliance is called.
func NewAllianceView(store storage.Store, gateway *tasks.Gateway) *AllianceView {
	v := &AllianceView{
		store:   store,
		gateway: gateway,
		box:     newMailbox[AllianceState](),
	}
	v.box.put(AllianceState{Tasks: []models.Task{}, Members: []models.User{}})
	return v
}

// Updates delivers aggregate snapshots. The channel closes after Close.
func (v *AllianceView) Updates() <-chan AllianceState {
	return v.box.out
}

// SetCurrentUser changes whose membership IsMember reflects.
func (v *AllianceView) SetCurrentUser(userID string) {
	v.mu.Lock()
	v.currentUserID = userID
	v.state.IsMember = v.state.Alliance.HasMember(userID)
	snapshot := v.snapshotLocked()
	closed := v.closed
	v.mu.Unlock()

	if !closed {
		v.box.put(snapshot)
	}
}

// SetAlliance re-targets the view at a different alliance, tearing down
// every subscription of the previous one first. An empty id clears all
// three data views.
func (v *AllianceView) SetAlliance(allianceID string) {
	v.mu.Lock()
	v.gen++
	v.memberGen++
	gen := v.gen
	cancels := append(v.cancels, v.memberCancels...)
	v.cancels = nil
	v.memberCancels = nil
	v.allianceID = allianceID
	v.memberIDs = nil
	v.state = AllianceState{Tasks: []models.Task{}, Members: []models.User{}}
	closed := v.closed
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if closed {
		return
	}
	v.box.put(snapshot)
	if allianceID == "" {
		return
	}

	allianceCh, cancelAlliance, err := v.store.WatchAlliance(context.Background(), allianceID)
	if err != nil {
		slog.Error("alliance watch failed", "alliance_id", allianceID, "error", err)
		return
	}
	taskCh, cancelTasks, err := v.store.WatchAllianceTasks(context.Background(), allianceID)
	if err != nil {
		slog.Error("alliance task watch failed", "alliance_id", allianceID, "error", err)
		cancelAlliance()
		return
	}

	v.mu.Lock()
	if v.closed || v.gen != gen {
		v.mu.Unlock()
		cancelAlliance()
		cancelTasks()
		return
	}
	v.cancels = append(v.cancels, cancelAlliance, cancelTasks)
	v.mu.Unlock()

	go func() {
		for alliance := range allianceCh {
			v.applyAlliance(gen, alliance)
		}
	}()
	go func() {
		for taskList := range taskCh {
			v.applyTasks(gen, taskList)
		}
	}()
}

// Close cancels every active subscription and closes Updates.
func (v *AllianceView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.gen++
	v.memberGen++
	cancels := append(v.cancels, v.memberCancels...)
	v.cancels = nil
	v.memberCancels = nil
	v.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	v.box.close()
}

// LeaveAlliance removes the current user from the alliance: both sides of
// the membership dual write, atomically.
func (v *AllianceView) LeaveAlliance(ctx context.Context) error {
	v.mu.Lock()
	allianceID := v.allianceID
	userID := v.currentUserID
	v.mu.Unlock()

	if allianceID == "" || userID == "" {
		return ErrNoAlliance
	}
	return v.store.LeaveAlliance(ctx, allianceID, userID)
}

// CreateTask inserts a new task scoped to this alliance, with field
// defaults applied by the gateway.
func (v *AllianceView) CreateTask(ctx context.Context, in tasks.CreateTaskInput) (*models.Task, error) {
	v.mu.Lock()
	allianceID := v.allianceID
	v.mu.Unlock()

	if allianceID == "" {
		return nil, ErrNoAlliance
	}
	return v.gateway.CreateAllianceTask(ctx, allianceID, in)
}

func (v *AllianceView) applyAlliance(gen int, alliance *models.Alliance) {
	v.mu.Lock()
	if v.closed || v.gen != gen {
		v.mu.Unlock()
		return
	}
	v.state.Alliance = alliance
	v.state.IsMember = alliance.HasMember(v.currentUserID)

	var memberIDs []string
	if alliance != nil {
		memberIDs = alliance.UserIDs
	}
	rebatch := !slices.Equal(memberIDs, v.memberIDs)
	var oldCancels []storage.CancelFunc
	var memberGen int
	if rebatch {
		v.memberIDs = slices.Clone(memberIDs)
		v.memberGen++
		memberGen = v.memberGen
		oldCancels = v.memberCancels
		v.memberCancels = nil
		v.state.Members = []models.User{}
	}
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	for _, cancel := range oldCancels {
		cancel()
	}
	v.box.put(snapshot)

	if rebatch {
		v.watchMembers(gen, memberGen, memberIDs)
	}
}

// watchMembers fans the member list out over batched profile watches.
func (v *AllianceView) watchMembers(gen, memberGen int, memberIDs []string) {
	for start := 0; start < len(memberIDs); start += storage.MaxIDBatch {
		batch := memberIDs[start:min(start+storage.MaxIDBatch, len(memberIDs))]

		ch, cancel, err := v.store.WatchUsersByIDs(context.Background(), batch)
		if err != nil {
			slog.Error("member batch watch failed", "batch_size", len(batch), "error", err)
			continue
		}

		v.mu.Lock()
		if v.closed || v.gen != gen || v.memberGen != memberGen {
			v.mu.Unlock()
			cancel()
			return
		}
		v.memberCancels = append(v.memberCancels, cancel)
		v.mu.Unlock()

		go func() {
			for users := range ch {
				v.mergeMembers(gen, memberGen, users)
			}
		}()
	}
}

// mergeMembers folds one batch delivery into the member list. A member
// already present from another batch is not duplicated.
func (v *AllianceView) mergeMembers(gen, memberGen int, users []models.User) {
	v.mu.Lock()
	if v.closed || v.gen != gen || v.memberGen != memberGen {
		v.mu.Unlock()
		return
	}
	merged := slices.Clone(v.state.Members)
	for _, user := range users {
		exists := slices.ContainsFunc(merged, func(m models.User) bool { return m.ID == user.ID })
		if !exists {
			merged = append(merged, user)
		}
	}
	v.state.Members = merged
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.box.put(snapshot)
}

func (v *AllianceView) applyTasks(gen int, taskList []models.Task) {
	v.mu.Lock()
	if v.closed || v.gen != gen {
		v.mu.Unlock()
		return
	}
	v.state.Tasks = taskList
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.box.put(snapshot)
}

// snapshotLocked copies the state so emissions are immutable. Callers
// hold v.mu.
func (v *AllianceView) snapshotLocked() AllianceState {
	return AllianceState{
		Alliance: v.state.Alliance,
		Tasks:    slices.Clone(v.state.Tasks),
		Members:  slices.Clone(v.state.Members),
		IsMember: v.state.IsMember,
	}
}
