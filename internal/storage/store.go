// Package storage provides abstractions for persistent data storage with
// live change feeds.
package storage

import (
	"context"
	"errors"

	"github.com/hmallik/taskally/internal/models"
)

// MaxIDBatch is the largest number of IDs a single batched watch may
// cover. Larger member lists must be fanned out over multiple watches and
// merged by the caller (the alliance live view does exactly this).
const MaxIDBatch = 10

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBatchTooLarge is returned by batched watches given more than
	// MaxIDBatch ids.
	ErrBatchTooLarge = errors.New("id batch exceeds limit")
)

// CancelFunc stops a watch. It is idempotent; after it returns no further
// deliveries are made and the watch channel is closed.
type CancelFunc func()

// Store defines the persistence interface for users, alliances, and tasks.
// This abstraction allows swapping storage backends without changing the
// live-view or gateway layers.
//
// Watch methods deliver an initial snapshot first, then a fresh snapshot
// after every committed write that may affect the watched state.
// Deliveries are coalesced: a slow consumer sees the latest state rather
// than a backlog. A watched document that does not exist (yet) delivers
// nil rather than an error, so callers can observe its later creation.
type Store interface {
	// CreateUser persists a new user profile. ID and CreatedAt are
	// populated if unset.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user profile by ID. Returns ErrNotFound if
	// absent.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// UpdateUser replaces the mutable profile fields (name, email).
	// Returns ErrNotFound if the profile does not exist.
	UpdateUser(ctx context.Context, user *models.User) error

	// WatchUser follows a single user profile. Emits nil while the profile
	// document does not exist.
	WatchUser(ctx context.Context, id string) (<-chan *models.User, CancelFunc, error)

	// WatchUsersByIDs follows the profiles of at most MaxIDBatch users.
	// Missing profiles are omitted from the snapshot. Returns
	// ErrBatchTooLarge when given more ids.
	WatchUsersByIDs(ctx context.Context, ids []string) (<-chan []models.User, CancelFunc, error)

	// CreateAlliance persists a new alliance. Every ID already present in
	// UserIDs is recorded as a member, and the membership is mirrored onto
	// each member's alliance list in the same transaction.
	CreateAlliance(ctx context.Context, alliance *models.Alliance) error

	// GetAlliance retrieves an alliance by ID. Returns ErrNotFound if
	// absent.
	GetAlliance(ctx context.Context, id string) (*models.Alliance, error)

	// WatchAlliance follows a single alliance record. Emits nil while the
	// record does not exist.
	WatchAlliance(ctx context.Context, id string) (<-chan *models.Alliance, CancelFunc, error)

	// JoinAlliance adds the user to the alliance's member list and the
	// alliance to the user's alliance list in one atomic write. Adding an
	// existing member is a no-op.
	JoinAlliance(ctx context.Context, allianceID, userID string) error

	// LeaveAlliance removes both sides of the membership in one atomic
	// write. Removing a non-member is a no-op.
	LeaveAlliance(ctx context.Context, allianceID, userID string) error

	// CreateTask persists a new task. ID, CreatedAt, and UpdatedAt are
	// populated by the store.
	CreateTask(ctx context.Context, task *models.Task) error

	// GetTask retrieves a task by ID. Returns ErrNotFound if absent.
	GetTask(ctx context.Context, id string) (*models.Task, error)

	// UpdateTask applies a partial field merge and stamps a fresh update
	// timestamp. There is no read-before-write; the last write wins at the
	// field level. Returns ErrNotFound if the task does not exist.
	UpdateTask(ctx context.Context, id string, patch *models.TaskPatch) error

	// DeleteTask removes a task permanently. Returns ErrNotFound if the
	// task does not exist.
	DeleteTask(ctx context.Context, id string) error

	// WatchAssignedTasks follows the set of tasks whose assignee list
	// contains the given user.
	WatchAssignedTasks(ctx context.Context, userID string) (<-chan []models.Task, CancelFunc, error)

	// WatchAllianceTasks follows the set of tasks scoped to the given
	// alliance.
	WatchAllianceTasks(ctx context.Context, allianceID string) (<-chan []models.Task, CancelFunc, error)

	// Close releases any resources held by the store and cancels all
	// active watches.
	Close() error
}
