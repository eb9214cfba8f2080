package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidField marks validation failures on caller-supplied fields, so
// transport layers can distinguish bad input from internal faults.
var ErrInvalidField = errors.New("invalid field")

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Recurrence is the repeat schedule of a task.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "None"
	RecurrenceDaily   Recurrence = "Daily"
	RecurrenceWeekly  Recurrence = "Weekly"
	RecurrenceMonthly Recurrence = "Monthly"
)

// Valid reports whether r is one of the known recurrence tags.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// DefaultSubTaskKey is the grouping key used for subtasks created through
// the standard forms. Other keys are legal; this is just the common case.
const DefaultSubTaskKey = "defaultKey"

// SubTask is a named, independently completable item nested under a Task.
// It has no identity of its own; it is addressed by position within its
// list.
type SubTask struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// Task is a unit of work.
type Task struct {
	// ID is the unique identifier for the task (UUID format).
	ID string `json:"id"`

	// AllianceID scopes the task to an alliance. Empty means the task is a
	// personal task owned by its assignees.
	AllianceID string `json:"allianceId,omitempty"`

	// Name is the short display name of the task.
	Name string `json:"name"`

	// Description is optional free-form detail.
	Description string `json:"description,omitempty"`

	// Priority defaults to Low on creation.
	Priority Priority `json:"priority"`

	// Recurrence defaults to None on creation.
	Recurrence Recurrence `json:"recurrence"`

	// DueDate is the optional deadline. Nil means no deadline.
	DueDate *time.Time `json:"dueDate,omitempty"`

	// CompletedAt is set when the task is completed. Completing a recurring
	// task advances DueDate and clears CompletedAt so the task re-arms for
	// the next cycle.
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// CreatedAt and UpdatedAt are stamped by the storage layer. UpdatedAt
	// is refreshed on every write and never taken from the caller.
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// AssignedUserIDs lists the users this task is assigned to.
	AssignedUserIDs []string `json:"assignedUserIds"`

	// Category is an optional free-form label. Empty means uncategorized.
	Category string `json:"category,omitempty"`

	// SubTasks maps a grouping key to an ordered list of subtask records.
	// Nil when the task has no subtasks.
	SubTasks map[string][]SubTask `json:"subTask,omitempty"`
}

// Validate checks the task's enum fields and scope invariant.
func (t *Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: task name required", ErrInvalidField)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: invalid priority %q", ErrInvalidField, t.Priority)
	}
	if !t.Recurrence.Valid() {
		return fmt.Errorf("%w: invalid recurrence %q", ErrInvalidField, t.Recurrence)
	}
	return nil
}

// TaskPatch is a partial update to a task. Nil pointer fields are left
// unchanged. Nullable fields (due date, completion, category) have explicit
// clear flags because "absent" and "set to null" are different writes.
//
// There is deliberately no UpdatedAt field: the storage layer stamps a
// fresh update timestamp on every write.
type TaskPatch struct {
	Name            *string
	Description     *string
	Priority        *Priority
	Recurrence      *Recurrence
	DueDate         *time.Time
	ClearDueDate    bool
	CompletedAt     *time.Time
	ClearCompleted  bool
	Category        *string
	ClearCategory   bool
	AssignedUserIDs *[]string

	// SubTasks replaces the whole subtask map when non-nil.
	SubTasks map[string][]SubTask
}

// Empty reports whether the patch would change nothing.
func (p *TaskPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Priority == nil &&
		p.Recurrence == nil && p.DueDate == nil && !p.ClearDueDate &&
		p.CompletedAt == nil && !p.ClearCompleted && p.Category == nil &&
		!p.ClearCategory && p.AssignedUserIDs == nil && p.SubTasks == nil
}
