// Package tasks implements the task mutation gateway: create with
// defaults, partial updates with server-stamped timestamps, deletion, and
// the completion flow that rolls recurring tasks forward.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hmallik/taskally/internal/calculator"
	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
)

var (
	// ErrNoSubTasks is returned when a subtask operation targets a task
	// without a subtask list under the default key.
	ErrNoSubTasks = errors.New("subtask key not found")

	// ErrSubTaskIndex is returned when a subtask index is out of range.
	ErrSubTaskIndex = errors.New("subtask index out of range")
)

// CreateTaskInput carries the caller-supplied fields for a new task.
// Omitted optional fields receive defaults: priority Low, recurrence None,
// empty description, no due date, no category.
type CreateTaskInput struct {
	Name            string                      `json:"name"`
	Description     string                      `json:"description"`
	Priority        models.Priority             `json:"priority"`
	Recurrence      models.Recurrence           `json:"recurrence"`
	DueDate         *time.Time                  `json:"dueDate"`
	AssignedUserIDs []string                    `json:"assignedUserIds"`
	Category        string                      `json:"category"`
	SubTasks        map[string][]models.SubTask `json:"subTask"`
}

// SubTaskPatch is a partial update to one subtask.
type SubTaskPatch struct {
	Name      *string `json:"name"`
	Completed *bool   `json:"completed"`
}

// Gateway wraps task writes on the store. Callers are expected to have
// checked for a signed-in user; the gateway does not re-validate auth.
type Gateway struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewGateway creates a task mutation gateway.
func NewGateway(store storage.Store, logger *slog.Logger) *Gateway {
	return &Gateway{store: store, logger: logger, now: time.Now}
}

// CreateUserTask inserts a personal task assigned to the creating user.
func (g *Gateway) CreateUserTask(ctx context.Context, userID string, in CreateTaskInput) (*models.Task, error) {
	task := newTask(in)
	task.AssignedUserIDs = []string{userID}

	if err := g.createTask(ctx, task); err != nil {
		return nil, err
	}
	g.logger.Info("user task created", "task_id", task.ID, "user_id", userID)
	return task, nil
}

// CreateAllianceTask inserts a task scoped to the given alliance.
func (g *Gateway) CreateAllianceTask(ctx context.Context, allianceID string, in CreateTaskInput) (*models.Task, error) {
	task := newTask(in)
	task.AllianceID = allianceID
	task.AssignedUserIDs = in.AssignedUserIDs
	if task.AssignedUserIDs == nil {
		task.AssignedUserIDs = []string{}
	}

	if err := g.createTask(ctx, task); err != nil {
		return nil, err
	}
	g.logger.Info("alliance task created", "task_id", task.ID, "alliance_id", allianceID)
	return task, nil
}

func (g *Gateway) createTask(ctx context.Context, task *models.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if err := g.store.CreateTask(ctx, task); err != nil {
		g.logger.Error("task create failed", "error", err)
		return err
	}
	return nil
}

// newTask builds a task from input with field defaults applied.
func newTask(in CreateTaskInput) *models.Task {
	task := &models.Task{
		Name:        in.Name,
		Description: in.Description,
		Priority:    in.Priority,
		Recurrence:  in.Recurrence,
		DueDate:     in.DueDate,
		Category:    in.Category,
		SubTasks:    in.SubTasks,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityLow
	}
	if task.Recurrence == "" {
		task.Recurrence = models.RecurrenceNone
	}
	return task
}

// GetTask fetches a task by ID.
func (g *Gateway) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return g.store.GetTask(ctx, id)
}

// UpdateTask applies a partial field merge. The update timestamp is
// stamped by the store; any timestamp in the patch is ignored by
// construction (TaskPatch has no such field).
func (g *Gateway) UpdateTask(ctx context.Context, id string, patch *models.TaskPatch) error {
	if patch.Priority != nil && !patch.Priority.Valid() {
		return fmt.Errorf("%w: invalid priority %q", models.ErrInvalidField, *patch.Priority)
	}
	if patch.Recurrence != nil && !patch.Recurrence.Valid() {
		return fmt.Errorf("%w: invalid recurrence %q", models.ErrInvalidField, *patch.Recurrence)
	}
	if err := g.store.UpdateTask(ctx, id, patch); err != nil {
		g.logger.Error("task update failed", "task_id", id, "error", err)
		return err
	}
	g.logger.Info("task updated", "task_id", id)
	return nil
}

// RemoveTask deletes the task permanently. There is no soft delete and no
// cascade; live views react to the record's disappearance.
func (g *Gateway) RemoveTask(ctx context.Context, id string) error {
	if err := g.store.DeleteTask(ctx, id); err != nil {
		g.logger.Error("task delete failed", "task_id", id, "error", err)
		return err
	}
	g.logger.Info("task removed", "task_id", id)
	return nil
}

// CompleteTask marks the task completed as of now. A recurring task rolls
// forward instead: its due date advances from now per its recurrence and
// the completion timestamp is cleared, re-arming it for the next cycle.
// Returns the task as stored after the write.
func (g *Gateway) CompleteTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := g.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	patch := &models.TaskPatch{}
	if task.Recurrence != models.RecurrenceNone {
		next := calculator.NextDueDate(now, task.Recurrence)
		patch.DueDate = &next
		patch.ClearCompleted = true
	} else {
		patch.CompletedAt = &now
	}

	if err := g.store.UpdateTask(ctx, id, patch); err != nil {
		g.logger.Error("task completion failed", "task_id", id, "error", err)
		return nil, err
	}
	g.logger.Info("task completed", "task_id", id, "recurrence", task.Recurrence)
	return g.store.GetTask(ctx, id)
}

// UpdateSubTask applies a partial update to the subtask at the given index
// of the default list, via read-modify-write on the whole subtask map.
func (g *Gateway) UpdateSubTask(ctx context.Context, taskID string, index int, patch SubTaskPatch) error {
	task, err := g.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	list, ok := task.SubTasks[models.DefaultSubTaskKey]
	if !ok {
		return ErrNoSubTasks
	}
	if index < 0 || index >= len(list) {
		return fmt.Errorf("index %d of %d: %w", index, len(list), ErrSubTaskIndex)
	}

	updated := make([]models.SubTask, len(list))
	copy(updated, list)
	if patch.Name != nil {
		updated[index].Name = *patch.Name
	}
	if patch.Completed != nil {
		updated[index].Completed = *patch.Completed
	}

	subTasks := make(map[string][]models.SubTask, len(task.SubTasks))
	for k, v := range task.SubTasks {
		subTasks[k] = v
	}
	subTasks[models.DefaultSubTaskKey] = updated

	if err := g.store.UpdateTask(ctx, taskID, &models.TaskPatch{SubTasks: subTasks}); err != nil {
		g.logger.Error("subtask update failed", "task_id", taskID, "index", index, "error", err)
		return err
	}
	g.logger.Info("subtask updated", "task_id", taskID, "index", index)
	return nil
}
