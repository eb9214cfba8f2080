package tasks

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
	"github.com/hmallik/taskally/internal/storage/sqlite"
)

func newTestGateway(t *testing.T) (*Gateway, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewGateway(store, slog.Default()), store
}

func TestCreateUserTaskDefaults(t *testing.T) {
	gateway, _ := newTestGateway(t)

	task, err := gateway.CreateUserTask(context.Background(), "u1", CreateTaskInput{Name: "buy milk"})
	if err != nil {
		t.Fatalf("CreateUserTask failed: %v", err)
	}

	if task.Priority != models.PriorityLow {
		t.Errorf("priority = %q, want Low", task.Priority)
	}
	if task.Recurrence != models.RecurrenceNone {
		t.Errorf("recurrence = %q, want None", task.Recurrence)
	}
	if task.AllianceID != "" {
		t.Errorf("allianceId = %q, want empty for personal task", task.AllianceID)
	}
	if len(task.AssignedUserIDs) != 1 || task.AssignedUserIDs[0] != "u1" {
		t.Errorf("assignees = %v, want [u1]", task.AssignedUserIDs)
	}
	if task.DueDate != nil || task.CompletedAt != nil || task.Category != "" {
		t.Errorf("optional fields not defaulted: %+v", task)
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Error("expected stamped timestamps")
	}
}

func TestCreateAllianceTask(t *testing.T) {
	gateway, _ := newTestGateway(t)

	task, err := gateway.CreateAllianceTask(context.Background(), "a1", CreateTaskInput{
		Name:     "sweep hq",
		Priority: models.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("CreateAllianceTask failed: %v", err)
	}
	if task.AllianceID != "a1" {
		t.Errorf("allianceId = %q, want a1", task.AllianceID)
	}
	if task.AssignedUserIDs == nil || len(task.AssignedUserIDs) != 0 {
		t.Errorf("assignees = %v, want empty list", task.AssignedUserIDs)
	}
	if task.Priority != models.PriorityHigh {
		t.Errorf("priority = %q, want High", task.Priority)
	}
}

func TestCreateTaskRejectsInvalidInput(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := gateway.CreateUserTask(ctx, "u1", CreateTaskInput{}); !errors.Is(err, models.ErrInvalidField) {
		t.Errorf("missing name: expected ErrInvalidField, got %v", err)
	}
	if _, err := gateway.CreateUserTask(ctx, "u1", CreateTaskInput{
		Name:     "x",
		Priority: models.Priority("Urgent"),
	}); !errors.Is(err, models.ErrInvalidField) {
		t.Errorf("unknown priority: expected ErrInvalidField, got %v", err)
	}

	badRecurrence := models.Recurrence("Hourly")
	if err := gateway.UpdateTask(ctx, "any", &models.TaskPatch{Recurrence: &badRecurrence}); !errors.Is(err, models.ErrInvalidField) {
		t.Errorf("unknown recurrence patch: expected ErrInvalidField, got %v", err)
	}
}

func TestCompleteNonRecurringTask(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	created, err := gateway.CreateUserTask(ctx, "u1", CreateTaskInput{Name: "one-off"})
	if err != nil {
		t.Fatalf("CreateUserTask failed: %v", err)
	}

	at := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	gateway.now = func() time.Time { return at }

	done, err := gateway.CompleteTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if done.CompletedAt == nil || !done.CompletedAt.Equal(at) {
		t.Errorf("completedAt = %v, want %v", done.CompletedAt, at)
	}
	if done.DueDate != nil {
		t.Errorf("dueDate = %v, want nil", done.DueDate)
	}
}

func TestCompleteRecurringTaskRollsForward(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	due := time.Date(2024, time.May, 28, 9, 0, 0, 0, time.UTC)
	created, err := gateway.CreateUserTask(ctx, "u1", CreateTaskInput{
		Name:       "weekly review",
		Recurrence: models.RecurrenceWeekly,
		DueDate:    &due,
	})
	if err != nil {
		t.Fatalf("CreateUserTask failed: %v", err)
	}

	at := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	gateway.now = func() time.Time { return at }

	done, err := gateway.CompleteTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}

	// The next due date is computed from completion time, not the old due
	// date, and completion is cleared so the task re-arms.
	wantDue := at.AddDate(0, 0, 7)
	if done.DueDate == nil || !done.DueDate.Equal(wantDue) {
		t.Errorf("dueDate = %v, want %v", done.DueDate, wantDue)
	}
	if done.CompletedAt != nil {
		t.Errorf("completedAt = %v, want nil after recurring rollover", done.CompletedAt)
	}
}

func TestCompleteTaskNotFound(t *testing.T) {
	gateway, _ := newTestGateway(t)

	if _, err := gateway.CompleteTask(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSubTask(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	created, err := gateway.CreateUserTask(ctx, "u1", CreateTaskInput{
		Name: "plan trip",
		SubTasks: map[string][]models.SubTask{
			models.DefaultSubTaskKey: {
				{Name: "book flights"},
				{Name: "pack"},
			},
		},
	})
	if err != nil {
		t.Fatalf("CreateUserTask failed: %v", err)
	}

	completed := true
	if err := gateway.UpdateSubTask(ctx, created.ID, 1, SubTaskPatch{Completed: &completed}); err != nil {
		t.Fatalf("UpdateSubTask failed: %v", err)
	}

	got, _ := gateway.GetTask(ctx, created.ID)
	list := got.SubTasks[models.DefaultSubTaskKey]
	if !list[1].Completed {
		t.Error("subtask 1 not marked completed")
	}
	if list[0].Completed {
		t.Error("subtask 0 should be untouched")
	}

	if err := gateway.UpdateSubTask(ctx, created.ID, 5, SubTaskPatch{Completed: &completed}); !errors.Is(err, ErrSubTaskIndex) {
		t.Errorf("expected ErrSubTaskIndex, got %v", err)
	}
}

func TestUpdateSubTaskNoList(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	created, err := gateway.CreateUserTask(ctx, "u1", CreateTaskInput{Name: "bare"})
	if err != nil {
		t.Fatalf("CreateUserTask failed: %v", err)
	}

	name := "new"
	if err := gateway.UpdateSubTask(ctx, created.ID, 0, SubTaskPatch{Name: &name}); !errors.Is(err, ErrNoSubTasks) {
		t.Errorf("expected ErrNoSubTasks, got %v", err)
	}
}

func TestRemoveTask(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	created, err := gateway.CreateUserTask(ctx, "u1", CreateTaskInput{Name: "temp"})
	if err != nil {
		t.Fatalf("CreateUserTask failed: %v", err)
	}
	if err := gateway.RemoveTask(ctx, created.ID); err != nil {
		t.Fatalf("RemoveTask failed: %v", err)
	}
	if _, err := gateway.GetTask(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
