package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
)

// CreateTask persists a new task with its assignee rows.
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := s.now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	subtasks, err := encodeSubTasks(task.SubTasks)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, alliance_id, name, description, priority, recurrence,
			due_date, completed_at, created_at, updated_at, category, subtasks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.AllianceID, task.Name, task.Description,
		string(task.Priority), string(task.Recurrence),
		nullMillis(task.DueDate), nullMillis(task.CompletedAt),
		toMillis(task.CreatedAt), toMillis(task.UpdatedAt),
		task.Category, subtasks,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	for _, userID := range task.AssignedUserIDs {
		_, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO task_assignees (task_id, user_id) VALUES (?, ?)",
			task.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert assignee: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.hub.publish(change{colTasks, task.ID})
	return nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, alliance_id, name, description, priority, recurrence,
			due_date, completed_at, created_at, updated_at, category, subtasks
		FROM tasks WHERE id = ?`, id)

	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	task.AssignedUserIDs, err = s.taskAssignees(ctx, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask applies a partial field merge. updated_at is always stamped
// from the store's clock, never from the patch.
func (s *Store) UpdateTask(ctx context.Context, id string, patch *models.TaskPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{toMillis(s.now().UTC())}

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	if patch.Recurrence != nil {
		sets = append(sets, "recurrence = ?")
		args = append(args, string(*patch.Recurrence))
	}
	switch {
	case patch.ClearDueDate:
		sets = append(sets, "due_date = NULL")
	case patch.DueDate != nil:
		sets = append(sets, "due_date = ?")
		args = append(args, toMillis(*patch.DueDate))
	}
	switch {
	case patch.ClearCompleted:
		sets = append(sets, "completed_at = NULL")
	case patch.CompletedAt != nil:
		sets = append(sets, "completed_at = ?")
		args = append(args, toMillis(*patch.CompletedAt))
	}
	switch {
	case patch.ClearCategory:
		sets = append(sets, "category = ''")
	case patch.Category != nil:
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.SubTasks != nil {
		subtasks, err := encodeSubTasks(patch.SubTasks)
		if err != nil {
			return err
		}
		sets = append(sets, "subtasks = ?")
		args = append(args, subtasks)
	}
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}

	if patch.AssignedUserIDs != nil {
		_, err = tx.ExecContext(ctx, "DELETE FROM task_assignees WHERE task_id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to clear assignees: %w", err)
		}
		for _, userID := range *patch.AssignedUserIDs {
			_, err = tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO task_assignees (task_id, user_id) VALUES (?, ?)",
				id, userID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert assignee: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.hub.publish(change{colTasks, id})
	return nil
}

// DeleteTask removes a task permanently. Assignee rows cascade.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}

	s.hub.publish(change{colTasks, id})
	return nil
}

// WatchAssignedTasks follows the tasks assigned to a user.
func (s *Store) WatchAssignedTasks(ctx context.Context, userID string) (<-chan []models.Task, storage.CancelFunc, error) {
	return watch(ctx, s, collectionInterest(colTasks), func(ctx context.Context) ([]models.Task, error) {
		return s.loadTasks(ctx, `
			SELECT t.id, t.alliance_id, t.name, t.description, t.priority, t.recurrence,
				t.due_date, t.completed_at, t.created_at, t.updated_at, t.category, t.subtasks
			FROM tasks t
			JOIN task_assignees a ON a.task_id = t.id
			WHERE a.user_id = ?
			ORDER BY t.created_at`, userID)
	})
}

// WatchAllianceTasks follows the tasks scoped to an alliance.
func (s *Store) WatchAllianceTasks(ctx context.Context, allianceID string) (<-chan []models.Task, storage.CancelFunc, error) {
	return watch(ctx, s, collectionInterest(colTasks), func(ctx context.Context) ([]models.Task, error) {
		return s.loadTasks(ctx, `
			SELECT id, alliance_id, name, description, priority, recurrence,
				due_date, completed_at, created_at, updated_at, category, subtasks
			FROM tasks
			WHERE alliance_id = ?
			ORDER BY created_at`, allianceID)
	})
}

func (s *Store) loadTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	for i := range tasks {
		tasks[i].AssignedUserIDs, err = s.taskAssignees(ctx, tasks[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func (s *Store) taskAssignees(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM task_assignees WHERE task_id = ? ORDER BY rowid", taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignees: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignees: %w", err)
	}
	return ids, nil
}

// scanTask reads one task row. The scan argument abstracts over sql.Row
// and sql.Rows.
func scanTask(scan func(...any) error) (*models.Task, error) {
	task := &models.Task{}
	var priority, recurrence string
	var dueDate, completedAt sql.NullInt64
	var createdAt, updatedAt int64
	var subtasks sql.NullString

	err := scan(&task.ID, &task.AllianceID, &task.Name, &task.Description,
		&priority, &recurrence, &dueDate, &completedAt,
		&createdAt, &updatedAt, &task.Category, &subtasks)
	if err != nil {
		return nil, err
	}

	task.Priority = models.Priority(priority)
	task.Recurrence = models.Recurrence(recurrence)
	task.DueDate = millisPtr(dueDate)
	task.CompletedAt = millisPtr(completedAt)
	task.CreatedAt = fromMillis(createdAt)
	task.UpdatedAt = fromMillis(updatedAt)

	if subtasks.Valid && subtasks.String != "" {
		if err := json.Unmarshal([]byte(subtasks.String), &task.SubTasks); err != nil {
			return nil, fmt.Errorf("failed to decode subtasks: %w", err)
		}
	}
	return task, nil
}

// encodeSubTasks serializes the subtask map for the JSON column. A nil map
// stores NULL.
func encodeSubTasks(m map[string][]models.SubTask) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode subtasks: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}
