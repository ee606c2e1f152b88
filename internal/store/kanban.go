package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/majordomo/pkg/models"
)

// CreateKanbanTask inserts a new task at the end of its column: position is
// one past the current maximum (0 for an empty column).
func (db *DB) CreateKanbanTask(t *models.KanbanTask) error {
	blockedBy, err := json.Marshal(t.BlockedBy)
	if err != nil {
		return fmt.Errorf("marshal blocked_by: %w", err)
	}
	if t.BlockedBy == nil {
		blockedBy = []byte("[]")
	}

	return db.Transaction(func(tx *sql.Tx) error {
		var maxPos sql.NullInt64
		row := tx.QueryRow(`
			SELECT MAX(position) FROM kanban_tasks WHERE project_id = ? AND column_name = ?
		`, t.ProjectID, string(t.Column))
		if err := row.Scan(&maxPos); err != nil {
			return fmt.Errorf("max position: %w", err)
		}
		if maxPos.Valid {
			t.Position = int(maxPos.Int64) + 1
		} else {
			t.Position = 0
		}

		_, err := tx.Exec(`
			INSERT INTO kanban_tasks (id, project_id, title, description, column_name, position, assignee_agent_id, blocked_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.ProjectID, t.Title, t.Description, string(t.Column), t.Position,
			nullable(t.AssigneeAgentID), string(blockedBy), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert kanban task: %w", err)
		}
		return nil
	})
}

// GetKanbanTask retrieves a task by ID. Returns ErrNotFound if missing.
func (db *DB) GetKanbanTask(id string) (*models.KanbanTask, error) {
	row := db.QueryRow(`
		SELECT id, project_id, title, description, column_name, position, assignee_agent_id, blocked_by, created_at, updated_at
		FROM kanban_tasks WHERE id = ?
	`, id)
	return scanKanbanTask(row.Scan)
}

// ListKanbanTasks returns a project's tasks ordered by column and position.
func (db *DB) ListKanbanTasks(projectID string) ([]*models.KanbanTask, error) {
	rows, err := db.Query(`
		SELECT id, project_id, title, description, column_name, position, assignee_agent_id, blocked_by, created_at, updated_at
		FROM kanban_tasks WHERE project_id = ?
		ORDER BY column_name, position
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list kanban tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.KanbanTask
	for rows.Next() {
		t, err := scanKanbanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// KanbanTaskPatch carries the fields of an update. Nil fields are left as-is.
type KanbanTaskPatch struct {
	Title           *string
	Description     *string
	Column          *models.KanbanColumn
	AssigneeAgentID *string
	BlockedBy       *[]string
}

// UpdateKanbanTask patches only the provided fields and always refreshes
// updated_at. Returns the updated row.
func (db *DB) UpdateKanbanTask(id string, patch KanbanTaskPatch) (*models.KanbanTask, error) {
	t, err := db.GetKanbanTask(id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Column != nil {
		t.Column = *patch.Column
	}
	if patch.AssigneeAgentID != nil {
		t.AssigneeAgentID = *patch.AssigneeAgentID
	}
	if patch.BlockedBy != nil {
		t.BlockedBy = *patch.BlockedBy
	}
	t.UpdatedAt = nowUTC()

	blockedBy, err := json.Marshal(t.BlockedBy)
	if err != nil {
		return nil, fmt.Errorf("marshal blocked_by: %w", err)
	}
	if t.BlockedBy == nil {
		blockedBy = []byte("[]")
	}

	_, err = db.Exec(`
		UPDATE kanban_tasks
		SET title = ?, description = ?, column_name = ?, assignee_agent_id = ?, blocked_by = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, t.Description, string(t.Column), nullable(t.AssigneeAgentID), string(blockedBy), formatTime(t.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("update kanban task: %w", err)
	}
	return t, nil
}

// ReorderKanbanColumn rewrites position as the list index for every id in
// the submitted order, in one transaction. Re-running with the same list is
// a no-op on final state. Returns the affected rows in their new order.
func (db *DB) ReorderKanbanColumn(projectID string, column models.KanbanColumn, ids []string) ([]*models.KanbanTask, error) {
	err := db.Transaction(func(tx *sql.Tx) error {
		now := formatTime(nowUTC())
		for i, id := range ids {
			result, err := tx.Exec(`
				UPDATE kanban_tasks SET position = ?, updated_at = ?
				WHERE id = ? AND project_id = ? AND column_name = ?
			`, i, now, id, projectID, string(column))
			if err != nil {
				return fmt.Errorf("reorder task %s: %w", id, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("reorder task %s: %w", id, ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Re-read the affected rows so callers broadcast the persisted state,
	// not what they hope was written.
	tasks := make([]*models.KanbanTask, 0, len(ids))
	for _, id := range ids {
		t, err := db.GetKanbanTask(id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// DeleteKanbanTask removes one task row.
func (db *DB) DeleteKanbanTask(id string) error {
	result, err := db.Exec(`DELETE FROM kanban_tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete kanban task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanKanbanTask(scan func(dest ...any) error) (*models.KanbanTask, error) {
	var t models.KanbanTask
	var column, blockedBy, createdAt, updatedAt string
	var assignee sql.NullString

	err := scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &column, &t.Position, &assignee, &blockedBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan kanban task: %w", err)
	}

	t.Column = models.KanbanColumn(column)
	t.AssigneeAgentID = assignee.String
	if err := json.Unmarshal([]byte(blockedBy), &t.BlockedBy); err != nil {
		return nil, fmt.Errorf("unmarshal blocked_by: %w", err)
	}
	if ts, err := parseTime(createdAt); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := parseTime(updatedAt); err == nil {
		t.UpdatedAt = ts
	}
	return &t, nil
}
