package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/majordomo/pkg/models"
)

// CreateScheduledTask inserts a new user-authored scheduled task.
func (db *DB) CreateScheduledTask(t *models.ScheduledTask) error {
	_, err := db.Exec(`
		INSERT INTO scheduled_tasks (id, name, message, mode, interval_ms, enabled, last_run_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, t.Message, string(t.Mode), t.IntervalMs, boolToInt(t.Enabled),
		nullableTime(t.LastRunAt), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("create scheduled task: %w", err)
	}
	return nil
}

// GetScheduledTask retrieves a task by ID. Returns ErrNotFound if missing.
func (db *DB) GetScheduledTask(id string) (*models.ScheduledTask, error) {
	row := db.QueryRow(`
		SELECT id, name, message, mode, interval_ms, enabled, last_run_at, created_at
		FROM scheduled_tasks WHERE id = ?
	`, id)
	return scanScheduledTask(row.Scan)
}

// ListScheduledTasks returns all scheduled tasks in creation order.
func (db *DB) ListScheduledTasks() ([]*models.ScheduledTask, error) {
	rows, err := db.Query(`
		SELECT id, name, message, mode, interval_ms, enabled, last_run_at, created_at
		FROM scheduled_tasks ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.ScheduledTask
	for rows.Next() {
		t, err := scanScheduledTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateScheduledTask rewrites a task's mutable fields.
func (db *DB) UpdateScheduledTask(t *models.ScheduledTask) error {
	result, err := db.Exec(`
		UPDATE scheduled_tasks SET name = ?, message = ?, mode = ?, interval_ms = ?, enabled = ?
		WHERE id = ?
	`, t.Name, t.Message, string(t.Mode), t.IntervalMs, boolToInt(t.Enabled), t.ID)
	if err != nil {
		return fmt.Errorf("update scheduled task: %w", err)
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

// TouchScheduledTask records the time the task last fired.
func (db *DB) TouchScheduledTask(id string, ranAt time.Time) error {
	_, err := db.Exec(`UPDATE scheduled_tasks SET last_run_at = ? WHERE id = ?`, formatTime(ranAt), id)
	if err != nil {
		return fmt.Errorf("touch scheduled task: %w", err)
	}
	return nil
}

// DeleteScheduledTask removes one scheduled task row.
func (db *DB) DeleteScheduledTask(id string) error {
	result, err := db.Exec(`DELETE FROM scheduled_tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled task: %w", err)
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

func scanScheduledTask(scan func(dest ...any) error) (*models.ScheduledTask, error) {
	var t models.ScheduledTask
	var mode, createdAt string
	var enabled int
	var lastRun sql.NullString

	err := scan(&t.ID, &t.Name, &t.Message, &mode, &t.IntervalMs, &enabled, &lastRun, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan scheduled task: %w", err)
	}
	t.Mode = models.TaskMode(mode)
	t.Enabled = enabled != 0
	t.LastRunAt = parseNullableTime(lastRun)
	if ts, err := parseTime(createdAt); err == nil {
		t.CreatedAt = ts
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
