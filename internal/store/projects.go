package store

import (
	"database/sql"
	"fmt"

	"github.com/ShayCichocki/majordomo/pkg/models"
)

// CreateProject inserts a new project row.
func (db *DB) CreateProject(p *models.Project) error {
	_, err := db.Exec(`
		INSERT INTO projects (id, name, description, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, string(p.Status), formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID. Returns ErrNotFound if missing.
func (db *DB) GetProject(id string) (*models.Project, error) {
	row := db.QueryRow(`SELECT id, name, description, status, created_at FROM projects WHERE id = ?`, id)

	var p models.Project
	var status, createdAt string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.Status = models.ProjectStatus(status)
	if t, err := parseTime(createdAt); err == nil {
		p.CreatedAt = t
	}
	return &p, nil
}

// ListProjects returns all projects, optionally filtered by status.
func (db *DB) ListProjects(status models.ProjectStatus) ([]*models.Project, error) {
	query := `SELECT id, name, description, status, created_at FROM projects`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		var st, createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &st, &createdAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Status = models.ProjectStatus(st)
		if t, err := parseTime(createdAt); err == nil {
			p.CreatedAt = t
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// UpdateProjectStatus sets the status of one project.
func (db *DB) UpdateProjectStatus(id string, status models.ProjectStatus) error {
	result, err := db.Exec(`UPDATE projects SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
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

// CascadeStep is one table-level deletion in a project teardown. Steps are
// executed independently so a failure in one never strands the rest.
type CascadeStep struct {
	// Table names the table the step cleared.
	Table string
	// Err is the failure for this step, if any.
	Err error
}

// DeleteProjectCascade removes a project and every row that references it:
// kanban tasks, activity, messages, conversations, coding sessions (with
// their messages and diffs), agents, and finally the project row itself.
// Each step is attempted even if earlier steps failed, so a stuck project
// can always be force-removed. The returned steps report per-table results.
func (db *DB) DeleteProjectCascade(projectID string) []CascadeStep {
	steps := []struct {
		table string
		run   func() error
	}{
		{"kanban_tasks", func() error {
			_, err := db.Exec(`DELETE FROM kanban_tasks WHERE project_id = ?`, projectID)
			return err
		}},
		{"activity", func() error {
			_, err := db.Exec(`DELETE FROM activity WHERE project_id = ?`, projectID)
			return err
		}},
		{"messages", func() error {
			_, err := db.Exec(`DELETE FROM messages WHERE project_id = ?`, projectID)
			return err
		}},
		{"conversations", func() error {
			_, err := db.Exec(`DELETE FROM conversations WHERE project_id = ?`, projectID)
			return err
		}},
		{"session_messages", func() error {
			_, err := db.Exec(`
				DELETE FROM session_messages WHERE session_row_id IN
				(SELECT id FROM coding_sessions WHERE project_id = ?)
			`, projectID)
			return err
		}},
		{"session_diffs", func() error {
			_, err := db.Exec(`
				DELETE FROM session_diffs WHERE session_row_id IN
				(SELECT id FROM coding_sessions WHERE project_id = ?)
			`, projectID)
			return err
		}},
		{"coding_sessions", func() error {
			_, err := db.Exec(`DELETE FROM coding_sessions WHERE project_id = ?`, projectID)
			return err
		}},
		{"agents", func() error {
			return db.DeleteAgentsByProject(projectID)
		}},
		{"projects", func() error {
			_, err := db.Exec(`DELETE FROM projects WHERE id = ?`, projectID)
			return err
		}},
	}

	results := make([]CascadeStep, 0, len(steps))
	for _, s := range steps {
		results = append(results, CascadeStep{Table: s.table, Err: s.run()})
	}
	return results
}

// CreateConversation inserts a new conversation row.
func (db *DB) CreateConversation(c *models.Conversation) error {
	_, err := db.Exec(`
		INSERT INTO conversations (id, project_id, title, created_at)
		VALUES (?, ?, ?, ?)
	`, c.ID, nullable(c.ProjectID), c.Title, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// ListConversations returns the conversations for a project. An empty
// projectID selects the project-less operator threads.
func (db *DB) ListConversations(projectID string) ([]*models.Conversation, error) {
	var rows *sql.Rows
	var err error
	if projectID == "" {
		rows, err = db.Query(`SELECT id, project_id, title, created_at FROM conversations WHERE project_id IS NULL ORDER BY created_at`)
	} else {
		rows, err = db.Query(`SELECT id, project_id, title, created_at FROM conversations WHERE project_id = ? ORDER BY created_at`, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		var c models.Conversation
		var pid sql.NullString
		var createdAt string
		if err := rows.Scan(&c.ID, &pid, &c.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.ProjectID = pid.String
		if t, err := parseTime(createdAt); err == nil {
			c.CreatedAt = t
		}
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

// RecordActivity appends one activity row for a project or agent.
func (db *DB) RecordActivity(projectID, agentID, kind, detail string) error {
	_, err := db.Exec(`
		INSERT INTO activity (project_id, agent_id, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, nullable(projectID), nullable(agentID), kind, detail, formatTime(nowUTC()))
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}
