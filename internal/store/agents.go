package store

import (
	"database/sql"
	"fmt"

	"github.com/ShayCichocki/majordomo/pkg/models"
)

// CreateAgent inserts a new agent row.
func (db *DB) CreateAgent(a *models.Agent) error {
	_, err := db.Exec(`
		INSERT INTO agents (id, name, role, status, parent_id, project_id, model, provider, appearance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, string(a.Role), string(a.Status), nullable(a.ParentID), nullable(a.ProjectID),
		nullable(a.Model), nullable(a.Provider), nullable(a.Appearance), formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID. Returns ErrNotFound if missing.
func (db *DB) GetAgent(id string) (*models.Agent, error) {
	row := db.QueryRow(`
		SELECT id, name, role, status, parent_id, project_id, model, provider, appearance, created_at
		FROM agents WHERE id = ?
	`, id)
	return scanAgent(row)
}

// ListAgents returns all agents, optionally filtered by project ID.
func (db *DB) ListAgents(projectID string) ([]*models.Agent, error) {
	query := `
		SELECT id, name, role, status, parent_id, project_id, model, provider, appearance, created_at
		FROM agents
	`
	var args []any
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY created_at"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		a, err := scanAgentRows(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// UpdateAgentStatus sets the status of one agent.
func (db *DB) UpdateAgentStatus(id string, status models.AgentStatus) error {
	result, err := db.Exec(`UPDATE agents SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
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

// SweepStaleAgents forces every non-done agent to done. This runs on boot:
// no in-memory work survives a restart, so any agent still marked live is
// stale by definition. Returns the number of agents swept.
func (db *DB) SweepStaleAgents() (int64, error) {
	result, err := db.Exec(`UPDATE agents SET status = ? WHERE status != ?`,
		string(models.AgentDone), string(models.AgentDone))
	if err != nil {
		return 0, fmt.Errorf("sweep stale agents: %w", err)
	}
	return result.RowsAffected()
}

// DeleteAgent removes one agent row.
func (db *DB) DeleteAgent(id string) error {
	_, err := db.Exec(`DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return nil
}

// DeleteAgentsByProject removes all agent rows for a project.
func (db *DB) DeleteAgentsByProject(projectID string) error {
	_, err := db.Exec(`DELETE FROM agents WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("delete agents for project %s: %w", projectID, err)
	}
	return nil
}

func scanAgent(row *sql.Row) (*models.Agent, error) {
	var a models.Agent
	var role, status, createdAt string
	var parentID, projectID, model, provider, appearance sql.NullString

	err := row.Scan(&a.ID, &a.Name, &role, &status, &parentID, &projectID, &model, &provider, &appearance, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	fillAgent(&a, role, status, createdAt, parentID, projectID, model, provider, appearance)
	return &a, nil
}

func scanAgentRows(rows *sql.Rows) (*models.Agent, error) {
	var a models.Agent
	var role, status, createdAt string
	var parentID, projectID, model, provider, appearance sql.NullString

	if err := rows.Scan(&a.ID, &a.Name, &role, &status, &parentID, &projectID, &model, &provider, &appearance, &createdAt); err != nil {
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	fillAgent(&a, role, status, createdAt, parentID, projectID, model, provider, appearance)
	return &a, nil
}

func fillAgent(a *models.Agent, role, status, createdAt string, parentID, projectID, model, provider, appearance sql.NullString) {
	a.Role = models.AgentRole(role)
	a.Status = models.AgentStatus(status)
	a.ParentID = parentID.String
	a.ProjectID = projectID.String
	a.Model = model.String
	a.Provider = provider.String
	a.Appearance = appearance.String
	if t, err := parseTime(createdAt); err == nil {
		a.CreatedAt = t
	}
}
