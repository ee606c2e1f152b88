package store

import (
	"database/sql"
	"fmt"

	"github.com/ShayCichocki/majordomo/pkg/models"
)

// CreateCodingSession inserts a new coding session row.
func (db *DB) CreateCodingSession(s *models.CodingSession) error {
	_, err := db.Exec(`
		INSERT INTO coding_sessions (id, agent_id, session_id, project_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.AgentID, s.SessionID, s.ProjectID, string(s.Status), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create coding session: %w", err)
	}
	return nil
}

// GetCodingSession retrieves a session by its agent ID and agent-local
// session ID. Returns ErrNotFound if missing.
func (db *DB) GetCodingSession(agentID, sessionID string) (*models.CodingSession, error) {
	row := db.QueryRow(`
		SELECT id, agent_id, session_id, project_id, status, created_at, updated_at
		FROM coding_sessions WHERE agent_id = ? AND session_id = ?
	`, agentID, sessionID)
	return scanCodingSession(row.Scan)
}

// ListCodingSessions returns the sessions for a project.
func (db *DB) ListCodingSessions(projectID string) ([]*models.CodingSession, error) {
	rows, err := db.Query(`
		SELECT id, agent_id, session_id, project_id, status, created_at, updated_at
		FROM coding_sessions WHERE project_id = ? ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list coding sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.CodingSession
	for rows.Next() {
		s, err := scanCodingSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateCodingSessionStatus sets a session's status and refreshes updated_at.
func (db *DB) UpdateCodingSessionStatus(id string, status models.SessionStatus) error {
	result, err := db.Exec(`
		UPDATE coding_sessions SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), formatTime(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("update coding session status: %w", err)
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

// AppendSessionMessage records one ordered output line of a session.
func (db *DB) AppendSessionMessage(m *models.SessionMessage) error {
	_, err := db.Exec(`
		INSERT INTO session_messages (id, session_row_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.SessionRowID, m.Role, m.Content, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("append session message: %w", err)
	}
	return nil
}

// ListSessionMessages returns a session's messages in creation order.
func (db *DB) ListSessionMessages(sessionRowID string) ([]*models.SessionMessage, error) {
	rows, err := db.Query(`
		SELECT id, session_row_id, role, content, created_at
		FROM session_messages WHERE session_row_id = ? ORDER BY created_at
	`, sessionRowID)
	if err != nil {
		return nil, fmt.Errorf("list session messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.SessionMessage
	for rows.Next() {
		var m models.SessionMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionRowID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session message: %w", err)
		}
		if t, err := parseTime(createdAt); err == nil {
			m.CreatedAt = t
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// AppendSessionDiff records one file diff produced during a session.
func (db *DB) AppendSessionDiff(d *models.SessionDiff) error {
	_, err := db.Exec(`
		INSERT INTO session_diffs (id, session_row_id, file_path, patch, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.ID, d.SessionRowID, d.FilePath, d.Patch, formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("append session diff: %w", err)
	}
	return nil
}

// ListSessionDiffs returns a session's diffs in creation order.
func (db *DB) ListSessionDiffs(sessionRowID string) ([]*models.SessionDiff, error) {
	rows, err := db.Query(`
		SELECT id, session_row_id, file_path, patch, created_at
		FROM session_diffs WHERE session_row_id = ? ORDER BY created_at
	`, sessionRowID)
	if err != nil {
		return nil, fmt.Errorf("list session diffs: %w", err)
	}
	defer rows.Close()

	var diffs []*models.SessionDiff
	for rows.Next() {
		var d models.SessionDiff
		var createdAt string
		if err := rows.Scan(&d.ID, &d.SessionRowID, &d.FilePath, &d.Patch, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session diff: %w", err)
		}
		if t, err := parseTime(createdAt); err == nil {
			d.CreatedAt = t
		}
		diffs = append(diffs, &d)
	}
	return diffs, rows.Err()
}

func scanCodingSession(scan func(dest ...any) error) (*models.CodingSession, error) {
	var s models.CodingSession
	var status, createdAt, updatedAt string

	err := scan(&s.ID, &s.AgentID, &s.SessionID, &s.ProjectID, &status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan coding session: %w", err)
	}
	s.Status = models.SessionStatus(status)
	if t, err := parseTime(createdAt); err == nil {
		s.CreatedAt = t
	}
	if t, err := parseTime(updatedAt); err == nil {
		s.UpdatedAt = t
	}
	return &s, nil
}
