package models

import "time"

// SessionStatus represents the state of a coding agent session.
type SessionStatus string

const (
	// SessionRunning indicates the session is executing.
	SessionRunning SessionStatus = "running"
	// SessionAwaitingInput indicates the session is paused on a human reply.
	SessionAwaitingInput SessionStatus = "awaiting_input"
	// SessionAwaitingPermission indicates the session is paused on an
	// allow/deny decision.
	SessionAwaitingPermission SessionStatus = "awaiting_permission"
	// SessionCompleted indicates the session finished successfully.
	SessionCompleted SessionStatus = "completed"
	// SessionError indicates the session terminated with an error.
	SessionError SessionStatus = "error"
)

// Valid returns true if the status is a known value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionRunning, SessionAwaitingInput, SessionAwaitingPermission,
		SessionCompleted, SessionError:
		return true
	default:
		return false
	}
}

// Terminal returns true if the session can no longer produce events.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionError
}

// CodingSession tracks one externally executed coding task. A session holds
// at most one outstanding human-input request and at most one outstanding
// permission request at a time; both live only in the coordination bridge
// until resolved.
type CodingSession struct {
	// ID is the unique identifier for this session record.
	ID string `json:"id"`
	// AgentID is the coding agent running the session.
	AgentID string `json:"agent_id"`
	// SessionID is the agent-local session identifier.
	SessionID string `json:"session_id"`
	// ProjectID is the owning project.
	ProjectID string `json:"project_id"`
	// Status is the current session state.
	Status SessionStatus `json:"status"`
	// CreatedAt is when the session started.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is refreshed on every status change.
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionMessage is one ordered output line of a coding session.
type SessionMessage struct {
	// ID is the unique identifier for this message.
	ID string `json:"id"`
	// SessionRowID references the owning CodingSession record.
	SessionRowID string `json:"session_row_id"`
	// Role is who produced the message (agent, user, system).
	Role string `json:"role"`
	// Content is the message body.
	Content string `json:"content"`
	// CreatedAt orders messages within the session.
	CreatedAt time.Time `json:"created_at"`
}

// SessionDiff is one file diff produced during a coding session.
type SessionDiff struct {
	// ID is the unique identifier for this diff.
	ID string `json:"id"`
	// SessionRowID references the owning CodingSession record.
	SessionRowID string `json:"session_row_id"`
	// FilePath is the file the diff applies to.
	FilePath string `json:"file_path"`
	// Patch is the unified diff content.
	Patch string `json:"patch"`
	// CreatedAt orders diffs within the session.
	CreatedAt time.Time `json:"created_at"`
}
