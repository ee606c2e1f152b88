package models

import "time"

// KanbanColumn identifies a kanban board column.
type KanbanColumn string

const (
	// ColumnBacklog holds tasks not yet started.
	ColumnBacklog KanbanColumn = "backlog"
	// ColumnInProgress holds tasks being worked on.
	ColumnInProgress KanbanColumn = "in_progress"
	// ColumnDone holds completed tasks.
	ColumnDone KanbanColumn = "done"
)

// Valid returns true if the column is a known value.
func (c KanbanColumn) Valid() bool {
	switch c {
	case ColumnBacklog, ColumnInProgress, ColumnDone:
		return true
	default:
		return false
	}
}

// KanbanTask is one card on a project's kanban board.
// Position is a dense rank, unique and contiguous per (project, column);
// reorder operations renumber the whole column atomically.
type KanbanTask struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// ProjectID is the owning project.
	ProjectID string `json:"project_id"`
	// Title is the task summary.
	Title string `json:"title"`
	// Description holds optional detail.
	Description string `json:"description,omitempty"`
	// Column is the board column the task sits in.
	Column KanbanColumn `json:"column"`
	// Position is the dense rank within the column, starting at 0.
	Position int `json:"position"`
	// AssigneeAgentID is the agent responsible for the task, if any.
	AssigneeAgentID string `json:"assignee_agent_id,omitempty"`
	// BlockedBy lists task IDs that must complete first.
	BlockedBy []string `json:"blocked_by,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is refreshed on every mutation.
	UpdatedAt time.Time `json:"updated_at"`
}
