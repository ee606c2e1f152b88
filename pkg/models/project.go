package models

import "time"

// ProjectStatus represents the lifecycle state of a project.
type ProjectStatus string

const (
	// ProjectActive indicates the project is being worked on.
	ProjectActive ProjectStatus = "active"
	// ProjectArchived indicates the project is retained but inactive.
	ProjectArchived ProjectStatus = "archived"
)

// Valid returns true if the status is a known value.
func (s ProjectStatus) Valid() bool {
	return s == ProjectActive || s == ProjectArchived
}

// Project groups agents, kanban tasks, and conversations under one goal.
type Project struct {
	// ID is the unique identifier for this project.
	ID string `json:"id"`
	// Name is the human-readable project name.
	Name string `json:"name"`
	// Description is an optional summary of the goal.
	Description string `json:"description,omitempty"`
	// Status is the current lifecycle state.
	Status ProjectStatus `json:"status"`
	// CreatedAt is when the project was created.
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a thread of bus messages owned by a project.
// The COO's direct chat with the operator lives in a project-less
// conversation.
type Conversation struct {
	// ID is the unique identifier for this conversation.
	ID string `json:"id"`
	// ProjectID is the owning project. Empty for the COO's operator thread.
	ProjectID string `json:"project_id,omitempty"`
	// Title is a short display label.
	Title string `json:"title"`
	// CreatedAt is when the conversation was opened.
	CreatedAt time.Time `json:"created_at"`
}
