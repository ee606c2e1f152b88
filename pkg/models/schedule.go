package models

import "time"

// TaskMode selects what a custom scheduled task does when it fires.
type TaskMode string

const (
	// ModeCOOPrompt injects the task message as a prompt for the COO to
	// act on, surfacing the reply in chat.
	ModeCOOPrompt TaskMode = "coo_prompt"
	// ModeCOOBackground runs the instruction without surfacing a reply.
	ModeCOOBackground TaskMode = "coo_background"
	// ModeNotification raises a plain notification to clients.
	ModeNotification TaskMode = "notification"
)

// Valid returns true if the mode is a known value.
func (m TaskMode) Valid() bool {
	switch m {
	case ModeCOOPrompt, ModeCOOBackground, ModeNotification:
		return true
	default:
		return false
	}
}

// ScheduledTask is a user-authored periodic job. Enabled tasks are surfaced
// to clients as pseudo-agents so scheduled automations appear alongside
// real agents.
type ScheduledTask struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Name is the display name, also used for the pseudo-agent.
	Name string `json:"name"`
	// Message is the prompt or notification text delivered on each fire.
	Message string `json:"message"`
	// Mode selects the delivery behavior.
	Mode TaskMode `json:"mode"`
	// IntervalMs is the fire interval in milliseconds. Writes are clamped
	// to the system-wide minimum.
	IntervalMs int64 `json:"interval_ms"`
	// Enabled controls whether the task fires.
	Enabled bool `json:"enabled"`
	// LastRunAt is the last time the task fired, if ever.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
}
