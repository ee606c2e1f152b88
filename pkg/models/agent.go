// Package models contains the shared domain types for Majordomo.
package models

import "time"

// AgentRole identifies the kind of work an agent performs.
type AgentRole string

const (
	// RoleCOO is the top-level orchestrating agent. There is exactly one.
	RoleCOO AgentRole = "coo"
	// RoleTeamLead decomposes project work and supervises workers.
	RoleTeamLead AgentRole = "team_lead"
	// RoleWorker executes individual tasks within a project.
	RoleWorker AgentRole = "worker"
	// RoleAdminAssistant handles project-less chores (reminders, scheduling).
	RoleAdminAssistant AgentRole = "admin_assistant"
	// RoleCodingAgent is the pseudo-role for externally executed coding sessions.
	RoleCodingAgent AgentRole = "coding_agent"
)

// Valid returns true if the role is a known value.
func (r AgentRole) Valid() bool {
	switch r {
	case RoleCOO, RoleTeamLead, RoleWorker, RoleAdminAssistant, RoleCodingAgent:
		return true
	default:
		return false
	}
}

// AgentStatus represents the current state of an agent.
type AgentStatus string

const (
	// AgentSpawning indicates the agent is being provisioned.
	AgentSpawning AgentStatus = "spawning"
	// AgentActive indicates the agent is working.
	AgentActive AgentStatus = "active"
	// AgentIdle indicates the agent is registered but has no work.
	AgentIdle AgentStatus = "idle"
	// AgentAwaitingInput indicates the agent is suspended on a human reply.
	AgentAwaitingInput AgentStatus = "awaiting_input"
	// AgentDone is terminal. It is also forced onto every non-done agent
	// during the startup sweep, since no in-memory work survives a restart.
	AgentDone AgentStatus = "done"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentSpawning, AgentActive, AgentIdle, AgentAwaitingInput, AgentDone:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are allowed from s.
func (s AgentStatus) Terminal() bool {
	return s == AgentDone
}

// CanTransitionTo reports whether moving from s to next is a legal
// state-machine step. done is terminal; spawning may only activate.
func (s AgentStatus) CanTransitionTo(next AgentStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case AgentSpawning:
		return next == AgentActive || next == AgentDone
	case AgentActive, AgentIdle, AgentAwaitingInput:
		return next == AgentActive || next == AgentIdle ||
			next == AgentAwaitingInput || next == AgentDone
	default:
		return false
	}
}

// Agent represents a live agent in the hierarchy.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Name is the display name shown to clients.
	Name string `json:"name"`
	// Role is the agent's role in the hierarchy.
	Role AgentRole `json:"role"`
	// Status is the current lifecycle state.
	Status AgentStatus `json:"status"`
	// ParentID is the owning agent's ID. Empty for the COO.
	ParentID string `json:"parent_id,omitempty"`
	// ProjectID is the owning project. Empty for the COO and AdminAssistant.
	ProjectID string `json:"project_id,omitempty"`
	// Model is the language model this agent uses.
	Model string `json:"model,omitempty"`
	// Provider selects the model provider (anthropic, bedrock).
	Provider string `json:"provider,omitempty"`
	// Appearance is opaque 3D presentation metadata passed through to clients.
	Appearance string `json:"appearance,omitempty"`
	// Pseudo marks UI-only agents backed by custom scheduled tasks.
	// Pseudo agents are never persisted.
	Pseudo bool `json:"pseudo,omitempty"`
	// CreatedAt is when the agent was spawned.
	CreatedAt time.Time `json:"created_at"`
}
