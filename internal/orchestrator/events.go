// Package orchestrator implements the COO: the top-level agent that owns
// projects, spawns subordinate agents, relays kanban and session events,
// and bridges human responses to suspended coding sessions.
package orchestrator

import (
	"time"

	"github.com/ShayCichocki/majordomo/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventAgentSpawned indicates a new agent was created.
	EventAgentSpawned EventType = "agent_spawned"
	// EventAgentStatusChanged indicates an agent's status transitioned.
	EventAgentStatusChanged EventType = "agent_status_changed"
	// EventAgentDestroyed indicates an agent was removed.
	EventAgentDestroyed EventType = "agent_destroyed"
	// EventProjectCreated indicates a project was created.
	EventProjectCreated EventType = "project_created"
	// EventProjectUpdated indicates a project's fields changed.
	EventProjectUpdated EventType = "project_updated"
	// EventProjectDeleted indicates a project and its rows were removed.
	EventProjectDeleted EventType = "project_deleted"
	// EventTaskCreated indicates a kanban task was created.
	EventTaskCreated EventType = "task_created"
	// EventTaskUpdated indicates a kanban task changed (including reorders).
	EventTaskUpdated EventType = "task_updated"
	// EventTaskDeleted indicates a kanban task was removed.
	EventTaskDeleted EventType = "task_deleted"
	// EventMessage indicates a bus message was appended.
	EventMessage EventType = "message"
	// EventAgentStream carries one streamed token/thinking fragment.
	EventAgentStream EventType = "agent_stream"
	// EventSessionUpdate indicates a coding session changed status.
	EventSessionUpdate EventType = "session_update"
	// EventPermissionRequested indicates a coding session is waiting on an
	// allow/deny decision.
	EventPermissionRequested EventType = "permission_requested"
	// EventSessionEnded indicates a coding session terminated.
	EventSessionEnded EventType = "session_ended"
	// EventNotification carries a plain notification for clients.
	EventNotification EventType = "notification"
)

// Event is one outbound notification to connected clients. Delivery is
// fan-out, at-most-once, best-effort: a missed event is not retried, since
// clients resynchronize via pull queries.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// AgentID is the related agent, if applicable.
	AgentID string
	// ProjectID is the related project, if applicable.
	ProjectID string
	// Agent carries the full agent for spawn/status events.
	Agent *models.Agent
	// Task carries the full task for kanban events.
	Task *models.KanbanTask
	// Message carries the bus message for message events.
	Message *models.BusMessage
	// SessionID is the agent-local session id for session events.
	SessionID string
	// PermissionID identifies the permission request, if applicable.
	PermissionID string
	// Text provides additional context (stream fragments, notifications).
	Text string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventSink receives orchestrator events. The real-time notification
// adapter implements it; the orchestrator stays ignorant of transport.
type EventSink interface {
	Emit(event Event)
}

// NopSink discards all events. Used in tests and headless commands.
type NopSink struct{}

// Emit implements EventSink.
func (NopSink) Emit(Event) {}
