package models

import "time"

// MessageType classifies a bus message.
type MessageType string

const (
	// MessageChat is ordinary conversational text.
	MessageChat MessageType = "chat"
	// MessageToolCall records an agent tool invocation or its result.
	MessageToolCall MessageType = "tool_call"
	// MessageSystem is generated by the platform itself (confirmations,
	// status markers).
	MessageSystem MessageType = "system"
	// MessageNotification is a scheduler- or agent-raised alert.
	MessageNotification MessageType = "notification"
)

// Valid returns true if the type is a known value.
func (t MessageType) Valid() bool {
	switch t {
	case MessageChat, MessageToolCall, MessageSystem, MessageNotification:
		return true
	default:
		return false
	}
}

// BusMessage is one immutable entry in the message log. Messages are never
// mutated after append; corrections are modeled as new messages.
type BusMessage struct {
	// ID is the unique identifier, assigned by the bus on append.
	ID string `json:"id"`
	// FromAgentID is the sending agent. Empty means the human operator.
	FromAgentID string `json:"from_agent_id,omitempty"`
	// ToAgentID is the receiving agent. Empty means broadcast.
	ToAgentID string `json:"to_agent_id,omitempty"`
	// Type classifies the message.
	Type MessageType `json:"type"`
	// Content is the message body.
	Content string `json:"content"`
	// ConversationID is the owning conversation thread.
	ConversationID string `json:"conversation_id,omitempty"`
	// ProjectID scopes the message to a project for history queries.
	ProjectID string `json:"project_id,omitempty"`
	// CreatedAt is the append timestamp, assigned by the bus.
	CreatedAt time.Time `json:"created_at"`
}
