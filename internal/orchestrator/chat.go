package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/majordomo/internal/bridge"
	"github.com/ShayCichocki/majordomo/internal/bus"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

const cooSystemPrompt = `You are the COO of a personal automation platform.
You coordinate a team of agents working across the operator's projects.
Answer the operator directly and concisely. When work should be delegated,
say which agent or project it belongs to.`

// ChatResult describes how an inbound chat message was handled.
type ChatResult struct {
	// Message is the stored operator message, nil when the text was consumed
	// as a permission decision.
	Message *models.BusMessage
	// Reply is the COO's reply, when one was generated.
	Reply *models.BusMessage
	// ResolvedPermission is set when the text resolved a pending permission
	// request instead of reaching the COO.
	ResolvedPermission *bridge.PermissionKey
}

// HandleChat processes a message typed by the operator.
//
// Before the message reaches the COO it is checked against the active
// permission request: if one is pending and the text reads as a decision
// ("allow", "deny", "always", ...), the decision is applied, a confirmation
// is posted to the thread, and the COO never sees the text. Otherwise the
// message is stored on the bus and the COO replies.
func (o *Orchestrator) HandleChat(ctx context.Context, text, conversationID, projectID string) (*ChatResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty message")
	}

	if key, ok := o.bridge.ActivePermission(); ok {
		if decision, matched := bridge.ClassifyDecision(trimmed); matched {
			if err := o.bridge.ResolvePermission(key, decision); err == nil {
				confirmation, sendErr := o.bus.Send(models.BusMessage{
					FromAgentID:    key.AgentID,
					Type:           models.MessageSystem,
					Content:        fmt.Sprintf("Permission %s: %s", key.PermissionID, decision),
					ConversationID: conversationID,
					ProjectID:      projectID,
				})
				if sendErr != nil {
					o.logger.Log("chat: permission confirmation: %v", sendErr)
				} else {
					o.emitMessage(confirmation)
				}
				o.logger.Log("chat: resolved permission %s as %s", key, decision)
				return &ChatResult{ResolvedPermission: &key}, nil
			}
			// The request was resolved by timeout or another caller between
			// the lookup and the decision. Fall through to normal chat.
		}
	}

	return o.dispatchChat(ctx, trimmed, conversationID, projectID)
}

// dispatchChat stores a chat message and has the COO reply. It never
// consults pending permissions; the decision shortcut belongs to HandleChat,
// where a human typed the text. Scheduled tasks and other synthetic senders
// call this directly so their messages can never stand in for an operator
// decision.
func (o *Orchestrator) dispatchChat(ctx context.Context, text, conversationID, projectID string) (*ChatResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty message")
	}

	msg, err := o.bus.Send(models.BusMessage{
		ToAgentID:      o.cooID,
		Type:           models.MessageChat,
		Content:        trimmed,
		ConversationID: conversationID,
		ProjectID:      projectID,
	})
	if err != nil {
		return nil, fmt.Errorf("store chat message: %w", err)
	}
	o.emitMessage(msg)

	result := &ChatResult{Message: msg}
	if o.completer == nil {
		return result, nil
	}

	replyText, err := o.completer.Complete(ctx, cooSystemPrompt, o.buildCOOPrompt(trimmed, conversationID, projectID))
	if err != nil {
		return result, fmt.Errorf("coo completion: %w", err)
	}

	reply, err := o.bus.Send(models.BusMessage{
		FromAgentID:    o.cooID,
		Type:           models.MessageChat,
		Content:        replyText,
		ConversationID: conversationID,
		ProjectID:      projectID,
	})
	if err != nil {
		return result, fmt.Errorf("store coo reply: %w", err)
	}
	o.emitMessage(reply)
	result.Reply = reply
	return result, nil
}

// buildCOOPrompt assembles the COO prompt from recent thread history plus the
// new message.
func (o *Orchestrator) buildCOOPrompt(text, conversationID, projectID string) string {
	history, err := o.bus.History(bus.HistoryFilter{ProjectID: projectID, Limit: 20})
	if err != nil {
		o.logger.Log("chat: load history: %v", err)
		return text
	}

	var sb strings.Builder
	for _, m := range history {
		if m.Type != models.MessageChat {
			continue
		}
		if conversationID != "" && m.ConversationID != conversationID {
			continue
		}
		from := m.FromAgentID
		if from == "" {
			from = "operator"
		}
		fmt.Fprintf(&sb, "[%s] %s\n", from, m.Content)
	}
	fmt.Fprintf(&sb, "[operator] %s\n", text)
	return sb.String()
}

// SendMessage posts a message on the bus on behalf of an agent and emits the
// corresponding event.
func (o *Orchestrator) SendMessage(msg models.BusMessage) (*models.BusMessage, error) {
	stored, err := o.bus.Send(msg)
	if err != nil {
		return nil, err
	}
	o.emitMessage(stored)
	return stored, nil
}

// Notify broadcasts a notification message and emits a notification event.
func (o *Orchestrator) Notify(fromAgentID, content, projectID string) error {
	msg, err := o.bus.Send(models.BusMessage{
		FromAgentID: fromAgentID,
		Type:        models.MessageNotification,
		Content:     content,
		ProjectID:   projectID,
	})
	if err != nil {
		return err
	}
	o.emit(Event{Type: EventNotification, AgentID: fromAgentID, ProjectID: projectID, Message: msg, Text: content})
	return nil
}

func (o *Orchestrator) emitMessage(msg *models.BusMessage) {
	o.emit(Event{
		Type:      EventMessage,
		AgentID:   msg.FromAgentID,
		ProjectID: msg.ProjectID,
		Message:   msg,
	})
}
