package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ShayCichocki/majordomo/internal/bridge"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

// StartCodingSession records a new coding session for an agent and marks the
// agent active.
func (o *Orchestrator) StartCodingSession(agentID, sessionID, projectID string) (*models.CodingSession, error) {
	a := o.registry.GetAgent(agentID)
	if a == nil {
		return nil, fmt.Errorf("agent %s is not live", agentID)
	}

	s := &models.CodingSession{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		SessionID: sessionID,
		ProjectID: projectID,
		Status:    models.SessionRunning,
		CreatedAt: o.now().UTC(),
		UpdatedAt: o.now().UTC(),
	}
	if err := o.db.CreateCodingSession(s); err != nil {
		return nil, fmt.Errorf("create coding session: %w", err)
	}

	o.emit(Event{Type: EventSessionUpdate, AgentID: agentID, ProjectID: projectID, SessionID: sessionID})
	return s, nil
}

// AwaitAgentInput blocks a coding agent on a human reply. The session moves
// to awaiting_input, the agent to awaiting_input, and the question is posted
// to the thread so the operator sees it. The call returns when the operator
// answers, the session ends, or ctx is cancelled.
func (o *Orchestrator) AwaitAgentInput(ctx context.Context, agentID, sessionID, question string) (bridge.Response, error) {
	s, err := o.db.GetCodingSession(agentID, sessionID)
	if err != nil {
		return bridge.Response{}, fmt.Errorf("get coding session: %w", err)
	}

	o.setSessionState(s, models.SessionAwaitingInput, models.AgentAwaitingInput)

	if _, err := o.SendMessage(models.BusMessage{
		FromAgentID: agentID,
		Type:        models.MessageSystem,
		Content:     question,
		ProjectID:   s.ProjectID,
	}); err != nil {
		o.logger.Log("await input: post question: %v", err)
	}

	resp, err := o.bridge.AwaitInput(ctx, bridge.ResponseKey{AgentID: agentID, SessionID: sessionID})
	if err != nil {
		return bridge.Response{}, err
	}

	if !resp.Aborted {
		o.setSessionState(s, models.SessionRunning, models.AgentActive)
	}
	return resp, nil
}

// SubmitAgentResponse delivers the operator's answer to a waiting coding
// agent. At most one delivery succeeds per question.
func (o *Orchestrator) SubmitAgentResponse(agentID, sessionID, text string) error {
	key := bridge.ResponseKey{AgentID: agentID, SessionID: sessionID}
	if err := o.bridge.ResolveInput(key, text); err != nil {
		return fmt.Errorf("resolve input for %s: %w", key, err)
	}
	return nil
}

// RequestPermission blocks a coding agent on an allow/deny decision for a
// described action. Unanswered requests reject after the bridge timeout.
func (o *Orchestrator) RequestPermission(ctx context.Context, agentID, sessionID, permissionID, action string) (bridge.Decision, error) {
	s, err := o.db.GetCodingSession(agentID, sessionID)
	if err != nil {
		return bridge.DecisionReject, fmt.Errorf("get coding session: %w", err)
	}

	o.setSessionState(s, models.SessionAwaitingPermission, models.AgentAwaitingInput)
	o.emit(Event{
		Type:         EventPermissionRequested,
		AgentID:      agentID,
		ProjectID:    s.ProjectID,
		SessionID:    sessionID,
		PermissionID: permissionID,
		Text:         action,
	})

	decision, err := o.bridge.AwaitPermission(ctx, bridge.PermissionKey{AgentID: agentID, PermissionID: permissionID})
	if err != nil {
		return bridge.DecisionReject, err
	}

	o.setSessionState(s, models.SessionRunning, models.AgentActive)
	return decision, nil
}

// SubmitPermissionDecision answers a specific pending permission request.
// Chat shortcuts go through HandleChat instead; this is the explicit path
// used by the control surface.
func (o *Orchestrator) SubmitPermissionDecision(agentID, permissionID string, decision bridge.Decision) error {
	key := bridge.PermissionKey{AgentID: agentID, PermissionID: permissionID}
	if err := o.bridge.ResolvePermission(key, decision); err != nil {
		return fmt.Errorf("resolve permission %s: %w", key, err)
	}
	return nil
}

// StreamAgentOutput relays one streamed fragment of a coding session to
// clients. Fragments are display-only; durable output goes through
// AppendSessionOutput once a message completes.
func (o *Orchestrator) StreamAgentOutput(agentID, sessionID, fragment string) {
	a := o.registry.GetAgent(agentID)
	projectID := ""
	if a != nil {
		projectID = a.ProjectID
	}
	o.emit(Event{
		Type:      EventAgentStream,
		AgentID:   agentID,
		ProjectID: projectID,
		SessionID: sessionID,
		Text:      fragment,
	})
}

// AppendSessionOutput stores one output line of a coding session.
func (o *Orchestrator) AppendSessionOutput(sessionRowID, role, content string) error {
	m := &models.SessionMessage{
		ID:           uuid.New().String(),
		SessionRowID: sessionRowID,
		Role:         role,
		Content:      content,
		CreatedAt:    o.now().UTC(),
	}
	if err := o.db.AppendSessionMessage(m); err != nil {
		return fmt.Errorf("append session message: %w", err)
	}
	return nil
}

// AppendSessionDiff stores one file diff produced by a coding session.
func (o *Orchestrator) AppendSessionDiff(sessionRowID, filePath, patch string) error {
	d := &models.SessionDiff{
		ID:           uuid.New().String(),
		SessionRowID: sessionRowID,
		FilePath:     filePath,
		Patch:        patch,
		CreatedAt:    o.now().UTC(),
	}
	if err := o.db.AppendSessionDiff(d); err != nil {
		return fmt.Errorf("append session diff: %w", err)
	}
	return nil
}

// EndCodingSession finishes a session. Any input wait is aborted and every
// pending permission for the agent is rejected, so nothing dangles after the
// session is gone.
func (o *Orchestrator) EndCodingSession(agentID, sessionID string, status models.SessionStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("end session requires a terminal status, got %q", status)
	}

	s, err := o.db.GetCodingSession(agentID, sessionID)
	if err != nil {
		return fmt.Errorf("get coding session: %w", err)
	}

	o.bridge.EndSession(agentID, sessionID)

	if err := o.db.UpdateCodingSessionStatus(s.ID, status); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if err := o.SetAgentStatus(agentID, models.AgentIdle); err != nil {
		o.logger.Log("end session %s: agent %s: %v", sessionID, agentID, err)
	}

	o.emit(Event{Type: EventSessionEnded, AgentID: agentID, ProjectID: s.ProjectID, SessionID: sessionID})
	return nil
}

// setSessionState updates the persisted session status and the agent status
// together. Either write failing is logged, not fatal, so bridge waits are
// never blocked on bookkeeping.
func (o *Orchestrator) setSessionState(s *models.CodingSession, sessionStatus models.SessionStatus, agentStatus models.AgentStatus) {
	if err := o.db.UpdateCodingSessionStatus(s.ID, sessionStatus); err != nil {
		o.logger.Log("session %s: set status %s: %v", s.SessionID, sessionStatus, err)
	}
	if err := o.SetAgentStatus(s.AgentID, agentStatus); err != nil {
		o.logger.Log("session %s: agent status %s: %v", s.SessionID, agentStatus, err)
	}
	o.emit(Event{Type: EventSessionUpdate, AgentID: s.AgentID, ProjectID: s.ProjectID, SessionID: s.SessionID})
}
