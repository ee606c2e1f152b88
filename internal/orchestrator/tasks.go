package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/majordomo/pkg/models"
)

// taskActions adapts the orchestrator to the custom scheduler's action
// surface. Firing tasks speak to the operator the same way live agents do.
type taskActions struct {
	o *Orchestrator
}

// TaskActions returns the action surface the custom scheduler fires into.
func (o *Orchestrator) TaskActions() *taskActions {
	return &taskActions{o: o}
}

// PromptCOO injects the task message into the operator thread and surfaces
// the COO's reply there. The message bypasses the permission decision
// shortcut: only text a human typed may decide a pending request.
func (a *taskActions) PromptCOO(ctx context.Context, task *models.ScheduledTask) error {
	result, err := a.o.dispatchChat(ctx, task.Message, "", "")
	if err != nil {
		return fmt.Errorf("task %s: prompt coo: %w", task.Name, err)
	}
	if result.Reply != nil {
		debugLog("task %s: coo replied (%d chars)", task.Name, len(result.Reply.Content))
	}
	return nil
}

// RunBackground runs the instruction without posting anything to chat.
// The outcome is kept in the debug log only.
func (a *taskActions) RunBackground(ctx context.Context, task *models.ScheduledTask) error {
	if a.o.completer == nil {
		return fmt.Errorf("task %s: no completer configured", task.Name)
	}
	out, err := a.o.completer.Complete(ctx, cooSystemPrompt, task.Message)
	if err != nil {
		return fmt.Errorf("task %s: background run: %w", task.Name, err)
	}
	debugLog("task %s: background run produced %d chars", task.Name, len(out))
	return nil
}

// Notify raises the task message as a client notification.
func (a *taskActions) Notify(ctx context.Context, task *models.ScheduledTask) error {
	return a.o.Notify("scheduled-task:"+task.ID, task.Message, "")
}
