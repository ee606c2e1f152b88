package orchestrator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ShayCichocki/majordomo/internal/store"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

// CreateTask adds a kanban task to a project board. New tasks land at the
// bottom of their column.
func (o *Orchestrator) CreateTask(projectID, title, description string, column models.KanbanColumn) (*models.KanbanTask, error) {
	if title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	if column == "" {
		column = models.ColumnBacklog
	}
	if !column.Valid() {
		return nil, fmt.Errorf("invalid column %q", column)
	}
	if _, err := o.db.GetProject(projectID); err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}

	t := &models.KanbanTask{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Column:      column,
		BlockedBy:   []string{},
		CreatedAt:   o.now().UTC(),
		UpdatedAt:   o.now().UTC(),
	}
	if err := o.db.CreateKanbanTask(t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	o.emit(Event{Type: EventTaskCreated, ProjectID: projectID, Task: t})
	return t, nil
}

// UpdateTask patches a task's fields. Only provided fields change.
func (o *Orchestrator) UpdateTask(taskID string, patch store.KanbanTaskPatch) (*models.KanbanTask, error) {
	if patch.Column != nil && !patch.Column.Valid() {
		return nil, fmt.Errorf("invalid column %q", *patch.Column)
	}

	t, err := o.db.UpdateKanbanTask(taskID, patch)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", taskID, err)
	}

	o.emit(Event{Type: EventTaskUpdated, ProjectID: t.ProjectID, Task: t})
	return t, nil
}

// ReorderColumn rewrites the positions of a column to match the given id
// order. The resulting rows are re-broadcast so every client converges on
// the persisted order, including callers whose optimistic view was stale.
func (o *Orchestrator) ReorderColumn(projectID string, column models.KanbanColumn, ids []string) ([]*models.KanbanTask, error) {
	if !column.Valid() {
		return nil, fmt.Errorf("invalid column %q", column)
	}

	tasks, err := o.db.ReorderKanbanColumn(projectID, column, ids)
	if err != nil {
		return nil, fmt.Errorf("reorder column %s: %w", column, err)
	}

	for _, t := range tasks {
		o.emit(Event{Type: EventTaskUpdated, ProjectID: t.ProjectID, Task: t})
	}
	return tasks, nil
}

// DeleteTask removes a task from the board.
func (o *Orchestrator) DeleteTask(taskID string) error {
	t, err := o.db.GetKanbanTask(taskID)
	if err != nil {
		return fmt.Errorf("get task %s: %w", taskID, err)
	}
	if err := o.db.DeleteKanbanTask(taskID); err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}

	o.emit(Event{Type: EventTaskDeleted, ProjectID: t.ProjectID, Task: t})
	return nil
}

// AssignTask assigns a task to an agent and moves it to in_progress if it is
// still in the backlog.
func (o *Orchestrator) AssignTask(taskID, agentID string) (*models.KanbanTask, error) {
	if a := o.registry.GetAgent(agentID); a == nil {
		if _, err := o.db.GetAgent(agentID); err != nil {
			return nil, fmt.Errorf("get agent %s: %w", agentID, err)
		}
	}

	t, err := o.db.GetKanbanTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}

	patch := store.KanbanTaskPatch{AssigneeAgentID: &agentID}
	if t.Column == models.ColumnBacklog {
		col := models.ColumnInProgress
		patch.Column = &col
	}
	return o.UpdateTask(taskID, patch)
}
