package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/majordomo/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestProject(t *testing.T, db *DB, id string) *models.Project {
	t.Helper()
	p := &models.Project{
		ID:        id,
		Name:      "project " + id,
		Status:    models.ProjectActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.CreateProject(p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func createTestTask(t *testing.T, db *DB, projectID, title string, column models.KanbanColumn) *models.KanbanTask {
	t.Helper()
	task := &models.KanbanTask{
		ID:        "task-" + title,
		ProjectID: projectID,
		Title:     title,
		Column:    column,
		BlockedBy: []string{},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.CreateKanbanTask(task); err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestCreateProject_RoundTripsDescription(t *testing.T) {
	db := openTestDB(t)

	p := &models.Project{
		ID:          "p-desc",
		Name:        "checkout revamp",
		Description: "rebuild the checkout flow behind a feature flag",
		Status:      models.ProjectActive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.CreateProject(p); err != nil {
		t.Fatalf("create project: %v", err)
	}

	got, err := db.GetProject("p-desc")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Description != p.Description {
		t.Errorf("description = %q, want %q", got.Description, p.Description)
	}

	list, err := db.ListProjects("")
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(list) != 1 || list[0].Description != p.Description {
		t.Errorf("listed description = %q, want %q", list[0].Description, p.Description)
	}
}

func TestCreateKanbanTask_PositionIsDensePerColumn(t *testing.T) {
	db := openTestDB(t)
	p := createTestProject(t, db, "p1")

	t1 := createTestTask(t, db, p.ID, "a", models.ColumnBacklog)
	t2 := createTestTask(t, db, p.ID, "b", models.ColumnBacklog)
	t3 := createTestTask(t, db, p.ID, "c", models.ColumnInProgress)

	if t1.Position != 0 {
		t.Errorf("first backlog position = %d, want 0", t1.Position)
	}
	if t2.Position != 1 {
		t.Errorf("second backlog position = %d, want 1", t2.Position)
	}
	// Each column counts independently.
	if t3.Position != 0 {
		t.Errorf("first in_progress position = %d, want 0", t3.Position)
	}
}

func TestCreateKanbanTask_PositionIsPerProject(t *testing.T) {
	db := openTestDB(t)
	p1 := createTestProject(t, db, "p1")
	p2 := createTestProject(t, db, "p2")

	createTestTask(t, db, p1.ID, "a", models.ColumnBacklog)
	other := createTestTask(t, db, p2.ID, "b", models.ColumnBacklog)

	if other.Position != 0 {
		t.Errorf("other project's first position = %d, want 0", other.Position)
	}
}

func TestUpdateKanbanTask_PatchesOnlyProvidedFields(t *testing.T) {
	db := openTestDB(t)
	p := createTestProject(t, db, "p1")
	task := createTestTask(t, db, p.ID, "a", models.ColumnBacklog)

	desc := "updated description"
	got, err := db.UpdateKanbanTask(task.ID, KanbanTaskPatch{Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Description != desc {
		t.Errorf("description = %q, want %q", got.Description, desc)
	}
	if got.Title != "a" {
		t.Errorf("title changed unexpectedly: %q", got.Title)
	}
	if got.Column != models.ColumnBacklog {
		t.Errorf("column changed unexpectedly: %s", got.Column)
	}
}

func TestUpdateKanbanTask_NotFound(t *testing.T) {
	db := openTestDB(t)
	title := "x"
	if _, err := db.UpdateKanbanTask("missing", KanbanTaskPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReorderKanbanColumn_RewritesPositions(t *testing.T) {
	db := openTestDB(t)
	p := createTestProject(t, db, "p1")
	t1 := createTestTask(t, db, p.ID, "a", models.ColumnBacklog)
	t2 := createTestTask(t, db, p.ID, "b", models.ColumnBacklog)
	t3 := createTestTask(t, db, p.ID, "c", models.ColumnBacklog)

	order := []string{t2.ID, t3.ID, t1.ID}
	got, err := db.ReorderKanbanColumn(p.ID, models.ColumnBacklog, order)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	for i, task := range got {
		if task.ID != order[i] {
			t.Errorf("row %d = %s, want %s", i, task.ID, order[i])
		}
		if task.Position != i {
			t.Errorf("task %s position = %d, want %d", task.ID, task.Position, i)
		}
	}

	// Applying the same order again is a no-op that still succeeds.
	again, err := db.ReorderKanbanColumn(p.ID, models.ColumnBacklog, order)
	if err != nil {
		t.Fatalf("idempotent reorder: %v", err)
	}
	for i, task := range again {
		if task.Position != i {
			t.Errorf("after repeat, task %s position = %d, want %d", task.ID, task.Position, i)
		}
	}
}

func TestReorderKanbanColumn_UnknownIDFails(t *testing.T) {
	db := openTestDB(t)
	p := createTestProject(t, db, "p1")
	createTestTask(t, db, p.ID, "a", models.ColumnBacklog)

	if _, err := db.ReorderKanbanColumn(p.ID, models.ColumnBacklog, []string{"ghost"}); err == nil {
		t.Fatal("expected error for unknown task id")
	}
}

func TestSweepStaleAgents(t *testing.T) {
	db := openTestDB(t)

	statuses := []models.AgentStatus{
		models.AgentSpawning, models.AgentActive,
		models.AgentAwaitingInput, models.AgentDone,
	}
	for i, status := range statuses {
		a := &models.Agent{
			ID:        string(rune('a' + i)),
			Name:      "agent",
			Role:      models.RoleWorker,
			Status:    status,
			CreatedAt: time.Now().UTC(),
		}
		if err := db.CreateAgent(a); err != nil {
			t.Fatalf("create agent: %v", err)
		}
	}

	swept, err := db.SweepStaleAgents()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 3 {
		t.Errorf("swept = %d, want 3", swept)
	}

	agents, err := db.ListAgents("")
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	for _, a := range agents {
		if a.Status != models.AgentDone {
			t.Errorf("agent %s status = %s after sweep", a.ID, a.Status)
		}
	}
}

func TestDeleteProjectCascade_RemovesAllRows(t *testing.T) {
	db := openTestDB(t)
	p := createTestProject(t, db, "p1")
	keep := createTestProject(t, db, "p2")

	createTestTask(t, db, p.ID, "a", models.ColumnBacklog)
	keepTask := createTestTask(t, db, keep.ID, "b", models.ColumnBacklog)

	agent := &models.Agent{
		ID: "ag-1", Name: "w", Role: models.RoleWorker,
		Status: models.AgentActive, ProjectID: p.ID, CreatedAt: time.Now().UTC(),
	}
	if err := db.CreateAgent(agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	session := &models.CodingSession{
		ID: "cs-1", AgentID: agent.ID, SessionID: "s-1", ProjectID: p.ID,
		Status: models.SessionRunning, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := db.CreateCodingSession(session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := db.AppendSessionMessage(&models.SessionMessage{
		ID: "sm-1", SessionRowID: session.ID, Role: "agent", Content: "hi", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("append session message: %v", err)
	}

	steps := db.DeleteProjectCascade(p.ID)
	for _, step := range steps {
		if step.Err != nil {
			t.Errorf("cascade step %s: %v", step.Table, step.Err)
		}
	}

	if _, err := db.GetProject(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("project survived cascade: %v", err)
	}
	if _, err := db.GetAgent(agent.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("agent survived cascade: %v", err)
	}
	if _, err := db.GetCodingSession(agent.ID, "s-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("session survived cascade: %v", err)
	}
	msgs, err := db.ListSessionMessages(session.ID)
	if err != nil {
		t.Fatalf("list session messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("session messages survived cascade: %d", len(msgs))
	}

	// The other project is untouched.
	if _, err := db.GetKanbanTask(keepTask.ID); err != nil {
		t.Errorf("unrelated task affected: %v", err)
	}
}

func TestScheduledTask_RoundTripAndTouch(t *testing.T) {
	db := openTestDB(t)

	task := &models.ScheduledTask{
		ID:         "st-1",
		Name:       "standup",
		Message:    "post the standup summary",
		Mode:       models.ModeCOOPrompt,
		IntervalMs: 60000,
		Enabled:    true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.CreateScheduledTask(task); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := db.GetScheduledTask("st-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastRunAt != nil {
		t.Errorf("new task has LastRunAt set")
	}
	if got.Mode != models.ModeCOOPrompt || !got.Enabled {
		t.Errorf("round trip mismatch: %+v", got)
	}

	ranAt := time.Now().UTC().Truncate(time.Second)
	if err := db.TouchScheduledTask("st-1", ranAt); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err = db.GetScheduledTask("st-1")
	if err != nil {
		t.Fatalf("get after touch: %v", err)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(ranAt) {
		t.Errorf("LastRunAt = %v, want %v", got.LastRunAt, ranAt)
	}
}

func TestUpdateAgentStatus_NotFound(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpdateAgentStatus("ghost", models.AgentDone); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConversations_OperatorThreadUsesNullProject(t *testing.T) {
	db := openTestDB(t)
	p := createTestProject(t, db, "p1")

	if err := db.CreateConversation(&models.Conversation{
		ID: "c-op", Title: "operator", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create operator conversation: %v", err)
	}
	if err := db.CreateConversation(&models.Conversation{
		ID: "c-p", ProjectID: p.ID, Title: "project", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create project conversation: %v", err)
	}

	op, err := db.ListConversations("")
	if err != nil {
		t.Fatalf("list operator conversations: %v", err)
	}
	if len(op) != 1 || op[0].ID != "c-op" {
		t.Errorf("operator conversations = %+v", op)
	}

	proj, err := db.ListConversations(p.ID)
	if err != nil {
		t.Fatalf("list project conversations: %v", err)
	}
	if len(proj) != 1 || proj[0].ID != "c-p" {
		t.Errorf("project conversations = %+v", proj)
	}
}
