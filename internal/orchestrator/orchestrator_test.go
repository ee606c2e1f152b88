package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/majordomo/internal/bridge"
	"github.com/ShayCichocki/majordomo/internal/bus"
	"github.com/ShayCichocki/majordomo/internal/store"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// captureSink records emitted events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) byType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// fakeCompleter returns a canned reply.
type fakeCompleter struct {
	reply string
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.reply, nil
}

func TestStart_SweepsStaleAgentsAndSpawnsStandingAgents(t *testing.T) {
	db := openTestDB(t)

	// A leftover from a crashed process.
	stale := &models.Agent{
		ID:        "stale-1",
		Name:      "leftover",
		Role:      models.RoleWorker,
		Status:    models.AgentActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.CreateAgent(stale); err != nil {
		t.Fatalf("create stale agent: %v", err)
	}

	o := New(db)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got, err := db.GetAgent("stale-1")
	if err != nil {
		t.Fatalf("get stale agent: %v", err)
	}
	if got.Status != models.AgentDone {
		t.Errorf("stale agent status = %s, want done", got.Status)
	}

	if o.COOAgentID() == "" {
		t.Fatal("no COO spawned")
	}
	coo := o.Registry().GetAgent(o.COOAgentID())
	if coo == nil || coo.Status != models.AgentActive {
		t.Errorf("COO not active in registry: %+v", coo)
	}
	if o.Registry().Count() != 2 {
		t.Errorf("registry count = %d, want 2 (COO + assistant)", o.Registry().Count())
	}
}

func TestSpawnAgent_EmitsLifecycleEvents(t *testing.T) {
	db := openTestDB(t)
	sink := &captureSink{}
	o := New(db, WithEventSink(sink))

	a, err := o.SpawnAgent(context.Background(), SpawnRequest{
		Name: "worker-1",
		Role: models.RoleWorker,
	})
	if err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}
	if a.Status != models.AgentActive {
		t.Errorf("status = %s, want active", a.Status)
	}

	if n := len(sink.byType(EventAgentSpawned)); n != 1 {
		t.Errorf("spawned events = %d, want 1", n)
	}
	changes := sink.byType(EventAgentStatusChanged)
	if len(changes) != 1 || changes[0].Agent.Status != models.AgentActive {
		t.Errorf("unexpected status-change events: %+v", changes)
	}
}

func TestSpawnAgent_RejectsInvalidRole(t *testing.T) {
	o := New(openTestDB(t))
	if _, err := o.SpawnAgent(context.Background(), SpawnRequest{Name: "x", Role: "ceo"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestSetAgentStatus_RejectsIllegalTransition(t *testing.T) {
	db := openTestDB(t)
	o := New(db)

	a, err := o.SpawnAgent(context.Background(), SpawnRequest{Name: "w", Role: models.RoleWorker})
	if err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}
	if err := o.DestroyAgent(a.ID); err != nil {
		t.Fatalf("DestroyAgent: %v", err)
	}
	if err := o.SetAgentStatus(a.ID, models.AgentActive); err == nil {
		t.Fatal("expected error transitioning out of done")
	}
}

func TestCreateProject_PersistsDescription(t *testing.T) {
	db := openTestDB(t)
	o := New(db)

	p, err := o.CreateProject("alpha", "ship the onboarding overhaul")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	got, err := db.GetProject(p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Description != "ship the onboarding overhaul" {
		t.Errorf("description = %q, want %q", got.Description, "ship the onboarding overhaul")
	}
}

func TestDeleteProject_CascadesAndDestroysAgents(t *testing.T) {
	db := openTestDB(t)
	sink := &captureSink{}
	o := New(db, WithEventSink(sink))

	p, err := o.CreateProject("alpha", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	a, err := o.SpawnAgent(context.Background(), SpawnRequest{
		Name: "lead", Role: models.RoleTeamLead, ProjectID: p.ID,
	})
	if err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}
	if _, err := o.CreateTask(p.ID, "first", "", models.ColumnBacklog); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := o.SendMessage(models.BusMessage{
		FromAgentID: a.ID, Content: "hello", ProjectID: p.ID,
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := o.DeleteProject(p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	if _, err := db.GetProject(p.ID); err != store.ErrNotFound {
		t.Errorf("project still present: %v", err)
	}
	tasks, err := db.ListKanbanTasks(p.ID)
	if err != nil {
		t.Fatalf("ListKanbanTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("tasks remain after cascade: %d", len(tasks))
	}
	history, err := o.Bus().History(bus.HistoryFilter{ProjectID: p.ID})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("messages remain after cascade: %d", len(history))
	}
	if o.Registry().GetAgent(a.ID) != nil {
		t.Error("agent still live after project delete")
	}
	if len(sink.byType(EventProjectDeleted)) != 1 {
		t.Error("missing project-deleted event")
	}
}

func TestHandleChat_StoresMessageAndReplies(t *testing.T) {
	db := openTestDB(t)
	fc := &fakeCompleter{reply: "on it"}
	o := New(db, WithCompleter(fc))
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	result, err := o.HandleChat(context.Background(), "schedule the weekly review", "", "")
	if err != nil {
		t.Fatalf("HandleChat: %v", err)
	}
	if result.Message == nil || result.Message.FromAgentID != "" {
		t.Errorf("operator message not stored as human: %+v", result.Message)
	}
	if result.Reply == nil || result.Reply.Content != "on it" {
		t.Errorf("unexpected reply: %+v", result.Reply)
	}
	if result.Reply.FromAgentID != o.COOAgentID() {
		t.Errorf("reply attributed to %q, want COO", result.Reply.FromAgentID)
	}
	if fc.calls != 1 {
		t.Errorf("completer calls = %d, want 1", fc.calls)
	}
}

func TestHandleChat_ResolvesMostRecentPermission(t *testing.T) {
	db := openTestDB(t)
	fc := &fakeCompleter{reply: "nope"}
	o := New(db, WithCompleter(fc), WithPermissionTimeout(time.Minute))
	b := o.Bridge()

	p1 := bridge.PermissionKey{AgentID: "agent-a", PermissionID: "perm-1"}
	p2 := bridge.PermissionKey{AgentID: "agent-b", PermissionID: "perm-2"}

	got1 := make(chan bridge.Decision, 1)
	go func() {
		d, _ := b.AwaitPermission(context.Background(), p1)
		got1 <- d
	}()
	waitFor(t, func() bool { return b.HasPendingPermission(p1) })

	got2 := make(chan bridge.Decision, 1)
	go func() {
		d, _ := b.AwaitPermission(context.Background(), p2)
		got2 <- d
	}()
	waitFor(t, func() bool {
		key, ok := b.ActivePermission()
		return ok && key == p2
	})

	result, err := o.HandleChat(context.Background(), "allow", "", "")
	if err != nil {
		t.Fatalf("HandleChat: %v", err)
	}
	if result.ResolvedPermission == nil || *result.ResolvedPermission != p2 {
		t.Fatalf("resolved %+v, want %v", result.ResolvedPermission, p2)
	}
	if d := <-got2; d != bridge.DecisionOnce {
		t.Errorf("p2 decision = %s, want once", d)
	}

	// The older request is untouched and still answerable.
	if !b.HasPendingPermission(p1) {
		t.Fatal("p1 no longer pending")
	}
	if err := b.ResolvePermission(p1, bridge.DecisionReject); err != nil {
		t.Fatalf("resolve p1: %v", err)
	}
	if d := <-got1; d != bridge.DecisionReject {
		t.Errorf("p1 decision = %s, want reject", d)
	}

	// The decision text never reached the COO.
	if fc.calls != 0 {
		t.Errorf("completer calls = %d, want 0", fc.calls)
	}

	// A confirmation landed in the thread.
	history, err := o.Bus().History(bus.HistoryFilter{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	found := false
	for _, m := range history {
		if m.Type == models.MessageSystem && m.FromAgentID == "agent-b" {
			found = true
		}
	}
	if !found {
		t.Error("no confirmation message in history")
	}
}

func TestPromptCOOTask_DecisionWordLeavesPermissionPending(t *testing.T) {
	db := openTestDB(t)
	fc := &fakeCompleter{reply: "noted"}
	o := New(db, WithCompleter(fc), WithPermissionTimeout(time.Minute))
	b := o.Bridge()

	key := bridge.PermissionKey{AgentID: "agent-a", PermissionID: "perm-1"}
	got := make(chan bridge.Decision, 1)
	go func() {
		d, _ := b.AwaitPermission(context.Background(), key)
		got <- d
	}()
	waitFor(t, func() bool { return b.HasPendingPermission(key) })

	task := &models.ScheduledTask{
		ID:      "task-1",
		Name:    "morning check-in",
		Message: "allow",
		Mode:    models.ModeCOOPrompt,
	}
	if err := o.TaskActions().PromptCOO(context.Background(), task); err != nil {
		t.Fatalf("PromptCOO: %v", err)
	}

	// The task text reached the COO as ordinary chat.
	if fc.calls != 1 {
		t.Errorf("completer calls = %d, want 1", fc.calls)
	}

	// The permission is still the operator's to decide.
	if !b.HasPendingPermission(key) {
		t.Fatal("permission resolved by a scheduled task message")
	}
	if err := b.ResolvePermission(key, bridge.DecisionReject); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d := <-got; d != bridge.DecisionReject {
		t.Errorf("decision = %s, want reject", d)
	}
}

func TestHandleChat_DecisionWordWithoutPendingPermissionIsChat(t *testing.T) {
	db := openTestDB(t)
	o := New(db)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	result, err := o.HandleChat(context.Background(), "yes", "", "")
	if err != nil {
		t.Fatalf("HandleChat: %v", err)
	}
	if result.ResolvedPermission != nil {
		t.Error("resolved a permission with none pending")
	}
	if result.Message == nil {
		t.Error("message not stored")
	}
}

func TestEndCodingSession_CleansUpBridgeState(t *testing.T) {
	db := openTestDB(t)
	o := New(db, WithPermissionTimeout(time.Minute))

	a, err := o.SpawnAgent(context.Background(), SpawnRequest{Name: "coder", Role: models.RoleCodingAgent})
	if err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}
	s, err := o.StartCodingSession(a.ID, "sess-1", "")
	if err != nil {
		t.Fatalf("StartCodingSession: %v", err)
	}

	aborted := make(chan bridge.Response, 1)
	go func() {
		resp, _ := o.AwaitAgentInput(context.Background(), a.ID, "sess-1", "which branch?")
		aborted <- resp
	}()
	waitFor(t, func() bool {
		return o.Bridge().HasPendingInput(bridge.ResponseKey{AgentID: a.ID, SessionID: "sess-1"})
	})

	if err := o.EndCodingSession(a.ID, "sess-1", models.SessionCompleted); err != nil {
		t.Fatalf("EndCodingSession: %v", err)
	}

	resp := <-aborted
	if !resp.Aborted {
		t.Error("input wait not aborted")
	}

	got, err := db.GetCodingSession(a.ID, "sess-1")
	if err != nil {
		t.Fatalf("GetCodingSession: %v", err)
	}
	if got.Status != models.SessionCompleted {
		t.Errorf("session status = %s, want completed", got.Status)
	}
	if got.ID != s.ID {
		t.Errorf("session row mismatch: %s vs %s", got.ID, s.ID)
	}

	live := o.Registry().GetAgent(a.ID)
	if live == nil || live.Status != models.AgentIdle {
		t.Errorf("agent not idle after session end: %+v", live)
	}
}

func TestEndCodingSession_RequiresTerminalStatus(t *testing.T) {
	db := openTestDB(t)
	o := New(db)
	if err := o.EndCodingSession("a", "s", models.SessionRunning); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestReorderColumn_RebroadcastsPersistedOrder(t *testing.T) {
	db := openTestDB(t)
	sink := &captureSink{}
	o := New(db, WithEventSink(sink))

	p, err := o.CreateProject("beta", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	t1, _ := o.CreateTask(p.ID, "one", "", models.ColumnBacklog)
	t2, _ := o.CreateTask(p.ID, "two", "", models.ColumnBacklog)
	t3, _ := o.CreateTask(p.ID, "three", "", models.ColumnBacklog)

	tasks, err := o.ReorderColumn(p.ID, models.ColumnBacklog, []string{t3.ID, t1.ID, t2.ID})
	if err != nil {
		t.Fatalf("ReorderColumn: %v", err)
	}
	wantOrder := []string{t3.ID, t1.ID, t2.ID}
	for i, task := range tasks {
		if task.ID != wantOrder[i] {
			t.Errorf("position %d = %s, want %s", i, task.ID, wantOrder[i])
		}
		if task.Position != i {
			t.Errorf("task %s position = %d, want %d", task.ID, task.Position, i)
		}
	}

	// One update event per row in the column.
	if n := len(sink.byType(EventTaskUpdated)); n != 3 {
		t.Errorf("task-updated events = %d, want 3", n)
	}
}

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1)
	e.Emit(Event{Type: EventMessage})
	e.Emit(Event{Type: EventMessage}) // buffer full, dropped after timeout

	if got := e.DroppedCount(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	select {
	case <-e.Events():
	default:
		t.Error("buffered event missing")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}
