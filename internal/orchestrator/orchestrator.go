package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/majordomo/internal/bridge"
	"github.com/ShayCichocki/majordomo/internal/bus"
	"github.com/ShayCichocki/majordomo/internal/llm"
	"github.com/ShayCichocki/majordomo/internal/store"
	"github.com/ShayCichocki/majordomo/internal/zone"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

// Orchestrator is the central coordinator. It owns the agent registry, routes
// chat through the COO, manages project lifecycles, and bridges coding
// sessions to the human operator.
type Orchestrator struct {
	db       *store.DB
	bus      *bus.Bus
	registry *AgentRegistry
	bridge   *bridge.Bridge
	zones    zone.Provisioner

	completer llm.Completer
	sink      EventSink
	logger    *DebugLogger
	cooModel  string
	now       func() time.Time

	// cooID is the agent ID of the COO spawned at startup.
	cooID string
	// assistantID is the agent ID of the admin assistant spawned at startup.
	assistantID string
}

// New creates an Orchestrator backed by the given database.
func New(db *store.DB, opts ...Option) *Orchestrator {
	o := &orchestratorOptions{}
	for _, opt := range opts {
		opt(o)
	}

	sink := o.sink
	if sink == nil {
		sink = NopSink{}
	}
	logger := o.logger
	if logger == nil {
		logger = NopLogger()
	}
	now := o.now
	if now == nil {
		now = time.Now
	}
	cooModel := o.cooModel
	if cooModel == "" {
		cooModel = "claude-sonnet-4-20250514"
	}

	setPackageLogger(logger)

	return &Orchestrator{
		db:        db,
		bus:       bus.New(db),
		registry:  NewAgentRegistry(),
		bridge:    bridge.New(o.permissionTimeout),
		zones:     o.zones,
		completer: o.completer,
		sink:      sink,
		logger:    logger,
		cooModel:  cooModel,
		now:       now,
	}
}

// Bus returns the message bus.
func (o *Orchestrator) Bus() *bus.Bus {
	return o.bus
}

// Bridge returns the coordination bridge.
func (o *Orchestrator) Bridge() *bridge.Bridge {
	return o.bridge
}

// Registry returns the live agent registry.
func (o *Orchestrator) Registry() *AgentRegistry {
	return o.registry
}

// COOAgentID returns the ID of the COO agent spawned at startup.
func (o *Orchestrator) COOAgentID() string {
	return o.cooID
}

// Start prepares the orchestrator for a new run. Any agents left over from a
// previous process are swept to done, then the standing COO and admin
// assistant are spawned fresh. Zone recovery for active projects runs in the
// background and never blocks startup.
func (o *Orchestrator) Start(ctx context.Context) error {
	swept, err := o.db.SweepStaleAgents()
	if err != nil {
		return fmt.Errorf("sweep stale agents: %w", err)
	}
	if swept > 0 {
		o.logger.Log("start: swept %d stale agents to done", swept)
	}

	coo, err := o.SpawnAgent(ctx, SpawnRequest{
		Name:  "COO",
		Role:  models.RoleCOO,
		Model: o.cooModel,
	})
	if err != nil {
		return fmt.Errorf("spawn coo: %w", err)
	}
	o.cooID = coo.ID

	assistant, err := o.SpawnAgent(ctx, SpawnRequest{
		Name:     "Admin Assistant",
		Role:     models.RoleAdminAssistant,
		ParentID: coo.ID,
		Model:    o.cooModel,
	})
	if err != nil {
		return fmt.Errorf("spawn admin assistant: %w", err)
	}
	o.assistantID = assistant.ID

	if o.zones != nil {
		go o.recoverZones()
	}

	return nil
}

// recoverZones re-registers a zone for every active project. Provisioning
// failures are logged and otherwise ignored.
func (o *Orchestrator) recoverZones() {
	projects, err := o.db.ListProjects(models.ProjectActive)
	if err != nil {
		o.logger.Log("zone recovery: list projects: %v", err)
		return
	}
	for _, p := range projects {
		if err := o.zones.AddZone(p.ID, p.Name); err != nil {
			o.logger.Log("zone recovery: project %s: %v", p.ID, err)
		}
	}
}

// Stop tears down live state. Registered agents are marked done in the
// database so the next boot sweep has nothing to do.
func (o *Orchestrator) Stop() {
	for _, a := range o.registry.AllAgents() {
		if a.Status.Terminal() {
			continue
		}
		if err := o.db.UpdateAgentStatus(a.ID, models.AgentDone); err != nil {
			o.logger.Log("stop: mark agent %s done: %v", a.ID, err)
		}
	}
	if o.zones != nil {
		if fp, ok := o.zones.(*zone.FileProvisioner); ok {
			fp.Close()
		}
	}
}

// SpawnRequest describes a new agent to create.
type SpawnRequest struct {
	Name       string
	Role       models.AgentRole
	ParentID   string
	ProjectID  string
	Model      string
	Provider   string
	Appearance string
}

// SpawnAgent creates an agent, persists it, and registers it as live.
// The agent passes through spawning before settling at active so listeners
// see the full lifecycle.
func (o *Orchestrator) SpawnAgent(ctx context.Context, req SpawnRequest) (*models.Agent, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("invalid agent role %q", req.Role)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}

	a := &models.Agent{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Role:       req.Role,
		Status:     models.AgentSpawning,
		ParentID:   req.ParentID,
		ProjectID:  req.ProjectID,
		Model:      req.Model,
		Provider:   req.Provider,
		Appearance: req.Appearance,
		CreatedAt:  o.now().UTC(),
	}

	if err := o.db.CreateAgent(a); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	o.registry.Register(a)
	o.emit(Event{Type: EventAgentSpawned, AgentID: a.ID, ProjectID: a.ProjectID, Agent: a})

	if err := o.SetAgentStatus(a.ID, models.AgentActive); err != nil {
		return nil, err
	}

	o.logger.Log("spawned agent %s (%s, role=%s, project=%s)", a.ID, a.Name, a.Role, a.ProjectID)
	return a, nil
}

// SetAgentStatus transitions an agent to the given status, enforcing the
// lifecycle rules. The database and registry are updated together and a
// status-change event is emitted.
func (o *Orchestrator) SetAgentStatus(agentID string, status models.AgentStatus) error {
	a := o.registry.GetAgent(agentID)
	if a == nil {
		var err error
		a, err = o.db.GetAgent(agentID)
		if err != nil {
			return fmt.Errorf("get agent %s: %w", agentID, err)
		}
	}

	if !a.Status.CanTransitionTo(status) {
		return fmt.Errorf("agent %s: illegal transition %s -> %s", agentID, a.Status, status)
	}

	if err := o.db.UpdateAgentStatus(agentID, status); err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	a.Status = status
	o.registry.Register(a)

	o.emit(Event{Type: EventAgentStatusChanged, AgentID: agentID, ProjectID: a.ProjectID, Agent: a})
	return nil
}

// DestroyAgent transitions an agent to done and drops it from the live
// registry. The row stays in the database for history.
func (o *Orchestrator) DestroyAgent(agentID string) error {
	a := o.registry.GetAgent(agentID)
	if a == nil {
		var err error
		a, err = o.db.GetAgent(agentID)
		if err != nil {
			return fmt.Errorf("get agent %s: %w", agentID, err)
		}
	}

	if !a.Status.Terminal() {
		if err := o.db.UpdateAgentStatus(agentID, models.AgentDone); err != nil {
			return fmt.Errorf("update agent status: %w", err)
		}
		a.Status = models.AgentDone
	}
	o.registry.Unregister(agentID)

	o.emit(Event{Type: EventAgentDestroyed, AgentID: agentID, ProjectID: a.ProjectID, Agent: a})
	o.logger.Log("destroyed agent %s", agentID)
	return nil
}

// CreateProject persists a new project and provisions its workspace zone in
// the background.
func (o *Orchestrator) CreateProject(name, description string) (*models.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}

	p := &models.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Status:      models.ProjectActive,
		CreatedAt:   o.now().UTC(),
	}
	if err := o.db.CreateProject(p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	if o.zones != nil {
		go func() {
			if err := o.zones.AddZone(p.ID, p.Name); err != nil {
				o.logger.Log("provision zone for project %s: %v", p.ID, err)
			}
		}()
	}

	o.emit(Event{Type: EventProjectCreated, ProjectID: p.ID})
	return p, nil
}

// ArchiveProject marks a project archived without touching its data.
func (o *Orchestrator) ArchiveProject(projectID string) error {
	if err := o.db.UpdateProjectStatus(projectID, models.ProjectArchived); err != nil {
		return fmt.Errorf("archive project: %w", err)
	}
	o.emit(Event{Type: EventProjectUpdated, ProjectID: projectID})
	return nil
}

// DeleteProject tears a project down: live agents are destroyed first, then
// every dependent table is cleared. Each cascade step is attempted even when
// an earlier one fails; failures are logged, not fatal.
func (o *Orchestrator) DeleteProject(projectID string) error {
	if _, err := o.db.GetProject(projectID); err != nil {
		return fmt.Errorf("get project %s: %w", projectID, err)
	}

	for _, a := range o.registry.ByProject(projectID) {
		if err := o.DestroyAgent(a.ID); err != nil {
			o.logger.Log("delete project %s: destroy agent %s: %v", projectID, a.ID, err)
		}
	}

	steps := o.db.DeleteProjectCascade(projectID)
	failed := 0
	for _, step := range steps {
		if step.Err != nil {
			failed++
			o.logger.Log("delete project %s: cascade %s: %v", projectID, step.Table, step.Err)
		}
	}

	if o.zones != nil {
		if err := o.zones.RemoveZone(projectID); err != nil {
			o.logger.Log("delete project %s: remove zone: %v", projectID, err)
		}
	}

	o.emit(Event{Type: EventProjectDeleted, ProjectID: projectID})
	if failed > 0 {
		return fmt.Errorf("project %s deleted with %d failed cascade steps", projectID, failed)
	}
	return nil
}

// ClientSnapshot is the state pushed to a newly connected client.
type ClientSnapshot struct {
	Agents       []*models.Agent   `json:"agents"`
	PseudoAgents []*models.Agent   `json:"pseudo_agents"`
	Projects     []*models.Project `json:"projects"`
}

// PseudoAgentSource lists pseudo-agents for client snapshots. The custom
// scheduler implements it for scheduled tasks.
type PseudoAgentSource interface {
	PseudoAgents() ([]*models.Agent, error)
}

// Snapshot assembles the current world state for a connecting client: the
// live agents, any pseudo-agents, and the active projects.
func (o *Orchestrator) Snapshot(pseudo PseudoAgentSource) (*ClientSnapshot, error) {
	projects, err := o.db.ListProjects(models.ProjectActive)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	snap := &ClientSnapshot{
		Agents:   o.registry.AllAgents(),
		Projects: projects,
	}
	if pseudo != nil {
		pa, err := pseudo.PseudoAgents()
		if err != nil {
			o.logger.Log("snapshot: pseudo agents: %v", err)
		} else {
			snap.PseudoAgents = pa
		}
	}
	return snap, nil
}

// emit forwards an event to the sink with a timestamp attached.
func (o *Orchestrator) emit(ev Event) {
	ev.Timestamp = o.now().UTC()
	o.sink.Emit(ev)
}
