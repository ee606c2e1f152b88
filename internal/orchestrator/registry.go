package orchestrator

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/majordomo/pkg/models"
)

// AgentRegistry holds the live view of running agents.
// It provides thread-safe storage and retrieval of agent information; the
// database remains the source of truth across restarts.
type AgentRegistry struct {
	// agents maps agent IDs to agent models.
	agents map[string]*models.Agent
	// mu protects all fields.
	mu sync.RWMutex
}

// NewAgentRegistry creates a new AgentRegistry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{
		agents: make(map[string]*models.Agent),
	}
}

// Register adds an agent to the registry.
func (r *AgentRegistry) Register(a *models.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
}

// GetAgent retrieves an agent by ID.
// Returns nil if the agent is not registered.
func (r *AgentRegistry) GetAgent(agentID string) *models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[agentID]
}

// SetStatus updates the status of a registered agent.
// Returns false if the agent is not registered.
func (r *AgentRegistry) SetStatus(agentID string, status models.AgentStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return false
	}
	a.Status = status
	return true
}

// Unregister removes an agent from the registry.
func (r *AgentRegistry) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentID)
}

// AllAgents returns a copy of all registered agents, sorted by creation time
// so repeated snapshots list agents in a stable order.
func (r *AgentRegistry) AllAgents() []*models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*models.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].ID < agents[j].ID
		}
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
	return agents
}

// ByProject returns all registered agents belonging to the given project.
func (r *AgentRegistry) ByProject(projectID string) []*models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var agents []*models.Agent
	for _, a := range r.agents {
		if a.ProjectID == projectID {
			agents = append(agents, a)
		}
	}
	return agents
}

// Count returns the number of registered agents.
func (r *AgentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
