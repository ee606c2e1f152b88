// Package tui provides the terminal control surface for Majordomo.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/majordomo/internal/bridge"
	"github.com/ShayCichocki/majordomo/internal/orchestrator"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

// eventMsg wraps one orchestrator event for the update loop.
type eventMsg struct {
	event orchestrator.Event
}

// eventsClosedMsg signals that the orchestrator event stream has ended.
type eventsClosedMsg struct{}

// chatDoneMsg carries the outcome of a submitted chat message.
type chatDoneMsg struct {
	result *orchestrator.ChatResult
	err    error
}

// chatLine is one rendered line of the operator thread.
type chatLine struct {
	from string
	kind models.MessageType
	text string
	at   time.Time
}

// pendingPermission is the permission request currently shown in the banner.
type pendingPermission struct {
	key    bridge.PermissionKey
	action string
}

// App is the main bubbletea model for the operator control surface.
type App struct {
	orch   *orchestrator.Orchestrator
	events <-chan orchestrator.Event
	// pseudo supplies scheduled-task pseudo-agents for the agent board.
	pseudo orchestrator.PseudoAgentSource

	input *ChatInput

	// chat is the operator thread, newest last.
	chat []chatLine
	// agents is the live agent board.
	agents []*models.Agent
	// permission is the request awaiting a decision, if any.
	permission *pendingPermission

	width    int
	height   int
	sending  bool
	errText  string
	quitting bool
}

// New creates the control surface bound to an orchestrator and its event
// stream. The agent board is seeded from a snapshot so a fresh client sees
// the current world, pseudo-agents included, before any event arrives.
func New(orch *orchestrator.Orchestrator, events <-chan orchestrator.Event, pseudo orchestrator.PseudoAgentSource) *App {
	a := &App{
		orch:   orch,
		events: events,
		pseudo: pseudo,
		input:  NewChatInput(),
	}
	if snap, err := orch.Snapshot(pseudo); err == nil {
		a.agents = append(a.agents, snap.Agents...)
		a.agents = append(a.agents, snap.PseudoAgents...)
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.input.Focus(), a.waitForEvent())
}

// waitForEvent blocks on the orchestrator event channel.
func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-a.events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.quitting = true
			return a, tea.Quit

		case "ctrl+y":
			// Quick-approve the pending permission once.
			return a, a.decideCmd(bridge.DecisionOnce)

		case "ctrl+n":
			return a, a.decideCmd(bridge.DecisionReject)

		case "enter":
			text := a.input.Take()
			if text == "" || a.sending {
				return a, nil
			}
			a.sending = true
			a.errText = ""
			return a, a.sendChatCmd(text)
		}

		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.SetWidth(msg.Width)

	case eventMsg:
		a.handleEvent(msg.event)
		return a, a.waitForEvent()

	case eventsClosedMsg:
		a.quitting = true
		return a, tea.Quit

	case chatDoneMsg:
		a.sending = false
		if msg.err != nil {
			a.errText = msg.err.Error()
		}
		return a, nil
	}

	return a, nil
}

// sendChatCmd submits operator text. Decision words resolve the active
// permission inside HandleChat; everything else goes to the COO.
func (a *App) sendChatCmd(text string) tea.Cmd {
	orch := a.orch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		result, err := orch.HandleChat(ctx, text, "", "")
		return chatDoneMsg{result: result, err: err}
	}
}

// decideCmd answers the pending permission via the explicit path.
func (a *App) decideCmd(decision bridge.Decision) tea.Cmd {
	if a.permission == nil {
		return nil
	}
	key := a.permission.key
	orch := a.orch
	return func() tea.Msg {
		err := orch.SubmitPermissionDecision(key.AgentID, key.PermissionID, decision)
		return chatDoneMsg{err: err}
	}
}

// handleEvent folds one orchestrator event into the view state.
func (a *App) handleEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventAgentSpawned, orchestrator.EventAgentStatusChanged:
		if ev.Agent != nil {
			a.upsertAgent(ev.Agent)
		}

	case orchestrator.EventAgentDestroyed:
		a.removeAgent(ev.AgentID)

	case orchestrator.EventMessage:
		if ev.Message != nil {
			a.appendMessage(ev.Message)
		}

	case orchestrator.EventNotification:
		a.chat = append(a.chat, chatLine{
			from: a.agentName(ev.AgentID),
			kind: models.MessageNotification,
			text: ev.Text,
			at:   ev.Timestamp,
		})

	case orchestrator.EventPermissionRequested:
		a.permission = &pendingPermission{
			key:    bridge.PermissionKey{AgentID: ev.AgentID, PermissionID: ev.PermissionID},
			action: ev.Text,
		}

	case orchestrator.EventSessionEnded:
		if a.permission != nil && a.permission.key.AgentID == ev.AgentID {
			a.permission = nil
		}
	}

	// Clear the banner once the bridge no longer holds the request, whether
	// it was answered, timed out, or swept by session end.
	if a.permission != nil && !a.orch.Bridge().HasPendingPermission(a.permission.key) {
		a.permission = nil
	}
}

func (a *App) appendMessage(msg *models.BusMessage) {
	a.chat = append(a.chat, chatLine{
		from: a.agentName(msg.FromAgentID),
		kind: msg.Type,
		text: msg.Content,
		at:   msg.CreatedAt,
	})
	if len(a.chat) > 500 {
		a.chat = a.chat[len(a.chat)-500:]
	}
}

func (a *App) upsertAgent(agent *models.Agent) {
	for i, existing := range a.agents {
		if existing.ID == agent.ID {
			a.agents[i] = agent
			return
		}
	}
	a.agents = append(a.agents, agent)
}

func (a *App) removeAgent(id string) {
	for i, existing := range a.agents {
		if existing.ID == id {
			a.agents = append(a.agents[:i], a.agents[i+1:]...)
			return
		}
	}
}

// agentName resolves an agent ID to its display name. Empty means the
// operator.
func (a *App) agentName(id string) string {
	if id == "" {
		return "you"
	}
	for _, agent := range a.agents {
		if agent.ID == id {
			return agent.Name
		}
	}
	if strings.HasPrefix(id, "scheduled-task:") {
		return "scheduler"
	}
	return id
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	b.WriteString(a.viewAgents())
	b.WriteString("\n")
	b.WriteString(a.viewChat())
	b.WriteString("\n")
	if a.permission != nil {
		b.WriteString(a.viewPermission())
		b.WriteString("\n")
	}
	b.WriteString(a.input.View())
	b.WriteString("\n")
	b.WriteString(a.viewFooter())
	return b.String()
}

func (a *App) viewAgents() string {
	if len(a.agents) == 0 {
		return dimStyle.Render("No agents")
	}

	var parts []string
	for _, agent := range a.agents {
		label := fmt.Sprintf("%s [%s]", agent.Name, agent.Status)
		if agent.Pseudo {
			label += " *"
		}
		parts = append(parts, agentStyle(agent.Status).Render(label))
	}
	return strings.Join(parts, "  ")
}

func (a *App) viewChat() string {
	visible := a.chatHeight()
	start := 0
	if len(a.chat) > visible {
		start = len(a.chat) - visible
	}

	var b strings.Builder
	for _, line := range a.chat[start:] {
		ts := line.at.Local().Format("15:04")
		switch line.kind {
		case models.MessageSystem:
			fmt.Fprintf(&b, "%s %s\n", dimStyle.Render(ts), systemStyle.Render(line.text))
		case models.MessageNotification:
			fmt.Fprintf(&b, "%s %s\n", dimStyle.Render(ts), notifyStyle.Render("! "+line.text))
		default:
			fmt.Fprintf(&b, "%s %s %s\n", dimStyle.Render(ts), fromStyle.Render(line.from+":"), line.text)
		}
	}
	return b.String()
}

func (a *App) viewPermission() string {
	p := a.permission
	return permissionStyle.Render(fmt.Sprintf(
		"%s wants permission: %s\n(type allow/always/deny, or ctrl+y / ctrl+n)",
		a.agentName(p.key.AgentID), p.action,
	))
}

func (a *App) viewFooter() string {
	if a.errText != "" {
		return errorStyle.Render(a.errText)
	}
	if a.sending {
		return dimStyle.Render("thinking...")
	}
	return dimStyle.Render("enter to send | ctrl+c to quit")
}

// chatHeight is how many chat lines fit between the agent board and input.
func (a *App) chatHeight() int {
	h := a.height - 8
	if h < 5 {
		return 5
	}
	return h
}

// Run starts the control surface and blocks until it exits.
func Run(orch *orchestrator.Orchestrator, events <-chan orchestrator.Event, pseudo orchestrator.PseudoAgentSource) error {
	app := New(orch, events, pseudo)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
