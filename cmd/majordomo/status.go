package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/majordomo/internal/bus"
	"github.com/ShayCichocki/majordomo/internal/config"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show projects, agents, and recent activity",
	Long: `Display the current state of the Majordomo database.

Shows:
  - Active projects and their kanban counts
  - Agents and their lifecycle status
  - Scheduled tasks
  - Recent messages`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	projects, err := db.ListProjects(models.ProjectActive)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	fmt.Println(color.New(color.Bold).Sprint("Projects"))
	if len(projects) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range projects {
		tasks, err := db.ListKanbanTasks(p.ID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		counts := map[models.KanbanColumn]int{}
		for _, t := range tasks {
			counts[t.Column]++
		}
		fmt.Printf("  %s  backlog:%d in_progress:%d done:%d\n",
			color.CyanString(p.Name),
			counts[models.ColumnBacklog], counts[models.ColumnInProgress], counts[models.ColumnDone])
	}

	agents, err := db.ListAgents("")
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	fmt.Println()
	fmt.Println(color.New(color.Bold).Sprint("Agents"))
	live := 0
	for _, a := range agents {
		if a.Status == models.AgentDone {
			continue
		}
		live++
		fmt.Printf("  %s  %s [%s]\n", a.ID[:8], a.Name, statusColor(a.Status))
	}
	if live == 0 {
		fmt.Println("  (none live; start with 'majordomo')")
	}

	tasks, err := db.ListScheduledTasks()
	if err != nil {
		return fmt.Errorf("list scheduled tasks: %w", err)
	}
	fmt.Println()
	fmt.Println(color.New(color.Bold).Sprint("Scheduled tasks"))
	if len(tasks) == 0 {
		fmt.Println("  (none)")
	}
	for _, t := range tasks {
		state := color.GreenString("enabled")
		if !t.Enabled {
			state = color.YellowString("disabled")
		}
		fmt.Printf("  %s  %s  every %dms  [%s]\n", t.ID[:8], t.Name, t.IntervalMs, state)
	}

	history, err := mustBus(db).History(bus.HistoryFilter{Limit: 5})
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	fmt.Println()
	fmt.Println(color.New(color.Bold).Sprint("Recent messages"))
	if len(history) == 0 {
		fmt.Println("  (none)")
	}
	for _, m := range history {
		from := m.FromAgentID
		if from == "" {
			from = "you"
		}
		fmt.Printf("  %s  %s: %s\n", m.CreatedAt.Local().Format("Jan 2 15:04"), from, truncate(m.Content, 60))
	}
	return nil
}

// statusColor renders an agent status with its conventional color.
func statusColor(s models.AgentStatus) string {
	switch s {
	case models.AgentActive:
		return color.GreenString(string(s))
	case models.AgentAwaitingInput:
		return color.YellowString(string(s))
	case models.AgentSpawning:
		return color.CyanString(string(s))
	default:
		return string(s)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
