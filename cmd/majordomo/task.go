package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/majordomo/internal/config"
	"github.com/ShayCichocki/majordomo/internal/store"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

var (
	taskMode     string
	taskInterval time.Duration
	taskDisabled bool
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage custom scheduled tasks",
	Long: `Create, list, and remove the recurring tasks the scheduler fires.

A running control surface picks up changes the next time it starts the
task; edits made here while the server is running take effect on restart.`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openTaskDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tasks, err := db.ListScheduledTasks()
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No scheduled tasks.")
			return nil
		}
		for _, t := range tasks {
			state := color.GreenString("enabled")
			if !t.Enabled {
				state = color.YellowString("disabled")
			}
			last := "never"
			if t.LastRunAt != nil {
				last = t.LastRunAt.Local().Format("Jan 2 15:04")
			}
			fmt.Printf("%s  %-24s %-14s every %-10s last run %s  [%s]\n",
				t.ID[:8], t.Name, t.Mode,
				(time.Duration(t.IntervalMs) * time.Millisecond).String(),
				last, state)
		}
		return nil
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <name> <message>",
	Short: "Add a scheduled task",
	Long: `Add a recurring task.

Modes:
  coo_prompt      message is sent to the COO as chat; the reply surfaces
  coo_background  message runs without surfacing a reply
  notification    message is raised as a plain notification`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := models.TaskMode(taskMode)
		if !mode.Valid() {
			return fmt.Errorf("invalid mode %q", taskMode)
		}

		db, err := openTaskDB()
		if err != nil {
			return err
		}
		defer db.Close()

		t := &models.ScheduledTask{
			ID:         uuid.New().String(),
			Name:       args[0],
			Message:    args[1],
			Mode:       mode,
			IntervalMs: taskInterval.Milliseconds(),
			Enabled:    !taskDisabled,
			CreatedAt:  time.Now().UTC(),
		}
		if err := db.CreateScheduledTask(t); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		fmt.Printf("Created task %s (%s)\n", t.Name, t.ID[:8])
		return nil
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a scheduled task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openTaskDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := resolveTaskID(db, args[0])
		if err != nil {
			return err
		}
		if err := db.DeleteScheduledTask(id); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		fmt.Printf("Removed task %s\n", id[:8])
		return nil
	},
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Enable or disable a scheduled task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openTaskDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := resolveTaskID(db, args[0])
		if err != nil {
			return err
		}
		t, err := db.GetScheduledTask(id)
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		t.Enabled = !t.Enabled
		if err := db.UpdateScheduledTask(t); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		state := "disabled"
		if t.Enabled {
			state = "enabled"
		}
		fmt.Printf("Task %s is now %s\n", t.Name, state)
		return nil
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&taskMode, "mode", string(models.ModeCOOPrompt), "task mode: coo_prompt, coo_background, notification")
	taskAddCmd.Flags().DurationVar(&taskInterval, "every", time.Hour, "tick interval (minimum applies)")
	taskAddCmd.Flags().BoolVar(&taskDisabled, "disabled", false, "create the task disabled")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskRemoveCmd)
	taskCmd.AddCommand(taskToggleCmd)
}

// openTaskDB opens the configured database for task commands.
func openTaskDB() (*store.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return openDatabase(cfg)
}

// resolveTaskID accepts a full ID or an unambiguous prefix.
func resolveTaskID(db *store.DB, arg string) (string, error) {
	tasks, err := db.ListScheduledTasks()
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	var match string
	for _, t := range tasks {
		if t.ID == arg {
			return t.ID, nil
		}
		if len(arg) >= 4 && len(t.ID) >= len(arg) && t.ID[:len(arg)] == arg {
			if match != "" {
				return "", fmt.Errorf("ambiguous task id %q", arg)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no task matches %q", arg)
	}
	return match, nil
}
