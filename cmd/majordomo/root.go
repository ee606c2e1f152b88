package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/majordomo/internal/bus"
	"github.com/ShayCichocki/majordomo/internal/config"
	"github.com/ShayCichocki/majordomo/internal/llm"
	"github.com/ShayCichocki/majordomo/internal/orchestrator"
	"github.com/ShayCichocki/majordomo/internal/scheduler"
	"github.com/ShayCichocki/majordomo/internal/store"
	"github.com/ShayCichocki/majordomo/internal/tui"
	"github.com/ShayCichocki/majordomo/internal/zone"
)

var rootCmd = &cobra.Command{
	Use:   "majordomo",
	Short: "Personal agent orchestration platform",
	Long: `Majordomo runs a COO agent that coordinates a hierarchy of project
agents on your behalf: chat with the COO, track kanban boards per project,
answer coding agents when they need input or permission, and let scheduled
tasks handle the recurring chores.

With no arguments, launches the interactive control surface.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(versionCmd)
}

// openDatabase opens and migrates the configured database.
func openDatabase(cfg *config.Config) (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		path = store.DefaultPath()
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// runServe boots the full stack and hands the terminal to the control
// surface.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := orchestrator.NewDebugLoggerForDataDir(filepath.Dir(db.Path()))
	defer logger.Close()

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithPermissionTimeout(cfg.Coordination.PermissionTimeout),
		orchestrator.WithCOOModel(cfg.Anthropic.Model),
	}

	completer, err := llm.NewClient(llm.ClientConfig{
		Model:         cfg.Anthropic.Model,
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		logger.Log("llm client unavailable, chat replies disabled: %v", err)
	} else {
		opts = append(opts, orchestrator.WithCompleter(completer))
	}

	zonePath := cfg.Zones.LayoutPath
	if zonePath == "" {
		zonePath = filepath.Join(filepath.Dir(db.Path()), "zones.yaml")
	}
	zones, err := zone.NewFileProvisioner(zonePath)
	if err != nil {
		logger.Log("zone provisioner unavailable: %v", err)
	} else {
		opts = append(opts, orchestrator.WithZoneProvisioner(zones))
	}

	emitter := orchestrator.NewEventEmitter(256)
	opts = append(opts, orchestrator.WithEventSink(emitter))

	orch := orchestrator.New(db, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	defer orch.Stop()

	// System jobs run on fixed cadences; intervals stay adjustable at
	// runtime through the registry.
	registry := scheduler.NewRegistry(logger.Log)
	if err := registry.Register("reminders", scheduler.NewReminderJob(db, orch.Bus(), 24*time.Hour), scheduler.Metadata{
		Name:            "Stale task reminders",
		Description:     "Nudges about in-progress tasks that have not moved",
		DefaultInterval: time.Hour,
		MinInterval:     5 * time.Minute,
		Enabled:         true,
	}); err != nil {
		return fmt.Errorf("register reminders job: %w", err)
	}
	if err := registry.Register("memory-compaction", scheduler.NewMemoryCompactionJob(db, 90*24*time.Hour), scheduler.Metadata{
		Name:            "Memory compaction",
		Description:     "Prunes old bus messages",
		DefaultInterval: 24 * time.Hour,
		MinInterval:     time.Hour,
		Enabled:         true,
	}); err != nil {
		return fmt.Errorf("register memory-compaction job: %w", err)
	}
	inbox := scheduler.NewFileIssueSource(filepath.Join(filepath.Dir(db.Path()), "inbox"))
	if err := registry.Register("issue-polling", scheduler.NewIssuePollingJob(inbox, orch.Bus()), scheduler.Metadata{
		Name:            "Issue polling",
		Description:     "Surfaces issues dropped into the inbox directory",
		DefaultInterval: 15 * time.Minute,
		MinInterval:     time.Minute,
		Enabled:         true,
	}); err != nil {
		return fmt.Errorf("register issue-polling job: %w", err)
	}
	registry.StartAll(ctx)

	custom := scheduler.NewCustomScheduler(db, orch.TaskActions(), cfg.Scheduler.MinTaskInterval, logger.Log)
	if err := custom.LoadAndStart(ctx); err != nil {
		logger.Log("custom scheduler: %v", err)
	}

	return tui.Run(orch, emitter.Events(), custom)
}

// mustBus is a helper for commands that only need the bus over a database.
func mustBus(db *store.DB) *bus.Bus {
	return bus.New(db)
}
