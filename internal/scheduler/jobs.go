package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/majordomo/internal/bus"
	"github.com/ShayCichocki/majordomo/internal/store"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

// ReminderJob nudges the operator about kanban tasks that have sat in
// in_progress without an update for longer than the stale threshold.
type ReminderJob struct {
	db  *store.DB
	bus *bus.Bus
	// staleAfter is how long a task may go untouched before a reminder.
	staleAfter time.Duration
}

// NewReminderJob creates a ReminderJob.
func NewReminderJob(db *store.DB, b *bus.Bus, staleAfter time.Duration) *ReminderJob {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &ReminderJob{db: db, bus: b, staleAfter: staleAfter}
}

// Tick scans active projects for stale in-progress tasks and raises one
// notification per stale task.
func (j *ReminderJob) Tick(ctx context.Context) error {
	projects, err := j.db.ListProjects(models.ProjectActive)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	cutoff := time.Now().UTC().Add(-j.staleAfter)
	for _, p := range projects {
		tasks, err := j.db.ListKanbanTasks(p.ID)
		if err != nil {
			return fmt.Errorf("list tasks for %s: %w", p.ID, err)
		}
		for _, t := range tasks {
			if t.Column != models.ColumnInProgress || !t.UpdatedAt.Before(cutoff) {
				continue
			}
			_, err := j.bus.Send(models.BusMessage{
				Type:      models.MessageNotification,
				ProjectID: p.ID,
				Content:   fmt.Sprintf("Reminder: %q has been in progress with no updates since %s", t.Title, t.UpdatedAt.Format("Jan 2 15:04")),
			})
			if err != nil {
				return fmt.Errorf("send reminder: %w", err)
			}
		}
	}
	return nil
}

// MemoryCompactionJob prunes bus messages older than the retention window.
// History is a convenience, not an archive; compaction keeps the log from
// growing without bound.
type MemoryCompactionJob struct {
	db        *store.DB
	retention time.Duration
}

// NewMemoryCompactionJob creates a MemoryCompactionJob.
func NewMemoryCompactionJob(db *store.DB, retention time.Duration) *MemoryCompactionJob {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &MemoryCompactionJob{db: db, retention: retention}
}

// Tick deletes messages past the retention window.
func (j *MemoryCompactionJob) Tick(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention).Format(time.RFC3339Nano)
	_, err := j.db.Exec(`DELETE FROM messages WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("compact messages: %w", err)
	}
	return nil
}

// Issue is one item reported by an external issue source.
type Issue struct {
	// ID is the source-assigned identifier.
	ID string
	// Title is the issue summary.
	Title string
	// URL links back to the source.
	URL string
}

// IssueSource is the external collaborator the polling job queries.
// Implementations wrap a tracker API (GitHub, Linear) and are opaque here.
type IssueSource interface {
	// FetchNew returns issues not seen before.
	FetchNew(ctx context.Context) ([]Issue, error)
}

// IssuePollingJob surfaces newly filed external issues as notifications.
type IssuePollingJob struct {
	source IssueSource
	bus    *bus.Bus
}

// NewIssuePollingJob creates an IssuePollingJob.
func NewIssuePollingJob(source IssueSource, b *bus.Bus) *IssuePollingJob {
	return &IssuePollingJob{source: source, bus: b}
}

// Tick fetches new issues and posts one notification each.
func (j *IssuePollingJob) Tick(ctx context.Context) error {
	issues, err := j.source.FetchNew(ctx)
	if err != nil {
		return fmt.Errorf("fetch issues: %w", err)
	}
	for _, issue := range issues {
		_, err := j.bus.Send(models.BusMessage{
			Type:    models.MessageNotification,
			Content: fmt.Sprintf("New issue %s: %s (%s)", issue.ID, issue.Title, issue.URL),
		})
		if err != nil {
			return fmt.Errorf("send issue notification: %w", err)
		}
	}
	return nil
}

// FileIssueSource reads issues dropped as yaml files into an inbox
// directory. Each file holds one issue; a file is deleted once its issue
// has been reported, so every issue surfaces exactly once.
type FileIssueSource struct {
	dir string
}

// NewFileIssueSource creates a FileIssueSource over dir. The directory does
// not need to exist; an absent inbox simply yields no issues.
func NewFileIssueSource(dir string) *FileIssueSource {
	return &FileIssueSource{dir: dir}
}

// FetchNew parses and consumes every yaml file currently in the inbox.
func (s *FileIssueSource) FetchNew(ctx context.Context) ([]Issue, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	var issues []Issue
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return issues, fmt.Errorf("read %s: %w", name, err)
		}
		var issue Issue
		if err := yaml.Unmarshal(data, &issue); err != nil {
			return issues, fmt.Errorf("parse %s: %w", name, err)
		}
		if issue.ID == "" {
			issue.ID = strings.TrimSuffix(name, ext)
		}
		if err := os.Remove(path); err != nil {
			return issues, fmt.Errorf("consume %s: %w", name, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}
