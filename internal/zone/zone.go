// Package zone provisions visualization zones for projects. The 3D scene
// itself lives in the frontend; this package only maintains the layout
// config the frontend reads, one zone per active project.
package zone

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Provisioner is the collaborator the orchestrator calls on project create
// and boot recovery. Calls must never block orchestration; the orchestrator
// invokes them from background goroutines.
type Provisioner interface {
	// AddZone allocates a zone for the project.
	AddZone(projectID, name string) error
	// RemoveZone releases the project's zone.
	RemoveZone(projectID string) error
	// LoadZoneConfig reports the zones currently configured.
	LoadZoneConfig() (map[string]Zone, error)
}

// Zone is one project's slot in the scene layout.
type Zone struct {
	// ProjectID is the owning project.
	ProjectID string `yaml:"project_id"`
	// Name is the display label.
	Name string `yaml:"name"`
	// Slot is the layout position index.
	Slot int `yaml:"slot"`
}

// layoutFile is the on-disk shape of the zones config.
type layoutFile struct {
	Zones []Zone `yaml:"zones"`
}

// FileProvisioner keeps the zone layout in a yaml file and watches it for
// external edits so manual layout changes are picked up without a restart.
type FileProvisioner struct {
	path string

	mu    sync.Mutex
	zones map[string]Zone

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewFileProvisioner creates a provisioner backed by the yaml file at path,
// loading any existing layout. The file watcher is best-effort: if it
// cannot start, external edits are only seen on the next LoadZoneConfig.
func NewFileProvisioner(path string) (*FileProvisioner, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create zones directory: %w", err)
	}

	p := &FileProvisioner{
		path:  path,
		zones: make(map[string]Zone),
		done:  make(chan struct{}),
	}
	if err := p.load(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return p, nil
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return p, nil
	}
	p.watcher = watcher
	go p.watch()

	return p, nil
}

// AddZone allocates the next free slot for the project. Adding a zone for a
// project that already has one updates its name in place.
func (p *FileProvisioner) AddZone(projectID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if z, exists := p.zones[projectID]; exists {
		z.Name = name
		p.zones[projectID] = z
		return p.saveLocked()
	}

	slot := 0
	taken := make(map[int]bool, len(p.zones))
	for _, z := range p.zones {
		taken[z.Slot] = true
	}
	for taken[slot] {
		slot++
	}

	p.zones[projectID] = Zone{ProjectID: projectID, Name: name, Slot: slot}
	return p.saveLocked()
}

// RemoveZone releases the project's zone. Removing a missing zone is a no-op.
func (p *FileProvisioner) RemoveZone(projectID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.zones[projectID]; !exists {
		return nil
	}
	delete(p.zones, projectID)
	return p.saveLocked()
}

// LoadZoneConfig re-reads the layout file and returns the zones by project id.
func (p *FileProvisioner) LoadZoneConfig() (map[string]Zone, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.loadLocked(); err != nil {
		return nil, err
	}
	out := make(map[string]Zone, len(p.zones))
	for id, z := range p.zones {
		out[id] = z
	}
	return out, nil
}

// Close stops the file watcher. Safe to call more than once.
func (p *FileProvisioner) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.watcher != nil {
			p.watcher.Close()
		}
	})
}

// watch reloads the layout when the file changes on disk.
func (p *FileProvisioner) watch() {
	for {
		select {
		case <-p.done:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(p.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				p.mu.Lock()
				p.loadLocked()
				p.mu.Unlock()
			}
		case <-p.watcher.Errors:
			// Keep watching.
		}
	}
}

func (p *FileProvisioner) load() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadLocked()
}

// loadLocked reads the layout file. A missing file is an empty layout.
// Caller must hold p.mu.
func (p *FileProvisioner) loadLocked() error {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		p.zones = make(map[string]Zone)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read zones config: %w", err)
	}

	var file layoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse zones config: %w", err)
	}

	zones := make(map[string]Zone, len(file.Zones))
	for _, z := range file.Zones {
		zones[z.ProjectID] = z
	}
	p.zones = zones
	return nil
}

// saveLocked writes the layout file. Caller must hold p.mu.
func (p *FileProvisioner) saveLocked() error {
	file := layoutFile{Zones: make([]Zone, 0, len(p.zones))}
	for _, z := range p.zones {
		file.Zones = append(file.Zones, z)
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshal zones config: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0644); err != nil {
		return fmt.Errorf("write zones config: %w", err)
	}
	return nil
}
