package zone

import (
	"path/filepath"
	"testing"
)

func newTestProvisioner(t *testing.T) (*FileProvisioner, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zones.yaml")
	p, err := NewFileProvisioner(path)
	if err != nil {
		t.Fatalf("NewFileProvisioner: %v", err)
	}
	t.Cleanup(p.Close)
	return p, path
}

func TestAddZone_AssignsLowestFreeSlot(t *testing.T) {
	p, _ := newTestProvisioner(t)

	for i, id := range []string{"p1", "p2", "p3"} {
		if err := p.AddZone(id, "project "+id); err != nil {
			t.Fatalf("AddZone %s: %v", id, err)
		}
		zones, err := p.LoadZoneConfig()
		if err != nil {
			t.Fatalf("LoadZoneConfig: %v", err)
		}
		if zones[id].Slot != i {
			t.Errorf("%s slot = %d, want %d", id, zones[id].Slot, i)
		}
	}

	// A released slot is reused before extending the layout.
	if err := p.RemoveZone("p2"); err != nil {
		t.Fatalf("RemoveZone: %v", err)
	}
	if err := p.AddZone("p4", "project p4"); err != nil {
		t.Fatalf("AddZone p4: %v", err)
	}
	zones, err := p.LoadZoneConfig()
	if err != nil {
		t.Fatalf("LoadZoneConfig: %v", err)
	}
	if zones["p4"].Slot != 1 {
		t.Errorf("p4 slot = %d, want reclaimed slot 1", zones["p4"].Slot)
	}
}

func TestAddZone_ExistingProjectUpdatesNameInPlace(t *testing.T) {
	p, _ := newTestProvisioner(t)

	if err := p.AddZone("p1", "old name"); err != nil {
		t.Fatalf("AddZone: %v", err)
	}
	if err := p.AddZone("p1", "new name"); err != nil {
		t.Fatalf("AddZone again: %v", err)
	}

	zones, err := p.LoadZoneConfig()
	if err != nil {
		t.Fatalf("LoadZoneConfig: %v", err)
	}
	if len(zones) != 1 {
		t.Fatalf("zones = %d, want 1", len(zones))
	}
	z := zones["p1"]
	if z.Name != "new name" || z.Slot != 0 {
		t.Errorf("zone = %+v, want renamed in slot 0", z)
	}
}

func TestRemoveZone_MissingIsNoOp(t *testing.T) {
	p, _ := newTestProvisioner(t)
	if err := p.RemoveZone("ghost"); err != nil {
		t.Errorf("RemoveZone on missing zone: %v", err)
	}
}

func TestLayout_PersistsAcrossInstances(t *testing.T) {
	p, path := newTestProvisioner(t)
	if err := p.AddZone("p1", "alpha"); err != nil {
		t.Fatalf("AddZone: %v", err)
	}
	p.Close()

	reopened, err := NewFileProvisioner(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	zones, err := reopened.LoadZoneConfig()
	if err != nil {
		t.Fatalf("LoadZoneConfig: %v", err)
	}
	if zones["p1"].Name != "alpha" {
		t.Errorf("layout lost across restart: %+v", zones)
	}
}
