package capability_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chronogate/internal/capability"
)

// countingProber records how many times each class was probed.
type countingProber struct {
	members map[string][]string
	calls   map[string]int
}

func (p *countingProber) Probe(_ context.Context, fqcn string) ([]string, error) {
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[fqcn]++
	m, ok := p.members[fqcn]
	if !ok {
		return nil, errors.New("no such class")
	}
	return m, nil
}

func TestLookupProbesOnce(t *testing.T) {
	p := &countingProber{members: map[string][]string{
		"pychrono.core.ChSystemNSC": {"SetGravity", "DoStepDynamics"},
	}}
	c := capability.NewCache(p)

	for i := 0; i < 3; i++ {
		set, known := c.Lookup("pychrono.core.ChSystemNSC")
		if !known {
			t.Fatal("expected class to be known")
		}
		if !set["SetGravity"] {
			t.Fatal("expected SetGravity in member set")
		}
	}
	if p.calls["pychrono.core.ChSystemNSC"] != 1 {
		t.Errorf("expected 1 probe, got %d", p.calls["pychrono.core.ChSystemNSC"])
	}
}

// A failed probe must not poison the cache: the class stays unknown and a
// later lookup probes again.
func TestFailedProbeNotCached(t *testing.T) {
	p := &countingProber{members: map[string][]string{}}
	c := capability.NewCache(p)

	if _, known := c.Lookup("pychrono.core.Missing"); known {
		t.Fatal("expected class to be unknown")
	}
	if _, known := c.Lookup("pychrono.core.Missing"); known {
		t.Fatal("expected class to stay unknown")
	}
	if p.calls["pychrono.core.Missing"] != 2 {
		t.Errorf("expected 2 probes, got %d", p.calls["pychrono.core.Missing"])
	}
}

func TestNilProber(t *testing.T) {
	c := capability.NewCache(nil)
	c.Seed("pychrono.core.ChVectorD", []string{"Length"})

	if _, known := c.Lookup("pychrono.core.ChSystemNSC"); known {
		t.Fatal("expected unseeded class to be unknown")
	}
	set, known := c.Lookup("pychrono.core.ChVectorD")
	if !known || !set["Length"] {
		t.Fatalf("expected seeded member set, got %v (known=%v)", set, known)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := capability.NewCache(nil)
	c.Seed("pychrono.core.ChBodyEasyBox", []string{"SetPos", "GetPos"})
	c.Seed("pychrono.vehicle.ChVehicle", []string{"Advance"})

	data, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	path := filepath.Join(t.TempDir(), "caps.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	fresh := capability.NewCache(nil)
	if err := fresh.LoadSnapshot(path); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	set, known := fresh.Lookup("pychrono.core.ChBodyEasyBox")
	if !known || !set["SetPos"] || !set["GetPos"] {
		t.Fatalf("expected restored member set, got %v (known=%v)", set, known)
	}
}
