package policy_test

import (
	"os"
	"path/filepath"
	"testing"

	"chronogate/internal/policy"
)

const sampleDoc = `{
	// modules and their permitted classes
	"modules": {
		"pychrono.core": ["ChSystemNSC", "ChBodyEasyBox", "Shared"],
		"pychrono.vehicle": ["ChVehicle", "Shared"],
	},
	"enums": ["ChContactMethod_NSC"],
	"overloads": {
		"pychrono.core.ChBodyEasyBox": [
			{"args": ["sx", "sy", "sz"], "defaults": 1},
			{"args": ["sx"], "defaults": 0},
		],
	},
	"legacy_map": {
		"classes": {"ChVectorD": "ChVector3d"},
		"attributes": {"SetPos_dt": "SetPosDt"},
	},
	"denied_attributes": {"AddTypicalCamera": "Use AddCamera instead."},
	"safe_imports": ["math", "numpy"],
}`

func TestLoadToleratesCommentsAndTrailingCommas(t *testing.T) {
	p, err := policy.Load([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !p.AllowedClass("pychrono.core", "ChSystemNSC") {
		t.Error("expected ChSystemNSC to be allowed")
	}
	if p.AllowedClass("pychrono.core", "ChVehicle") {
		t.Error("ChVehicle must not be allowed in pychrono.core")
	}
	if !p.Enums["ChContactMethod_NSC"] {
		t.Error("expected enum to load")
	}
	if p.LegacyClasses["ChVectorD"] != "ChVector3d" {
		t.Errorf("legacy classes: %v", p.LegacyClasses)
	}
	if p.DeniedAttributes["AddTypicalCamera"] == "" {
		t.Error("expected denied attribute hint")
	}
}

// Window minimum is the parameter count minus defaults; maximum is the
// full parameter count.
func TestWindowDerivation(t *testing.T) {
	p, err := policy.Load([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	windows := p.Windows("pychrono.core.ChBodyEasyBox")
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %v", windows)
	}
	if windows[0] != (policy.ArityWindow{Min: 2, Max: 3}) {
		t.Errorf("first window: %v", windows[0])
	}
	if windows[1] != (policy.ArityWindow{Min: 1, Max: 1}) {
		t.Errorf("second window: %v", windows[1])
	}
	if policy.WindowsString(windows) != "(2,3), (1,1)" {
		t.Errorf("WindowsString: %q", policy.WindowsString(windows))
	}
	if p.Windows("pychrono.core.ChSystemNSC") != nil {
		t.Error("expected nil windows for an undeclared class")
	}
}

func TestOwners(t *testing.T) {
	p, err := policy.Load([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	owners := p.Owners("Shared")
	if len(owners) != 2 || owners[0] != "pychrono.core" || owners[1] != "pychrono.vehicle" {
		t.Errorf("owners of Shared: %v", owners)
	}
	if got := p.Owners("ChVehicle"); len(got) != 1 || got[0] != "pychrono.vehicle" {
		t.Errorf("owners of ChVehicle: %v", got)
	}
	if got := p.Owners("Nothing"); len(got) != 0 {
		t.Errorf("owners of Nothing: %v", got)
	}
}

func TestAllowedImport(t *testing.T) {
	p, err := policy.Load([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, name := range []string{"math", "numpy", "pychrono", "pychrono.core", "pychrono.vehicle"} {
		if !p.AllowedImport(name) {
			t.Errorf("expected %q to be importable", name)
		}
	}
	for _, name := range []string{"os", "pychrono2", "pychrono.secret"} {
		if p.AllowedImport(name) {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestDefaults(t *testing.T) {
	p, err := policy.Load([]byte(`{"modules": {"pychrono.core": ["ChSystemNSC"]}}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Library != policy.DefaultLibrary {
		t.Errorf("library: %+v", p.Library)
	}
	if !p.SafeImports["math"] {
		t.Error("expected math in default safe imports")
	}
	if !p.InLibrary("pychrono.core") || p.InLibrary("pychronox") {
		t.Error("InLibrary prefix handling wrong")
	}
}

func TestLoadRejectsMalformedDocument(t *testing.T) {
	if _, err := policy.Load([]byte(`{"modules": [`)); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := policy.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !p.KnownModule("pychrono.vehicle") {
		t.Error("expected pychrono.vehicle module")
	}
	if _, err := policy.LoadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
