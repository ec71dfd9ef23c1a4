package analyze_test

import (
	"testing"

	"chronogate/internal/analyze"
	"chronogate/internal/policy"
)

const testPolicy = `{
	// test allowlist
	"modules": {
		"pychrono.core": ["ChSystemNSC", "ChBodyEasyBox", "ChVectorD", "Shared"],
		"pychrono.vehicle": ["ChVehicle", "Shared"],
		"pychrono.irrlicht": ["ChVisualSystemIrrlicht"]
	},
	"enums": ["ChContactMethod_NSC"],
	"overloads": {
		"pychrono.core.ChBodyEasyBox": [{"args": ["sx", "sy", "sz"], "defaults": 1}]
	},
	"denied_attributes": {
		"AddTypicalCamera": "Use AddCamera with an explicit position instead."
	},
	"safe_imports": ["math"]
}`

// capsStub implements analyze.Capabilities from a fixed table.
type capsStub map[string]map[string]bool

func (c capsStub) Lookup(fqcn string) (map[string]bool, bool) {
	m, ok := c[fqcn]
	return m, ok
}

func loadTestPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.Load([]byte(testPolicy))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func kinds(vs []analyze.Violation) []analyze.Kind {
	out := make([]analyze.Kind, len(vs))
	for i, v := range vs {
		out[i] = v.Kind
	}
	return out
}

func TestCleanScript(t *testing.T) {
	pol := loadTestPolicy(t)
	caps := capsStub{
		"pychrono.core.ChSystemNSC": {"SetGravity": true, "DoStepDynamics": true},
	}
	src := `import pychrono as chrono
import math

sys = chrono.ChSystemNSC()
sys.SetGravity(chrono.ChVectorD(0, -9.81, 0))
sys.DoStepDynamics(math.pi / 100)
`
	vs := analyze.ValidateSource(src, pol, caps)
	if len(vs) != 0 {
		t.Fatalf("expected no violations, got %v", vs)
	}
}

func TestFromImportRejected(t *testing.T) {
	pol := loadTestPolicy(t)
	vs := analyze.ValidateSource("from pychrono import core\n", pol, nil)
	if len(vs) != 1 {
		t.Fatalf("expected exactly 1 violation, got %v", vs)
	}
	if vs[0].Kind != analyze.KindImport {
		t.Errorf("expected import violation, got %s", vs[0].Kind)
	}
}

func TestUnknownImportRejected(t *testing.T) {
	pol := loadTestPolicy(t)
	vs := analyze.ValidateSource("import os\n", pol, nil)
	if len(vs) != 1 || vs[0].Kind != analyze.KindImport {
		t.Fatalf("expected one import violation, got %v", vs)
	}
}

// A bare top-level class owned by more than one allowlist module cannot be
// pushed down to a single owner: one unresolvable finding, no constructor
// finding.
func TestAmbiguousBareClass(t *testing.T) {
	pol := loadTestPolicy(t)
	src := `import pychrono
x = pychrono.Shared()
`
	vs := analyze.ValidateSource(src, pol, nil)
	if len(vs) != 1 {
		t.Fatalf("expected exactly 1 violation, got %v", vs)
	}
	if vs[0].Kind != analyze.KindUnresolvable {
		t.Errorf("expected unresolvable violation, got %s: %s", vs[0].Kind, vs[0].Message)
	}
}

func TestBareClassSingleOwnerResolves(t *testing.T) {
	pol := loadTestPolicy(t)
	src := `import pychrono
vis = pychrono.ChVisualSystemIrrlicht()
`
	vs := analyze.ValidateSource(src, pol, nil)
	if len(vs) != 0 {
		t.Fatalf("expected no violations, got %v", vs)
	}
}

func TestArityWindows(t *testing.T) {
	pol := loadTestPolicy(t)
	// Declared signature: three parameters, one default -> window (2,3).
	cases := []struct {
		args string
		ok   bool
	}{
		{"1", false},
		{"1, 2", true},
		{"1, 2, 3", true},
		{"1, 2, sz=3", true},
		{"1, 2, 3, 4", false},
		{"1, *rest", true}, // spread makes the count unknowable; no check
	}
	for _, tc := range cases {
		src := "import pychrono as chrono\nb = chrono.ChBodyEasyBox(" + tc.args + ")\n"
		vs := analyze.ValidateSource(src, pol, nil)
		if tc.ok && len(vs) != 0 {
			t.Errorf("args (%s): expected no violations, got %v", tc.args, vs)
		}
		if !tc.ok {
			if len(vs) != 1 || vs[0].Kind != analyze.KindArity {
				t.Errorf("args (%s): expected one arity violation, got %v", tc.args, vs)
			}
		}
	}
}

// Denied attributes are rejected regardless of what the capability probe
// says about the receiver's class.
func TestDeniedAttributeWins(t *testing.T) {
	pol := loadTestPolicy(t)
	caps := capsStub{
		"pychrono.irrlicht.ChVisualSystemIrrlicht": {"AddTypicalCamera": true},
	}
	src := `import pychrono.irrlicht as irr
vis = irr.ChVisualSystemIrrlicht()
vis.AddTypicalCamera()
`
	vs := analyze.ValidateSource(src, pol, caps)
	if len(vs) != 1 {
		t.Fatalf("expected exactly 1 violation, got %v", vs)
	}
	if vs[0].Kind != analyze.KindDenied {
		t.Errorf("expected denied-attribute violation, got %s", vs[0].Kind)
	}
}

func TestMethodCheck(t *testing.T) {
	pol := loadTestPolicy(t)
	caps := capsStub{
		"pychrono.core.ChSystemNSC": {"SetGravity": true},
	}
	src := `import pychrono as chrono
sys = chrono.ChSystemNSC()
sys.SetGravitationalAcceleration(9.81)
`
	vs := analyze.ValidateSource(src, pol, caps)
	if len(vs) != 1 || vs[0].Kind != analyze.KindMethod {
		t.Fatalf("expected one method violation, got %v", vs)
	}
}

// An unknown class suppresses the method check instead of failing it.
func TestMethodCheckLenientWhenUnknown(t *testing.T) {
	pol := loadTestPolicy(t)
	src := `import pychrono as chrono
sys = chrono.ChSystemNSC()
sys.AnythingAtAll()
`
	vs := analyze.ValidateSource(src, pol, capsStub{})
	if len(vs) != 0 {
		t.Fatalf("expected no violations, got %v", vs)
	}
}

func TestBindingLastWriteWins(t *testing.T) {
	pol := loadTestPolicy(t)
	caps := capsStub{
		"pychrono.core.ChSystemNSC": {"SetGravity": true},
	}
	src := `import pychrono as chrono
x = chrono.ChSystemNSC()
x = 5
x.NotAMethod()
`
	vs := analyze.ValidateSource(src, pol, caps)
	if len(vs) != 0 {
		t.Fatalf("expected no violations after rebinding, got %v", vs)
	}
}

// A disallowed constructor on a known module is reported by the assignment
// check, the call check, and the attribute check independently.
func TestDisallowedConstructorCascade(t *testing.T) {
	pol := loadTestPolicy(t)
	src := `import pychrono.irrlicht as irr
x = irr.ChSecretDevice()
`
	vs := analyze.ValidateSource(src, pol, nil)
	want := []analyze.Kind{analyze.KindConstructor, analyze.KindConstructor, analyze.KindAccess}
	got := kinds(vs)
	if len(got) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, vs)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected kinds %v, got %v", want, got)
		}
	}
}

// A bare top-level class that no allowlist module declares cannot be
// pushed down to an owner: one unresolvable finding, nothing else.
func TestBareUnknownClassUnresolvable(t *testing.T) {
	pol := loadTestPolicy(t)
	src := `import pychrono as chrono
x = chrono.ChSecretDevice()
`
	vs := analyze.ValidateSource(src, pol, nil)
	if len(vs) != 1 || vs[0].Kind != analyze.KindUnresolvable {
		t.Fatalf("expected one unresolvable violation, got %v", vs)
	}
}

// Construction through a library submodule that has no allowlist entry
// is rejected, not silently accepted.
func TestUnlistedSubmoduleConstructorRejected(t *testing.T) {
	pol := loadTestPolicy(t)
	src := `import pychrono
x = pychrono.sensor.ChCameraSensor()
`
	vs := analyze.ValidateSource(src, pol, nil)
	want := []analyze.Kind{analyze.KindConstructor, analyze.KindConstructor}
	got := kinds(vs)
	if len(got) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, vs)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected kinds %v, got %v", want, got)
		}
	}
}

func TestEnumAccessAllowed(t *testing.T) {
	pol := loadTestPolicy(t)
	src := `import pychrono as chrono
m = chrono.ChContactMethod_NSC
`
	vs := analyze.ValidateSource(src, pol, nil)
	if len(vs) != 0 {
		t.Fatalf("expected no violations, got %v", vs)
	}
}

func TestDefaultAliasWithoutImport(t *testing.T) {
	pol := loadTestPolicy(t)
	vs := analyze.ValidateSource("sys = chrono.ChSystemNSC()\n", pol, nil)
	if len(vs) != 0 {
		t.Fatalf("expected no violations via default alias, got %v", vs)
	}
}

func TestAliasShadowsDefault(t *testing.T) {
	pol := loadTestPolicy(t)
	src := `import pychrono.vehicle as chrono
v = chrono.ChVehicle()
`
	vs := analyze.ValidateSource(src, pol, nil)
	if len(vs) != 0 {
		t.Fatalf("expected no violations, got %v", vs)
	}
}

func TestParseErrorShortCircuits(t *testing.T) {
	pol := loadTestPolicy(t)
	vs := analyze.ValidateSource("def broken(:\nif True:\n", pol, nil)
	if len(vs) != 1 || vs[0].Kind != analyze.KindParse {
		t.Fatalf("expected a single parse violation, got %v", vs)
	}
}
