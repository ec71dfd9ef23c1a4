package gate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chronogate/internal/analyze"
	"chronogate/internal/gate"
	"chronogate/internal/policy"
)

const gatePolicy = `{
	"modules": {"pychrono.core": ["ChSystemNSC", "ChVector3d"]},
	"legacy_map": {"classes": {"ChVectorD": "ChVector3d"}}
}`

func staticGate(t *testing.T) *gate.Gate {
	t.Helper()
	pol, err := policy.Load([]byte(gatePolicy))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return gate.NewStatic(pol, nil)
}

func TestValidateClean(t *testing.T) {
	g := staticGate(t)
	res, err := g.Validate("sys = chrono.ChSystemNSC()\n")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.OK || len(res.Violations) != 0 {
		t.Fatalf("expected clean result, got %+v", res)
	}
}

// A legacy spelling fails plain validation but passes once the pipeline
// rewrites it first.
func TestRewriteAndValidatePipeline(t *testing.T) {
	g := staticGate(t)
	src := "v = chrono.ChVectorD(1, 2, 3)\n"

	res, err := g.Validate(src)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.OK {
		t.Fatal("expected legacy spelling to fail plain validation")
	}

	res, err = g.RewriteAndValidate(src)
	if err != nil {
		t.Fatalf("RewriteAndValidate: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected rewritten source to validate, got %+v", res.Violations)
	}
	if !strings.Contains(res.Rewritten, "ChVector3d") {
		t.Errorf("expected rewritten source, got:\n%s", res.Rewritten)
	}
	if len(res.Renames) != 1 || res.Renames[0].Old != "ChVectorD" {
		t.Errorf("expected one rename record, got %v", res.Renames)
	}
}

func TestRewriteParseFailure(t *testing.T) {
	g := staticGate(t)
	res, err := g.RewriteAndValidate("if True:\n")
	if err != nil {
		t.Fatalf("RewriteAndValidate: %v", err)
	}
	if res.OK || len(res.Violations) != 1 || res.Violations[0].Kind != analyze.KindParse {
		t.Fatalf("expected a single parse violation, got %+v", res)
	}
}

func TestPolicyReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.json")
	if err := os.WriteFile(path, []byte(gatePolicy), 0o644); err != nil {
		t.Fatal(err)
	}
	g := gate.New(path, nil)

	res, err := g.Validate("x = chrono.ChWidget()\n")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.OK {
		t.Fatal("expected ChWidget to be rejected by the initial policy")
	}

	updated := `{"modules": {"pychrono.core": ["ChSystemNSC", "ChVector3d", "ChWidget"]}}`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	// Force a distinct mtime on filesystems with coarse timestamps.
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	res, err = g.Validate("x = chrono.ChWidget()\n")
	if err != nil {
		t.Fatalf("Validate after update: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected updated policy to allow ChWidget, got %+v", res.Violations)
	}
}

func TestMissingPolicyFile(t *testing.T) {
	g := gate.New(filepath.Join(t.TempDir(), "absent.json"), nil)
	if _, err := g.Validate("x = 1\n"); err == nil {
		t.Fatal("expected an error for a missing policy file")
	}
}
