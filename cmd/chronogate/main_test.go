package main

import (
	"bytes"
	"strings"
	"testing"

	"chronogate/internal/analyze"
	"chronogate/internal/gate"
	"chronogate/internal/rewrite"
)

func TestPrintUsageListsCommands(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)
	out := buf.String()
	for _, name := range []string{"validate", "rewrite", "exec", "probe", "review", "serve"} {
		if !strings.Contains(out, name) {
			t.Errorf("usage missing command %q:\n%s", name, out)
		}
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	err := dispatch([]string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "frobnicate") {
		t.Fatalf("expected unknown-command error, got %v", err)
	}
}

func TestDispatchHelp(t *testing.T) {
	if err := dispatch([]string{"help"}); err != nil {
		t.Fatalf("help: %v", err)
	}
	if err := dispatch([]string{"help", "serve"}); err != nil {
		t.Fatalf("help serve: %v", err)
	}
}

func TestReviewContent(t *testing.T) {
	res := &gate.Result{
		OK: false,
		Violations: []analyze.Violation{
			{Kind: analyze.KindImport, Message: "Import of 'os' is not allowed."},
		},
		Renames: []rewrite.Record{
			{Kind: rewrite.KindClass, Old: "ChVectorD", New: "ChVector3d"},
		},
		Rewritten: "import os\n",
	}
	body := reviewContent(res)
	if !strings.Contains(body, "verdict: FAIL (1 violation(s))") {
		t.Errorf("missing verdict line:\n%s", body)
	}
	if !strings.Contains(body, "ChVectorD -> ChVector3d") {
		t.Errorf("missing rename line:\n%s", body)
	}
	if !strings.Contains(body, "Import of 'os' is not allowed.") {
		t.Errorf("missing violation line:\n%s", body)
	}

	clean := reviewContent(&gate.Result{OK: true, Rewritten: "x = 1\n"})
	if !strings.Contains(clean, "verdict: PASS") {
		t.Errorf("missing pass verdict:\n%s", clean)
	}
}
