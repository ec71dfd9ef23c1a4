package runner_test

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"chronogate/internal/runner"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestRunCapturesOutput(t *testing.T) {
	requirePython(t)
	out, err := runner.Run(context.Background(),
		"import sys\nprint('to stdout')\nprint('to stderr', file=sys.stderr)\n",
		runner.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ReturnCode != 0 || out.TimedOut {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !strings.Contains(out.Stdout, "to stdout") {
		t.Errorf("stdout missing output: %q", out.Stdout)
	}
	if !strings.Contains(out.Stderr, "to stderr") {
		t.Errorf("stderr missing output: %q", out.Stderr)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	requirePython(t)
	out, err := runner.Run(context.Background(),
		"raise SystemExit(3)\n", runner.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ReturnCode != 3 {
		t.Errorf("expected return code 3, got %d", out.ReturnCode)
	}
}

func TestRunTimeout(t *testing.T) {
	requirePython(t)
	start := time.Now()
	out, err := runner.Run(context.Background(),
		"import time\ntime.sleep(30)\n",
		runner.Options{Timeout: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.TimedOut || out.ReturnCode != -1 {
		t.Fatalf("expected timeout outcome, got %+v", out)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestRunMissingInterpreter(t *testing.T) {
	_, err := runner.Run(context.Background(), "print('x')\n",
		runner.Options{Python: "definitely-not-an-interpreter"})
	if err == nil {
		t.Fatal("expected an error for a missing interpreter")
	}
}
