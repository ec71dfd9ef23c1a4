// Package runner executes an already-validated script in a scratch
// directory under a deadline. It captures exit status and both output
// streams; it does not sandbox — the gate's static checks are the
// admission control, the runner only bounds time and disk placement.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// DefaultTimeout bounds one execution when the caller gives none.
const DefaultTimeout = 20 * time.Second

// maxCapture caps each captured stream; the tail beyond it is dropped.
const maxCapture = 1 << 20

// Options configures one run.
type Options struct {
	// Python is the interpreter binary; empty means "python3".
	Python string
	// Timeout bounds the run; zero means DefaultTimeout.
	Timeout time.Duration
	// WorkDir is the parent for the scratch directory; empty means the
	// system temp dir.
	WorkDir string
}

// Outcome reports how the script run ended. TimedOut implies the process
// was killed and ReturnCode is -1.
type Outcome struct {
	ReturnCode int    `json:"returncode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	TimedOut   bool   `json:"timed_out"`
}

// Run writes src to a scratch directory and executes it unbuffered. The
// scratch directory is removed afterwards. A non-zero script exit is an
// Outcome, not an error; errors mean the run could not be staged or
// started.
func Run(ctx context.Context, src string, opts Options) (*Outcome, error) {
	dir, err := os.MkdirTemp(opts.WorkDir, "chronogate-run-*")
	if err != nil {
		return nil, fmt.Errorf("runner: scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	script := filepath.Join(dir, "script.py")
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		return nil, fmt.Errorf("runner: stage script: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bin := opts.Python
	if bin == "" {
		bin = "python3"
	}
	var stdout, stderr capped
	cmd := exec.CommandContext(ctx, bin, "-u", script)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	out := &Outcome{Stdout: stdout.String(), Stderr: stderr.String()}
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		out.TimedOut = true
		out.ReturnCode = -1
	case runErr == nil:
		out.ReturnCode = 0
	default:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("runner: start %s: %w", bin, runErr)
		}
		out.ReturnCode = exitErr.ExitCode()
	}
	return out, nil
}

// capped is a buffer that silently stops growing at maxCapture.
type capped struct {
	buf bytes.Buffer
}

func (c *capped) Write(p []byte) (int, error) {
	n := len(p)
	if room := maxCapture - c.buf.Len(); room > 0 {
		if len(p) > room {
			p = p[:room]
		}
		c.buf.Write(p)
	}
	return n, nil
}

func (c *capped) String() string { return c.buf.String() }
