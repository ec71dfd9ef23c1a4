// Package gate is the façade the HTTP service and the CLI talk to: it owns
// the policy file (reloading it when the file changes on disk), the
// capability cache, and the rewrite-then-validate pipeline.
package gate

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"chronogate/internal/analyze"
	"chronogate/internal/capability"
	"chronogate/internal/policy"
	"chronogate/internal/pysrc"
	"chronogate/internal/rewrite"
)

// Result is the outcome of one gate operation. Rewritten always carries
// usable source: the rewritten text when a rewrite ran, the input
// otherwise.
type Result struct {
	OK         bool                `json:"ok"`
	Violations []analyze.Violation `json:"violations,omitempty"`
	Rewritten  string              `json:"rewritten,omitempty"`
	Renames    []rewrite.Record    `json:"renames,omitempty"`
}

// Errors flattens the violation messages.
func (r *Result) Errors() []string {
	return analyze.Messages(r.Violations)
}

// Gate binds a policy source to a capability cache. Safe for concurrent
// use; the policy is reloaded at most once per change of the file's mtime.
type Gate struct {
	caps *capability.Cache

	mu    sync.Mutex
	path  string
	mtime time.Time
	pol   *policy.Policy
}

// New returns a gate reading its policy from path. caps may be nil.
func New(path string, caps *capability.Cache) *Gate {
	return &Gate{path: path, caps: caps}
}

// NewStatic returns a gate over an already-loaded policy that never
// reloads.
func NewStatic(pol *policy.Policy, caps *capability.Cache) *Gate {
	return &Gate{pol: pol, caps: caps}
}

// Policy returns the current policy, reloading the backing file if its
// modification time moved.
func (g *Gate) Policy() (*policy.Policy, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.path == "" {
		if g.pol == nil {
			return nil, fmt.Errorf("gate: no policy configured")
		}
		return g.pol, nil
	}
	info, err := os.Stat(g.path)
	if err != nil {
		return nil, fmt.Errorf("gate: stat policy: %w", err)
	}
	if g.pol == nil || !info.ModTime().Equal(g.mtime) {
		pol, err := policy.LoadFile(g.path)
		if err != nil {
			return nil, err
		}
		g.pol = pol
		g.mtime = info.ModTime()
	}
	return g.pol, nil
}

func (g *Gate) capabilities() analyze.Capabilities {
	if g.caps == nil {
		return nil
	}
	return g.caps
}

// Validate checks src as-is, with no rewriting.
func (g *Gate) Validate(src string) (*Result, error) {
	pol, err := g.Policy()
	if err != nil {
		return nil, err
	}
	violations := analyze.ValidateSource(src, pol, g.capabilities())
	return &Result{OK: len(violations) == 0, Violations: violations, Rewritten: src}, nil
}

// Rewrite applies legacy renames without validating the result.
func (g *Gate) Rewrite(src string) (*Result, error) {
	pol, err := g.Policy()
	if err != nil {
		return nil, err
	}
	out, records, rerr := rewrite.Apply(src, pol)
	if rerr != nil {
		return parseFailure(src, out, records, rerr), nil
	}
	return &Result{OK: true, Rewritten: out, Renames: records}, nil
}

// RewriteAndValidate is the main gate pipeline: rename legacy identifiers,
// then validate the rewritten source.
func (g *Gate) RewriteAndValidate(src string) (*Result, error) {
	pol, err := g.Policy()
	if err != nil {
		return nil, err
	}
	out, records, rerr := rewrite.Apply(src, pol)
	if rerr != nil {
		return parseFailure(src, out, records, rerr), nil
	}
	violations := analyze.Validate(mustParse(out), pol, g.capabilities())
	return &Result{
		OK:         len(violations) == 0,
		Violations: violations,
		Rewritten:  out,
		Renames:    records,
	}, nil
}

// parseFailure folds a rewrite error into a parse violation. The rewritten
// text is preserved when the failure happened after renaming, so the
// caller can still show what was produced.
func parseFailure(src, out string, records []rewrite.Record, err error) *Result {
	rewritten := src
	if out != "" {
		rewritten = out
	}
	msg := fmt.Sprintf("SyntaxError: %v", err)
	if strings.Contains(err.Error(), "no longer parses") {
		msg = fmt.Sprintf("SyntaxError after rewrite: %v", err)
	}
	return &Result{
		OK:         false,
		Violations: []analyze.Violation{{Kind: analyze.KindParse, Message: msg}},
		Rewritten:  rewritten,
		Renames:    records,
	}
}

// mustParse re-parses text that Apply already round-tripped.
func mustParse(src string) *pysrc.Module {
	mod, err := pysrc.Parse(src)
	if err != nil {
		panic(fmt.Sprintf("gate: rewritten source stopped parsing: %v", err))
	}
	return mod
}
