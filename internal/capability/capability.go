// Package capability maintains the member-set cache for library classes.
// Member sets come from three places: a YAML snapshot shipped alongside the
// allowlist, explicit seeding, and on-demand probes of a local Python
// interpreter. A class the cache has never successfully resolved stays
// unknown, which downgrades method checks to lenient.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultProbeTimeout bounds one interpreter probe.
const DefaultProbeTimeout = 5 * time.Second

// Prober discovers the members of a fully-qualified class.
type Prober interface {
	Probe(ctx context.Context, fqcn string) ([]string, error)
}

// Cache is a concurrent member-set cache. A nil prober makes every
// unseeded class unknown.
type Cache struct {
	mu      sync.RWMutex
	classes map[string]map[string]bool

	prober  Prober
	timeout time.Duration
}

// NewCache returns an empty cache backed by prober (which may be nil).
func NewCache(prober Prober) *Cache {
	return &Cache{
		classes: map[string]map[string]bool{},
		prober:  prober,
		timeout: DefaultProbeTimeout,
	}
}

// SetProbeTimeout overrides the per-probe deadline.
func (c *Cache) SetProbeTimeout(d time.Duration) {
	c.timeout = d
}

// Seed installs a member set without probing.
func (c *Cache) Seed(fqcn string, members []string) {
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	c.mu.Lock()
	c.classes[fqcn] = set
	c.mu.Unlock()
}

// Lookup returns the member set for fqcn and whether it is known. A miss
// triggers one probe; a failed probe caches nothing, so the class stays
// unknown and may be probed again later.
func (c *Cache) Lookup(fqcn string) (map[string]bool, bool) {
	c.mu.RLock()
	set, ok := c.classes[fqcn]
	c.mu.RUnlock()
	if ok {
		return set, true
	}
	if c.prober == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	members, err := c.prober.Probe(ctx, fqcn)
	if err != nil {
		return nil, false
	}
	c.Seed(fqcn, members)
	c.mu.RLock()
	set = c.classes[fqcn]
	c.mu.RUnlock()
	return set, true
}

// snapshotDoc is the on-disk YAML shape of a capability snapshot.
type snapshotDoc struct {
	Classes map[string][]string `yaml:"classes"`
}

// LoadSnapshot seeds the cache from a YAML snapshot file.
func (c *Cache) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("capability: read snapshot %s: %w", path, err)
	}
	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("capability: parse snapshot %s: %w", path, err)
	}
	for fqcn, members := range doc.Classes {
		c.Seed(fqcn, members)
	}
	return nil
}

// Snapshot serializes the cache to snapshot YAML with sorted keys, suitable
// for committing next to the allowlist.
func (c *Cache) Snapshot() ([]byte, error) {
	doc := snapshotDoc{Classes: map[string][]string{}}
	c.mu.RLock()
	for fqcn, set := range c.classes {
		members := make([]string, 0, len(set))
		for m := range set {
			members = append(members, m)
		}
		sort.Strings(members)
		doc.Classes[fqcn] = members
	}
	c.mu.RUnlock()
	return yaml.Marshal(doc)
}

// PythonProber shells out to a Python interpreter and asks for dir() of
// the class. Underscore-private members are dropped; they are never legal
// in gated scripts anyway.
type PythonProber struct {
	// Python is the interpreter binary; empty means "python3".
	Python string
}

func (p *PythonProber) Probe(ctx context.Context, fqcn string) ([]string, error) {
	dot := strings.LastIndexByte(fqcn, '.')
	if dot <= 0 || dot == len(fqcn)-1 {
		return nil, fmt.Errorf("capability: malformed class name %q", fqcn)
	}
	module, class := fqcn[:dot], fqcn[dot+1:]
	// Only dotted identifiers may reach the interpreter command line.
	if !validDottedName(module) || !validDottedName(class) {
		return nil, fmt.Errorf("capability: malformed class name %q", fqcn)
	}
	program := fmt.Sprintf(
		"import importlib, json; m = importlib.import_module(%q); print(json.dumps(dir(getattr(m, %q))))",
		module, class)
	bin := p.Python
	if bin == "" {
		bin = "python3"
	}
	out, err := exec.CommandContext(ctx, bin, "-c", program).Output()
	if err != nil {
		return nil, fmt.Errorf("capability: probe %s: %w", fqcn, err)
	}
	var members []string
	if err := json.Unmarshal(out, &members); err != nil {
		return nil, fmt.Errorf("capability: probe %s: bad interpreter output: %w", fqcn, err)
	}
	public := members[:0]
	for _, m := range members {
		if !strings.HasPrefix(m, "_") {
			public = append(public, m)
		}
	}
	return public, nil
}

func validDottedName(s string) bool {
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			alpha := r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
			if !alpha && (i == 0 || r < '0' || r > '9') {
				return false
			}
		}
	}
	return true
}
