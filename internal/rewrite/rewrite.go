// Package rewrite renames legacy identifiers to their current spellings
// before validation. Renames are structural (tree positions), with a
// regex fallback for raw lines the parser preserved verbatim. The pass
// runs exactly once: chained legacy entries are not transitively
// collapsed within a pass, and when a rename target is itself a legacy
// key, each further Apply advances the chain by one more step.
package rewrite

import (
	"fmt"
	"regexp"
	"sort"

	"chronogate/internal/policy"
	"chronogate/internal/pysrc"
)

// Record kinds.
const (
	KindClass     = "class"
	KindAttribute = "attribute"
)

// Record is one applied rename. Records are deduplicated by (kind, old):
// renaming the same identifier on ten lines yields one record.
type Record struct {
	Kind string `json:"kind"`
	Old  string `json:"old"`
	New  string `json:"new"`
}

// Apply rewrites src under the policy's legacy maps and returns the new
// source with the rename records. The input must parse; the output is
// re-parsed as a sanity check and a failure there is reported as an error
// alongside the (still returned) rewritten text.
func Apply(src string, pol *policy.Policy) (string, []Record, error) {
	mod, err := pysrc.Parse(src)
	if err != nil {
		return "", nil, fmt.Errorf("rewrite: %w", err)
	}

	rw := &rewriter{pol: pol, seen: map[Record]bool{}}
	pysrc.Walk(mod, rw.visit)

	out := pysrc.Unparse(mod)
	if _, err := pysrc.Parse(out); err != nil {
		return out, rw.records, fmt.Errorf("rewrite: output no longer parses: %w", err)
	}
	return out, rw.records, nil
}

type rewriter struct {
	pol     *policy.Policy
	seen    map[Record]bool
	records []Record
}

func (rw *rewriter) record(kind, old, current string) {
	r := Record{Kind: kind, Old: old, New: current}
	if rw.seen[r] {
		return
	}
	rw.seen[r] = true
	rw.records = append(rw.records, r)
}

func (rw *rewriter) visit(n pysrc.Node) bool {
	switch node := n.(type) {
	case *pysrc.NameExpr:
		if current, ok := rw.pol.LegacyClasses[node.ID]; ok {
			rw.record(KindClass, node.ID, current)
			node.ID = current
		}
	case *pysrc.AttributeExpr:
		// Class names show up in attribute position (chrono.ChVectorD);
		// they take precedence over the attribute map.
		if current, ok := rw.pol.LegacyClasses[node.Attr]; ok {
			rw.record(KindClass, node.Attr, current)
			node.Attr = current
		} else if current, ok := rw.pol.LegacyAttributes[node.Attr]; ok {
			rw.record(KindAttribute, node.Attr, current)
			node.Attr = current
		}
	case *pysrc.RawStmt:
		node.Text = rw.rewriteRaw(node.Text)
	}
	return true
}

// rewriteRaw applies the legacy maps to a preserved raw line. Classes match
// on word boundaries anywhere; attributes only immediately after a dot.
// Keys are applied in sorted order so the result is deterministic.
func (rw *rewriter) rewriteRaw(text string) string {
	for _, old := range sortedKeys(rw.pol.LegacyClasses) {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(old) + `\b`)
		if re.MatchString(text) {
			current := rw.pol.LegacyClasses[old]
			text = re.ReplaceAllString(text, current)
			rw.record(KindClass, old, current)
		}
	}
	for _, old := range sortedKeys(rw.pol.LegacyAttributes) {
		re := regexp.MustCompile(`\.` + regexp.QuoteMeta(old) + `\b`)
		if re.MatchString(text) {
			current := rw.pol.LegacyAttributes[old]
			text = re.ReplaceAllString(text, "."+current)
			rw.record(KindAttribute, old, current)
		}
	}
	return text
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
