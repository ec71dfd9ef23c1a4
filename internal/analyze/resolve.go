package analyze

import (
	"strings"

	"chronogate/internal/policy"
	"chronogate/internal/pysrc"
)

// resolve.go — alias map construction and symbol-path resolution. Every
// dotted reference in a script is reduced to (module path, trailing symbol)
// through the aliases its imports declared, before any allowlist check runs.

// Outcome classifies a resolution attempt.
type Outcome int

const (
	// Resolved: the path maps to a concrete module and symbol.
	Resolved Outcome = iota
	// Unresolved: the root name is not a library alias, or the path is
	// too short to carry a symbol.
	Unresolved
	// Ambiguous: the symbol sits directly under the bare top-level
	// namespace and zero or several allowlist modules declare it.
	Ambiguous
)

// AliasMap maps local names to the library module paths their imports
// bound. One map is built per parsed tree and is read-only afterwards.
type AliasMap struct {
	pol     *policy.Policy
	aliases map[string]string
}

// BuildAliasMap scans every import in the tree. Plain "import pychrono.x"
// binds the root segment to itself; "import pychrono.x as y" binds y to the
// full dotted path. A conventional default alias is seeded first so scripts
// that skip their import still resolve, unless an explicit import shadows
// it. Imports outside the library namespace never touch the map.
func BuildAliasMap(mod *pysrc.Module, pol *policy.Policy) *AliasMap {
	am := &AliasMap{pol: pol, aliases: map[string]string{}}
	if a := pol.Library.DefaultAlias; a != "" && pol.Library.DefaultModule != "" {
		am.aliases[a] = pol.Library.DefaultModule
	}
	pysrc.Walk(mod, func(n pysrc.Node) bool {
		imp, ok := n.(*pysrc.ImportStmt)
		if !ok {
			return true
		}
		for _, alias := range imp.Names {
			if !pol.InLibrary(alias.Name) {
				continue
			}
			if alias.AsName != "" {
				am.aliases[alias.AsName] = alias.Name
				continue
			}
			root := alias.Name
			if i := strings.IndexByte(root, '.'); i >= 0 {
				root = root[:i]
			}
			am.aliases[root] = root
		}
		return true
	})
	return am
}

// Module returns the module path bound to a local alias name.
func (am *AliasMap) Module(local string) (string, bool) {
	m, ok := am.aliases[local]
	return m, ok
}

// FlattenPath linearizes a Name/Attribute chain into its dotted segments.
// Any other node in the chain (a call, a subscript) makes the path
// non-constant and flattening fails.
func FlattenPath(e pysrc.Expr) ([]string, bool) {
	var rev []string
	for {
		switch v := e.(type) {
		case *pysrc.AttributeExpr:
			rev = append(rev, v.Attr)
			e = v.Value
		case *pysrc.NameExpr:
			rev = append(rev, v.ID)
			parts := make([]string, len(rev))
			for i, s := range rev {
				parts[len(rev)-1-i] = s
			}
			return parts, true
		default:
			return nil, false
		}
	}
}

// ResolveSymbol maps a flattened path to the module owning its trailing
// symbol. Paths rooted at an unknown alias are Unresolved. When the owning
// module is the bare top-level namespace, the symbol is pushed down into
// the single allowlist module that declares it; zero or several candidate
// owners yield Ambiguous.
func (am *AliasMap) ResolveSymbol(parts []string) (module, symbol string, out Outcome) {
	if len(parts) < 2 {
		return "", "", Unresolved
	}
	base, ok := am.aliases[parts[0]]
	if !ok {
		return "", "", Unresolved
	}
	full := append([]string{base}, parts[1:]...)
	symbol = full[len(full)-1]
	module = strings.Join(full[:len(full)-1], ".")
	if module == am.pol.Library.Name {
		owners := am.pol.Owners(symbol)
		if len(owners) != 1 {
			return module, symbol, Ambiguous
		}
		module = owners[0]
	}
	return module, symbol, Resolved
}
