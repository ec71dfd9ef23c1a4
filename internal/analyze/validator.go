package analyze

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"chronogate/internal/policy"
	"chronogate/internal/pysrc"
)

// validator.go — the single-pass tree walker. Each node kind gets its own
// independent check; the checks deliberately do not coordinate, so one
// offending expression may surface through several of them.

// Capabilities answers membership questions about a fully-qualified class.
// Lookup returns the member set and whether the class is known at all; an
// unknown class suppresses method checks rather than failing them.
type Capabilities interface {
	Lookup(fqcn string) (members map[string]bool, known bool)
}

// Validate walks a parsed tree and returns every violation in traversal
// order. caps may be nil, in which case method existence is never checked.
func Validate(mod *pysrc.Module, pol *policy.Policy, caps Capabilities) []Violation {
	v := &validator{
		pol:      pol,
		caps:     caps,
		aliases:  BuildAliasMap(mod, pol),
		bindings: map[string]string{},
	}
	pysrc.Walk(mod, v.visit)
	return v.out
}

// ValidateSource parses and validates source text. A parse failure yields a
// single parse violation and nothing else runs.
func ValidateSource(src string, pol *policy.Policy, caps Capabilities) []Violation {
	mod, err := pysrc.Parse(src)
	if err != nil {
		return []Violation{{Kind: KindParse, Message: fmt.Sprintf("SyntaxError: %v", err)}}
	}
	return Validate(mod, pol, caps)
}

type validator struct {
	pol      *policy.Policy
	caps     Capabilities
	aliases  *AliasMap
	bindings map[string]string // variable name -> fully-qualified class
	out      []Violation
}

func (v *validator) report(kind Kind, format string, args ...any) {
	v.out = append(v.out, Violation{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) visit(n pysrc.Node) bool {
	switch node := n.(type) {
	case *pysrc.ImportStmt:
		v.checkImport(node)
	case *pysrc.FromImportStmt:
		v.report(KindImport,
			"Disallowed import style: 'from %s import ...'. Use plain 'import %s' instead.",
			node.Module, node.Module)
	case *pysrc.AssignStmt:
		v.checkAssign(node)
	case *pysrc.CallExpr:
		v.checkCall(node)
	case *pysrc.AttributeExpr:
		v.checkAttribute(node)
	}
	return true
}

func (v *validator) checkImport(imp *pysrc.ImportStmt) {
	for _, alias := range imp.Names {
		if v.pol.SafeImports[alias.Name] {
			continue
		}
		if !v.pol.InLibrary(alias.Name) {
			v.report(KindImport,
				"Import of '%s' is not allowed. Only '%s' and safe auxiliary modules may be imported.",
				alias.Name, v.pol.Library.Name)
			continue
		}
		if !v.pol.AllowedImport(alias.Name) {
			v.report(KindImport,
				"Import of '%s' is not allowed: module is not in the allowlist.", alias.Name)
		}
	}
}

// checkAssign tracks variable bindings. Any assignment to a plain name
// overwrites its previous binding; only a call to an allowlisted
// constructor installs a new one. Constructions outside the allowlist are
// reported here, and again by the call check, which is intentional.
func (v *validator) checkAssign(assign *pysrc.AssignStmt) {
	for _, t := range assign.Targets {
		if name, ok := t.(*pysrc.NameExpr); ok {
			delete(v.bindings, name.ID)
		}
	}

	call, ok := unparen(assign.Value).(*pysrc.CallExpr)
	if !ok {
		return
	}
	parts, ok := FlattenPath(call.Func)
	if !ok {
		return
	}
	module, symbol, out := v.aliases.ResolveSymbol(parts)
	if out != Resolved {
		return
	}
	if v.pol.AllowedClass(module, symbol) {
		fqcn := module + "." + symbol
		for _, t := range assign.Targets {
			if name, ok := t.(*pysrc.NameExpr); ok {
				v.bindings[name.ID] = fqcn
			}
		}
		return
	}
	// Library submodules without an allowlist entry permit nothing, so
	// the check does not care whether the module key exists.
	if v.pol.InLibrary(module) {
		v.report(KindConstructor,
			"Constructor '%s.%s' is not in the allowlist.", module, symbol)
	}
}

func (v *validator) checkCall(call *pysrc.CallExpr) {
	if parts, ok := FlattenPath(call.Func); ok {
		module, symbol, out := v.aliases.ResolveSymbol(parts)
		if out == Resolved && v.pol.InLibrary(module) {
			if !v.pol.AllowedClass(module, symbol) {
				v.report(KindConstructor,
					"Call to '%s.%s' is not a whitelisted constructor.", module, symbol)
			}
			v.checkArity(call, module+"."+symbol)
		}
	}

	attr, ok := call.Func.(*pysrc.AttributeExpr)
	if !ok {
		return
	}
	// Denied attributes win over every other method-level check.
	if hint, denied := v.pol.DeniedAttributes[attr.Attr]; denied {
		msg := fmt.Sprintf("Use of '%s' is not allowed.", attr.Attr)
		if hint != "" {
			msg += " " + hint
		}
		v.report(KindDenied, "%s", msg)
		return
	}
	recv, ok := unparen(attr.Value).(*pysrc.NameExpr)
	if !ok || v.caps == nil {
		return
	}
	fqcn, bound := v.bindings[recv.ID]
	if !bound {
		return
	}
	members, known := v.caps.Lookup(fqcn)
	if known && !members[attr.Attr] {
		v.report(KindMethod,
			"Object '%s' (of type '%s') has no method '%s'.", recv.ID, fqcn, attr.Attr)
	}
}

// checkArity counts positional arguments plus named keywords and tests
// the count against every declared window. A *spread or **spread makes
// the true count unknowable, so the check stands down.
func (v *validator) checkArity(call *pysrc.CallExpr, fqcn string) {
	windows := v.pol.Windows(fqcn)
	if len(windows) == 0 {
		return
	}
	n := 0
	for _, a := range call.Args {
		if _, starred := a.(*pysrc.StarredExpr); starred {
			return
		}
		n++
	}
	for _, kw := range call.Keywords {
		if kw.Name == "" {
			return
		}
		n++
	}
	for _, w := range windows {
		if n >= w.Min && n <= w.Max {
			return
		}
	}
	v.report(KindArity,
		"Wrong number of arguments for '%s': got %d, expected one of %s.",
		fqcn, n, policy.WindowsString(windows))
}

// checkAttribute validates dotted references into the library namespace.
// Every attribute node in a chain is visited, so a.b.C is checked both as
// the full path and as its prefixes; only paths whose trailing segment
// looks like a class name (leading uppercase) are judged.
func (v *validator) checkAttribute(attr *pysrc.AttributeExpr) {
	parts, ok := FlattenPath(attr)
	if !ok {
		return
	}
	if _, known := v.aliases.Module(parts[0]); !known {
		return
	}
	module, symbol, out := v.aliases.ResolveSymbol(parts)
	if !leadingUpper(symbol) {
		return
	}
	switch out {
	case Ambiguous:
		// Enum constants live directly under the bare namespace and never
		// have an owning module; a declared enum is not an open question.
		if v.pol.Enums[symbol] {
			return
		}
		v.report(KindUnresolvable,
			"Could not resolve '%s.%s' to a single allowlist module.", v.pol.Library.Name, symbol)
	case Resolved:
		if v.pol.KnownModule(module) && !v.pol.AllowedClass(module, symbol) && !v.pol.Enums[symbol] {
			v.report(KindAccess,
				"Access to '%s.%s' is not allowed (not in allowlist).", module, symbol)
		}
	}
}

func unparen(e pysrc.Expr) pysrc.Expr {
	for {
		p, ok := e.(*pysrc.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}

func leadingUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
