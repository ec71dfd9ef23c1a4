// Package policy holds the in-memory allowlist: permitted modules and
// their class sets, constructor arity windows, legacy rename maps, and the
// denied-attribute hint table. A Policy is immutable once loaded; one
// instance may be shared by any number of concurrent validations.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// Library names the guarded library: its top-level namespace, the alias
// scripts conventionally use for it, and the submodule that alias points
// at when the script never declares its own import.
type Library struct {
	Name          string `json:"name"`
	DefaultAlias  string `json:"default_alias"`
	DefaultModule string `json:"default_module"`
}

// ArityWindow is an accepted argument-count range for one declared
// constructor signature.
type ArityWindow struct {
	Min int
	Max int
}

func (w ArityWindow) String() string {
	return fmt.Sprintf("(%d,%d)", w.Min, w.Max)
}

// WindowsString renders a window list for violation messages.
func WindowsString(windows []ArityWindow) string {
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = w.String()
	}
	return strings.Join(parts, ", ")
}

// Policy is the parsed allowlist document.
type Policy struct {
	Modules          map[string]map[string]bool // module path -> permitted class names
	Enums            map[string]bool
	Overloads        map[string][]ArityWindow // fully-qualified class -> windows
	LegacyClasses    map[string]string
	LegacyAttributes map[string]string
	DeniedAttributes map[string]string // attribute name -> remediation hint
	SafeImports      map[string]bool
	Library          Library
}

// document is the on-disk shape (JSON, with jsonc comments tolerated).
type document struct {
	Modules          map[string][]string      `json:"modules"`
	Enums            []string                 `json:"enums"`
	Overloads        map[string][]overloadDoc `json:"overloads"`
	LegacyMap        *legacyDoc               `json:"legacy_map"`
	DeniedAttributes map[string]string        `json:"denied_attributes"`
	SafeImports      []string                 `json:"safe_imports"`
	Library          *Library                 `json:"library"`
	// Accepted for compatibility with older allowlist files; unused.
	ClassMethods map[string][]string `json:"class_methods"`
}

type overloadDoc struct {
	Args     []string `json:"args"`
	Defaults int      `json:"defaults"`
}

type legacyDoc struct {
	Classes    map[string]string `json:"classes"`
	Attributes map[string]string `json:"attributes"`
}

// DefaultLibrary is used when the document has no library section.
var DefaultLibrary = Library{
	Name:          "pychrono",
	DefaultAlias:  "chrono",
	DefaultModule: "pychrono.core",
}

// defaultSafeImports mirrors the auxiliary stdlib helpers the gate has
// always allowed alongside the library.
var defaultSafeImports = []string{"math"}

// Load parses a policy document. Comments and trailing commas are allowed.
// Unspecified optional fields default to empty collections.
func Load(data []byte) (*Policy, error) {
	var doc document
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("policy: parse document: %w", err)
	}

	p := &Policy{
		Modules:          make(map[string]map[string]bool, len(doc.Modules)),
		Enums:            make(map[string]bool, len(doc.Enums)),
		Overloads:        make(map[string][]ArityWindow, len(doc.Overloads)),
		LegacyClasses:    map[string]string{},
		LegacyAttributes: map[string]string{},
		DeniedAttributes: doc.DeniedAttributes,
		SafeImports:      map[string]bool{},
		Library:          DefaultLibrary,
	}
	if p.DeniedAttributes == nil {
		p.DeniedAttributes = map[string]string{}
	}
	for mod, classes := range doc.Modules {
		set := make(map[string]bool, len(classes))
		for _, c := range classes {
			set[c] = true
		}
		p.Modules[mod] = set
	}
	for _, e := range doc.Enums {
		p.Enums[e] = true
	}
	for fqcn, sigs := range doc.Overloads {
		windows := make([]ArityWindow, 0, len(sigs))
		for _, sig := range sigs {
			min := len(sig.Args) - sig.Defaults
			if min < 0 {
				min = 0
			}
			windows = append(windows, ArityWindow{Min: min, Max: len(sig.Args)})
		}
		p.Overloads[fqcn] = windows
	}
	if doc.LegacyMap != nil {
		for old, current := range doc.LegacyMap.Classes {
			p.LegacyClasses[old] = current
		}
		for old, current := range doc.LegacyMap.Attributes {
			p.LegacyAttributes[old] = current
		}
	}
	safe := doc.SafeImports
	if safe == nil {
		safe = defaultSafeImports
	}
	for _, name := range safe {
		p.SafeImports[name] = true
	}
	if doc.Library != nil {
		p.Library = *doc.Library
		if p.Library.Name == "" {
			p.Library.Name = DefaultLibrary.Name
		}
	}
	return p, nil
}

// LoadFile reads and parses a policy document from disk.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	p, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("policy: %s: %w", path, err)
	}
	return p, nil
}

// AllowedClass reports whether class is permitted in module.
func (p *Policy) AllowedClass(module, class string) bool {
	return p.Modules[module][class]
}

// KnownModule reports whether module is an allowlist module key.
func (p *Policy) KnownModule(module string) bool {
	_, ok := p.Modules[module]
	return ok
}

// InLibrary reports whether name is the library namespace or under it.
func (p *Policy) InLibrary(name string) bool {
	return name == p.Library.Name || strings.HasPrefix(name, p.Library.Name+".")
}

// AllowedImport reports whether a whole-module import of name is allowed:
// safe auxiliary imports, the library's top-level namespace, or a module
// key (or dotted descendant of one).
func (p *Policy) AllowedImport(name string) bool {
	if p.SafeImports[name] || name == p.Library.Name {
		return true
	}
	for mod := range p.Modules {
		if name == mod || strings.HasPrefix(name, mod+".") {
			return true
		}
	}
	return false
}

// Owners returns the sorted list of module keys whose class set contains
// class. The bare top-level disambiguation rule accepts exactly one owner.
func (p *Policy) Owners(class string) []string {
	var owners []string
	for mod, classes := range p.Modules {
		if classes[class] {
			owners = append(owners, mod)
		}
	}
	sort.Strings(owners)
	return owners
}

// Windows returns the declared arity windows for a fully-qualified class,
// or nil when no overload information exists.
func (p *Policy) Windows(fqcn string) []ArityWindow {
	return p.Overloads[fqcn]
}
