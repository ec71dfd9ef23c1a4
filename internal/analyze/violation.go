package analyze

// Kind classifies a violation. The set mirrors the checks the walker
// applies; parse errors use KindParse and short-circuit everything else.
type Kind string

const (
	KindParse        Kind = "parse_error"
	KindImport       Kind = "import"
	KindConstructor  Kind = "constructor"
	KindAccess       Kind = "attribute_access"
	KindUnresolvable Kind = "unresolvable_symbol"
	KindDenied       Kind = "denied_attribute"
	KindMethod       Kind = "method_not_found"
	KindArity        Kind = "arity"
)

// Violation is one policy finding. Violations are accumulated in traversal
// order and never deduplicated: a single bad call can legitimately produce
// several findings.
type Violation struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return string(v.Kind) + ": " + v.Message
}

// Messages extracts the message strings, preserving order. The HTTP gate
// returns these directly in its errors array.
func Messages(violations []Violation) []string {
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.Message
	}
	return msgs
}
