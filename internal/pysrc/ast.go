package pysrc

// ast.go — explicit tree type for the Python subset: tagged variants for
// statement and expression kinds, plus a pre-order Walk used by the
// validator and the rewrite pass.

// Node is any statement or expression.
type Node interface{}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Module is the root of a parsed source file.
type Module struct {
	Body []Stmt
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ImportAlias is one name in an import statement: "pychrono.vehicle as veh".
type ImportAlias struct {
	Name   string // dotted module path
	AsName string // empty when no alias was given
}

// ImportStmt is "import a.b as c, d".
type ImportStmt struct {
	Line  int
	Names []ImportAlias
}

// FromImportStmt is "from X import Y as Z, ..." (always rejected by the
// validator, but parsed so the rejection can name the module).
type FromImportStmt struct {
	Line   int
	Module string
	Names  []ImportAlias
	Star   bool
}

// AssignStmt is "a = b = value". Targets holds every left-hand side.
type AssignStmt struct {
	Line    int
	Targets []Expr
	Value   Expr
}

// AugAssignStmt is "x += value" and friends. Op includes the '='.
type AugAssignStmt struct {
	Line   int
	Target Expr
	Op     string
	Value  Expr
}

// AnnAssignStmt is "x: T" or "x: T = value".
type AnnAssignStmt struct {
	Line       int
	Target     Expr
	Annotation Expr
	Value      Expr // nil when the annotation has no initializer
}

// ExprStmt is a bare expression used as a statement.
type ExprStmt struct {
	Line int
	X    Expr
}

// ReturnStmt is "return [value]".
type ReturnStmt struct {
	Line  int
	Value Expr
}

// RaiseStmt is "raise [exc [from cause]]".
type RaiseStmt struct {
	Line  int
	Exc   Expr
	Cause Expr
}

// PassStmt, BreakStmt, ContinueStmt are single-keyword statements.
type PassStmt struct{ Line int }
type BreakStmt struct{ Line int }
type ContinueStmt struct{ Line int }

// GlobalStmt is "global a, b" or "nonlocal a, b" (Keyword distinguishes).
type GlobalStmt struct {
	Line    int
	Keyword string
	Names   []string
}

// DeleteStmt is "del a, b".
type DeleteStmt struct {
	Line    int
	Targets []Expr
}

// AssertStmt is "assert test[, msg]".
type AssertStmt struct {
	Line int
	Test Expr
	Msg  Expr
}

// IfStmt is an if/elif/else chain; elif is a nested IfStmt in Orelse.
type IfStmt struct {
	Line   int
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// WhileStmt is "while test: ... [else: ...]".
type WhileStmt struct {
	Line   int
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// ForStmt is "for target in iter: ... [else: ...]".
type ForStmt struct {
	Line   int
	Target Expr
	Iter   Expr
	Body   []Stmt
	Orelse []Stmt
}

// WithItem is one "context [as target]" clause of a with statement.
type WithItem struct {
	Context Expr
	As      Expr
}

// WithStmt is "with a as b, c: ...".
type WithStmt struct {
	Line  int
	Items []WithItem
	Body  []Stmt
}

// ExceptHandler is one "except [type [as name]]:" clause.
type ExceptHandler struct {
	Line int
	Type Expr
	Name string
	Body []Stmt
}

// TryStmt is try/except/else/finally.
type TryStmt struct {
	Line     int
	Body     []Stmt
	Handlers []ExceptHandler
	Orelse   []Stmt
	Final    []Stmt
}

// Param is one parameter of a def or lambda. Star is "", "*", or "**";
// a bare "*" separator has Star "*" and an empty Name.
type Param struct {
	Name       string
	Annotation Expr
	Default    Expr
	Star       string
}

// FuncDef is "def name(params) [-> returns]: body".
type FuncDef struct {
	Line       int
	Name       string
	Params     []Param
	Returns    Expr
	Body       []Stmt
	Decorators []Expr
}

// ClassDef is "class name(bases): body".
type ClassDef struct {
	Line       int
	Name       string
	Bases      []Expr
	Keywords   []Keyword
	Body       []Stmt
	Decorators []Expr
}

// RawStmt preserves a logical line the parser could not interpret. The
// verbatim text round-trips through the unparser; Body carries an indented
// suite when the raw line introduced one, so nested statements are still
// visited by the validator.
type RawStmt struct {
	Line int
	Text string
	Body []Stmt
}

func (*ImportStmt) stmtNode()     {}
func (*FromImportStmt) stmtNode() {}
func (*AssignStmt) stmtNode()     {}
func (*AugAssignStmt) stmtNode()  {}
func (*AnnAssignStmt) stmtNode()  {}
func (*ExprStmt) stmtNode()       {}
func (*ReturnStmt) stmtNode()     {}
func (*RaiseStmt) stmtNode()      {}
func (*PassStmt) stmtNode()       {}
func (*BreakStmt) stmtNode()      {}
func (*ContinueStmt) stmtNode()   {}
func (*GlobalStmt) stmtNode()     {}
func (*DeleteStmt) stmtNode()     {}
func (*AssertStmt) stmtNode()     {}
func (*IfStmt) stmtNode()         {}
func (*WhileStmt) stmtNode()      {}
func (*ForStmt) stmtNode()        {}
func (*WithStmt) stmtNode()       {}
func (*TryStmt) stmtNode()        {}
func (*FuncDef) stmtNode()        {}
func (*ClassDef) stmtNode()       {}
func (*RawStmt) stmtNode()        {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// NameExpr is a bare identifier (True/False/None included).
type NameExpr struct {
	Line int
	ID   string
}

// AttributeExpr is "value.attr".
type AttributeExpr struct {
	Line  int
	Value Expr
	Attr  string
}

// Keyword is a keyword argument "name=value"; an empty Name means **value.
type Keyword struct {
	Name  string
	Value Expr
}

// CallExpr is "func(args, kw=..., *a, **kw)".
type CallExpr struct {
	Line     int
	Func     Expr
	Args     []Expr
	Keywords []Keyword
}

// SubscriptExpr is "value[index]".
type SubscriptExpr struct {
	Line  int
	Value Expr
	Index Expr
}

// SliceExpr is "[lo:hi:step]" inside a subscript; any part may be nil.
type SliceExpr struct {
	Lo, Hi, Step Expr
}

// NumberLit carries the verbatim numeric literal.
type NumberLit struct {
	Line int
	Lit  string
}

// StringLit carries one or more adjacent string literals, verbatim with
// quotes and prefixes.
type StringLit struct {
	Line  int
	Parts []string
}

// EllipsisLit is "...".
type EllipsisLit struct{ Line int }

// TupleExpr is a comma-separated expression list; Parens records whether it
// was written with surrounding parentheses.
type TupleExpr struct {
	Line   int
	Elts   []Expr
	Parens bool
}

// ListExpr is "[a, b]".
type ListExpr struct {
	Line int
	Elts []Expr
}

// SetExpr is "{a, b}".
type SetExpr struct {
	Line int
	Elts []Expr
}

// DictExpr is "{k: v, **m}"; a nil key marks a **value entry.
type DictExpr struct {
	Line   int
	Keys   []Expr
	Values []Expr
}

// UnaryExpr is "-x", "+x", "~x", "not x".
type UnaryExpr struct {
	Line    int
	Op      string
	Operand Expr
}

// BinaryExpr is a single binary operation.
type BinaryExpr struct {
	Line  int
	Op    string
	Left  Expr
	Right Expr
}

// BoolOpExpr is an "and"/"or" chain.
type BoolOpExpr struct {
	Line   int
	Op     string
	Values []Expr
}

// CompareExpr is a comparison chain "a < b <= c".
type CompareExpr struct {
	Line        int
	Left        Expr
	Ops         []string
	Comparators []Expr
}

// IfExpr is the ternary "body if test else orelse".
type IfExpr struct {
	Line   int
	Body   Expr
	Test   Expr
	Orelse Expr
}

// LambdaExpr is "lambda params: body".
type LambdaExpr struct {
	Line   int
	Params []Param
	Body   Expr
}

// StarredExpr is "*value" in calls and assignment targets.
type StarredExpr struct {
	Line  int
	Value Expr
}

// ParenExpr preserves explicit parentheses around a single expression.
type ParenExpr struct {
	Line int
	X    Expr
}

// CompFor is one "for target in iter [if cond]*" clause of a comprehension.
type CompFor struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

// CompExpr is a comprehension. Kind is '(' for generator, '[' for list,
// '{' for set, and 'd' for dict (Key/Value set instead of Elt).
type CompExpr struct {
	Line  int
	Kind  byte
	Elt   Expr
	Key   Expr
	Value Expr
	Fors  []CompFor
}

func (*NameExpr) exprNode()      {}
func (*AttributeExpr) exprNode() {}
func (*CallExpr) exprNode()      {}
func (*SubscriptExpr) exprNode() {}
func (*SliceExpr) exprNode()     {}
func (*NumberLit) exprNode()     {}
func (*StringLit) exprNode()     {}
func (*EllipsisLit) exprNode()   {}
func (*TupleExpr) exprNode()     {}
func (*ListExpr) exprNode()      {}
func (*SetExpr) exprNode()       {}
func (*DictExpr) exprNode()      {}
func (*UnaryExpr) exprNode()     {}
func (*BinaryExpr) exprNode()    {}
func (*BoolOpExpr) exprNode()    {}
func (*CompareExpr) exprNode()   {}
func (*IfExpr) exprNode()        {}
func (*LambdaExpr) exprNode()    {}
func (*StarredExpr) exprNode()   {}
func (*ParenExpr) exprNode()     {}
func (*CompExpr) exprNode()      {}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// Walk visits n and its children in lexical order. The callback returning
// false prunes the subtree. Nil children are skipped, so the walk is safe
// on partially-built trees.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	walkChildren(n, fn)
}

func walkStmts(body []Stmt, fn func(Node) bool) {
	for _, s := range body {
		Walk(s, fn)
	}
}

func walkExprs(exprs []Expr, fn func(Node) bool) {
	for _, e := range exprs {
		if e != nil {
			Walk(e, fn)
		}
	}
}

func walkParams(params []Param, fn func(Node) bool) {
	for _, p := range params {
		if p.Annotation != nil {
			Walk(p.Annotation, fn)
		}
		if p.Default != nil {
			Walk(p.Default, fn)
		}
	}
}

func walkChildren(n Node, fn func(Node) bool) {
	switch v := n.(type) {
	case *Module:
		walkStmts(v.Body, fn)
	case *AssignStmt:
		walkExprs(v.Targets, fn)
		Walk(v.Value, fn)
	case *AugAssignStmt:
		Walk(v.Target, fn)
		Walk(v.Value, fn)
	case *AnnAssignStmt:
		Walk(v.Target, fn)
		Walk(v.Annotation, fn)
		if v.Value != nil {
			Walk(v.Value, fn)
		}
	case *ExprStmt:
		Walk(v.X, fn)
	case *ReturnStmt:
		if v.Value != nil {
			Walk(v.Value, fn)
		}
	case *RaiseStmt:
		if v.Exc != nil {
			Walk(v.Exc, fn)
		}
		if v.Cause != nil {
			Walk(v.Cause, fn)
		}
	case *DeleteStmt:
		walkExprs(v.Targets, fn)
	case *AssertStmt:
		Walk(v.Test, fn)
		if v.Msg != nil {
			Walk(v.Msg, fn)
		}
	case *IfStmt:
		Walk(v.Test, fn)
		walkStmts(v.Body, fn)
		walkStmts(v.Orelse, fn)
	case *WhileStmt:
		Walk(v.Test, fn)
		walkStmts(v.Body, fn)
		walkStmts(v.Orelse, fn)
	case *ForStmt:
		Walk(v.Target, fn)
		Walk(v.Iter, fn)
		walkStmts(v.Body, fn)
		walkStmts(v.Orelse, fn)
	case *WithStmt:
		for _, item := range v.Items {
			Walk(item.Context, fn)
			if item.As != nil {
				Walk(item.As, fn)
			}
		}
		walkStmts(v.Body, fn)
	case *TryStmt:
		walkStmts(v.Body, fn)
		for _, h := range v.Handlers {
			if h.Type != nil {
				Walk(h.Type, fn)
			}
			walkStmts(h.Body, fn)
		}
		walkStmts(v.Orelse, fn)
		walkStmts(v.Final, fn)
	case *FuncDef:
		walkExprs(v.Decorators, fn)
		walkParams(v.Params, fn)
		if v.Returns != nil {
			Walk(v.Returns, fn)
		}
		walkStmts(v.Body, fn)
	case *ClassDef:
		walkExprs(v.Decorators, fn)
		walkExprs(v.Bases, fn)
		for _, kw := range v.Keywords {
			Walk(kw.Value, fn)
		}
		walkStmts(v.Body, fn)
	case *RawStmt:
		walkStmts(v.Body, fn)
	case *AttributeExpr:
		Walk(v.Value, fn)
	case *CallExpr:
		Walk(v.Func, fn)
		walkExprs(v.Args, fn)
		for _, kw := range v.Keywords {
			Walk(kw.Value, fn)
		}
	case *SubscriptExpr:
		Walk(v.Value, fn)
		Walk(v.Index, fn)
	case *SliceExpr:
		if v.Lo != nil {
			Walk(v.Lo, fn)
		}
		if v.Hi != nil {
			Walk(v.Hi, fn)
		}
		if v.Step != nil {
			Walk(v.Step, fn)
		}
	case *TupleExpr:
		walkExprs(v.Elts, fn)
	case *ListExpr:
		walkExprs(v.Elts, fn)
	case *SetExpr:
		walkExprs(v.Elts, fn)
	case *DictExpr:
		for i := range v.Values {
			if v.Keys[i] != nil {
				Walk(v.Keys[i], fn)
			}
			Walk(v.Values[i], fn)
		}
	case *UnaryExpr:
		Walk(v.Operand, fn)
	case *BinaryExpr:
		Walk(v.Left, fn)
		Walk(v.Right, fn)
	case *BoolOpExpr:
		walkExprs(v.Values, fn)
	case *CompareExpr:
		Walk(v.Left, fn)
		walkExprs(v.Comparators, fn)
	case *IfExpr:
		Walk(v.Body, fn)
		Walk(v.Test, fn)
		Walk(v.Orelse, fn)
	case *LambdaExpr:
		walkParams(v.Params, fn)
		Walk(v.Body, fn)
	case *StarredExpr:
		Walk(v.Value, fn)
	case *ParenExpr:
		Walk(v.X, fn)
	case *CompExpr:
		if v.Kind == 'd' {
			Walk(v.Key, fn)
			Walk(v.Value, fn)
		} else {
			Walk(v.Elt, fn)
		}
		for _, f := range v.Fors {
			Walk(f.Target, fn)
			Walk(f.Iter, fn)
			walkExprs(f.Ifs, fn)
		}
	}
}
