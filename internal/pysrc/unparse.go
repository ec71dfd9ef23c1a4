package pysrc

// unparse.go — regenerates source text from the tree. Output is canonical
// (4-space indents, single spaces around binary operators); RawStmt lines
// are emitted verbatim. The guarantee the rewrite pass depends on is that
// Unparse(Parse(x)) parses back to an equivalent tree, not that the text
// is byte-identical to the input.

import (
	"strings"
)

const indentUnit = "    "

// Unparse renders a module back to source text.
func Unparse(mod *Module) string {
	var u unparser
	u.stmts(mod.Body, 0)
	return u.b.String()
}

// UnparseExpr renders a single expression.
func UnparseExpr(e Expr) string {
	var u unparser
	u.expr(e, precTest)
	return u.b.String()
}

type unparser struct {
	b strings.Builder
}

func (u *unparser) write(s string) { u.b.WriteString(s) }

func (u *unparser) line(depth int, s string) {
	for i := 0; i < depth; i++ {
		u.write(indentUnit)
	}
	u.write(s)
	u.write("\n")
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (u *unparser) stmts(body []Stmt, depth int) {
	if len(body) == 0 {
		u.line(depth, "pass")
		return
	}
	for _, s := range body {
		u.stmt(s, depth)
	}
}

func (u *unparser) suiteHeader(depth int, header string, body []Stmt) {
	u.line(depth, header+":")
	u.stmts(body, depth+1)
}

func (u *unparser) stmt(s Stmt, depth int) {
	switch v := s.(type) {
	case *ImportStmt:
		var parts []string
		for _, a := range v.Names {
			parts = append(parts, importAliasText(a))
		}
		u.line(depth, "import "+strings.Join(parts, ", "))
	case *FromImportStmt:
		if v.Star {
			u.line(depth, "from "+v.Module+" import *")
			return
		}
		var parts []string
		for _, a := range v.Names {
			parts = append(parts, importAliasText(a))
		}
		u.line(depth, "from "+v.Module+" import "+strings.Join(parts, ", "))
	case *AssignStmt:
		var parts []string
		for _, t := range v.Targets {
			parts = append(parts, UnparseExpr(t))
		}
		u.line(depth, strings.Join(parts, " = ")+" = "+UnparseExpr(v.Value))
	case *AugAssignStmt:
		u.line(depth, UnparseExpr(v.Target)+" "+v.Op+" "+UnparseExpr(v.Value))
	case *AnnAssignStmt:
		text := UnparseExpr(v.Target) + ": " + UnparseExpr(v.Annotation)
		if v.Value != nil {
			text += " = " + UnparseExpr(v.Value)
		}
		u.line(depth, text)
	case *ExprStmt:
		u.line(depth, UnparseExpr(v.X))
	case *ReturnStmt:
		if v.Value == nil {
			u.line(depth, "return")
		} else {
			u.line(depth, "return "+UnparseExpr(v.Value))
		}
	case *RaiseStmt:
		text := "raise"
		if v.Exc != nil {
			text += " " + UnparseExpr(v.Exc)
			if v.Cause != nil {
				text += " from " + UnparseExpr(v.Cause)
			}
		}
		u.line(depth, text)
	case *PassStmt:
		u.line(depth, "pass")
	case *BreakStmt:
		u.line(depth, "break")
	case *ContinueStmt:
		u.line(depth, "continue")
	case *GlobalStmt:
		u.line(depth, v.Keyword+" "+strings.Join(v.Names, ", "))
	case *DeleteStmt:
		var parts []string
		for _, t := range v.Targets {
			parts = append(parts, UnparseExpr(t))
		}
		u.line(depth, "del "+strings.Join(parts, ", "))
	case *AssertStmt:
		text := "assert " + UnparseExpr(v.Test)
		if v.Msg != nil {
			text += ", " + UnparseExpr(v.Msg)
		}
		u.line(depth, text)
	case *IfStmt:
		u.ifChain(v, depth, "if")
	case *WhileStmt:
		u.suiteHeader(depth, "while "+UnparseExpr(v.Test), v.Body)
		if v.Orelse != nil {
			u.suiteHeader(depth, "else", v.Orelse)
		}
	case *ForStmt:
		u.suiteHeader(depth, "for "+UnparseExpr(v.Target)+" in "+UnparseExpr(v.Iter), v.Body)
		if v.Orelse != nil {
			u.suiteHeader(depth, "else", v.Orelse)
		}
	case *WithStmt:
		var parts []string
		for _, item := range v.Items {
			text := UnparseExpr(item.Context)
			if item.As != nil {
				text += " as " + UnparseExpr(item.As)
			}
			parts = append(parts, text)
		}
		u.suiteHeader(depth, "with "+strings.Join(parts, ", "), v.Body)
	case *TryStmt:
		u.suiteHeader(depth, "try", v.Body)
		for _, h := range v.Handlers {
			header := "except"
			if h.Type != nil {
				header += " " + UnparseExpr(h.Type)
				if h.Name != "" {
					header += " as " + h.Name
				}
			}
			u.suiteHeader(depth, header, h.Body)
		}
		if v.Orelse != nil {
			u.suiteHeader(depth, "else", v.Orelse)
		}
		if v.Final != nil {
			u.suiteHeader(depth, "finally", v.Final)
		}
	case *FuncDef:
		for _, d := range v.Decorators {
			u.line(depth, "@"+UnparseExpr(d))
		}
		header := "def " + v.Name + "(" + paramsText(v.Params) + ")"
		if v.Returns != nil {
			header += " -> " + UnparseExpr(v.Returns)
		}
		u.suiteHeader(depth, header, v.Body)
	case *ClassDef:
		for _, d := range v.Decorators {
			u.line(depth, "@"+UnparseExpr(d))
		}
		header := "class " + v.Name
		if len(v.Bases) > 0 || len(v.Keywords) > 0 {
			header += "(" + argsText(v.Bases, v.Keywords) + ")"
		}
		u.suiteHeader(depth, header, v.Body)
	case *RawStmt:
		u.line(depth, v.Text)
		if v.Body != nil {
			u.stmts(v.Body, depth+1)
		}
	}
}

func (u *unparser) ifChain(v *IfStmt, depth int, keyword string) {
	u.suiteHeader(depth, keyword+" "+UnparseExpr(v.Test), v.Body)
	if len(v.Orelse) == 1 {
		if elif, ok := v.Orelse[0].(*IfStmt); ok {
			u.ifChain(elif, depth, "elif")
			return
		}
	}
	if v.Orelse != nil {
		u.suiteHeader(depth, "else", v.Orelse)
	}
}

func importAliasText(a ImportAlias) string {
	if a.AsName != "" {
		return a.Name + " as " + a.AsName
	}
	return a.Name
}

func paramsText(params []Param) string {
	var parts []string
	for _, p := range params {
		text := p.Star + p.Name
		if p.Annotation != nil {
			text += ": " + UnparseExpr(p.Annotation)
		}
		if p.Default != nil {
			if p.Annotation != nil {
				text += " = " + UnparseExpr(p.Default)
			} else {
				text += "=" + UnparseExpr(p.Default)
			}
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, ", ")
}

func argsText(args []Expr, keywords []Keyword) string {
	var parts []string
	for _, a := range args {
		parts = append(parts, UnparseExpr(a))
	}
	for _, kw := range keywords {
		if kw.Name == "" {
			parts = append(parts, "**"+UnparseExpr(kw.Value))
		} else {
			parts = append(parts, kw.Name+"="+UnparseExpr(kw.Value))
		}
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Precedence levels, loosest first. A child rendered in a context that
// requires tighter binding than it provides gets parenthesized.
const (
	precTest = iota + 1 // lambda, ternary, walrus, yield
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precArith
	precTerm
	precFactor
	precPower
	precPostfix
)

var binaryPrec = map[string]int{
	":=": precTest,
	"|":  precBitOr,
	"^":  precBitXor,
	"&":  precBitAnd,
	"<<": precShift, ">>": precShift,
	"+": precArith, "-": precArith,
	"*": precTerm, "/": precTerm, "//": precTerm, "%": precTerm, "@": precTerm,
	"**": precPower,
}

func exprPrec(e Expr) int {
	switch v := e.(type) {
	case *IfExpr, *LambdaExpr:
		return precTest
	case *BoolOpExpr:
		if v.Op == "or" {
			return precOr
		}
		return precAnd
	case *UnaryExpr:
		switch v.Op {
		case "not":
			return precNot
		case "yield", "yield from", "await":
			return precTest
		}
		return precFactor
	case *CompareExpr:
		return precCompare
	case *BinaryExpr:
		if p, ok := binaryPrec[v.Op]; ok {
			return p
		}
		return precTest
	case *TupleExpr:
		if !v.Parens {
			return precTest
		}
		return precPostfix
	case *StarredExpr:
		return precTest
	}
	return precPostfix
}

func (u *unparser) expr(e Expr, min int) {
	if e == nil {
		return
	}
	paren := exprPrec(e) < min
	if paren {
		u.write("(")
	}
	u.exprInner(e)
	if paren {
		u.write(")")
	}
}

func (u *unparser) exprInner(e Expr) {
	switch v := e.(type) {
	case *NameExpr:
		u.write(v.ID)
	case *NumberLit:
		u.write(v.Lit)
	case *StringLit:
		u.write(strings.Join(v.Parts, " "))
	case *EllipsisLit:
		u.write("...")
	case *AttributeExpr:
		u.expr(v.Value, precPostfix)
		u.write(".")
		u.write(v.Attr)
	case *CallExpr:
		u.expr(v.Func, precPostfix)
		u.write("(")
		u.write(argsText(v.Args, v.Keywords))
		u.write(")")
	case *SubscriptExpr:
		u.expr(v.Value, precPostfix)
		u.write("[")
		u.exprInner(v.Index)
		u.write("]")
	case *SliceExpr:
		if v.Lo != nil {
			u.expr(v.Lo, precTest)
		}
		u.write(":")
		if v.Hi != nil {
			u.expr(v.Hi, precTest)
		}
		if v.Step != nil {
			u.write(":")
			u.expr(v.Step, precTest)
		}
	case *TupleExpr:
		if v.Parens {
			u.write("(")
		}
		for i, elt := range v.Elts {
			if i > 0 {
				u.write(", ")
			}
			u.expr(elt, precTest)
		}
		if len(v.Elts) == 1 {
			u.write(",")
		}
		if v.Parens {
			u.write(")")
		}
	case *ListExpr:
		u.write("[")
		for i, elt := range v.Elts {
			if i > 0 {
				u.write(", ")
			}
			u.expr(elt, precTest)
		}
		u.write("]")
	case *SetExpr:
		u.write("{")
		for i, elt := range v.Elts {
			if i > 0 {
				u.write(", ")
			}
			u.expr(elt, precTest)
		}
		u.write("}")
	case *DictExpr:
		u.write("{")
		for i := range v.Values {
			if i > 0 {
				u.write(", ")
			}
			if v.Keys[i] == nil {
				u.write("**")
				u.expr(v.Values[i], precTest)
				continue
			}
			u.expr(v.Keys[i], precTest)
			u.write(": ")
			u.expr(v.Values[i], precTest)
		}
		u.write("}")
	case *UnaryExpr:
		switch v.Op {
		case "not", "await", "yield", "yield from":
			u.write(v.Op)
			if v.Operand != nil {
				u.write(" ")
				u.expr(v.Operand, exprPrec(e))
			}
		default:
			u.write(v.Op)
			u.expr(v.Operand, precFactor)
		}
	case *BinaryExpr:
		prec := exprPrec(e)
		if v.Op == "**" {
			// right-associative
			u.expr(v.Left, precPostfix)
			u.write(" ** ")
			u.expr(v.Right, precFactor)
			return
		}
		u.expr(v.Left, prec)
		u.write(" " + v.Op + " ")
		u.expr(v.Right, prec+1)
	case *BoolOpExpr:
		prec := exprPrec(e)
		for i, val := range v.Values {
			if i > 0 {
				u.write(" " + v.Op + " ")
			}
			u.expr(val, prec+1)
		}
	case *CompareExpr:
		u.expr(v.Left, precCompare+1)
		for i, op := range v.Ops {
			u.write(" " + op + " ")
			u.expr(v.Comparators[i], precCompare+1)
		}
	case *IfExpr:
		u.expr(v.Body, precOr)
		u.write(" if ")
		u.expr(v.Test, precOr)
		u.write(" else ")
		u.expr(v.Orelse, precTest)
	case *LambdaExpr:
		u.write("lambda")
		if len(v.Params) > 0 {
			u.write(" " + paramsText(v.Params))
		}
		u.write(": ")
		u.expr(v.Body, precTest)
	case *StarredExpr:
		u.write("*")
		u.expr(v.Value, precPostfix)
	case *ParenExpr:
		u.write("(")
		u.expr(v.X, precTest)
		u.write(")")
	case *CompExpr:
		open, close := compDelims(v.Kind)
		u.write(open)
		if v.Kind == 'd' {
			u.expr(v.Key, precTest)
			u.write(": ")
			u.expr(v.Value, precTest)
		} else {
			u.expr(v.Elt, precTest)
		}
		for _, f := range v.Fors {
			u.write(" for ")
			u.expr(f.Target, precTest)
			u.write(" in ")
			u.expr(f.Iter, precOr)
			for _, cond := range f.Ifs {
				u.write(" if ")
				u.expr(cond, precOr)
			}
		}
		u.write(close)
	}
}

func compDelims(kind byte) (string, string) {
	switch kind {
	case '[':
		return "[", "]"
	case '{', 'd':
		return "{", "}"
	}
	return "(", ")"
}
