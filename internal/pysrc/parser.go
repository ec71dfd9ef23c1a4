package pysrc

// parser.go — recursive-descent parser for the Python subset.
//
// The parser is deliberately forgiving: a logical line it cannot interpret
// becomes a RawStmt carrying the verbatim source text (with any indented
// suite still parsed underneath it), so validation keeps walking the rest
// of the file. Only structural problems — lexer failures and a header with
// no indented block — surface as a SyntaxError.

import "strings"

// reserved are keywords that cannot appear where an atom is expected.
var reserved = map[string]bool{
	"and": true, "or": true, "not": true, "if": true, "else": true,
	"elif": true, "while": true, "for": true, "in": true, "is": true,
	"def": true, "class": true, "return": true, "pass": true,
	"break": true, "continue": true, "import": true, "from": true,
	"as": true, "try": true, "except": true, "finally": true,
	"with": true, "raise": true, "global": true, "nonlocal": true,
	"del": true, "assert": true, "lambda": true, "yield": true,
	"async": true, "await": true,
}

// bailErr aborts the current statement; the statement-level recovery turns
// it into a RawStmt. It never escapes Parse.
type bailErr struct {
	line int
	msg  string
}

// Parse tokenizes and parses src. A nil error means every statement was
// either understood or preserved as raw text.
func Parse(src string) (mod *Module, err error) {
	toks, lerr := Lex(src)
	if lerr != nil {
		return nil, lerr
	}
	p := &parser{src: src, toks: toks}
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*SyntaxError)
			if !ok {
				panic(r)
			}
			mod, err = nil, se
		}
	}()
	return p.parseModule(), nil
}

type parser struct {
	src  string
	toks []Token
	pos  int
}

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

func (p *parser) cur() Token  { return p.toks[p.pos] }
func (p *parser) next() Token { p.pos++; return p.toks[p.pos-1] }

func (p *parser) at(kind TokenKind) bool { return p.cur().Kind == kind }

func (p *parser) atOp(text string) bool {
	t := p.cur()
	return t.Kind == TokOp && t.Text == text
}

func (p *parser) atName(text string) bool {
	t := p.cur()
	return t.Kind == TokName && t.Text == text
}

func (p *parser) acceptOp(text string) bool {
	if p.atOp(text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptName(text string) bool {
	if p.atName(text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) bail(msg string) {
	panic(bailErr{line: p.cur().Line, msg: msg})
}

func (p *parser) expectOp(text string) {
	if !p.acceptOp(text) {
		p.bail("expected " + text)
	}
}

func (p *parser) expectName() string {
	if !p.at(TokName) || reserved[p.cur().Text] {
		p.bail("expected identifier")
	}
	return p.next().Text
}

// ---------------------------------------------------------------------------
// Module / statement structure
// ---------------------------------------------------------------------------

func (p *parser) parseModule() *Module {
	mod := &Module{}
	for !p.at(TokEOF) {
		if p.at(TokNewline) {
			p.pos++
			continue
		}
		mod.Body = append(mod.Body, p.parseProtected()...)
	}
	return mod
}

// parseProtected parses one statement (or one simple-statement line) and
// degrades to a RawStmt when the parse bails.
func (p *parser) parseProtected() (out []Stmt) {
	start := p.pos
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailErr); !ok {
				panic(r)
			}
			out = []Stmt{p.recoverRaw(start)}
		}
	}()
	return p.parseStatement()
}

// recoverRaw skips to the end of the current logical line and captures its
// verbatim text. An indented suite that follows is still parsed so nested
// statements remain visible to callers walking the tree.
func (p *parser) recoverRaw(start int) *RawStmt {
	if p.pos < start {
		p.pos = start
	}
	startTok := p.toks[start]
	for !p.at(TokNewline) && !p.at(TokEOF) && !p.at(TokDedent) && !p.at(TokIndent) {
		p.pos++
	}
	end := startTok.End
	if p.pos > start {
		end = p.toks[p.pos-1].End
	}
	text := strings.TrimRight(p.src[startTok.Pos:end], " \t")
	raw := &RawStmt{Line: startTok.Line, Text: text}
	if p.at(TokNewline) {
		p.pos++
	}
	if p.at(TokIndent) {
		p.pos++
		raw.Body = p.parseBlock()
	}
	return raw
}

// parseBlock parses statements until the matching DEDENT.
func (p *parser) parseBlock() []Stmt {
	var body []Stmt
	for {
		if p.at(TokNewline) {
			p.pos++
			continue
		}
		if p.at(TokDedent) {
			p.pos++
			return body
		}
		if p.at(TokEOF) {
			return body
		}
		body = append(body, p.parseProtected()...)
	}
}

// parseSuite parses ": NEWLINE INDENT block DEDENT" or an inline suite on
// the same line. A header whose block is missing is a structural error.
func (p *parser) parseSuite() []Stmt {
	p.expectOp(":")
	if p.at(TokNewline) {
		line := p.cur().Line
		p.pos++
		if !p.at(TokIndent) {
			panic(&SyntaxError{Line: line, Msg: "expected an indented block"})
		}
		p.pos++
		return p.parseBlock()
	}
	return p.parseSimpleLine()
}

func (p *parser) parseStatement() []Stmt {
	if p.at(TokName) {
		switch p.cur().Text {
		case "if":
			return []Stmt{p.parseIf()}
		case "while":
			return []Stmt{p.parseWhile()}
		case "for":
			return []Stmt{p.parseFor()}
		case "try":
			return []Stmt{p.parseTry()}
		case "with":
			return []Stmt{p.parseWith()}
		case "def":
			return []Stmt{p.parseFuncDef(nil)}
		case "class":
			return []Stmt{p.parseClassDef(nil)}
		}
	}
	if p.atOp("@") {
		return []Stmt{p.parseDecorated()}
	}
	return p.parseSimpleLine()
}

// parseSimpleLine parses semicolon-separated simple statements up to the
// end of the logical line.
func (p *parser) parseSimpleLine() []Stmt {
	var stmts []Stmt
	for {
		stmts = append(stmts, p.parseSimpleStmt())
		if p.acceptOp(";") {
			if p.at(TokNewline) || p.at(TokEOF) {
				break
			}
			continue
		}
		break
	}
	if p.at(TokNewline) {
		p.pos++
	} else if !p.at(TokEOF) && !p.at(TokDedent) {
		p.bail("unexpected token after statement")
	}
	return stmts
}

// ---------------------------------------------------------------------------
// Simple statements
// ---------------------------------------------------------------------------

func (p *parser) parseSimpleStmt() Stmt {
	line := p.cur().Line
	if p.at(TokName) {
		switch p.cur().Text {
		case "import":
			p.pos++
			return p.parseImport(line)
		case "from":
			p.pos++
			return p.parseFromImport(line)
		case "return":
			p.pos++
			st := &ReturnStmt{Line: line}
			if p.startsExpr() {
				st.Value = p.parseTestlist()
			}
			return st
		case "pass":
			p.pos++
			return &PassStmt{Line: line}
		case "break":
			p.pos++
			return &BreakStmt{Line: line}
		case "continue":
			p.pos++
			return &ContinueStmt{Line: line}
		case "raise":
			p.pos++
			st := &RaiseStmt{Line: line}
			if p.startsExpr() {
				st.Exc = p.parseTest()
				if p.acceptName("from") {
					st.Cause = p.parseTest()
				}
			}
			return st
		case "global", "nonlocal":
			kw := p.next().Text
			st := &GlobalStmt{Line: line, Keyword: kw}
			st.Names = append(st.Names, p.expectName())
			for p.acceptOp(",") {
				st.Names = append(st.Names, p.expectName())
			}
			return st
		case "del":
			p.pos++
			st := &DeleteStmt{Line: line}
			st.Targets = append(st.Targets, p.parseTest())
			for p.acceptOp(",") {
				st.Targets = append(st.Targets, p.parseTest())
			}
			return st
		case "assert":
			p.pos++
			st := &AssertStmt{Line: line, Test: p.parseTest()}
			if p.acceptOp(",") {
				st.Msg = p.parseTest()
			}
			return st
		}
	}
	return p.parseExprOrAssign(line)
}

func (p *parser) parseDottedName() string {
	var b strings.Builder
	b.WriteString(p.expectName())
	for p.atOp(".") {
		p.pos++
		b.WriteByte('.')
		b.WriteString(p.expectName())
	}
	return b.String()
}

func (p *parser) parseImport(line int) Stmt {
	st := &ImportStmt{Line: line}
	for {
		alias := ImportAlias{Name: p.parseDottedName()}
		if p.acceptName("as") {
			alias.AsName = p.expectName()
		}
		st.Names = append(st.Names, alias)
		if !p.acceptOp(",") {
			break
		}
	}
	return st
}

func (p *parser) parseFromImport(line int) Stmt {
	st := &FromImportStmt{Line: line}
	var b strings.Builder
	for p.atOp(".") || p.atOp("...") {
		b.WriteString(p.next().Text)
	}
	if p.at(TokName) && !reserved[p.cur().Text] {
		b.WriteString(p.parseDottedName())
	}
	st.Module = b.String()
	if st.Module == "" {
		p.bail("expected module name after from")
	}
	if !p.acceptName("import") {
		p.bail("expected import")
	}
	if p.acceptOp("*") {
		st.Star = true
		return st
	}
	paren := p.acceptOp("(")
	for {
		if paren && p.atOp(")") {
			break
		}
		alias := ImportAlias{Name: p.expectName()}
		if p.acceptName("as") {
			alias.AsName = p.expectName()
		}
		st.Names = append(st.Names, alias)
		if !p.acceptOp(",") {
			break
		}
	}
	if paren {
		p.expectOp(")")
	}
	return st
}

// augOps are the augmented assignment operators.
var augOps = map[string]bool{
	"+=": true, "-=": true, "*=": true, "/=": true, "//=": true,
	"%=": true, "@=": true, "&=": true, "|=": true, "^=": true,
	">>=": true, "<<=": true, "**=": true,
}

func (p *parser) parseExprOrAssign(line int) Stmt {
	first := p.parseTestlistStar()
	switch {
	case p.atOp("="):
		st := &AssignStmt{Line: line, Targets: []Expr{first}}
		for p.acceptOp("=") {
			st.Targets = append(st.Targets, p.parseTestlistStar())
		}
		last := len(st.Targets) - 1
		st.Value = st.Targets[last]
		st.Targets = st.Targets[:last]
		return st
	case p.cur().Kind == TokOp && augOps[p.cur().Text]:
		op := p.next().Text
		return &AugAssignStmt{Line: line, Target: first, Op: op, Value: p.parseTestlist()}
	case p.atOp(":"):
		p.pos++
		st := &AnnAssignStmt{Line: line, Target: first, Annotation: p.parseTest()}
		if p.acceptOp("=") {
			st.Value = p.parseTestlist()
		}
		return st
	}
	return &ExprStmt{Line: line, X: first}
}

// ---------------------------------------------------------------------------
// Compound statements
// ---------------------------------------------------------------------------

func (p *parser) parseIf() Stmt {
	line := p.cur().Line
	p.pos++ // if / elif
	st := &IfStmt{Line: line, Test: p.parseTest()}
	st.Body = p.parseSuite()
	switch {
	case p.atName("elif"):
		st.Orelse = []Stmt{p.parseIf()}
	case p.acceptName("else"):
		st.Orelse = p.parseSuite()
	}
	return st
}

func (p *parser) parseWhile() Stmt {
	line := p.next().Line
	st := &WhileStmt{Line: line, Test: p.parseTest()}
	st.Body = p.parseSuite()
	if p.acceptName("else") {
		st.Orelse = p.parseSuite()
	}
	return st
}

func (p *parser) parseFor() Stmt {
	line := p.next().Line
	st := &ForStmt{Line: line, Target: p.parseTargetList()}
	if !p.acceptName("in") {
		p.bail("expected in")
	}
	st.Iter = p.parseTestlist()
	st.Body = p.parseSuite()
	if p.acceptName("else") {
		st.Orelse = p.parseSuite()
	}
	return st
}

func (p *parser) parseWith() Stmt {
	line := p.next().Line
	st := &WithStmt{Line: line}
	for {
		item := WithItem{Context: p.parseTest()}
		if p.acceptName("as") {
			item.As = p.parseTarget()
		}
		st.Items = append(st.Items, item)
		if !p.acceptOp(",") {
			break
		}
	}
	st.Body = p.parseSuite()
	return st
}

func (p *parser) parseTry() Stmt {
	line := p.next().Line
	st := &TryStmt{Line: line, Body: p.parseSuite()}
	for p.atName("except") {
		hline := p.next().Line
		h := ExceptHandler{Line: hline}
		if !p.atOp(":") {
			h.Type = p.parseTest()
			if p.acceptName("as") {
				h.Name = p.expectName()
			}
		}
		h.Body = p.parseSuite()
		st.Handlers = append(st.Handlers, h)
	}
	if p.acceptName("else") {
		st.Orelse = p.parseSuite()
	}
	if p.acceptName("finally") {
		st.Final = p.parseSuite()
	}
	if len(st.Handlers) == 0 && st.Final == nil {
		p.bail("try statement has no except or finally clause")
	}
	return st
}

func (p *parser) parseDecorated() Stmt {
	var decorators []Expr
	for p.acceptOp("@") {
		decorators = append(decorators, p.parseTest())
		if p.at(TokNewline) {
			p.pos++
		}
	}
	switch {
	case p.atName("def"):
		return p.parseFuncDef(decorators)
	case p.atName("class"):
		return p.parseClassDef(decorators)
	}
	p.bail("expected def or class after decorator")
	return nil
}

func (p *parser) parseFuncDef(decorators []Expr) Stmt {
	line := p.next().Line // def
	st := &FuncDef{Line: line, Decorators: decorators, Name: p.expectName()}
	p.expectOp("(")
	st.Params = p.parseParams(")", true)
	p.expectOp(")")
	if p.acceptOp("->") {
		st.Returns = p.parseTest()
	}
	st.Body = p.parseSuite()
	return st
}

func (p *parser) parseClassDef(decorators []Expr) Stmt {
	line := p.next().Line // class
	st := &ClassDef{Line: line, Decorators: decorators, Name: p.expectName()}
	if p.acceptOp("(") {
		args, keywords := p.parseCallArgs()
		st.Bases, st.Keywords = args, keywords
	}
	st.Body = p.parseSuite()
	return st
}

// parseParams parses a def or lambda parameter list up to (not including)
// the closing token. Annotations are only legal in defs.
func (p *parser) parseParams(closing string, annotations bool) []Param {
	var params []Param
	for !p.atOp(closing) {
		var param Param
		switch {
		case p.acceptOp("**"):
			param.Star = "**"
			param.Name = p.expectName()
		case p.acceptOp("*"):
			param.Star = "*"
			if p.at(TokName) && !reserved[p.cur().Text] {
				param.Name = p.next().Text
			}
		default:
			param.Name = p.expectName()
		}
		if annotations && param.Name != "" && p.acceptOp(":") {
			param.Annotation = p.parseTest()
		}
		if p.acceptOp("=") {
			param.Default = p.parseTest()
		}
		params = append(params, param)
		if !p.acceptOp(",") {
			break
		}
	}
	return params
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// startsExpr reports whether the current token can begin an expression.
func (p *parser) startsExpr() bool {
	t := p.cur()
	switch t.Kind {
	case TokNumber, TokString:
		return true
	case TokName:
		if !reserved[t.Text] {
			return true
		}
		switch t.Text {
		case "not", "lambda", "yield", "await":
			return true
		}
		return false
	case TokOp:
		switch t.Text {
		case "(", "[", "{", "-", "+", "~", "*", "**", "...":
			return true
		}
	}
	return false
}

// parseTestlist parses "test (, test)*" into a single expression, folding
// multiple elements into an unparenthesized tuple.
func (p *parser) parseTestlist() Expr {
	return p.parseList(p.parseTest)
}

// parseTestlistStar additionally allows starred elements (LHS unpacking).
func (p *parser) parseTestlistStar() Expr {
	return p.parseList(p.parseTestOrStar)
}

func (p *parser) parseList(elem func() Expr) Expr {
	line := p.cur().Line
	first := elem()
	if !p.atOp(",") {
		return first
	}
	tuple := &TupleExpr{Line: line, Elts: []Expr{first}}
	for p.acceptOp(",") {
		if !p.startsExpr() {
			break // trailing comma
		}
		tuple.Elts = append(tuple.Elts, elem())
	}
	return tuple
}

func (p *parser) parseTestOrStar() Expr {
	if p.atOp("*") {
		line := p.next().Line
		return &StarredExpr{Line: line, Value: p.parseTest()}
	}
	return p.parseTest()
}

func (p *parser) parseTest() Expr {
	line := p.cur().Line
	if p.atName("lambda") {
		p.pos++
		lam := &LambdaExpr{Line: line, Params: p.parseParams(":", false)}
		p.expectOp(":")
		lam.Body = p.parseTest()
		return lam
	}
	if p.atName("yield") {
		p.pos++
		op := "yield"
		if p.acceptName("from") {
			op = "yield from"
		}
		ue := &UnaryExpr{Line: line, Op: op}
		if p.startsExpr() {
			ue.Operand = p.parseTestlist()
		}
		return ue
	}
	v := p.parseOr()
	if p.atName("if") {
		p.pos++
		test := p.parseOr()
		if !p.acceptName("else") {
			p.bail("expected else in conditional expression")
		}
		return &IfExpr{Line: line, Body: v, Test: test, Orelse: p.parseTest()}
	}
	if p.acceptOp(":=") {
		return &BinaryExpr{Line: line, Op: ":=", Left: v, Right: p.parseTest()}
	}
	return v
}

func (p *parser) parseOr() Expr {
	line := p.cur().Line
	v := p.parseAnd()
	if !p.atName("or") {
		return v
	}
	boolOp := &BoolOpExpr{Line: line, Op: "or", Values: []Expr{v}}
	for p.acceptName("or") {
		boolOp.Values = append(boolOp.Values, p.parseAnd())
	}
	return boolOp
}

func (p *parser) parseAnd() Expr {
	line := p.cur().Line
	v := p.parseNot()
	if !p.atName("and") {
		return v
	}
	boolOp := &BoolOpExpr{Line: line, Op: "and", Values: []Expr{v}}
	for p.acceptName("and") {
		boolOp.Values = append(boolOp.Values, p.parseNot())
	}
	return boolOp
}

func (p *parser) parseNot() Expr {
	if p.atName("not") {
		line := p.next().Line
		return &UnaryExpr{Line: line, Op: "not", Operand: p.parseNot()}
	}
	return p.parseComparison()
}

func (p *parser) comparisonOp() (string, bool) {
	t := p.cur()
	if t.Kind == TokOp {
		switch t.Text {
		case "<", ">", "<=", ">=", "==", "!=":
			return t.Text, true
		}
		return "", false
	}
	if t.Kind != TokName {
		return "", false
	}
	switch t.Text {
	case "in":
		return "in", true
	case "is":
		if p.toks[p.pos+1].Kind == TokName && p.toks[p.pos+1].Text == "not" {
			return "is not", true
		}
		return "is", true
	case "not":
		if p.toks[p.pos+1].Kind == TokName && p.toks[p.pos+1].Text == "in" {
			return "not in", true
		}
	}
	return "", false
}

func (p *parser) parseComparison() Expr {
	line := p.cur().Line
	left := p.parseBitOr()
	op, ok := p.comparisonOp()
	if !ok {
		return left
	}
	cmp := &CompareExpr{Line: line, Left: left}
	for {
		op, ok = p.comparisonOp()
		if !ok {
			return cmp
		}
		p.pos += len(strings.Fields(op)) // two-word ops consume two tokens
		cmp.Ops = append(cmp.Ops, op)
		cmp.Comparators = append(cmp.Comparators, p.parseBitOr())
	}
}

// binaryLevel builds one precedence level of left-associative operators.
func (p *parser) binaryLevel(ops []string, sub func() Expr) Expr {
	line := p.cur().Line
	left := sub()
	for {
		matched := false
		for _, op := range ops {
			if p.atOp(op) {
				p.pos++
				left = &BinaryExpr{Line: line, Op: op, Left: left, Right: sub()}
				matched = true
				break
			}
		}
		if !matched {
			return left
		}
	}
}

func (p *parser) parseBitOr() Expr {
	return p.binaryLevel([]string{"|"}, p.parseBitXor)
}

func (p *parser) parseBitXor() Expr {
	return p.binaryLevel([]string{"^"}, p.parseBitAnd)
}

func (p *parser) parseBitAnd() Expr {
	return p.binaryLevel([]string{"&"}, p.parseShift)
}

func (p *parser) parseShift() Expr {
	return p.binaryLevel([]string{"<<", ">>"}, p.parseArith)
}

func (p *parser) parseArith() Expr {
	return p.binaryLevel([]string{"+", "-"}, p.parseTerm)
}

func (p *parser) parseTerm() Expr {
	return p.binaryLevel([]string{"*", "//", "/", "%", "@"}, p.parseFactor)
}

func (p *parser) parseFactor() Expr {
	t := p.cur()
	if t.Kind == TokOp && (t.Text == "-" || t.Text == "+" || t.Text == "~") {
		p.pos++
		return &UnaryExpr{Line: t.Line, Op: t.Text, Operand: p.parseFactor()}
	}
	if p.atName("await") {
		p.pos++
		return &UnaryExpr{Line: t.Line, Op: "await", Operand: p.parseFactor()}
	}
	return p.parsePower()
}

func (p *parser) parsePower() Expr {
	base := p.parsePostfix()
	if p.atOp("**") {
		line := p.next().Line
		return &BinaryExpr{Line: line, Op: "**", Left: base, Right: p.parseFactor()}
	}
	return base
}

func (p *parser) parsePostfix() Expr {
	v := p.parseAtom()
	for {
		switch {
		case p.atOp("."):
			line := p.next().Line
			v = &AttributeExpr{Line: line, Value: v, Attr: p.expectName()}
		case p.atOp("("):
			line := p.next().Line
			args, keywords := p.parseCallArgs()
			v = &CallExpr{Line: line, Func: v, Args: args, Keywords: keywords}
		case p.atOp("["):
			line := p.next().Line
			index := p.parseSubscriptIndex()
			p.expectOp("]")
			v = &SubscriptExpr{Line: line, Value: v, Index: index}
		default:
			return v
		}
	}
}

// parseCallArgs parses arguments up to and including the closing paren.
func (p *parser) parseCallArgs() ([]Expr, []Keyword) {
	var args []Expr
	var keywords []Keyword
	for !p.atOp(")") {
		switch {
		case p.acceptOp("**"):
			keywords = append(keywords, Keyword{Value: p.parseTest()})
		case p.atOp("*"):
			line := p.next().Line
			args = append(args, &StarredExpr{Line: line, Value: p.parseTest()})
		default:
			e := p.parseTest()
			if name, ok := e.(*NameExpr); ok && p.acceptOp("=") {
				keywords = append(keywords, Keyword{Name: name.ID, Value: p.parseTest()})
			} else if p.atName("for") && len(args) == 0 && len(keywords) == 0 {
				gen := &CompExpr{Line: p.cur().Line, Kind: '(', Elt: e, Fors: p.parseCompFors()}
				args = append(args, gen)
			} else {
				args = append(args, e)
			}
		}
		if !p.acceptOp(",") {
			break
		}
	}
	p.expectOp(")")
	return args, keywords
}

func (p *parser) parseSubscriptIndex() Expr {
	line := p.cur().Line
	var elts []Expr
	for {
		elts = append(elts, p.parseSliceItem())
		if !p.acceptOp(",") {
			break
		}
		if p.atOp("]") {
			break
		}
	}
	if len(elts) == 1 {
		return elts[0]
	}
	return &TupleExpr{Line: line, Elts: elts}
}

func (p *parser) parseSliceItem() Expr {
	var slice SliceExpr
	if !p.atOp(":") {
		first := p.parseTest()
		if !p.atOp(":") {
			return first
		}
		slice.Lo = first
	}
	p.expectOp(":")
	if p.startsExpr() {
		slice.Hi = p.parseTest()
	}
	if p.acceptOp(":") {
		if p.startsExpr() {
			slice.Step = p.parseTest()
		}
	}
	return &slice
}

// parseTarget parses an assignment/loop target (no binary operators).
func (p *parser) parseTarget() Expr {
	if p.atOp("*") {
		line := p.next().Line
		return &StarredExpr{Line: line, Value: p.parseTarget()}
	}
	return p.parsePostfix()
}

func (p *parser) parseTargetList() Expr {
	return p.parseList(p.parseTarget)
}

func (p *parser) parseCompFors() []CompFor {
	var fors []CompFor
	for p.acceptName("for") {
		f := CompFor{Target: p.parseTargetList()}
		if !p.acceptName("in") {
			p.bail("expected in")
		}
		f.Iter = p.parseOr()
		for p.acceptName("if") {
			f.Ifs = append(f.Ifs, p.parseOr())
		}
		fors = append(fors, f)
	}
	return fors
}

func (p *parser) parseAtom() Expr {
	t := p.cur()
	switch t.Kind {
	case TokName:
		if reserved[t.Text] {
			p.bail("unexpected keyword " + t.Text)
		}
		p.pos++
		return &NameExpr{Line: t.Line, ID: t.Text}
	case TokNumber:
		p.pos++
		return &NumberLit{Line: t.Line, Lit: t.Text}
	case TokString:
		lit := &StringLit{Line: t.Line}
		for p.at(TokString) {
			lit.Parts = append(lit.Parts, p.next().Text)
		}
		return lit
	case TokOp:
		switch t.Text {
		case "...":
			p.pos++
			return &EllipsisLit{Line: t.Line}
		case "(":
			return p.parseParenAtom()
		case "[":
			return p.parseListAtom()
		case "{":
			return p.parseBraceAtom()
		}
	}
	p.bail("unexpected token " + t.Text)
	return nil
}

func (p *parser) parseParenAtom() Expr {
	line := p.next().Line // (
	if p.acceptOp(")") {
		return &TupleExpr{Line: line, Parens: true}
	}
	first := p.parseTestOrStar()
	if p.atName("for") {
		comp := &CompExpr{Line: line, Kind: '(', Elt: first, Fors: p.parseCompFors()}
		p.expectOp(")")
		return comp
	}
	if p.atOp(",") {
		tuple := &TupleExpr{Line: line, Parens: true, Elts: []Expr{first}}
		for p.acceptOp(",") {
			if p.atOp(")") {
				break
			}
			tuple.Elts = append(tuple.Elts, p.parseTestOrStar())
		}
		p.expectOp(")")
		return tuple
	}
	p.expectOp(")")
	return &ParenExpr{Line: line, X: first}
}

func (p *parser) parseListAtom() Expr {
	line := p.next().Line // [
	list := &ListExpr{Line: line}
	if p.acceptOp("]") {
		return list
	}
	first := p.parseTestOrStar()
	if p.atName("for") {
		comp := &CompExpr{Line: line, Kind: '[', Elt: first, Fors: p.parseCompFors()}
		p.expectOp("]")
		return comp
	}
	list.Elts = append(list.Elts, first)
	for p.acceptOp(",") {
		if p.atOp("]") {
			break
		}
		list.Elts = append(list.Elts, p.parseTestOrStar())
	}
	p.expectOp("]")
	return list
}

func (p *parser) parseBraceAtom() Expr {
	line := p.next().Line // {
	if p.acceptOp("}") {
		return &DictExpr{Line: line}
	}
	if p.acceptOp("**") {
		dict := &DictExpr{Line: line}
		dict.Keys = append(dict.Keys, nil)
		dict.Values = append(dict.Values, p.parseTest())
		p.parseDictRest(dict)
		return dict
	}
	first := p.parseTestOrStar()
	if p.acceptOp(":") {
		value := p.parseTest()
		if p.atName("for") {
			comp := &CompExpr{Line: line, Kind: 'd', Key: first, Value: value, Fors: p.parseCompFors()}
			p.expectOp("}")
			return comp
		}
		dict := &DictExpr{Line: line, Keys: []Expr{first}, Values: []Expr{value}}
		p.parseDictRest(dict)
		return dict
	}
	if p.atName("for") {
		comp := &CompExpr{Line: line, Kind: '{', Elt: first, Fors: p.parseCompFors()}
		p.expectOp("}")
		return comp
	}
	set := &SetExpr{Line: line, Elts: []Expr{first}}
	for p.acceptOp(",") {
		if p.atOp("}") {
			break
		}
		set.Elts = append(set.Elts, p.parseTestOrStar())
	}
	p.expectOp("}")
	return set
}

func (p *parser) parseDictRest(dict *DictExpr) {
	for p.acceptOp(",") {
		if p.atOp("}") {
			break
		}
		if p.acceptOp("**") {
			dict.Keys = append(dict.Keys, nil)
			dict.Values = append(dict.Values, p.parseTest())
			continue
		}
		key := p.parseTest()
		p.expectOp(":")
		dict.Keys = append(dict.Keys, key)
		dict.Values = append(dict.Values, p.parseTest())
	}
	p.expectOp("}")
}
