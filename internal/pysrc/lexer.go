package pysrc

// lexer.go — tolerant tokenizer for the Python subset the gate understands.
//
// Logical lines follow Python's rules: backslash continuation, implicit
// continuation inside brackets, comment-only and blank lines skipped.
// Indentation produces INDENT/DEDENT tokens off a stack. Everything the
// lexer cannot classify becomes a one-character OP token so the parser can
// degrade the surrounding statement to raw text instead of failing.

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const tabWidth = 8

// stringPrefixes are the letters Python accepts before a quote.
const stringPrefixes = "rRbBuUfF"

// operators, longest first, so the scanner can take the longest match.
var operators3 = []string{"**=", "//=", ">>=", "<<=", "..."}
var operators2 = []string{
	"**", "//", "<<", ">>", "<=", ">=", "==", "!=", "->", ":=",
	"+=", "-=", "*=", "/=", "%=", "@=", "&=", "|=", "^=",
}

// Lex tokenizes src. The only failure modes are structural: inconsistent
// indentation, an unterminated string, or brackets still open at EOF.
func Lex(src string) ([]Token, error) {
	l := &lexer{src: src, line: 1, indents: []int{0}}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

type lexer struct {
	src     string
	off     int
	line    int
	depth   int // bracket nesting depth
	indents []int
	tokens  []Token
	started bool // a real token has been emitted on the current logical line
}

func (l *lexer) emit(kind TokenKind, start int) {
	l.tokens = append(l.tokens, Token{
		Kind: kind,
		Text: l.src[start:l.off],
		Line: l.line,
		Pos:  start,
		End:  l.off,
	})
}

func (l *lexer) emitEmpty(kind TokenKind) {
	l.tokens = append(l.tokens, Token{Kind: kind, Line: l.line, Pos: l.off, End: l.off})
}

func (l *lexer) errf(msg string) error {
	return &SyntaxError{Line: l.line, Msg: msg}
}

func (l *lexer) run() error {
	atLineStart := true
	for l.off < len(l.src) {
		if atLineStart && l.depth == 0 {
			skip, err := l.handleIndent()
			if err != nil {
				return err
			}
			atLineStart = false
			if skip {
				atLineStart = true
				continue
			}
		}
		c := l.src[l.off]
		switch {
		case c == '#':
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.off++
			}
		case c == '\n':
			if l.depth > 0 || !l.started {
				l.off++
				l.line++
				atLineStart = l.depth == 0
				continue
			}
			start := l.off
			l.off++
			l.emit(TokNewline, start)
			l.line++
			l.started = false
			atLineStart = true
		case c == '\\' && l.off+1 < len(l.src) && l.src[l.off+1] == '\n':
			l.off += 2
			l.line++
		case c == ' ' || c == '\t' || c == '\r':
			l.off++
		case isNameStart(rune(c)) || c >= utf8.RuneSelf:
			if err := l.lexNameOrString(); err != nil {
				return err
			}
		case c >= '0' && c <= '9':
			l.lexNumber()
		case c == '.' && l.off+1 < len(l.src) && isDigit(l.src[l.off+1]):
			l.lexNumber()
		case c == '\'' || c == '"':
			if err := l.lexString(l.off); err != nil {
				return err
			}
		default:
			l.lexOperator()
		}
	}
	if l.depth > 0 {
		return l.errf("unexpected end of file inside brackets")
	}
	if l.started {
		l.emitEmpty(TokNewline)
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.emitEmpty(TokDedent)
	}
	l.emitEmpty(TokEOF)
	return nil
}

// handleIndent measures leading whitespace at a logical line start and emits
// INDENT/DEDENT tokens. Returns true when the line is blank or comment-only
// and was consumed entirely.
func (l *lexer) handleIndent() (skipped bool, err error) {
	col := 0
	i := l.off
	for i < len(l.src) {
		switch l.src[i] {
		case ' ':
			col++
		case '\t':
			col += tabWidth - col%tabWidth
		case '\r':
		default:
			goto measured
		}
		i++
	}
measured:
	if i >= len(l.src) {
		l.off = i
		return true, nil
	}
	if l.src[i] == '\n' {
		l.off = i + 1
		l.line++
		return true, nil
	}
	if l.src[i] == '#' {
		for i < len(l.src) && l.src[i] != '\n' {
			i++
		}
		if i < len(l.src) {
			i++
			l.line++
		}
		l.off = i
		return true, nil
	}
	l.off = i
	top := l.indents[len(l.indents)-1]
	switch {
	case col > top:
		l.indents = append(l.indents, col)
		l.emitEmpty(TokIndent)
	case col < top:
		for len(l.indents) > 1 && l.indents[len(l.indents)-1] > col {
			l.indents = l.indents[:len(l.indents)-1]
			l.emitEmpty(TokDedent)
		}
		if l.indents[len(l.indents)-1] != col {
			return false, l.errf("unindent does not match any outer indentation level")
		}
	}
	return false, nil
}

func (l *lexer) lexNameOrString() error {
	start := l.off
	for l.off < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.off:])
		if !isNameCont(r) {
			break
		}
		l.off += size
	}
	word := l.src[start:l.off]
	// A short run of prefix letters directly followed by a quote is a
	// prefixed string literal (r"...", f'...', rb"...").
	if len(word) <= 3 && l.off < len(l.src) && (l.src[l.off] == '\'' || l.src[l.off] == '"') && isStringPrefix(word) {
		return l.lexString(start)
	}
	l.emit(TokName, start)
	l.started = true
	return nil
}

func isStringPrefix(word string) bool {
	for _, r := range word {
		if !strings.ContainsRune(stringPrefixes, r) {
			return false
		}
	}
	return len(word) > 0
}

// lexString consumes a string literal whose prefix (if any) starts at start
// and whose opening quote is at l.off.
func (l *lexer) lexString(start int) error {
	q := l.src[l.off]
	triple := strings.HasPrefix(l.src[l.off:], strings.Repeat(string(q), 3))
	if triple {
		l.off += 3
		closer := strings.Repeat(string(q), 3)
		for l.off < len(l.src) {
			if strings.HasPrefix(l.src[l.off:], closer) {
				l.off += 3
				l.emit(TokString, start)
				l.started = true
				return nil
			}
			if l.src[l.off] == '\\' && l.off+1 < len(l.src) {
				if l.src[l.off+1] == '\n' {
					l.line++
				}
				l.off += 2
				continue
			}
			if l.src[l.off] == '\n' {
				l.line++
			}
			l.off++
		}
		return l.errf("unterminated triple-quoted string")
	}
	l.off++
	for l.off < len(l.src) {
		c := l.src[l.off]
		if c == q {
			l.off++
			l.emit(TokString, start)
			l.started = true
			return nil
		}
		if c == '\\' && l.off+1 < len(l.src) {
			if l.src[l.off+1] == '\n' {
				l.line++
			}
			l.off += 2
			continue
		}
		if c == '\n' {
			return l.errf("unterminated string literal")
		}
		l.off++
	}
	return l.errf("unterminated string literal")
}

func (l *lexer) lexNumber() {
	start := l.off
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case isDigit(c) || c == '_' || c == '.':
			l.off++
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			l.off++
		case (c == '+' || c == '-') && l.off > start &&
			(l.src[l.off-1] == 'e' || l.src[l.off-1] == 'E'):
			l.off++
		default:
			l.emit(TokNumber, start)
			l.started = true
			return
		}
	}
	l.emit(TokNumber, start)
	l.started = true
}

func (l *lexer) lexOperator() {
	start := l.off
	rest := l.src[l.off:]
	for _, op := range operators3 {
		if strings.HasPrefix(rest, op) {
			l.off += 3
			l.emit(TokOp, start)
			l.started = true
			return
		}
	}
	for _, op := range operators2 {
		if strings.HasPrefix(rest, op) {
			l.off += 2
			l.emit(TokOp, start)
			l.started = true
			return
		}
	}
	switch rest[0] {
	case '(', '[', '{':
		l.depth++
	case ')', ']', '}':
		if l.depth > 0 {
			l.depth--
		}
	}
	l.off++
	l.emit(TokOp, start)
	l.started = true
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameCont(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
