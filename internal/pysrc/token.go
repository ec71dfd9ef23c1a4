package pysrc

import "fmt"

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokNewline
	TokIndent
	TokDedent
	TokName
	TokNumber
	TokString
	TokOp
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "EOF"
	case TokNewline:
		return "NEWLINE"
	case TokIndent:
		return "INDENT"
	case TokDedent:
		return "DEDENT"
	case TokName:
		return "NAME"
	case TokNumber:
		return "NUMBER"
	case TokString:
		return "STRING"
	case TokOp:
		return "OP"
	}
	return "UNKNOWN"
}

// Token is a single lexical token. Text is the verbatim source slice
// (including quotes and prefixes for strings). Pos and End are byte
// offsets into the original source, used to recover raw statement text.
type Token struct {
	Kind TokenKind
	Text string
	Line int
	Pos  int
	End  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text, t.Line)
}

// SyntaxError is a structural lexing or parsing failure. It short-circuits
// the whole pipeline; everything recoverable degrades to a RawStmt instead.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Msg)
}
