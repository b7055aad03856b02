package domain

import "strings"

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenQuotedIdent
	TokenKeyword
	TokenString
	TokenNumber
	TokenOperator
	TokenComma
	TokenDot
	TokenLParen
	TokenRParen
	TokenStar
	TokenSemicolon
	TokenIllegal
)

// Token is a single lexical unit. Pos and End are byte offsets into the
// source text; Line and Col are 1-based.
type Token struct {
	Kind  TokenKind
	Value string // keywords are upper-cased, quoted identifiers and strings unquoted
	Pos   int
	End   int
	Line  int
	Col   int
}

// Is reports whether t is the keyword kw (upper-case).
func (t Token) Is(kw string) bool {
	return t.Kind == TokenKeyword && t.Value == kw
}

var keywords = map[string]bool{
	"SELECT": true, "DISTINCT": true, "FROM": true, "WHERE": true, "AS": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"OUTER": true, "CROSS": true, "ON": true, "USING": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "IS": true, "NULL": true,
	"LIKE": true, "ILIKE": true, "BETWEEN": true,
	"GROUP": true, "BY": true, "HAVING": true, "ORDER": true, "ASC": true, "DESC": true,
	"LIMIT": true, "OFFSET": true, "INTERVAL": true, "TRUE": true, "FALSE": true,
}

// Tokenize splits SQL text into tokens. Comments and whitespace are skipped.
// It never fails: unrecognised characters become TokenIllegal and an
// unterminated string runs to the end of the input. The final token is
// always TokenEOF.
func Tokenize(sql string) []Token {
	lx := &lexer{src: sql, line: 1, col: 1}
	var toks []Token
	for {
		tok := lx.next()
		toks = append(toks, tok)
		if tok.Kind == TokenEOF {
			return toks
		}
	}
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func (l *lexer) peekByte(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) advance() {
	if l.pos >= len(l.src) {
		return
	}
	if l.src[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			l.advance()
		case c == '-' && l.peekByte(1) == '-':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		case c == '/' && l.peekByte(1) == '*':
			l.advance()
			l.advance()
			for l.pos < len(l.src) && !(l.src[l.pos] == '*' && l.peekByte(1) == '/') {
				l.advance()
			}
			l.advance()
			l.advance()
		default:
			return
		}
	}
}

func (l *lexer) next() Token {
	l.skipSpaceAndComments()
	tok := Token{Pos: l.pos, Line: l.line, Col: l.col}
	if l.pos >= len(l.src) {
		tok.Kind = TokenEOF
		tok.End = l.pos
		return tok
	}

	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.advance()
		}
		word := l.src[tok.Pos:l.pos]
		if upper := strings.ToUpper(word); keywords[upper] {
			tok.Kind = TokenKeyword
			tok.Value = upper
		} else {
			tok.Kind = TokenIdent
			tok.Value = word
		}
	case c >= '0' && c <= '9' || (c == '.' && isDigit(l.peekByte(1))):
		l.lexNumber()
		tok.Kind = TokenNumber
		tok.Value = l.src[tok.Pos:l.pos]
	case c == '\'':
		tok.Kind = TokenString
		tok.Value = l.lexQuoted('\'')
	case c == '"' || c == '`':
		tok.Kind = TokenQuotedIdent
		tok.Value = l.lexQuoted(c)
	case c == ',':
		tok.Kind = TokenComma
		l.advance()
	case c == '.':
		tok.Kind = TokenDot
		l.advance()
	case c == '(':
		tok.Kind = TokenLParen
		l.advance()
	case c == ')':
		tok.Kind = TokenRParen
		l.advance()
	case c == '*':
		tok.Kind = TokenStar
		l.advance()
	case c == ';':
		tok.Kind = TokenSemicolon
		l.advance()
	default:
		if op := l.lexOperator(); op != "" {
			tok.Kind = TokenOperator
			tok.Value = op
		} else {
			tok.Kind = TokenIllegal
			l.advance()
		}
	}
	tok.End = l.pos
	if tok.Value == "" && tok.Kind != TokenString && tok.Kind != TokenQuotedIdent {
		tok.Value = l.src[tok.Pos:tok.End]
	}
	return tok
}

func (l *lexer) lexNumber() {
	for isDigit(l.peekByte(0)) {
		l.advance()
	}
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		l.advance()
		for isDigit(l.peekByte(0)) {
			l.advance()
		}
	}
	if c := l.peekByte(0); c == 'e' || c == 'E' {
		off := 1
		if s := l.peekByte(1); s == '+' || s == '-' {
			off = 2
		}
		if isDigit(l.peekByte(off)) {
			for i := 0; i < off; i++ {
				l.advance()
			}
			for isDigit(l.peekByte(0)) {
				l.advance()
			}
		}
	}
}

// lexQuoted consumes a quoted run; a doubled quote is an escaped quote.
func (l *lexer) lexQuoted(q byte) string {
	l.advance()
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == q {
			if l.peekByte(1) == q {
				sb.WriteByte(q)
				l.advance()
				l.advance()
				continue
			}
			l.advance()
			return sb.String()
		}
		sb.WriteByte(c)
		l.advance()
	}
	return sb.String()
}

func (l *lexer) lexOperator() string {
	two := ""
	if l.pos+1 < len(l.src) {
		two = l.src[l.pos : l.pos+2]
	}
	switch two {
	case "<=", ">=", "<>", "!=", "||", "::":
		l.advance()
		l.advance()
		return two
	}
	switch c := l.src[l.pos]; c {
	case '=', '<', '>', '+', '-', '/', '%':
		l.advance()
		return string(c)
	}
	return ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}
