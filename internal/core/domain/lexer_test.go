package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize_Basic(t *testing.T) {
	t.Parallel()
	toks := Tokenize("select u.id, count(*) from users u where age >= 21;")

	assert.Equal(t, []TokenKind{
		TokenKeyword, TokenIdent, TokenDot, TokenIdent, TokenComma,
		TokenIdent, TokenLParen, TokenStar, TokenRParen,
		TokenKeyword, TokenIdent, TokenIdent,
		TokenKeyword, TokenIdent, TokenOperator, TokenNumber, TokenSemicolon,
		TokenEOF,
	}, kinds(toks))
	assert.Equal(t, "SELECT", toks[0].Value, "keywords are upper-cased")
	assert.Equal(t, "u", toks[1].Value, "identifiers keep their spelling")
	assert.Equal(t, ">=", toks[14].Value)
}

func TestTokenize_StringsAndComments(t *testing.T) {
	t.Parallel()
	toks := Tokenize("SELECT 'it''s' -- trailing\n/* block */ \"Quoted Name\"")

	require.Len(t, toks, 4)
	assert.Equal(t, TokenString, toks[1].Kind)
	assert.Equal(t, "it's", toks[1].Value)
	assert.Equal(t, TokenQuotedIdent, toks[2].Kind)
	assert.Equal(t, "Quoted Name", toks[2].Value)
	assert.Equal(t, 2, toks[2].Line)
}

func TestTokenize_Numbers(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"42", "3.14", ".5", "1e10", "2.5E-3"} {
		toks := Tokenize(in)
		require.Len(t, toks, 2, in)
		assert.Equal(t, TokenNumber, toks[0].Kind, in)
		assert.Equal(t, in, toks[0].Value)
	}
}

func TestTokenize_Positions(t *testing.T) {
	t.Parallel()
	src := "SELECT *\n  FROM orders"
	toks := Tokenize(src)

	from := toks[2]
	assert.True(t, from.Is("FROM"))
	assert.Equal(t, 2, from.Line)
	assert.Equal(t, 3, from.Col)
	assert.Equal(t, "FROM", src[from.Pos:from.End])
}

func TestTokenize_NeverFails(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "'unterminated", "/* open", "#@!", "SELECT ü FROM ñ"} {
		toks := Tokenize(in)
		require.NotEmpty(t, toks, in)
		assert.Equal(t, TokenEOF, toks[len(toks)-1].Kind, in)
	}
}
