package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports where the parser gave up.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

// Parse parses a single SELECT statement. On a syntax error it returns the
// statement built so far together with a *ParseError, so callers that only
// need structural facts can still use the partial result.
func Parse(sql string) (*SelectStmt, error) {
	pt := parseText(sql)
	return pt.stmt, pt.err
}

// parsedText bundles everything derived from one SQL text.
type parsedText struct {
	src    string
	tokens []Token
	stmt   *SelectStmt
	err    error
}

func parseText(sql string) *parsedText {
	toks := Tokenize(sql)
	p := &parser{src: sql, toks: toks}
	stmt, err := p.parseStatement()
	return &parsedText{src: sql, tokens: toks, stmt: stmt, err: err}
}

type parser struct {
	src  string
	toks []Token
	pos  int
}

func (p *parser) cur() Token { return p.toks[p.pos] }

func (p *parser) peek(n int) Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) accept(kw string) bool {
	if p.cur().Is(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.cur()
	return &ParseError{Line: t.Line, Col: t.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kw string) error {
	if !p.accept(kw) {
		return p.errorf("expected %s, found %s", kw, describe(p.cur()))
	}
	return nil
}

func describe(t Token) string {
	if t.Kind == TokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Value)
}

func (p *parser) parseStatement() (*SelectStmt, error) {
	stmt := &SelectStmt{}
	if err := p.expect("SELECT"); err != nil {
		return stmt, err
	}
	stmt.Distinct = p.accept("DISTINCT")

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return stmt, err
		}
		stmt.Items = append(stmt.Items, item)
		if p.cur().Kind != TokenComma {
			break
		}
		p.next()
	}

	if p.accept("FROM") {
		for {
			ref, err := p.parseTableRef()
			if err != nil {
				return stmt, err
			}
			stmt.From = append(stmt.From, ref)
			if p.cur().Kind != TokenComma {
				break
			}
			p.next()
		}
		for p.atJoin() {
			join, err := p.parseJoin()
			if err != nil {
				return stmt, err
			}
			stmt.Joins = append(stmt.Joins, join)
		}
	}

	if p.accept("WHERE") {
		where, err := p.parseExpr()
		stmt.Where = where
		if err != nil {
			return stmt, err
		}
	}

	if p.accept("GROUP") {
		if err := p.expect("BY"); err != nil {
			return stmt, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return stmt, err
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if p.cur().Kind != TokenComma {
				break
			}
			p.next()
		}
	}

	if p.accept("HAVING") {
		having, err := p.parseExpr()
		stmt.Having = having
		if err != nil {
			return stmt, err
		}
	}

	if p.accept("ORDER") {
		if err := p.expect("BY"); err != nil {
			return stmt, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return stmt, err
			}
			item := OrderItem{Expr: e}
			if p.accept("DESC") {
				item.Desc = true
			} else {
				p.accept("ASC")
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if p.cur().Kind != TokenComma {
				break
			}
			p.next()
		}
	}

	// LIMIT and OFFSET may appear in either order.
	for i := 0; i < 2; i++ {
		switch {
		case p.cur().Is("LIMIT") && stmt.Limit == nil:
			p.next()
			n, err := p.parseCount("LIMIT")
			if err != nil {
				return stmt, err
			}
			stmt.Limit = &n
		case p.cur().Is("OFFSET") && stmt.Offset == nil:
			p.next()
			n, err := p.parseCount("OFFSET")
			if err != nil {
				return stmt, err
			}
			stmt.Offset = &n
		}
	}

	if p.cur().Kind == TokenSemicolon {
		p.next()
	}
	if p.cur().Kind != TokenEOF {
		return stmt, p.errorf("unexpected %s", describe(p.cur()))
	}
	return stmt, nil
}

func (p *parser) parseCount(clause string) (int, error) {
	t := p.cur()
	if t.Kind != TokenNumber {
		return 0, p.errorf("%s expects an integer, found %s", clause, describe(t))
	}
	n, err := strconv.Atoi(t.Value)
	if err != nil || n < 0 {
		return 0, p.errorf("%s expects a non-negative integer, found %s", clause, describe(t))
	}
	p.next()
	return n, nil
}

func (p *parser) parseSelectItem() (SelectItem, error) {
	t := p.cur()
	item := SelectItem{Line: t.Line}
	if t.Kind == TokenStar {
		p.next()
		item.Star = true
		return item, nil
	}
	if isName(t) && p.peek(1).Kind == TokenDot && p.peek(2).Kind == TokenStar {
		p.next()
		p.next()
		p.next()
		item.Star = true
		return item, nil
	}

	e, err := p.parseExpr()
	item.Expr = e
	if err != nil {
		return item, err
	}
	alias, err := p.parseAlias()
	item.Alias = alias
	return item, err
}

// parseAlias consumes "AS name" or a bare identifier alias.
func (p *parser) parseAlias() (string, error) {
	if p.accept("AS") {
		t := p.cur()
		if !isName(t) {
			return "", p.errorf("expected alias after AS, found %s", describe(t))
		}
		p.next()
		return t.Value, nil
	}
	if isName(p.cur()) {
		return p.next().Value, nil
	}
	return "", nil
}

func (p *parser) parseTableRef() (TableRef, error) {
	t := p.cur()
	ref := TableRef{Line: t.Line, Col: t.Col}
	if t.Kind == TokenLParen {
		return ref, p.errorf("subqueries in FROM are not supported")
	}
	if !isName(t) {
		return ref, p.errorf("expected table name, found %s", describe(t))
	}
	p.next()
	ref.Name = t.Value
	if p.cur().Kind == TokenDot && isName(p.peek(1)) {
		p.next()
		ref.Schema = ref.Name
		ref.Name = p.next().Value
	}
	alias, err := p.parseAlias()
	ref.Alias = alias
	return ref, err
}

func (p *parser) atJoin() bool {
	t := p.cur()
	if t.Kind != TokenKeyword {
		return false
	}
	switch t.Value {
	case "JOIN", "INNER", "LEFT", "RIGHT", "FULL", "CROSS":
		return true
	}
	return false
}

func (p *parser) parseJoin() (JoinClause, error) {
	join := JoinClause{Kind: "INNER"}
	switch t := p.cur(); t.Value {
	case "INNER":
		p.next()
	case "LEFT", "RIGHT", "FULL":
		join.Kind = t.Value
		p.next()
		p.accept("OUTER")
	case "CROSS":
		join.Kind = "CROSS"
		p.next()
	}
	if err := p.expect("JOIN"); err != nil {
		return join, err
	}

	ref, err := p.parseTableRef()
	join.Table = ref
	if err != nil {
		return join, err
	}

	switch {
	case p.accept("ON"):
		on, err := p.parseExpr()
		join.On = on
		return join, err
	case p.accept("USING"):
		if p.cur().Kind != TokenLParen {
			return join, p.errorf("expected ( after USING")
		}
		p.next()
		for {
			t := p.cur()
			if !isName(t) {
				return join, p.errorf("expected column in USING, found %s", describe(t))
			}
			join.Using = append(join.Using, p.next().Value)
			if p.cur().Kind != TokenComma {
				break
			}
			p.next()
		}
		if p.cur().Kind != TokenRParen {
			return join, p.errorf("expected ) after USING columns")
		}
		p.next()
	}
	return join, nil
}

// --- expressions ---

func (p *parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	for err == nil && p.cur().Is("OR") {
		p.next()
		var right Expr
		right, err = p.parseAnd()
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, err
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	for err == nil && p.cur().Is("AND") {
		p.next()
		var right Expr
		right, err = p.parseNot()
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, err
}

func (p *parser) parseNot() (Expr, error) {
	if p.accept("NOT") {
		e, err := p.parseNot()
		return &NotExpr{Expr: e}, err
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return left, err
	}

	t := p.cur()
	if t.Kind == TokenOperator && isComparison(t.Value) {
		p.next()
		right, err := p.parseAdditive()
		return &ComparisonExpr{Op: t.Value, Left: left, Right: right}, err
	}

	not := false
	if t.Is("NOT") {
		switch p.peek(1).Value {
		case "IN", "BETWEEN", "LIKE", "ILIKE":
			p.next()
			not = true
		}
	}

	switch t := p.cur(); {
	case t.Is("IN"):
		p.next()
		values, err := p.parseExprList()
		return &InExpr{Left: left, Values: values, Not: not}, err
	case t.Is("BETWEEN"):
		p.next()
		low, err := p.parseAdditive()
		if err != nil {
			return &BetweenExpr{Left: left, Low: low, Not: not}, err
		}
		if err := p.expect("AND"); err != nil {
			return &BetweenExpr{Left: left, Low: low, Not: not}, err
		}
		high, err := p.parseAdditive()
		return &BetweenExpr{Left: left, Low: low, High: high, Not: not}, err
	case t.Is("LIKE"), t.Is("ILIKE"):
		p.next()
		pattern, err := p.parseAdditive()
		return &LikeExpr{Op: t.Value, Left: left, Pattern: pattern, Not: not}, err
	case t.Is("IS"):
		p.next()
		isNot := p.accept("NOT")
		if err := p.expect("NULL"); err != nil {
			return &IsNullExpr{Left: left, Not: isNot}, err
		}
		return &IsNullExpr{Left: left, Not: isNot}, nil
	}
	return left, nil
}

func (p *parser) parseExprList() ([]Expr, error) {
	if p.cur().Kind != TokenLParen {
		return nil, p.errorf("expected (, found %s", describe(p.cur()))
	}
	p.next()
	if p.cur().Is("SELECT") {
		return nil, p.errorf("subqueries are not supported")
	}
	var list []Expr
	for {
		e, err := p.parseAdditive()
		if err != nil {
			return list, err
		}
		list = append(list, e)
		if p.cur().Kind != TokenComma {
			break
		}
		p.next()
	}
	if p.cur().Kind != TokenRParen {
		return list, p.errorf("expected ), found %s", describe(p.cur()))
	}
	p.next()
	return list, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	for err == nil {
		t := p.cur()
		if t.Kind != TokenOperator || (t.Value != "+" && t.Value != "-" && t.Value != "||") {
			break
		}
		p.next()
		var right Expr
		right, err = p.parseMultiplicative()
		left = &ArithExpr{Op: t.Value, Left: left, Right: right}
	}
	return left, err
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	for err == nil {
		t := p.cur()
		isMul := t.Kind == TokenStar || (t.Kind == TokenOperator && (t.Value == "/" || t.Value == "%"))
		if !isMul {
			break
		}
		p.next()
		var right Expr
		right, err = p.parseUnary()
		left = &ArithExpr{Op: t.Value, Left: left, Right: right}
	}
	return left, err
}

func (p *parser) parseUnary() (Expr, error) {
	t := p.cur()
	if t.Kind == TokenOperator && t.Value == "-" && p.peek(1).Kind == TokenNumber {
		p.next()
		n := p.next()
		return &Literal{Kind: LiteralNumber, Value: "-" + n.Value}, nil
	}
	e, err := p.parsePrimary()
	for err == nil && p.cur().Kind == TokenOperator && p.cur().Value == "::" {
		p.next()
		typ := p.cur()
		if !isName(typ) {
			return e, p.errorf("expected type name after ::")
		}
		p.next()
		e = &ArithExpr{Op: "::", Left: e, Right: &Literal{Kind: LiteralString, Value: typ.Value}}
	}
	return e, err
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch {
	case t.Kind == TokenNumber:
		p.next()
		return &Literal{Kind: LiteralNumber, Value: t.Value}, nil
	case t.Kind == TokenString:
		p.next()
		return &Literal{Kind: LiteralString, Value: t.Value}, nil
	case t.Is("TRUE"), t.Is("FALSE"):
		p.next()
		return &Literal{Kind: LiteralBool, Value: t.Value}, nil
	case t.Is("NULL"):
		p.next()
		return &Literal{Kind: LiteralNull, Value: t.Value}, nil
	case t.Is("INTERVAL"):
		p.next()
		v := p.cur()
		if v.Kind != TokenString {
			return nil, p.errorf("expected quoted interval after INTERVAL")
		}
		p.next()
		return &IntervalLiteral{Value: v.Value, Text: p.src[t.Pos:v.End]}, nil
	case t.Kind == TokenLParen:
		p.next()
		if p.cur().Is("SELECT") {
			return nil, p.errorf("subqueries are not supported")
		}
		inner, err := p.parseExpr()
		if err != nil {
			return &ParenExpr{Expr: inner}, err
		}
		if p.cur().Kind != TokenRParen {
			return &ParenExpr{Expr: inner}, p.errorf("expected ), found %s", describe(p.cur()))
		}
		p.next()
		return &ParenExpr{Expr: inner}, nil
	case isName(t):
		p.next()
		if p.cur().Kind == TokenLParen {
			return p.parseCall(t.Value)
		}
		if p.cur().Kind == TokenDot && isName(p.peek(1)) {
			p.next()
			col := p.next()
			return &ColumnRef{Table: t.Value, Column: col.Value}, nil
		}
		if t.Kind == TokenIdent && isNiladic(t.Value) {
			return &FuncCall{Name: strings.ToUpper(t.Value)}, nil
		}
		return &ColumnRef{Column: t.Value}, nil
	}
	return nil, p.errorf("unexpected %s", describe(t))
}

func (p *parser) parseCall(name string) (Expr, error) {
	call := &FuncCall{Name: strings.ToUpper(name)}
	p.next() // (
	if p.cur().Kind == TokenStar {
		p.next()
		call.Star = true
	} else if p.cur().Kind != TokenRParen {
		p.accept("DISTINCT")
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return call, err
			}
			call.Args = append(call.Args, arg)
			if p.cur().Kind != TokenComma {
				break
			}
			p.next()
		}
	}
	if p.cur().Kind != TokenRParen {
		return call, p.errorf("expected ) to close %s(, found %s", call.Name, describe(p.cur()))
	}
	p.next()
	return call, nil
}

func isName(t Token) bool {
	return t.Kind == TokenIdent || t.Kind == TokenQuotedIdent
}

func isComparison(op string) bool {
	switch op {
	case "=", "<>", "!=", "<", ">", "<=", ">=":
		return true
	}
	return false
}

func isNiladic(name string) bool {
	switch strings.ToUpper(name) {
	case "CURRENT_DATE", "CURRENT_TIMESTAMP", "CURRENT_TIME", "LOCALTIMESTAMP":
		return true
	}
	return false
}
