package domain

// SelectStmt is the typed form of the bounded grammar:
//
//	SELECT [DISTINCT] items FROM ref {join} [WHERE expr] [GROUP BY ...]
//	[HAVING expr] [ORDER BY ...] [LIMIT n] [OFFSET n]
type SelectStmt struct {
	Distinct bool
	Items    []SelectItem
	From     []TableRef // comma-separated FROM list, first entry is primary
	Joins    []JoinClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderItem
	Limit    *int
	Offset   *int
}

// TableRefs returns FROM and JOIN references in source order.
func (s *SelectStmt) TableRefs() []TableRef {
	refs := make([]TableRef, 0, len(s.From)+len(s.Joins))
	refs = append(refs, s.From...)
	for _, j := range s.Joins {
		refs = append(refs, j.Table)
	}
	return refs
}

// SelectItem is one entry of the select list.
type SelectItem struct {
	Star  bool // bare * or qualifier.*
	Expr  Expr // nil when Star is set
	Alias string
	Line  int
}

// TableRef names a table in FROM or JOIN.
type TableRef struct {
	Schema string
	Name   string
	Alias  string
	Line   int
	Col    int
}

// JoinClause is one JOIN entry.
type JoinClause struct {
	Kind  string // INNER, LEFT, RIGHT, FULL, CROSS
	Table TableRef
	On    Expr
	Using []string
}

// OrderItem is an ORDER BY entry.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Expr is a node in a scalar or boolean expression tree.
type Expr interface {
	exprNode()
}

// BinaryExpr joins two boolean expressions with AND or OR.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

type NotExpr struct {
	Expr Expr
}

// ParenExpr keeps explicit grouping from the source text.
type ParenExpr struct {
	Expr Expr
}

// ComparisonExpr is left <op> right for =, <>, !=, <, >, <=, >=.
type ComparisonExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

type InExpr struct {
	Left   Expr
	Values []Expr
	Not    bool
}

type BetweenExpr struct {
	Left Expr
	Low  Expr
	High Expr
	Not  bool
}

type IsNullExpr struct {
	Left Expr
	Not  bool
}

type LikeExpr struct {
	Op      string // LIKE or ILIKE
	Left    Expr
	Pattern Expr
	Not     bool
}

// ArithExpr covers +, -, *, /, %, || and :: casts.
type ArithExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// ColumnRef is a possibly qualified column reference.
type ColumnRef struct {
	Table  string
	Column string
}

// LiteralKind distinguishes literal values.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralBool
	LiteralNull
)

type Literal struct {
	Kind  LiteralKind
	Value string
}

// IntervalLiteral is INTERVAL '<n> <unit>'. Text is the source span verbatim.
type IntervalLiteral struct {
	Value string
	Text  string
}

type FuncCall struct {
	Name string
	Args []Expr
	Star bool // COUNT(*)
}

func (*BinaryExpr) exprNode()      {}
func (*NotExpr) exprNode()         {}
func (*ParenExpr) exprNode()       {}
func (*ComparisonExpr) exprNode()  {}
func (*InExpr) exprNode()          {}
func (*BetweenExpr) exprNode()     {}
func (*IsNullExpr) exprNode()      {}
func (*LikeExpr) exprNode()        {}
func (*ArithExpr) exprNode()       {}
func (*ColumnRef) exprNode()       {}
func (*Literal) exprNode()         {}
func (*IntervalLiteral) exprNode() {}
func (*FuncCall) exprNode()        {}

// Walk visits e and its children depth-first in source order. Returning
// false from fn skips the node's children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *NotExpr:
		Walk(n.Expr, fn)
	case *ParenExpr:
		Walk(n.Expr, fn)
	case *ComparisonExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *InExpr:
		Walk(n.Left, fn)
		for _, v := range n.Values {
			Walk(v, fn)
		}
	case *BetweenExpr:
		Walk(n.Left, fn)
		Walk(n.Low, fn)
		Walk(n.High, fn)
	case *IsNullExpr:
		Walk(n.Left, fn)
	case *LikeExpr:
		Walk(n.Left, fn)
		Walk(n.Pattern, fn)
	case *ArithExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *FuncCall:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	}
}
