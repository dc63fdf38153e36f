package sql

import (
	"strings"
)

const (
	ConstNull = iota
	ConstStr
	ConstInt
	ConstReal
	ConstBlob
)

const (
	ExprConst = iota
	ExprRef
	ExprCall
	ExprUnary
	ExprBinary
	ExprCase
	ExprCast
	ExprCollate
	ExprSubquery
)

const (
	StmtSelect = iota
	StmtInsert
	StmtUpdate
	StmtDelete
	StmtCreateTable
	StmtCreateIndex
	StmtAlterTable
	StmtAnalyze
	StmtBegin
	StmtCommit
	StmtRollback
)

const (
	SelectVarCol = iota
	SelectVarStar
)

const (
	AlterRename = iota
	AlterRenameColumn
	AlterAddColumn
	AlterDropColumn
)

type CodeInfo struct {
	Start   int
	End     int
	Snippet string
}

type Stmt interface {
	Type() int
	CInfo() CodeInfo
}

type Code struct {
	CodeInfo CodeInfo
	Explain  bool
	Stmt     Stmt
}

/** -------------------------------------------------------------------------
 ** Select
 ** -----------------------------------------------------------------------*/

type SelectVar interface {
	Type() int
	CInfo() CodeInfo

	// If the field has an aliased, via as keyword, then it returns otherwise
	// returns an empty string
	Alias() string
}

type Col struct {
	CodeInfo CodeInfo
	As       string
	Value    Expr
}

// Star is either * or t.*
type Star struct {
	CodeInfo CodeInfo
	Table    string
}

func (self *Col) Type() int       { return SelectVarCol }
func (self *Col) CInfo() CodeInfo { return self.CodeInfo }
func (self *Col) Alias() string   { return self.As }

// ColName is the name of the output column, the alias if given, the bare
// column for a plain reference and the source text otherwise.
func (self *Col) ColName() string {
	if self.As != "" {
		return self.As
	}
	if ref, ok := self.Value.(*Ref); ok {
		return ref.Id
	}
	if self.CodeInfo.Snippet != "" {
		return self.CodeInfo.Snippet
	}
	return PrintExpr(self.Value)
}

func (self *Star) Type() int       { return SelectVarStar }
func (self *Star) CInfo() CodeInfo { return self.CodeInfo }
func (self *Star) Alias() string   { return "" }

type SelectVarList []SelectVar

type Projection struct {
	CodeInfo  CodeInfo
	ValueList SelectVarList
}

func (self *SelectVarList) HasStar() bool {
	for _, y := range *self {
		if y.Type() == SelectVarStar {
			return true
		}
	}
	return false
}

func (self *Projection) HasStar() bool {
	return self.ValueList.HasStar()
}

type FromVar struct {
	CodeInfo CodeInfo
	Name     string
	Alias    string
}

// Visible name of the table inside of the statement
func (self *FromVar) VisibleName() string {
	if self.Alias != "" {
		return self.Alias
	}
	return self.Name
}

type From struct {
	CodeInfo CodeInfo
	VarList  []*FromVar
}

// Where clause, just a list of expressions
type Where struct {
	CodeInfo  CodeInfo
	Condition Expr
}

type Having Where

type GroupBy struct {
	CodeInfo CodeInfo
	Name     []Expr
}

type OrderTerm struct {
	Expr Expr
	Desc bool
}

type OrderBy struct {
	CodeInfo CodeInfo
	Terms    []*OrderTerm
}

type Limit struct {
	CodeInfo CodeInfo
	Limit    Expr
	Offset   Expr
}

type Select struct {
	CodeInfo CodeInfo
	Distinct bool // whether a distinct selection, ie dedup

	Projection *Projection // projection
	From       *From       // from clause, nil for a bare SELECT expr-list
	Where      *Where      // where clause
	GroupBy    *GroupBy    // group by
	Having     *Having     // having
	OrderBy    *OrderBy    // order by
	Limit      *Limit      // limit clause
}

/** -------------------------------------------------------------------------
 ** DML
 ** -----------------------------------------------------------------------*/

type Insert struct {
	CodeInfo CodeInfo
	Table    string
	Columns  []string
	Values   [][]Expr // VALUES rows, empty when Select is set
	Select   *Select
}

type SetClause struct {
	Column string
	Value  Expr
}

type Update struct {
	CodeInfo CodeInfo
	Table    string
	Set      []*SetClause
	Where    *Where
}

type Delete struct {
	CodeInfo CodeInfo
	Table    string
	Where    *Where
}

/** -------------------------------------------------------------------------
 ** DDL
 ** -----------------------------------------------------------------------*/

type ColumnDef struct {
	Name       string
	TypeName   string
	PrimaryKey bool
	Desc       bool
	AutoInc    bool
	NotNull    bool
	Unique     bool
	Collate    string
	Default    Expr
}

type CreateTable struct {
	CodeInfo     CodeInfo
	Name         string
	IfNotExists  bool
	Columns      []*ColumnDef
	PrimaryKey   []string   // table level PRIMARY KEY(...) constraint
	Unique       [][]string // table level UNIQUE(...) constraints
	WithoutRowid bool

	// CREATE VIRTUAL TABLE name USING module(args)
	Virtual    bool
	Module     string
	ModuleArgs []string
}

type IndexedColumn struct {
	Name    string
	Collate string
	Desc    bool
}

type CreateIndex struct {
	CodeInfo    CodeInfo
	Name        string
	Table       string
	Unique      bool
	IfNotExists bool
	Columns     []*IndexedColumn
}

type AlterTable struct {
	CodeInfo CodeInfo
	Table    string
	Action   int
	NewName  string
}

type Analyze struct {
	CodeInfo CodeInfo
	Target   string // empty means every table
}

type Begin struct{ CodeInfo CodeInfo }
type Commit struct{ CodeInfo CodeInfo }
type Rollback struct{ CodeInfo CodeInfo }

func (self *Select) Type() int      { return StmtSelect }
func (self *Insert) Type() int      { return StmtInsert }
func (self *Update) Type() int      { return StmtUpdate }
func (self *Delete) Type() int      { return StmtDelete }
func (self *CreateTable) Type() int { return StmtCreateTable }
func (self *CreateIndex) Type() int { return StmtCreateIndex }
func (self *AlterTable) Type() int  { return StmtAlterTable }
func (self *Analyze) Type() int     { return StmtAnalyze }
func (self *Begin) Type() int       { return StmtBegin }
func (self *Commit) Type() int      { return StmtCommit }
func (self *Rollback) Type() int    { return StmtRollback }

func (self *Select) CInfo() CodeInfo      { return self.CodeInfo }
func (self *Insert) CInfo() CodeInfo      { return self.CodeInfo }
func (self *Update) CInfo() CodeInfo      { return self.CodeInfo }
func (self *Delete) CInfo() CodeInfo      { return self.CodeInfo }
func (self *CreateTable) CInfo() CodeInfo { return self.CodeInfo }
func (self *CreateIndex) CInfo() CodeInfo { return self.CodeInfo }
func (self *AlterTable) CInfo() CodeInfo  { return self.CodeInfo }
func (self *Analyze) CInfo() CodeInfo     { return self.CodeInfo }
func (self *Begin) CInfo() CodeInfo       { return self.CodeInfo }
func (self *Commit) CInfo() CodeInfo      { return self.CodeInfo }
func (self *Rollback) CInfo() CodeInfo    { return self.CodeInfo }

/** -------------------------------------------------------------------------
 ** Expression
 ** -----------------------------------------------------------------------*/
type Const struct {
	Ty       int
	String   string
	Blob     []byte
	Real     float64
	Int      int64
	CodeInfo CodeInfo
}

// Column reference, optionally qualified by the table's visible name
type Ref struct {
	Table    string
	Id       string
	CodeInfo CodeInfo
	CanName  CanName
}

type Call struct {
	Name     string
	Args     []Expr
	Star     bool // count(*)
	Distinct bool
	CodeInfo CodeInfo
	CanName  CanName // settled by the planner for aggregate calls
}

type Unary struct {
	Op       int
	Operand  Expr
	CodeInfo CodeInfo
}

type Binary struct {
	Op       int
	L        Expr
	R        Expr
	CodeInfo CodeInfo
}

type When struct {
	Cond Expr
	Then Expr
}

type Case struct {
	Operand  Expr // optional, CASE x WHEN ...
	When     []*When
	Else     Expr
	CodeInfo CodeInfo
}

type Cast struct {
	Operand  Expr
	TypeName string
	CodeInfo CodeInfo
}

type Collate struct {
	Operand   Expr
	Collation string
	CodeInfo  CodeInfo
}

// Scalar subquery, (SELECT ...)
type Subquery struct {
	Select   *Select
	CodeInfo CodeInfo
}

type Expr interface {
	Type() int
	CInfo() CodeInfo
}

func (self *Const) Type() int       { return ExprConst }
func (self *Const) CInfo() CodeInfo { return self.CodeInfo }

func (self *Ref) Type() int       { return ExprRef }
func (self *Ref) CInfo() CodeInfo { return self.CodeInfo }

func (self *Call) Type() int       { return ExprCall }
func (self *Call) CInfo() CodeInfo { return self.CodeInfo }

func (self *Unary) Type() int       { return ExprUnary }
func (self *Unary) CInfo() CodeInfo { return self.CodeInfo }

func (self *Binary) Type() int       { return ExprBinary }
func (self *Binary) CInfo() CodeInfo { return self.CodeInfo }

func (self *Case) Type() int       { return ExprCase }
func (self *Case) CInfo() CodeInfo { return self.CodeInfo }

func (self *Cast) Type() int       { return ExprCast }
func (self *Cast) CInfo() CodeInfo { return self.CodeInfo }

func (self *Collate) Type() int       { return ExprCollate }
func (self *Collate) CInfo() CodeInfo { return self.CodeInfo }

func (self *Subquery) Type() int       { return ExprSubquery }
func (self *Subquery) CInfo() CodeInfo { return self.CodeInfo }

func (self *Call) LowerName() string { return strings.ToLower(self.Name) }

func (self *Call) IsAgg() bool {
	return IsAggFunc(self.LowerName()) && (self.Star || len(self.Args) >= 1) &&
		!(isMinMax(self.LowerName()) && len(self.Args) > 1)
}

func isMinMax(n string) bool { return n == "min" || n == "max" }

/* ----------------------------------------------------------------------------
 * Visitor
 * ---------------------------------------------------------------------------*/

type ExprVisitor interface {
	AcceptConst(*Const) (bool, error)
	AcceptRef(*Ref) (bool, error)
	AcceptCall(*Call) (bool, error)
	AcceptUnary(*Unary) (bool, error)
	AcceptBinary(*Binary) (bool, error)
	AcceptCase(*Case) (bool, error)
	AcceptCast(*Cast) (bool, error)
	AcceptCollate(*Collate) (bool, error)
	AcceptSubquery(*Subquery) (bool, error)
}

// children of the expression in evaluation order, subqueries are opaque
func children(expr Expr) []Expr {
	switch expr.Type() {
	case ExprCall:
		return expr.(*Call).Args
	case ExprUnary:
		return []Expr{expr.(*Unary).Operand}
	case ExprBinary:
		b := expr.(*Binary)
		return []Expr{b.L, b.R}
	case ExprCase:
		c := expr.(*Case)
		out := []Expr{}
		if c.Operand != nil {
			out = append(out, c.Operand)
		}
		for _, w := range c.When {
			out = append(out, w.Cond, w.Then)
		}
		if c.Else != nil {
			out = append(out, c.Else)
		}
		return out
	case ExprCast:
		return []Expr{expr.(*Cast).Operand}
	case ExprCollate:
		return []Expr{expr.(*Collate).Operand}
	default:
		return nil
	}
}

func accept(visitor ExprVisitor, expr Expr) (bool, error) {
	switch expr.Type() {
	case ExprConst:
		return visitor.AcceptConst(expr.(*Const))
	case ExprRef:
		return visitor.AcceptRef(expr.(*Ref))
	case ExprCall:
		return visitor.AcceptCall(expr.(*Call))
	case ExprUnary:
		return visitor.AcceptUnary(expr.(*Unary))
	case ExprBinary:
		return visitor.AcceptBinary(expr.(*Binary))
	case ExprCase:
		return visitor.AcceptCase(expr.(*Case))
	case ExprCast:
		return visitor.AcceptCast(expr.(*Cast))
	case ExprCollate:
		return visitor.AcceptCollate(expr.(*Collate))
	case ExprSubquery:
		return visitor.AcceptSubquery(expr.(*Subquery))
	default:
		return false, nil
	}
}

func visitExprPostOrder(
	visitor ExprVisitor,
	expr Expr,
) error {
	for _, x := range children(expr) {
		if err := visitExprPostOrder(visitor, x); err != nil {
			return err
		}
	}
	_, err := accept(visitor, expr)
	return err
}

func visitExprPreOrder(
	visitor ExprVisitor,
	expr Expr,
) error {
	goon, err := accept(visitor, expr)
	if err != nil {
		return err
	}
	if !goon {
		return nil
	}
	for _, x := range children(expr) {
		if err := visitExprPreOrder(visitor, x); err != nil {
			return err
		}
	}
	return nil
}

func VisitExprPreOrder(
	visitor ExprVisitor,
	expr Expr,
) error {
	return visitExprPreOrder(visitor, expr)
}

func VisitExprPostOrder(
	visitor ExprVisitor,
	expr Expr,
) error {
	return visitExprPostOrder(visitor, expr)
}

// ExprWalker adapts a single function into an ExprVisitor, the function is
// called for every node and returns whether to descend.
type ExprWalker func(Expr) (bool, error)

func (self ExprWalker) AcceptConst(e *Const) (bool, error)       { return self(e) }
func (self ExprWalker) AcceptRef(e *Ref) (bool, error)           { return self(e) }
func (self ExprWalker) AcceptCall(e *Call) (bool, error)         { return self(e) }
func (self ExprWalker) AcceptUnary(e *Unary) (bool, error)       { return self(e) }
func (self ExprWalker) AcceptBinary(e *Binary) (bool, error)     { return self(e) }
func (self ExprWalker) AcceptCase(e *Case) (bool, error)         { return self(e) }
func (self ExprWalker) AcceptCast(e *Cast) (bool, error)         { return self(e) }
func (self ExprWalker) AcceptCollate(e *Collate) (bool, error)   { return self(e) }
func (self ExprWalker) AcceptSubquery(e *Subquery) (bool, error) { return self(e) }

// Walk the expression in pre-order with a plain function
func WalkExpr(expr Expr, f func(Expr) (bool, error)) error {
	if expr == nil {
		return nil
	}
	return visitExprPreOrder(ExprWalker(f), expr)
}

/* ----------------------------------------------------------------------------
 * Clone
 * ---------------------------------------------------------------------------*/

func cloneExprList(in []Expr) []Expr {
	if in == nil {
		return nil
	}
	out := make([]Expr, 0, len(in))
	for _, x := range in {
		out = append(out, cloneExpr(x))
	}
	return out
}

func cloneExpr(
	in Expr,
) Expr {
	if in == nil {
		return nil
	}
	switch in.Type() {
	case ExprConst:
		c := *in.(*Const)
		return &c
	case ExprRef:
		r := *in.(*Ref)
		return &r
	case ExprCall:
		c := *in.(*Call)
		c.Args = cloneExprList(c.Args)
		return &c
	case ExprUnary:
		u := *in.(*Unary)
		u.Operand = cloneExpr(u.Operand)
		return &u
	case ExprBinary:
		b := *in.(*Binary)
		b.L = cloneExpr(b.L)
		b.R = cloneExpr(b.R)
		return &b
	case ExprCase:
		c := *in.(*Case)
		c.Operand = cloneExpr(c.Operand)
		c.Else = cloneExpr(c.Else)
		c.When = nil
		for _, w := range in.(*Case).When {
			c.When = append(c.When, &When{Cond: cloneExpr(w.Cond), Then: cloneExpr(w.Then)})
		}
		return &c
	case ExprCast:
		c := *in.(*Cast)
		c.Operand = cloneExpr(c.Operand)
		return &c
	case ExprCollate:
		c := *in.(*Collate)
		c.Operand = cloneExpr(c.Operand)
		return &c
	case ExprSubquery:
		s := *in.(*Subquery)
		return &s
	default:
		return nil
	}
}

func CloneExpr(in Expr) Expr {
	return cloneExpr(in)
}
