package plan

import (
	"fmt"
	"strings"

	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

const (
	AggCount = iota
	AggSum
	AggTotal
	AggAvg
	AggMin
	AggMax
)

const (
	defMaxColumnSize = 2000
	defMaxTableSize  = 64
)

func aggTypeToName(i int) string {
	switch i {
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggAvg:
		return "avg"
	case AggSum:
		return "sum"
	case AggTotal:
		return "total"
	case AggCount:
		return "count"
	default:
		return "unknown"
	}
}

func aggNameToType(n string) int {
	switch strings.ToLower(n) {
	case "min":
		return AggMin
	case "max":
		return AggMax
	case "avg":
		return AggAvg
	case "sum":
		return AggSum
	case "total":
		return AggTotal
	case "count":
		return AggCount
	default:
		return -1
	}
}

// TableDescriptor is one entry of the FROM clause bound to the catalog
type TableDescriptor struct {
	Index      int
	Name       string // catalog name
	Alias      string // table alias
	Table      *schema.Table
	Column     map[int]bool // columns accessed, sql.RowidColumn for the rowid
	FullColumn bool         // whether every column is projected, ie t.* or *
}

func (self *TableDescriptor) VisibleName() string {
	if self.Alias != "" {
		return self.Alias
	}
	return self.Name
}

func (self *TableDescriptor) UpdateColumnIndex(cidx int) {
	self.Column[cidx] = true
}

func (self *TableDescriptor) SetFullColumn() { self.FullColumn = true }

// TableScan is one loop level of the nested loop. Filter holds the part of
// the WHERE clause that only needs this table, it is checked as soon as the
// loop of the table is entered.
type TableScan struct {
	Table  *TableDescriptor
	Filter sql.Expr
}

// NestedLoopJoin keeps the conditions that need more than one table.
// Filter[i] is checked inside of the loop of table i, the innermost table
// the condition references.
type NestedLoopJoin struct {
	Filter []sql.Expr
}

func (self *NestedLoopJoin) JoinName() string { return "nested-loop" }

func (self *NestedLoopJoin) Dump() string {
	buf := strings.Builder{}
	buf.WriteString("##> Join\n")
	buf.WriteString("Name: nested-loop\n")
	for idx, f := range self.Filter {
		buf.WriteString(fmt.Sprintf("Filter[%d]: %s\n", idx, sql.PrintExpr(f)))
	}
	return buf.String()
}

type GroupBy struct {
	VarList []sql.Expr // list of expression used for group by
}

// AggVar is one aggregate call found in the projection, HAVING or ORDER BY.
// The call's CanName is settled to the index of the AggVar so that every
// later reference reads the accumulator instead.
type AggVar struct {
	AggType  int
	Call     *sql.Call
	Args     []sql.Expr
	Star     bool
	Distinct bool
}

func (self *AggVar) AggName() string { return aggTypeToName(self.AggType) }

type Agg struct {
	VarList []AggVar
}

// Having phase, a filter applied on the aggregated group
type Having struct {
	Filter sql.Expr
}

type SortVar struct {
	Value     sql.Expr
	Desc      bool
	Collation vdbe.Collation
}

type Sort struct {
	VarList []SortVar
}

type OutputVar struct {
	Value sql.Expr
	Name  string // result column name
}

// Output phase. Distinct and limit/offset are applied right before a row is
// handed out.
type Output struct {
	VarList  []OutputVar
	Distinct bool
	Limit    sql.Expr // nil means no limit
	Offset   sql.Expr
}

func (self *Output) HasLimit() bool { return self.Limit != nil }

func (self *Output) Names() []string {
	out := make([]string, 0, len(self.VarList))
	for _, v := range self.VarList {
		out = append(out, v.Name)
	}
	return out
}

// Planner configuration. Used to customize planner behavior
type Config struct {
	MaxColumnSize int
	MaxTableSize  int
}

type Plan struct {
	Config Config
	Schema *schema.Schema

	Precheck  sql.Expr        // WHERE conjuncts that need no table, checked once
	TableScan []*TableScan    // one per FROM entry, outermost first
	Join      *NestedLoopJoin // only set with more than one table
	GroupBy   *GroupBy        // group by
	Agg       *Agg            // aggregation phase
	Having    *Having         // having phase
	Sort      *Sort           // order by
	Output    *Output         // output phase, must exist for a select

	// --------------------------------------------------------------------------
	// private data
	tableList []*TableDescriptor  // TableIndex is used to access the table
	alias     map[string]sql.Expr // alias table, used during symbol resolution
	aggExpr   []AggVar            // list of aggreation expression
}

func newPlan(s *schema.Schema) *Plan {
	return &Plan{
		Config: Config{
			MaxColumnSize: defMaxColumnSize,
			MaxTableSize:  defMaxTableSize,
		},
		Schema: s,
		alias:  make(map[string]sql.Expr),
	}
}

// PlanSelect resolves a SELECT against the schema and splits it into the
// phases the code generator walks through.
func PlanSelect(s *schema.Schema, sel *sql.Select) (*Plan, error) {
	p := newPlan(s)
	if err := p.plan(sel); err != nil {
		return nil, err
	}
	return p, nil
}

// PlanTable builds the scope of a single table statement, ie UPDATE or
// DELETE, and resolves the expressions inside of it. Aggregates are refused.
func PlanTable(s *schema.Schema, name string, exprs ...sql.Expr) (*Plan, error) {
	p := newPlan(s)
	if err := p.addTable(&sql.FromVar{Name: name}); err != nil {
		return nil, err
	}
	if err := p.resolveDetachedList(exprs, true); err != nil {
		return nil, err
	}
	for _, e := range exprs {
		if err := p.checkNoAgg(e, "misuse of aggregate: %s()"); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// PlanExpr resolves expressions that may not reference any column, ie the
// rows of INSERT ... VALUES.
func PlanExpr(s *schema.Schema, exprs ...sql.Expr) (*Plan, error) {
	p := newPlan(s)
	if err := p.resolveDetachedList(exprs, false); err != nil {
		return nil, err
	}
	for _, e := range exprs {
		if err := p.checkNoAgg(e, "misuse of aggregate: %s()"); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (self *Plan) Tables() []*TableDescriptor { return self.tableList }

func (self *Plan) Table(idx int) *TableDescriptor {
	if idx < 0 || idx >= len(self.tableList) {
		return nil
	}
	return self.tableList[idx]
}

func (self *Plan) HasJoin() bool    { return len(self.tableList) > 1 }
func (self *Plan) HasGroupBy() bool { return self.GroupBy != nil }
func (self *Plan) HasAgg() bool     { return len(self.aggExpr) > 0 }
func (self *Plan) HasHaving() bool  { return self.Having != nil }
func (self *Plan) HasSort() bool    { return self.Sort != nil }

// IsAggregate reports whether the rows are folded, by GROUP BY or by an
// aggregate call in a query without GROUP BY.
func (self *Plan) IsAggregate() bool { return self.HasAgg() || self.HasGroupBy() }

func (self *Plan) err(stage string, f string, args ...interface{}) error {
	msg := fmt.Sprintf(f, args...)
	return fmt.Errorf("stage(%s): %s", stage, msg)
}

// message only errors are the ones surfaced to the user as is
func (self *Plan) errUser(f string, args ...interface{}) error {
	return fmt.Errorf(f, args...)
}
