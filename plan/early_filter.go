package plan

import (
	"github.com/dianpeng/sqlvdbe/sql"
)

// ----------------------------------------------------------------------------
//
// Early filter is a simple optimization that we try to perform. Basically, we
// try to *split* the where clause condition W.R.T each loop level of the
// nested loop, so that a row of an outer table is rejected before any inner
// table is scanned.
//
// The WHERE clause is flattened into its AND-ed conjuncts, the conjuncts are
// then classified with the table access set of the expression phase
//
//  1) static, the conjunct needs no table at all, ie a constant or an
//     uncorrelated subquery, it is checked once before any loop
//
//  2) single, the conjunct needs exactly one table, it becomes the filter of
//     that table's scan
//
//  3) mixed, the conjunct needs several tables, it is checked in the loop of
//     the innermost table it needs, this is the join filter
//
// Conjuncts keep their relative order inside of each bucket, the evaluation
// order of a WHERE clause is not observable otherwise.
//
// ----------------------------------------------------------------------------

const (
	anaEFStatic = iota
	anaEFKnown
	anaEFUnknown
)

// conjuncts splits an expression on its top level AND operators
func conjuncts(input sql.Expr) []sql.Expr {
	if input == nil {
		return nil
	}
	if bin, ok := input.(*sql.Binary); ok && bin.Op == sql.TkAnd {
		out := []sql.Expr{}
		out = append(out, conjuncts(bin.L)...)
		out = append(out, conjuncts(bin.R)...)
		return out
	}
	return []sql.Expr{input}
}

// andAll joins the expressions back with AND, nil for an empty list
func andAll(list []sql.Expr) sql.Expr {
	var cond sql.Expr
	for _, e := range list {
		if cond == nil {
			cond = e
		} else {
			cond = &sql.Binary{
				Op: sql.TkAnd,
				L:  cond,
				R:  e,
			}
		}
	}
	return cond
}

type earlyFilterAnalyzer struct {
	p    *Plan
	info *exprTableAccessInfo

	// output information
	static []sql.Expr
	single [][]sql.Expr // by table
	mixed  [][]sql.Expr // by innermost table
}

func (self *Plan) newEarlyFilterAnalyzer(where sql.Expr) *earlyFilterAnalyzer {
	n := len(self.tableList)
	return &earlyFilterAnalyzer{
		p:      self,
		info:   newExprTableAccessInfo(where),
		single: make([][]sql.Expr, n),
		mixed:  make([][]sql.Expr, n),
	}
}

func (self *earlyFilterAnalyzer) toStatus(expr sql.Expr, tidx int) int {
	set := self.info.setOrNil(expr)
	switch {
	case set == nil || set.Static():
		return anaEFStatic
	case set.Single() && set.Has(tidx):
		return anaEFKnown
	default:
		return anaEFUnknown
	}
}

func (self *earlyFilterAnalyzer) run(where sql.Expr) {
	for _, c := range conjuncts(where) {
		set := self.info.setOrNil(c)
		if set == nil || set.Static() {
			self.static = append(self.static, c)
			continue
		}
		max := set.Max()
		if self.toStatus(c, max) == anaEFKnown {
			self.single[max] = append(self.single[max], c)
		} else {
			self.mixed[max] = append(self.mixed[max], c)
		}
	}
}

// anaEarlyFilter returns the part of the condition that only needs table
// tableIdx, nil when there is none.
func (self *Plan) anaEarlyFilter(
	tableIdx int,
	input sql.Expr,
) sql.Expr {
	a := self.newEarlyFilterAnalyzer(input)
	a.run(input)
	if tableIdx < 0 || tableIdx >= len(a.single) {
		return nil
	}
	return andAll(a.single[tableIdx])
}
