package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// Expression phase is a simple data flow algorithm pass which walk through the
// expression AST and mark each *node* inside of the tree along with its property
//
// 1) For each expression node, regardless it is a leaf or internal node, assign
//    a *set* to this node.
//
// 2) Walk the tree in a data flow fashion, post order, and set the set to be
//    *include* of its children's node's set
//
// 3) For a sql.Ref that is a *table column*, testified via
//    CanName.IsTableColumn, add TableIndex into its set. An alias reference
//    includes the set of the expression it stands for.
//
// Finally we learn that each node's table access set.

// the set object used to track all the table index belongs to a certain expr
type exprTableAccessSet map[int]bool

func (self *exprTableAccessSet) Has(tidx int) bool {
	_, ok := (*self)[tidx]
	return ok
}

func (self *exprTableAccessSet) Static() bool {
	return len(*self) == 0
}

func (self *exprTableAccessSet) Single() bool {
	return len(*self) == 1
}

// Max is the innermost table of the set, -1 for a static set
func (self *exprTableAccessSet) Max() int {
	m := -1
	for k := range *self {
		if k > m {
			m = k
		}
	}
	return m
}

func (self *exprTableAccessSet) Print() string {
	keys := []int{}
	for k := range *self {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	buf := strings.Builder{}
	for _, k := range keys {
		buf.WriteString(fmt.Sprintf("%d;", k))
	}
	return buf.String()
}

type exprTableAccessInfo struct {
	root sql.Expr                        // root expression
	info map[sql.Expr]exprTableAccessSet // expression -> set mapping
}

func newExprTableAccessInfo(root sql.Expr) *exprTableAccessInfo {
	info := &exprTableAccessInfo{
		root: root,
		info: make(map[sql.Expr]exprTableAccessSet),
	}
	if root != nil {
		info.mark(root)
	}
	return info
}

func (self *exprTableAccessInfo) s(expr sql.Expr) exprTableAccessSet {
	r, ok := self.info[expr]
	if !ok {
		r = make(exprTableAccessSet)
		self.info[expr] = r
	}
	return r
}

func (self *exprTableAccessInfo) setOrNil(expr sql.Expr) exprTableAccessSet {
	r, _ := self.info[expr]
	return r
}

func (self *exprTableAccessInfo) Ref(expr sql.Expr, tidx int) bool {
	s := self.s(expr)

	return s.Has(tidx)
}

func (self *exprTableAccessInfo) include(
	dst exprTableAccessSet,
	src exprTableAccessSet,
) {
	for k := range src {
		dst[k] = true
	}
}

// make sure that each expression has already been settled
func (self *exprTableAccessInfo) mark(
	expr sql.Expr,
) {
	set := self.s(expr)

	switch expr.Type() {
	case sql.ExprRef:
		ref := expr.(*sql.Ref)
		if ref.CanName.IsTableColumn() {
			set[ref.CanName.TableIndex] = true
		} else if ref.CanName.IsReference() {
			self.mark(ref.CanName.Reference)
			self.include(set, self.s(ref.CanName.Reference))
		}

	case sql.ExprSubquery:
		// uncorrelated, it needs no table of the outer query

	default:
		sql.VisitExprPreOrder(sql.ExprWalker(func(x sql.Expr) (bool, error) {
			if x == expr {
				return true, nil
			}
			self.mark(x)
			self.include(set, self.s(x))
			return false, nil
		}), expr)
	}
}

// ----------------------------------------------------------------------------
// Collation of an expression. An explicit COLLATE wins over the collation of
// a column, which wins over the default BINARY.
// ----------------------------------------------------------------------------

const (
	collDefault = iota
	collColumn
	collExplicit
)

func (self *Plan) exprCollation(e sql.Expr) (vdbe.Collation, int) {
	switch e.Type() {
	case sql.ExprCollate:
		c := e.(*sql.Collate)
		coll, _ := vdbe.CollationByName(c.Collation)
		return coll, collExplicit
	case sql.ExprRef:
		ref := e.(*sql.Ref)
		if ref.CanName.IsReference() {
			return self.exprCollation(ref.CanName.Reference)
		}
		if ref.CanName.IsTableColumn() && !ref.CanName.IsRowid() {
			td := self.indexTableDescriptor(ref.CanName.TableIndex)
			if td != nil {
				return td.Table.Columns[ref.CanName.ColumnIndex].Collation, collColumn
			}
		}
	}
	return vdbe.CollBinary, collDefault
}

// Collation returns the collation an expression is compared with
func (self *Plan) Collation(e sql.Expr) vdbe.Collation {
	c, _ := self.exprCollation(e)
	return c
}

// CompareCollation picks the collation of a binary comparison: an explicit
// COLLATE on either side first, the left one winning, then the column of
// the left and of the right operand.
func (self *Plan) CompareCollation(l, r sql.Expr) vdbe.Collation {
	lc, lp := self.exprCollation(l)
	rc, rp := self.exprCollation(r)
	if rp > lp {
		return rc
	}
	return lc
}

// Affinity returns the affinity of an expression, the declared one for a
// column and BLOB (none) otherwise.
func (self *Plan) Affinity(e sql.Expr) vdbe.Affinity {
	switch e.Type() {
	case sql.ExprRef:
		ref := e.(*sql.Ref)
		if ref.CanName.IsReference() {
			return self.Affinity(ref.CanName.Reference)
		}
		if ref.CanName.IsRowid() {
			return vdbe.AffinityInteger
		}
		if ref.CanName.IsTableColumn() {
			td := self.indexTableDescriptor(ref.CanName.TableIndex)
			if td != nil {
				return td.Table.Columns[ref.CanName.ColumnIndex].Affinity
			}
		}
	case sql.ExprCast:
		return vdbe.DetermineAffinity(e.(*sql.Cast).TypeName)
	case sql.ExprCollate:
		return self.Affinity(e.(*sql.Collate).Operand)
	}
	return vdbe.AffinityBlob
}
