package cg

import (
	"fmt"

	"github.com/dianpeng/sqlvdbe/plan"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/dianpeng/sqlvdbe/vm"
)

// colKey names one column of one FROM entry
type colKey struct {
	tidx int
	cidx int
}

// columnSource tells the expression generator where the columns of the
// current row live. Columns are read from the scan cursors while the tables
// are walked, from a sorter record once rows were buffered, and from plain
// registers after a group was closed.
type columnSource interface {
	loadColumn(b *vdbe.Builder, tidx, cidx int, dest vdbe.Register) error
}

type tableSource []vdbe.Cursor

func (self tableSource) loadColumn(b *vdbe.Builder, tidx, cidx int, dest vdbe.Register) error {
	if tidx < 0 || tidx >= len(self) {
		return fmt.Errorf("table index %d out of range", tidx)
	}
	if cidx == sql.RowidColumn {
		b.Emit(&vdbe.RowId{Cursor: self[tidx], Dest: dest})
	} else {
		b.Emit(&vdbe.Column{Cursor: self[tidx], Column: cidx, Dest: dest})
	}
	return nil
}

// recordSource reads columns saved into a sorter record
type recordSource struct {
	cursor vdbe.Cursor
	offset map[colKey]int
}

func (self *recordSource) loadColumn(b *vdbe.Builder, tidx, cidx int, dest vdbe.Register) error {
	off, ok := self.offset[colKey{tidx, cidx}]
	if !ok {
		return fmt.Errorf("column %d of table %d is not buffered", cidx, tidx)
	}
	b.Emit(&vdbe.Column{Cursor: self.cursor, Column: off, Dest: dest})
	return nil
}

// registerSource reads columns saved into registers
type registerSource map[colKey]vdbe.Register

func (self registerSource) loadColumn(b *vdbe.Builder, tidx, cidx int, dest vdbe.Register) error {
	r, ok := self[colKey{tidx, cidx}]
	if !ok {
		return fmt.Errorf("column %d of table %d is not captured", cidx, tidx)
	}
	b.Emit(&vdbe.SCopy{Src: r, Dest: dest})
	return nil
}

// exprGen turns one planned expression tree into instructions leaving the
// value in a register
type exprGen struct {
	g   *generator
	p   *plan.Plan
	src columnSource

	// finalized accumulators indexed by the aggregate slot, nil outside of
	// the aggregated phases
	agg []vdbe.Register
}

func (self *generator) newExprGen(p *plan.Plan, src columnSource) *exprGen {
	return &exprGen{g: self, p: p, src: src}
}

func (self *exprGen) with(src columnSource) *exprGen {
	return &exprGen{g: self.g, p: self.p, src: src, agg: self.agg}
}

func (self *exprGen) gen(e sql.Expr) (vdbe.Register, error) {
	r := self.g.b.AllocRegister()
	return r, self.genTo(e, r)
}

func (self *exprGen) genTo(e sql.Expr, dest vdbe.Register) error {
	b := self.g.b
	switch x := e.(type) {
	case *sql.Const:
		return self.genConst(x, dest)

	case *sql.Ref:
		switch {
		case x.CanName.IsReference():
			return self.genTo(x.CanName.Reference, dest)
		case x.CanName.IsTableColumn():
			if self.src == nil {
				return fmt.Errorf("no row to read %s from", x.Id)
			}
			return self.src.loadColumn(b, x.CanName.TableIndex, x.CanName.ColumnIndex, dest)
		default:
			if x.Table != "" {
				return fmt.Errorf("no such column: %s.%s", x.Table, x.Id)
			}
			return fmt.Errorf("no such column: %s", x.Id)
		}

	case *sql.Call:
		return self.genCall(x, dest)

	case *sql.Unary:
		return self.genUnary(x, dest)

	case *sql.Binary:
		return self.genBinary(x, dest)

	case *sql.Case:
		return self.genCase(x, dest)

	case *sql.Cast:
		if err := self.genTo(x.Operand, dest); err != nil {
			return err
		}
		b.Emit(&vdbe.Cast{Reg: dest, Affinity: vdbe.DetermineAffinity(x.TypeName)})
		return nil

	case *sql.Collate:
		// collation only changes how comparisons behave
		return self.genTo(x.Operand, dest)

	case *sql.Subquery:
		return self.genSubquery(x, dest)

	default:
		return fmt.Errorf("unknown expression type")
	}
}

func (self *exprGen) genConst(x *sql.Const, dest vdbe.Register) error {
	b := self.g.b
	switch x.Ty {
	case sql.TkNull:
		b.Emit(&vdbe.Null{Dest: dest})
	case sql.TkInt:
		b.Emit(&vdbe.Integer{Value: x.Int, Dest: dest})
	case sql.TkReal:
		b.Emit(&vdbe.Real{Value: x.Real, Dest: dest})
	case sql.TkStr:
		b.Emit(&vdbe.String8{Value: x.String, Dest: dest})
	case sql.TkBlob:
		b.Emit(&vdbe.Blob{Value: x.Blob, Dest: dest})
	default:
		return fmt.Errorf("unknown constant type")
	}
	return nil
}

func (self *exprGen) genCall(x *sql.Call, dest vdbe.Register) error {
	b := self.g.b
	if x.CanName.IsAgg() {
		idx := x.CanName.ColumnIndex
		if idx < 0 || idx >= len(self.agg) {
			return fmt.Errorf("misuse of aggregate: %s()", x.LowerName())
		}
		b.Emit(&vdbe.SCopy{Src: self.agg[idx], Dest: dest})
		return nil
	}

	name := x.LowerName()
	if x.Star {
		return fmt.Errorf("misuse of aggregate: %s()", name)
	}
	if err := vm.LookupFunc(name, len(x.Args)); err != nil {
		return err
	}
	args := b.AllocRegisters(len(x.Args))
	for i, a := range x.Args {
		if err := self.genTo(a, args.At(i)); err != nil {
			return err
		}
	}
	b.Emit(&vdbe.Function{Args: args, Dest: dest, Func: name})
	return nil
}

func (self *exprGen) genUnary(x *sql.Unary, dest vdbe.Register) error {
	b := self.g.b
	switch x.Op {
	case sql.TkAdd:
		return self.genTo(x.Operand, dest)
	case sql.TkSub:
		v, err := self.gen(x.Operand)
		if err != nil {
			return err
		}
		zero := b.AllocRegister()
		b.Emit(&vdbe.Integer{Value: 0, Dest: zero})
		b.Emit(&vdbe.Arith{Op: vdbe.OpSubtract, Lhs: zero, Rhs: v, Dest: dest})
	case sql.TkBitNot:
		v, err := self.gen(x.Operand)
		if err != nil {
			return err
		}
		b.Emit(&vdbe.BitNot{Reg: v, Dest: dest})
	case sql.TkNot:
		v, err := self.gen(x.Operand)
		if err != nil {
			return err
		}
		b.Emit(&vdbe.Not{Reg: v, Dest: dest})
	default:
		return fmt.Errorf("unknown unary operator")
	}
	return nil
}

var arithOp = map[int]int{
	sql.TkAdd:    vdbe.OpAdd,
	sql.TkSub:    vdbe.OpSubtract,
	sql.TkMul:    vdbe.OpMultiply,
	sql.TkDiv:    vdbe.OpDivide,
	sql.TkMod:    vdbe.OpRemainder,
	sql.TkConcat: vdbe.OpConcat,
	sql.TkBitAnd: vdbe.OpBitAnd,
	sql.TkBitOr:  vdbe.OpBitOr,
	sql.TkAnd:    vdbe.OpAnd,
	sql.TkOr:     vdbe.OpOr,
}

var compareOp = map[int]int{
	sql.TkEq:    vdbe.OpEq,
	sql.TkNe:    vdbe.OpNe,
	sql.TkLt:    vdbe.OpLt,
	sql.TkLe:    vdbe.OpLe,
	sql.TkGt:    vdbe.OpGt,
	sql.TkGe:    vdbe.OpGe,
	sql.TkIs:    vdbe.OpEq,
	sql.TkIsNot: vdbe.OpNe,
}

func (self *exprGen) genBinary(x *sql.Binary, dest vdbe.Register) error {
	if op, ok := arithOp[x.Op]; ok {
		l, err := self.gen(x.L)
		if err != nil {
			return err
		}
		r, err := self.gen(x.R)
		if err != nil {
			return err
		}
		self.g.b.Emit(&vdbe.Arith{Op: op, Lhs: l, Rhs: r, Dest: dest})
		return nil
	}
	if _, ok := compareOp[x.Op]; ok {
		return self.genCompare(x, dest)
	}
	switch x.Op {
	case sql.TkLike, sql.TkNotLike:
		return self.genLike(x, dest)
	}
	return fmt.Errorf("unknown binary operator")
}

func isNumericAffinity(a vdbe.Affinity) bool {
	return a == vdbe.AffinityNumeric || a == vdbe.AffinityInteger || a == vdbe.AffinityReal
}

// compareAffinity is applied to both operands of a comparison. Numeric
// wins over text and text wins over no affinity.
func (self *exprGen) compareAffinity(l, r sql.Expr) vdbe.Affinity {
	la := self.p.Affinity(l)
	ra := self.p.Affinity(r)
	switch {
	case isNumericAffinity(la) || isNumericAffinity(ra):
		return vdbe.AffinityNumeric
	case la == vdbe.AffinityText || ra == vdbe.AffinityText:
		return vdbe.AffinityText
	default:
		return vdbe.AffinityBlob
	}
}

// genCompare leaves 1, 0 or NULL in dest. IS and IS NOT never produce NULL.
//
//	Null dest ; IsNull l end ; IsNull r end ; Integer 1 dest ;
//	Cmp l r end ; Integer 0 dest ; end:
func (self *exprGen) genCompare(x *sql.Binary, dest vdbe.Register) error {
	b := self.g.b
	l, err := self.gen(x.L)
	if err != nil {
		return err
	}
	r, err := self.gen(x.R)
	if err != nil {
		return err
	}

	if aff := self.compareAffinity(x.L, x.R); aff != vdbe.AffinityBlob {
		code := string([]byte{aff.Code()})
		b.Emit(&vdbe.AffinityInsn{Regs: vdbe.RegisterRange{Start: l, Count: 1}, Affinities: code})
		b.Emit(&vdbe.AffinityInsn{Regs: vdbe.RegisterRange{Start: r, Count: 1}, Affinities: code})
	}

	coll := self.p.CompareCollation(x.L, x.R)
	end := b.AllocLabel()

	if x.Op == sql.TkIs || x.Op == sql.TkIsNot {
		b.Emit(&vdbe.Integer{Value: 1, Dest: dest})
		b.Emit(&vdbe.Cmp{
			Op:        compareOp[x.Op],
			Lhs:       l,
			Rhs:       r,
			Target:    end,
			Flags:     vdbe.CmpNullEq,
			Collation: coll,
		})
		b.Emit(&vdbe.Integer{Value: 0, Dest: dest})
		return b.BindHere(end)
	}

	b.Emit(&vdbe.Null{Dest: dest})
	b.Emit(&vdbe.IsNull{Reg: l, Target: end})
	b.Emit(&vdbe.IsNull{Reg: r, Target: end})
	b.Emit(&vdbe.Integer{Value: 1, Dest: dest})
	b.Emit(&vdbe.Cmp{Op: compareOp[x.Op], Lhs: l, Rhs: r, Target: end, Collation: coll})
	b.Emit(&vdbe.Integer{Value: 0, Dest: dest})
	return b.BindHere(end)
}

// x LIKE y is the function like(y, x)
func (self *exprGen) genLike(x *sql.Binary, dest vdbe.Register) error {
	b := self.g.b
	args := b.AllocRegisters(2)
	if err := self.genTo(x.R, args.At(0)); err != nil {
		return err
	}
	if err := self.genTo(x.L, args.At(1)); err != nil {
		return err
	}
	b.Emit(&vdbe.Function{Args: args, Dest: dest, Func: "like"})
	if x.Op == sql.TkNotLike {
		b.Emit(&vdbe.Not{Reg: dest, Dest: dest})
	}
	return nil
}

func (self *exprGen) genCase(x *sql.Case, dest vdbe.Register) error {
	b := self.g.b
	end := b.AllocLabel()

	var operand vdbe.Register
	if x.Operand != nil {
		r, err := self.gen(x.Operand)
		if err != nil {
			return err
		}
		operand = r
	}

	for _, w := range x.When {
		next := b.AllocLabel()
		cond, err := self.gen(w.Cond)
		if err != nil {
			return err
		}
		if x.Operand != nil {
			b.Emit(&vdbe.Cmp{
				Op:        vdbe.OpNe,
				Lhs:       operand,
				Rhs:       cond,
				Target:    next,
				Flags:     vdbe.CmpJumpIfNull,
				Collation: self.p.CompareCollation(x.Operand, w.Cond),
			})
		} else {
			b.Emit(&vdbe.IfNot{Reg: cond, Target: next, JumpIfNull: true})
		}
		if err := self.genTo(w.Then, dest); err != nil {
			return err
		}
		b.Emit(&vdbe.Goto{Target: end})
		if err := b.BindHere(next); err != nil {
			return err
		}
	}

	if x.Else != nil {
		if err := self.genTo(x.Else, dest); err != nil {
			return err
		}
	} else {
		b.Emit(&vdbe.Null{Dest: dest})
	}
	return b.BindHere(end)
}

// genSubquery evaluates a scalar subquery once per statement, the first row
// is kept and a subquery without rows yields NULL
func (self *exprGen) genSubquery(x *sql.Subquery, dest vdbe.Register) error {
	b := self.g.b
	p, err := self.g.subqueryPlan(x)
	if err != nil {
		return err
	}

	res := b.AllocRegister()
	err = b.Once(func() error {
		b.Emit(&vdbe.Null{Dest: res})
		done := b.AllocLabel()
		if err := self.g.genSelect(p, func(row vdbe.RegisterRange) error {
			b.Emit(&vdbe.Copy{Src: row.At(0), Dest: res})
			b.Emit(&vdbe.Goto{Target: done})
			return nil
		}); err != nil {
			return err
		}
		return b.BindHere(done)
	})
	if err != nil {
		return err
	}
	b.Emit(&vdbe.SCopy{Src: res, Dest: dest})
	return nil
}

// genFilter jumps to skip unless the condition is true
func (self *exprGen) genFilter(cond sql.Expr, skip vdbe.Label) error {
	if cond == nil {
		return nil
	}
	r, err := self.gen(cond)
	if err != nil {
		return err
	}
	self.g.b.Emit(&vdbe.IfNot{Reg: r, Target: skip, JumpIfNull: true})
	return nil
}
