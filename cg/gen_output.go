package cg

import (
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// ----------------------------------------------------------------------------
// Output phase. DISTINCT, OFFSET and LIMIT are applied right before a row
// is handed to the sink, in that order. LIMIT jumps out of the whole select
// once it is used up.
// ----------------------------------------------------------------------------

type outputCodeGen struct {
	sg *selectGen

	limit    vdbe.Register // 0 when there is no LIMIT
	offset   vdbe.Register // 0 when there is no OFFSET
	distinct vdbe.Cursor
	hasDist  bool
}

func (self *outputCodeGen) genInit() error {
	b := self.sg.g.b
	out := self.sg.p.Output

	if out.Limit != nil {
		self.limit = b.AllocRegister()
		if err := self.sg.expr.genTo(out.Limit, self.limit); err != nil {
			return err
		}
		b.Emit(&vdbe.Cast{Reg: self.limit, Affinity: vdbe.AffinityInteger})
		b.Emit(&vdbe.IfNot{Reg: self.limit, Target: self.sg.end})
	}
	if out.Offset != nil {
		self.offset = b.AllocRegister()
		if err := self.sg.expr.genTo(out.Offset, self.offset); err != nil {
			return err
		}
		b.Emit(&vdbe.Cast{Reg: self.offset, Affinity: vdbe.AffinityInteger})
	}

	if out.Distinct {
		exprs := make([]sql.Expr, 0, len(out.VarList))
		for _, v := range out.VarList {
			exprs = append(exprs, v.Value)
		}
		self.distinct = self.sg.distinctCursor(exprs)
		self.hasDist = true
		b.Emit(&vdbe.OpenEphemeral{Cursor: self.distinct, NumColumns: len(exprs)})
	}
	return nil
}

func (self *outputCodeGen) genNext(src columnSource) error {
	b := self.sg.g.b
	e := self.sg.expr.with(src)

	row := b.AllocRegisters(len(self.sg.p.Output.VarList))
	for i, v := range self.sg.p.Output.VarList {
		if err := e.genTo(v.Value, row.At(i)); err != nil {
			return err
		}
	}
	return self.emitRow(row)
}

func (self *outputCodeGen) emitRow(row vdbe.RegisterRange) error {
	b := self.sg.g.b
	skip := b.AllocLabel()

	if self.hasDist {
		if err := self.sg.g.genDistinctCheck(self.distinct, row, skip); err != nil {
			return err
		}
	}
	if self.offset != 0 {
		b.Emit(&vdbe.IfPos{Reg: self.offset, Target: skip, Decrement: 1})
	}
	if err := self.sg.sink(row); err != nil {
		return err
	}
	if self.limit != 0 {
		b.Emit(&vdbe.DecrJumpZero{Reg: self.limit, Target: self.sg.end})
	}
	return b.BindHere(skip)
}

func (self *outputCodeGen) genFlush() error { return nil }
