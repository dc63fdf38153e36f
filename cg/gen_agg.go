package cg

import (
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// ----------------------------------------------------------------------------
// Aggregation phase. One accumulator register per aggregate call, stepped
// with the call's arguments for every row and finalized once the group is
// complete. Every column the select reads is also copied into a bare
// register so the later phases can evaluate non aggregated expressions
// after the scan has moved on.
// ----------------------------------------------------------------------------

type aggCodeGen struct {
	sg   *selectGen
	next subGen

	accum    vdbe.RegisterRange
	distinct map[int]vdbe.Cursor // aggregate slot -> ephemeral index
	cols     []colKey
	bare     registerSource
}

func (self *aggCodeGen) vars() int {
	if self.sg.p.Agg == nil {
		return 0
	}
	return len(self.sg.p.Agg.VarList)
}

func (self *aggCodeGen) genInit() error {
	b := self.sg.g.b
	n := self.vars()

	self.accum = b.AllocRegisters(n)
	self.sg.expr.agg = self.accum.Slice()

	self.distinct = make(map[int]vdbe.Cursor)
	for i := 0; i < n; i++ {
		v := &self.sg.p.Agg.VarList[i]
		if v.Distinct && len(v.Args) > 0 {
			self.distinct[i] = self.sg.distinctCursor(v.Args)
		}
	}

	self.cols = referencedColumns(self.sg.p)
	self.bare = make(registerSource, len(self.cols))
	for _, c := range self.cols {
		self.bare[c] = b.AllocRegister()
	}
	return self.genReset()
}

// genReset starts a new group
func (self *aggCodeGen) genReset() error {
	b := self.sg.g.b
	if !self.accum.Empty() {
		b.Emit(&vdbe.Null{Dest: self.accum.Start, End: self.accum.Last()})
	}
	for i := 0; i < self.vars(); i++ {
		if cur, ok := self.distinct[i]; ok {
			b.Emit(&vdbe.OpenEphemeral{
				Cursor:     cur,
				NumColumns: len(self.sg.p.Agg.VarList[i].Args),
			})
		}
	}
	return nil
}

func (self *aggCodeGen) genNext(src columnSource) error {
	if err := self.genStep(src); err != nil {
		return err
	}
	return self.genCapture(src)
}

func (self *aggCodeGen) genStep(src columnSource) error {
	b := self.sg.g.b
	e := self.sg.expr.with(src)

	for i := 0; i < self.vars(); i++ {
		v := &self.sg.p.Agg.VarList[i]
		skip := b.AllocLabel()

		args := b.AllocRegisters(len(v.Args))
		for j, a := range v.Args {
			if err := e.genTo(a, args.At(j)); err != nil {
				return err
			}
		}
		if cur, ok := self.distinct[i]; ok {
			if err := self.sg.g.genDistinctCheck(cur, args, skip); err != nil {
				return err
			}
		}
		b.Emit(&vdbe.AggStep{Args: args, Accum: self.accum.At(i), Func: v.AggName()})
		if err := b.BindHere(skip); err != nil {
			return err
		}
	}
	return nil
}

func (self *aggCodeGen) genCapture(src columnSource) error {
	b := self.sg.g.b
	for _, c := range self.cols {
		if err := src.loadColumn(b, c.tidx, c.cidx, self.bare[c]); err != nil {
			return err
		}
	}
	return nil
}

func (self *aggCodeGen) genFinal() {
	for i := 0; i < self.vars(); i++ {
		self.sg.g.b.Emit(&vdbe.AggFinal{
			Accum: self.accum.At(i),
			Func:  self.sg.p.Agg.VarList[i].AggName(),
		})
	}
}

// without GROUP BY the whole input is one group, it produces exactly one
// row even when the input is empty
func (self *aggCodeGen) genFlush() error {
	self.genFinal()
	if err := self.next.genNext(self.bare); err != nil {
		return err
	}
	return self.next.genFlush()
}
