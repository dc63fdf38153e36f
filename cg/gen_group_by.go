package cg

import (
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// ----------------------------------------------------------------------------
// Group by phase. Rows are buffered into a sorter as
//
//	[group keys ..., referenced columns ...]
//
// and walked back in key order. A key change closes the running group: a
// subroutine finalizes the accumulators and hands the group to HAVING.
// The last group is closed after the loop.
// ----------------------------------------------------------------------------

type groupByCodeGen struct {
	sg  *selectGen
	agg *aggCodeGen

	sorter   vdbe.Cursor
	pseudo   vdbe.Cursor
	data     vdbe.Register
	keys     []vdbe.KeyInfo
	src      *recordSource
	hasGroup vdbe.Register
}

func (self *groupByCodeGen) nkey() int { return len(self.sg.p.GroupBy.VarList) }

func (self *groupByCodeGen) width() int { return self.nkey() + len(self.agg.cols) }

func (self *groupByCodeGen) genInit() error {
	b := self.sg.g.b
	p := self.sg.p

	for _, v := range p.GroupBy.VarList {
		self.keys = append(self.keys, vdbe.KeyInfo{Collation: p.Collation(v)})
	}

	self.sorter = b.AllocCursor(vdbe.CursorInfo{
		Kind:       vdbe.CursorSorter,
		NumColumns: self.width(),
		Keys:       self.keys,
	})
	b.Emit(&vdbe.SorterOpen{Cursor: self.sorter, Keys: self.keys, NumColumns: self.width()})

	self.pseudo = b.AllocCursor(vdbe.CursorInfo{
		Kind:       vdbe.CursorPseudo,
		NumColumns: self.width(),
	})
	self.data = b.AllocRegister()

	self.src = &recordSource{cursor: self.pseudo, offset: make(map[colKey]int)}
	for i, c := range self.agg.cols {
		self.src.offset[c] = self.nkey() + i
	}

	self.hasGroup = b.AllocRegister()
	b.Emit(&vdbe.Integer{Value: 0, Dest: self.hasGroup})
	return nil
}

func (self *groupByCodeGen) genNext(src columnSource) error {
	b := self.sg.g.b
	e := self.sg.expr.with(src)

	regs := b.AllocRegisters(self.width())
	for i, v := range self.sg.p.GroupBy.VarList {
		if err := e.genTo(v, regs.At(i)); err != nil {
			return err
		}
	}
	for i, c := range self.agg.cols {
		if err := src.loadColumn(b, c.tidx, c.cidx, regs.At(self.nkey()+i)); err != nil {
			return err
		}
	}

	rec := b.AllocRegister()
	b.Emit(&vdbe.MakeRecord{Regs: regs, Dest: rec})
	b.Emit(&vdbe.SorterInsert{Cursor: self.sorter, Record: rec})
	return nil
}

func (self *groupByCodeGen) genFlush() error {
	b := self.sg.g.b
	n := self.nkey()

	entry, ret, err := b.Subroutine(func(vdbe.Register) error {
		self.agg.genFinal()
		return self.agg.next.genNext(self.agg.bare)
	})
	if err != nil {
		return err
	}

	b.Emit(&vdbe.OpenPseudo{Cursor: self.pseudo, Content: self.data, NumColumns: self.width()})
	cur := b.AllocRegisters(n)
	prev := b.AllocRegisters(n)

	_, err = b.SorterLoop(self.sorter, func(loop vdbe.LoopLabels) error {
		b.Emit(&vdbe.SorterData{Cursor: self.sorter, Dest: self.data, Pseudo: self.pseudo})
		for i := 0; i < n; i++ {
			b.Emit(&vdbe.Column{Cursor: self.pseudo, Column: i, Dest: cur.At(i)})
		}

		newGroup := b.AllocLabel()
		first := b.AllocLabel()
		same := b.AllocLabel()

		b.Emit(&vdbe.IfNot{Reg: self.hasGroup, Target: first, JumpIfNull: true})
		b.Emit(&vdbe.Compare{Lhs: cur, Rhs: prev, Keys: self.keys})
		b.Emit(&vdbe.Jump{Lt: newGroup, Eq: same, Gt: newGroup})

		if err := b.BindHere(newGroup); err != nil {
			return err
		}
		b.CallSubroutine(entry, ret)

		if err := b.BindHere(first); err != nil {
			return err
		}
		b.Emit(&vdbe.Copy{Src: cur.Start, Dest: prev.Start, Extra: n - 1})
		b.Emit(&vdbe.Integer{Value: 1, Dest: self.hasGroup})
		if err := self.agg.genReset(); err != nil {
			return err
		}

		if err := b.BindHere(same); err != nil {
			return err
		}
		if err := self.agg.genStep(self.src); err != nil {
			return err
		}
		return self.agg.genCapture(self.src)
	})
	if err != nil {
		return err
	}

	if err := b.WhenTrue(self.hasGroup, func() error {
		b.CallSubroutine(entry, ret)
		return nil
	}); err != nil {
		return err
	}
	return self.agg.next.genFlush()
}
