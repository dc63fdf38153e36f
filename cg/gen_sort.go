package cg

import (
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// ----------------------------------------------------------------------------
// Sorting phase. Each row is evaluated up front and buffered into a sorter
// as
//
//	[sort keys ..., output columns ...]
//
// once the input is exhausted the sorter is walked in order and the output
// columns are read back through a pseudo cursor.
// ----------------------------------------------------------------------------

type sortCodeGen struct {
	sg   *selectGen
	next *outputCodeGen

	sorter vdbe.Cursor
	pseudo vdbe.Cursor
	data   vdbe.Register
}

func (self *sortCodeGen) nkey() int { return len(self.sg.p.Sort.VarList) }

func (self *sortCodeGen) width() int {
	return self.nkey() + len(self.sg.p.Output.VarList)
}

func (self *sortCodeGen) genInit() error {
	b := self.sg.g.b
	keys := make([]vdbe.KeyInfo, 0, self.nkey())
	for _, v := range self.sg.p.Sort.VarList {
		keys = append(keys, vdbe.KeyInfo{Desc: v.Desc, Collation: v.Collation})
	}

	self.sorter = b.AllocCursor(vdbe.CursorInfo{
		Kind:       vdbe.CursorSorter,
		NumColumns: self.width(),
		Keys:       keys,
	})
	b.Emit(&vdbe.SorterOpen{Cursor: self.sorter, Keys: keys, NumColumns: self.width()})

	self.pseudo = b.AllocCursor(vdbe.CursorInfo{
		Kind:       vdbe.CursorPseudo,
		NumColumns: self.width(),
	})
	self.data = b.AllocRegister()
	return nil
}

func (self *sortCodeGen) genNext(src columnSource) error {
	b := self.sg.g.b
	e := self.sg.expr.with(src)

	regs := b.AllocRegisters(self.width())
	for i, v := range self.sg.p.Sort.VarList {
		if err := e.genTo(v.Value, regs.At(i)); err != nil {
			return err
		}
	}
	for i, v := range self.sg.p.Output.VarList {
		if err := e.genTo(v.Value, regs.At(self.nkey()+i)); err != nil {
			return err
		}
	}

	rec := b.AllocRegister()
	b.Emit(&vdbe.MakeRecord{Regs: regs, Dest: rec})
	b.Emit(&vdbe.SorterInsert{Cursor: self.sorter, Record: rec})
	return nil
}

func (self *sortCodeGen) genFlush() error {
	b := self.sg.g.b
	nout := len(self.sg.p.Output.VarList)

	b.Emit(&vdbe.OpenPseudo{Cursor: self.pseudo, Content: self.data, NumColumns: self.width()})
	row := b.AllocRegisters(nout)

	_, err := b.SorterLoop(self.sorter, func(loop vdbe.LoopLabels) error {
		b.Emit(&vdbe.SorterData{Cursor: self.sorter, Dest: self.data, Pseudo: self.pseudo})
		for i := 0; i < nout; i++ {
			b.Emit(&vdbe.Column{Cursor: self.pseudo, Column: self.nkey() + i, Dest: row.At(i)})
		}
		return self.next.emitRow(row)
	})
	if err != nil {
		return err
	}
	return self.next.genFlush()
}
