package cg

import (
	"github.com/dianpeng/sqlvdbe/plan"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// DELETE walks the table once. A deleted cursor still remembers its key, so
// Next continues with the following row.
func (self *generator) genDelete(x *sql.Delete) error {
	b := self.b
	t, err := self.writableTable(x.Table)
	if err != nil {
		return err
	}

	var where sql.Expr
	exprs := []sql.Expr{}
	if x.Where != nil {
		where = x.Where.Condition
		exprs = append(exprs, where)
	}
	p, err := plan.PlanTable(self.schema, t.Name, exprs...)
	if err != nil {
		return err
	}

	self.write = true
	b.ChangeCountOn = true
	cur := self.openTable(t, true)
	idxCur := self.indexCursors(t)
	e := self.newExprGen(p, tableSource{cur})

	rowid := b.AllocRegister()
	_, err = b.ForEach(cur, func(loop vdbe.LoopLabels) error {
		if err := e.genFilter(where, loop.Next); err != nil {
			return err
		}
		b.Emit(&vdbe.RowId{Cursor: cur, Dest: rowid})
		for i, idx := range t.Indexes {
			key, err := self.genIndexKey(t, idx, self.cursorColumns(cur), rowid)
			if err != nil {
				return err
			}
			b.Emit(&vdbe.IdxDelete{Cursor: idxCur[i], Key: key})
		}
		b.Emit(&vdbe.Delete{Cursor: cur, Table: t.Name})
		return nil
	})
	return err
}
