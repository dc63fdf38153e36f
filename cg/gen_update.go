package cg

import (
	"fmt"

	"github.com/dianpeng/sqlvdbe/plan"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// ----------------------------------------------------------------------------
// UPDATE runs in two passes. The first pass collects the rowids matching
// the WHERE clause into an ephemeral table, the second one rewrites every
// collected row. Rows moved by a rowid change are therefore never visited
// twice.
//
// Rewriting a row deletes its old index entries and the row itself, then
// inserts the new row and its new index entries.
// ----------------------------------------------------------------------------

func (self *generator) genUpdate(x *sql.Update) error {
	b := self.b
	t, err := self.writableTable(x.Table)
	if err != nil {
		return err
	}

	set := make(map[int]sql.Expr, len(x.Set))
	exprs := make([]sql.Expr, 0, len(x.Set)+1)
	for _, s := range x.Set {
		pos := t.ColumnIndex(s.Column)
		if pos < 0 {
			return fmt.Errorf("no such column: %s", s.Column)
		}
		set[pos] = s.Value
		exprs = append(exprs, s.Value)
	}
	var where sql.Expr
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

	rowids := b.AllocCursor(vdbe.CursorInfo{Kind: vdbe.CursorEphemeral})
	b.Emit(&vdbe.OpenEphemeral{Cursor: rowids, IsTable: true})
	empty := b.AllocRegister()
	b.Emit(&vdbe.MakeRecord{Regs: b.AllocRegisters(0), Dest: empty})

	// pass 1
	if _, err := b.ForEach(cur, func(loop vdbe.LoopLabels) error {
		if err := e.genFilter(where, loop.Next); err != nil {
			return err
		}
		r := b.AllocRegister()
		b.Emit(&vdbe.RowId{Cursor: cur, Dest: r})
		b.Emit(&vdbe.Insert{Cursor: rowids, Key: r, Record: empty})
		return nil
	}); err != nil {
		return err
	}

	// pass 2
	n := len(t.Columns)
	old := b.AllocRegister()
	rowid := b.AllocRegister()
	rec := b.AllocRegisters(n)

	_, err = b.ForEach(rowids, func(loop vdbe.LoopLabels) error {
		b.Emit(&vdbe.RowId{Cursor: rowids, Dest: old})
		b.Emit(&vdbe.SeekRowid{Cursor: cur, Rowid: old, NotFound: loop.Next})

		oldKeys := make([]vdbe.RegisterRange, 0, len(t.Indexes))
		for _, idx := range t.Indexes {
			key, err := self.genIndexKey(t, idx, self.cursorColumns(cur), old)
			if err != nil {
				return err
			}
			oldKeys = append(oldKeys, key)
		}

		for pos := 0; pos < n; pos++ {
			if v, ok := set[pos]; ok {
				if err := e.genTo(v, rec.At(pos)); err != nil {
					return err
				}
			} else if t.IsRowidAlias(pos) {
				b.Emit(&vdbe.SCopy{Src: old, Dest: rec.At(pos)})
			} else {
				b.Emit(&vdbe.Column{Cursor: cur, Column: pos, Dest: rec.At(pos)})
			}
		}
		self.genTableAffinity(t, rec)

		if _, ok := set[t.RowidAlias]; ok && t.RowidAlias >= 0 {
			b.Emit(&vdbe.SCopy{Src: rec.At(t.RowidAlias), Dest: rowid})
			same := b.AllocLabel()
			b.Emit(&vdbe.Cmp{Op: vdbe.OpEq, Lhs: rowid, Rhs: old, Target: same})
			if err := self.genRowidCheck(t, cur, rowid); err != nil {
				return err
			}
			// the check moved the cursor away from the row
			b.Emit(&vdbe.SeekRowid{Cursor: cur, Rowid: old, NotFound: loop.Next})
			if err := b.BindHere(same); err != nil {
				return err
			}
		} else {
			b.Emit(&vdbe.SCopy{Src: old, Dest: rowid})
		}

		self.genNotNullCheck(t, rec)

		newKeys := make([]vdbe.RegisterRange, 0, len(t.Indexes))
		for i, idx := range t.Indexes {
			key, err := self.genIndexKey(t, idx, self.registerColumns(rec), rowid)
			if err != nil {
				return err
			}
			if idx.Unique {
				if err := self.genUniqueCheck(t, idx, idxCur[i], key, old); err != nil {
					return err
				}
			}
			newKeys = append(newKeys, key)
		}

		for i, key := range oldKeys {
			b.Emit(&vdbe.IdxDelete{Cursor: idxCur[i], Key: key})
		}
		b.Emit(&vdbe.Delete{Cursor: cur})

		if t.RowidAlias >= 0 {
			b.Emit(&vdbe.Null{Dest: rec.At(t.RowidAlias)})
		}
		data := b.AllocRegister()
		b.Emit(&vdbe.MakeRecord{Regs: rec, Dest: data})
		b.Emit(&vdbe.Insert{Cursor: cur, Key: rowid, Record: data, Table: t.Name})

		for i, key := range newKeys {
			entry := b.AllocRegister()
			b.Emit(&vdbe.MakeRecord{Regs: key, Dest: entry})
			b.Emit(&vdbe.IdxInsert{Cursor: idxCur[i], Record: entry})
		}
		return nil
	})
	return err
}
