package cg

import (
	"fmt"
	"strings"

	"github.com/dianpeng/sqlvdbe/plan"
	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// ----------------------------------------------------------------------------
// INSERT. Every row goes through the same sequence:
//
//	values -> affinity -> rowid -> NOT NULL -> UNIQUE -> Insert -> IdxInsert
//
// The rows of INSERT ... SELECT come out of a coroutine. When the SELECT
// reads the target table the rows are materialized first, so the statement
// never sees its own inserts.
// ----------------------------------------------------------------------------

type insertCodeGen struct {
	g      *generator
	t      *schema.Table
	cur    vdbe.Cursor
	idxCur []vdbe.Cursor

	// table column -> position in the supplied values, -1 when missing
	source []int
	width  int
}

func (self *generator) genInsert(x *sql.Insert) error {
	t, err := self.writableTable(x.Table)
	if err != nil {
		return err
	}

	ins := &insertCodeGen{g: self, t: t}
	if err := ins.mapColumns(x.Columns); err != nil {
		return err
	}
	for _, row := range x.Values {
		if err := ins.checkWidth(x, len(row)); err != nil {
			return err
		}
	}

	self.write = true
	self.b.ChangeCountOn = true
	ins.cur = self.openTable(t, true)
	ins.idxCur = self.indexCursors(t)

	if x.Select != nil {
		return ins.genFromSelect(x)
	}

	for _, row := range x.Values {
		p, err := plan.PlanExpr(self.schema, row...)
		if err != nil {
			return err
		}
		e := self.newExprGen(p, nil)
		if err := ins.genRow(func(i int, dest vdbe.Register) error {
			return e.genTo(row[i], dest)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (self *insertCodeGen) mapColumns(cols []string) error {
	t := self.t
	self.source = make([]int, len(t.Columns))
	if len(cols) == 0 {
		for i := range self.source {
			self.source[i] = i
		}
		self.width = len(t.Columns)
		return nil
	}

	for i := range self.source {
		self.source[i] = -1
	}
	for i, name := range cols {
		pos := t.ColumnIndex(name)
		if pos < 0 {
			return fmt.Errorf("table %s has no column named %s", t.Name, name)
		}
		self.source[pos] = i
	}
	self.width = len(cols)
	return nil
}

func (self *insertCodeGen) checkWidth(x *sql.Insert, n int) error {
	if n == self.width {
		return nil
	}
	if len(x.Columns) == 0 {
		return fmt.Errorf("table %s has %d columns but %d values were supplied",
			self.t.Name, self.width, n)
	}
	return fmt.Errorf("%d values for %d columns", n, self.width)
}

// genRow inserts one row, value moves the i-th supplied value into dest
func (self *insertCodeGen) genRow(value func(i int, dest vdbe.Register) error) error {
	g := self.g
	b := g.b
	t := self.t

	rec := b.AllocRegisters(len(t.Columns))
	for pos, col := range t.Columns {
		if i := self.source[pos]; i >= 0 {
			if err := value(i, rec.At(pos)); err != nil {
				return err
			}
		} else if err := g.genDefault(col, rec.At(pos)); err != nil {
			return err
		}
	}
	g.genTableAffinity(t, rec)

	rowid := b.AllocRegister()
	if t.RowidAlias >= 0 {
		ipk := rec.At(t.RowidAlias)
		auto := b.AllocLabel()
		done := b.AllocLabel()
		b.Emit(&vdbe.IsNull{Reg: ipk, Target: auto})
		b.Emit(&vdbe.SCopy{Src: ipk, Dest: rowid})
		if err := g.genRowidCheck(t, self.cur, rowid); err != nil {
			return err
		}
		b.Emit(&vdbe.Goto{Target: done})
		if err := b.BindHere(auto); err != nil {
			return err
		}
		b.Emit(&vdbe.NewRowId{Cursor: self.cur, Dest: rowid})
		if err := b.BindHere(done); err != nil {
			return err
		}
	} else {
		b.Emit(&vdbe.NewRowId{Cursor: self.cur, Dest: rowid})
	}

	g.genNotNullCheck(t, rec)

	keys := make([]vdbe.RegisterRange, 0, len(t.Indexes))
	for i, idx := range t.Indexes {
		key, err := g.genIndexKey(t, idx, g.registerColumns(rec), rowid)
		if err != nil {
			return err
		}
		if idx.Unique {
			if err := g.genUniqueCheck(t, idx, self.idxCur[i], key, 0); err != nil {
				return err
			}
		}
		keys = append(keys, key)
	}

	// the rowid alias is stored as NULL, reads go through the rowid
	if t.RowidAlias >= 0 {
		b.Emit(&vdbe.Null{Dest: rec.At(t.RowidAlias)})
	}
	data := b.AllocRegister()
	b.Emit(&vdbe.MakeRecord{Regs: rec, Dest: data})
	b.Emit(&vdbe.Insert{Cursor: self.cur, Key: rowid, Record: data, Table: t.Name})

	for i, key := range keys {
		entry := b.AllocRegister()
		b.Emit(&vdbe.MakeRecord{Regs: key, Dest: entry})
		b.Emit(&vdbe.IdxInsert{Cursor: self.idxCur[i], Record: entry})
	}
	return nil
}

// genDefault evaluates the column's DEFAULT clause, NULL without one
func (self *generator) genDefault(col *schema.Column, dest vdbe.Register) error {
	if col.Default == nil {
		self.b.Emit(&vdbe.Null{Dest: dest})
		return nil
	}
	p, err := plan.PlanExpr(self.schema, col.Default)
	if err != nil {
		return err
	}
	return self.newExprGen(p, nil).genTo(col.Default, dest)
}

func (self *insertCodeGen) genFromSelect(x *sql.Insert) error {
	g := self.g
	b := g.b

	p, err := plan.PlanSelect(g.schema, x.Select)
	if err != nil {
		return err
	}
	if err := self.checkWidth(x, len(p.Output.VarList)); err != nil {
		return err
	}

	shared := b.AllocRegisters(self.width)
	yield, _, err := b.Coroutine(func(yield vdbe.Register) error {
		return g.genSelect(p, func(row vdbe.RegisterRange) error {
			b.Emit(&vdbe.Copy{Src: row.Start, Dest: shared.Start, Extra: self.width - 1})
			b.Emit(&vdbe.Yield{Yield: yield})
			return nil
		})
	})
	if err != nil {
		return err
	}

	insert := func() error {
		return self.genRow(func(i int, dest vdbe.Register) error {
			b.Emit(&vdbe.SCopy{Src: shared.At(i), Dest: dest})
			return nil
		})
	}

	if !readsTable(p, self.t) {
		_, err := b.YieldLoop(yield, func(vdbe.LoopLabels) error { return insert() })
		return err
	}

	tmp := b.AllocCursor(vdbe.CursorInfo{Kind: vdbe.CursorEphemeral, NumColumns: self.width})
	b.Emit(&vdbe.OpenEphemeral{Cursor: tmp, NumColumns: self.width, IsTable: true})
	if _, err := b.YieldLoop(yield, func(vdbe.LoopLabels) error {
		rec := b.AllocRegister()
		key := b.AllocRegister()
		b.Emit(&vdbe.MakeRecord{Regs: shared, Dest: rec})
		b.Emit(&vdbe.NewRowId{Cursor: tmp, Dest: key})
		b.Emit(&vdbe.Insert{Cursor: tmp, Key: key, Record: rec})
		return nil
	}); err != nil {
		return err
	}
	_, err = b.ForEach(tmp, func(vdbe.LoopLabels) error {
		for i := 0; i < self.width; i++ {
			b.Emit(&vdbe.Column{Cursor: tmp, Column: i, Dest: shared.At(i)})
		}
		return insert()
	})
	return err
}

func readsTable(p *plan.Plan, t *schema.Table) bool {
	for _, td := range p.Tables() {
		if td.Table == t || strings.EqualFold(td.Name, t.Name) {
			return true
		}
	}
	return false
}
