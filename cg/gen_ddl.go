package cg

import (
	"fmt"

	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// ----------------------------------------------------------------------------
// CREATE TABLE / CREATE INDEX. Both allocate their b-trees at run time,
// record themselves in sqlite_schema, reparse the new rows into the live
// catalog and bump the schema cookie.
// ----------------------------------------------------------------------------

func tableEntryFilter(name string) string {
	return fmt.Sprintf("tbl_name=%s AND type!='trigger'", sql.QuoteStr(name))
}

func (self *generator) checkNewName(name string) error {
	if schema.IsReserved(name) && !self.nested() {
		return errorf(ErrNotAlterable, "object name reserved for internal use: %s", name)
	}
	return nil
}

func (self *generator) genCreateTable(x *sql.CreateTable) error {
	b := self.b
	if _, ok := self.schema.Table(x.Name); ok {
		if x.IfNotExists {
			return nil
		}
		return errorf(ErrNameCollision, "table %s already exists", x.Name)
	}
	if _, ok := self.schema.Index(x.Name); ok {
		return errorf(ErrNameCollision, "there is already an index named %s", x.Name)
	}
	if err := self.checkNewName(x.Name); err != nil {
		return err
	}

	stored := *x
	stored.IfNotExists = false
	text := sql.PrintStmt(&stored)

	t, err := schema.FromCreateTable(x, 0, text)
	if err != nil {
		return err
	}

	self.write = true
	sc, err := self.openSchemaTable()
	if err != nil {
		return err
	}

	root := b.AllocRegister()
	if t.Virtual {
		b.Emit(&vdbe.Integer{Value: 0, Dest: root})
	} else {
		b.Emit(&vdbe.CreateBtree{Dest: root})
	}
	self.genSchemaEntry(sc, "table", t.Name, t.Name, root, text)

	for i := range t.AutoIndexColumns() {
		r := b.AllocRegister()
		b.Emit(&vdbe.CreateBtree{Dest: r, IsIndex: true})
		self.genSchemaEntry(sc, "index", schema.AutoIndexName(t.Name, i+1), t.Name, r, "")
	}

	self.genSchemaReload(tableEntryFilter(t.Name))
	return nil
}

func (self *generator) genCreateIndex(x *sql.CreateIndex) error {
	b := self.b
	t, ok := self.schema.Table(x.Table)
	if !ok {
		return errorf(ErrNoSuchTable, "no such table: %s", x.Table)
	}
	if _, ok := self.schema.Index(x.Name); ok {
		if x.IfNotExists {
			return nil
		}
		return errorf(ErrNameCollision, "index %s already exists", x.Name)
	}
	if _, ok := self.schema.Table(x.Name); ok {
		return errorf(ErrNameCollision, "there is already a table named %s", x.Name)
	}
	if schema.IsReserved(t.Name) && !self.nested() {
		return errorf(ErrNotAlterable, "table %s may not be indexed", t.Name)
	}
	if err := self.checkNewName(x.Name); err != nil {
		return err
	}
	if t.Virtual {
		return errorf(ErrUnsupported, "virtual tables may not be indexed")
	}
	if t.WithoutRowid {
		return errorf(ErrWithoutRowid, "CREATE INDEX on WITHOUT ROWID table %s is not supported", t.Name)
	}

	stored := *x
	stored.IfNotExists = false
	text := sql.PrintStmt(&stored)

	idx, err := schema.NewIndex(t, x.Name, x.Columns, x.Unique, 0, text)
	if err != nil {
		return err
	}

	self.write = true
	b.ChangeCountOn = true
	sc, err := self.openSchemaTable()
	if err != nil {
		return err
	}

	root := b.AllocRegister()
	b.Emit(&vdbe.CreateBtree{Dest: root, IsIndex: true})
	self.genSchemaEntry(sc, "index", idx.Name, t.Name, root, text)

	// fill the new index from the existing rows
	tc := self.openTable(t, false)
	ic := self.indexCursor(idx)
	b.Emit(&vdbe.OpenWrite{Cursor: ic, RootReg: root})

	rowid := b.AllocRegister()
	if _, err := b.ForEach(tc, func(vdbe.LoopLabels) error {
		b.Emit(&vdbe.RowId{Cursor: tc, Dest: rowid})
		key, err := self.genIndexKey(t, idx, self.cursorColumns(tc), rowid)
		if err != nil {
			return err
		}
		if idx.Unique {
			if err := self.genUniqueCheck(t, idx, ic, key, 0); err != nil {
				return err
			}
		}
		entry := b.AllocRegister()
		b.Emit(&vdbe.MakeRecord{Regs: key, Dest: entry})
		b.Emit(&vdbe.IdxInsert{Cursor: ic, Record: entry})
		return nil
	}); err != nil {
		return err
	}

	self.genSchemaReload(fmt.Sprintf("name=%s AND type='index'", sql.QuoteStr(idx.Name)))
	return nil
}
