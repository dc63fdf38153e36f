package cg

import (
	"fmt"
	"strings"

	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// writableTable resolves the target of INSERT, UPDATE and DELETE. Internal
// tables can only be written by nested statements, sqlite_stat1 is open to
// everyone.
func (self *generator) writableTable(name string) (*schema.Table, error) {
	t, ok := self.schema.Table(name)
	if !ok {
		return nil, errorf(ErrNoSuchTable, "no such table: %s", name)
	}
	if t.Virtual {
		return nil, errorf(ErrUnsupported, "cannot modify %s because it is a virtual table", t.Name)
	}
	if schema.IsReserved(t.Name) && !self.nested() &&
		!strings.EqualFold(t.Name, schema.Stat1TableName) {
		return nil, errorf(ErrNotAlterable, "table %s may not be modified", t.Name)
	}
	if t.WithoutRowid {
		return nil, errorf(ErrWithoutRowid, "cannot modify WITHOUT ROWID table %s", t.Name)
	}
	return t, nil
}

// columnLoader moves the value of one table column into dest
type columnLoader func(pos int, dest vdbe.Register) error

func (self *generator) cursorColumns(cur vdbe.Cursor) columnLoader {
	return func(pos int, dest vdbe.Register) error {
		self.b.Emit(&vdbe.Column{Cursor: cur, Column: pos, Dest: dest})
		return nil
	}
}

func (self *generator) registerColumns(rec vdbe.RegisterRange) columnLoader {
	return func(pos int, dest vdbe.Register) error {
		self.b.Emit(&vdbe.SCopy{Src: rec.At(pos), Dest: dest})
		return nil
	}
}

// genIndexKey builds the index entry of a row, the indexed columns followed
// by the rowid. The INTEGER PRIMARY KEY column is the rowid itself.
func (self *generator) genIndexKey(
	t *schema.Table,
	idx *schema.Index,
	load columnLoader,
	rowid vdbe.Register,
) (vdbe.RegisterRange, error) {
	b := self.b
	key := b.AllocRegisters(len(idx.Columns) + 1)
	for i, c := range idx.Columns {
		if t.IsRowidAlias(c.Pos) {
			b.Emit(&vdbe.SCopy{Src: rowid, Dest: key.At(i)})
			continue
		}
		if err := load(c.Pos, key.At(i)); err != nil {
			return key, err
		}
	}
	b.Emit(&vdbe.SCopy{Src: rowid, Dest: key.Last()})
	return key, nil
}

func indexedNames(idx *schema.Index) []string {
	out := make([]string, 0, len(idx.Columns))
	for _, c := range idx.Columns {
		out = append(out, c.Name)
	}
	return out
}

func uniqueMessage(t *schema.Table, cols []string) string {
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, t.Name+"."+c)
	}
	return "UNIQUE constraint failed: " + strings.Join(names, ", ")
}

// genUniqueCheck halts when another row already holds the key. Keys with
// a NULL column never conflict. The entry whose rowid equals own belongs to
// the row being updated and is skipped, own is 0 for a brand new row.
func (self *generator) genUniqueCheck(
	t *schema.Table,
	idx *schema.Index,
	cur vdbe.Cursor,
	key vdbe.RegisterRange,
	own vdbe.Register,
) error {
	b := self.b
	ok := b.AllocLabel()
	prefix := key.Sub(0, len(idx.Columns))

	for i := 0; i < prefix.Count; i++ {
		b.Emit(&vdbe.IsNull{Reg: prefix.At(i), Target: ok})
	}
	b.Emit(&vdbe.Seek{Op: vdbe.OpSeekGE, Cursor: cur, Key: prefix, NotFound: ok})
	b.Emit(&vdbe.IdxCmp{Op: vdbe.OpIdxGT, Cursor: cur, Key: prefix, Target: ok})
	if own != 0 {
		r := b.AllocRegister()
		b.Emit(&vdbe.IdxRowId{Cursor: cur, Dest: r})
		b.Emit(&vdbe.Cmp{Op: vdbe.OpEq, Lhs: r, Rhs: own, Target: ok})
	}
	b.Emit(&vdbe.Halt{ErrCode: errConstraint, Message: uniqueMessage(t, indexedNames(idx))})
	return b.BindHere(ok)
}

// genRowidCheck halts when the rowid is taken already
func (self *generator) genRowidCheck(t *schema.Table, cur vdbe.Cursor, rowid vdbe.Register) error {
	b := self.b
	ok := b.AllocLabel()
	b.Emit(&vdbe.SeekRowid{Cursor: cur, Rowid: rowid, NotFound: ok})
	b.Emit(&vdbe.Halt{
		ErrCode: errConstraint,
		Message: uniqueMessage(t, []string{t.Columns[t.RowidAlias].Name}),
	})
	return b.BindHere(ok)
}

func (self *generator) genNotNullCheck(t *schema.Table, rec vdbe.RegisterRange) {
	for i, c := range t.Columns {
		if !c.NotNull || t.IsRowidAlias(i) {
			continue
		}
		self.b.Emit(&vdbe.HaltIfNull{
			Reg:     rec.At(i),
			ErrCode: errConstraint,
			Message: fmt.Sprintf("NOT NULL constraint failed: %s.%s", t.Name, c.Name),
		})
	}
}

func (self *generator) genTableAffinity(t *schema.Table, rec vdbe.RegisterRange) {
	self.b.Emit(&vdbe.AffinityInsn{Regs: rec, Affinities: t.Affinities()})
}

// indexCursors opens every index of the table for writing
func (self *generator) indexCursors(t *schema.Table) []vdbe.Cursor {
	out := make([]vdbe.Cursor, 0, len(t.Indexes))
	for _, idx := range t.Indexes {
		out = append(out, self.openIndex(idx, true))
	}
	return out
}
