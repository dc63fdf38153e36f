package schema

import (
	"fmt"
	"strings"

	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// FromCreateTable builds the catalog entry of a CREATE TABLE statement
func FromCreateTable(stmt *sql.CreateTable, root int, text string) (*Table, error) {
	t := &Table{
		Name:         stmt.Name,
		RootPage:     root,
		RowidAlias:   -1,
		PrimaryKey:   stmt.PrimaryKey,
		Unique:       stmt.Unique,
		WithoutRowid: stmt.WithoutRowid,
		Virtual:      stmt.Virtual,
		Module:       stmt.Module,
		SQL:          text,
	}

	seen := map[string]bool{}
	pkCount := 0
	if len(stmt.PrimaryKey) > 0 {
		pkCount++
	}

	for i, def := range stmt.Columns {
		if seen[key(def.Name)] {
			return nil, fmt.Errorf("duplicate column name: %s", def.Name)
		}
		seen[key(def.Name)] = true

		coll := vdbe.CollBinary
		if def.Collate != "" {
			c, ok := vdbe.CollationByName(def.Collate)
			if !ok {
				return nil, fmt.Errorf("no such collation sequence: %s", def.Collate)
			}
			coll = c
		}

		col := &Column{
			Name:       def.Name,
			TypeName:   def.TypeName,
			Affinity:   vdbe.DetermineAffinity(def.TypeName),
			Collation:  coll,
			PrimaryKey: def.PrimaryKey,
			NotNull:    def.NotNull,
			Unique:     def.Unique,
			Default:    def.Default,
		}
		t.Columns = append(t.Columns, col)

		if def.PrimaryKey {
			pkCount++
			if strings.EqualFold(def.TypeName, "integer") && !def.Desc && !stmt.WithoutRowid {
				t.RowidAlias = i
			}
		}
	}

	if pkCount > 1 {
		return nil, fmt.Errorf("table %q has more than one primary key", stmt.Name)
	}

	for _, n := range stmt.PrimaryKey {
		pos := t.ColumnIndex(n)
		if pos < 0 {
			return nil, fmt.Errorf("no such column: %s", n)
		}
		t.Columns[pos].PrimaryKey = true
	}
	// a single column table level PRIMARY KEY on an INTEGER column is an alias too
	if len(stmt.PrimaryKey) == 1 && !stmt.WithoutRowid {
		pos := t.ColumnIndex(stmt.PrimaryKey[0])
		if strings.EqualFold(t.Columns[pos].TypeName, "integer") {
			t.RowidAlias = pos
		}
	}

	for _, u := range stmt.Unique {
		for _, n := range u {
			if t.ColumnIndex(n) < 0 {
				return nil, fmt.Errorf("no such column: %s", n)
			}
		}
	}

	if t.WithoutRowid && len(t.PrimaryKeyColumns()) == 0 {
		return nil, fmt.Errorf("PRIMARY KEY missing on table %s", stmt.Name)
	}

	return t, nil
}

// ColumnIndex returns the position of the column, -1 when missing
func (self *Table) ColumnIndex(name string) int {
	for i, c := range self.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

func (self *Table) ColumnNames() []string {
	out := make([]string, 0, len(self.Columns))
	for _, c := range self.Columns {
		out = append(out, c.Name)
	}
	return out
}

func (self *Table) HasRowid() bool { return !self.WithoutRowid && !self.Virtual }

func (self *Table) IsRowidAlias(col int) bool {
	return self.RowidAlias >= 0 && self.RowidAlias == col
}

func (self *Table) PrimaryKeyColumns() []string {
	if len(self.PrimaryKey) > 0 {
		return self.PrimaryKey
	}
	out := []string{}
	for _, c := range self.Columns {
		if c.PrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}

// AutoIndexColumns lists the column sets that need an implicit index, in
// the order the autoindexes are numbered: non alias primary key first, then
// column and table level UNIQUE constraints.
func (self *Table) AutoIndexColumns() [][]string {
	out := [][]string{}
	if self.Virtual {
		return out
	}
	if pk := self.PrimaryKeyColumns(); len(pk) > 0 && self.RowidAlias < 0 {
		out = append(out, pk)
	}
	for _, c := range self.Columns {
		if c.Unique {
			out = append(out, []string{c.Name})
		}
	}
	out = append(out, self.Unique...)
	return out
}

// Affinities is the affinity string of the table's record
func (self *Table) Affinities() string {
	b := strings.Builder{}
	for _, c := range self.Columns {
		b.WriteByte(c.Affinity.Code())
	}
	return b.String()
}

func (self *Table) Index(name string) *Index {
	for _, i := range self.Indexes {
		if strings.EqualFold(i.Name, name) {
			return i
		}
	}
	return nil
}

// NewIndex resolves the indexed columns against the table
func NewIndex(
	t *Table,
	name string,
	cols []*sql.IndexedColumn,
	unique bool,
	root int,
	text string,
) (*Index, error) {
	idx := &Index{
		Name:     name,
		Table:    t.Name,
		RootPage: root,
		Unique:   unique,
		SQL:      text,
	}

	for _, c := range cols {
		pos := t.ColumnIndex(c.Name)
		if pos < 0 {
			return nil, fmt.Errorf("no such column: %s", c.Name)
		}
		coll := t.Columns[pos].Collation
		if c.Collate != "" {
			cc, ok := vdbe.CollationByName(c.Collate)
			if !ok {
				return nil, fmt.Errorf("no such collation sequence: %s", c.Collate)
			}
			coll = cc
		}
		idx.Columns = append(idx.Columns, &IndexColumn{
			Name:      t.Columns[pos].Name,
			Pos:       pos,
			Collation: coll,
			Desc:      c.Desc,
		})
	}

	return idx, nil
}

// KeyInfo of the index record, the trailing rowid compares as binary
func (self *Index) KeyInfo() []vdbe.KeyInfo {
	out := make([]vdbe.KeyInfo, 0, len(self.Columns)+1)
	for _, c := range self.Columns {
		out = append(out, vdbe.KeyInfo{Desc: c.Desc, Collation: c.Collation})
	}
	return append(out, vdbe.KeyInfo{})
}

func (self *Index) ColumnNames() []string {
	out := make([]string, 0, len(self.Columns)+1)
	for _, c := range self.Columns {
		out = append(out, c.Name)
	}
	return append(out, "rowid")
}
