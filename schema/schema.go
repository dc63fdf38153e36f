// Package schema is the in-memory catalog of tables and indexes. It is
// rebuilt from the rows of sqlite_schema whenever a program runs ParseSchema.
package schema

import (
	"fmt"
	"strings"

	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

const (
	SchemaTableName = "sqlite_schema"
	SchemaRootPage  = 1
	Stat1TableName  = "sqlite_stat1"

	schemaTableSQL = "CREATE TABLE sqlite_schema (type text, name text, tbl_name text, rootpage integer, sql text)"
	Stat1TableSQL  = "CREATE TABLE sqlite_stat1 (tbl, idx, stat)"

	autoIndexPrefix = "sqlite_autoindex_"
)

// column positions of sqlite_schema
const (
	SchemaColType = iota
	SchemaColName
	SchemaColTblName
	SchemaColRootPage
	SchemaColSQL
	SchemaNumColumns
)

type Column struct {
	Name       string
	TypeName   string
	Affinity   vdbe.Affinity
	Collation  vdbe.Collation
	PrimaryKey bool
	NotNull    bool
	Unique     bool
	Default    sql.Expr
}

type Table struct {
	Name         string
	RootPage     int
	Columns      []*Column
	RowidAlias   int // index of the INTEGER PRIMARY KEY column, -1 if none
	PrimaryKey   []string
	Unique       [][]string
	WithoutRowid bool
	Virtual      bool
	Eponymous    bool // table valued function, exists without CREATE
	Module       string
	SQL          string
	Indexes      []*Index
}

type IndexColumn struct {
	Name      string
	Pos       int // position in the table
	Collation vdbe.Collation
	Desc      bool
}

type Index struct {
	Name     string
	Table    string
	RootPage int
	Columns  []*IndexColumn
	Unique   bool
	Auto     bool
	SQL      string
}

// Row is one entry of sqlite_schema
type Row struct {
	Type     string
	Name     string
	TblName  string
	RootPage int
	SQL      string
}

type Schema struct {
	Version int

	tables  map[string]*Table
	indexes map[string]*Index
	order   []string // table creation order, lower case
}

func key(n string) string { return strings.ToLower(n) }

// IsReserved reports whether the name lives in the sqlite_ namespace
func IsReserved(name string) bool {
	return strings.HasPrefix(key(name), "sqlite_")
}

// AutoIndexName is the name of the n-th (1 based) implicit index of a table
func AutoIndexName(tbl string, n int) string {
	return fmt.Sprintf("%s%s_%d", autoIndexPrefix, tbl, n)
}

func New() *Schema {
	s := &Schema{
		tables:  map[string]*Table{},
		indexes: map[string]*Index{},
	}
	s.addBuiltin()
	return s
}

func (self *Schema) addBuiltin() {
	c, err := sql.Parse(schemaTableSQL)
	if err != nil {
		panic(err)
	}
	t, err := FromCreateTable(c.Stmt.(*sql.CreateTable), SchemaRootPage, schemaTableSQL)
	if err != nil {
		panic(err)
	}
	self.putTable(t)

	// eponymous table valued functions
	for _, m := range []string{"json_each", "json_tree"} {
		self.putTable(&Table{
			Name:       m,
			RowidAlias: -1,
			Virtual:    true,
			Eponymous:  true,
			Module:     m,
			Columns: []*Column{
				{Name: "key"}, {Name: "value"}, {Name: "type"},
				{Name: "atom"}, {Name: "id"}, {Name: "parent"},
				{Name: "fullkey"}, {Name: "path"},
			},
		})
	}
}

func (self *Schema) putTable(t *Table) {
	k := key(t.Name)
	if _, ok := self.tables[k]; !ok {
		self.order = append(self.order, k)
	}
	self.tables[k] = t
}

func (self *Schema) Table(name string) (*Table, bool) {
	t, ok := self.tables[key(name)]
	return t, ok
}

func (self *Schema) Index(name string) (*Index, bool) {
	i, ok := self.indexes[key(name)]
	return i, ok
}

// HasName reports whether any table or index is called name
func (self *Schema) HasName(name string) bool {
	if _, ok := self.Table(name); ok {
		return true
	}
	_, ok := self.Index(name)
	return ok
}

// Tables returns every table in creation order
func (self *Schema) Tables() []*Table {
	out := make([]*Table, 0, len(self.order))
	for _, k := range self.order {
		out = append(out, self.tables[k])
	}
	return out
}

// UserTables returns the ordinary tables, ie not reserved and not virtual
func (self *Schema) UserTables() []*Table {
	out := []*Table{}
	for _, t := range self.Tables() {
		if IsReserved(t.Name) || t.Virtual {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (self *Schema) AddTable(t *Table) error {
	if self.HasName(t.Name) {
		return fmt.Errorf("table %s already exists", t.Name)
	}
	self.putTable(t)
	return nil
}

func (self *Schema) AddIndex(idx *Index) error {
	if self.HasName(idx.Name) {
		return fmt.Errorf("index %s already exists", idx.Name)
	}
	t, ok := self.Table(idx.Table)
	if !ok {
		return fmt.Errorf("no such table: %s", idx.Table)
	}
	t.Indexes = append(t.Indexes, idx)
	self.indexes[key(idx.Name)] = idx
	return nil
}

// MaxRootPage is the largest root page in use
func (self *Schema) MaxRootPage() int {
	max := SchemaRootPage
	for _, t := range self.tables {
		if t.RootPage > max {
			max = t.RootPage
		}
		for _, i := range t.Indexes {
			if i.RootPage > max {
				max = i.RootPage
			}
		}
	}
	return max
}

// Load rebuilds a schema from the content of sqlite_schema. Tables are
// created before indexes, autoindexes take their columns from the table's
// constraints since they have no SQL.
func Load(rows []Row, version int) (*Schema, error) {
	s := New()
	s.Version = version

	tables := []Row{}
	indexes := []Row{}
	for _, r := range rows {
		switch r.Type {
		case "table":
			tables = append(tables, r)
		case "index":
			indexes = append(indexes, r)
		}
	}

	for _, r := range tables {
		c, err := sql.Parse(r.SQL)
		if err != nil {
			return nil, fmt.Errorf("malformed database schema (%s): %w", r.Name, err)
		}
		ct, ok := c.Stmt.(*sql.CreateTable)
		if !ok {
			return nil, fmt.Errorf("malformed database schema (%s): not a CREATE TABLE", r.Name)
		}
		t, err := FromCreateTable(ct, r.RootPage, r.SQL)
		if err != nil {
			return nil, err
		}
		t.Name = r.Name
		if err := s.AddTable(t); err != nil {
			return nil, err
		}
	}

	for _, r := range indexes {
		t, ok := s.Table(r.TblName)
		if !ok {
			return nil, fmt.Errorf("malformed database schema (%s): no such table %s", r.Name, r.TblName)
		}

		var idx *Index
		if r.SQL == "" {
			auto := t.AutoIndexColumns()
			n := 0
			if _, err := fmt.Sscanf(r.Name[strings.LastIndex(r.Name, "_")+1:], "%d", &n); err != nil ||
				n < 1 || n > len(auto) {
				return nil, fmt.Errorf("malformed database schema (%s): unknown autoindex", r.Name)
			}
			cols := []*sql.IndexedColumn{}
			for _, c := range auto[n-1] {
				cols = append(cols, &sql.IndexedColumn{Name: c})
			}
			i, err := NewIndex(t, r.Name, cols, true, r.RootPage, "")
			if err != nil {
				return nil, err
			}
			i.Auto = true
			idx = i
		} else {
			c, err := sql.Parse(r.SQL)
			if err != nil {
				return nil, fmt.Errorf("malformed database schema (%s): %w", r.Name, err)
			}
			ci, ok := c.Stmt.(*sql.CreateIndex)
			if !ok {
				return nil, fmt.Errorf("malformed database schema (%s): not a CREATE INDEX", r.Name)
			}
			i, err := NewIndex(t, r.Name, ci.Columns, ci.Unique, r.RootPage, r.SQL)
			if err != nil {
				return nil, err
			}
			idx = i
		}

		if err := s.AddIndex(idx); err != nil {
			return nil, err
		}
	}

	return s, nil
}
