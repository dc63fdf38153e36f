package schema

import (
	"testing"

	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/stretchr/testify/assert"
)

func createTable(t *testing.T, text string, root int) (*Table, error) {
	c, err := sql.Parse(text)
	if err != nil {
		t.Fatalf("parse %s: %s", text, err)
	}
	return FromCreateTable(c.Stmt.(*sql.CreateTable), root, text)
}

func TestBuiltin(t *testing.T) {
	assert := assert.New(t)
	s := New()

	tbl, ok := s.Table("SQLITE_SCHEMA")
	assert.True(ok)
	assert.Equal(SchemaRootPage, tbl.RootPage)
	assert.Equal(SchemaNumColumns, len(tbl.Columns))
	assert.Equal("tbl_name", tbl.Columns[SchemaColTblName].Name)

	je, ok := s.Table("json_each")
	assert.True(ok)
	assert.True(je.Virtual)
	assert.True(je.Eponymous)
	assert.False(je.HasRowid())

	// builtins are not user tables
	assert.Equal(0, len(s.UserTables()))
	assert.True(IsReserved("sqlite_stat1"))
	assert.False(IsReserved("t"))
	assert.Equal("sqlite_autoindex_t_2", AutoIndexName("t", 2))
}

func TestFromCreateTable(t *testing.T) {
	assert := assert.New(t)
	{
		tbl, err := createTable(t, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT COLLATE nocase NOT NULL, score REAL, tag UNIQUE)", 2)
		assert.Nil(err)
		assert.Equal(0, tbl.RowidAlias)
		assert.True(tbl.IsRowidAlias(0))
		assert.True(tbl.HasRowid())
		assert.Equal([]string{"id", "name", "score", "tag"}, tbl.ColumnNames())
		assert.Equal(vdbe.CollNoCase, tbl.Columns[1].Collation)
		assert.True(tbl.Columns[1].NotNull)
		assert.Equal(vdbe.AffinityReal, tbl.Columns[2].Affinity)
		assert.Equal(vdbe.AffinityBlob, tbl.Columns[3].Affinity)
		assert.Equal(2, tbl.ColumnIndex("SCORE"))
		assert.Equal(-1, tbl.ColumnIndex("nope"))
		assert.Equal([]string{"id"}, tbl.PrimaryKeyColumns())

		// the alias primary key needs no index, the unique column does
		assert.Equal([][]string{{"tag"}}, tbl.AutoIndexColumns())
	}
	{
		tbl, err := createTable(t, "CREATE TABLE t (a TEXT, b INT, PRIMARY KEY (a, b), UNIQUE (b))", 2)
		assert.Nil(err)
		assert.Equal(-1, tbl.RowidAlias)
		assert.Equal([][]string{{"a", "b"}, {"b"}}, tbl.AutoIndexColumns())
		assert.True(tbl.Columns[0].PrimaryKey)
	}
	{
		tbl, err := createTable(t, "CREATE TABLE t (k INTEGER, v, PRIMARY KEY (k))", 2)
		assert.Nil(err)
		assert.Equal(0, tbl.RowidAlias)
	}
	{
		tbl, err := createTable(t, "CREATE TABLE w (k TEXT PRIMARY KEY, v) WITHOUT ROWID", 2)
		assert.Nil(err)
		assert.True(tbl.WithoutRowid)
		assert.False(tbl.HasRowid())
		assert.Equal(-1, tbl.RowidAlias)
	}

	bad := func(text string, msg string) {
		_, err := createTable(t, text, 2)
		assert.NotNil(err, text)
		if err != nil {
			assert.Equal(msg, err.Error(), text)
		}
	}
	bad("CREATE TABLE t (a, A)", "duplicate column name: A")
	bad("CREATE TABLE t (a PRIMARY KEY, b PRIMARY KEY)", `table "t" has more than one primary key`)
	bad("CREATE TABLE t (a, PRIMARY KEY (z))", "no such column: z")
	bad("CREATE TABLE t (a, UNIQUE (z))", "no such column: z")
	bad("CREATE TABLE t (a COLLATE foo)", "no such collation sequence: foo")
	bad("CREATE TABLE t (a, b) WITHOUT ROWID", "PRIMARY KEY missing on table t")
}

func TestIndex(t *testing.T) {
	assert := assert.New(t)
	tbl, err := createTable(t, "CREATE TABLE t (a, b TEXT COLLATE nocase)", 2)
	assert.Nil(err)

	idx, err := NewIndex(tbl, "i", []*sql.IndexedColumn{{Name: "B"}, {Name: "a", Desc: true, Collate: "rtrim"}}, false, 3, "")
	assert.Nil(err)
	assert.Equal([]string{"b", "a", "rowid"}, idx.ColumnNames())
	keys := idx.KeyInfo()
	assert.Equal(3, len(keys))
	assert.Equal(vdbe.CollNoCase, keys[0].Collation)
	assert.Equal(vdbe.CollRTrim, keys[1].Collation)
	assert.True(keys[1].Desc)
	assert.Equal(vdbe.KeyInfo{}, keys[2])

	_, err = NewIndex(tbl, "j", []*sql.IndexedColumn{{Name: "c"}}, false, 4, "")
	assert.NotNil(err)
}

func TestSchemaCatalog(t *testing.T) {
	assert := assert.New(t)
	s := New()

	tbl, err := createTable(t, "CREATE TABLE T1 (a, b)", 2)
	assert.Nil(err)
	assert.Nil(s.AddTable(tbl))
	assert.NotNil(s.AddTable(tbl))

	idx, err := NewIndex(tbl, "i1", []*sql.IndexedColumn{{Name: "a"}}, false, 5, "CREATE INDEX i1 ON T1 (a)")
	assert.Nil(err)
	assert.Nil(s.AddIndex(idx))
	assert.NotNil(s.AddIndex(idx))

	orphan := &Index{Name: "i2", Table: "nope"}
	err = s.AddIndex(orphan)
	assert.NotNil(err)
	assert.Equal("no such table: nope", err.Error())

	assert.True(s.HasName("t1"))
	assert.True(s.HasName("I1"))
	assert.False(s.HasName("t2"))
	assert.Equal(5, s.MaxRootPage())

	got, ok := s.Index("I1")
	assert.True(ok)
	assert.Equal(idx, got)
	assert.Equal(idx, tbl.Index("I1"))

	users := s.UserTables()
	assert.Equal(1, len(users))
	assert.Equal("T1", users[0].Name)
}

func TestLoad(t *testing.T) {
	assert := assert.New(t)
	rows := []Row{
		{Type: "index", Name: "sqlite_autoindex_t_1", TblName: "t", RootPage: 3},
		{Type: "table", Name: "t", TblName: "t", RootPage: 2, SQL: "CREATE TABLE t (a TEXT PRIMARY KEY, b)"},
		{Type: "index", Name: "tb", TblName: "t", RootPage: 4, SQL: "CREATE UNIQUE INDEX tb ON t (b DESC)"},
	}
	s, err := Load(rows, 7)
	assert.Nil(err)
	assert.Equal(7, s.Version)

	tbl, ok := s.Table("t")
	assert.True(ok)
	assert.Equal(2, len(tbl.Indexes))

	auto := tbl.Index("sqlite_autoindex_t_1")
	assert.NotNil(auto)
	assert.True(auto.Auto)
	assert.True(auto.Unique)
	assert.Equal("a", auto.Columns[0].Name)

	tb := tbl.Index("tb")
	assert.True(tb.Unique)
	assert.True(tb.Columns[0].Desc)
	assert.Equal(1, tb.Columns[0].Pos)

	_, err = Load([]Row{{Type: "table", Name: "x", SQL: "CREATE TABL x"}}, 1)
	assert.NotNil(err)

	_, err = Load([]Row{{Type: "index", Name: "i", TblName: "x", SQL: "CREATE INDEX i ON x (a)"}}, 1)
	assert.NotNil(err)

	_, err = Load([]Row{
		{Type: "table", Name: "t", TblName: "t", RootPage: 2, SQL: "CREATE TABLE t (a)"},
		{Type: "index", Name: "sqlite_autoindex_t_1", TblName: "t", RootPage: 3},
	}, 1)
	assert.NotNil(err)
}
