package cg

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/dianpeng/sqlvdbe/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema is
//
//	t(a INT, b TEXT, c REAL) with index t_ab(a, b)
//	u(id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)
//	w(k TEXT PRIMARY KEY, v) WITHOUT ROWID
func testSchema(t *testing.T) *schema.Schema {
	s := schema.New()
	s.Version = 7
	root := 2

	addTable := func(text string) *schema.Table {
		c, err := sql.Parse(text)
		require.Nil(t, err)
		tbl, err := schema.FromCreateTable(c.Stmt.(*sql.CreateTable), root, text)
		require.Nil(t, err)
		root++
		require.Nil(t, s.AddTable(tbl))
		return tbl
	}
	addIndex := func(tbl *schema.Table, name string, auto bool, cols ...string) {
		ic := []*sql.IndexedColumn{}
		for _, c := range cols {
			ic = append(ic, &sql.IndexedColumn{Name: c})
		}
		idx, err := schema.NewIndex(tbl, name, ic, auto, root, "")
		require.Nil(t, err)
		idx.Auto = auto
		root++
		require.Nil(t, s.AddIndex(idx))
	}

	tt := addTable("CREATE TABLE t (a INT, b TEXT, c REAL)")
	addIndex(tt, "t_ab", false, "a", "b")
	u := addTable("CREATE TABLE u (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)")
	addIndex(u, schema.AutoIndexName("u", 1), true, "name")
	addTable("CREATE TABLE w (k TEXT PRIMARY KEY, v) WITHOUT ROWID")
	return s
}

func translate(s *schema.Schema, text string) (*vdbe.Program, error) {
	c, err := sql.Parse(text)
	if err != nil {
		return nil, err
	}
	return Translate(s, c, nil)
}

func countOp(p *vdbe.Program, op int) int {
	n := 0
	for _, insn := range p.Insns {
		if insn.Opcode() == op {
			n++
		}
	}
	return n
}

func functions(p *vdbe.Program, name string) int {
	n := 0
	for _, insn := range p.Insns {
		if f, ok := insn.(*vdbe.Function); ok && f.Func == name {
			n++
		}
	}
	return n
}

func findTransaction(p *vdbe.Program) *vdbe.Transaction {
	for _, insn := range p.Insns {
		if x, ok := insn.(*vdbe.Transaction); ok {
			return x
		}
	}
	return nil
}

var statements = []struct {
	sql   string
	write bool
}{
	{"SELECT 1 + 2, 'x' || 'y'", false},
	{"SELECT a, b FROM t WHERE a > 1 AND b IS NOT NULL", false},
	{"SELECT * FROM t", false},
	{"SELECT DISTINCT b FROM t ORDER BY b DESC LIMIT 2 OFFSET 1", false},
	{"SELECT a, count(*), sum(c) FROM t GROUP BY a HAVING count(*) > 1", false},
	{"SELECT count(DISTINCT b), max(c) FROM t", false},
	{"SELECT t.a, u.name FROM t, u WHERE t.a = u.id", false},
	{"SELECT a FROM t WHERE a = (SELECT max(id) FROM u)", false},
	{"SELECT CASE WHEN a < 0 THEN 'neg' ELSE 'pos' END, CAST(b AS INTEGER) FROM t", false},
	{"SELECT name FROM u WHERE name LIKE 'a%' ORDER BY name COLLATE nocase", false},
	{"INSERT INTO t VALUES (1, 'x', 2.5)", true},
	{"INSERT INTO t (a, b) VALUES (1, 'x'), (2, 'y')", true},
	{"INSERT INTO u (name) VALUES ('bob')", true},
	{"INSERT INTO t (a, b) SELECT id, name FROM u", true},
	{"INSERT INTO t SELECT * FROM t", true},
	{"UPDATE t SET a = a + 1 WHERE b = 'x'", true},
	{"UPDATE u SET id = id + 10, name = upper(name)", true},
	{"DELETE FROM t WHERE a < 3", true},
	{"DELETE FROM u", true},
	{"CREATE TABLE n (x INTEGER PRIMARY KEY, y UNIQUE)", true},
	{"CREATE INDEX t_c ON t (c)", true},
	{"CREATE UNIQUE INDEX u_n ON u (name DESC)", true},
	{"ALTER TABLE t RENAME TO t2", true},
	{"ANALYZE", true},
	{"ANALYZE t", true},
	{"ANALYZE t_ab", true},
}

func TestProgramShape(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	for _, x := range statements {
		p, err := translate(s, x.sql)
		if !assert.Nil(err, x.sql) {
			continue
		}
		assert.Nil(p.Validate(), x.sql)
		if strings.HasPrefix(x.sql, "ALTER") {
			assert.Equal(1, p.Nested, x.sql)
		} else {
			assert.Equal(0, p.Nested, x.sql)
		}

		_, ok := p.Insns[0].(*vdbe.Init)
		assert.True(ok, x.sql)
		_, ok = p.Insns[p.Len()-1].(*vdbe.Goto)
		assert.True(ok, x.sql)

		txn := findTransaction(p)
		if assert.NotNil(txn, x.sql) {
			assert.Equal(x.write, txn.Write, x.sql)
		}
	}
}

func TestTransactionControl(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	for _, x := range []struct {
		sql      string
		auto     bool
		rollback bool
	}{
		{"BEGIN", false, false},
		{"COMMIT", true, false},
		{"ROLLBACK", true, true},
	} {
		p, err := translate(s, x.sql)
		assert.Nil(err)
		assert.Nil(findTransaction(p))
		assert.Equal(1, countOp(p, vdbe.OpAutoCommit))
		for _, insn := range p.Insns {
			if ac, ok := insn.(*vdbe.AutoCommit); ok {
				assert.Equal(x.auto, ac.Auto, x.sql)
				assert.Equal(x.rollback, ac.Rollback, x.sql)
			}
		}
	}
}

func TestResultColumns(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	p, err := translate(s, "SELECT a AS x, b FROM t")
	assert.Nil(err)
	assert.Equal([]string{"x", "b"}, p.ResultColumns)

	p, err = translate(s, "INSERT INTO t VALUES (1, 'x', 2.5)")
	assert.Nil(err)
	assert.Equal(0, len(p.ResultColumns))
	assert.True(p.ChangeCountOn)

	p, err = translate(s, "DELETE FROM t")
	assert.Nil(err)
	assert.True(p.ChangeCountOn)

	p, err = translate(s, "SELECT a FROM t")
	assert.Nil(err)
	assert.False(p.ChangeCountOn)
	assert.Equal("SELECT a FROM t", p.SQL)
}

func TestRenameTable(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	p, err := translate(s, "ALTER TABLE t RENAME TO t2")
	require.Nil(t, err)
	assert.Equal(1, functions(p, vm.FuncRenameTable))
	assert.Equal(1, countOp(p, vdbe.OpParseSchema))
	assert.Equal(1, countOp(p, vdbe.OpSetCookie))
	assert.False(p.ChangeCountOn)

	for _, insn := range p.Insns {
		switch x := insn.(type) {
		case *vdbe.ParseSchema:
			assert.Equal("tbl_name='t2' AND type!='trigger'", x.Where)
		case *vdbe.SetCookie:
			assert.Equal(s.Version+1, x.Value)
		case *vdbe.OpenWrite:
			assert.Equal(schema.SchemaRootPage, x.RootPage)
		}
	}

	// one rowid collected, one catalog row rewritten
	assert.Equal(2, countOp(p, vdbe.OpInsert))
	assert.Equal(1, countOp(p, vdbe.OpDelete))

	assert.Equal(
		"update sqlite_schema set name = case when type = 'table' then 'b'"+
			" when type = 'index' and name like 'sqlite_autoindex_a_%' then 'sqlite_autoindex_b_' || substr(name, 20)"+
			" else name end, tbl_name = 'b', sql = sqlite_rename_table(sql, type, 'a', 'b')"+
			" where tbl_name = 'a' collate nocase and (type = 'table' or type = 'index' or type = 'trigger')",
		renameTableSQL("a", "b"),
	)
}

func TestRenameTableErrors(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	for _, x := range []struct {
		sql  string
		kind error
		msg  string
	}{
		{"ALTER TABLE nope RENAME TO x", ErrNoSuchTable, "no such table: nope"},
		{"ALTER TABLE t RENAME TO U", ErrNameCollision, "there is already another table or index with this name: U"},
		{"ALTER TABLE t RENAME TO t_ab", ErrNameCollision, "there is already another table or index with this name: t_ab"},
		{"ALTER TABLE sqlite_schema RENAME TO x", ErrNotAlterable, "table sqlite_schema may not be altered"},
		{"ALTER TABLE json_each RENAME TO x", ErrNotAlterable, "table json_each may not be altered"},
		{"ALTER TABLE t RENAME TO sqlite_x", ErrNotAlterable, "object name reserved for internal use: sqlite_x"},
		{"ALTER TABLE t ADD COLUMN d INT", ErrUnsupported, "only RENAME TO is implemented for ALTER TABLE"},
	} {
		p, err := translate(s, x.sql)
		assert.Nil(p, x.sql)
		if assert.NotNil(err, x.sql) {
			assert.True(errors.Is(err, x.kind), x.sql)
			assert.Equal(x.msg, err.Error())
		}
	}
}

func TestAnalyze(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	// sqlite_stat1 does not exist yet, it is created first
	p, err := translate(s, "ANALYZE")
	require.Nil(t, err)
	assert.Equal(1, countOp(p, vdbe.OpCreateBtree))
	assert.Equal(1, countOp(p, vdbe.OpParseSchema))
	assert.Equal(1, countOp(p, vdbe.OpSetCookie))
	assert.Equal(2, countOp(p, vdbe.OpCount)) // t and u, w has no rowid
	assert.Equal(2, functions(p, vm.FuncStatInit))
	assert.Equal(2, functions(p, vm.FuncStatPush))
	assert.Equal(2, functions(p, vm.FuncStatGet))

	p, err = translate(s, "ANALYZE main")
	require.Nil(t, err)
	assert.Equal(2, countOp(p, vdbe.OpCount))

	// a single index analyzes its table row and that index only
	p, err = translate(s, "ANALYZE sqlite_autoindex_u_1")
	require.Nil(t, err)
	assert.Equal(1, countOp(p, vdbe.OpCount))
	assert.Equal(1, functions(p, vm.FuncStatInit))

	// the change index chain compares NULLs as equal
	p, err = translate(s, "ANALYZE t")
	require.Nil(t, err)
	ne := 0
	for _, insn := range p.Insns {
		if c, ok := insn.(*vdbe.Cmp); ok && c.Flags&vdbe.CmpNullEq != 0 {
			assert.Equal(vdbe.OpNe, c.Op)
			ne++
		}
	}
	assert.Equal(2, ne)

	_, err = translate(s, "ANALYZE nope")
	assert.True(errors.Is(err, ErrNoSuchTable))
	assert.Equal("no such table or index: nope", err.Error())

	_, err = translate(s, "ANALYZE w")
	assert.True(errors.Is(err, ErrWithoutRowid))
	assert.Equal("ANALYZE on tables without rowid is not supported", err.Error())
}

func TestAnalyzeExistingStat1(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	c, err := sql.Parse(schema.Stat1TableSQL)
	require.Nil(t, err)
	stat, err := schema.FromCreateTable(c.Stmt.(*sql.CreateTable), 20, schema.Stat1TableSQL)
	require.Nil(t, err)
	require.Nil(t, s.AddTable(stat))

	p, err := translate(s, "ANALYZE t")
	require.Nil(t, err)
	assert.Equal(0, countOp(p, vdbe.OpCreateBtree))
	assert.Equal(0, countOp(p, vdbe.OpParseSchema))

	// sqlite_stat1 may be written by ANALYZE only
	_, err = translate(s, "DELETE FROM sqlite_stat1")
	assert.Nil(err)
	_, err = translate(s, "DELETE FROM sqlite_schema")
	assert.True(errors.Is(err, ErrNotAlterable))
}

func TestWriteErrors(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	for _, x := range []struct {
		sql  string
		kind error
		msg  string
	}{
		{"INSERT INTO nope VALUES (1)", ErrNoSuchTable, "no such table: nope"},
		{"INSERT INTO t VALUES (1)", nil, "table t has 3 columns but 1 values were supplied"},
		{"INSERT INTO t (a, b) VALUES (1)", nil, "1 values for 2 columns"},
		{"INSERT INTO t (z) VALUES (1)", nil, "table t has no column named z"},
		{"INSERT INTO w VALUES ('k', 1)", ErrWithoutRowid, "cannot modify WITHOUT ROWID table w"},
		{"INSERT INTO sqlite_schema VALUES (1, 2, 3, 4, 5)", ErrNotAlterable, "table sqlite_schema may not be modified"},
		{"DELETE FROM json_each", nil, "cannot modify json_each because it is a virtual table"},
		{"CREATE TABLE t (x)", ErrNameCollision, "table t already exists"},
		{"CREATE TABLE t_ab (x)", ErrNameCollision, "there is already an index named t_ab"},
		{"CREATE TABLE sqlite_x (x)", ErrNotAlterable, "object name reserved for internal use: sqlite_x"},
		{"CREATE INDEX t_ab ON t (c)", ErrNameCollision, "index t_ab already exists"},
		{"CREATE INDEX u ON t (c)", ErrNameCollision, "there is already a table named u"},
		{"CREATE INDEX i ON nope (c)", ErrNoSuchTable, "no such table: nope"},
		{"CREATE INDEX i ON sqlite_schema (name)", ErrNotAlterable, "table sqlite_schema may not be indexed"},
		{"SELECT * FROM nope", nil, ""},
		{"SELECT a FROM t WHERE a = (SELECT a, b FROM t)", ErrUnsupported, "sub-select returns 2 columns - expected 1"},
	} {
		_, err := translate(s, x.sql)
		if !assert.NotNil(err, x.sql) {
			continue
		}
		if x.kind != nil {
			assert.True(errors.Is(err, x.kind), x.sql)
		}
		if x.msg != "" {
			assert.Equal(x.msg, err.Error(), x.sql)
		}
	}

	// IF NOT EXISTS turns the collision into an empty statement
	p, err := translate(s, "CREATE TABLE IF NOT EXISTS t (x)")
	assert.Nil(err)
	assert.Equal(0, countOp(p, vdbe.OpCreateBtree))
	p, err = translate(s, "CREATE INDEX IF NOT EXISTS t_ab ON t (c)")
	assert.Nil(err)
	assert.Equal(0, countOp(p, vdbe.OpCreateBtree))
}

func TestCreateTable(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	p, err := translate(s, "CREATE TABLE IF NOT EXISTS n (x INTEGER PRIMARY KEY, y UNIQUE)")
	require.Nil(t, err)

	// the table and the implicit index of y
	assert.Equal(2, countOp(p, vdbe.OpCreateBtree))
	assert.Equal(2, countOp(p, vdbe.OpInsert))

	texts := []string{}
	for _, insn := range p.Insns {
		if x, ok := insn.(*vdbe.String8); ok {
			texts = append(texts, x.Value)
		}
		if x, ok := insn.(*vdbe.CreateBtree); ok && x.IsIndex {
			assert.NotEqual(vdbe.Register(0), x.Dest)
		}
	}
	assert.Contains(texts, schema.AutoIndexName("n", 1))
	for _, x := range texts {
		assert.NotContains(x, "IF NOT EXISTS")
	}
}

func TestCreateIndexFillsRows(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	p, err := translate(s, "CREATE UNIQUE INDEX u_n ON u (name)")
	require.Nil(t, err)
	assert.True(p.ChangeCountOn)
	assert.Equal(1, countOp(p, vdbe.OpIdxInsert))
	assert.Equal(1, countOp(p, vdbe.OpRewind))

	halts := 0
	for _, insn := range p.Insns {
		if h, ok := insn.(*vdbe.Halt); ok && h.ErrCode == errConstraint {
			assert.Equal("UNIQUE constraint failed: u.name", h.Message)
			halts++
		}
	}
	assert.Equal(1, halts)
}

func TestInsertConstraints(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	p, err := translate(s, "INSERT INTO u (id, name) VALUES (1, 'a')")
	require.Nil(t, err)

	msgs := []string{}
	for _, insn := range p.Insns {
		switch x := insn.(type) {
		case *vdbe.Halt:
			if x.ErrCode != 0 {
				msgs = append(msgs, x.Message)
			}
		case *vdbe.HaltIfNull:
			msgs = append(msgs, x.Message)
		}
	}
	assert.Contains(msgs, "UNIQUE constraint failed: u.id")
	assert.Contains(msgs, "NOT NULL constraint failed: u.name")
	assert.Contains(msgs, "UNIQUE constraint failed: u.name")

	// INSERT ... SELECT runs the select as a coroutine
	p, err = translate(s, "INSERT INTO t (a, b) SELECT id, name FROM u")
	require.Nil(t, err)
	assert.Equal(1, countOp(p, vdbe.OpInitCoroutine))
	assert.Equal(1, countOp(p, vdbe.OpEndCoroutine))
	assert.Equal(0, countOp(p, vdbe.OpOpenEphemeral))

	// reading the target table materializes the rows first
	p, err = translate(s, "INSERT INTO t SELECT * FROM t")
	require.Nil(t, err)
	assert.Equal(1, countOp(p, vdbe.OpOpenEphemeral))
}

func TestSelectPipeline(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	p, err := translate(s, "SELECT a, count(*) FROM t GROUP BY a ORDER BY a DESC")
	require.Nil(t, err)
	assert.Equal(2, countOp(p, vdbe.OpSorterOpen))
	assert.Equal(1, countOp(p, vdbe.OpAggStep))
	assert.Equal(1, countOp(p, vdbe.OpAggFinal))
	assert.Equal(1, countOp(p, vdbe.OpBeginSubrtn))
	assert.Equal(1, countOp(p, vdbe.OpResultRow))

	p, err = translate(s, "SELECT b FROM t LIMIT 3 OFFSET 1")
	require.Nil(t, err)
	assert.Equal(1, countOp(p, vdbe.OpDecrJumpZero))
	assert.Equal(1, countOp(p, vdbe.OpIfPos))

	p, err = translate(s, "SELECT a FROM t WHERE a = (SELECT max(id) FROM u)")
	require.Nil(t, err)
	assert.Equal(1, countOp(p, vdbe.OpOnce))

	p, err = translate(s, "SELECT t.a, u.name FROM t, u")
	require.Nil(t, err)
	assert.Equal(2, countOp(p, vdbe.OpRewind))
	assert.Equal(2, countOp(p, vdbe.OpNext))
}

func TestCache(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)

	_, err := NewCache(0)
	assert.NotNil(err)

	c, err := NewCache(1 << 16)
	require.Nil(t, err)
	defer c.Close()

	p, err := translate(s, "SELECT a FROM t")
	require.Nil(t, err)

	_, ok := c.Get(s.Version, "SELECT a FROM t")
	assert.False(ok)
	c.Put(s.Version, "SELECT a FROM t", p)
	got, ok := c.Get(s.Version, "SELECT a FROM t")
	assert.True(ok)
	assert.Equal(p, got)

	// another schema version never sees the program
	_, ok = c.Get(s.Version+1, "SELECT a FROM t")
	assert.False(ok)

	assert.Equal(64, len(CacheKey(1, "x")))
	assert.Equal(CacheKey(1, "x"), CacheKey(1, "x"))
	assert.NotEqual(CacheKey(1, "x"), CacheKey(2, "x"))
	assert.NotEqual(CacheKey(1, "1x"), CacheKey(11, "x"))
}

func TestDebugLog(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)
	buf := &bytes.Buffer{}
	cfg := &Config{
		Logger: slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}

	c, err := sql.Parse("SELECT a FROM t WHERE b = 'x'")
	require.Nil(t, err)
	_, err = Translate(s, c, cfg)
	assert.Nil(err)
	assert.True(strings.Contains(buf.String(), "select plan"))

	buf.Reset()
	c, err = sql.Parse("ALTER TABLE t RENAME TO t2")
	require.Nil(t, err)
	_, err = Translate(s, c, cfg)
	assert.Nil(err)
	assert.True(strings.Contains(buf.String(), "deep parse"))
	assert.True(strings.Contains(buf.String(), "nested=1"))
}
