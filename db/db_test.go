package db

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dianpeng/sqlvdbe/store"
	"github.com/dianpeng/sqlvdbe/vm"
	"github.com/stretchr/testify/assert"
)

func openConn(t *testing.T, st *store.Store) *Conn {
	conn, err := Open(st, nil)
	assert.Nil(t, err)
	t.Cleanup(conn.Close)
	return conn
}

func mustExec(t *testing.T, conn *Conn, script string) {
	assert.Nil(t, conn.ExecScript(script))
}

func TestBusy(t *testing.T) {
	assert := assert.New(t)
	st := store.New()
	a := openConn(t, st)
	b := openConn(t, st)

	mustExec(t, a, "CREATE TABLE t (v); BEGIN; INSERT INTO t VALUES (1)")
	assert.True(a.Session().HoldsLock())

	_, err := b.Exec("INSERT INTO t VALUES (2)")
	assert.ErrorIs(err, ErrBusy)

	// reading does not need the lock
	rows, err := b.Query("SELECT count(*) FROM t")
	assert.Nil(err)
	assert.Equal(1, len(rows.Values))

	s, err := b.Prepare("INSERT INTO t VALUES (3)")
	assert.Nil(err)
	defer s.Close()
	for i := 0; i < 2; i++ {
		r, err := s.Step()
		assert.Nil(err)
		assert.Equal(vm.StepBusy, r)
	}

	_, err = a.Exec("COMMIT")
	assert.Nil(err)
	assert.False(a.Session().HoldsLock())

	r, err := s.Step()
	assert.Nil(err)
	assert.Equal(vm.StepDone, r)
	assert.Equal(int64(1), s.Changes())

	rows, err = a.Query("SELECT v FROM t ORDER BY v")
	assert.Nil(err)
	assert.Equal([]string{"1", "3"}, rows.Strings(" "))
}

func TestSchemaFromOtherConn(t *testing.T) {
	assert := assert.New(t)
	st := store.New()
	a := openConn(t, st)
	b := openConn(t, st)

	before := b.Schema().Version
	mustExec(t, a, "CREATE TABLE t (v); INSERT INTO t VALUES (7)")
	assert.Equal(before, b.Schema().Version)

	rows, err := b.Query("SELECT v FROM t")
	assert.Nil(err)
	assert.Equal([]string{"7"}, rows.Strings(" "))
	assert.Equal(a.Schema().Version, b.Schema().Version)
	_, ok := b.Schema().Table("t")
	assert.True(ok)
}

func TestIO(t *testing.T) {
	assert := assert.New(t)
	st := store.New()
	conn := openConn(t, st)
	mustExec(t, conn, "CREATE TABLE t (v); INSERT INTO t VALUES (1); INSERT INTO t VALUES (2)")

	pending := 3
	st.SetIOHook(func(root int) bool {
		if pending > 0 {
			pending--
			return true
		}
		return false
	})
	defer st.SetIOHook(nil)

	s, err := conn.Prepare("SELECT v FROM t")
	assert.Nil(err)
	defer s.Close()

	io := 0
	out := []int64{}
	for done := false; !done; {
		r, err := s.Step()
		assert.Nil(err)
		switch r {
		case vm.StepIO:
			io++
		case vm.StepRow:
			out = append(out, s.Row()[0].Int)
		case vm.StepDone:
			done = true
		}
	}
	assert.Equal(3, io)
	assert.Equal([]int64{1, 2}, out)

	pending = 5
	rows, err := conn.Query("SELECT v FROM t WHERE v > 1")
	assert.Nil(err)
	assert.Equal([]string{"2"}, rows.Strings(" "))
}

func TestInterrupt(t *testing.T) {
	assert := assert.New(t)
	conn := openConn(t, store.New())
	mustExec(t, conn, "CREATE TABLE t (v); INSERT INTO t VALUES (1)")

	s, err := conn.Prepare("SELECT v FROM t")
	assert.Nil(err)
	defer s.Close()

	s.Interrupt()
	r, err := s.Step()
	assert.Nil(err)
	assert.Equal(vm.StepInterrupt, r)

	r, err = s.Step()
	assert.Nil(err)
	assert.Equal(vm.StepRow, r)
	assert.Equal(int64(1), s.Row()[0].Int)
}

func TestFailedStatementRollsBack(t *testing.T) {
	assert := assert.New(t)
	conn := openConn(t, store.New())
	mustExec(t, conn, `
CREATE TABLE t (v UNIQUE);
CREATE TABLE s (v);
INSERT INTO t VALUES (2);
INSERT INTO s VALUES (1);
INSERT INTO s VALUES (2)`)

	_, err := conn.Exec("INSERT INTO t SELECT v FROM s")
	assert.NotNil(err)
	assert.True(strings.Contains(err.Error(), "UNIQUE constraint failed: t.v"))

	rows, err := conn.Query("SELECT v FROM t")
	assert.Nil(err)
	assert.Equal([]string{"2"}, rows.Strings(" "))
	assert.False(conn.Session().HoldsLock())
}

func TestProgramCache(t *testing.T) {
	assert := assert.New(t)
	buf := &bytes.Buffer{}
	log := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	conn, err := Open(store.New(), &Options{CacheSize: 1 << 12, Logger: log})
	assert.Nil(err)
	defer conn.Close()
	assert.Equal(36, len(conn.ID()))

	mustExec(t, conn, "CREATE TABLE t (v); INSERT INTO t VALUES (1)")
	for i := 0; i < 2; i++ {
		rows, err := conn.Query("SELECT v FROM t")
		assert.Nil(err)
		assert.Equal([]string{"1"}, rows.Strings(" "))
	}
	assert.Equal(1, strings.Count(buf.String(), "program cache hit"))
	assert.True(strings.Contains(buf.String(), "conn="+conn.ID()))

	// a rolled back schema change must not leave programs of the abandoned
	// version around
	buf.Reset()
	mustExec(t, conn, "BEGIN; CREATE TABLE u (a); SELECT a FROM u; ROLLBACK")
	assert.True(strings.Contains(buf.String(), "program cache cleared"))
	mustExec(t, conn, "CREATE TABLE u (b, c)")

	rows, err := conn.Query("SELECT * FROM u")
	assert.Nil(err)
	assert.Equal([]string{"b", "c"}, rows.Columns)
}

func TestExplain(t *testing.T) {
	assert := assert.New(t)
	conn := openConn(t, store.New())
	mustExec(t, conn, "CREATE TABLE t (v)")

	rows, err := conn.Explain("SELECT v FROM t")
	assert.Nil(err)
	assert.True(len(rows) > 3)
	assert.Equal("Init", rows[0].Opcode)
	assert.Equal("Goto", rows[len(rows)-1].Opcode)
	for i, r := range rows {
		assert.Equal(i, r.Addr)
	}

	q, err := conn.Query("EXPLAIN SELECT v FROM t")
	assert.Nil(err)
	assert.Equal(explainColumns, q.Columns)
	assert.Equal(len(rows), len(q.Values))
	assert.Equal("Init", q.Values[0][1].String())

	_, err = conn.Explain("SELECT v FROM nope")
	assert.NotNil(err)
}

func TestFixture(t *testing.T) {
	assert := assert.New(t)
	{
		_, err := ParseFixture([]byte("tables:\n  - columns: [a]\n"))
		assert.NotNil(err)
	}
	{
		_, err := ParseFixture([]byte("tables:\n  - name: t\n"))
		assert.NotNil(err)
	}
	{
		_, err := ParseFixture([]byte("tables: [\n"))
		assert.NotNil(err)
	}
	{
		f, err := ParseFixture([]byte(`
tables:
  - name: t
    columns: [k TEXT PRIMARY KEY, v]
    without_rowid: true
    rows:
      - [x, 1.5]
      - ["it's", ~]
indexes:
  - CREATE INDEX t_v ON t (v)
`))
		assert.Nil(err)
		script, err := f.Script()
		assert.Nil(err)
		assert.Equal([]string{
			"CREATE TABLE t (k TEXT PRIMARY KEY, v) WITHOUT ROWID",
			"INSERT INTO t VALUES ('x', 1.5)",
			"INSERT INTO t VALUES ('it''s', NULL)",
			"CREATE INDEX t_v ON t (v)",
		}, script)
	}

	for _, c := range []struct {
		in  interface{}
		out string
	}{
		{nil, "NULL"},
		{true, "1"},
		{false, "0"},
		{42, "42"},
		{int64(-3), "-3"},
		{uint64(18446744073709551615), "18446744073709551615"},
		{2.0, "2.0"},
		{0.25, "0.25"},
		{"a'b", "'a''b'"},
	} {
		s, err := literal(c.in)
		assert.Nil(err)
		assert.Equal(c.out, s)
	}
	_, err := literal([]interface{}{1})
	assert.NotNil(err)
}

func TestLoadFixture(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	assert.Nil(os.WriteFile(path, []byte(`
tables:
  - name: t
    columns: [a INTEGER PRIMARY KEY, b]
    rows:
      - [1, x]
      - [2, y]
statements:
  - DELETE FROM t WHERE a = 1
`), 0644))

	conn := openConn(t, store.New())
	assert.Nil(LoadFixture(conn, path))
	rows, err := conn.Query("SELECT a, b FROM t")
	assert.Nil(err)
	assert.Equal([]string{"2 y"}, rows.Strings(" "))

	assert.NotNil(LoadFixture(conn, filepath.Join(t.TempDir(), "missing.yaml")))
}
