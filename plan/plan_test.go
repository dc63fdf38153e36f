package plan

import (
	"testing"

	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/stretchr/testify/assert"
)

func testSchema(t *testing.T, ddl ...string) *schema.Schema {
	s := schema.New()
	for idx, text := range ddl {
		c, err := sql.Parse(text)
		if err != nil {
			t.Fatalf("parse %s: %s", text, err)
		}
		tbl, err := schema.FromCreateTable(c.Stmt.(*sql.CreateTable), idx+2, text)
		if err != nil {
			t.Fatalf("create %s: %s", text, err)
		}
		if err := s.AddTable(tbl); err != nil {
			t.Fatalf("add %s: %s", text, err)
		}
	}
	return s
}

func defSchema(t *testing.T) *schema.Schema {
	return testSchema(
		t,
		"CREATE TABLE t1 (a INTEGER PRIMARY KEY, b TEXT COLLATE NOCASE, c REAL)",
		"CREATE TABLE t2 (x, y INTEGER, z TEXT)",
		"CREATE TABLE t3 (k, v)",
	)
}

func compAST(
	t *testing.T,
	code string,
) *sql.Select {
	c, err := sql.Parse(code)
	if err != nil {
		t.Fatalf("parsing error: %s", err)
	}
	return c.Stmt.(*sql.Select)
}

func planOf(t *testing.T, code string) (*Plan, error) {
	return PlanSelect(defSchema(t), compAST(t, code))
}

func TestPlanPhases(t *testing.T) {
	assert := assert.New(t)
	{
		p, err := planOf(t, "select a, b from t1")
		assert.Nil(err)
		assert.Equal(1, len(p.TableScan))
		assert.Nil(p.TableScan[0].Filter)
		assert.Nil(p.Join)
		assert.Nil(p.GroupBy)
		assert.Nil(p.Agg)
		assert.Nil(p.Having)
		assert.Nil(p.Sort)
		assert.False(p.IsAggregate())
		assert.Equal([]string{"a", "b"}, p.Output.Names())
	}
	{
		p, err := planOf(t, "select 1 + 2 as v")
		assert.Nil(err)
		assert.Equal(0, len(p.TableScan))
		assert.Equal([]string{"v"}, p.Output.Names())
	}
	{
		p, err := planOf(t, "select t1.a, t2.x from t1, t2 where t1.a = t2.y")
		assert.Nil(err)
		assert.True(p.HasJoin())
		assert.NotNil(p.Join)
		assert.Equal(2, len(p.Join.Filter))
		assert.Nil(p.Join.Filter[0])
		assert.Equal("(t1.a = t2.y)", sql.PrintExpr(p.Join.Filter[1]))
	}
}

func TestPlanStar(t *testing.T) {
	assert := assert.New(t)
	{
		p, err := planOf(t, "select * from t1")
		assert.Nil(err)
		assert.Equal([]string{"a", "b", "c"}, p.Output.Names())

		// the INTEGER PRIMARY KEY is the rowid
		ref := p.Output.VarList[0].Value.(*sql.Ref)
		assert.True(ref.CanName.IsRowid())
		assert.True(p.Table(0).FullColumn)
	}
	{
		p, err := planOf(t, "select t2.*, t1.b from t1, t2")
		assert.Nil(err)
		assert.Equal([]string{"x", "y", "z", "b"}, p.Output.Names())
		assert.False(p.Table(0).FullColumn)
		assert.True(p.Table(1).FullColumn)
	}
	{
		_, err := planOf(t, "select *")
		assert.NotNil(err)
		assert.Equal("no tables specified", err.Error())
	}
	{
		_, err := planOf(t, "select foo.* from t1")
		assert.NotNil(err)
		assert.Equal("no such table: foo", err.Error())
	}
}

func TestPlanSort(t *testing.T) {
	assert := assert.New(t)
	{
		p, err := planOf(t, "select a, b from t1 order by b desc, 1")
		assert.Nil(err)
		assert.True(p.HasSort())
		assert.Equal(2, len(p.Sort.VarList))

		s0 := p.Sort.VarList[0]
		assert.True(s0.Desc)
		assert.Equal("NOCASE", s0.Collation.Name())

		s1 := p.Sort.VarList[1]
		assert.False(s1.Desc)
		assert.Equal("a", sql.PrintExpr(s1.Value))
	}
	{
		p, err := planOf(t, "select b as n from t1 order by n collate binary")
		assert.Nil(err)
		assert.Equal("BINARY", p.Sort.VarList[0].Collation.Name())
	}
	{
		_, err := planOf(t, "select a from t1 order by 2")
		assert.NotNil(err)
		assert.Equal("1st ORDER BY term out of range - should be between 1 and 1", err.Error())
	}
	{
		_, err := planOf(t, "select a, b from t1 group by 1, 3")
		assert.NotNil(err)
		assert.Equal("2nd GROUP BY term out of range - should be between 1 and 2", err.Error())
	}
}

func TestPlanLimit(t *testing.T) {
	assert := assert.New(t)
	{
		p, err := planOf(t, "select a from t1 limit 10 offset 2")
		assert.Nil(err)
		assert.True(p.Output.HasLimit())
		assert.Equal("10", sql.PrintExpr(p.Output.Limit))
		assert.Equal("2", sql.PrintExpr(p.Output.Offset))
	}
	{
		_, err := planOf(t, "select a from t1 limit a")
		assert.NotNil(err)
		assert.Equal("no such column: a", err.Error())
	}
	{
		p, err := planOf(t, "select distinct b from t1")
		assert.Nil(err)
		assert.True(p.Output.Distinct)
		assert.False(p.Output.HasLimit())
	}
}

func TestPlanTableAndExpr(t *testing.T) {
	assert := assert.New(t)
	s := defSchema(t)
	{
		where, _ := sql.ParseExpr("b = 'x' and a > 1")
		p, err := PlanTable(s, "t1", where)
		assert.Nil(err)
		assert.Equal(1, len(p.Tables()))
		assert.True(p.Table(0).Column[sql.RowidColumn])
		assert.True(p.Table(0).Column[1])
	}
	{
		where, _ := sql.ParseExpr("count(*) > 1")
		_, err := PlanTable(s, "t1", where)
		assert.NotNil(err)
		assert.Equal("misuse of aggregate: count()", err.Error())
	}
	{
		_, err := PlanTable(s, "nope")
		assert.NotNil(err)
		assert.Equal("no such table: nope", err.Error())
	}
	{
		v, _ := sql.ParseExpr("1 + 2")
		_, err := PlanExpr(s, v)
		assert.Nil(err)
	}
	{
		v, _ := sql.ParseExpr("a + 2")
		_, err := PlanExpr(s, v)
		assert.NotNil(err)
		assert.Equal("no such column: a", err.Error())
	}
}

func TestPlanPrint(t *testing.T) {
	assert := assert.New(t)
	p, err := planOf(t, "select b, count(*) as n from t1 where c > 1 group by b having n > 2 order by n")
	assert.Nil(err)
	out := p.Print()
	assert.Contains(out, "##> Table Descriptor\nIndex: 0\nName: t1\n")
	assert.Contains(out, "##> TableScan\nTable: 0\nFilter: (c > 1)\n")
	assert.Contains(out, "##> GroupBy\nVar[0]: b\n")
	assert.Contains(out, "##> Agg\nVar[0]: count(*)\n")
	assert.Contains(out, "##> Having\nFilter: (n > 2)\n")
	assert.Contains(out, "Var[1]: count(*) as n\n")
	assert.Contains(out, "Sort[0]: n asc collate BINARY\n")
}
