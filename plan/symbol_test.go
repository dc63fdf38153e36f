package plan

import (
	"testing"

	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/stretchr/testify/assert"
)

func TestScanTable(t *testing.T) {
	assert := assert.New(t)
	{
		s := compAST(t, "select t1.b as f from t1, t2 as o, t3")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))
		assert.Equal(3, len(p.tableList))

		assert.Equal("t1", p.tableList[0].Name)
		assert.Equal("", p.tableList[0].Alias)
		assert.True(p.tableList[0].Column[1])
		assert.False(p.tableList[0].FullColumn)

		assert.Equal("t2", p.tableList[1].Name)
		assert.Equal("o", p.tableList[1].Alias)
		assert.Equal("o", p.tableList[1].VisibleName())
		assert.Equal(0, len(p.tableList[1].Column))

		assert.Equal(2, p.tableList[2].Index)
	}
	{
		s := compAST(t, "select 1 from t1, t1")
		p := newPlan(defSchema(t))
		err := p.resolveSymbol(s)
		assert.NotNil(err)
		assert.Equal("ambiguous table name: t1", err.Error())
	}
	{
		s := compAST(t, "select 1 from json_each")
		p := newPlan(defSchema(t))
		err := p.resolveSymbol(s)
		assert.NotNil(err)
		assert.Equal("virtual table json_each cannot be scanned", err.Error())
	}
	{
		s := compAST(t, "select 1 from t1, t2, t3")
		p := newPlan(defSchema(t))
		p.Config.MaxTableSize = 2
		assert.NotNil(p.resolveSymbol(s))
	}
}

func TestResolveColumn(t *testing.T) {
	assert := assert.New(t)

	refOf := func(s *sql.Select, idx int) *sql.Ref {
		return s.Projection.ValueList[idx].(*sql.Col).Value.(*sql.Ref)
	}

	{
		s := compAST(t, "select a, rowid, T1.B, c, oid from t1")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))

		// alias of the rowid
		a := refOf(s, 0)
		assert.True(a.CanName.IsTableColumn())
		assert.True(a.CanName.IsRowid())

		assert.True(refOf(s, 1).CanName.IsRowid())
		assert.True(refOf(s, 4).CanName.IsRowid())

		b := refOf(s, 2)
		assert.Equal(0, b.CanName.TableIndex)
		assert.Equal(1, b.CanName.ColumnIndex)

		c := refOf(s, 3)
		assert.Equal(2, c.CanName.ColumnIndex)
	}
	{
		s := compAST(t, "select y, o.z from t1, t2 as o")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))
		assert.Equal(1, refOf(s, 0).CanName.TableIndex)
		assert.Equal(1, refOf(s, 0).CanName.ColumnIndex)
		assert.Equal(2, refOf(s, 1).CanName.ColumnIndex)
	}
	{
		s := compAST(t, "select k from t3 as a, t3 as b")
		p := newPlan(defSchema(t))
		err := p.resolveSymbol(s)
		assert.NotNil(err)
		assert.Equal("ambiguous column name: k", err.Error())
	}
	{
		s := compAST(t, "select t2.x from t1")
		p := newPlan(defSchema(t))
		err := p.resolveSymbol(s)
		assert.NotNil(err)
		assert.Equal("no such column: t2.x", err.Error())
	}
	{
		s := compAST(t, "select t1.nope from t1")
		p := newPlan(defSchema(t))
		err := p.resolveSymbol(s)
		assert.NotNil(err)
		assert.Equal("no such column: t1.nope", err.Error())
	}
	{
		s := compAST(t, "select nope from t1")
		p := newPlan(defSchema(t))
		err := p.resolveSymbol(s)
		assert.NotNil(err)
		assert.Equal("no such column: nope", err.Error())
	}
}

func TestResolveAlias(t *testing.T) {
	assert := assert.New(t)
	{
		s := compAST(t, "select b || 'x' as f from t1 where f = 'ax' order by f")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))

		w := s.Where.Condition.(*sql.Binary)
		f := w.L.(*sql.Ref)
		assert.True(f.CanName.IsReference())
		assert.Equal(s.Projection.ValueList[0].(*sql.Col).Value, f.CanName.Reference)

		o := s.OrderBy.Terms[0].Expr.(*sql.Ref)
		assert.True(o.CanName.IsReference())
	}
	{
		// a column wins over an alias of the same name
		s := compAST(t, "select c as b from t1 where b = 1")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))
		w := s.Where.Condition.(*sql.Binary)
		b := w.L.(*sql.Ref)
		assert.True(b.CanName.IsTableColumn())
		assert.Equal(1, b.CanName.ColumnIndex)
	}
	{
		// the projection cannot see its siblings
		s := compAST(t, "select c as f, f + 1 from t1")
		p := newPlan(defSchema(t))
		err := p.resolveSymbol(s)
		assert.NotNil(err)
		assert.Equal("no such column: f", err.Error())
	}
	{
		// the first alias wins
		s := compAST(t, "select b as f, c as F from t1 order by f")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))
		o := s.OrderBy.Terms[0].Expr.(*sql.Ref)
		assert.Equal(s.Projection.ValueList[0].(*sql.Col).Value, o.CanName.Reference)
	}
	{
		s := compAST(t, "select b from t1 where (select nope) = 1")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))
	}
}
