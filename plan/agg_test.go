package plan

import (
	"testing"

	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/stretchr/testify/assert"
)

func TestAggProjection(t *testing.T) {
	assert := assert.New(t)
	{
		s := compAST(t, "select min(c) as f1, b from t1")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s)) // this is required
		assert.Nil(p.anaAgg(s))
		assert.True(p.HasAgg())
		assert.Equal(1, len(p.aggExpr))

		call := s.Projection.ValueList[0].(*sql.Col).Value.(*sql.Call)
		assert.True(call.CanName.IsAgg())
		assert.Equal(0, call.CanName.ColumnIndex)

		agg := p.aggExpr[0]
		assert.Equal(AggMin, agg.AggType)
		assert.Equal("min", agg.AggName())
		assert.Equal("c", sql.PrintExpr(agg.Args[0]))
	}
	{
		s := compAST(t, "select max(c + 100) * 2 + count(*), sum(distinct a) from t1")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))
		assert.Nil(p.anaAgg(s))
		assert.Equal(3, len(p.aggExpr))

		assert.Equal(AggMax, p.aggExpr[0].AggType)
		assert.Equal("(c + 100)", sql.PrintExpr(p.aggExpr[0].Args[0]))

		assert.Equal(AggCount, p.aggExpr[1].AggType)
		assert.True(p.aggExpr[1].Star)

		assert.Equal(AggSum, p.aggExpr[2].AggType)
		assert.True(p.aggExpr[2].Distinct)
	}
	{
		// alias shares the node, recorded once
		s := compAST(t, "select count(b) as n from t1 group by c having n > 1 order by n")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))
		assert.Nil(p.anaAgg(s))
		assert.Equal(1, len(p.aggExpr))
	}
	{
		s := compAST(t, "select b from t1 group by b having total(c) > 1 order by avg(c)")
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))
		assert.Nil(p.anaAgg(s))
		assert.Equal(2, len(p.aggExpr))
		assert.Equal(AggTotal, p.aggExpr[0].AggType)
		assert.Equal(AggAvg, p.aggExpr[1].AggType)
	}
}

func TestAggError(t *testing.T) {
	assert := assert.New(t)
	one := func(code string, msg string) {
		s := compAST(t, code)
		p := newPlan(defSchema(t))
		assert.Nil(p.resolveSymbol(s))
		err := p.anaAgg(s)
		assert.NotNil(err, code)
		if err != nil {
			assert.Equal(msg, err.Error(), code)
		}
	}

	one("select min(max(c)) from t1", "misuse of aggregate function min()")
	one("select sum(b, c) from t1", "wrong number of arguments to function sum()")
	one("select count(b, c) from t1", "wrong number of arguments to function count()")
	one("select max(*) from t1", "wrong number of arguments to function max()")
}

func TestAggHelper(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(AggCount, aggNameToType("COUNT"))
	assert.Equal(-1, aggNameToType("group_concat"))
	assert.Equal("unknown", aggTypeToName(-1))

	s := compAST(t, "select count(*) as n from t1 where n > 1")
	p := newPlan(defSchema(t))
	assert.Nil(p.resolveSymbol(s))
	assert.True(p.exprHasAgg(s.Where.Condition))
	assert.Equal("count", p.firstAgg(s.Where.Condition))
	assert.Nil(p.checkNoAgg(nil, "%s"))
}
