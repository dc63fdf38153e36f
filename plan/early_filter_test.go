package plan

import (
	"testing"

	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/stretchr/testify/assert"
)

func TestConjuncts(t *testing.T) {
	assert := assert.New(t)
	e, err := sql.ParseExpr("a = 1 and (b = 2 or c = 3) and d")
	assert.Nil(err)
	list := conjuncts(e)
	assert.Equal(3, len(list))
	assert.Equal("(a = 1)", sql.PrintExpr(list[0]))
	assert.Equal("((b = 2) OR (c = 3))", sql.PrintExpr(list[1]))
	assert.Equal("d", sql.PrintExpr(list[2]))

	assert.Equal("(((a = 1) AND ((b = 2) OR (c = 3))) AND d)", sql.PrintExpr(andAll(list)))
	assert.Nil(andAll(nil))
	assert.Nil(conjuncts(nil))
}

func TestEarlyFilter(t *testing.T) {
	assert := assert.New(t)
	type expect struct {
		static string
		scan   []string
		join   []string
	}
	one := func(code string, e expect) {
		p, err := planOf(t, code)
		assert.Nil(err, code)
		if err != nil {
			return
		}
		assert.Equal(e.static, sql.PrintExpr(p.Precheck), code)
		for idx, f := range e.scan {
			assert.Equal(f, sql.PrintExpr(p.TableScan[idx].Filter), code)
		}
		if e.join == nil {
			assert.Nil(p.Join, code)
		} else {
			for idx, f := range e.join {
				assert.Equal(f, sql.PrintExpr(p.Join.Filter[idx]), code)
			}
		}
	}

	one("select b from t1 where 1 = 1", expect{
		static: "(1 = 1)",
		scan:   []string{""},
	})
	one("select b from t1 where b = 'x' and 2 > 1 and c > 1", expect{
		static: "(2 > 1)",
		scan:   []string{"((b = 'x') AND (c > 1))"},
	})
	one("select b from t1, t2 where t1.c > 1 and t2.y = 2 and t1.a = t2.y", expect{
		static: "",
		scan:   []string{"(t1.c > 1)", "(t2.y = 2)"},
		join:   []string{"", "(t1.a = t2.y)"},
	})
	one("select b from t1, t2, t3 where t1.c = t2.y or k = 1", expect{
		scan: []string{"", "", ""},
		join: []string{"", "", "((t1.c = t2.y) OR (k = 1))"},
	})
	one("select b from t1, t2, t3 where t1.c = t2.y and k = v", expect{
		scan: []string{"", "", "(k = v)"},
		join: []string{"", "(t1.c = t2.y)", ""},
	})
	// an alias drags in the tables of the expression it stands for
	one("select t1.c + t2.y as s from t1, t2 where s > 10", expect{
		scan: []string{"", ""},
		join: []string{"", "(s > 10)"},
	})
	one("select b from t1 where (select 1) = 1", expect{
		static: "((SELECT 1) = 1)",
		scan:   []string{""},
	})
}

func TestAnaEarlyFilter(t *testing.T) {
	assert := assert.New(t)
	s := compAST(t, "select b from t1, t2 where t1.c > 1 and t1.c = t2.y")
	p := newPlan(defSchema(t))
	assert.Nil(p.resolveSymbol(s))
	assert.Equal("(t1.c > 1)", sql.PrintExpr(p.anaEarlyFilter(0, s.Where.Condition)))
	assert.Nil(p.anaEarlyFilter(1, s.Where.Condition))
	assert.Nil(p.anaEarlyFilter(5, s.Where.Condition))
}
