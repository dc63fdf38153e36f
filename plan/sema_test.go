package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSema(t *testing.T) {
	assert := assert.New(t)
	bad := func(code string, msg string) {
		_, err := planOf(t, code)
		assert.NotNil(err, code)
		if err != nil {
			assert.Equal(msg, err.Error(), code)
		}
	}
	good := func(code string) {
		_, err := planOf(t, code)
		assert.Nil(err, code)
	}

	bad("select b from t1 where count(*) > 1", "misuse of aggregate: count()")
	bad("select count(*) as n from t1 where n > 1", "misuse of aggregate: count()")
	bad("select b from t1 group by sum(c)", "aggregate functions are not allowed in the GROUP BY clause: sum()")
	bad("select b from t1 having b > 1", "a GROUP BY clause is required before HAVING")

	good("select b from t1 group by b having b > 1")
	good("select count(*) from t1 having count(*) > 1")
	good("select b, c from t1 group by b")
	good("select max(c), b from t1")
}

func TestSemaColumnSize(t *testing.T) {
	assert := assert.New(t)
	s := compAST(t, "select a, b, c from t1")
	p := newPlan(defSchema(t))
	p.Config.MaxColumnSize = 2
	err := p.plan(s)
	assert.NotNil(err)
	assert.Equal("too many columns in result set", err.Error())
}
