package plan

import (
	"testing"

	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/stretchr/testify/assert"
)

func TestExprTableAccess(t *testing.T) {
	assert := assert.New(t)
	s := compAST(t, "select b from t1, t2, t3 where (t1.c + k) * y > 1")
	p := newPlan(defSchema(t))
	assert.Nil(p.resolveSymbol(s))

	root := s.Where.Condition
	info := newExprTableAccessInfo(root)
	set := info.setOrNil(root)
	assert.Equal("0;1;2;", set.Print())
	assert.Equal(2, set.Max())
	assert.False(set.Single())
	assert.True(info.Ref(root, 1))

	rhs := root.(*sql.Binary).R
	rset := info.setOrNil(rhs)
	assert.True(rset.Static())
	assert.Equal(-1, rset.Max())

	empty := newExprTableAccessInfo(nil)
	assert.Nil(empty.setOrNil(root))
}

func TestExprCollation(t *testing.T) {
	assert := assert.New(t)
	s := compAST(t, "select b, c, b collate rtrim, 'x' from t1")
	p := newPlan(defSchema(t))
	assert.Nil(p.resolveSymbol(s))

	v := func(i int) sql.Expr { return s.Projection.ValueList[i].(*sql.Col).Value }

	assert.Equal(vdbe.CollNoCase, p.Collation(v(0)))
	assert.Equal(vdbe.CollBinary, p.Collation(v(1)))
	assert.Equal(vdbe.CollRTrim, p.Collation(v(2)))
	assert.Equal(vdbe.CollBinary, p.Collation(v(3)))

	// explicit wins, then the left column, then the right column
	assert.Equal(vdbe.CollRTrim, p.CompareCollation(v(0), v(2)))
	assert.Equal(vdbe.CollNoCase, p.CompareCollation(v(0), v(1)))
	assert.Equal(vdbe.CollNoCase, p.CompareCollation(v(3), v(0)))
	assert.Equal(vdbe.CollBinary, p.CompareCollation(v(1), v(0)))
}

func TestExprAffinity(t *testing.T) {
	assert := assert.New(t)
	s := compAST(t, "select a, b, c, x, cast(x as real), 1 + 1 from t1, t2")
	p := newPlan(defSchema(t))
	assert.Nil(p.resolveSymbol(s))

	v := func(i int) sql.Expr { return s.Projection.ValueList[i].(*sql.Col).Value }
	assert.Equal(vdbe.AffinityInteger, p.Affinity(v(0)))
	assert.Equal(vdbe.AffinityText, p.Affinity(v(1)))
	assert.Equal(vdbe.AffinityReal, p.Affinity(v(2)))
	assert.Equal(vdbe.AffinityBlob, p.Affinity(v(3)))
	assert.Equal(vdbe.AffinityReal, p.Affinity(v(4)))
	assert.Equal(vdbe.AffinityBlob, p.Affinity(v(5)))
}
