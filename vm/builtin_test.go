package vm

import (
	"testing"

	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/stretchr/testify/assert"
)

func call(t *testing.T, name string, args ...vdbe.Value) vdbe.Value {
	assert.Nil(t, LookupFunc(name, len(args)), name)
	v, err := callBuiltin(name, args)
	assert.Nil(t, err, name)
	return v
}

func TestLookupFunc(t *testing.T) {
	assert := assert.New(t)
	assert.Nil(LookupFunc("LOWER", 1))
	assert.Nil(LookupFunc("coalesce", 5))
	assert.Nil(LookupFunc(FuncStatPush, 2))

	err := LookupFunc("nope", 1)
	assert.NotNil(err)
	assert.Equal("no such function: nope", err.Error())

	err = LookupFunc("substr", 1)
	assert.NotNil(err)
	assert.Equal("wrong number of arguments to function substr()", err.Error())
}

func TestScalarFunctions(t *testing.T) {
	assert := assert.New(t)
	s := vdbe.TextValue
	i := vdbe.IntValue

	assert.Equal("abc", call(t, "lower", s("AbC")).Text)
	assert.Equal("ABC", call(t, "upper", s("AbC")).Text)
	assert.True(call(t, "upper", vdbe.NullValue()).IsNull())
	assert.Equal(int64(3), call(t, "length", s("héy")).Int)

	assert.Equal("bc", call(t, "substr", s("abcd"), i(2), i(2)).Text)
	assert.Equal("cd", call(t, "substr", s("abcd"), i(-2)).Text)
	assert.Equal("bcd", call(t, "substr", s("abcd"), i(2)).Text)
	assert.Equal("1", call(t, "substr", s("sqlite_autoindex_t_1"), i(20)).Text)

	assert.Equal(int64(5), call(t, "abs", i(-5)).Int)
	assert.Equal(int64(2), call(t, "coalesce", vdbe.NullValue(), i(2), i(3)).Int)
	assert.True(call(t, "nullif", i(1), i(1)).IsNull())
	assert.Equal(int64(1), call(t, "like", s("sqlite_autoindex_t_%"), s("sqlite_autoindex_T_1")).Int)
	assert.Equal(int64(0), call(t, "like", s("a_"), s("abc")).Int)
	assert.Equal("integer", call(t, "typeof", i(1)).Text)
	assert.Equal(3.0, call(t, "round", vdbe.RealValue(2.5)).Real)
	assert.Equal(-1.3, call(t, "round", vdbe.RealValue(-1.25), i(1)).Real)
	assert.Equal("axxd", call(t, "replace", s("abcd"), s("bc"), s("xx")).Text)
	assert.Equal(int64(3), call(t, "instr", s("abcd"), s("cd")).Int)
	assert.Equal("x", call(t, "trim", s("  x ")).Text)
	assert.Equal(int64(1), call(t, "min", i(3), i(1), i(2)).Int)
	assert.True(call(t, "max", i(3), vdbe.NullValue()).IsNull())
}

func TestRenameTable(t *testing.T) {
	assert := assert.New(t)
	s := vdbe.TextValue

	v := call(t, FuncRenameTable, s("CREATE TABLE t (a INTEGER PRIMARY KEY, b)"), s("table"), s("T"), s("u"))
	assert.Equal("CREATE TABLE u (a INTEGER PRIMARY KEY, b)", v.Text)

	v = call(t, FuncRenameTable, s("CREATE INDEX i ON t (b DESC)"), s("index"), s("t"), s("u"))
	assert.Equal("CREATE INDEX i ON u (b DESC)", v.Text)

	// auto indexes carry no SQL
	assert.True(call(t, FuncRenameTable, vdbe.NullValue(), s("index"), s("t"), s("u")).IsNull())

	_, err := callBuiltin(FuncRenameTable, []vdbe.Value{s("CREATE TABL"), s("table"), s("t"), s("u")})
	assert.NotNil(err)
}
