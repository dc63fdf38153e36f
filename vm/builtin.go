package vm

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// ----------------------------------------------------------------------------
//
// Builtin scalar functions. Every function reachable through the Function
// instruction is registered here with its arity, the code generator checks
// calls against the same table so a program never names an unknown function.
//
// ----------------------------------------------------------------------------

type builtinFunc struct {
	minArg int
	maxArg int // -1 for variadic
	fn     func([]vdbe.Value) (vdbe.Value, error)
}

const (
	FuncStatInit = "stat_init"
	FuncStatPush = "stat_push"
	FuncStatGet  = "stat_get"

	// FuncRenameTable rewrites the CREATE statement of a catalog row,
	// sqlite_rename_table(sql, type, old, new)
	FuncRenameTable = "sqlite_rename_table"
)

var builtins map[string]*builtinFunc

func init() {
	builtins = map[string]*builtinFunc{
		"lower":    {1, 1, fnLower},
		"upper":    {1, 1, fnUpper},
		"length":   {1, 1, fnLength},
		"substr":   {2, 3, fnSubstr},
		"abs":      {1, 1, fnAbs},
		"coalesce": {2, -1, fnCoalesce},
		"ifnull":   {2, 2, fnCoalesce},
		"nullif":   {2, 2, fnNullIf},
		"like":     {2, 3, fnLike},
		"typeof":   {1, 1, fnTypeof},
		"round":    {1, 2, fnRound},
		"replace":  {3, 3, fnReplace},
		"instr":    {2, 2, fnInstr},
		"trim":     {1, 2, fnTrim(strings.Trim)},
		"ltrim":    {1, 2, fnTrim(strings.TrimLeft)},
		"rtrim":    {1, 2, fnTrim(strings.TrimRight)},
		"min":      {2, -1, fnMinMax(-1)},
		"max":      {2, -1, fnMinMax(1)},

		FuncRenameTable: {4, 4, fnRenameTable},

		// the statistics accumulator keeps state in the machine, see stat.go
		FuncStatInit: {1, 1, nil},
		FuncStatPush: {2, 2, nil},
		FuncStatGet:  {1, 1, nil},
	}
}

// LookupFunc checks that name is a scalar function accepting nargs
// arguments.
func LookupFunc(name string, nargs int) error {
	f, ok := builtins[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("no such function: %s", name)
	}
	if nargs < f.minArg || (f.maxArg >= 0 && nargs > f.maxArg) {
		return fmt.Errorf("wrong number of arguments to function %s()", name)
	}
	return nil
}

func callBuiltin(name string, args []vdbe.Value) (vdbe.Value, error) {
	f, ok := builtins[strings.ToLower(name)]
	if !ok || f.fn == nil {
		return vdbe.NullValue(), fmt.Errorf("no such function: %s", name)
	}
	return f.fn(args)
}

func fnLower(args []vdbe.Value) (vdbe.Value, error) {
	if args[0].IsNull() {
		return args[0], nil
	}
	return vdbe.TextValue(strings.ToLower(args[0].String())), nil
}

func fnUpper(args []vdbe.Value) (vdbe.Value, error) {
	if args[0].IsNull() {
		return args[0], nil
	}
	return vdbe.TextValue(strings.ToUpper(args[0].String())), nil
}

func fnLength(args []vdbe.Value) (vdbe.Value, error) {
	v := args[0]
	switch v.Ty {
	case vdbe.ValueNull:
		return v, nil
	case vdbe.ValueBlob:
		return vdbe.IntValue(int64(len(v.Blob))), nil
	default:
		return vdbe.IntValue(int64(utf8.RuneCountInString(v.String()))), nil
	}
}

// substr(x, start[, len]) with 1 based start, a negative start counts from
// the end of the string.
func fnSubstr(args []vdbe.Value) (vdbe.Value, error) {
	for _, a := range args {
		if a.IsNull() {
			return vdbe.NullValue(), nil
		}
	}
	runes := []rune(args[0].String())
	n := int64(len(runes))
	start := args[1].AsInt()
	length := n + 1
	if len(args) == 3 {
		length = args[2].AsInt()
	}

	if start < 0 {
		start = n + start + 1
		if start < 1 {
			length += start - 1
			start = 1
		}
	} else if start == 0 {
		start = 1
		length--
	}
	if length < 0 {
		start += length
		length = -length
		if start < 1 {
			length += start - 1
			start = 1
		}
	}

	from := start - 1
	if from >= n || length <= 0 {
		return vdbe.TextValue(""), nil
	}
	to := from + length
	if to > n {
		to = n
	}
	return vdbe.TextValue(string(runes[from:to])), nil
}

func fnAbs(args []vdbe.Value) (vdbe.Value, error) {
	v := args[0]
	switch v.Ty {
	case vdbe.ValueNull:
		return v, nil
	case vdbe.ValueInt:
		if v.Int == math.MinInt64 {
			return vdbe.NullValue(), fmt.Errorf("integer overflow")
		}
		if v.Int < 0 {
			return vdbe.IntValue(-v.Int), nil
		}
		return v, nil
	default:
		return vdbe.RealValue(math.Abs(v.AsReal())), nil
	}
}

func fnCoalesce(args []vdbe.Value) (vdbe.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return vdbe.NullValue(), nil
}

func fnNullIf(args []vdbe.Value) (vdbe.Value, error) {
	if vdbe.CompareValues(args[0], args[1], vdbe.CollBinary) == 0 {
		return vdbe.NullValue(), nil
	}
	return args[0], nil
}

// like(pattern, text[, escape]), the operand order of the SQL function
func fnLike(args []vdbe.Value) (vdbe.Value, error) {
	for _, a := range args {
		if a.IsNull() {
			return vdbe.NullValue(), nil
		}
	}
	esc := sql.NoEscape
	if len(args) == 3 {
		e := []rune(args[2].String())
		if len(e) != 1 {
			return vdbe.NullValue(), fmt.Errorf("ESCAPE expression must be a single character")
		}
		esc = e[0]
	}
	ok, err := sql.Like(args[0].String(), args[1].String(), esc)
	if err != nil {
		return vdbe.NullValue(), err
	}
	return vdbe.BoolValue(ok), nil
}

func fnTypeof(args []vdbe.Value) (vdbe.Value, error) {
	return vdbe.TextValue(args[0].TypeName()), nil
}

func fnRound(args []vdbe.Value) (vdbe.Value, error) {
	if args[0].IsNull() {
		return args[0], nil
	}
	digits := int64(0)
	if len(args) == 2 {
		if args[1].IsNull() {
			return args[1], nil
		}
		digits = args[1].AsInt()
		if digits < 0 {
			digits = 0
		}
	}
	p := math.Pow(10, float64(digits))
	f := args[0].AsReal()
	if f < 0 {
		return vdbe.RealValue(-math.Floor(-f*p+0.5) / p), nil
	}
	return vdbe.RealValue(math.Floor(f*p+0.5) / p), nil
}

func fnReplace(args []vdbe.Value) (vdbe.Value, error) {
	for _, a := range args {
		if a.IsNull() {
			return vdbe.NullValue(), nil
		}
	}
	from := args[1].String()
	if from == "" {
		return vdbe.TextValue(args[0].String()), nil
	}
	return vdbe.TextValue(strings.ReplaceAll(args[0].String(), from, args[2].String())), nil
}

func fnInstr(args []vdbe.Value) (vdbe.Value, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return vdbe.NullValue(), nil
	}
	hay := args[0].String()
	idx := strings.Index(hay, args[1].String())
	if idx < 0 {
		return vdbe.IntValue(0), nil
	}
	return vdbe.IntValue(int64(utf8.RuneCountInString(hay[:idx])) + 1), nil
}

func fnTrim(trim func(string, string) string) func([]vdbe.Value) (vdbe.Value, error) {
	return func(args []vdbe.Value) (vdbe.Value, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		cut := " "
		if len(args) == 2 {
			if args[1].IsNull() {
				return args[1], nil
			}
			cut = args[1].String()
		}
		return vdbe.TextValue(trim(args[0].String(), cut)), nil
	}
}

// multi argument min()/max(), NULL when any argument is NULL
func fnMinMax(sign int) func([]vdbe.Value) (vdbe.Value, error) {
	return func(args []vdbe.Value) (vdbe.Value, error) {
		best := args[0]
		for _, a := range args {
			if a.IsNull() {
				return a, nil
			}
			if vdbe.CompareValues(a, best, vdbe.CollBinary)*sign > 0 {
				best = a
			}
		}
		return best, nil
	}
}

// fnRenameTable points the CREATE statement stored in a catalog row at the
// new table name. Rows without SQL, like auto indexes, stay NULL.
func fnRenameTable(args []vdbe.Value) (vdbe.Value, error) {
	if args[0].IsNull() {
		return args[0], nil
	}
	text := args[0].String()
	kind := args[1].String()
	from := args[2].String()
	to := args[3].String()

	code, err := sql.Parse(text)
	if err != nil {
		return vdbe.NullValue(), fmt.Errorf("malformed schema entry %q: %w", text, err)
	}
	switch stmt := code.Stmt.(type) {
	case *sql.CreateTable:
		if kind == "table" && strings.EqualFold(stmt.Name, from) {
			stmt.Name = to
		}
	case *sql.CreateIndex:
		if strings.EqualFold(stmt.Table, from) {
			stmt.Table = to
		}
	default:
		return args[0], nil
	}
	return vdbe.TextValue(sql.PrintStmt(code.Stmt)), nil
}
