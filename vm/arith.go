package vm

import (
	"fmt"
	"math"

	"github.com/dianpeng/sqlvdbe/vdbe"
)

// toNumeric converts text and blobs with the longest numeric prefix rule
func toNumeric(v vdbe.Value) vdbe.Value {
	switch v.Ty {
	case vdbe.ValueText, vdbe.ValueBlob:
		return vdbe.CastValue(v, vdbe.AffinityNumeric)
	default:
		return v
	}
}

func arith(op int, lhs, rhs vdbe.Value) (vdbe.Value, error) {
	switch op {
	case vdbe.OpAnd:
		return logicAnd(lhs, rhs), nil
	case vdbe.OpOr:
		return logicOr(lhs, rhs), nil
	}

	if lhs.IsNull() || rhs.IsNull() {
		return vdbe.NullValue(), nil
	}

	switch op {
	case vdbe.OpConcat:
		return vdbe.TextValue(concatText(lhs) + concatText(rhs)), nil
	case vdbe.OpBitAnd:
		return vdbe.IntValue(toNumeric(lhs).AsInt() & toNumeric(rhs).AsInt()), nil
	case vdbe.OpBitOr:
		return vdbe.IntValue(toNumeric(lhs).AsInt() | toNumeric(rhs).AsInt()), nil
	}

	a := toNumeric(lhs)
	b := toNumeric(rhs)
	if a.Ty == vdbe.ValueInt && b.Ty == vdbe.ValueInt {
		if v, ok := intArith(op, a.Int, b.Int); ok {
			return v, nil
		}
	}

	x := a.AsReal()
	y := b.AsReal()
	switch op {
	case vdbe.OpAdd:
		return vdbe.RealValue(x + y), nil
	case vdbe.OpSubtract:
		return vdbe.RealValue(x - y), nil
	case vdbe.OpMultiply:
		return vdbe.RealValue(x * y), nil
	case vdbe.OpDivide:
		if y == 0 {
			return vdbe.NullValue(), nil
		}
		return vdbe.RealValue(x / y), nil
	case vdbe.OpRemainder:
		if y == 0 {
			return vdbe.NullValue(), nil
		}
		return vdbe.RealValue(math.Mod(x, y)), nil
	}
	return vdbe.NullValue(), fmt.Errorf("unknown arithmetic opcode %s", vdbe.OpName(op))
}

// intArith returns false when the operation overflows or needs a real
// result, the caller falls back to floating point.
func intArith(op int, a, b int64) (vdbe.Value, bool) {
	switch op {
	case vdbe.OpAdd:
		s := a + b
		if (b > 0 && s < a) || (b < 0 && s > a) {
			return vdbe.Value{}, false
		}
		return vdbe.IntValue(s), true
	case vdbe.OpSubtract:
		s := a - b
		if (b < 0 && s < a) || (b > 0 && s > a) {
			return vdbe.Value{}, false
		}
		return vdbe.IntValue(s), true
	case vdbe.OpMultiply:
		if a == 0 || b == 0 {
			return vdbe.IntValue(0), true
		}
		p := a * b
		if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return vdbe.Value{}, false
		}
		return vdbe.IntValue(p), true
	case vdbe.OpDivide:
		if b == 0 {
			return vdbe.NullValue(), true
		}
		if a == math.MinInt64 && b == -1 {
			return vdbe.Value{}, false
		}
		return vdbe.IntValue(a / b), true
	case vdbe.OpRemainder:
		if b == 0 {
			return vdbe.NullValue(), true
		}
		if b == -1 {
			return vdbe.IntValue(0), true
		}
		return vdbe.IntValue(a % b), true
	}
	return vdbe.Value{}, false
}

func concatText(v vdbe.Value) string {
	if v.Ty == vdbe.ValueBlob {
		return string(v.Blob)
	}
	return v.String()
}

// three valued AND
func logicAnd(lhs, rhs vdbe.Value) vdbe.Value {
	a, an := lhs.Truth()
	b, bn := rhs.Truth()
	switch {
	case (!an && !a) || (!bn && !b):
		return vdbe.BoolValue(false)
	case an || bn:
		return vdbe.NullValue()
	default:
		return vdbe.BoolValue(true)
	}
}

// three valued OR
func logicOr(lhs, rhs vdbe.Value) vdbe.Value {
	a, an := lhs.Truth()
	b, bn := rhs.Truth()
	switch {
	case (!an && a) || (!bn && b):
		return vdbe.BoolValue(true)
	case an || bn:
		return vdbe.NullValue()
	default:
		return vdbe.BoolValue(false)
	}
}
