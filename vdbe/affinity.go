package vdbe

import (
	"strconv"
	"strings"
)

// Affinity is the preferred storage class of a column.
type Affinity int

const (
	AffinityBlob Affinity = iota
	AffinityText
	AffinityNumeric
	AffinityInteger
	AffinityReal
)

// Code is the single letter used inside affinity strings of MakeRecord.
func (self Affinity) Code() byte {
	return "ABCDE"[self]
}

func (self Affinity) Name() string {
	switch self {
	case AffinityText:
		return "TEXT"
	case AffinityNumeric:
		return "NUMERIC"
	case AffinityInteger:
		return "INTEGER"
	case AffinityReal:
		return "REAL"
	default:
		return "BLOB"
	}
}

func AffinityFromCode(c byte) Affinity {
	switch c {
	case 'B':
		return AffinityText
	case 'C':
		return AffinityNumeric
	case 'D':
		return AffinityInteger
	case 'E':
		return AffinityReal
	default:
		return AffinityBlob
	}
}

// DetermineAffinity applies the declared-type rules: INT, then CHAR/CLOB/TEXT,
// then BLOB or no type, then REAL/FLOA/DOUB, and NUMERIC for everything else.
func DetermineAffinity(typeName string) Affinity {
	if typeName == "" {
		return AffinityBlob
	}
	upper := strings.ToUpper(typeName)
	switch {
	case strings.Contains(upper, "INT"):
		return AffinityInteger
	case strings.Contains(upper, "CHAR"),
		strings.Contains(upper, "CLOB"),
		strings.Contains(upper, "TEXT"):
		return AffinityText
	case strings.Contains(upper, "BLOB"):
		return AffinityBlob
	case strings.Contains(upper, "REAL"),
		strings.Contains(upper, "FLOA"),
		strings.Contains(upper, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}

// ApplyAffinity coerces v toward the affinity without losing information.
func ApplyAffinity(v Value, aff Affinity) Value {
	switch aff {
	case AffinityText:
		if v.IsNumeric() {
			return TextValue(v.String())
		}
		return v
	case AffinityNumeric, AffinityInteger:
		switch v.Ty {
		case ValueText:
			n, full := parseNumericPrefix(v.Text)
			if !full {
				return v
			}
			return integralIfExact(n)
		case ValueReal:
			return integralIfExact(v)
		}
		return v
	case AffinityReal:
		switch v.Ty {
		case ValueInt:
			return RealValue(float64(v.Int))
		case ValueText:
			n, full := parseNumericPrefix(v.Text)
			if !full {
				return v
			}
			return RealValue(n.AsReal())
		}
		return v
	default:
		return v
	}
}

func integralIfExact(v Value) Value {
	if v.Ty == ValueReal {
		i := int64(v.Real)
		if float64(i) == v.Real && v.Real > -9.2e18 && v.Real < 9.2e18 {
			return IntValue(i)
		}
	}
	return v
}

// CastValue implements CAST(v AS type). Unlike ApplyAffinity it always
// converts.
func CastValue(v Value, aff Affinity) Value {
	if v.IsNull() {
		return v
	}
	switch aff {
	case AffinityText:
		switch v.Ty {
		case ValueBlob:
			return TextValue(string(v.Blob))
		default:
			return TextValue(v.String())
		}
	case AffinityInteger:
		return IntValue(v.AsInt())
	case AffinityReal:
		return RealValue(v.AsReal())
	case AffinityNumeric:
		switch v.Ty {
		case ValueText:
			n, _ := parseNumericPrefix(v.Text)
			return integralIfExact(n)
		case ValueBlob:
			n, _ := parseNumericPrefix(string(v.Blob))
			return integralIfExact(n)
		}
		return integralIfExact(v)
	default:
		switch v.Ty {
		case ValueText:
			return BlobValue([]byte(v.Text))
		case ValueInt:
			return BlobValue([]byte(strconv.FormatInt(v.Int, 10)))
		case ValueReal:
			return BlobValue([]byte(v.String()))
		}
		return v
	}
}
