package vdbe

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	ValueNull = iota
	ValueInt
	ValueReal
	ValueText
	ValueBlob
)

// Value is the dynamically typed content of one register or one record column.
type Value struct {
	Ty   int
	Int  int64
	Real float64
	Text string
	Blob []byte
}

func NullValue() Value          { return Value{Ty: ValueNull} }
func IntValue(v int64) Value    { return Value{Ty: ValueInt, Int: v} }
func RealValue(v float64) Value { return Value{Ty: ValueReal, Real: v} }
func TextValue(v string) Value  { return Value{Ty: ValueText, Text: v} }
func BlobValue(v []byte) Value  { return Value{Ty: ValueBlob, Blob: v} }
func BoolValue(v bool) Value {
	if v {
		return IntValue(1)
	}
	return IntValue(0)
}

func (self Value) IsNull() bool    { return self.Ty == ValueNull }
func (self Value) IsNumeric() bool { return self.Ty == ValueInt || self.Ty == ValueReal }

func (self Value) TypeName() string {
	switch self.Ty {
	case ValueNull:
		return "null"
	case ValueInt:
		return "integer"
	case ValueReal:
		return "real"
	case ValueText:
		return "text"
	default:
		return "blob"
	}
}

// String renders the value the way a result row is printed.
func (self Value) String() string {
	switch self.Ty {
	case ValueNull:
		return "NULL"
	case ValueInt:
		return strconv.FormatInt(self.Int, 10)
	case ValueReal:
		return formatReal(self.Real)
	case ValueText:
		return self.Text
	default:
		return fmt.Sprintf("x'%X'", self.Blob)
	}
}

// Literal renders the value as a SQL literal, used by the explain listing.
func (self Value) Literal() string {
	switch self.Ty {
	case ValueText:
		return "'" + strings.ReplaceAll(self.Text, "'", "''") + "'"
	default:
		return self.String()
	}
}

func formatReal(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// AsReal converts numeric-looking values into a float, text is parsed with
// the longest numeric prefix rule and anything else becomes 0.
func (self Value) AsReal() float64 {
	switch self.Ty {
	case ValueInt:
		return float64(self.Int)
	case ValueReal:
		return self.Real
	case ValueText:
		v, _ := parseNumericPrefix(self.Text)
		return v.AsReal()
	case ValueBlob:
		v, _ := parseNumericPrefix(string(self.Blob))
		return v.AsReal()
	default:
		return 0
	}
}

func (self Value) AsInt() int64 {
	switch self.Ty {
	case ValueInt:
		return self.Int
	case ValueReal:
		return realToInt(self.Real)
	case ValueText, ValueBlob:
		s := self.Text
		if self.Ty == ValueBlob {
			s = string(self.Blob)
		}
		v, _ := parseNumericPrefix(s)
		if v.Ty == ValueReal {
			return realToInt(v.Real)
		}
		return v.Int
	default:
		return 0
	}
}

func realToInt(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

// Truth returns the boolean interpretation of the value. The second return
// is true when the value is NULL, in which case the first one is meaningless.
func (self Value) Truth() (bool, bool) {
	switch self.Ty {
	case ValueNull:
		return false, true
	case ValueInt:
		return self.Int != 0, false
	case ValueReal:
		return self.Real != 0, false
	default:
		return self.AsReal() != 0, false
	}
}

// parseNumericPrefix parses the longest numeric prefix of s. The returned
// flag reports whether the whole (trimmed) string was consumed.
func parseNumericPrefix(s string) (Value, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return IntValue(0), false
	}
	end := 0
	seenDigit := false
	seenDot := false
	seenExp := false
	if end < len(t) && (t[end] == '+' || t[end] == '-') {
		end++
	}
	for end < len(t) {
		c := t[end]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			if end+1 < len(t) && (t[end+1] == '+' || t[end+1] == '-') {
				end++
			}
			seenExp = true
		default:
			goto done
		}
		end++
	}
done:
	if !seenDigit {
		return IntValue(0), false
	}
	prefix := t[:end]
	full := end == len(t)
	if !seenDot && !seenExp {
		if i, err := strconv.ParseInt(prefix, 10, 64); err == nil {
			return IntValue(i), full
		}
	}
	f, err := strconv.ParseFloat(strings.TrimRight(prefix, "eE+-"), 64)
	if err != nil {
		return IntValue(0), false
	}
	return RealValue(f), full
}

func typeRank(v Value) int {
	switch v.Ty {
	case ValueNull:
		return 0
	case ValueInt, ValueReal:
		return 1
	case ValueText:
		return 2
	default:
		return 3
	}
}

// CompareValues orders two values: NULL first, then numbers, then text (using the
// collation), then blobs.
func CompareValues(a, b Value, coll Collation) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 0:
		return 0
	case 1:
		if a.Ty == ValueInt && b.Ty == ValueInt {
			switch {
			case a.Int < b.Int:
				return -1
			case a.Int > b.Int:
				return 1
			default:
				return 0
			}
		}
		fa, fb := a.AsReal(), b.AsReal()
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case 2:
		return coll.Compare(a.Text, b.Text)
	default:
		return bytes.Compare(a.Blob, b.Blob)
	}
}

// CompareRecords compares two value slices column by column, honouring the
// per-column key description. Missing key infos default to ascending binary.
func CompareRecords(a, b []Value, keys []KeyInfo) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		k := KeyInfo{}
		if i < len(keys) {
			k = keys[i]
		}
		c := CompareValues(a[i], b[i], k.Collation)
		if k.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// KeyInfo describes how one key column of a sorter or index is ordered.
type KeyInfo struct {
	Desc      bool
	Collation Collation
}

func (self KeyInfo) String() string {
	d := "ASC"
	if self.Desc {
		d = "DESC"
	}
	return fmt.Sprintf("%s %s", self.Collation.Name(), d)
}
