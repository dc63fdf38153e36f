package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dianpeng/sqlvdbe/vdbe"
)

// Aggregator is the running state of one aggregate call inside one group.
type Aggregator interface {
	Step([]vdbe.Value) error

	// Value is the result so far, Final the result once the group is done
	Value() vdbe.Value
	Final() vdbe.Value
}

// NewAggregator returns an empty accumulator for the aggregate function.
func NewAggregator(name string) (Aggregator, error) {
	switch strings.ToLower(name) {
	case "count":
		return &aggCount{}, nil
	case "sum":
		return &aggSum{}, nil
	case "total":
		return &aggSum{total: true}, nil
	case "avg":
		return &aggSum{avg: true}, nil
	case "min":
		return &aggMinMax{sign: -1}, nil
	case "max":
		return &aggMinMax{sign: 1}, nil
	default:
		return nil, fmt.Errorf("no such aggregate function: %s", name)
	}
}

// count(*) is stepped with no argument
type aggCount struct {
	n int64
}

func (self *aggCount) Step(args []vdbe.Value) error {
	if len(args) == 0 || !args[0].IsNull() {
		self.n++
	}
	return nil
}

func (self *aggCount) Value() vdbe.Value { return vdbe.IntValue(self.n) }
func (self *aggCount) Final() vdbe.Value { return self.Value() }

// aggSum implements sum, total and avg. The sum stays an integer until a
// real value shows up or the integer sum overflows.
type aggSum struct {
	total bool
	avg   bool

	n      int64
	isReal bool
	ival   int64
	rval   float64
	err    bool
}

func (self *aggSum) Step(args []vdbe.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	if v.Ty == vdbe.ValueText || v.Ty == vdbe.ValueBlob {
		v = vdbe.CastValue(v, vdbe.AffinityNumeric)
	}
	self.n++
	self.rval += v.AsReal()
	if self.isReal || v.Ty == vdbe.ValueReal {
		self.isReal = true
		return nil
	}
	s := self.ival + v.Int
	if (v.Int > 0 && s < self.ival) || (v.Int < 0 && s > self.ival) {
		self.err = true
	}
	self.ival = s
	return nil
}

func (self *aggSum) Value() vdbe.Value {
	switch {
	case self.total:
		return vdbe.RealValue(self.rval)
	case self.n == 0:
		return vdbe.NullValue()
	case self.avg:
		return vdbe.RealValue(self.rval / float64(self.n))
	case self.isReal:
		return vdbe.RealValue(self.rval)
	default:
		return vdbe.IntValue(self.ival)
	}
}

func (self *aggSum) Final() vdbe.Value { return self.Value() }

// overflowed reports an integer sum() that no longer fits, the machine turns
// it into a runtime error when the group is finalized
func (self *aggSum) overflowed() bool {
	return self.err && !self.isReal && !self.total && !self.avg
}

type aggMinMax struct {
	sign int
	best vdbe.Value
	seen bool
}

func (self *aggMinMax) Step(args []vdbe.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	if !self.seen || vdbe.CompareValues(v, self.best, vdbe.CollBinary)*self.sign > 0 {
		self.best = v
		self.seen = true
	}
	return nil
}

func (self *aggMinMax) Value() vdbe.Value {
	if !self.seen {
		return vdbe.NullValue()
	}
	return self.best
}

func (self *aggMinMax) Final() vdbe.Value { return self.Value() }

// ----------------------------------------------------------------------------
// StatAccum is the accumulator behind stat_init/stat_push/stat_get. It counts
// the rows of an index and, per key column, how many distinct prefixes end
// at that column.
// ----------------------------------------------------------------------------

type StatAccum struct {
	nRow      int64
	nDistinct []int64
}

func NewStatAccum(numColumns int) *StatAccum {
	return &StatAccum{
		nDistinct: make([]int64, numColumns),
	}
}

// Push records one index row. chng is the first key column at which the row
// differs from the previous one, every prefix from that column on is new.
func (self *StatAccum) Push(chng int) {
	if self.nRow == 0 {
		chng = 0
	}
	self.nRow++
	if chng < 0 {
		chng = 0
	}
	for i := chng; i < len(self.nDistinct); i++ {
		self.nDistinct[i]++
	}
}

// Stat renders "total avg1 avg2 ..." where avgN is the average number of
// rows sharing one distinct prefix of N columns, rounded up.
func (self *StatAccum) Stat() string {
	buf := strings.Builder{}
	buf.WriteString(strconv.FormatInt(self.nRow, 10))
	for _, d := range self.nDistinct {
		avg := int64(0)
		if d > 0 {
			avg = (self.nRow + d - 1) / d
		}
		buf.WriteString(" ")
		buf.WriteString(strconv.FormatInt(avg, 10))
	}
	return buf.String()
}

func (self *StatAccum) Rows() int64 { return self.nRow }
