package vdbe

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func drain(s *Sorter) [][]Value {
	out := [][]Value{}
	for s.HasMore() {
		out = append(out, s.Record())
		s.Next()
	}
	return out
}

func TestSorterBasic(t *testing.T) {
	assert := assert.New(t)

	s := NewSorter([]KeyInfo{{}})
	assert.True(s.IsEmpty())
	s.Insert([]Value{IntValue(3), TextValue("c")})
	s.Insert([]Value{IntValue(1), TextValue("a")})
	s.Insert([]Value{NullValue(), TextValue("n")})
	s.Insert([]Value{IntValue(2), TextValue("b")})
	assert.Equal(4, s.Len())

	s.Sort()
	got := drain(s)
	assert.Equal(4, len(got))
	assert.True(got[0][0].IsNull())
	assert.Equal("a", got[1][1].Text)
	assert.Equal("b", got[2][1].Text)
	assert.Equal("c", got[3][1].Text)
	assert.True(s.IsEmpty())
}

func TestSorterDescAndCollation(t *testing.T) {
	assert := assert.New(t)

	s := NewSorter([]KeyInfo{
		{Collation: CollNoCase},
		{Desc: true},
	})
	s.Insert([]Value{TextValue("b"), IntValue(1)})
	s.Insert([]Value{TextValue("A"), IntValue(1)})
	s.Insert([]Value{TextValue("a"), IntValue(2)})
	s.Insert([]Value{TextValue("B"), IntValue(5)})
	s.Sort()

	got := drain(s)
	assert.Equal("a", got[0][0].Text)
	assert.Equal("A", got[1][0].Text)
	assert.Equal("B", got[2][0].Text)
	assert.Equal("b", got[3][0].Text)
}

func TestSorterStable(t *testing.T) {
	assert := assert.New(t)

	s := NewSorter([]KeyInfo{{}})
	for i := 0; i < 10; i++ {
		s.Insert([]Value{IntValue(int64(i % 2)), IntValue(int64(i))})
	}
	s.Sort()
	got := drain(s)

	prev := map[int64]int64{0: -1, 1: -1}
	for _, r := range got {
		k, seq := r[0].Int, r[1].Int
		assert.True(seq > prev[k])
		prev[k] = seq
	}
}

// Every adjacent pair of the output is ordered with respect to the keys.
func TestSorterOrderingRandom(t *testing.T) {
	assert := assert.New(t)
	rnd := rand.New(rand.NewSource(42))

	gen := func() Value {
		switch rnd.Intn(5) {
		case 0:
			return NullValue()
		case 1:
			return IntValue(rnd.Int63n(20) - 10)
		case 2:
			return RealValue(float64(rnd.Intn(40)) / 4)
		case 3:
			return TextValue(string(rune('A' + rnd.Intn(6))))
		default:
			return BlobValue([]byte{byte(rnd.Intn(4))})
		}
	}

	for round := 0; round < 50; round++ {
		keys := []KeyInfo{
			{Desc: rnd.Intn(2) == 0, Collation: Collation(rnd.Intn(3))},
			{Desc: rnd.Intn(2) == 0, Collation: Collation(rnd.Intn(3))},
		}
		s := NewSorter(keys)
		n := rnd.Intn(40)
		for i := 0; i < n; i++ {
			s.Insert([]Value{gen(), gen(), IntValue(int64(i))})
		}
		s.Sort()
		got := drain(s)
		assert.Equal(n, len(got))

		for i := 1; i < len(got); i++ {
			c := CompareRecords(got[i-1][:2], got[i][:2], keys)
			assert.True(c <= 0)
			if c == 0 {
				assert.True(got[i-1][2].Int < got[i][2].Int)
			}
		}
	}
}
