package vdbe

import (
	"sort"
)

// Sorter is the in memory multi key sorter behind SorterOpen and friends.
// Records are buffered by Insert, ordered once by Sort and then consumed one
// by one, the current record being available through Record.
//
// Records that compare equal on every key come out in insertion order.
type Sorter struct {
	keys    []KeyInfo
	records [][]Value
	current []Value
}

func NewSorter(keys []KeyInfo) *Sorter {
	return &Sorter{
		keys: keys,
	}
}

func (self *Sorter) Keys() []KeyInfo { return self.keys }

// Insert buffers a copy of the record.
func (self *Sorter) Insert(rec []Value) {
	cp := make([]Value, len(rec))
	copy(cp, rec)
	self.records = append(self.records, cp)
}

// compare orders two records on the key columns only. Columns after the last
// key are payload and never take part in the ordering.
func (self *Sorter) compare(a, b []Value) int {
	for i, k := range self.keys {
		var va, vb Value
		if i < len(a) {
			va = a[i]
		}
		if i < len(b) {
			vb = b[i]
		}
		var c int
		if k.Desc {
			c = CompareValues(vb, va, k.Collation)
		} else {
			c = CompareValues(va, vb, k.Collation)
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// Sort orders the buffered records and positions on the first one.
func (self *Sorter) Sort() {
	sort.SliceStable(self.records, func(i, j int) bool {
		return self.compare(self.records[i], self.records[j]) < 0
	})

	// consumed from the back
	for i, j := 0, len(self.records)-1; i < j; i, j = i+1, j-1 {
		self.records[i], self.records[j] = self.records[j], self.records[i]
	}
	self.Next()
}

// Next moves to the following record, the sorter is exhausted once Record
// returns nil.
func (self *Sorter) Next() {
	n := len(self.records)
	if n == 0 {
		self.current = nil
		return
	}
	self.current = self.records[n-1]
	self.records[n-1] = nil
	self.records = self.records[:n-1]
}

func (self *Sorter) Record() []Value { return self.current }

func (self *Sorter) HasMore() bool { return self.current != nil }

// Len is the number of records not consumed yet, the current one included.
func (self *Sorter) Len() int {
	n := len(self.records)
	if self.current != nil {
		n++
	}
	return n
}

func (self *Sorter) IsEmpty() bool { return self.Len() == 0 }

// Reset drops every record.
func (self *Sorter) Reset() {
	self.records = nil
	self.current = nil
}
