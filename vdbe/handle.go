package vdbe

import (
	"fmt"
)

// Register is a 1-based index into the register file of one program. The
// zero register is reserved and never handed out by the builder.
type Register int

// RegisterRange is a contiguous span of registers, used for records and
// argument lists.
type RegisterRange struct {
	Start Register
	Count int
}

// At returns the i-th register of the range. Indexing outside of the range
// is a bookkeeping bug in the caller and panics.
func (self RegisterRange) At(i int) Register {
	if i < 0 || i >= self.Count {
		panic(fmt.Sprintf("register range r[%d..%d]: index %d out of bounds",
			self.Start, self.Last(), i))
	}
	return self.Start + Register(i)
}

// Last is the final register of the range. For an empty range it is the
// register just before Start.
func (self RegisterRange) Last() Register {
	return self.Start + Register(self.Count) - 1
}

func (self RegisterRange) Empty() bool { return self.Count == 0 }

func (self RegisterRange) Contains(r Register) bool {
	return r >= self.Start && r < self.Start+Register(self.Count)
}

// Slice expands the range into individual registers.
func (self RegisterRange) Slice() []Register {
	out := make([]Register, self.Count)
	for i := 0; i < self.Count; i++ {
		out[i] = self.Start + Register(i)
	}
	return out
}

// Sub returns the count registers starting at offset off within the range.
func (self RegisterRange) Sub(off, count int) RegisterRange {
	if off < 0 || count < 0 || off+count > self.Count {
		panic(fmt.Sprintf("register range r[%d..%d]: sub range [%d, %d) out of bounds",
			self.Start, self.Last(), off, off+count))
	}
	return RegisterRange{Start: self.Start + Register(off), Count: count}
}

func (self RegisterRange) String() string {
	if self.Count == 1 {
		return fmt.Sprintf("r[%d]", self.Start)
	}
	return fmt.Sprintf("r[%d..%d]", self.Start, self.Last())
}

// Cursor identifies one open iteration resource. Cursors are numbered from 0
// and never reused inside one compilation.
type Cursor int

// Label is a symbolic jump target, an index into the program's label table.
type Label int

// InsnPos is the address of an instruction inside a program.
type InsnPos int

// LoopLabels is the contract of every loop emitting combinator: Start is the
// first body instruction, Next is the step instruction and End is the first
// instruction after the loop.
type LoopLabels struct {
	Start Label
	Next  Label
	End   Label
}

const (
	CursorBTreeTable = iota
	CursorBTreeIndex
	CursorPseudo
	CursorSorter
	CursorEphemeral
	CursorVirtual
)

// CursorInfo is the metadata recorded when a cursor is allocated. It is used
// by the explain listing and by the runtime to bind cursors to storage.
type CursorInfo struct {
	Kind       int
	Name       string // table or index name, empty for transient cursors
	RootPage   int
	Columns    []string
	NumColumns int
	Keys       []KeyInfo // index / sorter key ordering
	Module     string    // virtual table module
}

func CursorKindName(k int) string {
	switch k {
	case CursorBTreeTable:
		return "table"
	case CursorBTreeIndex:
		return "index"
	case CursorPseudo:
		return "pseudo"
	case CursorSorter:
		return "sorter"
	case CursorEphemeral:
		return "ephemeral"
	case CursorVirtual:
		return "vtab"
	default:
		return "unknown"
	}
}

// ColumnName returns a printable name of column i of the cursor.
func (self *CursorInfo) ColumnName(i int) string {
	if i >= 0 && i < len(self.Columns) && self.Columns[i] != "" {
		return self.Columns[i]
	}
	return fmt.Sprintf("column %d", i)
}

// DisplayName is the table/index name, or a generic cursor label.
func (self *CursorInfo) DisplayName(c Cursor) string {
	if self.Name != "" {
		return self.Name
	}
	return fmt.Sprintf("cursor %d", c)
}
