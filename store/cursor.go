package store

import (
	"fmt"

	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/emirpasic/gods/trees/redblacktree"
)

const (
	SeekGE = iota
	SeekGT
	SeekLE
	SeekLT
)

// Cursor walks one BTree. The position is remembered by key, not by node, so
// a cursor survives the deletion of the row it stands on: the following Next
// lands on the row after the deleted one.
type Cursor struct {
	bt    *BTree
	key   interface{}
	valid bool
}

func (self *BTree) Cursor() *Cursor {
	return &Cursor{bt: self}
}

func (self *Cursor) Tree() *BTree { return self.bt }

func (self *Cursor) set(n *redblacktree.Node) bool {
	if n == nil {
		self.valid = false
		self.key = nil
		return false
	}
	self.valid = true
	self.key = n.Key
	return true
}

// Valid reports whether the cursor stands on an entry
func (self *Cursor) Valid() bool { return self.valid }

// First moves to the first entry, false when the tree is empty
func (self *Cursor) First() bool { return self.set(self.bt.first()) }

// Last moves to the last entry, false when the tree is empty
func (self *Cursor) Last() bool { return self.set(self.bt.last()) }

func (self *Cursor) Next() bool {
	if !self.valid {
		return false
	}
	return self.set(self.bt.higher(self.key))
}

func (self *Cursor) Prev() bool {
	if !self.valid {
		return false
	}
	return self.set(self.bt.lower(self.key))
}

// SeekRowid moves a table cursor onto the rowid
func (self *Cursor) SeekRowid(rowid int64) bool {
	if _, ok := self.bt.tree.Get(rowid); ok {
		self.valid = true
		self.key = rowid
		return true
	}
	self.valid = false
	return false
}

// Seek positions an index cursor relative to a key prefix
func (self *Cursor) Seek(op int, key []vdbe.Value) bool {
	var n *redblacktree.Node
	cmp := func(e []vdbe.Value) int { return self.bt.comparePrefix(e, key) }
	switch op {
	case SeekGE:
		n = self.bt.leftmost(func(e []vdbe.Value) bool { return cmp(e) >= 0 })
	case SeekGT:
		n = self.bt.leftmost(func(e []vdbe.Value) bool { return cmp(e) > 0 })
	case SeekLE:
		n = self.bt.rightmost(func(e []vdbe.Value) bool { return cmp(e) <= 0 })
	case SeekLT:
		n = self.bt.rightmost(func(e []vdbe.Value) bool { return cmp(e) < 0 })
	}
	return self.set(n)
}

// ComparePrefix compares the current index entry with the key prefix
func (self *Cursor) ComparePrefix(key []vdbe.Value) int {
	return self.bt.comparePrefix(self.IndexKey(), key)
}

func (self *Cursor) Rowid() int64 {
	if !self.valid || self.bt.IsIndex {
		return 0
	}
	return self.key.(int64)
}

// Record returns the record bytes of a table entry
func (self *Cursor) Record() []byte {
	if !self.valid || self.bt.IsIndex {
		return nil
	}
	v, ok := self.bt.tree.Get(self.key)
	if !ok {
		return nil
	}
	return v.([]byte)
}

// IndexKey returns the columns of the current index entry
func (self *Cursor) IndexKey() []vdbe.Value {
	if !self.valid || !self.bt.IsIndex {
		return nil
	}
	return self.key.([]vdbe.Value)
}

// IndexRowid is the trailing rowid column of an index entry
func (self *Cursor) IndexRowid() (int64, error) {
	k := self.IndexKey()
	if len(k) == 0 {
		return 0, fmt.Errorf("cursor is not on an index entry")
	}
	last := k[len(k)-1]
	if last.Ty != vdbe.ValueInt {
		return 0, fmt.Errorf("index entry has no rowid")
	}
	return last.Int, nil
}

// Count is the exact number of entries
func (self *Cursor) Count() int64 { return int64(self.bt.Size()) }

// Insert writes the table row and leaves the cursor on it
func (self *Cursor) Insert(rowid int64, record []byte) error {
	if self.bt.IsIndex {
		return fmt.Errorf("insert of a row into index tree %d", self.bt.Root)
	}
	self.bt.tree.Put(rowid, record)
	self.valid = true
	self.key = rowid
	return nil
}

// InsertIndex adds the index entry and leaves the cursor on it
func (self *Cursor) InsertIndex(key []vdbe.Value) error {
	if !self.bt.IsIndex {
		return fmt.Errorf("insert of an index entry into table tree %d", self.bt.Root)
	}
	cp := make([]vdbe.Value, len(key))
	copy(cp, key)
	self.bt.tree.Put(cp, nil)
	self.valid = true
	self.key = cp
	return nil
}

// Delete removes the current entry. The cursor keeps the deleted key so the
// next step moves to its successor.
func (self *Cursor) Delete() error {
	if !self.valid {
		return fmt.Errorf("delete on a cursor with no current row")
	}
	self.bt.tree.Remove(self.key)
	return nil
}

// DeleteIndex removes the entry equal to key, a missing entry is ignored.
func (self *Cursor) DeleteIndex(key []vdbe.Value) error {
	if !self.bt.IsIndex {
		return fmt.Errorf("index delete on table tree %d", self.bt.Root)
	}
	self.bt.tree.Remove(key)
	return nil
}

// NewRowid is one more than the largest rowid in use
func (self *Cursor) NewRowid() int64 {
	n := self.bt.last()
	if n == nil {
		return 1
	}
	return n.Key.(int64) + 1
}
