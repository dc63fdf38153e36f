package vm

import (
	"fmt"

	"github.com/dianpeng/sqlvdbe/store"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// cursor is the live state behind one Cursor handle of a program. Table,
// index and ephemeral cursors walk a b-tree, sorter cursors own a sorter and
// pseudo cursors read a single record out of a register.
type cursor struct {
	info *vdbe.CursorInfo

	bt     *store.BTree
	cur    *store.Cursor
	sorter *vdbe.Sorter

	pseudo   vdbe.Register
	isPseudo bool

	// set by NullRow, every column reads NULL until the cursor moves
	nullRow bool

	// pending DeferredSeek, the index cursor whose rowid locates the row
	deferred *cursor

	// decoded record of the current table row
	cache      []vdbe.Value
	cacheValid bool
}

func (self *cursor) moved() {
	self.nullRow = false
	self.cacheValid = false
}

func (self *cursor) isIndex() bool {
	return self.bt != nil && self.bt.IsIndex
}

func (self *cursor) root() int {
	if self.bt == nil {
		return 0
	}
	return self.bt.Root
}

// resolve finishes a pending DeferredSeek
func (self *cursor) resolve() error {
	if self.deferred == nil {
		return nil
	}
	idx := self.deferred
	self.deferred = nil
	rowid, err := idx.cur.IndexRowid()
	if err != nil {
		return err
	}
	self.moved()
	if !self.cur.SeekRowid(rowid) {
		return fmt.Errorf("index entry points at missing rowid %d", rowid)
	}
	return nil
}

// record returns the decoded content of the current row
func (self *cursor) record(regs []vdbe.Value) ([]vdbe.Value, error) {
	if self.isPseudo {
		v := regs[self.pseudo]
		if v.Ty != vdbe.ValueBlob {
			return nil, nil
		}
		return vdbe.DecodeRecord(v.Blob)
	}
	if self.sorter != nil {
		return self.sorter.Record(), nil
	}
	if self.cur == nil || !self.cur.Valid() {
		return nil, nil
	}
	if self.isIndex() {
		return self.cur.IndexKey(), nil
	}
	if !self.cacheValid {
		vals, err := vdbe.DecodeRecord(self.cur.Record())
		if err != nil {
			return nil, err
		}
		self.cache = vals
		self.cacheValid = true
	}
	return self.cache, nil
}

func (self *cursor) column(regs []vdbe.Value, col int) (vdbe.Value, error) {
	if self.nullRow {
		return vdbe.NullValue(), nil
	}
	if err := self.resolve(); err != nil {
		return vdbe.NullValue(), err
	}
	rec, err := self.record(regs)
	if err != nil {
		return vdbe.NullValue(), err
	}
	if col < 0 || col >= len(rec) {
		return vdbe.NullValue(), nil
	}
	return rec[col], nil
}

func (self *cursor) rowid() (vdbe.Value, error) {
	if self.nullRow {
		return vdbe.NullValue(), nil
	}
	if err := self.resolve(); err != nil {
		return vdbe.NullValue(), err
	}
	if self.cur == nil || !self.cur.Valid() {
		return vdbe.NullValue(), nil
	}
	if self.isIndex() {
		id, err := self.cur.IndexRowid()
		if err != nil {
			return vdbe.NullValue(), err
		}
		return vdbe.IntValue(id), nil
	}
	return vdbe.IntValue(self.cur.Rowid()), nil
}
