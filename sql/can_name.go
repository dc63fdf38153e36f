package sql

import (
	"fmt"
)

const (
	CanNameFree = iota
	CanNameExpr
	CanNameTableColumn
	CanNameAgg
)

// RowidColumn is the column index of a table's rowid
const RowidColumn = -1

type CanName struct {
	TableIndex  int
	ColumnIndex int
	Reference   Expr // points to another expression that this name referenced with
	Type        int  // type of can name
}

func (self *CanName) Set(tidx, cidx int) {
	if self.IsSettled() {
		panic("This CanName has been settled")
	}
	self.TableIndex = tidx
	self.ColumnIndex = cidx
	self.Type = CanNameTableColumn
}

// SetAgg marks the name as the idx-th aggregate slot
func (self *CanName) SetAgg(idx int) {
	if self.IsSettled() {
		panic("This CanName has been settled")
	}
	self.TableIndex = -1
	self.ColumnIndex = idx
	self.Type = CanNameAgg
}

func (self *CanName) SetRef(ref Expr) {
	if self.IsSettled() {
		panic("This CanName has been settled")
	}
	self.Reference = ref

	// we need to populate the TableIndex/ColumnIndex chasing down the reference
	// node, TableIndex/ColumnIndex *must always* be correct.
	r := self.Reference
	self.Type = CanNameExpr // assume it to be expression

	for {
		ref, ok := r.(*Ref)
		if !ok {
			break
		}
		if ref.CanName.IsReference() {
			r = ref.CanName.Reference
			continue
		}
		if ref.CanName.IsTableColumn() {
			self.TableIndex = ref.CanName.TableIndex
			self.ColumnIndex = ref.CanName.ColumnIndex
		}
		break
	}
}

func (self *CanName) IsExpr() bool { return self.Type == CanNameExpr }
func (self *CanName) IsAgg() bool  { return self.Type == CanNameAgg }
func (self *CanName) IsReference() bool {
	return self.IsSettled() && self.Reference != nil
}

func (self *CanName) IsTableColumn() bool {
	return self.Type == CanNameTableColumn
}
func (self *CanName) IsRowid() bool {
	return self.IsTableColumn() && self.ColumnIndex == RowidColumn
}
func (self *CanName) IsSettled() bool { return self.Type != CanNameFree }
func (self *CanName) IsFree() bool    { return self.Type == CanNameFree }

func (self *CanName) Reset() {
	self.Reference = nil
	self.Type = CanNameFree
}

func (self *CanName) Print() string {
	switch {
	case self.IsFree():
		return "N/A"
	case self.IsAgg():
		return fmt.Sprintf("agg:%d", self.ColumnIndex)
	case self.Reference != nil:
		return fmt.Sprintf("ref:{%s}", PrintExpr(self.Reference))
	default:
		return fmt.Sprintf("%d:%d", self.TableIndex, self.ColumnIndex)
	}
}
