package store

import (
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// BTree is the in memory stand-in of one b-tree of the database file. A
// table tree maps an int64 rowid to the record bytes, an index tree is keyed
// by the decoded index record and carries no payload.
type BTree struct {
	Root    int
	IsIndex bool

	keys []vdbe.KeyInfo
	tree *redblacktree.Tree
}

func newTableTree(root int) *BTree {
	return &BTree{
		Root: root,
		tree: redblacktree.NewWith(utils.Int64Comparator),
	}
}

func newIndexTree(root int, keys []vdbe.KeyInfo) *BTree {
	bt := &BTree{
		Root:    root,
		IsIndex: true,
		keys:    keys,
	}
	bt.tree = redblacktree.NewWith(bt.compareKey)
	return bt
}

func (self *BTree) compareKey(a, b interface{}) int {
	return vdbe.CompareRecords(a.([]vdbe.Value), b.([]vdbe.Value), self.keys)
}

// SetKeys changes the ordering of an index tree. The order of a non empty
// tree is fixed by its content, so only an empty tree accepts new keys.
func (self *BTree) SetKeys(keys []vdbe.KeyInfo) {
	if !self.IsIndex || self.tree.Size() != 0 || len(keys) == 0 {
		return
	}
	self.keys = keys
}

func (self *BTree) Keys() []vdbe.KeyInfo { return self.keys }

func (self *BTree) Size() int { return self.tree.Size() }

// clone copies the tree, record bytes are shared since they are never
// modified in place.
func (self *BTree) clone() *BTree {
	var out *BTree
	if self.IsIndex {
		out = newIndexTree(self.Root, self.keys)
	} else {
		out = newTableTree(self.Root)
	}
	it := self.tree.Iterator()
	for it.Next() {
		out.tree.Put(it.Key(), it.Value())
	}
	return out
}

// ----------------------------------------------------------------------------
// searching, every lookup goes through the comparator of the tree or through
// a prefix predicate on the index record
// ----------------------------------------------------------------------------

func (self *BTree) first() *redblacktree.Node { return self.tree.Left() }
func (self *BTree) last() *redblacktree.Node  { return self.tree.Right() }

// higher returns the smallest entry strictly greater than key
func (self *BTree) higher(key interface{}) *redblacktree.Node {
	var found *redblacktree.Node
	n := self.tree.Root
	for n != nil {
		if self.tree.Comparator(n.Key, key) > 0 {
			found = n
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return found
}

// lower returns the largest entry strictly smaller than key
func (self *BTree) lower(key interface{}) *redblacktree.Node {
	var found *redblacktree.Node
	n := self.tree.Root
	for n != nil {
		if self.tree.Comparator(n.Key, key) < 0 {
			found = n
			n = n.Right
		} else {
			n = n.Left
		}
	}
	return found
}

// comparePrefix compares the leading columns of an index entry with key
func (self *BTree) comparePrefix(entry, key []vdbe.Value) int {
	n := len(key)
	if len(entry) < n {
		n = len(entry)
	}
	return vdbe.CompareRecords(entry[:n], key[:n], self.keys)
}

// leftmost returns the smallest entry for which pred holds, pred must be
// monotonic over the tree order (false ... false true ... true).
func (self *BTree) leftmost(pred func([]vdbe.Value) bool) *redblacktree.Node {
	var found *redblacktree.Node
	n := self.tree.Root
	for n != nil {
		if pred(n.Key.([]vdbe.Value)) {
			found = n
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return found
}

// rightmost returns the largest entry for which pred holds, pred must be
// monotonic over the tree order (true ... true false ... false).
func (self *BTree) rightmost(pred func([]vdbe.Value) bool) *redblacktree.Node {
	var found *redblacktree.Node
	n := self.tree.Root
	for n != nil {
		if pred(n.Key.([]vdbe.Value)) {
			found = n
			n = n.Right
		} else {
			n = n.Left
		}
	}
	return found
}
