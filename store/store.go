// Package store keeps the b-trees of a database in memory. Every tree is an
// ordered red-black tree addressed by its root page number, root page 1 is
// always the sqlite_schema table.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

var (
	// ErrBusy is returned when another session holds the write lock
	ErrBusy = errors.New("database is locked")

	ErrNoSuchTree = errors.New("no such b-tree")
)

type state struct {
	trees    map[int]*BTree
	nextRoot int
	cookie   int
}

func (self *state) clone() *state {
	out := &state{
		trees:    make(map[int]*BTree, len(self.trees)),
		nextRoot: self.nextRoot,
		cookie:   self.cookie,
	}
	for k, v := range self.trees {
		out.trees[k] = v.clone()
	}
	return out
}

type Store struct {
	mu     sync.Mutex
	st     *state
	writer *Session

	// ioHook, when set, is asked before a cursor moves. Returning true means
	// the page is not in memory yet and the caller should come back later.
	ioHook func(root int) bool
}

func New() *Store {
	st := &state{
		trees:    map[int]*BTree{},
		nextRoot: schema.SchemaRootPage + 1,
	}
	st.trees[schema.SchemaRootPage] = newTableTree(schema.SchemaRootPage)
	return &Store{
		st: st,
	}
}

// Tree returns the b-tree rooted at root
func (self *Store) Tree(root int) (*BTree, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	bt, ok := self.st.trees[root]
	if !ok {
		return nil, fmt.Errorf("root page %d: %w", root, ErrNoSuchTree)
	}
	return bt, nil
}

// CreateTree allocates a new root page
func (self *Store) CreateTree(isIndex bool) int {
	self.mu.Lock()
	defer self.mu.Unlock()
	root := self.st.nextRoot
	self.st.nextRoot++
	if isIndex {
		self.st.trees[root] = newIndexTree(root, nil)
	} else {
		self.st.trees[root] = newTableTree(root)
	}
	return root
}

// Ephemeral returns a private tree that is never part of the database
func (self *Store) Ephemeral(isIndex bool, keys []vdbe.KeyInfo) *BTree {
	if isIndex {
		return newIndexTree(0, keys)
	}
	return newTableTree(0)
}

func (self *Store) Cookie() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.st.cookie
}

func (self *Store) SetCookie(v int) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.st.cookie = v
}

func (self *Store) SetIOHook(hook func(root int) bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.ioHook = hook
}

// IOPending reports whether moving a cursor of the tree must wait
func (self *Store) IOPending(root int) bool {
	self.mu.Lock()
	hook := self.ioHook
	self.mu.Unlock()
	return hook != nil && hook(root)
}

// SchemaRows decodes the content of sqlite_schema
func (self *Store) SchemaRows() ([]schema.Row, error) {
	bt, err := self.Tree(schema.SchemaRootPage)
	if err != nil {
		return nil, err
	}
	out := []schema.Row{}
	c := bt.Cursor()
	for ok := c.First(); ok; ok = c.Next() {
		vals, err := vdbe.DecodeRecord(c.Record())
		if err != nil {
			return nil, fmt.Errorf("sqlite_schema rowid %d: %w", c.Rowid(), err)
		}
		if len(vals) < schema.SchemaNumColumns {
			return nil, fmt.Errorf("sqlite_schema rowid %d: short record", c.Rowid())
		}
		row := schema.Row{
			Type:     vals[schema.SchemaColType].String(),
			Name:     vals[schema.SchemaColName].String(),
			TblName:  vals[schema.SchemaColTblName].String(),
			RootPage: int(vals[schema.SchemaColRootPage].AsInt()),
		}
		if sqlv := vals[schema.SchemaColSQL]; !sqlv.IsNull() {
			row.SQL = sqlv.String()
		}
		out = append(out, row)
	}
	return out, nil
}

// LoadSchema rebuilds the catalog from sqlite_schema
func (self *Store) LoadSchema() (*schema.Schema, error) {
	rows, err := self.SchemaRows()
	if err != nil {
		return nil, err
	}
	return schema.Load(rows, self.Cookie())
}

// ----------------------------------------------------------------------------
// Sessions. The store has a single writer: the session that holds the write
// lock. A snapshot of the whole state is taken when the lock is acquired
// (transaction rollback) and when a statement starts writing (statement
// rollback).
// ----------------------------------------------------------------------------

type Session struct {
	store      *Store
	autocommit bool
	txn        *state // snapshot at the start of the write transaction
	stmt       *state // snapshot at the start of the statement
}

func (self *Store) NewSession() *Session {
	return &Session{
		store:      self,
		autocommit: true,
	}
}

func (self *Session) Store() *Store { return self.store }

func (self *Session) AutoCommit() bool { return self.autocommit }

func (self *Session) HoldsLock() bool {
	self.store.mu.Lock()
	defer self.store.mu.Unlock()
	return self.store.writer == self
}

// BeginWrite acquires the write lock for the statement about to run
func (self *Session) BeginWrite() error {
	s := self.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil && s.writer != self {
		return ErrBusy
	}
	if s.writer == nil {
		s.writer = self
		self.txn = s.st.clone()
	}
	self.stmt = s.st.clone()
	return nil
}

// EndStatement closes the statement, committing it when the session is in
// autocommit mode. A failed statement is undone.
func (self *Session) EndStatement(failed bool) {
	s := self.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != self {
		return
	}
	if failed && self.stmt != nil {
		s.st = self.stmt
	}
	self.stmt = nil
	if self.autocommit {
		s.writer = nil
		self.txn = nil
	}
}

// Begin leaves autocommit mode
func (self *Session) Begin() error {
	if !self.autocommit {
		return fmt.Errorf("cannot start a transaction within a transaction")
	}
	self.autocommit = false
	return nil
}

// Commit releases the write lock and returns to autocommit mode
func (self *Session) Commit() error {
	if self.autocommit {
		return fmt.Errorf("cannot commit - no transaction is active")
	}
	self.autocommit = true
	self.release(false)
	return nil
}

// Rollback undoes the transaction and returns to autocommit mode
func (self *Session) Rollback() error {
	if self.autocommit {
		return fmt.Errorf("cannot rollback - no transaction is active")
	}
	self.autocommit = true
	self.release(true)
	return nil
}

func (self *Session) release(undo bool) {
	s := self.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != self {
		return
	}
	if undo && self.txn != nil {
		s.st = self.txn
	}
	s.writer = nil
	self.txn = nil
	self.stmt = nil
}
