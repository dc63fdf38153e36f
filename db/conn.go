// Package db glues the pieces together: a statement is parsed, translated
// against the connection's schema (through the program cache when one is
// configured) and executed by the reference machine over a shared store.
package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dianpeng/sqlvdbe/cg"
	"github.com/dianpeng/sqlvdbe/internal/logging"
	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/store"
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/dianpeng/sqlvdbe/vm"
	"github.com/google/uuid"
)

var (
	ErrInterrupted = errors.New("interrupted")
	ErrBusy        = store.ErrBusy
)

type Options struct {
	// CacheSize is the program cache budget in instructions, zero disables
	// the cache
	CacheSize int64

	Logger *slog.Logger
}

// Conn is one session over a store. A Conn is not safe for concurrent use,
// open one per goroutine, they coordinate through the store's write lock.
type Conn struct {
	id     string
	store  *store.Store
	sess   *store.Session
	schema *schema.Schema
	cache  *cg.Cache
	log    *slog.Logger
}

func Open(st *store.Store, opt *Options) (*Conn, error) {
	if opt == nil {
		opt = &Options{}
	}
	l := opt.Logger
	if l == nil {
		l = logging.Logger()
	}
	id := uuid.NewString()

	self := &Conn{
		id:    id,
		store: st,
		sess:  st.NewSession(),
		log:   l.With("conn", id),
	}
	if opt.CacheSize > 0 {
		c, err := cg.NewCache(opt.CacheSize)
		if err != nil {
			return nil, err
		}
		self.cache = c
	}
	if err := self.reloadSchema(); err != nil {
		return nil, err
	}
	return self, nil
}

func (self *Conn) ID() string { return self.id }

func (self *Conn) Schema() *schema.Schema { return self.schema }

func (self *Conn) Session() *store.Session { return self.sess }

func (self *Conn) Close() {
	if self.cache != nil {
		self.cache.Close()
	}
	if !self.sess.AutoCommit() {
		if err := self.sess.Rollback(); err != nil {
			self.log.Warn("rollback on close", "error", err)
		}
	}
}

func (self *Conn) reloadSchema() error {
	sc, err := self.store.LoadSchema()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	self.adoptSchema(sc)
	return nil
}

// adoptSchema switches to sc. Programs compiled for a version at or above
// the new one cannot be trusted anymore once the version went back.
func (self *Conn) adoptSchema(sc *schema.Schema) {
	if self.schema != nil && self.cache != nil && sc.Version <= self.schema.Version {
		self.log.Debug("program cache cleared", "from", self.schema.Version, "to", sc.Version)
		self.cache.Clear()
	}
	self.schema = sc
}

// refreshSchema picks up schema changes made through other connections or
// undone by a rollback, both show as a cookie different from ours
func (self *Conn) refreshSchema() error {
	if self.store.Cookie() == self.schema.Version {
		return nil
	}
	self.log.Debug("schema changed", "from", self.schema.Version, "to", self.store.Cookie())
	return self.reloadSchema()
}

// compile translates the statement, consulting the cache first
func (self *Conn) compile(code *sql.Code, text string) (*vdbe.Program, error) {
	version := self.schema.Version
	if self.cache != nil {
		if p, ok := self.cache.Get(version, text); ok {
			self.log.Debug("program cache hit", "sql", text, "version", version)
			return p, nil
		}
		self.log.Debug("program cache miss", "sql", text, "version", version)
	}

	p, err := cg.Translate(self.schema, code, &cg.Config{Logger: self.log})
	if err != nil {
		return nil, err
	}
	if self.cache != nil {
		self.cache.Put(version, text, p)
	}
	return p, nil
}

// Prepare compiles one statement. An EXPLAIN statement yields the listing
// of the inner statement's program instead of running it.
func (self *Conn) Prepare(text string) (*Stmt, error) {
	if err := self.refreshSchema(); err != nil {
		return nil, err
	}
	code, err := sql.Parse(text)
	if err != nil {
		return nil, err
	}
	p, err := self.compile(code, text)
	if err != nil {
		return nil, err
	}

	if code.Explain {
		return &Stmt{
			conn:    self,
			prog:    p,
			explain: vdbe.Explain(p),
			isExpl:  true,
		}, nil
	}
	return &Stmt{
		conn: self,
		prog: p,
		m:    vm.New(p, self.sess, self.schema),
	}, nil
}

// Exec runs a statement to completion and returns the number of rows it
// changed. Rows produced by the statement are discarded.
func (self *Conn) Exec(text string) (int64, error) {
	st, err := self.Prepare(text)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	for {
		r, err := st.Step()
		if err != nil {
			return 0, err
		}
		switch r {
		case vm.StepDone:
			return st.Changes(), nil
		case vm.StepBusy:
			return 0, ErrBusy
		case vm.StepInterrupt:
			return 0, ErrInterrupted
		}
	}
}

// ExecScript runs every statement of a script separated by semicolons
func (self *Conn) ExecScript(script string) error {
	stmts, err := sql.Split(script)
	if err != nil {
		return err
	}
	for _, text := range stmts {
		if _, err := self.Exec(text); err != nil {
			return fmt.Errorf("%s: %w", text, err)
		}
	}
	return nil
}

type Rows struct {
	Columns []string
	Values  [][]vdbe.Value
}

// Strings renders every row as its values joined by sep
func (self *Rows) Strings(sep string) []string {
	out := make([]string, 0, len(self.Values))
	for _, r := range self.Values {
		s := ""
		for i, v := range r {
			if i > 0 {
				s += sep
			}
			s += v.String()
		}
		out = append(out, s)
	}
	return out
}

// Query runs a statement and collects all of its rows
func (self *Conn) Query(text string) (*Rows, error) {
	st, err := self.Prepare(text)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	rows := &Rows{Columns: st.Columns()}
	for {
		r, err := st.Step()
		if err != nil {
			return nil, err
		}
		switch r {
		case vm.StepRow:
			rows.Values = append(rows.Values, st.Row())
		case vm.StepDone:
			return rows, nil
		case vm.StepBusy:
			return nil, ErrBusy
		case vm.StepInterrupt:
			return nil, ErrInterrupted
		}
	}
}

// Explain compiles the statement and returns its listing, the statement
// may or may not carry the EXPLAIN keyword
func (self *Conn) Explain(text string) ([]vdbe.ExplainRow, error) {
	if err := self.refreshSchema(); err != nil {
		return nil, err
	}
	code, err := sql.Parse(text)
	if err != nil {
		return nil, err
	}
	p, err := self.compile(code, text)
	if err != nil {
		return nil, err
	}
	return vdbe.Explain(p), nil
}
