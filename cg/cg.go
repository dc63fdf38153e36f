package cg

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dianpeng/sqlvdbe/internal/logging"
	"github.com/dianpeng/sqlvdbe/plan"
	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// error code carried by Halt when a constraint is violated
const errConstraint = 19

var (
	ErrNoSuchTable   = errors.New("no such table")
	ErrNameCollision = errors.New("name collision")
	ErrNotAlterable  = errors.New("not alterable")
	ErrWithoutRowid  = errors.New("without rowid")
	ErrUnsupported   = errors.New("unsupported")
)

// translateError carries the message shown to the user and the sentinel it
// can be matched against with errors.Is
type translateError struct {
	kind error
	msg  string
}

func (self *translateError) Error() string { return self.msg }
func (self *translateError) Unwrap() error { return self.kind }

func errorf(kind error, f string, args ...interface{}) error {
	return &translateError{kind: kind, msg: fmt.Sprintf(f, args...)}
}

type Config struct {
	// Logger receives the debug records of the translator, the package
	// logger is used when it is nil
	Logger *slog.Logger
}

// Translate compiles one parsed statement against the schema into a
// program. EXPLAIN is not handled here, the caller renders the program
// instead of running it.
func Translate(s *schema.Schema, code *sql.Code, config *Config) (*vdbe.Program, error) {
	if code == nil || code.Stmt == nil {
		return nil, errorf(ErrUnsupported, "empty statement")
	}
	g := newGenerator(s, config)
	if err := g.genProgram(code.Stmt); err != nil {
		return nil, err
	}
	return g.b.Build(statementText(code))
}

func statementText(code *sql.Code) string {
	if code.CodeInfo.Snippet != "" {
		return code.CodeInfo.Snippet
	}
	return sql.PrintStmt(code.Stmt)
}

// generator is the per statement translation state. Nested statements
// produced by deepParse share it, they emit into the same builder.
type generator struct {
	b      *vdbe.Builder
	schema *schema.Schema
	log    *slog.Logger

	write bool // statement writes, Transaction takes the write lock
	txn   bool // statement runs inside of a Transaction at all

	// a subquery's AST can only be planned once, the plan is kept for
	// every later visit
	subPlans map[*sql.Subquery]*plan.Plan
}

func newGenerator(s *schema.Schema, config *Config) *generator {
	l := logging.Logger()
	if config != nil && config.Logger != nil {
		l = config.Logger
	}
	return &generator{
		b:        vdbe.NewBuilder(),
		schema:   s,
		log:      l,
		txn:      true,
		subPlans: make(map[*sql.Subquery]*plan.Plan),
	}
}

// genProgram lays out the fixed skeleton of every program:
//
//	Init txn ; body: <statement> ; Halt ; txn: Transaction ; Goto body
func (self *generator) genProgram(stmt sql.Stmt) error {
	b := self.b
	body := b.AllocLabel()
	txn := b.AllocLabel()

	b.Emit(&vdbe.Init{Target: txn})
	if err := b.BindHere(body); err != nil {
		return err
	}
	if err := self.genStmt(stmt); err != nil {
		return err
	}
	b.Emit(&vdbe.Halt{})

	if err := b.BindHere(txn); err != nil {
		return err
	}
	if self.txn {
		b.Emit(&vdbe.Transaction{Write: self.write})
	}
	b.Emit(&vdbe.Goto{Target: body})
	return nil
}

func (self *generator) genStmt(stmt sql.Stmt) error {
	switch x := stmt.(type) {
	case *sql.Select:
		return self.genSelectStmt(x)
	case *sql.Insert:
		return self.genInsert(x)
	case *sql.Update:
		return self.genUpdate(x)
	case *sql.Delete:
		return self.genDelete(x)
	case *sql.CreateTable:
		return self.genCreateTable(x)
	case *sql.CreateIndex:
		return self.genCreateIndex(x)
	case *sql.AlterTable:
		return self.genAlterTable(x)
	case *sql.Analyze:
		return self.genAnalyze(x)
	case *sql.Begin, *sql.Commit, *sql.Rollback:
		return self.genTx(stmt)
	default:
		return errorf(ErrUnsupported, "unsupported statement")
	}
}

// deepParse compiles a statement written as SQL text into the current
// program. Reserved tables may be written while it runs.
func (self *generator) deepParse(text string) error {
	code, err := sql.Parse(text)
	if err != nil {
		return fmt.Errorf("deep parse: %w", err)
	}

	depth := self.b.EnterNested()
	self.log.Debug("deep parse", "sql", text, "nested", depth)
	err = self.genStmt(code.Stmt)
	self.b.LeaveNested()
	return err
}

func (self *generator) nested() bool { return self.b.Nested() > 0 }

func (self *generator) genSelectStmt(s *sql.Select) error {
	p, err := plan.PlanSelect(self.schema, s)
	if err != nil {
		return err
	}
	if !self.nested() {
		self.b.ResultColumns = p.Output.Names()
	}
	return self.genSelect(p, func(row vdbe.RegisterRange) error {
		self.b.Emit(&vdbe.ResultRow{Regs: row})
		return nil
	})
}

// subqueryPlan plans a scalar subquery the first time it is seen
func (self *generator) subqueryPlan(x *sql.Subquery) (*plan.Plan, error) {
	if p, ok := self.subPlans[x]; ok {
		return p, nil
	}
	p, err := plan.PlanSelect(self.schema, x.Select)
	if err != nil {
		return nil, err
	}
	if len(p.Output.VarList) != 1 {
		return nil, errorf(ErrUnsupported,
			"sub-select returns %d columns - expected 1", len(p.Output.VarList))
	}
	self.subPlans[x] = p
	return p, nil
}

// ----------------------------------------------------------------------------
// cursors
// ----------------------------------------------------------------------------

func (self *generator) openTable(t *schema.Table, write bool) vdbe.Cursor {
	c := self.b.AllocCursor(vdbe.CursorInfo{
		Kind:     vdbe.CursorBTreeTable,
		Name:     t.Name,
		RootPage: t.RootPage,
		Columns:  t.ColumnNames(),
	})
	if write {
		self.b.Emit(&vdbe.OpenWrite{Cursor: c, RootPage: t.RootPage})
	} else {
		self.b.Emit(&vdbe.OpenRead{Cursor: c, RootPage: t.RootPage})
	}
	return c
}

func (self *generator) indexCursor(idx *schema.Index) vdbe.Cursor {
	return self.b.AllocCursor(vdbe.CursorInfo{
		Kind:       vdbe.CursorBTreeIndex,
		Name:       idx.Name,
		RootPage:   idx.RootPage,
		Columns:    idx.ColumnNames(),
		NumColumns: len(idx.Columns) + 1,
		Keys:       idx.KeyInfo(),
	})
}

func (self *generator) openIndex(idx *schema.Index, write bool) vdbe.Cursor {
	c := self.indexCursor(idx)
	if write {
		self.b.Emit(&vdbe.OpenWrite{Cursor: c, RootPage: idx.RootPage})
	} else {
		self.b.Emit(&vdbe.OpenRead{Cursor: c, RootPage: idx.RootPage})
	}
	return c
}

// openSchemaTable opens sqlite_schema for writing
func (self *generator) openSchemaTable() (vdbe.Cursor, error) {
	t, ok := self.schema.Table(schema.SchemaTableName)
	if !ok {
		return 0, errorf(ErrNoSuchTable, "no such table: %s", schema.SchemaTableName)
	}
	return self.openTable(t, true), nil
}

// genSchemaEntry appends one row to sqlite_schema. An empty text stores
// NULL in the sql column.
func (self *generator) genSchemaEntry(
	cur vdbe.Cursor,
	ty string,
	name string,
	tbl string,
	root vdbe.Register,
	text string,
) {
	b := self.b
	regs := b.AllocRegisters(5)
	b.Emit(&vdbe.String8{Value: ty, Dest: regs.At(schema.SchemaColType)})
	b.Emit(&vdbe.String8{Value: name, Dest: regs.At(schema.SchemaColName)})
	b.Emit(&vdbe.String8{Value: tbl, Dest: regs.At(schema.SchemaColTblName)})
	b.Emit(&vdbe.SCopy{Src: root, Dest: regs.At(schema.SchemaColRootPage)})
	if text == "" {
		b.Emit(&vdbe.Null{Dest: regs.At(schema.SchemaColSQL)})
	} else {
		b.Emit(&vdbe.String8{Value: text, Dest: regs.At(schema.SchemaColSQL)})
	}

	rec := b.AllocRegister()
	rowid := b.AllocRegister()
	b.Emit(&vdbe.NewRowId{Cursor: cur, Dest: rowid})
	b.Emit(&vdbe.MakeRecord{Regs: regs, Dest: rec})
	b.Emit(&vdbe.Insert{Cursor: cur, Key: rowid, Record: rec})
}

// genSchemaReload finishes every schema changing statement, the rows
// matching where are parsed into the live schema and the cookie is bumped
func (self *generator) genSchemaReload(where string) {
	self.b.Emit(&vdbe.ParseSchema{Where: where})
	self.b.Emit(&vdbe.SetCookie{Value: self.schema.Version + 1})
}
