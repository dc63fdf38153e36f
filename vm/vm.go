// Package vm is the reference executor of compiled programs. A VM is a pull
// based state machine: every call of Step runs instructions until the
// program produces a row, finishes, fails, or has to wait, and the next call
// resumes exactly where the previous one stopped.
package vm

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/store"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

const (
	// a result row is ready, see Row
	StepRow = iota

	// the program halted, Step keeps returning StepDone
	StepDone

	// a cursor waits for its page, call Step again to retry
	StepIO

	// another session holds the write lock, call Step again to retry
	StepBusy

	// Interrupt was called, nothing was executed
	StepInterrupt
)

func StepName(r int) string {
	switch r {
	case StepRow:
		return "row"
	case StepDone:
		return "done"
	case StepIO:
		return "io"
	case StepBusy:
		return "busy"
	case StepInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// HaltError is raised by a Halt instruction carrying an error code, like a
// constraint violation detected by the program itself.
type HaltError struct {
	Code    int
	Message string
}

func (self *HaltError) Error() string { return self.Message }

// internal result of one instruction, keep running
const stepContinue = -1

type VM struct {
	prog   *vdbe.Program
	sess   *store.Session
	store  *store.Store
	schema *schema.Schema

	pc      int
	regs    []vdbe.Value
	cursors []*cursor
	row     []vdbe.Value
	once    map[int]bool
	aggs    map[vdbe.Register]Aggregator
	stats   map[vdbe.Register]*StatAccum

	cmpResult int
	changes   int64
	halted    bool
	err       error
	writing   bool

	schemaChanged bool
	interrupt     atomic.Bool
}

// New prepares prog for execution inside the session. sc is the schema the
// program was compiled against.
func New(prog *vdbe.Program, sess *store.Session, sc *schema.Schema) *VM {
	return &VM{
		prog:    prog,
		sess:    sess,
		store:   sess.Store(),
		schema:  sc,
		regs:    make([]vdbe.Value, prog.NumRegisters+1),
		cursors: make([]*cursor, len(prog.Cursors)),
		once:    make(map[int]bool),
		aggs:    make(map[vdbe.Register]Aggregator),
		stats:   make(map[vdbe.Register]*StatAccum),
	}
}

// Row is the last row produced, valid until the next Step
func (self *VM) Row() []vdbe.Value { return self.row }

// Changes is the number of rows inserted or deleted by the statement
func (self *VM) Changes() int64 { return self.changes }

// Schema is the schema after the statement ran, it differs from the one
// given to New when SchemaChanged reports true.
func (self *VM) Schema() *schema.Schema { return self.schema }

func (self *VM) SchemaChanged() bool { return self.schemaChanged }

func (self *VM) Program() *vdbe.Program { return self.prog }

// Interrupt asks the machine to stop before its next instruction. It is
// safe to call from another goroutine.
func (self *VM) Interrupt() { self.interrupt.Store(true) }

// Step runs the program until it has something to report.
func (self *VM) Step() (int, error) {
	if self.halted {
		return StepDone, self.err
	}
	if self.interrupt.Swap(false) {
		return StepInterrupt, nil
	}
	self.row = nil

	for {
		if self.pc < 0 || self.pc >= self.prog.Len() {
			return self.fail(self.pc, fmt.Errorf("program counter out of range"))
		}
		pc := self.pc
		insn := self.prog.At(vdbe.InsnPos(pc))
		self.pc++

		r, err := self.exec(pc, insn)
		if err != nil {
			return self.fail(pc, err)
		}
		switch r {
		case stepContinue:
			continue
		case StepIO, StepBusy:
			// the instruction runs again on the next Step
			self.pc = pc
			return r, nil
		default:
			return r, nil
		}
	}
}

func (self *VM) fail(pc int, err error) (int, error) {
	var halt *HaltError
	if !errors.As(err, &halt) {
		op := "?"
		if pc >= 0 && pc < self.prog.Len() {
			op = vdbe.OpName(self.prog.At(vdbe.InsnPos(pc)).Opcode())
		}
		err = fmt.Errorf("vm: pc=%d (%s): %w", pc, op, err)
	}
	self.halted = true
	self.err = err
	if self.writing {
		self.sess.EndStatement(true)
		self.writing = false
	}
	return StepDone, err
}

func (self *VM) halt() (int, error) {
	self.halted = true
	if self.writing {
		self.sess.EndStatement(false)
		self.writing = false
	}
	return StepDone, nil
}

// Close abandons a statement that did not run to completion, its changes
// are undone.
func (self *VM) Close() {
	if self.halted {
		return
	}
	self.halted = true
	if self.writing {
		self.sess.EndStatement(true)
		self.writing = false
	}
}

func (self *VM) jump(l vdbe.Label) {
	self.pc = int(self.prog.Target(l))
}

func (self *VM) reg(r vdbe.Register) vdbe.Value { return self.regs[r] }

func (self *VM) set(r vdbe.Register, v vdbe.Value) { self.regs[r] = v }

func (self *VM) rangeValues(rr vdbe.RegisterRange) []vdbe.Value {
	out := make([]vdbe.Value, rr.Count)
	for i := 0; i < rr.Count; i++ {
		out[i] = self.regs[rr.At(i)]
	}
	return out
}

func (self *VM) cursor(c vdbe.Cursor) (*cursor, error) {
	if c < 0 || int(c) >= len(self.cursors) || self.cursors[c] == nil {
		return nil, fmt.Errorf("cursor %d is not open", c)
	}
	return self.cursors[c], nil
}

// btreeCursor returns an open cursor that walks a b-tree
func (self *VM) btreeCursor(c vdbe.Cursor) (*cursor, error) {
	cur, err := self.cursor(c)
	if err != nil {
		return nil, err
	}
	if cur.cur == nil {
		return nil, fmt.Errorf("cursor %d is not a b-tree cursor", c)
	}
	return cur, nil
}

func (self *VM) sorterCursor(c vdbe.Cursor) (*cursor, error) {
	cur, err := self.cursor(c)
	if err != nil {
		return nil, err
	}
	if cur.sorter == nil {
		return nil, fmt.Errorf("cursor %d is not a sorter", c)
	}
	return cur, nil
}

// ioPending reports whether the cursor must wait before moving
func (self *VM) ioPending(cur *cursor) bool {
	return cur.root() != 0 && self.store.IOPending(cur.root())
}

func (self *VM) openTree(c vdbe.Cursor, root int) error {
	bt, err := self.store.Tree(root)
	if err != nil {
		return err
	}
	info := self.prog.Cursor(c)
	if bt.IsIndex && len(info.Keys) > 0 {
		bt.SetKeys(info.Keys)
	}
	self.cursors[c] = &cursor{
		info: info,
		bt:   bt,
		cur:  bt.Cursor(),
	}
	return nil
}

func (self *VM) aggregator(accum vdbe.Register, name string) (Aggregator, error) {
	if a, ok := self.aggs[accum]; ok && !self.regs[accum].IsNull() {
		return a, nil
	}
	a, err := NewAggregator(name)
	if err != nil {
		return nil, err
	}
	self.aggs[accum] = a
	// a non NULL marker, a Null instruction on the register starts over
	self.regs[accum] = vdbe.BlobValue(nil)
	return a, nil
}

func (self *VM) reloadSchema() error {
	sc, err := self.store.LoadSchema()
	if err != nil {
		return err
	}
	self.schema = sc
	self.schemaChanged = true
	return nil
}
