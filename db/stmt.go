package db

import (
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/dianpeng/sqlvdbe/vm"
)

var explainColumns = []string{"addr", "opcode", "p1", "p2", "p3", "p4", "p5", "comment"}

// Stmt is a prepared statement. Step follows the machine's contract: it
// returns vm.StepRow with a row ready, vm.StepDone once finished, and
// vm.StepIO, vm.StepBusy or vm.StepInterrupt when the caller should come
// back later.
type Stmt struct {
	conn *Conn
	prog *vdbe.Program
	m    *vm.VM

	isExpl  bool
	explain []vdbe.ExplainRow
	next    int
	row     []vdbe.Value
}

func (self *Stmt) Program() *vdbe.Program { return self.prog }

func (self *Stmt) Columns() []string {
	if self.isExpl {
		return explainColumns
	}
	return self.prog.ResultColumns
}

func (self *Stmt) Step() (int, error) {
	if self.isExpl {
		return self.stepExplain(), nil
	}

	r, err := self.m.Step()
	if err != nil {
		self.conn.log.Debug("statement failed", "sql", self.prog.SQL, "error", err)
		return r, err
	}
	if r == vm.StepDone && self.m.SchemaChanged() {
		self.conn.adoptSchema(self.m.Schema())
	}
	return r, nil
}

func (self *Stmt) stepExplain() int {
	if self.next >= len(self.explain) {
		return vm.StepDone
	}
	e := self.explain[self.next]
	self.next++
	self.row = []vdbe.Value{
		vdbe.IntValue(int64(e.Addr)),
		vdbe.TextValue(e.Opcode),
		vdbe.IntValue(int64(e.P1)),
		vdbe.IntValue(int64(e.P2)),
		vdbe.IntValue(int64(e.P3)),
		vdbe.TextValue(e.P4),
		vdbe.IntValue(int64(e.P5)),
		vdbe.TextValue(e.Comment),
	}
	return vm.StepRow
}

// Row is the current row, valid until the next Step
func (self *Stmt) Row() []vdbe.Value {
	if self.isExpl {
		return self.row
	}
	return self.m.Row()
}

func (self *Stmt) Changes() int64 {
	if self.isExpl {
		return 0
	}
	return self.m.Changes()
}

// Interrupt stops the statement before its next instruction, it may be
// called from any goroutine
func (self *Stmt) Interrupt() {
	if self.m != nil {
		self.m.Interrupt()
	}
}

// Close abandons the statement, changes of an unfinished statement are
// undone
func (self *Stmt) Close() {
	if self.m != nil {
		self.m.Close()
	}
}
