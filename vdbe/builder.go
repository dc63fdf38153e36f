package vdbe

import (
	"fmt"
)

// Builder allocates the resources of one program and appends its
// instructions. It is owned by a single compilation and is not safe for
// concurrent use.
type Builder struct {
	insns    []Insn
	labels   LabelTable
	cursors  []CursorInfo
	nextReg  Register
	comments map[InsnPos]string

	// depth of sub-statement compilation and the deepest it went
	nested    int
	maxNested int

	// ChangeCountOn asks the runtime to report the number of changed rows.
	ChangeCountOn bool

	// ResultColumns is copied into the program, see Program.ResultColumns.
	ResultColumns []string
}

func NewBuilder() *Builder {
	return &Builder{
		nextReg:  1,
		comments: make(map[InsnPos]string),
	}
}

func (self *Builder) AllocRegister() Register {
	r := self.nextReg
	self.nextReg++
	return r
}

// AllocRegisters hands out n consecutive registers. n may be zero, which
// yields an empty range starting at the next free register.
func (self *Builder) AllocRegisters(n int) RegisterRange {
	if n < 0 {
		panic(fmt.Sprintf("negative register count %d", n))
	}
	r := RegisterRange{Start: self.nextReg, Count: n}
	self.nextReg += Register(n)
	return r
}

func (self *Builder) AllocCursor(info CursorInfo) Cursor {
	if info.NumColumns == 0 {
		info.NumColumns = len(info.Columns)
	}
	self.cursors = append(self.cursors, info)
	return Cursor(len(self.cursors) - 1)
}

func (self *Builder) AllocLabel() Label {
	return self.labels.Allocate()
}

func (self *Builder) AllocLabels(n int) []Label {
	out := make([]Label, n)
	for i := range out {
		out[i] = self.labels.Allocate()
	}
	return out
}

// Emit appends the instruction and returns its address.
func (self *Builder) Emit(insn Insn) InsnPos {
	self.insns = append(self.insns, insn)
	return InsnPos(len(self.insns) - 1)
}

// EmitComment appends the instruction with a comment that overrides the
// generated one in the explain listing.
func (self *Builder) EmitComment(insn Insn, comment string) InsnPos {
	pos := self.Emit(insn)
	self.comments[pos] = comment
	return pos
}

// Offset is the address the next emitted instruction will get.
func (self *Builder) Offset() InsnPos {
	return InsnPos(len(self.insns))
}

func (self *Builder) BindLabel(l Label, at InsnPos) error {
	return self.labels.Resolve(l, at)
}

// BindHere binds the label to the next instruction to be emitted.
func (self *Builder) BindHere(l Label) error {
	return self.labels.Resolve(l, self.Offset())
}

func (self *Builder) Labels() *LabelTable { return &self.labels }

func (self *Builder) UnresolvedCount() int { return self.labels.UnresolvedCount() }

// NumRegisters is the highest register allocated so far.
func (self *Builder) NumRegisters() int { return int(self.nextReg) - 1 }

func (self *Builder) NumCursors() int { return len(self.cursors) }

func (self *Builder) CursorInfo(c Cursor) *CursorInfo {
	return &self.cursors[c]
}

// Insns exposes the instructions emitted so far, read only.
func (self *Builder) Insns() []Insn { return self.insns }

// EnterNested is called before internally generated SQL is translated into
// the program and returns the new depth.
func (self *Builder) EnterNested() int {
	self.nested++
	if self.nested > self.maxNested {
		self.maxNested = self.nested
	}
	return self.nested
}

func (self *Builder) LeaveNested() {
	self.nested--
}

// Nested is the current depth of sub-statement compilation.
func (self *Builder) Nested() int { return self.nested }

// Build freezes the builder into a Program. A program with unbound labels
// is never produced.
func (self *Builder) Build(sql string) (*Program, error) {
	if n := self.labels.UnresolvedCount(); n != 0 {
		return nil, fmt.Errorf("%d labels %v: %w",
			n, self.labels.Unresolved(), ErrUnresolvedLabel)
	}
	if self.nested != 0 {
		return nil, fmt.Errorf("unbalanced nesting depth %d", self.nested)
	}

	insns := make([]Insn, len(self.insns))
	copy(insns, self.insns)
	cursors := make([]CursorInfo, len(self.cursors))
	copy(cursors, self.cursors)
	comments := make(map[InsnPos]string, len(self.comments))
	for k, v := range self.comments {
		comments[k] = v
	}

	p := &Program{
		Insns:         insns,
		Cursors:       cursors,
		Labels:        self.labels.Positions(),
		NumRegisters:  self.NumRegisters(),
		Nested:        self.maxNested,
		ChangeCountOn: self.ChangeCountOn,
		SQL:           sql,
		Comments:      comments,
		ResultColumns: append([]string(nil), self.ResultColumns...),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
