package vdbe

import (
	"fmt"
)

// Program is the frozen output of compilation. It is never modified once
// Builder.Build returned it.
type Program struct {
	Insns         []Insn
	Cursors       []CursorInfo
	Labels        []InsnPos // label -> bound position
	NumRegisters  int       // highest register handed out
	Nested        int       // deepest sub-statement compilation, 0 when none ran
	ChangeCountOn bool
	SQL           string
	Comments      map[InsnPos]string

	// ResultColumns names the columns of every ResultRow, empty for
	// statements that produce no rows.
	ResultColumns []string
}

// Target resolves the jump target of a label. Build guarantees every label
// of a program is bound, so a failure here means the label did not come
// from this program.
func (self *Program) Target(l Label) InsnPos {
	if l < 0 || int(l) >= len(self.Labels) {
		panic(fmt.Sprintf("label %d does not belong to this program", l))
	}
	return self.Labels[l]
}

func (self *Program) Len() int { return len(self.Insns) }

func (self *Program) At(pos InsnPos) Insn { return self.Insns[pos] }

func (self *Program) Cursor(c Cursor) *CursorInfo {
	if c < 0 || int(c) >= len(self.Cursors) {
		return &CursorInfo{}
	}
	return &self.Cursors[c]
}

// UnresolvedCount is always zero for a built program, it is kept so tests
// and callers can assert the completeness property on the artefact itself.
func (self *Program) UnresolvedCount() int {
	n := 0
	for _, p := range self.Labels {
		if p == unresolvedPos {
			n++
		}
	}
	return n
}

// Count returns how many instructions carry the opcode.
func (self *Program) Count(op int) int {
	n := 0
	for _, i := range self.Insns {
		if i.Opcode() == op {
			n++
		}
	}
	return n
}

// Find returns the positions of every instruction with the opcode.
func (self *Program) Find(op int) []InsnPos {
	out := []InsnPos{}
	for idx, i := range self.Insns {
		if i.Opcode() == op {
			out = append(out, InsnPos(idx))
		}
	}
	return out
}

// Validate checks that every label referenced by an instruction is bound to
// a position inside the program (the end of the program is allowed).
func (self *Program) Validate() error {
	for idx, insn := range self.Insns {
		for _, l := range ReferencedLabels(insn) {
			if l < 0 || int(l) >= len(self.Labels) {
				return fmt.Errorf("insn %d (%s): label %d: %w",
					idx, OpName(insn.Opcode()), l, ErrUnknownLabel)
			}
			p := self.Labels[l]
			if p == unresolvedPos {
				return fmt.Errorf("insn %d (%s): label %d: %w",
					idx, OpName(insn.Opcode()), l, ErrUnresolvedLabel)
			}
			if int(p) > len(self.Insns) {
				return fmt.Errorf("insn %d (%s): label %d points past the program (%d)",
					idx, OpName(insn.Opcode()), l, p)
			}
		}
	}
	return nil
}
