package vdbe

import (
	"fmt"
)

const unresolvedPos = InsnPos(-1)

// LabelTable tracks every allocated label and the position it is bound to.
// A label is allocated unresolved and bound exactly once, forward references
// are fixed up by looking the position up when the program is read.
type LabelTable struct {
	pos        []InsnPos
	unresolved int
}

func (self *LabelTable) Allocate() Label {
	self.pos = append(self.pos, unresolvedPos)
	self.unresolved++
	return Label(len(self.pos) - 1)
}

func (self *LabelTable) valid(l Label) bool {
	return l >= 0 && int(l) < len(self.pos)
}

// Resolve binds the label to the instruction position.
func (self *LabelTable) Resolve(l Label, at InsnPos) error {
	if !self.valid(l) {
		return fmt.Errorf("label %d: %w", l, ErrUnknownLabel)
	}
	if self.pos[l] != unresolvedPos {
		return fmt.Errorf("label %d: %w", l, ErrDuplicateLabelBinding)
	}
	self.pos[l] = at
	self.unresolved--
	return nil
}

// Position returns the position a label is bound to.
func (self *LabelTable) Position(l Label) (InsnPos, error) {
	if !self.valid(l) {
		return 0, fmt.Errorf("label %d: %w", l, ErrUnknownLabel)
	}
	if self.pos[l] == unresolvedPos {
		return 0, fmt.Errorf("label %d: %w", l, ErrUnresolvedLabel)
	}
	return self.pos[l], nil
}

func (self *LabelTable) IsResolved(l Label) bool {
	return self.valid(l) && self.pos[l] != unresolvedPos
}

func (self *LabelTable) UnresolvedCount() int { return self.unresolved }
func (self *LabelTable) AllResolved() bool    { return self.unresolved == 0 }
func (self *LabelTable) Len() int             { return len(self.pos) }

// Unresolved lists the labels that were allocated but never bound.
func (self *LabelTable) Unresolved() []Label {
	out := []Label{}
	for i, p := range self.pos {
		if p == unresolvedPos {
			out = append(out, Label(i))
		}
	}
	return out
}

// Positions returns a copy of the dense label -> position table.
func (self *LabelTable) Positions() []InsnPos {
	out := make([]InsnPos, len(self.pos))
	copy(out, self.pos)
	return out
}
