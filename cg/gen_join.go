package cg

import (
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// Join phase. Only nested loop join is supported, the innermost two tables
// share one NestedLoop and the conditions of both levels are checked in the
// inner body. A row failing the outer level's conditions moves the outer
// cursor directly.
type joinCodeGen struct {
	sg *selectGen
}

func (self *joinCodeGen) genJoin(level int, body func() error) error {
	scan := self.sg.scan
	outer := scan.cursors[level]
	inner := scan.cursors[level+1]

	return self.sg.g.b.NestedLoop(outer, inner, func(o, i vdbe.LoopLabels) error {
		if err := scan.genFilter(level, o.Next); err != nil {
			return err
		}
		if err := scan.genFilter(level+1, i.Next); err != nil {
			return err
		}
		return body()
	})
}
