package cg

import (
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// ----------------------------------------------------------------------------
// Table scan phase. Every FROM entry gets a read cursor and one loop level,
// the first entry is the outermost loop. The part of the WHERE clause that
// needs no table at all is checked once before the loops are entered.
// ----------------------------------------------------------------------------

type tableScanCodeGen struct {
	sg      *selectGen
	cursors tableSource
}

func (self *tableScanCodeGen) genInit() error {
	for _, ts := range self.sg.p.TableScan {
		t := ts.Table.Table
		if t.Virtual {
			return errorf(ErrUnsupported, "cannot scan virtual table %s", t.Name)
		}
		self.cursors = append(self.cursors, self.sg.g.openTable(t, false))
	}
	return nil
}

func (self *tableScanCodeGen) genNext(src columnSource) error { return nil }
func (self *tableScanCodeGen) genFlush() error                { return nil }

// genScan runs body once per joined row
func (self *tableScanCodeGen) genScan(body func() error) error {
	b := self.sg.g.b
	done := b.AllocLabel()

	if err := self.sg.expr.genFilter(self.sg.p.Precheck, done); err != nil {
		return err
	}

	var err error
	if len(self.cursors) == 0 {
		err = body()
	} else {
		err = self.scanLevel(0, body)
	}
	if err != nil {
		return err
	}
	return b.BindHere(done)
}

func (self *tableScanCodeGen) scanLevel(level int, body func() error) error {
	n := len(self.cursors)
	if level == n-2 {
		return self.sg.join.genJoin(level, body)
	}
	_, err := self.sg.g.b.ForEach(self.cursors[level], func(loop vdbe.LoopLabels) error {
		if err := self.genFilter(level, loop.Next); err != nil {
			return err
		}
		if level == n-1 {
			return body()
		}
		return self.scanLevel(level+1, body)
	})
	return err
}

// genFilter checks every condition owned by the loop level, a row that does
// not pass moves on to next
func (self *tableScanCodeGen) genFilter(level int, next vdbe.Label) error {
	p := self.sg.p
	e := self.sg.expr.with(self.cursors)
	if err := e.genFilter(p.TableScan[level].Filter, next); err != nil {
		return err
	}
	if p.Join != nil && level < len(p.Join.Filter) {
		return e.genFilter(p.Join.Filter[level], next)
	}
	return nil
}
