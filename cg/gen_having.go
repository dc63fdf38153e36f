package cg

// Having phase generation
type havingCodeGen struct {
	sg   *selectGen
	next subGen
}

func (self *havingCodeGen) genInit() error { return nil }

// having is easy, just add a filter that's it
func (self *havingCodeGen) genNext(src columnSource) error {
	having := self.sg.p.Having
	if having == nil {
		return self.next.genNext(src)
	}

	skip := self.sg.g.b.AllocLabel()
	if err := self.sg.expr.with(src).genFilter(having.Filter, skip); err != nil {
		return err
	}
	if err := self.next.genNext(src); err != nil {
		return err
	}
	return self.sg.g.b.BindHere(skip)
}

func (self *havingCodeGen) genFlush() error {
	return self.next.genFlush()
}
