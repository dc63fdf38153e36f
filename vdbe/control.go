package vdbe

// ----------------------------------------------------------------------------
// Control flow combinators. Each one allocates its labels, emits the fixed
// instruction skeleton and runs the body closure in between. The first error
// of a body stops the emission and is returned untouched; the caller is
// expected to drop the builder, so no half labeled program ever escapes.
// ----------------------------------------------------------------------------

func (self *Builder) newLoop() LoopLabels {
	return LoopLabels{
		Start: self.AllocLabel(),
		Next:  self.AllocLabel(),
		End:   self.AllocLabel(),
	}
}

// emitLoop is the shape shared by every cursor driven loop:
//
//	enter(end) ; start: body ; next: step(start) ; end:
func (self *Builder) emitLoop(
	enter func(end Label) Insn,
	step func(start Label) Insn,
	body func(LoopLabels) error,
) (LoopLabels, error) {
	loop := self.newLoop()

	self.Emit(enter(loop.End))
	if err := self.BindHere(loop.Start); err != nil {
		return loop, err
	}
	if err := body(loop); err != nil {
		return loop, err
	}
	if err := self.BindHere(loop.Next); err != nil {
		return loop, err
	}
	self.Emit(step(loop.Start))
	if err := self.BindHere(loop.End); err != nil {
		return loop, err
	}
	return loop, nil
}

// ForEach emits a forward scan: Rewind, body, Next.
func (self *Builder) ForEach(cur Cursor, body func(LoopLabels) error) (LoopLabels, error) {
	return self.emitLoop(
		func(end Label) Insn { return &Rewind{Cursor: cur, IfEmpty: end} },
		func(start Label) Insn { return &Next{Cursor: cur, Start: start} },
		body,
	)
}

// ForEachRev emits a backward scan: Last, body, Prev.
func (self *Builder) ForEachRev(cur Cursor, body func(LoopLabels) error) (LoopLabels, error) {
	return self.emitLoop(
		func(end Label) Insn { return &Last{Cursor: cur, IfEmpty: end} },
		func(start Label) Insn { return &Prev{Cursor: cur, Start: start} },
		body,
	)
}

// SorterLoop walks a sorted sorter: SorterSort, body, SorterNext.
func (self *Builder) SorterLoop(cur Cursor, body func(LoopLabels) error) (LoopLabels, error) {
	return self.emitLoop(
		func(end Label) Insn { return &SorterSort{Cursor: cur, IfEmpty: end} },
		func(start Label) Insn { return &SorterNext{Cursor: cur, Start: start} },
		body,
	)
}

// NestedLoop is a forward scan of inner inside a forward scan of outer.
func (self *Builder) NestedLoop(
	outer Cursor,
	inner Cursor,
	body func(o, i LoopLabels) error,
) error {
	_, err := self.ForEach(outer, func(o LoopLabels) error {
		_, err := self.ForEach(inner, func(i LoopLabels) error {
			return body(o, i)
		})
		return err
	})
	return err
}

// IfElse runs then when cond is true and els otherwise (NULL counts as
// false). Either branch may be nil.
func (self *Builder) IfElse(cond Register, then, els func() error) error {
	elseL := self.AllocLabel()
	endL := self.AllocLabel()

	self.Emit(&IfNot{Reg: cond, Target: elseL, JumpIfNull: true})
	if then != nil {
		if err := then(); err != nil {
			return err
		}
	}
	self.Emit(&Goto{Target: endL})
	if err := self.BindHere(elseL); err != nil {
		return err
	}
	if els != nil {
		if err := els(); err != nil {
			return err
		}
	}
	return self.BindHere(endL)
}

// WhenTrue runs body only when cond is true.
func (self *Builder) WhenTrue(cond Register, body func() error) error {
	skip := self.AllocLabel()
	self.Emit(&IfNot{Reg: cond, Target: skip, JumpIfNull: true})
	if err := body(); err != nil {
		return err
	}
	return self.BindHere(skip)
}

// WhenFalse runs body only when cond is false. NULL skips the body.
func (self *Builder) WhenFalse(cond Register, body func() error) error {
	skip := self.AllocLabel()
	self.Emit(&If{Reg: cond, Target: skip, JumpIfNull: true})
	if err := body(); err != nil {
		return err
	}
	return self.BindHere(skip)
}

// SkipIfNull runs body only when reg is not NULL.
func (self *Builder) SkipIfNull(reg Register, body func() error) error {
	skip := self.AllocLabel()
	self.Emit(&IsNull{Reg: reg, Target: skip})
	if err := body(); err != nil {
		return err
	}
	return self.BindHere(skip)
}

// Once guards body so it runs the first time control reaches it only.
func (self *Builder) Once(body func() error) error {
	skip := self.AllocLabel()
	self.Emit(&Once{Target: skip})
	if err := body(); err != nil {
		return err
	}
	return self.BindHere(skip)
}

// Subroutine emits body out of line, reachable with CallSubroutine. It
// returns the entry label and the return address register.
//
//	BeginSubrtn ret ; Goto after ; entry: body ; Return ret ; after:
func (self *Builder) Subroutine(body func(ret Register) error) (Label, Register, error) {
	ret := self.AllocRegister()
	entry := self.AllocLabel()
	after := self.AllocLabel()

	self.Emit(&BeginSubrtn{Return: ret})
	self.Emit(&Goto{Target: after})
	if err := self.BindHere(entry); err != nil {
		return entry, ret, err
	}
	if err := body(ret); err != nil {
		return entry, ret, err
	}
	self.Emit(&Return{Return: ret})
	if err := self.BindHere(after); err != nil {
		return entry, ret, err
	}
	return entry, ret, nil
}

func (self *Builder) CallSubroutine(entry Label, ret Register) InsnPos {
	return self.Emit(&Gosub{Target: entry, Return: ret})
}

// Coroutine emits a generator body. Rows are handed to the consumer with
// Yield on the returned register; the returned label is bound right after
// the coroutine, where control continues once it is defined.
//
//	InitCoroutine yield, end, start ; start: body ; EndCoroutine ; end:
func (self *Builder) Coroutine(body func(yield Register) error) (Register, Label, error) {
	yield := self.AllocRegister()
	start := self.AllocLabel()
	end := self.AllocLabel()

	self.Emit(&InitCoroutine{Yield: yield, Jump: end, Start: start})
	if err := self.BindHere(start); err != nil {
		return yield, end, err
	}
	if err := body(yield); err != nil {
		return yield, end, err
	}
	self.Emit(&EndCoroutine{Yield: yield})
	if err := self.BindHere(end); err != nil {
		return yield, end, err
	}
	return yield, end, nil
}

// YieldLoop consumes a coroutine, running body once per produced row. Start
// is the Yield itself and Next the jump back to it.
//
//	start: Yield yield, end ; body ; next: Goto start ; end:
func (self *Builder) YieldLoop(yield Register, body func(LoopLabels) error) (LoopLabels, error) {
	loop := self.newLoop()

	if err := self.BindHere(loop.Start); err != nil {
		return loop, err
	}
	self.Emit(&Yield{Yield: yield, End: loop.End})
	if err := body(loop); err != nil {
		return loop, err
	}
	if err := self.BindHere(loop.Next); err != nil {
		return loop, err
	}
	self.Emit(&Goto{Target: loop.Start})
	if err := self.BindHere(loop.End); err != nil {
		return loop, err
	}
	return loop, nil
}
