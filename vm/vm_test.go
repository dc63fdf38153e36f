package vm

import (
	"testing"

	"github.com/dianpeng/sqlvdbe/store"
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build wraps body into Init ... Halt
func build(t *testing.T, body func(b *vdbe.Builder) error) *vdbe.Program {
	b := vdbe.NewBuilder()
	start := b.AllocLabel()
	b.Emit(&vdbe.Init{Target: start})
	require.Nil(t, b.BindHere(start))
	require.Nil(t, body(b))
	b.Emit(&vdbe.Halt{})
	p, err := b.Build("")
	require.Nil(t, err)
	return p
}

func runAll(m *VM) ([][]vdbe.Value, error) {
	rows := [][]vdbe.Value{}
	for {
		r, err := m.Step()
		if err != nil {
			return rows, err
		}
		switch r {
		case StepRow:
			rows = append(rows, m.Row())
		case StepDone:
			return rows, nil
		}
	}
}

func ints(rows [][]vdbe.Value) [][]int64 {
	out := [][]int64{}
	for _, r := range rows {
		x := []int64{}
		for _, v := range r {
			x = append(x, v.AsInt())
		}
		out = append(out, x)
	}
	return out
}

func TestArith(t *testing.T) {
	assert := assert.New(t)
	p := build(t, func(b *vdbe.Builder) error {
		in := b.AllocRegisters(2)
		out := b.AllocRegisters(5)
		b.Emit(&vdbe.Integer{Value: 7, Dest: in.At(0)})
		b.Emit(&vdbe.Integer{Value: 2, Dest: in.At(1)})
		b.Emit(&vdbe.Arith{Op: vdbe.OpAdd, Lhs: in.At(0), Rhs: in.At(1), Dest: out.At(0)})
		b.Emit(&vdbe.Arith{Op: vdbe.OpDivide, Lhs: in.At(0), Rhs: in.At(1), Dest: out.At(1)})
		b.Emit(&vdbe.Arith{Op: vdbe.OpRemainder, Lhs: in.At(0), Rhs: in.At(1), Dest: out.At(2)})
		b.Emit(&vdbe.Arith{Op: vdbe.OpConcat, Lhs: in.At(0), Rhs: in.At(1), Dest: out.At(3)})
		b.Emit(&vdbe.Null{Dest: in.At(1)})
		b.Emit(&vdbe.Arith{Op: vdbe.OpMultiply, Lhs: in.At(0), Rhs: in.At(1), Dest: out.At(4)})
		b.Emit(&vdbe.ResultRow{Regs: out})
		return nil
	})
	s := store.New()
	rows, err := runAll(New(p, s.NewSession(), nil))
	assert.Nil(err)
	assert.Equal(1, len(rows))
	assert.Equal(int64(9), rows[0][0].Int)
	assert.Equal(int64(3), rows[0][1].Int)
	assert.Equal(int64(1), rows[0][2].Int)
	assert.Equal("72", rows[0][3].Text)
	assert.True(rows[0][4].IsNull())

	v, err := arith(vdbe.OpAdd, vdbe.IntValue(1<<62), vdbe.IntValue(1<<62))
	assert.Nil(err)
	assert.Equal(vdbe.ValueReal, v.Ty)

	v, _ = arith(vdbe.OpAdd, vdbe.TextValue("3"), vdbe.RealValue(0.5))
	assert.Equal(3.5, v.Real)

	assert.True(logicAnd(vdbe.NullValue(), vdbe.IntValue(1)).IsNull())
	assert.Equal(int64(0), logicAnd(vdbe.NullValue(), vdbe.IntValue(0)).Int)
	assert.Equal(int64(1), logicOr(vdbe.NullValue(), vdbe.IntValue(1)).Int)
}

func tableProgram(t *testing.T, root int, values []int64) *vdbe.Program {
	return build(t, func(b *vdbe.Builder) error {
		b.ChangeCountOn = true
		cur := b.AllocCursor(vdbe.CursorInfo{Kind: vdbe.CursorBTreeTable, Name: "t", RootPage: root, NumColumns: 1})
		rowid := b.AllocRegister()
		val := b.AllocRegister()
		rec := b.AllocRegister()
		b.Emit(&vdbe.Transaction{Write: true})
		b.Emit(&vdbe.OpenWrite{Cursor: cur, RootPage: root})
		for _, v := range values {
			b.Emit(&vdbe.NewRowId{Cursor: cur, Dest: rowid})
			b.Emit(&vdbe.Integer{Value: v, Dest: val})
			b.Emit(&vdbe.MakeRecord{Regs: vdbe.RegisterRange{Start: val, Count: 1}, Dest: rec})
			b.Emit(&vdbe.Insert{Cursor: cur, Key: rowid, Record: rec, Table: "t"})
		}
		_, err := b.ForEach(cur, func(vdbe.LoopLabels) error {
			out := b.AllocRegisters(2)
			b.Emit(&vdbe.RowId{Cursor: cur, Dest: out.At(0)})
			b.Emit(&vdbe.Column{Cursor: cur, Column: 0, Dest: out.At(1)})
			b.Emit(&vdbe.ResultRow{Regs: out})
			return nil
		})
		return err
	})
}

func TestInsertAndScan(t *testing.T) {
	assert := assert.New(t)
	s := store.New()
	root := s.CreateTree(false)
	sess := s.NewSession()

	m := New(tableProgram(t, root, []int64{10, 20, 30}), sess, nil)
	rows, err := runAll(m)
	assert.Nil(err)
	assert.Equal([][]int64{{1, 10}, {2, 20}, {3, 30}}, ints(rows))
	assert.Equal(int64(3), m.Changes())
	assert.False(sess.HoldsLock())

	// done is sticky
	r, err := m.Step()
	assert.Equal(StepDone, r)
	assert.Nil(err)
}

func TestBusyAndResume(t *testing.T) {
	assert := assert.New(t)
	s := store.New()
	root := s.CreateTree(false)
	a := s.NewSession()
	b := s.NewSession()

	assert.Nil(a.Begin())
	assert.Nil(a.BeginWrite())
	a.EndStatement(false)

	m := New(tableProgram(t, root, []int64{1}), b, nil)
	r, err := m.Step()
	assert.Nil(err)
	assert.Equal(StepBusy, r)
	r, _ = m.Step()
	assert.Equal(StepBusy, r)

	assert.Nil(a.Commit())
	rows, err := runAll(m)
	assert.Nil(err)
	assert.Equal([][]int64{{1, 1}}, ints(rows))
}

func TestIOAndInterrupt(t *testing.T) {
	assert := assert.New(t)
	s := store.New()
	root := s.CreateTree(false)

	pending := 2
	s.SetIOHook(func(r int) bool {
		if r == root && pending > 0 {
			pending--
			return true
		}
		return false
	})

	m := New(tableProgram(t, root, []int64{5}), s.NewSession(), nil)
	m.Interrupt()
	r, err := m.Step()
	assert.Nil(err)
	assert.Equal(StepInterrupt, r)

	for i := 0; i < 2; i++ {
		r, err = m.Step()
		assert.Nil(err)
		assert.Equal(StepIO, r)
	}
	r, err = m.Step()
	assert.Nil(err)
	assert.Equal(StepRow, r)
	assert.Equal(int64(5), m.Row()[1].Int)
	r, _ = m.Step()
	assert.Equal(StepDone, r)
}

func TestHaltRollsBack(t *testing.T) {
	assert := assert.New(t)
	s := store.New()
	root := s.CreateTree(false)

	p := build(t, func(b *vdbe.Builder) error {
		cur := b.AllocCursor(vdbe.CursorInfo{Kind: vdbe.CursorBTreeTable, RootPage: root})
		r := b.AllocRegisters(3)
		b.Emit(&vdbe.Transaction{Write: true})
		b.Emit(&vdbe.OpenWrite{Cursor: cur, RootPage: root})
		b.Emit(&vdbe.Integer{Value: 1, Dest: r.At(0)})
		b.Emit(&vdbe.MakeRecord{Regs: r.Sub(0, 1), Dest: r.At(1)})
		b.Emit(&vdbe.Insert{Cursor: cur, Key: r.At(0), Record: r.At(1)})
		b.Emit(&vdbe.HaltIfNull{Reg: r.At(2), ErrCode: 1, Message: "NOT NULL constraint failed: t.a"})
		return nil
	})
	sess := s.NewSession()
	_, err := runAll(New(p, sess, nil))
	assert.NotNil(err)
	var halt *HaltError
	assert.ErrorAs(err, &halt)
	assert.Equal("NOT NULL constraint failed: t.a", err.Error())

	bt, _ := s.Tree(root)
	assert.Equal(0, bt.Size())
	assert.False(sess.HoldsLock())
}

func TestRuntimeErrorCarriesPC(t *testing.T) {
	assert := assert.New(t)
	p := build(t, func(b *vdbe.Builder) error {
		cur := b.AllocCursor(vdbe.CursorInfo{Kind: vdbe.CursorBTreeTable})
		b.Emit(&vdbe.OpenRead{Cursor: cur, RootPage: 42})
		return nil
	})
	_, err := runAll(New(p, store.New().NewSession(), nil))
	assert.NotNil(err)
	assert.Contains(err.Error(), "vm: pc=1 (OpenRead)")
	assert.ErrorIs(err, store.ErrNoSuchTree)
}

func TestSorterPseudo(t *testing.T) {
	assert := assert.New(t)
	p := build(t, func(b *vdbe.Builder) error {
		sorter := b.AllocCursor(vdbe.CursorInfo{Kind: vdbe.CursorSorter, NumColumns: 2})
		pseudo := b.AllocCursor(vdbe.CursorInfo{Kind: vdbe.CursorPseudo, NumColumns: 2})
		keys := []vdbe.KeyInfo{{Desc: true}}
		r := b.AllocRegisters(2)
		rec := b.AllocRegister()
		data := b.AllocRegister()

		b.Emit(&vdbe.SorterOpen{Cursor: sorter, Keys: keys, NumColumns: 2})
		b.Emit(&vdbe.OpenPseudo{Cursor: pseudo, Content: data, NumColumns: 2})
		for i, v := range []int64{2, 9, 4} {
			b.Emit(&vdbe.Integer{Value: v, Dest: r.At(0)})
			b.Emit(&vdbe.Integer{Value: int64(i), Dest: r.At(1)})
			b.Emit(&vdbe.MakeRecord{Regs: r, Dest: rec})
			b.Emit(&vdbe.SorterInsert{Cursor: sorter, Record: rec})
		}
		_, err := b.SorterLoop(sorter, func(vdbe.LoopLabels) error {
			out := b.AllocRegisters(2)
			b.Emit(&vdbe.SorterData{Cursor: sorter, Dest: data, Pseudo: pseudo})
			b.Emit(&vdbe.Column{Cursor: pseudo, Column: 0, Dest: out.At(0)})
			b.Emit(&vdbe.Column{Cursor: pseudo, Column: 1, Dest: out.At(1)})
			b.Emit(&vdbe.ResultRow{Regs: out})
			return nil
		})
		return err
	})
	rows, err := runAll(New(p, store.New().NewSession(), nil))
	assert.Nil(err)
	assert.Equal([][]int64{{9, 1}, {4, 2}, {2, 0}}, ints(rows))
}

func TestCoroutine(t *testing.T) {
	assert := assert.New(t)
	p := build(t, func(b *vdbe.Builder) error {
		val := b.AllocRegister()
		yield, _, err := b.Coroutine(func(yield vdbe.Register) error {
			for _, v := range []int64{3, 1, 2} {
				b.Emit(&vdbe.Integer{Value: v, Dest: val})
				b.Emit(&vdbe.Yield{Yield: yield})
			}
			return nil
		})
		if err != nil {
			return err
		}
		_, err = b.YieldLoop(yield, func(vdbe.LoopLabels) error {
			b.Emit(&vdbe.ResultRow{Regs: vdbe.RegisterRange{Start: val, Count: 1}})
			return nil
		})
		return err
	})
	rows, err := runAll(New(p, store.New().NewSession(), nil))
	assert.Nil(err)
	assert.Equal([][]int64{{3}, {1}, {2}}, ints(rows))
}

func TestSubroutineAndOnce(t *testing.T) {
	assert := assert.New(t)
	p := build(t, func(b *vdbe.Builder) error {
		counter := b.AllocRegister()
		onceHits := b.AllocRegister()
		one := b.AllocRegister()
		loops := b.AllocRegister()
		b.Emit(&vdbe.Integer{Value: 0, Dest: counter})
		b.Emit(&vdbe.Integer{Value: 0, Dest: onceHits})
		b.Emit(&vdbe.Integer{Value: 1, Dest: one})
		b.Emit(&vdbe.Integer{Value: 3, Dest: loops})

		entry, ret, err := b.Subroutine(func(vdbe.Register) error {
			b.Emit(&vdbe.Arith{Op: vdbe.OpAdd, Lhs: counter, Rhs: one, Dest: counter})
			return nil
		})
		if err != nil {
			return err
		}

		top := b.AllocLabel()
		if err := b.BindHere(top); err != nil {
			return err
		}
		b.CallSubroutine(entry, ret)
		if err := b.Once(func() error {
			b.Emit(&vdbe.Arith{Op: vdbe.OpAdd, Lhs: onceHits, Rhs: one, Dest: onceHits})
			return nil
		}); err != nil {
			return err
		}
		done := b.AllocLabel()
		b.Emit(&vdbe.DecrJumpZero{Reg: loops, Target: done})
		b.Emit(&vdbe.Goto{Target: top})
		if err := b.BindHere(done); err != nil {
			return err
		}
		b.Emit(&vdbe.ResultRow{Regs: vdbe.RegisterRange{Start: counter, Count: 2}})
		return nil
	})
	rows, err := runAll(New(p, store.New().NewSession(), nil))
	assert.Nil(err)
	assert.Equal([][]int64{{3, 1}}, ints(rows))
}

func TestIndexSeek(t *testing.T) {
	assert := assert.New(t)
	s := store.New()
	root := s.CreateTree(true)

	p := build(t, func(b *vdbe.Builder) error {
		cur := b.AllocCursor(vdbe.CursorInfo{
			Kind:     vdbe.CursorBTreeIndex,
			RootPage: root,
			Keys:     []vdbe.KeyInfo{{Collation: vdbe.CollNoCase}, {}},
		})
		r := b.AllocRegisters(2)
		rec := b.AllocRegister()
		b.Emit(&vdbe.Transaction{Write: true})
		b.Emit(&vdbe.OpenWrite{Cursor: cur, RootPage: root})
		for i, name := range []string{"b", "A", "c"} {
			b.Emit(&vdbe.String8{Value: name, Dest: r.At(0)})
			b.Emit(&vdbe.Integer{Value: int64(i + 1), Dest: r.At(1)})
			b.Emit(&vdbe.MakeRecord{Regs: r, Dest: rec})
			b.Emit(&vdbe.IdxInsert{Cursor: cur, Record: rec})
		}

		// every entry >= 'a' and <= 'b'
		key := b.AllocRegister()
		hi := b.AllocRegister()
		out := b.AllocRegister()
		done := b.AllocLabel()
		top := b.AllocLabel()
		b.Emit(&vdbe.String8{Value: "a", Dest: key})
		b.Emit(&vdbe.String8{Value: "B", Dest: hi})
		b.Emit(&vdbe.Seek{Op: vdbe.OpSeekGE, Cursor: cur, Key: vdbe.RegisterRange{Start: key, Count: 1}, NotFound: done})
		if err := b.BindHere(top); err != nil {
			return err
		}
		b.Emit(&vdbe.IdxCmp{Op: vdbe.OpIdxGT, Cursor: cur, Key: vdbe.RegisterRange{Start: hi, Count: 1}, Target: done})
		b.Emit(&vdbe.IdxRowId{Cursor: cur, Dest: out})
		b.Emit(&vdbe.ResultRow{Regs: vdbe.RegisterRange{Start: out, Count: 1}})
		b.Emit(&vdbe.Next{Cursor: cur, Start: top})
		return b.BindHere(done)
	})
	rows, err := runAll(New(p, s.NewSession(), nil))
	assert.Nil(err)
	assert.Equal([][]int64{{2}, {1}}, ints(rows))
}

func TestAggregate(t *testing.T) {
	assert := assert.New(t)
	p := build(t, func(b *vdbe.Builder) error {
		v := b.AllocRegister()
		sum := b.AllocRegister()
		cnt := b.AllocRegister()
		max := b.AllocRegister()
		b.Emit(&vdbe.Null{Dest: sum, End: max})
		for _, x := range []int64{4, 7, 1} {
			b.Emit(&vdbe.Integer{Value: x, Dest: v})
			b.Emit(&vdbe.AggStep{Args: vdbe.RegisterRange{Start: v, Count: 1}, Accum: sum, Func: "sum"})
			b.Emit(&vdbe.AggStep{Args: vdbe.RegisterRange{Start: v, Count: 0}, Accum: cnt, Func: "count"})
			b.Emit(&vdbe.AggStep{Args: vdbe.RegisterRange{Start: v, Count: 1}, Accum: max, Func: "max"})
		}
		b.Emit(&vdbe.AggFinal{Accum: sum, Func: "sum"})
		b.Emit(&vdbe.AggFinal{Accum: cnt, Func: "count"})
		b.Emit(&vdbe.AggFinal{Accum: max, Func: "max"})
		b.Emit(&vdbe.ResultRow{Regs: vdbe.RegisterRange{Start: sum, Count: 3}})

		// a group with no rows
		b.Emit(&vdbe.Null{Dest: sum, End: max})
		b.Emit(&vdbe.AggFinal{Accum: sum, Func: "sum"})
		b.Emit(&vdbe.AggFinal{Accum: cnt, Func: "count"})
		b.Emit(&vdbe.AggFinal{Accum: max, Func: "max"})
		b.Emit(&vdbe.ResultRow{Regs: vdbe.RegisterRange{Start: sum, Count: 3}})
		return nil
	})
	rows, err := runAll(New(p, store.New().NewSession(), nil))
	assert.Nil(err)
	assert.Equal(2, len(rows))
	assert.Equal([]int64{12, 3, 7}, ints(rows)[0])
	assert.True(rows[1][0].IsNull())
	assert.Equal(int64(0), rows[1][1].Int)
	assert.True(rows[1][2].IsNull())
}

func TestAggregators(t *testing.T) {
	assert := assert.New(t)
	step := func(name string, vals ...vdbe.Value) vdbe.Value {
		a, err := NewAggregator(name)
		assert.Nil(err)
		for _, v := range vals {
			assert.Nil(a.Step([]vdbe.Value{v}))
		}
		return a.Final()
	}
	assert.Equal(2.5, step("avg", vdbe.IntValue(2), vdbe.IntValue(3), vdbe.NullValue()).Real)
	assert.Equal(0.0, step("total").Real)
	assert.Equal(vdbe.ValueReal, step("sum", vdbe.IntValue(1), vdbe.RealValue(1.5)).Ty)
	assert.Equal("a", step("min", vdbe.TextValue("b"), vdbe.TextValue("a")).Text)
	assert.Equal(int64(2), step("count", vdbe.IntValue(1), vdbe.NullValue(), vdbe.IntValue(3)).Int)

	_, err := NewAggregator("median")
	assert.NotNil(err)
}

func TestStatAccum(t *testing.T) {
	assert := assert.New(t)

	// (1,x) (1,y) (2,x)
	acc := NewStatAccum(2)
	acc.Push(0)
	acc.Push(1)
	acc.Push(0)
	assert.Equal("3 2 1", acc.Stat())

	// a key repeating in full
	acc = NewStatAccum(1)
	acc.Push(0)
	acc.Push(1)
	acc.Push(1)
	assert.Equal("3 3", acc.Stat())
	assert.Equal(int64(3), acc.Rows())

	// 21 rows, 11 distinct keys
	acc = NewStatAccum(1)
	acc.Push(0)
	for i := 0; i < 20; i++ {
		acc.Push(i % 2)
	}
	assert.Equal("21 2", acc.Stat())

	// nearly unique keys still round up
	for _, c := range []struct {
		rows, distinct int
		stat           string
	}{
		{11, 10, "11 2"},
		{22, 21, "22 2"},
		{10, 10, "10 1"},
	} {
		acc = NewStatAccum(1)
		for i := 0; i < c.rows; i++ {
			if i < c.distinct {
				acc.Push(0)
			} else {
				acc.Push(1)
			}
		}
		assert.Equal(c.stat, acc.Stat())
	}
}

func TestStatFunctions(t *testing.T) {
	assert := assert.New(t)
	p := build(t, func(b *vdbe.Builder) error {
		n := b.AllocRegister()
		stat := b.AllocRegister()
		chng := b.AllocRegister()
		out := b.AllocRegister()
		b.Emit(&vdbe.Integer{Value: 2, Dest: n})
		b.Emit(&vdbe.Function{Args: vdbe.RegisterRange{Start: n, Count: 1}, Dest: stat, Func: FuncStatInit})
		for _, c := range []int64{0, 1, 0} {
			b.Emit(&vdbe.Integer{Value: c, Dest: chng})
			b.Emit(&vdbe.Function{Args: vdbe.RegisterRange{Start: stat, Count: 2}, Dest: out, Func: FuncStatPush})
		}
		b.Emit(&vdbe.Function{Args: vdbe.RegisterRange{Start: stat, Count: 1}, Dest: out, Func: FuncStatGet})
		b.Emit(&vdbe.ResultRow{Regs: vdbe.RegisterRange{Start: out, Count: 1}})
		return nil
	})
	rows, err := runAll(New(p, store.New().NewSession(), nil))
	assert.Nil(err)
	assert.Equal("3 2 1", rows[0][0].Text)
}

func TestCompareHolds(t *testing.T) {
	assert := assert.New(t)
	ne := &vdbe.Cmp{Op: vdbe.OpNe, Flags: vdbe.CmpNullEq}
	assert.False(compareHolds(ne, vdbe.NullValue(), vdbe.NullValue()))
	assert.True(compareHolds(ne, vdbe.NullValue(), vdbe.IntValue(1)))

	eq := &vdbe.Cmp{Op: vdbe.OpEq, Collation: vdbe.CollNoCase}
	assert.True(compareHolds(eq, vdbe.TextValue("AbC"), vdbe.TextValue("abc")))
	assert.False(compareHolds(eq, vdbe.NullValue(), vdbe.NullValue()))

	eq.Flags = vdbe.CmpJumpIfNull
	assert.True(compareHolds(eq, vdbe.NullValue(), vdbe.IntValue(1)))

	lt := &vdbe.Cmp{Op: vdbe.OpLt}
	assert.True(compareHolds(lt, vdbe.IntValue(1), vdbe.TextValue("1")))
}

func TestReverseScan(t *testing.T) {
	assert := assert.New(t)
	s := store.New()
	root := s.CreateTree(false)

	p := build(t, func(b *vdbe.Builder) error {
		cur := b.AllocCursor(vdbe.CursorInfo{Kind: vdbe.CursorBTreeTable, Name: "t", RootPage: root, NumColumns: 1})
		rowid := b.AllocRegister()
		val := b.AllocRegister()
		rec := b.AllocRegister()
		b.Emit(&vdbe.Transaction{Write: true})
		b.Emit(&vdbe.OpenWrite{Cursor: cur, RootPage: root})
		for _, v := range []int64{10, 20, 30} {
			b.Emit(&vdbe.NewRowId{Cursor: cur, Dest: rowid})
			b.Emit(&vdbe.Integer{Value: v, Dest: val})
			b.Emit(&vdbe.MakeRecord{Regs: vdbe.RegisterRange{Start: val, Count: 1}, Dest: rec})
			b.Emit(&vdbe.Insert{Cursor: cur, Key: rowid, Record: rec, Table: "t"})
		}
		_, err := b.ForEachRev(cur, func(vdbe.LoopLabels) error {
			out := b.AllocRegisters(3)
			b.Emit(&vdbe.RowId{Cursor: cur, Dest: out.At(0)})
			b.Emit(&vdbe.Column{Cursor: cur, Column: 0, Dest: out.At(1)})
			b.Emit(&vdbe.RowData{Cursor: cur, Dest: out.At(2)})
			b.Emit(&vdbe.ResultRow{Regs: out})
			return nil
		})
		return err
	})

	rows, err := runAll(New(p, s.NewSession(), nil))
	assert.Nil(err)
	if !assert.Equal(3, len(rows)) {
		return
	}
	for i, want := range [][]int64{{3, 30}, {2, 20}, {1, 10}} {
		assert.Equal(want[0], rows[i][0].Int)
		assert.Equal(want[1], rows[i][1].Int)

		assert.Equal(vdbe.ValueBlob, rows[i][2].Ty)
		rec, err := vdbe.DecodeRecord(rows[i][2].Blob)
		assert.Nil(err)
		assert.Equal(1, len(rec))
		assert.Equal(want[1], rec[0].Int)
	}

	// an empty tree jumps straight past the loop
	empty := s.CreateTree(false)
	p = build(t, func(b *vdbe.Builder) error {
		cur := b.AllocCursor(vdbe.CursorInfo{Kind: vdbe.CursorBTreeTable, RootPage: empty})
		out := b.AllocRegister()
		b.Emit(&vdbe.OpenRead{Cursor: cur, RootPage: empty})
		_, err := b.ForEachRev(cur, func(vdbe.LoopLabels) error {
			b.Emit(&vdbe.RowId{Cursor: cur, Dest: out})
			b.Emit(&vdbe.ResultRow{Regs: vdbe.RegisterRange{Start: out, Count: 1}})
			return nil
		})
		return err
	})
	rows, err = runAll(New(p, s.NewSession(), nil))
	assert.Nil(err)
	assert.Equal(0, len(rows))
}

func TestDeferredSeek(t *testing.T) {
	assert := assert.New(t)
	s := store.New()
	troot := s.CreateTree(false)
	iroot := s.CreateTree(true)

	var tc vdbe.Cursor
	p := build(t, func(b *vdbe.Builder) error {
		tc = b.AllocCursor(vdbe.CursorInfo{Kind: vdbe.CursorBTreeTable, Name: "t", RootPage: troot, NumColumns: 2})
		ic := b.AllocCursor(vdbe.CursorInfo{
			Kind:     vdbe.CursorBTreeIndex,
			Name:     "t_name",
			RootPage: iroot,
			Keys:     []vdbe.KeyInfo{{}, {}},
		})
		rowid := b.AllocRegister()
		row := b.AllocRegisters(2)
		key := b.AllocRegisters(2)
		rec := b.AllocRegister()
		b.Emit(&vdbe.Transaction{Write: true})
		b.Emit(&vdbe.OpenWrite{Cursor: tc, RootPage: troot})
		b.Emit(&vdbe.OpenWrite{Cursor: ic, RootPage: iroot})
		for i, name := range []string{"c", "a", "b"} {
			b.Emit(&vdbe.Integer{Value: int64(i + 1), Dest: rowid})
			b.Emit(&vdbe.String8{Value: name, Dest: row.At(0)})
			b.Emit(&vdbe.Integer{Value: int64(100 * (i + 1)), Dest: row.At(1)})
			b.Emit(&vdbe.MakeRecord{Regs: row, Dest: rec})
			b.Emit(&vdbe.Insert{Cursor: tc, Key: rowid, Record: rec, Table: "t"})
			b.Emit(&vdbe.String8{Value: name, Dest: key.At(0)})
			b.Emit(&vdbe.Integer{Value: int64(i + 1), Dest: key.At(1)})
			b.Emit(&vdbe.MakeRecord{Regs: key, Dest: rec})
			b.Emit(&vdbe.IdxInsert{Cursor: ic, Record: rec})
		}

		_, err := b.ForEach(ic, func(vdbe.LoopLabels) error {
			id := b.AllocRegister()
			val := b.AllocRegister()
			b.Emit(&vdbe.DeferredSeek{Index: ic, Table: tc})
			b.Emit(&vdbe.IdxRowId{Cursor: ic, Dest: id})
			b.Emit(&vdbe.ResultRow{Regs: vdbe.RegisterRange{Start: id, Count: 1}})
			b.Emit(&vdbe.Column{Cursor: tc, Column: 1, Dest: val})
			b.Emit(&vdbe.ResultRow{Regs: vdbe.RegisterRange{Start: val, Count: 1}})
			return nil
		})
		return err
	})

	m := New(p, s.NewSession(), nil)
	got := []int64{}
	for _, want := range []struct{ rowid, val int64 }{{2, 200}, {3, 300}, {1, 100}} {
		// the table row is not looked up until a column of it is read
		r, err := m.Step()
		assert.Nil(err)
		assert.Equal(StepRow, r)
		assert.Equal(want.rowid, m.Row()[0].Int)
		assert.NotNil(m.cursors[tc].deferred)

		r, err = m.Step()
		assert.Nil(err)
		assert.Equal(StepRow, r)
		got = append(got, m.Row()[0].Int)
		assert.Nil(m.cursors[tc].deferred)
		assert.Equal(want.rowid, m.cursors[tc].cur.Rowid())
		assert.Equal(want.val, m.Row()[0].Int)
	}
	r, err := m.Step()
	assert.Nil(err)
	assert.Equal(StepDone, r)
	assert.Equal([]int64{200, 300, 100}, got)
}
