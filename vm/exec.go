package vm

import (
	"errors"
	"fmt"

	"github.com/dianpeng/sqlvdbe/store"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// exec runs one instruction. self.pc already points at the next instruction
// when exec is called, jumps overwrite it.
func (self *VM) exec(pc int, insn vdbe.Insn) (int, error) {
	switch x := insn.(type) {

	// ------------------------------------------------------------------------
	// control flow
	// ------------------------------------------------------------------------
	case *vdbe.Init:
		self.jump(x.Target)
	case *vdbe.Goto:
		self.jump(x.Target)
	case *vdbe.Gosub:
		self.set(x.Return, vdbe.IntValue(int64(self.pc)))
		self.jump(x.Target)
	case *vdbe.Return:
		// an untouched return register falls through
		if v := self.reg(x.Return); v.Ty == vdbe.ValueInt {
			self.pc = int(v.Int)
		}
	case *vdbe.BeginSubrtn:
		self.set(x.Return, vdbe.NullValue())
	case *vdbe.Halt:
		if x.ErrCode != 0 {
			return StepDone, &HaltError{Code: x.ErrCode, Message: x.Message}
		}
		return self.halt()
	case *vdbe.HaltIfNull:
		if self.reg(x.Reg).IsNull() {
			return StepDone, &HaltError{Code: x.ErrCode, Message: x.Message}
		}
	case *vdbe.Once:
		if self.once[pc] {
			self.jump(x.Target)
		} else {
			self.once[pc] = true
		}
	case *vdbe.InitCoroutine:
		self.set(x.Yield, vdbe.IntValue(int64(self.prog.Target(x.Start))))
		self.jump(x.Jump)
	case *vdbe.Yield:
		dest := self.reg(x.Yield)
		if dest.Ty != vdbe.ValueInt {
			return 0, fmt.Errorf("yield through uninitialized register %d", x.Yield)
		}
		self.set(x.Yield, vdbe.IntValue(int64(self.pc)))
		self.pc = int(dest.Int)
	case *vdbe.EndCoroutine:
		// the register holds the address after the consumer's Yield
		caller := self.reg(x.Yield)
		if caller.Ty != vdbe.ValueInt || caller.Int < 1 {
			return 0, fmt.Errorf("coroutine ended without a consumer")
		}
		y, ok := self.prog.At(vdbe.InsnPos(caller.Int - 1)).(*vdbe.Yield)
		if !ok {
			return 0, fmt.Errorf("coroutine returns to a non Yield instruction")
		}
		self.jump(y.End)
	case *vdbe.Noop:

	// ------------------------------------------------------------------------
	// comparisons and branches
	// ------------------------------------------------------------------------
	case *vdbe.Cmp:
		if compareHolds(x, self.reg(x.Lhs), self.reg(x.Rhs)) {
			self.jump(x.Target)
		}
	case *vdbe.If:
		t, null := self.reg(x.Reg).Truth()
		if (null && x.JumpIfNull) || (!null && t) {
			self.jump(x.Target)
		}
	case *vdbe.IfNot:
		t, null := self.reg(x.Reg).Truth()
		if (null && x.JumpIfNull) || (!null && !t) {
			self.jump(x.Target)
		}
	case *vdbe.IsNull:
		if self.reg(x.Reg).IsNull() {
			self.jump(x.Target)
		}
	case *vdbe.NotNull:
		if !self.reg(x.Reg).IsNull() {
			self.jump(x.Target)
		}
	case *vdbe.IfPos:
		v := self.reg(x.Reg).AsInt()
		if v > 0 {
			self.set(x.Reg, vdbe.IntValue(v-x.Decrement))
			self.jump(x.Target)
		}
	case *vdbe.DecrJumpZero:
		v := self.reg(x.Reg).AsInt() - 1
		self.set(x.Reg, vdbe.IntValue(v))
		if v == 0 {
			self.jump(x.Target)
		}
	case *vdbe.Compare:
		self.cmpResult = vdbe.CompareRecords(
			self.rangeValues(x.Lhs), self.rangeValues(x.Rhs), x.Keys)
	case *vdbe.Jump:
		switch {
		case self.cmpResult < 0:
			self.jump(x.Lt)
		case self.cmpResult == 0:
			self.jump(x.Eq)
		default:
			self.jump(x.Gt)
		}

	// ------------------------------------------------------------------------
	// cursors
	// ------------------------------------------------------------------------
	case *vdbe.OpenRead:
		if err := self.openTree(x.Cursor, x.RootPage); err != nil {
			return 0, err
		}
	case *vdbe.OpenWrite:
		root := x.RootPage
		if x.RootReg != 0 {
			root = int(self.reg(x.RootReg).AsInt())
		}
		if err := self.openTree(x.Cursor, root); err != nil {
			return 0, err
		}
	case *vdbe.OpenPseudo:
		self.cursors[x.Cursor] = &cursor{
			info:     self.prog.Cursor(x.Cursor),
			pseudo:   x.Content,
			isPseudo: true,
		}
	case *vdbe.OpenEphemeral:
		info := self.prog.Cursor(x.Cursor)
		bt := self.store.Ephemeral(!x.IsTable, info.Keys)
		self.cursors[x.Cursor] = &cursor{
			info: info,
			bt:   bt,
			cur:  bt.Cursor(),
		}
	case *vdbe.Close:
		if int(x.Cursor) < len(self.cursors) {
			self.cursors[x.Cursor] = nil
		}
	case *vdbe.Rewind:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		if self.ioPending(cur) {
			return StepIO, nil
		}
		cur.moved()
		if !cur.cur.First() {
			self.jump(x.IfEmpty)
		}
	case *vdbe.Last:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		if self.ioPending(cur) {
			return StepIO, nil
		}
		cur.moved()
		if !cur.cur.Last() {
			self.jump(x.IfEmpty)
		}
	case *vdbe.Next:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		if self.ioPending(cur) {
			return StepIO, nil
		}
		cur.moved()
		if cur.cur.Next() {
			self.jump(x.Start)
		}
	case *vdbe.Prev:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		if self.ioPending(cur) {
			return StepIO, nil
		}
		cur.moved()
		if cur.cur.Prev() {
			self.jump(x.Start)
		}
	case *vdbe.SeekRowid:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		cur.moved()
		cur.deferred = nil
		key := self.reg(x.Rowid)
		if key.Ty != vdbe.ValueInt {
			key = vdbe.ApplyAffinity(key, vdbe.AffinityInteger)
		}
		if key.Ty != vdbe.ValueInt || !cur.cur.SeekRowid(key.Int) {
			self.jump(x.NotFound)
		}
	case *vdbe.Seek:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		if !cur.isIndex() {
			return 0, fmt.Errorf("seek on table cursor %d", x.Cursor)
		}
		cur.moved()
		if !cur.cur.Seek(seekOp(x.Op), self.rangeValues(x.Key)) {
			self.jump(x.NotFound)
		}
	case *vdbe.IdxCmp:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		if !cur.cur.Valid() {
			return 0, fmt.Errorf("index compare on cursor %d with no current entry", x.Cursor)
		}
		if idxCmpHolds(x.Op, cur.cur.ComparePrefix(self.rangeValues(x.Key))) {
			self.jump(x.Target)
		}
	case *vdbe.NullRow:
		cur, err := self.cursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		cur.nullRow = true
		cur.deferred = nil
	case *vdbe.Count:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		self.set(x.Dest, vdbe.IntValue(cur.cur.Count()))

	// ------------------------------------------------------------------------
	// data access
	// ------------------------------------------------------------------------
	case *vdbe.Column:
		cur, err := self.cursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		v, err := cur.column(self.regs, x.Column)
		if err != nil {
			return 0, err
		}
		self.set(x.Dest, v)
	case *vdbe.RowId:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		v, err := cur.rowid()
		if err != nil {
			return 0, err
		}
		self.set(x.Dest, v)
	case *vdbe.IdxRowId:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		if !cur.isIndex() {
			return 0, fmt.Errorf("cursor %d is not an index cursor", x.Cursor)
		}
		v, err := cur.rowid()
		if err != nil {
			return 0, err
		}
		self.set(x.Dest, v)
	case *vdbe.RowData:
		cur, err := self.cursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		if err := cur.resolve(); err != nil {
			return 0, err
		}
		rec, err := cur.record(self.regs)
		if err != nil {
			return 0, err
		}
		self.set(x.Dest, vdbe.BlobValue(vdbe.EncodeRecord(rec)))
	case *vdbe.DeferredSeek:
		idx, err := self.btreeCursor(x.Index)
		if err != nil {
			return 0, err
		}
		tbl, err := self.btreeCursor(x.Table)
		if err != nil {
			return 0, err
		}
		tbl.moved()
		tbl.deferred = idx

	// ------------------------------------------------------------------------
	// loads and moves
	// ------------------------------------------------------------------------
	case *vdbe.Null:
		end := x.End
		if end < x.Dest {
			end = x.Dest
		}
		for r := x.Dest; r <= end; r++ {
			self.set(r, vdbe.NullValue())
		}
	case *vdbe.Integer:
		self.set(x.Dest, vdbe.IntValue(x.Value))
	case *vdbe.Real:
		self.set(x.Dest, vdbe.RealValue(x.Value))
	case *vdbe.String8:
		self.set(x.Dest, vdbe.TextValue(x.Value))
	case *vdbe.Blob:
		self.set(x.Dest, vdbe.BlobValue(x.Value))
	case *vdbe.Copy:
		for i := 0; i <= x.Extra; i++ {
			self.set(x.Dest+vdbe.Register(i), self.reg(x.Src+vdbe.Register(i)))
		}
	case *vdbe.SCopy:
		self.set(x.Dest, self.reg(x.Src))
	case *vdbe.Move:
		vals := make([]vdbe.Value, x.Count)
		for i := 0; i < x.Count; i++ {
			vals[i] = self.reg(x.Src + vdbe.Register(i))
			self.set(x.Src+vdbe.Register(i), vdbe.NullValue())
		}
		for i, v := range vals {
			self.set(x.Dest+vdbe.Register(i), v)
		}
	case *vdbe.Cast:
		self.set(x.Reg, vdbe.CastValue(self.reg(x.Reg), x.Affinity))
	case *vdbe.RealAffinity:
		if v := self.reg(x.Reg); v.Ty == vdbe.ValueInt {
			self.set(x.Reg, vdbe.RealValue(float64(v.Int)))
		}
	case *vdbe.AffinityInsn:
		self.applyAffinities(x.Regs, x.Affinities)

	// ------------------------------------------------------------------------
	// arithmetic and logic
	// ------------------------------------------------------------------------
	case *vdbe.Arith:
		v, err := arith(x.Op, self.reg(x.Lhs), self.reg(x.Rhs))
		if err != nil {
			return 0, err
		}
		self.set(x.Dest, v)
	case *vdbe.BitNot:
		v := self.reg(x.Reg)
		if v.IsNull() {
			self.set(x.Dest, v)
		} else {
			self.set(x.Dest, vdbe.IntValue(^toNumeric(v).AsInt()))
		}
	case *vdbe.Not:
		t, null := self.reg(x.Reg).Truth()
		if null {
			self.set(x.Dest, vdbe.NullValue())
		} else {
			self.set(x.Dest, vdbe.BoolValue(!t))
		}

	// ------------------------------------------------------------------------
	// mutation and records
	// ------------------------------------------------------------------------
	case *vdbe.NewRowId:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		self.set(x.Dest, vdbe.IntValue(cur.cur.NewRowid()))
	case *vdbe.Insert:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		key := self.reg(x.Key)
		if key.Ty != vdbe.ValueInt {
			return 0, fmt.Errorf("datatype mismatch")
		}
		rec := self.reg(x.Record)
		if rec.Ty != vdbe.ValueBlob {
			return 0, fmt.Errorf("insert of a non record value")
		}
		cur.moved()
		if err := cur.cur.Insert(key.Int, rec.Blob); err != nil {
			return 0, err
		}
		self.countChange(x.Table)
	case *vdbe.Delete:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		if err := cur.resolve(); err != nil {
			return 0, err
		}
		cur.moved()
		if err := cur.cur.Delete(); err != nil {
			return 0, err
		}
		self.countChange(x.Table)
	case *vdbe.IdxInsert:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		rec := self.reg(x.Record)
		if rec.Ty != vdbe.ValueBlob {
			return 0, fmt.Errorf("index insert of a non record value")
		}
		key, err := vdbe.DecodeRecord(rec.Blob)
		if err != nil {
			return 0, err
		}
		cur.moved()
		if err := cur.cur.InsertIndex(key); err != nil {
			return 0, err
		}
	case *vdbe.IdxDelete:
		cur, err := self.btreeCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		cur.moved()
		if err := cur.cur.DeleteIndex(self.rangeValues(x.Key)); err != nil {
			return 0, err
		}
	case *vdbe.MakeRecord:
		if x.Affinities != "" {
			self.applyAffinities(x.Regs, x.Affinities)
		}
		self.set(x.Dest, vdbe.BlobValue(vdbe.EncodeRecord(self.rangeValues(x.Regs))))
	case *vdbe.ResultRow:
		self.row = self.rangeValues(x.Regs)
		return StepRow, nil

	// ------------------------------------------------------------------------
	// aggregation and functions
	// ------------------------------------------------------------------------
	case *vdbe.AggStep:
		a, err := self.aggregator(x.Accum, x.Func)
		if err != nil {
			return 0, err
		}
		if err := a.Step(self.rangeValues(x.Args)); err != nil {
			return 0, err
		}
	case *vdbe.AggFinal:
		a, err := self.aggregator(x.Accum, x.Func)
		if err != nil {
			return 0, err
		}
		if s, ok := a.(*aggSum); ok && s.overflowed() {
			return 0, fmt.Errorf("integer overflow")
		}
		delete(self.aggs, x.Accum)
		self.set(x.Accum, a.Final())
	case *vdbe.AggValue:
		a, err := self.aggregator(x.Accum, x.Func)
		if err != nil {
			return 0, err
		}
		self.set(x.Dest, a.Value())
	case *vdbe.Function:
		if err := self.function(x); err != nil {
			return 0, err
		}

	// ------------------------------------------------------------------------
	// sorter
	// ------------------------------------------------------------------------
	case *vdbe.SorterOpen:
		self.cursors[x.Cursor] = &cursor{
			info:   self.prog.Cursor(x.Cursor),
			sorter: vdbe.NewSorter(x.Keys),
		}
	case *vdbe.SorterInsert:
		cur, err := self.sorterCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		rec := self.reg(x.Record)
		if rec.Ty != vdbe.ValueBlob {
			return 0, fmt.Errorf("sorter insert of a non record value")
		}
		vals, err := vdbe.DecodeRecord(rec.Blob)
		if err != nil {
			return 0, err
		}
		cur.sorter.Insert(vals)
	case *vdbe.SorterSort:
		cur, err := self.sorterCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		if cur.sorter.IsEmpty() {
			self.jump(x.IfEmpty)
		} else {
			cur.sorter.Sort()
		}
	case *vdbe.SorterNext:
		cur, err := self.sorterCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		cur.sorter.Next()
		if cur.sorter.HasMore() {
			self.jump(x.Start)
		}
	case *vdbe.SorterData:
		cur, err := self.sorterCursor(x.Cursor)
		if err != nil {
			return 0, err
		}
		rec := cur.sorter.Record()
		if rec == nil {
			return 0, fmt.Errorf("sorter %d has no current record", x.Cursor)
		}
		self.set(x.Dest, vdbe.BlobValue(vdbe.EncodeRecord(rec)))

	// ------------------------------------------------------------------------
	// schema and transactions
	// ------------------------------------------------------------------------
	case *vdbe.CreateBtree:
		self.set(x.Dest, vdbe.IntValue(int64(self.store.CreateTree(x.IsIndex))))
	case *vdbe.ParseSchema:
		if err := self.reloadSchema(); err != nil {
			return 0, err
		}
	case *vdbe.SetCookie:
		self.store.SetCookie(x.Value)
		if self.schema != nil {
			self.schema.Version = x.Value
		}
	case *vdbe.Transaction:
		if x.Write && !self.writing {
			if err := self.sess.BeginWrite(); err != nil {
				if errors.Is(err, store.ErrBusy) {
					return StepBusy, nil
				}
				return 0, err
			}
			self.writing = true
		}
	case *vdbe.AutoCommit:
		if err := self.autoCommit(x); err != nil {
			return 0, err
		}

	default:
		return 0, fmt.Errorf("unsupported instruction %T", insn)
	}
	return stepContinue, nil
}

func (self *VM) countChange(table string) {
	if self.prog.ChangeCountOn && table != "" {
		self.changes++
	}
}

func (self *VM) applyAffinities(regs vdbe.RegisterRange, affs string) {
	for i := 0; i < regs.Count && i < len(affs); i++ {
		r := regs.At(i)
		self.set(r, vdbe.ApplyAffinity(self.reg(r), vdbe.AffinityFromCode(affs[i])))
	}
}

func (self *VM) autoCommit(x *vdbe.AutoCommit) error {
	switch {
	case !x.Auto:
		return self.sess.Begin()
	case x.Rollback:
		if err := self.sess.Rollback(); err != nil {
			return err
		}
		// the undone transaction may have changed the catalog
		return self.reloadSchema()
	default:
		return self.sess.Commit()
	}
}

func (self *VM) function(x *vdbe.Function) error {
	switch x.Func {
	case FuncStatInit:
		n := self.reg(x.Args.At(0)).AsInt()
		self.stats[x.Dest] = NewStatAccum(int(n))
		self.set(x.Dest, vdbe.BlobValue(nil))
		return nil
	case FuncStatPush:
		acc, ok := self.stats[x.Args.At(0)]
		if !ok {
			return fmt.Errorf("stat_push on an uninitialized accumulator")
		}
		acc.Push(int(self.reg(x.Args.At(1)).AsInt()))
		return nil
	case FuncStatGet:
		acc, ok := self.stats[x.Args.At(0)]
		if !ok || acc.Rows() == 0 {
			self.set(x.Dest, vdbe.NullValue())
			return nil
		}
		self.set(x.Dest, vdbe.TextValue(acc.Stat()))
		return nil
	}
	v, err := callBuiltin(x.Func, self.rangeValues(x.Args))
	if err != nil {
		return err
	}
	self.set(x.Dest, v)
	return nil
}

func seekOp(op int) int {
	switch op {
	case vdbe.OpSeekGT:
		return store.SeekGT
	case vdbe.OpSeekLE:
		return store.SeekLE
	case vdbe.OpSeekLT:
		return store.SeekLT
	default:
		return store.SeekGE
	}
}

func idxCmpHolds(op int, c int) bool {
	switch op {
	case vdbe.OpIdxGE:
		return c >= 0
	case vdbe.OpIdxGT:
		return c > 0
	case vdbe.OpIdxLE:
		return c <= 0
	default:
		return c < 0
	}
}

func compareHolds(x *vdbe.Cmp, lhs, rhs vdbe.Value) bool {
	var c int
	if lhs.IsNull() || rhs.IsNull() {
		if !x.Flags.NullEq() {
			return x.Flags.JumpIfNull()
		}
		switch {
		case lhs.IsNull() && rhs.IsNull():
			c = 0
		case lhs.IsNull():
			c = -1
		default:
			c = 1
		}
	} else {
		c = vdbe.CompareValues(lhs, rhs, x.Collation)
	}

	switch x.Op {
	case vdbe.OpEq:
		return c == 0
	case vdbe.OpNe:
		return c != 0
	case vdbe.OpLt:
		return c < 0
	case vdbe.OpLe:
		return c <= 0
	case vdbe.OpGt:
		return c > 0
	default:
		return c >= 0
	}
}
