package vdbe

import (
	"fmt"
)

// ReferencedLabels lists every label the instruction may transfer control to.
func ReferencedLabels(insn Insn) []Label {
	switch v := insn.(type) {
	case *Init:
		return []Label{v.Target}
	case *Goto:
		return []Label{v.Target}
	case *Gosub:
		return []Label{v.Target}
	case *Once:
		return []Label{v.Target}
	case *InitCoroutine:
		return []Label{v.Jump, v.Start}
	case *Yield:
		return []Label{v.End}
	case *Cmp:
		return []Label{v.Target}
	case *If:
		return []Label{v.Target}
	case *IfNot:
		return []Label{v.Target}
	case *IsNull:
		return []Label{v.Target}
	case *NotNull:
		return []Label{v.Target}
	case *IfPos:
		return []Label{v.Target}
	case *DecrJumpZero:
		return []Label{v.Target}
	case *Jump:
		return []Label{v.Lt, v.Eq, v.Gt}
	case *Rewind:
		return []Label{v.IfEmpty}
	case *Last:
		return []Label{v.IfEmpty}
	case *Next:
		return []Label{v.Start}
	case *Prev:
		return []Label{v.Start}
	case *SeekRowid:
		return []Label{v.NotFound}
	case *Seek:
		return []Label{v.NotFound}
	case *IdxCmp:
		return []Label{v.Target}
	case *SorterSort:
		return []Label{v.IfEmpty}
	case *SorterNext:
		return []Label{v.Start}
	case *Return, *Halt, *HaltIfNull, *EndCoroutine, *BeginSubrtn, *Noop,
		*Compare, *OpenRead, *OpenWrite, *OpenPseudo, *OpenEphemeral, *Close,
		*NullRow, *Count, *Column, *RowId, *IdxRowId, *RowData, *DeferredSeek,
		*Null, *Integer, *Real, *String8, *Blob, *Copy, *SCopy, *Move, *Cast,
		*RealAffinity, *AffinityInsn, *Arith, *BitNot, *Not, *NewRowId,
		*Insert, *Delete, *IdxInsert, *IdxDelete, *MakeRecord, *ResultRow,
		*AggStep, *AggFinal, *AggValue, *Function, *SorterOpen,
		*SorterInsert, *SorterData, *CreateBtree, *ParseSchema, *SetCookie,
		*Transaction, *AutoCommit:
		return nil
	default:
		panic(fmt.Sprintf("unknown instruction %T", insn))
	}
}

// IsJump reports whether the instruction carries at least one label.
func IsJump(insn Insn) bool {
	return len(ReferencedLabels(insn)) > 0
}

func span(r Register, n int) []Register {
	return RegisterRange{Start: r, Count: n}.Slice()
}

// ReadsRegisters lists the registers whose value the instruction consumes.
func ReadsRegisters(insn Insn) []Register {
	switch v := insn.(type) {
	case *Return:
		return []Register{v.Return}
	case *HaltIfNull:
		return []Register{v.Reg}
	case *Yield:
		return []Register{v.Yield}
	case *EndCoroutine:
		return []Register{v.Yield}
	case *Cmp:
		return []Register{v.Lhs, v.Rhs}
	case *If:
		return []Register{v.Reg}
	case *IfNot:
		return []Register{v.Reg}
	case *IsNull:
		return []Register{v.Reg}
	case *NotNull:
		return []Register{v.Reg}
	case *IfPos:
		return []Register{v.Reg}
	case *DecrJumpZero:
		return []Register{v.Reg}
	case *Compare:
		return append(v.Lhs.Slice(), v.Rhs.Slice()...)
	case *OpenWrite:
		if v.RootReg != 0 {
			return []Register{v.RootReg}
		}
		return nil
	case *OpenPseudo:
		return []Register{v.Content}
	case *SeekRowid:
		return []Register{v.Rowid}
	case *Seek:
		return v.Key.Slice()
	case *IdxCmp:
		return v.Key.Slice()
	case *Copy:
		return span(v.Src, v.Extra+1)
	case *SCopy:
		return []Register{v.Src}
	case *Move:
		return span(v.Src, v.Count)
	case *Cast:
		return []Register{v.Reg}
	case *RealAffinity:
		return []Register{v.Reg}
	case *AffinityInsn:
		return v.Regs.Slice()
	case *Arith:
		return []Register{v.Lhs, v.Rhs}
	case *BitNot:
		return []Register{v.Reg}
	case *Not:
		return []Register{v.Reg}
	case *Insert:
		return []Register{v.Key, v.Record}
	case *IdxInsert:
		return []Register{v.Record}
	case *IdxDelete:
		return v.Key.Slice()
	case *MakeRecord:
		return v.Regs.Slice()
	case *ResultRow:
		return v.Regs.Slice()
	case *AggStep:
		return append(v.Args.Slice(), v.Accum)
	case *AggFinal:
		return []Register{v.Accum}
	case *AggValue:
		return []Register{v.Accum}
	case *Function:
		return v.Args.Slice()
	case *SorterInsert:
		return []Register{v.Record}
	case *Init, *Goto, *Gosub, *Halt, *Once, *InitCoroutine, *BeginSubrtn,
		*Noop, *Jump, *OpenRead, *OpenEphemeral, *Close, *Rewind, *Last,
		*Next, *Prev, *NullRow, *Count, *Column, *RowId, *IdxRowId, *RowData,
		*DeferredSeek, *Null, *Integer, *Real, *String8, *Blob, *NewRowId,
		*Delete, *SorterOpen, *SorterSort, *SorterNext, *SorterData,
		*CreateBtree, *ParseSchema, *SetCookie, *Transaction, *AutoCommit:
		return nil
	default:
		panic(fmt.Sprintf("unknown instruction %T", insn))
	}
}

// WritesRegisters lists the registers the instruction stores into.
func WritesRegisters(insn Insn) []Register {
	switch v := insn.(type) {
	case *Gosub:
		return []Register{v.Return}
	case *InitCoroutine:
		return []Register{v.Yield}
	case *Yield:
		return []Register{v.Yield}
	case *EndCoroutine:
		return []Register{v.Yield}
	case *BeginSubrtn:
		return []Register{v.Return}
	case *IfPos:
		return []Register{v.Reg}
	case *DecrJumpZero:
		return []Register{v.Reg}
	case *Count:
		return []Register{v.Dest}
	case *Column:
		return []Register{v.Dest}
	case *RowId:
		return []Register{v.Dest}
	case *IdxRowId:
		return []Register{v.Dest}
	case *RowData:
		return []Register{v.Dest}
	case *Null:
		if v.End != 0 && v.End > v.Dest {
			return span(v.Dest, int(v.End-v.Dest)+1)
		}
		return []Register{v.Dest}
	case *Integer:
		return []Register{v.Dest}
	case *Real:
		return []Register{v.Dest}
	case *String8:
		return []Register{v.Dest}
	case *Blob:
		return []Register{v.Dest}
	case *Copy:
		return span(v.Dest, v.Extra+1)
	case *SCopy:
		return []Register{v.Dest}
	case *Move:
		return append(span(v.Dest, v.Count), span(v.Src, v.Count)...)
	case *Cast:
		return []Register{v.Reg}
	case *RealAffinity:
		return []Register{v.Reg}
	case *AffinityInsn:
		return v.Regs.Slice()
	case *Arith:
		return []Register{v.Dest}
	case *BitNot:
		return []Register{v.Dest}
	case *Not:
		return []Register{v.Dest}
	case *NewRowId:
		return []Register{v.Dest}
	case *MakeRecord:
		return []Register{v.Dest}
	case *AggStep:
		return []Register{v.Accum}
	case *AggFinal:
		return []Register{v.Accum}
	case *AggValue:
		return []Register{v.Dest}
	case *Function:
		return []Register{v.Dest}
	case *SorterData:
		return []Register{v.Dest}
	case *CreateBtree:
		return []Register{v.Dest}
	case *Init, *Goto, *Return, *Halt, *HaltIfNull, *Once, *Noop, *Cmp, *If,
		*IfNot, *IsNull, *NotNull, *Compare, *Jump, *OpenRead, *OpenWrite,
		*OpenPseudo, *OpenEphemeral, *Close, *Rewind, *Last, *Next, *Prev,
		*SeekRowid, *Seek, *IdxCmp, *NullRow, *DeferredSeek, *Insert, *Delete,
		*IdxInsert, *IdxDelete, *ResultRow, *SorterOpen, *SorterInsert,
		*SorterSort, *SorterNext, *ParseSchema, *SetCookie, *Transaction,
		*AutoCommit:
		return nil
	default:
		panic(fmt.Sprintf("unknown instruction %T", insn))
	}
}

// UsedCursor returns the cursor an instruction operates on, if any.
func UsedCursor(insn Insn) (Cursor, bool) {
	switch v := insn.(type) {
	case *OpenRead:
		return v.Cursor, true
	case *OpenWrite:
		return v.Cursor, true
	case *OpenPseudo:
		return v.Cursor, true
	case *OpenEphemeral:
		return v.Cursor, true
	case *Close:
		return v.Cursor, true
	case *Rewind:
		return v.Cursor, true
	case *Last:
		return v.Cursor, true
	case *Next:
		return v.Cursor, true
	case *Prev:
		return v.Cursor, true
	case *SeekRowid:
		return v.Cursor, true
	case *Seek:
		return v.Cursor, true
	case *IdxCmp:
		return v.Cursor, true
	case *NullRow:
		return v.Cursor, true
	case *Count:
		return v.Cursor, true
	case *Column:
		return v.Cursor, true
	case *RowId:
		return v.Cursor, true
	case *IdxRowId:
		return v.Cursor, true
	case *RowData:
		return v.Cursor, true
	case *DeferredSeek:
		return v.Index, true
	case *NewRowId:
		return v.Cursor, true
	case *Insert:
		return v.Cursor, true
	case *Delete:
		return v.Cursor, true
	case *IdxInsert:
		return v.Cursor, true
	case *IdxDelete:
		return v.Cursor, true
	case *SorterOpen:
		return v.Cursor, true
	case *SorterInsert:
		return v.Cursor, true
	case *SorterSort:
		return v.Cursor, true
	case *SorterNext:
		return v.Cursor, true
	case *SorterData:
		return v.Cursor, true
	default:
		return 0, false
	}
}
