package vdbe

import (
	"fmt"
	"strings"
)

// ExplainRow is one line of the EXPLAIN listing of a program.
type ExplainRow struct {
	Addr    int
	Opcode  string
	P1      int
	P2      int
	P3      int
	P4      string
	P5      int
	Comment string
}

// Explain disassembles the program. Jump operands are printed as resolved
// addresses.
func Explain(p *Program) []ExplainRow {
	out := make([]ExplainRow, 0, len(p.Insns))
	for idx, insn := range p.Insns {
		row := explainInsn(p, insn)
		row.Addr = idx
		row.Opcode = OpName(insn.Opcode())
		if c, ok := p.Comments[InsnPos(idx)]; ok {
			row.Comment = c
		}
		out = append(out, row)
	}
	return out
}

func reg(r Register) string { return fmt.Sprintf("r[%d]", r) }

func regs(start Register, n int) string {
	if n <= 1 {
		return reg(start)
	}
	return RegisterRange{Start: start, Count: n}.String()
}

func cmpSymbol(op int) string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	default:
		return ">="
	}
}

func arithSymbol(op int) string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpRemainder:
		return "%"
	case OpConcat:
		return "||"
	case OpBitAnd:
		return "&"
	case OpBitOr:
		return "|"
	case OpAnd:
		return " AND "
	default:
		return " OR "
	}
}

func keyInfoP4(keys []KeyInfo) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		s := k.Collation.Name()
		if k.Desc {
			s = "-" + s
		}
		parts = append(parts, s)
	}
	return fmt.Sprintf("k(%d,%s)", len(keys), strings.Join(parts, ","))
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func columnName(p *Program, c Cursor, col int) string {
	info := p.Cursor(c)
	return fmt.Sprintf("%s.%s", info.DisplayName(c), info.ColumnName(col))
}

func explainInsn(p *Program, insn Insn) ExplainRow {
	at := func(l Label) int { return int(p.Target(l)) }

	switch v := insn.(type) {
	case *Init:
		return ExplainRow{P2: at(v.Target), Comment: fmt.Sprintf("Start at %d", at(v.Target))}
	case *Goto:
		return ExplainRow{P2: at(v.Target)}
	case *Gosub:
		return ExplainRow{P1: int(v.Return), P2: at(v.Target)}
	case *Return:
		return ExplainRow{P1: int(v.Return)}
	case *Halt:
		return ExplainRow{P1: v.ErrCode, P4: v.Message}
	case *HaltIfNull:
		return ExplainRow{
			P1:      v.ErrCode,
			P3:      int(v.Reg),
			P4:      v.Message,
			Comment: fmt.Sprintf("if (%s==NULL) halt", reg(v.Reg)),
		}
	case *Once:
		return ExplainRow{P2: at(v.Target), Comment: fmt.Sprintf("goto %d", at(v.Target))}
	case *InitCoroutine:
		return ExplainRow{P1: int(v.Yield), P2: at(v.Jump), P3: at(v.Start)}
	case *Yield:
		return ExplainRow{P1: int(v.Yield), P2: at(v.End)}
	case *EndCoroutine:
		return ExplainRow{P1: int(v.Yield)}
	case *BeginSubrtn:
		return ExplainRow{P2: int(v.Return), Comment: fmt.Sprintf("%s=NULL", reg(v.Return))}
	case *Noop:
		return ExplainRow{}

	case *Cmp:
		row := ExplainRow{
			P1: int(v.Lhs),
			P2: at(v.Target),
			P3: int(v.Rhs),
			Comment: fmt.Sprintf("if %s%s%s goto %d",
				reg(v.Lhs), cmpSymbol(v.Op), reg(v.Rhs), at(v.Target)),
		}
		if v.Collation != CollBinary {
			row.P4 = v.Collation.Name()
		}
		row.P5 = int(v.Flags)
		return row
	case *If:
		return ExplainRow{
			P1:      int(v.Reg),
			P2:      at(v.Target),
			P3:      b2i(v.JumpIfNull),
			Comment: fmt.Sprintf("if %s goto %d", reg(v.Reg), at(v.Target)),
		}
	case *IfNot:
		return ExplainRow{
			P1:      int(v.Reg),
			P2:      at(v.Target),
			P3:      b2i(v.JumpIfNull),
			Comment: fmt.Sprintf("if !%s goto %d", reg(v.Reg), at(v.Target)),
		}
	case *IsNull:
		return ExplainRow{
			P1:      int(v.Reg),
			P2:      at(v.Target),
			Comment: fmt.Sprintf("if (%s==NULL) goto %d", reg(v.Reg), at(v.Target)),
		}
	case *NotNull:
		return ExplainRow{
			P1:      int(v.Reg),
			P2:      at(v.Target),
			Comment: fmt.Sprintf("if (%s!=NULL) goto %d", reg(v.Reg), at(v.Target)),
		}
	case *IfPos:
		return ExplainRow{
			P1: int(v.Reg),
			P2: at(v.Target),
			P3: int(v.Decrement),
			Comment: fmt.Sprintf("if %s>0 then %s-=%d, goto %d",
				reg(v.Reg), reg(v.Reg), v.Decrement, at(v.Target)),
		}
	case *DecrJumpZero:
		return ExplainRow{
			P1:      int(v.Reg),
			P2:      at(v.Target),
			Comment: fmt.Sprintf("if (--%s)==0 goto %d", reg(v.Reg), at(v.Target)),
		}
	case *Compare:
		return ExplainRow{
			P1:      int(v.Lhs.Start),
			P2:      int(v.Rhs.Start),
			P3:      v.Lhs.Count,
			P4:      keyInfoP4(v.Keys),
			Comment: fmt.Sprintf("%s <-> %s", v.Lhs, v.Rhs),
		}
	case *Jump:
		return ExplainRow{P1: at(v.Lt), P2: at(v.Eq), P3: at(v.Gt)}

	case *OpenRead:
		info := p.Cursor(v.Cursor)
		return ExplainRow{
			P1: int(v.Cursor),
			P2: v.RootPage,
			P4: fmt.Sprintf("%d", info.NumColumns),
			Comment: fmt.Sprintf("%s=%s, root=%d",
				CursorKindName(info.Kind), info.DisplayName(v.Cursor), v.RootPage),
		}
	case *OpenWrite:
		info := p.Cursor(v.Cursor)
		if v.RootReg != 0 {
			return ExplainRow{
				P1: int(v.Cursor),
				P2: int(v.RootReg),
				P4: fmt.Sprintf("%d", info.NumColumns),
				P5: 2,
				Comment: fmt.Sprintf("%s=%s, root=%s",
					CursorKindName(info.Kind), info.DisplayName(v.Cursor), reg(v.RootReg)),
			}
		}
		return ExplainRow{
			P1: int(v.Cursor),
			P2: v.RootPage,
			P4: fmt.Sprintf("%d", info.NumColumns),
			Comment: fmt.Sprintf("%s=%s, root=%d",
				CursorKindName(info.Kind), info.DisplayName(v.Cursor), v.RootPage),
		}
	case *OpenPseudo:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      int(v.Content),
			P3:      v.NumColumns,
			Comment: fmt.Sprintf("%d columns in %s", v.NumColumns, reg(v.Content)),
		}
	case *OpenEphemeral:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      v.NumColumns,
			Comment: fmt.Sprintf("nColumn=%d", v.NumColumns),
		}
	case *Close:
		return ExplainRow{P1: int(v.Cursor)}
	case *Rewind:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      at(v.IfEmpty),
			Comment: fmt.Sprintf("Rewind %s", p.Cursor(v.Cursor).DisplayName(v.Cursor)),
		}
	case *Last:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      at(v.IfEmpty),
			Comment: fmt.Sprintf("Last %s", p.Cursor(v.Cursor).DisplayName(v.Cursor)),
		}
	case *Next:
		return ExplainRow{P1: int(v.Cursor), P2: at(v.Start)}
	case *Prev:
		return ExplainRow{P1: int(v.Cursor), P2: at(v.Start)}
	case *SeekRowid:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      at(v.NotFound),
			P3:      int(v.Rowid),
			Comment: fmt.Sprintf("intkey=%s", reg(v.Rowid)),
		}
	case *Seek:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      at(v.NotFound),
			P3:      int(v.Key.Start),
			P4:      fmt.Sprintf("%d", v.Key.Count),
			Comment: fmt.Sprintf("key=%s", v.Key),
		}
	case *IdxCmp:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      at(v.Target),
			P3:      int(v.Key.Start),
			P4:      fmt.Sprintf("%d", v.Key.Count),
			Comment: fmt.Sprintf("key=%s", v.Key),
		}
	case *NullRow:
		return ExplainRow{P1: int(v.Cursor)}
	case *Count:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      int(v.Dest),
			P3:      b2i(v.Exact),
			Comment: fmt.Sprintf("%s=count()", reg(v.Dest)),
		}

	case *Column:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      v.Column,
			P3:      int(v.Dest),
			Comment: fmt.Sprintf("%s=%s", reg(v.Dest), columnName(p, v.Cursor, v.Column)),
		}
	case *RowId:
		return ExplainRow{
			P1: int(v.Cursor),
			P2: int(v.Dest),
			Comment: fmt.Sprintf("%s=%s.rowid",
				reg(v.Dest), p.Cursor(v.Cursor).DisplayName(v.Cursor)),
		}
	case *IdxRowId:
		return ExplainRow{
			P1: int(v.Cursor),
			P2: int(v.Dest),
			Comment: fmt.Sprintf("%s=%s.rowid",
				reg(v.Dest), p.Cursor(v.Cursor).DisplayName(v.Cursor)),
		}
	case *RowData:
		return ExplainRow{P1: int(v.Cursor), P2: int(v.Dest), Comment: fmt.Sprintf("%s=data", reg(v.Dest))}
	case *DeferredSeek:
		return ExplainRow{P1: int(v.Index), P3: int(v.Table)}

	case *Null:
		if v.End != 0 && v.End > v.Dest {
			return ExplainRow{
				P2:      int(v.Dest),
				P3:      int(v.End),
				Comment: fmt.Sprintf("r[%d..%d]=NULL", v.Dest, v.End),
			}
		}
		return ExplainRow{P2: int(v.Dest), Comment: fmt.Sprintf("%s=NULL", reg(v.Dest))}
	case *Integer:
		return ExplainRow{
			P1:      int(v.Value),
			P2:      int(v.Dest),
			Comment: fmt.Sprintf("%s=%d", reg(v.Dest), v.Value),
		}
	case *Real:
		s := RealValue(v.Value).String()
		return ExplainRow{P2: int(v.Dest), P4: s, Comment: fmt.Sprintf("%s=%s", reg(v.Dest), s)}
	case *String8:
		return ExplainRow{
			P2:      int(v.Dest),
			P4:      v.Value,
			Comment: fmt.Sprintf("%s='%s'", reg(v.Dest), v.Value),
		}
	case *Blob:
		s := BlobValue(v.Value).String()
		return ExplainRow{
			P1:      len(v.Value),
			P2:      int(v.Dest),
			P4:      s,
			Comment: fmt.Sprintf("%s=%s", reg(v.Dest), s),
		}
	case *Copy:
		return ExplainRow{
			P1:      int(v.Src),
			P2:      int(v.Dest),
			P3:      v.Extra,
			Comment: fmt.Sprintf("%s=%s", regs(v.Dest, v.Extra+1), regs(v.Src, v.Extra+1)),
		}
	case *SCopy:
		return ExplainRow{
			P1:      int(v.Src),
			P2:      int(v.Dest),
			Comment: fmt.Sprintf("%s=%s", reg(v.Dest), reg(v.Src)),
		}
	case *Move:
		return ExplainRow{
			P1:      int(v.Src),
			P2:      int(v.Dest),
			P3:      v.Count,
			Comment: fmt.Sprintf("%s=%s", regs(v.Dest, v.Count), regs(v.Src, v.Count)),
		}
	case *Cast:
		return ExplainRow{
			P1:      int(v.Reg),
			P2:      int(v.Affinity.Code()),
			Comment: fmt.Sprintf("affinity(%s)", reg(v.Reg)),
		}
	case *RealAffinity:
		return ExplainRow{P1: int(v.Reg)}
	case *AffinityInsn:
		return ExplainRow{
			P1:      int(v.Regs.Start),
			P2:      v.Regs.Count,
			P4:      v.Affinities,
			Comment: fmt.Sprintf("affinity(%s)", v.Regs),
		}

	case *Arith:
		return ExplainRow{
			P1: int(v.Lhs),
			P2: int(v.Rhs),
			P3: int(v.Dest),
			Comment: fmt.Sprintf("%s=%s%s%s",
				reg(v.Dest), reg(v.Lhs), arithSymbol(v.Op), reg(v.Rhs)),
		}
	case *BitNot:
		return ExplainRow{P1: int(v.Reg), P2: int(v.Dest), Comment: fmt.Sprintf("%s=~%s", reg(v.Dest), reg(v.Reg))}
	case *Not:
		return ExplainRow{P1: int(v.Reg), P2: int(v.Dest), Comment: fmt.Sprintf("%s=!%s", reg(v.Dest), reg(v.Reg))}

	case *NewRowId:
		return ExplainRow{P1: int(v.Cursor), P2: int(v.Dest), Comment: fmt.Sprintf("%s=rowid", reg(v.Dest))}
	case *Insert:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      int(v.Record),
			P3:      int(v.Key),
			P4:      v.Table,
			Comment: fmt.Sprintf("intkey=%s data=%s", reg(v.Key), reg(v.Record)),
		}
	case *Delete:
		return ExplainRow{P1: int(v.Cursor), P4: v.Table}
	case *IdxInsert:
		return ExplainRow{P1: int(v.Cursor), P2: int(v.Record), Comment: fmt.Sprintf("key=%s", reg(v.Record))}
	case *IdxDelete:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      int(v.Key.Start),
			P3:      v.Key.Count,
			Comment: fmt.Sprintf("key=%s", v.Key),
		}
	case *MakeRecord:
		return ExplainRow{
			P1:      int(v.Regs.Start),
			P2:      v.Regs.Count,
			P3:      int(v.Dest),
			P4:      v.Affinities,
			Comment: fmt.Sprintf("%s=mkrec(%s)", reg(v.Dest), regs(v.Regs.Start, v.Regs.Count)),
		}
	case *ResultRow:
		return ExplainRow{
			P1:      int(v.Regs.Start),
			P2:      v.Regs.Count,
			Comment: fmt.Sprintf("output=%s", regs(v.Regs.Start, v.Regs.Count)),
		}

	case *AggStep:
		return ExplainRow{
			P2: int(v.Args.Start),
			P3: int(v.Accum),
			P4: fmt.Sprintf("%s(%d)", v.Func, v.Args.Count),
			P5: v.Args.Count,
			Comment: fmt.Sprintf("accum=%s step(%s)",
				reg(v.Accum), regs(v.Args.Start, v.Args.Count)),
		}
	case *AggFinal:
		return ExplainRow{
			P1:      int(v.Accum),
			P4:      v.Func,
			Comment: fmt.Sprintf("accum=%s", reg(v.Accum)),
		}
	case *AggValue:
		return ExplainRow{
			P1:      int(v.Accum),
			P3:      int(v.Dest),
			P4:      v.Func,
			Comment: fmt.Sprintf("%s=%s", reg(v.Dest), reg(v.Accum)),
		}
	case *Function:
		return ExplainRow{
			P2: int(v.Args.Start),
			P3: int(v.Dest),
			P4: fmt.Sprintf("%s(%d)", v.Func, v.Args.Count),
			P5: v.Args.Count,
			Comment: fmt.Sprintf("%s=func(%s)",
				reg(v.Dest), regs(v.Args.Start, v.Args.Count)),
		}

	case *SorterOpen:
		return ExplainRow{P1: int(v.Cursor), P2: v.NumColumns, P4: keyInfoP4(v.Keys)}
	case *SorterInsert:
		return ExplainRow{P1: int(v.Cursor), P2: int(v.Record), Comment: fmt.Sprintf("key=%s", reg(v.Record))}
	case *SorterSort:
		return ExplainRow{P1: int(v.Cursor), P2: at(v.IfEmpty)}
	case *SorterNext:
		return ExplainRow{P1: int(v.Cursor), P2: at(v.Start)}
	case *SorterData:
		return ExplainRow{
			P1:      int(v.Cursor),
			P2:      int(v.Dest),
			P3:      int(v.Pseudo),
			Comment: fmt.Sprintf("%s=data", reg(v.Dest)),
		}

	case *CreateBtree:
		flag := 1
		if v.IsIndex {
			flag = 2
		}
		return ExplainRow{
			P2:      int(v.Dest),
			P3:      flag,
			Comment: fmt.Sprintf("%s=root iDb=0 flags=%d", reg(v.Dest), flag),
		}
	case *ParseSchema:
		return ExplainRow{P4: v.Where}
	case *SetCookie:
		return ExplainRow{P2: 1, P3: v.Value}
	case *Transaction:
		return ExplainRow{P2: b2i(v.Write)}
	case *AutoCommit:
		return ExplainRow{P1: b2i(v.Auto), P2: b2i(v.Rollback)}

	default:
		panic(fmt.Sprintf("unknown instruction %T", insn))
	}
}
