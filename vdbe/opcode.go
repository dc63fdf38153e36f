package vdbe

const (
	// control flow
	OpInit = iota
	OpGoto
	OpGosub
	OpReturn
	OpHalt
	OpHaltIfNull
	OpOnce
	OpInitCoroutine
	OpYield
	OpEndCoroutine
	OpBeginSubrtn
	OpNoop

	// comparison and branches
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIf
	OpIfNot
	OpIsNull
	OpNotNull
	OpIfPos
	OpDecrJumpZero
	OpCompare
	OpJump

	// cursors
	OpOpenRead
	OpOpenWrite
	OpOpenPseudo
	OpOpenEphemeral
	OpClose
	OpRewind
	OpLast
	OpNext
	OpPrev
	OpSeekRowid
	OpSeekGE
	OpSeekGT
	OpSeekLE
	OpSeekLT
	OpIdxGE
	OpIdxGT
	OpIdxLE
	OpIdxLT
	OpNullRow
	OpCount

	// data access
	OpColumn
	OpRowId
	OpIdxRowId
	OpRowData
	OpDeferredSeek

	// loads and moves
	OpNull
	OpInteger
	OpReal
	OpString8
	OpBlob
	OpCopy
	OpSCopy
	OpMove
	OpCast
	OpRealAffinity
	OpAffinity

	// arithmetic and logic
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpRemainder
	OpConcat
	OpBitAnd
	OpBitOr
	OpAnd
	OpOr
	OpBitNot
	OpNot

	// mutation and records
	OpNewRowId
	OpInsert
	OpDelete
	OpIdxInsert
	OpIdxDelete
	OpMakeRecord
	OpResultRow

	// aggregation and functions
	OpAggStep
	OpAggFinal
	OpAggValue
	OpFunction

	// sorter
	OpSorterOpen
	OpSorterInsert
	OpSorterSort
	OpSorterNext
	OpSorterData

	// schema and transactions
	OpCreateBtree
	OpParseSchema
	OpSetCookie
	OpTransaction
	OpAutoCommit

	opCount
)

var opNames = [...]string{
	OpInit:          "Init",
	OpGoto:          "Goto",
	OpGosub:         "Gosub",
	OpReturn:        "Return",
	OpHalt:          "Halt",
	OpHaltIfNull:    "HaltIfNull",
	OpOnce:          "Once",
	OpInitCoroutine: "InitCoroutine",
	OpYield:         "Yield",
	OpEndCoroutine:  "EndCoroutine",
	OpBeginSubrtn:   "BeginSubrtn",
	OpNoop:          "Noop",

	OpEq:           "Eq",
	OpNe:           "Ne",
	OpLt:           "Lt",
	OpLe:           "Le",
	OpGt:           "Gt",
	OpGe:           "Ge",
	OpIf:           "If",
	OpIfNot:        "IfNot",
	OpIsNull:       "IsNull",
	OpNotNull:      "NotNull",
	OpIfPos:        "IfPos",
	OpDecrJumpZero: "DecrJumpZero",
	OpCompare:      "Compare",
	OpJump:         "Jump",

	OpOpenRead:      "OpenRead",
	OpOpenWrite:     "OpenWrite",
	OpOpenPseudo:    "OpenPseudo",
	OpOpenEphemeral: "OpenEphemeral",
	OpClose:         "Close",
	OpRewind:        "Rewind",
	OpLast:          "Last",
	OpNext:          "Next",
	OpPrev:          "Prev",
	OpSeekRowid:     "SeekRowid",
	OpSeekGE:        "SeekGE",
	OpSeekGT:        "SeekGT",
	OpSeekLE:        "SeekLE",
	OpSeekLT:        "SeekLT",
	OpIdxGE:         "IdxGE",
	OpIdxGT:         "IdxGT",
	OpIdxLE:         "IdxLE",
	OpIdxLT:         "IdxLT",
	OpNullRow:       "NullRow",
	OpCount:         "Count",

	OpColumn:       "Column",
	OpRowId:        "RowId",
	OpIdxRowId:     "IdxRowId",
	OpRowData:      "RowData",
	OpDeferredSeek: "DeferredSeek",

	OpNull:         "Null",
	OpInteger:      "Integer",
	OpReal:         "Real",
	OpString8:      "String8",
	OpBlob:         "Blob",
	OpCopy:         "Copy",
	OpSCopy:        "SCopy",
	OpMove:         "Move",
	OpCast:         "Cast",
	OpRealAffinity: "RealAffinity",
	OpAffinity:     "Affinity",

	OpAdd:       "Add",
	OpSubtract:  "Subtract",
	OpMultiply:  "Multiply",
	OpDivide:    "Divide",
	OpRemainder: "Remainder",
	OpConcat:    "Concat",
	OpBitAnd:    "BitAnd",
	OpBitOr:     "BitOr",
	OpAnd:       "And",
	OpOr:        "Or",
	OpBitNot:    "BitNot",
	OpNot:       "Not",

	OpNewRowId:   "NewRowId",
	OpInsert:     "Insert",
	OpDelete:     "Delete",
	OpIdxInsert:  "IdxInsert",
	OpIdxDelete:  "IdxDelete",
	OpMakeRecord: "MakeRecord",
	OpResultRow:  "ResultRow",

	OpAggStep:  "AggStep",
	OpAggFinal: "AggFinal",
	OpAggValue: "AggValue",
	OpFunction: "Function",

	OpSorterOpen:   "SorterOpen",
	OpSorterInsert: "SorterInsert",
	OpSorterSort:   "SorterSort",
	OpSorterNext:   "SorterNext",
	OpSorterData:   "SorterData",

	OpCreateBtree: "CreateBtree",
	OpParseSchema: "ParseSchema",
	OpSetCookie:   "SetCookie",
	OpTransaction: "Transaction",
	OpAutoCommit:  "AutoCommit",
}

func OpName(op int) string {
	if op >= 0 && op < len(opNames) {
		return opNames[op]
	}
	return "Unknown"
}

// OpByName is the reverse of OpName, mostly used by tests that match
// explain listings.
func OpByName(name string) (int, bool) {
	for i, n := range opNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

func IsComparison(op int) bool {
	return op >= OpEq && op <= OpGe
}
