package vdbe

// Insn is one instruction of a program. The set of implementations is closed:
// every variant lives in this file and carries only typed handles, literals
// and small enums.
type Insn interface {
	Opcode() int
}

// CmpFlags tunes the NULL behaviour of comparisons.
type CmpFlags int

const (
	// jump when either operand is NULL
	CmpJumpIfNull CmpFlags = 1 << iota
	// NULL compares equal to NULL and unequal to everything else
	CmpNullEq
)

func (self CmpFlags) JumpIfNull() bool { return self&CmpJumpIfNull != 0 }
func (self CmpFlags) NullEq() bool     { return self&CmpNullEq != 0 }

// ----------------------------------------------------------------------------
// Control flow
// ----------------------------------------------------------------------------

// Init is the first instruction of every top level program.
type Init struct{ Target Label }

type Goto struct{ Target Label }

// Gosub stores the return address into Return and jumps to Target.
type Gosub struct {
	Target Label
	Return Register
}

// Return jumps to the address stored in the register.
type Return struct{ Return Register }

type Halt struct {
	ErrCode int
	Message string
}

// HaltIfNull aborts with the message when the register is NULL.
type HaltIfNull struct {
	Reg     Register
	ErrCode int
	Message string
}

// Once falls through the first time it is reached and jumps to Target on
// every later visit.
type Once struct{ Target Label }

// InitCoroutine stores the coroutine entry (Start) into Yield and then jumps
// to Jump.
type InitCoroutine struct {
	Yield Register
	Jump  Label
	Start Label
}

// Yield swaps the program counter with the address held in the register.
// When the coroutine has finished, the consumer's Yield continues at End.
type Yield struct {
	Yield Register
	End   Label
}

type EndCoroutine struct{ Yield Register }

// BeginSubrtn clears the return register of a subroutine.
type BeginSubrtn struct{ Return Register }

type Noop struct{}

// ----------------------------------------------------------------------------
// Comparison and branches
// ----------------------------------------------------------------------------

// Cmp is one of Eq, Ne, Lt, Le, Gt, Ge: jump to Target when the comparison
// holds.
type Cmp struct {
	Op        int
	Lhs       Register
	Rhs       Register
	Target    Label
	Flags     CmpFlags
	Collation Collation
}

type If struct {
	Reg        Register
	Target     Label
	JumpIfNull bool
}

type IfNot struct {
	Reg        Register
	Target     Label
	JumpIfNull bool
}

type IsNull struct {
	Reg    Register
	Target Label
}

type NotNull struct {
	Reg    Register
	Target Label
}

// IfPos jumps when the register is positive, decrementing it by Decrement.
type IfPos struct {
	Reg       Register
	Target    Label
	Decrement int64
}

// DecrJumpZero decrements the register and jumps when it reaches zero.
type DecrJumpZero struct {
	Reg    Register
	Target Label
}

// Compare compares two register vectors and remembers the outcome for the
// following Jump.
type Compare struct {
	Lhs  RegisterRange
	Rhs  RegisterRange
	Keys []KeyInfo
}

type Jump struct {
	Lt Label
	Eq Label
	Gt Label
}

// ----------------------------------------------------------------------------
// Cursors
// ----------------------------------------------------------------------------

type OpenRead struct {
	Cursor   Cursor
	RootPage int
}

// OpenWrite opens a cursor for writing. When RootReg is set the root page is
// read from the register, otherwise RootPage is used.
type OpenWrite struct {
	Cursor   Cursor
	RootPage int
	RootReg  Register
}

// OpenPseudo opens a cursor over a single record held in Content.
type OpenPseudo struct {
	Cursor     Cursor
	Content    Register
	NumColumns int
}

type OpenEphemeral struct {
	Cursor     Cursor
	NumColumns int
	IsTable    bool
}

type Close struct{ Cursor Cursor }

// Rewind positions the cursor on its first row or jumps to IfEmpty.
type Rewind struct {
	Cursor  Cursor
	IfEmpty Label
}

// Last positions the cursor on its last row or jumps to IfEmpty.
type Last struct {
	Cursor  Cursor
	IfEmpty Label
}

// Next advances and jumps back to Start while rows remain.
type Next struct {
	Cursor Cursor
	Start  Label
}

type Prev struct {
	Cursor Cursor
	Start  Label
}

// SeekRowid moves a table cursor to the row with the rowid in Rowid, or
// jumps to NotFound.
type SeekRowid struct {
	Cursor   Cursor
	Rowid    Register
	NotFound Label
}

// Seek is one of SeekGE, SeekGT, SeekLE, SeekLT positioning an index cursor
// relative to the key, jumping to NotFound when no entry qualifies.
type Seek struct {
	Op       int
	Cursor   Cursor
	Key      RegisterRange
	NotFound Label
}

// IdxCmp is one of IdxGE, IdxGT, IdxLE, IdxLT comparing the current index
// entry with the key prefix and jumping to Target when it holds.
type IdxCmp struct {
	Op     int
	Cursor Cursor
	Key    RegisterRange
	Target Label
}

type NullRow struct{ Cursor Cursor }

type Count struct {
	Cursor Cursor
	Dest   Register
	Exact  bool
}

// ----------------------------------------------------------------------------
// Data access
// ----------------------------------------------------------------------------

type Column struct {
	Cursor Cursor
	Column int
	Dest   Register
}

type RowId struct {
	Cursor Cursor
	Dest   Register
}

type IdxRowId struct {
	Cursor Cursor
	Dest   Register
}

type RowData struct {
	Cursor Cursor
	Dest   Register
}

// DeferredSeek ties a table cursor to the row the index cursor points at,
// the table row is only loaded when a column of it is read.
type DeferredSeek struct {
	Index Cursor
	Table Cursor
}

// ----------------------------------------------------------------------------
// Loads and moves
// ----------------------------------------------------------------------------

// Null clears Dest, or every register from Dest to End when End is set.
type Null struct {
	Dest Register
	End  Register
}

type Integer struct {
	Value int64
	Dest  Register
}

type Real struct {
	Value float64
	Dest  Register
}

type String8 struct {
	Value string
	Dest  Register
}

type Blob struct {
	Value []byte
	Dest  Register
}

// Copy copies Extra+1 registers starting at Src.
type Copy struct {
	Src   Register
	Dest  Register
	Extra int
}

type SCopy struct {
	Src  Register
	Dest Register
}

// Move moves Count registers and leaves the sources NULL.
type Move struct {
	Src   Register
	Dest  Register
	Count int
}

type Cast struct {
	Reg      Register
	Affinity Affinity
}

type RealAffinity struct{ Reg Register }

// AffinityInsn is the Affinity opcode: one affinity letter per register.
type AffinityInsn struct {
	Regs       RegisterRange
	Affinities string
}

// ----------------------------------------------------------------------------
// Arithmetic and logic
// ----------------------------------------------------------------------------

// Arith is one of Add, Subtract, Multiply, Divide, Remainder, Concat, BitAnd,
// BitOr, And, Or: Dest = Lhs op Rhs.
type Arith struct {
	Op   int
	Lhs  Register
	Rhs  Register
	Dest Register
}

type BitNot struct {
	Reg  Register
	Dest Register
}

type Not struct {
	Reg  Register
	Dest Register
}

// ----------------------------------------------------------------------------
// Mutation and records
// ----------------------------------------------------------------------------

type NewRowId struct {
	Cursor Cursor
	Dest   Register
}

type Insert struct {
	Cursor Cursor
	Key    Register
	Record Register
	Table  string
}

type Delete struct {
	Cursor Cursor
	Table  string
}

type IdxInsert struct {
	Cursor Cursor
	Record Register
}

// IdxDelete removes the index entry whose key equals the registers.
type IdxDelete struct {
	Cursor Cursor
	Key    RegisterRange
}

type MakeRecord struct {
	Regs       RegisterRange
	Dest       Register
	Affinities string
}

type ResultRow struct{ Regs RegisterRange }

// ----------------------------------------------------------------------------
// Aggregation and functions
// ----------------------------------------------------------------------------

type AggStep struct {
	Args  RegisterRange
	Accum Register
	Func  string
}

type AggFinal struct {
	Accum Register
	Func  string
}

// AggValue reads the current value of a running accumulator into Dest.
type AggValue struct {
	Accum Register
	Func  string
	Dest  Register
}

type Function struct {
	Args RegisterRange
	Dest Register
	Func string
}

// ----------------------------------------------------------------------------
// Sorter
// ----------------------------------------------------------------------------

type SorterOpen struct {
	Cursor     Cursor
	Keys       []KeyInfo
	NumColumns int
}

type SorterInsert struct {
	Cursor Cursor
	Record Register
}

// SorterSort sorts the buffered records and positions on the first one, or
// jumps to IfEmpty.
type SorterSort struct {
	Cursor  Cursor
	IfEmpty Label
}

type SorterNext struct {
	Cursor Cursor
	Start  Label
}

// SorterData copies the current sorter record into Dest, Pseudo is the
// pseudo cursor that reads columns out of it.
type SorterData struct {
	Cursor Cursor
	Dest   Register
	Pseudo Cursor
}

// ----------------------------------------------------------------------------
// Schema and transactions
// ----------------------------------------------------------------------------

// CreateBtree allocates a new root page and stores it into Dest.
type CreateBtree struct {
	Dest    Register
	IsIndex bool
}

// ParseSchema reloads the schema from the catalog rows matching Where; an
// empty Where reloads everything.
type ParseSchema struct{ Where string }

type SetCookie struct{ Value int }

type Transaction struct{ Write bool }

type AutoCommit struct {
	Auto     bool
	Rollback bool
}

func (*Init) Opcode() int          { return OpInit }
func (*Goto) Opcode() int          { return OpGoto }
func (*Gosub) Opcode() int         { return OpGosub }
func (*Return) Opcode() int        { return OpReturn }
func (*Halt) Opcode() int          { return OpHalt }
func (*HaltIfNull) Opcode() int    { return OpHaltIfNull }
func (*Once) Opcode() int          { return OpOnce }
func (*InitCoroutine) Opcode() int { return OpInitCoroutine }
func (*Yield) Opcode() int         { return OpYield }
func (*EndCoroutine) Opcode() int  { return OpEndCoroutine }
func (*BeginSubrtn) Opcode() int   { return OpBeginSubrtn }
func (*Noop) Opcode() int          { return OpNoop }
func (self *Cmp) Opcode() int      { return self.Op }
func (*If) Opcode() int            { return OpIf }
func (*IfNot) Opcode() int         { return OpIfNot }
func (*IsNull) Opcode() int        { return OpIsNull }
func (*NotNull) Opcode() int       { return OpNotNull }
func (*IfPos) Opcode() int         { return OpIfPos }
func (*DecrJumpZero) Opcode() int  { return OpDecrJumpZero }
func (*Compare) Opcode() int       { return OpCompare }
func (*Jump) Opcode() int          { return OpJump }
func (*OpenRead) Opcode() int      { return OpOpenRead }
func (*OpenWrite) Opcode() int     { return OpOpenWrite }
func (*OpenPseudo) Opcode() int    { return OpOpenPseudo }
func (*OpenEphemeral) Opcode() int { return OpOpenEphemeral }
func (*Close) Opcode() int         { return OpClose }
func (*Rewind) Opcode() int        { return OpRewind }
func (*Last) Opcode() int          { return OpLast }
func (*Next) Opcode() int          { return OpNext }
func (*Prev) Opcode() int          { return OpPrev }
func (*SeekRowid) Opcode() int     { return OpSeekRowid }
func (self *Seek) Opcode() int     { return self.Op }
func (self *IdxCmp) Opcode() int   { return self.Op }
func (*NullRow) Opcode() int       { return OpNullRow }
func (*Count) Opcode() int         { return OpCount }
func (*Column) Opcode() int        { return OpColumn }
func (*RowId) Opcode() int         { return OpRowId }
func (*IdxRowId) Opcode() int      { return OpIdxRowId }
func (*RowData) Opcode() int       { return OpRowData }
func (*DeferredSeek) Opcode() int  { return OpDeferredSeek }
func (*Null) Opcode() int          { return OpNull }
func (*Integer) Opcode() int       { return OpInteger }
func (*Real) Opcode() int          { return OpReal }
func (*String8) Opcode() int       { return OpString8 }
func (*Blob) Opcode() int          { return OpBlob }
func (*Copy) Opcode() int          { return OpCopy }
func (*SCopy) Opcode() int         { return OpSCopy }
func (*Move) Opcode() int          { return OpMove }
func (*Cast) Opcode() int          { return OpCast }
func (*RealAffinity) Opcode() int  { return OpRealAffinity }
func (*AffinityInsn) Opcode() int  { return OpAffinity }
func (self *Arith) Opcode() int    { return self.Op }
func (*BitNot) Opcode() int        { return OpBitNot }
func (*Not) Opcode() int           { return OpNot }
func (*NewRowId) Opcode() int      { return OpNewRowId }
func (*Insert) Opcode() int        { return OpInsert }
func (*Delete) Opcode() int        { return OpDelete }
func (*IdxInsert) Opcode() int     { return OpIdxInsert }
func (*IdxDelete) Opcode() int     { return OpIdxDelete }
func (*MakeRecord) Opcode() int    { return OpMakeRecord }
func (*ResultRow) Opcode() int     { return OpResultRow }
func (*AggStep) Opcode() int       { return OpAggStep }
func (*AggFinal) Opcode() int      { return OpAggFinal }
func (*AggValue) Opcode() int      { return OpAggValue }
func (*Function) Opcode() int      { return OpFunction }
func (*SorterOpen) Opcode() int    { return OpSorterOpen }
func (*SorterInsert) Opcode() int  { return OpSorterInsert }
func (*SorterSort) Opcode() int    { return OpSorterSort }
func (*SorterNext) Opcode() int    { return OpSorterNext }
func (*SorterData) Opcode() int    { return OpSorterData }
func (*CreateBtree) Opcode() int   { return OpCreateBtree }
func (*ParseSchema) Opcode() int   { return OpParseSchema }
func (*SetCookie) Opcode() int     { return OpSetCookie }
func (*Transaction) Opcode() int   { return OpTransaction }
func (*AutoCommit) Opcode() int    { return OpAutoCommit }
