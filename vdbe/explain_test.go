package vdbe

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleProgram(t *testing.T) *Program {
	b := NewBuilder()
	initL := b.AllocLabel()
	startL := b.AllocLabel()
	b.Emit(&Init{Target: initL})
	assert.Nil(t, b.BindHere(startL))

	cur := b.AllocCursor(CursorInfo{
		Kind:     CursorBTreeTable,
		Name:     "t",
		RootPage: 2,
		Columns:  []string{"a", "b"},
	})
	out := b.AllocRegisters(2)
	b.Emit(&OpenRead{Cursor: cur, RootPage: 2})
	_, err := b.ForEach(cur, func(l LoopLabels) error {
		b.Emit(&Column{Cursor: cur, Column: 1, Dest: out.At(0)})
		b.Emit(&Cmp{Op: OpNe, Lhs: out.At(0), Rhs: out.At(1), Target: l.Next})
		b.Emit(&Arith{Op: OpAdd, Lhs: out.At(0), Rhs: out.At(1), Dest: out.At(1)})
		b.Emit(&ResultRow{Regs: out})
		return nil
	})
	assert.Nil(t, err)
	b.Emit(&Halt{})
	assert.Nil(t, b.BindHere(initL))
	b.Emit(&Transaction{})
	b.Emit(&Goto{Target: startL})

	p, err := b.Build("select b from t")
	assert.Nil(t, err)
	return p
}

func TestExplainComments(t *testing.T) {
	assert := assert.New(t)
	p := sampleProgram(t)
	rows := Explain(p)

	assert.Equal(len(p.Insns), len(rows))
	assert.Equal("Init", rows[0].Opcode)
	assert.Equal("Start at 9", rows[0].Comment)
	assert.Equal(9, rows[0].P2)

	assert.Equal("OpenRead", rows[1].Opcode)
	assert.Equal("table=t, root=2", rows[1].Comment)

	assert.Equal("Rewind", rows[2].Opcode)
	assert.Equal("Rewind t", rows[2].Comment)
	assert.Equal(8, rows[2].P2)

	assert.Equal("r[1]=t.b", rows[3].Comment)
	assert.Equal("if r[1]!=r[2] goto 7", rows[4].Comment)
	assert.Equal("r[2]=r[1]+r[2]", rows[5].Comment)
	assert.Equal("output=r[1..2]", rows[6].Comment)

	assert.Equal("Next", rows[7].Opcode)
	assert.Equal(3, rows[7].P2)
	assert.Equal("Goto", rows[10].Opcode)
	assert.Equal(1, rows[10].P2)
}

func TestExplainMisc(t *testing.T) {
	assert := assert.New(t)

	b := NewBuilder()
	r := b.AllocRegisters(3)
	skip := b.AllocLabel()
	b.Emit(&Once{Target: skip})
	b.Emit(&Null{Dest: r.At(0), End: r.Last()})
	b.Emit(&MakeRecord{Regs: r, Dest: b.AllocRegister()})
	b.Emit(&Integer{Value: 7, Dest: r.At(0)})
	b.Emit(&String8{Value: "x", Dest: r.At(1)})
	b.Emit(&IsNull{Reg: r.At(1), Target: skip})
	b.Emit(&IfNot{Reg: r.At(1), Target: skip})
	b.EmitComment(&Copy{Src: r.At(0), Dest: r.At(2)}, "custom")
	b.Emit(&Function{Args: r.Sub(0, 2), Dest: r.At(2), Func: "stat_push"})
	assert.Nil(b.BindHere(skip))
	p, err := b.Build("")
	assert.Nil(err)

	rows := Explain(p)
	assert.Equal("goto 9", rows[0].Comment)
	assert.Equal("r[1..3]=NULL", rows[1].Comment)
	assert.Equal("r[4]=mkrec(r[1..3])", rows[2].Comment)
	assert.Equal("r[1]=7", rows[3].Comment)
	assert.Equal("r[2]='x'", rows[4].Comment)
	assert.Equal("if (r[2]==NULL) goto 9", rows[5].Comment)
	assert.Equal("if !r[2] goto 9", rows[6].Comment)
	assert.Equal("custom", rows[7].Comment)
	assert.Equal("r[3]=func(r[1..2])", rows[8].Comment)
	assert.Equal("stat_push(2)", rows[8].P4)
}

func TestFormatExplain(t *testing.T) {
	assert := assert.New(t)
	rows := Explain(sampleProgram(t))

	buf := bytes.Buffer{}
	assert.Nil(FormatExplain(rows, &buf, false))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(len(rows)+2, len(lines))
	assert.True(strings.HasPrefix(lines[0], "addr  opcode"))
	assert.True(strings.HasPrefix(lines[2], "0     Init "))

	colored := bytes.Buffer{}
	assert.Nil(FormatExplain(rows, &colored, true))
	assert.Contains(colored.String(), "\x1b[")
}

func TestFilterExplain(t *testing.T) {
	assert := assert.New(t)
	rows := Explain(sampleProgram(t))

	out, err := FilterExplain(rows, `$2 == "Column" { print $1, $8 }`)
	assert.Nil(err)
	assert.Equal("3\tr[1]=t.b\n", out)

	out, err = FilterExplain(rows, `END { print NR }`)
	assert.Nil(err)
	assert.Equal("11\n", out)

	_, err = FilterExplain(rows, `{ print (`)
	assert.NotNil(err)
}
