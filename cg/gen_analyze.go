package cg

import (
	"strings"

	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/dianpeng/sqlvdbe/vm"
)

// ----------------------------------------------------------------------------
// ANALYZE. sqlite_stat1 is created on first use. For every target the old
// statistics rows are deleted, then one row (tbl, NULL, count) is written
// for the table and one row (tbl, idx, stat) for every index, where stat is
// the row count followed by the average number of rows per distinct prefix
// of the index key.
// ----------------------------------------------------------------------------

type analyzeTarget struct {
	table *schema.Table
	index *schema.Index // nil analyzes the table and all of its indexes
}

func (self *generator) analyzeTargets(target string) ([]analyzeTarget, error) {
	if target == "" || strings.EqualFold(target, "main") {
		out := []analyzeTarget{}
		for _, t := range self.schema.UserTables() {
			if t.Virtual || t.WithoutRowid {
				continue
			}
			out = append(out, analyzeTarget{table: t})
		}
		return out, nil
	}

	var tt analyzeTarget
	if t, ok := self.schema.Table(target); ok && !t.Virtual {
		tt = analyzeTarget{table: t}
	} else if idx, ok := self.schema.Index(target); ok {
		t, ok := self.schema.Table(idx.Table)
		if !ok {
			return nil, errorf(ErrNoSuchTable, "no such table or index: %s", target)
		}
		tt = analyzeTarget{table: t, index: idx}
	} else {
		return nil, errorf(ErrNoSuchTable, "no such table or index: %s", target)
	}

	if tt.table.WithoutRowid {
		return nil, errorf(ErrWithoutRowid, "ANALYZE on tables without rowid is not supported")
	}
	return []analyzeTarget{tt}, nil
}

func (self *generator) genAnalyze(x *sql.Analyze) error {
	b := self.b
	targets, err := self.analyzeTargets(x.Target)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}
	self.write = true

	null := b.AllocRegister()
	b.Emit(&vdbe.Null{Dest: null})

	stat1, ok := self.schema.Table(schema.Stat1TableName)
	var stat vdbe.Cursor
	if ok {
		stat = self.openTable(stat1, true)
	} else {
		root := b.AllocRegister()
		b.Emit(&vdbe.CreateBtree{Dest: root})
		sc, err := self.openSchemaTable()
		if err != nil {
			return err
		}
		self.genSchemaEntry(sc, "table", schema.Stat1TableName, schema.Stat1TableName,
			root, schema.Stat1TableSQL)
		self.genSchemaReload(tableEntryFilter(schema.Stat1TableName))

		stat = b.AllocCursor(vdbe.CursorInfo{
			Kind:    vdbe.CursorBTreeTable,
			Name:    schema.Stat1TableName,
			Columns: []string{"tbl", "idx", "stat"},
		})
		b.Emit(&vdbe.OpenWrite{Cursor: stat, RootReg: root})
	}

	for _, tt := range targets {
		if err := self.genAnalyzeTarget(stat, tt); err != nil {
			return err
		}
	}
	return nil
}

func (self *generator) genAnalyzeTarget(stat vdbe.Cursor, tt analyzeTarget) error {
	b := self.b
	t := tt.table

	// drop the old statistics of the target
	done := b.AllocLabel()
	loop := b.AllocLabel()
	skip := b.AllocLabel()
	b.Emit(&vdbe.Rewind{Cursor: stat, IfEmpty: done})
	if err := b.BindHere(loop); err != nil {
		return err
	}
	col := b.AllocRegister()
	name := b.AllocRegister()
	b.Emit(&vdbe.Column{Cursor: stat, Column: 0, Dest: col})
	b.Emit(&vdbe.String8{Value: t.Name, Dest: name})
	b.Emit(&vdbe.Cmp{Op: vdbe.OpNe, Lhs: col, Rhs: name, Target: skip})
	if tt.index != nil {
		icol := b.AllocRegister()
		iname := b.AllocRegister()
		b.Emit(&vdbe.Column{Cursor: stat, Column: 1, Dest: icol})
		b.Emit(&vdbe.String8{Value: tt.index.Name, Dest: iname})
		b.Emit(&vdbe.Cmp{Op: vdbe.OpNe, Lhs: icol, Rhs: iname, Target: skip})
	}
	b.Emit(&vdbe.Delete{Cursor: stat, Table: schema.Stat1TableName})
	b.Emit(&vdbe.Next{Cursor: stat, Start: loop})
	if err := b.BindHere(skip); err != nil {
		return err
	}
	b.Emit(&vdbe.Next{Cursor: stat, Start: loop})
	if err := b.BindHere(done); err != nil {
		return err
	}

	// table row count
	tc := self.openTable(t, false)
	rowid := b.AllocRegister()
	rec := b.AllocRegisters(3)
	data := b.AllocRegister()
	count := b.AllocRegister()
	empty := b.AllocLabel()

	b.Emit(&vdbe.String8{Value: t.Name, Dest: rec.At(0)})
	b.Emit(&vdbe.Count{Cursor: tc, Dest: count, Exact: true})
	b.Emit(&vdbe.IfNot{Reg: count, Target: empty})
	b.Emit(&vdbe.Null{Dest: rec.At(1)})
	b.Emit(&vdbe.Copy{Src: count, Dest: rec.At(2)})
	b.Emit(&vdbe.Cast{Reg: rec.At(2), Affinity: vdbe.AffinityText})
	b.Emit(&vdbe.MakeRecord{Regs: rec, Dest: data})
	b.Emit(&vdbe.NewRowId{Cursor: stat, Dest: rowid})
	b.Emit(&vdbe.Insert{Cursor: stat, Key: rowid, Record: data, Table: schema.Stat1TableName})
	if err := b.BindHere(empty); err != nil {
		return err
	}

	indexes := t.Indexes
	if tt.index != nil {
		indexes = []*schema.Index{tt.index}
	}
	for _, idx := range indexes {
		if err := self.genIndexStat(stat, t, idx); err != nil {
			return err
		}
	}
	return nil
}

// genIndexStat walks the index in key order. For every entry the change
// index is the first key column that differs from the previous entry, n
// when the whole key repeats; it is fed to stat_push.
//
//	     Integer n chng ; Function stat_init(chng) accum ; Rewind idx empty
//	     Integer 0 chng ; Goto upd[0]
//	loop:Integer 0 chng
//	     Column idx i tmp ; Ne tmp prev[i] upd[i] ; Integer i+1 chng  (per column)
//	     Integer n chng ; Goto push
//	upd: Column idx i prev[i]  (per column)
//	push:Function stat_push(accum, chng) accum ; Next idx loop
//	     Function stat_get(accum) stat ; IsNull stat empty ; insert
//	empty:
func (self *generator) genIndexStat(stat vdbe.Cursor, t *schema.Table, idx *schema.Index) error {
	b := self.b
	n := len(idx.Columns)
	if n == 0 {
		return nil
	}

	ic := self.openIndex(idx, false)

	args := b.AllocRegisters(2)
	accum := args.At(0)
	chng := args.At(1)
	prev := b.AllocRegisters(n)
	tmp := b.AllocRegister()
	empty := b.AllocLabel()
	loop := b.AllocLabel()
	push := b.AllocLabel()
	upd := b.AllocLabels(n)

	b.Emit(&vdbe.Integer{Value: int64(n), Dest: chng})
	b.Emit(&vdbe.Function{Args: vdbe.RegisterRange{Start: chng, Count: 1}, Dest: accum, Func: vm.FuncStatInit})
	b.Emit(&vdbe.Rewind{Cursor: ic, IfEmpty: empty})
	b.Emit(&vdbe.Integer{Value: 0, Dest: chng})
	b.Emit(&vdbe.Goto{Target: upd[0]})

	if err := b.BindHere(loop); err != nil {
		return err
	}
	b.Emit(&vdbe.Integer{Value: 0, Dest: chng})
	for i, c := range idx.Columns {
		b.Emit(&vdbe.Column{Cursor: ic, Column: i, Dest: tmp})
		b.Emit(&vdbe.Cmp{
			Op:        vdbe.OpNe,
			Lhs:       tmp,
			Rhs:       prev.At(i),
			Target:    upd[i],
			Flags:     vdbe.CmpNullEq,
			Collation: c.Collation,
		})
		if i < n-1 {
			b.Emit(&vdbe.Integer{Value: int64(i + 1), Dest: chng})
		}
	}
	b.Emit(&vdbe.Integer{Value: int64(n), Dest: chng})
	b.Emit(&vdbe.Goto{Target: push})

	for i := 0; i < n; i++ {
		if err := b.BindHere(upd[i]); err != nil {
			return err
		}
		b.Emit(&vdbe.Column{Cursor: ic, Column: i, Dest: prev.At(i)})
	}

	if err := b.BindHere(push); err != nil {
		return err
	}
	b.Emit(&vdbe.Function{Args: args, Dest: accum, Func: vm.FuncStatPush})
	b.Emit(&vdbe.Next{Cursor: ic, Start: loop})

	res := b.AllocRegister()
	b.Emit(&vdbe.Function{Args: vdbe.RegisterRange{Start: accum, Count: 1}, Dest: res, Func: vm.FuncStatGet})
	b.Emit(&vdbe.IsNull{Reg: res, Target: empty})

	rec := b.AllocRegisters(3)
	data := b.AllocRegister()
	rowid := b.AllocRegister()
	b.Emit(&vdbe.String8{Value: t.Name, Dest: rec.At(0)})
	b.Emit(&vdbe.String8{Value: idx.Name, Dest: rec.At(1)})
	b.Emit(&vdbe.Copy{Src: res, Dest: rec.At(2)})
	b.Emit(&vdbe.MakeRecord{Regs: rec, Dest: data})
	b.Emit(&vdbe.NewRowId{Cursor: stat, Dest: rowid})
	b.Emit(&vdbe.Insert{Cursor: stat, Key: rowid, Record: data, Table: schema.Stat1TableName})
	return b.BindHere(empty)
}
