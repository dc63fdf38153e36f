package cg

import (
	"context"
	"log/slog"

	"github.com/dianpeng/sqlvdbe/plan"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/emirpasic/gods/sets/treeset"
)

// rowSink consumes one finished result row
type rowSink func(row vdbe.RegisterRange) error

// subGen is one phase of the select pipeline. genInit runs before any table
// is opened, genNext once per row handed down by the previous phase and
// genFlush once the previous phase has no more rows. Every phase flushes the
// phase after it.
type subGen interface {
	genInit() error
	genNext(src columnSource) error
	genFlush() error
}

// selectGen lowers one plan. The pipeline is
//
//	scan -> [group by] -> [agg] -> [having] -> [sort] -> output
type selectGen struct {
	g    *generator
	p    *plan.Plan
	sink rowSink
	end  vdbe.Label // first instruction after the select
	expr *exprGen

	scan    *tableScanCodeGen
	join    *joinCodeGen
	groupBy *groupByCodeGen
	agg     *aggCodeGen
	having  *havingCodeGen
	sort    *sortCodeGen
	output  *outputCodeGen
}

func (self *generator) genSelect(p *plan.Plan, sink rowSink) error {
	if self.log.Enabled(context.Background(), slog.LevelDebug) {
		self.log.Debug("select plan", "plan", p.Print())
	}

	sg := &selectGen{
		g:    self,
		p:    p,
		sink: sink,
		end:  self.b.AllocLabel(),
		expr: self.newExprGen(p, nil),
	}

	sg.output = &outputCodeGen{sg: sg}
	phases := []subGen{sg.output}
	var head subGen = sg.output

	if p.HasSort() {
		sg.sort = &sortCodeGen{sg: sg, next: sg.output}
		phases = append(phases, sg.sort)
		head = sg.sort
	}
	if p.IsAggregate() {
		sg.having = &havingCodeGen{sg: sg, next: head}
		sg.agg = &aggCodeGen{sg: sg, next: sg.having}
		phases = append(phases, sg.having, sg.agg)
		head = sg.agg
		if p.HasGroupBy() {
			sg.groupBy = &groupByCodeGen{sg: sg, agg: sg.agg}
			phases = append(phases, sg.groupBy)
			head = sg.groupBy
		}
	}

	sg.join = &joinCodeGen{sg: sg}
	sg.scan = &tableScanCodeGen{sg: sg}
	phases = append(phases, sg.scan)

	for _, ph := range phases {
		if err := ph.genInit(); err != nil {
			return err
		}
	}

	if err := sg.scan.genScan(func() error {
		return head.genNext(sg.scan.cursors)
	}); err != nil {
		return err
	}
	if err := head.genFlush(); err != nil {
		return err
	}
	return self.b.BindHere(sg.end)
}

// referencedColumns lists every column the select reads, ordered by table
// and column so buffered records have a stable layout
func referencedColumns(p *plan.Plan) []colKey {
	out := []colKey{}
	for tidx, td := range p.Tables() {
		set := treeset.NewWithIntComparator()
		for c := range td.Column {
			set.Add(c)
		}
		if td.FullColumn && td.Table != nil {
			for c := range td.Table.Columns {
				set.Add(c)
			}
		}
		for _, c := range set.Values() {
			out = append(out, colKey{tidx: tidx, cidx: c.(int)})
		}
	}
	return out
}

// genDistinctCheck jumps to skip when the registers were seen already and
// records them otherwise. The cursor is an ephemeral index.
func (self *generator) genDistinctCheck(
	cur vdbe.Cursor,
	key vdbe.RegisterRange,
	skip vdbe.Label,
) error {
	b := self.b
	insert := b.AllocLabel()
	b.Emit(&vdbe.Seek{Op: vdbe.OpSeekGE, Cursor: cur, Key: key, NotFound: insert})
	b.Emit(&vdbe.IdxCmp{Op: vdbe.OpIdxGT, Cursor: cur, Key: key, Target: insert})
	b.Emit(&vdbe.Goto{Target: skip})
	if err := b.BindHere(insert); err != nil {
		return err
	}
	rec := b.AllocRegister()
	b.Emit(&vdbe.MakeRecord{Regs: key, Dest: rec})
	b.Emit(&vdbe.IdxInsert{Cursor: cur, Record: rec})
	return nil
}

// distinctCursor allocates an ephemeral index keyed by the expressions'
// collations. The caller opens it.
func (self *selectGen) distinctCursor(exprs []sql.Expr) vdbe.Cursor {
	keys := make([]vdbe.KeyInfo, 0, len(exprs))
	for _, e := range exprs {
		keys = append(keys, vdbe.KeyInfo{Collation: self.p.Collation(e)})
	}
	return self.g.b.AllocCursor(vdbe.CursorInfo{
		Kind:       vdbe.CursorEphemeral,
		NumColumns: len(exprs),
		Keys:       keys,
	})
}
