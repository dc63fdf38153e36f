package plan

import (
	"fmt"
	"strings"

	"github.com/dianpeng/sqlvdbe/sql"
)

// Printing the plan out, for testing, debugging, visualization purpose etc ...

func (self *Plan) Print() string {
	buf := &strings.Builder{}
	self.printTableList(buf)
	self.printPrecheck(buf)
	self.printTableScanList(buf)
	self.printJoin(buf)
	self.printGroupBy(buf)
	self.printAgg(buf)
	self.printHaving(buf)
	self.printOutput(buf)
	self.printSort(buf)
	return buf.String()
}

func (self *Plan) printTableDescriptor(
	ts *TableDescriptor,
	buf *strings.Builder,
) {
	cols := []string{}
	for cidx, col := range ts.Table.Columns {
		if ts.Column[cidx] {
			cols = append(cols, col.Name)
		}
	}
	if ts.Column[sql.RowidColumn] {
		cols = append(cols, "rowid")
	}

	buf.WriteString("##> Table Descriptor\n")
	buf.WriteString(fmt.Sprintf("Index: %d\n", ts.Index))
	buf.WriteString(fmt.Sprintf("Name: %s\n", ts.Name))
	buf.WriteString(fmt.Sprintf("Alias: %s\n", ts.Alias))
	buf.WriteString(fmt.Sprintf("RootPage: %d\n", ts.Table.RootPage))
	buf.WriteString(fmt.Sprintf("Column: %s\n", strings.Join(cols, ",")))
	buf.WriteString(fmt.Sprintf("FullColumn: %v\n", ts.FullColumn))
}

func (self *Plan) printTableList(
	buf *strings.Builder,
) {
	for _, ts := range self.tableList {
		self.printTableDescriptor(ts, buf)
	}
}

func (self *Plan) printPrecheck(
	buf *strings.Builder,
) {
	if self.Precheck != nil {
		buf.WriteString("##> Precheck\n")
		buf.WriteString(fmt.Sprintf("Filter: %s\n", sql.PrintExpr(self.Precheck)))
	}
}

func (self *Plan) printTableScan(
	ts *TableScan,
	buf *strings.Builder,
) {
	buf.WriteString("##> TableScan\n")
	buf.WriteString(fmt.Sprintf("Table: %d\n", ts.Table.Index))
	buf.WriteString(fmt.Sprintf("Filter: %s\n", sql.PrintExpr(ts.Filter)))
}

func (self *Plan) printTableScanList(
	buf *strings.Builder,
) {
	for _, ts := range self.TableScan {
		self.printTableScan(ts, buf)
	}
}

func (self *Plan) printJoin(
	buf *strings.Builder,
) {
	if j := self.Join; j != nil {
		buf.WriteString(j.Dump())
	}
}

func (self *Plan) printGroupBy(
	buf *strings.Builder,
) {
	groupBy := self.GroupBy
	buf.WriteString("##> GroupBy\n")
	if groupBy == nil {
		buf.WriteString("--\n")
	} else {
		for idx, expr := range groupBy.VarList {
			buf.WriteString(fmt.Sprintf("Var[%d]: %s\n", idx, sql.PrintExpr(expr)))
		}
	}
}

func (self *Plan) printAgg(
	buf *strings.Builder,
) {
	agg := self.Agg
	buf.WriteString("##> Agg\n")
	if agg == nil {
		buf.WriteString("--\n")
	} else {
		for idx, avar := range agg.VarList {
			arg := "*"
			if !avar.Star && len(avar.Args) > 0 {
				arg = sql.PrintExpr(avar.Args[0])
			}
			if avar.Distinct {
				arg = "distinct " + arg
			}
			buf.WriteString(fmt.Sprintf("Var[%d]: %s(%s)\n", idx, avar.AggName(), arg))
		}
	}
}

func (self *Plan) printHaving(
	buf *strings.Builder,
) {
	having := self.Having
	buf.WriteString("##> Having\n")
	if having == nil {
		buf.WriteString("--\n")
	} else {
		buf.WriteString(fmt.Sprintf("Filter: %s\n", sql.PrintExpr(having.Filter)))
	}
}

func (self *Plan) printOutput(
	buf *strings.Builder,
) {
	output := self.Output
	buf.WriteString("##> Output\n")
	if output == nil {
		buf.WriteString("--\n")
		return
	}
	buf.WriteString(fmt.Sprintf("Limit: %s\n", sql.PrintExpr(output.Limit)))
	buf.WriteString(fmt.Sprintf("Offset: %s\n", sql.PrintExpr(output.Offset)))
	buf.WriteString(fmt.Sprintf("Distinct: %v\n", output.Distinct))

	for idx, ovar := range output.VarList {
		buf.WriteString(fmt.Sprintf("Var[%d]: %s as %s\n", idx, sql.PrintExpr(ovar.Value), ovar.Name))
	}
}

func (self *Plan) printSort(
	buf *strings.Builder,
) {
	sort := self.Sort
	buf.WriteString("##> OrderBy\n")
	if sort == nil {
		buf.WriteString("--\n")
	} else {
		for idx, v := range sort.VarList {
			order := "asc"
			if v.Desc {
				order = "desc"
			}
			buf.WriteString(
				fmt.Sprintf(
					"Sort[%d]: %s %s collate %s\n",
					idx,
					sql.PrintExpr(v.Value),
					order,
					v.Collation.Name(),
				),
			)
		}
	}
}
