package plan

import (
	"strconv"

	"github.com/dianpeng/sqlvdbe/sql"
)

func (self *Plan) planPrepare(s *sql.Select) error {
	// 1) scan table, resolve all the symbols and resolve all the alias
	if err := self.resolveSymbol(s); err != nil {
		return err
	}

	// 2) analyze aggregation
	if err := self.anaAgg(s); err != nil {
		return err
	}

	// 3) output is needed by the ordinal terms of GROUP BY and ORDER BY
	if err := self.planOutput(s); err != nil {
		return err
	}

	// 4) perform semantic check
	if err := self.semaCheck(s); err != nil {
		return err
	}
	return nil
}

// ----------------------------------------------------------------------------
// plan *table scan* node, kind of easy, just iterate all the table descriptor
// and hand each one the part of the WHERE clause it can check alone. The rest
// goes to the join node, or to the precheck when it needs no table at all.
func (self *Plan) planTableScan(s *sql.Select) {
	var where sql.Expr
	if s.Where != nil {
		where = s.Where.Condition
	}

	a := self.newEarlyFilterAnalyzer(where)
	a.run(where)

	for _, td := range self.tableList {
		self.TableScan = append(self.TableScan, &TableScan{
			Table:  td,
			Filter: andAll(a.single[td.Index]),
		})
	}

	self.Precheck = andAll(a.static)

	if self.HasJoin() {
		j := &NestedLoopJoin{
			Filter: make([]sql.Expr, len(self.tableList)),
		}
		for i := range self.tableList {
			j.Filter[i] = andAll(a.mixed[i])
		}
		self.Join = j
	}
}

// ----------------------------------------------------------------------------
// plan group by

// ordinal resolves `ORDER BY 2` and `GROUP BY 2` into the output expression
func (self *Plan) ordinal(e sql.Expr, clause string, idx int) (sql.Expr, error) {
	c, ok := e.(*sql.Const)
	if !ok || c.Ty != sql.ConstInt {
		return e, nil
	}
	n := len(self.Output.VarList)
	if c.Int < 1 || c.Int > int64(n) {
		return nil, self.errUser(
			"%s %s term out of range - should be between 1 and %d",
			ordinalName(idx+1), clause, n,
		)
	}
	return self.Output.VarList[c.Int-1].Value, nil
}

func ordinalName(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}

func (self *Plan) planGroupBy(s *sql.Select) error {
	if s.GroupBy == nil {
		return nil
	}
	g := &GroupBy{}
	for idx, e := range s.GroupBy.Name {
		v, err := self.ordinal(e, "GROUP BY", idx)
		if err != nil {
			return err
		}
		g.VarList = append(g.VarList, v)
	}
	self.GroupBy = g
	return nil
}

// ----------------------------------------------------------------------------
// plan aggregation
func (self *Plan) planAgg(s *sql.Select) {
	if self.HasAgg() {
		self.Agg = &Agg{
			VarList: self.aggExpr,
		}
	}
}

// ----------------------------------------------------------------------------
// plan having
func (self *Plan) planHaving(s *sql.Select) {
	if s.Having != nil {
		self.Having = &Having{
			Filter: s.Having.Condition,
		}
	}
}

// ----------------------------------------------------------------------------
// plan output
// output lies inside of the SelectVar, wildcards are expanded into one
// column reference per table column.

func (self *Plan) expandTable(td *TableDescriptor) []OutputVar {
	out := []OutputVar{}
	for cidx, col := range td.Table.Columns {
		ref := &sql.Ref{
			Table: td.VisibleName(),
			Id:    col.Name,
		}
		c := cidx
		if td.Table.IsRowidAlias(cidx) {
			c = sql.RowidColumn
		}
		ref.CanName.Set(td.Index, c)
		td.UpdateColumnIndex(c)
		out = append(out, OutputVar{
			Value: ref,
			Name:  col.Name,
		})
	}
	return out
}

func (self *Plan) planOutput(s *sql.Select) error {
	self.Output = &Output{
		Distinct: s.Distinct,
	}

	for _, x := range s.Projection.ValueList {
		switch x.Type() {
		case sql.SelectVarCol:
			col := x.(*sql.Col)
			self.Output.VarList = append(self.Output.VarList, OutputVar{
				Value: col.Value,
				Name:  col.ColName(),
			})

		case sql.SelectVarStar:
			star := x.(*sql.Star)
			for _, td := range self.tableList {
				if star.Table == "" || td == self.findTableDescriptorByAlias(star.Table) {
					self.Output.VarList = append(self.Output.VarList, self.expandTable(td)...)
				}
			}
		}
	}

	// limit and offset are constants of the statement
	if s.Limit != nil {
		for _, e := range []sql.Expr{s.Limit.Limit, s.Limit.Offset} {
			if err := self.resolveAliasExpr(e, false); err != nil {
				return err
			}
			if err := self.checkNoAgg(e, "misuse of aggregate: %s()"); err != nil {
				return err
			}
		}
		self.Output.Limit = s.Limit.Limit
		self.Output.Offset = s.Limit.Offset
	}
	return nil
}

// ----------------------------------------------------------------------------
// plan the sorting, each term carries its own direction and collation
func (self *Plan) planSort(s *sql.Select) error {
	if s.OrderBy == nil {
		return nil
	}
	sort := &Sort{}
	for idx, term := range s.OrderBy.Terms {
		v, err := self.ordinal(term.Expr, "ORDER BY", idx)
		if err != nil {
			return err
		}
		sort.VarList = append(sort.VarList, SortVar{
			Value:     v,
			Desc:      term.Desc,
			Collation: self.Collation(v),
		})
	}
	self.Sort = sort
	return nil
}

func (self *Plan) plan(s *sql.Select) error {
	if err := self.planPrepare(s); err != nil {
		return err
	}
	self.planTableScan(s)
	if err := self.planGroupBy(s); err != nil {
		return err
	}
	self.planAgg(s)
	self.planHaving(s)
	if err := self.planSort(s); err != nil {
		return err
	}
	return nil
}
