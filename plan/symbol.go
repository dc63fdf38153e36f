package plan

import (
	"strings"

	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/sql"
)

// Try to resolve the symbol inside of the expression tree and settle the
// CanName of every column reference. Names are first matched against the
// columns of the FROM tables, whatever is left is looked up in the alias
// table of the projection.

func isRowidName(n string) bool {
	switch strings.ToLower(n) {
	case "rowid", "oid", "_rowid_":
		return true
	default:
		return false
	}
}

// columnOf finds the column in the table, returns sql.RowidColumn for the
// rowid or its INTEGER PRIMARY KEY alias, and false if there is none.
func columnOf(t *schema.Table, name string) (int, bool) {
	if idx := t.ColumnIndex(name); idx >= 0 {
		if t.IsRowidAlias(idx) {
			return sql.RowidColumn, true
		}
		return idx, true
	}
	if isRowidName(name) && t.HasRowid() {
		return sql.RowidColumn, true
	}
	return 0, false
}

type visitorResolveSymbol struct {
	p *Plan
}

func (self *visitorResolveSymbol) resolveQualified(ref *sql.Ref) error {
	td := self.p.findTableDescriptorByAlias(ref.Table)
	if td == nil {
		return self.p.errUser("no such column: %s.%s", ref.Table, ref.Id)
	}
	cidx, ok := columnOf(td.Table, ref.Id)
	if !ok {
		return self.p.errUser("no such column: %s.%s", ref.Table, ref.Id)
	}
	ref.CanName.Set(td.Index, cidx)
	td.UpdateColumnIndex(cidx)
	return nil
}

func (self *visitorResolveSymbol) AcceptRef(
	ref *sql.Ref,
) (bool, error) {
	if ref.CanName.IsSettled() {
		return true, nil
	}

	if ref.Table != "" {
		return true, self.resolveQualified(ref)
	}

	var found *TableDescriptor
	cidx := 0
	for _, td := range self.p.tableList {
		if c, ok := columnOf(td.Table, ref.Id); ok {
			if found != nil {
				return false, self.p.errUser("ambiguous column name: %s", ref.Id)
			}
			found = td
			cidx = c
		}
	}

	// left free, it may be an alias of the projection
	if found != nil {
		ref.CanName.Set(found.Index, cidx)
		found.UpdateColumnIndex(cidx)
	}
	return true, nil
}

func (self *visitorResolveSymbol) AcceptConst(*sql.Const) (bool, error)     { return true, nil }
func (self *visitorResolveSymbol) AcceptCall(*sql.Call) (bool, error)       { return true, nil }
func (self *visitorResolveSymbol) AcceptUnary(*sql.Unary) (bool, error)     { return true, nil }
func (self *visitorResolveSymbol) AcceptBinary(*sql.Binary) (bool, error)   { return true, nil }
func (self *visitorResolveSymbol) AcceptCase(*sql.Case) (bool, error)       { return true, nil }
func (self *visitorResolveSymbol) AcceptCast(*sql.Cast) (bool, error)       { return true, nil }
func (self *visitorResolveSymbol) AcceptCollate(*sql.Collate) (bool, error) { return true, nil }

// scalar subqueries are planned on their own
func (self *visitorResolveSymbol) AcceptSubquery(*sql.Subquery) (bool, error) {
	return false, nil
}

func (self *Plan) resolveSymbolExpr(
	expr sql.Expr,
) error {
	if expr == nil {
		return nil
	}
	return sql.VisitExprPreOrder(
		&visitorResolveSymbol{
			p: self,
		},
		expr,
	)
}

func (self *Plan) canonicalize(s *sql.Select) error {
	// 1) try to visit each expression tree to resolve the symbol, or generate an
	//    error. Notes this will leave unknow symbol untouch, until we resolve all
	//    the alias afterwards

	// 1.1) Projections
	for _, x := range s.Projection.ValueList {
		switch x.Type() {
		case sql.SelectVarStar:
			star := x.(*sql.Star)
			if star.Table == "" {
				if len(self.tableList) == 0 {
					return self.errUser("no tables specified")
				}
				for _, td := range self.tableList {
					td.SetFullColumn()
				}
			} else {
				td := self.findTableDescriptorByAlias(star.Table)
				if td == nil {
					return self.errUser("no such table: %s", star.Table)
				}
				td.SetFullColumn()
			}
		default:
			col := x.(*sql.Col) // must be col
			if err := self.resolveSymbolExpr(col.Value); err != nil {
				return err
			}
		}
	}

	// 1.2) Where
	if s.Where != nil {
		if err := self.resolveSymbolExpr(s.Where.Condition); err != nil {
			return err
		}
	}

	// 1.3) Group by
	if s.GroupBy != nil {
		for _, cn := range s.GroupBy.Name {
			if err := self.resolveSymbolExpr(cn); err != nil {
				return err
			}
		}
	}

	// 1.4) Having
	if s.Having != nil {
		if err := self.resolveSymbolExpr(s.Having.Condition); err != nil {
			return err
		}
	}

	// 1.5) Order by
	if s.OrderBy != nil {
		for _, term := range s.OrderBy.Terms {
			if err := self.resolveSymbolExpr(term.Expr); err != nil {
				return err
			}
		}
	}

	return nil
}

func (self *Plan) setupAlias(projection *sql.Projection) error {
	for _, x := range projection.ValueList {
		if x.Alias() == "" {
			continue
		}
		col := x.(*sql.Col)
		// the first one wins, the same way a duplicated alias does in sqlite
		k := strings.ToLower(x.Alias())
		if _, ok := self.alias[k]; !ok {
			self.alias[k] = col.Value
		}
	}
	return nil
}

func (self *Plan) findAlias(id string) sql.Expr {
	return self.alias[strings.ToLower(id)]
}

type visitorAlias struct {
	p          *Plan
	allowAlias bool
}

func (self *visitorAlias) AcceptRef(
	ref *sql.Ref,
) (bool, error) {
	cn := &ref.CanName
	if cn.IsSettled() {
		return true, nil
	}
	if ref.Table == "" && self.allowAlias {
		if alias := self.p.findAlias(ref.Id); alias != nil {
			cn.SetRef(alias)
			return true, nil
		}
	}
	if ref.Table != "" {
		return false, self.p.errUser("no such column: %s.%s", ref.Table, ref.Id)
	}
	return false, self.p.errUser("no such column: %s", ref.Id)
}

func (self *visitorAlias) AcceptConst(*sql.Const) (bool, error)       { return true, nil }
func (self *visitorAlias) AcceptCall(*sql.Call) (bool, error)         { return true, nil }
func (self *visitorAlias) AcceptUnary(*sql.Unary) (bool, error)       { return true, nil }
func (self *visitorAlias) AcceptBinary(*sql.Binary) (bool, error)     { return true, nil }
func (self *visitorAlias) AcceptCase(*sql.Case) (bool, error)         { return true, nil }
func (self *visitorAlias) AcceptCast(*sql.Cast) (bool, error)         { return true, nil }
func (self *visitorAlias) AcceptCollate(*sql.Collate) (bool, error)   { return true, nil }
func (self *visitorAlias) AcceptSubquery(*sql.Subquery) (bool, error) { return false, nil }

func (self *Plan) resolveAliasExpr(expr sql.Expr, allowAlias bool) error {
	if expr == nil {
		return nil
	}
	return sql.VisitExprPreOrder(
		&visitorAlias{
			p:          self,
			allowAlias: allowAlias,
		},
		expr,
	)
}

func (self *Plan) resolveAlias(s *sql.Select) error {
	// setup alias table, otherwise failed with error
	if err := self.setupAlias(s.Projection); err != nil {
		return err
	}

	// projection cannot see the alias of its siblings
	for _, p := range s.Projection.ValueList {
		col, ok := p.(*sql.Col)
		if ok {
			if err := self.resolveAliasExpr(col.Value, false); err != nil {
				return err
			}
		}
	}

	// where clause
	if s.Where != nil {
		if err := self.resolveAliasExpr(s.Where.Condition, true); err != nil {
			return err
		}
	}

	// group by
	if s.GroupBy != nil {
		for _, cn := range s.GroupBy.Name {
			if err := self.resolveAliasExpr(cn, true); err != nil {
				return err
			}
		}
	}

	// having
	if s.Having != nil {
		if err := self.resolveAliasExpr(s.Having.Condition, true); err != nil {
			return err
		}
	}

	// order by
	if s.OrderBy != nil {
		for _, term := range s.OrderBy.Terms {
			if err := self.resolveAliasExpr(term.Expr, true); err != nil {
				return err
			}
		}
	}

	return nil
}

func (self *Plan) resolveSymbol(s *sql.Select) error {
	// 1) generate table descriptor based on FROM clause, and name each table
	//    accordingly
	if err := self.scanTable(s); err != nil {
		return err
	}

	// 2) resolve symbol to its canonicalized name if we can, ie basically
	//    bind every column reference to its table
	if err := self.canonicalize(s); err != nil {
		return err
	}

	// 3) resolve what is left against the alias of the projection
	if err := self.resolveAlias(s); err != nil {
		return err
	}

	return nil
}

// resolveDetachedList resolves standalone expressions, against the tables
// already in the plan when withTables is set and against nothing otherwise.
func (self *Plan) resolveDetachedList(exprs []sql.Expr, withTables bool) error {
	for _, e := range exprs {
		if withTables {
			if err := self.resolveSymbolExpr(e); err != nil {
				return err
			}
		}
		if err := self.resolveAliasExpr(e, false); err != nil {
			return err
		}
	}
	return nil
}
