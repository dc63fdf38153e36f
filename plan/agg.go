package plan

import (
	"github.com/dianpeng/sqlvdbe/sql"
)

// Analyzing the aggregation function inside of an expression.
//
// The aggregation expression can show up in the projection, the HAVING
// clause and the ORDER BY clause. Every aggregate call is recorded as an
// AggVar and its CanName is settled to the AggVar's index. The code
// generator keeps one accumulator register per AggVar, steps it for every
// row of a group and reads the finalized value wherever the call shows up,
// ie MIN(a+b) + c evaluates the addition on top of the accumulator.

func (self *Plan) anaAgg(
	s *sql.Select,
) error {
	// projection
	for _, svar := range s.Projection.ValueList {
		col, ok := svar.(*sql.Col)
		if ok {
			if err := self.anaAggExpr(col.Value); err != nil {
				return err
			}
		}
	}

	// having
	if s.Having != nil {
		if err := self.anaAggExpr(s.Having.Condition); err != nil {
			return err
		}
	}

	// order by
	if s.OrderBy != nil {
		for _, v := range s.OrderBy.Terms {
			if err := self.anaAggExpr(v.Expr); err != nil {
				return err
			}
		}
	}

	return nil
}

// aggregate calls must have the arity of their function
func (self *Plan) checkAggArity(call *sql.Call, ty int) error {
	switch ty {
	case AggCount:
		if call.Star && len(call.Args) == 0 {
			return nil
		}
		if !call.Star && len(call.Args) == 1 {
			return nil
		}
	default:
		if !call.Star && len(call.Args) == 1 {
			return nil
		}
	}
	return self.errUser("wrong number of arguments to function %s()", call.LowerName())
}

// We visit an expression tree in DFS order, until we hit a call of a known
// aggregate. Then we convert it into an AggVar object, the arguments of the
// call are what gets accumulated. Nested aggregates are refused.
func (self *Plan) anaAggExpr(
	expr sql.Expr,
) error {
	return sql.WalkExpr(expr, func(x sql.Expr) (bool, error) {
		call, ok := x.(*sql.Call)
		if !ok {
			// alias references were collected where they are defined
			return x.Type() != sql.ExprSubquery, nil
		}
		if !call.IsAgg() {
			return true, nil
		}
		if call.CanName.IsAgg() {
			return false, nil // shared node, already recorded
		}

		ty := aggNameToType(call.Name)
		if err := self.checkAggArity(call, ty); err != nil {
			return false, err
		}
		for _, arg := range call.Args {
			if self.exprHasAgg(arg) {
				return false, self.errUser("misuse of aggregate function %s()", call.LowerName())
			}
		}

		idx := len(self.aggExpr)
		self.aggExpr = append(self.aggExpr, AggVar{
			AggType:  ty,
			Call:     call,
			Args:     call.Args,
			Star:     call.Star,
			Distinct: call.Distinct,
		})
		call.CanName.SetAgg(idx)

		// do not descend, the arguments are evaluated per row
		return false, nil
	})
}

// exprHasAgg reports whether an aggregate call is reachable from the
// expression, following alias references.
func (self *Plan) exprHasAgg(expr sql.Expr) bool {
	found := false
	sql.WalkExpr(expr, func(x sql.Expr) (bool, error) {
		switch x.Type() {
		case sql.ExprCall:
			if x.(*sql.Call).IsAgg() {
				found = true
				return false, nil
			}
		case sql.ExprRef:
			ref := x.(*sql.Ref)
			if ref.CanName.IsReference() && self.exprHasAgg(ref.CanName.Reference) {
				found = true
				return false, nil
			}
		case sql.ExprSubquery:
			return false, nil
		}
		return !found, nil
	})
	return found
}

func (self *Plan) firstAgg(expr sql.Expr) string {
	name := ""
	sql.WalkExpr(expr, func(x sql.Expr) (bool, error) {
		if name != "" {
			return false, nil
		}
		switch x.Type() {
		case sql.ExprCall:
			if c := x.(*sql.Call); c.IsAgg() {
				name = c.LowerName()
				return false, nil
			}
		case sql.ExprRef:
			ref := x.(*sql.Ref)
			if ref.CanName.IsReference() {
				name = self.firstAgg(ref.CanName.Reference)
			}
		case sql.ExprSubquery:
			return false, nil
		}
		return true, nil
	})
	return name
}

// checkNoAgg fails with the message, formatted with the aggregate's name,
// when the expression uses an aggregate.
func (self *Plan) checkNoAgg(expr sql.Expr, msg string) error {
	if expr == nil {
		return nil
	}
	if name := self.firstAgg(expr); name != "" {
		return self.errUser(msg, name)
	}
	return nil
}
