package plan

import (
	"github.com/dianpeng/sqlvdbe/sql"
)

// Semantic checking, just check obvious sql semantic bugs
//
// 1) aggregates may not show up in WHERE nor in GROUP BY
//
// 2) HAVING needs an aggregate query
//
// Arity of aggregate calls and nested aggregates are checked while the
// aggregates are collected.

func (self *Plan) semaCheck(s *sql.Select) error {
	if s.Where != nil {
		if err := self.checkNoAgg(s.Where.Condition, "misuse of aggregate: %s()"); err != nil {
			return err
		}
	}

	if s.GroupBy != nil {
		for _, e := range s.GroupBy.Name {
			if err := self.checkNoAgg(
				e,
				"aggregate functions are not allowed in the GROUP BY clause: %s()",
			); err != nil {
				return err
			}
		}
	}

	if s.Having != nil && !self.IsAggregate() {
		return self.errUser("a GROUP BY clause is required before HAVING")
	}

	if len(self.Output.VarList) > self.Config.MaxColumnSize {
		return self.errUser("too many columns in result set")
	}

	return nil
}
