package cg

import (
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vdbe"
)

// BEGIN, COMMIT and ROLLBACK only flip the autocommit flag of the
// connection, they never run inside of a Transaction of their own.
func (self *generator) genTx(stmt sql.Stmt) error {
	self.txn = false
	switch stmt.(type) {
	case *sql.Begin:
		self.b.Emit(&vdbe.AutoCommit{Auto: false})
	case *sql.Commit:
		self.b.Emit(&vdbe.AutoCommit{Auto: true})
	case *sql.Rollback:
		self.b.Emit(&vdbe.AutoCommit{Auto: true, Rollback: true})
	}
	return nil
}
