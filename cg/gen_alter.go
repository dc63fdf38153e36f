package cg

import (
	"fmt"

	"github.com/dianpeng/sqlvdbe/schema"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/vm"
)

// ALTER TABLE a RENAME TO b rewrites the catalog rows of the table and its
// indexes with one UPDATE on sqlite_schema, compiled through deepParse
func (self *generator) genAlterTable(x *sql.AlterTable) error {
	if x.Action != sql.AlterRename {
		return errorf(ErrUnsupported, "only RENAME TO is implemented for ALTER TABLE")
	}

	t, ok := self.schema.Table(x.Table)
	if !ok {
		return errorf(ErrNoSuchTable, "no such table: %s", x.Table)
	}
	if self.schema.HasName(x.NewName) {
		return errorf(ErrNameCollision,
			"there is already another table or index with this name: %s", x.NewName)
	}
	if schema.IsReserved(t.Name) || t.Eponymous {
		return errorf(ErrNotAlterable, "table %s may not be altered", x.Table)
	}
	if err := self.checkNewName(x.NewName); err != nil {
		return err
	}

	countOn := self.b.ChangeCountOn
	if err := self.deepParse(renameTableSQL(t.Name, x.NewName)); err != nil {
		return err
	}
	self.b.ChangeCountOn = countOn

	self.genSchemaReload(tableEntryFilter(x.NewName))
	return nil
}

func renameTableSQL(from, to string) string {
	prefix := "sqlite_autoindex_" + from + "_"
	return fmt.Sprintf(
		"update %[1]s set name = case"+
			" when type = 'table' then %[3]s"+
			" when type = 'index' and name like %[4]s then %[5]s || substr(name, %[6]d)"+
			" else name end,"+
			" tbl_name = %[3]s,"+
			" sql = %[7]s(sql, type, %[2]s, %[3]s)"+
			" where tbl_name = %[2]s collate nocase"+
			" and (type = 'table' or type = 'index' or type = 'trigger')",
		schema.SchemaTableName,
		sql.QuoteStr(from),
		sql.QuoteStr(to),
		sql.QuoteStr(prefix+"%"),
		sql.QuoteStr("sqlite_autoindex_"+to+"_"),
		len(prefix)+1,
		vm.FuncRenameTable,
	)
}
