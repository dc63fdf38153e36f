package plan

import (
	"strings"

	"github.com/dianpeng/sqlvdbe/sql"
)

// Bind the FROM clause against the catalog. Every entry becomes a
// TableDescriptor whose index is the loop level of the table.

func (self *Plan) genTableDescriptor(
	idx int,
	fromVar *sql.FromVar,
) (*TableDescriptor, error) {
	tbl, ok := self.Schema.Table(fromVar.Name)
	if !ok {
		return nil, self.errUser("no such table: %s", fromVar.Name)
	}
	if tbl.Virtual {
		return nil, self.errUser("virtual table %s cannot be scanned", tbl.Name)
	}

	return &TableDescriptor{
		Index:  idx,
		Name:   tbl.Name,
		Alias:  fromVar.Alias,
		Table:  tbl,
		Column: make(map[int]bool),
	}, nil
}

func (self *Plan) findTableDescriptorByAlias(
	alias string,
) *TableDescriptor {
	for _, td := range self.tableList {
		if strings.EqualFold(td.VisibleName(), alias) {
			return td
		}
	}
	return nil
}

func (self *Plan) indexTableDescriptor(
	idx int,
) *TableDescriptor {
	if idx >= len(self.tableList) {
		return nil
	} else {
		return self.tableList[idx]
	}
}

func (self *Plan) addTable(fv *sql.FromVar) error {
	td, err := self.genTableDescriptor(len(self.tableList), fv)
	if err != nil {
		return err
	}
	if self.findTableDescriptorByAlias(td.VisibleName()) != nil {
		return self.errUser("ambiguous table name: %s", td.VisibleName())
	}
	self.tableList = append(self.tableList, td)
	return nil
}

func (self *Plan) scanTable(s *sql.Select) error {
	if s.From == nil {
		return nil // SELECT without FROM, a single row of constants
	}

	// iterate through the *from* list to generate needed information
	for _, fv := range s.From.VarList {
		if err := self.addTable(fv); err != nil {
			return err
		}
	}

	if len(self.tableList) > self.Config.MaxTableSize {
		return self.err("scan-table", "at most %d tables in a join", self.Config.MaxTableSize)
	}
	return nil
}
