package sql

// parser of the sql, which is tailered for our own usage. We briefly describe
// the grammar of sql as following EBNF
//
// ### statement -------------------------------------------------------------
//
// code := EXPLAIN? stmt ';'?
// stmt := select | insert | update | delete | create-table | create-index |
//         alter | analyze | begin | commit | rollback
//
// select :=
//     SELECT (DISTINCT|ALL)? projection
//     from?
//     where?
//     group-by?
//     having?
//     order-by?
//     limit?
//
// projection := project-var (',' project-var)*
// project-var := '*' | ID '.' '*' | expr as?
// as := AS? ID
//
// from := FROM from-var (',' from-var)*
// from-var := ID as?
//
// where := WHERE expr
// group-by := GROUPBY expr-list
// having := HAVING expr
// order-by := ORDERBY order-term (',' order-term)*
// order-term := expr (ASC|DESC)?
// limit := LIMIT expr ((OFFSET|',') expr)?
//
// insert := INSERT INTO ID ('(' id-list ')')? (VALUES row (',' row)* | select)
// update := UPDATE ID SET ID '=' expr (',' ID '=' expr)* where?
// delete := DELETE FROM ID where?
//
// create-table := CREATE TABLE (IF NOT EXISTS)? ID '(' table-element-list ')'
//                 (WITHOUT ID)?
// create-vtab  := CREATE VIRTUAL TABLE ID USING ID ('(' arg-list ')')?
// create-index := CREATE UNIQUE? INDEX (IF NOT EXISTS)? ID ON ID
//                 '(' indexed-column (',' indexed-column)* ')'
//
// alter := ALTER TABLE ID (RENAME TO ID | RENAME COLUMN? ID TO ID |
//          ADD COLUMN? column-def | DROP COLUMN? ID)
// analyze := ANALYZE (ID ('.' ID)?)?
//
// ### expression -------------------------------------------------------------
// expr :=
//   binary  |
//   unary   |
//   primary
//
// binary := expr binary-op binary
// binary-op := OR | AND | '=' | '!=' | IS | IS NOT | [NOT] IN | [NOT] LIKE |
//              [NOT] BETWEEN | '<' | '<=' | '>' | '>=' | '&' | '|' |
//              '+' | '-' | '*' | '/' | '%' | '||'
//
// unary := unary-op* primary
// unary-op := '-' | '+' | '~' | NOT
//
// primary := atomic (COLLATE ID)?
// atomic := const | ID ('.' ID)? | ID '(' call-arg-list? ')' |
//           '(' expr ')' | '(' select ')' | CASE ... END | CAST '(' expr AS type ')'
//
// const := INT | REAL | NULL | STR | BLOB
//
// ----------------------------------------------------------------------------

import (
	"fmt"
	"strings"
)

type Parser struct {
	L *Lexer
}

func newParser(xx string) *Parser {
	return &Parser{
		L: newLexer(xx),
	}
}

func NewParser(xx string) *Parser {
	return newParser(xx)
}

func (self *Parser) posStart() int {
	return self.L.Start
}

func (self *Parser) posEnd() int {
	return self.L.PrevEnd
}

func (self *Parser) snippet(start, end int) string {
	if start >= end {
		start = end
	}
	return self.L.Source[start:end]
}

func (self *Parser) err(msg string) error {
	if self.L.Token == TkError {
		return fmt.Errorf("%s", self.L.Lexeme.Text)
	} else {
		return fmt.Errorf("%s: %s", self.L.dinfo(), msg)
	}
}

func (self *Parser) expect(tk int) error {
	if self.L.Token == tk {
		self.L.Next()
		return nil
	} else {
		return self.err(
			fmt.Sprintf("unexpected token %s, expect %s", TokenName(self.L.Token), TokenName(tk)),
		)
	}
}

func (self *Parser) currentCodeInfo(start int) CodeInfo {
	return CodeInfo{
		Start:   start,
		End:     self.posEnd(),
		Snippet: self.snippet(start, self.posEnd()),
	}
}

// a few keywords are allowed as plain names, sqlite is much more relaxed
func isSoftKeyword(tk int) bool {
	switch tk {
	case TkKey, TkAnalyze, TkRename, TkColumn, TkTransaction, TkVirtual,
		TkWithout, TkAutoincrement, TkExplain, TkBegin, TkCommit, TkRollback,
		TkIf, TkEscape, TkTo, TkAddKw, TkDrop:
		return true
	default:
		return false
	}
}

func (self *Parser) isName() bool {
	return self.L.Token == TkId || self.L.Token == TkStr || isSoftKeyword(self.L.Token)
}

func (self *Parser) parseName(what string) (string, error) {
	if !self.isName() {
		return "", self.err(fmt.Sprintf("expect %s name", what))
	}
	n := self.L.Lexeme.Text
	self.L.Next()
	return n, nil
}

func (self *Parser) Parse() (*Code, error) {
	c := &Code{}

	self.L.Next()
	start := self.posStart()

	if self.L.Token == TkExplain {
		c.Explain = true
		self.L.Next()
	}

	if n, err := self.parseStmt(); err != nil {
		return nil, err
	} else {
		c.Stmt = n
	}

	c.CodeInfo = self.currentCodeInfo(start)

	if self.L.Token == TkSemicolon {
		self.L.Next()
	}
	if self.L.Token != TkEof {
		return nil, self.err("dangling code after parser thinks the statement is finished")
	}
	return c, nil
}

func (self *Parser) parseStmt() (Stmt, error) {
	switch self.L.Token {
	case TkSelect:
		return self.parseSelect()
	case TkInsert:
		return self.parseInsert()
	case TkUpdate:
		return self.parseUpdate()
	case TkDelete:
		return self.parseDelete()
	case TkCreate:
		return self.parseCreate()
	case TkAlter:
		return self.parseAlter()
	case TkAnalyze:
		return self.parseAnalyze()
	case TkBegin:
		start := self.posStart()
		self.L.Next()
		self.skipTransaction()
		return &Begin{CodeInfo: self.currentCodeInfo(start)}, nil
	case TkCommit, TkEnd:
		start := self.posStart()
		self.L.Next()
		self.skipTransaction()
		return &Commit{CodeInfo: self.currentCodeInfo(start)}, nil
	case TkRollback:
		start := self.posStart()
		self.L.Next()
		self.skipTransaction()
		return &Rollback{CodeInfo: self.currentCodeInfo(start)}, nil
	case TkError:
		return nil, self.err("")
	default:
		return nil, self.err(fmt.Sprintf("near %s: syntax error", TokenName(self.L.Token)))
	}
}

func (self *Parser) skipTransaction() {
	if self.L.Token == TkTransaction {
		self.L.Next()
	}
}

/* ----------------------------------------------------------------------------
 * Select
 * ---------------------------------------------------------------------------*/

func (self *Parser) parseSelect() (*Select, error) {
	start := self.posStart()
	self.L.Next() // skip the *select* keyword

	var projection *Projection
	var from *From
	var where *Where
	var groupBy *GroupBy
	var having *Having
	var orderBy *OrderBy
	var limit *Limit

	distinct := false

	if self.L.Token == TkDistinct {
		distinct = true
		self.L.Next()
	} else if self.L.Token == TkAll {
		self.L.Next()
	}

	// projection
	if n, err := self.parseProjection(); err != nil {
		return nil, err
	} else {
		projection = n
	}

LOOP:
	for {
		switch self.L.Token {
		case TkFrom:
			if from != nil {
				return nil, self.err("from cluase has already been specified")
			}

			if n, err := self.parseFrom(); err != nil {
				return nil, err
			} else {
				from = n
			}

		case TkWhere:
			if where != nil {
				return nil, self.err("where clause has already been specified")
			}
			if n, err := self.parseWhere(); err != nil {
				return nil, err
			} else {
				where = n
			}

		case TkGroupBy:
			if groupBy != nil {
				return nil, self.err("group by clause has already been specified")
			}
			if n, err := self.parseGroupBy(); err != nil {
				return nil, err
			} else {
				groupBy = n
			}

		case TkHaving:
			if having != nil {
				return nil, self.err("having clause has already been specified")
			}
			if n, err := self.parseHaving(); err != nil {
				return nil, err
			} else {
				having = n
			}

		case TkOrderBy:
			if orderBy != nil {
				return nil, self.err("order by clause has already been specified")
			}
			if n, err := self.parseOrderBy(); err != nil {
				return nil, err
			} else {
				orderBy = n
			}

		case TkLimit:
			if limit != nil {
				return nil, self.err("limit caluse has already been specified")
			}
			if n, err := self.parseLimit(); err != nil {
				return nil, err
			} else {
				limit = n
			}

		default:
			break LOOP
		}
	}

	if having != nil && groupBy == nil {
		return nil, self.err("a GROUP BY clause is required before HAVING")
	}

	return &Select{
		CodeInfo:   self.currentCodeInfo(start),
		Distinct:   distinct,
		Projection: projection,
		From:       from,
		Where:      where,
		GroupBy:    groupBy,
		Having:     having,
		OrderBy:    orderBy,
		Limit:      limit,
	}, nil
}

func (self *Parser) parseProjectionVar() (SelectVar, error) {
	start := self.posStart()

	if self.L.Token == TkMul {
		self.L.Next()
		return &Star{
			CodeInfo: self.currentCodeInfo(start),
		}, nil
	}

	// t.* needs two tokens of look ahead, the lexer is cheap to snapshot
	if self.L.Token == TkId {
		saved := *self.L
		tbl := self.L.Lexeme.Text
		if self.L.Next() == TkDot && self.L.Next() == TkMul {
			self.L.Next()
			return &Star{
				CodeInfo: self.currentCodeInfo(start),
				Table:    tbl,
			}, nil
		}
		*self.L = saved
	}

	val, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	valCodeInfo := self.currentCodeInfo(start)

	as := ""
	if self.L.Token == TkAs {
		self.L.Next()
		if n, err := self.parseName("alias"); err != nil {
			return nil, err
		} else {
			as = n
		}
	} else if self.L.Token == TkId || self.L.Token == TkStr {
		as = self.L.Lexeme.Text
		self.L.Next()
	}

	return &Col{
		CodeInfo: valCodeInfo,
		As:       as,
		Value:    val,
	}, nil
}

// SQLLIST, which is a name I coin to represent grammar like following :
// element (',' element)*, the difference between the normal one is that the
// list will never be empty.  This sort of list is kind of stupid, since we need
// to at least expect one from the vars, and afterwards, we expect another one
// *after* a ',' here.  this is same for *projection*, *from*, *order by*

func (self *Parser) parseSqlList(
	visitor func(int) error,
) error {
	if err := visitor(0); err != nil {
		return err
	}
	idx := 1

	for {
		if self.L.Token != TkComma {
			break
		}
		self.L.Next()
		if err := visitor(idx); err != nil {
			return err
		}
		idx++
	}

	return nil
}

func (self *Parser) parseProjection() (*Projection, error) {
	x := SelectVarList{}
	start := self.posStart()

	if err := self.parseSqlList(
		func(idx int) error {
			if n, err := self.parseProjectionVar(); err != nil {
				return err
			} else {
				x = append(x, n)
			}
			return nil
		},
	); err != nil {
		return nil, err
	}

	return &Projection{
		CodeInfo:  self.currentCodeInfo(start),
		ValueList: x,
	}, nil
}

func (self *Parser) parseFromVar() (*FromVar, error) {
	start := self.posStart()
	name, err := self.parseName("table")
	if err != nil {
		return nil, err
	}

	// schema qualified name, only main is known
	if self.L.Token == TkDot {
		self.L.Next()
		if name, err = self.parseName("table"); err != nil {
			return nil, err
		}
	}

	alias := ""
	if self.L.Token == TkAs {
		self.L.Next()
		if alias, err = self.parseName("alias"); err != nil {
			return nil, err
		}
	} else if self.L.Token == TkId {
		alias = self.L.Lexeme.Text
		self.L.Next()
	}

	return &FromVar{
		CodeInfo: self.currentCodeInfo(start),
		Name:     name,
		Alias:    alias,
	}, nil
}

func (self *Parser) parseFrom() (*From, error) {
	start := self.posStart()
	self.L.Next()

	list := []*FromVar{}
	if err := self.parseSqlList(
		func(_ int) error {
			if v, err := self.parseFromVar(); err != nil {
				return err
			} else {
				list = append(list, v)
			}
			return nil
		},
	); err != nil {
		return nil, err
	}

	return &From{
		CodeInfo: self.currentCodeInfo(start),
		VarList:  list,
	}, nil
}

func (self *Parser) parseWhere() (*Where, error) {
	start := self.posStart()
	self.L.Next()

	if expr, err := self.parseExpr(); err != nil {
		return nil, err
	} else {
		return &Where{
			CodeInfo:  self.currentCodeInfo(start),
			Condition: expr,
		}, nil
	}
}

func (self *Parser) parseExprList() ([]Expr, error) {
	out := []Expr{}
	if err := self.parseSqlList(
		func(_ int) error {
			if e, err := self.parseExpr(); err != nil {
				return err
			} else {
				out = append(out, e)
			}
			return nil
		},
	); err != nil {
		return nil, err
	}
	return out, nil
}

func (self *Parser) parseGroupBy() (*GroupBy, error) {
	start := self.posStart()
	self.L.Next()

	list, err := self.parseExprList()
	if err != nil {
		return nil, err
	}

	return &GroupBy{
		CodeInfo: self.currentCodeInfo(start),
		Name:     list,
	}, nil
}

func (self *Parser) parseHaving() (*Having, error) {
	if w, err := self.parseWhere(); err != nil {
		return nil, err
	} else {
		return (*Having)(w), nil
	}
}

func (self *Parser) parseOrderBy() (*OrderBy, error) {
	start := self.posStart()
	self.L.Next()

	terms := []*OrderTerm{}
	if err := self.parseSqlList(
		func(_ int) error {
			e, err := self.parseExpr()
			if err != nil {
				return err
			}
			t := &OrderTerm{Expr: e}
			switch self.L.Token {
			case TkAsc:
				self.L.Next()
			case TkDesc:
				t.Desc = true
				self.L.Next()
			}
			terms = append(terms, t)
			return nil
		},
	); err != nil {
		return nil, err
	}

	return &OrderBy{
		CodeInfo: self.currentCodeInfo(start),
		Terms:    terms,
	}, nil
}

func (self *Parser) parseLimit() (*Limit, error) {
	start := self.posStart()
	self.L.Next()

	l, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	limit := &Limit{Limit: l}

	switch self.L.Token {
	case TkOffset:
		self.L.Next()
		if limit.Offset, err = self.parseExpr(); err != nil {
			return nil, err
		}

	case TkComma:
		// LIMIT offset, count
		self.L.Next()
		cnt, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		limit.Offset = l
		limit.Limit = cnt
	}

	limit.CodeInfo = self.currentCodeInfo(start)
	return limit, nil
}

/* ----------------------------------------------------------------------------
 * DML
 * ---------------------------------------------------------------------------*/

func (self *Parser) parseIdList() ([]string, error) {
	if err := self.expect(TkLPar); err != nil {
		return nil, err
	}
	out := []string{}
	if err := self.parseSqlList(
		func(_ int) error {
			if n, err := self.parseName("column"); err != nil {
				return err
			} else {
				out = append(out, n)
			}
			return nil
		},
	); err != nil {
		return nil, err
	}
	if err := self.expect(TkRPar); err != nil {
		return nil, err
	}
	return out, nil
}

func (self *Parser) parseInsert() (*Insert, error) {
	start := self.posStart()
	self.L.Next()

	if err := self.expect(TkInto); err != nil {
		return nil, err
	}

	tbl, err := self.parseName("table")
	if err != nil {
		return nil, err
	}

	insert := &Insert{
		Table: tbl,
	}

	if self.L.Token == TkLPar {
		if insert.Columns, err = self.parseIdList(); err != nil {
			return nil, err
		}
	}

	switch self.L.Token {
	case TkValues:
		self.L.Next()
		if err := self.parseSqlList(
			func(_ int) error {
				if err := self.expect(TkLPar); err != nil {
					return err
				}
				row, err := self.parseExprList()
				if err != nil {
					return err
				}
				if err := self.expect(TkRPar); err != nil {
					return err
				}
				if len(insert.Values) > 0 && len(insert.Values[0]) != len(row) {
					return self.err("all VALUES must have the same number of terms")
				}
				insert.Values = append(insert.Values, row)
				return nil
			},
		); err != nil {
			return nil, err
		}

	case TkSelect:
		if insert.Select, err = self.parseSelect(); err != nil {
			return nil, err
		}

	case TkDefault:
		self.L.Next()
		if err := self.expect(TkValues); err != nil {
			return nil, err
		}
		insert.Values = [][]Expr{{}}

	default:
		return nil, self.err("expect VALUES or SELECT for INSERT")
	}

	insert.CodeInfo = self.currentCodeInfo(start)
	return insert, nil
}

func (self *Parser) parseUpdate() (*Update, error) {
	start := self.posStart()
	self.L.Next()

	tbl, err := self.parseName("table")
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkSet); err != nil {
		return nil, err
	}

	update := &Update{
		Table: tbl,
	}

	if err := self.parseSqlList(
		func(_ int) error {
			col, err := self.parseName("column")
			if err != nil {
				return err
			}
			if err := self.expect(TkEq); err != nil {
				return err
			}
			val, err := self.parseExpr()
			if err != nil {
				return err
			}
			update.Set = append(update.Set, &SetClause{Column: col, Value: val})
			return nil
		},
	); err != nil {
		return nil, err
	}

	if self.L.Token == TkWhere {
		if update.Where, err = self.parseWhere(); err != nil {
			return nil, err
		}
	}

	update.CodeInfo = self.currentCodeInfo(start)
	return update, nil
}

func (self *Parser) parseDelete() (*Delete, error) {
	start := self.posStart()
	self.L.Next()

	if err := self.expect(TkFrom); err != nil {
		return nil, err
	}
	tbl, err := self.parseName("table")
	if err != nil {
		return nil, err
	}

	del := &Delete{
		Table: tbl,
	}
	if self.L.Token == TkWhere {
		if del.Where, err = self.parseWhere(); err != nil {
			return nil, err
		}
	}

	del.CodeInfo = self.currentCodeInfo(start)
	return del, nil
}

/* ----------------------------------------------------------------------------
 * DDL
 * ---------------------------------------------------------------------------*/

func (self *Parser) parseIfNotExists() (bool, error) {
	if self.L.Token != TkIf {
		return false, nil
	}
	self.L.Next()
	if err := self.expect(TkNot); err != nil {
		return false, err
	}
	if err := self.expect(TkExists); err != nil {
		return false, err
	}
	return true, nil
}

func (self *Parser) parseCreate() (Stmt, error) {
	start := self.posStart()
	switch self.L.Next() {
	case TkTable:
		return self.parseCreateTable(start)
	case TkVirtual:
		return self.parseCreateVirtualTable(start)
	case TkUnique:
		if self.L.Next() != TkIndex {
			return nil, self.err("expect INDEX after CREATE UNIQUE")
		}
		return self.parseCreateIndex(start, true)
	case TkIndex:
		return self.parseCreateIndex(start, false)
	default:
		return nil, self.err("expect TABLE or INDEX after CREATE")
	}
}

// type name is a sequence of identifiers plus an optional size, ie
// VARCHAR(10), UNSIGNED BIG INT, DECIMAL(10, 5)
func (self *Parser) parseTypeName() (string, error) {
	parts := []string{}
	for self.L.Token == TkId {
		parts = append(parts, self.L.Lexeme.Text)
		self.L.Next()
	}
	if len(parts) == 0 {
		return "", nil
	}
	name := strings.Join(parts, " ")

	if self.L.Token == TkLPar {
		start := self.posStart()
		for self.L.Token != TkRPar {
			if self.L.Token == TkEof || self.L.Token == TkError {
				return "", self.err("type size is not closed")
			}
			self.L.Next()
		}
		self.L.Next()
		name += self.snippet(start, self.posEnd())
	}
	return name, nil
}

func (self *Parser) parseColumnDef() (*ColumnDef, error) {
	name, err := self.parseName("column")
	if err != nil {
		return nil, err
	}
	def := &ColumnDef{Name: name}

	if def.TypeName, err = self.parseTypeName(); err != nil {
		return nil, err
	}

	for {
		switch self.L.Token {
		case TkPrimary:
			self.L.Next()
			if err := self.expect(TkKey); err != nil {
				return nil, err
			}
			def.PrimaryKey = true
			if self.L.Token == TkAsc {
				self.L.Next()
			} else if self.L.Token == TkDesc {
				def.Desc = true
				self.L.Next()
			}
			if self.L.Token == TkAutoincrement {
				def.AutoInc = true
				self.L.Next()
			}

		case TkNot:
			self.L.Next()
			if err := self.expect(TkNull); err != nil {
				return nil, err
			}
			def.NotNull = true

		case TkNull:
			self.L.Next()

		case TkUnique:
			self.L.Next()
			def.Unique = true

		case TkCollate:
			self.L.Next()
			if def.Collate, err = self.parseName("collation"); err != nil {
				return nil, err
			}

		case TkDefault:
			self.L.Next()
			if self.L.Token == TkLPar {
				self.L.Next()
				if def.Default, err = self.parseExpr(); err != nil {
					return nil, err
				}
				if err := self.expect(TkRPar); err != nil {
					return nil, err
				}
			} else if def.Default, err = self.parseUnary(); err != nil {
				return nil, err
			}

		default:
			return def, nil
		}
	}
}

func (self *Parser) parseCreateTable(start int) (*CreateTable, error) {
	self.L.Next()

	ifNotExists, err := self.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	name, err := self.parseName("table")
	if err != nil {
		return nil, err
	}

	tbl := &CreateTable{
		Name:        name,
		IfNotExists: ifNotExists,
	}

	if err := self.expect(TkLPar); err != nil {
		return nil, err
	}

	if err := self.parseSqlList(
		func(_ int) error {
			switch self.L.Token {
			case TkPrimary:
				self.L.Next()
				if err := self.expect(TkKey); err != nil {
					return err
				}
				if len(tbl.PrimaryKey) > 0 {
					return self.err(fmt.Sprintf("table %q has more than one primary key", name))
				}
				ids, err := self.parseIdList()
				if err != nil {
					return err
				}
				tbl.PrimaryKey = ids
			case TkUnique:
				self.L.Next()
				ids, err := self.parseIdList()
				if err != nil {
					return err
				}
				tbl.Unique = append(tbl.Unique, ids)
			default:
				col, err := self.parseColumnDef()
				if err != nil {
					return err
				}
				tbl.Columns = append(tbl.Columns, col)
			}
			return nil
		},
	); err != nil {
		return nil, err
	}

	if err := self.expect(TkRPar); err != nil {
		return nil, err
	}

	if self.L.Token == TkWithout {
		self.L.Next()
		if self.L.Token != TkId || strings.ToLower(self.L.Lexeme.Text) != "rowid" {
			return nil, self.err("expect ROWID after WITHOUT")
		}
		self.L.Next()
		tbl.WithoutRowid = true
	}

	if len(tbl.Columns) == 0 {
		return nil, self.err("a table must have at least one column")
	}

	tbl.CodeInfo = self.currentCodeInfo(start)
	return tbl, nil
}

func (self *Parser) parseCreateVirtualTable(start int) (*CreateTable, error) {
	if self.L.Next() != TkTable {
		return nil, self.err("expect TABLE after CREATE VIRTUAL")
	}
	self.L.Next()

	ifNotExists, err := self.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	name, err := self.parseName("table")
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkUsing); err != nil {
		return nil, err
	}
	module, err := self.parseName("module")
	if err != nil {
		return nil, err
	}

	tbl := &CreateTable{
		Name:        name,
		IfNotExists: ifNotExists,
		Virtual:     true,
		Module:      module,
	}

	// module arguments are kept as raw text
	if self.L.Token == TkLPar {
		self.L.Next()
		argStart := self.posStart()
		depth := 0
		for !(depth == 0 && (self.L.Token == TkComma || self.L.Token == TkRPar)) {
			switch self.L.Token {
			case TkEof, TkError:
				return nil, self.err("module arguments are not closed")
			case TkLPar:
				depth++
			case TkRPar:
				depth--
			}
			self.L.Next()
			if depth == 0 && (self.L.Token == TkComma || self.L.Token == TkRPar) {
				tbl.ModuleArgs = append(
					tbl.ModuleArgs,
					strings.TrimSpace(self.snippet(argStart, self.posEnd())),
				)
				if self.L.Token == TkComma {
					self.L.Next()
					argStart = self.posStart()
				}
			}
		}
		self.L.Next()
	}

	tbl.CodeInfo = self.currentCodeInfo(start)
	return tbl, nil
}

func (self *Parser) parseCreateIndex(start int, unique bool) (*CreateIndex, error) {
	self.L.Next()

	ifNotExists, err := self.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	name, err := self.parseName("index")
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkOn); err != nil {
		return nil, err
	}
	tbl, err := self.parseName("table")
	if err != nil {
		return nil, err
	}

	idx := &CreateIndex{
		Name:        name,
		Table:       tbl,
		Unique:      unique,
		IfNotExists: ifNotExists,
	}

	if err := self.expect(TkLPar); err != nil {
		return nil, err
	}
	if err := self.parseSqlList(
		func(_ int) error {
			n, err := self.parseName("column")
			if err != nil {
				return err
			}
			col := &IndexedColumn{Name: n}
			if self.L.Token == TkCollate {
				self.L.Next()
				if col.Collate, err = self.parseName("collation"); err != nil {
					return err
				}
			}
			switch self.L.Token {
			case TkAsc:
				self.L.Next()
			case TkDesc:
				col.Desc = true
				self.L.Next()
			}
			idx.Columns = append(idx.Columns, col)
			return nil
		},
	); err != nil {
		return nil, err
	}
	if err := self.expect(TkRPar); err != nil {
		return nil, err
	}

	idx.CodeInfo = self.currentCodeInfo(start)
	return idx, nil
}

func (self *Parser) parseAlter() (*AlterTable, error) {
	start := self.posStart()
	if self.L.Next() != TkTable {
		return nil, self.err("expect TABLE after ALTER")
	}
	self.L.Next()

	tbl, err := self.parseName("table")
	if err != nil {
		return nil, err
	}
	alter := &AlterTable{Table: tbl}

	switch self.L.Token {
	case TkRename:
		self.L.Next()
		if self.L.Token == TkTo {
			self.L.Next()
			alter.Action = AlterRename
			if alter.NewName, err = self.parseName("table"); err != nil {
				return nil, err
			}
			break
		}
		if self.L.Token == TkColumn {
			self.L.Next()
		}
		alter.Action = AlterRenameColumn
		if _, err := self.parseName("column"); err != nil {
			return nil, err
		}
		if err := self.expect(TkTo); err != nil {
			return nil, err
		}
		if alter.NewName, err = self.parseName("column"); err != nil {
			return nil, err
		}

	case TkAddKw:
		self.L.Next()
		if self.L.Token == TkColumn {
			self.L.Next()
		}
		alter.Action = AlterAddColumn
		if _, err := self.parseColumnDef(); err != nil {
			return nil, err
		}

	case TkDrop:
		self.L.Next()
		if self.L.Token == TkColumn {
			self.L.Next()
		}
		alter.Action = AlterDropColumn
		if _, err := self.parseName("column"); err != nil {
			return nil, err
		}

	default:
		return nil, self.err("expect RENAME, ADD or DROP after ALTER TABLE")
	}

	alter.CodeInfo = self.currentCodeInfo(start)
	return alter, nil
}

func (self *Parser) parseAnalyze() (*Analyze, error) {
	start := self.posStart()
	self.L.Next()

	analyze := &Analyze{}
	if self.isName() {
		n, _ := self.parseName("table")
		if self.L.Token == TkDot {
			// schema.object, only the main schema exists
			self.L.Next()
			o, err := self.parseName("table or index")
			if err != nil {
				return nil, err
			}
			n = o
		}
		analyze.Target = n
	}

	analyze.CodeInfo = self.currentCodeInfo(start)
	return analyze, nil
}

/* ----------------------------------------------------------------------------
 * Expression
 * ---------------------------------------------------------------------------*/

func (self *Parser) parseExpr() (Expr, error) {
	return self.parseBinary()
}

const (
	invalidOpPrec = -1
	notPrec       = 2
	maxOpPrec     = 9
)

func (self *Parser) binPrec(tk int) int {
	switch tk {
	case TkOr:
		return 0
	case TkAnd:
		return 1
	case TkEq, TkNe, TkIs, TkIn, TkLike, TkBetween, TkNot:
		return 3
	case TkLt, TkLe, TkGt, TkGe:
		return 4
	case TkBitAnd, TkBitOr:
		return 5
	case TkAdd, TkSub:
		return 6
	case TkMul, TkDiv, TkMod:
		return 7
	case TkConcat:
		return 8
	default:
		return invalidOpPrec
	}
}

// Binary parsing, precedence climbing
func (self *Parser) doParseBin(prec int) (Expr, error) {
	if prec == maxOpPrec {
		return self.parseUnary()
	}

	start := self.posStart()

	// prefix NOT binds looser than comparison, NOT a = b is NOT (a = b)
	if self.L.Token == TkNot && prec <= notPrec {
		self.L.Next()
		operand, err := self.doParseBin(notPrec)
		if err != nil {
			return nil, err
		}
		not := &Unary{
			Op:       TkNot,
			Operand:  operand,
			CodeInfo: self.currentCodeInfo(start),
		}
		return self.doParseBinRest(not, prec, start)
	}

	l, err := self.parseUnary()
	if err != nil {
		return nil, err
	}

	return self.doParseBinRest(l, prec, start)
}

func (self *Parser) parseBinary() (Expr, error) {
	return self.doParseBin(0)
}

func (self *Parser) doParseBinBetweenRHS(
	prec int,
) (Expr, Expr, error) {
	lowerBound, err := self.doParseBin(prec)
	if err != nil {
		return nil, nil, err
	}

	if self.L.Token != TkAnd {
		return nil, nil, self.err("expect AND for BETWEEN operator")
	}
	self.L.Next()

	upperBound, err := self.doParseBin(prec)
	if err != nil {
		return nil, nil, err
	}

	return lowerBound, upperBound, nil
}

func (self *Parser) doParseBinInRHS() ([]Expr, error) {
	if self.L.Token != TkLPar {
		return nil, self.err("expect '(' for IN operator's lhs")
	}
	self.L.Next()

	if self.L.Token == TkSelect {
		return nil, self.err("IN with a subquery is not supported")
	}

	out := []Expr{}

	for self.L.Token != TkRPar {
		if v, err := self.parseExpr(); err != nil {
			return nil, err
		} else {
			out = append(out, v)
		}
		if self.L.Token == TkComma {
			self.L.Next()
		} else if self.L.Token != TkRPar {
			return nil, self.err("expect a ',' or ')' after element in IN's lhs")
		}
	}

	self.L.Next()
	if len(out) == 0 {
		return nil, self.err("IN operator's RHS is an empty set, which is not allowed")
	}
	return out, nil
}

func (self *Parser) doParseBinRest(lhs Expr,
	prec int,
	start int,
) (Expr, error) {

	for {
		tk := self.L.Token
		nextPrec := self.binPrec(tk)

		if nextPrec == invalidOpPrec {
			break
		} else if nextPrec < prec {
			break
		}

		ntk := self.L.Next() // eat the operator token

		switch tk {
		case TkNot:
			switch ntk {
			case TkIn:
				tk = tkNotIn
			case TkBetween:
				tk = tkNotBetween
			case TkLike:
				tk = TkNotLike
			default:
				return nil, self.err(
					"NOT operator shows up, but expect a suffix operator, " +
						"example like NOT IN, NOT BETWEEN, NOT LIKE etc ... ",
				)
			}
			self.L.Next()

		case TkIs:
			if ntk == TkNot {
				tk = TkIsNot
				self.L.Next()
			}
		}

		var newNode Expr
		switch tk {
		case TkBetween, tkNotBetween:
			if lower, upper, err := self.doParseBinBetweenRHS(nextPrec + 1); err != nil {
				return nil, err
			} else {
				ge := &Binary{
					Op:       TkGe,
					L:        lhs,
					R:        lower,
					CodeInfo: self.currentCodeInfo(start),
				}

				le := &Binary{
					Op:       TkLe,
					L:        CloneExpr(lhs),
					R:        upper,
					CodeInfo: self.currentCodeInfo(start),
				}

				between := &Binary{
					Op:       TkAnd,
					L:        ge,
					R:        le,
					CodeInfo: self.currentCodeInfo(start),
				}

				if tk == TkBetween {
					newNode = between
				} else {
					newNode = &Unary{
						Op:       TkNot,
						Operand:  between,
						CodeInfo: self.currentCodeInfo(start),
					}
				}
			}

		case TkIn, tkNotIn:
			if v, err := self.doParseBinInRHS(); err != nil {
				return nil, err
			} else {
				var out Expr

				for idx, vv := range v {
					l := lhs
					if idx > 0 {
						l = CloneExpr(lhs)
					}
					eq := &Binary{
						Op:       TkEq,
						L:        l,
						R:        vv,
						CodeInfo: self.currentCodeInfo(start),
					}

					if out == nil {
						out = eq
					} else {
						out = &Binary{
							Op:       TkOr,
							L:        out,
							R:        eq,
							CodeInfo: self.currentCodeInfo(start),
						}
					}
				}

				if tk == tkNotIn {
					newNode = &Unary{
						Op:       TkNot,
						Operand:  out,
						CodeInfo: self.currentCodeInfo(start),
					}
				} else {
					newNode = out
				}
			}

		case TkLike, TkNotLike:
			pattern, err := self.doParseBin(nextPrec + 1)
			if err != nil {
				return nil, err
			}
			if self.L.Token == TkEscape {
				// like(pattern, value, escape) is the function form
				self.L.Next()
				esc, err := self.doParseBin(nextPrec + 1)
				if err != nil {
					return nil, err
				}
				newNode = &Call{
					Name:     "like",
					Args:     []Expr{pattern, lhs, esc},
					CodeInfo: self.currentCodeInfo(start),
				}
				if tk == TkNotLike {
					newNode = &Unary{
						Op:       TkNot,
						Operand:  newNode,
						CodeInfo: self.currentCodeInfo(start),
					}
				}
			} else {
				newNode = &Binary{
					Op:       tk,
					L:        lhs,
					R:        pattern,
					CodeInfo: self.currentCodeInfo(start),
				}
			}

		default:
			if v, err := self.doParseBin(nextPrec + 1); err != nil {
				return nil, err
			} else {
				newNode = &Binary{
					Op:       tk,
					L:        lhs,
					R:        v,
					CodeInfo: self.currentCodeInfo(start),
				}
			}
		}

		lhs = newNode
	}

	return lhs, nil
}

func (self *Parser) parseUnary() (Expr, error) {
	start := self.posStart()

	switch tk := self.L.Token; tk {
	case TkAdd, TkSub, TkBitNot, TkNot:
		self.L.Next()
		operand, err := self.parseUnary()
		if err != nil {
			return nil, err
		}

		// fold negative literal, so -1 stays a constant
		if tk == TkSub {
			if c, ok := operand.(*Const); ok && (c.Ty == ConstInt || c.Ty == ConstReal) {
				c.Int = -c.Int
				c.Real = -c.Real
				c.CodeInfo = self.currentCodeInfo(start)
				return c, nil
			}
		}

		return &Unary{
			Op:       tk,
			Operand:  operand,
			CodeInfo: self.currentCodeInfo(start),
		}, nil

	default:
		return self.parsePrimary()
	}
}

func (self *Parser) parsePrimary() (Expr, error) {
	start := self.posStart()

	atomic, err := self.parseAtomic()
	if err != nil {
		return nil, err
	}

	for self.L.Token == TkCollate {
		self.L.Next()
		coll, err := self.parseName("collation")
		if err != nil {
			return nil, err
		}
		atomic = &Collate{
			Operand:   atomic,
			Collation: coll,
			CodeInfo:  self.currentCodeInfo(start),
		}
	}

	return atomic, nil
}

func (self *Parser) parseCall(name string, start int) (*Call, error) {
	self.L.Next() // (

	call := &Call{
		Name: name,
	}

	switch self.L.Token {
	case TkRPar:
	case TkMul:
		call.Star = true
		self.L.Next()
	default:
		if self.L.Token == TkDistinct {
			call.Distinct = true
			self.L.Next()
		}
		args, err := self.parseExprList()
		if err != nil {
			return nil, err
		}
		call.Args = args
	}

	if err := self.expect(TkRPar); err != nil {
		return nil, err
	}
	call.CodeInfo = self.currentCodeInfo(start)
	return call, nil
}

func (self *Parser) parseCase() (Expr, error) {
	start := self.posStart()
	self.L.Next()

	c := &Case{}
	if self.L.Token != TkWhen {
		operand, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Operand = operand
	}

	for self.L.Token == TkWhen {
		self.L.Next()
		cond, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkThen); err != nil {
			return nil, err
		}
		then, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		c.When = append(c.When, &When{Cond: cond, Then: then})
	}
	if len(c.When) == 0 {
		return nil, self.err("expect WHEN in CASE expression")
	}

	if self.L.Token == TkElse {
		self.L.Next()
		e, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Else = e
	}

	if err := self.expect(TkEnd); err != nil {
		return nil, err
	}
	c.CodeInfo = self.currentCodeInfo(start)
	return c, nil
}

func (self *Parser) parseCast() (Expr, error) {
	start := self.posStart()
	self.L.Next()

	if err := self.expect(TkLPar); err != nil {
		return nil, err
	}
	operand, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkAs); err != nil {
		return nil, err
	}
	ty, err := self.parseTypeName()
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkRPar); err != nil {
		return nil, err
	}

	return &Cast{
		Operand:  operand,
		TypeName: ty,
		CodeInfo: self.currentCodeInfo(start),
	}, nil
}

func (self *Parser) parseConstExpr() *Const {
	start := self.posStart()
	c := &Const{}

	switch self.L.Token {
	case TkInt:
		c.Ty = ConstInt
		c.Int = self.L.Lexeme.Int
		c.Real = float64(c.Int)
	case TkReal:
		c.Ty = ConstReal
		c.Real = self.L.Lexeme.Real
	case TkStr:
		c.Ty = ConstStr
		c.String = self.L.Lexeme.Text
	case TkBlob:
		c.Ty = ConstBlob
		c.Blob = self.L.Lexeme.Blob
	case TkNull:
		c.Ty = ConstNull
	default:
		return nil
	}

	self.L.Next()
	c.CodeInfo = self.currentCodeInfo(start)
	return c
}

func (self *Parser) parseAtomic() (Expr, error) {
	start := self.posStart()

	switch self.L.Token {
	case TkInt, TkReal, TkStr, TkBlob, TkNull:
		return self.parseConstExpr(), nil

	case TkLPar:
		self.L.Next()
		if self.L.Token == TkSelect {
			sel, err := self.parseSelect()
			if err != nil {
				return nil, err
			}
			if err := self.expect(TkRPar); err != nil {
				return nil, err
			}
			return &Subquery{
				Select:   sel,
				CodeInfo: self.currentCodeInfo(start),
			}, nil
		}

		e, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkRPar); err != nil {
			return nil, err
		}
		return e, nil

	case TkCase:
		return self.parseCase()

	case TkCast:
		return self.parseCast()

	case TkLike:
		// like(pattern, value), the function form
		if self.L.Next() != TkLPar {
			return nil, self.err("expect '(' after LIKE")
		}
		return self.parseCall("like", start)

	case TkError:
		return nil, self.err("")

	default:
		if self.L.Token != TkId && !isSoftKeyword(self.L.Token) {
			return nil, self.err(fmt.Sprintf("near %s: syntax error", TokenName(self.L.Token)))
		}

		id := self.L.Lexeme.Text
		switch self.L.Next() {
		case TkLPar:
			return self.parseCall(id, start)

		case TkDot:
			self.L.Next()
			col, err := self.parseName("column")
			if err != nil {
				return nil, err
			}
			return &Ref{
				Table:    id,
				Id:       col,
				CodeInfo: self.currentCodeInfo(start),
			}, nil

		default:
			return &Ref{
				Id:       id,
				CodeInfo: self.currentCodeInfo(start),
			}, nil
		}
	}
}
