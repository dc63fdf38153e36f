package sql

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

/* ----------------------------------------------------------------------------
 * Printing
 *
 * Stringify the AST back into SQL text. The output is always re-parsable,
 * the schema stores CREATE statements printed by this code.
 * ---------------------------------------------------------------------------*/

func OpText(tk int) string {
	switch tk {
	case TkAdd:
		return "+"
	case TkSub:
		return "-"
	case TkMul:
		return "*"
	case TkDiv:
		return "/"
	case TkMod:
		return "%"
	case TkConcat:
		return "||"
	case TkBitAnd:
		return "&"
	case TkBitOr:
		return "|"
	case TkBitNot:
		return "~"
	case TkLt:
		return "<"
	case TkLe:
		return "<="
	case TkGt:
		return ">"
	case TkGe:
		return ">="
	case TkEq:
		return "="
	case TkNe:
		return "!="
	case TkAnd:
		return "AND"
	case TkOr:
		return "OR"
	case TkNot:
		return "NOT"
	case TkLike:
		return "LIKE"
	case TkNotLike:
		return "NOT LIKE"
	case TkIs:
		return "IS"
	case TkIsNot:
		return "IS NOT"
	default:
		return "?"
	}
}

func needQuote(id string) bool {
	if id == "" || IsKeyword(id) {
		return true
	}
	for i, r := range id {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && (unicode.IsDigit(r) || r == '$') {
			continue
		}
		return true
	}
	return false
}

// QuoteId quotes the identifier when it would not lex back as itself
func QuoteId(id string) string {
	if needQuote(id) {
		return "\"" + strings.ReplaceAll(id, "\"", "\"\"") + "\""
	}
	return id
}

// QuoteStr renders a SQL string literal
func QuoteStr(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func doPrintExprConst(c *Const, buf *bytes.Buffer) {
	switch c.Ty {
	case ConstStr:
		buf.WriteString(QuoteStr(c.String))
	case ConstInt:
		buf.WriteString(fmt.Sprintf("%d", c.Int))
	case ConstReal:
		buf.WriteString(formatReal(c.Real))
	case ConstBlob:
		buf.WriteString("x'")
		buf.WriteString(hex.EncodeToString(c.Blob))
		buf.WriteString("'")
	case ConstNull:
		buf.WriteString("NULL")
	default:
		panic("unreachable")
	}
}

func doPrintExprList(list []Expr, buf *bytes.Buffer) {
	for idx, entry := range list {
		if idx > 0 {
			buf.WriteString(", ")
		}
		doPrintExpr(entry, buf)
	}
}

func doPrintExpr(expr Expr, buf *bytes.Buffer) {
	switch expr.Type() {
	case ExprConst:
		doPrintExprConst(expr.(*Const), buf)

	case ExprRef:
		r := expr.(*Ref)
		if r.Table != "" {
			buf.WriteString(QuoteId(r.Table))
			buf.WriteString(".")
		}
		buf.WriteString(QuoteId(r.Id))

	case ExprCall:
		c := expr.(*Call)
		buf.WriteString(c.Name)
		buf.WriteString("(")
		if c.Distinct {
			buf.WriteString("DISTINCT ")
		}
		if c.Star {
			buf.WriteString("*")
		} else {
			doPrintExprList(c.Args, buf)
		}
		buf.WriteString(")")

	case ExprUnary:
		u := expr.(*Unary)
		if u.Op == TkNot {
			buf.WriteString("NOT ")
		} else {
			buf.WriteString(OpText(u.Op))
		}
		doPrintExpr(u.Operand, buf)

	case ExprBinary:
		b := expr.(*Binary)
		buf.WriteString("(")
		doPrintExpr(b.L, buf)
		buf.WriteString(" ")
		buf.WriteString(OpText(b.Op))
		buf.WriteString(" ")
		doPrintExpr(b.R, buf)
		buf.WriteString(")")

	case ExprCase:
		c := expr.(*Case)
		buf.WriteString("CASE")
		if c.Operand != nil {
			buf.WriteString(" ")
			doPrintExpr(c.Operand, buf)
		}
		for _, w := range c.When {
			buf.WriteString(" WHEN ")
			doPrintExpr(w.Cond, buf)
			buf.WriteString(" THEN ")
			doPrintExpr(w.Then, buf)
		}
		if c.Else != nil {
			buf.WriteString(" ELSE ")
			doPrintExpr(c.Else, buf)
		}
		buf.WriteString(" END")

	case ExprCast:
		c := expr.(*Cast)
		buf.WriteString("CAST(")
		doPrintExpr(c.Operand, buf)
		buf.WriteString(" AS ")
		buf.WriteString(c.TypeName)
		buf.WriteString(")")

	case ExprCollate:
		c := expr.(*Collate)
		doPrintExpr(c.Operand, buf)
		buf.WriteString(" COLLATE ")
		buf.WriteString(c.Collation)

	case ExprSubquery:
		buf.WriteString("(")
		doPrintSelect(expr.(*Subquery).Select, buf)
		buf.WriteString(")")

	default:
		panic("unreachable")
	}
}

func doPrintSelect(s *Select, buf *bytes.Buffer) {
	buf.WriteString("SELECT ")
	if s.Distinct {
		buf.WriteString("DISTINCT ")
	}
	for idx, v := range s.Projection.ValueList {
		if idx > 0 {
			buf.WriteString(", ")
		}
		switch v.Type() {
		case SelectVarStar:
			if t := v.(*Star).Table; t != "" {
				buf.WriteString(QuoteId(t))
				buf.WriteString(".")
			}
			buf.WriteString("*")
		default:
			col := v.(*Col)
			doPrintExpr(col.Value, buf)
			if col.As != "" {
				buf.WriteString(" AS ")
				buf.WriteString(QuoteId(col.As))
			}
		}
	}

	if s.From != nil {
		buf.WriteString(" FROM ")
		for idx, v := range s.From.VarList {
			if idx > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(QuoteId(v.Name))
			if v.Alias != "" {
				buf.WriteString(" AS ")
				buf.WriteString(QuoteId(v.Alias))
			}
		}
	}
	if s.Where != nil {
		buf.WriteString(" WHERE ")
		doPrintExpr(s.Where.Condition, buf)
	}
	if s.GroupBy != nil {
		buf.WriteString(" GROUP BY ")
		doPrintExprList(s.GroupBy.Name, buf)
	}
	if s.Having != nil {
		buf.WriteString(" HAVING ")
		doPrintExpr(s.Having.Condition, buf)
	}
	if s.OrderBy != nil {
		buf.WriteString(" ORDER BY ")
		for idx, t := range s.OrderBy.Terms {
			if idx > 0 {
				buf.WriteString(", ")
			}
			doPrintExpr(t.Expr, buf)
			if t.Desc {
				buf.WriteString(" DESC")
			}
		}
	}
	if s.Limit != nil {
		buf.WriteString(" LIMIT ")
		doPrintExpr(s.Limit.Limit, buf)
		if s.Limit.Offset != nil {
			buf.WriteString(" OFFSET ")
			doPrintExpr(s.Limit.Offset, buf)
		}
	}
}

func doPrintColumnDef(c *ColumnDef, buf *bytes.Buffer) {
	buf.WriteString(QuoteId(c.Name))
	if c.TypeName != "" {
		buf.WriteString(" ")
		buf.WriteString(c.TypeName)
	}
	if c.PrimaryKey {
		buf.WriteString(" PRIMARY KEY")
		if c.Desc {
			buf.WriteString(" DESC")
		}
		if c.AutoInc {
			buf.WriteString(" AUTOINCREMENT")
		}
	}
	if c.NotNull {
		buf.WriteString(" NOT NULL")
	}
	if c.Unique {
		buf.WriteString(" UNIQUE")
	}
	if c.Collate != "" {
		buf.WriteString(" COLLATE ")
		buf.WriteString(c.Collate)
	}
	if c.Default != nil {
		buf.WriteString(" DEFAULT ")
		doPrintExpr(c.Default, buf)
	}
}

func doPrintCreateTable(c *CreateTable, buf *bytes.Buffer) {
	if c.Virtual {
		buf.WriteString("CREATE VIRTUAL TABLE ")
		buf.WriteString(QuoteId(c.Name))
		buf.WriteString(" USING ")
		buf.WriteString(c.Module)
		if len(c.ModuleArgs) > 0 {
			buf.WriteString("(")
			buf.WriteString(strings.Join(c.ModuleArgs, ", "))
			buf.WriteString(")")
		}
		return
	}

	buf.WriteString("CREATE TABLE ")
	if c.IfNotExists {
		buf.WriteString("IF NOT EXISTS ")
	}
	buf.WriteString(QuoteId(c.Name))
	buf.WriteString(" (")
	for idx, col := range c.Columns {
		if idx > 0 {
			buf.WriteString(", ")
		}
		doPrintColumnDef(col, buf)
	}
	if len(c.PrimaryKey) > 0 {
		buf.WriteString(", PRIMARY KEY (")
		for idx, n := range c.PrimaryKey {
			if idx > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(QuoteId(n))
		}
		buf.WriteString(")")
	}
	for _, u := range c.Unique {
		buf.WriteString(", UNIQUE (")
		for idx, n := range u {
			if idx > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(QuoteId(n))
		}
		buf.WriteString(")")
	}
	buf.WriteString(")")
	if c.WithoutRowid {
		buf.WriteString(" WITHOUT ROWID")
	}
}

func doPrintCreateIndex(c *CreateIndex, buf *bytes.Buffer) {
	buf.WriteString("CREATE ")
	if c.Unique {
		buf.WriteString("UNIQUE ")
	}
	buf.WriteString("INDEX ")
	if c.IfNotExists {
		buf.WriteString("IF NOT EXISTS ")
	}
	buf.WriteString(QuoteId(c.Name))
	buf.WriteString(" ON ")
	buf.WriteString(QuoteId(c.Table))
	buf.WriteString(" (")
	for idx, col := range c.Columns {
		if idx > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(QuoteId(col.Name))
		if col.Collate != "" {
			buf.WriteString(" COLLATE ")
			buf.WriteString(col.Collate)
		}
		if col.Desc {
			buf.WriteString(" DESC")
		}
	}
	buf.WriteString(")")
}

func doPrintStmt(s Stmt, buf *bytes.Buffer) {
	switch s.Type() {
	case StmtSelect:
		doPrintSelect(s.(*Select), buf)

	case StmtInsert:
		n := s.(*Insert)
		buf.WriteString("INSERT INTO ")
		buf.WriteString(QuoteId(n.Table))
		if len(n.Columns) > 0 {
			buf.WriteString(" (")
			for idx, c := range n.Columns {
				if idx > 0 {
					buf.WriteString(", ")
				}
				buf.WriteString(QuoteId(c))
			}
			buf.WriteString(")")
		}
		if n.Select != nil {
			buf.WriteString(" ")
			doPrintSelect(n.Select, buf)
		} else {
			buf.WriteString(" VALUES ")
			for idx, row := range n.Values {
				if idx > 0 {
					buf.WriteString(", ")
				}
				buf.WriteString("(")
				doPrintExprList(row, buf)
				buf.WriteString(")")
			}
		}

	case StmtUpdate:
		n := s.(*Update)
		buf.WriteString("UPDATE ")
		buf.WriteString(QuoteId(n.Table))
		buf.WriteString(" SET ")
		for idx, c := range n.Set {
			if idx > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(QuoteId(c.Column))
			buf.WriteString(" = ")
			doPrintExpr(c.Value, buf)
		}
		if n.Where != nil {
			buf.WriteString(" WHERE ")
			doPrintExpr(n.Where.Condition, buf)
		}

	case StmtDelete:
		n := s.(*Delete)
		buf.WriteString("DELETE FROM ")
		buf.WriteString(QuoteId(n.Table))
		if n.Where != nil {
			buf.WriteString(" WHERE ")
			doPrintExpr(n.Where.Condition, buf)
		}

	case StmtCreateTable:
		doPrintCreateTable(s.(*CreateTable), buf)

	case StmtCreateIndex:
		doPrintCreateIndex(s.(*CreateIndex), buf)

	case StmtAlterTable:
		n := s.(*AlterTable)
		buf.WriteString("ALTER TABLE ")
		buf.WriteString(QuoteId(n.Table))
		buf.WriteString(" RENAME TO ")
		buf.WriteString(QuoteId(n.NewName))

	case StmtAnalyze:
		buf.WriteString("ANALYZE")
		if t := s.(*Analyze).Target; t != "" {
			buf.WriteString(" ")
			buf.WriteString(QuoteId(t))
		}

	case StmtBegin:
		buf.WriteString("BEGIN")
	case StmtCommit:
		buf.WriteString("COMMIT")
	case StmtRollback:
		buf.WriteString("ROLLBACK")
	}
}

func PrintExpr(expr Expr) string {
	if expr == nil {
		return ""
	}
	buf := &bytes.Buffer{}
	doPrintExpr(expr, buf)
	return buf.String()
}

func PrintSelect(s *Select) string {
	buf := &bytes.Buffer{}
	doPrintSelect(s, buf)
	return buf.String()
}

func PrintStmt(s Stmt) string {
	buf := &bytes.Buffer{}
	doPrintStmt(s, buf)
	return buf.String()
}

func PrintCode(c *Code) string {
	if c.Explain {
		return "EXPLAIN " + PrintStmt(c.Stmt)
	}
	return PrintStmt(c.Stmt)
}
