package sql

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// Literal
	TkInt = iota
	TkReal
	TkNull
	TkStr
	TkBlob
	TkId

	// Keywords
	TkSelect
	TkFrom
	TkAs
	TkCast
	TkWhere
	TkGroupBy
	TkOrderBy
	TkLimit
	TkOffset
	TkHaving
	TkDistinct
	TkAll
	TkIn
	TkBetween
	TkDefault
	TkCase
	TkWhen
	TkThen
	TkElse
	TkEnd
	TkIs
	TkLike
	TkEscape
	TkCollate
	TkAsc
	TkDesc
	TkInsert
	TkInto
	TkValues
	TkUpdate
	TkSet
	TkDelete
	TkCreate
	TkTable
	TkIndex
	TkUnique
	TkOn
	TkIf
	TkExists
	TkPrimary
	TkKey
	TkWithout
	TkAlter
	TkRename
	TkTo
	TkColumn
	TkAddKw
	TkDrop
	TkAnalyze
	TkBegin
	TkCommit
	TkRollback
	TkTransaction
	TkExplain
	TkVirtual
	TkUsing
	TkAutoincrement

	// Punctuation
	TkComma
	TkSemicolon
	TkDot
	TkLPar
	TkRPar

	TkAdd
	TkSub
	TkMul
	TkDiv
	TkMod
	TkConcat
	TkBitAnd
	TkBitOr
	TkBitNot

	TkLt
	TkLe
	TkGt
	TkGe
	TkEq
	TkNe

	TkAnd
	TkOr
	TkNot

	TkError
	TkEof

	// Special hidden tokens that will never showsup during lexing, used inside
	// of parser for preprocessing/desugar purpose. NOT LIKE and IS NOT survive
	// as binary operators of the AST.
	TkNotLike
	tkNotIn
	tkNotBetween
	TkIsNot
)

var keywords = map[string]int{
	"select":        TkSelect,
	"from":          TkFrom,
	"as":            TkAs,
	"cast":          TkCast,
	"where":         TkWhere,
	"limit":         TkLimit,
	"offset":        TkOffset,
	"having":        TkHaving,
	"distinct":      TkDistinct,
	"all":           TkAll,
	"in":            TkIn,
	"between":       TkBetween,
	"default":       TkDefault,
	"case":          TkCase,
	"when":          TkWhen,
	"then":          TkThen,
	"else":          TkElse,
	"end":           TkEnd,
	"is":            TkIs,
	"like":          TkLike,
	"escape":        TkEscape,
	"collate":       TkCollate,
	"asc":           TkAsc,
	"desc":          TkDesc,
	"insert":        TkInsert,
	"into":          TkInto,
	"values":        TkValues,
	"update":        TkUpdate,
	"set":           TkSet,
	"delete":        TkDelete,
	"create":        TkCreate,
	"table":         TkTable,
	"index":         TkIndex,
	"unique":        TkUnique,
	"on":            TkOn,
	"if":            TkIf,
	"exists":        TkExists,
	"primary":       TkPrimary,
	"key":           TkKey,
	"without":       TkWithout,
	"alter":         TkAlter,
	"rename":        TkRename,
	"to":            TkTo,
	"column":        TkColumn,
	"add":           TkAddKw,
	"drop":          TkDrop,
	"analyze":       TkAnalyze,
	"begin":         TkBegin,
	"commit":        TkCommit,
	"rollback":      TkRollback,
	"transaction":   TkTransaction,
	"explain":       TkExplain,
	"virtual":       TkVirtual,
	"using":         TkUsing,
	"autoincrement": TkAutoincrement,
	"null":          TkNull,
	"and":           TkAnd,
	"or":            TkOr,
	"not":           TkNot,
}

var tokenNames = map[int]string{
	TkInt:       "integer",
	TkReal:      "real",
	TkStr:       "string",
	TkBlob:      "blob",
	TkId:        "identifier",
	TkComma:     "','",
	TkSemicolon: "';'",
	TkDot:       "'.'",
	TkLPar:      "'('",
	TkRPar:      "')'",
	TkError:     "error",
	TkEof:       "end of input",
}

// TokenName returns a printable name of the token for diagnostics.
func TokenName(tk int) string {
	if n, ok := tokenNames[tk]; ok {
		return n
	}
	for k, v := range keywords {
		if v == tk {
			return strings.ToUpper(k)
		}
	}
	switch tk {
	case TkGroupBy:
		return "GROUP BY"
	case TkOrderBy:
		return "ORDER BY"
	}
	return fmt.Sprintf("token(%d)", tk)
}

// IsKeyword reports whether the word would be lexed as a keyword, the
// printer quotes such names.
func IsKeyword(w string) bool {
	_, ok := keywords[strings.ToLower(w)]
	return ok
}

type Lexeme struct {
	Text string
	Blob []byte
	Int  int64
	Real float64
}

type Lexer struct {
	Source  string
	Cursor  int
	Start   int // offset of the current token
	PrevEnd int // end offset of the previous token
	Token   int
	Lexeme  Lexeme
}

func (self *Lexer) nextRune() (rune, int) {
	if self.Cursor >= len(self.Source) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(self.Source[self.Cursor:])
}

func (self *Lexer) nextRune2() rune {
	if self.Cursor+1 >= len(self.Source) {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRuneInString(self.Source[self.Cursor+1:])
	return r
}

func (self *Lexer) yield(tk int, sz int) int {
	self.Token = tk
	self.Cursor += sz
	return tk
}

func (self *Lexer) eof() int {
	self.Token = TkEof
	return TkEof
}

// generate a debug position for diagnostic information output
func (self *Lexer) pos(where int, source string) (int, int) {
	line := 1
	col := 1

	for idx, r := range source {
		if idx >= where {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	return line, col
}

func (self *Lexer) dinfo() string {
	line, col := self.pos(self.Cursor, self.Source)
	return fmt.Sprintf("around position(%d: %d)", line, col)
}

func (self *Lexer) err(msg string) int {
	self.Lexeme.Text = fmt.Sprintf("%s: %s", self.dinfo(), msg)
	self.Token = TkError
	return TkError
}

func (self *Lexer) errE(err error) int {
	self.Lexeme.Text = fmt.Sprintf("%s: %s", self.dinfo(), err)
	self.Token = TkError
	return TkError
}

func (self *Lexer) errUtf8() int {
	return self.err("invalid utf8 character")
}

func (self *Lexer) lexLineComment() bool {
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				return true // last line break, ie reaching end of the file
			} else {
				self.errUtf8()
				return false
			}
		}

		self.Cursor += sz

		if r == '\n' {
			break
		}
	}

	return true
}

func (self *Lexer) lexBlockComment() bool {
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				self.err("block comment is not closed properly")
			} else {
				self.errUtf8()
			}
			return false
		}

		if r == '*' && self.nextRune2() == '/' {
			// end of the comment
			self.Cursor += 2
			break
		}

		self.Cursor += sz
	}

	return true
}

// 1) exponent or dot indicates a real number
// 2) 0x prefix is a hexadecimal integer
// 3) otherwise treated as 64 bits number, overflowing literals become real
func (self *Lexer) lexNum(c rune) int {
	hasDot := false
	hasE := false

	buf := &bytes.Buffer{}

	if c == '0' && (self.nextRune2() == 'x' || self.nextRune2() == 'X') {
		self.Cursor += 2
		for {
			r, sz := self.nextRune()
			if !strings.ContainsRune("0123456789abcdefABCDEF", r) || sz == 0 {
				break
			}
			buf.WriteRune(r)
			self.Cursor += sz
		}
		u, err := strconv.ParseUint(buf.String(), 16, 64)
		if err != nil {
			return self.errE(err)
		}
		self.Lexeme.Int = int64(u)
		self.Token = TkInt
		return TkInt
	}

loop:
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				break
			} else {
				return self.errUtf8()
			}
		}

		switch r {
		case '.':
			if hasDot || hasE {
				break loop
			}
			hasDot = true

		case 'e', 'E':
			if hasE {
				break loop
			}
			hasE = true
			buf.WriteRune(r)
			self.Cursor += sz
			if n, _ := self.nextRune(); n == '+' || n == '-' {
				buf.WriteRune(n)
				self.Cursor++
			}
			continue

		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':

		default:
			break loop
		}

		buf.WriteRune(r)
		self.Cursor += sz
	}

	if !hasDot && !hasE {
		if i, err := strconv.ParseInt(buf.String(), 10, 64); err == nil {
			self.Lexeme.Int = i
			self.Token = TkInt
			return TkInt
		}
	}

	f, err := strconv.ParseFloat(buf.String(), 64)
	if err != nil {
		return self.errE(err)
	}
	self.Lexeme.Real = f
	self.Token = TkReal
	return TkReal
}

// lexQuoted scans a quoted run where a doubled closing quote stands for the
// quote itself.
func (self *Lexer) lexQuoted(quote rune, closing rune) (string, bool) {
	buf := &bytes.Buffer{}
	self.Cursor++

	for {
		c, sz := self.nextRune()

		if c == utf8.RuneError {
			if sz == 0 {
				self.err("quoted literal is not closed by quote properly")
			} else {
				self.errUtf8()
			}
			return "", false
		}

		if c == closing {
			if closing != ']' && self.nextRune2() == closing {
				buf.WriteRune(c)
				self.Cursor += 2
				continue
			}
			self.Cursor += sz
			break
		}

		buf.WriteRune(c)
		self.Cursor += sz
	}

	return buf.String(), true
}

func (self *Lexer) lexStr(c rune) int {
	s, ok := self.lexQuoted(c, c)
	if !ok {
		return TkError
	}
	self.Lexeme.Text = s
	self.Token = TkStr
	return TkStr
}

func (self *Lexer) lexQuotedId(c rune) int {
	closing := c
	if c == '[' {
		closing = ']'
	}
	s, ok := self.lexQuoted(c, closing)
	if !ok {
		return TkError
	}
	self.Lexeme.Text = s
	self.Token = TkId
	return TkId
}

func (self *Lexer) lexBlob() int {
	self.Cursor++ // the x
	s, ok := self.lexQuoted('\'', '\'')
	if !ok {
		return TkError
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return self.err("malformed blob literal")
	}
	self.Lexeme.Blob = b
	self.Token = TkBlob
	return TkBlob
}

func (self *Lexer) matchkeyword(str string, offset int) bool {
	c := self.Cursor + offset
	tar := []rune(str)

	for idx := 0; idx < len(tar); idx++ {
		if c >= len(self.Source) {
			return false
		}
		r, sz := utf8.DecodeRuneInString(self.Source[c:]) // make sure to be case insensitive

		if unicode.ToLower(r) != tar[idx] {
			return false
		}
		c += sz
	}

	if c >= len(self.Source) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(self.Source[c:])
	return !self.isIdChar(r)
}

func (self *Lexer) matchKeyword(w string) bool {
	return self.matchkeyword(w, 1)
}

func (self *Lexer) matchKeyword2(w1, w2 string) (bool, int) {
	if !self.matchKeyword(w1) {
		return false, -1
	}

	off := 1 + len(w1)

	// skip all the whitespace that is in between
	for self.Cursor+off < len(self.Source) {
		r, _ := utf8.DecodeRuneInString(self.Source[self.Cursor+off:])
		if self.isWS(r) {
			off++
		} else {
			break
		}
	}

	if self.Cursor+off >= len(self.Source) {
		return false, -1
	}

	if self.matchkeyword(w2, off) {
		return true, off + len(w2)
	} else {
		return false, -1
	}
}

func (self *Lexer) isWS(r rune) bool {
	switch r {
	case ' ', '\r', '\t', '\n', '\b', '\v', '\f':
		return true
	default:
		return false
	}
}

func (self *Lexer) isIdChar(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (self *Lexer) isIdLeadingChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func (self *Lexer) tryKeyword(c rune) (bool, int) {
	switch c {
	case 'g', 'G':
		if yes, length := self.matchKeyword2("roup", "by"); yes {
			return true, self.yield(TkGroupBy, length)
		}
	case 'o', 'O':
		if yes, length := self.matchKeyword2("rder", "by"); yes {
			return true, self.yield(TkOrderBy, length)
		}
	}
	return false, 0
}

func (self *Lexer) lexId(c rune) int {
	if !self.isIdLeadingChar(c) {
		return self.err("invalid leading character of identifier")
	}

	start := self.Cursor
	for {
		c, sz := self.nextRune()
		if c == utf8.RuneError || !self.isIdChar(c) {
			break
		}
		self.Cursor += sz
	}

	text := self.Source[start:self.Cursor]
	if tk, ok := keywords[strings.ToLower(text)]; ok {
		self.Lexeme.Text = text
		self.Token = tk
		return tk
	}

	self.Lexeme.Text = text
	self.Token = TkId
	return TkId
}

func (self *Lexer) lexKeywordOrId(c rune) int {
	yes, tk := self.tryKeyword(c)
	if yes {
		return tk
	}

	return self.lexId(c)
}

func (self *Lexer) Next() int {
	self.PrevEnd = self.Cursor
	if self.Token == TkEof {
		return TkEof
	}
	return self.next()
}

func (self *Lexer) next() int {
	for {
		self.Start = self.Cursor
		c, sz := self.nextRune()
		if c == utf8.RuneError {
			if sz == 0 {
				return self.eof()
			} else {
				return self.errUtf8()
			}
		}

		switch c {
		case ',':
			return self.yield(TkComma, 1)

		case ';':
			return self.yield(TkSemicolon, 1)

		case '.':
			if r := self.nextRune2(); r >= '0' && r <= '9' {
				return self.lexNum(c)
			}
			return self.yield(TkDot, 1)

		case '(':
			return self.yield(TkLPar, 1)
		case ')':
			return self.yield(TkRPar, 1)

		case '+':
			return self.yield(TkAdd, 1)
		case '-':
			if self.nextRune2() == '-' {
				self.Cursor += 2
				if !self.lexLineComment() {
					return self.Token
				}
				break
			}
			return self.yield(TkSub, 1)
		case '*':
			return self.yield(TkMul, 1)
		case '/':
			if self.nextRune2() == '*' {
				self.Cursor += 2
				if !self.lexBlockComment() {
					return self.Token
				}
				break
			}
			return self.yield(TkDiv, 1)

		case '%':
			return self.yield(TkMod, 1)

		case '&':
			return self.yield(TkBitAnd, 1)

		case '|':
			if self.nextRune2() == '|' {
				return self.yield(TkConcat, 2)
			}
			return self.yield(TkBitOr, 1)

		case '~':
			return self.yield(TkBitNot, 1)

		case '=':
			if self.nextRune2() == '=' {
				return self.yield(TkEq, 2)
			} else {
				return self.yield(TkEq, 1)
			}

		case '>':
			if self.nextRune2() == '=' {
				return self.yield(TkGe, 2)
			} else {
				return self.yield(TkGt, 1)
			}

		case '<':
			if self.nextRune2() == '=' {
				return self.yield(TkLe, 2)
			} else if self.nextRune2() == '>' {
				return self.yield(TkNe, 2)
			} else {
				return self.yield(TkLt, 1)
			}

		case '!':
			if self.nextRune2() == '=' {
				return self.yield(TkNe, 2)
			}
			return self.err("are you missing '=' for != operator?")

		case ' ', '\r', '\t', '\n', '\b', '\v', '\f':
			self.Cursor++

		case '\'':
			return self.lexStr(c)

		case '"', '`', '[':
			return self.lexQuotedId(c)

		case 'x', 'X':
			if self.nextRune2() == '\'' {
				return self.lexBlob()
			}
			return self.lexKeywordOrId(c)

		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			return self.lexNum(c)

		default:
			return self.lexKeywordOrId(c)
		}
	}
}

func (self *Lexer) lowerText() string {
	return strings.ToLower(self.Lexeme.Text)
}

func newLexer(source string) *Lexer {
	return &Lexer{
		Source: source,
		Cursor: 0,
		Token:  TkError,
	}
}
