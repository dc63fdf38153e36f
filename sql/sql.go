package sql

import (
	"fmt"
	"strings"
)

func IsAggFunc(n string) bool {
	switch strings.ToLower(n) {
	case "min", "max", "sum", "total", "avg", "count":
		return true
	default:
		return false
	}
}

// Parse is a shortcut of NewParser(src).Parse()
func Parse(src string) (*Code, error) {
	return NewParser(src).Parse()
}

// ParseExpr parses a standalone expression, used for column defaults
func ParseExpr(src string) (Expr, error) {
	p := newParser(src)
	p.L.Next()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.L.Token != TkEof {
		return nil, p.err("dangling code after expression")
	}
	return e, nil
}

// Split cuts a script into its statements at the semicolons outside of
// literals and comments. A statement starts at its first token, pieces
// without any token are dropped.
func Split(src string) ([]string, error) {
	l := newLexer(src)
	out := []string{}
	begin := -1

	push := func(end int) {
		if begin >= 0 {
			out = append(out, strings.TrimSpace(src[begin:end]))
		}
		begin = -1
	}

	for {
		switch l.Next() {
		case TkError:
			return nil, fmt.Errorf("%s", l.Lexeme.Text)
		case TkEof:
			push(len(src))
			return out, nil
		case TkSemicolon:
			push(l.Start)
		default:
			if begin < 0 {
				begin = l.Start
			}
		}
	}
}
