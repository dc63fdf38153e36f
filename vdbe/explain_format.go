package vdbe

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	gawki "github.com/benhoyt/goawk/interp"
	gawkp "github.com/benhoyt/goawk/parser"
	"github.com/fatih/color"
)

// opcodeColor picks the highlighting of an opcode in coloured listings.
func opcodeColor(op int) color.Attribute {
	switch {
	case op <= OpNoop:
		return color.FgMagenta
	case op <= OpJump:
		return color.FgYellow
	case op <= OpDeferredSeek:
		return color.FgCyan
	case op <= OpNot:
		return color.FgGreen
	case op <= OpResultRow:
		return color.FgRed
	case op <= OpSorterData:
		return color.FgBlue
	default:
		return color.FgWhite
	}
}

const explainHeader = "addr  opcode         p1    p2    p3    p4             p5  comment"
const explainRule = "----  -------------  ----  ----  ----  -------------  --  -------------"

// FormatExplain renders the listing as the classic fixed width table. When
// colored is set opcodes are highlighted per instruction family regardless
// of whether w is a terminal.
func FormatExplain(rows []ExplainRow, w io.Writer, colored bool) error {
	if _, err := fmt.Fprintf(w, "%s\n%s\n", explainHeader, explainRule); err != nil {
		return err
	}

	for _, r := range rows {
		op := fmt.Sprintf("%-13s", r.Opcode)
		if colored {
			if code, ok := OpByName(r.Opcode); ok {
				c := color.New(opcodeColor(code))
				c.EnableColor()
				op = c.Sprint(op)
			}
		}
		if _, err := fmt.Fprintf(
			w,
			"%-4d  %s  %-4d  %-4d  %-4d  %-13s  %-2d  %s\n",
			r.Addr,
			op,
			r.P1,
			r.P2,
			r.P3,
			r.P4,
			r.P5,
			r.Comment,
		); err != nil {
			return err
		}
	}
	return nil
}

// ExplainTSV renders rows as tab separated fields, the layout awk filters
// run against: addr, opcode, p1, p2, p3, p4, p5, comment.
func ExplainTSV(rows []ExplainRow) string {
	buf := strings.Builder{}
	for _, r := range rows {
		fmt.Fprintf(
			&buf,
			"%d\t%s\t%d\t%d\t%d\t%s\t%d\t%s\n",
			r.Addr,
			r.Opcode,
			r.P1,
			r.P2,
			r.P3,
			strings.ReplaceAll(r.P4, "\t", " "),
			r.P5,
			r.Comment,
		)
	}
	return buf.String()
}

// FilterExplain runs an awk program over the tab separated listing and
// returns what it printed.
func FilterExplain(rows []ExplainRow, awkSrc string) (string, error) {
	prog, err := gawkp.ParseProgram([]byte(awkSrc), nil)
	if err != nil {
		return "", fmt.Errorf("awk: %s", err)
	}

	interp, err := gawki.New(prog)
	if err != nil {
		return "", fmt.Errorf("awk: %s", err)
	}

	out := bytes.Buffer{}
	if _, err := interp.Execute(&gawki.Config{
		Stdin:  strings.NewReader(ExplainTSV(rows)),
		Output: &out,
		Vars:   []string{"FS", "\t", "OFS", "\t"},
	}); err != nil {
		return "", fmt.Errorf("awk: %s", err)
	}
	return out.String(), nil
}
