package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/dianpeng/sqlvdbe/db"
	"github.com/dianpeng/sqlvdbe/internal/logging"
	"github.com/dianpeng/sqlvdbe/sql"
	"github.com/dianpeng/sqlvdbe/store"
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/ulikunitz/xz"
)

var CLI struct {
	LogLevel  string `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log format"`
	CacheSize int64  `name:"cache-size" default:"65536" help:"Program cache budget in instructions, 0 disables it"`

	Explain ExplainCmd `cmd:"" help:"Print the bytecode program of the last statement, the statements before it are executed first"`
	Exec    ExecCmd    `cmd:"" help:"Execute every statement and print the rows they produce"`
}

// Input is shared by the commands
type Input struct {
	SQL     []string `arg:"" optional:"" help:"SQL text, read from STDIN when missing"`
	Fixture string   `short:"f" type:"existingfile" help:"YAML fixture loaded into the database first"`
	Output  string   `short:"o" type:"path" help:"Save output to this file, a .xz suffix compresses it"`
}

type ExplainCmd struct {
	Input `embed:""`

	Color bool   `help:"Highlight opcodes"`
	Awk   string `help:"Filter the tab separated listing through this awk program"`
}

type ExecCmd struct {
	Input `embed:""`

	Separator string `short:"s" default:" " help:"Column separator"`
	Header    bool   `help:"Print column names before the rows"`
}

// stageError remembers which step of the pipeline failed
type stageError struct {
	stage string
	err   error
}

func (self *stageError) Error() string { return self.err.Error() }

func oops(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

func (self *Input) text() (string, error) {
	if len(self.SQL) > 0 {
		return strings.Join(self.SQL, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", oops("read sql", err)
	}
	return string(data), nil
}

func (self *Input) open() (*db.Conn, []string, error) {
	text, err := self.text()
	if err != nil {
		return nil, nil, err
	}
	stmts, err := sql.Split(text)
	if err != nil {
		return nil, nil, oops("parse", err)
	}

	conn, err := db.Open(store.New(), &db.Options{
		CacheSize: CLI.CacheSize,
		Logger:    logging.Logger(),
	})
	if err != nil {
		return nil, nil, oops("open", err)
	}
	if self.Fixture != "" {
		if err := db.LoadFixture(conn, self.Fixture); err != nil {
			conn.Close()
			return nil, nil, oops("fixture", err)
		}
	}
	return conn, stmts, nil
}

// output returns where results go. The returned close function flushes a
// compressed stream and must be called once writing is done.
func (self *Input) output() (io.Writer, func() error, error) {
	if self.Output == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(self.Output)
	if err != nil {
		return nil, nil, oops("save", err)
	}
	if !strings.HasSuffix(self.Output, ".xz") {
		return f, f.Close, nil
	}
	zw, err := xz.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, nil, oops("save", fmt.Errorf("failed to create xz writer: %w", err))
	}
	return zw, func() error {
		if err := zw.Close(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}

func (self *ExplainCmd) Run() error {
	conn, stmts, err := self.open()
	if err != nil {
		return err
	}
	defer conn.Close()
	if len(stmts) == 0 {
		return oops("parse", fmt.Errorf("no statement"))
	}

	last := len(stmts) - 1
	for _, s := range stmts[:last] {
		if _, err := conn.Exec(s); err != nil {
			return oops("exec", fmt.Errorf("%s: %w", s, err))
		}
	}
	rows, err := conn.Explain(stmts[last])
	if err != nil {
		return oops("code-gen", err)
	}

	w, done, err := self.output()
	if err != nil {
		return err
	}
	if self.Awk != "" {
		out, err := vdbe.FilterExplain(rows, self.Awk)
		if err != nil {
			done()
			return oops("awk", err)
		}
		_, err = io.WriteString(w, out)
		if err != nil {
			done()
			return oops("save", err)
		}
	} else if err := vdbe.FormatExplain(rows, w, self.Color); err != nil {
		done()
		return oops("save", err)
	}
	if err := done(); err != nil {
		return oops("save", err)
	}
	return nil
}

func (self *ExecCmd) Run() error {
	conn, stmts, err := self.open()
	if err != nil {
		return err
	}
	defer conn.Close()

	w, done, err := self.output()
	if err != nil {
		return err
	}
	for _, s := range stmts {
		rows, err := conn.Query(s)
		if err != nil {
			done()
			return oops("exec", fmt.Errorf("%s: %w", s, err))
		}
		if self.Header && len(rows.Values) > 0 {
			fmt.Fprintln(w, strings.Join(rows.Columns, self.Separator))
		}
		for _, l := range rows.Strings(self.Separator) {
			fmt.Fprintln(w, l)
		}
	}
	if err := done(); err != nil {
		return oops("save", err)
	}
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sqlvdbe"),
		kong.Description("Compile SQL statements into VDBE bytecode and run them"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	level, err := logging.ParseLevel(CLI.LogLevel)
	ctx.FatalIfErrorf(err)
	format, err := logging.ParseFormat(CLI.LogFormat)
	ctx.FatalIfErrorf(err)
	logging.InitLogger(level, format)

	if err := ctx.Run(); err != nil {
		stage := "run"
		if se, ok := err.(*stageError); ok {
			stage = se.stage
		}
		fmt.Fprintf(os.Stderr, "ERROR [%s]]] %s\n", stage, err)
		os.Exit(-1)
	}
	os.Exit(0)
}
