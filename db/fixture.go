package db

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dianpeng/sqlvdbe/sql"
	"gopkg.in/yaml.v3"
)

// Fixture describes the content of a database in YAML:
//
//	tables:
//	  - name: t
//	    columns: [a INTEGER PRIMARY KEY, b TEXT]
//	    rows:
//	      - [1, x]
//	      - [2, ~]
//	indexes:
//	  - CREATE INDEX t_b ON t (b)
//	statements:
//	  - ANALYZE
type Fixture struct {
	Tables     []FixtureTable `yaml:"tables"`
	Indexes    []string       `yaml:"indexes"`
	Statements []string       `yaml:"statements"`
}

type FixtureTable struct {
	Name         string          `yaml:"name"`
	Columns      []string        `yaml:"columns"`
	WithoutRowid bool            `yaml:"without_rowid"`
	Rows         [][]interface{} `yaml:"rows"`
}

func ParseFixture(data []byte) (*Fixture, error) {
	f := &Fixture{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}
	for i, t := range f.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("fixture: table #%d has no name", i+1)
		}
		if len(t.Columns) == 0 {
			return nil, fmt.Errorf("fixture: table %s has no columns", t.Name)
		}
	}
	return f, nil
}

// LoadFixture reads the fixture file at path and applies it to conn
func LoadFixture(conn *Conn, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("fixture: %w", err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return err
	}
	return f.Apply(conn)
}

// Script renders the fixture as SQL, tables first, then their rows, the
// indexes and finally the extra statements
func (self *Fixture) Script() ([]string, error) {
	out := []string{}
	for _, t := range self.Tables {
		create := fmt.Sprintf("CREATE TABLE %s (%s)", t.Name, strings.Join(t.Columns, ", "))
		if t.WithoutRowid {
			create += " WITHOUT ROWID"
		}
		out = append(out, create)

		for i, r := range t.Rows {
			vals := make([]string, 0, len(r))
			for _, v := range r {
				lit, err := literal(v)
				if err != nil {
					return nil, fmt.Errorf("fixture: table %s row %d: %w", t.Name, i+1, err)
				}
				vals = append(vals, lit)
			}
			out = append(out, fmt.Sprintf("INSERT INTO %s VALUES (%s)", t.Name, strings.Join(vals, ", ")))
		}
	}
	out = append(out, self.Indexes...)
	out = append(out, self.Statements...)
	return out, nil
}

func (self *Fixture) Apply(conn *Conn) error {
	script, err := self.Script()
	if err != nil {
		return err
	}
	for _, s := range script {
		if _, err := conn.Exec(s); err != nil {
			return fmt.Errorf("fixture: %s: %w", s, err)
		}
	}
	return nil
}

// literal renders a decoded YAML scalar as a SQL literal
func literal(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return "", fmt.Errorf("value %v has no literal", x)
		}
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, nil
	case string:
		return sql.QuoteStr(x), nil
	default:
		return "", fmt.Errorf("unsupported value %v of type %T", v, v)
	}
}
