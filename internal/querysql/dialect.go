package querysql

import (
	"fmt"
	"regexp"
	"strconv"
)

// Dialect selects placeholder syntax and DDL types.
type Dialect string

const (
	// DialectSQLite uses numbered ?N placeholders (1-based).
	DialectSQLite Dialect = "sqlite"

	// DialectPostgres uses $N placeholders (1-based).
	DialectPostgres Dialect = "postgres"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case DialectSQLite, DialectPostgres:
		return Dialect(s), nil
	default:
		return "", fmt.Errorf("unknown SQL dialect %q (want sqlite or postgres)", s)
	}
}

// Placeholder renders the placeholder for zero-based parameter index i.
func (d Dialect) Placeholder(i int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(i+1)
	}
	return "?" + strconv.Itoa(i+1)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdent double-quotes an identifier after checking it is a plain name.
// Identifiers come from schemas and filter keys, so anything that is not a
// bare word is rejected rather than escaped.
func QuoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid SQL identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// quoter accumulates the first identifier error so rendering code can
// quote inline and check once.
type quoter struct {
	err error
}

func (q *quoter) ident(name string) string {
	s, err := QuoteIdent(name)
	if err != nil && q.err == nil {
		q.err = err
	}
	return s
}

func (q *quoter) column(alias, col string) string {
	return q.ident(alias) + "." + q.ident(col)
}
