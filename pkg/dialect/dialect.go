// Package dialect describes the SQL dialects the code generator targets
// (spec §4.5): identifier quoting, TOP-vs-LIMIT row limiting, the `*`
// exclude keyword, UNION distinctness defaults, and per-operator
// availability. Grounded on the teacher's pkg/dialect Builder/Registry
// idiom (fluent construction, a global name-keyed registry guarded by a
// mutex) but with content rewritten entirely for SQL generation rather
// than SQL parsing.
package dialect

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// Name identifies one of the dialects the generator knows about (spec
// §4.5's table).
type Name int

// Known dialect names.
const (
	Generic Name = iota
	Ansi
	BigQuery
	ClickHouse
	DuckDb
	MsSql
	MySql
	PostgreSql
	SQLite
	Snowflake
)

func (n Name) String() string {
	switch n {
	case Ansi:
		return "ansi"
	case BigQuery:
		return "bigquery"
	case ClickHouse:
		return "clickhouse"
	case DuckDb:
		return "duckdb"
	case MsSql:
		return "mssql"
	case MySql:
		return "mysql"
	case PostgreSql:
		return "postgres"
	case SQLite:
		return "sqlite"
	case Snowflake:
		return "snowflake"
	default:
		return "generic"
	}
}

// ParseName resolves a `target:sql.<dialect>` suffix (spec §6.2) to a
// Name, defaulting to Generic per spec §4.5's "Target::Sql(None) ... Sql
// defaults to Generic" rule.
func ParseName(s string) (Name, bool) {
	switch lowerCaser.String(s) {
	case "", "generic":
		return Generic, true
	case "ansi":
		return Ansi, true
	case "bigquery":
		return BigQuery, true
	case "clickhouse":
		return ClickHouse, true
	case "duckdb":
		return DuckDb, true
	case "mssql", "sqlserver":
		return MsSql, true
	case "mysql":
		return MySql, true
	case "postgres", "postgresql":
		return PostgreSql, true
	case "sqlite":
		return SQLite, true
	case "snowflake":
		return Snowflake, true
	default:
		return Generic, false
	}
}

// RowLimitStyle selects how a dialect expresses a bare row cap.
type RowLimitStyle int

// Row limit styles.
const (
	StyleLimit RowLimitStyle = iota // LIMIT n OFFSET m
	StyleTop                       // SELECT TOP (n) ..., no OFFSET support
)

// ExcludeKeyword selects how a dialect spells `select !{a,b}` (wildcard
// minus some columns); empty when the dialect has no such keyword, in which
// case code generation of `!{...}` fails with an error.
type ExcludeKeyword string

// Known exclude keywords.
const (
	ExcludeNone   ExcludeKeyword = ""
	ExcludeKwBQ   ExcludeKeyword = "EXCEPT"
	ExcludeKwDuck ExcludeKeyword = "EXCLUDE"
)

// Dialect is one SQL target's lexical and capability configuration (spec
// §4.5's table plus the per-operator availability it references).
type Dialect struct {
	Name Name

	RowLimit       RowLimitStyle
	IdentQuote     string // opening quote; IdentQuoteEnd is the closing one
	IdentQuoteEnd  string
	ExcludeKw      ExcludeKeyword
	UnionDistinct  bool // true: plain UNION already dedups; Append still uses UNION ALL except where noted
	SupportsOffset bool // false only for MsSql's TOP

	unsupportedOperators map[string]string // operator name -> rejection reason
}

// QuoteIdent quotes name using the dialect's identifier quoting rule,
// doubling any embedded end-quote character.
func (d *Dialect) QuoteIdent(name string) string {
	escaped := strings.ReplaceAll(name, d.IdentQuoteEnd, d.IdentQuoteEnd+d.IdentQuoteEnd)
	return d.IdentQuote + escaped + d.IdentQuoteEnd
}

// RejectOperator returns the dialect-specific rejection message for an
// operator it does not support, or ("", false) if the operator is fine.
func (d *Dialect) RejectOperator(name string) (string, bool) {
	msg, ok := d.unsupportedOperators[name]
	return msg, ok
}

// AppendKeyword returns the keyword pair used to emit an Append transform
// (spec §4.5's Append rule): DuckDB and Snowflake, the two dialects
// whose UnionDistinct is false in the table below, emit bare UNION since
// their optimizer treats positional append specially; every other dialect
// emits UNION ALL to preserve duplicate rows).
func (d *Dialect) AppendKeyword() string {
	if !d.UnionDistinct {
		return "UNION"
	}
	return "UNION ALL"
}

var (
	registryMu sync.RWMutex
	registry   = map[Name]*Dialect{}
)

func register(d *Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Name] = d
}

// Get returns the registered Dialect for name, which always succeeds for
// the ten names this package defines.
func Get(name Name) *Dialect {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if d, ok := registry[name]; ok {
		return d
	}
	return registry[Generic]
}

// All returns every registered dialect, ordered by Name.
func All() []*Dialect {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]*Dialect, 0, len(registry))
	for i := Generic; i <= Snowflake; i++ {
		if d, ok := registry[i]; ok {
			out = append(out, d)
		}
	}
	return out
}

func init() {
	register(&Dialect{
		Name: Generic, RowLimit: StyleLimit, IdentQuote: `"`, IdentQuoteEnd: `"`,
		ExcludeKw: ExcludeNone, UnionDistinct: true, SupportsOffset: true,
	})
	register(&Dialect{
		Name: Ansi, RowLimit: StyleLimit, IdentQuote: `"`, IdentQuoteEnd: `"`,
		ExcludeKw: ExcludeNone, UnionDistinct: true, SupportsOffset: true,
	})
	register(&Dialect{
		Name: BigQuery, RowLimit: StyleLimit, IdentQuote: "`", IdentQuoteEnd: "`",
		ExcludeKw: ExcludeKwBQ, UnionDistinct: true, SupportsOffset: true,
		unsupportedOperators: map[string]string{},
	})
	register(&Dialect{
		Name: ClickHouse, RowLimit: StyleLimit, IdentQuote: "`", IdentQuoteEnd: "`",
		ExcludeKw: ExcludeNone, UnionDistinct: true, SupportsOffset: true,
	})
	register(&Dialect{
		Name: DuckDb, RowLimit: StyleLimit, IdentQuote: `"`, IdentQuoteEnd: `"`,
		ExcludeKw: ExcludeKwDuck, UnionDistinct: false, SupportsOffset: true,
	})
	register(&Dialect{
		Name: MsSql, RowLimit: StyleTop, IdentQuote: `"`, IdentQuoteEnd: `"`,
		ExcludeKw: ExcludeNone, UnionDistinct: true, SupportsOffset: false,
		unsupportedOperators: map[string]string{
			"std.regex_search": "MsSql has no native regex match operator",
		},
	})
	register(&Dialect{
		Name: MySql, RowLimit: StyleLimit, IdentQuote: "`", IdentQuoteEnd: "`",
		ExcludeKw: ExcludeNone, UnionDistinct: true, SupportsOffset: true,
	})
	register(&Dialect{
		Name: PostgreSql, RowLimit: StyleLimit, IdentQuote: `"`, IdentQuoteEnd: `"`,
		ExcludeKw: ExcludeNone, UnionDistinct: true, SupportsOffset: true,
	})
	register(&Dialect{
		Name: SQLite, RowLimit: StyleLimit, IdentQuote: `"`, IdentQuoteEnd: `"`,
		ExcludeKw: ExcludeNone, UnionDistinct: true, SupportsOffset: true,
	})
	register(&Dialect{
		Name: Snowflake, RowLimit: StyleLimit, IdentQuote: `"`, IdentQuoteEnd: `"`,
		ExcludeKw: ExcludeKwDuck, UnionDistinct: false, SupportsOffset: true,
	})
}
