package sqlgen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapsql/pkg/compiler"
	"github.com/leapstack-labs/leapsql/pkg/dialect"
)

func compileNoFormat(t *testing.T, prql string, target *dialect.Name) string {
	t.Helper()
	opts := compiler.DefaultOptions()
	opts.SignatureComment = false
	opts.Format = false
	if target != nil {
		opts.Target = compiler.Target{Dialect: target}
	}
	sql, errs := compiler.Compile(prql, opts)
	require.False(t, errs.HasErrors(), "%v", errs)
	return sql
}

// TestGenerateFilterAggregate exercises spec §8.3 scenario S2: a filter
// before an aggregation lands in WHERE, the aggregation's own grouping key
// becomes GROUP BY.
func TestGenerateFilterAggregate(t *testing.T) {
	sql := compileNoFormat(t, `
from orders
filter status == "shipped"
group {customer_id} (
  aggregate {total = sum amount}
)
`, nil)

	upper := strings.ToUpper(sql)
	assert.Contains(t, upper, "WHERE")
	assert.Contains(t, upper, "GROUP BY")
	assert.Contains(t, upper, "SUM(")
	assert.Contains(t, sql, "orders")
}

// TestGenerateJoinSortTake exercises spec §8.3 scenario S3: a join over
// two extern tables followed by a sort and a row cap.
func TestGenerateJoinSortTake(t *testing.T) {
	sql := compileNoFormat(t, `
from orders
join customers (==customer_id)
sort {-orders.date}
take 10
`, nil)

	upper := strings.ToUpper(sql)
	assert.Contains(t, upper, "JOIN")
	assert.Contains(t, upper, "ORDER BY")
	assert.Contains(t, upper, "LIMIT 10")
	assert.Contains(t, sql, "orders")
	assert.Contains(t, sql, "customers")
}

// TestGenerateWindowFunction exercises spec §8.3 scenario S4: a derived
// column whose value expression is itself piped through `group`/`window`
// lowers to a ROWS BETWEEN ... OVER (PARTITION BY ...) expression rather
// than a GROUP BY.
func TestGenerateWindowFunction(t *testing.T) {
	sql := compileNoFormat(t, `
from trades
derive {
  running_total = (sum amount | group symbol (window rows:..0))
}
`, nil)

	upper := strings.ToUpper(sql)
	assert.Contains(t, upper, "SELECT TRADES.*,", "derive on an unnarrowed relation must keep the wildcard alongside the computed column")
	assert.Contains(t, upper, "OVER (")
	assert.Contains(t, upper, "PARTITION BY")
	assert.Contains(t, upper, "ROWS BETWEEN")
	assert.Contains(t, upper, "SUM(")
	assert.Contains(t, upper, "RUNNING_TOTAL")
}

// TestGenerateMsSqlTakeUsesTop exercises spec §8.3 scenario S6 at the
// sqlgen boundary: MsSql's lack of LIMIT renders a bare row cap as TOP.
func TestGenerateMsSqlTakeUsesTop(t *testing.T) {
	mssql := dialect.MsSql
	sql := compileNoFormat(t, "from employees\ntake 5\n", &mssql)

	upper := strings.ToUpper(sql)
	assert.Contains(t, upper, "TOP (5)")
	assert.NotContains(t, upper, "LIMIT")
}

// TestGenerateMsSqlTakeRangeFallsBackToRowNumber exercises the MsSql Take
// rewrite for a ranged take (an explicit lower bound), since TOP has no
// OFFSET equivalent (spec.md §9's Open Question, pkg/sqlgen/take.go).
func TestGenerateMsSqlTakeRangeFallsBackToRowNumber(t *testing.T) {
	mssql := dialect.MsSql
	sql := compileNoFormat(t, "from employees\ntake 5..10\n", &mssql)

	upper := strings.ToUpper(sql)
	assert.Contains(t, upper, "ROW_NUMBER")
	assert.Contains(t, upper, "__RN BETWEEN 5 AND 10")
}

// TestGenerateExcludeTupleBigQuery exercises spec §3.3/§4.2 step 3's
// `!{...}` exclude-tuple, lowered to BigQuery's `EXCEPT` wildcard modifier.
func TestGenerateExcludeTupleBigQuery(t *testing.T) {
	bq := dialect.BigQuery
	sql := compileNoFormat(t, `
from orders
select !{internal_notes}
`, &bq)

	upper := strings.ToUpper(sql)
	assert.Contains(t, upper, "EXCEPT (")
	assert.Contains(t, sql, "internal_notes")
}

// TestGenerateExcludeTupleDuckDb exercises the same exclude-tuple lowering
// against DuckDB, whose equivalent keyword is `EXCLUDE` rather than
// `EXCEPT`.
func TestGenerateExcludeTupleDuckDb(t *testing.T) {
	duck := dialect.DuckDb
	sql := compileNoFormat(t, `
from orders
select !{internal_notes}
`, &duck)

	upper := strings.ToUpper(sql)
	assert.Contains(t, upper, "EXCLUDE (")
	assert.Contains(t, sql, "internal_notes")
}

// TestGenerateExcludeTupleNoKeywordErrors exercises the dialects with no
// EXCLUDE/EXCEPT equivalent (e.g. Postgres): since expanding `!{...}` into
// an explicit column list would require schema introspection spec.md §1
// puts out of scope, compilation fails instead of guessing.
func TestGenerateExcludeTupleNoKeywordErrors(t *testing.T) {
	opts := compiler.DefaultOptions()
	pg := dialect.PostgreSql
	opts.Target = compiler.Target{Dialect: &pg}

	_, errs := compiler.Compile("from orders\nselect !{internal_notes}\n", opts)
	require.True(t, errs.HasErrors())
}

// TestGenerateDuckDbUnionDistinct exercises §4.5's Append rule for a
// dialect whose UnionDistinct is false: DuckDB emits bare UNION instead of
// UNION ALL.
func TestGenerateDuckDbUnionDistinct(t *testing.T) {
	duck := dialect.DuckDb
	sql := compileNoFormat(t, `
from orders
append returns
`, &duck)

	upper := strings.ToUpper(sql)
	assert.Contains(t, upper, "UNION")
	assert.NotContains(t, upper, "UNION ALL")
}
