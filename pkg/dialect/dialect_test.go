package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		in   string
		want Name
		ok   bool
	}{
		{"sql.postgres", Generic, false}, // ParseName takes the bare name; stripping "sql." is the caller's job
		{"postgres", PostgreSql, true},
		{"mssql", MsSql, true},
		{"sqlserver", MsSql, true},
		{"", Generic, true},
		{"nonsense", Generic, false},
	}
	for _, tt := range tests {
		got, ok := ParseName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestQuoteIdent(t *testing.T) {
	bq := Get(BigQuery)
	assert.Equal(t, "`col`", bq.QuoteIdent("col"))

	pg := Get(PostgreSql)
	assert.Equal(t, `"we""ird"`, pg.QuoteIdent(`we"ird`))
}

func TestAppendKeyword(t *testing.T) {
	assert.Equal(t, "UNION ALL", Get(PostgreSql).AppendKeyword())
	assert.Equal(t, "UNION", Get(DuckDb).AppendKeyword())
	assert.Equal(t, "UNION", Get(Snowflake).AppendKeyword())
}

func TestRejectOperator(t *testing.T) {
	_, ok := Get(MsSql).RejectOperator("std.regex_search")
	assert.True(t, ok)
	_, ok = Get(PostgreSql).RejectOperator("std.regex_search")
	assert.False(t, ok)
}

func TestRowLimitStyles(t *testing.T) {
	assert.Equal(t, StyleTop, Get(MsSql).RowLimit)
	assert.False(t, Get(MsSql).SupportsOffset)
	assert.Equal(t, StyleLimit, Get(PostgreSql).RowLimit)
	assert.True(t, Get(PostgreSql).SupportsOffset)
}

func TestAllDialectsRegistered(t *testing.T) {
	all := All()
	assert.Len(t, all, 10)
}
