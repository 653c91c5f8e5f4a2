package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
)

// TestCompileTrivialProjection exercises spec §8.3 scenario S1.
func TestCompileTrivialProjection(t *testing.T) {
	opts := DefaultOptions()
	opts.SignatureComment = false
	opts.Format = false

	sql, errs := Compile("from employees\nselect {name, salary}\n", opts)
	require.False(t, errs.HasErrors(), "%v", errs)
	assert.Contains(t, strings.ToUpper(sql), "SELECT")
	assert.Contains(t, sql, "name")
	assert.Contains(t, sql, "salary")
	assert.Contains(t, sql, "employees")
}

// TestCompileUnknownNameErrors exercises spec §8.3 scenario S5. A bare
// reference against an open (schema-unknown) extern table always
// resolves, so the error case needs a prior `select` to narrow the
// relation's schema first — only then does a second reference to an
// undeclared name hit the real "unknown name" path.
func TestCompileUnknownNameErrors(t *testing.T) {
	opts := DefaultOptions()
	_, errs := Compile("from employees\nselect {name}\nselect missing_col\n", opts)
	require.True(t, errs.HasErrors())
}

// TestCompileDialectSwitch exercises spec §8.3 scenario S6: an explicit
// Options.Target of MsSql on a query without a header renders `take` as
// TOP.
func TestCompileDialectSwitch(t *testing.T) {
	opts := DefaultOptions()
	opts.SignatureComment = false
	mssql := dialect.MsSql
	opts.Target = Target{Dialect: &mssql}

	sql, errs := Compile("from employees\ntake 5\n", opts)
	require.False(t, errs.HasErrors(), "%v", errs)
	assert.Contains(t, strings.ToUpper(sql), "TOP")
}

// TestCompileHeaderTarget exercises spec §6.2's `prql target:sql.<dialect>`
// header overriding the default Generic dialect when Options.Target is
// unset.
func TestCompileHeaderTarget(t *testing.T) {
	opts := DefaultOptions()
	opts.SignatureComment = false

	sql, errs := Compile("prql target:sql.mssql\nfrom employees\ntake 5\n", opts)
	require.False(t, errs.HasErrors(), "%v", errs)
	assert.Contains(t, strings.ToUpper(sql), "TOP")
}
