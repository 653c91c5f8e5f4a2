// Package compiler wires the four pipeline stages (pr -> pl -> rq -> sql)
// into the programmatic API spec §6.1 describes: Compile, PrqlToPl,
// PlToRq, and RqToSql. It owns no state of its own beyond the Options a
// caller passes in; every stage still does its own bookkeeping (id
// generators, scopes, dialect tables).
package compiler

import (
	"fmt"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/errors"
	"github.com/leapstack-labs/leapsql/pkg/lower"
	"github.com/leapstack-labs/leapsql/pkg/pl"
	"github.com/leapstack-labs/leapsql/pkg/pr"
	"github.com/leapstack-labs/leapsql/pkg/rq"
	"github.com/leapstack-labs/leapsql/pkg/sqlgen"
)

// Target mirrors spec §6.1's Target = Sql(Option<Dialect>).
type Target struct {
	Dialect *dialect.Name // nil means "use the query's own @target, else Generic"
}

// DisplayOptions selects how the CLI driver renders diagnostics; the
// compiler core itself never formats with color (spec §7's "driver
// formats each error").
type DisplayOptions int

// Known display modes.
const (
	DisplayPlain DisplayOptions = iota
	DisplayAnsiColor
)

// Options controls every compiler-core entry point (spec §6.1).
type Options struct {
	Format           bool
	Target           Target
	SignatureComment bool
	Color            bool
	Display          DisplayOptions
	CompilerVersion  string
}

// DefaultOptions returns spec §6.1's documented defaults.
func DefaultOptions() Options {
	return Options{
		Format:           true,
		Target:           Target{},
		SignatureComment: true,
		Color:            false,
		Display:          DisplayPlain,
		CompilerVersion:  "0.1.0",
	}
}

// Compile runs the full pipeline: parse, resolve, lower, generate SQL.
func Compile(prql string, opts Options) (string, *errors.Errors) {
	mainExpr, queryDef, err := prqlToPl(prql)
	if err != nil {
		return "", asErrors(err)
	}
	rqQuery, lowerErrs := lower.Lower(mainExpr, queryDefToRQ(queryDef))
	if lowerErrs.HasErrors() {
		return "", lowerErrs
	}
	return RqToSql(rqQuery, queryDef, opts)
}

// PrqlToPl parses and resolves prql, returning the resolved main-pipeline
// expression (spec §6.1's PL return type, represented here as *pl.Expr
// since PL is a single-struct model per SPEC_FULL.md's Open Question
// decision).
func PrqlToPl(prql string) (*pl.Expr, *errors.Errors) {
	mainExpr, _, err := prqlToPl(prql)
	if err != nil {
		return nil, asErrors(err)
	}
	return mainExpr, nil
}

// PlToRq lowers a resolved PL expression into RQ.
func PlToRq(mainExpr *pl.Expr) (*rq.Query, *errors.Errors) {
	return lower.Lower(mainExpr, rq.QueryDef{})
}

// RqToSql generates a SQL string for rqQuery under opts, resolving the
// effective dialect from opts.Target, falling back to the query's own
// `@target`/`prql target:` header, and finally to dialect.Generic (spec
// §4.5 "Dialects are selected by Target::Sql...").
func RqToSql(rqQuery *rq.Query, queryDef *pl.QueryDef, opts Options) (string, *errors.Errors) {
	name := resolveDialectName(opts.Target, rqQuery, queryDef)
	d := dialect.Get(name)
	sqlOpts := sqlgen.Options{
		Format:           opts.Format,
		SignatureComment: opts.SignatureComment,
		CompilerVersion:  versionOr(opts.CompilerVersion),
	}
	return sqlgen.Generate(rqQuery, d, sqlOpts)
}

func versionOr(v string) string {
	if v == "" {
		return "0.1.0"
	}
	return v
}

func resolveDialectName(t Target, rqQuery *rq.Query, queryDef *pl.QueryDef) dialect.Name {
	if t.Dialect != nil {
		return *t.Dialect
	}
	if rqQuery != nil && rqQuery.Def.Target != nil {
		if n, ok := dialect.ParseName(stripSQLPrefix(*rqQuery.Def.Target)); ok {
			return n
		}
	}
	if queryDef != nil && queryDef.Target != nil {
		if n, ok := dialect.ParseName(stripSQLPrefix(*queryDef.Target)); ok {
			return n
		}
	}
	return dialect.Generic
}

// stripSQLPrefix turns "sql.postgres" into "postgres" (spec §6.2's
// `target:sql.<dialect>` key format).
func stripSQLPrefix(s string) string {
	const prefix = "sql."
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

func queryDefToRQ(qd *pl.QueryDef) rq.QueryDef {
	if qd == nil {
		return rq.QueryDef{}
	}
	return rq.QueryDef{Version: qd.Version, Target: qd.Target}
}

func prqlToPl(prql string) (*pl.Expr, *pl.QueryDef, error) {
	stmts, queryDef, err := pr.Parse(prql, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("parse: %w", err)
	}
	stmts = pl.Expand(stmts)
	resolver := pl.NewResolver()
	mainExpr, err := resolver.Resolve(stmts)
	if err != nil {
		return nil, nil, err
	}
	return mainExpr, queryDef, nil
}

func asErrors(err error) *errors.Errors {
	return errors.FromErr(err)
}
