// Package sqlgen translates a lowered RQ query into a SQL string
// parameterised by a target dialect (spec §4.5). It folds the transform
// chain of every relation into as few SELECTs as the coalescing template
// allows, wrapping the SELECT built so far as a FROM subquery whenever the
// template cannot stretch further (tables referenced more than once become
// WITH CTEs), and renders scalar expressions through a per-dialect
// operator table.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/errors"
	"github.com/leapstack-labs/leapsql/pkg/rq"
)

// Options controls rendering, mirroring the relevant fields of the
// top-level compiler's Options (spec §6.1): Format/SignatureComment/
// Version are sqlgen's concern, Color/Display belong to the CLI's
// diagnostic renderer instead.
type Options struct {
	Format            bool
	SignatureComment  bool
	CompilerVersion   string
}

// DefaultOptions mirrors spec §6.1's Options defaults.
func DefaultOptions() Options {
	return Options{Format: true, SignatureComment: true, CompilerVersion: "0.1.0"}
}

// Generate renders query against d per opts.
func Generate(query *rq.Query, d *dialect.Dialect, opts Options) (string, *errors.Errors) {
	g := newGenerator(query, d)
	sql, err := g.run()
	if err != nil {
		return "", errors.FromErr(err)
	}
	if opts.Format {
		sql = Format(sql)
	} else {
		sql = collapseWhitespace(sql)
	}
	if opts.SignatureComment {
		sql = fmt.Sprintf("%s\n\n-- Generated by PRQL compiler version:%s", sql, opts.CompilerVersion)
	}
	return sql, nil
}

type generator struct {
	query *rq.Query
	d     *dialect.Dialect

	tableByID  map[rq.TId]*rq.TableDecl
	cteName    map[rq.TId]string
	refCount   map[rq.TId]int
	emitted    map[rq.TId]bool
	ctes       []string // rendered `name AS (...)` clauses, in dependency order
	anonSeq    int
}

func newGenerator(q *rq.Query, d *dialect.Dialect) *generator {
	g := &generator{
		query:     q,
		d:         d,
		tableByID: map[rq.TId]*rq.TableDecl{},
		cteName:   map[rq.TId]string{},
		refCount:  map[rq.TId]int{},
		emitted:   map[rq.TId]bool{},
	}
	for i := range q.Tables {
		t := &q.Tables[i]
		g.tableByID[t.ID] = t
	}
	g.countReferences(&q.Relation)
	for _, t := range q.Tables {
		if t.Relation != nil {
			g.countReferences(t.Relation)
		}
	}
	return g
}

// countReferences walks every TFrom/TJoin/TAppend in rel, tallying how
// many times each TableDecl-backed TId is used — spec §4.4 step 2's
// "table inlining" reference-count rule.
func (g *generator) countReferences(rel *rq.Relation) {
	for _, tr := range rel.Transforms {
		switch tr.Kind {
		case rq.TFrom:
			g.refCount[tr.From]++
		case rq.TJoin:
			g.refCount[tr.Join.With]++
		case rq.TAppend:
			g.refCount[tr.Append]++
		case rq.TLoop:
			if tr.Loop != nil {
				g.countReferences(tr.Loop)
			}
		}
	}
}

func (g *generator) run() (string, error) {
	// Emit every CTE-backed TableDecl referenced more than once (or the
	// nested relation simply carries further CTEs of its own) before the
	// final SELECT, in declaration order so dependencies precede
	// dependents — table decls in an RQ Query are already topologically
	// ordered by construction (pkg/lower never forward-references).
	for i := range g.query.Tables {
		t := &g.query.Tables[i]
		if t.Kind != rq.TableFromRelation {
			continue
		}
		if g.refCount[t.ID] <= 1 {
			continue // single-use CTEs are inlined at their use site instead
		}
		if err := g.emitCTE(t); err != nil {
			return "", err
		}
	}

	sel, err := g.buildRelation(&g.query.Relation, nil)
	if err != nil {
		return "", err
	}
	body := sel.render(g, true)

	if len(g.ctes) == 0 {
		return body, nil
	}
	return fmt.Sprintf("WITH %s\n%s", strings.Join(g.ctes, ",\n"), body), nil
}

func (g *generator) emitCTE(t *rq.TableDecl) error {
	if g.emitted[t.ID] {
		return nil
	}
	g.emitted[t.ID] = true
	name := g.tableSQLName(t)
	sel, err := g.buildRelation(t.Relation, nil)
	if err != nil {
		return err
	}
	g.ctes = append(g.ctes, fmt.Sprintf("%s AS (\n%s\n)", name, indent(sel.render(g, true), 1)))
	return nil
}

// resolveSource returns the FROM-clause SQL text for tid: either the
// physical extern table name, or a reference to its CTE/inline subquery.
func (g *generator) resolveSource(tid rq.TId) (string, error) {
	t, ok := g.tableByID[tid]
	if !ok {
		return "", fmt.Errorf("sqlgen: unknown table id %d", tid)
	}
	switch t.Kind {
	case rq.TableFromExternal:
		return t.External.String(), nil
	case rq.TableFromRelation:
		if g.refCount[tid] > 1 {
			if err := g.emitCTE(t); err != nil {
				return "", err
			}
			return g.tableSQLName(t), nil
		}
		sel, err := g.buildRelation(t.Relation, nil)
		if err != nil {
			return "", err
		}
		return "(\n" + indent(sel.render(g, true), 1) + "\n)", nil
	default:
		return "", fmt.Errorf("sqlgen: unknown table decl kind")
	}
}

func (g *generator) tableSQLName(t *rq.TableDecl) string {
	if name, ok := g.cteName[t.ID]; ok {
		return name
	}
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("table_%d", g.anonSeq)
		g.anonSeq++
	}
	g.cteName[t.ID] = name
	return name
}

func indent(s string, levels int) string {
	prefix := strings.Repeat("  ", levels)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l == "" {
			continue
		}
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
