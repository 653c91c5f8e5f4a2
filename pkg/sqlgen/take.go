package sqlgen

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/rq"
)

// render assembles sb into one SQL statement. topLevel is not consulted: a
// nested subquery never carries a signature comment or formatting pass of
// its own — those are applied once by Generate to the whole statement.
func (sb *selectBuilder) render(g *generator, topLevel bool) string {
	_ = topLevel
	if sb.raw != "" {
		return sb.raw
	}

	limit, offset := rangeToLimitOffset(sb.take)

	// MsSql's TOP has no OFFSET equivalent: a Take with an explicit lower
	// bound needs the ROW_NUMBER() windowing fallback spec §4.5 calls for.
	if offset != nil && limit != nil && !g.d.SupportsOffset {
		return sb.renderOffsetFallback(g, *offset, *limit)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if g.d.RowLimit == dialect.StyleTop && limit != nil {
		fmt.Fprintf(&b, "TOP (%d) ", *limit)
	}
	b.WriteString(strings.Join(sb.projectionItems(), ", "))
	b.WriteString("\nFROM ")
	b.WriteString(sb.fromSQL)
	for _, j := range sb.joins {
		b.WriteString("\n")
		b.WriteString(j)
	}
	if len(sb.where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(sb.where, " AND "))
	}
	if len(sb.groupBy) > 0 {
		b.WriteString("\nGROUP BY ")
		b.WriteString(strings.Join(sb.groupBy, ", "))
	}
	if len(sb.having) > 0 {
		b.WriteString("\nHAVING ")
		b.WriteString(strings.Join(sb.having, " AND "))
	}
	if len(sb.orderBy) > 0 {
		b.WriteString("\nORDER BY ")
		b.WriteString(strings.Join(sb.orderBy, ", "))
	}
	if g.d.RowLimit == dialect.StyleLimit && limit != nil {
		fmt.Fprintf(&b, "\nLIMIT %d", *limit)
		if offset != nil && *offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", *offset)
		}
	}
	return b.String()
}

// projectionItems renders sb's SELECT-list, combining any `alias.*`
// wildcards (an Open relation with no narrowed columns) with explicit
// projected expressions.
func (sb *selectBuilder) projectionItems() []string {
	var items []string
	items = append(items, sb.wildcard...)
	for _, it := range sb.selectItems {
		if it.alias != "" && it.alias != it.expr {
			items = append(items, it.expr+" AS "+it.alias)
		} else {
			items = append(items, it.expr)
		}
	}
	if len(items) == 0 {
		items = []string{"*"}
	}
	return items
}

// renderOffsetFallback renders sb's clauses unchanged except for the Take,
// wrapped in a ROW_NUMBER() subquery so a dialect without OFFSET support
// can still skip rows (spec §4.5's MsSql Take rewrite: "no partition, so
// ROW_NUMBER() orders by the relation's own ORDER BY, or an arbitrary
// constant when there isn't one").
func (sb *selectBuilder) renderOffsetFallback(g *generator, offset, limit int64) string {
	rnOrder := "(SELECT NULL)"
	if len(sb.orderBy) > 0 {
		rnOrder = strings.Join(sb.orderBy, ", ")
	}
	items := append(sb.projectionItems(), fmt.Sprintf("ROW_NUMBER() OVER (ORDER BY %s) AS __rn", rnOrder))

	var ib strings.Builder
	ib.WriteString("SELECT ")
	ib.WriteString(strings.Join(items, ", "))
	ib.WriteString("\nFROM ")
	ib.WriteString(sb.fromSQL)
	for _, j := range sb.joins {
		ib.WriteString("\n")
		ib.WriteString(j)
	}
	if len(sb.where) > 0 {
		ib.WriteString("\nWHERE ")
		ib.WriteString(strings.Join(sb.where, " AND "))
	}
	if len(sb.groupBy) > 0 {
		ib.WriteString("\nGROUP BY ")
		ib.WriteString(strings.Join(sb.groupBy, ", "))
	}
	if len(sb.having) > 0 {
		ib.WriteString("\nHAVING ")
		ib.WriteString(strings.Join(sb.having, " AND "))
	}

	start := offset + 1
	end := offset + limit
	return fmt.Sprintf(
		"SELECT * FROM (\n%s\n) AS take_paged\nWHERE __rn BETWEEN %d AND %d",
		indent(ib.String(), 1), start, end,
	)
}

// rangeToLimitOffset converts RQ's 1-indexed, optionally-bounded Range
// into a SQL LIMIT/OFFSET pair. `take 10` is Range{End: 10} (offset nil,
// limit 10); `take 5..10` is Range{Start: 5, End: 10} (offset 4, limit 6).
func rangeToLimitOffset(r *rq.Range) (limit, offset *int64) {
	if r == nil {
		return nil, nil
	}
	if r.Start != nil {
		off := *r.Start - 1
		offset = &off
		if r.End != nil {
			n := *r.End - *r.Start + 1
			limit = &n
		}
		return
	}
	if r.End != nil {
		limit = r.End
	}
	return
}

// buildAppend renders sb (the already-finalized left side) combined with
// the Append transform's table via the dialect's AppendKeyword: bare UNION
// for the dialects whose UnionDistinct is false, UNION ALL for the rest.
func (g *generator) buildAppend(rel *rq.Relation, sb *selectBuilder, tr rq.Transform) (*selectBuilder, error) {
	leftSQL := sb.render(g, false)
	t, ok := g.tableByID[tr.Append]
	if !ok {
		return nil, fmt.Errorf("sqlgen: unknown append table id %d", tr.Append)
	}

	var rightSQL string
	switch t.Kind {
	case rq.TableFromExternal:
		rightSQL = fmt.Sprintf("SELECT * FROM %s", t.External.String())
	case rq.TableFromRelation:
		rsel, err := g.buildRelation(t.Relation, nil)
		if err != nil {
			return nil, err
		}
		alignPositional(rsel, rel.Columns)
		rightSQL = rsel.render(g, false)
	default:
		return nil, fmt.Errorf("sqlgen: unknown table decl kind")
	}

	raw := leftSQL + "\n" + g.d.AppendKeyword() + "\n" + rightSQL
	return &selectBuilder{raw: raw}, nil
}

// buildLoop renders sb as the anchor member of a `WITH RECURSIVE` CTE
// whose recursive member is the Loop transform's body relation (spec
// §4.5's Loop rule; every dialect here accepts ANSI recursive CTE syntax).
func (g *generator) buildLoop(sb *selectBuilder, tr rq.Transform) (*selectBuilder, error) {
	if tr.Loop == nil {
		return nil, fmt.Errorf("sqlgen: loop transform missing body relation")
	}
	anchorSQL := sb.render(g, false)
	name := fmt.Sprintf("loop_%d", g.anonSeq)
	g.anonSeq++

	bodySel, err := g.buildRelation(tr.Loop, nil)
	if err != nil {
		return nil, err
	}
	bodySQL := bodySel.render(g, false)

	raw := fmt.Sprintf(
		"WITH RECURSIVE %s AS (\n%s\n  UNION ALL\n%s\n)\nSELECT * FROM %s",
		name, indent(anchorSQL, 1), indent(bodySQL, 1), name,
	)
	return &selectBuilder{raw: raw}, nil
}
