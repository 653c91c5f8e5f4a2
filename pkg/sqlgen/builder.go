package sqlgen

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/rq"
)

// phase tracks where a coalesced SELECT is in spec §4.5's template:
// `From → Join* → Filter* → Aggregate? → Filter* (HAVING) → Sort? → Take?`.
// A transform that would move phase backwards forces a subquery flush.
type phase int

const (
	phaseFrom phase = iota
	phaseJoin
	phaseWhere
	phaseAggregate
	phaseHaving
	phaseSort
	phaseTake
)

// selectBuilder accumulates one coalesced SELECT's clauses as it folds a
// run of Transforms (spec §4.5's "pipeline coalescing").
type selectBuilder struct {
	fromSQL  string
	fromTID  rq.TId // set when FROM is a direct table reference, for alias bookkeeping
	hasFromTID bool
	joins    []string

	where  []string
	having []string

	groupBy     []string
	isAggregate bool

	orderBy []string
	take    *rq.Range

	// selectItems is the final projection: rendered expression plus its
	// output alias, built once the segment is finalized.
	selectItems []selectItem
	wildcard    []string // table aliases to emit as `alias.*` for an open relation

	// cidAlias records, for every projected column id, the output alias it
	// was given — consulted when a later segment needs to reference this
	// one's results across a subquery-flush boundary.
	cidAlias map[rq.CId]string

	// raw, when non-empty, is a fully rendered statement (an Append's
	// UNION or a Loop's recursive CTE) that bypasses every other field.
	raw string
}

type selectItem struct {
	expr  string
	alias string
}

// buildState threads column bindings across an entire relation's
// transform chain, including across subquery-flush boundaries.
type buildState struct {
	colSQL      map[rq.CId]string // current substitution text for a column id
	colName     map[rq.CId]string // display/output name, from RelationColumn or a synthesized fallback
	computedIDs map[rq.CId]bool   // set for ids produced by a Compute rather than a bare table column
	colOrder    []rq.CId          // cids in the order colSQL first bound them, for deterministic flush projections
	tableAlias  map[rq.TId]string // alias assigned to each table source bound in the current segment
	aliasSeq    int
}

func (s *buildState) nameFor(cid rq.CId) string {
	if n, ok := s.colName[cid]; ok && n != "" {
		return n
	}
	return fmt.Sprintf("col_%d", cid)
}

// bind records sql as cid's current substitution text, tracking first-seen
// order so a subquery flush can re-project every bound column
// deterministically.
func (s *buildState) bind(cid rq.CId, sql string) {
	if _, exists := s.colSQL[cid]; !exists {
		s.colOrder = append(s.colOrder, cid)
	}
	s.colSQL[cid] = sql
}

func (g *generator) buildRelation(rel *rq.Relation, _ *string) (*selectBuilder, error) {
	st := &buildState{colSQL: map[rq.CId]string{}, colName: map[rq.CId]string{}, computedIDs: map[rq.CId]bool{}, tableAlias: map[rq.TId]string{}}
	for _, c := range rel.Columns {
		if c.Name != "" {
			st.colName[c.ID] = c.Name
		}
	}
	return g.buildSegment(rel, rel.Transforms, st)
}

// buildSegment folds as many leading transforms as fit the coalescing
// template into one selectBuilder, then — if transforms remain — wraps
// that builder as a subquery FROM source and recurses.
func (g *generator) buildSegment(rel *rq.Relation, transforms []rq.Transform, st *buildState) (*selectBuilder, error) {
	sb := &selectBuilder{}
	ph := phaseFrom
	if st.tableAlias == nil {
		st.tableAlias = map[rq.TId]string{}
	}
	aliasSeq := 0
	nextAlias := func(hint string) string {
		aliasSeq++
		if hint == "" {
			hint = fmt.Sprintf("t%d", aliasSeq)
		}
		return hint
	}

	var openTables []rq.TId

	i := 0
	for ; i < len(transforms); i++ {
		tr := transforms[i]
		switch tr.Kind {
		case rq.TFrom:
			if ph != phaseFrom || sb.fromSQL != "" {
				goto flush
			}
			src, err := g.resolveSource(tr.From)
			if err != nil {
				return nil, err
			}
			alias := nextAlias(g.baseAliasHint(tr.From))
			st.tableAlias[tr.From] = alias
			sb.fromSQL = fmt.Sprintf("%s AS %s", src, alias)
			sb.fromTID = tr.From
			sb.hasFromTID = true
			if g.tableByID[tr.From].Kind == rq.TableFromExternal || g.tableByID[tr.From].Relation == nil {
				// Schema may still be fully known if Columns were vivified;
				// open-ness ultimately comes from rel.Open below.
			}
			openTables = append(openTables, tr.From)
			ph = phaseJoin
			g.bindTableColumns(tr.From, alias, st)

		case rq.TJoin:
			if ph > phaseJoin {
				goto flush
			}
			src, err := g.resolveSource(tr.Join.With)
			if err != nil {
				return nil, err
			}
			alias := nextAlias(g.baseAliasHint(tr.Join.With))
			st.tableAlias[tr.Join.With] = alias
			g.bindTableColumns(tr.Join.With, alias, st)
			openTables = append(openTables, tr.Join.With)
			cond, err := g.renderExpr(tr.Join.Filter, st)
			if err != nil {
				return nil, err
			}
			sb.joins = append(sb.joins, fmt.Sprintf("%s JOIN %s AS %s ON %s", joinKeyword(tr.Join.Side), src, alias, cond))
			ph = phaseJoin

		case rq.TCompute:
			if ph > phaseHaving {
				goto flush
			}
			exprSQL, err := g.renderCompute(tr.Compute, st)
			if err != nil {
				return nil, err
			}
			st.bind(tr.Compute.ID, exprSQL)
			st.computedIDs[tr.Compute.ID] = true
			if tr.Compute.IsAggregation {
				sb.isAggregate = true
			}

		case rq.TFilter:
			cond, err := g.renderExpr(tr.Filter, st)
			if err != nil {
				return nil, err
			}
			if ph < phaseAggregate && !sb.isAggregate {
				if ph > phaseWhere {
					goto flush
				}
				sb.where = append(sb.where, cond)
				ph = phaseWhere
			} else {
				if ph > phaseHaving {
					goto flush
				}
				sb.having = append(sb.having, cond)
				ph = phaseHaving
			}

		case rq.TAggregate:
			if ph > phaseWhere {
				goto flush
			}
			for _, cid := range tr.Aggregate.Partition {
				text, ok := st.colSQL[cid]
				if !ok {
					text = st.nameFor(cid)
				}
				sb.groupBy = append(sb.groupBy, text)
			}
			sb.isAggregate = true
			ph = phaseAggregate

		case rq.TSort:
			if ph > phaseSort {
				goto flush
			}
			sb.orderBy = nil
			for _, k := range tr.Sort {
				text, ok := st.colSQL[k.Column]
				if !ok {
					text = st.nameFor(k.Column)
				}
				if k.Desc {
					text += " DESC"
				}
				sb.orderBy = append(sb.orderBy, text)
			}
			ph = phaseSort

		case rq.TTake:
			if ph > phaseTake {
				goto flush
			}
			sb.take = tr.Take
			ph = phaseTake

		case rq.TSelect:
			// Narrows projection but doesn't advance the clause phase;
			// handled by finalize() consulting the relation's own output
			// Columns instead of tr.Select directly, since every kind
			// already narrows rel.Columns identically by construction.

		case rq.TAppend:
			if err := g.finalize(rel, sb, st, openTables, true); err != nil {
				return nil, err
			}
			return g.buildAppend(rel, sb, tr)

		case rq.TLoop:
			if err := g.finalize(rel, sb, st, openTables, true); err != nil {
				return nil, err
			}
			return g.buildLoop(sb, tr)

		default:
			return nil, fmt.Errorf("sqlgen: unhandled transform kind %v", tr.Kind)
		}
	}

	if err := g.finalize(rel, sb, st, openTables, true); err != nil {
		return nil, err
	}
	return sb, nil

flush:
	if err := g.finalize(rel, sb, st, openTables, false); err != nil {
		return nil, err
	}
	alias := fmt.Sprintf("sub_%d", g.anonSeq)
	g.anonSeq++
	rendered := sb.render(g, false)
	wrapped := "(\n" + indent(rendered, 1) + "\n) AS " + alias

	// Rebind every column this segment exposed to its new, subquery-alias
	// qualified form for the continuation.
	contState := &buildState{colSQL: map[rq.CId]string{}, colName: st.colName, computedIDs: st.computedIDs}
	for cid, outAlias := range sb.cidAlias {
		contState.colSQL[cid] = alias + "." + outAlias
	}
	sub, err := g.buildSegment(rel, transforms[i:], contState)
	if err != nil {
		return nil, err
	}
	sub.fromSQL = wrapped
	sub.hasFromTID = false
	return sub, nil
}

func joinKeyword(side rq.JoinSide) string {
	switch side {
	case rq.JoinLeft:
		return "LEFT"
	case rq.JoinRight:
		return "RIGHT"
	case rq.JoinFull:
		return "FULL"
	default:
		return "INNER"
	}
}

func (g *generator) baseAliasHint(tid rq.TId) string {
	t, ok := g.tableByID[tid]
	if !ok || t.Name == "" {
		return ""
	}
	return sanitizeAlias(t.Name)
}

func sanitizeAlias(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// bindTableColumns registers colSQL entries for every column the table
// decl has vivified so far (lowered lazily in pkg/lower as columns are
// referenced). Further references found later reuse the same mapping
// since pkg/lower assigns one CId per (table, name) pair.
func (g *generator) bindTableColumns(tid rq.TId, alias string, st *buildState) {
	t, ok := g.tableByID[tid]
	if !ok {
		return
	}
	for _, c := range t.Columns {
		if c.Kind == rq.ColWildcard {
			continue
		}
		st.bind(c.ID, alias+"."+g.d.QuoteIdent(c.Name))
		if _, ok := st.colName[c.ID]; !ok {
			st.colName[c.ID] = c.Name
		}
	}
}

// finalize fills in sb's SELECT list from the columns folded into this
// segment. final selects between projecting the relation's declared output
// columns (the true end of a relation, or immediately before an
// Append/Loop boundary, since neither transform changes the column set)
// and projecting every column bound during this segment verbatim (a
// mid-pipeline subquery flush, whose continuation may still reference any
// of them) — spec §4.5's "coalesce, then wrap as a subquery when the
// template can't stretch any further".
func (g *generator) finalize(rel *rq.Relation, sb *selectBuilder, st *buildState, openTables []rq.TId, final bool) error {
	sb.cidAlias = map[rq.CId]string{}

	if final {
		if len(rel.Columns) == 0 && rel.Open {
			// An open relation that carries no column entries at all (a
			// bare `from t` already carries a wildcard entry, so it does
			// not reach here): fall back to the build-time open-table list.
			for _, tid := range openTables {
				if alias, ok := st.tableAlias[tid]; ok {
					sb.wildcard = append(sb.wildcard, alias+".*")
				}
			}
			return nil
		}
		for _, c := range rel.Columns {
			if c.Kind == rq.ColWildcard {
				wc, err := g.renderWildcard(c, st)
				if err != nil {
					return err
				}
				sb.wildcard = append(sb.wildcard, wc)
				continue
			}
			text, ok := st.colSQL[c.ID]
			if !ok {
				text = st.nameFor(c.ID)
			}
			alias := c.Name
			if alias == "" {
				alias = st.nameFor(c.ID)
			}
			if text == alias {
				sb.selectItems = append(sb.selectItems, selectItem{expr: text})
			} else {
				sb.selectItems = append(sb.selectItems, selectItem{expr: text, alias: alias})
			}
			sb.cidAlias[c.ID] = alias
		}
		return nil
	}

	// A mid-pipeline flush: re-expose every column bound in this segment so
	// the continuation, rebuilt against this segment as a subquery, can
	// still reach any of them by alias.
	for _, cid := range st.colOrder {
		text, ok := st.colSQL[cid]
		if !ok {
			continue
		}
		alias := st.nameFor(cid)
		sb.selectItems = append(sb.selectItems, selectItem{expr: text, alias: alias})
		sb.cidAlias[cid] = alias
	}
	return nil
}

// renderWildcard renders a ColWildcard RelationColumn: a bare `alias.*`,
// or, when it carries an Except list, `alias.* EXCLUDE (...)` /
// `alias.* EXCEPT (...)` per the target dialect's ExcludeKeyword (spec
// §4.5). Dialects with no such keyword have no way to express the
// exclusion without enumerating the table's full column set, which would
// require schema introspection spec.md §1 explicitly puts out of scope.
func (g *generator) renderWildcard(c rq.RelationColumn, st *buildState) (string, error) {
	alias, ok := st.tableAlias[c.Table]
	if !ok {
		return "", fmt.Errorf("sqlgen: wildcard refers to a table not bound in this segment")
	}
	if len(c.Except) == 0 {
		return alias + ".*", nil
	}
	if g.d.ExcludeKw == dialect.ExcludeNone {
		return "", fmt.Errorf("sqlgen: dialect %s has no EXCLUDE/EXCEPT equivalent for `!{...}`, and enumerating %s's columns requires schema introspection", g.d.Name, alias)
	}
	names := make([]string, len(c.Except))
	for i, cid := range c.Except {
		name := st.colName[cid]
		if name == "" {
			name = st.nameFor(cid)
		}
		names[i] = g.d.QuoteIdent(name)
	}
	return fmt.Sprintf("%s.* %s (%s)", alias, g.d.ExcludeKw, strings.Join(names, ", ")), nil
}
