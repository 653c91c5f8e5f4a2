package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/ident"
	"github.com/leapstack-labs/leapsql/pkg/rq"
)

// renderExpr renders a lowered scalar expression to SQL text against the
// column bindings accumulated so far in st (spec §4.5's expression
// translation).
func (g *generator) renderExpr(e rq.Expr, st *buildState) (string, error) {
	switch e.Kind {
	case rq.EColumnRef:
		return colRefText(st, e.ColumnRef), nil

	case rq.ELiteral:
		return g.renderLiteral(e.Literal), nil

	case rq.EParam:
		return "$" + e.Param, nil

	case rq.EArray:
		parts := make([]string, len(e.Array))
		for i, item := range e.Array {
			s, err := g.renderExpr(item, st)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, ", ") + ")", nil

	case rq.ESString:
		var b strings.Builder
		for _, part := range e.SString {
			if part.Expr != nil {
				s, err := g.renderExpr(*part.Expr, st)
				if err != nil {
					return "", err
				}
				b.WriteString(s)
				continue
			}
			b.WriteString(part.Text)
		}
		return b.String(), nil

	case rq.ECase:
		var b strings.Builder
		b.WriteString("CASE")
		for _, branch := range e.Case {
			val, err := g.renderExpr(branch.Value, st)
			if err != nil {
				return "", err
			}
			if isCaseElse(branch) {
				b.WriteString(" ELSE " + val)
				continue
			}
			cond, err := g.renderExpr(branch.Condition, st)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, " WHEN %s THEN %s", cond, val)
		}
		b.WriteString(" END")
		return b.String(), nil

	case rq.EOperator:
		return g.renderOperator(e.Operator, st)

	default:
		return "", fmt.Errorf("sqlgen: cannot render expr kind %v", e.Kind)
	}
}

// colRefText resolves cid's bound SQL text, falling back to its plain
// display name when a column is referenced before it's ever bound (should
// not happen for well-lowered RQ, but avoids an empty SELECT item).
func colRefText(st *buildState, cid rq.CId) string {
	if s, ok := st.colSQL[cid]; ok {
		return s
	}
	return st.nameFor(cid)
}

// isCaseElse reports whether branch is the static `true => value` fallback
// a Case's resolver/lowering emits for an `| default` or otherwise
// exhaustive arm, which codegen renders as a plain ELSE.
func isCaseElse(b rq.CaseBranch) bool {
	return b.Condition.Kind == rq.ELiteral &&
		b.Condition.Literal.Kind == ident.LitBoolean &&
		b.Condition.Literal.Bool
}

func (g *generator) renderLiteral(l ident.Literal) string {
	switch l.Kind {
	case ident.LitNull:
		return "NULL"
	case ident.LitInteger:
		return strconv.FormatInt(l.Int, 10)
	case ident.LitFloat:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case ident.LitBoolean:
		if l.Bool {
			return "TRUE"
		}
		return "FALSE"
	case ident.LitString:
		return "'" + strings.ReplaceAll(l.Text, "'", "''") + "'"
	case ident.LitDate, ident.LitTime, ident.LitTimestamp:
		return "'" + l.Text + "'"
	case ident.LitValueAndUnit:
		return fmt.Sprintf("%d %s", l.UnitN, l.UnitStr)
	default:
		return "NULL"
	}
}

// renderOperator renders a built-in operator call, checking the dialect's
// rejection table first (spec §4.5: "a dialect may reject an operator it
// has no native equivalent for", e.g. MsSql + std.regex_search).
func (g *generator) renderOperator(op *rq.OperatorExpr, st *buildState) (string, error) {
	if msg, bad := g.d.RejectOperator(op.Name); bad {
		return "", fmt.Errorf("sqlgen: %s: %s", op.Name, msg)
	}
	args := make([]string, len(op.Args))
	for i, a := range op.Args {
		s, err := g.renderExpr(a, st)
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	switch op.Name {
	case "std.add":
		return infix(args, "+"), nil
	case "std.sub":
		return infix(args, "-"), nil
	case "std.mul":
		return infix(args, "*"), nil
	case "std.div":
		return infix(args, "/"), nil
	case "std.div_int":
		return fmt.Sprintf("(%s / %s)", args[0], args[1]), nil
	case "std.mod":
		return infix(args, "%"), nil
	case "std.eq":
		return infix(args, "="), nil
	case "std.ne":
		return infix(args, "<>"), nil
	case "std.lt":
		return infix(args, "<"), nil
	case "std.lte":
		return infix(args, "<="), nil
	case "std.gt":
		return infix(args, ">"), nil
	case "std.gte":
		return infix(args, ">="), nil
	case "std.and":
		return infix(args, "AND"), nil
	case "std.or":
		return infix(args, "OR"), nil
	case "std.neg":
		return "-" + args[0], nil
	case "std.not":
		return "NOT " + args[0], nil
	case "std.in":
		return fmt.Sprintf("%s IN %s", args[0], args[1]), nil
	case "std.coalesce":
		return fmt.Sprintf("COALESCE(%s)", strings.Join(args, ", ")), nil
	case "std.concat":
		return strings.Join(args, " || "), nil
	case "std.regex_search":
		return fmt.Sprintf("%s REGEXP %s", args[0], args[1]), nil
	case "std.average":
		return fmt.Sprintf("AVG(%s)", args[0]), nil
	case "std.sum":
		return fmt.Sprintf("SUM(%s)", args[0]), nil
	case "std.min":
		return fmt.Sprintf("MIN(%s)", args[0]), nil
	case "std.max":
		return fmt.Sprintf("MAX(%s)", args[0]), nil
	case "std.count":
		if len(args) == 0 {
			return "COUNT(*)", nil
		}
		return fmt.Sprintf("COUNT(%s)", args[0]), nil
	case "std.count_distinct":
		return fmt.Sprintf("COUNT(DISTINCT %s)", args[0]), nil
	case "std.stddev":
		return fmt.Sprintf("STDDEV(%s)", args[0]), nil
	case "std.every":
		return fmt.Sprintf("BOOL_AND(%s)", args[0]), nil
	case "std.any":
		return fmt.Sprintf("BOOL_OR(%s)", args[0]), nil
	case "std.concat_array":
		return fmt.Sprintf("ARRAY_AGG(%s)", args[0]), nil
	case "std.lag":
		return fmt.Sprintf("LAG(%s)", strings.Join(args, ", ")), nil
	case "std.lead":
		return fmt.Sprintf("LEAD(%s)", strings.Join(args, ", ")), nil
	case "std.first":
		return fmt.Sprintf("FIRST_VALUE(%s)", args[0]), nil
	case "std.last":
		return fmt.Sprintf("LAST_VALUE(%s)", args[0]), nil
	case "std.rank":
		return "RANK()", nil
	case "std.rank_dense":
		return "DENSE_RANK()", nil
	case "std.row_number":
		return "ROW_NUMBER()", nil
	case "std.round":
		return fmt.Sprintf("ROUND(%s)", strings.Join(args, ", ")), nil
	case "std.length":
		return fmt.Sprintf("LENGTH(%s)", args[0]), nil
	case "std.upper":
		return fmt.Sprintf("UPPER(%s)", args[0]), nil
	case "std.lower":
		return fmt.Sprintf("LOWER(%s)", args[0]), nil
	case "std.as":
		return args[0], nil
	default:
		return "", fmt.Errorf("sqlgen: unknown operator %s", op.Name)
	}
}

func infix(args []string, op string) string {
	if len(args) == 1 {
		return op + args[0]
	}
	return args[0] + " " + op + " " + args[1]
}

// renderCompute renders a Compute's expression, wrapping it with an
// `OVER (...)` clause when it's a window function (spec §4.5's window
// rendering: PARTITION BY, ORDER BY, then an optional frame).
func (g *generator) renderCompute(c *rq.Compute, st *buildState) (string, error) {
	expr, err := g.renderExpr(c.Expr, st)
	if err != nil {
		return "", err
	}
	if !c.Window {
		return expr, nil
	}

	var parts []string
	if len(c.Partition) > 0 {
		cols := make([]string, len(c.Partition))
		for i, p := range c.Partition {
			cols[i] = colRefText(st, p)
		}
		parts = append(parts, "PARTITION BY "+strings.Join(cols, ", "))
	}
	if len(c.Sort) > 0 {
		cols := make([]string, len(c.Sort))
		for i, s := range c.Sort {
			t := colRefText(st, s.Column)
			if s.Desc {
				t += " DESC"
			}
			cols[i] = t
		}
		parts = append(parts, "ORDER BY "+strings.Join(cols, ", "))
	}
	if c.Frame != nil {
		frameSQL, err := g.renderFrame(c.Frame, st)
		if err != nil {
			return "", err
		}
		parts = append(parts, frameSQL)
	}
	return fmt.Sprintf("%s OVER (%s)", expr, strings.Join(parts, " ")), nil
}

func (g *generator) renderFrame(f *rq.WindowFrame, st *buildState) (string, error) {
	start, err := g.renderFrameBound(f.Start, st)
	if err != nil {
		return "", err
	}
	end, err := g.renderFrameBound(f.End, st)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ROWS BETWEEN %s AND %s", start, end), nil
}

func (g *generator) renderFrameBound(b rq.FrameBound, st *buildState) (string, error) {
	switch b.Kind {
	case rq.BoundUnboundedPreceding:
		return "UNBOUNDED PRECEDING", nil
	case rq.BoundUnboundedFollowing:
		return "UNBOUNDED FOLLOWING", nil
	case rq.BoundCurrentRow:
		return "CURRENT ROW", nil
	case rq.BoundExprPreceding:
		s, err := g.renderExpr(*b.Offset, st)
		if err != nil {
			return "", err
		}
		return s + " PRECEDING", nil
	case rq.BoundExprFollowing:
		s, err := g.renderExpr(*b.Offset, st)
		if err != nil {
			return "", err
		}
		return s + " FOLLOWING", nil
	default:
		return "", fmt.Errorf("sqlgen: unknown frame bound kind %v", b.Kind)
	}
}
