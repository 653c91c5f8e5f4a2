// Package format implements spec §6.1's pl_to_prql: rendering a resolved
// PL expression back to PRQL source text. Output is syntactically
// normalised (fully-qualified names, canonical transform call shape)
// rather than a byte-for-byte echo of the original source — spec §8.1's
// round-trip property only requires that recompiling the rendered text
// produce the same SQL, not that the text matches verbatim. Grounded on
// the teacher's pkg/format (printer.go's indent-tracking Writer and
// expr.go's per-ExprKind dispatch), rewritten to print PRQL pipelines
// instead of SQL statements.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/ident"
	"github.com/leapstack-labs/leapsql/pkg/pl"
)

// printer accumulates output the way the teacher's pkg/format/printer.go
// does: a strings.Builder plus an indent depth applied at each newline.
type printer struct {
	buf    strings.Builder
	indent int
}

func (p *printer) writeIndent() {
	p.buf.WriteString(strings.Repeat("  ", p.indent))
}

func (p *printer) line(s string) {
	p.writeIndent()
	p.buf.WriteString(s)
	p.buf.WriteByte('\n')
}

// PlToPrql renders a resolved PL main-pipeline expression back to PRQL
// source text (spec §6.1 `pl_to_prql`).
func PlToPrql(mainExpr *pl.Expr) (string, error) {
	p := &printer{}
	if err := p.printPipeline(mainExpr); err != nil {
		return "", err
	}
	return strings.TrimRight(p.buf.String(), "\n") + "\n", nil
}

// printPipeline walks the chain of TransformCall.Input links (innermost
// first) and prints one line per stage, `from` first. Note that a
// group/window/loop body's Input has already been spliced onto the outer
// chain by the resolver (spec §4.3's flattening), so nested bodies print
// their full ancestor chain too rather than just their own added stages —
// harmless for spec §8.1's round-trip property (same SQL out), just not a
// byte-faithful echo of the original nesting.
func (p *printer) printPipeline(e *pl.Expr) error {
	stages, err := flattenChain(e)
	if err != nil {
		return err
	}
	for _, stage := range stages {
		line, err := p.stageText(stage)
		if err != nil {
			return err
		}
		p.line(line)
	}
	return nil
}

// flattenChain walks TransformCall.Input backwards into a root-first
// slice, with the root `from` table as stages[0].
func flattenChain(e *pl.Expr) ([]*pl.Expr, error) {
	var stages []*pl.Expr
	cur := e
	for cur != nil {
		stages = append([]*pl.Expr{cur}, stages...)
		if cur.Kind == pl.KindTransformCall {
			cur = cur.Transform.Input
			continue
		}
		break
	}
	return stages, nil
}

func (p *printer) stageText(e *pl.Expr) (string, error) {
	if e.Kind == pl.KindIdent {
		return "from " + e.Ident.String(), nil
	}
	if e.Kind != pl.KindTransformCall {
		return p.exprText(e)
	}
	tc := e.Transform
	switch tc.Kind {
	case pl.TSelect:
		return "select " + p.tupleText(tc.Tuple), nil
	case pl.TDerive:
		return "derive " + p.tupleText(tc.Tuple), nil
	case pl.TFilter:
		text, err := p.exprText(tc.Predicate)
		if err != nil {
			return "", err
		}
		return "filter " + text, nil
	case pl.TAggregate:
		return "aggregate " + p.tupleText(tc.Tuple), nil
	case pl.TSort:
		return "sort " + p.sortText(tc.Sort), nil
	case pl.TTake:
		return "take " + p.rangeText(tc.TakeRange), nil
	case pl.TJoin:
		side := joinSideKeyword(tc.JoinSide)
		withText, err := p.exprText(tc.With)
		if err != nil {
			return "", err
		}
		filterText, err := p.exprText(tc.JoinFilter)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("join %s%s (%s)", side, withText, filterText), nil
	case pl.TGroup:
		inner, err := p.subPipelineText(tc.Input)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("group %s (\n%s)", p.tupleText(tc.Tuple), inner), nil
	case pl.TWindow:
		inner, err := p.subPipelineText(tc.Input)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("window %s(\n%s)", p.frameArgs(tc.Frame), inner), nil
	case pl.TAppend:
		text, err := p.exprText(tc.With)
		if err != nil {
			return "", err
		}
		return "append " + text, nil
	case pl.TLoop:
		inner, err := p.subPipelineText(tc.Input)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("loop (\n%s)", inner), nil
	}
	return "", fmt.Errorf("format: unknown transform kind %v", tc.Kind)
}

func (p *printer) subPipelineText(e *pl.Expr) (string, error) {
	child := &printer{indent: p.indent + 1}
	if err := child.printPipeline(e); err != nil {
		return "", err
	}
	return child.buf.String(), nil
}

func joinSideKeyword(s pl.JoinSide) string {
	switch s {
	case pl.JoinLeft:
		return "side:left "
	case pl.JoinRight:
		return "side:right "
	case pl.JoinFull:
		return "side:full "
	default:
		return ""
	}
}

func (p *printer) frameArgs(f *pl.WindowFrame) string {
	if f == nil {
		return ""
	}
	kw := "rows"
	if f.Kind == pl.FrameRange {
		kw = "range"
	}
	return fmt.Sprintf("%s:%s..%s ", kw, boundText(f.Start), boundText(f.End))
}

func boundText(b pl.FrameBound) string {
	switch b.Kind {
	case pl.BoundCurrentRow:
		return "0"
	case pl.BoundUnboundedPreceding, pl.BoundUnboundedFollowing:
		return ""
	default:
		if b.Offset != nil {
			t, _ := (&printer{}).exprText(b.Offset)
			return t
		}
		return ""
	}
}

func (p *printer) sortText(keys []pl.ColumnSort[*pl.Expr]) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		text, _ := p.exprText(k.Column)
		if k.Desc {
			text = "-" + text
		}
		parts[i] = text
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (p *printer) rangeText(r *pl.Range) string {
	if r == nil {
		return ""
	}
	var start, end string
	if r.Start != nil {
		start, _ = p.exprText(r.Start)
	}
	if r.End != nil {
		end, _ = p.exprText(r.End)
	}
	if start == "" && end != "" {
		return end
	}
	return start + ".." + end
}

func (p *printer) tupleText(e *pl.Expr) string {
	if e == nil {
		return "{}"
	}
	items := e.Tuple
	if items == nil {
		items = []*pl.Expr{e}
	}
	parts := make([]string, len(items))
	for i, item := range items {
		text, err := p.exprText(item)
		if err != nil {
			text = "?"
		}
		if item.Alias != nil {
			text = *item.Alias + " = " + text
		}
		parts[i] = text
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (p *printer) exprText(e *pl.Expr) (string, error) {
	if e == nil {
		return "", nil
	}
	switch e.Kind {
	case pl.KindIdent:
		return e.Ident.String(), nil
	case pl.KindLiteral:
		return literalText(e.Literal), nil
	case pl.KindTuple:
		return p.tupleText(e), nil
	case pl.KindArray:
		return p.arrayText(e)
	case pl.KindBinary:
		left, err := p.exprText(e.Left)
		if err != nil {
			return "", err
		}
		right, err := p.exprText(e.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", left, binOpText(e.BinOp), right), nil
	case pl.KindUnary:
		operand, err := p.exprText(e.Operand)
		if err != nil {
			return "", err
		}
		return unOpText(e.UnOp) + operand, nil
	case pl.KindFuncCall:
		return p.funcCallText(e)
	case pl.KindSString:
		return p.interpText("s", e.SString)
	case pl.KindFString:
		return p.interpText("f", e.FString)
	case pl.KindCase:
		return p.caseText(e)
	case pl.KindParam:
		return "$" + e.Param, nil
	case pl.KindInternal:
		return "internal " + e.Internal, nil
	case pl.KindRqOperator:
		return p.rqOperatorText(e)
	case pl.KindAll:
		return p.allText(e)
	case pl.KindTransformCall:
		return p.stageText(e)
	}
	return "", fmt.Errorf("format: unknown expr kind %v", e.Kind)
}

func (p *printer) funcCallText(e *pl.Expr) (string, error) {
	fc := e.FuncCall
	nameText, err := p.exprText(fc.Name)
	if err != nil {
		return "", err
	}
	parts := []string{nameText}
	for _, a := range fc.Args {
		t, err := p.exprText(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, t)
	}
	for _, k := range sortedKeys(fc.NamedArgs) {
		t, err := p.exprText(fc.NamedArgs[k])
		if err != nil {
			return "", err
		}
		parts = append(parts, k+":"+t)
	}
	return strings.Join(parts, " "), nil
}

func sortedKeys(m map[string]*pl.Expr) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func (p *printer) arrayText(e *pl.Expr) (string, error) {
	parts := make([]string, len(e.Array))
	for i, item := range e.Array {
		t, err := p.exprText(item)
		if err != nil {
			return "", err
		}
		parts[i] = t
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

func (p *printer) interpText(prefix string, items []pl.InterpItem) (string, error) {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString("\"\"\"")
	for _, item := range items {
		if item.Kind == pl.InterpString {
			b.WriteString(item.Text)
			continue
		}
		t, err := p.exprText(item.Expr)
		if err != nil {
			return "", err
		}
		b.WriteString("{" + t + "}")
	}
	b.WriteString("\"\"\"")
	return b.String(), nil
}

func (p *printer) caseText(e *pl.Expr) (string, error) {
	parts := make([]string, len(e.Case))
	for i, branch := range e.Case {
		cond, err := p.exprText(branch.Condition)
		if err != nil {
			return "", err
		}
		val, err := p.exprText(branch.Value)
		if err != nil {
			return "", err
		}
		parts[i] = cond + " => " + val
	}
	return "case [" + strings.Join(parts, ", ") + "]", nil
}

func (p *printer) rqOperatorText(e *pl.Expr) (string, error) {
	parts := make([]string, 0, len(e.RqOp.Args)+1)
	parts = append(parts, e.RqOp.Name)
	for _, a := range e.RqOp.Args {
		t, err := p.exprText(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " "), nil
}

func (p *printer) allText(e *pl.Expr) (string, error) {
	within, err := p.exprText(e.All.Within)
	if err != nil {
		return "", err
	}
	if len(e.All.Except) == 0 {
		return within + ".*", nil
	}
	return fmt.Sprintf("%s.* - {%s}", within, strings.Join(e.All.Except, ", ")), nil
}

func literalText(l ident.Literal) string {
	switch l.Kind {
	case ident.LitNull:
		return "null"
	case ident.LitInteger:
		return strconv.FormatInt(l.Int, 10)
	case ident.LitFloat:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case ident.LitBoolean:
		return strconv.FormatBool(l.Bool)
	case ident.LitString:
		return "\"" + escapeString(l.Text) + "\""
	case ident.LitDate, ident.LitTime, ident.LitTimestamp:
		return "@" + l.Text
	case ident.LitValueAndUnit:
		return strconv.FormatInt(l.UnitN, 10) + l.UnitStr
	}
	return l.Text
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}

func binOpText(op pl.BinOp) string {
	switch op {
	case pl.OpAdd:
		return "+"
	case pl.OpSub:
		return "-"
	case pl.OpMul:
		return "*"
	case pl.OpDiv:
		return "/"
	case pl.OpDivInt:
		return "//"
	case pl.OpMod:
		return "%"
	case pl.OpEq:
		return "=="
	case pl.OpNe:
		return "!="
	case pl.OpLt:
		return "<"
	case pl.OpLe:
		return "<="
	case pl.OpGt:
		return ">"
	case pl.OpGe:
		return ">="
	case pl.OpAnd:
		return "&&"
	case pl.OpOr:
		return "||"
	case pl.OpCoalesce:
		return "??"
	case pl.OpConcat:
		return "~"
	case pl.OpRegexSearch:
		return "~="
	case pl.OpIn:
		return "in"
	}
	return "?"
}

func unOpText(op pl.UnOp) string {
	switch op {
	case pl.OpNeg:
		return "-"
	case pl.OpNot:
		return "!"
	case pl.OpAddPrefix:
		return "+"
	}
	return ""
}
