package pl

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapsql/pkg/ident"
)

// transformNames maps the source-level keyword to its TransformKind (spec
// §3.3's eleven builtin transforms).
var transformNames = map[string]TransformKind{
	"derive":    TDerive,
	"select":    TSelect,
	"filter":    TFilter,
	"aggregate": TAggregate,
	"sort":      TSort,
	"take":      TTake,
	"join":      TJoin,
	"group":     TGroup,
	"window":    TWindow,
	"append":    TAppend,
	"loop":      TLoop,
}

// scalarBuiltins maps a std scalar/aggregate function name to the RQ
// operator name codegen understands (spec §3.4 std module, §4.5 codegen).
var scalarBuiltins = map[string]string{
	"average":  "std.average",
	"sum":      "std.sum",
	"min":      "std.min",
	"max":      "std.max",
	"count":    "std.count",
	"count_distinct": "std.count_distinct",
	"stddev":   "std.stddev",
	"every":    "std.every",
	"any":      "std.any",
	"concat_array": "std.concat_array",
	"lag":      "std.lag",
	"lead":     "std.lead",
	"first":    "std.first",
	"last":     "std.last",
	"rank":     "std.rank",
	"rank_dense": "std.rank_dense",
	"row_number": "std.row_number",
	"round":    "std.round",
	"as":       "std.as",
	"length":   "std.length",
	"upper":    "std.upper",
	"lower":    "std.lower",
}

// Resolver carries the cross-cutting state of spec §4.2: the declaration
// graph under construction, the ambient name scope, and id/error
// accumulation.
type Resolver struct {
	Root    *RootModule
	scope   *Scope
	nextID  uint32
	errs    []error
	spanMap map[uint32]ident.Span

	tables map[string]*Expr // let-bound relations, keyed by name
}

// NewResolver builds a Resolver with the std/default_db modules seeded.
func NewResolver() *Resolver {
	root := &Module{Names: map[string]*Decl{}}
	std := NewModule()
	for name := range transformNames {
		std.Set(name, &Decl{Kind: DeclExpr})
	}
	for name := range scalarBuiltins {
		std.Set(name, &Decl{Kind: DeclExpr})
	}
	root.Set(ModStd, &Decl{Kind: DeclModule, Module: std})
	root.Set(ModDefaultDB, &Decl{Kind: DeclModule, Module: NewModule()})

	return &Resolver{
		Root:    &RootModule{Root: root, SpanMap: map[uint32]ident.Span{}},
		scope:   NewScope(),
		spanMap: map[uint32]ident.Span{},
		tables:  map[string]*Expr{},
	}
}

func (r *Resolver) nextTargetID() uint32 {
	r.nextID++
	return r.nextID
}

// Resolve walks a file's top-level statements and returns the resolved
// main-pipeline expression (the query to lower); let-bound relations are
// also recorded in r.Root's default_db module (spec §4.2: "resolve
// declarations, then fold expressions").
func (r *Resolver) Resolve(stmts []*Stmt) (*Expr, error) {
	var mainExpr *Expr
	for _, s := range stmts {
		if err := r.resolveStmt(s, &mainExpr); err != nil {
			return nil, err
		}
	}
	if mainExpr == nil {
		return nil, fmt.Errorf("pl: no main pipeline in source")
	}
	return mainExpr, nil
}

func (r *Resolver) resolveStmt(s *Stmt, mainExpr **Expr) error {
	switch s.Kind {
	case KindVarDef:
		vd := s.VarDef
		resolved, err := r.resolveExpr(vd.Value)
		if err != nil {
			return err
		}
		switch vd.Kind {
		case VarMain, VarInto:
			*mainExpr = resolved
			if vd.Name != nil {
				r.tables[*vd.Name] = resolved
			}
		case VarLet:
			if vd.Name != nil {
				r.tables[*vd.Name] = resolved
				defaultDB, _ := r.Root.Root.Get(ModDefaultDB)
				defaultDB.Module.Set(*vd.Name, &Decl{Kind: DeclTableDecl, TableDecl: &TableDeclInfo{Expr: resolved}})
			}
		}
		return nil
	case KindTypeDef:
		return nil // type aliases don't affect the S1-S6 class of queries lowering needs
	case KindModuleDef:
		for _, inner := range s.ModuleDef.Stmts {
			if err := r.resolveStmt(inner, mainExpr); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// resolveExpr is the postorder fold of spec §4.2 step 4: children first,
// then the node itself (so a FuncCall's arguments are already resolved
// relations/scalars by the time the call itself is interpreted).
func (r *Resolver) resolveExpr(e *Expr) (*Expr, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case KindIdent:
		return r.resolveIdent(e)
	case KindLiteral, KindParam:
		return e, nil
	case KindPipeline:
		resolved, err := r.resolvePipeline(e)
		if err != nil || resolved == nil || e.Alias == nil {
			return resolved, err
		}
		// Keep a tuple item's `name = (pipeline)` alias on the folded result.
		named := *resolved
		named.Alias = e.Alias
		return &named, nil
	case KindTuple:
		for i, item := range e.Tuple {
			resolved, err := r.resolveExpr(item)
			if err != nil {
				return nil, err
			}
			e.Tuple[i] = resolved
		}
		return e, nil
	case KindArray:
		for i, item := range e.Array {
			resolved, err := r.resolveExpr(item)
			if err != nil {
				return nil, err
			}
			e.Array[i] = resolved
		}
		return e, nil
	case KindRange:
		var err error
		if e.Range.Start != nil {
			if e.Range.Start, err = r.resolveExpr(e.Range.Start); err != nil {
				return nil, err
			}
		}
		if e.Range.End != nil {
			if e.Range.End, err = r.resolveExpr(e.Range.End); err != nil {
				return nil, err
			}
		}
		return e, nil
	case KindBinary:
		var err error
		if e.Left != nil {
			if e.Left, err = r.resolveExpr(e.Left); err != nil {
				return nil, err
			}
		}
		if e.Right, err = r.resolveExpr(e.Right); err != nil {
			return nil, err
		}
		return StaticEvalBinary(e), nil
	case KindUnary:
		operand, err := r.resolveExpr(e.Operand)
		if err != nil {
			return nil, err
		}
		e.Operand = operand
		return StaticEvalUnary(e), nil
	case KindFuncCall:
		return r.resolveFuncCall(e)
	case KindAll:
		return r.resolveAll(e)
	case KindCase:
		for i := range e.Case {
			cond, err := r.resolveExpr(e.Case[i].Condition)
			if err != nil {
				return nil, err
			}
			val, err := r.resolveExpr(e.Case[i].Value)
			if err != nil {
				return nil, err
			}
			e.Case[i].Condition, e.Case[i].Value = cond, val
		}
		return StaticEvalCase(e), nil
	case KindSString:
		if err := r.resolveInterp(e.SString); err != nil {
			return nil, err
		}
		return e, nil
	case KindFString:
		if err := r.resolveInterp(e.FString); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return e, nil
	}
}

func (r *Resolver) resolveInterp(items []InterpItem) error {
	for i := range items {
		if items[i].Kind == InterpExpr {
			resolved, err := r.resolveExpr(items[i].Expr)
			if err != nil {
				return err
			}
			items[i].Expr = resolved
		}
	}
	return nil
}

// resolveIdent looks a bare or dotted name up against the ambient Scope
// first (columns of the relation currently in scope), then `this`/`that`,
// then default_db (let-bound relations and physical tables), per the
// fq-lookup order of spec §4.2 step 4.
func (r *Resolver) resolveIdent(e *Expr) (*Expr, error) {
	name := e.Ident.Name
	if len(e.Ident.Path) == 0 {
		if bound, ok := r.scope.Lookup(name); ok {
			return bound, nil
		}
	}
	if table, ok := r.tables[name]; ok && len(e.Ident.Path) == 0 {
		return table, nil
	}
	// A dotted ident like `orders.date` or `customers.id`: if the first
	// path segment names an input of the relation in scope, the ident is a
	// column reference qualified by that relation and targets that input's
	// column; otherwise it is returned unresolved.
	if len(e.Ident.Path) > 0 {
		if l := r.scope.CurrentLineage(); l != nil && len(e.Ident.Path) == 1 {
			for _, in := range l.Inputs {
				if in.Name == e.Ident.Path[0] {
					return &Expr{Kind: KindIdent, Ident: e.Ident, Span: e.Span, Alias: e.Alias, TargetID: idPtr(ColumnID(in.ID, name))}, nil
				}
			}
		}
		return e, nil
	}
	// Unqualified name that is neither a scope column nor a table: this is
	// either a std builtin used as a bare value (rare) or an undeclared
	// name, which is a real compile error (spec §7 E0404-equivalent).
	return nil, fmt.Errorf("pl: unknown name `%s`", name)
}

// resolveAll resolves a source-level `!{a, b}` exclude-tuple (spec §3.3's
// `All{within, except}`) against the relation currently in scope: Within
// defaults to that relation (there is no surface syntax to name another
// one), and Lineage records a LineageAll column so Select/Derive's lineage
// propagation (spec §4.2 step 5) can fold it into the output column list.
func (r *Resolver) resolveAll(e *Expr) (*Expr, error) {
	lineage := r.scope.CurrentLineage()
	if lineage == nil || len(lineage.Inputs) == 0 {
		return nil, fmt.Errorf("pl: `!{...}` used where no relation is in scope")
	}
	in := lineage.Inputs[0]
	if e.All.Within == nil {
		e.All.Within = &Expr{Kind: KindIdent, Ident: ident.FromName(in.Name), TargetID: idPtr(in.ID)}
	}
	e.Lineage = &Lineage{
		Open:    lineage.Open,
		Inputs:  []LineageInput{in},
		Columns: []LineageColumn{{Kind: LineageAll, InputName: in.Name, Except: exceptSet(e.All.Except)}},
	}
	return e, nil
}

func exceptSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// resolvePipeline left-folds a sequence of bare FuncCall stages into a
// chain of TransformCall nodes, threading each stage's output relation as
// the next stage's implicit first argument (spec §4.2 step 3).
func (r *Resolver) resolvePipeline(e *Expr) (*Expr, error) {
	var cur *Expr
	for _, stage := range e.Pipeline {
		next, err := r.resolveStage(stage, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// resolveStage resolves one pipeline stage given the relation produced by
// the previous stage (nil for the first stage, which must be `from`).
func (r *Resolver) resolveStage(stage *Expr, input *Expr) (*Expr, error) {
	if stage.Kind != KindFuncCall {
		resolved, err := r.resolveExpr(stage)
		if err != nil {
			return nil, err
		}
		return resolved, nil
	}
	call := stage.FuncCall
	name := call.Name.Ident.Name

	if kind, ok := transformNames[name]; ok {
		return r.resolveTransformCall(kind, call, input, stage.Span)
	}
	if name == "from" {
		return r.resolveFromArg(call.Args[0])
	}
	// Not a transform keyword: a plain function call (e.g. a column
	// expression appearing without being part of a transform, or a
	// relation alias). Resolve args normally and fall through to the
	// generic FuncCall handling.
	full := &Expr{Kind: KindFuncCall, FuncCall: call, Span: stage.Span}
	return r.resolveFuncCall(full)
}

// resolveFromArg resolves `from`'s argument: a let-bound relation by name,
// or an external table reference with an open (statically unknown) schema
// (spec §3.4's default_db namespace, approximated here since there is no
// catalog to introspect).
func (r *Resolver) resolveFromArg(arg *Expr) (*Expr, error) {
	if arg.Kind == KindIdent && len(arg.Ident.Path) == 0 {
		if bound, ok := r.tables[arg.Ident.Name]; ok {
			return bound, nil
		}
		id := r.nextTargetID()
		return &Expr{
			Kind:  KindIdent,
			Ident: arg.Ident,
			Span:  arg.Span,
			Lineage: &Lineage{
				Open:   true,
				Inputs: []LineageInput{{ID: id, Name: arg.Ident.Name, Table: arg.Ident}},
			},
		}, nil
	}
	return r.resolveExpr(arg)
}

func (r *Resolver) resolveTransformCall(kind TransformKind, call *FuncCallExpr, input *Expr, span *ident.Span) (*Expr, error) {
	tc := &TransformCall{Input: input, Kind: kind}

	switch kind {
	case TDerive, TSelect, TAggregate:
		arg, err := r.resolveTransformArg(call, input)
		if err != nil {
			return nil, err
		}
		tc.Tuple = arg
	case TFilter:
		r.pushInputScope(input)
		pred, err := r.resolveExpr(firstArg(call))
		r.scope.Pop()
		if err != nil {
			return nil, err
		}
		tc.Predicate = pred
	case TSort:
		arg, err := r.resolveTransformArg(call, input)
		if err != nil {
			return nil, err
		}
		tc.Tuple = arg
		tc.Sort = sortKeysFromTuple(arg)
	case TTake:
		r.pushInputScope(input)
		arg, err := r.resolveExpr(firstArg(call))
		r.scope.Pop()
		if err != nil {
			return nil, err
		}
		if arg.Kind == KindRange {
			tc.TakeRange = arg.Range
		} else {
			tc.TakeRange = &Range{End: arg}
		}
	case TJoin:
		with, err := r.resolveFromArg(call.Args[0])
		if err != nil {
			return nil, err
		}
		tc.With = with
		tc.JoinSide = JoinInner
		if side, ok := call.NamedArgs["side"]; ok && side.Kind == KindIdent {
			switch side.Ident.Name {
			case "left":
				tc.JoinSide = JoinLeft
			case "right":
				tc.JoinSide = JoinRight
			case "full":
				tc.JoinSide = JoinFull
			}
		}
		if len(call.Args) > 1 {
			filterArg := call.Args[1]
			if filterArg.Kind == KindBinary && filterArg.Left == nil && (filterArg.BinOp == OpEq || filterArg.BinOp == OpNe) {
				name := filterArg.Right.Ident.Name
				left := lookupColumn(input, name)
				right := lookupColumn(with, name)
				tc.JoinFilter = &Expr{Kind: KindBinary, BinOp: filterArg.BinOp, Left: left, Right: right, Span: filterArg.Span}
			} else {
				r.pushInputScope(input)
				r.scope.SetJoinAliases(&Expr{Kind: KindIdent, Ident: ident.FromName(ModThis)}, with)
				filter, err := r.resolveExpr(filterArg)
				r.scope.Pop()
				if err != nil {
					return nil, err
				}
				tc.JoinFilter = filter
			}
		}
	case TGroup:
		partition, err := r.resolveTransformArg(call, input)
		if err != nil {
			return nil, err
		}
		tc.Partition = tupleItems(partition)
		if len(call.Args) > 1 {
			inner, err := r.resolveGroupedPipeline(call.Args[1], input, tc.Partition, nil)
			if err != nil {
				return nil, err
			}
			tc.Input = inner
		}
	case TWindow:
		frame := &WindowFrame{Kind: FrameRows, Start: FrameBound{Kind: BoundUnboundedPreceding}, End: FrameBound{Kind: BoundCurrentRow}}
		if rows, ok := call.NamedArgs["rows"]; ok {
			resolvedRange, err := r.resolveExpr(rows)
			if err != nil {
				return nil, err
			}
			frame.Kind = FrameRows
			frame.Start, frame.End = frameBoundsFromRange(resolvedRange.Range)
		}
		sort := tc.Sort
		inner, err := r.resolveGroupedPipeline(lastArg(call), input, nil, &windowCtx{frame: frame, sort: sort})
		if err != nil {
			return nil, err
		}
		tc.Input = inner
		tc.Frame = frame
	case TAppend:
		with, err := r.resolveFromArg(call.Args[0])
		if err != nil {
			return nil, err
		}
		tc.With = with
	case TLoop:
		inner, err := r.resolveGroupedPipeline(lastArg(call), input, nil, nil)
		if err != nil {
			return nil, err
		}
		tc.Input = inner
	}

	lineage := r.inferLineage(tc, input)
	return &Expr{Kind: KindTransformCall, Transform: tc, Span: span, Lineage: lineage}, nil
}

type windowCtx struct {
	frame *WindowFrame
	sort  []ColumnSort[*Expr]
}

// resolveGroupedPipeline resolves the inner pipeline argument of
// group/window/loop with the outer relation's columns still in scope, so
// that bare column names inside it resolve the same way they would in the
// outer pipeline (spec §4.3's "splice, don't nest" flattening model starts
// from this shared-scope property).
func (r *Resolver) resolveGroupedPipeline(arg *Expr, input *Expr, partition []*Expr, win *windowCtx) (*Expr, error) {
	if arg == nil {
		return input, nil
	}
	resolved, err := r.resolveInnerPipeline(arg, input)
	if err != nil {
		return nil, err
	}
	if win != nil && resolved != nil && resolved.Kind == KindTransformCall {
		resolved.Transform.Frame = win.frame
		resolved.NeedsWindow = true
	}
	if len(partition) > 0 && resolved != nil && resolved.Kind == KindTransformCall {
		resolved.Transform.Partition = partition
	}
	return resolved, nil
}

// resolveInnerPipeline resolves the body of a group/window/loop block
// against the outer relation still in scope: either a single transform
// stage (the common `(aggregate {...})` case) or a full nested pipeline.
func (r *Resolver) resolveInnerPipeline(arg *Expr, input *Expr) (*Expr, error) {
	if arg.Kind == KindPipeline {
		cur := input
		for _, stage := range arg.Pipeline {
			next, err := r.resolveStage(stage, cur)
			if err != nil {
				return nil, err
			}
			cur = next
		}
		return cur, nil
	}
	return r.resolveStage(arg, input)
}

func frameBoundsFromRange(rng *Range) (start, end FrameBound) {
	start = FrameBound{Kind: BoundUnboundedPreceding}
	end = FrameBound{Kind: BoundCurrentRow}
	if rng == nil {
		return start, end
	}
	if rng.Start != nil {
		start = FrameBound{Kind: BoundExprPreceding, Offset: rng.Start}
	}
	if rng.End != nil {
		if lit, ok := asZeroLiteral(rng.End); ok && lit {
			end = FrameBound{Kind: BoundCurrentRow}
		} else {
			end = FrameBound{Kind: BoundExprFollowing, Offset: rng.End}
		}
	} else {
		end = FrameBound{Kind: BoundUnboundedFollowing}
	}
	return start, end
}

func asZeroLiteral(e *Expr) (bool, bool) {
	if e.Kind == KindLiteral && e.Literal.Kind == ident.LitInteger {
		return e.Literal.Int == 0, true
	}
	return false, false
}

func firstArg(call *FuncCallExpr) *Expr {
	if len(call.Args) == 0 {
		return nil
	}
	return call.Args[0]
}

func lastArg(call *FuncCallExpr) *Expr {
	if len(call.Args) == 0 {
		return nil
	}
	return call.Args[len(call.Args)-1]
}

// resolveTransformArg resolves the tuple-or-bare-expr payload argument
// common to derive/select/aggregate/sort, with the input relation's
// columns in scope.
func (r *Resolver) resolveTransformArg(call *FuncCallExpr, input *Expr) (*Expr, error) {
	arg := firstArg(call)
	if arg == nil {
		return &Expr{Kind: KindTuple}, nil
	}
	r.pushInputScope(input)
	resolved, err := r.resolveExpr(arg)
	r.scope.Pop()
	if err != nil {
		return nil, err
	}
	if resolved.Kind != KindTuple {
		resolved = &Expr{Kind: KindTuple, Tuple: []*Expr{resolved}, Span: resolved.Span}
	}
	return resolved, nil
}

// lookupColumn resolves a bare column name directly against a relation's
// Lineage without going through the Scope stack, used for the `==col`
// join-shorthand where each side of the equality is checked against a
// different relation (spec's supplemented same-name-join feature).
func lookupColumn(rel *Expr, name string) *Expr {
	if rel == nil || rel.Lineage == nil {
		return &Expr{Kind: KindIdent, Ident: ident.FromName(name)}
	}
	for _, c := range rel.Lineage.Columns {
		if c.Kind == LineageSingle && c.Name != nil && c.Name.Name == name {
			return &Expr{Kind: KindIdent, Ident: *c.Name, TargetID: idPtr(c.TargetID)}
		}
	}
	if rel.Lineage.Open && len(rel.Lineage.Inputs) > 0 {
		return &Expr{Kind: KindIdent, Ident: ident.FromName(name), TargetID: idPtr(ColumnID(rel.Lineage.Inputs[0].ID, name))}
	}
	return &Expr{Kind: KindIdent, Ident: ident.FromName(name)}
}

func (r *Resolver) pushInputScope(input *Expr) {
	if input != nil {
		r.scope.Push(input.Lineage)
	} else {
		r.scope.PushEmpty()
	}
}

func tupleItems(e *Expr) []*Expr {
	if e == nil {
		return nil
	}
	if e.Kind == KindTuple {
		return e.Tuple
	}
	return []*Expr{e}
}

// sortKeysFromTuple reads `-col`/`+col`/bare direction markers left by the
// parser as Unary(Neg/AddPrefix) wrappers (spec §3.2's sort-tuple syntax).
func sortKeysFromTuple(tuple *Expr) []ColumnSort[*Expr] {
	var out []ColumnSort[*Expr]
	for _, item := range tupleItems(tuple) {
		if item.Kind == KindUnary && item.UnOp == OpNeg {
			out = append(out, ColumnSort[*Expr]{Column: item.Operand, Desc: true})
			continue
		}
		out = append(out, ColumnSort[*Expr]{Column: item, Desc: false})
	}
	return out
}

// resolveFuncCall interprets a non-transform call: either a std scalar
// builtin (sum/average/row_number/...) bound to an RqOperatorExpr, or an
// inlined call to a user-defined function bound via `let`.
func (r *Resolver) resolveFuncCall(e *Expr) (*Expr, error) {
	call := e.FuncCall
	if call.Name.Kind != KindIdent {
		return nil, fmt.Errorf("pl: cannot call a non-identifier expression")
	}
	name := call.Name.Ident.Name

	if op, ok := scalarBuiltins[name]; ok {
		args := make([]*Expr, 0, len(call.Args))
		for _, a := range call.Args {
			resolved, err := r.resolveExpr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, resolved)
		}
		for _, k := range sortedKeys(call.NamedArgs) {
			resolved, err := r.resolveExpr(call.NamedArgs[k])
			if err != nil {
				return nil, err
			}
			args = append(args, resolved)
		}
		return &Expr{Kind: KindRqOperator, RqOp: &RqOperatorExpr{Name: op, Args: args}, Span: e.Span, Alias: e.Alias}, nil
	}

	if rel, ok := r.tables[name]; ok && len(call.Args) == 0 && len(call.NamedArgs) == 0 {
		return rel, nil
	}

	// Unknown callee: still resolve its arguments so downstream diagnostics
	// reference already-checked sub-expressions, then surface a single
	// undeclared-name error for the callee itself.
	for _, a := range call.Args {
		if _, err := r.resolveExpr(a); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("pl: unknown function `%s`", name)
}

func sortedKeys(m map[string]*Expr) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// inferLineage computes the output column set of a transform (spec §4.2
// step 5's lineage-propagation table). derive/select/aggregate/group/join
// recompute it from their own payload; the other transforms, append among
// them, pass the input's lineage through.
func (r *Resolver) inferLineage(tc *TransformCall, input *Expr) *Lineage {
	switch tc.Kind {
	case TDerive:
		return appendColumns(lineageOf(input), tc.Tuple)
	case TSelect, TAggregate:
		return columnsFromTuple(tc.Tuple)
	case TGroup:
		cols := columnsFromTuple(&Expr{Kind: KindTuple, Tuple: tc.Partition})
		if tc.Input != nil && tc.Input.Lineage != nil {
			cols.Columns = append(cols.Columns, tc.Input.Lineage.Columns...)
		}
		return cols
	case TJoin:
		base := lineageOf(input)
		if tc.With != nil {
			base = mergeLineage(base, lineageOf(tc.With))
		}
		return base
	case TAppend:
		return lineageOf(input)
	case TWindow:
		if tc.Input != nil {
			return tc.Input.Lineage
		}
		return lineageOf(input)
	default:
		return lineageOf(input)
	}
}

func lineageOf(e *Expr) *Lineage {
	if e == nil {
		return &Lineage{}
	}
	return e.Lineage
}

func columnsFromTuple(tuple *Expr) *Lineage {
	l := &Lineage{}
	for _, item := range tupleItems(tuple) {
		if item.Kind == KindAll {
			l.Columns = append(l.Columns, allLineageColumn(item))
			continue
		}
		name := columnNameOf(item)
		id := nameToID(name)
		l.Columns = append(l.Columns, LineageColumn{Kind: LineageSingle, Name: nameIdent(name), TargetID: id})
	}
	return l
}

func appendColumns(base *Lineage, tuple *Expr) *Lineage {
	out := &Lineage{Inputs: base.Inputs, Open: base.Open}
	out.Columns = append(out.Columns, base.Columns...)
	for _, item := range tupleItems(tuple) {
		if item.Kind == KindAll {
			out.Columns = append(out.Columns, allLineageColumn(item))
			continue
		}
		name := columnNameOf(item)
		out.Columns = append(out.Columns, LineageColumn{Kind: LineageSingle, Name: nameIdent(name), TargetID: nameToID(name)})
	}
	return out
}

// allLineageColumn reads the LineageAll column a resolved `!{...}` item
// already computed for itself (resolveAll) back out, for folding into the
// enclosing Select/Derive's own Lineage.
func allLineageColumn(item *Expr) LineageColumn {
	if item.Lineage != nil && len(item.Lineage.Columns) == 1 {
		return item.Lineage.Columns[0]
	}
	return LineageColumn{Kind: LineageAll}
}

func mergeLineage(a, b *Lineage) *Lineage {
	out := &Lineage{Inputs: append(append([]LineageInput{}, a.Inputs...), b.Inputs...), Open: a.Open || b.Open}
	out.Columns = append(out.Columns, a.Columns...)
	out.Columns = append(out.Columns, b.Columns...)
	return out
}

func columnNameOf(e *Expr) string {
	if e.Alias != nil {
		return *e.Alias
	}
	if e.Kind == KindIdent {
		return e.Ident.Name
	}
	return ""
}

func nameIdent(name string) *ident.Ident {
	if name == "" {
		return nil
	}
	i := ident.FromName(name)
	return &i
}

// nameToID is a deterministic placeholder id derived from a column's
// source-level name, used only until the lowering stage mints the real
// monotonic CId sequence (spec §4.4 owns the authoritative id space).
func nameToID(name string) uint32 {
	return fnv32(0, name)
}

// NameToID exposes nameToID to pkg/lower, which must derive the same
// placeholder id a derive/select/aggregate output column was assigned
// during resolution in order to mint its RQ CId consistently.
func NameToID(name string) uint32 {
	return nameToID(name)
}

// ColumnID derives a placeholder id for a bare column name vivified
// against an open (schema-unknown) relation, folding in that relation's
// base id so the same column name from two different tables (both sides
// of a join, say) never collides.
func ColumnID(baseID uint32, name string) uint32 {
	return fnv32(baseID, name)
}

func fnv32(seed uint32, s string) uint32 {
	h := uint32(2166136261) ^ seed
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
