// Package lower implements the PL → RQ lowering stage (spec §4.4): it
// walks a resolved pipeline of pl.TransformCall nodes and turns it into an
// RQ Relation over monotonic column/table ids, materialising joined and
// appended sub-relations as CTE TableDecls where they aren't a bare extern
// table reference.
package lower

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapsql/pkg/errors"
	"github.com/leapstack-labs/leapsql/pkg/ident"
	"github.com/leapstack-labs/leapsql/pkg/pl"
	"github.com/leapstack-labs/leapsql/pkg/rq"
)

// Lowerer carries the id generators and cross-reference maps that must be
// threaded through an entire lowering pass (spec §4.4 step 1: "identifier
// minting").
type Lowerer struct {
	nextCID uint32
	nextTID uint32

	// colIDs maps a PL-assigned placeholder id (pl.NameToID / pl.ColumnID)
	// to the RQ CId minted for it the first time it was needed, so every
	// later reference to the same logical column reuses the same CId.
	colIDs map[uint32]rq.CId

	cidTable map[rq.CId]rq.TId // which extern table a vivified column belongs to
	tidBase  map[rq.TId]uint32 // a table's Lineage.Inputs[0].ID, for column-id recomputation
	cidName  map[rq.CId]string // display name of every minted CId

	tables       []rq.TableDecl
	tableIndex   map[rq.TId]int
	anonCTECount int
}

// New returns an empty Lowerer.
func New() *Lowerer {
	return &Lowerer{
		colIDs:     map[uint32]rq.CId{},
		cidTable:   map[rq.CId]rq.TId{},
		tidBase:    map[rq.TId]uint32{},
		tableIndex: map[rq.TId]int{},
	}
}

func (lw *Lowerer) mintCID() rq.CId {
	lw.nextCID++
	return rq.CId(lw.nextCID)
}

func (lw *Lowerer) mintTID() rq.TId {
	lw.nextTID++
	return rq.TId(lw.nextTID)
}

// Lower translates a resolved main-pipeline expression into a complete RQ
// Query (spec §4.4). def carries the `prql version:... target:...` header,
// if any, straight through.
func Lower(mainExpr *pl.Expr, def rq.QueryDef) (*rq.Query, *errors.Errors) {
	lw := New()
	state, err := lw.lowerChain(mainExpr)
	if err != nil {
		return nil, errors.FromErr(err)
	}
	return &rq.Query{
		Def:    def,
		Tables: lw.tables,
		Relation: rq.Relation{
			Columns:    state.columns,
			Transforms: state.transforms,
			Open:       state.open,
			OpenTables: state.openTables,
		},
	}, nil
}

// relState is the lowerer's accumulator while walking one pipeline chain:
// the Transforms emitted so far, the schema they currently expose, and
// whether that schema is still "open" (an extern table whose full column
// set isn't statically known, spec §3.3's Lineage.Open).
type relState struct {
	transforms []rq.Transform
	columns    []rq.RelationColumn
	open       bool
	openTables []rq.TId
}

// lowerChain lowers a PL relational expression — either the base `from t`
// Ident or a chain of TransformCall nodes built by left-folding a pipeline
// — into a relState (spec §4.4 step 3).
func (lw *Lowerer) lowerChain(e *pl.Expr) (*relState, error) {
	if e == nil {
		return nil, fmt.Errorf("lower: nil relation expression")
	}
	switch e.Kind {
	case pl.KindIdent:
		return lw.lowerFromTable(e)
	case pl.KindTransformCall:
		input, err := lw.lowerChain(e.Transform.Input)
		if err != nil {
			return nil, err
		}
		return lw.lowerTransform(e.Transform, input)
	default:
		return nil, fmt.Errorf("lower: unexpected relation expression kind %d at %v", e.Kind, e.Span)
	}
}

// lowerFromTable lowers the base of a pipeline: a bare extern table
// reference (spec §4.4 step 3, `From t`). Its output columns are unknown
// until referenced (Wildcard semantics).
func (lw *Lowerer) lowerFromTable(e *pl.Expr) (*relState, error) {
	tid := lw.mintTID()
	name := e.Ident.Name
	decl := rq.TableDecl{ID: tid, Name: name, Kind: rq.TableFromExternal, External: identPtr(e.Ident)}
	lw.tables = append(lw.tables, decl)
	lw.tableIndex[tid] = len(lw.tables) - 1

	if e.Lineage != nil && len(e.Lineage.Inputs) > 0 {
		lw.tidBase[tid] = e.Lineage.Inputs[0].ID
	}

	return &relState{
		transforms: []rq.Transform{{Kind: rq.TFrom, From: tid}},
		columns:    []rq.RelationColumn{{Kind: rq.ColWildcard, Table: tid}},
		open:       true,
		openTables: []rq.TId{tid},
	}, nil
}

// tidForBaseID finds the RQ table id minted for the extern table whose PL
// Lineage.Inputs[0].ID is baseID, used to bind a resolved `!{...}`'s Within
// relation to the table its wildcard projects (spec §4.2 step 3).
func (lw *Lowerer) tidForBaseID(baseID uint32) (rq.TId, bool) {
	for tid, b := range lw.tidBase {
		if b == baseID {
			return tid, true
		}
	}
	return 0, false
}

// lowerAllItem lowers a resolved `!{...}` tuple item into the RQ Wildcard
// RelationColumn it denotes (spec §3.3/§4.2 step 3's `All{within, except}`).
func (lw *Lowerer) lowerAllItem(item *pl.Expr) (rq.RelationColumn, error) {
	if item.All == nil || item.All.Within == nil || item.All.Within.TargetID == nil {
		return rq.RelationColumn{}, fmt.Errorf("lower: `!{...}` used where no relation is in scope")
	}
	baseID := *item.All.Within.TargetID
	tid, ok := lw.tidForBaseID(baseID)
	if !ok {
		return rq.RelationColumn{}, fmt.Errorf("lower: `!{...}` refers to an unknown relation")
	}
	except := make([]rq.CId, 0, len(item.All.Except))
	for _, name := range sortedStrings(item.All.Except) {
		targetID := pl.ColumnID(baseID, name)
		isNew := lw.colIDs[targetID] == 0
		cid := lw.cidForTarget(targetID)
		if isNew {
			lw.cidNameMap()[cid] = name
			lw.cidTable[cid] = tid
			lw.appendTableColumn(tid, cid, name)
		}
		except = append(except, cid)
	}
	return rq.RelationColumn{Kind: rq.ColWildcard, Table: tid, Except: except}, nil
}

func sortedStrings(names []string) []string {
	out := append([]string{}, names...)
	sort.Strings(out)
	return out
}

func identPtr(id ident.Ident) *ident.Ident { return &id }

// lowerTransform lowers one pipeline stage given its already-lowered input
// (spec §4.4 step 3's per-kind table).
func (lw *Lowerer) lowerTransform(tc *pl.TransformCall, input *relState) (*relState, error) {
	switch tc.Kind {
	case pl.TDerive:
		return lw.lowerDerive(tc, input, false)
	case pl.TSelect:
		return lw.lowerSelect(tc, input)
	case pl.TFilter:
		return lw.lowerFilter(tc, input)
	case pl.TAggregate:
		return lw.lowerAggregate(tc, input)
	case pl.TSort:
		return lw.lowerSort(tc, input)
	case pl.TTake:
		return lw.lowerTake(tc, input)
	case pl.TJoin:
		return lw.lowerJoin(tc, input)
	case pl.TGroup:
		// Flattened in the resolver: a bare `group` whose body wasn't a
		// window/aggregate has its spliced inner pipeline as tc.Input, which
		// lowerChain has already lowered into input.
		return input, nil
	case pl.TWindow:
		return input, nil
	case pl.TAppend:
		return lw.lowerAppend(tc, input)
	case pl.TLoop:
		return lw.lowerLoop(tc, input)
	default:
		return nil, fmt.Errorf("lower: unhandled transform kind %v", tc.Kind)
	}
}

func (lw *Lowerer) lowerDerive(tc *pl.TransformCall, input *relState, isAggregation bool) (*relState, error) {
	transforms := append([]rq.Transform{}, input.transforms...)
	columns := append([]rq.RelationColumn{}, input.columns...)
	for _, item := range tupleItems(tc.Tuple) {
		compute, err := lw.lowerNamedComputeItem(item, input, isAggregation)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, rq.Transform{Kind: rq.TCompute, Compute: compute})
		columns = append(columns, rq.RelationColumn{ID: compute.ID, Name: lw.columnName(compute.ID)})
	}
	return &relState{transforms: transforms, columns: columns, open: input.open, openTables: input.openTables}, nil
}

// lowerNamedComputeItem lowers one derive/aggregate tuple element,
// including the window/group wrapping a scalar expression can carry when
// it is itself a spliced TransformCall (spec §4.3's flattening, spec §8.3
// S4's `sum amount | group symbol (window ...)`).
func (lw *Lowerer) lowerNamedComputeItem(item *pl.Expr, input *relState, isAggregation bool) (*rq.Compute, error) {
	name := columnNameOf(item)
	targetID := pl.NameToID(name)
	cid := lw.cidForTarget(targetID)
	lw.cidNameMap()[cid] = name

	expr, window, partition, sortKeys, frame, err := lw.lowerWindowedExpr(item, input)
	if err != nil {
		return nil, err
	}
	return &rq.Compute{
		ID:            cid,
		Expr:          expr,
		IsAggregation: isAggregation,
		Window:        window,
		Partition:     partition,
		Sort:          sortKeys,
		Frame:         frame,
	}, nil
}

// lowerWindowedExpr peels off any Group/Window TransformCall wrapper
// spliced around a scalar expression and returns the underlying value
// lowered, plus the window context if one was present.
func (lw *Lowerer) lowerWindowedExpr(e *pl.Expr, input *relState) (rq.Expr, bool, []rq.CId, []rq.ColumnSort, *rq.WindowFrame, error) {
	if e.Kind != pl.KindTransformCall {
		expr, err := lw.lowerExpr(e, input.openTables)
		return expr, false, nil, nil, nil, err
	}
	tc := e.Transform
	var partition []rq.CId
	for _, p := range tc.Partition {
		cid, err := lw.exprToExistingCID(p, input)
		if err != nil {
			return rq.Expr{}, false, nil, nil, nil, err
		}
		partition = append(partition, cid)
	}
	var sortKeys []rq.ColumnSort
	for _, s := range tc.Sort {
		cid, err := lw.exprToExistingCID(s.Column, input)
		if err != nil {
			return rq.Expr{}, false, nil, nil, nil, err
		}
		sortKeys = append(sortKeys, rq.ColumnSort{Column: cid, Desc: s.Desc})
	}
	var frame *rq.WindowFrame
	if tc.Frame != nil {
		f, err := lw.lowerFrame(tc.Frame, input)
		if err != nil {
			return rq.Expr{}, false, nil, nil, nil, err
		}
		frame = f
	}
	inner := tc.Input
	if inner == nil {
		return rq.Expr{}, false, nil, nil, nil, fmt.Errorf("lower: window/group wrapper with no inner expression")
	}
	innerExpr, innerWindow, innerPartition, innerSort, innerFrame, err := lw.lowerWindowedExpr(inner, input)
	if err != nil {
		return rq.Expr{}, false, nil, nil, nil, err
	}
	if len(partition) == 0 {
		partition = innerPartition
	}
	if len(sortKeys) == 0 {
		sortKeys = innerSort
	}
	if frame == nil {
		frame = innerFrame
	}
	return innerExpr, innerWindow || tc.Frame != nil || len(tc.Partition) > 0, partition, sortKeys, frame, nil
}

func (lw *Lowerer) lowerFrame(f *pl.WindowFrame, input *relState) (*rq.WindowFrame, error) {
	start, err := lw.lowerFrameBound(f.Start, input)
	if err != nil {
		return nil, err
	}
	end, err := lw.lowerFrameBound(f.End, input)
	if err != nil {
		return nil, err
	}
	return &rq.WindowFrame{Start: start, End: end}, nil
}

func (lw *Lowerer) lowerFrameBound(b pl.FrameBound, input *relState) (rq.FrameBound, error) {
	out := rq.FrameBound{Kind: rq.FrameBoundKind(b.Kind)}
	if b.Offset != nil {
		expr, err := lw.lowerExpr(b.Offset, input.openTables)
		if err != nil {
			return rq.FrameBound{}, err
		}
		out.Offset = &expr
	}
	return out, nil
}

func (lw *Lowerer) lowerSelect(tc *pl.TransformCall, input *relState) (*relState, error) {
	transforms := append([]rq.Transform{}, input.transforms...)
	var columns []rq.RelationColumn
	var cids []rq.CId
	for _, item := range tupleItems(tc.Tuple) {
		if item.Kind == pl.KindAll {
			col, err := lw.lowerAllItem(item)
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
			continue
		}
		if item.Kind == pl.KindIdent && item.Alias == nil {
			// Bare reference to an existing column: reuse its CId, no new
			// Compute needed (keeps `select {name, salary}` from emitting
			// redundant computed columns).
			expr, err := lw.lowerExpr(item, input.openTables)
			if err != nil {
				return nil, err
			}
			cid := expr.ColumnRef
			cids = append(cids, cid)
			columns = append(columns, rq.RelationColumn{ID: cid, Name: lw.columnName(cid)})
			continue
		}
		compute, err := lw.lowerNamedComputeItem(item, input, false)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, rq.Transform{Kind: rq.TCompute, Compute: compute})
		cids = append(cids, compute.ID)
		columns = append(columns, rq.RelationColumn{ID: compute.ID, Name: lw.columnName(compute.ID)})
	}
	transforms = append(transforms, rq.Transform{Kind: rq.TSelect, Select: cids})
	return &relState{transforms: transforms, columns: columns, open: false}, nil
}

func (lw *Lowerer) lowerFilter(tc *pl.TransformCall, input *relState) (*relState, error) {
	expr, err := lw.lowerExpr(tc.Predicate, input.openTables)
	if err != nil {
		return nil, err
	}
	transforms := append(append([]rq.Transform{}, input.transforms...), rq.Transform{Kind: rq.TFilter, Filter: expr})
	return &relState{transforms: transforms, columns: input.columns, open: input.open, openTables: input.openTables}, nil
}

func (lw *Lowerer) lowerAggregate(tc *pl.TransformCall, input *relState) (*relState, error) {
	transforms := append([]rq.Transform{}, input.transforms...)
	var partition []rq.CId
	var partitionCols []rq.RelationColumn
	for _, p := range tc.Partition {
		cid, err := lw.exprToExistingCID(p, input)
		if err != nil {
			return nil, err
		}
		partition = append(partition, cid)
		partitionCols = append(partitionCols, rq.RelationColumn{ID: cid, Name: lw.columnName(cid)})
	}
	var computes []rq.CId
	var computeCols []rq.RelationColumn
	for _, item := range tupleItems(tc.Tuple) {
		compute, err := lw.lowerNamedComputeItem(item, input, true)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, rq.Transform{Kind: rq.TCompute, Compute: compute})
		computes = append(computes, compute.ID)
		computeCols = append(computeCols, rq.RelationColumn{ID: compute.ID, Name: lw.columnName(compute.ID)})
	}
	transforms = append(transforms, rq.Transform{Kind: rq.TAggregate, Aggregate: &rq.AggregateT{Partition: partition, Computes: computes}})
	columns := append(partitionCols, computeCols...)
	return &relState{transforms: transforms, columns: columns, open: false}, nil
}

func (lw *Lowerer) lowerSort(tc *pl.TransformCall, input *relState) (*relState, error) {
	var keys []rq.ColumnSort
	for _, s := range tc.Sort {
		cid, err := lw.exprToExistingCID(s.Column, input)
		if err != nil {
			return nil, err
		}
		keys = append(keys, rq.ColumnSort{Column: cid, Desc: s.Desc})
	}
	transforms := append(append([]rq.Transform{}, input.transforms...), rq.Transform{Kind: rq.TSort, Sort: keys})
	return &relState{transforms: transforms, columns: input.columns, open: input.open, openTables: input.openTables}, nil
}

func (lw *Lowerer) lowerTake(tc *pl.TransformCall, input *relState) (*relState, error) {
	rng := &rq.Range{}
	if tc.TakeRange != nil {
		start, err := rangeBound(tc.TakeRange.Start)
		if err != nil {
			return nil, err
		}
		end, err := rangeBound(tc.TakeRange.End)
		if err != nil {
			return nil, err
		}
		rng.Start, rng.End = start, end
	}
	transforms := append(append([]rq.Transform{}, input.transforms...), rq.Transform{Kind: rq.TTake, Take: rng})
	return &relState{transforms: transforms, columns: input.columns, open: input.open, openTables: input.openTables}, nil
}

func (lw *Lowerer) lowerJoin(tc *pl.TransformCall, input *relState) (*relState, error) {
	withState, err := lw.lowerChain(tc.With)
	if err != nil {
		return nil, err
	}
	withTID, err := lw.materialize(withState)
	if err != nil {
		return nil, err
	}

	combinedOpen := append(append([]rq.TId{}, input.openTables...), withState.openTables...)
	filterExpr := rq.Expr{Kind: rq.ELiteral, Literal: ident.Boolean(true)}
	if tc.JoinFilter != nil {
		filterExpr, err = lw.lowerExpr(tc.JoinFilter, combinedOpen)
		if err != nil {
			return nil, err
		}
	}

	transforms := append(append([]rq.Transform{}, input.transforms...), rq.Transform{
		Kind: rq.TJoin,
		Join: &rq.JoinT{Side: joinSide(tc.JoinSide), With: withTID, Filter: filterExpr},
	})
	columns := append(append([]rq.RelationColumn{}, input.columns...), withState.columns...)
	return &relState{
		transforms: transforms,
		columns:    columns,
		open:       input.open || withState.open,
		openTables: combinedOpen,
	}, nil
}

func (lw *Lowerer) lowerAppend(tc *pl.TransformCall, input *relState) (*relState, error) {
	withState, err := lw.lowerChain(tc.With)
	if err != nil {
		return nil, err
	}
	if !input.open && !withState.open && len(input.columns) != len(withState.columns) {
		return nil, fmt.Errorf("lower: append requires both relations to have the same number of columns (%d vs %d)", len(input.columns), len(withState.columns))
	}
	withTID, err := lw.materialize(withState)
	if err != nil {
		return nil, err
	}
	transforms := append(append([]rq.Transform{}, input.transforms...), rq.Transform{Kind: rq.TAppend, Append: withTID})
	return &relState{transforms: transforms, columns: input.columns, open: input.open, openTables: input.openTables}, nil
}

func (lw *Lowerer) lowerLoop(tc *pl.TransformCall, input *relState) (*relState, error) {
	bodyState, err := lw.lowerChain(tc.Input)
	if err != nil {
		return nil, err
	}
	body := &rq.Relation{Columns: bodyState.columns, Transforms: bodyState.transforms, Open: bodyState.open, OpenTables: bodyState.openTables}
	transforms := append(append([]rq.Transform{}, input.transforms...), rq.Transform{Kind: rq.TLoop, Loop: body})
	return &relState{transforms: transforms, columns: input.columns, open: input.open, openTables: input.openTables}, nil
}

// materialize turns a relState used as a join/append source into a table
// id: a bare `From` stays a direct extern-table reference, anything with
// further transforms is materialized as an anonymous CTE (spec §4.4 step
// 2's "table inlining").
func (lw *Lowerer) materialize(state *relState) (rq.TId, error) {
	if len(state.transforms) == 1 && state.transforms[0].Kind == rq.TFrom {
		return state.transforms[0].From, nil
	}
	tid := lw.mintTID()
	name := fmt.Sprintf("table_%d", lw.anonCTECount)
	lw.anonCTECount++
	rel := rq.Relation{Columns: state.columns, Transforms: state.transforms, Open: state.open, OpenTables: state.openTables}
	decl := rq.TableDecl{ID: tid, Name: name, Kind: rq.TableFromRelation, Relation: &rel, Columns: state.columns}
	lw.tables = append(lw.tables, decl)
	lw.tableIndex[tid] = len(lw.tables) - 1
	return tid, nil
}

func (lw *Lowerer) appendTableColumn(tid rq.TId, cid rq.CId, name string) {
	idx, ok := lw.tableIndex[tid]
	if !ok {
		return
	}
	lw.tables[idx].Columns = append(lw.tables[idx].Columns, rq.RelationColumn{ID: cid, Name: name})
}

func (lw *Lowerer) cidForTarget(targetID uint32) rq.CId {
	if cid, ok := lw.colIDs[targetID]; ok {
		return cid
	}
	cid := lw.mintCID()
	lw.colIDs[targetID] = cid
	return cid
}

// columnName returns the display name recorded for cid, used to populate
// RelationColumn and diagnostics.
func (lw *Lowerer) columnName(cid rq.CId) string {
	return lw.cidNameMap()[cid]
}

func (lw *Lowerer) cidNameMap() map[rq.CId]string {
	if lw.cidName == nil {
		lw.cidName = map[rq.CId]string{}
	}
	return lw.cidName
}

// exprToExistingCID lowers e and, if it isn't already a bare column
// reference, materializes it as an extra Compute so Sort/Aggregate/Window
// payloads (which carry CId, not Expr) have something to point at.
func (lw *Lowerer) exprToExistingCID(e *pl.Expr, input *relState) (rq.CId, error) {
	expr, err := lw.lowerExpr(e, input.openTables)
	if err != nil {
		return 0, err
	}
	if expr.Kind == rq.EColumnRef {
		return expr.ColumnRef, nil
	}
	cid := lw.mintCID()
	input.transforms = append(input.transforms, rq.Transform{Kind: rq.TCompute, Compute: &rq.Compute{ID: cid, Expr: expr}})
	return cid, nil
}

// lowerExpr lowers a scalar PL expression to RQ, rewriting every Ident
// into a ColumnRef (spec §4.4 step 4). openTables lists the extern tables
// currently in scope, searched to determine a newly-vivified column's
// owning table.
func (lw *Lowerer) lowerExpr(e *pl.Expr, openTables []rq.TId) (rq.Expr, error) {
	if e == nil {
		return rq.Expr{Kind: rq.ELiteral, Literal: ident.Null}, nil
	}
	switch e.Kind {
	case pl.KindLiteral:
		return rq.Expr{Kind: rq.ELiteral, Literal: e.Literal}, nil
	case pl.KindIdent:
		return lw.lowerColumnRef(e, openTables)
	case pl.KindParam:
		return rq.Expr{Kind: rq.EParam, Param: e.Param}, nil
	case pl.KindBinary:
		left, err := lw.lowerExpr(e.Left, openTables)
		if err != nil {
			return rq.Expr{}, err
		}
		right, err := lw.lowerExpr(e.Right, openTables)
		if err != nil {
			return rq.Expr{}, err
		}
		return rq.Expr{Kind: rq.EOperator, Operator: &rq.OperatorExpr{Name: binOpName(e.BinOp), Args: []rq.Expr{left, right}}}, nil
	case pl.KindUnary:
		operand, err := lw.lowerExpr(e.Operand, openTables)
		if err != nil {
			return rq.Expr{}, err
		}
		if e.UnOp == pl.OpAddPrefix {
			return operand, nil
		}
		return rq.Expr{Kind: rq.EOperator, Operator: &rq.OperatorExpr{Name: unOpName(e.UnOp), Args: []rq.Expr{operand}}}, nil
	case pl.KindRqOperator:
		args := make([]rq.Expr, 0, len(e.RqOp.Args))
		for _, a := range e.RqOp.Args {
			lowered, err := lw.lowerExpr(a, openTables)
			if err != nil {
				return rq.Expr{}, err
			}
			args = append(args, lowered)
		}
		return rq.Expr{Kind: rq.EOperator, Operator: &rq.OperatorExpr{Name: e.RqOp.Name, Args: args}}, nil
	case pl.KindCase:
		var branches []rq.CaseBranch
		for _, item := range e.Case {
			cond, err := lw.lowerExpr(item.Condition, openTables)
			if err != nil {
				return rq.Expr{}, err
			}
			val, err := lw.lowerExpr(item.Value, openTables)
			if err != nil {
				return rq.Expr{}, err
			}
			branches = append(branches, rq.CaseBranch{Condition: cond, Value: val})
		}
		return rq.Expr{Kind: rq.ECase, Case: branches}, nil
	case pl.KindSString, pl.KindFString:
		items := e.SString
		if e.Kind == pl.KindFString {
			items = e.FString
		}
		var parts []rq.SStringPart
		for _, it := range items {
			if it.Kind == pl.InterpString {
				parts = append(parts, rq.SStringPart{Text: it.Text})
				continue
			}
			lowered, err := lw.lowerExpr(it.Expr, openTables)
			if err != nil {
				return rq.Expr{}, err
			}
			parts = append(parts, rq.SStringPart{Expr: &lowered})
		}
		return rq.Expr{Kind: rq.ESString, SString: parts}, nil
	case pl.KindArray:
		var items []rq.Expr
		for _, item := range e.Array {
			lowered, err := lw.lowerExpr(item, openTables)
			if err != nil {
				return rq.Expr{}, err
			}
			items = append(items, lowered)
		}
		return rq.Expr{Kind: rq.EArray, Array: items}, nil
	case pl.KindTransformCall:
		expr, _, _, _, _, err := lw.lowerWindowedExpr(e, &relState{openTables: openTables})
		return expr, err
	default:
		return rq.Expr{}, fmt.Errorf("lower: cannot lower expression kind %d in scalar position at %v", e.Kind, e.Span)
	}
}

func (lw *Lowerer) lowerColumnRef(e *pl.Expr, openTables []rq.TId) (rq.Expr, error) {
	if e.TargetID == nil {
		return rq.Expr{}, fmt.Errorf("lower: unresolved identifier `%s`", e.Ident.String())
	}
	targetID := *e.TargetID
	if cid, ok := lw.colIDs[targetID]; ok {
		return rq.Expr{Kind: rq.EColumnRef, ColumnRef: cid}, nil
	}
	cid := lw.mintCID()
	lw.colIDs[targetID] = cid
	name := e.Ident.Name
	lw.cidNameMap()[cid] = name
	for _, tid := range openTables {
		baseID, ok := lw.tidBase[tid]
		if !ok {
			continue
		}
		if pl.ColumnID(baseID, name) == targetID {
			lw.cidTable[cid] = tid
			lw.appendTableColumn(tid, cid, name)
			break
		}
	}
	return rq.Expr{Kind: rq.EColumnRef, ColumnRef: cid}, nil
}

func binOpName(op pl.BinOp) string {
	switch op {
	case pl.OpAdd:
		return "std.add"
	case pl.OpSub:
		return "std.sub"
	case pl.OpMul:
		return "std.mul"
	case pl.OpDiv:
		return "std.div"
	case pl.OpDivInt:
		return "std.div_int"
	case pl.OpMod:
		return "std.mod"
	case pl.OpEq:
		return "std.eq"
	case pl.OpNe:
		return "std.ne"
	case pl.OpLt:
		return "std.lt"
	case pl.OpLe:
		return "std.lte"
	case pl.OpGt:
		return "std.gt"
	case pl.OpGe:
		return "std.gte"
	case pl.OpAnd:
		return "std.and"
	case pl.OpOr:
		return "std.or"
	case pl.OpCoalesce:
		return "std.coalesce"
	case pl.OpConcat:
		return "std.concat"
	case pl.OpRegexSearch:
		return "std.regex_search"
	case pl.OpIn:
		return "std.in"
	default:
		return "std.unknown"
	}
}

func unOpName(op pl.UnOp) string {
	switch op {
	case pl.OpNeg:
		return "std.neg"
	case pl.OpNot:
		return "std.not"
	default:
		return "std.identity"
	}
}

func joinSide(s pl.JoinSide) rq.JoinSide {
	switch s {
	case pl.JoinLeft:
		return rq.JoinLeft
	case pl.JoinRight:
		return rq.JoinRight
	case pl.JoinFull:
		return rq.JoinFull
	default:
		return rq.JoinInner
	}
}

func rangeBound(e *pl.Expr) (*int64, error) {
	if e == nil {
		return nil, nil
	}
	if e.Kind != pl.KindLiteral || e.Literal.Kind != ident.LitInteger {
		return nil, fmt.Errorf("lower: take range bound must be a literal integer at %v", e.Span)
	}
	v := e.Literal.Int
	return &v, nil
}

func tupleItems(e *pl.Expr) []*pl.Expr {
	if e == nil {
		return nil
	}
	if e.Kind == pl.KindTuple {
		return e.Tuple
	}
	return []*pl.Expr{e}
}

func columnNameOf(e *pl.Expr) string {
	if e.Alias != nil {
		return *e.Alias
	}
	if e.Kind == pl.KindIdent {
		return e.Ident.Name
	}
	return "_expr"
}
