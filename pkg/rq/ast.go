// Package rq implements the Relational Query representation: PL's tree of
// relations lowered into an explicit column-id form ready for SQL codegen
// (spec §3.5, §4.4).
package rq

import "github.com/leapstack-labs/leapsql/pkg/ident"

// CId is a monotonically assigned column id, unique across an entire
// lowered query.
type CId uint32

// TId is a monotonically assigned table id, unique across an entire
// lowered query.
type TId uint32

// QueryDef carries the `prql version:... target:...` header through to the
// lowered query, mirroring pl.QueryDef without importing package pl (RQ has
// no dependency on PL by design, spec §9 "no shared ownership across
// stages").
type QueryDef struct {
	Version *string
	Target  *string
}

// Query is the root of a lowered query: every CTE-level relation plus the
// final relation to select from.
type Query struct {
	Def      QueryDef
	Tables   []TableDecl
	Relation Relation
}

// TableDeclKind tags where a TableDecl's rows come from.
type TableDeclKind int

// Table declaration kinds.
const (
	TableFromRelation TableDeclKind = iota // CTE: materialize a Relation
	TableFromExternal                      // a physical table/view named in the source
)

// TableDecl is one named relation available to reference by TId: either an
// external table or a CTE holding a Relation.
type TableDecl struct {
	ID       TId
	Name     string
	Kind     TableDeclKind
	Relation *Relation      // set iff Kind == TableFromRelation
	External *ident.Ident   // set iff Kind == TableFromExternal
	Columns  []RelationColumn
}

// RelationColumnKind tags RelationColumn's closed shape (spec §3.5):
// `Single(name?) | Wildcard`, so a relation's column list can interleave
// an explicit derived column with a wildcard standing for the rest of some
// table's columns (spec §4.2 step 3's `All{within, except}`).
type RelationColumnKind int

// RelationColumn kinds.
const (
	ColSingle RelationColumnKind = iota
	ColWildcard
)

// RelationColumn is one output column of a Relation. ColSingle carries ID
// and Name, for diagnostics and direct projection. ColWildcard carries
// Table (the table whose remaining columns it stands for) and Except (CIds
// to leave out, source-level `!{...}`, rendered via the dialect's
// ExcludeKeyword when one exists).
type RelationColumn struct {
	Kind RelationColumnKind

	// ColSingle.
	ID   CId
	Name string

	// ColWildcard.
	Table  TId
	Except []CId
}

// Relation is a pipeline of Transforms over some starting input, the unit
// SQL codegen turns into one SELECT (or splits into several when a
// transform can't be expressed in a single clause, spec §4.5).
type Relation struct {
	Columns    []RelationColumn
	Transforms []Transform

	// Open marks a relation whose full column set is not statically known
	// (an extern table with no declared schema, propagated through
	// transforms that don't narrow columns), mirroring pl.Lineage.Open.
	// Codegen falls back to emitting `alias.*` for each table in
	// OpenTables rather than an explicit column list.
	Open       bool
	OpenTables []TId
}

// TransformKind tags RQ's closed set of relational operators.
type TransformKind int

// Transform kinds.
const (
	TFrom TransformKind = iota
	TCompute
	TSelect
	TFilter
	TAggregate
	TSort
	TTake
	TJoin
	TAppend
	TLoop
)

// ColumnSort pairs a column with a sort direction.
type ColumnSort struct {
	Column CId
	Desc   bool
}

// Range is an optional-bounded integer range (used by Take).
type Range struct {
	Start *int64
	End   *int64
}

// JoinSide mirrors pl.JoinSide in RQ's vocabulary.
type JoinSide int

// Join sides.
const (
	JoinInner JoinSide = iota
	JoinLeft
	JoinRight
	JoinFull
)

// FrameBoundKind mirrors pl.FrameBoundKind.
type FrameBoundKind int

// Frame bound kinds.
const (
	BoundUnboundedPreceding FrameBoundKind = iota
	BoundUnboundedFollowing
	BoundCurrentRow
	BoundExprPreceding
	BoundExprFollowing
)

// FrameBound is one edge of a window frame.
type FrameBound struct {
	Kind   FrameBoundKind
	Offset *Expr
}

// WindowFrame carries a Compute's window-function extent, if any.
type WindowFrame struct {
	Start FrameBound
	End   FrameBound
}

// Compute assigns an Expr to a CId: the payload of a TCompute transform,
// and how every derived/selected/aggregated column is represented.
type Compute struct {
	ID            CId
	Expr          Expr
	IsAggregation bool
	Window        bool
	Partition     []CId
	Sort          []ColumnSort
	Frame         *WindowFrame
}

// Transform is RQ's closed sum type (spec §3.5): exactly one of the
// pointer fields below is set, selected by Kind.
type Transform struct {
	Kind TransformKind

	From      TId          // TFrom
	Compute   *Compute     // TCompute
	Select    []CId        // TSelect
	Filter    Expr         // TFilter
	Aggregate *AggregateT  // TAggregate
	Sort      []ColumnSort // TSort
	Take      *Range       // TTake
	Join      *JoinT       // TJoin
	Append    TId          // TAppend
	Loop      *Relation    // TLoop
}

// AggregateT is TAggregate's payload: the partition key columns (already
// computed upstream) plus the aggregate Computes.
type AggregateT struct {
	Partition []CId
	Computes  []CId
}

// JoinT is TJoin's payload.
type JoinT struct {
	Side   JoinSide
	With   TId
	Filter Expr
}

// ExprKind tags RQ's closed set of scalar expression shapes: a strict
// subset of pl.ExprKind, since by lowering time everything relational has
// already been flattened into Transforms.
type ExprKind int

// RQ expression kinds.
const (
	EColumnRef ExprKind = iota
	ELiteral
	ESString
	ECase
	EOperator
	EParam
	EArray
)

// CaseBranch is one `condition => value` branch of an RQ Case.
type CaseBranch struct {
	Condition Expr
	Value     Expr
}

// SStringPart is one piece of a lowered s-string: verbatim SQL text or an
// embedded, already-lowered expression.
type SStringPart struct {
	Text string
	Expr *Expr
}

// Expr is a scalar RQ expression node.
type Expr struct {
	Kind ExprKind

	ColumnRef CId
	Literal   ident.Literal
	SString   []SStringPart
	Case      []CaseBranch
	Operator  *OperatorExpr
	Param     string
	Array     []Expr
}

// OperatorExpr is a call to a built-in (arithmetic/comparison/std
// function) operator, the only kind of function call surviving into RQ.
type OperatorExpr struct {
	Name string
	Args []Expr
}
