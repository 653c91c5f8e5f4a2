// Package pl implements the Pipeline Language: the parser's output (what
// spec §3.2 calls PR) augmented in place by the resolver with ids, types,
// and lineage (spec §3.3). A single Expr/Stmt struct models both stages —
// see the "generic AST" Open Question in SPEC_FULL.md for why the two were
// consolidated instead of kept as separate mirrored types.
package pl

import (
	"github.com/leapstack-labs/leapsql/pkg/ident"
	"github.com/leapstack-labs/leapsql/pkg/ty"
)

// ExprKind tags the closed set of expression shapes.
type ExprKind int

// Expression kinds (spec §3.2, §3.3).
const (
	KindIdent ExprKind = iota
	KindLiteral
	KindPipeline
	KindTuple
	KindArray
	KindRange
	KindBinary
	KindUnary
	KindFuncCall
	KindFunc
	KindSString
	KindFString
	KindCase
	KindParam
	KindInternal
	KindTransformCall // PL-only
	KindRqOperator    // PL-only
	KindAll           // PL-only
)

// BinOp enumerates binary operators.
type BinOp int

// Binary operators.
const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpDivInt
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpCoalesce
	OpConcat
	OpRegexSearch
	OpIn
)

// UnOp enumerates unary operators.
type UnOp int

// Unary operators.
const (
	OpNeg UnOp = iota
	OpNot
	OpAddPrefix // unary '+'
)

// TransformKind enumerates the builtin pipeline transforms.
type TransformKind int

// Transform kinds (spec §3.3).
const (
	TDerive TransformKind = iota
	TSelect
	TFilter
	TAggregate
	TSort
	TTake
	TJoin
	TGroup
	TWindow
	TAppend
	TLoop
)

func (k TransformKind) String() string {
	switch k {
	case TDerive:
		return "derive"
	case TSelect:
		return "select"
	case TFilter:
		return "filter"
	case TAggregate:
		return "aggregate"
	case TSort:
		return "sort"
	case TTake:
		return "take"
	case TJoin:
		return "join"
	case TGroup:
		return "group"
	case TWindow:
		return "window"
	case TAppend:
		return "append"
	case TLoop:
		return "loop"
	default:
		return "?"
	}
}

// JoinSide enumerates join kinds.
type JoinSide int

// Join sides.
const (
	JoinInner JoinSide = iota
	JoinLeft
	JoinRight
	JoinFull
)

// ColumnSort pairs a sort key (an *Expr in PL, a CId in RQ) with direction.
type ColumnSort[T any] struct {
	Column T
	Desc   bool
}

// Range is an optional-bounded range, used by `take` and slice literals.
type Range struct {
	Start *Expr
	End   *Expr
}

// FrameBoundKind tags a window frame bound.
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
	Offset *Expr // set iff Kind is BoundExprPreceding/Following
}

// FrameKind selects ROWS vs RANGE framing.
type FrameKind int

// Frame kinds.
const (
	FrameRows FrameKind = iota
	FrameRange
)

// WindowFrame describes a window's ROWS/RANGE extent.
type WindowFrame struct {
	Kind  FrameKind
	Start FrameBound
	End   FrameBound
}

// InterpKind tags an interpolated-string item.
type InterpKind int

// Interpolation item kinds.
const (
	InterpString InterpKind = iota
	InterpExpr
)

// InterpItem is one piece of an SString/FString: either verbatim text or an
// embedded expression.
type InterpItem struct {
	Kind InterpKind
	Text string
	Expr *Expr
}

// CaseItem is one `condition => value` branch of a Case expression.
type CaseItem struct {
	Condition *Expr
	Value     *Expr
}

// FuncCallExpr is a function application, named and positional arguments.
type FuncCallExpr struct {
	Name     *Expr // usually KindIdent
	Args     []*Expr
	NamedArgs map[string]*Expr
}

// FuncParam is one parameter of a Func literal.
type FuncParam struct {
	Name    string
	Ty      *ty.Ty
	Default *Expr // for named/optional params
}

// FuncExpr is a function literal (`func x -> x + 1`, or the body of a
// builtin definition).
type FuncExpr struct {
	Params      []FuncParam
	NamedParams []FuncParam
	ReturnTy    *ty.Ty
	Body        *Expr
}

// TransformCall is a resolved call to one of the builtin pipeline
// transforms (spec §3.3, §4.3, §4.4).
type TransformCall struct {
	Input *Expr
	Kind  TransformKind

	// Primary payload, interpreted per Kind:
	//   Derive/Select/Aggregate: a Tuple expr of output columns
	//   Filter:                  a boolean predicate expr
	//   Sort:                    sort keys (mirrored into Sort field below)
	//   Take:                    Range
	//   Join:                    the relation being joined (With) + predicate (JoinFilter)
	//   Group:                   partition tuple + inner pipeline (Input after substitution)
	//   Window:                  inner pipeline
	//   Append:                  the relation being appended
	//   Loop:                    inner pipeline
	Tuple      *Expr
	Predicate  *Expr
	TakeRange  *Range
	With       *Expr
	JoinSide   JoinSide
	JoinFilter *Expr

	// Context threaded by the flattener (spec §4.3).
	Partition []*Expr
	Frame     *WindowFrame
	Sort      []ColumnSort[*Expr]
}

// AllExpr expands to the set of columns in Within's lineage minus Except.
type AllExpr struct {
	Within *Expr
	Except []string
}

// RqOperatorExpr is a bound call to a built-in operator, produced once the
// resolver inlines a function whose body is Internal(name).
type RqOperatorExpr struct {
	Name string
	Args []*Expr
}

// Lineage describes where each output column of a relational expression
// comes from (spec §3.3).
type Lineage struct {
	Columns []LineageColumn
	Inputs  []LineageInput

	// Open marks a relation whose full column set is not statically known
	// (an external table with no declared schema): any bare name is a
	// valid reference to it, vivified on first use. A transform that
	// names its output columns explicitly (select/aggregate/group) closes
	// the lineage; derive/filter/sort/take/join/append/window pass Open
	// through unchanged.
	Open bool
}

// LineageInput names one relational input contributing to a Lineage.
type LineageInput struct {
	ID    uint32
	Name  string
	Table ident.Ident
}

// LineageColumnKind tags LineageColumn's two shapes.
type LineageColumnKind int

// Lineage column kinds.
const (
	LineageSingle LineageColumnKind = iota
	LineageAll
)

// LineageColumn is one output column's provenance.
type LineageColumn struct {
	Kind LineageColumnKind

	// LineageSingle:
	Name       *ident.Ident
	TargetID   uint32
	TargetName *string

	// LineageAll:
	InputName string
	Except    map[string]struct{}
}

// Expr is a single PL expression node. Kind selects the meaningful payload
// field(s); PL-only fields (ID, TargetID, Ty, Lineage, ...) are zero until
// the resolver fills them in.
type Expr struct {
	Kind  ExprKind
	Span  *ident.Span
	Alias *string

	Ident     ident.Ident
	Literal   ident.Literal
	Pipeline  []*Expr
	Tuple     []*Expr
	Array     []*Expr
	Range     *Range
	BinOp     BinOp
	Left      *Expr
	Right     *Expr
	UnOp      UnOp
	Operand   *Expr
	FuncCall  *FuncCallExpr
	Func      *FuncExpr
	SString   []InterpItem
	FString   []InterpItem
	Case      []CaseItem
	Param     string
	Internal  string
	Transform *TransformCall
	RqOp      *RqOperatorExpr
	All       *AllExpr

	// Resolver-assigned (PL only).
	ID          *uint32
	TargetID    *uint32
	TargetIDs   []uint32
	Ty          *ty.Ty
	Lineage     *Lineage
	NeedsWindow bool
	Flatten     bool
}

// IsResolved reports whether the resolver has assigned this node an id.
func (e *Expr) IsResolved() bool { return e != nil && e.ID != nil }

// StmtKind tags the closed set of statement shapes.
type StmtKind int

// Statement kinds.
const (
	KindQueryDef StmtKind = iota
	KindVarDef
	KindTypeDef
	KindModuleDef
)

// VarDefKind distinguishes `let`, `into`, and the implicit main pipeline.
type VarDefKind int

// VarDef kinds.
const (
	VarLet VarDefKind = iota
	VarInto
	VarMain
)

// QueryDef carries the `prql version:... target:...` header (spec §6.2).
type QueryDef struct {
	Version *string
	Target  *string
	Other   map[string]string
}

// VarDefStmt is a `let`/`into`/main-pipeline binding.
type VarDefStmt struct {
	Name  *string
	Value *Expr
	TyExpr *Expr
	Kind  VarDefKind
}

// TypeDefStmt declares a named type alias.
type TypeDefStmt struct {
	Name  string
	Value *Expr
}

// ModuleDefStmt declares a nested module (source file or directory).
type ModuleDefStmt struct {
	Name  string
	Stmts []*Stmt
}

// Stmt is a single top-level or module-level statement.
type Stmt struct {
	Kind        StmtKind
	Span        *ident.Span
	Annotations []*Expr

	QueryDef  *QueryDef
	VarDef    *VarDefStmt
	TypeDef   *TypeDefStmt
	ModuleDef *ModuleDefStmt

	ID *uint32 // resolver-assigned statement id, recorded in RootModule.SpanMap
}
