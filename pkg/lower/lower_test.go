package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapsql/pkg/ident"
	"github.com/leapstack-labs/leapsql/pkg/pl"
	"github.com/leapstack-labs/leapsql/pkg/rq"
)

// fromEmployees builds the resolved `from employees` base relation a
// resolver would hand to the lowerer.
func fromEmployees() *pl.Expr {
	baseID := uint32(7)
	return &pl.Expr{
		Kind:  pl.KindIdent,
		Ident: ident.FromName("employees"),
		Lineage: &pl.Lineage{
			Open:   true,
			Inputs: []pl.LineageInput{{ID: baseID, Name: "employees", Table: ident.FromName("employees")}},
		},
	}
}

func identExprWithTarget(name string, baseID uint32) *pl.Expr {
	tid := pl.ColumnID(baseID, name)
	return &pl.Expr{Kind: pl.KindIdent, Ident: ident.FromName(name), TargetID: &tid}
}

func TestLowerSelectBareColumns(t *testing.T) {
	from := fromEmployees()
	baseID := from.Lineage.Inputs[0].ID

	sel := &pl.Expr{
		Kind: pl.KindTransformCall,
		Transform: &pl.TransformCall{
			Input: from,
			Kind:  pl.TSelect,
			Tuple: &pl.Expr{
				Kind: pl.KindTuple,
				Tuple: []*pl.Expr{
					identExprWithTarget("name", baseID),
					identExprWithTarget("salary", baseID),
				},
			},
		},
	}

	q, errs := Lower(sel, rq.QueryDef{})
	require.Nil(t, errs)
	require.NotNil(t, q)

	require.Len(t, q.Tables, 1)
	assert.Equal(t, rq.TableFromExternal, q.Tables[0].Kind)
	assert.Equal(t, "employees", q.Tables[0].Name)

	require.Len(t, q.Relation.Transforms, 2)
	assert.Equal(t, rq.TFrom, q.Relation.Transforms[0].Kind)
	assert.Equal(t, rq.TSelect, q.Relation.Transforms[1].Kind)
	assert.Len(t, q.Relation.Transforms[1].Select, 2)
	assert.Len(t, q.Relation.Columns, 2)
	assert.False(t, q.Relation.Open)
}

func TestLowerDeriveThenFilter(t *testing.T) {
	from := fromEmployees()
	baseID := from.Lineage.Inputs[0].ID

	salary := identExprWithTarget("salary", baseID)
	bonus := &pl.Expr{
		Kind:  pl.KindBinary,
		Alias: strPtr("bonus"),
		BinOp: pl.OpMul,
		Left:  salary,
		Right: &pl.Expr{Kind: pl.KindLiteral, Literal: ident.Float(0.1)},
	}
	derive := &pl.Expr{
		Kind: pl.KindTransformCall,
		Transform: &pl.TransformCall{
			Input: from,
			Kind:  pl.TDerive,
			Tuple: &pl.Expr{Kind: pl.KindTuple, Tuple: []*pl.Expr{bonus}},
		},
	}
	filter := &pl.Expr{
		Kind: pl.KindTransformCall,
		Transform: &pl.TransformCall{
			Input: derive,
			Kind:  pl.TFilter,
			Predicate: &pl.Expr{
				Kind:  pl.KindBinary,
				BinOp: pl.OpGt,
				Left:  identExprWithTarget("salary", baseID),
				Right: &pl.Expr{Kind: pl.KindLiteral, Literal: ident.Integer(1000)},
			},
		},
	}

	q, errs := Lower(filter, rq.QueryDef{})
	require.Nil(t, errs)
	require.NotNil(t, q)

	require.Len(t, q.Relation.Transforms, 3)
	assert.Equal(t, rq.TFrom, q.Relation.Transforms[0].Kind)
	assert.Equal(t, rq.TCompute, q.Relation.Transforms[1].Kind)
	assert.Equal(t, rq.TFilter, q.Relation.Transforms[2].Kind)

	compute := q.Relation.Transforms[1].Compute
	require.NotNil(t, compute)
	assert.Equal(t, rq.EOperator, compute.Expr.Kind)
	assert.Equal(t, "std.mul", compute.Expr.Operator.Name)

	filterExpr := q.Relation.Transforms[2].Filter
	assert.Equal(t, rq.EOperator, filterExpr.Kind)
	assert.Equal(t, "std.gt", filterExpr.Operator.Name)

	// The `salary` reference inside the filter resolves to the same CId
	// minted while lowering the derive's bonus expression.
	salaryCIDInDerive := compute.Expr.Operator.Args[0].ColumnRef
	salaryCIDInFilter := filterExpr.Operator.Args[0].ColumnRef
	assert.Equal(t, salaryCIDInDerive, salaryCIDInFilter)
}

func TestLowerJoinMaterializesWithSide(t *testing.T) {
	left := fromEmployees()
	right := &pl.Expr{
		Kind:  pl.KindIdent,
		Ident: ident.FromName("departments"),
		Lineage: &pl.Lineage{
			Open:   true,
			Inputs: []pl.LineageInput{{ID: 99, Name: "departments", Table: ident.FromName("departments")}},
		},
	}
	join := &pl.Expr{
		Kind: pl.KindTransformCall,
		Transform: &pl.TransformCall{
			Input:    left,
			Kind:     pl.TJoin,
			With:     right,
			JoinSide: pl.JoinLeft,
		},
	}

	q, errs := Lower(join, rq.QueryDef{})
	require.Nil(t, errs)
	require.NotNil(t, q)

	require.Len(t, q.Tables, 2)
	require.Len(t, q.Relation.Transforms, 2)
	joinT := q.Relation.Transforms[1]
	assert.Equal(t, rq.TJoin, joinT.Kind)
	assert.Equal(t, rq.JoinLeft, joinT.Join.Side)
	assert.Equal(t, q.Tables[1].ID, joinT.Join.With)
	// No join predicate given: defaults to a literal-true cross condition.
	assert.Equal(t, rq.ELiteral, joinT.Join.Filter.Kind)
	assert.True(t, joinT.Join.Filter.Literal.Bool)
}

// TestLowerFromSeedsWildcardColumn confirms a bare `from t`'s relState
// carries an explicit Wildcard RelationColumn rather than relying solely on
// Relation.Open/OpenTables, so a later `derive` can append to it instead of
// clobbering it (spec §3.5's closed RelationColumn sum).
func TestLowerFromSeedsWildcardColumn(t *testing.T) {
	from := fromEmployees()

	q, errs := Lower(from, rq.QueryDef{})
	require.Nil(t, errs)
	require.NotNil(t, q)

	require.Len(t, q.Relation.Columns, 1)
	assert.Equal(t, rq.ColWildcard, q.Relation.Columns[0].Kind)
	assert.True(t, q.Relation.Open)
}

// TestLowerDeriveKeepsWildcardAlongsideComputedColumn exercises the review
// fix to finalize()/lowerFromTable: a `derive` on an unnarrowed relation
// must not drop the relation's wildcard just because it also appended an
// explicit column.
func TestLowerDeriveKeepsWildcardAlongsideComputedColumn(t *testing.T) {
	from := fromEmployees()
	baseID := from.Lineage.Inputs[0].ID

	bonus := &pl.Expr{
		Kind:  pl.KindBinary,
		Alias: strPtr("bonus"),
		BinOp: pl.OpMul,
		Left:  identExprWithTarget("salary", baseID),
		Right: &pl.Expr{Kind: pl.KindLiteral, Literal: ident.Float(0.1)},
	}
	derive := &pl.Expr{
		Kind: pl.KindTransformCall,
		Transform: &pl.TransformCall{
			Input: from,
			Kind:  pl.TDerive,
			Tuple: &pl.Expr{Kind: pl.KindTuple, Tuple: []*pl.Expr{bonus}},
		},
	}

	q, errs := Lower(derive, rq.QueryDef{})
	require.Nil(t, errs)
	require.NotNil(t, q)

	require.Len(t, q.Relation.Columns, 2)
	assert.Equal(t, rq.ColWildcard, q.Relation.Columns[0].Kind)
	assert.Equal(t, "bonus", q.Relation.Columns[1].Name)
	assert.True(t, q.Relation.Open)
}

// TestLowerSelectExcludeTuple exercises `select !{ssn}` (spec §3.3/§4.2 step
// 3's `All{within, except}`): the resolved `!{...}` lowers to a single
// Wildcard RelationColumn whose Except list names the excluded column's CId.
func TestLowerSelectExcludeTuple(t *testing.T) {
	from := fromEmployees()
	baseID := from.Lineage.Inputs[0].ID

	allItem := &pl.Expr{
		Kind: pl.KindAll,
		All: &pl.AllExpr{
			Within: identExprWithTarget("employees", baseID), // TargetID carries the base relation id below
			Except: []string{"ssn"},
		},
	}
	// The resolver always targets the relation itself, whose TargetID is the
	// bare Lineage.Inputs[0].ID, not a per-column id.
	withinID := baseID
	allItem.All.Within.TargetID = &withinID

	sel := &pl.Expr{
		Kind: pl.KindTransformCall,
		Transform: &pl.TransformCall{
			Input: from,
			Kind:  pl.TSelect,
			Tuple: allItem,
		},
	}

	q, errs := Lower(sel, rq.QueryDef{})
	require.Nil(t, errs)
	require.NotNil(t, q)

	require.Len(t, q.Relation.Columns, 1)
	col := q.Relation.Columns[0]
	assert.Equal(t, rq.ColWildcard, col.Kind)
	require.Len(t, col.Except, 1)

	require.Len(t, q.Tables, 1)
	var found bool
	for _, c := range q.Tables[0].Columns {
		if c.ID == col.Except[0] {
			assert.Equal(t, "ssn", c.Name)
			found = true
		}
	}
	assert.True(t, found, "excepted column must be vivified onto the extern table so sqlgen can resolve its name")
}

func strPtr(s string) *string { return &s }
