package pl

import "github.com/leapstack-labs/leapsql/pkg/ident"

// Static evaluation folds a handful of algebraic laws the original
// compiler applies eagerly during resolution (its static_analysis module):
// boolean short-circuiting, literal arithmetic/comparison, coalesce on a
// known-non-null left side, and Case branch pruning when a condition is a
// literal. None of this is required for correctness; it keeps generated
// SQL free of `WHERE true AND ...` noise the way the original does.

// StaticEvalBinary folds e if both operands are literals (or one side of
// and/or/coalesce already determines the result).
func StaticEvalBinary(e *Expr) *Expr {
	if e.Kind != KindBinary {
		return e
	}
	switch e.BinOp {
	case OpAnd:
		if isBoolLiteral(e.Left, false) || isBoolLiteral(e.Right, false) {
			return boolLit(e.Span, false)
		}
		if isBoolLiteral(e.Left, true) {
			return e.Right
		}
		if isBoolLiteral(e.Right, true) {
			return e.Left
		}
	case OpOr:
		if isBoolLiteral(e.Left, true) || isBoolLiteral(e.Right, true) {
			return boolLit(e.Span, true)
		}
		if isBoolLiteral(e.Left, false) {
			return e.Right
		}
		if isBoolLiteral(e.Right, false) {
			return e.Left
		}
	case OpCoalesce:
		if e.Left != nil && e.Left.Kind == KindLiteral && e.Left.Literal.Kind != ident.LitNull {
			return e.Left
		}
		if e.Left != nil && e.Left.Kind == KindLiteral && e.Left.Literal.Kind == ident.LitNull {
			return e.Right
		}
	case OpEq, OpNe:
		if e.Left == nil {
			return e // join shorthand, nothing to fold
		}
		if e.Left.Kind == KindLiteral && e.Right.Kind == KindLiteral {
			eq := e.Left.Literal.Kind == e.Right.Literal.Kind && e.Left.Literal.Equal(e.Right.Literal)
			if e.BinOp == OpNe {
				eq = !eq
			}
			return boolLit(e.Span, eq)
		}
	case OpAdd, OpSub, OpMul, OpDiv:
		if n, ok := foldIntArith(e); ok {
			return n
		}
	}
	return e
}

// StaticEvalUnary folds `not` of a literal boolean and double negation.
func StaticEvalUnary(e *Expr) *Expr {
	if e.Kind != KindUnary {
		return e
	}
	switch e.UnOp {
	case OpNot:
		if e.Operand.Kind == KindLiteral && e.Operand.Literal.Kind == ident.LitBoolean {
			return boolLit(e.Span, !e.Operand.Literal.Bool)
		}
		if e.Operand.Kind == KindUnary && e.Operand.UnOp == OpNot {
			return e.Operand.Operand
		}
	case OpNeg:
		if e.Operand.Kind == KindLiteral {
			switch e.Operand.Literal.Kind {
			case ident.LitInteger:
				return &Expr{Kind: KindLiteral, Literal: ident.Integer(-e.Operand.Literal.Int), Span: e.Span}
			case ident.LitFloat:
				return &Expr{Kind: KindLiteral, Literal: ident.Float(-e.Operand.Literal.Float), Span: e.Span}
			}
		}
	}
	return e
}

// StaticEvalCase prunes branches whose condition is a literal: a literal
// `false` branch is dropped, and a literal `true` branch short-circuits
// every branch after it (it becomes the final, unconditional value). A case
// with no branch left folds to a null literal.
func StaticEvalCase(e *Expr) *Expr {
	if e.Kind != KindCase {
		return e
	}
	var kept []CaseItem
	for _, item := range e.Case {
		if isBoolLiteral(item.Condition, false) {
			continue
		}
		kept = append(kept, item)
		if isBoolLiteral(item.Condition, true) {
			break
		}
	}
	e.Case = kept
	if len(kept) == 0 {
		return &Expr{Kind: KindLiteral, Literal: ident.Null, Span: e.Span}
	}
	if len(kept) == 1 && isBoolLiteral(kept[0].Condition, true) {
		return kept[0].Value
	}
	return e
}

func isBoolLiteral(e *Expr, want bool) bool {
	return e != nil && e.Kind == KindLiteral && e.Literal.Kind == ident.LitBoolean && e.Literal.Bool == want
}

func boolLit(span *ident.Span, v bool) *Expr {
	return &Expr{Kind: KindLiteral, Literal: ident.Boolean(v), Span: span}
}

func foldIntArith(e *Expr) (*Expr, bool) {
	if e.Left == nil || e.Right == nil {
		return nil, false
	}
	if e.Left.Kind != KindLiteral || e.Right.Kind != KindLiteral {
		return nil, false
	}
	if e.Left.Literal.Kind != ident.LitInteger || e.Right.Literal.Kind != ident.LitInteger {
		return nil, false
	}
	a, b := e.Left.Literal.Int, e.Right.Literal.Int
	var r int64
	switch e.BinOp {
	case OpAdd:
		r = a + b
	case OpSub:
		r = a - b
	case OpMul:
		r = a * b
	case OpDiv:
		if b == 0 {
			return nil, false
		}
		r = a / b
	}
	return &Expr{Kind: KindLiteral, Literal: ident.Integer(r), Span: e.Span}, true
}
