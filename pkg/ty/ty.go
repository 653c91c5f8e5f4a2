// Package ty implements PRQL's type system (spec §3.6): primitive types,
// tuples, unions, arrays, function types, and the subtype lattice the
// resolver uses for inference and validation.
package ty

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/ident"
)

// Kind tags the closed set of type shapes.
type Kind int

// Type kinds.
const (
	KindAny Kind = iota
	KindIdent
	KindPrimitive
	KindSingleton
	KindUnion
	KindTuple
	KindArray
	KindFunction
	KindDifference
)

// Primitive enumerates scalar primitive types.
type Primitive int

// Primitive values.
const (
	PrimInt Primitive = iota
	PrimFloat
	PrimBool
	PrimText
	PrimDate
	PrimTime
	PrimTimestamp
)

func (p Primitive) String() string {
	switch p {
	case PrimInt:
		return "int"
	case PrimFloat:
		return "float"
	case PrimBool:
		return "bool"
	case PrimText:
		return "text"
	case PrimDate:
		return "date"
	case PrimTime:
		return "time"
	case PrimTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// TupleField is one field of a Tuple type: either a named/typed Single slot
// or a trailing Wildcard matching any further unnamed columns.
type TupleField struct {
	Wildcard bool
	Name     *string // nil for positional/unnamed
	Ty       *Ty     // nil if untyped
}

// UnionCase is a single named option inside a Union type.
type UnionCase struct {
	Name *string
	Ty   Ty
}

// FuncParam describes one parameter of a Function type.
type FuncParam struct {
	Name string
	Ty   *Ty
}

// FuncType describes a function's signature.
type FuncType struct {
	Params   []FuncParam
	NamedTys map[string]*Ty
	Return   *Ty
}

// Ty is a resolved type. Kind selects which payload field is meaningful.
type Ty struct {
	Kind Kind
	Name *string
	Span *ident.Span

	Ident      ident.Ident // KindIdent: unresolved reference (resolved in place)
	Primitive  Primitive   // KindPrimitive
	Singleton  ident.Literal
	Union      []UnionCase
	Tuple      []TupleField
	ArrayOf    *Ty
	Func       *FuncType
	DiffBase   *Ty // KindDifference: base
	DiffExclud *Ty // KindDifference: exclude
}

// Any is the top type.
func Any() Ty { return Ty{Kind: KindAny} }

// Prim builds a primitive type.
func Prim(p Primitive) Ty { return Ty{Kind: KindPrimitive, Primitive: p} }

// Singleton builds a type inhabited by exactly one literal value.
func Singleton(lit ident.Literal) Ty { return Ty{Kind: KindSingleton, Singleton: lit} }

// TupleOf builds a tuple type from fields.
func TupleOf(fields ...TupleField) Ty { return Ty{Kind: KindTuple, Tuple: fields} }

// ArrayOf builds an array (list) type.
func ArrayOf(elem Ty) Ty { return Ty{Kind: KindArray, ArrayOf: &elem} }

// Relation builds the Array(Tuple(fields)) shape used for relational types.
func Relation(fields ...TupleField) Ty {
	tup := TupleOf(fields...)
	return ArrayOf(tup)
}

// IsRelation reports whether t has the Array(Tuple(...)) shape.
func (t Ty) IsRelation() bool {
	return t.Kind == KindArray && t.ArrayOf != nil && t.ArrayOf.Kind == KindTuple
}

// RelationFields returns the tuple fields of a relation type, or nil.
func (t Ty) RelationFields() []TupleField {
	if !t.IsRelation() {
		return nil
	}
	return t.ArrayOf.Tuple
}

// String renders a debug form of the type.
func (t Ty) String() string {
	switch t.Kind {
	case KindAny:
		return "anytype"
	case KindIdent:
		return t.Ident.String()
	case KindPrimitive:
		return t.Primitive.String()
	case KindSingleton:
		return t.Singleton.String()
	case KindUnion:
		parts := make([]string, len(t.Union))
		for i, c := range t.Union {
			if c.Name != nil {
				parts[i] = fmt.Sprintf("%s: %s", *c.Name, c.Ty.String())
			} else {
				parts[i] = c.Ty.String()
			}
		}
		return strings.Join(parts, " | ")
	case KindTuple:
		parts := make([]string, len(t.Tuple))
		for i, f := range t.Tuple {
			if f.Wildcard {
				parts[i] = "*"
				continue
			}
			name := "?"
			if f.Name != nil {
				name = *f.Name
			}
			if f.Ty != nil {
				parts[i] = fmt.Sprintf("%s: %s", name, f.Ty.String())
			} else {
				parts[i] = name
			}
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindArray:
		if t.ArrayOf != nil {
			return "[" + t.ArrayOf.String() + "]"
		}
		return "[]"
	case KindFunction:
		return "func"
	case KindDifference:
		return fmt.Sprintf("%s - %s", t.DiffBase.String(), t.DiffExclud.String())
	default:
		return "?"
	}
}

// IsSubtype reports whether sub is a subtype of super per spec §3.6:
// Any >= Union >= Primitive/Singleton; Union is the least upper bound of
// its cases; Difference expresses A-B; Function subtyping is structural
// and contravariant in parameters.
func IsSubtype(sub, super Ty) bool {
	if super.Kind == KindAny {
		return true
	}
	switch super.Kind {
	case KindUnion:
		for _, c := range super.Union {
			if IsSubtype(sub, c.Ty) {
				return true
			}
		}
		return false
	case KindDifference:
		return IsSubtype(sub, *super.DiffBase) && !IsSubtype(sub, *super.DiffExclud)
	}

	if sub.Kind == KindUnion {
		for _, c := range sub.Union {
			if !IsSubtype(c.Ty, super) {
				return false
			}
		}
		return len(sub.Union) > 0
	}

	switch sub.Kind {
	case KindSingleton:
		if super.Kind == KindSingleton {
			return sub.Singleton.Equal(super.Singleton)
		}
		if super.Kind == KindPrimitive {
			return primitiveOfLiteral(sub.Singleton) == super.Primitive
		}
		return false
	case KindPrimitive:
		return super.Kind == KindPrimitive && sub.Primitive == super.Primitive
	case KindTuple:
		return super.Kind == KindTuple && tupleIsSubtype(sub.Tuple, super.Tuple)
	case KindArray:
		return super.Kind == KindArray && sub.ArrayOf != nil && super.ArrayOf != nil &&
			IsSubtype(*sub.ArrayOf, *super.ArrayOf)
	case KindFunction:
		return super.Kind == KindFunction && functionIsSubtype(sub.Func, super.Func)
	case KindAny:
		return super.Kind == KindAny
	default:
		return false
	}
}

func tupleIsSubtype(sub, super []TupleField) bool {
	// A sub tuple must provide at least the fields super requires, in order,
	// ignoring a trailing wildcard on either side.
	i := 0
	for _, sf := range super {
		if sf.Wildcard {
			return true
		}
		if i >= len(sub) || sub[i].Wildcard {
			return false
		}
		if sf.Ty != nil && sub[i].Ty != nil && !IsSubtype(*sub[i].Ty, *sf.Ty) {
			return false
		}
		i++
	}
	return true
}

func functionIsSubtype(sub, super *FuncType) bool {
	if sub == nil || super == nil {
		return sub == super
	}
	if len(sub.Params) != len(super.Params) {
		return false
	}
	for i := range sub.Params {
		// Contravariant: super's param type must be a subtype of sub's.
		if sub.Params[i].Ty != nil && super.Params[i].Ty != nil &&
			!IsSubtype(*super.Params[i].Ty, *sub.Params[i].Ty) {
			return false
		}
	}
	if sub.Return != nil && super.Return != nil {
		return IsSubtype(*sub.Return, *super.Return)
	}
	return true
}

func primitiveOfLiteral(lit ident.Literal) Primitive {
	switch lit.Kind {
	case ident.LitInteger:
		return PrimInt
	case ident.LitFloat:
		return PrimFloat
	case ident.LitBoolean:
		return PrimBool
	case ident.LitDate:
		return PrimDate
	case ident.LitTime:
		return PrimTime
	case ident.LitTimestamp:
		return PrimTimestamp
	default:
		return PrimText
	}
}

// Union builds the least-upper-bound union of the given types, flattening
// nested unions. Members are kept in order as given; duplicates are not
// removed.
func Union(tys ...Ty) Ty {
	var cases []UnionCase
	for _, t := range tys {
		if t.Kind == KindUnion {
			cases = append(cases, t.Union...)
			continue
		}
		cases = append(cases, UnionCase{Ty: t})
	}
	if len(cases) == 1 {
		return cases[0].Ty
	}
	return Ty{Kind: KindUnion, Union: cases}
}
