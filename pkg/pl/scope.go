package pl

import "github.com/leapstack-labs/leapsql/pkg/ident"

// Scope is the resolver's ambient name stack (spec §4.2 step 4): column
// names visible from the relation currently being built, plus the
// reserved `this`/`that` relation aliases used inside join conditions and
// window specs. Frames are pushed for each nested transform body and
// popped once that body's expressions are resolved.
type Scope struct {
	frames []*scopeFrame
}

type scopeFrame struct {
	columns map[string]*Expr // bare column name -> a resolved column-ref Expr
	this    *Expr            // KindAll-ish handle to "this" relation, set inside joins
	that    *Expr            // previous relation, set inside joins
	open    bool             // true for an external table with no declared schema
	baseID  uint32           // the open relation's LineageInput id, folded into vivified column ids
	lineage *Lineage         // the relation this frame was pushed for, for resolving `!{...}`
}

// NewScope returns an empty Scope.
func NewScope() *Scope { return &Scope{} }

// Push opens a new frame seeded with the visible columns of a relation's
// Lineage (its most specific meaning: "what bare names mean right now").
func (s *Scope) Push(lineage *Lineage) {
	f := &scopeFrame{columns: map[string]*Expr{}, lineage: lineage}
	if lineage != nil {
		f.open = lineage.Open
		if lineage.Open && len(lineage.Inputs) > 0 {
			f.baseID = lineage.Inputs[0].ID
		}
		for _, c := range lineage.Columns {
			if c.Kind == LineageSingle && c.Name != nil {
				f.columns[c.Name.Name] = &Expr{Kind: KindIdent, Ident: *c.Name, TargetID: idPtr(c.TargetID)}
			}
		}
	}
	s.frames = append(s.frames, f)
}

// PushEmpty opens a frame with no columns, used for function bodies whose
// parameters are bound individually via Bind.
func (s *Scope) PushEmpty() {
	s.frames = append(s.frames, &scopeFrame{columns: map[string]*Expr{}})
}

// Pop closes the innermost frame.
func (s *Scope) Pop() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Bind introduces name into the innermost frame, shadowing any outer
// binding of the same name (function parameters, `let` locals).
func (s *Scope) Bind(name string, value *Expr) {
	if len(s.frames) == 0 {
		s.PushEmpty()
	}
	s.frames[len(s.frames)-1].columns[name] = value
}

// SetJoinAliases records the `this`/`that` relation handles visible inside
// the innermost frame, used while resolving a join predicate.
func (s *Scope) SetJoinAliases(this, that *Expr) {
	if len(s.frames) == 0 {
		s.PushEmpty()
	}
	f := s.frames[len(s.frames)-1]
	f.this, f.that = this, that
}

// CurrentLineage returns the Lineage the innermost frame was pushed for
// (the relation whose columns `!{...}` expands against), or nil outside
// any transform body.
func (s *Scope) CurrentLineage() *Lineage {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1].lineage
}

// Lookup resolves a bare name from the innermost frame outward.
func (s *Scope) Lookup(name string) (*Expr, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		switch name {
		case ModThis:
			if s.frames[i].this != nil {
				return s.frames[i].this, true
			}
		case ModThat:
			if s.frames[i].that != nil {
				return s.frames[i].that, true
			}
		}
		if e, ok := s.frames[i].columns[name]; ok {
			return e, true
		}
		if s.frames[i].open {
			e := &Expr{Kind: KindIdent, Ident: ident.FromName(name), TargetID: idPtr(ColumnID(s.frames[i].baseID, name))}
			s.frames[i].columns[name] = e
			return e, true
		}
	}
	return nil, false
}

func idPtr(v uint32) *uint32 { return &v }
