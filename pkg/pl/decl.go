package pl

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapsql/pkg/ident"
	"github.com/leapstack-labs/leapsql/pkg/ty"
)

// DeclKind tags the closed set of declaration shapes (spec §3.4).
type DeclKind int

// Declaration kinds.
const (
	DeclExpr DeclKind = iota
	DeclTy
	DeclTableDecl
	DeclModule
	DeclQueryDef
	DeclColumn
	DeclInstanceOf
	DeclParam
	DeclLayeredModules
	DeclInfer
	DeclUnresolved // internal bookkeeping state before resolution
)

// TableDeclInfo is the payload of a DeclTableDecl: a relational variable.
type TableDeclInfo struct {
	Ty   *ty.Ty
	Expr *Expr
}

// ColumnInfo is the payload of a DeclColumn: a bare column placeholder used
// while building a TableDecl's declared schema.
type ColumnInfo struct {
	Name *string
	Ty   *ty.Ty
}

// Decl is a single named thing inside a Module.
type Decl struct {
	Kind DeclKind

	Expr            *Expr
	Ty              *ty.Ty
	TableDecl       *TableDeclInfo
	Module          *Module
	QueryDef        *QueryDef
	Column          *ColumnInfo
	InstanceOf      *uint32
	Param           *string
	LayeredModules  []*Module

	// Pending statement, kept until DeclUnresolved is resolved into one of
	// the kinds above (spec §4.2 step 2: "topological resolution").
	Unresolved *Stmt

	DeclaredAt  *uint32
	Annotations []*Expr
}

// Reserved module names the resolver treats specially (spec §3.4).
const (
	ModStd        = "std"
	ModDefaultDB  = "default_db"
	ModThis       = "this"
	ModThat       = "that"
	ModParam      = "_param"
	ModMain       = "_main"
	ModQueryDef   = "_query_def"
)

// Module is a name-to-Decl map plus redirects consulted on lookup miss.
type Module struct {
	Names     map[string]*Decl
	Redirects []ident.Ident
	Shadowed  *Decl // previous binding of the module's own name, if any
}

// NewModule returns an empty Module.
func NewModule() *Module {
	return &Module{Names: make(map[string]*Decl)}
}

// Get looks up a single direct name in this module (no redirect traversal).
func (m *Module) Get(name string) (*Decl, bool) {
	d, ok := m.Names[name]
	return d, ok
}

// Set inserts or replaces a name in this module.
func (m *Module) Set(name string, d *Decl) {
	m.Names[name] = d
}

// SortedNames returns this module's direct names in lexical order, for
// deterministic iteration (diagnostics, debug dumps).
func (m *Module) SortedNames() []string {
	names := make([]string, 0, len(m.Names))
	for n := range m.Names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RootModule is the resolver's final output: the resolved module tree plus
// a span for every id it allocated.
type RootModule struct {
	Root    *Module
	SpanMap map[uint32]ident.Span
}

// SpanOf returns the span recorded for a given id, if any.
func (rm *RootModule) SpanOf(id uint32) (ident.Span, bool) {
	s, ok := rm.SpanMap[id]
	return s, ok
}

// Lookup resolves a dotted path through nested modules starting at m,
// without following redirects. Used by the resolver once it already knows
// the fully-qualified path to a decl.
func (m *Module) Lookup(path []string) (*Decl, error) {
	cur := m
	for i, part := range path {
		d, ok := cur.Names[part]
		if !ok {
			return nil, fmt.Errorf("not found: %s", part)
		}
		if i == len(path)-1 {
			return d, nil
		}
		if d.Kind != DeclModule {
			return nil, fmt.Errorf("%s is not a module", part)
		}
		cur = d.Module
	}
	return nil, fmt.Errorf("empty path")
}
