package pl

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// SourceTree is the parser's input: a set of named source files plus the
// numeric source ids diagnostics reference (spec §4.1).
type SourceTree struct {
	Sources   map[string]string
	SourceIDs map[uint16]string
	Root      *string
}

// NewSourceTree builds a SourceTree from a single named source, convenient
// for tests and the `compile` one-shot entry point.
func NewSourceTree(path, source string) *SourceTree {
	return &SourceTree{
		Sources:   map[string]string{path: source},
		SourceIDs: map[uint16]string{0: path},
	}
}

// AddSource adds a file and returns its allocated source id.
func (t *SourceTree) AddSource(path, source string) uint16 {
	if t.Sources == nil {
		t.Sources = make(map[string]string)
	}
	if t.SourceIDs == nil {
		t.SourceIDs = make(map[uint16]string)
	}
	t.Sources[path] = source
	id := uint16(len(t.SourceIDs))
	t.SourceIDs[id] = path
	return id
}

// SourceIDFor returns the numeric id assigned to path.
func (t *SourceTree) SourceIDFor(path string) (uint16, bool) {
	for id, p := range t.SourceIDs {
		if p == path {
			return id, true
		}
	}
	return 0, false
}

// sortedPaths returns source paths in deterministic order.
func (t *SourceTree) sortedPaths() []string {
	paths := make([]string, 0, len(t.Sources))
	for p := range t.Sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// RootPath selects the tree's root file per spec §4.1:
//  1. a single source is always root;
//  2. otherwise, the source whose path is empty;
//  3. otherwise, a source whose top-level path component begins with an
//     uppercase letter;
//  4. otherwise, fail.
func (t *SourceTree) RootPath() (string, error) {
	if t.Root != nil {
		return *t.Root, nil
	}
	if len(t.Sources) == 1 {
		for p := range t.Sources {
			return p, nil
		}
	}
	if _, ok := t.Sources[""]; ok {
		return "", nil
	}
	for _, p := range t.sortedPaths() {
		top := p
		if idx := strings.IndexByte(p, '/'); idx >= 0 {
			top = p[:idx]
		}
		if top == "" {
			continue
		}
		first := []rune(top)[0]
		if unicode.IsUpper(first) {
			return p, nil
		}
	}
	return "", fmt.Errorf("pl: cannot determine root module: no single source, no empty path, and no uppercase-leading top-level path among %v", t.sortedPaths())
}
