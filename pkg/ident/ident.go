// Package ident provides the shared primitives used across every stage of
// the compiler: source spans, qualified names, and literal values.
package ident

import (
	"fmt"
	"strconv"
	"strings"
)

// Span locates a range of a single source file. It is immutable and
// follows its owning node through every transformation the compiler
// performs.
type Span struct {
	Start    int
	End      int
	SourceID uint16
}

// String renders the span in its wire form "source_id:start-end".
func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.SourceID, s.Start, s.End)
}

// ParseSpan parses the "source_id:start-end" wire form produced by String.
func ParseSpan(s string) (Span, error) {
	sourcePart, rangePart, ok := strings.Cut(s, ":")
	if !ok {
		return Span{}, fmt.Errorf("ident: malformed span %q", s)
	}
	startPart, endPart, ok := strings.Cut(rangePart, "-")
	if !ok {
		return Span{}, fmt.Errorf("ident: malformed span %q", s)
	}
	sourceID, err := strconv.ParseUint(sourcePart, 10, 16)
	if err != nil {
		return Span{}, fmt.Errorf("ident: malformed span %q: %w", s, err)
	}
	start, err := strconv.Atoi(startPart)
	if err != nil {
		return Span{}, fmt.Errorf("ident: malformed span %q: %w", s, err)
	}
	end, err := strconv.Atoi(endPart)
	if err != nil {
		return Span{}, fmt.Errorf("ident: malformed span %q: %w", s, err)
	}
	return Span{Start: start, End: end, SourceID: uint16(sourceID)}, nil
}

// Ident is a non-empty qualified name: a path of leading components plus a
// trailing name, e.g. `foo.bar.baz` has Path=["foo","bar"] Name="baz".
type Ident struct {
	Path []string
	Name string
}

// FromName builds an unqualified Ident.
func FromName(name string) Ident {
	return Ident{Name: name}
}

// FromPath builds an Ident from a full dotted path, the last element
// becoming Name. Panics if path is empty, mirroring the invariant that an
// Ident is never empty.
func FromPath(path []string) Ident {
	if len(path) == 0 {
		panic("ident: FromPath requires at least one component")
	}
	name := path[len(path)-1]
	rest := make([]string, len(path)-1)
	copy(rest, path[:len(path)-1])
	return Ident{Path: rest, Name: name}
}

// Parts returns the full dotted path including the trailing name.
func (id Ident) Parts() []string {
	out := make([]string, 0, len(id.Path)+1)
	out = append(out, id.Path...)
	out = append(out, id.Name)
	return out
}

// Pop drops the trailing Name, returning the parent Ident and whether one
// exists (false if id was already unqualified).
func (id Ident) Pop() (Ident, bool) {
	if len(id.Path) == 0 {
		return Ident{}, false
	}
	return Ident{Path: id.Path[:len(id.Path)-1], Name: id.Path[len(id.Path)-1]}, true
}

// PopFront removes the first path component, returning it along with the
// remaining Ident (nil if none remains).
func (id Ident) PopFront() (string, *Ident) {
	if len(id.Path) == 0 {
		return id.Name, nil
	}
	first := id.Path[0]
	rest := Ident{Path: append([]string{}, id.Path[1:]...), Name: id.Name}
	return first, &rest
}

// Prepend returns a new Ident with prefix's parts placed before id's own.
func (id Ident) Prepend(prefix Ident) Ident {
	parts := append(prefix.Parts(), id.Parts()...)
	return FromPath(parts)
}

// StartsWith reports whether id's parts begin with prefix's parts.
func (id Ident) StartsWith(prefix Ident) bool {
	pp := prefix.Parts()
	ip := id.Parts()
	if len(pp) > len(ip) {
		return false
	}
	for i, p := range pp {
		if ip[i] != p {
			return false
		}
	}
	return true
}

// String renders the identifier with dot separation, backtick-quoting any
// component that requires it.
func (id Ident) String() string {
	var b strings.Builder
	parts := id.Parts()
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('.')
		}
		writeIdentPart(&b, p)
	}
	return b.String()
}

func writeIdentPart(b *strings.Builder, s string) {
	if needsEscape(s) {
		b.WriteByte('`')
		b.WriteString(s)
		b.WriteByte('`')
		return
	}
	b.WriteString(s)
}

// needsEscape mirrors the original compiler's escaping rule: a part needs
// backtick-quoting if it is empty, starts with anything outside [a-z_$], or
// (when longer than one rune) contains a later rune outside [a-z0-9_].
func needsEscape(s string) bool {
	if s == "" {
		return true
	}
	runes := []rune(s)
	if forbiddenStart(runes[0]) {
		return true
	}
	if len(runes) > 1 {
		for _, r := range runes[1:] {
			if forbiddenSubsequent(r) {
				return true
			}
		}
	}
	return false
}

func forbiddenStart(c rune) bool {
	return !((c >= 'a' && c <= 'z') || c == '_' || c == '$')
}

func forbiddenSubsequent(c rune) bool {
	return !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_')
}

// LiteralKind tags the closed set of literal value shapes.
type LiteralKind int

// Literal kinds.
const (
	LitNull LiteralKind = iota
	LitInteger
	LitFloat
	LitBoolean
	LitString
	LitDate
	LitTime
	LitTimestamp
	LitValueAndUnit
)

// Literal is a compile-time constant value. String/date/time/timestamp
// literals carry their textual form verbatim so that codegen can re-emit it
// without re-deriving dialect-specific formatting.
type Literal struct {
	Kind    LiteralKind
	Int     int64
	Float   float64
	Bool    bool
	Text    string // String/Date/Time/Timestamp textual form
	UnitN   int64  // ValueAndUnit
	UnitStr string // ValueAndUnit
}

// Null is the Literal{} zero value made explicit for readability.
var Null = Literal{Kind: LitNull}

// Integer builds an integer literal.
func Integer(v int64) Literal { return Literal{Kind: LitInteger, Int: v} }

// Float builds a float literal.
func Float(v float64) Literal { return Literal{Kind: LitFloat, Float: v} }

// Boolean builds a boolean literal.
func Boolean(v bool) Literal { return Literal{Kind: LitBoolean, Bool: v} }

// String builds a string literal, storing its text verbatim (unescaped).
func String(v string) Literal { return Literal{Kind: LitString, Text: v} }

// Equal reports whether two literals of the same kind carry the same value.
// Mirrors the original compiler's std.eq/std.ne rule: literals of differing
// kinds are never considered equal by static evaluation (the caller must
// check Kind equality before relying on this for folding).
func (l Literal) Equal(other Literal) bool {
	if l.Kind != other.Kind {
		return false
	}
	switch l.Kind {
	case LitNull:
		return true
	case LitInteger:
		return l.Int == other.Int
	case LitFloat:
		return l.Float == other.Float
	case LitBoolean:
		return l.Bool == other.Bool
	case LitString, LitDate, LitTime, LitTimestamp:
		return l.Text == other.Text
	case LitValueAndUnit:
		return l.UnitN == other.UnitN && l.UnitStr == other.UnitStr
	default:
		return false
	}
}

// String renders a literal's debug form (not SQL syntax; see pkg/sqlgen for
// that).
func (l Literal) String() string {
	switch l.Kind {
	case LitNull:
		return "null"
	case LitInteger:
		return strconv.FormatInt(l.Int, 10)
	case LitFloat:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case LitBoolean:
		return strconv.FormatBool(l.Bool)
	case LitValueAndUnit:
		return fmt.Sprintf("%d%s", l.UnitN, l.UnitStr)
	default:
		return l.Text
	}
}
