// Package errors implements the compiler's cross-cutting diagnostic model
// (spec §4.6, §7): a single Error type carrying a span, a structured
// Reason, hints, and an optional stable code, collected into an Errors
// list rather than short-circuiting on the first failure where recovery
// is possible. Grounded on the teacher's pkg/parser/errors.go
// (ParseError/LexError shaping) and the original Rust source's
// crates/prql-ast/src/error.rs.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/ident"
)

// Kind classifies a diagnostic's severity (spec §4.6).
type Kind int

// Diagnostic kinds.
const (
	KindError Kind = iota
	KindWarning
	KindLint
)

func (k Kind) String() string {
	switch k {
	case KindWarning:
		return "Warning"
	case KindLint:
		return "Lint"
	default:
		return "Error"
	}
}

// ReasonKind tags Reason's closed set of shapes.
type ReasonKind int

// Reason kinds.
const (
	ReasonSimple ReasonKind = iota
	ReasonExpected
	ReasonUnexpected
	ReasonNotFound
	ReasonBug
)

// Reason is the structured payload of an Error (spec §4.6).
type Reason struct {
	Kind ReasonKind

	// ReasonSimple
	Message string

	// ReasonExpected / ReasonUnexpected
	Who      string // optional, e.g. the parameter name
	Expected []string
	Found    string

	// ReasonNotFound
	Name      string
	Namespace string

	// ReasonBug
	Issue   string
	Details string
}

// Simple builds a plain-message Reason.
func Simple(msg string) Reason { return Reason{Kind: ReasonSimple, Message: msg} }

// Expected builds a "expected X, but found Y" Reason (spec §7's
// name-resolution and type-checking diagnostics), sorting the expected set
// for deterministic, reproducible output.
func Expected(who string, expected []string, found string) Reason {
	sorted := append([]string(nil), expected...)
	sort.Strings(sorted)
	return Reason{Kind: ReasonExpected, Who: who, Expected: sorted, Found: found}
}

// Unexpected builds an "unexpected Y" Reason.
func Unexpected(found string) Reason { return Reason{Kind: ReasonUnexpected, Found: found} }

// NotFound builds an "Unknown name" style Reason (spec §4.2, §8.3 S5).
func NotFound(name, namespace string) Reason {
	return Reason{Kind: ReasonNotFound, Name: name, Namespace: namespace}
}

// Bug builds an internal-invariant-violation Reason.
func Bug(issue, details string) Reason { return Reason{Kind: ReasonBug, Issue: issue, Details: details} }

func (r Reason) String() string {
	switch r.Kind {
	case ReasonExpected:
		return fmt.Sprintf("expected %s, but found %s", joinExpected(r.Expected), orEOI(r.Found))
	case ReasonUnexpected:
		return fmt.Sprintf("unexpected %s", orEOI(r.Found))
	case ReasonNotFound:
		if r.Namespace != "" {
			return fmt.Sprintf("Unknown name %s in %s", r.Name, r.Namespace)
		}
		return fmt.Sprintf("Unknown name %s", r.Name)
	case ReasonBug:
		if r.Issue != "" {
			return fmt.Sprintf("internal error (see %s): %s", r.Issue, r.Details)
		}
		return fmt.Sprintf("internal error: %s", r.Details)
	default:
		return r.Message
	}
}

func orEOI(s string) string {
	if s == "" {
		return "end of input"
	}
	return s
}

// joinExpected renders a sorted expected-token list as "a", "a or b", or
// "one of a, b or c" (the original compiler's exact phrasing, per
// SPEC_FULL.md's supplemented parser-error-shaping note).
func joinExpected(expected []string) string {
	switch len(expected) {
	case 0:
		return ""
	case 1:
		return expected[0]
	case 2:
		return expected[0] + " or " + expected[1]
	default:
		last := expected[len(expected)-1]
		rest := expected[:len(expected)-1]
		return "one of " + strings.Join(rest, ", ") + " or " + last
	}
}

// Error is a single diagnostic: a Reason located at a Span, with hints and
// an optional stable code for tooling (spec §4.6).
type Error struct {
	Kind   Kind
	Span   *ident.Span
	Reason Reason
	Hints  []string
	Code   string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Reason.String())
	if e.Span != nil {
		fmt.Fprintf(&b, " (%s)", e.Span.String())
	}
	for _, h := range e.Hints {
		fmt.Fprintf(&b, "\n  hint: %s", h)
	}
	return b.String()
}

// WithHint returns a copy of e with an additional hint appended.
func (e *Error) WithHint(hint string) *Error {
	out := *e
	out.Hints = append(append([]string{}, e.Hints...), hint)
	return &out
}

// New builds a KindError Error from a Reason.
func New(span *ident.Span, reason Reason) *Error {
	return &Error{Kind: KindError, Span: span, Reason: reason}
}

// Simplef builds a KindError Error with a formatted simple message.
func Simplef(span *ident.Span, format string, args ...any) *Error {
	return New(span, Simple(fmt.Sprintf(format, args...)))
}

// Errors is a non-empty collection of Error, the standard return value of
// every fallible compiler-stage operation (spec §4.6: "errors compose into
// Errors([Error])").
type Errors struct {
	Items []*Error
}

// Error implements the error interface by rendering every item.
func (es *Errors) Error() string {
	if es == nil || len(es.Items) == 0 {
		return "no errors"
	}
	parts := make([]string, len(es.Items))
	for i, e := range es.Items {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "\n")
}

// Add appends one or more Errors, allocating the receiver if nil.
func (es *Errors) Add(errs ...*Error) *Errors {
	if es == nil {
		es = &Errors{}
	}
	es.Items = append(es.Items, errs...)
	return es
}

// HasErrors reports whether any item is KindError (Warning/Lint items
// alone don't fail compilation per spec §7's exit-code rule).
func (es *Errors) HasErrors() bool {
	if es == nil {
		return false
	}
	for _, e := range es.Items {
		if e.Kind == KindError {
			return true
		}
	}
	return false
}

// FromErr wraps a plain Go error (e.g. from the lexer/parser) as a single
// Errors, preserving its message as a Simple reason.
func FromErr(err error) *Errors {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*Errors); ok {
		return existing
	}
	if single, ok := err.(*Error); ok {
		return &Errors{Items: []*Error{single}}
	}
	return &Errors{Items: []*Error{Simplef(nil, "%s", err.Error())}}
}
