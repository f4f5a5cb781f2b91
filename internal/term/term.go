// Package term implements the KIF-like term algebra described in spec
// section 3 and 4.1: atoms, variables, and lists, immutable and structurally
// hashed, with precomputed weight and variable/skolem flags. Terms are
// exhaustively matched on their kind (spec section 9 "dynamic dispatch over
// term shape") rather than through an inheritance hierarchy, matching the
// teacher's tagged-struct conventions elsewhere in the pack (e.g. gokando's
// Term sum type of *Var/*Atom/*Pair in pkg/minikanren/term_utils.go).
package term

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Kind distinguishes the three term variants.
type Kind uint8

const (
	KindAtom Kind = iota
	KindVariable
	KindList
)

// AtomSubkind distinguishes parser-level flavors of atoms. Semantics beyond
// this are always opaque unless an operator interprets them (spec section 3).
type AtomSubkind uint8

const (
	AtomSymbol AtomSubkind = iota
	AtomString
	AtomNumber
)

// Term is an immutable KIF-like S-expression node: an Atom, a Variable, or a
// List. Equality is structural; every term carries a precomputed weight and
// contains-variable/contains-skolem flag computed once at construction.
type Term struct {
	kind Kind

	// Atom / Variable payload.
	name    string
	subkind AtomSubkind

	// List payload. Empty list is legal (children is non-nil, len 0).
	children []*Term

	weight          int
	hasVariable     bool
	hasSkolem       bool
	id              string
}

// --- Atom interning -------------------------------------------------------

var (
	atomMu    sync.Mutex
	atomTable = make(map[string]*Term)
)

// isSkolemName reports whether an atom name follows the engine's Skolem
// constant convention, a "sk$" prefix.
func isSkolemName(name string) bool {
	return strings.HasPrefix(name, "sk$")
}

// NewAtom returns the canonical (interned) atom for name. One instance per
// name, per spec section 3 "atoms are canonicalized".
func NewAtom(name string) *Term {
	return internAtom(name, AtomSymbol)
}

// NewStringAtom returns the canonical atom for a quoted-string literal.
func NewStringAtom(value string) *Term {
	return internAtom(value, AtomString)
}

// NewNumberAtom returns the canonical atom for a numeric literal, storing
// its canonical decimal text as the name.
func NewNumberAtom(value float64) *Term {
	text := strconv.FormatFloat(value, 'g', -1, 64)
	return internAtom(text, AtomNumber)
}

// NewSkolemAtom returns the canonical atom for a Skolem constant.
func NewSkolemAtom(name string) *Term {
	if !strings.HasPrefix(name, "sk$") {
		name = "sk$" + name
	}
	return internAtom(name, AtomSymbol)
}

func internAtom(name string, sub AtomSubkind) *Term {
	key := string(rune(sub)) + name
	atomMu.Lock()
	defer atomMu.Unlock()
	if t, ok := atomTable[key]; ok {
		return t
	}
	t := &Term{
		kind:    KindAtom,
		name:    name,
		subkind: sub,
		weight:  1,
		hasSkolem: isSkolemName(name),
	}
	t.id = t.computeID()
	atomTable[key] = t
	return t
}

// --- Variables --------------------------------------------------------

// NewVariable returns a variable term. The name is stored without the
// leading '?' (the parser strips it and String adds it back). Variables are
// interned by name, so the same name within one term or rule yields the same
// instance and compares structurally equal.
func NewVariable(name string) *Term {
	atomMu.Lock()
	defer atomMu.Unlock()
	key := "?" + name
	if t, ok := atomTable[key]; ok {
		return t
	}
	t := &Term{
		kind:        KindVariable,
		name:        name,
		weight:      1,
		hasVariable: true,
	}
	t.id = t.computeID()
	atomTable[key] = t
	return t
}

// --- Lists --------------------------------------------------------------

// NewList builds a list term from children (copied defensively). The empty
// list (len(children) == 0) is a legal term.
func NewList(children ...*Term) *Term {
	cs := make([]*Term, len(children))
	copy(cs, children)
	w := 1
	hasVar := false
	hasSk := false
	for _, c := range cs {
		w += c.weight
		hasVar = hasVar || c.hasVariable
		hasSk = hasSk || c.hasSkolem
	}
	t := &Term{
		kind:        KindList,
		children:    cs,
		weight:      w,
		hasVariable: hasVar,
		hasSkolem:   hasSk,
	}
	t.id = t.computeID()
	return t
}

// --- Accessors ------------------------------------------------------------

func (t *Term) Kind() Kind                { return t.kind }
func (t *Term) IsAtom() bool              { return t.kind == KindAtom }
func (t *Term) IsVariable() bool          { return t.kind == KindVariable }
func (t *Term) IsList() bool              { return t.kind == KindList }
func (t *Term) Weight() int               { return t.weight }
func (t *Term) ContainsVariable() bool    { return t.hasVariable }
func (t *Term) ContainsSkolem() bool      { return t.hasSkolem }
func (t *Term) ID() string                { return t.id }

// Name returns the atom or variable name. Panics if called on a list; callers
// should check Kind first (exhaustive switch, spec section 9).
func (t *Term) Name() string {
	if t.kind == KindList {
		panic("term: Name called on a list term")
	}
	return t.name
}

// AtomSubkind returns the atom subkind. Only meaningful when IsAtom().
func (t *Term) AtomSubkind() AtomSubkind { return t.subkind }

// Children returns the list's children (not a copy; terms are immutable so
// this is safe to share).
func (t *Term) Children() []*Term {
	if t.kind != KindList {
		return nil
	}
	return t.children
}

// Arity returns len(Children()), or 0 for non-lists.
func (t *Term) Arity() int { return len(t.children) }

// Operator returns the first element of a non-empty list when it is an atom
// (the conventional predicate position), and true. Otherwise returns nil,
// false.
func (t *Term) Operator() (*Term, bool) {
	if t.kind != KindList || len(t.children) == 0 {
		return nil, false
	}
	head := t.children[0]
	if head.kind != KindAtom {
		return nil, false
	}
	return head, true
}

// IsSkolemName reports whether name follows the Skolem naming convention.
func IsSkolemName(name string) bool { return isSkolemName(name) }

// --- Equality / identity ---------------------------------------------------

// Equal reports structural equality. Because atoms/variables are interned by
// name and lists are compared by recursively-equal children, pointer
// equality is sufficient for atoms/variables but lists are compared
// structurally (two distinct List() calls with the same children are
// pointer-distinct but Equal).
func (t *Term) Equal(o *Term) bool {
	if t == o {
		return true
	}
	if o == nil || t.kind != o.kind {
		return false
	}
	switch t.kind {
	case KindAtom:
		return t.subkind == o.subkind && t.name == o.name
	case KindVariable:
		return t.name == o.name
	case KindList:
		if len(t.children) != len(o.children) {
			return false
		}
		for i, c := range t.children {
			if !c.Equal(o.children[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// computeID derives a structural id string used as a storage key, per
// spec section 3 "identifiers for storage are derived from structural id
// strings".
func (t *Term) computeID() string {
	var b strings.Builder
	t.writeID(&b)
	return b.String()
}

func (t *Term) writeID(b *strings.Builder) {
	switch t.kind {
	case KindAtom:
		switch t.subkind {
		case AtomString:
			b.WriteByte('"')
			b.WriteString(t.name)
			b.WriteByte('"')
		default:
			b.WriteString(t.name)
		}
	case KindVariable:
		b.WriteByte('?')
		b.WriteString(t.name)
	case KindList:
		b.WriteByte('(')
		for i, c := range t.children {
			if i > 0 {
				b.WriteByte(' ')
			}
			c.writeID(b)
		}
		b.WriteByte(')')
	}
}

// String renders the term back to KIF-like surface syntax. Parse(String(t))
// round-trips for well-formed terms (spec section 8 "round-trip/idempotence").
func (t *Term) String() string {
	switch t.kind {
	case KindAtom:
		if t.subkind == AtomString {
			return fmt.Sprintf("%q", t.name)
		}
		return t.name
	case KindVariable:
		return "?" + t.name
	case KindList:
		parts := make([]string, len(t.children))
		for i, c := range t.children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
	return "<invalid term>"
}
