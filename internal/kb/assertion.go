// Package kb implements the knowledge base: priority-driven partitions of
// Assertions with subsumption checking and capacity-bounded eviction (spec
// section 4.3).
package kb

import (
	"time"

	"noetic/internal/term"
)

// Kind classifies an assertion's logical shape (spec section 3).
type Kind uint8

const (
	KindGround Kind = iota
	KindUniversal
	KindSkolemized
	KindEquality
	KindNegated
)

func (k Kind) String() string {
	switch k {
	case KindGround:
		return "ground"
	case KindUniversal:
		return "universal"
	case KindSkolemized:
		return "skolemized"
	case KindEquality:
		return "equality"
	case KindNegated:
		return "negated"
	}
	return "unknown"
}

// Well-known partition ids (spec section 6).
const (
	PartitionGlobal      = "global"
	PartitionClientInput = "client-input"
	PartitionUserFeedback = "user-feedback"
	PartitionUIActions   = "ui-actions"
)

// Assertion is a committed fact or rule-head in the knowledge base (spec
// section 3). Assertions are immutable except for the Priority and Active
// fields, which are updated via atomic read-modify-write inside the KB
// (spec section 5, "Shared-resource policy").
type Assertion struct {
	ID             string
	Term           *term.Term
	Kind           Kind
	Oriented       bool // meaningful only when Kind == KindEquality
	SourceID       string
	SourceNoteID   string
	CreatedAt      time.Time
	DerivationDepth int
	Justifications []string
	Partition      string
	QuantifiedVars []string

	priority atomicFloat
	active   atomicBool
}

// Priority returns the current priority (0..1).
func (a *Assertion) Priority() float64 { return a.priority.load() }

// SetPriority sets the priority, clamped to [0, 1].
func (a *Assertion) SetPriority(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	a.priority.store(p)
}

// Boost increases priority by increment, capped at 1.0 (spec section 4.3).
func (a *Assertion) Boost(increment float64) {
	for {
		cur := a.priority.load()
		next := cur + increment
		if next > 1 {
			next = 1
		}
		if a.priority.compareAndSwap(cur, next) {
			return
		}
	}
}

// Decay multiplies priority by (1 - rate) (spec section 4.3 maintenance tick).
func (a *Assertion) Decay(rate float64) {
	for {
		cur := a.priority.load()
		next := cur * (1 - rate)
		if a.priority.compareAndSwap(cur, next) {
			return
		}
	}
}

// Active reports whether the assertion still participates in matching.
func (a *Assertion) Active() bool { return a.active.load() }

// deactivate marks the assertion inactive. Returns false if it was already
// inactive (idempotent, callers use this to avoid double-processing
// retraction cascades).
func (a *Assertion) deactivate() bool {
	return a.active.compareAndSwap(true, false)
}

// IsOrientedEquality reports whether a is a binary equality already oriented
// so weight(lhs) > weight(rhs) (spec section 3, GLOSSARY "Oriented equality").
func (a *Assertion) IsOrientedEquality() bool {
	return a.Kind == KindEquality && a.Oriented
}

// PotentialAssertion is the input to Commit: a candidate not yet admitted to
// the KB (spec section 4.3).
type PotentialAssertion struct {
	Term           *term.Term
	Priority       float64 // if zero, derived from base_priority/(1+weight)
	Justifications []string
	Depth          int
	Partition      string
	SourceID       string
	SourceNoteID   string
	QuantifiedVars []string
}

// classifyKind determines an assertion's Kind from its term shape and
// quantified-variable set, applying the Open Question (a) decision recorded
// in DESIGN.md: universally quantified terms are stored as assertions, not
// converted into rules.
func classifyKind(t *term.Term, quantifiedVars []string) (kind Kind, oriented bool) {
	if op, ok := t.Operator(); ok && op.Name() == "not" {
		return KindNegated, false
	}
	if op, ok := t.Operator(); ok && op.Name() == "=" && t.Arity() == 3 {
		lhs, rhs := t.Children()[1], t.Children()[2]
		return KindEquality, lhs.Weight() > rhs.Weight()
	}
	if len(quantifiedVars) > 0 {
		return KindUniversal, false
	}
	if t.ContainsSkolem() {
		return KindSkolemized, false
	}
	return KindGround, false
}

// orientEquality returns a term with the binary equality's sides swapped so
// that weight(lhs) > weight(rhs) (spec section 4.3 step 2), or t unchanged
// if it is not an equality, already oriented, or not binary.
func orientEquality(t *term.Term) *term.Term {
	op, ok := t.Operator()
	if !ok || op.Name() != "=" || t.Arity() != 3 {
		return t
	}
	children := t.Children()
	lhs, rhs := children[1], children[2]
	if lhs.Weight() > rhs.Weight() {
		return t
	}
	return term.NewList(children[0], rhs, lhs)
}
