package cognition

import "noetic/internal/term"

// TermKind classifies a top-level parsed term for the `add` command (spec
// section 2's data flow: "InputPlugin classifies term as rule/assertion/
// query").
type TermKind int

const (
	KindAssertion TermKind = iota
	KindImplication
	KindEquivalence
)

// Classify inspects t's operator to decide how Add should ingest it.
func Classify(t *term.Term) TermKind {
	if op, ok := t.Operator(); ok {
		switch op.Name() {
		case "⇒":
			return KindImplication
		case "⇔":
			return KindEquivalence
		}
	}
	return KindAssertion
}
