// Package rules implements forward and backward chaining over the
// knowledge base (spec section 4.5): a forward engine that reacts to newly
// asserted facts by deriving and committing consequences, and a query
// engine performing SLD-style backward resolution for ASK_BINDINGS,
// ASK_TRUE_FALSE, and ACHIEVE_GOAL requests.
package rules

import (
	"noetic/internal/term"
)

// Rule is a stored implication (spec section 3, "Rule"). Equivalence rules
// (⇔) are represented as two Rule values sharing SourceForm, so retracting
// the source form removes both directions (Open Question (b) resolution,
// recorded in DESIGN.md).
type Rule struct {
	ID           string
	SourceForm   string // shared by both halves of an ⇔ rule; equal to ID for a plain ⇒ rule
	Priority     float64
	Antecedent   []*term.Term
	Consequent   *term.Term
	FreeVars     []string
	SourceNoteID string
	Partition    string
}

// FromImplication builds a single Rule from a parsed "(⇒ antecedent
// consequent)" or "(⇒ (and c1 c2 ...) consequent)" term.
func FromImplication(id string, t *term.Term, partition string) (*Rule, bool) {
	op, ok := t.Operator()
	if !ok || op.Name() != "⇒" || t.Arity() != 3 {
		return nil, false
	}
	children := t.Children()
	return &Rule{
		ID:         id,
		SourceForm: id,
		Antecedent: clauses(children[1]),
		Consequent: children[2],
		FreeVars:   freeVariables(t),
		Partition:  partition,
	}, true
}

// FromEquivalence builds the two directional Rules for a parsed
// "(⇔ a b)" term, both sharing sourceForm.
func FromEquivalence(sourceForm string, t *term.Term, partition string) ([]*Rule, bool) {
	op, ok := t.Operator()
	if !ok || op.Name() != "⇔" || t.Arity() != 3 {
		return nil, false
	}
	children := t.Children()
	a, b := children[1], children[2]
	fv := freeVariables(t)
	return []*Rule{
		{ID: sourceForm + "#fwd", SourceForm: sourceForm, Antecedent: clauses(a), Consequent: b, FreeVars: fv, Partition: partition},
		{ID: sourceForm + "#bwd", SourceForm: sourceForm, Antecedent: clauses(b), Consequent: a, FreeVars: fv, Partition: partition},
	}, true
}

// clauses flattens a "(and c1 c2 ...)" antecedent into its conjuncts, or
// returns a single-element slice if the antecedent is already atomic.
func clauses(t *term.Term) []*term.Term {
	if op, ok := t.Operator(); ok && op.Name() == "and" {
		return t.Children()[1:]
	}
	return []*term.Term{t}
}

// freeVariables collects the distinct variable names appearing anywhere in t.
func freeVariables(t *term.Term) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(*term.Term)
	walk = func(n *term.Term) {
		if n.IsVariable() {
			if !seen[n.Name()] {
				seen[n.Name()] = true
				out = append(out, n.Name())
			}
			return
		}
		if n.IsList() {
			for _, c := range n.Children() {
				walk(c)
			}
		}
	}
	walk(t)
	return out
}
