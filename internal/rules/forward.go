package rules

import (
	"noetic/internal/config"
	"noetic/internal/events"
	"noetic/internal/kb"
	"noetic/internal/logging"
	"noetic/internal/term"
	"noetic/internal/tms"
	"noetic/internal/unify"
)

// ForwardEngine reacts to newly asserted facts by deriving and committing
// their consequences under the active rule set (spec section 4.5, "Forward
// chaining"). It is meant to be registered as a bus.Handler for
// events.Asserted.
type ForwardEngine struct {
	kb       *kb.KB
	tms      *tms.TMS
	rules    *RuleSet
	resolver *Resolver
	cfg      *config.Config
}

func NewForwardEngine(cfg *config.Config, k *kb.KB, t *tms.TMS, rs *RuleSet, ops *Resolver) *ForwardEngine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &ForwardEngine{kb: k, tms: t, rules: rs, resolver: ops, cfg: cfg}
}

// HandleAsserted is the bus subscription callback. It is safe to call
// directly in tests without a live bus.
func (f *ForwardEngine) HandleAsserted(e events.Event) {
	if e.Type != events.Asserted {
		return
	}
	newTerm, ok := e.Term.(*term.Term)
	if !ok {
		return
	}
	newAssertion, ok := f.kb.Get(e.Partition, e.AssertionID)
	if !ok || !newAssertion.Active() {
		return
	}
	if newAssertion.DerivationDepth >= f.cfg.Rules.DepthLimit {
		return
	}

	log := logging.Get(logging.CategoryRules)

	for _, rule := range f.rules.All() {
		if rule.Partition != "" && rule.Partition != e.Partition {
			continue
		}
		for i, clause := range rule.Antecedent {
			// Match, not Unify: the clause is the rule's pattern side, the
			// asserted term is the instance side (spec section 4.2, "Matcher
			// ... used by the rule engine's forward chaining").
			base, ok := unify.Match(clause, newTerm)
			if !ok {
				continue
			}
			remaining := withoutIndex(rule.Antecedent, i)
			for _, sol := range f.resolver.SolveConjunction(remaining, e.Partition, base, newAssertion.DerivationDepth+1) {
				consequent := sol.Subst.Apply(rule.Consequent)
				premises := append([]string{newAssertion.ID}, sol.Premises...)
				priority := rule.Priority * f.minPremisePriority(premises)

				result, err := f.kb.Commit(kb.PotentialAssertion{
					Term:           consequent,
					Priority:       priority,
					Justifications: premises,
					Depth:          newAssertion.DerivationDepth + 1,
					Partition:      e.Partition,
					SourceID:       rule.ID,
				})
				if err != nil {
					log.Errorw("forward chaining commit failed", "rule", rule.ID, "err", err)
					continue
				}
				if result.Created {
					f.tms.Justify(result.Assertion.ID, premises)
					f.tms.CheckContradiction(e.Partition, result.Assertion)
					log.Debugw("forward-derived assertion", "rule", rule.ID, "term", consequent.String(), "premises", premises)
				}
			}
		}
	}
}

// minPremisePriority returns the lowest current priority among ids' assertions
// (spec section 4.5: "priority derived from rule priority and the minimum
// premise priority"), so a derived fact can never out-rank its weakest
// premise. Unknown ids are skipped rather than treated as priority zero.
func (f *ForwardEngine) minPremisePriority(ids []string) float64 {
	min := 1.0
	found := false
	for _, id := range ids {
		a, ok := f.kb.GetAny(id)
		if !ok {
			continue
		}
		if p := a.Priority(); !found || p < min {
			min = p
			found = true
		}
	}
	if !found {
		return 1.0
	}
	return min
}

func withoutIndex(clauses []*term.Term, i int) []*term.Term {
	out := make([]*term.Term, 0, len(clauses)-1)
	for j, c := range clauses {
		if j != i {
			out = append(out, c)
		}
	}
	return out
}

