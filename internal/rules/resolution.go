package rules

import (
	"noetic/internal/config"
	"noetic/internal/kb"
	"noetic/internal/operators"
	"noetic/internal/subst"
	"noetic/internal/term"
	"noetic/internal/unify"
)

// Solution is one way of satisfying a goal or conjunction: the resulting
// substitution, plus the ids of every KB assertion consulted along the way
// (the eventual justification set for anything derived from it).
type Solution struct {
	Subst    *subst.Substitution
	Premises []string
}

// Resolver performs SLD-style resolution over the knowledge base, the rule
// set, and the operator registry (spec section 4.5). It is shared by the
// forward engine (which starts from a freshly asserted fact) and the query
// engine (which starts from a caller's goal).
type Resolver struct {
	kb    *kb.KB
	ops   *operators.Registry
	rules *RuleSet
	cfg   *config.Config
}

func NewResolver(cfg *config.Config, k *kb.KB, ops *operators.Registry, rs *RuleSet) *Resolver {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Resolver{kb: k, ops: ops, rules: rs, cfg: cfg}
}

// SolveConjunction finds every way to satisfy goals in order, starting from
// base. depth is the current derivation depth, checked against
// config.Rules.DepthLimit to bound recursive rule expansion (spec section
// 4.5, "depth-limited derivation").
func (r *Resolver) SolveConjunction(goals []*term.Term, partition string, base *subst.Substitution, depth int) []Solution {
	if depth > r.cfg.Rules.DepthLimit {
		return nil
	}
	if len(goals) == 0 {
		return []Solution{{Subst: base}}
	}
	first, rest := goals[0], goals[1:]
	var out []Solution
	for _, sol := range r.solveGoal(first, partition, base, depth) {
		for _, tail := range r.SolveConjunction(rest, partition, sol.Subst, depth) {
			out = append(out, Solution{
				Subst:    tail.Subst,
				Premises: append(append([]string(nil), sol.Premises...), tail.Premises...),
			})
		}
	}
	return out
}

func (r *Resolver) solveGoal(goal *term.Term, partition string, base *subst.Substitution, depth int) []Solution {
	resolved := base.Apply(goal)

	if op, ok := resolved.Operator(); ok && r.ops.Has(op.Name()) {
		opFn, _ := r.ops.Lookup(op.Name())
		res := opFn(resolved.Children()[1:], base)
		if !res.Ok {
			return nil
		}
		out := make([]Solution, 0, len(res.Bindings))
		for _, b := range res.Bindings {
			out = append(out, Solution{Subst: b})
		}
		return out
	}

	var out []Solution

	for _, p := range r.partitionsToSearch(partition) {
		for _, a := range r.kb.FindByPattern(p, resolved) {
			bound, ok := unify.Unify(resolved, a.Term)
			if !ok {
				continue
			}
			out = append(out, Solution{
				Subst:    subst.Compose(base, bound),
				Premises: []string{a.ID},
			})
		}
	}

	if depth < r.cfg.Rules.DepthLimit {
		for _, rule := range r.rules.All() {
			if rule.Partition != "" && rule.Partition != partition {
				continue
			}
			bound, ok := unify.Unify(resolved, rule.Consequent)
			if !ok {
				continue
			}
			merged := subst.Compose(base, bound)
			out = append(out, r.SolveConjunction(rule.Antecedent, partition, merged, depth+1)...)
		}
	}

	return out
}

func (r *Resolver) partitionsToSearch(partition string) []string {
	if r.cfg.Rules.ConsultGlobalPartition && partition != kb.PartitionGlobal {
		return []string{partition, kb.PartitionGlobal}
	}
	return []string{partition}
}
