package rules

import (
	"sort"
	"sync"
)

// RuleSet is the mutable store of active rules, shared by the forward and
// backward engines.
type RuleSet struct {
	mu    sync.RWMutex
	byID  map[string]*Rule
	bySrc map[string][]string // SourceForm -> rule ids, for retract-by-form
}

func NewRuleSet() *RuleSet {
	return &RuleSet{
		byID:  make(map[string]*Rule),
		bySrc: make(map[string][]string),
	}
}

// Add registers rules (one for a plain implication, two for an
// equivalence), all sharing a SourceForm.
func (rs *RuleSet) Add(rules ...*Rule) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, r := range rules {
		rs.byID[r.ID] = r
		rs.bySrc[r.SourceForm] = append(rs.bySrc[r.SourceForm], r.ID)
	}
}

// RemoveBySourceForm drops every rule derived from the given source form
// (both halves of an ⇔, per Open Question (b)).
func (rs *RuleSet) RemoveBySourceForm(sourceForm string) []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	ids := rs.bySrc[sourceForm]
	for _, id := range ids {
		delete(rs.byID, id)
	}
	delete(rs.bySrc, sourceForm)
	return ids
}

// Get returns the rule with id, if present.
func (rs *RuleSet) Get(id string) (*Rule, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	r, ok := rs.byID[id]
	return r, ok
}

// All returns every active rule, in deterministic id order.
func (rs *RuleSet) All() []*Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]*Rule, 0, len(rs.byID))
	for _, r := range rs.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
