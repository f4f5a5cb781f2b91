// Package tms implements the truth-maintenance system: a justification DAG
// over assertion ids, retraction cascades, and contradiction detection and
// resolution (spec section 4.4). It depends on kb (spec section 2's
// dependency order places TMS directly after the knowledge base) but kb
// never depends back on tms — kb only sees tms through the narrow
// kb.PremiseChecker interface, which TMS satisfies.
package tms

import (
	"sort"
	"sync"
	"time"

	"noetic/internal/config"
	"noetic/internal/events"
	"noetic/internal/kb"
	"noetic/internal/logging"
	"noetic/internal/term"
)

var notAtom = term.NewAtom("not")

// ResolutionStrategy picks the loser when two active assertions in the same
// partition contradict each other. It must return one of its two
// arguments.
type ResolutionStrategy func(a, b *kb.Assertion) *kb.Assertion

// TMS maintains the justification DAG: for each derived assertion id, the
// set of premise-id sets that justify it (an assertion stays active if at
// least one of its justification sets is fully active — spec section 4.4,
// "Retracting").
type TMS struct {
	kb    *kb.KB
	sink  events.Sink
	cfg   *config.Config
	clock func() time.Time

	mu              sync.RWMutex
	justificationOf map[string][][]string // derived id -> list of premise-id sets
	supports        map[string]map[string]bool // premise id -> set of derived ids it appears in

	strategies map[string]ResolutionStrategy
}

// New constructs a TMS wired to k. The caller must also call
// k.SetPremiseChecker(t) to complete the wiring (spec section 2: kb and tms
// are assembled together by the Cognition context).
func New(cfg *config.Config, k *kb.KB, sink events.Sink) *TMS {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	t := &TMS{
		kb:              k,
		sink:            sink,
		cfg:             cfg,
		clock:           time.Now,
		justificationOf: make(map[string][][]string),
		supports:        make(map[string]map[string]bool),
	}
	t.strategies = map[string]ResolutionStrategy{
		"retract-weakest": retractWeakest,
	}
	return t
}

// RegisterStrategy adds or overrides a named resolution strategy.
func (t *TMS) RegisterStrategy(name string, s ResolutionStrategy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strategies[name] = s
}

func (t *TMS) strategy() ResolutionStrategy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.strategies[t.cfg.TMS.ResolutionStrategy]; ok {
		return s
	}
	return retractWeakest
}

// Justify records that derivedID's truth depends on premiseIDs being all
// active (one justification set among possibly several — spec section 3,
// "Justification"). Call this after committing a rule-derived assertion to
// the KB, before relying on cascade semantics for it.
func (t *TMS) Justify(derivedID string, premiseIDs []string) {
	if len(premiseIDs) == 0 {
		return
	}
	cp := append([]string(nil), premiseIDs...)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.justificationOf[derivedID] = append(t.justificationOf[derivedID], cp)
	for _, p := range premiseIDs {
		if t.supports[p] == nil {
			t.supports[p] = make(map[string]bool)
		}
		t.supports[p][derivedID] = true
	}
}

// IsReferencedPremise implements kb.PremiseChecker: id is exempt from
// eviction if some currently-active assertion lists it in any of its
// justification sets; the other premises of that set are not checked.
func (t *TMS) IsReferencedPremise(partition, id string) bool {
	t.mu.RLock()
	dependents := make([]string, 0, len(t.supports[id]))
	for d := range t.supports[id] {
		dependents = append(dependents, d)
	}
	t.mu.RUnlock()

	for _, d := range dependents {
		a, ok := t.kb.GetAny(d)
		if ok && a.Active() {
			return true
		}
	}
	return false
}

// Remove retracts id directly (a user-level retraction or an explicit
// resolution decision), deactivating it in the KB and cascading to any
// assertion whose every justification set now contains an inactive premise
// (spec section 4.4, "Retracting").
func (t *TMS) Remove(partition, id, reason string) {
	if !t.kb.Deactivate(partition, id) {
		return
	}
	t.sink.Emit(events.Event{
		Type:        events.Retracted,
		Timestamp:   t.clock(),
		Partition:   partition,
		AssertionID: id,
		Reason:      reason,
	})
	t.cascade(partition, id)
}

// CascadeFromEviction propagates retraction for an assertion the KB has
// already deactivated via capacity eviction (so step 1, deactivation, is
// skipped — only the downstream cascade runs).
func (t *TMS) CascadeFromEviction(partition, id string) {
	t.cascade(partition, id)
}

func (t *TMS) cascade(partition, retractedID string) {
	t.mu.RLock()
	dependents := make([]string, 0, len(t.supports[retractedID]))
	for d := range t.supports[retractedID] {
		dependents = append(dependents, d)
	}
	t.mu.RUnlock()
	sort.Strings(dependents)

	for _, d := range dependents {
		a, ok := t.kb.GetAny(d)
		if !ok || !a.Active() {
			continue
		}
		if t.hasLiveJustification(d) {
			continue
		}
		logging.Get(logging.CategoryTMS).Debugw("cascading retraction", "partition", partition, "from", retractedID, "to", d)
		t.Remove(a.Partition, d, "premise retracted")
	}
}

// hasLiveJustification reports whether id has at least one justification set
// whose every premise is still active. An assertion with no recorded
// justification sets (an original, non-derived fact) is always considered
// live here.
func (t *TMS) hasLiveJustification(id string) bool {
	t.mu.RLock()
	sets := t.justificationOf[id]
	t.mu.RUnlock()
	if len(sets) == 0 {
		return true
	}
	for _, set := range sets {
		allActive := true
		for _, p := range set {
			a, ok := t.kb.GetAny(p)
			if !ok || !a.Active() {
				allActive = false
				break
			}
		}
		if allActive {
			return true
		}
	}
	return false
}

// CheckContradiction looks for an active negation pair involving t within
// partition (spec section 4.4, "Contradiction resolution"): either t is
// "(not x)" and x is already active, or "(not t)" is already active. On a
// match it emits ContradictionDetected and applies the configured resolution
// strategy, retracting the loser.
func (t *TMS) CheckContradiction(partition string, candidate *kb.Assertion) {
	var opposite *term.Term
	if op, ok := candidate.Term.Operator(); ok && op.Name() == "not" && candidate.Term.Arity() == 2 {
		opposite = candidate.Term.Children()[1]
	} else {
		opposite = term.NewList(notAtom, candidate.Term)
	}

	other, found := t.kb.FindExact(partition, opposite)
	if !found || other.ID == candidate.ID || !other.Active() {
		return
	}

	t.sink.Emit(events.Event{
		Type:        events.ContradictionDetected,
		Timestamp:   t.clock(),
		Partition:   partition,
		AssertionID: candidate.ID,
		ConflictIDs: []string{candidate.ID, other.ID},
	})

	loser := t.strategy()(candidate, other)
	logging.Get(logging.CategoryTMS).Infow("resolved contradiction", "partition", partition, "a", candidate.ID, "b", other.ID, "loser", loser.ID)
	t.Remove(partition, loser.ID, "contradiction resolution")
}

// retractWeakest is the default resolution strategy (spec section 4.4): the
// lower-priority assertion loses; ties break toward greater derivation depth
// (more derived is weaker), and remaining ties break toward the
// lexicographically greater id for determinism.
func retractWeakest(a, b *kb.Assertion) *kb.Assertion {
	if a.Priority() != b.Priority() {
		if a.Priority() < b.Priority() {
			return a
		}
		return b
	}
	if a.DerivationDepth != b.DerivationDepth {
		if a.DerivationDepth > b.DerivationDepth {
			return a
		}
		return b
	}
	if a.ID > b.ID {
		return a
	}
	return b
}
