package kb

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"noetic/internal/config"
	"noetic/internal/events"
	"noetic/internal/index"
	"noetic/internal/logging"
	"noetic/internal/term"
	"noetic/internal/unify"
)

// ErrNotAList is returned (wrapped) by Commit when the candidate's term is
// not a list, violating spec section 3's "Assertion" invariant ("term (must
// be a list)").
var ErrNotAList = errors.New("kb: assertion term must be a list")

// PremiseChecker answers whether an assertion is currently referenced as a
// premise of some active derived assertion, exempting it from eviction
// (spec section 4.3). It is satisfied by the TMS and wired in by the
// Cognition context after both are constructed, so kb never imports tms
// directly (spec section 2 dependency order).
type PremiseChecker interface {
	IsReferencedPremise(partition, id string) bool
}

type noopPremiseChecker struct{}

func (noopPremiseChecker) IsReferencedPremise(string, string) bool { return false }

// KB is the knowledge base: a set of capacity-bounded partitions, each a
// read-mostly-locked map of Assertions (spec section 5), backed by a shared
// pattern index for sub-linear candidate retrieval.
type KB struct {
	cfg   *config.Config
	idx   *index.PatternIndex
	sink  events.Sink
	clock func() time.Time

	mu         sync.RWMutex
	partitions map[string]*partitionData

	premiseMu sync.RWMutex
	premise   PremiseChecker
}

type partitionData struct {
	mu         sync.RWMutex // read-mostly lock guarding the assertions map (spec section 5)
	assertions map[string]*Assertion
	capacity   int
}

// New constructs a KB. sink may be events.NopSink{} for standalone use.
func New(cfg *config.Config, sink events.Sink) *KB {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &KB{
		cfg:        cfg,
		idx:        index.New(),
		sink:       sink,
		clock:      time.Now,
		partitions: make(map[string]*partitionData),
		premise:    noopPremiseChecker{},
	}
}

// SetPremiseChecker wires the TMS's justification-graph query into eviction
// decisions, per spec section 4.3's exemption for referenced premises.
func (k *KB) SetPremiseChecker(pc PremiseChecker) {
	k.premiseMu.Lock()
	defer k.premiseMu.Unlock()
	if pc == nil {
		pc = noopPremiseChecker{}
	}
	k.premise = pc
}

func (k *KB) isReferencedPremise(partition, id string) bool {
	k.premiseMu.RLock()
	pc := k.premise
	k.premiseMu.RUnlock()
	return pc.IsReferencedPremise(partition, id)
}

func (k *KB) partition(id string) *partitionData {
	k.mu.RLock()
	p, ok := k.partitions[id]
	k.mu.RUnlock()
	if ok {
		return p
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if p, ok := k.partitions[id]; ok {
		return p
	}
	p = &partitionData{
		assertions: make(map[string]*Assertion),
		capacity:   k.cfg.KB.DefaultCapacity,
	}
	k.partitions[id] = p
	return p
}

// SetCapacity overrides the default capacity for a specific partition.
func (k *KB) SetCapacity(partitionID string, capacity int) {
	p := k.partition(partitionID)
	p.mu.Lock()
	p.capacity = capacity
	p.mu.Unlock()
}

// CommitResult reports what Commit decided to do with a candidate.
type CommitResult struct {
	Assertion *Assertion // the resulting active assertion (new or the subsuming existing one)
	Created   bool       // true if a new assertion was inserted
	Dropped   bool       // true if the candidate was discarded (trivial or subsumed)
	Reason    string     // why, when Dropped
}

// Commit admits a PotentialAssertion into the KB, applying triviality
// rejection, equality orientation, and subsumption, per spec section 4.3.
func (k *KB) Commit(pa PotentialAssertion) (CommitResult, error) {
	if !pa.Term.IsList() {
		return CommitResult{}, fmt.Errorf("%w: got %s", ErrNotAList, pa.Term.String())
	}
	if pa.Partition == "" {
		pa.Partition = PartitionGlobal
	}

	t := orientEquality(pa.Term)

	if isTrivial(t) {
		logging.Get(logging.CategoryKB).Debugw("dropped trivial assertion", "term", t.String())
		return CommitResult{Dropped: true, Reason: "trivial"}, nil
	}

	kind, oriented := classifyKind(t, pa.QuantifiedVars)

	p := k.partition(pa.Partition)

	if existing, ok := k.findSubsuming(p, pa.Partition, t); ok {
		existing.Boost(k.cfg.Priority.AccessIncrement)
		logging.Get(logging.CategoryKB).Debugw("dropped subsumed assertion", "term", t.String(), "by", existing.ID)
		return CommitResult{Assertion: existing, Dropped: true, Reason: "subsumed"}, nil
	}

	priority := pa.Priority
	if priority == 0 {
		priority = k.cfg.Priority.BasePriority / (1 + float64(t.Weight()))
	}

	a := &Assertion{
		ID:              uuid.NewString(),
		Term:            t,
		Kind:            kind,
		Oriented:        oriented,
		SourceID:        pa.SourceID,
		SourceNoteID:    pa.SourceNoteID,
		CreatedAt:       k.clock(),
		DerivationDepth: pa.Depth,
		Justifications:  append([]string(nil), pa.Justifications...),
		Partition:       pa.Partition,
		QuantifiedVars:  append([]string(nil), pa.QuantifiedVars...),
	}
	a.SetPriority(priority)
	a.active.store(true)

	p.mu.Lock()
	p.assertions[a.ID] = a
	size := len(p.assertions)
	p.mu.Unlock()

	k.idx.Insert(pa.Partition, a.ID, t)

	k.sink.Emit(events.Event{
		Type:        events.Asserted,
		Timestamp:   k.clock(),
		Partition:   pa.Partition,
		AssertionID: a.ID,
		Term:        a.Term,
		Justifications: a.Justifications,
	})

	if size > p.capacityOf() {
		k.evict(pa.Partition, p)
	}

	return CommitResult{Assertion: a, Created: true}, nil
}

func (p *partitionData) capacityOf() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.capacity
}

// isTrivial rejects terms like (= x x) where both sides are structurally
// equal (spec section 4.3 step 1).
func isTrivial(t *term.Term) bool {
	op, ok := t.Operator()
	if !ok || op.Name() != "=" || t.Arity() != 3 {
		return false
	}
	children := t.Children()
	return children[1].Equal(children[2])
}

// findSubsuming looks for an existing active assertion that subsumes t:
// either exact structural equality, or t matches against it with an empty
// consequent binding set (spec section 4.3 step 3).
func (k *KB) findSubsuming(p *partitionData, partitionID string, t *term.Term) (*Assertion, bool) {
	for _, id := range k.idx.CandidatesMatching(partitionID, t) {
		p.mu.RLock()
		existing, ok := p.assertions[id]
		p.mu.RUnlock()
		if !ok || !existing.Active() {
			continue
		}
		if existing.Term.Equal(t) {
			return existing, true
		}
		if _, matched := unify.Match(existing.Term, t); matched {
			return existing, true
		}
	}
	return nil, false
}

// Get returns the assertion with id, if present (regardless of active
// state).
func (k *KB) Get(partitionID, id string) (*Assertion, bool) {
	p := k.partition(partitionID)
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.assertions[id]
	return a, ok
}

// GetAny looks up id across every partition, for callers (the TMS) that
// track justification edges by id alone without recording which partition
// each premise lives in.
func (k *KB) GetAny(id string) (*Assertion, bool) {
	k.mu.RLock()
	partitions := make([]*partitionData, 0, len(k.partitions))
	for _, p := range k.partitions {
		partitions = append(partitions, p)
	}
	k.mu.RUnlock()

	for _, p := range partitions {
		p.mu.RLock()
		a, ok := p.assertions[id]
		p.mu.RUnlock()
		if ok {
			return a, true
		}
	}
	return nil, false
}

// FindByPattern returns active assertions in partitionID whose term unifies
// with pattern, in deterministic id order.
func (k *KB) FindByPattern(partitionID string, pattern *term.Term) []*Assertion {
	p := k.partition(partitionID)
	ids := k.idx.CandidatesMatching(partitionID, pattern)
	out := make([]*Assertion, 0, len(ids))
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, id := range ids {
		a, ok := p.assertions[id]
		if !ok || !a.Active() {
			continue
		}
		if _, unifies := unify.Unify(pattern, a.Term); !unifies {
			continue
		}
		out = append(out, a)
	}
	return out
}

// FindExact returns the active assertion in partitionID whose term is
// structurally equal to t, if any.
func (k *KB) FindExact(partitionID string, t *term.Term) (*Assertion, bool) {
	for _, a := range k.FindByPattern(partitionID, t) {
		if a.Term.Equal(t) {
			return a, true
		}
	}
	return nil, false
}

// AllActive returns every active assertion in partitionID, in deterministic
// id order.
func (k *KB) AllActive(partitionID string) []*Assertion {
	p := k.partition(partitionID)
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Assertion, 0, len(p.assertions))
	for _, a := range p.assertions {
		if a.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear deactivates and removes every assertion in partitionID, without
// going through the TMS cascade (the caller is expected to be the
// Cognition context's clear command, a bulk wipe rather than a reasoned
// retraction).
func (k *KB) Clear(partitionID string) {
	p := k.partition(partitionID)
	p.mu.Lock()
	cleared := make([]*Assertion, 0, len(p.assertions))
	for _, a := range p.assertions {
		a.deactivate()
		cleared = append(cleared, a)
	}
	p.assertions = make(map[string]*Assertion)
	p.mu.Unlock()
	for _, a := range cleared {
		k.idx.Remove(partitionID, a.ID, a.Term)
	}
}

// AssertionCount returns the number of assertions (active or not) stored in
// partitionID.
func (k *KB) AssertionCount(partitionID string) int {
	p := k.partition(partitionID)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.assertions)
}

// Deactivate marks an assertion inactive and removes it from the pattern
// index, without touching the justification graph (that is the TMS's job —
// see internal/tms.Remove, which calls this as step 1/2 of spec section
// 4.4's Retracting algorithm). Returns false if the assertion was already
// inactive or unknown.
func (k *KB) Deactivate(partitionID, id string) bool {
	p := k.partition(partitionID)
	p.mu.RLock()
	a, ok := p.assertions[id]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	if !a.deactivate() {
		return false
	}
	k.idx.Remove(partitionID, id, a.Term)
	return true
}

// Index exposes the pattern index for callers (the rule engine) that need
// raw candidate retrieval outside of FindByPattern's active-only filter.
func (k *KB) Index() *index.PatternIndex { return k.idx }

// Partitions returns the ids of every partition the KB has created. A
// partition is created on its first access of any kind (commit, lookup,
// query, or SetCapacity), so it may never have held an assertion.
func (k *KB) Partitions() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]string, 0, len(k.partitions))
	for id := range k.partitions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// --- Priority maintenance & eviction (spec section 4.3) --------------------

// Tick decays the priority of every active assertion across all partitions
// by one maintenance step. Nothing in the engine schedules it; it runs only
// when a caller invokes it.
func (k *KB) Tick() {
	rate := k.cfg.Priority.DecayRate
	if rate == 0 {
		return
	}
	k.mu.RLock()
	partitions := make([]*partitionData, 0, len(k.partitions))
	for _, p := range k.partitions {
		partitions = append(partitions, p)
	}
	k.mu.RUnlock()

	for _, p := range partitions {
		p.mu.RLock()
		assertions := make([]*Assertion, 0, len(p.assertions))
		for _, a := range p.assertions {
			assertions = append(assertions, a)
		}
		p.mu.RUnlock()
		for _, a := range assertions {
			if a.Active() {
				a.Decay(rate)
			}
		}
	}
}

// isProtected reports whether a is exempt from eviction: either its term's
// operator is a configured protected symbol, or the TMS reports it is still
// referenced as a premise of an active derived assertion.
func (k *KB) isProtected(a *Assertion) bool {
	if op, ok := a.Term.Operator(); ok && k.cfg.IsProtected(op.Name()) {
		return true
	}
	return k.isReferencedPremise(a.Partition, a.ID)
}

// evict drops the lowest-priority non-protected assertions in p until the
// active count falls to the configured target fraction of capacity plus the
// protected count (spec section 4.3, testable property 6).
func (k *KB) evict(partitionID string, p *partitionData) {
	p.mu.RLock()
	candidates := make([]*Assertion, 0, len(p.assertions))
	for _, a := range p.assertions {
		if a.Active() {
			candidates = append(candidates, a)
		}
	}
	capacity := p.capacity
	p.mu.RUnlock()

	target := int(math.Ceil(k.cfg.KB.EvictionTarget * float64(capacity)))

	protectedCount := 0
	var evictable []*Assertion
	for _, a := range candidates {
		if k.isProtected(a) {
			protectedCount++
			continue
		}
		evictable = append(evictable, a)
	}

	limit := target + protectedCount
	if len(candidates) <= limit {
		return
	}

	sort.Slice(evictable, func(i, j int) bool {
		if evictable[i].Priority() != evictable[j].Priority() {
			return evictable[i].Priority() < evictable[j].Priority()
		}
		return evictable[i].ID < evictable[j].ID
	})

	toEvict := len(candidates) - limit
	if toEvict > len(evictable) {
		toEvict = len(evictable)
	}

	for i := 0; i < toEvict; i++ {
		a := evictable[i]
		if !a.deactivate() {
			continue
		}
		k.idx.Remove(partitionID, a.ID, a.Term)
		k.sink.Emit(events.Event{
			Type:        events.Evicted,
			Timestamp:   k.clock(),
			Partition:   partitionID,
			AssertionID: a.ID,
			Term:        a.Term,
			Reason:      "capacity",
		})
		logging.Get(logging.CategoryKB).Infow("evicted assertion", "partition", partitionID, "id", a.ID, "priority", a.Priority())
	}
}
