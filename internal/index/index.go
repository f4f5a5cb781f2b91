// Package index implements the discrimination-structure pattern index of
// spec section 4.2: assertions are keyed by (partition id, operator atom of
// the head, arity, per-position constant summary) to support sub-linear
// candidate retrieval. The index holds only assertion ids ("a borrow of the
// KB by assertion id", spec section 3 "Ownership") plus the small constant
// summary needed for filtering — never the term itself.
package index

import (
	"sort"
	"sync"

	"noetic/internal/logging"
	"noetic/internal/term"
)

// bucketKey groups assertions that share an operator and arity, the unit a
// forward-chaining clause or query pattern narrows to before any
// per-position filtering.
type bucketKey struct {
	operator string
	arity    int
}

// entry is everything the index remembers about one assertion: just enough
// to filter candidates without re-reading the term.
type entry struct {
	key       bucketKey
	constants []string // per-position atom name, or "" if the position is not a bare constant atom
}

type bucket struct {
	mu      sync.RWMutex // per-head-atom lock, spec section 5
	members map[string]entry
}

// PatternIndex is a per-partition discrimination index over assertion terms.
type PatternIndex struct {
	mu         sync.RWMutex // guards the partitions map structure only
	partitions map[string]*partitionIndex
}

type partitionIndex struct {
	mu        sync.RWMutex // guards buckets map structure and varHeaded set
	buckets   map[bucketKey]*bucket
	idToKey   map[string]bucketKey // id -> bucket key; set on Insert, cleared on Remove (which recomputes the key from the term)
	varHeaded map[string]struct{}  // ids of assertions whose head is a variable or whose term is not a list
}

// New returns an empty pattern index.
func New() *PatternIndex {
	return &PatternIndex{partitions: make(map[string]*partitionIndex)}
}

func (idx *PatternIndex) partition(partitionID string) *partitionIndex {
	idx.mu.RLock()
	p, ok := idx.partitions[partitionID]
	idx.mu.RUnlock()
	if ok {
		return p
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if p, ok := idx.partitions[partitionID]; ok {
		return p
	}
	p = &partitionIndex{
		buckets:   make(map[bucketKey]*bucket),
		idToKey:   make(map[string]bucketKey),
		varHeaded: make(map[string]struct{}),
	}
	idx.partitions[partitionID] = p
	return p
}

func keyOf(t *term.Term) (bucketKey, []string, bool) {
	if !t.IsList() {
		return bucketKey{}, nil, false
	}
	op, ok := t.Operator()
	if !ok {
		return bucketKey{}, nil, false
	}
	children := t.Children()
	consts := make([]string, len(children))
	for i, c := range children {
		if c.IsAtom() {
			consts[i] = c.Name()
		}
	}
	return bucketKey{operator: op.Name(), arity: len(children)}, consts, true
}

// Insert adds an assertion's id to the index, under partitionID, keyed on t.
func (idx *PatternIndex) Insert(partitionID, assertionID string, t *term.Term) {
	p := idx.partition(partitionID)
	key, consts, ok := keyOf(t)
	if !ok {
		p.mu.Lock()
		p.varHeaded[assertionID] = struct{}{}
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{members: make(map[string]entry)}
		p.buckets[key] = b
	}
	p.idToKey[assertionID] = key
	p.mu.Unlock()

	b.mu.Lock()
	b.members[assertionID] = entry{key: key, constants: consts}
	b.mu.Unlock()

	logging.Get(logging.CategoryIndex).Debugw("indexed assertion",
		"partition", partitionID, "id", assertionID, "operator", key.operator, "arity", key.arity)
}

// Remove drops an assertion's id from the index.
func (idx *PatternIndex) Remove(partitionID, assertionID string, t *term.Term) {
	p := idx.partition(partitionID)

	key, _, ok := keyOf(t)
	if !ok {
		p.mu.Lock()
		delete(p.varHeaded, assertionID)
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	delete(p.idToKey, assertionID)
	b, ok := p.buckets[key]
	p.mu.Unlock()
	if !ok {
		return
	}
	b.mu.Lock()
	delete(b.members, assertionID)
	b.mu.Unlock()
}

// CandidatesMatching returns a deterministically ordered superset of
// assertion ids in partitionID that might unify with pattern (spec section
// 4.2: "returning a superset that is complete w.r.t. matches"). A
// variable-headed pattern forces a full partition-wide scan, bounded to
// O(N_partition).
func (idx *PatternIndex) CandidatesMatching(partitionID string, pattern *term.Term) []string {
	p := idx.partition(partitionID)

	key, consts, ok := keyOf(pattern)
	if !ok {
		// Pattern itself isn't a concrete-headed list (e.g. a bare variable
		// pattern): every assertion in the partition is a candidate.
		return p.allIDs()
	}

	if headIsVariable(pattern) {
		return p.allIDs()
	}

	p.mu.RLock()
	b, ok := p.buckets[key]
	// Stored terms without an atom head may unify with any concrete pattern.
	out := make([]string, 0, len(p.varHeaded))
	for id := range p.varHeaded {
		out = append(out, id)
	}
	p.mu.RUnlock()

	if ok {
		b.mu.RLock()
		for id, e := range b.members {
			if constantsCompatible(consts, e.constants) {
				out = append(out, id)
			}
		}
		b.mu.RUnlock()
	}
	sortIDs(out)
	return out
}

func headIsVariable(pattern *term.Term) bool {
	if !pattern.IsList() || pattern.Arity() == 0 {
		return false
	}
	return pattern.Children()[0].IsVariable()
}

func constantsCompatible(pattern, candidate []string) bool {
	for i, p := range pattern {
		if p == "" {
			continue // pattern position is a variable or compound: no filter
		}
		if i >= len(candidate) {
			return false
		}
		if candidate[i] == "" {
			continue // candidate position isn't a bare constant: can't rule out, keep as superset
		}
		if candidate[i] != p {
			return false
		}
	}
	return true
}

// allIDs returns every indexed id in the partition (buckets + variable
// headed), in deterministic order.
func (p *partitionIndex) allIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for id := range p.varHeaded {
		out = append(out, id)
	}
	for key := range p.buckets {
		b := p.buckets[key]
		b.mu.RLock()
		for id := range b.members {
			out = append(out, id)
		}
		b.mu.RUnlock()
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []string) {
	sort.Strings(ids)
}
