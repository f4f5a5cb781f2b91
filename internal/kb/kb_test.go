package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noetic/internal/config"
	"noetic/internal/events"
	"noetic/internal/term"
)

func mustParse(t *testing.T, src string) *term.Term {
	t.Helper()
	tm, err := term.Parse(src)
	require.NoError(t, err)
	return tm
}

type recordingSink struct {
	events []events.Event
}

func (r *recordingSink) Emit(e events.Event) { r.events = append(r.events, e) }

func newTestKB(t *testing.T) (*KB, *recordingSink) {
	t.Helper()
	cfg := config.DefaultConfig()
	sink := &recordingSink{}
	return New(cfg, sink), sink
}

func TestCommitNewAssertionEmitsAsserted(t *testing.T) {
	k, sink := newTestKB(t)
	res, err := k.Commit(PotentialAssertion{
		Term:      mustParse(t, "(likes self pizza)"),
		Partition: PartitionGlobal,
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Dropped)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.Asserted, sink.events[0].Type)
	assert.Equal(t, res.Assertion.ID, sink.events[0].AssertionID)
}

func TestCommitRejectsTrivialSelfEquality(t *testing.T) {
	k, _ := newTestKB(t)
	res, err := k.Commit(PotentialAssertion{
		Term:      mustParse(t, "(= self self)"),
		Partition: PartitionGlobal,
	})
	require.NoError(t, err)
	assert.True(t, res.Dropped)
	assert.Equal(t, "trivial", res.Reason)
}

func TestCommitOrientsEquality(t *testing.T) {
	k, _ := newTestKB(t)
	res, err := k.Commit(PotentialAssertion{
		Term:      mustParse(t, "(= a (compound-term-here x y))"),
		Partition: PartitionGlobal,
	})
	require.NoError(t, err)
	require.True(t, res.Created)
	children := res.Assertion.Term.Children()
	assert.Greater(t, children[1].Weight(), children[2].Weight(), "lhs must be the heavier side after orientation")
}

func TestCommitSubsumesIdenticalAssertion(t *testing.T) {
	k, _ := newTestKB(t)
	_, err := k.Commit(PotentialAssertion{Term: mustParse(t, "(knows self bob)"), Partition: PartitionGlobal})
	require.NoError(t, err)

	res, err := k.Commit(PotentialAssertion{Term: mustParse(t, "(knows self bob)"), Partition: PartitionGlobal})
	require.NoError(t, err)
	assert.True(t, res.Dropped)
	assert.Equal(t, "subsumed", res.Reason)
	assert.Equal(t, 1, k.AssertionCount(PartitionGlobal))
}

func TestCommitSubsumesByMoreGeneralExisting(t *testing.T) {
	k, _ := newTestKB(t)
	_, err := k.Commit(PotentialAssertion{Term: mustParse(t, "(knows self ?who)"), Partition: PartitionGlobal})
	require.NoError(t, err)

	res, err := k.Commit(PotentialAssertion{Term: mustParse(t, "(knows self bob)"), Partition: PartitionGlobal})
	require.NoError(t, err)
	assert.True(t, res.Dropped)
}

func TestFindByPatternReturnsOnlyActive(t *testing.T) {
	k, _ := newTestKB(t)
	r1, err := k.Commit(PotentialAssertion{Term: mustParse(t, "(knows self bob)"), Partition: PartitionGlobal})
	require.NoError(t, err)

	found := k.FindByPattern(PartitionGlobal, mustParse(t, "(knows self ?who)"))
	require.Len(t, found, 1)

	k.Deactivate(PartitionGlobal, r1.Assertion.ID)
	found = k.FindByPattern(PartitionGlobal, mustParse(t, "(knows self ?who)"))
	assert.Empty(t, found)
}

func TestPartitionsAreIsolated(t *testing.T) {
	k, _ := newTestKB(t)
	_, err := k.Commit(PotentialAssertion{Term: mustParse(t, "(knows self bob)"), Partition: PartitionGlobal})
	require.NoError(t, err)
	_, err = k.Commit(PotentialAssertion{Term: mustParse(t, "(knows self bob)"), Partition: PartitionClientInput})
	require.NoError(t, err)

	assert.Equal(t, 1, k.AssertionCount(PartitionGlobal))
	assert.Equal(t, 1, k.AssertionCount(PartitionClientInput))
}

// TestEvictionRespectsSizeBound covers spec section 8's testable property 6:
// |active(K)| <= ceil(f * capacity(K)) + protected(K).
func TestEvictionRespectsSizeBound(t *testing.T) {
	k, sink := newTestKB(t)
	k.SetCapacity(PartitionGlobal, 10)
	k.cfg.KB.EvictionTarget = 0.5

	for i := 0; i < 20; i++ {
		_, err := k.Commit(PotentialAssertion{
			Term:      mustParse(t, factAt(i)),
			Partition: PartitionGlobal,
		})
		require.NoError(t, err)
	}

	active := k.AllActive(PartitionGlobal)
	assert.LessOrEqual(t, len(active), 5+1, "active set must respect the eviction target bound")

	var evictedCount int
	for _, e := range sink.events {
		if e.Type == events.Evicted {
			evictedCount++
		}
	}
	assert.Positive(t, evictedCount, "eviction must have fired and emitted events")
}

func TestEvictionExemptsProtectedSymbol(t *testing.T) {
	k, _ := newTestKB(t)
	k.SetCapacity(PartitionGlobal, 2)
	k.cfg.KB.EvictionTarget = 0.5

	protected, err := k.Commit(PotentialAssertion{Term: mustParse(t, "(⇒ (p ?x) (q ?x))"), Partition: PartitionGlobal})
	require.NoError(t, err)
	require.True(t, protected.Created)

	for i := 0; i < 5; i++ {
		_, err := k.Commit(PotentialAssertion{Term: mustParse(t, factAt(i)), Partition: PartitionGlobal})
		require.NoError(t, err)
	}

	_, stillActive := k.Get(PartitionGlobal, protected.Assertion.ID)
	require.True(t, stillActive)
	assert.True(t, protected.Assertion.Active(), "protected-operator assertion must survive eviction")
}

func TestEvictionExemptsReferencedPremise(t *testing.T) {
	k, _ := newTestKB(t)
	k.SetCapacity(PartitionGlobal, 2)
	k.cfg.KB.EvictionTarget = 0.5

	premise, err := k.Commit(PotentialAssertion{Term: mustParse(t, "(fact-zero)"), Partition: PartitionGlobal})
	require.NoError(t, err)
	k.SetPremiseChecker(fakePremiseChecker{ids: map[string]bool{premise.Assertion.ID: true}})

	for i := 1; i < 6; i++ {
		_, err := k.Commit(PotentialAssertion{Term: mustParse(t, factAt(i)), Partition: PartitionGlobal})
		require.NoError(t, err)
	}

	assert.True(t, premise.Assertion.Active(), "assertion referenced as an active premise must survive eviction")
}

type fakePremiseChecker struct{ ids map[string]bool }

func (f fakePremiseChecker) IsReferencedPremise(_ string, id string) bool { return f.ids[id] }

func factAt(i int) string {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n", "o", "p", "q", "r", "s", "t"}
	return "(fact-" + names[i%len(names)] + ")"
}

func TestTickDecaysPriority(t *testing.T) {
	k, _ := newTestKB(t)
	res, err := k.Commit(PotentialAssertion{Term: mustParse(t, "(knows self bob)"), Priority: 0.5, Partition: PartitionGlobal})
	require.NoError(t, err)

	before := res.Assertion.Priority()
	k.Tick()
	after := res.Assertion.Priority()
	assert.Less(t, after, before)
}

func TestDeactivateIsIdempotent(t *testing.T) {
	k, _ := newTestKB(t)
	res, err := k.Commit(PotentialAssertion{Term: mustParse(t, "(knows self bob)"), Partition: PartitionGlobal})
	require.NoError(t, err)

	assert.True(t, k.Deactivate(PartitionGlobal, res.Assertion.ID))
	assert.False(t, k.Deactivate(PartitionGlobal, res.Assertion.ID))
}
