package tms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noetic/internal/config"
	"noetic/internal/events"
	"noetic/internal/kb"
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

func newHarness(t *testing.T) (*kb.KB, *TMS, *recordingSink) {
	t.Helper()
	cfg := config.DefaultConfig()
	sink := &recordingSink{}
	k := kb.New(cfg, sink)
	tm := New(cfg, k, sink)
	k.SetPremiseChecker(tm)
	return k, tm, sink
}

func TestRemoveCascadesToDependent(t *testing.T) {
	k, tm, sink := newHarness(t)

	premise, err := k.Commit(kb.PotentialAssertion{Term: mustParse(t, "(raining)"), Partition: kb.PartitionGlobal})
	require.NoError(t, err)
	derived, err := k.Commit(kb.PotentialAssertion{Term: mustParse(t, "(wet-ground)"), Partition: kb.PartitionGlobal})
	require.NoError(t, err)
	tm.Justify(derived.Assertion.ID, []string{premise.Assertion.ID})

	tm.Remove(kb.PartitionGlobal, premise.Assertion.ID, "retracted")

	assert.False(t, premise.Assertion.Active())
	assert.False(t, derived.Assertion.Active(), "dependent must cascade-retract once its only justification set is broken")

	var sawDependentRetraction bool
	for _, e := range sink.events {
		if e.Type == events.Retracted && e.AssertionID == derived.Assertion.ID {
			sawDependentRetraction = true
		}
	}
	assert.True(t, sawDependentRetraction)
}

func TestRemoveDoesNotCascadeWhenAlternateJustificationSurvives(t *testing.T) {
	k, tm, _ := newHarness(t)

	p1, err := k.Commit(kb.PotentialAssertion{Term: mustParse(t, "(raining)"), Partition: kb.PartitionGlobal})
	require.NoError(t, err)
	p2, err := k.Commit(kb.PotentialAssertion{Term: mustParse(t, "(sprinkler-on)"), Partition: kb.PartitionGlobal})
	require.NoError(t, err)
	derived, err := k.Commit(kb.PotentialAssertion{Term: mustParse(t, "(wet-ground)"), Partition: kb.PartitionGlobal})
	require.NoError(t, err)

	tm.Justify(derived.Assertion.ID, []string{p1.Assertion.ID})
	tm.Justify(derived.Assertion.ID, []string{p2.Assertion.ID})

	tm.Remove(kb.PartitionGlobal, p1.Assertion.ID, "retracted")

	assert.True(t, derived.Assertion.Active(), "a second live justification set must keep the dependent active")
}

func TestIsReferencedPremiseExemptsFromEviction(t *testing.T) {
	k, tm, _ := newHarness(t)
	k.SetCapacity(kb.PartitionGlobal, 2)

	premise, err := k.Commit(kb.PotentialAssertion{Term: mustParse(t, "(fact-zero)"), Partition: kb.PartitionGlobal})
	require.NoError(t, err)
	// The derived assertion gets a high priority so eviction never picks it,
	// keeping the premise referenced by an active assertion throughout.
	derived, err := k.Commit(kb.PotentialAssertion{Term: mustParse(t, "(fact-derived)"), Priority: 0.9, Partition: kb.PartitionGlobal})
	require.NoError(t, err)
	tm.Justify(derived.Assertion.ID, []string{premise.Assertion.ID})

	for i := 0; i < 5; i++ {
		_, err := k.Commit(kb.PotentialAssertion{Term: mustParse(t, factAt(i)), Partition: kb.PartitionGlobal})
		require.NoError(t, err)
	}

	assert.True(t, premise.Assertion.Active(), "premise of an active derived assertion must survive eviction")
}

func factAt(i int) string {
	names := []string{"a", "b", "c", "d", "e", "f"}
	return "(fact-" + names[i%len(names)] + ")"
}

func TestCheckContradictionRetractsWeakest(t *testing.T) {
	k, tm, sink := newHarness(t)

	strong, err := k.Commit(kb.PotentialAssertion{Term: mustParse(t, "(sky-is-blue)"), Priority: 0.9, Partition: kb.PartitionGlobal})
	require.NoError(t, err)
	weak, err := k.Commit(kb.PotentialAssertion{Term: mustParse(t, "(not (sky-is-blue))"), Priority: 0.1, Partition: kb.PartitionGlobal})
	require.NoError(t, err)

	tm.CheckContradiction(kb.PartitionGlobal, weak.Assertion)

	assert.True(t, strong.Assertion.Active())
	assert.False(t, weak.Assertion.Active())

	var sawContradiction bool
	for _, e := range sink.events {
		if e.Type == events.ContradictionDetected {
			sawContradiction = true
		}
	}
	assert.True(t, sawContradiction)
}

func TestCheckContradictionNoOpWhenNoOppositeActive(t *testing.T) {
	_, tm, sink := newHarness(t)
	k2 := kb.New(config.DefaultConfig(), events.NopSink{})
	res, err := k2.Commit(kb.PotentialAssertion{Term: mustParse(t, "(sky-is-blue)"), Partition: kb.PartitionGlobal})
	require.NoError(t, err)

	tm.CheckContradiction(kb.PartitionGlobal, res.Assertion)
	assert.Empty(t, sink.events)
}
