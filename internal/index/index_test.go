package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noetic/internal/term"
)

func mustParse(t *testing.T, src string) *term.Term {
	t.Helper()
	tm, err := term.Parse(src)
	require.NoError(t, err)
	return tm
}

func TestInsertAndCandidatesMatching(t *testing.T) {
	idx := New()
	idx.Insert("global", "a1", mustParse(t, "(knows self bob)"))
	idx.Insert("global", "a2", mustParse(t, "(knows self carol)"))
	idx.Insert("global", "a3", mustParse(t, "(likes self pizza)"))

	got := idx.CandidatesMatching("global", mustParse(t, "(knows self ?who)"))
	assert.Equal(t, []string{"a1", "a2"}, got, "must be a complete, deterministically ordered superset")
}

func TestConstantPositionFiltering(t *testing.T) {
	idx := New()
	idx.Insert("global", "a1", mustParse(t, "(parent alice bob)"))
	idx.Insert("global", "a2", mustParse(t, "(parent carol dave)"))

	got := idx.CandidatesMatching("global", mustParse(t, "(parent alice ?y)"))
	assert.Equal(t, []string{"a1"}, got)
}

func TestVariableHeadedPatternScansPartitionOnly(t *testing.T) {
	idx := New()
	idx.Insert("p1", "a1", mustParse(t, "(p a)"))
	idx.Insert("p2", "b1", mustParse(t, "(p b)"))

	got := idx.CandidatesMatching("p1", mustParse(t, "(?pred a)"))
	assert.Equal(t, []string{"a1"}, got, "must respect partition boundary even under full scan")
}

func TestRemoveDropsCandidate(t *testing.T) {
	idx := New()
	tm := mustParse(t, "(knows self bob)")
	idx.Insert("global", "a1", tm)
	idx.Remove("global", "a1", tm)

	got := idx.CandidatesMatching("global", mustParse(t, "(knows self ?who)"))
	assert.Empty(t, got)
}

func TestDifferentPartitionsAreIsolated(t *testing.T) {
	idx := New()
	idx.Insert("global", "a1", mustParse(t, "(knows self bob)"))
	idx.Insert("note-1", "a2", mustParse(t, "(knows self bob)"))

	assert.Len(t, idx.CandidatesMatching("global", mustParse(t, "(knows self ?x)")), 1)
	assert.Len(t, idx.CandidatesMatching("note-1", mustParse(t, "(knows self ?x)")), 1)
}
