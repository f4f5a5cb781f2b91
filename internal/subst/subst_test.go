package subst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noetic/internal/term"
)

func TestApplyEmptySubstitutionIsIdentity(t *testing.T) {
	tm, err := term.Parse("(parent alice ?x)")
	require.NoError(t, err)
	s := New()
	assert.Same(t, tm, s.Apply(tm), "subst(t, empty) = t should short-circuit to the same term")
}

func TestApplyBindsVariable(t *testing.T) {
	x := term.NewVariable("x")
	bob := term.NewAtom("bob")
	tm := term.NewList(term.NewAtom("parent"), term.NewAtom("alice"), x)

	s := New().Bind(x, bob)
	got := s.Apply(tm)
	assert.Equal(t, "(parent alice bob)", got.String())
}

func TestResolveChainWithCycleReturnsVariable(t *testing.T) {
	x := term.NewVariable("cyc_x")
	y := term.NewVariable("cyc_y")
	s := New().Bind(x, y).Bind(y, x)
	assert.Equal(t, x, s.Resolve(x))
}

func TestApplyPointerShortCircuitWhenNoChildChanges(t *testing.T) {
	tm := term.NewList(term.NewAtom("p"), term.NewAtom("a"))
	s := New().Bind(term.NewVariable("unused"), term.NewAtom("z"))
	assert.Same(t, tm, s.Apply(tm))
}

func TestComposeMatchesSequentialApply(t *testing.T) {
	x := term.NewVariable("compose_x")
	y := term.NewVariable("compose_y")
	sigma := New().Bind(x, y)
	tau := New().Bind(y, term.NewAtom("z"))

	composed := Compose(sigma, tau)
	direct := tau.Apply(sigma.Apply(x))
	assert.Equal(t, direct.String(), composed.Apply(x).String())
}
