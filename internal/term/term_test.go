package term

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomInterning(t *testing.T) {
	a := NewAtom("alice")
	b := NewAtom("alice")
	assert.Same(t, a, b, "atoms with the same name must be the same instance")
}

func TestWeightIsOnePlusChildWeights(t *testing.T) {
	a := NewAtom("a")
	b := NewAtom("b")
	list := NewList(NewAtom("f"), a, b)
	assert.Equal(t, 1+1+1+1, list.Weight())
}

func TestContainsVariablePropagates(t *testing.T) {
	x := NewVariable("x")
	list := NewList(NewAtom("p"), x)
	assert.True(t, list.ContainsVariable())
	assert.False(t, NewList(NewAtom("p"), NewAtom("a")).ContainsVariable())
}

func TestContainsSkolemPropagates(t *testing.T) {
	sk := NewSkolemAtom("o1")
	list := NewList(NewAtom("p"), sk)
	assert.True(t, list.ContainsSkolem())
}

func TestEqualityIsStructuralNotPointer(t *testing.T) {
	l1 := NewList(NewAtom("f"), NewAtom("a"))
	l2 := NewList(NewAtom("f"), NewAtom("a"))
	assert.NotSame(t, l1, l2)
	assert.True(t, l1.Equal(l2))
}

func TestOperatorOfList(t *testing.T) {
	l := NewList(NewAtom("parent"), NewAtom("alice"), NewAtom("bob"))
	op, ok := l.Operator()
	require.True(t, ok)
	assert.Equal(t, "parent", op.Name())

	_, ok = NewList().Operator()
	assert.False(t, ok, "empty list has no operator")

	varHead := NewList(NewVariable("x"), NewAtom("a"))
	_, ok = varHead.Operator()
	assert.False(t, ok, "variable-headed list has no atom operator")
}

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		`(parent alice bob)`,
		`(⇒ (parent ?x ?y) (ancestor ?x ?y))`,
		`(= (f a b c) g)`,
		`(not (p x))`,
		`()`,
		`"hello \"world\""`,
		`42`,
	}
	for _, src := range cases {
		t1, err := Parse(src)
		require.NoError(t, err, src)
		printed := t1.String()
		t2, err := Parse(printed)
		require.NoError(t, err, printed)
		if diff := cmp.Diff(t1.ID(), t2.ID()); diff != "" {
			t.Errorf("round trip mismatch for %q (printed %q): %s", src, printed, diff)
		}
	}
}

func TestParseAllMultipleTerms(t *testing.T) {
	terms, err := ParseAll("(a 1) ; comment\n(b 2)")
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "(a 1)", terms[0].String())
	assert.Equal(t, "(b 2)", terms[1].String())
}

func TestParseErrorHasLineColumn(t *testing.T) {
	_, err := Parse("(a\n(b )")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
}

func TestParseUnexpectedCloseParen(t *testing.T) {
	_, err := Parse(")")
	require.Error(t, err)
}

func TestEmptyListIsLegal(t *testing.T) {
	l, err := Parse("()")
	require.NoError(t, err)
	assert.True(t, l.IsList())
	assert.Equal(t, 0, l.Arity())
}
