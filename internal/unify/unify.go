// Package unify implements the unifier and matcher described in spec
// section 4.2: an iterative stack-based algorithm over (pattern, instance)
// pairs and a running binding map, with an occurs check that traverses
// resolved sub-terms to guarantee termination.
package unify

import (
	"errors"

	"noetic/internal/subst"
	"noetic/internal/term"
)

// ErrOccursCheck names the failure of a binding that would create a cyclic
// term. Unify and Match do not return it: they report that failure, like any
// other, as ok == false.
var ErrOccursCheck = errors.New("unify: occurs check failed")

// pair is a unit of work on the unifier's explicit stack, avoiding recursion
// so arbitrarily deep terms don't grow the Go call stack (spec section 9,
// "limit stack by iterative expansion with an explicit work-queue").
type pair struct {
	pattern  *term.Term
	instance *term.Term
}

// Unify attempts to unify a and b, returning the most general unifying
// substitution. ok is false if no unification exists (spec section 4.2:
// "Otherwise: fail (return no bindings)").
func Unify(a, b *term.Term) (result *subst.Substitution, ok bool) {
	return unify(a, b, true)
}

// Match is the one-way specialization used by forward-chaining and the
// pattern-trigger index: variables are only allowed on the pattern side;
// instance-side variables are treated as opaque constants (spec section
// 4.2 "Matcher").
func Match(pattern, instance *term.Term) (result *subst.Substitution, ok bool) {
	return unify(pattern, instance, false)
}

func unify(a, b *term.Term, bothSidesVariable bool) (*subst.Substitution, bool) {
	s := subst.New()
	stack := []pair{{pattern: a, instance: b}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		pat := s.Resolve(resolveIfVar(p.pattern, s))
		inst := p.instance
		if bothSidesVariable {
			inst = s.Resolve(resolveIfVar(p.instance, s))
		}

		if pat.Equal(inst) {
			continue
		}

		if pat.IsVariable() {
			if !occursCheckOK(pat, inst, s) {
				return nil, false
			}
			if existing, bound := s.Lookup(pat); bound {
				sub, ok := unifyWithBindings(existing, inst, s, bothSidesVariable)
				if !ok {
					return nil, false
				}
				s = sub
				continue
			}
			s.BindInPlace(pat, inst)
			continue
		}

		if bothSidesVariable && inst.IsVariable() {
			if !occursCheckOK(inst, pat, s) {
				return nil, false
			}
			if existing, bound := s.Lookup(inst); bound {
				sub, ok := unifyWithBindings(pat, existing, s, bothSidesVariable)
				if !ok {
					return nil, false
				}
				s = sub
				continue
			}
			s.BindInPlace(inst, pat)
			continue
		}

		if pat.IsList() && inst.IsList() {
			pc, ic := pat.Children(), inst.Children()
			if len(pc) != len(ic) {
				return nil, false
			}
			// Push in reverse so children are processed left-to-right (spec
			// section 4.2: "push children pairs (reversed) onto the stack").
			for i := len(pc) - 1; i >= 0; i-- {
				stack = append(stack, pair{pattern: pc[i], instance: ic[i]})
			}
			continue
		}

		return nil, false
	}
	return s, true
}

// unifyWithBindings recursively unifies two already-resolved values when a
// variable is re-bound to a conflicting value (spec section 4.2: "Conflicting
// re-binding of an already-bound variable triggers recursive unification of
// the two values").
func unifyWithBindings(x, y *term.Term, s *subst.Substitution, bothSidesVariable bool) (*subst.Substitution, bool) {
	sub, ok := unify(x, y, bothSidesVariable)
	if !ok {
		return nil, false
	}
	return mergeSubstitutions(s, sub), true
}

func mergeSubstitutions(base, extra *subst.Substitution) *subst.Substitution {
	out := base
	for name, t := range extra.Bindings() {
		out = out.Bind(term.NewVariable(name), t)
	}
	return out
}

func resolveIfVar(t *term.Term, s *subst.Substitution) *term.Term {
	if t.IsVariable() {
		return s.Resolve(t)
	}
	return t
}

// occursCheckOK reports whether binding v to t is safe: t, once fully
// resolved under s, must not contain v (spec section 8 property 5).
func occursCheckOK(v, t *term.Term, s *subst.Substitution) bool {
	return !occursIn(v, t, s, make(map[string]bool))
}

func occursIn(v, t *term.Term, s *subst.Substitution, visiting map[string]bool) bool {
	switch t.Kind() {
	case term.KindVariable:
		if t.Equal(v) {
			return true
		}
		if visiting[t.Name()] {
			return false
		}
		if bound, ok := s.Lookup(t); ok {
			visiting[t.Name()] = true
			defer delete(visiting, t.Name())
			return occursIn(v, bound, s, visiting)
		}
		return false
	case term.KindAtom:
		return false
	case term.KindList:
		for _, c := range t.Children() {
			if occursIn(v, c, s, visiting) {
				return true
			}
		}
		return false
	}
	return false
}
