// Package subst implements substitutions (Var -> Term mappings) and their
// application to terms, per spec section 4.1. Application is structural and
// eager; resolution chases variable-to-variable chains with a visited set.
package subst

import "noetic/internal/term"

// Substitution maps variable names to terms. The zero value is the empty
// substitution.
type Substitution struct {
	bindings map[string]*term.Term
}

// New returns an empty substitution.
func New() *Substitution {
	return &Substitution{bindings: make(map[string]*term.Term)}
}

// Bind returns a new substitution extending s with v -> t. The receiver is
// left untouched (substitutions are treated as persistent/immutable by
// callers in the unifier, which clone-on-write via this method).
func (s *Substitution) Bind(v *term.Term, t *term.Term) *Substitution {
	out := s.clone()
	out.bindings[v.Name()] = t
	return out
}

// BindInPlace mutates the receiver, for call sites (the unifier's stack
// loop) that already own a private substitution and want to avoid the
// clone-per-step cost of Bind.
func (s *Substitution) BindInPlace(v *term.Term, t *term.Term) {
	if s.bindings == nil {
		s.bindings = make(map[string]*term.Term)
	}
	s.bindings[v.Name()] = t
}

func (s *Substitution) clone() *Substitution {
	out := &Substitution{bindings: make(map[string]*term.Term, len(s.bindings)+1)}
	for k, v := range s.bindings {
		out.bindings[k] = v
	}
	return out
}

// Lookup returns the term directly bound to v, if any (one hop, not
// resolved through chains).
func (s *Substitution) Lookup(v *term.Term) (*term.Term, bool) {
	if s == nil || s.bindings == nil {
		return nil, false
	}
	t, ok := s.bindings[v.Name()]
	return t, ok
}

// Len returns the number of bindings.
func (s *Substitution) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bindings)
}

// Bindings returns a copy of the binding map, keyed by variable name, for
// callers (e.g. ASK_BINDINGS results) that need a stable snapshot.
func (s *Substitution) Bindings() map[string]*term.Term {
	out := make(map[string]*term.Term, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.bindings {
		out[k] = v
	}
	return out
}

// Resolve chases variable-to-variable chains starting at t, using a visited
// set to guarantee termination on cycles (spec section 4.1: "cycle returns
// the variable itself"). Non-variable terms resolve to themselves.
func (s *Substitution) Resolve(t *term.Term) *term.Term {
	if t == nil || !t.IsVariable() {
		return t
	}
	visited := make(map[string]bool)
	cur := t
	for {
		if visited[cur.Name()] {
			return cur
		}
		visited[cur.Name()] = true
		next, ok := s.Lookup(cur)
		if !ok {
			return cur
		}
		if !next.IsVariable() {
			return next
		}
		cur = next
	}
}

// Apply performs structural, eager substitution of t under s. Lists get a
// new list only if a child actually changed (pointer-equality
// short-circuit), per spec section 4.1.
func (s *Substitution) Apply(t *term.Term) *term.Term {
	switch t.Kind() {
	case term.KindAtom:
		return t
	case term.KindVariable:
		resolved := s.Resolve(t)
		if resolved == t {
			return t
		}
		// The resolved value may itself still contain variables bound in s
		// (e.g. ?x -> ?y -> (f ?y)); apply recursively but guard against the
		// trivial self-cycle already handled by Resolve.
		if resolved.IsVariable() {
			return resolved
		}
		return s.Apply(resolved)
	case term.KindList:
		children := t.Children()
		var newChildren []*term.Term
		changed := false
		for i, c := range children {
			nc := s.Apply(c)
			if nc != c {
				if !changed {
					newChildren = make([]*term.Term, len(children))
					copy(newChildren, children[:i])
					changed = true
				}
			}
			if changed {
				newChildren[i] = nc
			}
		}
		if !changed {
			return t
		}
		return term.NewList(newChildren...)
	}
	return t
}

// Compose returns a substitution equivalent to applying s first, then t
// (t ∘ s in function-composition order: Apply(Compose(s,t), x) ==
// t.Apply(s.Apply(x))), satisfying spec section 8 property 3's associativity
// requirement "whenever σ ∘ τ is defined".
func Compose(s, t *Substitution) *Substitution {
	out := New()
	for k, v := range s.bindings {
		out.bindings[k] = t.Apply(v)
	}
	for k, v := range t.bindings {
		if _, already := out.bindings[k]; !already {
			out.bindings[k] = v
		}
	}
	return out
}
