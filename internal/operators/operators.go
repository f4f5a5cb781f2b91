// Package operators implements the built-in predicate operators the query
// engine delegates to for subgoals it cannot resolve by matching against the
// knowledge base: arithmetic, comparison, and the ask-user dialogue bridge
// (spec section 4.5, "Operator delegation"). The registry shape follows the
// teacher's tool-registry pattern (a name-keyed map guarded by a mutex,
// populated by registerBuiltins at construction).
package operators

import (
	"fmt"
	"strconv"
	"sync"

	"noetic/internal/subst"
	"noetic/internal/term"
)

// Result is what an operator call produces: either a set of bindings that
// extend the caller's substitution (success), or a failure with an
// explanation folded into ordinary subgoal-failure semantics (spec section
// 4.5's Open Question (c) resolution: ask-user's absent answer is just
// another operator failure, not a distinct status).
type Result struct {
	Bindings []*subst.Substitution // alternative binding sets, usually len 1 for functional operators
	Ok       bool
	Reason   string
}

// Operator resolves a predicate call (the already-substituted argument
// terms) against the current substitution, yielding zero or more extensions.
type Operator func(args []*term.Term, current *subst.Substitution) Result

// AskUserFunc is the dialogue bridge: given a prompt term, return the user's
// answer term, or (nil, false) if no answer was obtained.
type AskUserFunc func(prompt *term.Term) (*term.Term, bool)

// Registry is a name-keyed table of operators.
type Registry struct {
	mu        sync.RWMutex
	operators map[string]Operator
	askUser   AskUserFunc
}

// NewRegistry constructs a registry pre-populated with the built-in
// arithmetic and comparison operators. askUser may be nil, in which case the
// ask-user operator always fails.
func NewRegistry(askUser AskUserFunc) *Registry {
	r := &Registry{
		operators: make(map[string]Operator),
		askUser:   askUser,
	}
	r.registerBuiltins()
	return r
}

// Register adds or overrides a named operator.
func (r *Registry) Register(name string, op Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[name] = op
}

// Lookup returns the operator registered for name, if any.
func (r *Registry) Lookup(name string) (Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operators[name]
	return op, ok
}

// Has reports whether name is a registered operator, for callers (the rule
// engine) deciding whether a subgoal should be delegated instead of matched
// against the KB.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

func (r *Registry) registerBuiltins() {
	r.Register("+", arith(func(a, b float64) float64 { return a + b }))
	r.Register("-", arith(func(a, b float64) float64 { return a - b }))
	r.Register("*", arith(func(a, b float64) float64 { return a * b }))
	r.Register("/", func(args []*term.Term, cur *subst.Substitution) Result {
		if len(args) != 3 {
			return Result{Reason: "/ requires exactly two operands and a result term"}
		}
		a, b, ok := numericOperands(args[0], args[1])
		if !ok {
			return Result{Reason: "/ requires numeric operands"}
		}
		if b == 0 {
			return Result{Reason: "division by zero"}
		}
		return bindResult(args[2], a/b, cur)
	})

	r.Register("<", compare(func(a, b float64) bool { return a < b }))
	r.Register(">", compare(func(a, b float64) bool { return a > b }))
	r.Register("<=", compare(func(a, b float64) bool { return a <= b }))
	r.Register(">=", compare(func(a, b float64) bool { return a >= b }))

	r.Register("ask-user", func(args []*term.Term, cur *subst.Substitution) Result {
		if len(args) != 2 {
			return Result{Reason: "ask-user requires a prompt and a result term"}
		}
		if r.askUser == nil {
			return Result{Reason: "no dialogue bridge configured"}
		}
		answer, ok := r.askUser(args[0])
		if !ok || answer == nil {
			return Result{Reason: "no answer from user"}
		}
		return bindResult(args[1], answer, cur)
	})
}

// arith builds a binary arithmetic operator: (op a b result) binds result to
// fn(a, b) when a and b are both numeric after substitution.
func arith(fn func(a, b float64) float64) Operator {
	return func(args []*term.Term, cur *subst.Substitution) Result {
		if len(args) != 3 {
			return Result{Reason: "arithmetic operator requires exactly two operands and a result term"}
		}
		a, b, ok := numericOperands(args[0], args[1])
		if !ok {
			return Result{Reason: "arithmetic operator requires numeric operands"}
		}
		return bindResult(args[2], fn(a, b), cur)
	}
}

// compare builds a binary comparison operator: (op a b) succeeds with no new
// bindings when fn(a, b) holds.
func compare(fn func(a, b float64) bool) Operator {
	return func(args []*term.Term, cur *subst.Substitution) Result {
		if len(args) != 2 {
			return Result{Reason: "comparison operator requires exactly two operands"}
		}
		a, b, ok := numericOperands(args[0], args[1])
		if !ok {
			return Result{Reason: "comparison operator requires numeric operands"}
		}
		if !fn(a, b) {
			return Result{Reason: "comparison does not hold"}
		}
		return Result{Ok: true, Bindings: []*subst.Substitution{cur}}
	}
}

func numericOperands(a, b *term.Term) (float64, float64, bool) {
	av, aok := asNumber(a)
	bv, bok := asNumber(b)
	return av, bv, aok && bok
}

func asNumber(t *term.Term) (float64, bool) {
	if !t.IsAtom() || t.AtomSubkind() != term.AtomNumber {
		return 0, false
	}
	v, err := strconv.ParseFloat(t.Name(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// bindResult unifies want (a variable or a ground term) against the computed
// value, extending cur on success.
func bindResult(want *term.Term, value interface{}, cur *subst.Substitution) Result {
	var valueTerm *term.Term
	switch v := value.(type) {
	case float64:
		valueTerm = term.NewNumberAtom(v)
	case *term.Term:
		valueTerm = v
	default:
		return Result{Reason: fmt.Sprintf("unsupported result type %T", value)}
	}

	if want.IsVariable() {
		return Result{Ok: true, Bindings: []*subst.Substitution{cur.Bind(want, valueTerm)}}
	}
	if want.Equal(valueTerm) {
		return Result{Ok: true, Bindings: []*subst.Substitution{cur}}
	}
	return Result{Reason: "computed value does not match the given result term"}
}
