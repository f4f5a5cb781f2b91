package rules

import (
	"context"

	"noetic/internal/config"
	"noetic/internal/subst"
	"noetic/internal/term"
)

// Mode selects the shape of a query request (spec section 4.5, "Query
// engine"): ASK_BINDINGS returns the satisfying substitutions, up to the
// configured result limit; ASK_TRUE_FALSE reports only whether any solution
// exists, without bindings; and ACHIEVE_GOAL returns the first solution's
// bindings, since a goal's bindings are what satisfying it means. All three
// run the same SLD-style search to completion before the answer is shaped.
type Mode int

const (
	AskBindings Mode = iota
	AskTrueFalse
	AchieveGoal
)

// Answer is the result of a query (spec section 4.5).
type Answer struct {
	Bindings []map[string]*term.Term
	True     bool
	TimedOut bool
}

// QueryEngine answers backward-chaining queries over a Resolver (spec
// section 4.5).
type QueryEngine struct {
	resolver *Resolver
	cfg      *config.Config
}

func NewQueryEngine(cfg *config.Config, r *Resolver) *QueryEngine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &QueryEngine{resolver: r, cfg: cfg}
}

// Ask resolves goal against partition under mode, honoring ctx's deadline
// (spec section 4.5: a query that exceeds its deadline yields a "timeout"
// answer rather than hanging). If ctx carries no deadline, the engine's
// configured default is applied.
func (q *QueryEngine) Ask(ctx context.Context, goal *term.Term, partition string, mode Mode) Answer {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && q.cfg.Query.DefaultDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.Query.DefaultDeadline)
		defer cancel()
	}

	done := make(chan []Solution, 1)
	go func() {
		done <- q.resolver.SolveConjunction([]*term.Term{goal}, partition, subst.New(), 0)
	}()

	select {
	case <-ctx.Done():
		return Answer{TimedOut: true}
	case solutions := <-done:
		return q.toAnswer(solutions, mode, goal)
	}
}

func (q *QueryEngine) toAnswer(solutions []Solution, mode Mode, goal *term.Term) Answer {
	if len(solutions) == 0 {
		return Answer{True: false}
	}
	vars := freeVariables(goal)
	switch mode {
	case AskTrueFalse:
		return Answer{True: true}
	case AchieveGoal:
		// "return first successful binding(s) or fail" (spec section 4.5):
		// unlike ASK_TRUE_FALSE, a goal's bindings are the point of achieving
		// it, so surface the first solution's.
		return Answer{True: true, Bindings: []map[string]*term.Term{bindingsOf(solutions[0], vars)}}
	default:
		limit := q.cfg.Query.DefaultResultLimit
		out := make([]map[string]*term.Term, 0, len(solutions))
		for i, sol := range solutions {
			if limit > 0 && i >= limit {
				break
			}
			out = append(out, bindingsOf(sol, vars))
		}
		return Answer{True: true, Bindings: out}
	}
}

// bindingsOf resolves vars under sol's substitution into a binding map.
func bindingsOf(sol Solution, vars []string) map[string]*term.Term {
	binding := make(map[string]*term.Term, len(vars))
	for _, v := range vars {
		binding[v] = sol.Subst.Apply(term.NewVariable(v))
	}
	return binding
}

