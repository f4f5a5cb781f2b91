package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noetic/internal/config"
	"noetic/internal/kb"
	"noetic/internal/operators"
)

func TestQueryAskBindingsEnumeratesMatches(t *testing.T) {
	h := newHarness(t)
	h.commitAndChain(t, kb.PotentialAssertion{Term: mustParse(t, "(knows self bob)"), Partition: kb.PartitionGlobal})
	h.commitAndChain(t, kb.PotentialAssertion{Term: mustParse(t, "(knows self carol)"), Partition: kb.PartitionGlobal})

	qe := NewQueryEngine(config.DefaultConfig(), h.resolver)
	answer := qe.Ask(context.Background(), mustParse(t, "(knows self ?who)"), kb.PartitionGlobal, AskBindings)

	require.True(t, answer.True)
	assert.Len(t, answer.Bindings, 2)
}

func TestQueryAskTrueFalse(t *testing.T) {
	h := newHarness(t)
	h.commitAndChain(t, kb.PotentialAssertion{Term: mustParse(t, "(raining)"), Partition: kb.PartitionGlobal})

	qe := NewQueryEngine(config.DefaultConfig(), h.resolver)
	yes := qe.Ask(context.Background(), mustParse(t, "(raining)"), kb.PartitionGlobal, AskTrueFalse)
	assert.True(t, yes.True)

	no := qe.Ask(context.Background(), mustParse(t, "(snowing)"), kb.PartitionGlobal, AskTrueFalse)
	assert.False(t, no.True)
}

func TestQueryResolvesViaRuleConsequent(t *testing.T) {
	h := newHarness(t)
	rule, ok := FromImplication("r1", mustParse(t, "(⇒ (bird ?x) (can-fly ?x))"), kb.PartitionGlobal)
	require.True(t, ok)
	h.rules.Add(rule)
	h.commitAndChain(t, kb.PotentialAssertion{Term: mustParse(t, "(bird tweety)"), Partition: kb.PartitionGlobal})

	qe := NewQueryEngine(config.DefaultConfig(), h.resolver)
	answer := qe.Ask(context.Background(), mustParse(t, "(can-fly tweety)"), kb.PartitionGlobal, AskTrueFalse)
	assert.True(t, answer.True)
}

func TestQueryDelegatesToOperator(t *testing.T) {
	cfg := config.DefaultConfig()
	k := kb.New(cfg, nil)
	ops := operators.NewRegistry(nil)
	rs := NewRuleSet()
	resolver := NewResolver(cfg, k, ops, rs)
	qe := NewQueryEngine(cfg, resolver)

	answer := qe.Ask(context.Background(), mustParse(t, "(< 2 3)"), kb.PartitionGlobal, AskTrueFalse)
	assert.True(t, answer.True)
}

func TestQueryTimesOutUnderShortDeadline(t *testing.T) {
	h := newHarness(t)
	qe := NewQueryEngine(config.DefaultConfig(), h.resolver)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	answer := qe.Ask(ctx, mustParse(t, "(anything)"), kb.PartitionGlobal, AskTrueFalse)
	assert.True(t, answer.TimedOut)
}
