// Package cognition assembles the term/unify/index/kb/tms/bus/rules layers
// into the single Cognition context the external command surface talks to
// (spec section 6, "External interfaces"; section 9, "Global mutable
// state": "None in the core; the event bus, KB map, rule table, and
// operator registry are members of a Cognition context passed explicitly").
package cognition

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"noetic/internal/bus"
	"noetic/internal/config"
	"noetic/internal/events"
	"noetic/internal/kb"
	"noetic/internal/logging"
	"noetic/internal/operators"
	"noetic/internal/rules"
	"noetic/internal/term"
	"noetic/internal/tms"
)

// Cognition wires every layer together and exposes the abstract command
// surface of spec section 6.
type Cognition struct {
	cfg *config.Config

	KB       *kb.KB
	TMS      *tms.TMS
	Bus      *bus.Bus
	Rules    *rules.RuleSet
	Resolver *rules.Resolver
	Forward  *rules.ForwardEngine
	Query    *rules.QueryEngine
	Ops      *operators.Registry

	cfgMu  sync.RWMutex // guards in-place edits made by SetConfig
	paused atomic.Bool
}

// New constructs a Cognition context. askUser may be nil if no dialogue
// bridge is available (spec section 4.5's ask-user operator then always
// fails, per Open Question (c)).
func New(cfg *config.Config, askUser operators.AskUserFunc) *Cognition {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	b := bus.New(cfg)
	k := kb.New(cfg, b)
	t := tms.New(cfg, k, b)
	k.SetPremiseChecker(t)
	ops := operators.NewRegistry(askUser)
	rs := rules.NewRuleSet()
	resolver := rules.NewResolver(cfg, k, ops, rs)
	fwd := rules.NewForwardEngine(cfg, k, t, rs, resolver)
	qe := rules.NewQueryEngine(cfg, resolver)

	return &Cognition{
		cfg:      cfg,
		KB:       k,
		TMS:      t,
		Bus:      b,
		Rules:    rs,
		Resolver: resolver,
		Forward:  fwd,
		Query:    qe,
		Ops:      ops,
	}
}

// Start begins dispatching on the bus and wires the standing subscriptions
// that drive forward chaining and eviction cascades (spec section 2's data
// flow: "rule engine forward-chains ... TMS decides retention").
func (c *Cognition) Start(ctx context.Context) {
	c.Bus.Start(ctx)
	c.Bus.Subscribe([]events.Type{events.Asserted}, nil, func(e events.Event) {
		if c.paused.Load() {
			return
		}
		c.Forward.HandleAsserted(e)
	})
	c.Bus.Subscribe([]events.Type{events.Evicted}, nil, func(e events.Event) {
		c.TMS.CascadeFromEviction(e.Partition, e.AssertionID)
	})
}

// Stop drains the bus's worker pool.
func (c *Cognition) Stop() {
	c.Bus.Close()
}

// Pause rejects further assertion/rule ingestion and suspends forward
// chaining, without affecting queries (spec section 6's `pause` command).
func (c *Cognition) Pause()   { c.paused.Store(true) }
func (c *Cognition) Unpause() { c.paused.Store(false) }
func (c *Cognition) Paused() bool { return c.paused.Load() }

// AddResult reports what happened to each top-level term parsed from an add
// request.
type AddResult struct {
	Kind      TermKind
	Assertion *kb.Assertion // set when Kind == KindAssertion and it was not dropped
	RuleIDs   []string      // set when Kind is a rule kind
	Dropped   bool
	Reason    string
}

// Add parses kif as zero or more top-level terms and ingests each as a rule
// or assertion, per spec section 6's `add` command and the InputPlugin
// classification of spec section 2's data flow.
func (c *Cognition) Add(kif string, partition, sourceNoteID string) ([]AddResult, error) {
	if c.paused.Load() {
		return nil, fmt.Errorf("cognition: paused")
	}
	if partition == "" {
		partition = kb.PartitionClientInput
	}
	terms, err := term.ParseAll(kif)
	if err != nil {
		return nil, fmt.Errorf("cognition: parse: %w", err)
	}

	// Each top-level term is ingested independently; a malformed or rejected
	// term must not abort the rest of the batch (spec section 7's
	// "Invalid-command error" is per-term, not per-request). Failures across
	// the batch are aggregated with go-multierror rather than reported only
	// as the first one, mirroring the teacher pack's hashicorp-nomad
	// validation-aggregation convention (SPEC_FULL.md, "Error aggregation").
	out := make([]AddResult, 0, len(terms))
	var errs *multierror.Error
	for _, t := range terms {
		res, err := c.ingest(t, partition, sourceNoteID)
		out = append(out, res)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return out, errs.ErrorOrNil()
}

func (c *Cognition) ingest(t *term.Term, partition, sourceNoteID string) (AddResult, error) {
	switch Classify(t) {
	case KindImplication:
		id := t.ID()
		rule, ok := rules.FromImplication(id, t, partition)
		if !ok {
			err := fmt.Errorf("cognition: malformed implication %q: expected (⇒ antecedent consequent)", t.String())
			return AddResult{Kind: KindImplication, Dropped: true, Reason: err.Error()}, err
		}
		rule.SourceNoteID = sourceNoteID
		rule.Priority = c.cfg.Priority.BasePriority
		c.Rules.Add(rule)
		c.Bus.Emit(events.Event{Type: events.RuleAdded, Partition: partition, RuleID: rule.ID, RuleForm: t.String()})
		return AddResult{Kind: KindImplication, RuleIDs: []string{rule.ID}}, nil

	case KindEquivalence:
		sourceForm := t.ID()
		pair, ok := rules.FromEquivalence(sourceForm, t, partition)
		if !ok {
			err := fmt.Errorf("cognition: malformed equivalence %q: expected (⇔ a b)", t.String())
			return AddResult{Kind: KindEquivalence, Dropped: true, Reason: err.Error()}, err
		}
		for _, r := range pair {
			r.SourceNoteID = sourceNoteID
			r.Priority = c.cfg.Priority.BasePriority
		}
		c.Rules.Add(pair...)
		ids := make([]string, 0, len(pair))
		for _, r := range pair {
			ids = append(ids, r.ID)
			c.Bus.Emit(events.Event{Type: events.RuleAdded, Partition: partition, RuleID: r.ID, RuleForm: t.String()})
		}
		return AddResult{Kind: KindEquivalence, RuleIDs: ids}, nil

	default:
		res, err := c.KB.Commit(kb.PotentialAssertion{
			Term:         t,
			Partition:    partition,
			SourceNoteID: sourceNoteID,
		})
		if err != nil {
			logging.Get(logging.CategoryCognition).Errorw("commit failed", "err", err)
			return AddResult{Kind: KindAssertion, Dropped: true, Reason: err.Error()}, fmt.Errorf("cognition: %w", err)
		}
		if res.Dropped {
			return AddResult{Kind: KindAssertion, Dropped: true, Reason: res.Reason}, nil
		}
		c.TMS.CheckContradiction(partition, res.Assertion)
		return AddResult{Kind: KindAssertion, Assertion: res.Assertion}, nil
	}
}

// RetractType selects how Retract interprets target (spec section 6's
// `retract` command).
type RetractType int

const (
	ByID RetractType = iota
	ByNote
	ByRuleForm
	ByKIF
)

// Retract removes assertions or rules per spec section 6's `retract`
// command.
func (c *Cognition) Retract(partition, target string, kind RetractType, noteID string) error {
	switch kind {
	case ByID:
		a, ok := c.KB.GetAny(target)
		if !ok {
			return fmt.Errorf("cognition: unknown assertion id %q", target)
		}
		c.TMS.Remove(a.Partition, a.ID, "retraction requested")
		return nil

	case ByNote:
		for _, p := range c.KB.Partitions() {
			for _, a := range c.KB.AllActive(p) {
				if a.SourceNoteID == noteID {
					c.TMS.Remove(p, a.ID, "note retracted")
				}
			}
		}
		return nil

	case ByRuleForm:
		ids := c.Rules.RemoveBySourceForm(target)
		for _, id := range ids {
			c.Bus.Emit(events.Event{Type: events.RuleRemoved, RuleID: id})
		}
		return nil

	case ByKIF:
		t, err := term.Parse(target)
		if err != nil {
			return fmt.Errorf("cognition: parse retraction target: %w", err)
		}
		a, ok := c.KB.FindExact(partition, t)
		if !ok {
			return fmt.Errorf("cognition: no active assertion matches %q in partition %q", target, partition)
		}
		c.TMS.Remove(partition, a.ID, "retraction requested")
		return nil
	}
	return fmt.Errorf("cognition: unknown retract type %d", kind)
}

// Ask resolves a query per spec section 6's `query` command.
func (c *Cognition) Ask(ctx context.Context, pattern, partition string, mode rules.Mode) (rules.Answer, error) {
	t, err := term.Parse(pattern)
	if err != nil {
		return rules.Answer{}, fmt.Errorf("cognition: parse query: %w", err)
	}
	if partition == "" {
		partition = kb.PartitionGlobal
	}
	return c.Query.Ask(ctx, t, partition, mode), nil
}

// Clear wipes a partition (spec section 6's `clear` command).
func (c *Cognition) Clear(partition string) {
	c.KB.Clear(partition)
}

// GetConfig returns a snapshot of the current configuration.
func (c *Cognition) GetConfig() config.Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return *c.cfg
}

// SetConfig mutates the shared configuration in place. Because every layer
// holds the same *config.Config pointer, this takes effect immediately for
// new operations; it is not linearizable with respect to in-flight ones (the
// intended use is a paused, single-writer reconfiguration, as from a REPL).
func (c *Cognition) SetConfig(next config.Config) error {
	if err := next.Validate(); err != nil {
		return err
	}
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	*c.cfg = next
	return nil
}
