// Package events defines the wire shape of the engine's event surface (spec
// section 6, "Event surface (published)") and the narrow Sink interface
// producers depend on. It sits at the same leaf level as term/subst/unify so
// that kb, tms, bus, and rules can all depend on one shared event vocabulary
// without kb or tms needing to import the bus package itself (spec section
// 2's "dependency order (leaves first)": KB and TMS precede the event bus).
package events

import "time"

// Type enumerates the published event kinds of spec section 6.
type Type string

const (
	Asserted              Type = "assertion_added"
	Retracted             Type = "assertion_removed"
	Evicted               Type = "assertion_evicted"
	StateChanged          Type = "assertion_state_changed"
	RuleAdded             Type = "rule_added"
	RuleRemoved           Type = "rule_removed"
	TaskUpdate            Type = "task_update"
	SystemStatus          Type = "system_status"
	ContradictionDetected Type = "contradiction_detected"
	DialogueRequest       Type = "dialogue_request"
)

// Event is the payload carried on every topic. Not every field is populated
// for every Type; see the doc comment on each Type's producer.
type Event struct {
	// Sequence number assigned by the bus when the event is emitted, for deterministic
	// within-operation ordering (spec section 4.6 "Ordering").
	Seq uint64

	Type      Type
	Timestamp time.Time

	Partition    string
	AssertionID  string
	Term         TermLike
	Reason       string   // Retracted / Evicted reason
	Justifications []string
	ConflictIDs  []string // ContradictionDetected

	RuleID     string
	RuleForm   string

	// Status/config/free-form payload for task_update, system_status,
	// dialogue_request, get_config/set_config responses.
	Payload map[string]any
}

// TermLike is satisfied by *term.Term; declared as an interface here so this
// leaf package does not need to import the term package, keeping it
// dependency-free (events sits below even term in the build graph: term
// itself never needs to know about events).
type TermLike interface {
	String() string
}

// Sink is anything that can accept a published event. The event bus
// implements it; kb and tms only depend on this interface, not on the bus
// package, per the dependency order in spec section 2.
type Sink interface {
	Emit(Event)
}

// NopSink discards every event. Useful as a zero-value default so kb/tms can
// be constructed and used standalone (e.g. in unit tests) without wiring a
// real bus.
type NopSink struct{}

func (NopSink) Emit(Event) {}
