// Package bus implements the engine's event bus: topic-typed and
// KIF-pattern subscriptions dispatched asynchronously over a bounded worker
// pool, with sequence-numbered within-operation ordering and no
// cross-restart delivery guarantee (spec section 4.6). Each worker takes one
// event at a time off the queue and dispatches it; events are not batched,
// and the Bus.BatchWindow and Bus.BatchLimit settings are not read. The
// worker pool uses golang.org/x/sync/errgroup in place of the teacher's
// single flush-timer goroutine, since spec section 5 calls for a bounded pool
// rather than one serialized flush path.
package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"noetic/internal/config"
	"noetic/internal/events"
	"noetic/internal/logging"
	"noetic/internal/term"
	"noetic/internal/unify"
)

// Handler receives a dispatched event. Handlers run on a worker goroutine;
// they must not block indefinitely, and panics are recovered and logged
// rather than crashing the bus.
type Handler func(events.Event)

type subscription struct {
	id      uint64
	types   map[events.Type]bool // nil/empty means "all types"
	pattern *term.Term            // nil means "no pattern filter"
	handler Handler
}

func (s *subscription) matches(e events.Event) bool {
	if len(s.types) > 0 && !s.types[e.Type] {
		return false
	}
	if s.pattern == nil {
		return true
	}
	t, ok := e.Term.(*term.Term)
	if !ok {
		return false
	}
	_, matched := unify.Match(s.pattern, t)
	return matched
}

// Bus is the asynchronous event dispatcher (spec section 4.6).
type Bus struct {
	cfg *config.Config

	mu        sync.RWMutex
	subs      map[uint64]*subscription
	nextSubID uint64

	sequence atomic.Uint64

	queue  chan events.Event
	cancel context.CancelFunc
	group  *errgroup.Group
	closed atomic.Bool

	dropped atomic.Uint64
}

// New constructs a Bus. Call Start to begin dispatching.
func New(cfg *config.Config) *Bus {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Bus{
		cfg:  cfg,
		subs: make(map[uint64]*subscription),
	}
}

// Start spins up the bounded worker pool. It is safe to call once; calling
// it twice is a no-op.
func (b *Bus) Start(ctx context.Context) {
	if b.queue != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.queue = make(chan events.Event, b.cfg.Bus.QueueDepth)

	g, gctx := errgroup.WithContext(ctx)
	b.group = g
	for i := 0; i < b.cfg.Bus.WorkerCount; i++ {
		g.Go(func() error {
			b.worker(gctx)
			return nil
		})
	}
}

func (b *Bus) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.dispatch(e)
		}
	}
}

func (b *Bus) dispatch(e events.Event) {
	b.mu.RLock()
	matching := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.matches(e) {
			matching = append(matching, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range matching {
		b.invoke(s, e)
	}
}

func (b *Bus) invoke(s *subscription, e events.Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryBus).Errorw("event handler panicked", "type", e.Type, "recover", r)
		}
	}()
	s.handler(e)
}

// Emit assigns a sequence number and enqueues e for asynchronous dispatch.
// If the worker pool's queue is full the event is dropped and counted (spec
// section 4.6: "no cross-restart delivery guarantee" extends to
// overflow-under-load, consistent with the teacher's "drop if channel full"
// policy).
func (b *Bus) Emit(e events.Event) {
	if b.closed.Load() {
		return
	}
	e.Seq = b.sequence.Add(1)
	select {
	case b.queue <- e:
	default:
		b.dropped.Add(1)
		logging.Get(logging.CategoryBus).Warnw("dropped event, queue full", "type", e.Type, "seq", e.Seq)
	}
}

// Subscribe registers h for events of any type in types (empty means all
// types), optionally further filtered to events whose Term pattern matches
// one-way via unify.Match, with variables bound on the pattern side only
// (nil means no pattern filter — spec section 4.6's "KIF-pattern
// based subscription"). Returns an id for Unsubscribe.
func (b *Bus) Subscribe(types []events.Type, pattern *term.Term, h Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSubID++
	id := b.nextSubID
	tset := make(map[events.Type]bool, len(types))
	for _, t := range types {
		tset[t] = true
	}
	b.subs[id] = &subscription{id: id, types: tset, pattern: pattern, handler: h}
	return id
}

// Unsubscribe removes a subscription registered with Subscribe.
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Close stops the worker pool and waits for in-flight dispatches to finish.
// No further events are accepted after Close returns.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	if b.cancel != nil {
		b.cancel()
	}
	if b.group != nil {
		_ = b.group.Wait()
	}
}

// Stats reports bus-level counters, surfaced via the Cognition context's
// get_status operation (spec section 6).
type Stats struct {
	SubscriberCount int
	TotalEmitted    uint64
	Dropped         uint64
	QueueDepth      int
	QueueLen        int
}

func (b *Bus) StatsSnapshot() Stats {
	b.mu.RLock()
	subCount := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		SubscriberCount: subCount,
		TotalEmitted:    b.sequence.Load(),
		Dropped:         b.dropped.Load(),
		QueueDepth:      b.cfg.Bus.QueueDepth,
		QueueLen:        len(b.queue),
	}
}
