// Package kernel implements the single-threaded cooperative tick loop
// shared by every actor role (spec.md §4.1). One goroutine ("actor
// main") owns all reservation, slice, and calendar state; every other
// goroutine — bus consumer, producer pool, clock, timer, provisioning
// pool — only ever enqueues an Event and never touches kernel state
// directly.
package kernel

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/log"
	"github.com/testbedctl/actorcore/pkg/protocol"
	"github.com/testbedctl/actorcore/pkg/timer"
	"github.com/testbedctl/actorcore/pkg/types"
)

// EventKind identifies one of the four event kinds the kernel consumes
// (spec.md §4.1).
type EventKind int

const (
	EventMessage EventKind = iota
	EventRPCComplete
	EventTick
	EventCommand
)

// CompletionEvent reports the outcome of an outgoing RPC or a handler
// invocation, keyed by reservation id.
type CompletionEvent struct {
	ReservationID string
	Kind          string // protocol.Kind of the request this completes, or "provision"/"teardown"
	OK            bool
	Properties    map[string]string
	Err           *types.Error
}

// Event is one item on the kernel's queue.
type Event struct {
	Kind EventKind

	Envelope   protocol.Envelope // EventMessage
	Completion CompletionEvent   // EventRPCComplete

	// Command is an arbitrary local action (e.g. an orchestrator
	// accepting a create-slice request) run on the kernel goroutine with
	// exclusive access to reservation/slice state. Errors are logged,
	// never panicked.
	Command func(*Kernel) error
}

// Store is the narrow persistence dependency the kernel needs: batched,
// transactional writes of dirty reservations (spec.md §4.1 step 6). A
// concrete implementation lives in pkg/storage.
type Store interface {
	SaveReservations(batch []*types.Reservation) error
}

// OutboundMessage is one message queued during a tick's processing step
// for the producer pool to send after the tick completes (spec.md §5:
// outbound sends happen off the kernel thread).
type OutboundMessage struct {
	Topic    string
	Envelope protocol.Envelope
}

// Hooks is the policy capability set a loaded ActorRole supplies
// (spec.md §9 redesign notes: "one concrete kernel over a tagged variant
// ActorRole plus policy interfaces"). The kernel calls into Hooks for
// anything role-specific; it never branches on ActorRole itself.
type Hooks interface {
	// ProcessDue runs whatever the loaded role does with a reservation
	// that is due for re-examination this tick — allocate a ticket,
	// bind a redeem, start a handler, swap a lease window — after the
	// kernel has already verified its predecessors are satisfied.
	ProcessDue(k *Kernel, r *types.Reservation, now time.Time, tick uint64)

	// Complete applies the outcome of an RPC completion or handler
	// invocation to the reservation it named.
	Complete(k *Kernel, r *types.Reservation, ev CompletionEvent)
}

// Stats is a point-in-time snapshot of kernel activity, exposed for
// metrics collection.
type Stats struct {
	TicksProcessed   uint64
	EventsProcessed  uint64
	ReservationCount int
	DirtyPersisted   uint64

	// RenewingCount is the size of the calendar's Renewing bucket this
	// tick (spec.md §4.3): holdings whose lease-end falls inside the
	// renew lookahead, surfaced for a deployment's renewal tooling to
	// watch rather than acted on by the kernel itself.
	RenewingCount int

	// StatesCount is the current reservation count keyed by
	// "<state>/<pending>", recomputed once per tick. A metrics collector
	// polls Stats rather than ranging the kernel's reservation map
	// directly, since that map is only safe to touch from the kernel's
	// own goroutine.
	StatesCount map[string]int
}

// Kernel is the per-actor tick loop. It is not safe for concurrent use
// from more than one goroutine except via Enqueue, which is the only
// thread-safe entry point; everything else runs exclusively on the
// goroutine that calls Run.
type Kernel struct {
	Role types.ActorRole

	clock    Clock
	cal      *calendar.Calendar
	store    Store
	hooks    Hooks
	timer    *timer.Service
	outboxCh chan<- OutboundMessage

	batchCap        int
	commitBatchSize int

	qmu   sync.Mutex
	queue []Event

	reservations map[string]*types.Reservation
	slices       map[string]*types.Slice
	sliceOrder   []string                 // slice ids in first-seen order
	sliceResv    map[string][]string      // slice id -> reservation ids, insertion order

	outbox []OutboundMessage

	statsMu sync.Mutex
	stats   Stats
}

// Clock is the subset of clock.Clock the kernel depends on.
type Clock interface {
	Now() time.Time
	Tick() uint64
	C() <-chan time.Time
}

// Config parameterizes a new Kernel.
type Config struct {
	Role            types.ActorRole
	Clock           Clock
	Calendar        *calendar.Calendar
	Store           Store
	Hooks           Hooks
	Outbox          chan<- OutboundMessage
	BatchCap        int // event-drain cap per tick; 0 means unbounded
	CommitBatchSize int // commit.batch.size, default 1

	// Timer is the deferred-timeout service (spec.md §5's timer thread).
	// Nil disables deadline tracking entirely, which is fine for a role
	// that only answers RPCs rather than issuing them, and for tests
	// driving the kernel directly.
	Timer *timer.Service
}

// New builds a Kernel from cfg.
func New(cfg Config) *Kernel {
	commitBatch := cfg.CommitBatchSize
	if commitBatch <= 0 {
		commitBatch = 1
	}
	return &Kernel{
		Role:            cfg.Role,
		clock:           cfg.Clock,
		cal:             cfg.Calendar,
		store:           cfg.Store,
		hooks:           cfg.Hooks,
		timer:           cfg.Timer,
		outboxCh:        cfg.Outbox,
		batchCap:        cfg.BatchCap,
		commitBatchSize: commitBatch,
		reservations:    make(map[string]*types.Reservation),
		slices:          make(map[string]*types.Slice),
		sliceResv:       make(map[string][]string),
	}
}

// Enqueue appends ev to the kernel's event queue. Safe to call from any
// goroutine; the event is only acted on at the next tick's drain step.
func (k *Kernel) Enqueue(ev Event) {
	k.qmu.Lock()
	k.queue = append(k.queue, ev)
	k.qmu.Unlock()
}

// Send queues env for delivery to topic once the current tick's
// processing steps finish (spec.md §4.1 step 5: "flush outbound
// messages"). Callable only from within a Hooks method on the kernel
// goroutine.
func (k *Kernel) Send(topic string, env protocol.Envelope) {
	k.outbox = append(k.outbox, OutboundMessage{Topic: topic, Envelope: env})
}

// AdoptReservation registers r with the kernel under its slice, in
// insertion order, and adds it to the Pending calendar view at dueTick.
func (k *Kernel) AdoptReservation(r *types.Reservation, dueTick uint64) {
	if _, exists := k.reservations[r.ID]; !exists {
		if _, seen := k.sliceResv[r.SliceID]; !seen {
			k.sliceOrder = append(k.sliceOrder, r.SliceID)
		}
		k.sliceResv[r.SliceID] = append(k.sliceResv[r.SliceID], r.ID)
	}
	k.reservations[r.ID] = r
	k.cal.AddPending(r, dueTick)
}

// AdoptSlice registers s with the kernel.
func (k *Kernel) AdoptSlice(s *types.Slice) {
	k.slices[s.ID] = s
}

// Reservation looks up a reservation by id.
func (k *Kernel) Reservation(id string) (*types.Reservation, bool) {
	r, ok := k.reservations[id]
	return r, ok
}

// Slice looks up a slice by id.
func (k *Kernel) Slice(id string) (*types.Slice, bool) {
	s, ok := k.slices[id]
	return s, ok
}

// Calendar exposes the kernel's calendar to Hooks implementations.
func (k *Kernel) Calendar() *calendar.Calendar { return k.cal }

// Now returns the kernel's current clock time, for Hooks that need it
// outside the (now, tick) pair ProcessDue/Complete already carry.
func (k *Kernel) Now() time.Time { return k.clock.Now() }

// CurrentTick returns the kernel's current logical tick counter.
func (k *Kernel) CurrentTick() uint64 { return k.clock.Tick() }

// Arm schedules a deadline for an outgoing RPC, so a reply that never
// arrives surfaces as a synthetic completion event instead of leaving
// the reservation pending forever (spec.md §5's timer thread). A nil
// timer — a role that never issues RPCs, or a test driving the kernel
// directly — makes this a no-op.
func (k *Kernel) Arm(correlationID, reservationID, kind string, dueTick uint64) {
	if k.timer == nil {
		return
	}
	k.timer.Arm(correlationID, reservationID, kind, dueTick)
}

// Disarm cancels a previously armed deadline, called once the matching
// reply arrives.
func (k *Kernel) Disarm(correlationID string) {
	if k.timer == nil {
		return
	}
	k.timer.Disarm(correlationID)
}

// Run drives the tick loop until ctx is canceled.
func (k *Kernel) Run(ctx context.Context) error {
	kl := log.WithActor("", string(k.Role))
	kl.Info().Msg("kernel starting")
	for {
		select {
		case <-ctx.Done():
			kl.Info().Msg("kernel stopping")
			return ctx.Err()
		case now, ok := <-k.clock.C():
			if !ok {
				return nil
			}
			k.processTick(now)
		}
	}
}

// Tick runs one iteration of the six-step tick loop directly, without
// waiting on the clock channel. Run performs the same iteration for each
// time value its clock delivers; a manual-mode driver (tests, replay
// harnesses) can call Tick directly after advancing its Clock.
func (k *Kernel) Tick(now time.Time) {
	k.processTick(now)
}

// processTick runs the six ordered steps of spec.md §4.1 for one tick.
func (k *Kernel) processTick(now time.Time) {
	tick := k.clock.Tick()

	// step 1: drain queue up to batch cap.
	events := k.drain()
	for _, ev := range events {
		k.handleEvent(ev, now, tick)
	}

	// step 2: advance calendar cursor — the calendar is tick-indexed via
	// Pending/DueBefore, so "advancing" it is simply querying with the
	// current tick below; there is no separate cursor object to move.

	// fire any deadlines the timer thread has expired this tick, feeding
	// them back in as completion events so a lost reply eventually
	// surfaces as a retry or a Timeout rather than stalling forever.
	if k.timer != nil {
		for _, te := range k.timer.Tick(tick) {
			k.handleCompletion(CompletionEvent{
				ReservationID: te.ReservationID,
				Kind:          te.Kind,
				OK:            false,
				Err:           te.Err,
			}, now, tick)
		}
	}

	// step 3 + 4: process, per slice in slice-id order, the reservations
	// due for re-examination, invoking policy for each.
	due := k.cal.DueBefore(tick)
	grouped := k.groupBySlice(due)
	for _, sliceID := range k.orderedSliceIDs(grouped) {
		for _, r := range grouped[sliceID] {
			k.processDue(r, now, tick)
		}
	}

	// Closing bucket: reservations at or past lease-end needing teardown.
	for _, r := range k.cal.ClosingBefore(now.Unix()) {
		if r.Pending != types.PendingClosing {
			r.Pending = types.PendingClosing
			r.MarkDirty()
			k.hooks.ProcessDue(k, r, now, tick)
		}
	}

	// step 5: flush outbound messages to the producer pool.
	k.flushOutbox()

	// step 6: persist dirty reservations in batches of commitBatchSize.
	persisted := k.persistDirty()

	states := make(map[string]int, len(k.reservations))
	for _, r := range k.reservations {
		states[string(r.State)+"/"+string(r.Pending)]++
	}

	k.statsMu.Lock()
	k.stats.TicksProcessed++
	k.stats.EventsProcessed += uint64(len(events))
	k.stats.ReservationCount = len(k.reservations)
	k.stats.DirtyPersisted += uint64(persisted)
	k.stats.RenewingCount = len(k.cal.RenewingBefore(now.Unix()))
	k.stats.StatesCount = states
	k.statsMu.Unlock()
}

func (k *Kernel) drain() []Event {
	k.qmu.Lock()
	defer k.qmu.Unlock()
	n := len(k.queue)
	if k.batchCap > 0 && k.batchCap < n {
		n = k.batchCap
	}
	batch := k.queue[:n]
	k.queue = k.queue[n:]
	return batch
}

func (k *Kernel) handleEvent(ev Event, now time.Time, tick uint64) {
	switch ev.Kind {
	case EventMessage:
		k.handleMessage(ev.Envelope, now, tick)
	case EventRPCComplete:
		k.handleCompletion(ev.Completion, now, tick)
	case EventCommand:
		if ev.Command == nil {
			return
		}
		if err := ev.Command(k); err != nil {
			log.WithComponent("kernel").Error().Err(err).Msg("local command failed")
		}
	case EventTick:
		// Ticks arrive via the clock channel directly; a queued
		// EventTick is a no-op placeholder for tests that want to drive
		// the queue without a real clock.
	}
}

func (k *Kernel) handleMessage(env protocol.Envelope, now time.Time, tick uint64) {
	// Routing to per-kind reservation logic is the loaded role's job;
	// the kernel only guarantees ordering and dependency checks. A real
	// dispatch table is wired by pkg/actor via Hooks.ProcessDue after
	// the envelope's payload has been unpacked into (or matched against)
	// a known reservation id — see pkg/actor for the concrete wiring.
	_ = env
	_ = now
	_ = tick
}

func (k *Kernel) handleCompletion(ev CompletionEvent, now time.Time, tick uint64) {
	r, ok := k.reservations[ev.ReservationID]
	if !ok {
		log.WithComponent("kernel").Warn().Str("reservation_id", ev.ReservationID).
			Msg("completion event for unknown reservation")
		return
	}
	k.hooks.Complete(k, r, ev)
}

// predecessorsSatisfied implements the dependency rule of spec.md §4.2:
// every predecessor must be at or past its required target state.
// Returns (satisfied, failed-predecessor-id).
func (k *Kernel) predecessorsSatisfied(r *types.Reservation) (bool, string) {
	for _, p := range r.Predecessors {
		pred, ok := k.reservations[p.ReservationID]
		if !ok {
			return false, ""
		}
		if pred.State == types.ResFailed {
			return false, pred.ID
		}
		if !stateAtOrPast(pred.State, p.TargetState) {
			return false, ""
		}
	}
	return true, ""
}

// stateAtOrPast orders states loosely along the happy path
// Nascent < Ticketed < Active/ActiveTicketed < Closed, sufficient for
// the predecessor check (spec.md's only example needs Ticketed).
func stateAtOrPast(have, want types.ReservationState) bool {
	rank := map[types.ReservationState]int{
		types.ResNascent:        0,
		types.ResTicketed:       1,
		types.ResActive:         2,
		types.ResActiveTicketed: 2,
		types.ResCloseWait:      3,
		types.ResClosed:         3,
	}
	return rank[have] >= rank[want]
}

func (k *Kernel) processDue(r *types.Reservation, now time.Time, tick uint64) {
	ok, failedPred := k.predecessorsSatisfied(r)
	if !ok {
		if failedPred != "" {
			r.State = types.ResFailed
			r.SetLastError(types.NewError(types.ErrPredecessorFailed, "predecessor %s failed", failedPred))
			r.Pending = types.PendingNone
			r.MarkDirty()
			return
		}
		if r.Pending != types.PendingBlocked && r.Pending != types.PendingBlockedTicket && r.Pending != types.PendingBlockedRedeem {
			r.Pending = types.PendingBlocked
			r.MarkDirty()
		}
		k.cal.AddPending(r, tick+1)
		return
	}
	k.hooks.ProcessDue(k, r, now, tick)
}

// groupBySlice buckets reservations by slice id, preserving each
// reservation's insertion-order position within its slice (spec.md
// §4.2: "Within one tick, reservations in the same slice are processed
// in insertion order").
func (k *Kernel) groupBySlice(reservations []*types.Reservation) map[string][]*types.Reservation {
	grouped := make(map[string][]*types.Reservation)
	for _, r := range reservations {
		grouped[r.SliceID] = append(grouped[r.SliceID], r)
	}
	for sliceID, list := range grouped {
		order := k.sliceResv[sliceID]
		pos := make(map[string]int, len(order))
		for i, id := range order {
			pos[id] = i
		}
		sort.SliceStable(list, func(i, j int) bool { return pos[list[i].ID] < pos[list[j].ID] })
		grouped[sliceID] = list
	}
	return grouped
}

// orderedSliceIDs returns the slice ids present in grouped, in
// ascending slice-id order (spec.md §4.2: "between slices, in slice-id
// order").
func (k *Kernel) orderedSliceIDs(grouped map[string][]*types.Reservation) []string {
	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (k *Kernel) flushOutbox() {
	if len(k.outbox) == 0 {
		return
	}
	for _, msg := range k.outbox {
		if k.outboxCh == nil {
			continue
		}
		select {
		case k.outboxCh <- msg:
		default:
			log.WithComponent("kernel").Warn().Str("topic", msg.Topic).
				Msg("outbox channel full, dropping outbound message")
		}
	}
	k.outbox = k.outbox[:0]
}

// persistDirty commits dirty reservations in chunks of commitBatchSize,
// one transaction per chunk (spec.md §4.1: "persist dirty reservations
// in a single batch ... commit.batch.size, default 1").
func (k *Kernel) persistDirty() int {
	var dirty []*types.Reservation
	for _, r := range k.reservations {
		if r.Dirty() {
			dirty = append(dirty, r)
		}
	}
	if len(dirty) == 0 {
		return 0
	}
	sort.Slice(dirty, func(i, j int) bool { return dirty[i].ID < dirty[j].ID })

	persisted := 0
	for start := 0; start < len(dirty); start += k.commitBatchSize {
		end := start + k.commitBatchSize
		if end > len(dirty) {
			end = len(dirty)
		}
		chunk := dirty[start:end]
		if err := k.store.SaveReservations(chunk); err != nil {
			log.WithComponent("kernel").Error().Err(err).Msg("batch commit failed")
			continue
		}
		for _, r := range chunk {
			r.ClearDirty()
		}
		persisted += len(chunk)
	}
	return persisted
}

// Stats returns a snapshot of kernel activity counters.
func (k *Kernel) Stats() Stats {
	k.statsMu.Lock()
	defer k.statsMu.Unlock()
	return k.stats
}
