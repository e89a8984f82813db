// Package calendar indexes an actor's reservations by time and by node so
// that the kernel and policy layers can answer "what's due" and "what's
// held here" without scanning every reservation on every tick.
package calendar

import (
	"sort"
	"sync"

	"github.com/testbedctl/actorcore/pkg/types"
)

// holding is one committed interval of capacity/components on a graph
// node, time-ordered by (start, end).
type holding struct {
	reservation *types.Reservation
	start       int64 // unix seconds, half-open interval start
	end         int64 // unix seconds, half-open interval end (exclusive)
}

// Calendar is the set of indexed views over one actor's reservations
// (spec.md §4.3): Pending, Holdings, Renewing, and Closing. There is no
// separate Redeeming view: an authority's wait for a lease start is an
// ordinary Pending entry due at the lease-start tick.
// A Calendar is not safe for concurrent external use beyond the kernel's
// own single-threaded tick loop; the internal mutex only guards against
// incidental cross-goroutine reads (e.g. a metrics collector taking a
// snapshot).
type Calendar struct {
	mu sync.RWMutex

	// pending maps a due tick to the reservations that should be
	// re-examined at or after it.
	pending map[uint64][]*types.Reservation

	// holdings maps graph node id to its time-ordered holdings.
	holdings map[string][]holding

	// renewLookahead bounds how far past "now" a lease-end may sit and
	// still appear in Renewing.
	renewLookahead int64
}

// New builds an empty Calendar. renewLookaheadSeconds is the lookahead
// window Renewing uses to decide whether a reservation's lease-end is
// close enough to warrant issuing a renewal.
func New(renewLookaheadSeconds int64) *Calendar {
	return &Calendar{
		pending:        make(map[uint64][]*types.Reservation),
		holdings:       make(map[string][]holding),
		renewLookahead: renewLookaheadSeconds,
	}
}

// AddPending enqueues r to be re-examined at tick due (spec.md §4.3:
// "addPending(r, due)").
func (c *Calendar) AddPending(r *types.Reservation, due uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[due] = append(c.pending[due], r)
}

// DueBefore returns, and removes from Pending, every reservation whose
// due tick is <= t (spec.md §4.3: "dueBefore(t) -> list"). Callers own
// the returned slice; order follows insertion order within each due
// tick, then ascending tick.
func (c *Calendar) DueBefore(t uint64) []*types.Reservation {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []uint64
	for tick := range c.pending {
		if tick <= t {
			due = append(due, tick)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })

	var out []*types.Reservation
	for _, tick := range due {
		out = append(out, c.pending[tick]...)
		delete(c.pending, tick)
	}
	return out
}

// AddHolding records capacity/component commitment for r on its bound
// graph node, keyed by r.NodeMap.GraphNodeID (spec.md §4.3: "addHolding(r)").
// r.RequestedWindow must be non-empty; AddHolding rejects a zero-length
// window rather than silently accepting it.
func (c *Calendar) AddHolding(r *types.Reservation) bool {
	if r.RequestedWindow.Empty() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	node := r.NodeMap.GraphNodeID
	h := holding{
		reservation: r,
		start:       r.RequestedWindow.Start.Unix(),
		end:         r.RequestedWindow.End.Unix(),
	}
	list := c.holdings[node]
	idx := sort.Search(len(list), func(i int) bool {
		if list[i].start != h.start {
			return list[i].start > h.start
		}
		return list[i].end > h.end
	})
	list = append(list, holding{})
	copy(list[idx+1:], list[idx:])
	list[idx] = h
	c.holdings[node] = list
	return true
}

// RemoveHolding drops r's holding from its bound node, e.g. on close
// (spec.md §4.3: "removeHolding(r)").
func (c *Calendar) RemoveHolding(r *types.Reservation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := r.NodeMap.GraphNodeID
	list := c.holdings[node]
	for i, h := range list {
		if h.reservation.ID == r.ID {
			c.holdings[node] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// HoldingsAt returns every non-terminal reservation holding capacity on
// node whose window covers t (spec.md §4.3: "holdingsAt(node, t) -> list
// ... must return all reservations whose [start,end) covers t and whose
// state is not terminal"). This is the hot-path query policy uses to
// compute free capacity before granting a ticket.
func (c *Calendar) HoldingsAt(node string, tUnix int64) []*types.Reservation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*types.Reservation
	for _, h := range c.holdings[node] {
		if h.start <= tUnix && tUnix < h.end && !h.reservation.State.IsTerminal() {
			out = append(out, h.reservation)
		}
	}
	return out
}

// HoldingsOverlapping returns every non-terminal holding on node whose
// interval intersects [startUnix, endUnix) — the full-window counterpart
// of HoldingsAt, used where a single boundary instant would miss a
// holding that begins partway through the interval being checked
// (spec.md §4.4 step 3a: "available(n) = capacity(n) - Σ
// holdingsAt(n, reservation.start..end)").
func (c *Calendar) HoldingsOverlapping(node string, startUnix, endUnix int64) []*types.Reservation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*types.Reservation
	for _, h := range c.holdings[node] {
		if h.start < endUnix && startUnix < h.end && !h.reservation.State.IsTerminal() {
			out = append(out, h.reservation)
		}
	}
	return out
}

// ClosingBefore returns every reservation holding on any node whose
// lease-end is <= tUnix and which is not yet terminal (spec.md §4.3:
// "closingBefore(t) -> list"), the Closing view driving teardown.
func (c *Calendar) ClosingBefore(tUnix int64) []*types.Reservation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	var out []*types.Reservation
	for _, list := range c.holdings {
		for _, h := range list {
			if h.end <= tUnix && !h.reservation.State.IsTerminal() && !seen[h.reservation.ID] {
				seen[h.reservation.ID] = true
				out = append(out, h.reservation)
			}
		}
	}
	return out
}

// RenewingBefore returns non-terminal holdings whose lease-end falls
// within the configured renew lookahead of tUnix — the Renewing view
// (spec.md §4.3: "reservations whose lease-end is within a lookahead
// window and whose renewal may be issued").
func (c *Calendar) RenewingBefore(tUnix int64) []*types.Reservation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	horizon := tUnix + c.renewLookahead
	seen := make(map[string]bool)
	var out []*types.Reservation
	for _, list := range c.holdings {
		for _, h := range list {
			if h.end > tUnix && h.end <= horizon && !h.reservation.State.IsTerminal() && !seen[h.reservation.ID] {
				seen[h.reservation.ID] = true
				out = append(out, h.reservation)
			}
		}
	}
	return out
}

// Nodes returns every graph node id that currently has at least one
// holding, for diagnostics and metrics collection.
func (c *Calendar) Nodes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	nodes := make([]string, 0, len(c.holdings))
	for n, list := range c.holdings {
		if len(list) > 0 {
			nodes = append(nodes, n)
		}
	}
	sort.Strings(nodes)
	return nodes
}
