// Package handler invokes the substrate-specific provisioning logic an
// authority's kernel hands off to once a reservation reaches its
// lease-start tick (spec.md §4.5 step 4). A bounded concurrency pool of
// worker goroutines runs Handler.Provision/Teardown asynchronously; the
// kernel only ever sees the resulting CompletionEvent on its queue, never
// the handler call itself.
package handler

import (
	"context"
	"sync"

	"github.com/testbedctl/actorcore/pkg/kernel"
	"github.com/testbedctl/actorcore/pkg/log"
	"github.com/testbedctl/actorcore/pkg/types"
)

// Handler provisions, tears down, and probes one resource type's
// slivers. Registered implementations are compile-time, keyed by
// ResourceType (spec.md §6: "handler map"); there is no dynamic plugin
// loading.
type Handler interface {
	// Provision realizes r on the substrate, returning properties to
	// merge into the reservation (assigned IPs, instance id, ...) on
	// success.
	Provision(ctx context.Context, r *types.Reservation) (ok bool, properties map[string]string, err *types.Error)

	// Teardown releases whatever Provision allocated.
	Teardown(ctx context.Context, r *types.Reservation) *types.Error

	// Probe checks whether a reservation rehydrated from persistent
	// storage in a Priming pending-state actually completed before the
	// restart (spec.md's recovery safety-probe, grounded on the
	// teacher's restart health-check pattern): "is_deleted?" for a
	// container handler, "instance exists?" for a cloud handler.
	Probe(ctx context.Context, r *types.Reservation) (exists bool, err *types.Error)
}

// Registry maps a resource type to the Handler responsible for it.
type Registry map[types.ResourceType]Handler

// Pool is a bounded-concurrency worker pool dispatching Provision and
// Teardown calls asynchronously, posting their outcome back onto the
// kernel's queue as a CompletionEvent (spec.md §4.5 step 4: "The
// provisioning pool is a bounded concurrency pool (configurable) of
// worker processes; the kernel only sees completion events").
type Pool struct {
	registry Registry
	sem      chan struct{}
	k        *kernel.Kernel
	wg       sync.WaitGroup
}

// NewPool builds a Pool with the given concurrency limit, dispatching
// completions into k via kernel.Kernel.Enqueue.
func NewPool(registry Registry, concurrency int, k *kernel.Kernel) *Pool {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Pool{
		registry: registry,
		sem:      make(chan struct{}, concurrency),
		k:        k,
	}
}

// Provision starts an asynchronous provision(reservation) invocation.
// It returns immediately; the kernel goroutine is never blocked.
func (p *Pool) Provision(r *types.Reservation) {
	h, ok := p.registry[r.ResourceType]
	if !ok {
		p.complete(r.ID, "provision", false, nil, types.NewError(types.ErrHandlerFailure, "no handler registered for resource type %s", r.ResourceType))
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		ctx := context.Background()
		ok, props, err := h.Provision(ctx, r)
		p.complete(r.ID, "provision", ok, props, err)
	}()
}

// Teardown starts an asynchronous teardown(reservation) invocation.
func (p *Pool) Teardown(r *types.Reservation) {
	h, ok := p.registry[r.ResourceType]
	if !ok {
		p.complete(r.ID, "teardown", true, nil, nil)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		err := h.Teardown(context.Background(), r)
		p.complete(r.ID, "teardown", err == nil, nil, err)
	}()
}

// ProbeRestartRecovery runs Probe against every reservation in
// PendingPriming found at startup, so a reservation whose provision call
// actually completed (or actually failed) before a crash is reconciled
// rather than retried blindly (grounded on the teacher's health.Checker
// restart-recovery pattern).
func (p *Pool) ProbeRestartRecovery(reservations []*types.Reservation) {
	for _, r := range reservations {
		if r.Pending != types.PendingPriming {
			continue
		}
		h, ok := p.registry[r.ResourceType]
		if !ok {
			continue
		}
		exists, err := h.Probe(context.Background(), r)
		if err != nil {
			p.complete(r.ID, "provision", false, nil, err)
			continue
		}
		p.complete(r.ID, "provision", exists, nil, nil)
	}
}

func (p *Pool) complete(reservationID, kind string, ok bool, props map[string]string, err *types.Error) {
	log.WithReservation(reservationID).Debug().
		Str("handler_event", kind).Bool("ok", ok).Msg("handler invocation completed")
	p.k.Enqueue(kernel.Event{
		Kind: kernel.EventRPCComplete,
		Completion: kernel.CompletionEvent{
			ReservationID: reservationID,
			Kind:          kind,
			OK:            ok,
			Properties:    props,
			Err:           err,
		},
	})
}

// Wait blocks until every in-flight Provision/Teardown goroutine
// returns, for graceful shutdown.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Attach binds the kernel completions are enqueued onto. A production
// deployment builds the Pool before the Actor that owns its kernel
// exists — AuthorityHooks.Handlers must be set before actor.New runs —
// so Attach lets the caller wire the kernel back in once it has been
// constructed. Tests that build a Kernel directly pass it to NewPool
// up front instead and never need Attach.
func (p *Pool) Attach(k *kernel.Kernel) {
	p.k = k
}
