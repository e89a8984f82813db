package policy

import (
	"time"

	"github.com/testbedctl/actorcore/pkg/types"
)

// OrchestratorPolicy implements the orchestrator's admission checks
// (spec.md §4.6, §7 boundary behaviors): lease-window validation, slice
// name collisions, and the extend-beyond-cap truncation rule.
type OrchestratorPolicy struct {
	// DefaultLeaseDuration is used when a create-slice request omits a
	// lease end ("default now + 24h").
	DefaultLeaseDuration time.Duration

	// MaxLeaseDuration caps how far a lease end may extend beyond the
	// lease start, both on create and on extend.
	MaxLeaseDuration time.Duration
}

// NewOrchestratorPolicy builds a policy with the spec's stated defaults:
// 24h default lease, configurable cap.
func NewOrchestratorPolicy(maxLease time.Duration) *OrchestratorPolicy {
	return &OrchestratorPolicy{
		DefaultLeaseDuration: 24 * time.Hour,
		MaxLeaseDuration:     maxLease,
	}
}

// ValidateWindow checks a requested lease window, applying the default
// end and the cap, and rejecting inverted or zero-length windows
// (spec.md §7: "zero-capacity request -> InvalidRequest; lease-end <=
// lease-start -> InvalidRequest").
func (p *OrchestratorPolicy) ValidateWindow(now time.Time, w types.Window) (types.Window, *types.Error) {
	if w.Start.IsZero() {
		w.Start = now
	}
	if w.End.IsZero() {
		w.End = w.Start.Add(p.DefaultLeaseDuration)
	}
	if !w.End.After(w.Start) {
		return w, types.NewError(types.ErrInvalidRequest, "lease end %s is not after lease start %s", w.End, w.Start)
	}
	if p.MaxLeaseDuration > 0 {
		if maxEnd := w.Start.Add(p.MaxLeaseDuration); w.End.After(maxEnd) {
			w.End = maxEnd
		}
	}
	return w, nil
}

// ValidateExtend truncates a requested new lease-end to the policy cap,
// returning the truncated window and whether truncation occurred
// (spec.md §7: "extend beyond the policy cap -> truncated to cap with a
// warning").
func (p *OrchestratorPolicy) ValidateExtend(now time.Time, currentStart, requestedEnd time.Time) (time.Time, bool) {
	if p.MaxLeaseDuration <= 0 {
		return requestedEnd, false
	}
	cap := currentStart.Add(p.MaxLeaseDuration)
	if requestedEnd.After(cap) {
		return cap, true
	}
	return requestedEnd, false
}

// NameCollision reports whether name collides with an existing
// non-terminal slice owned by owner (spec.md §4.6: "reject if a
// non-terminal slice with the same name exists for that owner").
func NameCollision(existing []*types.Slice, owner, name string) bool {
	for _, s := range existing {
		if s.Owner == owner && s.Name == name && s.State != types.SliceDead {
			return true
		}
	}
	return false
}
