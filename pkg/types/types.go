// Package types defines the entities shared by every actor role: slices,
// reservations, delegations, peers, and the small value types that compose
// them (capacities, components, node maps, windows).
package types

import (
	"fmt"
	"time"
)

// ActorRole identifies which role a running actor process plays. A single
// kernel implementation is shared by all three; the role only decides which
// messages are legal and which policy module is loaded (see pkg/actor).
type ActorRole string

const (
	RoleOrchestrator ActorRole = "orchestrator"
	RoleBroker       ActorRole = "broker"
	RoleAuthority    ActorRole = "authority"
)

// ResourceType enumerates the substrate element kinds a Reservation can
// describe.
type ResourceType string

const (
	ResourceVM          ResourceType = "VM"
	ResourceBaremetal   ResourceType = "Baremetal"
	ResourceContainer   ResourceType = "Container"
	ResourceSwitch      ResourceType = "Switch"
	ResourceL2STS       ResourceType = "L2STS"
	ResourceL2Bridge    ResourceType = "L2Bridge"
	ResourceL2PTP       ResourceType = "L2PTP"
	ResourceFABNetv4    ResourceType = "FABNetv4"
	ResourceFABNetv6    ResourceType = "FABNetv6"
	ResourceFABNetv4Ext ResourceType = "FABNetv4Ext"
	ResourceFABNetv6Ext ResourceType = "FABNetv6Ext"
	ResourceL3VPN       ResourceType = "L3VPN"
	ResourcePortMirror  ResourceType = "PortMirror"
)

// IsNetworkService reports whether a resource type is a network-service
// sliver rather than a node sliver. Network-service reservations carry
// predecessor dependencies on the node reservations owning their interfaces.
func (r ResourceType) IsNetworkService() bool {
	switch r {
	case ResourceL2STS, ResourceL2Bridge, ResourceL2PTP, ResourceL3VPN,
		ResourceFABNetv4, ResourceFABNetv6, ResourceFABNetv4Ext, ResourceFABNetv6Ext,
		ResourcePortMirror:
		return true
	default:
		return false
	}
}

// SliceState is the lifecycle state of a Slice.
type SliceState string

const (
	SliceNascent     SliceState = "Nascent"
	SliceConfiguring SliceState = "Configuring"
	SliceStableOk    SliceState = "StableOk"
	SliceStableError SliceState = "StableError"
	SliceModifyingOk SliceState = "ModifyingOk"
	SliceClosing     SliceState = "Closing"
	SliceDead        SliceState = "Dead"
)

// ReservationState is the primary reservation lifecycle state (spec.md §4.2).
type ReservationState string

const (
	ResNascent        ReservationState = "Nascent"
	ResTicketed       ReservationState = "Ticketed"
	ResActive         ReservationState = "Active"
	ResActiveTicketed ReservationState = "ActiveTicketed"
	ResClosed         ReservationState = "Closed"
	ResCloseWait      ReservationState = "CloseWait"
	ResFailed         ReservationState = "Failed"
	ResUnknown        ReservationState = "Unknown"
)

// IsTerminal reports whether a reservation state accepts no further
// transitions.
func (s ReservationState) IsTerminal() bool {
	return s == ResClosed || s == ResFailed
}

// PendingState is the orthogonal in-flight-RPC sub-state of a reservation.
type PendingState string

const (
	PendingNone          PendingState = "None"
	PendingTicketing     PendingState = "Ticketing"
	PendingRedeeming     PendingState = "Redeeming"
	PendingExtendTicket  PendingState = "ExtendingTicket"
	PendingExtendLease   PendingState = "ExtendingLease"
	PendingClosing       PendingState = "Closing"
	PendingPriming       PendingState = "Priming"
	PendingBlocked       PendingState = "Blocked"
	PendingBlockedTicket PendingState = "BlockedTicket"
	PendingBlockedRedeem PendingState = "BlockedRedeem"
)

// DelegationState is the lifecycle state of a Delegation.
type DelegationState string

const (
	DelegationNascent   DelegationState = "Nascent"
	DelegationDelegated DelegationState = "Delegated"
	DelegationReclaimed DelegationState = "Reclaimed"
	DelegationClosed    DelegationState = "Closed"
)

// Window is a half-open time interval [Start, End). Lease end is exclusive
// throughout the calendar and policy code (spec.md §4.3).
type Window struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the window has zero or negative length.
func (w Window) Empty() bool {
	return !w.End.After(w.Start)
}

// Overlaps reports whether w and o share any instant, honoring half-open
// semantics.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Capacities are the quantitative resources a Reservation requests or is
// granted.
type Capacities struct {
	Cores     int
	RAMGB     int
	DiskGB    int
	Bandwidth float64 // Gbps
	Burst     int     // Mbits, network-service slivers only
}

// LessEqual reports whether c is bounded by other in every dimension.
func (c Capacities) LessEqual(other Capacities) bool {
	return c.Cores <= other.Cores && c.RAMGB <= other.RAMGB &&
		c.DiskGB <= other.DiskGB && c.Bandwidth <= other.Bandwidth
}

// Add returns the component-wise sum of two Capacities.
func (c Capacities) Add(other Capacities) Capacities {
	return Capacities{
		Cores:     c.Cores + other.Cores,
		RAMGB:     c.RAMGB + other.RAMGB,
		DiskGB:    c.DiskGB + other.DiskGB,
		Bandwidth: c.Bandwidth + other.Bandwidth,
		Burst:     c.Burst + other.Burst,
	}
}

// IsZero reports whether every dimension of c is zero.
func (c Capacities) IsZero() bool {
	return c.Cores == 0 && c.RAMGB == 0 && c.DiskGB == 0 && c.Bandwidth == 0
}

// ComponentRequest asks for a count of a named component model, e.g.
// "GPU"x1 or "SmartNIC"x2.
type ComponentRequest struct {
	Model string
	Count int
}

// Satisfies reports whether a free-component inventory (model -> count)
// covers every requested model at the requested count.
func Satisfies(free map[string]int, requested []ComponentRequest) bool {
	for _, req := range requested {
		if free[req.Model] < req.Count {
			return false
		}
	}
	return true
}

// ComponentAllocation records which BDFs of a component model were bound to
// a reservation, and any label-pool assignments (MAC/VLAN) made for a shared
// NIC component.
type ComponentAllocation struct {
	Model string
	BDFs  []string
	MAC   string
	VLAN  int
}

// NodeMap identifies the authoritative substrate graph node a reservation
// was bound to. The broker sets this before the authority ever sees the
// reservation (spec.md §3 invariant).
type NodeMap struct {
	GraphID     string
	GraphNodeID string
}

// Empty reports whether the node map has not yet been set.
func (n NodeMap) Empty() bool {
	return n.GraphID == "" && n.GraphNodeID == ""
}

// InterfaceNodeMap is recorded by the orchestrator on a network-service
// reservation's interface sliver, identifying the peer connection point and
// the parent node sliver that owns the physical interface (spec.md §4.6).
type InterfaceNodeMap struct {
	PeerInterfaceSliver  string
	PeerNetworkServiceID string
	ParentComponentName  string
	ParentNodeID         string
}

// Reservation is the unit of arbitration for exactly one sliver.
type Reservation struct {
	ID      string
	SliceID string

	ResourceType ResourceType

	RequestedCapacities Capacities
	RequestedComponents []ComponentRequest
	Label               string
	VLAN                int
	IP                  string

	RequestedWindow Window

	State      ReservationState
	Pending    PendingState
	PriorState ReservationState // state before the current pending sub-state began

	ApprovedCapacities  Capacities
	AllocatedComponents []ComponentAllocation

	NodeMap      NodeMap
	InterfaceMap InterfaceNodeMap

	Predecessors []Predecessor

	RetryCount int
	LastError  *Error

	Properties map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time

	// dirty is set whenever the kernel mutates the reservation within a tick
	// and cleared after a successful batch commit (spec.md §4.1 step 6).
	dirty bool
}

// Predecessor names a reservation that must reach a target state before the
// dependent reservation may advance (spec.md §4.2 "Dependency rule").
type Predecessor struct {
	ReservationID string
	TargetState   ReservationState
}

// MarkDirty flags the reservation for inclusion in the kernel's next
// persistence batch.
func (r *Reservation) MarkDirty() { r.dirty = true }

// Dirty reports whether the reservation has unpersisted mutations.
func (r *Reservation) Dirty() bool { return r.dirty }

// ClearDirty resets the dirty flag after a successful commit.
func (r *Reservation) ClearDirty() { r.dirty = false }

// SetLastError records a failure and its kind on the reservation, in the
// properties-bag format the orchestrator and tests read back (spec.md §7:
// "surfaced in reservation properties under last_error").
func (r *Reservation) SetLastError(err *Error) {
	r.LastError = err
	if r.Properties == nil {
		r.Properties = make(map[string]string)
	}
	if err != nil {
		r.Properties["last_error"] = err.Error()
	}
}

// Slice is a named, user-owned container of reservations.
type Slice struct {
	ID      string
	Name    string
	Owner   string
	Project string

	State SliceState
	Lease Window

	GraphID string // request graph (ASM) id

	CreatedAt time.Time
	UpdatedAt time.Time

	ReservationIDs []string
}

// Delegation is a signed statement that a broker may arbitrate a subset of
// an authority's substrate (ARM), or that the cluster may draw on a
// broker's combined model (CBM).
type Delegation struct {
	ID         string
	SourceGUID string
	TargetGUID string
	GraphID    string
	Site       string

	State DelegationState

	// OversubscriptionFactor scales the capacity an authority allows a
	// broker to grant beyond the raw delegated amount (spec.md Open
	// Questions: "implementers must surface a per-authority
	// oversubscription_factor"). 1.0 means no oversubscription.
	OversubscriptionFactor float64

	// NodeAnnotations maps graph node id to the capacity/label delegation
	// granted for that node.
	NodeAnnotations map[string]NodeDelegation

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NodeDelegation is the per-node capacity and label-pool delegation carried
// by a Delegation.
type NodeDelegation struct {
	Capacity   Capacities
	Components map[string]int // model -> delegated count
	VLANPool   []int
	MACPool    []string
}

// Peer is a known remote actor loaded from the static catalog at init.
type Peer struct {
	GUID           string
	Type           ActorRole
	InboundTopic   string
	DelegationName string
}

// String implements fmt.Stringer for log lines.
func (p Peer) String() string {
	return fmt.Sprintf("%s(%s)@%s", p.GUID, p.Type, p.InboundTopic)
}
