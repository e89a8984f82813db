// Package protocol defines the wire envelope and message kinds actors
// exchange (spec.md §4.7), a msg_id dedup window for the at-least-once
// ordered delivery the bus provides, and a dispatcher that routes
// incoming envelopes to per-kind handlers.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/testbedctl/actorcore/pkg/types"
)

// Kind identifies the message operation carried by an Envelope.
type Kind string

const (
	KindTicket         Kind = "Ticket"
	KindUpdateTicket   Kind = "UpdateTicket"
	KindRedeem         Kind = "Redeem"
	KindUpdateLease    Kind = "UpdateLease"
	KindExtendTicket   Kind = "ExtendTicket"
	KindExtendLease    Kind = "ExtendLease"
	KindClose          Kind = "Close"
	KindClaim          Kind = "Claim"
	KindReclaim        Kind = "Reclaim"
	KindQuery          Kind = "Query"
	KindQueryResponse  Kind = "QueryResponse"
	KindProbe          Kind = "Probe"
)

// Envelope is the common header carried by every message (spec.md §4.7:
// "All messages carry: msg_id, correlation_id, source_actor_guid,
// callback_topic, auth_token").
type Envelope struct {
	MsgID           string    `json:"msg_id"`
	CorrelationID   string    `json:"correlation_id,omitempty"`
	SourceActorGUID string    `json:"source_actor_guid"`
	CallbackTopic   string    `json:"callback_topic,omitempty"`
	AuthToken       string    `json:"auth_token,omitempty"`
	Kind            Kind      `json:"kind"`
	SentAt          time.Time `json:"sent_at"`

	// Payload is the kind-specific body. Concrete payload types are
	// TicketPayload, UpdateTicketPayload, etc., below.
	Payload interface{} `json:"payload"`
}

// NewEnvelope builds an Envelope with a fresh msg_id, stamping sourceGUID
// and kind. correlationID is empty for a request; set it to the
// request's msg_id when building a reply.
func NewEnvelope(kind Kind, sourceGUID, correlationID string, payload interface{}) Envelope {
	return Envelope{
		MsgID:           uuid.NewString(),
		CorrelationID:   correlationID,
		SourceActorGUID: sourceGUID,
		Kind:            kind,
		SentAt:          time.Now(),
		Payload:         payload,
	}
}

// Result carries the success/failure outcome of a ticket or lease
// operation, mirroring the error taxonomy.
type Result struct {
	OK    bool        `json:"ok"`
	Error *types.Error `json:"error,omitempty"`
}

// TicketPayload is the body of a Ticket message: orchestrator -> broker,
// request resources for a batch of reservations belonging to one slice.
type TicketPayload struct {
	SliceID      string               `json:"slice_id"`
	Reservations []*types.Reservation `json:"reservations"`
}

// UpdateTicketPayload is the body of an UpdateTicket reply: broker ->
// orchestrator, granted/denied per reservation.
type UpdateTicketPayload struct {
	Reservation *types.Reservation `json:"reservation"`
	Result      Result             `json:"result"`
}

// RedeemPayload is the body of a Redeem message: orchestrator ->
// authority.
type RedeemPayload struct {
	Reservation *types.Reservation `json:"reservation"`
}

// UpdateLeasePayload is the body of an UpdateLease reply: authority ->
// orchestrator and broker.
type UpdateLeasePayload struct {
	Reservation *types.Reservation `json:"reservation"`
	Result      Result             `json:"result"`
}

// ExtendTicketPayload requests a broker re-approve capacity for a new
// lease end on an existing reservation.
type ExtendTicketPayload struct {
	ReservationID string    `json:"reservation_id"`
	NewLeaseEnd   time.Time `json:"new_lease_end"`
}

// ExtendLeasePayload requests an authority swap a reservation's lease
// window.
type ExtendLeasePayload struct {
	ReservationID string    `json:"reservation_id"`
	NewLeaseEnd   time.Time `json:"new_lease_end"`
}

// ClosePayload requests teardown of a reservation or an entire slice.
type ClosePayload struct {
	ReservationID string `json:"reservation_id,omitempty"`
	SliceID       string `json:"slice_id,omitempty"`
}

// ClaimPayload and ReclaimPayload carry delegation grant/revoke
// requests between an authority and a broker.
type ClaimPayload struct {
	DelegationID string `json:"delegation_id"`
}

type ReclaimPayload struct {
	DelegationID string `json:"delegation_id"`
}

// QueryLevel selects how much detail a Query response includes.
type QueryLevel string

const (
	QueryLevelSummary QueryLevel = "summary"
	QueryLevelFull    QueryLevel = "full"
)

// QueryPayload requests status of a slice or reservation.
type QueryPayload struct {
	SliceID       string     `json:"slice_id,omitempty"`
	ReservationID string     `json:"reservation_id,omitempty"`
	Level         QueryLevel `json:"level"`
}

// QueryResponsePayload carries the answer to a Query.
type QueryResponsePayload struct {
	Payload interface{} `json:"payload"`
}

// ProbePayload is an empty liveness ping.
type ProbePayload struct{}

// DecodePayload unpacks env.Payload into out. Once an Envelope has made a
// round trip through a Bus as JSON bytes, Payload decodes generically into
// a map[string]interface{} rather than its original concrete type; callers
// that know the Kind re-marshal and unmarshal through the concrete payload
// struct using this helper instead of a direct type assertion.
func DecodePayload(env Envelope, out interface{}) error {
	raw, err := json.Marshal(env.Payload)
	if err != nil {
		return fmt.Errorf("re-marshal payload for kind %s: %w", env.Kind, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload for kind %s: %w", env.Kind, err)
	}
	return nil
}
