package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted after a state change is committed.
const (
	OrderCreated  = "OrderCreated"
	OrderPaid     = "OrderPaid"
	OrderReleased = "OrderReleased"
	OrderCanceled = "OrderCanceled"
	OrderExpired  = "OrderExpired"
	OrderDisputed = "OrderDisputed"
	OrderRefunded = "OrderRefunded"
	OrderRestored = "OrderRestored"

	SwapCreated                  = "SwapCreated"
	SwapTxSubmitted              = "SwapTxSubmitted"
	SwapCompleted                = "SwapCompleted"
	SwapVerificationFailed       = "SwapVerificationFailed"
	SwapReported                 = "SwapReported"
	SwapArbitrating              = "SwapArbitrating"
	SwapArbitrationApproved      = "SwapArbitrationApproved"
	SwapArbitrationRejected      = "SwapArbitrationRejected"
	SwapRefunded                 = "SwapRefunded"
	SwapRestored                 = "SwapRestored"
	DisputeOpened                = "DisputeOpened"
	DisputeResponded             = "DisputeResponded"
	DisputeMediating             = "DisputeMediating"
	DisputeArbitrating           = "DisputeArbitrating"
	DisputeArbitratorsReassigned = "DisputeArbitratorsReassigned"
	DisputeEvidenceSubmitted     = "DisputeEvidenceSubmitted"
	DisputeVoteCast              = "DisputeVoteCast"
	DisputeResolved              = "DisputeResolved"
	DisputeWithdrawn             = "DisputeWithdrawn"
)

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

func New(eventType string, occurredAt time.Time, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: occurredAt,
		Payload:    payload,
	}
}

// Publisher delivers events to the notification layer. The engine does not
// depend on delivery; failures are logged by the caller.
type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}
