package domain

import "time"

// Ledger event types published to the activity feed.
const (
	EventMemberRegistered    = "member.registered"
	EventMemberDeleted       = "member.deleted"
	EventPaymentRecorded     = "payment.recorded"
	EventSubscriptionChanged = "subscription.changed"
	EventSweepFinished       = "sweep.finished"
)

// Event describes a change in the ledger.
type Event struct {
	Type    string      `json:"type"`
	Phone   string      `json:"phone,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// EventSink receives ledger events. Implementations must not block.
type EventSink interface {
	Publish(Event)
}
