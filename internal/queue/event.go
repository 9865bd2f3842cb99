// Package queue defines message payloads exchanged over the message broker
// together with the publisher used by the engine and the consumer that
// persists delivered notifications.
package queue

// Exchange is the topic exchange that receives every notification event.
const Exchange = "facility.notifications"

// Routing keys, one per event type.
const (
	ReservationConfirmed = "reservation.confirmed"
	ReservationCancelled = "reservation.cancelled"
	SlotOpened           = "waitlist.slot_opened"
	HoldExpired          = "waitlist.hold_expired"
)

// NotificationEvent is published after the transaction that produced it has
// committed.  It contains enough information for downstream consumers to
// notify the user without querying the primary database.
type NotificationEvent struct {
	EventID       string  `json:"event_id"`
	Type          string  `json:"type"`
	UserID        uint64  `json:"user_id"`
	Title         string  `json:"title"`
	Message       string  `json:"message"`
	Link          *string `json:"link,omitempty"`
	FacilityID    uint64  `json:"facility_id"`
	SessionID     *uint64 `json:"session_id,omitempty"`
	ReservationID *uint64 `json:"reservation_id,omitempty"`
	Date          string  `json:"date,omitempty"`
	OccurredAt    string  `json:"occurred_at"`
}
