package model

import (
	"fmt"
	"time"
)

// Waitlist entry statuses.
const (
	WaitlistPending   = "pending"
	WaitlistNotified  = "notified"
	WaitlistConverted = "converted"
	WaitlistExpired   = "expired"
	WaitlistCancelled = "cancelled"
)

// DateLayout is the civil date format used for waitlist dates.
const DateLayout = "2006-01-02"

// WaitlistEntry queues a user for a session instance (session + calendar
// date) that may be full.  CreatedAt is the FIFO key and is never changed;
// ID breaks ties between entries created within the same instant.
//
// Fields:
//  ID            – primary key identifier, monotonic per insert.
//  UserID        – queued user.
//  FacilityID    – facility of the session.
//  SessionID     – session template.
//  Date          – civil date of the session instance (YYYY-MM-DD).
//  SlotStart     – absolute start of the session instance.
//  SlotEnd       – absolute end of the session instance.
//  Status        – pending, notified, converted, expired or cancelled.
//  NotifiedAt    – when the entry was promoted.
//  HoldExpiresAt – end of the promoted user's hold on the freed slot.
//  CreatedAt     – join timestamp.
//  UpdatedAt     – last update timestamp.
type WaitlistEntry struct {
	ID            uint64     // waitlist_entries.id
	UserID        uint64     // waitlist_entries.user_id
	FacilityID    uint64     // waitlist_entries.facility_id
	SessionID     uint64     // waitlist_entries.session_id
	Date          string     // waitlist_entries.wait_date
	SlotStart     time.Time  // waitlist_entries.slot_start
	SlotEnd       time.Time  // waitlist_entries.slot_end
	Status        string     // waitlist_entries.status
	NotifiedAt    *time.Time // waitlist_entries.notified_at (nullable)
	HoldExpiresAt *time.Time // waitlist_entries.hold_expires_at (nullable)
	CreatedAt     time.Time  // waitlist_entries.created_at
	UpdatedAt     time.Time  // waitlist_entries.updated_at
}

// HoldActive reports whether the entry holds its slot at now.
func (e WaitlistEntry) HoldActive(now time.Time) bool {
	return e.Status == WaitlistNotified && e.HoldExpiresAt != nil && e.HoldExpiresAt.After(now)
}

// PendingKey is the value of the unique pending_key column while an entry is
// pending.  It is cleared on every transition out of pending so that at most
// one pending entry exists per (user, session, date).
func PendingKey(userID, sessionID uint64, date string) string {
	return fmt.Sprintf("%d:%d:%s", userID, sessionID, date)
}
