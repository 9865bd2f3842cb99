package model

import "time"

// Reservation statuses.  Pending and approved reservations occupy capacity.
const (
	ReservationPending   = "pending"
	ReservationApproved  = "approved"
	ReservationCancelled = "cancelled"
	ReservationCompleted = "completed"
	ReservationRejected  = "rejected"
)

// Reservation records a user's booking of a facility for an absolute time
// interval.  Session-mode reservations also reference the session whose
// window they occupy.  Reservations are never deleted; they only move to a
// terminal status.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – user who made the reservation.
//  FacilityID – facility being booked.
//  SessionID  – session template (nil in hourly mode).
//  StartTime  – interval start (UTC).
//  EndTime    – interval end (UTC), exclusive.
//  Status     – pending, approved, cancelled, completed or rejected.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Reservation struct {
	ID         uint64    // reservations.id
	UserID     uint64    // reservations.user_id
	FacilityID uint64    // reservations.facility_id
	SessionID  *uint64   // reservations.session_id (nullable)
	StartTime  time.Time // reservations.start_time
	EndTime    time.Time // reservations.end_time
	Status     string    // reservations.status
	CreatedAt  time.Time // reservations.created_at
	UpdatedAt  time.Time // reservations.updated_at
}

// IsActive reports whether the reservation still occupies capacity.
func (r Reservation) IsActive() bool {
	return r.Status == ReservationPending || r.Status == ReservationApproved
}

