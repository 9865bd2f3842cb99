package model

import "time"

// Facility statuses.  Only active facilities accept reservations.
const (
	FacilityActive      = "active"
	FacilityMaintenance = "maintenance"
	FacilityClosed      = "closed"
)

// Facility is a bookable venue such as a pool, gym or meeting room.  The
// catalog is maintained by an external admin workflow; the engine only reads
// it and bumps Version while admitting or cancelling reservations.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – unique display name.
//  Description  – optional free text.
//  Capacity     – concurrent occupant ceiling (> 0).
//  OpenHour     – first bookable hour (0–23) in hourly mode.
//  CloseHour    – hour at which hourly bookings must have ended (0–23).
//  UsesSessions – true when bookings must reference a Session.
//  Status       – active, maintenance or closed.
//  Version      – lock counter incremented by every admission transaction.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Facility struct {
	ID           uint64    // facilities.id
	Name         string    // facilities.name
	Description  *string   // facilities.description (nullable)
	Capacity     uint32    // facilities.capacity
	OpenHour     uint8     // facilities.open_hour
	CloseHour    uint8     // facilities.close_hour
	UsesSessions bool      // facilities.uses_sessions
	Status       string    // facilities.status
	Version      uint64    // facilities.version
	CreatedAt    time.Time // facilities.created_at
	UpdatedAt    time.Time // facilities.updated_at
}

// IsActive reports whether the facility currently accepts bookings.
func (f Facility) IsActive() bool { return f.Status == FacilityActive }

// ValidFacilityStatus reports whether s is a known facility status.
func ValidFacilityStatus(s string) bool {
	switch s {
	case FacilityActive, FacilityMaintenance, FacilityClosed:
		return true
	}
	return false
}
