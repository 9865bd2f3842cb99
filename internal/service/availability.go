package service

import (
	"context"
	"fmt"
)

// Occupancy is the live load of a facility (or one of its sessions) on a
// calendar day.
type Occupancy struct {
	Current   int  `json:"current"`
	Capacity  int  `json:"capacity"`
	Held      int  `json:"held"`
	Remaining int  `json:"remaining"`
	IsFull    bool `json:"is_full"`
}

// Availability computes occupancy.  It only reads.
type Availability struct {
	*core
}

// Occupancy counts the pending and approved reservations of the facility
// that start on date, restricted to sessionID when it is non-nil.  Holds of
// promoted waitlist users on the same day count against the remaining
// capacity.  The capacity is the session override when the session defines
// one, otherwise the facility capacity.
func (a *Availability) Occupancy(ctx context.Context, facilityID uint64, sessionID *uint64, date string) (*Occupancy, error) {
	day, err := a.parseDate(date)
	if err != nil {
		return nil, err
	}
	f, err := a.loadFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	capacity := int(f.Capacity)
	if sessionID != nil {
		s, err := a.loadSession(ctx, facilityID, *sessionID)
		if err != nil {
			return nil, err
		}
		if s.Capacity != nil {
			capacity = int(*s.Capacity)
		}
	}
	from, to := day, day.AddDate(0, 0, 1)

	current, err := a.reservations.CountStartingBetween(ctx, facilityID, sessionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}
	held := 0
	if a.holdsEnabled() {
		if held, err = a.entries.CountHoldsStartingBetween(ctx, facilityID, sessionID, from, to, a.now()); err != nil {
			return nil, fmt.Errorf("count holds: %w", err)
		}
	}
	occ := &Occupancy{
		Current:  current,
		Capacity: capacity,
		Held:     held,
		IsFull:   current+held >= capacity,
	}
	if r := capacity - current - held; r > 0 {
		occ.Remaining = r
	}
	return occ, nil
}
