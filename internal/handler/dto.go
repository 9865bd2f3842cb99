package handler

import (
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/service"
)

type facilityResponse struct {
	ID           uint64  `json:"id"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	Capacity     uint32  `json:"capacity"`
	OpenHour     uint8   `json:"open_hour"`
	CloseHour    uint8   `json:"close_hour"`
	UsesSessions bool    `json:"uses_sessions"`
	Status       string  `json:"status"`
}

func toFacility(f model.Facility) facilityResponse {
	return facilityResponse{
		ID:           f.ID,
		Name:         f.Name,
		Description:  f.Description,
		Capacity:     f.Capacity,
		OpenHour:     f.OpenHour,
		CloseHour:    f.CloseHour,
		UsesSessions: f.UsesSessions,
		Status:       f.Status,
	}
}

type sessionResponse struct {
	ID         uint64  `json:"id"`
	FacilityID uint64  `json:"facility_id"`
	Name       string  `json:"name"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	DaysOfWeek []int   `json:"days_of_week"`
	IsActive   bool    `json:"is_active"`
	Capacity   *uint32 `json:"capacity,omitempty"`
}

func toSession(s model.Session) sessionResponse {
	return sessionResponse{
		ID:         s.ID,
		FacilityID: s.FacilityID,
		Name:       s.Name,
		StartTime:  s.StartTime.String(),
		EndTime:    s.EndTime.String(),
		DaysOfWeek: s.DaysOfWeek.Days(),
		IsActive:   s.IsActive,
		Capacity:   s.Capacity,
	}
}

type reservationResponse struct {
	ID         uint64    `json:"id"`
	UserID     uint64    `json:"user_id"`
	FacilityID uint64    `json:"facility_id"`
	SessionID  *uint64   `json:"session_id,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func toReservation(r model.Reservation) reservationResponse {
	return reservationResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		FacilityID: r.FacilityID,
		SessionID:  r.SessionID,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
	}
}

func toReservations(rs []model.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservation(r))
	}
	return out
}

type waitlistEntryResponse struct {
	ID            uint64     `json:"id"`
	UserID        uint64     `json:"user_id"`
	FacilityID    uint64     `json:"facility_id"`
	SessionID     uint64     `json:"session_id"`
	Date          string     `json:"date"`
	SlotStart     time.Time  `json:"slot_start"`
	SlotEnd       time.Time  `json:"slot_end"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	NotifiedAt    *time.Time `json:"notified_at,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

func toWaitlistEntry(e model.WaitlistEntry) waitlistEntryResponse {
	return waitlistEntryResponse{
		ID:            e.ID,
		UserID:        e.UserID,
		FacilityID:    e.FacilityID,
		SessionID:     e.SessionID,
		Date:          e.Date,
		SlotStart:     e.SlotStart,
		SlotEnd:       e.SlotEnd,
		Status:        e.Status,
		CreatedAt:     e.CreatedAt,
		NotifiedAt:    e.NotifiedAt,
		HoldExpiresAt: e.HoldExpiresAt,
	}
}

type myWaitlistEntryResponse struct {
	waitlistEntryResponse
	FacilityName string `json:"facility_name"`
	SessionName  string `json:"session_name"`
	Position     *int   `json:"position,omitempty"`
}

func toMyWaitlistEntry(it service.MyWaitlistEntry) myWaitlistEntryResponse {
	return myWaitlistEntryResponse{
		waitlistEntryResponse: toWaitlistEntry(it.Entry),
		FacilityName:          it.FacilityName,
		SessionName:           it.SessionName,
		Position:              it.Position,
	}
}

type notificationResponse struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Link      *string   `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotification(n model.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
