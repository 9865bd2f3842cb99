package model

import "time"

// Notification types.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// Notification is an in-app message addressed to a user.  It is written in
// the same transaction as the state change that caused it and is also
// pushed to the message broker after commit.
type Notification struct {
	ID        uint64    // notifications.id
	UserID    uint64    // notifications.user_id
	Title     string    // notifications.title
	Message   string    // notifications.message
	Type      string    // notifications.type
	Link      *string   // notifications.link (nullable)
	IsRead    bool      // notifications.is_read
	CreatedAt time.Time // notifications.created_at
}
