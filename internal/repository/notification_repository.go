package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// NotificationRepo stores the in-app inbox.  Rows are written in the same
// transaction as the state change that caused them.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the given database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// CreateTx inserts a notification and populates its ID.
func (r *NotificationRepo) CreateTx(ctx context.Context, tx *sql.Tx, n *model.Notification) error {
	const q = `INSERT INTO notifications (user_id, title, message, type, link, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, n.UserID, n.Title, n.Message, n.Type, nullStr(n.Link), false, n.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListByUser returns up to limit notifications of the user, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error) {
	q := `SELECT id, user_id, title, message, type, link, is_read, created_at FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		q += ` AND is_read = ?`
		args = append(args, false)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var link sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Link = strPtr(link)
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification of the user as read.  ErrNotFound when the
// notification does not exist or belongs to someone else.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID uint64) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM notifications WHERE id = ? AND user_id = ?`, id, userID).Scan(&exists)
	if err != nil {
		return notFound(err)
	}
	_, err = r.db.ExecContext(ctx, `UPDATE notifications SET is_read = ? WHERE id = ?`, true, id)
	return err
}

// CountUnread returns how many of the user's notifications are unread.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?`, userID, false).Scan(&n)
	return n, err
}

// MarkAllRead flags every unread notification of the user as read and
// returns how many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?`, true, userID, false)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
