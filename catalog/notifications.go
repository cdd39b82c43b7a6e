// Copyright (c) 2025 The DataBridge Project and its Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package catalog

import (
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotifyUpload           NotificationType = "upload"
	NotifyApprovalRequired NotificationType = "approval_required"
	NotifyApproved         NotificationType = "approved"
	NotifyRejected         NotificationType = "rejected"
	NotifyScanStarted      NotificationType = "scan_started"
	NotifyScanComplete     NotificationType = "scan_complete"
	NotifyScanFailed       NotificationType = "scan_failed"
	NotifyTransferStarted  NotificationType = "transfer_started"
	NotifyTransferComplete NotificationType = "transfer_complete"
	NotifyTransferFailed   NotificationType = "transfer_failed"
	NotifySystem           NotificationType = "system"
)

// Notification is one in-app message for one user. EmailSent records whether
// the mail copy went out; a failed send leaves it false and the notification
// still stands.
type Notification struct {
	ID         int64
	UserID     int64
	TransferID *int64
	Type       NotificationType
	Subject    string
	Message    string
	Read       bool
	EmailSent  bool
	CreatedAt  time.Time
}

func scanNotification(stmt *sqlite.Stmt) Notification {
	return Notification{
		ID:         stmt.GetInt64("id"),
		UserID:     stmt.GetInt64("user_id"),
		TransferID: getInt64Ptr(stmt, "transfer_id"),
		Type:       NotificationType(stmt.GetText("type")),
		Subject:    stmt.GetText("subject"),
		Message:    stmt.GetText("message"),
		Read:       stmt.GetInt64("read") != 0,
		EmailSent:  stmt.GetInt64("email_sent") != 0,
		CreatedAt:  getTime(stmt, "created_at"),
	}
}

// InsertNotification stores an in-app notification and fills in its id.
func InsertNotification(conn *sqlite.Conn, n *Notification) error {
	n.CreatedAt = time.Now().UTC()
	err := sqlitex.Execute(conn,
		`INSERT INTO notifications (user_id, transfer_id, type, subject, message,
		                            read, email_sent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				n.UserID, nullableInt64(n.TransferID), string(n.Type), n.Subject,
				n.Message, boolArg(n.Read), boolArg(n.EmailSent), formatTime(n.CreatedAt),
			},
		})
	if err != nil {
		return err
	}
	n.ID = conn.LastInsertRowID()
	return nil
}

// NotificationByID loads one notification.
func NotificationByID(conn *sqlite.Conn, id int64) (Notification, error) {
	var n Notification
	found := false
	err := sqlitex.Execute(conn, "SELECT * FROM notifications WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = scanNotification(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Notification{}, err
	}
	if !found {
		return Notification{}, &NotFoundError{Entity: "notification", Key: id}
	}
	return n, nil
}

// NotificationsForUser lists a user's notifications, newest first.
func NotificationsForUser(conn *sqlite.Conn, userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	query := "SELECT * FROM notifications WHERE user_id = ?"
	args := []any{userID}
	if unreadOnly {
		query += " AND read = 0"
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	var notifications []Notification
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			notifications = append(notifications, scanNotification(stmt))
			return nil
		},
	})
	return notifications, err
}

// MarkNotificationRead marks one of the user's notifications read. Another
// user's notification is simply not found.
func MarkNotificationRead(conn *sqlite.Conn, userID, id int64) error {
	err := sqlitex.Execute(conn,
		"UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?",
		&sqlitex.ExecOptions{Args: []any{id, userID}})
	if err != nil {
		return err
	}
	if conn.Changes() == 0 {
		return &NotFoundError{Entity: "notification", Key: id}
	}
	return nil
}

// MarkAllNotificationsRead marks everything unread for the user read and
// returns how many rows flipped.
func MarkAllNotificationsRead(conn *sqlite.Conn, userID int64) (int, error) {
	err := sqlitex.Execute(conn,
		"UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0",
		&sqlitex.ExecOptions{Args: []any{userID}})
	if err != nil {
		return 0, err
	}
	return conn.Changes(), nil
}

// UnreadNotificationCount returns the user's badge count.
func UnreadNotificationCount(conn *sqlite.Conn, userID int64) (int, error) {
	var count int
	err := sqlitex.Execute(conn,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0",
		&sqlitex.ExecOptions{
			Args: []any{userID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	return count, err
}

// SetNotificationEmailSent records the outcome of the mail copy.
func SetNotificationEmailSent(conn *sqlite.Conn, id int64, sent bool) error {
	return sqlitex.Execute(conn,
		"UPDATE notifications SET email_sent = ? WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{boolArg(sent), id}})
}
