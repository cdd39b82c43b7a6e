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

// Package notify records in-app notifications and delivers their email
// copies. Notification rows are written in the same transaction as the
// pipeline change they announce; email delivery happens afterwards on the
// notifications queue so a slow or broken mail server never holds up the
// pipeline.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/store"
	"github.com/databridge-io/databridge/tasks"
)

// the message kind under which email deliveries are queued
const emailKind = "email"

// Fanout records one notification per recipient and, when mail is enabled,
// queues an email copy of each. Call it on a connection inside the
// transaction performing the related state change. Duplicate and invalid
// recipient ids are skipped.
func Fanout(conn *sqlite.Conn, recipients []int64, transferID *int64,
	kind catalog.NotificationType, subject, message string) error {
	seen := make(map[int64]bool)
	for _, userID := range recipients {
		if userID <= 0 || seen[userID] {
			continue
		}
		seen[userID] = true
		notification := catalog.Notification{
			UserID:     userID,
			TransferID: transferID,
			Type:       kind,
			Subject:    subject,
			Message:    message,
		}
		if err := catalog.InsertNotification(conn, &notification); err != nil {
			return err
		}
		if !config.Mail.Enabled {
			continue
		}
		_, err := tasks.Enqueue(conn, tasks.Message{
			Queue:          tasks.QueueNotifications,
			Kind:           emailKind,
			IdempotencyKey: tasks.Key(emailKind, notification.ID, "send"),
			Payload:        map[string]any{"notification_id": notification.ID},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// EmailHandler returns the notifications-queue handler that delivers one
// queued email. A delivery failure leaves the notification's email_sent
// flag unset and records the reason on the queue message.
func EmailHandler(db *store.Store, mailer Mailer) tasks.Handler {
	return func(ctx context.Context, message tasks.Message) error {
		var payload struct {
			NotificationID int64 `mapstructure:"notification_id"`
		}
		if err := message.DecodePayload(&payload); err != nil {
			return err
		}

		var notification catalog.Notification
		var user catalog.User
		err := db.WithConn(ctx, func(conn *sqlite.Conn) error {
			var err error
			notification, err = catalog.NotificationByID(conn, payload.NotificationID)
			if err != nil {
				return err
			}
			user, err = catalog.UserByID(conn, notification.UserID)
			return err
		})
		if err != nil {
			return err
		}
		if notification.EmailSent {
			return nil
		}
		if !user.Active || user.Email == "" {
			return nil
		}

		if err := mailer.Send(user.Email, notification.Subject, notification.Message); err != nil {
			slog.Error(fmt.Sprintf("Emailing notification %d to %s failed: %s",
				notification.ID, user.Email, err.Error()))
			return err
		}
		return db.WithConn(ctx, func(conn *sqlite.Conn) error {
			return catalog.SetNotificationEmailSent(conn, notification.ID, true)
		})
	}
}
