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

package services

import (
	"context"

	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
)

type NotificationsOutput struct {
	Body []NotificationResponse `doc:"the caller's notifications, newest first"`
}

// handler method for listing the caller's notifications
func (service *bridgeService) getNotifications(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Unread        bool   `query:"unread" doc:"(Optional) only unread notifications"`
		Limit         int    `query:"limit" example:"50" doc:"cap on returned rows (default 50)"`
	}) (*NotificationsOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit < 1 {
		limit = 50
	}

	var notifications []catalog.Notification
	err = retryBusy(func() error {
		return service.Pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
			var err error
			notifications, err = catalog.NotificationsForUser(conn, user.ID, input.Unread, limit)
			return err
		})
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &NotificationsOutput{Body: notificationViews(notifications)}, nil
}

type UnreadCountOutput struct {
	Body struct {
		Count int `json:"count" doc:"how many of the caller's notifications are unread"`
	} `doc:"the badge count"`
}

// handler method for the notification badge count
func (service *bridgeService) getUnreadCount(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
	}) (*UnreadCountOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	count := 0
	err = retryBusy(func() error {
		return service.Pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
			var err error
			count, err = catalog.UnreadNotificationCount(conn, user.ID)
			return err
		})
	})
	if err != nil {
		return nil, apiError(err)
	}
	output := &UnreadCountOutput{}
	output.Body.Count = count
	return output, nil
}

type NotificationReadOutput struct {
	Body struct {
		Marked int `json:"marked" doc:"how many notifications were flipped to read"`
	} `doc:"the outcome"`
}

// handler method for marking one of the caller's notifications read;
// another user's notification reads as not found
func (service *bridgeService) markNotificationRead(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"7" doc:"the notification's id"`
	}) (*NotificationReadOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	err = retryBusy(func() error {
		return service.Pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
			return catalog.MarkNotificationRead(conn, user.ID, input.Id)
		})
	})
	if err != nil {
		return nil, apiError(err)
	}
	output := &NotificationReadOutput{}
	output.Body.Marked = 1
	return output, nil
}

// handler method for clearing the caller's unread notifications
func (service *bridgeService) markAllNotificationsRead(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
	}) (*NotificationReadOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	marked := 0
	err = retryBusy(func() error {
		return service.Pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
			var err error
			marked, err = catalog.MarkAllNotificationsRead(conn, user.ID)
			return err
		})
	})
	if err != nil {
		return nil, apiError(err)
	}
	output := &NotificationReadOutput{}
	output.Body.Marked = marked
	return output, nil
}
