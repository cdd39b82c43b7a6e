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

package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// names of the queues driving the delivery pipeline
const (
	QueueScanning      = "scanning"
	QueueTransfer      = "transfer"
	QueueNotifications = "notifications"
)

// kinds of pipeline work carried on the scanning and transfer queues
const (
	KindScan             = "scan"
	KindPrepare          = "prepare"
	KindCopy             = "copy"
	KindVerify           = "verify"
	KindDeliveryComplete = "delivery_complete"
)

// MessageStatus indicates the disposition of a queued message.
type MessageStatus string

const (
	MessagePending  MessageStatus = "pending"  // awaiting dispatch
	MessageInflight MessageStatus = "inflight" // claimed by a dispatcher
	MessageDone     MessageStatus = "done"     // handled successfully
	MessageDropped  MessageStatus = "dropped"  // superseded before dispatch
	MessageFailed   MessageStatus = "failed"   // handler reported an error
)

// A Message is one durable unit of pipeline work. Messages are written in the
// same transaction as the state change that warrants them, so a stage handoff
// and its follow-on work either both exist or neither does.
type Message struct {
	ID             int64
	Queue          string
	IdempotencyKey string
	Kind           string
	Payload        map[string]any
	Status         MessageStatus
	Attempts       int
	LastError      string
	EnqueuedAt     time.Time
	CompletedAt    *time.Time
}

// DecodePayload fills the given struct from the message payload. Numeric
// fields tolerate the float64 values produced by JSON decoding.
func (m Message) DecodePayload(target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return InvalidPayloadError{Kind: m.Kind, Err: err}
	}
	if err := decoder.Decode(m.Payload); err != nil {
		return InvalidPayloadError{Kind: m.Kind, Err: err}
	}
	return nil
}

// Key composes the idempotency key under which a pipeline message is
// deduplicated. Re-enqueueing the same kind for the same transfer and stage
// is a no-op.
func Key(kind string, transferID int64, stage string) string {
	return fmt.Sprintf("%s:%d:%s", kind, transferID, stage)
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(text string) time.Time {
	t, _ := time.Parse(timeLayout, text)
	return t
}

// Enqueue records a message for dispatch, returning true if it was accepted
// and false if a message with the same idempotency key is already pending or
// inflight. A key whose earlier message has finished (done, dropped or
// failed) is re-armed so operators can trigger a stage again. Call Enqueue
// on a connection inside the transaction that performs the related state
// change.
func Enqueue(conn *sqlite.Conn, message Message) (bool, error) {
	payload := message.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO queue_messages (queue, idempotency_key, kind, payload, status, enqueued_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (idempotency_key) DO UPDATE SET
		   status = excluded.status,
		   payload = excluded.payload,
		   enqueued_at = excluded.enqueued_at,
		   last_error = '',
		   completed_at = NULL
		 WHERE queue_messages.status IN ('done', 'dropped', 'failed')`,
		&sqlitex.ExecOptions{
			Args: []any{message.Queue, message.IdempotencyKey, message.Kind,
				string(encoded), string(MessagePending), formatTime(time.Now())},
		})
	if err != nil {
		return false, err
	}
	return conn.Changes() > 0, nil
}

// RequeueInflight returns claimed-but-unfinished messages to the pending
// state. Run it once at startup so work interrupted by a crash is retried.
func RequeueInflight(conn *sqlite.Conn) (int, error) {
	err := sqlitex.Execute(conn,
		`UPDATE queue_messages SET status = ? WHERE status = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(MessagePending), string(MessageInflight)},
		})
	if err != nil {
		return 0, err
	}
	return conn.Changes(), nil
}

// PendingCount reports how many messages await dispatch on the given queue.
func PendingCount(conn *sqlite.Conn, queue string) (int, error) {
	count := 0
	err := sqlitex.Execute(conn,
		`SELECT COUNT(*) FROM queue_messages WHERE queue = ? AND status = ?`,
		&sqlitex.ExecOptions{
			Args: []any{queue, string(MessagePending)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	return count, err
}

// MessageByKey retrieves the message enqueued under the given idempotency
// key, reporting false if no such message exists.
func MessageByKey(conn *sqlite.Conn, key string) (Message, bool, error) {
	var message Message
	found := false
	err := sqlitex.Execute(conn,
		`SELECT id, queue, idempotency_key, kind, payload, status, attempts,
		        last_error, enqueued_at, completed_at
		 FROM queue_messages WHERE idempotency_key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				message = scanMessage(stmt)
				return nil
			},
		})
	return message, found, err
}

// claimNext moves the oldest pending message on a queue to the inflight
// state and returns it. Messages come back strictly in enqueue order.
func claimNext(conn *sqlite.Conn, queue string) (Message, bool, error) {
	var message Message
	found := false
	err := sqlitex.Execute(conn,
		`SELECT id, queue, idempotency_key, kind, payload, status, attempts,
		        last_error, enqueued_at, completed_at
		 FROM queue_messages WHERE queue = ? AND status = ?
		 ORDER BY id LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{queue, string(MessagePending)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				message = scanMessage(stmt)
				return nil
			},
		})
	if err != nil || !found {
		return Message{}, false, err
	}
	err = sqlitex.Execute(conn,
		`UPDATE queue_messages SET status = ?, attempts = attempts + 1 WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(MessageInflight), message.ID},
		})
	if err != nil {
		return Message{}, false, err
	}
	message.Status = MessageInflight
	message.Attempts++
	return message, true, nil
}

// claimBatch claims up to limit pending messages on a queue at once, for
// queues whose handlers may run concurrently.
func claimBatch(conn *sqlite.Conn, queue string, limit int) ([]Message, error) {
	var batch []Message
	err := sqlitex.Execute(conn,
		`SELECT id, queue, idempotency_key, kind, payload, status, attempts,
		        last_error, enqueued_at, completed_at
		 FROM queue_messages WHERE queue = ? AND status = ?
		 ORDER BY id LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{queue, string(MessagePending), limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				batch = append(batch, scanMessage(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, err
	}
	for i := range batch {
		err = sqlitex.Execute(conn,
			`UPDATE queue_messages SET status = ?, attempts = attempts + 1 WHERE id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{string(MessageInflight), batch[i].ID},
			})
		if err != nil {
			return nil, err
		}
		batch[i].Status = MessageInflight
		batch[i].Attempts++
	}
	return batch, nil
}

func markDone(conn *sqlite.Conn, id int64) error {
	return finalize(conn, id, MessageDone, "")
}

func finalize(conn *sqlite.Conn, id int64, status MessageStatus, detail string) error {
	return sqlitex.Execute(conn,
		`UPDATE queue_messages SET status = ?, last_error = ?, completed_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(status), detail, formatTime(time.Now()), id},
		})
}

func scanMessage(stmt *sqlite.Stmt) Message {
	message := Message{
		ID:             stmt.GetInt64("id"),
		Queue:          stmt.GetText("queue"),
		IdempotencyKey: stmt.GetText("idempotency_key"),
		Kind:           stmt.GetText("kind"),
		Status:         MessageStatus(stmt.GetText("status")),
		Attempts:       int(stmt.GetInt64("attempts")),
		LastError:      stmt.GetText("last_error"),
		EnqueuedAt:     parseTime(stmt.GetText("enqueued_at")),
	}
	payload := stmt.GetText("payload")
	if payload != "" {
		json.Unmarshal([]byte(payload), &message.Payload)
	}
	if stmt.ColumnType(stmt.ColumnIndex("completed_at")) != sqlite.TypeNull {
		completed := parseTime(stmt.GetText("completed_at"))
		message.CompletedAt = &completed
	}
	return message
}
