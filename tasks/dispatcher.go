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

// Package tasks provides the durable work queues that decouple the delivery
// pipeline's slow stages (virus scanning, file transfer, notification
// delivery) from the requests that trigger them. Work is recorded in the
// queue_messages table before it runs, so it survives restarts, and each
// message carries an idempotency key so re-enqueueing is harmless.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/store"
)

// A Handler consumes a single queue message. Returning nil marks the message
// done. Returning a policy.PreconditionError marks it dropped, for work that
// was superseded between enqueue and dispatch (an admin override racing a
// scan, say). Any other error marks the message failed and leaves it in the
// table for inspection.
type Handler func(ctx context.Context, message Message) error

// how many messages a parallel queue claims per drain, and how many of those
// run at once
const (
	batchSize   = 32
	fanOutLimit = 8
)

// A dispatcher drains one named queue. Serial queues handle messages one at
// a time in enqueue order; parallel queues fan each claimed batch out to a
// bounded set of goroutines.
type dispatcher struct {
	db       *store.Store
	queue    string
	handler  Handler
	interval time.Duration
	parallel bool
	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

// Queues owns the set of dispatchers for the service. Register handlers
// before calling Start.
type Queues struct {
	db          *store.Store
	interval    time.Duration
	dispatchers map[string]*dispatcher
	running     bool
}

// New creates an empty dispatcher set polling at the configured service
// interval.
func New(db *store.Store) *Queues {
	return &Queues{
		db:          db,
		interval:    time.Duration(config.Service.PollInterval) * time.Second,
		dispatchers: make(map[string]*dispatcher),
	}
}

// Register binds a handler to a named queue. Parallel queues may handle
// several messages at once; serial queues preserve strict enqueue order.
func (q *Queues) Register(queue string, handler Handler, parallel bool) {
	q.dispatchers[queue] = &dispatcher{
		db:       q.db,
		queue:    queue,
		handler:  handler,
		interval: q.interval,
		parallel: parallel,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start requeues any messages left inflight by a previous process and begins
// draining all registered queues.
func (q *Queues) Start() error {
	if q.running {
		return AlreadyRunningError{}
	}
	var requeued int
	err := q.db.WithConn(context.Background(), func(conn *sqlite.Conn) error {
		var err error
		requeued, err = RequeueInflight(conn)
		return err
	})
	if err != nil {
		return err
	}
	if requeued > 0 {
		slog.Info(fmt.Sprintf("Requeued %d interrupted queue message(s).", requeued))
	}
	for _, d := range q.dispatchers {
		go d.run()
	}
	q.running = true
	slog.Info(fmt.Sprintf("Started %d queue dispatcher(s) (poll interval: %s).",
		len(q.dispatchers), q.interval))
	return nil
}

// Stop halts all dispatchers, waiting for any message currently being
// handled to finish.
func (q *Queues) Stop() error {
	if !q.running {
		return NotRunningError{}
	}
	for _, d := range q.dispatchers {
		close(d.stop)
	}
	for _, d := range q.dispatchers {
		<-d.done
	}
	q.running = false
	slog.Info("Stopped all queue dispatchers.")
	return nil
}

// Running reports whether the dispatchers have been started.
func (q *Queues) Running() bool {
	return q.running
}

// Wake nudges a queue's dispatcher to drain immediately instead of waiting
// for its next poll. Call it after committing a transaction that enqueued
// work.
func (q *Queues) Wake(queue string) error {
	d, found := q.dispatchers[queue]
	if !found {
		return UnknownQueueError{Queue: queue}
	}
	select {
	case d.wake <- struct{}{}:
	default: // a wakeup is already pending
	}
	return nil
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.drain()
		select {
		case <-d.stop:
			return
		case <-d.wake:
		case <-time.After(d.interval):
		}
	}
}

// drain handles pending messages until the queue is empty.
func (d *dispatcher) drain() {
	if d.parallel {
		d.drainParallel()
		return
	}
	for {
		message, found := d.claim()
		if !found {
			return
		}
		d.dispatch(message)
	}
}

func (d *dispatcher) drainParallel() {
	for {
		var batch []Message
		err := d.db.WithTx(context.Background(), func(conn *sqlite.Conn) error {
			var err error
			batch, err = claimBatch(conn, d.queue, batchSize)
			return err
		})
		if err != nil {
			slog.Error(fmt.Sprintf("Queue %s: claiming messages failed: %s",
				d.queue, err.Error()))
			return
		}
		if len(batch) == 0 {
			return
		}
		var group errgroup.Group
		group.SetLimit(fanOutLimit)
		for _, message := range batch {
			message := message
			group.Go(func() error {
				d.dispatch(message)
				return nil
			})
		}
		group.Wait()
	}
}

func (d *dispatcher) claim() (Message, bool) {
	var message Message
	found := false
	err := d.db.WithTx(context.Background(), func(conn *sqlite.Conn) error {
		var err error
		message, found, err = claimNext(conn, d.queue)
		return err
	})
	if err != nil {
		slog.Error(fmt.Sprintf("Queue %s: claiming next message failed: %s",
			d.queue, err.Error()))
		return Message{}, false
	}
	return message, found
}

// dispatch runs the handler for one claimed message and records its
// disposition.
func (d *dispatcher) dispatch(message Message) {
	err := d.handler(context.Background(), message)
	var precondition *policy.PreconditionError
	switch {
	case err == nil:
		d.finalize(message, MessageDone, "")
		slog.Debug(fmt.Sprintf("Queue %s: message %d (%s) done.",
			d.queue, message.ID, message.Kind))
	case errors.As(err, &precondition):
		d.finalize(message, MessageDropped, err.Error())
		slog.Info(fmt.Sprintf("Queue %s: message %d (%s) dropped: %s",
			d.queue, message.ID, message.Kind, err.Error()))
	default:
		d.finalize(message, MessageFailed, err.Error())
		slog.Error(fmt.Sprintf("Queue %s: message %d (%s) failed: %s",
			d.queue, message.ID, message.Kind, err.Error()))
	}
}

func (d *dispatcher) finalize(message Message, status MessageStatus, detail string) {
	err := d.db.WithConn(context.Background(), func(conn *sqlite.Conn) error {
		return finalize(conn, message.ID, status, detail)
	})
	if err != nil {
		slog.Error(fmt.Sprintf("Queue %s: finalizing message %d failed: %s",
			d.queue, message.ID, err.Error()))
	}
}
