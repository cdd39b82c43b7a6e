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

// Package transfers is the heart of the delivery pipeline: creating
// transfers, ingesting their files, and moving them through the approval
// and delivery state machine. All status changes funnel through
// Pipeline.Apply, which validates each transition against the policy
// table, flips the affected rows, appends the audit history, and fans out
// notifications inside a single write transaction.
package transfers

import (
	"fmt"
	"log/slog"

	"github.com/databridge-io/databridge/store"
	"github.com/databridge-io/databridge/tasks"
)

// Pipeline bundles the database and the work queues that every transfer
// operation needs. It is constructed once at startup and handed to the API
// services and the workers; there is no package-level instance.
type Pipeline struct {
	db     *store.Store
	queues *tasks.Queues
}

// NewPipeline wires a pipeline over the given store and queue set. The
// queue set may still be stopped; enqueued work waits for Start.
func NewPipeline(db *store.Store, queues *tasks.Queues) *Pipeline {
	return &Pipeline{db: db, queues: queues}
}

// Store exposes the underlying database for read-side composition.
func (p *Pipeline) Store() *store.Store {
	return p.db
}

// wake nudges the dispatchers owning the given follow-up messages. The
// messages themselves were committed with the transition that warrants
// them; a missed nudge only waits out one poll interval, so failures are
// logged rather than returned.
func (p *Pipeline) wake(followups []tasks.Message) {
	woken := make(map[string]bool)
	for _, message := range followups {
		if woken[message.Queue] {
			continue
		}
		woken[message.Queue] = true
		if err := p.queues.Wake(message.Queue); err != nil {
			slog.Warn(fmt.Sprintf("Waking queue %s failed: %s", message.Queue, err.Error()))
		}
	}
}
