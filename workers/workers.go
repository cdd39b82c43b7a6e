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

// Package workers implements the background half of the delivery pipeline:
// the virus scan, the staging-to-production copy, the post-copy
// verification, and the completion bookkeeping (ShotGrid callback, delivery
// manifest, journal record). Each handler consumes one durable queue
// message, does its filesystem or subprocess work outside any database
// transaction, and reports the outcome back through Pipeline.Apply.
package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/databridge-io/databridge/journal"
	"github.com/databridge-io/databridge/shotgrid"
	"github.com/databridge-io/databridge/tasks"
	"github.com/databridge-io/databridge/transfers"
)

// checksums are computed over 1 MiB chunks
const chunkSize = 1024 * 1024

// Workers owns the pipeline job handlers. Construct one at startup and
// register it on the queue set before the dispatchers start.
type Workers struct {
	pipeline *transfers.Pipeline
	studio   shotgrid.Client
	journal  *journal.Journal
}

// New creates the worker set over the given pipeline. The ShotGrid client
// and the delivery journal are only exercised by the completion handler;
// either may be nil in deployments that run without them.
func New(pipeline *transfers.Pipeline, studio shotgrid.Client, deliveries *journal.Journal) *Workers {
	return &Workers{
		pipeline: pipeline,
		studio:   studio,
		journal:  deliveries,
	}
}

// Register binds the handlers to their queues. Scanning and transfer work
// is strictly ordered, so both run serial.
func (w *Workers) Register(queues *tasks.Queues) {
	queues.Register(tasks.QueueScanning, w.HandleScanning, false)
	queues.Register(tasks.QueueTransfer, w.HandleTransfer, false)
}

// HandleScanning consumes one message from the scanning queue.
func (w *Workers) HandleScanning(ctx context.Context, message tasks.Message) error {
	var payload jobPayload
	if err := message.DecodePayload(&payload); err != nil {
		return err
	}
	switch message.Kind {
	case tasks.KindScan:
		return w.runScan(ctx, payload.TransferID)
	}
	return &UnknownKindError{Queue: message.Queue, Kind: message.Kind}
}

// HandleTransfer consumes one message from the transfer queue.
func (w *Workers) HandleTransfer(ctx context.Context, message tasks.Message) error {
	var payload jobPayload
	if err := message.DecodePayload(&payload); err != nil {
		return err
	}
	switch message.Kind {
	case tasks.KindPrepare:
		return w.runPrepare(ctx, payload.TransferID)
	case tasks.KindCopy:
		return w.runCopy(ctx, payload.TransferID)
	case tasks.KindVerify:
		return w.runVerify(ctx, payload.TransferID)
	case tasks.KindDeliveryComplete:
		return w.runDeliveryComplete(ctx, payload.TransferID)
	}
	return &UnknownKindError{Queue: message.Queue, Kind: message.Kind}
}

// jobPayload is the common payload of every pipeline job. Transitions that
// settle a precondition failure from Apply propagate it unchanged; the
// dispatcher recognises it and drops the message instead of retrying.
type jobPayload struct {
	TransferID int64 `mapstructure:"transfer_id"`
}

// hashFile computes the SHA-256 of the file at path, reading in 1 MiB
// chunks.
func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	buffer := make([]byte, chunkSize)
	for {
		n, err := file.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// tail returns the last max characters of text.
func tail(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[len(text)-max:]
}

// firstLine returns text up to (not including) the first newline.
func firstLine(text string) string {
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			return text[:i]
		}
	}
	return text
}
