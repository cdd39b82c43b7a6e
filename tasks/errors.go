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

import "fmt"

// This error type is returned when the queue dispatchers are started more
// than once.
type AlreadyRunningError struct {
}

func (e AlreadyRunningError) Error() string {
	return "The queue dispatchers are already running."
}

// This error type is returned when the queue dispatchers are stopped before
// they have been started.
type NotRunningError struct {
}

func (e NotRunningError) Error() string {
	return "The queue dispatchers are not running."
}

// This error type is returned when a message is enqueued on a queue that has
// no registered handler.
type UnknownQueueError struct {
	Queue string // the name of the unregistered queue
}

func (e UnknownQueueError) Error() string {
	return fmt.Sprintf("The queue '%s' has no registered handler.", e.Queue)
}

// This error type is returned when a queue message cannot be decoded into the
// payload type its handler expects.
type InvalidPayloadError struct {
	Kind string // the kind of the offending message
	Err  error  // the underlying decoding error
}

func (e InvalidPayloadError) Error() string {
	return fmt.Sprintf("The payload of a '%s' message could not be decoded: %s",
		e.Kind, e.Err.Error())
}

func (e InvalidPayloadError) Unwrap() error {
	return e.Err
}
