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

package policy

import "fmt"

// indicates that a transfer is not in a state that permits the requested
// operation
type PreconditionError struct {
	Detail string
}

func (e PreconditionError) Error() string {
	return e.Detail
}

// indicates that the acting user's role does not permit the requested
// operation
type AuthZError struct {
	Detail string
}

func (e AuthZError) Error() string {
	return e.Detail
}

// indicates a role string that names no known role
type InvalidRoleError struct {
	Role string
}

func (e InvalidRoleError) Error() string {
	return fmt.Sprintf("Invalid role: '%s'", e.Role)
}

// indicates a status string that names no known transfer status
type InvalidStatusError struct {
	Status string
}

func (e InvalidStatusError) Error() string {
	return fmt.Sprintf("Invalid transfer status: '%s'", e.Status)
}

// indicates an intent kind that names no known operation
type InvalidIntentError struct {
	Kind string
}

func (e InvalidIntentError) Error() string {
	return fmt.Sprintf("Invalid transfer intent: '%s'", e.Kind)
}
