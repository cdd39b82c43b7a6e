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

package shotgrid

import "fmt"

// indicates that a redirect would have downgraded the connection to HTTP
type DowngradedRedirectError struct {
	Endpoint string
}

func (e *DowngradedRedirectError) Error() string {
	return fmt.Sprintf("Redirect to %s would downgrade the connection to HTTP", e.Endpoint)
}

// indicates that the ShotGrid site answered a request with a failure status
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("ShotGrid request failed (HTTP %d): %s", e.StatusCode, e.Detail)
}

// indicates that a ShotGrid response could not be decoded
type DecodeError struct {
	Entity string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("Decoding ShotGrid %s failed: %s", e.Entity, e.Err.Error())
}

// indicates that transfers cannot link to the requested entity type
type InvalidEntityTypeError struct {
	EntityType string
}

func (e *InvalidEntityTypeError) Error() string {
	return fmt.Sprintf("Transfers cannot link to entity type %s (only Shot and Asset)", e.EntityType)
}
