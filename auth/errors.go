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

package auth

import "fmt"

// indicates a username/password pair that doesn't check out; deliberately
// silent about which half was wrong
type InvalidCredentialsError struct{}

func (e InvalidCredentialsError) Error() string {
	return "Invalid username or password."
}

// indicates a login attempt on a deactivated account
type InactiveUserError struct {
	Username string
}

func (e InactiveUserError) Error() string {
	return fmt.Sprintf("The account '%s' has been deactivated.", e.Username)
}

// indicates a session token that failed verification (bad signature, wrong
// kind, or expired)
type InvalidTokenError struct{}

func (e InvalidTokenError) Error() string {
	return "Invalid or expired token."
}

// indicates an auth secret that is not a valid fernet key
type InvalidKeyError struct {
	Err error
}

func (e InvalidKeyError) Error() string {
	return fmt.Sprintf("The configured auth secret is not a valid fernet key: %s", e.Err)
}

func (e InvalidKeyError) Unwrap() error {
	return e.Err
}
