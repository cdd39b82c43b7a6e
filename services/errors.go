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
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/store"
	"github.com/databridge-io/databridge/transfers"
)

// apiError translates the pipeline's typed errors into HTTP status errors
// at the API boundary. Anything unrecognised passes through for huma to
// report as an internal error.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var (
		precondition *policy.PreconditionError
		authz        *policy.AuthZError
		notFound     *catalog.NotFoundError
		conflict     *catalog.ConflictError
		unavailable  *catalog.UnavailableError
		validation   transfers.ValidationError
		tooLarge     transfers.TooLargeError
	)
	switch {
	case errors.As(err, &precondition):
		return huma.Error400BadRequest(precondition.Detail)
	case errors.As(err, &authz):
		return huma.Error403Forbidden(authz.Detail)
	case errors.As(err, &notFound):
		return huma.Error404NotFound(err.Error())
	case errors.As(err, &conflict):
		return huma.Error409Conflict(conflict.Detail)
	case errors.As(err, &validation):
		return huma.Error422UnprocessableEntity(validation.Detail)
	case errors.As(err, &tooLarge):
		return huma.NewError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &unavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	}
	return err
}

// retryBusy runs a catalog operation, retrying once when another writer
// holds the database. A second busy answer becomes an UnavailableError,
// which apiError reports as 503.
func retryBusy(fn func() error) error {
	err := fn()
	if store.IsBusy(err) {
		err = fn()
		if store.IsBusy(err) {
			return &catalog.UnavailableError{Err: err}
		}
	}
	return err
}
