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

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/transfers"
)

// handler method for approving the current review stage
func (service *bridgeService) approveTransfer(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
		Body          struct {
			Comment string `json:"comment,omitempty" doc:"(Optional) a note recorded with the approval"`
		} `doc:"the approval"`
	}) (*TransferOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var transfer catalog.Transfer
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.Approve(ctx, input.Id, &user, input.Body.Comment)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}

// handler method for rejecting the current review stage; the reviewer has
// to give the artist something actionable, hence the length floor
func (service *bridgeService) rejectTransfer(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
		Body          struct {
			Reason string `json:"reason" minLength:"10" doc:"why the transfer was turned back (at least 10 characters)"`
		} `doc:"the rejection"`
	}) (*TransferOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var transfer catalog.Transfer
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.Reject(ctx, input.Id, &user, input.Body.Reason)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}

// handler method for force-moving a transfer past the chain (admin)
func (service *bridgeService) overrideTransfer(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
		Body          struct {
			Status string `json:"status" example:"approved" doc:"the status to force the transfer into"`
			Reason string `json:"reason,omitempty" doc:"why the chain was skipped"`
		} `doc:"the override"`
	}) (*TransferOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var transfer catalog.Transfer
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.Override(ctx, input.Id, &user,
			input.Body.Status, input.Body.Reason)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}

type PendingOutput struct {
	Body []TransferResponse `doc:"transfers waiting on the caller's role, newest first"`
}

// handler method for a reviewer's work queue
func (service *bridgeService) getPendingApprovals(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
	}) (*PendingOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var pending []catalog.Transfer
	err = retryBusy(func() error {
		var err error
		pending, err = service.Pipeline.PendingTransfers(ctx, &user)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &PendingOutput{Body: transferViews(pending)}, nil
}

type PendingCountOutput struct {
	Body struct {
		Count int `json:"count" doc:"how many transfers are waiting on the caller's role"`
	} `doc:"the badge count"`
}

// handler method for the reviewer's badge count
func (service *bridgeService) getPendingApprovalCount(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
	}) (*PendingCountOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	count := 0
	err = retryBusy(func() error {
		var err error
		count, err = service.Pipeline.PendingCount(ctx, &user)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	output := &PendingCountOutput{}
	output.Body.Count = count
	return output, nil
}

type ChainOutput struct {
	Body []ChainEntryResponse `doc:"the five approval stages in the order they are decided"`
}

// handler method for the approval chain view
func (service *bridgeService) getApprovalChain(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
	}) (*ChainOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var chain []transfers.ChainEntry
	err = retryBusy(func() error {
		// the visibility gate first; chains are no more visible than
		// their transfers
		if _, err := service.Pipeline.Get(ctx, input.Id, &user); err != nil {
			return err
		}
		var err error
		chain, err = service.Pipeline.Chain(ctx, input.Id)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &ChainOutput{Body: chainViews(chain)}, nil
}
