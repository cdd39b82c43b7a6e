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

// handler method for moving an approved transfer into scanning (data team)
func (service *bridgeService) startScan(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
	}) (*TransferOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var transfer catalog.Transfer
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.StartScan(ctx, input.Id, &user)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}

// handler method for settling a scan whose worker died; the outcome is
// decided from the file rows already on record
func (service *bridgeService) completeScan(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
	}) (*TransferOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var transfer catalog.Transfer
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.CompleteScan(ctx, input.Id, &user, nil)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}

type ScanStatusOutput struct {
	Body ScanStatusResponse `doc:"the live view of the transfer's scan"`
}

// handler method for the scan progress view
func (service *bridgeService) getScanStatus(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
	}) (*ScanStatusOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var report transfers.ScanReport
	err = retryBusy(func() error {
		// scan reports are no more visible than their transfers
		if _, err := service.Pipeline.Get(ctx, input.Id, &user); err != nil {
			return err
		}
		var err error
		report, err = service.Pipeline.ScanReport(ctx, input.Id)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &ScanStatusOutput{
		Body: ScanStatusResponse{
			TransferId:      report.TransferID,
			Reference:       report.Reference,
			Status:          report.Status.String(),
			ScanStartedAt:   report.ScanStartedAt,
			ScanCompletedAt: report.ScanCompletedAt,
			ScanPassed:      report.ScanPassed,
			ScanResult:      report.ScanResult,
			Files: FileTallyResponse{
				Total:            report.Files.Total,
				Clean:            report.Files.Clean,
				Infected:         report.Files.Infected,
				Pending:          report.Files.Pending,
				Error:            report.Files.Error,
				ChecksumVerified: report.Files.ChecksumVerified,
				ChecksumFailed:   report.Files.ChecksumFailed,
			},
		},
	}, nil
}

// handler method for launching the copy to production (IT team)
func (service *bridgeService) executeTransfer(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
	}) (*TransferOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var transfer catalog.Transfer
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.Execute(ctx, input.Id, &user)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}

// handler method for re-running verification on a transfer whose files
// were moved by hand (IT team); the verify worker decides the outcome
func (service *bridgeService) completeTransfer(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
	}) (*TransferOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var transfer catalog.Transfer
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.TriggerVerification(ctx, input.Id, &user)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}
