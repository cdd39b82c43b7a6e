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
	"mime/multipart"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/transfers"
)

type TransferOutput struct {
	Body TransferResponse `doc:"one transfer"`
}

type CreatedTransferOutput struct {
	Body   TransferResponse `doc:"the new transfer, with its reference assigned"`
	Status int
}

// handler method for registering a new transfer
func (service *bridgeService) createTransfer(ctx context.Context,
	input *struct {
		Authorization string                `header:"authorization" doc:"Authorization header with bearer access token"`
		Body          CreateTransferRequest `doc:"the new transfer's fields"`
	}) (*CreatedTransferOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var transfer catalog.Transfer
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.Create(ctx, &user, transfers.CreateParams{
			Name:               input.Body.Name,
			Category:           input.Body.Category,
			Priority:           catalog.Priority(input.Body.Priority),
			Notes:              input.Body.Notes,
			ShotgridProjectID:  input.Body.ShotgridProjectId,
			ShotgridEntityType: input.Body.ShotgridEntityType,
			ShotgridEntityID:   input.Body.ShotgridEntityId,
		})
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &CreatedTransferOutput{
		Body:   transferView(transfer),
		Status: http.StatusCreated,
	}, nil
}

type TransferPageOutput struct {
	Body TransferPageResponse `doc:"one page of transfers visible to the caller"`
}

// handler method for listing transfers the caller may see
func (service *bridgeService) getTransfers(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Status        string `query:"status" example:"pending_team_lead" doc:"(Optional) only transfers in this status"`
		Category      string `query:"category" example:"vfx_assets" doc:"(Optional) only transfers in this category"`
		Search        string `query:"search" doc:"(Optional) substring match on name and reference"`
		Page          int    `query:"page" example:"1" doc:"1-based page number"`
		PerPage       int    `query:"per_page" example:"20" doc:"page size (default 20)"`
	}) (*TransferPageOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var status policy.Status
	if input.Status != "" {
		status, err = policy.ParseStatus(input.Status)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
	}
	page := input.Page
	if page < 1 {
		page = 1
	}
	perPage := input.PerPage
	if perPage < 1 {
		perPage = 20
	}

	var listed []catalog.Transfer
	total := 0
	err = retryBusy(func() error {
		var err error
		listed, total, err = service.Pipeline.List(ctx, &user, transfers.ListQuery{
			Status:   status,
			Category: input.Category,
			Search:   input.Search,
			Page:     page,
			PerPage:  perPage,
		})
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferPageOutput{
		Body: TransferPageResponse{
			Transfers: transferViews(listed),
			Total:     total,
			Page:      page,
			PerPage:   perPage,
		},
	}, nil
}

type TransferStatsOutput struct {
	Body TransferStatsResponse `doc:"visible transfers bucketed by pipeline phase"`
}

// handler method for the dashboard counters
func (service *bridgeService) getTransferStats(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
	}) (*TransferStatsOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var stats transfers.Stats
	err = retryBusy(func() error {
		var err error
		stats, err = service.Pipeline.Stats(ctx, &user)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferStatsOutput{
		Body: TransferStatsResponse{
			Total:       stats.Total,
			Pending:     stats.Pending,
			Approved:    stats.Approved,
			Scanning:    stats.Scanning,
			Transferred: stats.Transferred,
			Rejected:    stats.Rejected,
		},
	}, nil
}

type TransferDetailOutput struct {
	Body TransferDetailResponse `doc:"one transfer with its files and approval chain"`
}

// handler method for reading one transfer in full
func (service *bridgeService) getTransfer(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
	}) (*TransferDetailOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var transfer catalog.Transfer
	var files []catalog.TransferFile
	var chain []transfers.ChainEntry
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.Get(ctx, input.Id, &user)
		if err != nil {
			return err
		}
		files, err = service.Pipeline.Files(ctx, input.Id, &user)
		if err != nil {
			return err
		}
		chain, err = service.Pipeline.Chain(ctx, input.Id)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferDetailOutput{
		Body: TransferDetailResponse{
			TransferResponse: transferView(transfer),
			Files:            fileViews(files),
			Approvals:        chainViews(chain),
		},
	}, nil
}

// handler method for editing a transfer that has not entered review
func (service *bridgeService) updateTransfer(ctx context.Context,
	input *struct {
		Authorization string                `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64                 `path:"id" example:"42" doc:"the transfer's id"`
		Body          UpdateTransferRequest `doc:"the fields to change"`
	}) (*TransferOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	params := transfers.UpdateParams{
		Name:  input.Body.Name,
		Notes: input.Body.Notes,
		Tags:  input.Body.Tags,
	}
	if input.Body.Priority != nil {
		priority := catalog.Priority(*input.Body.Priority)
		params.Priority = &priority
	}

	var transfer catalog.Transfer
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.Update(ctx, input.Id, &user, params)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}

// handler method for withdrawing a transfer (DELETE = cancel; rows are
// never removed)
func (service *bridgeService) cancelTransfer(ctx context.Context,
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
		transfer, err = service.Pipeline.Cancel(ctx, input.Id, &user)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}

type UploadOutput struct {
	Body   []FileResponse `doc:"the staged files, with stored names and checksums"`
	Status int
}

// handler method for multipart file ingestion; each "file" part is streamed
// into the transfer's staging directory
func (service *bridgeService) uploadFiles(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
		RawBody       multipart.Form
	}) (*UploadOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	parts := input.RawBody.File["file"]
	if len(parts) == 0 {
		return nil, huma.Error422UnprocessableEntity("The form needs at least one 'file' part")
	}

	staged := make([]FileResponse, 0, len(parts))
	for _, part := range parts {
		content, err := part.Open()
		if err != nil {
			return nil, err
		}
		var record catalog.TransferFile
		err = retryBusy(func() error {
			var err error
			record, err = service.Pipeline.Upload(ctx, input.Id, &user, part.Filename, content)
			return err
		})
		content.Close()
		if err != nil {
			return nil, apiError(err)
		}
		staged = append(staged, fileView(record))
	}
	return &UploadOutput{Body: staged, Status: http.StatusCreated}, nil
}

type FilesOutput struct {
	Body []FileResponse `doc:"the transfer's staged files"`
}

// handler method for listing a transfer's files
func (service *bridgeService) getTransferFiles(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
	}) (*FilesOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var files []catalog.TransferFile
	err = retryBusy(func() error {
		var err error
		files, err = service.Pipeline.Files(ctx, input.Id, &user)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &FilesOutput{Body: fileViews(files)}, nil
}

type FileDeletionOutput struct {
	Status int
}

// handler method for removing a staged file while the transfer is editable
func (service *bridgeService) deleteTransferFile(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
		FileId        int64  `path:"fileId" example:"7" doc:"the file's id"`
	}) (*FileDeletionOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	err = retryBusy(func() error {
		return service.Pipeline.DeleteFile(ctx, input.Id, input.FileId, &user)
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &FileDeletionOutput{Status: http.StatusNoContent}, nil
}

// handler method for moving an uploaded transfer into the approval chain
func (service *bridgeService) submitTransfer(ctx context.Context,
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
		transfer, err = service.Pipeline.Submit(ctx, input.Id, &user)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}

type HistoryOutput struct {
	Body []HistoryResponse `doc:"the transfer's audit trail, oldest first"`
}

// handler method for reading a transfer's audit trail
func (service *bridgeService) getTransferHistory(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"42" doc:"the transfer's id"`
	}) (*HistoryOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var entries []catalog.HistoryEntry
	err = retryBusy(func() error {
		var err error
		entries, err = service.Pipeline.History(ctx, input.Id, &user)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &HistoryOutput{Body: historyViews(entries)}, nil
}
