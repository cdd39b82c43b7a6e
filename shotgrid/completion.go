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

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/databridge-io/databridge/catalog"
)

// CompleteDelivery pushes a delivered transfer back to ShotGrid: the linked
// entity moves to "dlvr", and when a project is linked a Version and a Note
// record what landed. ShotGrid being down never fails a delivery, so every
// error is logged and swallowed; the return value is the new Version's id,
// or nil when none was created.
func CompleteDelivery(ctx context.Context, client Client, transfer catalog.Transfer) *int64 {
	if transfer.ShotgridEntityType == "" || transfer.ShotgridEntityID == nil {
		slog.Info(fmt.Sprintf("Transfer %s has no ShotGrid entity linked; skipping update",
			transfer.Reference))
		return nil
	}

	entityType := transfer.ShotgridEntityType
	entityID := *transfer.ShotgridEntityID

	if err := client.UpdateEntityStatus(ctx, entityType, entityID, "dlvr"); err != nil {
		slog.Error(fmt.Sprintf("ShotGrid status update for %s %d failed: %s",
			entityType, entityID, err.Error()))
	}

	var versionID *int64
	if transfer.ShotgridProjectID != nil {
		projectID := *transfer.ShotgridProjectID
		category := transfer.Category
		if category == "" {
			category = "N/A"
		}

		id, err := client.CreateVersion(ctx, NewVersion{
			ProjectID:  projectID,
			EntityType: entityType,
			EntityID:   entityID,
			Code:       fmt.Sprintf("%s_v001", transfer.Reference),
			Description: fmt.Sprintf("DataBridge transfer %s\nFiles: %d | Size: %s\nCategory: %s",
				transfer.Reference, transfer.TotalFiles, transfer.SizeDisplay(), category),
			Path: transfer.ProductionPath,
		})
		if err != nil {
			slog.Error(fmt.Sprintf("ShotGrid Version for %s failed: %s",
				transfer.Reference, err.Error()))
		} else {
			versionID = &id
		}

		_, err = client.CreateNote(ctx, NewNote{
			ProjectID:  projectID,
			EntityType: entityType,
			EntityID:   entityID,
			Subject:    fmt.Sprintf("Transfer Complete: %s", transfer.Reference),
			Content: fmt.Sprintf("Data transfer '%s' has been delivered to production.\n\n"+
				"Reference: %s\nFiles: %d\nTotal size: %s\nProduction path: %s\nCompleted: %s",
				transfer.Name, transfer.Reference, transfer.TotalFiles, transfer.SizeDisplay(),
				transfer.ProductionPath, time.Now().UTC().Format("2006-01-02 15:04 UTC")),
		})
		if err != nil {
			slog.Error(fmt.Sprintf("ShotGrid Note for %s failed: %s",
				transfer.Reference, err.Error()))
		}
	}

	slog.Info(fmt.Sprintf("ShotGrid completion done for transfer %s (%s %d)",
		transfer.Reference, entityType, entityID))
	return versionID
}
