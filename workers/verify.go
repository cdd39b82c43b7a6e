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

package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/journal"
	"github.com/databridge-io/databridge/manifest"
	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/shotgrid"
	"github.com/databridge-io/databridge/transfers"
)

// runVerify re-hashes every delivered file against its upload checksum and
// settles the transfer as transferred or scan_failed.
func (w *Workers) runVerify(ctx context.Context, transferID int64) error {
	transfer, files, err := w.loadTransferFiles(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status != policy.StatusVerifying {
		return &policy.PreconditionError{
			Detail: fmt.Sprintf("Transfer %s is %s, not verifying", transfer.Reference, transfer.Status),
		}
	}

	mismatched := w.verifyProduction(ctx, transfer, files)
	if len(mismatched) > 0 {
		slog.Error(fmt.Sprintf("Transfer %s verification FAILED: %d mismatches",
			transfer.Reference, len(mismatched)))
		settled, err := w.pipeline.Apply(ctx, transferID, transfers.Intent{
			Kind:       policy.IntentVerifyFailed,
			Mismatched: mismatched,
		})
		if err != nil {
			return err
		}
		w.journalOutcome(ctx, settled, nil)
		return nil
	}

	slog.Info(fmt.Sprintf("Transfer %s COMPLETE: %d files delivered",
		transfer.Reference, len(files)))
	_, err = w.pipeline.Apply(ctx, transferID, transfers.Intent{Kind: policy.IntentVerifyOK})
	return err
}

// verifyProduction checks each file's production copy, records the verdict
// on its row, and returns the filenames that are missing or mismatched. An
// unreadable production directory fails every file.
func (w *Workers) verifyProduction(ctx context.Context, transfer catalog.Transfer,
	files []catalog.TransferFile) []string {

	var mismatched []string
	if transfer.ProductionPath == "" {
		for _, file := range files {
			mismatched = append(mismatched, file.Filename)
		}
		return mismatched
	}

	for _, file := range files {
		path := filepath.Join(transfer.ProductionPath, file.Filename)
		verified := false
		if _, err := os.Stat(path); err == nil {
			computed, err := hashFile(path)
			if err == nil && file.ChecksumSHA256 != "" && computed == file.ChecksumSHA256 {
				verified = true
			} else if err == nil {
				slog.Warn(fmt.Sprintf("Production checksum mismatch: %s (expected=%s got=%s)",
					file.Filename, file.ChecksumSHA256, computed))
			}
		}
		if !verified {
			mismatched = append(mismatched, file.Filename)
		}
		err := w.pipeline.Store().WithTx(ctx, func(conn *sqlite.Conn) error {
			return catalog.SetFileChecksumVerified(conn, file.ID, verified)
		})
		if err != nil {
			slog.Error(fmt.Sprintf("Recording verification for %s failed: %s",
				file.Filename, err.Error()))
		}
	}
	return mismatched
}

// runDeliveryComplete does the bookkeeping for a verified delivery: the
// manifest beside the delivered files, the journal record, and the ShotGrid
// completion callback. ShotGrid and manifest failures are logged and
// tolerated; the delivery already happened.
func (w *Workers) runDeliveryComplete(ctx context.Context, transferID int64) error {
	transfer, files, err := w.loadTransferFiles(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status != policy.StatusTransferred {
		return &policy.PreconditionError{
			Detail: fmt.Sprintf("Transfer %s is %s, not transferred", transfer.Reference, transfer.Status),
		}
	}

	var artist catalog.User
	err = w.pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		artist, err = catalog.UserByID(conn, transfer.ArtistID)
		return err
	})
	if err != nil {
		return err
	}

	var delivered *manifest.Manifest
	delivered, err = manifest.Write(transfer, files, artist)
	if err != nil {
		slog.Error(fmt.Sprintf("Writing manifest for %s failed: %s",
			transfer.Reference, err.Error()))
	}

	w.journalOutcome(ctx, transfer, delivered)

	if w.studio != nil {
		if versionID := shotgrid.CompleteDelivery(ctx, w.studio, transfer); versionID != nil {
			err = w.pipeline.Store().WithTx(ctx, func(conn *sqlite.Conn) error {
				current, err := catalog.TransferByID(conn, transferID)
				if err != nil {
					return err
				}
				current.ShotgridVersionID = versionID
				return catalog.UpdateTransfer(conn, &current)
			})
			if err != nil {
				slog.Error(fmt.Sprintf("Recording ShotGrid version for %s failed: %s",
					transfer.Reference, err.Error()))
			}
		}
	}
	return nil
}

// journalOutcome appends the delivery journal record for a settled pipeline
// outcome. The journal is advisory; failures are logged, never propagated.
func (w *Workers) journalOutcome(ctx context.Context, transfer catalog.Transfer,
	delivered *manifest.Manifest) {

	if w.journal == nil {
		return
	}

	var artist catalog.User
	err := w.pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		artist, err = catalog.UserByID(conn, transfer.ArtistID)
		return err
	})
	if err != nil {
		slog.Error(fmt.Sprintf("Journaling %s: loading artist failed: %s",
			transfer.Reference, err.Error()))
		return
	}

	record := journal.Record{
		Id:          uuid.New(),
		Reference:   transfer.Reference,
		Artist:      artist.Username,
		Status:      transfer.Status,
		PayloadSize: transfer.TotalSizeBytes,
		NumFiles:    int(transfer.TotalFiles),
		StartTime:   journalStart(transfer),
		StopTime:    journalStop(transfer),
	}
	if delivered != nil {
		record.Manifest = delivered.Package
	}
	if err := w.journal.Append(record); err != nil {
		slog.Error(fmt.Sprintf("Journaling %s failed: %s", transfer.Reference, err.Error()))
	}
}

// journalStart picks the moment the delivery pipeline took the transfer:
// the start of its file transfer, or of its scan, or its submission.
func journalStart(transfer catalog.Transfer) time.Time {
	switch {
	case transfer.TransferStartedAt != nil:
		return *transfer.TransferStartedAt
	case transfer.ScanStartedAt != nil:
		return *transfer.ScanStartedAt
	case transfer.SubmittedAt != nil:
		return *transfer.SubmittedAt
	}
	return transfer.CreatedAt
}

// journalStop picks the moment the pipeline settled the transfer.
func journalStop(transfer catalog.Transfer) time.Time {
	switch {
	case transfer.TransferCompletedAt != nil:
		return *transfer.TransferCompletedAt
	case transfer.ScanCompletedAt != nil:
		return *transfer.ScanCompletedAt
	}
	return time.Now().UTC()
}
