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

package transfers

import (
	"context"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/policy"
)

// StartScan moves an approved transfer into scanning and dispatches the
// scan worker.
func (p *Pipeline) StartScan(ctx context.Context, transferID int64, actor *catalog.User) (catalog.Transfer, error) {
	return p.Apply(ctx, transferID, Intent{Kind: policy.IntentStartScan, Actor: actor})
}

// CompleteScan settles a scanning transfer from its file rows: scan_passed
// when every file came back clean with matching checksums, scan_failed
// otherwise. The scan worker calls it with a nil actor and the merged
// summary; operators call it through the API to settle a scan whose worker
// died, leaving summary nil.
func (p *Pipeline) CompleteScan(ctx context.Context, transferID int64, actor *catalog.User,
	summary map[string]any) (catalog.Transfer, error) {

	return p.Apply(ctx, transferID, Intent{
		Kind:        policy.IntentCompleteScan,
		Actor:       actor,
		ScanSummary: summary,
	})
}

// Execute moves a ready transfer into transferring and dispatches the copy
// worker.
func (p *Pipeline) Execute(ctx context.Context, transferID int64, actor *catalog.User) (catalog.Transfer, error) {
	return p.Apply(ctx, transferID, Intent{Kind: policy.IntentExecute, Actor: actor})
}

// A ScanReport is the live view of one transfer's scan, with per-file
// tallies.
type ScanReport struct {
	TransferID      int64
	Reference       string
	Status          policy.Status
	ScanStartedAt   *time.Time
	ScanCompletedAt *time.Time
	ScanPassed      *bool
	ScanResult      map[string]any
	Files           FileTally
}

// FileTally counts a transfer's files by scan and checksum outcome.
type FileTally struct {
	Total            int
	Clean            int
	Infected         int
	Pending          int
	Error            int
	ChecksumVerified int
	ChecksumFailed   int
}

// ScanReport assembles the scan view for one transfer.
func (p *Pipeline) ScanReport(ctx context.Context, transferID int64) (ScanReport, error) {
	var report ScanReport
	err := p.db.WithConn(ctx, func(conn *sqlite.Conn) error {
		transfer, err := catalog.TransferByID(conn, transferID)
		if err != nil {
			return err
		}
		files, err := catalog.FilesForTransfer(conn, transferID)
		if err != nil {
			return err
		}
		report = ScanReport{
			TransferID:      transfer.ID,
			Reference:       transfer.Reference,
			Status:          transfer.Status,
			ScanStartedAt:   transfer.ScanStartedAt,
			ScanCompletedAt: transfer.ScanCompletedAt,
			ScanPassed:      transfer.ScanPassed,
			ScanResult:      transfer.ScanResult,
			Files:           tallyFiles(files),
		}
		return nil
	})
	return report, err
}

func tallyFiles(files []catalog.TransferFile) FileTally {
	tally := FileTally{Total: len(files)}
	for _, file := range files {
		switch file.ScanStatus {
		case catalog.ScanClean:
			tally.Clean++
		case catalog.ScanInfected:
			tally.Infected++
		case catalog.ScanPending:
			tally.Pending++
		case catalog.ScanError:
			tally.Error++
		}
		if file.ChecksumVerified != nil {
			if *file.ChecksumVerified {
				tally.ChecksumVerified++
			} else {
				tally.ChecksumFailed++
			}
		}
	}
	return tally
}
