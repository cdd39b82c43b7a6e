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

	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/policy"
)

// Get returns one transfer if the actor's visibility allows seeing it.
// Transfers outside the actor's visibility read as not found.
func (p *Pipeline) Get(ctx context.Context, transferID int64, actor *catalog.User) (catalog.Transfer, error) {
	var transfer catalog.Transfer
	err := p.db.WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		transfer, err = catalog.TransferByID(conn, transferID)
		return err
	})
	if err != nil {
		return catalog.Transfer{}, err
	}
	visibility := policy.VisibilityFor(actor.Role, actor.ID)
	if !visibility.Allows(transfer.ArtistID, transfer.Status) {
		return catalog.Transfer{}, &catalog.NotFoundError{Entity: "transfer", Key: transferID}
	}
	return transfer, nil
}

// ListQuery narrows and pages a transfer listing.
type ListQuery struct {
	Status   policy.Status
	Category string
	Search   string
	Page     int // 1-based; values below 1 read as 1
	PerPage  int // defaults to 20
}

// List returns one page of the transfers the actor may see, newest first,
// along with the total match count for pagination.
func (p *Pipeline) List(ctx context.Context, actor *catalog.User, query ListQuery) ([]catalog.Transfer, int, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	perPage := query.PerPage
	if perPage < 1 {
		perPage = 20
	}
	filter := catalog.TransferFilter{
		Status:   query.Status,
		Category: query.Category,
		Search:   query.Search,
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	}
	visibility := policy.VisibilityFor(actor.Role, actor.ID)

	var listed []catalog.Transfer
	total := 0
	err := p.db.WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		total, err = catalog.CountTransfers(conn, visibility, filter)
		if err != nil {
			return err
		}
		listed, err = catalog.Transfers(conn, visibility, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return listed, total, nil
}

// Stats summarises the transfers the actor may see, bucketed by pipeline
// phase. Pending covers the upload and human review stages; scanning
// covers the scan and its two outcomes.
type Stats struct {
	Total       int
	Pending     int
	Approved    int
	Scanning    int
	Transferred int
	Rejected    int
}

func (p *Pipeline) Stats(ctx context.Context, actor *catalog.User) (Stats, error) {
	var counts map[policy.Status]int
	err := p.db.WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		counts, err = catalog.StatusCounts(conn, policy.VisibilityFor(actor.Role, actor.ID))
		return err
	})
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, n := range counts {
		stats.Total += n
	}
	stats.Pending = counts[policy.StatusUploaded] +
		counts[policy.StatusPendingTeamLead] +
		counts[policy.StatusPendingSupervisor] +
		counts[policy.StatusPendingLineProducer]
	stats.Approved = counts[policy.StatusApproved]
	stats.Scanning = counts[policy.StatusScanning] +
		counts[policy.StatusScanPassed] +
		counts[policy.StatusScanFailed]
	stats.Transferred = counts[policy.StatusTransferred]
	stats.Rejected = counts[policy.StatusRejected]
	return stats, nil
}

// Files lists a transfer's staged files, visibility-gated like Get.
func (p *Pipeline) Files(ctx context.Context, transferID int64, actor *catalog.User) ([]catalog.TransferFile, error) {
	if _, err := p.Get(ctx, transferID, actor); err != nil {
		return nil, err
	}
	var files []catalog.TransferFile
	err := p.db.WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		files, err = catalog.FilesForTransfer(conn, transferID)
		return err
	})
	return files, err
}

// History lists a transfer's audit trail oldest first, visibility-gated
// like Get.
func (p *Pipeline) History(ctx context.Context, transferID int64, actor *catalog.User) ([]catalog.HistoryEntry, error) {
	if _, err := p.Get(ctx, transferID, actor); err != nil {
		return nil, err
	}
	var entries []catalog.HistoryEntry
	err := p.db.WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		entries, err = catalog.HistoryForTransfer(conn, transferID)
		return err
	})
	return entries, err
}
