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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/notify"
	"github.com/databridge-io/databridge/policy"
)

// how often the sweeper looks for transfers stuck mid-pipeline
const sweepInterval = time.Hour

// sweepStaleTransfers periodically flags transfers that have sat in an
// in-flight status past the configured threshold and tells the admins.
// Each transfer is reported once per stint of staleness; a transfer that
// recovers and stalls again is reported again.
func (service *bridgeService) sweepStaleTransfers() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	flagged := make(map[int64]bool)
	for {
		select {
		case <-service.sweepStop:
			return
		case <-ticker.C:
			if err := service.sweepOnce(flagged); err != nil {
				slog.Error(fmt.Sprintf("Stale transfer sweep failed: %s", err.Error()))
			}
		}
	}
}

// sweepOnce runs one pass of the sweep: finds the stale set, notifies the
// admins about newly stale transfers, and forgets transfers that moved on.
func (service *bridgeService) sweepOnce(flagged map[int64]bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-time.Duration(config.Service.StaleAfterHours) * time.Hour)
	return service.Pipeline.Store().WithTx(ctx, func(conn *sqlite.Conn) error {
		stale, err := catalog.StaleTransfers(conn, cutoff)
		if err != nil {
			return err
		}

		current := make(map[int64]bool, len(stale))
		fresh := []catalog.Transfer{}
		for _, transfer := range stale {
			current[transfer.ID] = true
			if !flagged[transfer.ID] {
				fresh = append(fresh, transfer)
			}
		}
		for id := range flagged {
			if !current[id] {
				delete(flagged, id)
			}
		}
		if len(fresh) == 0 {
			return nil
		}

		refs := []string{}
		for _, transfer := range fresh {
			slog.Warn(fmt.Sprintf("Transfer %s has been %s since %s",
				transfer.Reference, transfer.Status,
				transfer.UpdatedAt.Format(time.RFC3339)))
			flagged[transfer.ID] = true
			if len(refs) < 10 {
				refs = append(refs, transfer.Reference)
			}
		}

		admins, err := catalog.UsersByRole(conn, policy.RoleAdmin)
		if err != nil {
			return err
		}
		recipients := make([]int64, 0, len(admins))
		for _, admin := range admins {
			recipients = append(recipients, admin.ID)
		}
		message := fmt.Sprintf("%d transfer(s) have been stuck for more than %d hours: %s",
			len(fresh), config.Service.StaleAfterHours, strings.Join(refs, ", "))
		return notify.Fanout(conn, recipients, nil, catalog.NotifySystem,
			"Stale transfers detected", message)
	})
}
