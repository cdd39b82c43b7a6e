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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/policy"
)

// scanTally accumulates the per-file outcomes that become the transfer's
// scan_result summary.
type scanTally struct {
	Total    int
	Clean    int
	Infected int
	Errors   int
	Skipped  int
	Verified int
	Failed   int
	Missing  int
}

func (t scanTally) summary() map[string]any {
	return map[string]any{
		"total":    t.Total,
		"clean":    t.Clean,
		"infected": t.Infected,
		"errors":   t.Errors,
		"skipped":  t.Skipped,
		"verified": t.Verified,
		"failed":   t.Failed,
		"missing":  t.Missing,
	}
}

// runScan virus-scans and checksum-verifies every file of a scanning
// transfer, records the per-file outcomes as it goes, and settles the
// transfer through complete_scan. Infected files, scan errors, and checksum
// mismatches never fail the job; they fail the transfer.
func (w *Workers) runScan(ctx context.Context, transferID int64) error {
	transfer, files, err := w.loadTransferFiles(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status != policy.StatusScanning {
		return &policy.PreconditionError{
			Detail: fmt.Sprintf("Transfer %s is %s, not scanning", transfer.Reference, transfer.Status),
		}
	}

	tally := scanTally{Total: len(files)}
	scanner := newClamScanner()
	for _, file := range files {
		path := filepath.Join(transfer.StagingPath, file.Filename)

		status, detail := scanner.scan(ctx, path)
		switch status {
		case catalog.ScanClean:
			if scanner.degraded() {
				tally.Skipped++
			} else {
				tally.Clean++
			}
		case catalog.ScanInfected:
			tally.Infected++
			slog.Warn(fmt.Sprintf("INFECTED: %s (%s)", file.Filename, detail))
		default:
			tally.Errors++
		}

		verified := w.verifyChecksum(path, file, &tally)

		err = w.pipeline.Store().WithTx(ctx, func(conn *sqlite.Conn) error {
			if err := catalog.SetFileScanResult(conn, file.ID, status, detail); err != nil {
				return err
			}
			return catalog.SetFileChecksumVerified(conn, file.ID, verified)
		})
		if err != nil {
			return err
		}
	}

	slog.Info(fmt.Sprintf("Scan complete for %s: %d clean, %d infected, %d errors, %d skipped",
		transfer.Reference, tally.Clean, tally.Infected, tally.Errors, tally.Skipped))

	settled, err := w.pipeline.CompleteScan(ctx, transferID, nil, tally.summary())
	if err != nil {
		return err
	}
	if settled.Status == policy.StatusScanFailed {
		w.journalOutcome(ctx, settled, nil)
	}
	return nil
}

// verifyChecksum re-hashes one staged file against its upload checksum and
// feeds the tally. A file that vanished between upload and scan counts as
// missing and fails verification.
func (w *Workers) verifyChecksum(path string, file catalog.TransferFile, tally *scanTally) bool {
	if _, err := os.Stat(path); err != nil {
		tally.Missing++
		return false
	}
	computed, err := hashFile(path)
	if err != nil {
		tally.Failed++
		return false
	}
	if file.ChecksumSHA256 != "" && computed == file.ChecksumSHA256 {
		tally.Verified++
		return true
	}
	tally.Failed++
	slog.Warn(fmt.Sprintf("Checksum mismatch for %s: stored=%s computed=%s",
		file.Filename, file.ChecksumSHA256, computed))
	return false
}

// loadTransferFiles reads a transfer and its file rows on one connection.
func (w *Workers) loadTransferFiles(ctx context.Context, transferID int64) (catalog.Transfer, []catalog.TransferFile, error) {
	var transfer catalog.Transfer
	var files []catalog.TransferFile
	err := w.pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		transfer, err = catalog.TransferByID(conn, transferID)
		if err != nil {
			return err
		}
		files, err = catalog.FilesForTransfer(conn, transferID)
		return err
	})
	return transfer, files, err
}

// clamScanner shells out to clamscan, degrading to a recorded skip when the
// scanner is disabled or the binary is not installed.
type clamScanner struct {
	enabled  bool
	path     string
	timeout  time.Duration
	notFound bool
}

func newClamScanner() *clamScanner {
	return &clamScanner{
		enabled: config.Scan.ClamavEnabled,
		path:    config.Scan.ClamscanPath,
		timeout: time.Duration(config.Scan.TimeoutSeconds) * time.Second,
	}
}

// degraded reports whether clean verdicts are skips rather than real scans.
func (s *clamScanner) degraded() bool {
	return !s.enabled || s.notFound
}

// scan runs clamscan on one file. clamscan exits 0 for a clean file and 1
// for an infected one; anything else is an error.
func (s *clamScanner) scan(ctx context.Context, path string) (catalog.ScanStatus, string) {
	if !s.enabled {
		return catalog.ScanClean, "ClamAV disabled: scan skipped"
	}
	if s.notFound {
		return catalog.ScanClean, "clamscan not installed: scan skipped"
	}
	if _, err := os.Stat(path); err != nil {
		return catalog.ScanError, "File not found on disk"
	}

	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	command := exec.CommandContext(scanCtx, s.path, "--no-summary", path)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	err := command.Run()

	switch {
	case scanCtx.Err() == context.DeadlineExceeded:
		return catalog.ScanError, fmt.Sprintf("Scan timed out after %ds", config.Scan.TimeoutSeconds)
	case err == nil:
		return catalog.ScanClean, "No threats detected"
	case errors.Is(err, exec.ErrNotFound):
		s.notFound = true
		slog.Error("clamscan binary not found; marking remaining files as skipped")
		return catalog.ScanClean, "clamscan not installed: scan skipped"
	}

	var exit *exec.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 1 {
		return catalog.ScanInfected, firstLine(strings.TrimSpace(stdout.String()))
	}
	detail := strings.TrimSpace(stderr.String())
	if detail == "" {
		detail = err.Error()
	}
	return catalog.ScanError, tail(detail, 500)
}
