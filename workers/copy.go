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
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/transfers"
)

// runPrepare computes and creates the production directory for a transfer
// whose scans passed, then hands the decision back to the state machine.
// The prepare transition re-checks the file rows itself, so a transfer
// whose files regressed since the scan settles as scan_failed there.
func (w *Workers) runPrepare(ctx context.Context, transferID int64) error {
	transfer, _, err := w.loadTransferFiles(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status != policy.StatusScanPassed {
		return &policy.PreconditionError{
			Detail: fmt.Sprintf("Transfer %s is %s, not scan_passed", transfer.Reference, transfer.Status),
		}
	}

	category := transfer.Category
	if category == "" {
		category = "other"
	}
	productionDir := filepath.Join(config.Paths.ProductionRoot,
		w.projectSlug(ctx, transfer.ShotgridProjectID), category, transfer.Reference)
	if err := os.MkdirAll(productionDir, 0o755); err != nil {
		return fmt.Errorf("creating production directory %s: %w", productionDir, err)
	}

	slog.Info(fmt.Sprintf("Transfer %s prepared, production path %s",
		transfer.Reference, productionDir))

	settled, err := w.pipeline.Apply(ctx, transferID, transfers.Intent{
		Kind:           policy.IntentPrepare,
		ProductionPath: productionDir,
	})
	if err != nil {
		return err
	}
	if settled.Status == policy.StatusScanFailed {
		w.journalOutcome(ctx, settled, nil)
	}
	return nil
}

// projectSlug turns the linked ShotGrid project's name into a directory
// component. Unlinked transfers, and transfers whose project lookup fails,
// deliver under "unlinked".
func (w *Workers) projectSlug(ctx context.Context, projectID *int64) string {
	if projectID == nil || w.studio == nil {
		return "unlinked"
	}
	project, err := w.studio.Project(ctx, *projectID)
	if err != nil || project == nil || project.Name == "" {
		return "unlinked"
	}
	return strings.ToLower(strings.ReplaceAll(project.Name, " ", "_"))
}

// runCopy moves a transferring transfer's staged files to its production
// directory by the configured method and reports copy_done or copy_error.
func (w *Workers) runCopy(ctx context.Context, transferID int64) error {
	transfer, _, err := w.loadTransferFiles(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status != policy.StatusTransferring {
		return &policy.PreconditionError{
			Detail: fmt.Sprintf("Transfer %s is %s, not transferring", transfer.Reference, transfer.Status),
		}
	}
	if transfer.StagingPath == "" || transfer.ProductionPath == "" {
		return w.copyError(ctx, transferID, "Missing staging or production path")
	}

	method := config.Transfer.Method
	if method == "rsync" {
		if detail, failed := runRsync(ctx, transfer.StagingPath, transfer.ProductionPath); failed {
			return w.copyError(ctx, transferID, detail)
		}
	} else {
		if err := streamCopy(transfer.StagingPath, transfer.ProductionPath); err != nil {
			return w.copyError(ctx, transferID, fmt.Sprintf("Stream copy failed: %s", err.Error()))
		}
	}

	slog.Info(fmt.Sprintf("Transfer %s files copied via %s, now verifying",
		transfer.Reference, method))

	_, err = w.pipeline.Apply(ctx, transferID, transfers.Intent{
		Kind:   policy.IntentCopyDone,
		Method: method,
	})
	return err
}

// copyError settles a failed copy as scan_failed, recording the failure
// detail on the history row.
func (w *Workers) copyError(ctx context.Context, transferID int64, detail string) error {
	slog.Error(fmt.Sprintf("Copy for transfer %d failed: %s", transferID, detail))
	settled, err := w.pipeline.Apply(ctx, transferID, transfers.Intent{
		Kind:   policy.IntentCopyError,
		Detail: detail,
	})
	if err != nil {
		return err
	}
	w.journalOutcome(ctx, settled, nil)
	return nil
}

// runRsync shells out to rsync with checksum comparison enabled, under the
// configured wall clock. The trailing slashes make rsync copy directory
// contents rather than the directory itself.
func runRsync(ctx context.Context, staging, production string) (string, bool) {
	src := strings.TrimRight(staging, "/") + "/"
	dst := strings.TrimRight(production, "/") + "/"

	copyCtx, cancel := context.WithTimeout(ctx,
		time.Duration(config.Transfer.TimeoutSeconds)*time.Second)
	defer cancel()

	command := exec.CommandContext(copyCtx, config.Transfer.RsyncPath,
		"-avz", "--checksum", src, dst)
	var stderr bytes.Buffer
	command.Stderr = &stderr
	slog.Info(fmt.Sprintf("Running: %s", strings.Join(command.Args, " ")))
	err := command.Run()

	switch {
	case copyCtx.Err() == context.DeadlineExceeded:
		return fmt.Sprintf("File transfer timed out after %ds", config.Transfer.TimeoutSeconds), true
	case err == nil:
		return "", false
	}

	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return fmt.Sprintf("rsync failed (exit %d): %s",
			exit.ExitCode(), tail(strings.TrimSpace(stderr.String()), 500)), true
	}
	return fmt.Sprintf("rsync failed: %s", err.Error()), true
}

// streamCopy walks the staging tree and copies every regular file under
// production, hashing while copying and carrying each file's mode and
// modification time across.
func streamCopy(staging, production string) error {
	return filepath.WalkDir(staging, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relative, err := filepath.Rel(staging, path)
		if err != nil {
			return err
		}
		target := filepath.Join(production, relative)

		info, err := entry.Info()
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		if _, err := copyFileHashed(path, target, info.Mode()); err != nil {
			return fmt.Errorf("copying %s: %w", relative, err)
		}
		return os.Chtimes(target, info.ModTime(), info.ModTime())
	})
}

// copyFileHashed streams one file into place, returning the SHA-256 of the
// bytes written.
func copyFileHashed(source, target string, mode fs.FileMode) (string, error) {
	in, err := os.Open(source)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	_, err = io.Copy(out, io.TeeReader(in, hasher))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target)
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
