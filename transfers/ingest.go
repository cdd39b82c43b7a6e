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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/policy"
)

// uploadChunkSize is the buffer used when streaming uploads to staging.
const uploadChunkSize = 1 << 20

// CreateParams carries the artist-supplied fields of a new transfer.
type CreateParams struct {
	Name               string
	Category           string
	Priority           catalog.Priority
	Notes              string
	ShotgridProjectID  *int64
	ShotgridEntityType string
	ShotgridEntityID   *int64
}

// Create registers a new transfer in uploaded status, assigning the next
// reference and inserting the five-stage pending approval chain in the
// same transaction.
func (p *Pipeline) Create(ctx context.Context, actor *catalog.User, params CreateParams) (catalog.Transfer, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return catalog.Transfer{}, ValidationError{Detail: "Transfer name is required"}
	}
	if params.Category != "" && !catalog.ValidCategory(params.Category) {
		return catalog.Transfer{}, ValidationError{
			Detail: fmt.Sprintf("Invalid category: '%s'", params.Category),
		}
	}
	priority := params.Priority
	if priority == "" {
		priority = catalog.PriorityNormal
	}
	if !priority.Valid() {
		return catalog.Transfer{}, ValidationError{
			Detail: fmt.Sprintf("Invalid priority: '%s'", priority),
		}
	}

	transfer := catalog.Transfer{
		Name:               name,
		Category:           params.Category,
		Priority:           priority,
		Status:             policy.StatusUploaded,
		ArtistID:           actor.ID,
		Notes:              params.Notes,
		ShotgridProjectID:  params.ShotgridProjectID,
		ShotgridEntityType: params.ShotgridEntityType,
		ShotgridEntityID:   params.ShotgridEntityID,
	}
	err := p.db.WithTx(ctx, func(conn *sqlite.Conn) error {
		reference, err := catalog.NextReference(conn)
		if err != nil {
			return err
		}
		transfer.Reference = reference
		if err := catalog.InsertTransfer(conn, &transfer); err != nil {
			return err
		}
		return catalog.InsertApprovalChain(conn, transfer.ID)
	})
	if err != nil {
		return catalog.Transfer{}, err
	}
	slog.Info(fmt.Sprintf("Transfer %s created by %s", transfer.Reference, actor.Username))
	return transfer, nil
}

// Upload streams one file into the transfer's staging directory,
// checksumming as it writes. The returned record carries the basename
// actually stored, after sanitising and collision renaming. Files can only
// be added while the transfer is editable (uploaded or rejected).
func (p *Pipeline) Upload(ctx context.Context, transferID int64, actor *catalog.User,
	filename string, content io.Reader) (catalog.TransferFile, error) {

	var transfer catalog.Transfer
	err := p.db.WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		transfer, err = catalog.TransferByID(conn, transferID)
		return err
	})
	if err != nil {
		return catalog.TransferFile{}, err
	}
	if transfer.ArtistID != actor.ID && actor.Role != policy.RoleAdmin {
		return catalog.TransferFile{}, &policy.AuthZError{
			Detail: "Only the transfer owner can upload files",
		}
	}
	if !editable(transfer.Status) {
		return catalog.TransferFile{}, &policy.PreconditionError{
			Detail: fmt.Sprintf("Cannot upload files when transfer status is '%s'", transfer.Status),
		}
	}

	stagingDir := filepath.Join(config.Paths.StagingRoot, transfer.Reference)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return catalog.TransferFile{}, err
	}
	destPath, err := collisionFreePath(stagingDir, sanitizeFilename(filename))
	if err != nil {
		return catalog.TransferFile{}, err
	}

	checksum, written, err := saveChecksummed(destPath, content)
	if err != nil {
		os.Remove(destPath)
		return catalog.TransferFile{}, err
	}

	// The cap is enforced after the write because multipart streams do
	// not declare their length up front.
	file := catalog.TransferFile{
		TransferID:     transfer.ID,
		Filename:       filepath.Base(destPath),
		OriginalPath:   destPath,
		SizeBytes:      written,
		ChecksumSHA256: checksum,
	}
	err = p.db.WithTx(ctx, func(conn *sqlite.Conn) error {
		current, err := catalog.TransferByID(conn, transferID)
		if err != nil {
			return err
		}
		if !editable(current.Status) {
			return &policy.PreconditionError{
				Detail: fmt.Sprintf("Cannot upload files when transfer status is '%s'", current.Status),
			}
		}
		maxBytes := int64(config.Transfer.MaxUploadSizeGB * float64(1<<30))
		if current.TotalSizeBytes+written > maxBytes {
			return TooLargeError{LimitGB: config.Transfer.MaxUploadSizeGB}
		}
		if err := catalog.InsertFile(conn, &file); err != nil {
			return err
		}
		current.TotalFiles++
		current.TotalSizeBytes += written
		current.StagingPath = stagingDir
		return catalog.UpdateTransfer(conn, &current)
	})
	if err != nil {
		os.Remove(destPath)
		return catalog.TransferFile{}, err
	}

	slog.Info(fmt.Sprintf("Uploaded %s (%d bytes, sha256=%s) to %s",
		file.Filename, written, checksum[:12], transfer.Reference))
	return file, nil
}

// DeleteFile removes one staged file from an editable transfer, re-deriving
// the transfer's totals. The bytes leave the staging directory only after
// the row deletion has committed.
func (p *Pipeline) DeleteFile(ctx context.Context, transferID, fileID int64, actor *catalog.User) error {
	var removed catalog.TransferFile
	err := p.db.WithTx(ctx, func(conn *sqlite.Conn) error {
		transfer, err := catalog.TransferByID(conn, transferID)
		if err != nil {
			return err
		}
		if transfer.ArtistID != actor.ID && actor.Role != policy.RoleAdmin {
			return &policy.AuthZError{Detail: "Only the transfer owner or admin can delete files"}
		}
		if !editable(transfer.Status) {
			return &policy.PreconditionError{
				Detail: "Cannot delete files after approval process has started",
			}
		}
		removed, err = catalog.DeleteFile(conn, transferID, fileID)
		if err != nil {
			return err
		}
		transfer.TotalFiles--
		if transfer.TotalFiles < 0 {
			transfer.TotalFiles = 0
		}
		transfer.TotalSizeBytes -= removed.SizeBytes
		if transfer.TotalSizeBytes < 0 {
			transfer.TotalSizeBytes = 0
		}
		return catalog.UpdateTransfer(conn, &transfer)
	})
	if err != nil {
		return err
	}

	if removed.OriginalPath != "" {
		if err := os.Remove(removed.OriginalPath); err == nil {
			slog.Info(fmt.Sprintf("Deleted file from disk: %s", removed.OriginalPath))
		} else if !errors.Is(err, os.ErrNotExist) {
			slog.Warn(fmt.Sprintf("Removing %s from staging failed: %s",
				removed.OriginalPath, err.Error()))
		}
	}
	return nil
}

// UpdateParams carries the fields an artist may change while a transfer is
// editable. Nil pointers leave the stored value alone; Tags nil leaves the
// tags alone while an empty non-nil slice clears them.
type UpdateParams struct {
	Name     *string
	Notes    *string
	Priority *catalog.Priority
	Tags     []string
}

// Update edits a transfer that has not yet entered review.
func (p *Pipeline) Update(ctx context.Context, transferID int64, actor *catalog.User,
	params UpdateParams) (catalog.Transfer, error) {

	var transfer catalog.Transfer
	err := p.db.WithTx(ctx, func(conn *sqlite.Conn) error {
		var err error
		transfer, err = catalog.TransferByID(conn, transferID)
		if err != nil {
			return err
		}
		if transfer.ArtistID != actor.ID && actor.Role != policy.RoleAdmin {
			return &policy.AuthZError{Detail: "Only the transfer owner or admin can update transfers"}
		}
		if !editable(transfer.Status) {
			return &policy.PreconditionError{
				Detail: fmt.Sprintf("Cannot update transfer in status '%s'", transfer.Status),
			}
		}
		if params.Name != nil {
			name := strings.TrimSpace(*params.Name)
			if name == "" {
				return ValidationError{Detail: "Transfer name is required"}
			}
			transfer.Name = name
		}
		if params.Notes != nil {
			transfer.Notes = *params.Notes
		}
		if params.Priority != nil {
			if !params.Priority.Valid() {
				return ValidationError{
					Detail: fmt.Sprintf("Invalid priority: '%s'", *params.Priority),
				}
			}
			transfer.Priority = *params.Priority
		}
		if params.Tags != nil {
			transfer.Tags = params.Tags
		}
		return catalog.UpdateTransfer(conn, &transfer)
	})
	if err != nil {
		return catalog.Transfer{}, err
	}
	return transfer, nil
}

// LinkParams carries the ShotGrid coordinates stored on a linked transfer.
// The names are denormalised copies the caller resolves against ShotGrid
// before linking.
type LinkParams struct {
	ProjectID   int64
	ProjectName string
	EntityType  string
	EntityID    int64
	EntityName  string
	TaskID      *int64
}

// Link records a ShotGrid project and entity on a transfer that has not yet
// entered review. A bare project link (no entity) is allowed.
func (p *Pipeline) Link(ctx context.Context, transferID int64, actor *catalog.User,
	params LinkParams) (catalog.Transfer, error) {

	if params.ProjectID <= 0 {
		return catalog.Transfer{}, ValidationError{Detail: "A ShotGrid project id is required"}
	}
	if params.EntityID != 0 && params.EntityType == "" {
		return catalog.Transfer{}, ValidationError{Detail: "A linked entity needs an entity type"}
	}
	var transfer catalog.Transfer
	err := p.db.WithTx(ctx, func(conn *sqlite.Conn) error {
		var err error
		transfer, err = catalog.TransferByID(conn, transferID)
		if err != nil {
			return err
		}
		if transfer.ArtistID != actor.ID && actor.Role != policy.RoleAdmin {
			return &policy.AuthZError{Detail: "Only the transfer owner or admin can link transfers"}
		}
		if !editable(transfer.Status) {
			return &policy.PreconditionError{
				Detail: fmt.Sprintf("Cannot link transfer in status '%s'", transfer.Status),
			}
		}
		transfer.ShotgridProjectID = &params.ProjectID
		transfer.ShotgridProjectName = params.ProjectName
		transfer.ShotgridEntityType = params.EntityType
		if params.EntityID != 0 {
			transfer.ShotgridEntityID = &params.EntityID
		} else {
			transfer.ShotgridEntityID = nil
			transfer.ShotgridEntityType = ""
		}
		transfer.ShotgridEntityName = params.EntityName
		transfer.ShotgridTaskID = params.TaskID
		return catalog.UpdateTransfer(conn, &transfer)
	})
	if err != nil {
		return catalog.Transfer{}, err
	}
	slog.Info(fmt.Sprintf("Transfer %s linked to ShotGrid project %d by %s",
		transfer.Reference, params.ProjectID, actor.Username))
	return transfer, nil
}

// editable reports whether a transfer still belongs to its artist: files
// and fields can change only before submission or after a rejection.
func editable(status policy.Status) bool {
	return status == policy.StatusUploaded || status == policy.StatusRejected
}

// sanitizeFilename strips path separators from a client-supplied filename.
func sanitizeFilename(filename string) string {
	if filename == "" {
		filename = "unnamed_file"
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(filename)
}

// collisionFreePath appends _1, _2, ... to the stem until the name is free
// in the staging directory.
func collisionFreePath(dir, filename string) (string, error) {
	dest := filepath.Join(dir, filename)
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for counter := 1; ; counter++ {
		_, err := os.Stat(dest)
		if errors.Is(err, os.ErrNotExist) {
			return dest, nil
		}
		if err != nil {
			return "", err
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}
}

// saveChecksummed streams content to path, returning the SHA-256 hex digest
// and the byte count.
func saveChecksummed(path string, content io.Reader) (string, int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	hasher := sha256.New()
	written, err := io.CopyBuffer(io.MultiWriter(out, hasher), content, make([]byte, uploadChunkSize))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), written, nil
}
