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

package catalog

import (
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ScanStatus is the per-file virus scan outcome.
type ScanStatus string

const (
	ScanPending  ScanStatus = "pending"
	ScanClean    ScanStatus = "clean"
	ScanInfected ScanStatus = "infected"
	ScanError    ScanStatus = "error"
)

// TransferFile is one uploaded file of a transfer. Filename is the basename
// actually stored (sanitized, collision-renamed); OriginalPath is the
// absolute path of the staged copy under the transfer's staging directory.
type TransferFile struct {
	ID               int64
	TransferID       int64
	Filename         string
	OriginalPath     string
	SizeBytes        int64
	ChecksumSHA256   string
	ChecksumVerified *bool
	ScanStatus       ScanStatus
	ScanDetail       string
	UploadedAt       time.Time
}

func scanFile(stmt *sqlite.Stmt) TransferFile {
	return TransferFile{
		ID:               stmt.GetInt64("id"),
		TransferID:       stmt.GetInt64("transfer_id"),
		Filename:         stmt.GetText("filename"),
		OriginalPath:     stmt.GetText("original_path"),
		SizeBytes:        stmt.GetInt64("size_bytes"),
		ChecksumSHA256:   stmt.GetText("checksum_sha256"),
		ChecksumVerified: getBoolPtr(stmt, "checksum_verified"),
		ScanStatus:       ScanStatus(stmt.GetText("virus_scan_status")),
		ScanDetail:       stmt.GetText("virus_scan_detail"),
		UploadedAt:       getTime(stmt, "uploaded_at"),
	}
}

// InsertFile records an uploaded file and fills in its id.
func InsertFile(conn *sqlite.Conn, f *TransferFile) error {
	f.UploadedAt = time.Now().UTC()
	if f.ScanStatus == "" {
		f.ScanStatus = ScanPending
	}
	err := sqlitex.Execute(conn,
		`INSERT INTO transfer_files (transfer_id, filename, original_path,
		                             size_bytes, checksum_sha256, checksum_verified,
		                             virus_scan_status, virus_scan_detail, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				f.TransferID, f.Filename, f.OriginalPath, f.SizeBytes,
				f.ChecksumSHA256, nullableBool(f.ChecksumVerified),
				string(f.ScanStatus), f.ScanDetail, formatTime(f.UploadedAt),
			},
		})
	if err != nil {
		return err
	}
	f.ID = conn.LastInsertRowID()
	return nil
}

// FilesForTransfer lists a transfer's files in upload order.
func FilesForTransfer(conn *sqlite.Conn, transferID int64) ([]TransferFile, error) {
	var files []TransferFile
	err := sqlitex.Execute(conn,
		"SELECT * FROM transfer_files WHERE transfer_id = ? ORDER BY id",
		&sqlitex.ExecOptions{
			Args: []any{transferID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				files = append(files, scanFile(stmt))
				return nil
			},
		})
	return files, err
}

// DeleteFile removes one file row from a transfer. The caller owns removing
// the bytes from staging and re-deriving the transfer's totals.
func DeleteFile(conn *sqlite.Conn, transferID, fileID int64) (TransferFile, error) {
	var file TransferFile
	found := false
	err := sqlitex.Execute(conn,
		"SELECT * FROM transfer_files WHERE id = ? AND transfer_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{fileID, transferID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				file = scanFile(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return TransferFile{}, err
	}
	if !found {
		return TransferFile{}, &NotFoundError{Entity: "file", Key: fileID}
	}
	err = sqlitex.Execute(conn, "DELETE FROM transfer_files WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{fileID}})
	return file, err
}

// SetFileScanResult records a file's virus scan outcome.
func SetFileScanResult(conn *sqlite.Conn, fileID int64, status ScanStatus, detail string) error {
	err := sqlitex.Execute(conn,
		"UPDATE transfer_files SET virus_scan_status = ?, virus_scan_detail = ? WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{string(status), detail, fileID}})
	if err != nil {
		return err
	}
	if conn.Changes() == 0 {
		return &NotFoundError{Entity: "file", Key: fileID}
	}
	return nil
}

// SetFileChecksumVerified records whether a file's stored checksum matched a
// re-hash (during scanning against staging, during verification against
// production).
func SetFileChecksumVerified(conn *sqlite.Conn, fileID int64, verified bool) error {
	err := sqlitex.Execute(conn,
		"UPDATE transfer_files SET checksum_verified = ? WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{boolArg(verified), fileID}})
	if err != nil {
		return err
	}
	if conn.Changes() == 0 {
		return &NotFoundError{Entity: "file", Key: fileID}
	}
	return nil
}
