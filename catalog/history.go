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
	"encoding/json"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// The history actions. Every status transition appends exactly one row with
// one of these; verification_started is the one action recorded without a
// transition (the trigger itself is worth auditing).
const (
	ActionSubmitted        = "submitted"
	ActionApproved         = "approved"
	ActionRejected         = "rejected"
	ActionAdminOverride    = "admin_override"
	ActionCancelled        = "cancelled"
	ActionScanStarted      = "scan_started"
	ActionScanPassed       = "scan_passed"
	ActionScanFailed       = "scan_failed"
	ActionReadyForTransfer = "ready_for_transfer"
	ActionTransferInit     = "transfer_initiated"
	ActionTransferError    = "transfer_error"
	ActionVerifying        = "transfer_verifying"
	ActionVerifyStarted    = "verification_started"
	ActionVerifyFailed     = "verification_failed"
	ActionTransferred      = "transferred"
)

// HistoryEntry is one row of a transfer's append-only audit trail. UserID is
// nil for rows written by the workers. Readers order by ID; created_at is
// for people.
type HistoryEntry struct {
	ID          int64
	TransferID  int64
	UserID      *int64
	Action      string
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}

func scanHistory(stmt *sqlite.Stmt) HistoryEntry {
	entry := HistoryEntry{
		ID:          stmt.GetInt64("id"),
		TransferID:  stmt.GetInt64("transfer_id"),
		UserID:      getInt64Ptr(stmt, "user_id"),
		Action:      stmt.GetText("action"),
		Description: stmt.GetText("description"),
		CreatedAt:   getTime(stmt, "created_at"),
	}
	if raw := stmt.GetText("metadata"); raw != "" {
		json.Unmarshal([]byte(raw), &entry.Metadata)
	}
	return entry
}

// AppendHistory adds a row to a transfer's audit trail and fills in its id.
func AppendHistory(conn *sqlite.Conn, entry *HistoryEntry) error {
	entry.CreatedAt = time.Now().UTC()
	metadata := "{}"
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		metadata = string(raw)
	}
	err := sqlitex.Execute(conn,
		`INSERT INTO transfer_history (transfer_id, user_id, action, description, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				entry.TransferID, nullableInt64(entry.UserID), entry.Action,
				entry.Description, metadata, formatTime(entry.CreatedAt),
			},
		})
	if err != nil {
		return err
	}
	entry.ID = conn.LastInsertRowID()
	return nil
}

// HistoryForTransfer returns a transfer's audit trail in insertion order.
func HistoryForTransfer(conn *sqlite.Conn, transferID int64) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := sqlitex.Execute(conn,
		"SELECT * FROM transfer_history WHERE transfer_id = ? ORDER BY id",
		&sqlitex.ExecOptions{
			Args: []any{transferID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entries = append(entries, scanHistory(stmt))
				return nil
			},
		})
	return entries, err
}
