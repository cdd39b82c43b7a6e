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
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/store"
)

// Priority orders the data team's queue; it never gates a transition.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Categories are the delivery disciplines a transfer can be filed under.
// The column is nullable; "" means uncategorised.
var Categories = []string{
	"vfx_assets", "animation", "textures", "lighting", "compositing",
	"audio", "editorial", "matchmove", "fx", "other",
}

func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Transfer is the aggregate root of the pipeline: one artist delivery moving
// from the staging area to production. Rows are never deleted; terminal
// transfers stay for the audit trail. String fields that map to nullable
// columns use "" for NULL.
type Transfer struct {
	ID                  int64
	Reference           string
	Name                string
	Description         string
	Category            string
	Priority            Priority
	Status              policy.Status
	ArtistID            int64
	StagingPath         string
	ProductionPath      string
	TotalFiles          int64
	TotalSizeBytes      int64
	ScanResult          map[string]any
	ScanPassed          *bool
	ScanStartedAt       *time.Time
	ScanCompletedAt     *time.Time
	TransferStartedAt   *time.Time
	TransferCompletedAt *time.Time
	TransferVerified    *bool
	TransferMethod      string
	RejectionReason     string
	Notes               string
	Tags                []string
	ShotgridProjectID   *int64
	ShotgridProjectName string
	ShotgridEntityType  string
	ShotgridEntityID    *int64
	ShotgridEntityName  string
	ShotgridTaskID      *int64
	ShotgridVersionID   *int64
	SubmittedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SizeDisplay renders the payload size for humans ("1.5 GB").
func (t Transfer) SizeDisplay() string {
	return humanize.Bytes(uint64(t.TotalSizeBytes))
}

func scanTransfer(stmt *sqlite.Stmt) Transfer {
	t := Transfer{
		ID:                  stmt.GetInt64("id"),
		Reference:           stmt.GetText("reference"),
		Name:                stmt.GetText("name"),
		Description:         stmt.GetText("description"),
		Category:            stmt.GetText("category"),
		Priority:            Priority(stmt.GetText("priority")),
		Status:              policy.Status(stmt.GetText("status")),
		ArtistID:            stmt.GetInt64("artist_id"),
		StagingPath:         stmt.GetText("staging_path"),
		ProductionPath:      stmt.GetText("production_path"),
		TotalFiles:          stmt.GetInt64("total_files"),
		TotalSizeBytes:      stmt.GetInt64("total_size_bytes"),
		ScanPassed:          getBoolPtr(stmt, "scan_passed"),
		ScanStartedAt:       getTimePtr(stmt, "scan_started_at"),
		ScanCompletedAt:     getTimePtr(stmt, "scan_completed_at"),
		TransferStartedAt:   getTimePtr(stmt, "transfer_started_at"),
		TransferCompletedAt: getTimePtr(stmt, "transfer_completed_at"),
		TransferVerified:    getBoolPtr(stmt, "transfer_verified"),
		TransferMethod:      stmt.GetText("transfer_method"),
		RejectionReason:     stmt.GetText("rejection_reason"),
		Notes:               stmt.GetText("notes"),
		ShotgridProjectID:   getInt64Ptr(stmt, "shotgrid_project_id"),
		ShotgridProjectName: stmt.GetText("shotgrid_project_name"),
		ShotgridEntityType:  stmt.GetText("shotgrid_entity_type"),
		ShotgridEntityID:    getInt64Ptr(stmt, "shotgrid_entity_id"),
		ShotgridEntityName:  stmt.GetText("shotgrid_entity_name"),
		ShotgridTaskID:      getInt64Ptr(stmt, "shotgrid_task_id"),
		ShotgridVersionID:   getInt64Ptr(stmt, "shotgrid_version_id"),
		SubmittedAt:         getTimePtr(stmt, "submitted_at"),
		CreatedAt:           getTime(stmt, "created_at"),
		UpdatedAt:           getTime(stmt, "updated_at"),
	}
	if raw := stmt.GetText("scan_result"); raw != "" {
		json.Unmarshal([]byte(raw), &t.ScanResult)
	}
	if raw := stmt.GetText("tags"); raw != "" {
		json.Unmarshal([]byte(raw), &t.Tags)
	}
	return t
}

func scanResultArg(result map[string]any) any {
	if result == nil {
		return nil
	}
	raw, _ := json.Marshal(result)
	return string(raw)
}

func tagsArg(tags []string) any {
	if tags == nil {
		tags = []string{}
	}
	raw, _ := json.Marshal(tags)
	return string(raw)
}

// NextReference returns the reference the next transfer will carry. It must
// run inside the same transaction as the insert that uses it, so two
// concurrent creations cannot mint the same number.
func NextReference(conn *sqlite.Conn) (string, error) {
	var count int64
	err := sqlitex.Execute(conn, "SELECT COUNT(*) FROM transfers",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TRF-%05d", count+1), nil
}

// InsertTransfer adds a transfer and fills in its id and timestamps. The
// caller supplies the reference (from NextReference, in the same
// transaction).
func InsertTransfer(conn *sqlite.Conn, t *Transfer) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = policy.StatusUploaded
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	err := sqlitex.Execute(conn,
		`INSERT INTO transfers (
			reference, name, description, category, priority, status, artist_id,
			staging_path, production_path, total_files, total_size_bytes,
			scan_result, scan_passed, scan_started_at, scan_completed_at,
			transfer_started_at, transfer_completed_at, transfer_verified,
			transfer_method, rejection_reason, notes, tags,
			shotgrid_project_id, shotgrid_project_name, shotgrid_entity_type,
			shotgrid_entity_id, shotgrid_entity_name, shotgrid_task_id,
			shotgrid_version_id, submitted_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		         ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				t.Reference, t.Name, t.Description, t.Category, string(t.Priority),
				t.Status.String(), t.ArtistID, t.StagingPath,
				nullableText(t.ProductionPath), t.TotalFiles, t.TotalSizeBytes,
				scanResultArg(t.ScanResult), nullableBool(t.ScanPassed),
				nullableTime(t.ScanStartedAt), nullableTime(t.ScanCompletedAt),
				nullableTime(t.TransferStartedAt), nullableTime(t.TransferCompletedAt),
				nullableBool(t.TransferVerified), t.TransferMethod,
				nullableText(t.RejectionReason), t.Notes, tagsArg(t.Tags),
				nullableInt64(t.ShotgridProjectID), nullableText(t.ShotgridProjectName),
				nullableText(t.ShotgridEntityType), nullableInt64(t.ShotgridEntityID),
				nullableText(t.ShotgridEntityName), nullableInt64(t.ShotgridTaskID),
				nullableInt64(t.ShotgridVersionID), nullableTime(t.SubmittedAt),
				formatTime(now), formatTime(now),
			},
		})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return &ConflictError{Detail: "Reference '" + t.Reference + "' already exists"}
		}
		return err
	}
	t.ID = conn.LastInsertRowID()
	return nil
}

// UpdateTransfer rewrites every mutable column of a transfer. Callers load
// the row, change fields, and write it back inside one transaction.
func UpdateTransfer(conn *sqlite.Conn, t *Transfer) error {
	t.UpdatedAt = time.Now().UTC()
	err := sqlitex.Execute(conn,
		`UPDATE transfers SET
			name = ?, description = ?, category = ?, priority = ?, status = ?,
			staging_path = ?, production_path = ?, total_files = ?,
			total_size_bytes = ?, scan_result = ?, scan_passed = ?,
			scan_started_at = ?, scan_completed_at = ?, transfer_started_at = ?,
			transfer_completed_at = ?, transfer_verified = ?, transfer_method = ?,
			rejection_reason = ?, notes = ?, tags = ?, shotgrid_project_id = ?,
			shotgrid_project_name = ?, shotgrid_entity_type = ?,
			shotgrid_entity_id = ?, shotgrid_entity_name = ?, shotgrid_task_id = ?,
			shotgrid_version_id = ?, submitted_at = ?, updated_at = ?
		 WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				t.Name, t.Description, t.Category, string(t.Priority),
				t.Status.String(), t.StagingPath, nullableText(t.ProductionPath),
				t.TotalFiles, t.TotalSizeBytes, scanResultArg(t.ScanResult),
				nullableBool(t.ScanPassed), nullableTime(t.ScanStartedAt),
				nullableTime(t.ScanCompletedAt), nullableTime(t.TransferStartedAt),
				nullableTime(t.TransferCompletedAt), nullableBool(t.TransferVerified),
				t.TransferMethod, nullableText(t.RejectionReason), t.Notes,
				tagsArg(t.Tags), nullableInt64(t.ShotgridProjectID),
				nullableText(t.ShotgridProjectName), nullableText(t.ShotgridEntityType),
				nullableInt64(t.ShotgridEntityID), nullableText(t.ShotgridEntityName),
				nullableInt64(t.ShotgridTaskID), nullableInt64(t.ShotgridVersionID),
				nullableTime(t.SubmittedAt), formatTime(t.UpdatedAt), t.ID,
			},
		})
	if err != nil {
		return err
	}
	if conn.Changes() == 0 {
		return &NotFoundError{Entity: "transfer", Key: t.ID}
	}
	return nil
}

// TransferByID looks a transfer up by id.
func TransferByID(conn *sqlite.Conn, id int64) (Transfer, error) {
	var transfer Transfer
	found := false
	err := sqlitex.Execute(conn, "SELECT * FROM transfers WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				transfer = scanTransfer(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Transfer{}, err
	}
	if !found {
		return Transfer{}, &NotFoundError{Entity: "transfer", Key: id}
	}
	return transfer, nil
}

// TransferByReference looks a transfer up by its human-readable reference.
func TransferByReference(conn *sqlite.Conn, reference string) (Transfer, error) {
	var transfer Transfer
	found := false
	err := sqlitex.Execute(conn, "SELECT * FROM transfers WHERE reference = ?",
		&sqlitex.ExecOptions{
			Args: []any{reference},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				transfer = scanTransfer(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Transfer{}, err
	}
	if !found {
		return Transfer{}, &NotFoundError{Entity: "transfer", Key: reference}
	}
	return transfer, nil
}

// TransferFilter narrows a listing beyond what visibility already imposes.
type TransferFilter struct {
	Status   policy.Status // zero value means any status
	Category string        // zero value means any category
	Search   string        // case-insensitive match on name or reference
	Limit    int           // zero means no limit
	Offset   int
}

func (f TransferFilter) clause() (string, []any) {
	var query string
	var args []any
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status.String())
	}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.Search != "" {
		query += " AND (name LIKE ? ESCAPE '\\' OR reference LIKE ? ESCAPE '\\')"
		pattern := "%" + escapeLike(f.Search) + "%"
		args = append(args, pattern, pattern)
	}
	return query, args
}

// escapeLike neutralises LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// visibilityClause compiles a Visibility into SQL. An empty visibility
// (nothing granted) compiles to a clause that matches no rows.
func visibilityClause(v policy.Visibility) (string, []any) {
	if v.All {
		return "1 = 1", nil
	}
	var clauses []string
	var args []any
	if v.AllExceptUploaded {
		clauses = append(clauses, "status <> ?")
		args = append(args, policy.StatusUploaded.String())
	}
	if v.OwnArtistID != 0 {
		clauses = append(clauses, "artist_id = ?")
		args = append(args, v.OwnArtistID)
	}
	if len(v.Statuses) > 0 {
		placeholders := make([]string, len(v.Statuses))
		for i, status := range v.Statuses {
			placeholders[i] = "?"
			args = append(args, status.String())
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(clauses) == 0 {
		return "1 = 0", nil
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}

// Transfers lists the transfers a visibility allows, newest first.
func Transfers(conn *sqlite.Conn, v policy.Visibility, filter TransferFilter) ([]Transfer, error) {
	where, args := visibilityClause(v)
	narrow, narrowArgs := filter.clause()
	query := "SELECT * FROM transfers WHERE " + where + narrow + " ORDER BY id DESC"
	args = append(args, narrowArgs...)
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	var transfers []Transfer
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			transfers = append(transfers, scanTransfer(stmt))
			return nil
		},
	})
	return transfers, err
}

// CountTransfers reports how many transfers the visibility and filter
// match, ignoring the filter's paging.
func CountTransfers(conn *sqlite.Conn, v policy.Visibility, filter TransferFilter) (int, error) {
	where, args := visibilityClause(v)
	narrow, narrowArgs := filter.clause()
	args = append(args, narrowArgs...)
	count := 0
	err := sqlitex.Execute(conn, "SELECT COUNT(*) FROM transfers WHERE "+where+narrow,
		&sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	return count, err
}

// StatusCounts tallies the visible transfers by status.
func StatusCounts(conn *sqlite.Conn, v policy.Visibility) (map[policy.Status]int, error) {
	where, args := visibilityClause(v)
	counts := make(map[policy.Status]int)
	err := sqlitex.Execute(conn,
		"SELECT status, COUNT(*) FROM transfers WHERE "+where+" GROUP BY status",
		&sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				counts[policy.Status(stmt.ColumnText(0))] = stmt.ColumnInt(1)
				return nil
			},
		})
	return counts, err
}

// StaleTransfers lists transfers that have sat in a worker-driven status
// without an update since before the cutoff. The maintenance sweep flags
// them for the admins.
func StaleTransfers(conn *sqlite.Conn, cutoff time.Time) ([]Transfer, error) {
	var transfers []Transfer
	err := sqlitex.Execute(conn,
		`SELECT * FROM transfers
		 WHERE status IN (?, ?, ?) AND updated_at < ?
		 ORDER BY id`,
		&sqlitex.ExecOptions{
			Args: []any{
				policy.StatusScanning.String(), policy.StatusTransferring.String(),
				policy.StatusVerifying.String(), formatTime(cutoff),
			},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				transfers = append(transfers, scanTransfer(stmt))
				return nil
			},
		})
	return transfers, err
}
