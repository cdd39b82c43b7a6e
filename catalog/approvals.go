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
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/databridge-io/databridge/policy"
)

// ApprovalStatus is the decision state of one approval stage.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalSkipped  ApprovalStatus = "skipped"
)

// Approval is one stage of a transfer's approval chain. Exactly one row
// exists per (transfer, required role); all five are inserted pending when
// the transfer is created.
type Approval struct {
	ID           int64
	TransferID   int64
	RequiredRole policy.Role
	StageOrder   int
	Status       ApprovalStatus
	ApproverID   *int64
	Comment      string
	DecidedAt    *time.Time
	CreatedAt    time.Time
}

func scanApproval(stmt *sqlite.Stmt) Approval {
	return Approval{
		ID:           stmt.GetInt64("id"),
		TransferID:   stmt.GetInt64("transfer_id"),
		RequiredRole: policy.Role(stmt.GetText("required_role")),
		StageOrder:   int(stmt.GetInt64("stage_order")),
		Status:       ApprovalStatus(stmt.GetText("status")),
		ApproverID:   getInt64Ptr(stmt, "approver_id"),
		Comment:      stmt.GetText("comment"),
		DecidedAt:    getTimePtr(stmt, "decided_at"),
		CreatedAt:    getTime(stmt, "created_at"),
	}
}

// InsertApprovalChain creates the five pending stages for a new transfer, in
// chain order.
func InsertApprovalChain(conn *sqlite.Conn, transferID int64) error {
	now := formatTime(time.Now().UTC())
	for i, role := range policy.ApprovalChain {
		err := sqlitex.Execute(conn,
			`INSERT INTO approvals (transfer_id, required_role, stage_order, status, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{transferID, role.String(), i + 1, string(ApprovalPending), now},
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// ApprovalsForTransfer lists a transfer's approval stages in chain order.
func ApprovalsForTransfer(conn *sqlite.Conn, transferID int64) ([]Approval, error) {
	var approvals []Approval
	err := sqlitex.Execute(conn,
		"SELECT * FROM approvals WHERE transfer_id = ? ORDER BY stage_order",
		&sqlitex.ExecOptions{
			Args: []any{transferID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				approvals = append(approvals, scanApproval(stmt))
				return nil
			},
		})
	return approvals, err
}

// DecideApproval flips one stage of a transfer's chain to the given status.
// The stage must still be pending; deciding a decided stage means two
// actors raced and the loser gets an error. ApproverID is nil for the
// pipeline-decided stages (data team scan, IT verification).
func DecideApproval(conn *sqlite.Conn, transferID int64, role policy.Role,
	status ApprovalStatus, approverID *int64, comment string, when time.Time) error {

	err := sqlitex.Execute(conn,
		`UPDATE approvals SET status = ?, approver_id = ?, comment = ?, decided_at = ?
		 WHERE transfer_id = ? AND required_role = ? AND status = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(status), nullableInt64(approverID), comment, formatTime(when),
				transferID, role.String(), string(ApprovalPending),
			},
		})
	if err != nil {
		return err
	}
	if conn.Changes() == 0 {
		return &ConflictError{
			Detail: fmt.Sprintf("The %s stage of transfer %d has already been decided",
				role, transferID),
		}
	}
	return nil
}

// SkipPendingApprovals marks every still-pending stage of a transfer as
// skipped, recording the admin and comment. It returns how many stages were
// skipped.
func SkipPendingApprovals(conn *sqlite.Conn, transferID, adminID int64,
	comment string, when time.Time) (int, error) {

	err := sqlitex.Execute(conn,
		`UPDATE approvals SET status = ?, approver_id = ?, comment = ?, decided_at = ?
		 WHERE transfer_id = ? AND status = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(ApprovalSkipped), adminID, comment, formatTime(when),
				transferID, string(ApprovalPending),
			},
		})
	if err != nil {
		return 0, err
	}
	return conn.Changes(), nil
}

// PriorApproverIDs lists the distinct users who approved earlier stages of a
// transfer, the audience to warn when a later stage rejects it or to thank
// when it delivers.
func PriorApproverIDs(conn *sqlite.Conn, transferID int64) ([]int64, error) {
	var ids []int64
	err := sqlitex.Execute(conn,
		`SELECT DISTINCT approver_id FROM approvals
		 WHERE transfer_id = ? AND status = ? AND approver_id IS NOT NULL
		 ORDER BY approver_id`,
		&sqlitex.ExecOptions{
			Args: []any{transferID, string(ApprovalApproved)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnInt64(0))
				return nil
			},
		})
	return ids, err
}
