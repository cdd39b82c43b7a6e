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
	"errors"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/policy"
)

// Submit moves an uploaded transfer into the approval chain.
func (p *Pipeline) Submit(ctx context.Context, transferID int64, actor *catalog.User) (catalog.Transfer, error) {
	return p.Apply(ctx, transferID, Intent{Kind: policy.IntentSubmit, Actor: actor})
}

// Approve records the actor's approval of the current stage and advances
// the transfer to the next one.
func (p *Pipeline) Approve(ctx context.Context, transferID int64, actor *catalog.User,
	comment string) (catalog.Transfer, error) {

	return p.Apply(ctx, transferID, Intent{
		Kind:    policy.IntentApprove,
		Actor:   actor,
		Comment: comment,
	})
}

// Reject records the actor's rejection of the current stage and sends the
// transfer back to its artist.
func (p *Pipeline) Reject(ctx context.Context, transferID int64, actor *catalog.User,
	reason string) (catalog.Transfer, error) {

	return p.Apply(ctx, transferID, Intent{
		Kind:   policy.IntentReject,
		Actor:  actor,
		Reason: reason,
	})
}

// Override force-moves a transfer to the named status, skipping whatever
// approvals are still pending. Admin only.
func (p *Pipeline) Override(ctx context.Context, transferID int64, actor *catalog.User,
	targetStatus, reason string) (catalog.Transfer, error) {

	return p.Apply(ctx, transferID, Intent{
		Kind:   policy.IntentOverride,
		Actor:  actor,
		Target: policy.Status(targetStatus),
		Reason: reason,
	})
}

// Cancel withdraws a transfer that has not yet reached the scanners.
func (p *Pipeline) Cancel(ctx context.Context, transferID int64, actor *catalog.User) (catalog.Transfer, error) {
	return p.Apply(ctx, transferID, Intent{Kind: policy.IntentCancel, Actor: actor})
}

// PendingTransfers lists the transfers waiting on the actor's role, newest
// first. Reviewers see their stage, the data team sees approved and
// scan-passed work, the IT team sees ready-for-transfer work, and admins
// see all three human review stages. Roles with no queue get nothing.
func (p *Pipeline) PendingTransfers(ctx context.Context, actor *catalog.User) ([]catalog.Transfer, error) {
	var pending []catalog.Transfer
	err := p.db.WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		pending, err = catalog.Transfers(conn,
			policy.Visibility{Statuses: policy.PendingFor(actor.Role)},
			catalog.TransferFilter{})
		return err
	})
	return pending, err
}

// PendingCount reports how many transfers are waiting on the actor's role.
func (p *Pipeline) PendingCount(ctx context.Context, actor *catalog.User) (int, error) {
	pending, err := p.PendingTransfers(ctx, actor)
	return len(pending), err
}

// A ChainEntry is one stage of a transfer's approval chain as shown to
// reviewers: the stored decision when the stage has one, a pending
// placeholder when it does not.
type ChainEntry struct {
	Role         policy.Role
	Status       catalog.ApprovalStatus
	ApproverName string
	Comment      string
	DecidedAt    *time.Time
}

// Chain assembles the five-stage approval view for one transfer.
func (p *Pipeline) Chain(ctx context.Context, transferID int64) ([]ChainEntry, error) {
	var chain []ChainEntry
	err := p.db.WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		chain, err = approvalChain(conn, transferID)
		return err
	})
	return chain, err
}

func approvalChain(conn *sqlite.Conn, transferID int64) ([]ChainEntry, error) {
	if _, err := catalog.TransferByID(conn, transferID); err != nil {
		return nil, err
	}
	approvals, err := catalog.ApprovalsForTransfer(conn, transferID)
	if err != nil {
		return nil, err
	}
	byRole := make(map[policy.Role]catalog.Approval, len(approvals))
	for _, approval := range approvals {
		byRole[approval.RequiredRole] = approval
	}

	chain := make([]ChainEntry, 0, len(policy.ApprovalChain))
	for _, role := range policy.ApprovalChain {
		approval, ok := byRole[role]
		if !ok {
			chain = append(chain, ChainEntry{Role: role, Status: catalog.ApprovalPending})
			continue
		}
		entry := ChainEntry{
			Role:      role,
			Status:    approval.Status,
			Comment:   approval.Comment,
			DecidedAt: approval.DecidedAt,
		}
		if approval.ApproverID != nil {
			user, err := catalog.UserByID(conn, *approval.ApproverID)
			switch {
			case err == nil:
				entry.ApproverName = user.DisplayName
			default:
				var missing *catalog.NotFoundError
				if !errors.As(err, &missing) {
					return nil, err
				}
			}
		}
		chain = append(chain, entry)
	}
	return chain, nil
}
