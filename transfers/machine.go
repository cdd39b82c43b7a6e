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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/notify"
	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/tasks"
)

// Apply moves one transfer along the state machine. The whole transition
// runs in a single write transaction: the status read, the policy check,
// the row flips, the history entry, the notification fanout, and the
// follow-up queue messages all commit or roll back together. The owning
// dispatchers are nudged after the commit.
func (p *Pipeline) Apply(ctx context.Context, transferID int64, intent Intent) (catalog.Transfer, error) {
	var transfer catalog.Transfer
	var followups []tasks.Message
	err := p.db.WithTx(ctx, func(conn *sqlite.Conn) error {
		var err error
		transfer, followups, err = applyIntent(conn, transferID, intent)
		return err
	})
	if err != nil {
		return catalog.Transfer{}, err
	}
	p.wake(followups)
	return transfer, nil
}

// TriggerVerification re-dispatches the verification job for a transfer
// whose files were moved by hand. It appends an audit row but changes no
// state; the verify worker decides the outcome.
func (p *Pipeline) TriggerVerification(ctx context.Context, transferID int64,
	actor *catalog.User) (catalog.Transfer, error) {

	if actor.Role != policy.RoleITTeam && actor.Role != policy.RoleAdmin {
		return catalog.Transfer{}, &policy.AuthZError{
			Detail: "Only it_team or admin can complete transfers",
		}
	}
	var transfer catalog.Transfer
	err := p.db.WithTx(ctx, func(conn *sqlite.Conn) error {
		var err error
		transfer, err = catalog.TransferByID(conn, transferID)
		if err != nil {
			return err
		}
		err = catalog.AppendHistory(conn, &catalog.HistoryEntry{
			TransferID:  transfer.ID,
			UserID:      &actor.ID,
			Action:      catalog.ActionVerifyStarted,
			Description: fmt.Sprintf("Transfer verification triggered by %s", actor.DisplayName),
		})
		if err != nil {
			return err
		}
		_, err = tasks.Enqueue(conn, verifyJob(transfer.ID))
		return err
	})
	if err != nil {
		return catalog.Transfer{}, err
	}
	if err := p.queues.Wake(tasks.QueueTransfer); err != nil {
		slog.Warn(fmt.Sprintf("Waking queue %s failed: %s", tasks.QueueTransfer, err.Error()))
	}
	return transfer, nil
}

// applyIntent performs one transition on an open write transaction and
// returns the follow-up queue messages the caller enqueues after commit.
func applyIntent(conn *sqlite.Conn, transferID int64, intent Intent) (catalog.Transfer, []tasks.Message, error) {
	transfer, err := catalog.TransferByID(conn, transferID)
	if err != nil {
		return catalog.Transfer{}, nil, err
	}

	rule, err := policy.Lookup(transfer.Status, intent.Kind, intent.role())
	if err != nil {
		return catalog.Transfer{}, nil, err
	}
	if err := checkOwnership(transfer, intent); err != nil {
		return catalog.Transfer{}, nil, err
	}

	now := time.Now().UTC()
	var followups []tasks.Message
	switch intent.Kind {
	case policy.IntentSubmit:
		err = applySubmit(conn, &transfer, intent, rule, now)
	case policy.IntentApprove:
		err = applyApprove(conn, &transfer, intent, rule, now)
	case policy.IntentReject:
		err = applyReject(conn, &transfer, intent, now)
	case policy.IntentOverride:
		err = applyOverride(conn, &transfer, intent, now)
	case policy.IntentCancel:
		err = applyCancel(conn, &transfer, intent)
	case policy.IntentStartScan:
		followups, err = applyStartScan(conn, &transfer, intent, rule, now)
	case policy.IntentCompleteScan:
		followups, err = applyCompleteScan(conn, &transfer, intent, now)
	case policy.IntentPrepare:
		err = applyPrepare(conn, &transfer, intent)
	case policy.IntentExecute:
		followups, err = applyExecute(conn, &transfer, intent, rule, now)
	case policy.IntentCopyDone:
		followups, err = applyCopyDone(conn, &transfer, intent, rule)
	case policy.IntentCopyError:
		err = applyCopyError(conn, &transfer, intent, rule)
	case policy.IntentVerifyOK:
		followups, err = applyVerifyOK(conn, &transfer, intent, rule, now)
	case policy.IntentVerifyFailed:
		err = applyVerifyFailed(conn, &transfer, intent, rule, now)
	default:
		err = &policy.InvalidIntentError{Kind: intent.Kind.String()}
	}
	if err != nil {
		return catalog.Transfer{}, nil, err
	}

	if err := catalog.UpdateTransfer(conn, &transfer); err != nil {
		return catalog.Transfer{}, nil, err
	}
	for _, message := range followups {
		if _, err := tasks.Enqueue(conn, message); err != nil {
			return catalog.Transfer{}, nil, err
		}
	}
	return transfer, followups, nil
}

// checkOwnership adds the owner-or-admin requirement that submit and
// cancel carry on top of the role table.
func checkOwnership(transfer catalog.Transfer, intent Intent) error {
	if intent.Kind != policy.IntentSubmit && intent.Kind != policy.IntentCancel {
		return nil
	}
	actor := intent.Actor
	if actor != nil && (actor.Role == policy.RoleAdmin || actor.ID == transfer.ArtistID) {
		return nil
	}
	if intent.Kind == policy.IntentSubmit {
		return &policy.AuthZError{Detail: "Only the transfer owner or admin can submit transfers"}
	}
	return &policy.AuthZError{Detail: "Only the transfer owner or admin can cancel transfers"}
}

func applySubmit(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	rule policy.Rule, now time.Time) error {

	files, err := catalog.FilesForTransfer(conn, transfer.ID)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return ValidationError{Detail: "Cannot submit a transfer with no files"}
	}

	from := transfer.Status
	transfer.Status = rule.To
	transfer.SubmittedAt = &now

	err = appendHistory(conn, transfer, intent, catalog.ActionSubmitted,
		fmt.Sprintf("Transfer submitted for approval by %s", intent.Actor.DisplayName),
		map[string]any{"old_status": from.String(), "new_status": rule.To.String()})
	if err != nil {
		return err
	}

	reviewers, err := roleRecipients(conn, policy.RoleTeamLead)
	if err != nil {
		return err
	}
	return notify.Fanout(conn, reviewers, &transfer.ID, catalog.NotifyApprovalRequired,
		fmt.Sprintf("Approval needed: %s", transfer.Reference),
		fmt.Sprintf("Transfer '%s' has been submitted and now requires your review.",
			transfer.Name))
}

func applyApprove(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	rule policy.Rule, now time.Time) error {

	stage, _ := policy.StageRole(transfer.Status)
	err := catalog.DecideApproval(conn, transfer.ID, stage, catalog.ApprovalApproved,
		intent.actorID(), intent.Comment, now)
	if err != nil {
		var conflict *catalog.ConflictError
		if errors.As(err, &conflict) {
			return &policy.PreconditionError{
				Detail: "No pending approval record found for this stage",
			}
		}
		return err
	}

	from := transfer.Status
	transfer.Status = rule.To

	err = appendHistory(conn, transfer, intent, catalog.ActionApproved,
		fmt.Sprintf("%s approved by %s", stage.Label(), intent.Actor.DisplayName),
		map[string]any{
			"old_status": from.String(),
			"new_status": rule.To.String(),
			"approver":   intent.Actor.Username,
			"comment":    intent.Comment,
		})
	if err != nil {
		return err
	}

	reviewers, err := roleRecipients(conn, nextReviewer(stage))
	if err != nil {
		return err
	}
	return notify.Fanout(conn, reviewers, &transfer.ID, catalog.NotifyApprovalRequired,
		fmt.Sprintf("Approval needed: %s", transfer.Reference),
		fmt.Sprintf("Transfer '%s' has been approved at %s and now requires your review.",
			transfer.Name, stage.Label()))
}

func applyReject(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	now time.Time) error {

	stage, _ := policy.StageRole(transfer.Status)
	err := catalog.DecideApproval(conn, transfer.ID, stage, catalog.ApprovalRejected,
		intent.actorID(), intent.Reason, now)
	if err != nil {
		var conflict *catalog.ConflictError
		if errors.As(err, &conflict) {
			return &policy.PreconditionError{
				Detail: "No pending approval record found for this stage",
			}
		}
		return err
	}

	from := transfer.Status
	transfer.Status = policy.StatusRejected
	transfer.RejectionReason = intent.Reason

	err = appendHistory(conn, transfer, intent, catalog.ActionRejected,
		fmt.Sprintf("Rejected at %s by %s: %s",
			stage.Label(), intent.Actor.DisplayName, intent.Reason),
		map[string]any{
			"old_status": from.String(),
			"new_status": policy.StatusRejected.String(),
			"rejector":   intent.Actor.Username,
			"reason":     intent.Reason,
		})
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Transfer rejected: %s", transfer.Reference)
	err = notify.Fanout(conn, []int64{transfer.ArtistID}, &transfer.ID, catalog.NotifyRejected,
		title, fmt.Sprintf("Your transfer '%s' was rejected at %s. Reason: %s",
			transfer.Name, stage.Label(), intent.Reason))
	if err != nil {
		return err
	}

	// everyone who approved an earlier stage hears about the rejection too
	approvers, err := catalog.PriorApproverIDs(conn, transfer.ID)
	if err != nil {
		return err
	}
	recipients := approvers[:0:0]
	for _, id := range approvers {
		if id != transfer.ArtistID {
			recipients = append(recipients, id)
		}
	}
	return notify.Fanout(conn, recipients, &transfer.ID, catalog.NotifyRejected, title,
		fmt.Sprintf("Transfer '%s' (which you previously approved) was rejected at %s. Reason: %s",
			transfer.Name, stage.Label(), intent.Reason))
}

func applyOverride(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	now time.Time) error {

	if !intent.Target.Valid() {
		return ValidationError{Detail: fmt.Sprintf("Invalid target status: %s", intent.Target)}
	}

	_, err := catalog.SkipPendingApprovals(conn, transfer.ID, intent.Actor.ID,
		fmt.Sprintf("Skipped by admin override: %s", intent.Reason), now)
	if err != nil {
		return err
	}

	from := transfer.Status
	transfer.Status = intent.Target

	err = appendHistory(conn, transfer, intent, catalog.ActionAdminOverride,
		fmt.Sprintf("Admin %s forced status %s -> %s: %s",
			intent.Actor.DisplayName, from, intent.Target, intent.Reason),
		map[string]any{
			"old_status": from.String(),
			"new_status": intent.Target.String(),
			"admin":      intent.Actor.Username,
			"reason":     intent.Reason,
		})
	if err != nil {
		return err
	}

	return notify.Fanout(conn, []int64{transfer.ArtistID}, &transfer.ID, catalog.NotifySystem,
		fmt.Sprintf("Admin override: %s", transfer.Reference),
		fmt.Sprintf("Transfer status changed to '%s' by admin. Reason: %s",
			intent.Target, intent.Reason))
}

func applyCancel(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent) error {
	from := transfer.Status
	transfer.Status = policy.StatusCancelled

	return appendHistory(conn, transfer, intent, catalog.ActionCancelled,
		fmt.Sprintf("Transfer cancelled by %s", intent.Actor.DisplayName),
		map[string]any{
			"old_status": from.String(),
			"new_status": policy.StatusCancelled.String(),
		})
}

func applyStartScan(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	rule policy.Rule, now time.Time) ([]tasks.Message, error) {

	transfer.Status = rule.To
	transfer.ScanStartedAt = &now

	err := appendHistory(conn, transfer, intent, catalog.ActionScanStarted,
		fmt.Sprintf("Scanning started by %s", intent.Actor.DisplayName), nil)
	if err != nil {
		return nil, err
	}
	return []tasks.Message{scanJob(transfer.ID)}, nil
}

func applyCompleteScan(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	now time.Time) ([]tasks.Message, error) {

	files, err := catalog.FilesForTransfer(conn, transfer.ID)
	if err != nil {
		return nil, err
	}
	infected, scanErrors, checksumFailures := 0, 0, 0
	for _, file := range files {
		switch file.ScanStatus {
		case catalog.ScanInfected:
			infected++
		case catalog.ScanError:
			scanErrors++
		}
		if file.ChecksumVerified != nil && !*file.ChecksumVerified {
			checksumFailures++
		}
	}
	passed := infected == 0 && scanErrors == 0 && checksumFailures == 0

	if intent.ScanSummary != nil {
		transfer.ScanResult = intent.ScanSummary
	}
	transfer.ScanCompletedAt = &now
	transfer.ScanPassed = &passed

	if passed {
		transfer.Status = policy.StatusScanPassed
		err = appendHistory(conn, transfer, intent, catalog.ActionScanPassed,
			fmt.Sprintf("All %d files passed scanning", len(files)), nil)
		if err != nil {
			return nil, err
		}
		if err := flipStage(conn, transfer.ID, policy.RoleDataTeam, now); err != nil {
			return nil, err
		}
		return []tasks.Message{prepareJob(transfer.ID)}, nil
	}

	transfer.Status = policy.StatusScanFailed
	parts := strings.Join(scanFailureParts(infected, checksumFailures, scanErrors), ", ")
	err = appendHistory(conn, transfer, intent, catalog.ActionScanFailed,
		fmt.Sprintf("Scan failed: %s", parts), nil)
	if err != nil {
		return nil, err
	}
	err = notify.Fanout(conn, []int64{transfer.ArtistID}, &transfer.ID, catalog.NotifyScanFailed,
		fmt.Sprintf("Scan failed: %s", transfer.Reference),
		fmt.Sprintf("Your transfer failed scanning: %s", parts))
	return nil, err
}

func applyPrepare(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent) error {
	files, err := catalog.FilesForTransfer(conn, transfer.ID)
	if err != nil {
		return err
	}
	for _, file := range files {
		if file.ScanStatus == catalog.ScanClean &&
			(file.ChecksumVerified == nil || *file.ChecksumVerified) {
			continue
		}
		passed := false
		transfer.Status = policy.StatusScanFailed
		transfer.ScanPassed = &passed
		return appendHistory(conn, transfer, intent, catalog.ActionScanFailed,
			"Pre-transfer verification failed: files did not pass scan", nil)
	}

	transfer.Status = policy.StatusReadyForTransfer
	transfer.ProductionPath = intent.ProductionPath

	err = appendHistory(conn, transfer, intent, catalog.ActionReadyForTransfer,
		fmt.Sprintf("Scans passed. Production path: %s", intent.ProductionPath), nil)
	if err != nil {
		return err
	}

	operators, err := roleRecipients(conn, policy.RoleITTeam)
	if err != nil {
		return err
	}
	return notify.Fanout(conn, operators, &transfer.ID, catalog.NotifyTransferStarted,
		fmt.Sprintf("Ready for transfer: %s", transfer.Reference),
		fmt.Sprintf("Transfer '%s' is ready for file transfer to production.", transfer.Name))
}

func applyExecute(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	rule policy.Rule, now time.Time) ([]tasks.Message, error) {

	transfer.Status = rule.To
	transfer.TransferStartedAt = &now
	transfer.TransferMethod = config.Transfer.Method

	err := appendHistory(conn, transfer, intent, catalog.ActionTransferInit,
		fmt.Sprintf("File transfer initiated by %s", intent.Actor.DisplayName), nil)
	if err != nil {
		return nil, err
	}
	return []tasks.Message{copyJob(transfer.ID)}, nil
}

func applyCopyDone(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	rule policy.Rule) ([]tasks.Message, error) {

	transfer.Status = rule.To
	method := intent.Method
	if method == "" {
		method = transfer.TransferMethod
	}
	transfer.TransferMethod = method

	err := appendHistory(conn, transfer, intent, catalog.ActionVerifying,
		fmt.Sprintf("Files transferred via %s, now verifying", method), nil)
	if err != nil {
		return nil, err
	}
	return []tasks.Message{verifyJob(transfer.ID)}, nil
}

func applyCopyError(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	rule policy.Rule) error {

	transfer.Status = rule.To
	return appendHistory(conn, transfer, intent, catalog.ActionTransferError,
		intent.Detail, nil)
}

func applyVerifyOK(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	rule policy.Rule, now time.Time) ([]tasks.Message, error) {

	files, err := catalog.FilesForTransfer(conn, transfer.ID)
	if err != nil {
		return nil, err
	}

	verified := true
	transfer.Status = rule.To
	transfer.TransferVerified = &verified
	transfer.TransferCompletedAt = &now

	err = appendHistory(conn, transfer, intent, catalog.ActionTransferred,
		fmt.Sprintf("All %d files verified and delivered to production", len(files)), nil)
	if err != nil {
		return nil, err
	}
	if err := flipStage(conn, transfer.ID, policy.RoleITTeam, now); err != nil {
		return nil, err
	}

	// the artist, everyone who approved, and both operating teams hear
	// about the delivery
	recipients := []int64{transfer.ArtistID}
	approvers, err := catalog.PriorApproverIDs(conn, transfer.ID)
	if err != nil {
		return nil, err
	}
	recipients = append(recipients, approvers...)
	teams, err := roleRecipients(conn, policy.RoleDataTeam, policy.RoleITTeam)
	if err != nil {
		return nil, err
	}
	recipients = append(recipients, teams...)

	err = notify.Fanout(conn, recipients, &transfer.ID, catalog.NotifyTransferComplete,
		fmt.Sprintf("Transfer complete: %s", transfer.Reference),
		fmt.Sprintf("Transfer '%s' (%s) has been successfully delivered to production. %d files verified.",
			transfer.Name, transfer.Reference, len(files)))
	if err != nil {
		return nil, err
	}
	return []tasks.Message{deliveryJob(transfer.ID)}, nil
}

func applyVerifyFailed(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	rule policy.Rule, now time.Time) error {

	verified := false
	transfer.Status = rule.To
	transfer.TransferVerified = &verified
	transfer.TransferCompletedAt = &now

	first := intent.Mismatched
	if len(first) > 5 {
		first = first[:5]
	}
	err := appendHistory(conn, transfer, intent, catalog.ActionVerifyFailed,
		fmt.Sprintf("Checksum mismatch for %d file(s): %s",
			len(intent.Mismatched), strings.Join(first, ", ")),
		map[string]any{"mismatched_files": intent.Mismatched})
	if err != nil {
		return err
	}

	teams, err := roleRecipients(conn, policy.RoleDataTeam, policy.RoleITTeam)
	if err != nil {
		return err
	}
	return notify.Fanout(conn, teams, &transfer.ID, catalog.NotifyTransferFailed,
		fmt.Sprintf("Verification failed: %s", transfer.Reference),
		fmt.Sprintf("Transfer '%s' (%s) failed verification: %d mismatched file(s).",
			transfer.Name, transfer.Reference, len(intent.Mismatched)))
}

// appendHistory writes one audit row for the transition being applied.
func appendHistory(conn *sqlite.Conn, transfer *catalog.Transfer, intent Intent,
	action, description string, metadata map[string]any) error {

	return catalog.AppendHistory(conn, &catalog.HistoryEntry{
		TransferID:  transfer.ID,
		UserID:      intent.actorID(),
		Action:      action,
		Description: description,
		Metadata:    metadata,
	})
}

// flipStage marks a pipeline-decided approval stage approved. A stage that
// is no longer pending (an admin override got there first) is left alone.
func flipStage(conn *sqlite.Conn, transferID int64, stage policy.Role, now time.Time) error {
	err := catalog.DecideApproval(conn, transferID, stage, catalog.ApprovalApproved,
		nil, "", now)
	var conflict *catalog.ConflictError
	if errors.As(err, &conflict) {
		return nil
	}
	return err
}

// nextReviewer maps an approval stage to the role notified when it passes.
func nextReviewer(stage policy.Role) policy.Role {
	switch stage {
	case policy.RoleTeamLead:
		return policy.RoleSupervisor
	case policy.RoleSupervisor:
		return policy.RoleLineProducer
	default:
		return policy.RoleDataTeam
	}
}

// roleRecipients lists the active users holding any of the given roles.
func roleRecipients(conn *sqlite.Conn, roles ...policy.Role) ([]int64, error) {
	users, err := catalog.UsersByRole(conn, roles...)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	return ids, nil
}

// scanFailureParts composes the failure summary in the order the history
// and artist notification present it.
func scanFailureParts(infected, checksumFailures, scanErrors int) []string {
	var parts []string
	if infected > 0 {
		parts = append(parts, fmt.Sprintf("%d infected file(s)", infected))
	}
	if checksumFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d checksum failure(s)", checksumFailures))
	}
	if scanErrors > 0 {
		parts = append(parts, fmt.Sprintf("%d scan error(s)", scanErrors))
	}
	return parts
}

// the follow-up jobs each transition hands to the queues

func scanJob(transferID int64) tasks.Message {
	return tasks.Message{
		Queue:          tasks.QueueScanning,
		Kind:           tasks.KindScan,
		IdempotencyKey: tasks.Key(tasks.KindScan, transferID, "scanning"),
		Payload:        map[string]any{"transfer_id": transferID},
	}
}

func prepareJob(transferID int64) tasks.Message {
	return tasks.Message{
		Queue:          tasks.QueueTransfer,
		Kind:           tasks.KindPrepare,
		IdempotencyKey: tasks.Key(tasks.KindPrepare, transferID, "scan_passed"),
		Payload:        map[string]any{"transfer_id": transferID},
	}
}

func copyJob(transferID int64) tasks.Message {
	return tasks.Message{
		Queue:          tasks.QueueTransfer,
		Kind:           tasks.KindCopy,
		IdempotencyKey: tasks.Key(tasks.KindCopy, transferID, "transferring"),
		Payload:        map[string]any{"transfer_id": transferID},
	}
}

func verifyJob(transferID int64) tasks.Message {
	return tasks.Message{
		Queue:          tasks.QueueTransfer,
		Kind:           tasks.KindVerify,
		IdempotencyKey: tasks.Key(tasks.KindVerify, transferID, "verifying"),
		Payload:        map[string]any{"transfer_id": transferID},
	}
}

func deliveryJob(transferID int64) tasks.Message {
	return tasks.Message{
		Queue:          tasks.QueueTransfer,
		Kind:           tasks.KindDeliveryComplete,
		IdempotencyKey: tasks.Key(tasks.KindDeliveryComplete, transferID, "transferred"),
		Payload:        map[string]any{"transfer_id": transferID},
	}
}
