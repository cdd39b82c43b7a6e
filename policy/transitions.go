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

package policy

import "fmt"

// Rule is one edge of the transfer state machine: who may trigger the given
// intent from the given status, and where the transfer lands. A Rule with an
// empty To leaves the target to the intent itself (complete_scan picks
// scan_passed or scan_failed; override carries an explicit target).
type Rule struct {
	From  Status
	Kind  IntentKind
	Roles []Role
	To    Status
}

type edge struct {
	from Status
	kind IntentKind
}

// The transition table. Every legal edge of the state machine is a row here;
// Lookup consults nothing else. Admin is not listed per row because it passes
// every role check.
var transitionTable = map[edge]Rule{
	{StatusUploaded, IntentSubmit}: {
		From: StatusUploaded, Kind: IntentSubmit,
		Roles: []Role{RoleArtist}, To: StatusPendingTeamLead,
	},

	{StatusPendingTeamLead, IntentApprove}: {
		From: StatusPendingTeamLead, Kind: IntentApprove,
		Roles: []Role{RoleTeamLead}, To: StatusPendingSupervisor,
	},
	{StatusPendingTeamLead, IntentReject}: {
		From: StatusPendingTeamLead, Kind: IntentReject,
		Roles: []Role{RoleTeamLead}, To: StatusRejected,
	},
	{StatusPendingSupervisor, IntentApprove}: {
		From: StatusPendingSupervisor, Kind: IntentApprove,
		Roles: []Role{RoleSupervisor}, To: StatusPendingLineProducer,
	},
	{StatusPendingSupervisor, IntentReject}: {
		From: StatusPendingSupervisor, Kind: IntentReject,
		Roles: []Role{RoleSupervisor}, To: StatusRejected,
	},
	{StatusPendingLineProducer, IntentApprove}: {
		From: StatusPendingLineProducer, Kind: IntentApprove,
		Roles: []Role{RoleLineProducer}, To: StatusApproved,
	},
	{StatusPendingLineProducer, IntentReject}: {
		From: StatusPendingLineProducer, Kind: IntentReject,
		Roles: []Role{RoleLineProducer}, To: StatusRejected,
	},

	{StatusApproved, IntentStartScan}: {
		From: StatusApproved, Kind: IntentStartScan,
		Roles: []Role{RoleDataTeam}, To: StatusScanning,
	},
	{StatusScanning, IntentCompleteScan}: {
		From: StatusScanning, Kind: IntentCompleteScan,
		Roles: []Role{RoleDataTeam}, To: "", // scan outcome decides
	},
	{StatusScanPassed, IntentPrepare}: {
		From: StatusScanPassed, Kind: IntentPrepare,
		Roles: []Role{RoleDataTeam}, To: "", // pre-transfer recheck decides
	},

	{StatusReadyForTransfer, IntentExecute}: {
		From: StatusReadyForTransfer, Kind: IntentExecute,
		Roles: []Role{RoleITTeam}, To: StatusTransferring,
	},
	{StatusTransferring, IntentCopyDone}: {
		From: StatusTransferring, Kind: IntentCopyDone,
		Roles: []Role{RoleITTeam}, To: StatusVerifying,
	},
	{StatusTransferring, IntentCopyError}: {
		From: StatusTransferring, Kind: IntentCopyError,
		Roles: []Role{RoleITTeam}, To: StatusScanFailed,
	},
	{StatusVerifying, IntentVerifyOK}: {
		From: StatusVerifying, Kind: IntentVerifyOK,
		Roles: []Role{RoleITTeam}, To: StatusTransferred,
	},
	{StatusVerifying, IntentVerifyFailed}: {
		From: StatusVerifying, Kind: IntentVerifyFailed,
		Roles: []Role{RoleITTeam}, To: StatusScanFailed,
	},
}

func init() {
	// cancel is legal from every non-terminal status; ownership is checked by
	// the state machine, so every role appears in the rule
	for _, status := range AllStatuses {
		if status.Terminal() {
			continue
		}
		transitionTable[edge{status, IntentCancel}] = Rule{
			From: status, Kind: IntentCancel,
			Roles: AllRoles, To: StatusCancelled,
		}
	}
}

// StageRole maps a human-pending status to the role whose approval it awaits.
func StageRole(status Status) (Role, bool) {
	switch status {
	case StatusPendingTeamLead:
		return RoleTeamLead, true
	case StatusPendingSupervisor:
		return RoleSupervisor, true
	case StatusPendingLineProducer:
		return RoleLineProducer, true
	}
	return "", false
}

// Lookup finds the rule for applying the given intent kind to a transfer in
// the given status. A missing edge is a precondition failure; an edge the
// actor's role may not trigger is an authorization failure. Admin passes
// every role check, and override (admin only) is legal from any status.
func Lookup(from Status, kind IntentKind, role Role) (Rule, error) {
	if kind == IntentOverride {
		if role != RoleAdmin {
			return Rule{}, &AuthZError{Detail: "Only admins can force-advance transfers"}
		}
		return Rule{From: from, Kind: kind, Roles: []Role{RoleAdmin}}, nil
	}

	rule, found := transitionTable[edge{from, kind}]
	if !found {
		return Rule{}, &PreconditionError{Detail: missingEdgeDetail(from, kind)}
	}
	if role == RoleAdmin {
		return rule, nil
	}
	for _, allowed := range rule.Roles {
		if role == allowed {
			return rule, nil
		}
	}
	return Rule{}, &AuthZError{Detail: forbiddenRoleDetail(from, kind, role)}
}

// Rules returns a copy of every row in the transition table, for exhaustive
// checks in tests.
func Rules() []Rule {
	rules := make([]Rule, 0, len(transitionTable))
	for _, rule := range transitionTable {
		rules = append(rules, rule)
	}
	return rules
}

func missingEdgeDetail(from Status, kind IntentKind) string {
	switch kind {
	case IntentApprove, IntentReject:
		return fmt.Sprintf("Transfer status '%s' is not an approval stage", from)
	case IntentSubmit:
		return fmt.Sprintf("Transfer status is '%s', expected 'uploaded'", from)
	case IntentStartScan:
		return fmt.Sprintf("Cannot scan: transfer status is '%s', expected 'approved'", from)
	case IntentCompleteScan:
		return fmt.Sprintf("Transfer status is '%s', expected 'scanning'", from)
	case IntentExecute:
		return fmt.Sprintf("Transfer status is '%s', expected 'ready_for_transfer'", from)
	case IntentCancel:
		return fmt.Sprintf("Transfer is already %s and cannot be cancelled", from)
	}
	return fmt.Sprintf("No %s transition from status '%s'", kind, from)
}

func forbiddenRoleDetail(from Status, kind IntentKind, role Role) string {
	switch kind {
	case IntentApprove, IntentReject:
		if stage, ok := StageRole(from); ok {
			return fmt.Sprintf("Role '%s' cannot %s at stage '%s'", role, kind, stage.Label())
		}
	case IntentStartScan:
		return "Only data_team or admin can start scans"
	case IntentCompleteScan:
		return "Only data_team or admin can complete scans"
	case IntentExecute:
		return "Only it_team or admin can initiate transfers"
	}
	return fmt.Sprintf("Role '%s' cannot %s this transfer", role, kind)
}
