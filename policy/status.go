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

// Status is the lifecycle state of a transfer. The set is closed; a transfer
// is created in StatusUploaded and is never deleted, only moved along the
// edges in the transition table.
type Status string

const (
	StatusUploaded            Status = "uploaded"
	StatusPendingTeamLead     Status = "pending_team_lead"
	StatusPendingSupervisor   Status = "pending_supervisor"
	StatusPendingLineProducer Status = "pending_line_producer"
	StatusApproved            Status = "approved"
	StatusScanning            Status = "scanning"
	StatusScanPassed          Status = "scan_passed"
	StatusScanFailed          Status = "scan_failed"
	StatusReadyForTransfer    Status = "ready_for_transfer"
	StatusTransferring        Status = "transferring"
	StatusVerifying           Status = "verifying"
	StatusTransferred         Status = "transferred"
	StatusRejected            Status = "rejected"
	StatusCancelled           Status = "cancelled"
)

var AllStatuses = []Status{
	StatusUploaded,
	StatusPendingTeamLead,
	StatusPendingSupervisor,
	StatusPendingLineProducer,
	StatusApproved,
	StatusScanning,
	StatusScanPassed,
	StatusScanFailed,
	StatusReadyForTransfer,
	StatusTransferring,
	StatusVerifying,
	StatusTransferred,
	StatusRejected,
	StatusCancelled,
}

// the three statuses awaiting a human approval decision, in chain order
var HumanPendingStatuses = []Status{
	StatusPendingTeamLead,
	StatusPendingSupervisor,
	StatusPendingLineProducer,
}

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", &InvalidStatusError{Status: s}
	}
	return status, nil
}

func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status has no outgoing edge other than an
// admin override. scan_failed is terminal: recovery is an override back to
// approved, not an automatic retry.
func (s Status) Terminal() bool {
	switch s {
	case StatusTransferred, StatusRejected, StatusCancelled, StatusScanFailed:
		return true
	}
	return false
}
