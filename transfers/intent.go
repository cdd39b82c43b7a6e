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
	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/policy"
)

// An Intent is one request to move a transfer along the state machine.
// Actor is the human behind the request, or nil for the scan, copy, and
// verify workers; the remaining fields carry whatever the specific kind of
// transition needs and are ignored by the others.
type Intent struct {
	Kind  policy.IntentKind
	Actor *catalog.User

	// approve
	Comment string

	// reject and override
	Reason string

	// override
	Target policy.Status

	// complete_scan: the merged scan summary, stored on the transfer
	ScanSummary map[string]any

	// prepare: the production directory the files will be delivered to
	ProductionPath string

	// copy_done: how the files were moved
	Method string

	// copy_error: what went wrong with the copy
	Detail string

	// verify_failed: the filenames whose production checksums did not match
	Mismatched []string
}

// role returns the role the transition is validated under: the actor's own
// role, or for the pipeline workers the canonical role of the team whose
// stage they automate.
func (i Intent) role() policy.Role {
	if i.Actor != nil {
		return i.Actor.Role
	}
	switch i.Kind {
	case policy.IntentCompleteScan, policy.IntentPrepare:
		return policy.RoleDataTeam
	case policy.IntentCopyDone, policy.IntentCopyError,
		policy.IntentVerifyOK, policy.IntentVerifyFailed:
		return policy.RoleITTeam
	}
	return ""
}

// actorID returns the id to record on history rows, nil for worker intents.
func (i Intent) actorID() *int64 {
	if i.Actor == nil {
		return nil
	}
	return &i.Actor.ID
}
