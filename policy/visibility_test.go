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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// tests whether an artist sees exactly their own transfers
func TestArtistSeesOnlyOwnTransfers(t *testing.T) {
	v := VisibilityFor(RoleArtist, 7)
	assert.True(t, v.Allows(7, StatusUploaded), "An artist cannot see their own uploaded transfer.")
	assert.True(t, v.Allows(7, StatusRejected), "An artist cannot see their own rejected transfer.")
	assert.False(t, v.Allows(8, StatusUploaded), "An artist can see another artist's transfer.")
	assert.False(t, v.Allows(8, StatusTransferred), "An artist can see another artist's delivery.")
}

// tests whether a team lead sees their own transfers plus anything waiting
// on a team lead decision
func TestTeamLeadSeesOwnPlusPending(t *testing.T) {
	v := VisibilityFor(RoleTeamLead, 3)
	assert.True(t, v.Allows(3, StatusScanning), "A team lead cannot see their own transfer.")
	assert.True(t, v.Allows(9, StatusPendingTeamLead), "A team lead cannot see a transfer awaiting their review.")
	assert.False(t, v.Allows(9, StatusPendingSupervisor), "A team lead can see a transfer past their stage.")
	assert.False(t, v.Allows(9, StatusUploaded), "A team lead can see another artist's draft.")
}

// tests whether supervisors and line producers see everything that has left
// the uploaded state
func TestSupervisorsSeeEverythingInFlight(t *testing.T) {
	for _, role := range []Role{RoleSupervisor, RoleLineProducer} {
		v := VisibilityFor(role, 4)
		assert.True(t, v.Allows(9, StatusPendingTeamLead))
		assert.True(t, v.Allows(9, StatusTransferred))
		assert.False(t, v.Allows(9, StatusUploaded),
			"A reviewer can see a draft that was never submitted.")
	}
}

// tests whether the data team sees the stages it operates and nothing
// earlier
func TestDataTeamVisibility(t *testing.T) {
	v := VisibilityFor(RoleDataTeam, 5)
	for _, status := range []Status{StatusApproved, StatusScanning, StatusScanPassed,
		StatusScanFailed, StatusReadyForTransfer, StatusTransferring} {
		assert.True(t, v.Allows(9, status), "The data team cannot see a stage it operates.")
	}
	assert.False(t, v.Allows(9, StatusPendingTeamLead), "The data team can see an unapproved transfer.")
	assert.False(t, v.Allows(9, StatusTransferred), "The data team can see a finished delivery.")
}

// tests whether the IT team sees hand-off through delivery
func TestITTeamVisibility(t *testing.T) {
	v := VisibilityFor(RoleITTeam, 6)
	for _, status := range []Status{StatusReadyForTransfer, StatusTransferring,
		StatusVerifying, StatusTransferred} {
		assert.True(t, v.Allows(9, status), "The IT team cannot see a stage it operates.")
	}
	assert.False(t, v.Allows(9, StatusScanning), "The IT team can see a transfer still in scanning.")
}

// tests whether admins see everything
func TestAdminVisibility(t *testing.T) {
	v := VisibilityFor(RoleAdmin, 1)
	for _, status := range AllStatuses {
		assert.True(t, v.Allows(9, status), "An admin cannot see some transfer.")
	}
}

// tests the pending queues each role polls
func TestPendingFor(t *testing.T) {
	assert.Equal(t, []Status{StatusPendingTeamLead}, PendingFor(RoleTeamLead))
	assert.Equal(t, []Status{StatusPendingSupervisor}, PendingFor(RoleSupervisor))
	assert.Equal(t, []Status{StatusPendingLineProducer}, PendingFor(RoleLineProducer))
	assert.Equal(t, []Status{StatusApproved, StatusScanPassed}, PendingFor(RoleDataTeam))
	assert.Equal(t, []Status{StatusReadyForTransfer}, PendingFor(RoleITTeam))
	assert.Equal(t, HumanPendingStatuses, PendingFor(RoleAdmin))
	assert.Nil(t, PendingFor(RoleArtist), "Artists have a pending queue.")
}
