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

// Visibility describes which transfers a user may list and read. It is a
// closed description, not a callback, so the storage layer can translate it
// into a WHERE clause and the API layer can re-check single reads with
// Allows.
type Visibility struct {
	// All grants access to every transfer regardless of owner or status.
	All bool

	// OwnArtistID, when non-zero, grants access to transfers owned by that
	// artist in any status.
	OwnArtistID int64

	// Statuses grants access to transfers in any of the listed statuses,
	// whoever owns them.
	Statuses []Status

	// AllExceptUploaded grants access to every transfer that has left the
	// uploaded state.
	AllExceptUploaded bool
}

// dataTeamStatuses are the stages of the pipeline the data team works:
// everything from approval through hand-off to IT.
var dataTeamStatuses = []Status{
	StatusApproved,
	StatusScanning,
	StatusScanPassed,
	StatusScanFailed,
	StatusReadyForTransfer,
	StatusTransferring,
}

// itTeamStatuses are the stages the IT team works: hand-off through delivery.
var itTeamStatuses = []Status{
	StatusReadyForTransfer,
	StatusTransferring,
	StatusVerifying,
	StatusTransferred,
}

// VisibilityFor returns the visibility a user with the given role and id has
// over the transfer list. Artists see their own transfers; team leads see
// their own plus anything waiting on them; supervisors and line producers see
// everything in flight; the data and IT teams see the statuses they operate;
// admins see everything.
func VisibilityFor(role Role, userID int64) Visibility {
	switch role {
	case RoleAdmin:
		return Visibility{All: true}
	case RoleSupervisor, RoleLineProducer:
		return Visibility{AllExceptUploaded: true}
	case RoleTeamLead:
		return Visibility{
			OwnArtistID: userID,
			Statuses:    []Status{StatusPendingTeamLead},
		}
	case RoleDataTeam:
		return Visibility{Statuses: dataTeamStatuses}
	case RoleITTeam:
		return Visibility{Statuses: itTeamStatuses}
	default:
		return Visibility{OwnArtistID: userID}
	}
}

// Allows reports whether a single transfer with the given owner and status
// falls inside the visibility.
func (v Visibility) Allows(artistID int64, status Status) bool {
	if v.All {
		return true
	}
	if v.AllExceptUploaded && status != StatusUploaded {
		return true
	}
	if v.OwnArtistID != 0 && v.OwnArtistID == artistID {
		return true
	}
	for _, s := range v.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// PendingFor returns the statuses that count as "waiting on this role" for
// approval queues and dashboard counts. Admins see every stage that is
// waiting on a person.
func PendingFor(role Role) []Status {
	switch role {
	case RoleTeamLead:
		return []Status{StatusPendingTeamLead}
	case RoleSupervisor:
		return []Status{StatusPendingSupervisor}
	case RoleLineProducer:
		return []Status{StatusPendingLineProducer}
	case RoleDataTeam:
		return []Status{StatusApproved, StatusScanPassed}
	case RoleITTeam:
		return []Status{StatusReadyForTransfer}
	case RoleAdmin:
		statuses := make([]Status, len(HumanPendingStatuses))
		copy(statuses, HumanPendingStatuses)
		return statuses
	}
	return nil
}
