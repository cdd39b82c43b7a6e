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

// Role identifies what a user is allowed to do in the pipeline. The set is
// closed: every role the system knows about is listed below, and admin is
// treated as a wildcard wherever roles are checked.
type Role string

const (
	RoleArtist       Role = "artist"
	RoleTeamLead     Role = "team_lead"
	RoleSupervisor   Role = "supervisor"
	RoleLineProducer Role = "line_producer"
	RoleDataTeam     Role = "data_team"
	RoleITTeam       Role = "it_team"
	RoleAdmin        Role = "admin"
)

// all roles, in no particular order
var AllRoles = []Role{
	RoleArtist,
	RoleTeamLead,
	RoleSupervisor,
	RoleLineProducer,
	RoleDataTeam,
	RoleITTeam,
	RoleAdmin,
}

// ApprovalChain lists the five approval stages of a transfer in the order
// they are decided. The first three are decided by people; the last two are
// flipped by the scan and verify pipelines.
var ApprovalChain = []Role{
	RoleTeamLead,
	RoleSupervisor,
	RoleLineProducer,
	RoleDataTeam,
	RoleITTeam,
}

// ParseRole converts a stored string into a Role, rejecting anything outside
// the closed set.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", &InvalidRoleError{Role: s}
	}
	return role, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleArtist, RoleTeamLead, RoleSupervisor, RoleLineProducer,
		RoleDataTeam, RoleITTeam, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Label returns the human-readable name used in approval history and
// notifications for the role's approval stage.
func (r Role) Label() string {
	switch r {
	case RoleTeamLead:
		return "Team Lead Review"
	case RoleSupervisor:
		return "Supervisor Validation"
	case RoleLineProducer:
		return "Line Producer Approval"
	case RoleDataTeam:
		return "Data Team Scan"
	case RoleITTeam:
		return "IT Transfer"
	}
	return fmt.Sprintf("%s stage", r)
}
