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
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/store"
)

var TESTING_DIR string

// This runs setup, runs all tests, and does breakdown.
func TestMain(m *testing.M) {
	var status int
	setup()
	status = m.Run()
	breakdown()
	os.Exit(status)
}

func setup() {
	var err error
	TESTING_DIR, err = os.MkdirTemp(os.TempDir(), "databridge-catalog-tests-")
	if err != nil {
		log.Panicf("Couldn't create testing directory: %s", err)
	}
}

func breakdown() {
	if TESTING_DIR != "" {
		os.RemoveAll(TESTING_DIR)
	}
}

var dbCount int

func openStore(t *testing.T) *store.Store {
	dbCount++
	s, err := store.Open(filepath.Join(TESTING_DIR, fmt.Sprintf("catalog-%d.db", dbCount)), 4)
	assert.Nil(t, err, "Opening a fresh database produced an error.")
	return s
}

// runs fn on a plain connection, failing the test on error
func withConn(t *testing.T, s *store.Store, fn func(conn *sqlite.Conn) error) {
	err := s.WithConn(context.Background(), fn)
	assert.Nil(t, err)
}

func seedUser(t *testing.T, s *store.Store, username string, role policy.Role) User {
	user := User{
		Username:    username,
		Email:       username + "@studio.test",
		DisplayName: username,
		Role:        role,
		Active:      true,
	}
	withConn(t, s, func(conn *sqlite.Conn) error {
		return InsertUser(conn, &user)
	})
	return user
}

func seedTransfer(t *testing.T, s *store.Store, artistID int64, status policy.Status) Transfer {
	var transfer Transfer
	err := s.WithTx(context.Background(), func(conn *sqlite.Conn) error {
		reference, err := NextReference(conn)
		if err != nil {
			return err
		}
		transfer = Transfer{
			Reference: reference,
			Name:      "Shot " + reference,
			Category:  "vfx_assets",
			Status:    status,
			ArtistID:  artistID,
		}
		return InsertTransfer(conn, &transfer)
	})
	assert.Nil(t, err)
	return transfer
}

// tests whether users round-trip, including the nullable last login
func TestUserRoundTrip(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	created := seedUser(t, s, "sarah", policy.RoleArtist)
	assert.NotZero(t, created.ID)

	withConn(t, s, func(conn *sqlite.Conn) error {
		loaded, err := UserByUsername(conn, "sarah")
		assert.Nil(t, err)
		assert.Equal(t, created.ID, loaded.ID)
		assert.Equal(t, policy.RoleArtist, loaded.Role)
		assert.True(t, loaded.Active)
		assert.Nil(t, loaded.LastLogin, "A never-logged-in user has a last login.")

		when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		assert.Nil(t, TouchLastLogin(conn, created.ID, when))
		loaded, err = UserByID(conn, created.ID)
		assert.Nil(t, err)
		assert.NotNil(t, loaded.LastLogin)
		assert.Equal(t, when, *loaded.LastLogin)

		_, err = UserByID(conn, 9999)
		var notFound *NotFoundError
		assert.True(t, errors.As(err, &notFound), "A missing user was not a NotFoundError.")
		return nil
	})
}

// tests whether duplicate usernames surface as conflicts
func TestDuplicateUsernameConflicts(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	seedUser(t, s, "twin", policy.RoleArtist)
	err := s.WithConn(context.Background(), func(conn *sqlite.Conn) error {
		u := User{Username: "twin", DisplayName: "Twin", Role: policy.RoleArtist}
		return InsertUser(conn, &u)
	})
	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict), "A duplicate username was not a ConflictError.")
}

// tests whether role-addressed lookups skip inactive accounts
func TestUsersByRole(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	seedUser(t, s, "priya", policy.RoleDataTeam)
	seedUser(t, s, "tom", policy.RoleITTeam)
	retired := seedUser(t, s, "gone", policy.RoleDataTeam)
	withConn(t, s, func(conn *sqlite.Conn) error {
		retired.Active = false
		return UpdateUser(conn, &retired)
	})

	withConn(t, s, func(conn *sqlite.Conn) error {
		users, err := UsersByRole(conn, policy.RoleDataTeam, policy.RoleITTeam)
		assert.Nil(t, err)
		assert.Equal(t, 2, len(users), "Role lookup returned the wrong number of users.")
		for _, u := range users {
			assert.NotEqual(t, "gone", u.Username, "Role lookup returned an inactive user.")
		}
		return nil
	})
}

// tests whether references are minted sequentially
func TestReferencesAreSequential(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	artist := seedUser(t, s, "artist", policy.RoleArtist)
	first := seedTransfer(t, s, artist.ID, policy.StatusUploaded)
	second := seedTransfer(t, s, artist.ID, policy.StatusUploaded)
	assert.Equal(t, "TRF-00001", first.Reference)
	assert.Equal(t, "TRF-00002", second.Reference)
}

// tests whether every transfer column survives a write-read cycle
func TestTransferRoundTrip(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	artist := seedUser(t, s, "artist", policy.RoleArtist)
	transfer := seedTransfer(t, s, artist.ID, policy.StatusUploaded)

	withConn(t, s, func(conn *sqlite.Conn) error {
		loaded, err := TransferByID(conn, transfer.ID)
		assert.Nil(t, err)
		assert.Equal(t, PriorityNormal, loaded.Priority)
		assert.Equal(t, "", loaded.ProductionPath, "A fresh transfer has a production path.")
		assert.Nil(t, loaded.ScanPassed)
		assert.Nil(t, loaded.SubmittedAt)
		assert.Equal(t, []string{}, loaded.Tags)

		passed := true
		when := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
		loaded.Status = policy.StatusScanPassed
		loaded.ProductionPath = "/mnt/production/unlinked/vfx_assets/TRF-00001"
		loaded.ScanPassed = &passed
		loaded.ScanCompletedAt = &when
		loaded.ScanResult = map[string]any{"clean": float64(3), "infected": float64(0)}
		loaded.Tags = []string{"hero", "comp"}
		assert.Nil(t, UpdateTransfer(conn, &loaded))

		reloaded, err := TransferByReference(conn, transfer.Reference)
		assert.Nil(t, err)
		assert.Equal(t, policy.StatusScanPassed, reloaded.Status)
		assert.Equal(t, loaded.ProductionPath, reloaded.ProductionPath)
		assert.NotNil(t, reloaded.ScanPassed)
		assert.True(t, *reloaded.ScanPassed)
		assert.Equal(t, when, *reloaded.ScanCompletedAt)
		assert.Equal(t, loaded.ScanResult, reloaded.ScanResult)
		assert.Equal(t, []string{"hero", "comp"}, reloaded.Tags)
		return nil
	})
}

// tests whether listings honor visibility and status filters
func TestTransferListingHonorsVisibility(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	sarah := seedUser(t, s, "sarah", policy.RoleArtist)
	james := seedUser(t, s, "james", policy.RoleArtist)
	seedTransfer(t, s, sarah.ID, policy.StatusUploaded)
	seedTransfer(t, s, sarah.ID, policy.StatusPendingTeamLead)
	seedTransfer(t, s, james.ID, policy.StatusPendingTeamLead)
	seedTransfer(t, s, james.ID, policy.StatusScanning)

	withConn(t, s, func(conn *sqlite.Conn) error {
		own, err := Transfers(conn, policy.VisibilityFor(policy.RoleArtist, sarah.ID), TransferFilter{})
		assert.Nil(t, err)
		assert.Equal(t, 2, len(own), "An artist sees a transfer that isn't theirs.")

		lead, err := Transfers(conn, policy.VisibilityFor(policy.RoleTeamLead, sarah.ID), TransferFilter{})
		assert.Nil(t, err)
		assert.Equal(t, 3, len(lead), "A team lead's listing is the wrong size.")

		inFlight, err := Transfers(conn, policy.VisibilityFor(policy.RoleSupervisor, 0), TransferFilter{})
		assert.Nil(t, err)
		assert.Equal(t, 3, len(inFlight), "A supervisor sees uploaded drafts.")

		all, err := Transfers(conn, policy.VisibilityFor(policy.RoleAdmin, 0), TransferFilter{})
		assert.Nil(t, err)
		assert.Equal(t, 4, len(all))

		filtered, err := Transfers(conn, policy.Visibility{All: true},
			TransferFilter{Status: policy.StatusScanning})
		assert.Nil(t, err)
		assert.Equal(t, 1, len(filtered))

		counts, err := StatusCounts(conn, policy.Visibility{All: true})
		assert.Nil(t, err)
		assert.Equal(t, 2, counts[policy.StatusPendingTeamLead])
		assert.Equal(t, 1, counts[policy.StatusUploaded])
		return nil
	})
}

// tests the approval chain: creation, a decision, the double-decide
// conflict, and the admin skip
func TestApprovalChainLifecycle(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	artist := seedUser(t, s, "artist", policy.RoleArtist)
	lead := seedUser(t, s, "lead", policy.RoleTeamLead)
	admin := seedUser(t, s, "root", policy.RoleAdmin)
	transfer := seedTransfer(t, s, artist.ID, policy.StatusPendingTeamLead)

	withConn(t, s, func(conn *sqlite.Conn) error {
		assert.Nil(t, InsertApprovalChain(conn, transfer.ID))
		approvals, err := ApprovalsForTransfer(conn, transfer.ID)
		assert.Nil(t, err)
		assert.Equal(t, 5, len(approvals), "The chain does not have five stages.")
		for i, approval := range approvals {
			assert.Equal(t, policy.ApprovalChain[i], approval.RequiredRole)
			assert.Equal(t, i+1, approval.StageOrder)
			assert.Equal(t, ApprovalPending, approval.Status)
		}

		now := time.Now().UTC()
		err = DecideApproval(conn, transfer.ID, policy.RoleTeamLead,
			ApprovalApproved, &lead.ID, "looks good", now)
		assert.Nil(t, err)

		err = DecideApproval(conn, transfer.ID, policy.RoleTeamLead,
			ApprovalApproved, &lead.ID, "again", now)
		var conflict *ConflictError
		assert.True(t, errors.As(err, &conflict), "Deciding a decided stage was not a conflict.")

		approvers, err := PriorApproverIDs(conn, transfer.ID)
		assert.Nil(t, err)
		assert.Equal(t, []int64{lead.ID}, approvers)

		skipped, err := SkipPendingApprovals(conn, transfer.ID, admin.ID,
			"Skipped by admin override: emergency", now)
		assert.Nil(t, err)
		assert.Equal(t, 4, skipped, "The admin skip flipped the wrong number of stages.")

		approvals, err = ApprovalsForTransfer(conn, transfer.ID)
		assert.Nil(t, err)
		assert.Equal(t, ApprovalApproved, approvals[0].Status,
			"The admin skip overwrote a decided stage.")
		for _, approval := range approvals[1:] {
			assert.Equal(t, ApprovalSkipped, approval.Status)
		}
		return nil
	})
}

// tests whether history rows come back in insertion order with their
// metadata intact
func TestHistoryOrderAndMetadata(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	artist := seedUser(t, s, "artist", policy.RoleArtist)
	transfer := seedTransfer(t, s, artist.ID, policy.StatusUploaded)

	withConn(t, s, func(conn *sqlite.Conn) error {
		first := HistoryEntry{
			TransferID:  transfer.ID,
			UserID:      &artist.ID,
			Action:      ActionSubmitted,
			Description: "Submitted for approval",
			Metadata:    map[string]any{"old_status": "uploaded", "new_status": "pending_team_lead"},
		}
		assert.Nil(t, AppendHistory(conn, &first))
		second := HistoryEntry{
			TransferID:  transfer.ID,
			Action:      ActionScanStarted,
			Description: "Scanning started",
		}
		assert.Nil(t, AppendHistory(conn, &second))

		entries, err := HistoryForTransfer(conn, transfer.ID)
		assert.Nil(t, err)
		assert.Equal(t, 2, len(entries))
		assert.Equal(t, ActionSubmitted, entries[0].Action)
		assert.Equal(t, "pending_team_lead", entries[0].Metadata["new_status"])
		assert.Equal(t, ActionScanStarted, entries[1].Action)
		assert.Nil(t, entries[1].UserID, "A worker-written row has a user.")
		return nil
	})
}

// tests the notification read flow, including the cross-user guard
func TestNotificationReadFlow(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	sarah := seedUser(t, s, "sarah", policy.RoleArtist)
	james := seedUser(t, s, "james", policy.RoleArtist)

	withConn(t, s, func(conn *sqlite.Conn) error {
		for i := 0; i < 3; i++ {
			n := Notification{
				UserID:  sarah.ID,
				Type:    NotifyApprovalRequired,
				Subject: fmt.Sprintf("Approval needed: TRF-%05d", i+1),
				Message: "A transfer requires your review.",
			}
			assert.Nil(t, InsertNotification(conn, &n))
		}

		count, err := UnreadNotificationCount(conn, sarah.ID)
		assert.Nil(t, err)
		assert.Equal(t, 3, count)

		list, err := NotificationsForUser(conn, sarah.ID, true, 2)
		assert.Nil(t, err)
		assert.Equal(t, 2, len(list), "The limit was not applied.")
		assert.True(t, list[0].ID > list[1].ID, "Notifications are not newest first.")

		err = MarkNotificationRead(conn, james.ID, list[0].ID)
		var notFound *NotFoundError
		assert.True(t, errors.As(err, &notFound),
			"Marking another user's notification read was not a NotFoundError.")

		assert.Nil(t, MarkNotificationRead(conn, sarah.ID, list[0].ID))
		flipped, err := MarkAllNotificationsRead(conn, sarah.ID)
		assert.Nil(t, err)
		assert.Equal(t, 2, flipped)
		count, err = UnreadNotificationCount(conn, sarah.ID)
		assert.Nil(t, err)
		assert.Equal(t, 0, count)
		return nil
	})
}

// tests file rows: insert, list, scan results, and deletion
func TestTransferFiles(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	artist := seedUser(t, s, "artist", policy.RoleArtist)
	transfer := seedTransfer(t, s, artist.ID, policy.StatusUploaded)

	withConn(t, s, func(conn *sqlite.Conn) error {
		a := TransferFile{
			TransferID:     transfer.ID,
			Filename:       "beauty_v001.exr",
			OriginalPath:   "renders/beauty_v001.exr",
			SizeBytes:      1_000_000,
			ChecksumSHA256: "aaaa",
		}
		b := TransferFile{
			TransferID:     transfer.ID,
			Filename:       "beauty_v002.exr",
			OriginalPath:   "renders/beauty_v002.exr",
			SizeBytes:      1_500_000,
			ChecksumSHA256: "bbbb",
		}
		assert.Nil(t, InsertFile(conn, &a))
		assert.Nil(t, InsertFile(conn, &b))

		files, err := FilesForTransfer(conn, transfer.ID)
		assert.Nil(t, err)
		assert.Equal(t, 2, len(files))
		assert.Equal(t, ScanPending, files[0].ScanStatus)
		assert.Nil(t, files[0].ChecksumVerified)

		assert.Nil(t, SetFileScanResult(conn, a.ID, ScanClean, "No threats detected"))
		assert.Nil(t, SetFileChecksumVerified(conn, a.ID, true))
		files, err = FilesForTransfer(conn, transfer.ID)
		assert.Nil(t, err)
		assert.Equal(t, ScanClean, files[0].ScanStatus)
		assert.Equal(t, "No threats detected", files[0].ScanDetail)
		assert.True(t, *files[0].ChecksumVerified)

		removed, err := DeleteFile(conn, transfer.ID, b.ID)
		assert.Nil(t, err)
		assert.Equal(t, "beauty_v002.exr", removed.Filename)
		files, err = FilesForTransfer(conn, transfer.ID)
		assert.Nil(t, err)
		assert.Equal(t, 1, len(files))

		_, err = DeleteFile(conn, transfer.ID, b.ID)
		var notFound *NotFoundError
		assert.True(t, errors.As(err, &notFound))
		return nil
	})
}
