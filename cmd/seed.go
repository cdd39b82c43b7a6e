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

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/auth"
	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/store"
)

var seedCommand = &cobra.Command{
	Use:   "seed <config_file>",
	Short: "Seed development accounts",
	Long:  "Creates one development account per pipeline role, with well-known\npasswords. Never run this against a production database. Accounts that\nalready exist are left alone.",
	Args:  cobra.ExactArgs(1),
	RunE:  seedMain,
}

// the development crew, one account per role plus a second artist
var devAccounts = []struct {
	username    string
	displayName string
	email       string
	role        policy.Role
	department  string
	title       string
	password    string
}{
	{"artist1", "Sarah Chen", "sarah.chen@studio.local", policy.RoleArtist, "VFX", "VFX Artist", "artist123"},
	{"artist2", "James Park", "james.park@studio.local", policy.RoleArtist, "Animation", "Animator", "artist123"},
	{"teamlead1", "Marcus Johnson", "marcus.johnson@studio.local", policy.RoleTeamLead, "VFX", "VFX Team Lead", "teamlead123"},
	{"supervisor1", "Kim Tanaka", "kim.tanaka@studio.local", policy.RoleSupervisor, "VFX", "VFX Supervisor", "super123"},
	{"producer1", "Alex Rivera", "alex.rivera@studio.local", policy.RoleLineProducer, "Production", "Line Producer", "producer123"},
	{"datateam1", "Priya Sharma", "priya.sharma@studio.local", policy.RoleDataTeam, "Data Management", "Data Coordinator", "data123"},
	{"it1", "Tom Wilson", "tom.wilson@studio.local", policy.RoleITTeam, "IT", "Systems Engineer", "it123"},
	{"admin1", "Root Admin", "admin@studio.local", policy.RoleAdmin, "IT", "System Administrator", "admin123"},
}

func seedMain(_ *cobra.Command, args []string) error {
	if err := loadConfig(args[0]); err != nil {
		return err
	}
	configureLogging()

	db, err := store.Open(config.Database.Path, config.Database.PoolSize)
	if err != nil {
		return err
	}
	defer db.Close()

	created, skipped := 0, 0
	for _, account := range devAccounts {
		hash, err := auth.HashPassword(account.password)
		if err != nil {
			return fmt.Errorf("hashing password for %s: %w", account.username, err)
		}
		user := catalog.User{
			Username:     account.username,
			Email:        account.email,
			DisplayName:  account.displayName,
			Role:         account.role,
			Department:   account.department,
			Title:        account.title,
			PasswordHash: hash,
			Active:       true,
		}
		err = db.WithConn(context.Background(), func(conn *sqlite.Conn) error {
			return catalog.InsertUser(conn, &user)
		})
		var conflict *catalog.ConflictError
		switch {
		case err == nil:
			fmt.Printf("Created %-12s %-16s (%s)\n", account.username, account.role, account.displayName)
			created++
		case errors.As(err, &conflict):
			fmt.Printf("Skipped %-12s (already exists)\n", account.username)
			skipped++
		default:
			return fmt.Errorf("seeding %s: %w", account.username, err)
		}
	}
	fmt.Printf("%d account(s) created, %d skipped.\n", created, skipped)
	return nil
}
