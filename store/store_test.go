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

package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
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
	TESTING_DIR, err = os.MkdirTemp(os.TempDir(), "databridge-store-tests-")
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

// opens a fresh database file under the testing directory
func openStore(t *testing.T) *Store {
	dbCount++
	path := filepath.Join(TESTING_DIR, fmt.Sprintf("store-%d.db", dbCount))
	s, err := Open(path, 4)
	assert.Nil(t, err, "Opening a fresh database produced an error.")
	return s
}

func insertUser(conn *sqlite.Conn, username string) error {
	return sqlitex.Execute(conn,
		`INSERT INTO users (username, display_name, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{username, "Test User", "artist", "2025-01-01T00:00:00Z", "2025-01-01T00:00:00Z"},
		})
}

func countUsers(t *testing.T, s *Store) int {
	var count int
	err := s.WithConn(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT COUNT(*) FROM users", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	assert.Nil(t, err, "Counting rows produced an error.")
	return count
}

// tests whether opening a database applies the schema and leaves it usable
func TestOpenAppliesSchema(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	err := s.WithConn(context.Background(), func(conn *sqlite.Conn) error {
		return insertUser(conn, "schema_check")
	})
	assert.Nil(t, err, "Inserting into a freshly created schema failed.")
	assert.Equal(t, 1, countUsers(t, s))
}

// tests whether a database file can be opened twice without damage
func TestOpenIsIdempotent(t *testing.T) {
	s := openStore(t)
	err := s.WithConn(context.Background(), func(conn *sqlite.Conn) error {
		return insertUser(conn, "survivor")
	})
	assert.Nil(t, err)
	path := s.Path()
	assert.Nil(t, s.Close())

	reopened, err := Open(path, 2)
	assert.Nil(t, err, "Reopening an existing database produced an error.")
	defer reopened.Close()
	assert.Equal(t, 1, countUsers(t, reopened), "Reopening the database lost a row.")
}

// tests whether WithTx commits on success
func TestWithTxCommits(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	err := s.WithTx(context.Background(), func(conn *sqlite.Conn) error {
		return insertUser(conn, "committed")
	})
	assert.Nil(t, err)
	assert.Equal(t, 1, countUsers(t, s))
}

// tests whether WithTx rolls everything back when the callback fails
func TestWithTxRollsBackOnError(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	boom := fmt.Errorf("deliberate failure")
	err := s.WithTx(context.Background(), func(conn *sqlite.Conn) error {
		if err := insertUser(conn, "doomed"); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err, "WithTx did not surface the callback's error.")
	assert.Equal(t, 0, countUsers(t, s), "A rolled-back insert is still visible.")
}

// tests whether a duplicate username is reported as a unique violation
func TestUniqueViolation(t *testing.T) {
	s := openStore(t)
	defer s.Close()

	ctx := context.Background()
	err := s.WithConn(ctx, func(conn *sqlite.Conn) error {
		return insertUser(conn, "twin")
	})
	assert.Nil(t, err)
	err = s.WithConn(ctx, func(conn *sqlite.Conn) error {
		return insertUser(conn, "twin")
	})
	assert.NotNil(t, err, "A duplicate username was accepted.")
	assert.True(t, IsUniqueViolation(err), "A duplicate username was not a unique violation.")
	assert.False(t, IsBusy(err))
	assert.False(t, IsUniqueViolation(nil))
}
