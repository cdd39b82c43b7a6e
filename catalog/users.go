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
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/store"
)

// User is an account in the pipeline. Accounts come from the authenticator
// (LDAP in production, the seeded fallback elsewhere) and are upserted on
// login; PasswordHash is only set for fallback accounts.
type User struct {
	ID           int64
	Username     string
	Email        string
	DisplayName  string
	Role         policy.Role
	Department   string
	Title        string
	PasswordHash string
	Active       bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func scanUser(stmt *sqlite.Stmt) User {
	return User{
		ID:           stmt.GetInt64("id"),
		Username:     stmt.GetText("username"),
		Email:        stmt.GetText("email"),
		DisplayName:  stmt.GetText("display_name"),
		Role:         policy.Role(stmt.GetText("role")),
		Department:   stmt.GetText("department"),
		Title:        stmt.GetText("title"),
		PasswordHash: stmt.GetText("password_hash"),
		Active:       stmt.GetInt64("active") != 0,
		LastLogin:    getTimePtr(stmt, "last_login"),
		CreatedAt:    getTime(stmt, "created_at"),
		UpdatedAt:    getTime(stmt, "updated_at"),
	}
}

// InsertUser adds a new account and fills in its id and timestamps. A
// username collision becomes a ConflictError.
func InsertUser(conn *sqlite.Conn, user *User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	err := sqlitex.Execute(conn,
		`INSERT INTO users (username, email, display_name, role, department,
		                    title, password_hash, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				user.Username, user.Email, user.DisplayName, user.Role.String(),
				user.Department, user.Title, user.PasswordHash, boolArg(user.Active),
				formatTime(now), formatTime(now),
			},
		})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return &ConflictError{Detail: "Username '" + user.Username + "' is already taken"}
		}
		return err
	}
	user.ID = conn.LastInsertRowID()
	return nil
}

// UpdateUser rewrites an account's mutable fields.
func UpdateUser(conn *sqlite.Conn, user *User) error {
	user.UpdatedAt = time.Now().UTC()
	err := sqlitex.Execute(conn,
		`UPDATE users SET email = ?, display_name = ?, role = ?, department = ?,
		                  title = ?, password_hash = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				user.Email, user.DisplayName, user.Role.String(), user.Department,
				user.Title, user.PasswordHash, boolArg(user.Active),
				formatTime(user.UpdatedAt), user.ID,
			},
		})
	if err != nil {
		return err
	}
	if conn.Changes() == 0 {
		return &NotFoundError{Entity: "user", Key: user.ID}
	}
	return nil
}

// TouchLastLogin records a successful login.
func TouchLastLogin(conn *sqlite.Conn, id int64, when time.Time) error {
	return sqlitex.Execute(conn,
		"UPDATE users SET last_login = ? WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{formatTime(when), id}})
}

// UserByID looks an account up by id.
func UserByID(conn *sqlite.Conn, id int64) (User, error) {
	var user User
	found := false
	err := sqlitex.Execute(conn, "SELECT * FROM users WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				user = scanUser(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, &NotFoundError{Entity: "user", Key: id}
	}
	return user, nil
}

// UserByUsername looks an account up by its unique username.
func UserByUsername(conn *sqlite.Conn, username string) (User, error) {
	var user User
	found := false
	err := sqlitex.Execute(conn, "SELECT * FROM users WHERE username = ?",
		&sqlitex.ExecOptions{
			Args: []any{username},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				user = scanUser(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, &NotFoundError{Entity: "user", Key: username}
	}
	return user, nil
}

// Users lists every account, ordered by username.
func Users(conn *sqlite.Conn) ([]User, error) {
	var users []User
	err := sqlitex.Execute(conn, "SELECT * FROM users ORDER BY username",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				users = append(users, scanUser(stmt))
				return nil
			},
		})
	return users, err
}

// UsersByRole lists the active accounts holding any of the given roles,
// the audience for role-addressed notifications.
func UsersByRole(conn *sqlite.Conn, roles ...policy.Role) ([]User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(roles))
	args := make([]any, len(roles))
	for i, role := range roles {
		placeholders[i] = "?"
		args[i] = role.String()
	}
	query := "SELECT * FROM users WHERE active = 1 AND role IN (" +
		strings.Join(placeholders, ", ") + ") ORDER BY id"
	var users []User
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			users = append(users, scanUser(stmt))
			return nil
		},
	})
	return users, err
}
