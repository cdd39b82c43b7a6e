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

package auth

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/store"
)

// An Authenticator validates a username and password and yields the account
// on success. The production deployment points this at the studio
// directory; everywhere else the fallback checks the seeded local accounts.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (catalog.User, error)
}

// NewAuthenticator picks the authenticator for the current configuration.
// Directory-server authentication is deployed as a sidecar in front of this
// service; the binary itself always verifies against local accounts, and
// says so when the config asks for more.
func NewAuthenticator(db *store.Store) Authenticator {
	if config.Auth.LDAP.Enabled {
		slog.Warn(fmt.Sprintf("LDAP is configured (%s) but not compiled in; using fallback authentication.",
			config.Auth.LDAP.Host))
	}
	return &fallbackAuthenticator{db: db}
}

// fallbackAuthenticator checks credentials against the bcrypt hashes on the
// local user rows.
type fallbackAuthenticator struct {
	db *store.Store
}

func (a *fallbackAuthenticator) Authenticate(ctx context.Context,
	username, password string) (catalog.User, error) {

	var user catalog.User
	err := a.db.WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		user, err = catalog.UserByUsername(conn, username)
		return err
	})
	if err != nil {
		// do not leak whether the account exists
		return catalog.User{}, &InvalidCredentialsError{}
	}
	if !user.Active {
		return catalog.User{}, &InactiveUserError{Username: username}
	}
	if user.PasswordHash == "" {
		return catalog.User{}, &InvalidCredentialsError{}
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return catalog.User{}, &InvalidCredentialsError{}
	}
	return user, nil
}

// HashPassword produces the bcrypt hash stored on fallback accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
