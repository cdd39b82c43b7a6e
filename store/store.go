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

// Package store owns the SQLite database underneath the pipeline: the
// connection pool, the schema, and the transaction discipline. Every state
// change in the system goes through WithTx, which opens an IMMEDIATE
// transaction so read-modify-write sequences are serialized by the single
// writer lock instead of by row locks the database doesn't have.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Store wraps the connection pool for the pipeline database.
type Store struct {
	pool *sqlitex.Pool
	path string
}

// Open opens (creating if needed) the database at the given path, applies
// the schema, and returns a store ready for use. poolSize bounds the number
// of simultaneous connections; SQLite allows many readers but only ever one
// writer.
func Open(path string, poolSize int) (*Store, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		Flags:    sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenWAL,
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			if err := sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys = on", nil); err != nil {
				return err
			}
			return sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout = 5000", nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	store := &Store{pool: pool, path: path}
	if err := store.applySchema(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema to %s: %w", path, err)
	}
	slog.Debug(fmt.Sprintf("Opened pipeline database %s (pool size %d).", path, poolSize))
	return store, nil
}

func (s *Store) applySchema(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return sqlitex.ExecuteScript(conn, schema, nil)
}

// Close shuts the pool down. Outstanding connections interrupt their work.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Path returns the filesystem path of the database file.
func (s *Store) Path() string {
	return s.path
}

// WithConn runs fn with a pooled connection outside any explicit
// transaction. Use it for single-statement reads and writes; multi-statement
// work belongs in WithTx.
func (s *Store) WithConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// WithTx runs fn inside a single IMMEDIATE transaction. The write lock is
// taken up front, so everything fn reads stays valid until the commit: a
// status checked at the top of fn cannot be changed by a competing request
// before fn's writes land. fn returning an error rolls the whole
// transaction back.
func (s *Store) WithTx(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteTransient(conn, "BEGIN IMMEDIATE", nil); err != nil {
		return err
	}
	if err := fn(conn); err != nil {
		if rbErr := sqlitex.ExecuteTransient(conn, "ROLLBACK", nil); rbErr != nil {
			slog.Error(fmt.Sprintf("Rolling back transaction: %s", rbErr.Error()))
		}
		return err
	}
	if err := sqlitex.ExecuteTransient(conn, "COMMIT", nil); err != nil {
		sqlitex.ExecuteTransient(conn, "ROLLBACK", nil)
		return err
	}
	return nil
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure, the
// signal the catalog turns into a conflict.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return sqlite.ErrCode(err) == sqlite.ResultConstraintUnique
}

// IsBusy reports whether err means the database was locked by another
// writer. Callers retry once and then give up with an unavailability error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	code := sqlite.ErrCode(err)
	return code == sqlite.ResultBusy || code == sqlite.ResultLocked
}
