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

// Package catalog is the typed face of the pipeline database: entity structs
// and the functions that read and write them. Every function takes the
// connection it runs on, so a caller composing several of them inside
// store.WithTx gets one serializable transaction with no hidden connection
// juggling.
package catalog

import (
	"time"

	"zombiezen.com/go/sqlite"
)

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime trusts the stored value; the catalog wrote it with formatTime.
func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func isNull(stmt *sqlite.Stmt, col string) bool {
	return stmt.ColumnType(stmt.ColumnIndex(col)) == sqlite.TypeNull
}

func getTime(stmt *sqlite.Stmt, col string) time.Time {
	return parseTime(stmt.GetText(col))
}

func getTimePtr(stmt *sqlite.Stmt, col string) *time.Time {
	if isNull(stmt, col) {
		return nil
	}
	t := parseTime(stmt.GetText(col))
	return &t
}

func getInt64Ptr(stmt *sqlite.Stmt, col string) *int64 {
	if isNull(stmt, col) {
		return nil
	}
	v := stmt.GetInt64(col)
	return &v
}

func getBoolPtr(stmt *sqlite.Stmt, col string) *bool {
	if isNull(stmt, col) {
		return nil
	}
	v := stmt.GetInt64(col) != 0
	return &v
}

// bind helpers: empty strings and nil pointers become SQL NULL

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	if *v {
		return 1
	}
	return 0
}

func boolArg(v bool) any {
	if v {
		return 1
	}
	return 0
}
