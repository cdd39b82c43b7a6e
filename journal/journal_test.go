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

package journal

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/frictionlessdata/datapackage-go/datapackage"
	"github.com/frictionlessdata/datapackage-go/validator"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/databridge-io/databridge/policy"
)

// temporary testing directory
var TESTING_DIR string

// performs testing setup
func setup() {
	log.Print("Creating testing directory...\n")
	var err error
	TESTING_DIR, err = os.MkdirTemp(os.TempDir(), "databridge-journal-tests-")
	if err != nil {
		log.Panicf("Couldn't create testing directory: %s", err)
	}
}

// performs testing breakdown
func breakdown() {
	if TESTING_DIR != "" {
		log.Printf("Deleting testing directory %s...\n", TESTING_DIR)
		os.RemoveAll(TESTING_DIR)
	}
}

// opens a fresh ledger for a single test
func openJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(TESTING_DIR, strings.ToLower(t.Name())+".db")
	journal, err := Open(path)
	assert.Nil(t, err, "Opening the test journal should succeed.")
	t.Cleanup(func() { journal.Close() })
	return journal
}

// builds a small valid manifest for round-trip tests
func testManifest(t *testing.T) *datapackage.Package {
	t.Helper()
	descriptor := map[string]any{
		"name":    "trf-00001",
		"profile": "data-package",
		"resources": []any{
			map[string]any{
				"name":  "render_0001.exr",
				"path":  "render_0001.exr",
				"bytes": 512,
				"hash":  "sha256:1f2a",
			},
		},
	}
	manifest, err := datapackage.New(descriptor, ".", validator.InMemoryLoader())
	assert.Nil(t, err, "Building the test manifest should succeed.")
	return manifest
}

func TestOpenAndClose(t *testing.T) {
	path := filepath.Join(TESTING_DIR, "open_and_close.db")
	journal, err := Open(path)
	assert.Nil(t, err)
	assert.True(t, journal.IsOpen(), "A freshly opened journal should be open.")

	assert.Nil(t, journal.Close(), "Closing the journal should succeed.")
	assert.False(t, journal.IsOpen(), "A closed journal should report closed.")
	assert.Nil(t, journal.Close(), "A second close should be a no-op.")

	err = journal.Append(Record{Id: uuid.New(), Status: policy.StatusTransferred})
	assert.IsType(t, &NotOpenError{}, err, "Appending after close should be refused.")
}

func TestAppendRejectsActiveStatus(t *testing.T) {
	journal := openJournal(t)

	err := journal.Append(Record{
		Id:     uuid.New(),
		Status: policy.StatusScanning,
	})
	assert.IsType(t, &NewRecordError{}, err,
		"Only terminal outcomes belong in the ledger.")
}

func TestAppendAndFetch(t *testing.T) {
	journal := openJournal(t)
	manifest := testManifest(t)

	delivered := Record{
		Id:          uuid.New(),
		Reference:   "TRF-00001",
		Artist:      "artist1",
		Status:      policy.StatusTransferred,
		PayloadSize: 1536,
		NumFiles:    3,
		StartTime:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		StopTime:    time.Date(2026, 3, 14, 9, 15, 0, 0, time.UTC),
		Manifest:    manifest,
	}
	failed := Record{
		Id:          uuid.New(),
		Reference:   "TRF-00002",
		Artist:      "artist2",
		Status:      policy.StatusScanFailed,
		PayloadSize: 64,
		NumFiles:    1,
		StartTime:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		StopTime:    time.Date(2026, 3, 14, 10, 1, 0, 0, time.UTC),
	}
	assert.Nil(t, journal.Append(delivered), "Journaling a delivery should succeed.")
	assert.Nil(t, journal.Append(failed), "Journaling a failure should succeed.")

	records, err := journal.Records(
		time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.Nil(t, err, "Fetching journal records should succeed.")
	assert.Len(t, records, 2)

	// records come back oldest first
	assert.Equal(t, delivered.Id, records[0].Id)
	assert.Equal(t, delivered.Reference, records[0].Reference)
	assert.Equal(t, delivered.Artist, records[0].Artist)
	assert.Equal(t, delivered.Status, records[0].Status)
	assert.Equal(t, delivered.PayloadSize, records[0].PayloadSize)
	assert.Equal(t, delivered.NumFiles, records[0].NumFiles)
	assert.Equal(t, delivered.StartTime, records[0].StartTime)
	assert.Equal(t, delivered.StopTime, records[0].StopTime)
	assert.NotNil(t, records[0].Manifest, "A delivery should carry its manifest.")
	assert.Equal(t, manifest.ResourceNames(), records[0].Manifest.ResourceNames())

	assert.Equal(t, failed.Id, records[1].Id)
	assert.Nil(t, records[1].Manifest, "A failed run journals no manifest.")
}

func TestRecordsWindow(t *testing.T) {
	journal := openJournal(t)

	for day := 1; day <= 3; day++ {
		err := journal.Append(Record{
			Id:        uuid.New(),
			Reference: "TRF-0000" + string(rune('0'+day)),
			Status:    policy.StatusScanFailed,
			StopTime:  time.Date(2026, 4, day, 12, 0, 0, 0, time.UTC),
		})
		assert.Nil(t, err)
	}

	records, err := journal.Records(
		time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 2, 23, 59, 59, 0, time.UTC))
	assert.Nil(t, err)
	assert.Len(t, records, 1, "Only the middle day should fall in the window.")
	assert.Equal(t, "TRF-00002", records[0].Reference)
}

func TestRecordsToleratesMissingManifest(t *testing.T) {
	journal := openJournal(t)

	// a delivery journaled without a manifest (manifest generation can fail
	// without failing the delivery) must still be readable
	record := Record{
		Id:        uuid.New(),
		Reference: "TRF-00009",
		Status:    policy.StatusTransferred,
		StopTime:  time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	assert.Nil(t, journal.Append(record))

	records, err := journal.Records(
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC))
	assert.Nil(t, err, "A missing manifest should not fail the fetch.")
	assert.Len(t, records, 1)
	assert.Nil(t, records[0].Manifest)
}

// This runs setup, runs all tests, and does breakdown.
func TestMain(m *testing.M) {
	var status int
	setup()
	status = m.Run()
	breakdown()
	os.Exit(status)
}
