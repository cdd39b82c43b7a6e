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

// Package journal keeps the permanent delivery ledger: one record per
// transfer that ran the delivery pipeline to a terminal outcome, plus the
// manifest of everything a successful delivery placed in production. The
// ledger lives in its own bbolt file, separate from the operational catalog,
// so it survives catalog resets and can be archived on its own schedule.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/frictionlessdata/datapackage-go/datapackage"
	"github.com/frictionlessdata/datapackage-go/validator"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/databridge-io/databridge/policy"
)

// a record storing the outcome of one pipeline run
type Record struct {
	// UUID assigned when the outcome is journaled
	Id uuid.UUID `json:"id"`
	// the transfer's reference ("TRF-00042")
	Reference string `json:"reference"`
	// username of the artist who submitted the transfer
	Artist string `json:"artist"`
	// terminal status the transfer settled in
	Status policy.Status `json:"status"`
	// size of the transfer's payload in bytes
	PayloadSize int64 `json:"payload_size"`
	// number of files in the transfer's payload
	NumFiles int `json:"num_files"`
	// times at which the pipeline picked the transfer up and settled it
	StartTime time.Time `json:"start_time"`
	StopTime  time.Time `json:"stop_time"`
	// manifest of the delivered payload (stored separate from the record,
	// present only for delivered transfers)
	Manifest *datapackage.Package `json:"-"`
}

// SizeDisplay renders the payload size for humans ("1.5 GB").
func (r Record) SizeDisplay() string {
	return humanize.Bytes(uint64(r.PayloadSize))
}

const (
	transfersBucket = "transfers"
	manifestsBucket = "manifests"
)

// records are keyed by their stop time; the fixed-width layout makes
// bbolt's lexicographic key order chronological
const keyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// A Journal owns one ledger file. The bbolt handle lives on a dedicated
// goroutine so a crash there never takes the service down with it; callers
// talk to it through request channels.
type Journal struct {
	appends  chan appendRequest
	fetches  chan fetchRequest
	shutdown chan chan error

	// guards closed and orders requests onto the goroutine
	mutex  sync.Mutex
	closed bool
}

type appendRequest struct {
	record Record
	reply  chan error
}

type fetchRequest struct {
	start, stop time.Time
	reply       chan fetchReply
}

type fetchReply struct {
	records []Record
	err     error
}

// Open opens (creating if needed) the ledger at the given path and starts
// its goroutine.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, &CantOpenError{Message: err.Error()}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucketName := range []string{transfersBucket, manifestsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucketName)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &CantOpenError{Message: err.Error()}
	}

	journal := &Journal{
		appends:  make(chan appendRequest),
		fetches:  make(chan fetchRequest),
		shutdown: make(chan chan error),
	}
	go journal.serve(db)
	return journal, nil
}

// IsOpen reports whether the journal still accepts requests.
func (j *Journal) IsOpen() bool {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return !j.closed
}

// Close flushes and closes the ledger file. Further calls are no-ops.
func (j *Journal) Close() error {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true

	reply := make(chan error)
	j.shutdown <- reply
	if err := <-reply; err != nil {
		return &CantCloseError{Message: err.Error()}
	}
	return nil
}

// Append journals one settled transfer. Only terminal outcomes belong in
// the ledger; anything else is refused.
func (j *Journal) Append(record Record) error {
	if !record.Status.Terminal() {
		return &NewRecordError{
			Id:      record.Id,
			Message: fmt.Sprintf("Invalid status: %s", record.Status),
		}
	}

	j.mutex.Lock()
	defer j.mutex.Unlock()
	if j.closed {
		return &NotOpenError{}
	}

	reply := make(chan error)
	j.appends <- appendRequest{record: record, reply: reply}
	return <-reply
}

// Records retrieves the records of transfers that settled within the given
// (inclusive) time range, oldest first.
func (j *Journal) Records(start, stop time.Time) ([]Record, error) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if j.closed {
		return nil, &NotOpenError{}
	}

	reply := make(chan fetchReply)
	j.fetches <- fetchRequest{start: start, stop: stop, reply: reply}
	result := <-reply
	return result.records, result.err
}

// serve owns the bbolt handle until shutdown.
func (j *Journal) serve(db *bolt.DB) {
	for {
		select {
		case request := <-j.appends:
			request.reply <- appendRecord(db, request.record)

		case request := <-j.fetches:
			records, err := fetchRecords(db, request.start, request.stop)
			request.reply <- fetchReply{records: records, err: err}

		case reply := <-j.shutdown:
			reply <- db.Close()
			return
		}
	}
}

func appendRecord(db *bolt.DB, record Record) error {
	encoded, err := json.Marshal(&record)
	if err != nil {
		return &NewRecordError{Id: record.Id, Message: err.Error()}
	}
	key := []byte(record.StopTime.UTC().Format(keyLayout))

	return db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(transfersBucket)).Put(key, encoded); err != nil {
			return err
		}

		// delivered transfers also store their manifest, indexed by UUID
		if record.Manifest != nil {
			manifest, err := json.Marshal(record.Manifest.Descriptor())
			if err != nil {
				return &NewRecordError{Id: record.Id, Message: err.Error()}
			}
			return tx.Bucket([]byte(manifestsBucket)).Put([]byte(record.Id.String()), manifest)
		}
		return nil
	})
}

func fetchRecords(db *bolt.DB, start, stop time.Time) ([]Record, error) {
	records := make([]Record, 0)
	err := db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(transfersBucket)).Cursor()

		first := []byte(start.UTC().Format(keyLayout))
		last := []byte(stop.UTC().Format(keyLayout))

		for key, value := cursor.Seek(first); key != nil && bytes.Compare(key, last) <= 0; key, value = cursor.Next() {
			var record Record
			if err := json.Unmarshal(value, &record); err != nil {
				return err
			}
			records = append(records, record)
		}

		// reattach manifests; failed outcomes legitimately have none
		manifests := tx.Bucket([]byte(manifestsBucket))
		for i := range records {
			raw := manifests.Get([]byte(records[i].Id.String()))
			if raw == nil {
				continue
			}
			manifest, err := datapackage.FromString(string(raw), "manifest.json",
				validator.InMemoryLoader())
			if err != nil {
				return &InvalidRecordError{Id: records[i].Id, Message: err.Error()}
			}
			records[i].Manifest = manifest
		}
		return nil
	})

	return records, err
}
