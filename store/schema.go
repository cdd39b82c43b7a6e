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

// The schema is applied as one idempotent script every time the store opens,
// so a fresh database and an existing one go through the same path. All
// timestamps are RFC3339 UTC strings; booleans are 0/1 integers.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL DEFAULT '',
	display_name  TEXT NOT NULL,
	role          TEXT NOT NULL,
	department    TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	active        INTEGER NOT NULL DEFAULT 1,
	last_login    TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transfers (
	id                    INTEGER PRIMARY KEY,
	reference             TEXT NOT NULL UNIQUE,
	name                  TEXT NOT NULL,
	description           TEXT NOT NULL DEFAULT '',
	category              TEXT NOT NULL DEFAULT 'general',
	priority              TEXT NOT NULL DEFAULT 'normal',
	status                TEXT NOT NULL DEFAULT 'uploaded',
	artist_id             INTEGER NOT NULL REFERENCES users(id),
	staging_path          TEXT NOT NULL DEFAULT '',
	production_path       TEXT,
	total_files           INTEGER NOT NULL DEFAULT 0,
	total_size_bytes      INTEGER NOT NULL DEFAULT 0,
	scan_result           TEXT,
	scan_passed           INTEGER,
	scan_started_at       TEXT,
	scan_completed_at     TEXT,
	transfer_started_at   TEXT,
	transfer_completed_at TEXT,
	transfer_verified     INTEGER,
	transfer_method       TEXT NOT NULL DEFAULT '',
	rejection_reason      TEXT,
	notes                 TEXT NOT NULL DEFAULT '',
	tags                  TEXT NOT NULL DEFAULT '[]',
	shotgrid_project_id   INTEGER,
	shotgrid_project_name TEXT,
	shotgrid_entity_type  TEXT,
	shotgrid_entity_id    INTEGER,
	shotgrid_entity_name  TEXT,
	shotgrid_task_id      INTEGER,
	shotgrid_version_id   INTEGER,
	submitted_at          TEXT,
	created_at            TEXT NOT NULL,
	updated_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transfer_files (
	id                INTEGER PRIMARY KEY,
	transfer_id       INTEGER NOT NULL REFERENCES transfers(id) ON DELETE CASCADE,
	filename          TEXT NOT NULL,
	original_path     TEXT NOT NULL DEFAULT '',
	size_bytes        INTEGER NOT NULL DEFAULT 0,
	checksum_sha256   TEXT NOT NULL DEFAULT '',
	checksum_verified INTEGER,
	virus_scan_status TEXT NOT NULL DEFAULT 'pending',
	virus_scan_detail TEXT NOT NULL DEFAULT '',
	uploaded_at       TEXT NOT NULL,
	UNIQUE (transfer_id, filename)
);

CREATE TABLE IF NOT EXISTS approvals (
	id            INTEGER PRIMARY KEY,
	transfer_id   INTEGER NOT NULL REFERENCES transfers(id),
	required_role TEXT NOT NULL,
	stage_order   INTEGER NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	approver_id   INTEGER REFERENCES users(id),
	comment       TEXT NOT NULL DEFAULT '',
	decided_at    TEXT,
	created_at    TEXT NOT NULL,
	UNIQUE (transfer_id, required_role)
);

CREATE TABLE IF NOT EXISTS transfer_history (
	id          INTEGER PRIMARY KEY,
	transfer_id INTEGER NOT NULL REFERENCES transfers(id),
	user_id     INTEGER REFERENCES users(id),
	action      TEXT NOT NULL,
	description TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id          INTEGER PRIMARY KEY,
	user_id     INTEGER NOT NULL REFERENCES users(id),
	transfer_id INTEGER REFERENCES transfers(id),
	type        TEXT NOT NULL,
	subject     TEXT NOT NULL,
	message     TEXT NOT NULL,
	read        INTEGER NOT NULL DEFAULT 0,
	email_sent  INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS queue_messages (
	id              INTEGER PRIMARY KEY,
	queue           TEXT NOT NULL,
	idempotency_key TEXT NOT NULL UNIQUE,
	kind            TEXT NOT NULL,
	payload         TEXT NOT NULL DEFAULT '{}',
	status          TEXT NOT NULL DEFAULT 'pending',
	attempts        INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT NOT NULL DEFAULT '',
	enqueued_at     TEXT NOT NULL,
	completed_at    TEXT
);

CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers (status);
CREATE INDEX IF NOT EXISTS idx_transfers_artist ON transfers (artist_id);
CREATE INDEX IF NOT EXISTS idx_transfer_files_transfer ON transfer_files (transfer_id);
CREATE INDEX IF NOT EXISTS idx_approvals_transfer ON approvals (transfer_id);
CREATE INDEX IF NOT EXISTS idx_history_transfer ON transfer_history (transfer_id);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, read);
CREATE INDEX IF NOT EXISTS idx_queue_pending ON queue_messages (queue, status, id);
`
