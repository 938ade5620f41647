package store

// schemaVersion is recorded in PRAGMA user_version.
const schemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id        TEXT PRIMARY KEY,
		tree_id       TEXT NOT NULL,
		version       TEXT NOT NULL,
		source_format TEXT NOT NULL DEFAULT '',
		source_hash   TEXT NOT NULL DEFAULT '',
		source_blake3 TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS people (
		run_id       TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		person_id    TEXT NOT NULL,
		position     INTEGER NOT NULL,
		sex          TEXT NOT NULL CHECK (sex IN ('M', 'F', 'X')),
		full_name    TEXT NOT NULL,
		pre_names    TEXT NOT NULL,
		given_names  TEXT NOT NULL,
		sur_name     TEXT NOT NULL,
		alias_names  TEXT NOT NULL,
		born         INTEGER,
		died         INTEGER,
		father       TEXT NOT NULL DEFAULT '',
		mother       TEXT NOT NULL DEFAULT '',
		child_number INTEGER NOT NULL DEFAULT 0,
		source       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS marriages (
		run_id     TEXT NOT NULL,
		person_id  TEXT NOT NULL,
		slot       INTEGER NOT NULL CHECK (slot >= 1),
		partner_id TEXT NOT NULL,
		PRIMARY KEY (run_id, person_id, slot),
		FOREIGN KEY (run_id, person_id) REFERENCES people(run_id, person_id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS children (
		run_id    TEXT NOT NULL,
		person_id TEXT NOT NULL,
		slot      INTEGER NOT NULL CHECK (slot >= 1),
		child_id  TEXT NOT NULL,
		PRIMARY KEY (run_id, person_id, slot),
		FOREIGN KEY (run_id, person_id) REFERENCES people(run_id, person_id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS identities (
		run_id    TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		person_id TEXT NOT NULL,
		seq       INTEGER NOT NULL,
		state     TEXT NOT NULL CHECK (state IN ('mentioned', 'exists')),
		PRIMARY KEY (run_id, person_id)
	)`,
	`CREATE INDEX IF NOT EXISTS identities_state ON identities (run_id, state, seq)`,
}
