package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	fetched     INTEGER NOT NULL DEFAULT 0,
	replied     INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS replies (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	message_id    TEXT NOT NULL DEFAULT '',
	uid           INTEGER NOT NULL DEFAULT 0,
	sender        TEXT NOT NULL DEFAULT '',
	subject       TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	summary_error TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_replies_run_id ON replies(run_id);
CREATE INDEX IF NOT EXISTS idx_replies_message_id ON replies(message_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
