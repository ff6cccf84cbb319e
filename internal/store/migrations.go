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

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id                TEXT PRIMARY KEY,
	owner_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	folder            TEXT NOT NULL,
	from_addr         TEXT NOT NULL,
	from_name         TEXT NOT NULL DEFAULT '',
	to_addrs          TEXT NOT NULL DEFAULT '[]',
	cc_addrs          TEXT NOT NULL DEFAULT '[]',
	bcc_addrs         TEXT NOT NULL DEFAULT '[]',
	subject           TEXT NOT NULL DEFAULT '',
	body              TEXT NOT NULL DEFAULT '',
	is_read           INTEGER NOT NULL DEFAULT 0,
	is_starred        INTEGER NOT NULL DEFAULT 0,
	thread_id         TEXT NOT NULL DEFAULT '',
	message_id_header TEXT NOT NULL DEFAULT '',
	sent_at           DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_messages_owner_folder ON messages(owner_id, folder, sent_at);
CREATE INDEX IF NOT EXISTS idx_messages_owner_starred ON messages(owner_id, is_starred);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
