package ledger

// schema creates the three relations if they are missing. It is not a migration tool:
// existing tables are left untouched.
const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	party       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	image       TEXT NOT NULL DEFAULT '',
	votes       INTEGER NOT NULL DEFAULT 0 CHECK (votes >= 0)
);

CREATE TABLE IF NOT EXISTS voters (
	cnp       CHAR(13) PRIMARY KEY CHECK (cnp ~ '^[0-9]{13}$'),
	password  TEXT NOT NULL,
	has_voted BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS fake_news (
	id          UUID PRIMARY KEY,
	voter_cnp   CHAR(13) NOT NULL REFERENCES voters (cnp),
	candidate   TEXT NOT NULL,
	is_positive BOOLEAN NOT NULL,
	news_text   TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (voter_cnp, news_text)
);

CREATE INDEX IF NOT EXISTS fake_news_voter_created_idx ON fake_news (voter_cnp, created_at);
`
