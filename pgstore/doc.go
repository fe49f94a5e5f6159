// Package pgstore is a PostgreSQL-backed PrincipalProvider built on pgx.
//
// It expects a principals table:
//
//	CREATE TABLE principals (
//	    id            TEXT PRIMARY KEY,
//	    email         TEXT NOT NULL UNIQUE,
//	    full_name     TEXT NOT NULL DEFAULT '',
//	    password_hash TEXT NOT NULL,
//	    role          TEXT NOT NULL,
//	    active        BOOLEAN NOT NULL DEFAULT TRUE,
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
//
// Schema management stays with the caller; this package only reads and
// writes rows.
package pgstore
