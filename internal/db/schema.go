package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS cards (
    id              INTEGER PRIMARY KEY,
    name            TEXT NOT NULL,
    category        TEXT NOT NULL CHECK (category IN ('pokemon', 'trainer', 'energy')),
    details         TEXT NOT NULL DEFAULT '{}',
    set_code        TEXT,
    image_url       TEXT,
    estimated_value TEXT NOT NULL DEFAULT '0',
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS collection (
    user_id   INTEGER NOT NULL REFERENCES users(id),
    card_id   INTEGER NOT NULL REFERENCES cards(id),
    quantity  INTEGER NOT NULL CHECK (quantity > 0),
    for_trade INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, card_id)
);

CREATE INDEX IF NOT EXISTS idx_collection_for_trade
    ON collection(card_id) WHERE for_trade = 1;

CREATE TABLE IF NOT EXISTS trade_sessions (
    id                  TEXT PRIMARY KEY,
    room_code           TEXT NOT NULL UNIQUE,
    initiator_id        INTEGER NOT NULL REFERENCES users(id),
    receiver_id         INTEGER NOT NULL REFERENCES users(id),
    trade_type          TEXT NOT NULL CHECK (trade_type IN ('public', 'private')),
    requested_card_id   INTEGER REFERENCES cards(id),
    constrained_user_id INTEGER REFERENCES users(id),
    initiator_card_id   INTEGER REFERENCES cards(id),
    initiator_value     TEXT,
    receiver_card_id    INTEGER REFERENCES cards(id),
    receiver_value      TEXT,
    initiator_confirmed INTEGER NOT NULL DEFAULT 0,
    receiver_confirmed  INTEGER NOT NULL DEFAULT 0,
    status              TEXT NOT NULL DEFAULT 'pending'
                        CHECK (status IN ('pending', 'accepted', 'rejected', 'completed', 'cancelled')),
    value_diff_pct      TEXT,
    version             INTEGER NOT NULL DEFAULT 1,
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at        DATETIME
);

CREATE TABLE IF NOT EXISTS trade_requests (
    id                TEXT PRIMARY KEY,
    from_user_id      INTEGER NOT NULL REFERENCES users(id),
    to_user_id        INTEGER NOT NULL REFERENCES users(id),
    requested_card_id INTEGER REFERENCES cards(id),
    offered_card_id   INTEGER REFERENCES cards(id),
    offered_name      TEXT,
    offered_image     TEXT,
    offered_price     TEXT,
    target_price      TEXT,
    note              TEXT,
    status            TEXT NOT NULL DEFAULT 'pending'
                      CHECK (status IN ('pending', 'accepted', 'rejected', 'cancelled', 'completed')),
    session_id        TEXT REFERENCES trade_sessions(id) ON DELETE SET NULL,
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at       DATETIME,
    CHECK (from_user_id <> to_user_id),
    CHECK (requested_card_id IS NOT NULL OR offered_card_id IS NOT NULL)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_trade_requests_pending
    ON trade_requests(from_user_id, to_user_id, IFNULL(requested_card_id, 0))
    WHERE status = 'pending';

CREATE INDEX IF NOT EXISTS idx_trade_requests_finished
    ON trade_requests(finished_at) WHERE finished_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS trades (
    id                INTEGER PRIMARY KEY,
    session_id        TEXT,
    request_id        TEXT,
    initiator_id      INTEGER NOT NULL REFERENCES users(id),
    receiver_id       INTEGER NOT NULL REFERENCES users(id),
    initiator_card_id INTEGER NOT NULL REFERENCES cards(id),
    receiver_card_id  INTEGER NOT NULL REFERENCES cards(id),
    initiator_value   TEXT NOT NULL,
    receiver_value    TEXT NOT NULL,
    value_diff_pct    TEXT NOT NULL,
    completed_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
