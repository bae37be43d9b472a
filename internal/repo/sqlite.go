package repo

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS registrations (
    id                      INTEGER PRIMARY KEY AUTOINCREMENT,
    registration_id         TEXT NOT NULL UNIQUE,
    event_id                TEXT NOT NULL,
    event_name              TEXT NOT NULL,
    participant_name        TEXT NOT NULL,
    email                   TEXT NOT NULL,
    phone                   TEXT NOT NULL,
    college                 TEXT NOT NULL,
    roll_number             TEXT NOT NULL,
    team_members            TEXT,
    game_ids                TEXT,
    total_amount            REAL NOT NULL,
    payment_status          TEXT NOT NULL DEFAULT 'pending',
    transaction_id          TEXT NOT NULL DEFAULT '',
    merchant_transaction_id TEXT NOT NULL DEFAULT '',
    transaction_date        TIMESTAMP NOT NULL,
    payment_method          TEXT NOT NULL DEFAULT '',
    created_at              TIMESTAMP NOT NULL,
    updated_at              TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_registrations_event_id ON registrations (event_id, created_at);
`

// NewSQLiteRepository opens a single-file store for local runs. Use
// ":memory:" for a throwaway database.
func NewSQLiteRepository(path string, log *zerolog.Logger) (Repository, *sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// every new connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return newRepository(db, log), db, nil
}
