package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS letters (
            id UUID PRIMARY KEY,
            sender_id TEXT NOT NULL,
            recipient_id TEXT,
            status TEXT NOT NULL,
            body TEXT NOT NULL DEFAULT '',
            unlocks_at TIMESTAMPTZ NOT NULL,
            opened_at TIMESTAMPTZ,
            is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
            reveal_delay_seconds INT NOT NULL DEFAULT 0,
            reveal_at TIMESTAMPTZ,
            sender_revealed_at TIMESTAMPTZ,
            deleted_at TIMESTAMPTZ,
            expires_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_letters_due_unlock
            ON letters (unlocks_at) WHERE status = 'sealed' AND deleted_at IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_letters_due_reveal
            ON letters (reveal_at) WHERE is_anonymous AND sender_revealed_at IS NULL AND deleted_at IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_letters_recipient ON letters (recipient_id);`,
		`CREATE TABLE IF NOT EXISTS connections (
            user_a TEXT NOT NULL,
            user_b TEXT NOT NULL,
            connected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (user_a, user_b),
            CHECK (user_a < user_b)
        );`,
		`CREATE TABLE IF NOT EXISTS contacts (
            owner_id TEXT NOT NULL,
            contact_id TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (owner_id, contact_id)
        );`,
		`CREATE TABLE IF NOT EXISTS connection_requests (
            id UUID PRIMARY KEY,
            from_user TEXT NOT NULL,
            to_user TEXT NOT NULL,
            status TEXT NOT NULL,
            message TEXT,
            reason TEXT,
            declined_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_pending_request
            ON connection_requests (from_user, to_user) WHERE status = 'pending';`,
		`CREATE INDEX IF NOT EXISTS idx_requests_daily
            ON connection_requests (from_user, created_at);`,
		`CREATE TABLE IF NOT EXISTS letter_invites (
            id UUID PRIMARY KEY,
            letter_id UUID NOT NULL UNIQUE REFERENCES letters(id) ON DELETE CASCADE,
            token TEXT NOT NULL UNIQUE,
            claimed_at TIMESTAMPTZ,
            claimed_by TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Info().Msg("database migrations applied")
	return nil
}
