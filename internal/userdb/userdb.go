// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package userdb persists per-user bot state in a SQLite database.
package userdb

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// DB is a handle to the user records database.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tarot_draws (
			username TEXT NOT NULL,
			day TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (username, day)
		);
	`); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// day keys are calendar dates in the bot's local time.
func dayKey(t time.Time) string { return t.Format("2006-01-02") }

// TarotDraws reports how many tarot draws the user made on the calendar
// day of now.
func (d *DB) TarotDraws(ctx context.Context, username string, now time.Time) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT count FROM tarot_draws WHERE username = ? AND day = ?;
	`, username, dayKey(now)).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RecordTarotDraw increments the user's draw count for the calendar day
// of now.
func (d *DB) RecordTarotDraw(ctx context.Context, username string, now time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO tarot_draws (username, day, count)
		VALUES (?, ?, 1)
		ON CONFLICT (username, day) DO UPDATE
		SET count = count + 1;
	`, username, dayKey(now))
	return err
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
