package sqlstore

import (
	"context"

	"github.com/pkg/errors"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS books (
		id BIGSERIAL PRIMARY KEY,
		external_id BIGINT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL CHECK (price >= 0),
		stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
		available_quantity INTEGER NOT NULL CHECK (available_quantity >= 0),
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		book_id BIGINT NOT NULL REFERENCES books(id),
		rental_days INTEGER NOT NULL CHECK (rental_days > 0),
		start_date DATE NOT NULL,
		expected_return_date DATE NOT NULL,
		actual_return_date DATE,
		daily_rate NUMERIC NOT NULL,
		total_fee NUMERIC NOT NULL,
		late_fee NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL CHECK (status IN ('ACTIVE','RETURNED')),
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_user_id ON reservations(user_id);`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_book_id ON reservations(book_id);`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_status_due ON reservations(status, expected_return_date);`,
}

// SQLite keeps dates, timestamps and money as TEXT so values round-trip
// exactly and YYYY-MM-DD dates compare lexically.
var sqliteSchema = []string{
	`PRAGMA foreign_keys = ON;`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id INTEGER NOT NULL UNIQUE,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
		available_quantity INTEGER NOT NULL CHECK (available_quantity >= 0),
		created_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		book_id INTEGER NOT NULL REFERENCES books(id),
		rental_days INTEGER NOT NULL CHECK (rental_days > 0),
		start_date TEXT NOT NULL,
		expected_return_date TEXT NOT NULL,
		actual_return_date TEXT,
		daily_rate TEXT NOT NULL,
		total_fee TEXT NOT NULL,
		late_fee TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL CHECK (status IN ('ACTIVE','RETURNED')),
		created_at TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_user_id ON reservations(user_id);`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_book_id ON reservations(book_id);`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_status_due ON reservations(status, expected_return_date);`,
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := postgresSchema
	if d.sqlite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}
