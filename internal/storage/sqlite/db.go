// Package sqlite stores orders and the notification log in SQLite through
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout keeps a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// InitDB opens (or creates) the database at dsn and ensures the schema
// exists. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_key TEXT PRIMARY KEY,
			total INTEGER NOT NULL CHECK (total > 0),
			payment_method TEXT NOT NULL DEFAULT 'NONE',
			status TEXT NOT NULL DEFAULT 'CREATED',
			paid_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,

		`CREATE TABLE IF NOT EXISTS payment_notifications (
			id TEXT PRIMARY KEY,
			rail TEXT NOT NULL,
			external_id TEXT NOT NULL,
			order_key TEXT,
			amount INTEGER NOT NULL DEFAULT 0,
			signature_valid INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL,
			message TEXT NOT NULL,
			payload BLOB,
			delivery_count INTEGER NOT NULL DEFAULT 1,
			received_at TEXT NOT NULL,
			last_received_at TEXT NOT NULL,
			UNIQUE (rail, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_notifications_order_key ON payment_notifications(order_key)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Store implements the order store, the notification log and the admin
// reads on one database handle.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
