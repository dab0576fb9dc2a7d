// Package database stores run receipts in SQLite.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/TobiSchelling/MarketBrief/internal/logging"
)

// FileName is the database file inside the data directory.
const FileName = "marketbrief.db"

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
	log  logrus.FieldLogger
}

// Open creates or opens a SQLite database at the given path and applies
// pending migrations. A nil log discards output.
func Open(dbPath string, log logrus.FieldLogger) (*DB, error) {
	if log == nil {
		log = logging.Discard()
	}
	log = log.WithField("component", "database")

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the server and a triggered run.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn, log); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath, log: log}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
