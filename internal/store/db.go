// Package store is the persistent, authoritative record of owned stock
// rows and their accounting. It is backed by SQLite via the pure-Go
// modernc.org/sqlite driver, with schema evolution by idempotent additive
// migrations — never dropping or renaming a column.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wfm-pricer/internal/logger"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection.
type Store struct {
	sql *sql.DB
}

func dbPath(dataDir string) string {
	if dataDir == "" {
		dataDir = "."
	}
	return filepath.Join(dataDir, "stock.db")
}

// Open opens (or creates) the SQLite database under dataDir and runs
// migrations.
func Open(dataDir string) (*Store, error) {
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	path := dbPath(dataDir)
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("Store", fmt.Sprintf("opened %s", path))
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

// SqlDB exposes the underlying *sql.DB for collaborators that need raw
// query access (e.g. an embedding debug surface).
func (s *Store) SqlDB() *sql.DB {
	return s.sql
}

func (s *Store) migrate() error {
	version := 0
	s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS config (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS stock_item (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				wfm_id        TEXT NOT NULL,
				url           TEXT NOT NULL,
				name          TEXT NOT NULL,
				sub_type      TEXT,
				price         REAL NOT NULL DEFAULT 0,
				minimum_price INTEGER,
				listed_price  INTEGER,
				price_history TEXT NOT NULL DEFAULT '[]',
				owned         INTEGER NOT NULL DEFAULT 1,
				hidden        INTEGER NOT NULL DEFAULT 0,
				status        TEXT NOT NULL DEFAULT 'pending',
				created       TEXT NOT NULL
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_item_url_subtype
				ON stock_item(url, COALESCE(sub_type, ''));

			CREATE TABLE IF NOT EXISTS stock_riven (
				id       INTEGER PRIMARY KEY AUTOINCREMENT,
				wfm_id   TEXT NOT NULL,
				name     TEXT NOT NULL,
				attrs    TEXT NOT NULL DEFAULT '[]',
				price    REAL NOT NULL DEFAULT 0,
				owned    INTEGER NOT NULL DEFAULT 1,
				created  TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS "transaction" (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				stock_id   INTEGER,
				url        TEXT NOT NULL,
				side       TEXT NOT NULL,
				platinum   INTEGER NOT NULL,
				quantity   INTEGER NOT NULL,
				created    TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_transaction_url ON "transaction"(url);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return err
		}
	}

	// Idempotent additive migrations, applied in a fixed sequence. Never
	// drop or rename a column — only add, so older snapshots keep loading.
	if err := s.ensureTableColumn("stock_item", "created", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}

	return nil
}

func (s *Store) tableExists(tableName string) (bool, error) {
	var name string
	err := s.sql.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ? LIMIT 1`,
		tableName,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ensureTableColumn(tableName, columnName, columnDef string) error {
	rows, err := s.sql.Query("PRAGMA table_info(" + tableName + ")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, columnName) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.sql.Exec("ALTER TABLE " + tableName + " ADD COLUMN " + columnName + " " + columnDef)
	return err
}
