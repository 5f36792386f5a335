package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    video_id TEXT NOT NULL,
    itag INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    container TEXT NOT NULL DEFAULT '',
    bytes INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
CREATE INDEX IF NOT EXISTS idx_downloads_video_id ON downloads(video_id);
`

type DBConfig struct {
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxConnections:     10,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    time.Hour,
	}
}

// DB wraps the connection pool together with its prepared statements.
type DB struct {
	*sql.DB
	statements *PreparedStatements
}

func InitDB(dbPath string, config DBConfig) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	conn.SetMaxOpenConns(config.MaxConnections)
	conn.SetMaxIdleConns(config.MaxIdleConnections)
	conn.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := configurePragmas(conn); err != nil {
		conn.Close()
		return nil, err
	}

	if err := execSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}

	stmts := &PreparedStatements{}
	if err := stmts.Prepare(context.Background(), conn); err != nil {
		stmts.Close()
		conn.Close()
		return nil, err
	}

	return &DB{DB: conn, statements: stmts}, nil
}

func (db *DB) Close() error {
	stmtErr := db.statements.Close()
	if err := db.DB.Close(); err != nil {
		return errors.Wrap(err, "failed to close database")
	}
	return stmtErr
}

func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "failed to set pragma: %s", pragma)
		}
	}

	return nil
}

func execSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrapf(err, "failed to execute schema statement: %s", stmt)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit schema transaction")
	}

	return nil
}
