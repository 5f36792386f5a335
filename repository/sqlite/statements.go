package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
)

const (
	upsertDownloadQuery = `
        INSERT INTO downloads (
            id, url, video_id, itag, title, container,
            bytes, status, error, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            container = excluded.container,
            bytes = excluded.bytes,
            status = excluded.status,
            error = excluded.error,
            updated_at = excluded.updated_at
    `

	getDownloadQuery = `
        SELECT id, url, video_id, itag, title, container,
               bytes, status, error, created_at, updated_at
        FROM downloads WHERE id = ?
    `

	recentDownloadsQuery = `
        SELECT id, url, video_id, itag, title, container,
               bytes, status, error, created_at, updated_at
        FROM downloads
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?
    `
)

type PreparedStatements struct {
	upsert *sql.Stmt
	get    *sql.Stmt
	recent *sql.Stmt
}

func (stmts *PreparedStatements) Prepare(ctx context.Context, db *sql.DB) error {
	var err error

	if stmts.upsert, err = db.PrepareContext(ctx, upsertDownloadQuery); err != nil {
		return errors.Wrap(err, "failed to prepare upsert statement")
	}

	if stmts.get, err = db.PrepareContext(ctx, getDownloadQuery); err != nil {
		return errors.Wrap(err, "failed to prepare get statement")
	}

	if stmts.recent, err = db.PrepareContext(ctx, recentDownloadsQuery); err != nil {
		return errors.Wrap(err, "failed to prepare recent statement")
	}

	return nil
}

func (stmts *PreparedStatements) Close() error {
	var errs []error

	statements := [...]*sql.Stmt{
		stmts.upsert,
		stmts.get,
		stmts.recent,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close prepared statements: %v", errs)
	}

	return nil
}
