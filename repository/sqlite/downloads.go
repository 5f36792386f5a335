package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/nijaru/ytdl-web/errors"
	"github.com/nijaru/ytdl-web/models"
	"github.com/nijaru/ytdl-web/repository"
)

type Repository struct {
	db *DB
}

var _ repository.DownloadRepository = (*Repository)(nil)

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, record *models.DownloadRecord) error {
	const op = "SQLiteRepository.Save"

	for i := 0; i < 3; i++ {
		err := r.save(ctx, record)
		if err == nil {
			return nil
		}
		if !isLockError(err) {
			return errors.Internal(op, err, "Failed to save download")
		}

		select {
		case <-ctx.Done():
			return errors.Internal(op, ctx.Err(), "Failed to save download")
		case <-time.After(100 * time.Millisecond * time.Duration(i+1)):
		}
	}
	return errors.Internal(op, nil, "Failed after retries")
}

func (r *Repository) save(ctx context.Context, rec *models.DownloadRecord) error {
	_, err := r.db.statements.upsert.ExecContext(ctx,
		rec.ID,
		rec.URL,
		rec.VideoID,
		rec.Itag,
		rec.Title,
		rec.Container,
		rec.Bytes,
		string(rec.Status),
		rec.Error,
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)
	return err
}

func (r *Repository) Find(ctx context.Context, id string) (*models.DownloadRecord, error) {
	const op = "SQLiteRepository.Find"

	rec, err := scanRecord(r.db.statements.get.QueryRowContext(ctx, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(op, nil, "Download not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query download")
	}
	return rec, nil
}

func (r *Repository) Recent(ctx context.Context, limit int) ([]*models.DownloadRecord, error) {
	const op = "SQLiteRepository.Recent"

	rows, err := r.db.statements.recent.QueryContext(ctx, limit)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query downloads")
	}
	defer rows.Close()

	records := make([]*models.DownloadRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Internal(op, err, "Failed to scan download")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed to iterate downloads")
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*models.DownloadRecord, error) {
	rec := &models.DownloadRecord{}
	var status string

	err := row.Scan(
		&rec.ID,
		&rec.URL,
		&rec.VideoID,
		&rec.Itag,
		&rec.Title,
		&rec.Container,
		&rec.Bytes,
		&status,
		&rec.Error,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = models.DownloadStatus(status)
	return rec, nil
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "busy")
}
