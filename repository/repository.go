package repository

import (
	"context"

	"github.com/nijaru/ytdl-web/models"
)

// DownloadRepository stores download attempts. Save inserts or replaces by ID.
type DownloadRepository interface {
	Save(ctx context.Context, record *models.DownloadRecord) error
	Find(ctx context.Context, id string) (*models.DownloadRecord, error)
	Recent(ctx context.Context, limit int) ([]*models.DownloadRecord, error)
}
