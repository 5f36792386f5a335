package video

import (
	"context"

	"github.com/nijaru/ytdl-web/models"
)

type Service interface {
	// Info fetches metadata for url and shapes it for the client.
	Info(ctx context.Context, url string) (*models.VideoSummary, error)

	// Download resolves itag against freshly fetched metadata and opens the
	// stream. The caller must Close the returned Download.
	Download(ctx context.Context, url, itag string) (*Download, error)

	// RecentDownloads lists the latest download attempts, newest first.
	RecentDownloads(ctx context.Context, limit int) ([]*models.DownloadRecord, error)

	// DownloadRecord returns one download attempt by ID.
	DownloadRecord(ctx context.Context, id string) (*models.DownloadRecord, error)
}

// Archiver receives every finished download record.
type Archiver interface {
	SaveDownloadRecord(ctx context.Context, rec *models.DownloadRecord) error
}

type Config struct {
	// ReadChunkSize is the size of the buffer used for each Next call.
	ReadChunkSize int `json:"read_chunk_size"`

	// DefaultHistoryLimit and MaxHistoryLimit bound RecentDownloads.
	DefaultHistoryLimit int `json:"default_history_limit"`
	MaxHistoryLimit     int `json:"max_history_limit"`
}

func DefaultConfig() Config {
	return Config{
		ReadChunkSize:       32 * 1024,
		DefaultHistoryLimit: 20,
		MaxHistoryLimit:     100,
	}
}
