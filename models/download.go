package models

import "time"

type DownloadStatus string

const (
	DownloadStreaming DownloadStatus = "streaming"
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
	DownloadCancelled DownloadStatus = "cancelled"
)

// DownloadRecord is one download attempt as kept in the history store.
type DownloadRecord struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	VideoID   string         `json:"video_id"`
	Itag      int            `json:"itag"`
	Title     string         `json:"title"`
	Container string         `json:"container"`
	Bytes     int64          `json:"bytes"`
	Status    DownloadStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
