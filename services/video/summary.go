package video

import (
	"github.com/nijaru/ytdl-web/errors"
	"github.com/nijaru/ytdl-web/formats"
	"github.com/nijaru/ytdl-web/models"
)

// BuildSummary turns raw library output into the payload sent to the client.
func BuildSummary(info *models.RawInfo) (*models.VideoSummary, error) {
	const op = "VideoService.BuildSummary"

	if info == nil {
		return nil, errors.Extraction(op, nil, "Failed to get video info")
	}
	if info.Title == "" {
		return nil, errors.Extraction(op, nil, "Video has no title")
	}
	if len(info.Thumbnails) == 0 && len(info.Formats) == 0 {
		return nil, errors.Extraction(op, nil, "Video has no thumbnails or formats")
	}

	summary := &models.VideoSummary{
		Title:     info.Title,
		Formats:   formats.Classify(info.Formats),
		Duration:  info.Duration,
		ViewCount: info.ViewCount,
	}
	if n := len(info.Thumbnails); n > 0 {
		summary.Thumbnail = info.Thumbnails[n-1].URL
	}

	return summary, nil
}
