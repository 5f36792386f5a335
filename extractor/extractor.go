// Package extractor is the boundary to the video extraction library. Nothing
// outside this package imports the library directly.
package extractor

import (
	"context"
	"io"

	"github.com/nijaru/ytdl-web/models"
)

// Client is everything the service needs from an extraction library.
type Client interface {
	// ValidateURL reports whether rawURL points at a single video the
	// library understands. It never touches the network.
	ValidateURL(rawURL string) bool

	// GetVideoInfo fetches metadata and the raw format list of one video.
	GetVideoInfo(ctx context.Context, rawURL string) (*models.RawInfo, error)

	// OpenStream opens the media bytes of format itag of a video previously
	// returned by GetVideoInfo. The size is -1 or 0 when unknown.
	OpenStream(ctx context.Context, info *models.RawInfo, itag int) (io.ReadCloser, int64, error)
}
