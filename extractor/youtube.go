package extractor

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"

	"github.com/nijaru/ytdl-web/models"
	"github.com/nijaru/ytdl-web/validation"
)

var videoIDPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

type YouTubeOptions struct {
	HTTPTimeout time.Duration
	ChunkSize   int64
}

// YouTube implements Client on top of github.com/kkdai/youtube/v2.
type YouTube struct {
	client    *youtube.Client
	validator *validation.Validator
}

var _ Client = (*YouTube)(nil)

func NewYouTube(opts YouTubeOptions) *YouTube {
	client := &youtube.Client{
		HTTPClient: &http.Client{Timeout: opts.HTTPTimeout},
	}
	if opts.ChunkSize > 0 {
		client.ChunkSize = opts.ChunkSize
	}

	return &YouTube{
		client:    client,
		validator: validation.NewValidator(),
	}
}

// ValidateURL accepts YouTube watch, short-link, shorts and embed URLs. The
// library's ID extraction is lenient, so the extracted ID is checked again.
func (y *YouTube) ValidateURL(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if err := y.validator.ValidateURL(rawURL); err != nil {
		return false
	}
	id, err := youtube.ExtractVideoID(rawURL)
	return err == nil && videoIDPattern.MatchString(id)
}

func (y *YouTube) GetVideoInfo(ctx context.Context, rawURL string) (*models.RawInfo, error) {
	video, err := y.client.GetVideoContext(ctx, strings.TrimSpace(rawURL))
	if err != nil {
		return nil, errors.Wrapf(err, "get video %s (%s)", rawURL, Reason(err))
	}
	return toRawInfo(video), nil
}

func (y *YouTube) OpenStream(ctx context.Context, info *models.RawInfo, itag int) (io.ReadCloser, int64, error) {
	video, ok := info.Source.(*youtube.Video)
	if !ok || video == nil {
		return nil, 0, errors.Errorf("video %s has no stream source", info.ID)
	}

	var format *youtube.Format
	for i := range video.Formats {
		if video.Formats[i].ItagNo == itag {
			format = &video.Formats[i]
			break
		}
	}
	if format == nil {
		return nil, 0, errors.Errorf("video %s has no format with itag %d", video.ID, itag)
	}

	stream, size, err := y.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "open stream %s itag %d", video.ID, itag)
	}
	return stream, size, nil
}

// Reason gives a short log-friendly category for a library error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, youtube.ErrVideoPrivate):
		return "private"
	case stderrors.Is(err, youtube.ErrLoginRequired):
		return "login_required"
	case stderrors.Is(err, youtube.ErrNotPlayableInEmbed):
		return "not_playable_in_embed"
	case stderrors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		stderrors.Is(err, youtube.ErrVideoIDMinLength):
		return "invalid_id"
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}

	var statusErr *youtube.ErrPlayabiltyStatus
	if stderrors.As(err, &statusErr) {
		return "unplayable"
	}

	return "network"
}

func toRawInfo(video *youtube.Video) *models.RawInfo {
	info := &models.RawInfo{
		ID:         video.ID,
		Title:      video.Title,
		Thumbnails: make([]models.Thumbnail, 0, len(video.Thumbnails)),
		Formats:    make([]models.FormatDescriptor, 0, len(video.Formats)),
		Source:     video,
	}

	for _, t := range video.Thumbnails {
		info.Thumbnails = append(info.Thumbnails, models.Thumbnail{
			URL:    t.URL,
			Width:  t.Width,
			Height: t.Height,
		})
	}

	for _, f := range video.Formats {
		info.Formats = append(info.Formats, toDescriptor(f))
	}

	if secs := int(video.Duration / time.Second); secs > 0 {
		info.Duration = &secs
	}
	if views := video.Views; views > 0 {
		info.ViewCount = &views
	}

	return info
}

func toDescriptor(f youtube.Format) models.FormatDescriptor {
	return models.FormatDescriptor{
		Itag:          f.ItagNo,
		Container:     Container(f.MimeType),
		MimeType:      f.MimeType,
		HasVideo:      strings.HasPrefix(f.MimeType, "video/") || f.QualityLabel != "",
		HasAudio:      f.AudioChannels > 0 || f.AudioQuality != "",
		QualityLabel:  f.QualityLabel,
		Quality:       f.Quality,
		URL:           f.URL,
		ContentLength: f.ContentLength,
	}
}

// Container maps a mime type such as `video/mp4; codecs="avc1"` to a file
// extension.
func Container(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	parts := strings.Split(strings.TrimSpace(mimeType), "/")
	if len(parts) != 2 || parts[1] == "" {
		return "mp4"
	}
	switch parts[1] {
	case "3gpp":
		return "3gp"
	default:
		return parts[1]
	}
}
