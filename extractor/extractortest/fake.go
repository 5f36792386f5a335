// Package extractortest provides an in-memory extractor.Client for tests.
package extractortest

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/nijaru/ytdl-web/extractor"
	"github.com/nijaru/ytdl-web/models"
	"github.com/nijaru/ytdl-web/validation"
)

// Fake serves Info for every valid URL and Body for every stream.
type Fake struct {
	Info    *models.RawInfo
	InfoErr error

	Body      []byte
	Size      int64
	StreamErr error
	// ReadErr is returned once Body has been read in full.
	ReadErr error

	mu          sync.Mutex
	infoCalls   int
	streamCalls int
	streams     []*Stream
}

var _ extractor.Client = (*Fake)(nil)

func (f *Fake) ValidateURL(rawURL string) bool {
	return validation.NewValidator().ValidateURL(rawURL) == nil
}

func (f *Fake) GetVideoInfo(ctx context.Context, rawURL string) (*models.RawInfo, error) {
	f.mu.Lock()
	f.infoCalls++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.InfoErr != nil {
		return nil, f.InfoErr
	}
	return f.Info, nil
}

func (f *Fake) OpenStream(ctx context.Context, info *models.RawInfo, itag int) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamCalls++

	if f.StreamErr != nil {
		return nil, 0, f.StreamErr
	}

	s := &Stream{ctx: ctx, r: bytes.NewReader(f.Body), readErr: f.ReadErr}
	f.streams = append(f.streams, s)
	return s, f.Size, nil
}

func (f *Fake) InfoCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoCalls
}

func (f *Fake) StreamCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

// LastStream returns the most recently opened stream, or nil.
func (f *Fake) LastStream() *Stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

// Stream is the body returned by Fake.OpenStream.
type Stream struct {
	ctx     context.Context
	r       *bytes.Reader
	readErr error

	mu     sync.Mutex
	reads  int
	closed bool
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++

	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := s.r.Read(p)
	if err == io.EOF && s.readErr != nil {
		return n, s.readErr
	}
	return n, err
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Stream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Sample returns a video with two thumbnails, two combined formats and one
// audio-only format.
func Sample() *models.RawInfo {
	duration, views := 212, 1500
	return &models.RawInfo{
		ID:    "dQw4w9WgXcQ",
		Title: "Foo: Bar/Baz?!",
		Thumbnails: []models.Thumbnail{
			{URL: "https://i.ytimg.com/a.jpg", Width: 120, Height: 90},
			{URL: "https://i.ytimg.com/b.jpg", Width: 1280, Height: 720},
		},
		Formats: []models.FormatDescriptor{
			{Itag: 18, Container: "mp4", MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, HasVideo: true, HasAudio: true, QualityLabel: "360p", Quality: "medium", URL: "https://cdn/18"},
			{Itag: 22, Container: "mp4", MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, HasVideo: true, HasAudio: true, QualityLabel: "720p", Quality: "hd720", URL: "https://cdn/22", ContentLength: 2048},
			{Itag: 140, Container: "mp4", MimeType: `audio/mp4; codecs="mp4a.40.2"`, HasAudio: true, Quality: "tiny", URL: "https://cdn/140"},
			{Itag: 137, Container: "mp4", MimeType: `video/mp4; codecs="avc1.640028"`, HasVideo: true, QualityLabel: "1080p", URL: "https://cdn/137"},
		},
		Duration:  &duration,
		ViewCount: &views,
	}
}
