package video

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/nijaru/ytdl-web/errors"
	"github.com/nijaru/ytdl-web/models"
)

const (
	DefaultContentType = "video/mp4"
	fallbackFilename   = "video"

	maxConsecutiveEmptyReads = 100
)

var (
	unsafeTitleChars = regexp.MustCompile(`[^\w\s-]`)
	controlSpace     = regexp.MustCompile(`[\t\n\r\f\v]`)
)

// SanitizeTitle keeps word characters, whitespace and hyphens.
func SanitizeTitle(title string) string {
	title = unsafeTitleChars.ReplaceAllString(title, "")
	return strings.TrimSpace(controlSpace.ReplaceAllString(title, " "))
}

// Header is known before the first byte of a download is sent.
type Header struct {
	Filename      string
	ContentType   string
	ContentLength int64 // 0 when unknown
}

func (h Header) ContentDisposition() string {
	return fmt.Sprintf("attachment; filename=%q", h.Filename)
}

func newHeader(title string, format models.FormatDescriptor, size int64) Header {
	name := SanitizeTitle(title)
	if name == "" {
		name = fallbackFilename
	}

	contentType := format.MimeType
	if contentType == "" {
		contentType = DefaultContentType
	}

	length := size
	if length <= 0 {
		length = format.ContentLength
	}
	if length < 0 {
		length = 0
	}

	return Header{
		Filename:      name + "." + format.Container,
		ContentType:   contentType,
		ContentLength: length,
	}
}

type finishFunc func(status models.DownloadStatus, sent int64, err error)

// Download is an open media stream. Next yields chunks until io.EOF; the
// sequence cannot be restarted.
type Download struct {
	Header Header

	body       io.ReadCloser
	buf        []byte
	sent       int64
	pending    error
	emptyReads int
	done       bool
	finish     finishFunc
	once       sync.Once
}

func newDownload(header Header, body io.ReadCloser, chunkSize int, finish finishFunc) *Download {
	if chunkSize <= 0 {
		chunkSize = DefaultConfig().ReadChunkSize
	}
	return &Download{
		Header: header,
		body:   body,
		buf:    make([]byte, chunkSize),
		finish: finish,
	}
}

// Next returns the next chunk. The slice is only valid until the following
// call. A cancelled ctx stops reading and returns ctx.Err().
func (d *Download) Next(ctx context.Context) ([]byte, error) {
	const op = "Download.Next"

	if d.done {
		return nil, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			d.end(models.DownloadCancelled, err)
			return nil, err
		}

		err := d.pending
		if err == nil {
			var n int
			n, err = d.body.Read(d.buf)
			if n > 0 {
				d.sent += int64(n)
				d.pending = err
				d.emptyReads = 0
				return d.buf[:n], nil
			}
			if err == nil {
				if d.emptyReads++; d.emptyReads >= maxConsecutiveEmptyReads {
					err = io.ErrNoProgress
				}
			}
		}

		switch {
		case err == io.EOF:
			d.end(models.DownloadCompleted, nil)
			return nil, io.EOF
		case err != nil:
			status := statusFor(ctx, err)
			d.end(status, err)
			if status == models.DownloadCancelled {
				return nil, err
			}
			return nil, errors.Stream(op, err, "Failed to download video")
		}
	}
}

// Sent is the number of bytes handed out by Next so far.
func (d *Download) Sent() int64 {
	return d.sent
}

// Close releases the upstream body. A download closed before reaching the
// end is recorded as cancelled.
func (d *Download) Close() error {
	if !d.done {
		d.end(models.DownloadCancelled, nil)
	}
	return nil
}

func (d *Download) end(status models.DownloadStatus, err error) {
	d.once.Do(func() {
		d.done = true
		d.body.Close()
		if d.finish != nil {
			d.finish(status, d.sent, err)
		}
	})
}

func statusFor(ctx context.Context, err error) models.DownloadStatus {
	if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
		return models.DownloadCancelled
	}
	return models.DownloadFailed
}
