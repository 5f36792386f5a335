package video

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"testing"

	"github.com/nijaru/ytdl-web/errors"
	"github.com/nijaru/ytdl-web/models"
)

type chunkReader struct {
	data   []byte
	err    error
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

type finishCall struct {
	status models.DownloadStatus
	sent   int64
	err    error
	calls  int
}

func (f *finishCall) record(status models.DownloadStatus, sent int64, err error) {
	f.status, f.sent, f.err = status, sent, err
	f.calls++
}

func drain(t *testing.T, d *Download) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	for {
		chunk, err := d.Next(context.Background())
		if err != nil {
			return out.Bytes(), err
		}
		out.Write(chunk)
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Foo: Bar/Baz?!", "Foo BarBaz"},
		{"  spaced out  ", "spaced out"},
		{"keep-hyphens_and_underscores", "keep-hyphens_and_underscores"},
		{"line\nbreak", "line break"},
		{"?!*", ""},
	}

	for _, tt := range tests {
		if got := SanitizeTitle(tt.in); got != tt.want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewHeader(t *testing.T) {
	format := models.FormatDescriptor{Itag: 43, Container: "webm", MimeType: "video/webm", ContentLength: 99}

	h := newHeader("Foo: Bar/Baz?!", format, 0)
	if h.Filename != "Foo BarBaz.webm" {
		t.Errorf("unexpected filename %q", h.Filename)
	}
	if h.ContentDisposition() != `attachment; filename="Foo BarBaz.webm"` {
		t.Errorf("unexpected disposition %q", h.ContentDisposition())
	}
	if h.ContentType != "video/webm" || h.ContentLength != 99 {
		t.Errorf("unexpected header %+v", h)
	}

	h = newHeader("?!", models.FormatDescriptor{Container: "mp4"}, 512)
	if h.Filename != "video.mp4" {
		t.Errorf("expected fallback filename, got %q", h.Filename)
	}
	if h.ContentType != DefaultContentType || h.ContentLength != 512 {
		t.Errorf("unexpected header %+v", h)
	}
}

func TestDownloadStreamsAllChunks(t *testing.T) {
	body := &chunkReader{data: bytes.Repeat([]byte("x"), 10)}
	fin := &finishCall{}
	d := newDownload(Header{}, body, 4, fin.record)

	got, err := drain(t, d)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if len(got) != 10 || d.Sent() != 10 {
		t.Errorf("expected 10 bytes, got %d (sent %d)", len(got), d.Sent())
	}
	if fin.status != models.DownloadCompleted || fin.sent != 10 || fin.calls != 1 {
		t.Errorf("unexpected finish %+v", fin)
	}
	if !body.closed {
		t.Errorf("expected body closed")
	}

	if _, err := d.Next(context.Background()); err != io.EOF {
		t.Errorf("expected io.EOF after end, got %v", err)
	}
	d.Close()
	if fin.calls != 1 {
		t.Errorf("finish must run once, ran %d times", fin.calls)
	}
}

func TestDownloadUpstreamFailure(t *testing.T) {
	body := &chunkReader{data: []byte("abc"), err: stderrors.New("connection reset")}
	fin := &finishCall{}
	d := newDownload(Header{}, body, 2, fin.record)

	got, err := drain(t, d)
	if string(got) != "abc" {
		t.Errorf("expected bytes before failure, got %q", got)
	}
	if !errors.IsStream(err) {
		t.Errorf("expected stream error, got %v", err)
	}
	if fin.status != models.DownloadFailed || fin.sent != 3 {
		t.Errorf("unexpected finish %+v", fin)
	}
}

func TestDownloadCancelledContext(t *testing.T) {
	body := &chunkReader{data: bytes.Repeat([]byte("x"), 100)}
	fin := &finishCall{}
	d := newDownload(Header{}, body, 10, fin.record)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := d.Next(ctx); err != nil {
		t.Fatalf("first chunk: %v", err)
	}
	cancel()

	if _, err := d.Next(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(body.data) != 90 {
		t.Errorf("expected reading to stop, %d bytes left", len(body.data))
	}
	if fin.status != models.DownloadCancelled || fin.sent != 10 || !body.closed {
		t.Errorf("unexpected finish %+v closed=%v", fin, body.closed)
	}
}

type stalledReader struct {
	reads int
}

func (r *stalledReader) Read(p []byte) (int, error) {
	r.reads++
	return 0, nil
}

func (r *stalledReader) Close() error { return nil }

func TestDownloadStalledUpstream(t *testing.T) {
	body := &stalledReader{}
	fin := &finishCall{}
	d := newDownload(Header{}, body, 8, fin.record)

	_, err := d.Next(context.Background())
	if !errors.IsStream(err) || !stderrors.Is(err, io.ErrNoProgress) {
		t.Fatalf("expected stream error wrapping io.ErrNoProgress, got %v", err)
	}
	if body.reads != maxConsecutiveEmptyReads {
		t.Errorf("expected %d reads, got %d", maxConsecutiveEmptyReads, body.reads)
	}
	if fin.status != models.DownloadFailed {
		t.Errorf("expected failed status, got %s", fin.status)
	}
}

func TestDownloadCloseBeforeEnd(t *testing.T) {
	body := &chunkReader{data: []byte("abcdef")}
	fin := &finishCall{}
	d := newDownload(Header{}, body, 2, fin.record)

	d.Next(context.Background())
	d.Close()

	if fin.status != models.DownloadCancelled || fin.sent != 2 || !body.closed {
		t.Errorf("unexpected finish %+v", fin)
	}
}
