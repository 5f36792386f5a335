package models

// FormatDescriptor is one encoded variant of a video as reported by the
// extraction library.
type FormatDescriptor struct {
	Itag          int
	Container     string
	MimeType      string
	HasVideo      bool
	HasAudio      bool
	QualityLabel  string
	Quality       string
	URL           string
	ContentLength int64
}

type Thumbnail struct {
	URL    string
	Width  uint
	Height uint
}

// RawInfo is what the extraction library returns for a single video.
// Thumbnails are expected in ascending resolution order.
type RawInfo struct {
	ID         string
	Title      string
	Thumbnails []Thumbnail
	Formats    []FormatDescriptor
	Duration   *int
	ViewCount  *int

	// Source is the library's own video handle, needed again to open a stream.
	Source any
}

// Format returns the descriptor with the given itag.
func (r *RawInfo) Format(itag int) (FormatDescriptor, bool) {
	for _, f := range r.Formats {
		if f.Itag == itag {
			return f, true
		}
	}
	return FormatDescriptor{}, false
}

type ClassifiedFormat struct {
	Quality   string `json:"quality"`
	Itag      int    `json:"itag"`
	Container string `json:"container"`
	URL       string `json:"url"`
	AudioOnly bool   `json:"audioOnly"`
}

type VideoSummary struct {
	Title     string             `json:"title"`
	Thumbnail string             `json:"thumbnail"`
	Formats   []ClassifiedFormat `json:"formats"`
	Duration  *int               `json:"duration,omitempty"`
	ViewCount *int               `json:"viewCount,omitempty"`
}
