package validation

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nijaru/ytdl-web/errors"
)

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
	"www.youtu.be":      true,
}

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateURL checks that urlStr is an http(s) URL on a YouTube host.
func (v *Validator) ValidateURL(urlStr string) error {
	const op = "Validator.ValidateURL"

	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return errors.InvalidRequest(op, nil, "URL is required")
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return errors.InvalidRequest(op, err, "Invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.InvalidRequest(op, nil, "URL must use HTTP or HTTPS")
	}

	if !youtubeHosts[strings.ToLower(parsedURL.Hostname())] {
		return errors.InvalidRequest(op, nil, "Only YouTube URLs are supported")
	}

	return nil
}

// ParseItag parses a format identifier taken from a query string.
func (v *Validator) ParseItag(raw string) (int, error) {
	const op = "Validator.ParseItag"

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.InvalidRequest(op, nil, "itag is required")
	}

	itag, err := strconv.Atoi(raw)
	if err != nil || itag <= 0 {
		return 0, errors.InvalidRequest(op, err, "Invalid itag")
	}

	return itag, nil
}

// RequestValidationOpts holds options for request validation
type RequestValidationOpts struct {
	MaxContentLength int64
	AllowedMethods   []string
	RequireJSON      bool
}

// ValidateRequest validates HTTP requests
func (v *Validator) ValidateRequest(r *http.Request, opts RequestValidationOpts) error {
	const op = "Validator.ValidateRequest"

	if len(opts.AllowedMethods) > 0 {
		methodAllowed := false
		for _, method := range opts.AllowedMethods {
			if r.Method == method {
				methodAllowed = true
				break
			}
		}
		if !methodAllowed {
			return errors.E(
				errors.KindInvalidRequest,
				http.StatusMethodNotAllowed,
				op,
				nil,
				fmt.Sprintf("Method %s not allowed", r.Method),
			)
		}
	}

	if opts.RequireJSON {
		if contentType := r.Header.Get("Content-Type"); !strings.Contains(contentType, "application/json") {
			return errors.InvalidRequest(op, nil, "Content-Type must be application/json")
		}
	}

	if opts.MaxContentLength > 0 && r.ContentLength > opts.MaxContentLength {
		return errors.InvalidRequest(op, nil, "Request body too large")
	}

	return nil
}
