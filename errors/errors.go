package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError so callers can branch without matching messages.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindExtraction     Kind = "extraction"
	KindFormatNotFound Kind = "format_not_found"
	KindStream         Kind = "stream"
	KindRateLimited    Kind = "rate_limited"
	KindNotFound       Kind = "not_found"
	KindInternal       Kind = "internal"
)

type AppError struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func E(kind Kind, code int, op string, err error, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// InvalidRequest reports bad or missing input. No network call has been made.
func InvalidRequest(op string, err error, message string) *AppError {
	return E(KindInvalidRequest, http.StatusBadRequest, op, err, message)
}

// Extraction reports that video metadata could not be fetched or parsed.
func Extraction(op string, err error, message string) *AppError {
	return E(KindExtraction, http.StatusInternalServerError, op, err, message)
}

// FormatNotFound reports an itag missing from a fresh metadata fetch.
func FormatNotFound(op string, err error, message string) *AppError {
	return E(KindFormatNotFound, http.StatusBadRequest, op, err, message)
}

// Stream reports a failure while transferring media bytes.
func Stream(op string, err error, message string) *AppError {
	return E(KindStream, http.StatusInternalServerError, op, err, message)
}

func RateLimited(op string) *AppError {
	return E(KindRateLimited, http.StatusTooManyRequests, op, nil, "Rate limit exceeded")
}

func NotFound(op string, err error, message string) *AppError {
	return E(KindNotFound, http.StatusNotFound, op, err, message)
}

func Internal(op string, err error, message string) *AppError {
	return E(KindInternal, http.StatusInternalServerError, op, err, message)
}

// KindOf returns the Kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsInvalidRequest(err error) bool { return err != nil && KindOf(err) == KindInvalidRequest }
func IsExtraction(err error) bool     { return err != nil && KindOf(err) == KindExtraction }
func IsFormatNotFound(err error) bool { return err != nil && KindOf(err) == KindFormatNotFound }
func IsStream(err error) bool         { return err != nil && KindOf(err) == KindStream }
func IsNotFound(err error) bool       { return err != nil && KindOf(err) == KindNotFound }

// StatusCode maps err to the HTTP status the API responds with.
func StatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// PublicMessage is the message safe to show a client. Anything that is not an
// AppError collapses to a static string.
func PublicMessage(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "Internal server error"
}
