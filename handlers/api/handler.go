package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/ytdl-web/errors"
	"github.com/nijaru/ytdl-web/middleware"
)

const maxBodySize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		middleware.GetLogger(r.Context()).WithError(err).Error("Failed to encode response")
	}
}

// respondError logs err with its internal detail and sends only the public
// message to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.StatusCode(err)

	entry := middleware.GetLogger(r.Context()).WithFields(logrus.Fields{
		"error":  err,
		"status": code,
		"kind":   errors.KindOf(err),
	})
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Op != "" {
		entry = entry.WithField("op", appErr.Op)
	}

	if code >= http.StatusInternalServerError {
		entry.Error("Request error")
	} else {
		entry.Warn("Request rejected")
	}

	respondJSON(w, r, code, errorResponse{Error: errors.PublicMessage(err)})
}

// readJSON decodes the request body into v. An empty body leaves v untouched.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return errors.InvalidRequest("readJSON", err, "Invalid JSON format")
	}
	return nil
}
