package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/ytdl-web/errors"
	"github.com/nijaru/ytdl-web/middleware"
	"github.com/nijaru/ytdl-web/services/video"
	"github.com/nijaru/ytdl-web/validation"
)

type VideoHandler struct {
	service   video.Service
	validator *validation.Validator
}

type videoInfoRequest struct {
	URL string `json:"url"`
}

func NewVideoHandler(service video.Service, validator *validation.Validator) *VideoHandler {
	return &VideoHandler{
		service:   service,
		validator: validator,
	}
}

// HandleVideoInfo handles POST /api/video-info
func (h *VideoHandler) HandleVideoInfo(w http.ResponseWriter, r *http.Request) {
	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		MaxContentLength: maxBodySize,
		AllowedMethods:   []string{http.MethodPost},
		RequireJSON:      true,
	}); err != nil {
		respondError(w, r, err)
		return
	}

	var req videoInfoRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	summary, err := h.service.Info(r.Context(), req.URL)
	if err != nil {
		respondError(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).WithFields(logrus.Fields{
		"title":   summary.Title,
		"formats": len(summary.Formats),
	}).Info("Video info fetched")

	respondJSON(w, r, http.StatusOK, summary)
}

// HandleDownload handles GET /api/download. Nothing is committed until the
// first chunk has been read, so early failures still get a JSON error.
func (h *VideoHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	query := r.URL.Query()

	dl, err := h.service.Download(ctx, query.Get("url"), query.Get("itag"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer dl.Close()

	chunk, err := dl.Next(ctx)
	if err != nil && err != io.EOF {
		if ctx.Err() != nil {
			logger.WithError(err).Info("Client went away before download started")
			return
		}
		respondError(w, r, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", dl.Header.ContentType)
	header.Set("Content-Disposition", dl.Header.ContentDisposition())
	// An upstream that ended before its first byte gets no declared length.
	if err == nil && dl.Header.ContentLength > 0 {
		header.Set("Content-Length", strconv.FormatInt(dl.Header.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for err == nil {
		if _, werr := w.Write(chunk); werr != nil {
			logger.WithError(werr).Warn("Failed to write download chunk")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		chunk, err = dl.Next(ctx)
	}

	entry := logger.WithFields(logrus.Fields{
		"filename": dl.Header.Filename,
		"bytes":    dl.Sent(),
	})
	switch {
	case err == io.EOF:
		entry.Info("Download completed")
	case ctx.Err() != nil:
		entry.WithError(err).Info("Download cancelled by client")
	default:
		// Headers are already on the wire; the client sees a short body.
		entry.WithError(err).Error("Download interrupted")
	}
}

// HandleRecentDownloads handles GET /api/downloads
func (h *VideoHandler) HandleRecentDownloads(w http.ResponseWriter, r *http.Request) {
	const op = "VideoHandler.HandleRecentDownloads"

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, r, errors.InvalidRequest(op, err, "Invalid limit"))
			return
		}
		limit = n
	}

	records, err := h.service.RecentDownloads(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"downloads": records,
	})
}

// HandleGetDownload handles GET /api/downloads/{id}
func (h *VideoHandler) HandleGetDownload(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.DownloadRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, record)
}
