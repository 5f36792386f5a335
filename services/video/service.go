package video

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/ytdl-web/errors"
	"github.com/nijaru/ytdl-web/extractor"
	"github.com/nijaru/ytdl-web/models"
	"github.com/nijaru/ytdl-web/repository"
	"github.com/nijaru/ytdl-web/validation"
)

type Repository = repository.DownloadRepository

const historyTimeout = 5 * time.Second

type service struct {
	client    extractor.Client
	repo      Repository
	archiver  Archiver
	validator *validation.Validator
	config    Config
	logger    *logrus.Logger
	now       func() time.Time
}

type Option func(*service)

// WithRepository enables download history.
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repo = repo
	}
}

// WithArchiver copies finished download records to a, typically a bucket.
func WithArchiver(a Archiver) Option {
	return func(s *service) {
		s.archiver = a
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

func NewService(client extractor.Client, config Config, opts ...Option) Service {
	s := &service{
		client:    client,
		validator: validation.NewValidator(),
		config:    config,
		logger:    logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Info(ctx context.Context, rawURL string) (*models.VideoSummary, error) {
	const op = "VideoService.Info"

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.InvalidRequest(op, nil, "URL is required")
	}
	if !s.client.ValidateURL(rawURL) {
		return nil, errors.InvalidRequest(op, nil, "Invalid YouTube URL")
	}

	info, err := s.fetch(ctx, op, rawURL)
	if err != nil {
		return nil, err
	}

	return BuildSummary(info)
}

func (s *service) Download(ctx context.Context, rawURL, rawItag string) (*Download, error) {
	const op = "VideoService.Download"

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || strings.TrimSpace(rawItag) == "" {
		return nil, errors.InvalidRequest(op, nil, "URL and itag are required")
	}
	if !s.client.ValidateURL(rawURL) {
		return nil, errors.InvalidRequest(op, nil, "Invalid YouTube URL")
	}
	itag, err := s.validator.ParseItag(rawItag)
	if err != nil {
		return nil, err
	}

	info, err := s.fetch(ctx, op, rawURL)
	if err != nil {
		return nil, err
	}

	format, ok := info.Format(itag)
	if !ok {
		return nil, errors.FormatNotFound(op, nil, "Format not found")
	}

	body, size, err := s.client.OpenStream(ctx, info, itag)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"op":       op,
			"video_id": info.ID,
			"itag":     itag,
			"error":    err,
		}).Error("Failed to open stream")
		return nil, errors.Stream(op, err, "Failed to download video")
	}

	header := newHeader(info.Title, format, size)
	rec := s.startRecord(rawURL, info, format)

	return newDownload(header, body, s.config.ReadChunkSize, func(status models.DownloadStatus, sent int64, err error) {
		s.finishRecord(rec, status, sent, err)
	}), nil
}

func (s *service) RecentDownloads(ctx context.Context, limit int) ([]*models.DownloadRecord, error) {
	if s.repo == nil {
		return []*models.DownloadRecord{}, nil
	}

	switch {
	case limit <= 0:
		limit = s.config.DefaultHistoryLimit
	case s.config.MaxHistoryLimit > 0 && limit > s.config.MaxHistoryLimit:
		limit = s.config.MaxHistoryLimit
	}

	return s.repo.Recent(ctx, limit)
}

func (s *service) DownloadRecord(ctx context.Context, id string) (*models.DownloadRecord, error) {
	const op = "VideoService.DownloadRecord"

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.InvalidRequest(op, nil, "ID is required")
	}
	if s.repo == nil {
		return nil, errors.NotFound(op, nil, "Download not found")
	}

	return s.repo.Find(ctx, id)
}

func (s *service) fetch(ctx context.Context, op, rawURL string) (*models.RawInfo, error) {
	info, err := s.client.GetVideoInfo(ctx, rawURL)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"op":    op,
			"url":   rawURL,
			"error": err,
		}).Error("Failed to get video info")
		return nil, errors.Extraction(op, err, "Failed to get video info")
	}
	if info == nil {
		return nil, errors.Extraction(op, nil, "Failed to get video info")
	}
	return info, nil
}

func (s *service) startRecord(rawURL string, info *models.RawInfo, format models.FormatDescriptor) *models.DownloadRecord {
	now := s.now()
	rec := &models.DownloadRecord{
		ID:        uuid.New().String(),
		URL:       rawURL,
		VideoID:   info.ID,
		Itag:      format.Itag,
		Title:     info.Title,
		Container: format.Container,
		Status:    models.DownloadStreaming,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.saveRecord(rec)
	return rec
}

// finishRecord runs once per download. The request context may already be
// gone, so history writes use their own deadline.
func (s *service) finishRecord(rec *models.DownloadRecord, status models.DownloadStatus, sent int64, err error) {
	rec.Status = status
	rec.Bytes = sent
	rec.UpdatedAt = s.now()
	if err != nil && status == models.DownloadFailed {
		rec.Error = err.Error()
	}

	logger := s.logger.WithFields(logrus.Fields{
		"download_id": rec.ID,
		"video_id":    rec.VideoID,
		"itag":        rec.Itag,
		"bytes":       sent,
		"status":      status,
	})
	if status == models.DownloadFailed {
		logger.WithField("error", err).Error("Download failed")
	} else {
		logger.Info("Download finished")
	}

	s.saveRecord(rec)

	if s.archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		if err := s.archiver.SaveDownloadRecord(ctx, rec); err != nil {
			logger.WithField("error", err).Warn("Failed to archive download record")
		}
	}
}

func (s *service) saveRecord(rec *models.DownloadRecord) {
	if s.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	if err := s.repo.Save(ctx, rec); err != nil {
		s.logger.WithFields(logrus.Fields{
			"download_id": rec.ID,
			"status":      rec.Status,
			"error":       err,
		}).Warn("Failed to save download record")
	}
}
